package qubectalk

import (
	"github.com/Knetic/govaluate"
	"github.com/kigalisim/core/engine"
	"github.com/kigalisim/core/engine/state"
	"github.com/kigalisim/core/kerr"
	"github.com/kigalisim/core/unit"
)

// EvalExpr evaluates a govaluate arithmetic expression against the named
// substance's current state, exposing getStream(name) and getVariable(name)
// as lazily-resolved functions. This mirrors the teacher's io.go Outputter,
// which exposes model variables to govaluate expressions the same way. The
// parser in parser.go does not call it: statements there take literal
// NUMBER UNIT values only, and no priorYear function is provided here.
func EvalExpr(expr string, eng *engine.Engine, key state.UseKey, vars map[string]unit.Num) (unit.Num, error) {
	functions := map[string]govaluate.ExpressionFunction{
		"getStream": func(args ...interface{}) (interface{}, error) {
			name, _ := args[0].(string)
			v, err := eng.GetStream(key, name, "")
			if err != nil {
				return nil, err
			}
			f, _ := v.Value.Float64()
			return f, nil
		},
		"getVariable": func(args ...interface{}) (interface{}, error) {
			name, _ := args[0].(string)
			v, ok := vars[name]
			if !ok {
				return nil, &kerr.UnknownName{Kind: "variable", Name: name}
			}
			f, _ := v.Value.Float64()
			return f, nil
		},
	}

	evalExpr, err := govaluate.NewEvaluableExpressionWithFunctions(expr, functions)
	if err != nil {
		return unit.Num{}, &kerr.ParseError{Location: "expression", Message: err.Error()}
	}

	result, err := evalExpr.Evaluate(nil)
	if err != nil {
		return unit.Num{}, &kerr.ParseError{Location: "expression", Message: err.Error()}
	}
	f, ok := result.(float64)
	if !ok {
		return unit.Num{}, &kerr.ParseError{Location: "expression", Message: "expression did not evaluate to a number"}
	}
	return unit.New(f, ""), nil
}
