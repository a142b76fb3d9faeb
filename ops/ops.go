// Package ops implements the operation tree produced by a DSL front-end
// and the small push-down machine that evaluates it against an
// engine.Engine. Per the tagged-variant design, Operation is a single
// struct with a Kind enum rather than an interface hierarchy; Eval is one
// exhaustive switch.
package ops

import (
	"math/rand"

	"github.com/kigalisim/core/engine"
	"github.com/kigalisim/core/engine/state"
	"github.com/kigalisim/core/kerr"
	"github.com/kigalisim/core/unit"
	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat/distuv"
)

// Kind tags the variant an Operation carries.
type Kind int

const (
	KindAdd Kind = iota
	KindSub
	KindMul
	KindDiv
	KindPow

	KindAnd
	KindOr
	KindXor
	KindEq
	KindNe
	KindLt
	KindLe
	KindGt
	KindGe
	KindConditional

	KindPreCalculated
	KindChangeUnits
	KindRemoveUnits

	KindGetStream

	KindDefineVariable
	KindGetVariable

	KindDrawNormal
	KindDrawUniform

	KindEnable
	KindEquals
	KindInitialCharge
	KindSet
	KindChange
	KindCap
	KindFloor
	KindRecharge
	KindRecover
	KindReplace
	KindRetire
	KindRetireWithReplacement
)

// During bounds the years an Operation applies within. A nil Start means
// "from the beginning"; a nil End means "onwards". Both are resolved to
// concrete years before During.InWindow is checked.
type During struct {
	Start *int
	End   *int
}

// InWindow reports whether year falls within d (inclusive both ends).
func (d During) InWindow(year int) bool {
	if d.Start != nil && year < *d.Start {
		return false
	}
	if d.End != nil && year > *d.End {
		return false
	}
	return true
}

// Operation is the single variant type for every node in a parsed
// substance's operation list and every arithmetic sub-expression within
// one. Only the fields relevant to Kind are populated; Eval never reads a
// field outside its own case.
type Operation struct {
	Kind Kind

	// Arithmetic/logical/conditional children.
	Left, Right, Cond, Then, Else *Operation

	// Value-kind payloads.
	Value   unit.Num
	Units   string
	Name    string
	Stream  string
	Convert string

	// Stream read: substance may be empty to mean "current substance".
	Substance string

	// Engine-op payloads.
	Application string
	Dest        string
	During      During
	Induction   decimal.Decimal
	Yield       decimal.Decimal
	Stage       state.RecoveryStage

	// Random-draw payloads.
	Mean, Std, Low, High *Operation
}

// Machine is a push-down stack evaluator bound to one engine and one
// current (application, substance) scope, per §4.2. One Machine instance
// serves one policy's operations for one substance in one year; callers
// construct a fresh one per substance per year via New.
type Machine struct {
	eng       *engine.Engine
	key       state.UseKey
	vars      map[string]unit.Num
	stack     []unit.Num
	scenarios map[string][]Operation
}

// New returns a Machine scoped to key, backed by eng.
func New(eng *engine.Engine, key state.UseKey) *Machine {
	return &Machine{eng: eng, key: key, vars: make(map[string]unit.Num)}
}

func (m *Machine) push(n unit.Num) { m.stack = append(m.stack, n) }

func (m *Machine) pop() (unit.Num, error) {
	if len(m.stack) == 0 {
		return unit.Num{}, &kerr.InvariantViolation{Detail: "pop on empty operand stack"}
	}
	n := m.stack[len(m.stack)-1]
	m.stack = m.stack[:len(m.stack)-1]
	return n, nil
}

// Close checks the operand stack is empty, per §4.2's bug-detector
// contract: a fully evaluated top-level statement leaves nothing behind.
func (m *Machine) Close() error {
	if len(m.stack) != 0 {
		return &kerr.InvariantViolation{Detail: "non-empty operand stack after statement evaluation"}
	}
	return nil
}

// CanonicalStream resolves DSL stream-name sugar ("bank"/"priorBank") to
// the state package's canonical stream names, per §4.2.
func CanonicalStream(name string) string {
	switch name {
	case "bank":
		return state.StreamEquipment
	case "priorBank":
		return state.StreamPriorEquipment
	default:
		return name
	}
}

// Run executes op for the current year (resolved from m.eng.Year()),
// skipping top-level engine operations outside their During window.
// Arithmetic/value/variable/random kinds are always evaluated (they are
// only ever reached as sub-expressions of an in-window statement).
func (m *Machine) Run(op *Operation) error {
	if isEngineOp(op.Kind) && !op.During.InWindow(m.eng.Year()) {
		return nil
	}
	return m.eval(op)
}

func isEngineOp(k Kind) bool {
	switch k {
	case KindEnable, KindEquals, KindInitialCharge, KindSet, KindChange, KindCap,
		KindFloor, KindRecharge, KindRecover, KindReplace, KindRetire, KindRetireWithReplacement:
		return true
	}
	return false
}

// eval is the single exhaustive switch dispatching every Kind, per the
// REDESIGN FLAGS tagged-variant guidance: no per-Kind Go type, no
// interface method dispatch.
func (m *Machine) eval(op *Operation) error {
	switch op.Kind {
	case KindAdd, KindSub, KindMul, KindDiv, KindPow:
		return m.evalArith(op)
	case KindAnd, KindOr, KindXor, KindEq, KindNe, KindLt, KindLe, KindGt, KindGe:
		return m.evalRelational(op)
	case KindConditional:
		return m.evalConditional(op)
	case KindPreCalculated:
		m.push(op.Value)
		return nil
	case KindChangeUnits:
		if err := m.eval(op.Left); err != nil {
			return err
		}
		v, err := m.pop()
		if err != nil {
			return err
		}
		converted, err := unit.Convert(v, op.Units, m.contextFor(m.key))
		if err != nil {
			return err
		}
		m.push(converted)
		return nil
	case KindRemoveUnits:
		if err := m.eval(op.Left); err != nil {
			return err
		}
		v, err := m.pop()
		if err != nil {
			return err
		}
		m.push(unit.NewFromDecimal(v.Value, ""))
		return nil
	case KindGetStream:
		key := m.key
		if op.Substance != "" {
			key = state.UseKey{Application: m.key.Application, Substance: op.Substance}
		}
		v, err := m.eng.GetStream(key, CanonicalStream(op.Stream), op.Convert)
		if err != nil {
			return err
		}
		m.push(v)
		return nil
	case KindDefineVariable:
		if err := m.eval(op.Left); err != nil {
			return err
		}
		v, err := m.pop()
		if err != nil {
			return err
		}
		m.vars[op.Name] = v
		return nil
	case KindGetVariable:
		v, ok := m.vars[op.Name]
		if !ok {
			return &kerr.UnknownName{Kind: "variable", Name: op.Name}
		}
		m.push(v)
		return nil
	case KindDrawNormal:
		return m.evalDrawNormal(op)
	case KindDrawUniform:
		return m.evalDrawUniform(op)
	case KindEnable:
		m.eng.Enable(m.key, CanonicalStream(op.Stream))
		return nil
	case KindEquals:
		v, err := m.popOperand(op.Left)
		if err != nil {
			return err
		}
		return m.eng.Equals(m.key, v)
	case KindInitialCharge:
		v, err := m.popOperand(op.Left)
		if err != nil {
			return err
		}
		return m.eng.InitialCharge(m.key, CanonicalStream(op.Stream), v)
	case KindSet:
		v, err := m.popOperand(op.Left)
		if err != nil {
			return err
		}
		return m.eng.SetStream(m.key, CanonicalStream(op.Stream), v)
	case KindChange:
		v, err := m.popOperand(op.Left)
		if err != nil {
			return err
		}
		return m.eng.Change(m.key, CanonicalStream(op.Stream), v)
	case KindCap:
		v, err := m.popOperand(op.Left)
		if err != nil {
			return err
		}
		var dest *state.UseKey
		if op.Dest != "" {
			k := state.UseKey{Application: m.key.Application, Substance: op.Dest}
			dest = &k
		}
		return m.eng.Cap(m.key, CanonicalStream(op.Stream), v, dest)
	case KindFloor:
		v, err := m.popOperand(op.Left)
		if err != nil {
			return err
		}
		var dest *state.UseKey
		if op.Dest != "" {
			k := state.UseKey{Application: m.key.Application, Substance: op.Dest}
			dest = &k
		}
		return m.eng.Floor(m.key, CanonicalStream(op.Stream), v, dest)
	case KindRecharge:
		v, err := m.popOperand(op.Left)
		if err != nil {
			return err
		}
		pct, err := m.popOperand(op.Right)
		if err != nil {
			return err
		}
		rate := pct.Value
		if unit.IsPercent(pct.Units) {
			rate = rate.Div(decimal.NewFromInt(100))
		}
		return m.eng.Recharge(m.key, rate, v)
	case KindRecover:
		v, err := m.popOperand(op.Left)
		if err != nil {
			return err
		}
		return m.eng.Recover(m.key, state.RecoverySpec{
			Volume:    v,
			Yield:     op.Yield,
			Stage:     op.Stage,
			Induction: op.Induction,
		})
	case KindReplace:
		v, err := m.popOperand(op.Left)
		if err != nil {
			return err
		}
		dest := state.UseKey{Application: m.key.Application, Substance: op.Dest}
		return m.eng.Replace(m.key, CanonicalStream(op.Stream), v, dest)
	case KindRetire:
		v, err := m.popOperand(op.Left)
		if err != nil {
			return err
		}
		return m.eng.Retire(m.key, v)
	case KindRetireWithReplacement:
		v, err := m.popOperand(op.Left)
		if err != nil {
			return err
		}
		if err := m.eng.Retire(m.key, v); err != nil {
			return err
		}
		dest := state.UseKey{Application: m.key.Application, Substance: op.Dest}
		return m.eng.Replace(m.key, state.StreamEquipment, unit.Zero("units"), dest)
	default:
		return &kerr.InvariantViolation{Detail: "unhandled operation kind"}
	}
}

// popOperand evaluates a sub-expression (if non-nil) and pops its result,
// used by engine-op cases whose operand is itself an expression tree.
func (m *Machine) popOperand(op *Operation) (unit.Num, error) {
	if op == nil {
		return unit.Num{}, &kerr.InvariantViolation{Detail: "missing operand"}
	}
	if err := m.eval(op); err != nil {
		return unit.Num{}, err
	}
	return m.pop()
}

func (m *Machine) contextFor(key state.UseKey) unit.Context {
	v, _ := m.eng.GetStream(key, state.StreamDomestic, "")
	return unit.Context{Volume: v}
}

func (m *Machine) evalArith(op *Operation) error {
	if err := m.eval(op.Left); err != nil {
		return err
	}
	if err := m.eval(op.Right); err != nil {
		return err
	}
	right, err := m.pop()
	if err != nil {
		return err
	}
	left, err := m.pop()
	if err != nil {
		return err
	}
	switch op.Kind {
	case KindAdd:
		v, err := unit.Add(left, right)
		if err != nil {
			return err
		}
		m.push(v)
	case KindSub:
		v, err := unit.Sub(left, right)
		if err != nil {
			return err
		}
		m.push(v)
	case KindMul:
		m.push(unit.Mul(left, right))
	case KindDiv:
		v, err := unit.Div(left, right)
		if err != nil {
			return &kerr.Arithmetic{Op: "Div", Detail: err.Error()}
		}
		m.push(v)
	case KindPow:
		f, _ := left.Value.Float64()
		e, _ := right.Value.Float64()
		m.push(unit.New(pow(f, e), left.Units))
	}
	return nil
}

func pow(base, exp float64) float64 {
	if exp == 0 {
		return 1
	}
	result := 1.0
	neg := exp < 0
	if neg {
		exp = -exp
	}
	for i := 0.0; i < exp; i++ {
		result *= base
	}
	if neg {
		return 1 / result
	}
	return result
}

func (m *Machine) evalRelational(op *Operation) error {
	if err := m.eval(op.Left); err != nil {
		return err
	}
	if err := m.eval(op.Right); err != nil {
		return err
	}
	right, err := m.pop()
	if err != nil {
		return err
	}
	left, err := m.pop()
	if err != nil {
		return err
	}
	var result bool
	switch op.Kind {
	case KindAnd:
		result = !left.Value.IsZero() && !right.Value.IsZero()
	case KindOr:
		result = !left.Value.IsZero() || !right.Value.IsZero()
	case KindXor:
		result = (!left.Value.IsZero()) != (!right.Value.IsZero())
	case KindEq:
		result = left.Value.Equal(right.Value)
	case KindNe:
		result = !left.Value.Equal(right.Value)
	case KindLt:
		result = unit.Cmp(left, right) < 0
	case KindLe:
		result = unit.Cmp(left, right) <= 0
	case KindGt:
		result = unit.Cmp(left, right) > 0
	case KindGe:
		result = unit.Cmp(left, right) >= 0
	}
	if result {
		m.push(unit.New(1, ""))
	} else {
		m.push(unit.New(0, ""))
	}
	return nil
}

func (m *Machine) evalConditional(op *Operation) error {
	if err := m.eval(op.Cond); err != nil {
		return err
	}
	cond, err := m.pop()
	if err != nil {
		return err
	}
	if !cond.Value.IsZero() {
		return m.eval(op.Then)
	}
	return m.eval(op.Else)
}

func (m *Machine) evalDrawNormal(op *Operation) error {
	mean, err := m.popOperand(op.Mean)
	if err != nil {
		return err
	}
	std, err := m.popOperand(op.Std)
	if err != nil {
		return err
	}
	meanF, _ := mean.Value.Float64()
	stdF, _ := std.Value.Float64()
	dist := distuv.Normal{Mu: meanF, Sigma: stdF, Src: rand.NewSource(m.eng.Rand().Int63())}
	m.push(unit.New(dist.Rand(), mean.Units))
	return nil
}

func (m *Machine) evalDrawUniform(op *Operation) error {
	low, err := m.popOperand(op.Low)
	if err != nil {
		return err
	}
	high, err := m.popOperand(op.High)
	if err != nil {
		return err
	}
	lowF, _ := low.Value.Float64()
	highF, _ := high.Value.Float64()
	dist := distuv.Uniform{Min: lowF, Max: highF, Src: rand.NewSource(m.eng.Rand().Int63())}
	m.push(unit.New(dist.Rand(), low.Units))
	return nil
}
