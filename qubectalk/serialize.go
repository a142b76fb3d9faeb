package qubectalk

import (
	"fmt"

	"github.com/kigalisim/core/engine/state"
	"github.com/kigalisim/core/ops"
	"github.com/shopspring/decimal"
)

// Serialize re-emits a substance-body operation as DSL surface syntax, the
// inverse of parseStatement. It only covers the statement kinds
// parseStatement produces directly (not arithmetic sub-expressions), which
// is everything a normalized operation tree ever contains at this level.
func Serialize(op ops.Operation) (string, error) {
	switch op.Kind {
	case ops.KindInitialCharge:
		out := fmt.Sprintf("initial charge %s", numUnit(op.Left.Value.Value, op.Left.Value.Units))
		if op.Stream != "" {
			out += " for " + op.Stream
		}
		return out, nil

	case ops.KindEnable:
		return "enable " + op.Stream, nil

	case ops.KindSet:
		return fmt.Sprintf("set %s to %s", op.Stream, numUnit(op.Left.Value.Value, op.Left.Value.Units)), nil

	case ops.KindRecharge:
		return fmt.Sprintf("recharge %s %s",
			numUnit(op.Right.Value.Value, op.Right.Value.Units),
			numUnit(op.Left.Value.Value, op.Left.Value.Units)), nil

	case ops.KindRetire:
		return "retire " + numUnit(op.Left.Value.Value, op.Left.Value.Units), nil

	case ops.KindEquals:
		return "equals " + numUnit(op.Left.Value.Value, op.Left.Value.Units), nil

	case ops.KindRecover:
		stageWord := "eol"
		if op.Stage == state.StageRecharge {
			stageWord = "recharge"
		}
		out := fmt.Sprintf("recover %s with %s reuse %s",
			numUnit(op.Left.Value.Value, op.Left.Value.Units),
			numUnit(op.Yield.Mul(decimal.NewFromInt(100)), "%"),
			stageWord)
		if !op.Induction.IsZero() {
			out += fmt.Sprintf(" with %s induction", numUnit(op.Induction.Mul(decimal.NewFromInt(100)), "%"))
		}
		return out, nil

	case ops.KindChange:
		return fmt.Sprintf("change %s by %s", op.Stream, numUnit(op.Left.Value.Value, op.Left.Value.Units)), nil

	case ops.KindCap:
		out := fmt.Sprintf("cap %s to %s", op.Stream, numUnit(op.Left.Value.Value, op.Left.Value.Units))
		if op.Dest != "" {
			out += fmt.Sprintf(" displacing %q", op.Dest)
		}
		return out, nil

	case ops.KindFloor:
		out := fmt.Sprintf("floor %s to %s", op.Stream, numUnit(op.Left.Value.Value, op.Left.Value.Units))
		if op.Dest != "" {
			out += fmt.Sprintf(" displacing %q", op.Dest)
		}
		return out, nil

	case ops.KindReplace:
		out := fmt.Sprintf("replace %s of %s", numUnit(op.Left.Value.Value, op.Left.Value.Units), op.Stream)
		if op.Dest != "" {
			out += fmt.Sprintf(" with %q", op.Dest)
		}
		return out, nil
	}
	return "", fmt.Errorf("qubectalk: cannot serialize operation kind %d", op.Kind)
}

func numUnit(v decimal.Decimal, units string) string {
	if units == "" {
		return v.String()
	}
	return v.String() + " " + units
}
