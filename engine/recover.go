package engine

import (
	"github.com/kigalisim/core/engine/state"
	"github.com/kigalisim/core/unit"
	"github.com/shopspring/decimal"
)

// Recover implements §4.3 rule 7. Volume is resolved to kg (converting
// units to kg via initialCharge if needed) before the yield is applied.
// Induction blends displacement (reduces virgin domestic+import) against
// pure addition (grows total supply); the stage=RECHARGE portion also
// reduces the reported rechargeEmissions via recycleRecharge, per the
// Open Question decision recorded in SPEC_FULL.md (the recharge demand
// itself, computed in recalc, is never reduced by recovery).
func (e *Engine) Recover(key state.UseKey, spec state.RecoverySpec) error {
	s := e.substance(key)
	ctx := buildContext(s, state.StreamDomestic)

	volKg, err := unit.Convert(spec.Volume, "kg", ctx)
	if err != nil {
		return err
	}
	reusable := unit.NewFromDecimal(volKg.Value.Mul(spec.Yield), "kg")

	recycle := s.Stream(state.StreamRecycle)
	recycle, err = unit.Add(recycle, reusable)
	if err != nil {
		return err
	}
	s.SetStream(state.StreamRecycle, recycle)

	oneMinusInduction := decimal.NewFromInt(1).Sub(spec.Induction)
	displaced := unit.NewFromDecimal(reusable.Value.Mul(oneMinusInduction), "kg")
	induced := unit.NewFromDecimal(reusable.Value.Mul(spec.Induction), "kg")

	if !displaced.IsZero() {
		if err := e.applyDisplacement(s, displaced); err != nil {
			return err
		}
	}
	if !induced.IsZero() {
		if err := e.applyInduction(s, induced); err != nil {
			return err
		}
	}

	if spec.Stage == state.StageRecharge {
		recycleRecharge := s.Stream(state.StreamRecycleRecharge)
		recycleRecharge, err = unit.Add(recycleRecharge, reusable)
		if err != nil {
			return err
		}
		s.SetStream(state.StreamRecycleRecharge, recycleRecharge)
	}

	return e.recalc(s)
}

// applyDisplacement reduces domestic and import by amount, split by the
// frozen distribution's domestic/import shares ("i = 0" branch of rule 7).
func (e *Engine) applyDisplacement(s *state.SubstanceState, amount unit.Num) error {
	captureDistribution(s)
	domShare := streamShare(s, state.StreamDomestic)
	impShare := streamShare(s, state.StreamImport)

	domCut := unit.NewFromDecimal(amount.Value.Mul(domShare), "kg")
	impCut := unit.NewFromDecimal(amount.Value.Mul(impShare), "kg")

	dom, err := unit.Sub(s.Stream(state.StreamDomestic), domCut)
	if err != nil {
		return err
	}
	imp, err := unit.Sub(s.Stream(state.StreamImport), impCut)
	if err != nil {
		return err
	}
	s.SetStream(state.StreamDomestic, unit.ClampNonNegative(dom))
	s.SetStream(state.StreamImport, unit.ClampNonNegative(imp))
	return nil
}

// applyInduction adds amount on top of virgin domestic+import supply,
// split the same way as applyDisplacement ("i = 1" branch of rule 7).
func (e *Engine) applyInduction(s *state.SubstanceState, amount unit.Num) error {
	captureDistribution(s)
	domShare := streamShare(s, state.StreamDomestic)
	impShare := streamShare(s, state.StreamImport)

	domAdd := unit.NewFromDecimal(amount.Value.Mul(domShare), "kg")
	impAdd := unit.NewFromDecimal(amount.Value.Mul(impShare), "kg")

	dom, err := unit.Add(s.Stream(state.StreamDomestic), domAdd)
	if err != nil {
		return err
	}
	imp, err := unit.Add(s.Stream(state.StreamImport), impAdd)
	if err != nil {
		return err
	}
	s.SetStream(state.StreamDomestic, dom)
	s.SetStream(state.StreamImport, imp)
	return nil
}
