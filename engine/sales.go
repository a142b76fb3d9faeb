package engine

import (
	"github.com/kigalisim/core/engine/state"
	"github.com/kigalisim/core/kerr"
	"github.com/kigalisim/core/unit"
	"github.com/shopspring/decimal"
)

// SetStream writes a user-specified value to one of the three concrete
// sales streams (or the `sales` aggregate, which is distributed across
// domestic/import by the frozen distribution) and runs the full
// recalculation cascade: distribution capture, implicit recharge,
// equipment reconciliation and recharge emissions (§4.3 rules 1-5).
func (e *Engine) SetStream(key state.UseKey, stream string, v unit.Num) error {
	s := e.substance(key)
	if err := requireEnabled(s, stream); err != nil {
		return err
	}

	if !isSalesStream(stream) {
		s.SetStream(stream, unit.ClampNonNegative(v))
		return nil
	}

	if stream == state.StreamSales {
		return e.setAggregateSales(s, v)
	}

	s.LastSpecified[stream] = v
	mass, err := e.intentToMass(s, stream, v)
	if err != nil {
		return err
	}
	s.SetStream(stream, unit.ClampNonNegative(mass))
	return e.recalc(s)
}

// setAggregateSales distributes a `sales` write across domestic and import
// per the frozen distribution (before one is captured: an even split when
// both streams are enabled, otherwise all of it to the enabled stream),
// per rule 1's carry-over in reverse: writing the aggregate is the mirror
// image of reading it.
func (e *Engine) setAggregateSales(s *state.SubstanceState, v unit.Num) error {
	domPct, impPct := decimal.NewFromInt(1), decimal.NewFromInt(0)
	if s.Distribution.Captured {
		total := s.Distribution.Domestic.Add(s.Distribution.Import)
		if !total.IsZero() {
			domPct = s.Distribution.Domestic.Div(total)
			impPct = s.Distribution.Import.Div(total)
		}
	} else if s.IsEnabled(state.StreamImport) && !s.IsEnabled(state.StreamDomestic) {
		domPct, impPct = decimal.Zero, decimal.NewFromInt(1)
	} else if s.IsEnabled(state.StreamImport) && s.IsEnabled(state.StreamDomestic) {
		domPct, impPct = decimal.NewFromFloat(0.5), decimal.NewFromFloat(0.5)
	}

	domPart := unit.NewFromDecimal(v.Value.Mul(domPct), v.Units)
	impPart := unit.NewFromDecimal(v.Value.Mul(impPct), v.Units)

	if s.IsEnabled(state.StreamDomestic) {
		if err := e.SetStream(s.Key, state.StreamDomestic, domPart); err != nil {
			return err
		}
	}
	if s.IsEnabled(state.StreamImport) {
		if err := e.SetStream(s.Key, state.StreamImport, impPart); err != nil {
			return err
		}
	}
	return nil
}

// intentToMass converts a sales intent into the kg actually credited to
// stream, applying rule 1 (carry-over bookkeeping), rule 3 (implicit
// recharge for unit-typed intents) and clearing it for mass-typed ones.
func (e *Engine) intentToMass(s *state.SubstanceState, stream string, v unit.Num) (unit.Num, error) {
	ctx := buildContext(s, stream)

	if unit.Normalize(v.Units) == "units" || unit.Normalize(v.Units) == "unit" {
		mass, err := unit.Convert(v, "kg", ctx)
		if err != nil {
			return unit.Num{}, err
		}
		e.updateSalesCarryOver(s)
		mass = e.addImplicitRecharge(s, stream, mass)
		return mass, nil
	}

	// Mass-typed (kg or mt): taken as final, recharge not implied.
	mass, err := unit.Convert(v, "kg", ctx)
	if err != nil {
		return unit.Num{}, err
	}
	s.SalesSetInMass = true
	return mass, nil
}

// updateSalesCarryOver implements rule 1: lastSpecified[sales] tracks the
// sum of unit-typed domestic/import intents, or is cleared once any side
// goes mass-typed.
func (e *Engine) updateSalesCarryOver(s *state.SubstanceState) {
	dom, domOK := s.LastSpecified[state.StreamDomestic]
	imp, impOK := s.LastSpecified[state.StreamImport]
	domUnits := domOK && (unit.Normalize(dom.Units) == "units" || unit.Normalize(dom.Units) == "unit")
	impUnits := impOK && (unit.Normalize(imp.Units) == "units" || unit.Normalize(imp.Units) == "unit")

	if s.SalesSetInMass {
		delete(s.LastSpecified, state.StreamSales)
		return
	}

	total := decimal.Zero
	any := false
	if domUnits {
		total = total.Add(dom.Value)
		any = true
	}
	if impUnits {
		total = total.Add(imp.Value)
		any = true
	}
	if any {
		s.LastSpecified[state.StreamSales] = unit.NewFromDecimal(total, "units")
	}
}

// addImplicitRecharge implements rule 3's mass addition: recharge demand is
// computed once from priorEquipment and distributed across domestic/import
// in proportion to the frozen distribution (renormalized over the two,
// since export carries no local servicing obligation).
func (e *Engine) addImplicitRecharge(s *state.SubstanceState, stream string, mass unit.Num) unit.Num {
	demand := rechargeDemand(s)
	if demand.IsZero() {
		return mass
	}
	share := streamShare(s, stream)
	added := unit.NewFromDecimal(demand.Value.Mul(share), "kg")
	sum, err := unit.Add(mass, added)
	if err != nil {
		return mass
	}
	return sum
}

// streamShare returns domestic/import's renormalized slice of the frozen
// distribution. Before a distribution has been captured it is an even split
// when both streams are enabled and the whole amount otherwise.
func streamShare(s *state.SubstanceState, stream string) decimal.Decimal {
	if stream != state.StreamDomestic && stream != state.StreamImport {
		return decimal.Zero
	}
	if !s.Distribution.Captured {
		if s.IsEnabled(state.StreamDomestic) && s.IsEnabled(state.StreamImport) {
			return decimal.NewFromFloat(0.5)
		}
		return decimal.NewFromInt(1)
	}
	total := s.Distribution.Domestic.Add(s.Distribution.Import)
	if total.IsZero() {
		return decimal.Zero
	}
	if stream == state.StreamDomestic {
		return s.Distribution.Domestic.Div(total)
	}
	return s.Distribution.Import.Div(total)
}

func rechargeDemand(s *state.SubstanceState) unit.Num {
	if s.RechargeVolumePerUnit.Units == "" {
		return unit.Zero("kg")
	}
	prior := s.Stream(state.StreamPriorEquipment)
	pctOfPrior := unit.NewFromDecimal(prior.Value.Mul(s.RechargePopulationPct), "units")
	mass := unit.Mul(pctOfPrior, s.RechargeVolumePerUnit)
	return mass
}

// captureDistribution implements rule 2: the first sales write of the year
// freezes (pctDomestic, pctImport, pctExport) from the relative kg
// magnitudes of the current sales streams.
func captureDistribution(s *state.SubstanceState) {
	if s.Distribution.Captured {
		return
	}
	dom := s.Stream(state.StreamDomestic).Value
	imp := s.Stream(state.StreamImport).Value
	exp := s.Stream(state.StreamExport).Value
	total := dom.Add(imp).Add(exp)
	if total.IsZero() {
		s.Distribution = state.Distribution{Domestic: decimal.NewFromInt(1), Captured: true}
		return
	}
	s.Distribution = state.Distribution{
		Domestic: dom.Div(total),
		Import:   imp.Div(total),
		Export:   exp.Div(total),
		Captured: true,
	}
}

// recalc runs the consistency cascade after any sales-affecting write:
// distribution capture, equipment reconciliation and recharge emissions
// (rules 2, 4, 5). Retirement and recovery call this too, since they both
// change quantities the reconciliation formula depends on. Recovered
// material that isn't servicing recharge (recycle minus recycleRecharge)
// feeds new equipment the same as virgin domestic/import mass, per rule 7's
// total-supply-unchanged guarantee under pure displacement.
func (e *Engine) recalc(s *state.SubstanceState) error {
	captureDistribution(s)

	recharge := rechargeDemand(s)
	s.SetStream(state.StreamRechargeEmissions, recharge)

	dom := s.Stream(state.StreamDomestic)
	imp := s.Stream(state.StreamImport)
	domImp, err := unit.Add(dom, imp)
	if err != nil {
		return err
	}
	reported := s.Stream(state.StreamRechargeEmissions)
	recycleRecharge := s.Stream(state.StreamRecycleRecharge)
	reportedAfterRecycle, err := unit.Sub(reported, recycleRecharge)
	if err != nil {
		return err
	}
	s.SetStream(state.StreamRechargeEmissions, unit.ClampNonNegative(reportedAfterRecycle))

	netForNewEquipment, err := unit.Sub(domImp, recharge)
	if err != nil {
		return err
	}
	recycleStream := s.Stream(state.StreamRecycle)
	recycleForNewEquipment, err := unit.Sub(recycleStream, recycleRecharge)
	if err != nil {
		return err
	}
	netForNewEquipment, err = unit.Add(netForNewEquipment, unit.ClampNonNegative(recycleForNewEquipment))
	if err != nil {
		return err
	}
	netForNewEquipment = unit.ClampNonNegative(netForNewEquipment)

	avgCharge := weightedInitialCharge(s)
	var newEquip unit.Num
	if avgCharge.Value.IsZero() {
		newEquip = unit.Zero("units")
	} else {
		newEquip, err = unit.Div(netForNewEquipment, avgCharge)
		if err != nil {
			return &kerr.Arithmetic{Op: "newEquipment", Detail: err.Error()}
		}
	}
	s.SetStream(state.StreamNewEquipment, newEquip)

	prior := s.Stream(state.StreamPriorEquipment)
	retired := s.RetireApplied
	equipment, err := unit.Add(prior, newEquip)
	if err != nil {
		return err
	}
	equipment, err = unit.Sub(equipment, retired)
	if err != nil {
		return err
	}
	s.SetStream(state.StreamEquipment, unit.ClampNonNegative(equipment))

	return nil
}

// weightedInitialCharge implements rule 4's "initialCharge_weighted_avg",
// weighted by the frozen distribution's domestic/import shares
// renormalized over the two (export does not add new local equipment).
func weightedInitialCharge(s *state.SubstanceState) unit.Num {
	domCharge, hasDom := s.InitialCharge[state.StreamDomestic]
	impCharge, hasImp := s.InitialCharge[state.StreamImport]
	switch {
	case hasDom && hasImp:
		domShare := streamShare(s, state.StreamDomestic)
		impShare := streamShare(s, state.StreamImport)
		weighted := domCharge.Value.Mul(domShare).Add(impCharge.Value.Mul(impShare))
		return unit.NewFromDecimal(weighted, domCharge.Units)
	case hasDom:
		return domCharge
	case hasImp:
		return impCharge
	default:
		return unit.Zero("kg / unit")
	}
}
