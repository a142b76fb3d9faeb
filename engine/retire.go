package engine

import (
	"github.com/kigalisim/core/engine/state"
	"github.com/kigalisim/core/kerr"
	"github.com/kigalisim/core/unit"
	"github.com/shopspring/decimal"
)

// Retire implements §4.3 rule 6. The first retire of the year snapshots
// cumulativeRetireBase from the equipment population as it stood at that
// moment; every retire in the same year accumulates onto
// retirementPctCumulative and only the incremental delta is removed from
// equipment, so repeated retires in one year never double-apply the base
// fraction. operand may be a percent (resolved as a fraction of
// cumulativeRetireBase, and may be negative per the Open Question decision
// recorded in SPEC_FULL.md) or an absolute mass, which converts to units
// via the substance's initial charge and is re-expressed as the equivalent
// fraction of cumulativeRetireBase; its exact unit count is added to the
// applied total, so the same mass removes the same number of units every
// time it's applied and an absolute-mass retire does not compound across
// years the way a percentage one does.
func (e *Engine) Retire(key state.UseKey, operand unit.Num) error {
	s := e.substance(key)
	if !s.RetiredThisYear {
		s.CumulativeRetireBase = s.Stream(state.StreamEquipment)
		s.RetireApplied = unit.Zero("units")
		s.RetiredThisYear = true
	}

	pct, err := retirementFraction(s, operand)
	if err != nil {
		return err
	}
	s.RetirementPctCumulative = s.RetirementPctCumulative.Add(pct)

	totalApplied := unit.NewFromDecimal(s.CumulativeRetireBase.Value.Mul(s.RetirementPctCumulative), "units")
	if !unit.IsPercent(operand.Units) {
		units, err := unit.Convert(operand, "units", buildContext(s, state.StreamDomestic))
		if err != nil {
			return err
		}
		totalApplied, err = unit.Add(s.RetireApplied, units)
		if err != nil {
			return err
		}
	}
	delta, err := unit.Sub(totalApplied, s.RetireApplied)
	if err != nil {
		return err
	}
	s.RetireApplied = totalApplied

	equipment := s.Stream(state.StreamEquipment)
	newEquipment, err := unit.Sub(equipment, delta)
	if err != nil {
		return err
	}
	s.SetStream(state.StreamEquipment, unit.ClampNonNegative(newEquipment))

	eolCharge := initialChargeForRetirement(s)
	eolMass := unit.Mul(delta, eolCharge)
	existingEOL := s.Stream(state.StreamEOLEmissions)
	totalEOL, err := unit.Add(existingEOL, eolMass)
	if err != nil {
		return err
	}
	s.SetStream(state.StreamEOLEmissions, unit.ClampNonNegative(totalEOL))

	return e.recalc(s)
}

// SetPriorEquipment lets a user override priorEquipment directly (used by
// scenarios that seed an installed base). Per rule 6, if this happens after
// a retire has already run this year, the base and applied amount are
// proportionally rescaled so that the already-applied fraction stays the
// same under the new base, and retirementPctCumulative resets to zero so
// the next retire in the year accumulates fresh against the rescaled base
// rather than double-counting the pre-override percentage.
func (e *Engine) SetPriorEquipment(key state.UseKey, v unit.Num) error {
	s := e.substance(key)
	s.SetStream(state.StreamPriorEquipment, unit.ClampNonNegative(v))

	if s.RetiredThisYear && !s.CumulativeRetireBase.Value.IsZero() {
		ratio, err := unit.Div(v, s.CumulativeRetireBase)
		if err == nil {
			s.CumulativeRetireBase = v
			s.RetireApplied = unit.NewFromDecimal(s.RetireApplied.Value.Mul(ratio.Value), "units")
			s.RetirementPctCumulative = decimal.Zero
		}
	}

	return e.recalc(s)
}

// retirementFraction resolves a retire operand into a fraction of
// cumulativeRetireBase. A percent operand is just divided by 100. A mass
// operand (kg, mt, or bare units) converts to units via the substance's
// initial charge, then divides by cumulativeRetireBase -- so the returned
// fraction, multiplied back by that same frozen base, recovers the
// absolute unit count the caller asked to retire.
func retirementFraction(s *state.SubstanceState, operand unit.Num) (decimal.Decimal, error) {
	if unit.IsPercent(operand.Units) {
		return operand.Value.Div(decimal.NewFromInt(100)), nil
	}
	if s.CumulativeRetireBase.Value.IsZero() {
		return decimal.Zero, &kerr.Arithmetic{Op: "retire", Detail: "cannot apply an absolute retirement amount against a zero equipment population"}
	}
	ctx := buildContext(s, state.StreamDomestic)
	units, err := unit.Convert(operand, "units", ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return units.Value.Div(s.CumulativeRetireBase.Value), nil
}

// initialChargeForRetirement picks the per-unit mass lost to EOL leakage
// for retired equipment, preferring the domestic initial charge as the
// representative installed-base charge when multiple are on file.
func initialChargeForRetirement(s *state.SubstanceState) unit.Num {
	if ic, ok := s.InitialCharge[state.StreamDomestic]; ok {
		return ic
	}
	if ic, ok := s.InitialCharge[state.StreamImport]; ok {
		return ic
	}
	return unit.Zero("kg / unit")
}
