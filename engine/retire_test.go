package engine

import (
	"testing"

	"github.com/kigalisim/core/engine/state"
	"github.com/kigalisim/core/unit"
	"github.com/shopspring/decimal"
)

// TestRetireAbsoluteMassDoesNotCompound is the worked scenario S1: an
// absolute-mass retire operand converts to units via the initial charge and
// removes the same number of units every year regardless of the shrinking
// base, unlike a percentage retire, which recomputes against each year's
// own base (see TestRetireCumulativePercentLiteral).
//
// The distilled scenario states a 10 kg/unit charge on a 100-unit base
// retiring "5 kg + 10 kg" and lands on 92.5 then 85 units. Working the
// same algebra through rule 6 with that stated charge instead gives 98.5
// then 97.0: a constant 1.5 units removed every year, reproducing the
// documented non-compounding property exactly, just with different
// literal figures. Reaching 92.5/85 requires an effective charge of
// 2 kg/unit, which is inconsistent with the scenario's own stated 10
// kg/unit, so this test asserts the charge-consistent result rather than
// force a mismatched constant.
func TestRetireAbsoluteMassDoesNotCompound(t *testing.T) {
	e := newTestEngine()
	key := testKey()
	s := e.Store().GetOrCreate(key)

	if err := e.InitialCharge(key, state.StreamDomestic, unit.New(10, "kg / unit")); err != nil {
		t.Fatalf("InitialCharge: %v", err)
	}
	if err := e.SetPriorEquipment(key, unit.New(100, "units")); err != nil {
		t.Fatalf("SetPriorEquipment: %v", err)
	}

	if err := e.Retire(key, unit.New(5, "kg")); err != nil {
		t.Fatalf("retire 5kg: %v", err)
	}
	if err := e.Retire(key, unit.New(10, "kg")); err != nil {
		t.Fatalf("retire 10kg: %v", err)
	}
	year1 := s.Stream(state.StreamEquipment)
	if !year1.Value.Equal(decimal.NewFromFloat(98.5)) {
		t.Errorf("year 1 equipment = %s, want 98.5", year1)
	}

	e.AdvanceYear()

	if err := e.Retire(key, unit.New(5, "kg")); err != nil {
		t.Fatalf("year 2 retire 5kg: %v", err)
	}
	if err := e.Retire(key, unit.New(10, "kg")); err != nil {
		t.Fatalf("year 2 retire 10kg: %v", err)
	}
	year2 := s.Stream(state.StreamEquipment)
	if !year2.Value.Equal(decimal.NewFromFloat(97)) {
		t.Errorf("year 2 equipment = %s, want 97", year2)
	}

	removedYear1 := decimal.NewFromInt(100).Sub(year1.Value)
	removedYear2 := year1.Value.Sub(year2.Value)
	if !removedYear1.Equal(removedYear2) {
		t.Errorf("absolute-mass retire compounded: year 1 removed %s, year 2 removed %s", removedYear1, removedYear2)
	}
}

// TestRetireCumulativePercentLiteral is the worked scenario S2: two
// percentage retires in a year accumulate against the same frozen base,
// and each year starts a fresh base from that year's own prior equipment
// (this is the regression test for the AdvanceYear fix that resets
// retirementPctCumulative to zero -- without it, year 2 comes out to 76.5
// instead of 90.75).
func TestRetireCumulativePercentLiteral(t *testing.T) {
	e := newTestEngine()
	key := testKey()
	s := e.Store().GetOrCreate(key)

	if err := e.SetPriorEquipment(key, unit.New(100, "units")); err != nil {
		t.Fatalf("SetPriorEquipment: %v", err)
	}
	if err := e.Retire(key, unit.New(5, "%")); err != nil {
		t.Fatalf("retire 5%%: %v", err)
	}
	if err := e.Retire(key, unit.New(10, "%")); err != nil {
		t.Fatalf("retire 10%%: %v", err)
	}

	e.Enable(key, state.StreamDomestic)
	if err := e.InitialCharge(key, state.StreamDomestic, unit.New(1, "kg / unit")); err != nil {
		t.Fatalf("InitialCharge: %v", err)
	}
	if err := e.SetStream(key, state.StreamDomestic, unit.New(10, "units")); err != nil {
		t.Fatalf("set new sales: %v", err)
	}

	year1 := s.Stream(state.StreamEquipment)
	if !year1.Value.Equal(decimal.NewFromInt(95)) {
		t.Errorf("year 1 equipment = %s, want 95", year1)
	}

	e.AdvanceYear()
	if err := e.Retire(key, unit.New(5, "%")); err != nil {
		t.Fatalf("year 2 retire 5%%: %v", err)
	}
	if err := e.Retire(key, unit.New(10, "%")); err != nil {
		t.Fatalf("year 2 retire 10%%: %v", err)
	}
	if err := e.SetStream(key, state.StreamDomestic, unit.New(10, "units")); err != nil {
		t.Fatalf("year 2 set new sales: %v", err)
	}
	year2 := s.Stream(state.StreamEquipment)
	if !year2.Value.Equal(decimal.NewFromFloat(90.75)) {
		t.Errorf("year 2 equipment = %s, want 90.75", year2)
	}

	e.AdvanceYear()
	if err := e.Retire(key, unit.New(5, "%")); err != nil {
		t.Fatalf("year 3 retire 5%%: %v", err)
	}
	if err := e.Retire(key, unit.New(10, "%")); err != nil {
		t.Fatalf("year 3 retire 10%%: %v", err)
	}
	if err := e.SetStream(key, state.StreamDomestic, unit.New(10, "units")); err != nil {
		t.Fatalf("year 3 set new sales: %v", err)
	}
	year3 := s.Stream(state.StreamEquipment)
	if !year3.Value.Equal(decimal.NewFromFloat(87.1375)) {
		t.Errorf("year 3 equipment = %s, want 87.1375", year3)
	}
}

// TestRetirePriorOverrideRescale is the worked scenario S3: a manual
// priorEquipment override mid-year rescales cumulativeRetireBase and
// retireApplied proportionally and restarts retirementPctCumulative, so a
// subsequent retire accumulates fresh against the new base rather than
// double-counting the percentage applied before the override.
func TestRetirePriorOverrideRescale(t *testing.T) {
	e := newTestEngine()
	key := testKey()
	s := e.Store().GetOrCreate(key)

	if err := e.SetPriorEquipment(key, unit.New(100, "units")); err != nil {
		t.Fatalf("SetPriorEquipment 100: %v", err)
	}
	if err := e.Retire(key, unit.New(10, "%")); err != nil {
		t.Fatalf("retire 10%%: %v", err)
	}
	afterFirst := s.Stream(state.StreamEquipment)
	if !afterFirst.Value.Equal(decimal.NewFromInt(90)) {
		t.Errorf("equipment after first retire = %s, want 90", afterFirst)
	}
	if !s.RetireApplied.Value.Equal(decimal.NewFromInt(10)) {
		t.Errorf("retireApplied = %s, want 10", s.RetireApplied)
	}

	if err := e.SetPriorEquipment(key, unit.New(50, "units")); err != nil {
		t.Fatalf("SetPriorEquipment 50: %v", err)
	}
	if !s.CumulativeRetireBase.Value.Equal(decimal.NewFromInt(50)) {
		t.Errorf("cumulativeRetireBase = %s, want 50", s.CumulativeRetireBase)
	}
	if !s.RetireApplied.Value.Equal(decimal.NewFromInt(5)) {
		t.Errorf("retireApplied after rescale = %s, want 5", s.RetireApplied)
	}

	if err := e.Retire(key, unit.New(5, "%")); err != nil {
		t.Fatalf("retire 5%%: %v", err)
	}
	final := s.Stream(state.StreamEquipment)
	if !final.Value.Equal(decimal.NewFromFloat(47.5)) {
		t.Errorf("final equipment = %s, want 47.5", final)
	}
}
