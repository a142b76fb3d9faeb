package engine

import (
	"testing"

	"github.com/kigalisim/core/engine/state"
	"github.com/kigalisim/core/unit"
	"github.com/shopspring/decimal"
)

// TestRecoverZeroInductionEquipmentMatchesBAU is the worked scenario S4:
// a unit-based sales intent plus a zero-induction recovery leaves equipment
// identical to a BAU run with no recovery at all, because the recovered
// mass that displaces virgin sales feeds new equipment exactly as that
// virgin mass would have.
func TestRecoverZeroInductionEquipmentMatchesBAU(t *testing.T) {
	bau := newTestEngine()
	bauKey := testKey()
	bau.Enable(bauKey, state.StreamDomestic)
	if err := bau.InitialCharge(bauKey, state.StreamDomestic, unit.New(1, "kg / unit")); err != nil {
		t.Fatalf("BAU InitialCharge: %v", err)
	}
	if err := bau.SetStream(bauKey, state.StreamDomestic, unit.New(1000, "units")); err != nil {
		t.Fatalf("BAU SetStream: %v", err)
	}
	bauEquipment := bau.Store().GetOrCreate(bauKey).Stream(state.StreamEquipment)

	rec := newTestEngine()
	recKey := testKey()
	rec.Enable(recKey, state.StreamDomestic)
	if err := rec.InitialCharge(recKey, state.StreamDomestic, unit.New(1, "kg / unit")); err != nil {
		t.Fatalf("Recycling InitialCharge: %v", err)
	}
	if err := rec.SetStream(recKey, state.StreamDomestic, unit.New(1000, "units")); err != nil {
		t.Fatalf("Recycling SetStream: %v", err)
	}
	domesticBefore := rec.Store().GetOrCreate(recKey).Stream(state.StreamDomestic)
	if err := rec.Recover(recKey, state.RecoverySpec{
		Volume:    unit.New(100, "kg"),
		Yield:     decimal.NewFromInt(1),
		Stage:     state.StageEOL,
		Induction: decimal.Zero,
	}); err != nil {
		t.Fatalf("Recover: %v", err)
	}

	s := rec.Store().GetOrCreate(recKey)
	recEquipment := s.Stream(state.StreamEquipment)
	if !recEquipment.Value.Equal(bauEquipment.Value) {
		t.Errorf("recycling equipment = %s, want BAU equipment %s", recEquipment, bauEquipment)
	}

	domesticAfter := s.Stream(state.StreamDomestic)
	domImpDelta := domesticBefore.Value.Sub(domesticAfter.Value)
	recycle := s.Stream(state.StreamRecycle)
	if !domImpDelta.Equal(recycle.Value) {
		t.Errorf("domestic+import decreased by %s, want exactly recycle %s", domImpDelta, recycle.Value)
	}
}

// TestRecoverFullInductionEquipmentExceedsBAU is the worked scenario S5:
// with induction 1, recovered mass adds on top of virgin sales instead of
// displacing them, so domestic+recycle exceeds the BAU domestic figure and
// equipment strictly exceeds the BAU run.
func TestRecoverFullInductionEquipmentExceedsBAU(t *testing.T) {
	bau := newTestEngine()
	bauKey := testKey()
	bau.Enable(bauKey, state.StreamDomestic)
	if err := bau.InitialCharge(bauKey, state.StreamDomestic, unit.New(1, "kg / unit")); err != nil {
		t.Fatalf("BAU InitialCharge: %v", err)
	}
	if err := bau.SetStream(bauKey, state.StreamDomestic, unit.New(1000, "units")); err != nil {
		t.Fatalf("BAU SetStream: %v", err)
	}
	bauEquipment := bau.Store().GetOrCreate(bauKey).Stream(state.StreamEquipment)
	bauDomestic := bau.Store().GetOrCreate(bauKey).Stream(state.StreamDomestic)

	rec := newTestEngine()
	recKey := testKey()
	rec.Enable(recKey, state.StreamDomestic)
	if err := rec.InitialCharge(recKey, state.StreamDomestic, unit.New(1, "kg / unit")); err != nil {
		t.Fatalf("Recycling InitialCharge: %v", err)
	}
	if err := rec.SetStream(recKey, state.StreamDomestic, unit.New(1000, "units")); err != nil {
		t.Fatalf("Recycling SetStream: %v", err)
	}
	if err := rec.Recover(recKey, state.RecoverySpec{
		Volume:    unit.New(100, "kg"),
		Yield:     decimal.NewFromInt(1),
		Stage:     state.StageEOL,
		Induction: decimal.NewFromInt(1),
	}); err != nil {
		t.Fatalf("Recover: %v", err)
	}

	s := rec.Store().GetOrCreate(recKey)
	recDomestic := s.Stream(state.StreamDomestic)
	recycle := s.Stream(state.StreamRecycle)
	recEquipment := s.Stream(state.StreamEquipment)

	if !recDomestic.Value.Add(recycle.Value).GreaterThan(bauDomestic.Value) {
		t.Errorf("domestic+recycle = %s, want strictly greater than BAU domestic %s", recDomestic.Value.Add(recycle.Value), bauDomestic)
	}
	if !recEquipment.Value.GreaterThan(bauEquipment.Value) {
		t.Errorf("recycling equipment = %s, want strictly greater than BAU equipment %s", recEquipment, bauEquipment)
	}
}
