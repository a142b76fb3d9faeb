package unit

import "testing"

func TestNormalize(t *testing.T) {
	cases := []struct{ in, want string }{
		{"kg", "kg"},
		{"kg/unit", "kg / unit"},
		{"kg / unit", "kg / unit"},
		{"kg each unit", "kg / unit"},
		{"  kg  ", "kg"},
		{"%", "%"},
	}
	for _, c := range cases {
		if got := Normalize(c.in); got != c.want {
			t.Errorf("Normalize(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestIsPerUnit(t *testing.T) {
	if !IsPerUnit("kg / unit") {
		t.Error("expected kg / unit to be per-unit")
	}
	if !IsPerUnit("kg each units") {
		t.Error("expected kg each units to be per-unit")
	}
	if IsPerUnit("kg / year") {
		t.Error("did not expect kg / year to be per-unit")
	}
}

func TestAddRequiresCompatibleUnits(t *testing.T) {
	a := New(1, "kg")
	b := New(2, "kg")
	sum, err := Add(a, b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sum.Value.String() != "3" || sum.Units != "kg" {
		t.Errorf("got %v", sum)
	}

	_, err = Add(a, New(1, "units"))
	if err == nil {
		t.Error("expected incompatible-units error")
	}
}

func TestAddDimensionlessSide(t *testing.T) {
	a := New(1, "")
	b := New(2, "kg")
	sum, err := Add(a, b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sum.Units != "kg" {
		t.Errorf("expected units kg, got %q", sum.Units)
	}
}

func TestMulPercent(t *testing.T) {
	pct := New(10, "%")
	base := New(200, "kg")
	got := Mul(pct, base)
	if got.Units != "kg" {
		t.Errorf("expected kg units, got %q", got.Units)
	}
	if !got.Value.Equal(New(20, "kg").Value) {
		t.Errorf("expected 20, got %s", got.Value)
	}
}

func TestConvertUnitsToKg(t *testing.T) {
	ctx := Context{AmortizedUnitVolume: New(10, "kg / unit")}
	n := New(5, "units")
	got, err := Convert(n, "kg", ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Value.Equal(New(50, "kg").Value) {
		t.Errorf("expected 50 kg, got %s", got.Value)
	}
}

func TestConvertKgToUnits(t *testing.T) {
	ctx := Context{AmortizedUnitVolume: New(10, "kg / unit")}
	n := New(50, "kg")
	got, err := Convert(n, "units", ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Value.Equal(New(5, "units").Value) {
		t.Errorf("expected 5 units, got %s", got.Value)
	}
}

func TestConvertKgToTco2e(t *testing.T) {
	ctx := Context{SubstanceConsumption: New(1430, "kgCO2e / kg")}
	n := New(1000, "kg")
	got, err := Convert(n, "tCO2e", ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Value.Equal(New(1430, "tCO2e").Value) {
		t.Errorf("expected 1430 tCO2e, got %s", got.Value)
	}
}

func TestConvertMissingContext(t *testing.T) {
	_, err := Convert(New(5, "units"), "kg", Context{})
	if err == nil {
		t.Error("expected a UnitConversion error when amortized unit volume is missing")
	}
}

func TestConvertMassRoundTrip(t *testing.T) {
	n := New(2.5, "mt")
	got, err := Convert(n, "kg", Context{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Value.Equal(New(2500, "kg").Value) {
		t.Errorf("expected 2500 kg, got %s", got.Value)
	}
	back, err := Convert(got, "mt", Context{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !back.Value.Equal(n.Value) {
		t.Errorf("round trip mismatch: got %s want %s", back.Value, n.Value)
	}
}

func TestClampNonNegative(t *testing.T) {
	if got := ClampNonNegative(New(-5, "kg")); !got.Value.IsZero() {
		t.Errorf("expected clamp to zero, got %s", got.Value)
	}
	if got := ClampNonNegative(New(5, "kg")); !got.Value.Equal(New(5, "kg").Value) {
		t.Errorf("expected unchanged positive value, got %s", got.Value)
	}
}
