package unit

import (
	"strings"

	"github.com/kigalisim/core/kerr"
	"github.com/shopspring/decimal"
)

// Context supplies the per-substance conversion factors that let a ratio
// unit be resolved into an absolute one. Any field may be the zero Num
// ({} i.e. units "") when the corresponding conversion is not needed for a
// particular call; Convert only consults the fields it needs for the
// requested from/to pair.
type Context struct {
	// Volume is the current mass being converted, used as the base when a
	// percentage converts to a non-unit target.
	Volume Num

	// Population is the current equipment count, in units.
	Population Num

	// AmortizedUnitVolume is the kg/unit (or mt/unit) initial charge used
	// to convert between units and mass.
	AmortizedUnitVolume Num

	// SubstanceConsumption is the GHG intensity, in kgCO2e/kg, tCO2e/kg,
	// kgCO2e/unit, or kgCO2e/mt.
	SubstanceConsumption Num

	// EnergyIntensity is the kwh/unit energy factor.
	EnergyIntensity Num
}

const (
	kgPerMt = 1000
)

// Convert converts n into target units using ctx to resolve any ratio
// factors required along the way. It returns kerr.UnitConversion when the
// requested conversion has no defined rule or the context is missing a
// needed factor.
func Convert(n Num, target string, ctx Context) (Num, error) {
	from := Normalize(n.Units)
	to := Normalize(target)
	fromLower, toLower := strings.ToLower(from), strings.ToLower(to)

	if from == to {
		return Num{Value: n.Value, Units: to}, nil
	}

	// Percent is multiplicative against the context volume/population base;
	// the caller is expected to have already resolved "%" against
	// lastSpecified before reaching Convert (see engine's resolveLimit),
	// but we still support direct "% -> absolute" for completeness.
	if IsPercent(from) {
		return Mul(n, baseFor(to, ctx)), nil
	}

	switch {
	case fromLower == "kg" && toLower == "mt":
		return Num{Value: n.Value.Div(decimal.NewFromInt(kgPerMt)), Units: to}, nil
	case fromLower == "mt" && toLower == "kg":
		return Num{Value: n.Value.Mul(decimal.NewFromInt(kgPerMt)), Units: to}, nil

	case (fromLower == "unit" || fromLower == "units") && toLower == "kg":
		return unitsToMass(n, "kg", ctx)
	case (fromLower == "unit" || fromLower == "units") && toLower == "mt":
		return unitsToMass(n, "mt", ctx)
	case fromLower == "kg" && (toLower == "unit" || toLower == "units"):
		return massToUnits(n, ctx)
	case fromLower == "mt" && (toLower == "unit" || toLower == "units"):
		kg, err := Convert(n, "kg", ctx)
		if err != nil {
			return Num{}, err
		}
		return massToUnits(kg, ctx)

	case fromLower == "kg" && toLower == "tco2e":
		return massToTco2e(n, ctx)
	case fromLower == "mt" && toLower == "tco2e":
		kg, err := Convert(n, "kg", ctx)
		if err != nil {
			return Num{}, err
		}
		return massToTco2e(kg, ctx)
	case (fromLower == "unit" || fromLower == "units") && toLower == "tco2e":
		return unitsToTco2e(n, ctx)

	case (fromLower == "unit" || fromLower == "units") && toLower == "kwh":
		return unitsToKwh(n, ctx)
	}

	return Num{}, &kerr.UnitConversion{From: n.Units, To: target, Context: "no conversion rule for this unit pair"}
}

func baseFor(to string, ctx Context) Num {
	switch Normalize(to) {
	case "unit", "units":
		return ctx.Population
	default:
		return ctx.Volume
	}
}

func isUnitDenom(denom string) bool {
	d := strings.ToLower(denom)
	return d == "unit" || d == "units"
}

func unitsToMass(n Num, massUnit string, ctx Context) (Num, error) {
	if ctx.AmortizedUnitVolume.Units == "" {
		return Num{}, &kerr.UnitConversion{From: n.Units, To: massUnit, Context: "missing amortized unit volume (initial charge)"}
	}
	numer, denom := Split(ctx.AmortizedUnitVolume.Units)
	if !isUnitDenom(denom) {
		return Num{}, &kerr.UnitConversion{From: n.Units, To: massUnit, Context: "amortized unit volume must be mass-per-unit"}
	}
	kgPerUnit := ctx.AmortizedUnitVolume
	if strings.ToLower(numer) == "mt" {
		kgPerUnit = Num{Value: kgPerUnit.Value.Mul(decimal.NewFromInt(kgPerMt)), Units: "kg / unit"}
	}
	mass := Num{Value: n.Value.Mul(kgPerUnit.Value), Units: "kg"}
	if strings.ToLower(Normalize(massUnit)) == "mt" {
		return Convert(mass, "mt", ctx)
	}
	return mass, nil
}

func massToUnits(n Num, ctx Context) (Num, error) {
	if ctx.AmortizedUnitVolume.Units == "" {
		return Num{}, &kerr.UnitConversion{From: n.Units, To: "units", Context: "missing amortized unit volume (initial charge)"}
	}
	numer, denom := Split(ctx.AmortizedUnitVolume.Units)
	if !isUnitDenom(denom) {
		return Num{}, &kerr.UnitConversion{From: n.Units, To: "units", Context: "amortized unit volume must be mass-per-unit"}
	}
	kgPerUnit := ctx.AmortizedUnitVolume.Value
	if strings.ToLower(numer) == "mt" {
		kgPerUnit = kgPerUnit.Mul(decimal.NewFromInt(kgPerMt))
	}
	if kgPerUnit.IsZero() {
		return Num{}, &kerr.Arithmetic{Op: "massToUnits", Detail: "amortized unit volume is zero"}
	}
	return Num{Value: n.Value.Div(kgPerUnit), Units: "units"}, nil
}

// massToTco2e implements §4.1's "kg -> tCO2e via substanceConsumption" rule
// for the mass-denominated branch of GHG intensity (per kg or per mt).
func massToTco2e(n Num, ctx Context) (Num, error) {
	gi := ctx.SubstanceConsumption
	if gi.Units == "" {
		return Num{}, &kerr.UnitConversion{From: n.Units, To: "tCO2e", Context: "missing GHG intensity"}
	}
	numer, denom := Split(gi.Units)
	var perKg decimal.Decimal
	switch strings.ToLower(denom) {
	case "kg":
		perKg = gi.Value
	case "mt":
		perKg = gi.Value.Div(decimal.NewFromInt(kgPerMt))
	default:
		return Num{}, &kerr.UnitConversion{From: n.Units, To: "tCO2e", Context: "GHG intensity is not mass-denominated; use unit-based emissions branch"}
	}
	switch strings.ToLower(numer) {
	case "kgco2e":
		return Num{Value: n.Value.Mul(perKg).Div(decimal.NewFromInt(kgPerMt)), Units: "tCO2e"}, nil
	case "tco2e":
		return Num{Value: n.Value.Mul(perKg), Units: "tCO2e"}, nil
	default:
		return Num{}, &kerr.UnitConversion{From: n.Units, To: "tCO2e", Context: "unrecognized GHG intensity numerator"}
	}
}

// unitsToTco2e implements the equipment-based emissions branch: GHG
// intensity denominated per unit of equipment.
func unitsToTco2e(n Num, ctx Context) (Num, error) {
	gi := ctx.SubstanceConsumption
	if gi.Units == "" {
		return Num{}, &kerr.UnitConversion{From: n.Units, To: "tCO2e", Context: "missing GHG intensity"}
	}
	numer, denom := Split(gi.Units)
	if !isUnitDenom(denom) {
		return Num{}, &kerr.UnitConversion{From: n.Units, To: "tCO2e", Context: "GHG intensity is not unit-denominated"}
	}
	switch strings.ToLower(numer) {
	case "kgco2e":
		return Num{Value: n.Value.Mul(gi.Value).Div(decimal.NewFromInt(kgPerMt)), Units: "tCO2e"}, nil
	case "tco2e":
		return Num{Value: n.Value.Mul(gi.Value), Units: "tCO2e"}, nil
	default:
		return Num{}, &kerr.UnitConversion{From: n.Units, To: "tCO2e", Context: "unrecognized GHG intensity numerator"}
	}
}

func unitsToKwh(n Num, ctx Context) (Num, error) {
	ei := ctx.EnergyIntensity
	if ei.Units == "" {
		return Num{}, &kerr.UnitConversion{From: n.Units, To: "kwh", Context: "missing energy intensity"}
	}
	numer, denom := Split(ei.Units)
	if strings.ToLower(numer) != "kwh" || !isUnitDenom(denom) {
		return Num{}, &kerr.UnitConversion{From: n.Units, To: "kwh", Context: "energy intensity must be kwh per unit"}
	}
	return Num{Value: n.Value.Mul(ei.Value), Units: "kwh"}, nil
}
