// Package unit implements the decimal number and unit algebra that
// underlies every stream value in the simulation core. A Num pairs an
// exact decimal value with a unit string; Convert resolves ratio units
// (kg/unit, %/year, kgCO2e/kg, ...) against a per-substance Context rather
// than a fixed table, since the conversion factors themselves are model
// state (initial charge, GHG intensity, energy intensity).
package unit

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

func init() {
	// The material-balance tests in engine/ compare sums of many converted
	// streams; keep division precision comfortably above the >=34
	// significant digit floor so repeated kg<->unit<->tCO2e round trips
	// don't erode the last few digits before the final rounding step.
	decimal.DivisionPrecision = 50
}

// DefaultDisplayScale is the number of decimal places EngineResult
// serialization rounds to. Internal arithmetic is not rounded.
const DefaultDisplayScale = 10

// Num is a decimal value tagged with a unit string. The zero value is 0
// with no units and is a valid, usable Num.
type Num struct {
	Value decimal.Decimal
	Units string
}

// Zero returns a Num of value 0 in the given units.
func Zero(units string) Num {
	return Num{Value: decimal.Zero, Units: Normalize(units)}
}

// New builds a Num from a float64 value, mainly for tests and literals
// parsed by the DSL front-end.
func New(value float64, units string) Num {
	return Num{Value: decimal.NewFromFloat(value), Units: Normalize(units)}
}

// NewFromDecimal builds a Num from an already-constructed decimal.Decimal.
func NewFromDecimal(value decimal.Decimal, units string) Num {
	return Num{Value: value, Units: Normalize(units)}
}

// Normalize collapses whitespace runs, rewrites the English "each" into a
// ratio slash and writes ratios as "a / b", so "kg each unit" and "kg/unit"
// compare equal. Per §4.1,
// the per-unit test is based on this normalized form.
func Normalize(units string) string {
	u := strings.Join(strings.Fields(units), " ")
	u = strings.ReplaceAll(u, " each ", " / ")
	u = strings.ReplaceAll(u, "each ", "/ ")
	u = strings.ReplaceAll(u, " each", " /")
	parts := strings.SplitN(u, "/", 2)
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return strings.Join(parts, " / ")
}

// IsRatio reports whether units has a numerator and denominator separated
// by "/".
func IsRatio(units string) bool {
	return strings.Contains(Normalize(units), "/")
}

// Split returns the numerator and denominator of a ratio unit. If units is
// not a ratio, denom is "".
func Split(units string) (numer, denom string) {
	parts := strings.SplitN(Normalize(units), "/", 2)
	numer = strings.TrimSpace(parts[0])
	if len(parts) == 2 {
		denom = strings.TrimSpace(parts[1])
	}
	return numer, denom
}

// IsPerUnit reports whether a ratio's denominator is "unit" or "units".
func IsPerUnit(units string) bool {
	_, denom := Split(units)
	return denom == "unit" || denom == "units"
}

// IsPercent reports whether units is exactly "%" (a dimensioned scalar,
// per §3 never stored in lastSpecified).
func IsPercent(units string) bool {
	return Normalize(units) == "%"
}

// sameUnits compares normalized unit strings for arithmetic compatibility.
func sameUnits(a, b string) bool {
	return Normalize(a) == Normalize(b)
}

// Add adds two Nums of compatible units. Per §4.2, either side may be
// dimensionless (empty units), in which case the other side's units win.
func Add(a, b Num) (Num, error) {
	units, err := combineUnits("Add", a, b)
	if err != nil {
		return Num{}, err
	}
	return Num{Value: a.Value.Add(b.Value), Units: units}, nil
}

// Sub subtracts b from a; see Add for unit rules.
func Sub(a, b Num) (Num, error) {
	units, err := combineUnits("Sub", a, b)
	if err != nil {
		return Num{}, err
	}
	return Num{Value: a.Value.Sub(b.Value), Units: units}, nil
}

func combineUnits(op string, a, b Num) (string, error) {
	au, bu := Normalize(a.Units), Normalize(b.Units)
	switch {
	case au == "" || au == bu:
		return bu, nil
	case bu == "":
		return au, nil
	default:
		return "", &arithmeticUnitError{op: op, a: au, b: bu}
	}
}

type arithmeticUnitError struct{ op, a, b string }

func (e *arithmeticUnitError) Error() string {
	return fmt.Sprintf("%s: incompatible units %q and %q", e.op, e.a, e.b)
}

// Mul multiplies two Nums. A "%" operand is resolved multiplicatively
// against the other operand and the result carries the other operand's
// units (percentages are dimensioned scalars, per §4.1). A ratio operand
// whose denominator matches the other side's units cancels that
// denominator (e.g. `units * (kg / unit)` -> `kg`), since this is how
// every rate (initial charge, GHG intensity, energy intensity) combines
// with a population or mass figure elsewhere in the engine.
func Mul(a, b Num) Num {
	switch {
	case IsPercent(a.Units) && !IsPercent(b.Units):
		frac := a.Value.Div(decimal.NewFromInt(100))
		return Num{Value: frac.Mul(b.Value), Units: Normalize(b.Units)}
	case IsPercent(b.Units) && !IsPercent(a.Units):
		frac := b.Value.Div(decimal.NewFromInt(100))
		return Num{Value: a.Value.Mul(frac), Units: Normalize(a.Units)}
	case a.Units == "":
		return Num{Value: a.Value.Mul(b.Value), Units: Normalize(b.Units)}
	case b.Units == "":
		return Num{Value: a.Value.Mul(b.Value), Units: Normalize(a.Units)}
	}

	if numer, denom := Split(b.Units); denom != "" && denomMatches(denom, a.Units) {
		return Num{Value: a.Value.Mul(b.Value), Units: numer}
	}
	if numer, denom := Split(a.Units); denom != "" && denomMatches(denom, b.Units) {
		return Num{Value: a.Value.Mul(b.Value), Units: numer}
	}
	return Num{Value: a.Value.Mul(b.Value), Units: Normalize(a.Units) + " * " + Normalize(b.Units)}
}

// denomMatches compares a ratio's denominator against a plain unit string,
// treating "unit"/"units" as interchangeable the way the rest of the
// package does.
func denomMatches(denom, units string) bool {
	d, u := strings.ToLower(denom), strings.ToLower(Normalize(units))
	if d == u {
		return true
	}
	isUnitWord := func(s string) bool { return s == "unit" || s == "units" }
	return isUnitWord(d) && isUnitWord(u)
}

// MulScalar multiplies a Num by a plain decimal scalar, keeping a's units.
func MulScalar(a Num, scalar decimal.Decimal) Num {
	return Num{Value: a.Value.Mul(scalar), Units: a.Units}
}

// Div divides a by b. Division by zero returns kerr-compatible error via
// the caller (engine and ops wrap this into kerr.Arithmetic); here it
// reports a plain error so unit stays decoupled from kerr.
func Div(a, b Num) (Num, error) {
	if b.Value.IsZero() {
		return Num{}, fmt.Errorf("division by zero: %s / %s", a.Units, b.Units)
	}
	switch {
	case a.Units == b.Units:
		return Num{Value: a.Value.Div(b.Value), Units: ""}, nil
	case b.Units == "":
		return Num{Value: a.Value.Div(b.Value), Units: a.Units}, nil
	case a.Units == "":
		return Num{Value: a.Value.Div(b.Value), Units: b.Units}, nil
	}

	// a / (X / Y) cancels to Y when a is denominated in X, e.g.
	// kg / (kg / unit) -> unit. This is how equipment counts are recovered
	// from a mass divided by an initial charge elsewhere in the engine.
	if numer, denom := Split(b.Units); numer != "" && denom != "" && denomMatches(numer, a.Units) {
		return Num{Value: a.Value.Div(b.Value), Units: denom}, nil
	}
	return Num{Value: a.Value.Div(b.Value), Units: Normalize(a.Units) + " / " + Normalize(b.Units)}, nil
}

// Cmp compares two Nums of the same (normalized) units. Units mismatch is
// treated as a programmer error (callers must Convert first) and panics,
// matching the "never silently coerce" policy at call sites that have
// already gone through Convert.
func Cmp(a, b Num) int {
	if !sameUnits(a.Units, b.Units) && a.Units != "" && b.Units != "" {
		panic(fmt.Sprintf("unit.Cmp: incompatible units %q and %q", a.Units, b.Units))
	}
	return a.Value.Cmp(b.Value)
}

// Max returns whichever of a, b has the larger value (same unit contract as Cmp).
func Max(a, b Num) Num {
	if Cmp(a, b) >= 0 {
		return a
	}
	return b
}

// Min returns whichever of a, b has the smaller value (same unit contract as Cmp).
func Min(a, b Num) Num {
	if Cmp(a, b) <= 0 {
		return a
	}
	return b
}

// ClampNonNegative returns n, or 0 in n's units if n is negative.
func ClampNonNegative(n Num) Num {
	if n.Value.IsNegative() {
		return Zero(n.Units)
	}
	return n
}

// Round rounds n's value to scale decimal places for serialization. It does
// not mutate n.
func Round(n Num, scale int32) Num {
	return Num{Value: n.Value.Round(scale), Units: n.Units}
}

// String renders a Num for logs and error messages.
func (n Num) String() string {
	if n.Units == "" {
		return n.Value.String()
	}
	return fmt.Sprintf("%s %s", n.Value.String(), n.Units)
}

// IsZero reports whether n's value is exactly zero.
func (n Num) IsZero() bool {
	return n.Value.IsZero()
}
