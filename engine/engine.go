// Package engine implements the recalculation engine: the propagation
// graph that turns any single user intent (a sales figure in kg, units or
// percent; an equipment count; a recharge rate; a cap or floor; a recovery
// stage) into a materially-consistent yearly snapshot for a substance,
// per §4.3 of the specification. Engine never logs and never panics on
// user-reachable input; every fallible path returns one of the kerr kinds.
package engine

import (
	"math/rand"

	"github.com/kigalisim/core/engine/state"
	"github.com/kigalisim/core/kerr"
	"github.com/kigalisim/core/unit"
	"github.com/shopspring/decimal"
)

// Engine binds a single state.Store to a year range and a per-trial random
// source. One Engine serves exactly one (scenario, trial) run.
type Engine struct {
	store              *state.Store
	startYear, endYear int
	year               int
	rng                *rand.Rand
	gwp                GWPLookup
}

// GWPLookup is a read-only substance GWP table. An Engine stores one when
// given, but no engine operation reads it: Equals takes only a literal
// factor, and a substance name cannot stand in for one.
type GWPLookup interface {
	GWP(substance string) (decimal.Decimal, bool)
}

// New creates an Engine for the inclusive year range [startYear, endYear],
// using rng as the source for DrawNormal/DrawUniform. rng should already be
// seeded deterministically from (scenarioName, trialNumber); see
// internal/seed.
func New(startYear, endYear int, rng *rand.Rand) *Engine {
	return &Engine{
		store:     state.NewStore(),
		startYear: startYear,
		endYear:   endYear,
		year:      startYear,
		rng:       rng,
	}
}

// WithGWPLookup attaches an optional GWP table and returns the engine for
// chaining.
func (e *Engine) WithGWPLookup(g GWPLookup) *Engine {
	e.gwp = g
	return e
}

// Store exposes the underlying state store, mainly for the serializer and
// tests; ops and sim should prefer the Engine methods below.
func (e *Engine) Store() *state.Store { return e.store }

// Year returns the current simulation year.
func (e *Engine) Year() int { return e.year }

// StartYear and EndYear expose the run's configured bounds.
func (e *Engine) StartYear() int { return e.startYear }
func (e *Engine) EndYear() int   { return e.endYear }

// Rand exposes the per-trial random source for ops.DrawNormal/DrawUniform.
func (e *Engine) Rand() *rand.Rand { return e.rng }

// AdvanceYear moves the engine to the next year and rolls over state per
// §3's Lifecycles note. It is the caller's (sim.Executor's) job to stop
// calling this once year > endYear.
func (e *Engine) AdvanceYear() {
	e.store.AdvanceYear()
	e.year++
}

// substance fetches (creating if needed) the state for key.
func (e *Engine) substance(key state.UseKey) *state.SubstanceState {
	return e.store.GetOrCreate(key)
}

// buildContext constructs the unit.Context for s, used by every Convert
// call the engine makes on its behalf.
func buildContext(s *state.SubstanceState, forStream string) unit.Context {
	ctx := unit.Context{
		Population:           s.Stream(state.StreamEquipment),
		SubstanceConsumption: s.GHGIntensity,
		EnergyIntensity:      s.EnergyIntensity,
	}
	if ic, ok := s.InitialCharge[forStream]; ok {
		ctx.AmortizedUnitVolume = ic
	} else if ic, ok := s.InitialCharge[state.StreamDomestic]; ok {
		ctx.AmortizedUnitVolume = ic
	}
	ctx.Volume = s.Stream(state.StreamDomestic)
	return ctx
}

func isSalesStream(stream string) bool {
	switch stream {
	case state.StreamDomestic, state.StreamImport, state.StreamExport, state.StreamSales:
		return true
	}
	return false
}

// requireEnabled enforces §3's "Enabled-only mutation" invariant.
func requireEnabled(s *state.SubstanceState, stream string) error {
	if !isSalesStream(stream) {
		return nil
	}
	target := stream
	if stream == state.StreamSales {
		// The aggregate stream is permitted whenever at least one concrete
		// sales stream is enabled; concrete-stream checks happen when the
		// aggregate is distributed across domestic/import.
		if s.IsEnabled(state.StreamDomestic) || s.IsEnabled(state.StreamImport) {
			return nil
		}
		target = state.StreamDomestic
	}
	if !s.IsEnabled(target) {
		return &kerr.DisabledStream{Stream: stream, Substance: s.Key.Substance}
	}
	return nil
}

// Enable marks a sales stream as writable for the substance (§4.3 rule 11).
func (e *Engine) Enable(key state.UseKey, stream string) {
	s := e.substance(key)
	s.Enabled[stream] = true
}

// Equals sets a substance's GHG or energy intensity depending on the
// numerator of v's units, per §4.3 rule 11.
func (e *Engine) Equals(key state.UseKey, v unit.Num) error {
	s := e.substance(key)
	numer, _ := unit.Split(v.Units)
	switch numer {
	case "kgCO2e", "tCO2e":
		s.GHGIntensity = v
	case "kwh":
		s.EnergyIntensity = v
	default:
		return &kerr.UnitConversion{From: v.Units, To: "kgCO2e/* or kwh/*", Context: "equals requires a GHG or energy intensity ratio"}
	}
	return nil
}

// InitialCharge sets the mass-per-unit charge for stream, per §4.3 rule 11.
// The grammar-level requirement that v be per-unit is enforced here too,
// defensively, per the invariant in §3.
func (e *Engine) InitialCharge(key state.UseKey, stream string, v unit.Num) error {
	if !unit.IsPerUnit(v.Units) {
		return &kerr.UnitConversion{From: v.Units, To: "mass / unit", Context: "initial charge must be per unit"}
	}
	s := e.substance(key)
	s.InitialCharge[stream] = v
	return nil
}

// Recharge sets the servicing rate for prior equipment, per §4.3 rule 11.
func (e *Engine) Recharge(key state.UseKey, pct decimal.Decimal, volPerUnit unit.Num) error {
	if !unit.IsPerUnit(volPerUnit.Units) {
		return &kerr.UnitConversion{From: volPerUnit.Units, To: "mass / unit", Context: "recharge volume must be per unit"}
	}
	s := e.substance(key)
	s.RechargePopulationPct = pct
	s.RechargeVolumePerUnit = volPerUnit
	return e.recalc(s)
}
