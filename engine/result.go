package engine

import (
	"github.com/google/uuid"
	"github.com/kigalisim/core/engine/state"
	"github.com/kigalisim/core/unit"
)

// TradeSupplement carries the import/export-side detail referenced by
// §6's EngineResult.
type TradeSupplement struct {
	ImportValue       unit.Num
	ImportConsumption unit.Num
	ImportPopulation  unit.Num
	ExportValue       unit.Num
	ExportConsumption unit.Num
}

// Result is one application x substance x year x scenario x trial snapshot,
// per §6's EngineResult.
type Result struct {
	RunID        uuid.UUID
	ScenarioName string
	TrialNumber  int
	Year         int
	Application  string
	Substance    string

	Domestic unit.Num
	Import   unit.Num
	Export   unit.Num
	Recycle  unit.Num

	Population    unit.Num
	PopulationNew unit.Num

	EnergyConsumption unit.Num

	DomesticConsumption unit.Num
	ImportConsumption   unit.Num
	ExportConsumption   unit.Num
	RecycleConsumption  unit.Num

	RechargeEmissions     unit.Num
	EOLEmissions          unit.Num
	InitialChargeEmissions unit.Num
	Consumption           unit.Num

	TradeSupplement TradeSupplement
}

// Snapshot serializes the current year's state for key into a Result,
// rounding every field to unit.DefaultDisplayScale decimal places.
// Internal arithmetic elsewhere is never rounded; this is the one place
// display precision is applied.
func (e *Engine) Snapshot(runID uuid.UUID, scenarioName string, trialNumber int, key state.UseKey) (Result, error) {
	s := e.substance(key)
	ctx := buildContext(s, state.StreamDomestic)

	round := func(n unit.Num) unit.Num { return unit.Round(n, unit.DefaultDisplayScale) }

	domConsumption, err := emissionsFor(s, ctx, state.StreamDomestic)
	if err != nil {
		return Result{}, err
	}
	impConsumption, err := emissionsFor(s, ctx, state.StreamImport)
	if err != nil {
		return Result{}, err
	}
	expConsumption, err := emissionsFor(s, ctx, state.StreamExport)
	if err != nil {
		return Result{}, err
	}
	recycleConsumption, err := emissionsFor(s, ctx, state.StreamRecycle)
	if err != nil {
		return Result{}, err
	}

	totalConsumption, err := unit.Add(domConsumption, impConsumption)
	if err != nil {
		return Result{}, err
	}

	energy, err := unit.Convert(s.Stream(state.StreamNewEquipment), "kwh", ctx)
	if err != nil {
		energy = unit.Zero("kwh")
	}

	initialChargeMass := unit.Mul(s.Stream(state.StreamNewEquipment), weightedInitialCharge(s))
	initialChargeEmissions, err := unit.Convert(initialChargeMass, "tCO2e", ctx)
	if err != nil {
		initialChargeEmissions = unit.Zero("tCO2e")
	}

	rechargeEmissionsTco2e, err := unit.Convert(s.Stream(state.StreamRechargeEmissions), "tCO2e", ctx)
	if err != nil {
		rechargeEmissionsTco2e = unit.Zero("tCO2e")
	}
	eolEmissionsTco2e, err := unit.Convert(s.Stream(state.StreamEOLEmissions), "tCO2e", ctx)
	if err != nil {
		eolEmissionsTco2e = unit.Zero("tCO2e")
	}

	importUnits, err := unit.Convert(s.Stream(state.StreamImport), "units", ctx)
	if err != nil {
		importUnits = unit.Zero("units")
	}

	return Result{
		RunID:        runID,
		ScenarioName: scenarioName,
		TrialNumber:  trialNumber,
		Year:         e.year,
		Application:  key.Application,
		Substance:    key.Substance,

		Domestic: round(s.Stream(state.StreamDomestic)),
		Import:   round(s.Stream(state.StreamImport)),
		Export:   round(s.Stream(state.StreamExport)),
		Recycle:  round(s.Stream(state.StreamRecycle)),

		Population:    round(s.Stream(state.StreamEquipment)),
		PopulationNew: round(s.Stream(state.StreamNewEquipment)),

		EnergyConsumption: round(energy),

		DomesticConsumption: round(domConsumption),
		ImportConsumption:   round(impConsumption),
		ExportConsumption:   round(expConsumption),
		RecycleConsumption:  round(recycleConsumption),

		RechargeEmissions:      round(rechargeEmissionsTco2e),
		EOLEmissions:           round(eolEmissionsTco2e),
		InitialChargeEmissions: round(initialChargeEmissions),
		Consumption:            round(totalConsumption),

		TradeSupplement: TradeSupplement{
			ImportValue:       round(s.Stream(state.StreamImport)),
			ImportConsumption: round(impConsumption),
			ImportPopulation:  round(importUnits),
			ExportValue:       round(s.Stream(state.StreamExport)),
			ExportConsumption: round(expConsumption),
		},
	}, nil
}

// emissionsFor converts a mass stream to tCO2e, choosing the mass- or
// unit-denominated GHG intensity branch per §4.1's "per-unit emissions
// factor" note: a per-unit intensity is applied against the stream's
// equivalent unit count, not its mass.
func emissionsFor(s *state.SubstanceState, ctx unit.Context, stream string) (unit.Num, error) {
	v := s.Stream(stream)
	if s.GHGIntensity.Units == "" {
		return unit.Zero("tCO2e"), nil
	}
	_, denom := unit.Split(s.GHGIntensity.Units)
	if denom == "unit" || denom == "units" {
		asUnits, err := unit.Convert(v, "units", ctx)
		if err != nil {
			return unit.Zero("tCO2e"), nil
		}
		return unit.Convert(asUnits, "tCO2e", ctx)
	}
	return unit.Convert(v, "tCO2e", ctx)
}
