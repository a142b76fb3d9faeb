// Package state implements the per-run state store: the per-(application,
// substance) stream values, last-specified user intents, and the
// auxiliary bookkeeping (distributions, retirement bases, recovery specs)
// that the recalculation engine reads and writes. A Store belongs to
// exactly one (scenario, trial) run; it is never shared across goroutines.
package state

import (
	"github.com/kigalisim/core/unit"
	"github.com/shopspring/decimal"
)

// UseKey identifies a single (application, substance) scope, per §3.
type UseKey struct {
	Application string
	Substance   string
}

// Canonical stream names, per §3's stream table.
const (
	StreamDomestic          = "domestic"
	StreamImport            = "import"
	StreamExport            = "export"
	StreamSales             = "sales"
	StreamRecycle           = "recycle"
	StreamRecycleRecharge   = "recycleRecharge"
	StreamEquipment         = "equipment"
	StreamPriorEquipment    = "priorEquipment"
	StreamNewEquipment      = "newEquipment"
	StreamRechargeEmissions = "rechargeEmissions"
	StreamEOLEmissions      = "eolEmissions"
	StreamConsumption       = "consumption"
)

// RecoveryStage identifies which supply stage a Recover operation draws from.
type RecoveryStage int

const (
	StageEOL RecoveryStage = iota
	StageRecharge
)

// RecoverySpec is one `recover` command's parameters, per §4.3 rule 7.
type RecoverySpec struct {
	Volume    unit.Num
	Yield     decimal.Decimal // reuse yield, 0..1
	Stage     RecoveryStage
	Induction decimal.Decimal // 0..1, default 0
}

// Distribution is the frozen (pctDomestic, pctImport, pctExport) split
// captured the first time sales are set in a year, per §4.3 rule 2.
type Distribution struct {
	Domestic decimal.Decimal
	Import   decimal.Decimal
	Export   decimal.Decimal
	Captured bool
}

// SubstanceState holds every piece of per-(application, substance) state
// described in §3's "Per-substance auxiliary state".
type SubstanceState struct {
	Key UseKey

	Streams map[string]unit.Num
	Enabled map[string]bool

	GHGIntensity    unit.Num
	EnergyIntensity unit.Num

	InitialCharge map[string]unit.Num

	RechargePopulationPct decimal.Decimal
	RechargeVolumePerUnit unit.Num

	RetirementPctCumulative decimal.Decimal

	RecoverySpecs []RecoverySpec

	Displacement map[string]string

	LastSpecified map[string]unit.Num

	Distribution Distribution

	// CumulativeRetireBase is the equipment snapshot taken the first time a
	// retire runs in the year; RetireApplied is how much of that base has
	// already been removed from equipment this year.
	CumulativeRetireBase unit.Num
	RetireApplied        unit.Num
	RetiredThisYear      bool

	// SalesSetInMass marks that a mass-typed sales write this year
	// took the user-supplied mass as final (§4.3 rule 3).
	SalesSetInMass bool

	// visiting marks this substance as mid-evaluation for GetStream cycle
	// detection (§9 "Cyclic substance references").
	visiting bool
}

// NewSubstanceState returns a zero-valued, ready-to-use state for key.
func NewSubstanceState(key UseKey) *SubstanceState {
	return &SubstanceState{
		Key:           key,
		Streams:       make(map[string]unit.Num),
		Enabled:       make(map[string]bool),
		InitialCharge: make(map[string]unit.Num),
		Displacement:  make(map[string]string),
		LastSpecified: make(map[string]unit.Num),
	}
}

// Visiting reports (and, via StartVisit/EndVisit, tracks) whether this
// substance is currently being evaluated by a GetStream chain, to detect
// cycles across substances in the same application (§9).
func (s *SubstanceState) Visiting() bool { return s.visiting }

// StartVisit marks the substance as mid-evaluation.
func (s *SubstanceState) StartVisit() { s.visiting = true }

// EndVisit clears the mid-evaluation marker.
func (s *SubstanceState) EndVisit() { s.visiting = false }

// Stream returns the current value of name, defaulting to a dimensionless
// zero if never set.
func (s *SubstanceState) Stream(name string) unit.Num {
	if v, ok := s.Streams[name]; ok {
		return v
	}
	return unit.Zero("")
}

// SetStream records a stream's value directly, with no side effects. The
// recalculation engine is responsible for invariant-preserving writes;
// this is the low-level primitive it builds on.
func (s *SubstanceState) SetStream(name string, v unit.Num) {
	s.Streams[name] = v
}

// IsEnabled reports whether stream is among the substance's enabled sales
// streams (domestic/import/export).
func (s *SubstanceState) IsEnabled(stream string) bool {
	return s.Enabled[stream]
}

// Store holds every SubstanceState for a single (scenario, trial) run.
type Store struct {
	substances map[UseKey]*SubstanceState
	// order preserves first-seen (application, substance) insertion order
	// so that year-end serialization is deterministic.
	order []UseKey
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{substances: make(map[UseKey]*SubstanceState)}
}

// GetOrCreate returns the SubstanceState for key, creating it if absent.
func (st *Store) GetOrCreate(key UseKey) *SubstanceState {
	s, ok := st.substances[key]
	if !ok {
		s = NewSubstanceState(key)
		st.substances[key] = s
		st.order = append(st.order, key)
	}
	return s
}

// Get returns the SubstanceState for key, or nil if it doesn't exist.
func (st *Store) Get(key UseKey) (*SubstanceState, bool) {
	s, ok := st.substances[key]
	return s, ok
}

// Keys returns every UseKey in first-seen order.
func (st *Store) Keys() []UseKey {
	out := make([]UseKey, len(st.order))
	copy(out, st.order)
	return out
}

// AdvanceYear rotates equipment into priorEquipment, zeroes flow streams,
// and clears per-year caches, per §3's Lifecycles note. lastSpecified is
// retained across years.
func (st *Store) AdvanceYear() {
	for _, key := range st.order {
		s := st.substances[key]

		s.SetStream(StreamPriorEquipment, s.Stream(StreamEquipment))

		for _, flow := range []string{
			StreamDomestic, StreamImport, StreamExport, StreamSales,
			StreamRecycle, StreamRecycleRecharge, StreamNewEquipment,
			StreamRechargeEmissions, StreamEOLEmissions,
		} {
			s.SetStream(flow, unit.Zero(s.Stream(flow).Units))
		}

		s.Distribution = Distribution{}
		s.CumulativeRetireBase = unit.Num{}
		s.RetireApplied = unit.Num{}
		s.RetirementPctCumulative = decimal.Zero
		s.RetiredThisYear = false
		s.SalesSetInMass = false
	}
}
