package engine

import (
	"github.com/kigalisim/core/engine/state"
	"github.com/kigalisim/core/kerr"
	"github.com/kigalisim/core/unit"
)

// GetStream reads stream's current value, converting to targetUnits if
// non-empty. It detects cyclic substance references (§9) by marking the
// substance as mid-evaluation for the duration of the call; a re-entrant
// GetStream on the same substance before this one returns is an
// InvariantViolation rather than infinite recursion.
func (e *Engine) GetStream(key state.UseKey, stream, targetUnits string) (unit.Num, error) {
	s := e.substance(key)
	if s.Visiting() {
		return unit.Num{}, &kerr.InvariantViolation{Detail: "cyclic substance reference reading " + stream + " for " + key.Substance}
	}
	s.StartVisit()
	defer s.EndVisit()

	v := s.Stream(stream)
	if targetUnits == "" || unit.Normalize(v.Units) == unit.Normalize(targetUnits) {
		return v, nil
	}
	ctx := buildContext(s, stream)
	return unit.Convert(v, targetUnits, ctx)
}

// Consumption returns the tCO2e-denominated GHG emissions attributable to
// this substance's current sales, combining the mass- and unit-denominated
// branches of the GHG intensity per §4.1.
func (e *Engine) Consumption(key state.UseKey) (unit.Num, error) {
	s := e.substance(key)
	ctx := buildContext(s, state.StreamDomestic)
	dom, err := emissionsFor(s, ctx, state.StreamDomestic)
	if err != nil {
		return unit.Num{}, err
	}
	imp, err := emissionsFor(s, ctx, state.StreamImport)
	if err != nil {
		return unit.Num{}, err
	}
	return unit.Add(dom, imp)
}
