package engine

import (
	"github.com/kigalisim/core/engine/state"
	"github.com/kigalisim/core/unit"
)

// resolveLimit turns a cap/floor/change operand into an absolute Num in the
// stream's current units, resolving "%" against base per the caller's
// choice of base (lastSpecified for cap/floor, current value for change).
func resolveLimit(stream unit.Num, operand unit.Num, base unit.Num) unit.Num {
	if unit.IsPercent(operand.Units) {
		return unit.Mul(operand, base)
	}
	return operand
}

// Cap implements the cap half of §4.3 rule 8: reduces stream to
// min(current, limit), optionally displacing the removed delta onto
// destKey's same stream.
func (e *Engine) Cap(key state.UseKey, stream string, operand unit.Num, destKey *state.UseKey) error {
	s := e.substance(key)
	base := s.LastSpecified[stream]
	limit := resolveLimit(s.Stream(stream), operand, base)

	current := s.Stream(stream)
	capped := unit.Min(current, limit)
	delta, err := unit.Sub(current, capped)
	if err != nil {
		return err
	}
	s.SetStream(stream, capped)

	if err := e.recalc(s); err != nil {
		return err
	}

	if destKey != nil && !delta.IsZero() {
		return e.displaceTo(*destKey, stream, delta)
	}
	return nil
}

// Floor implements the floor half of §4.3 rule 8: raises stream to
// max(current, limit), optionally displacing the added delta from
// destKey's same stream.
func (e *Engine) Floor(key state.UseKey, stream string, operand unit.Num, destKey *state.UseKey) error {
	s := e.substance(key)
	base := s.LastSpecified[stream]
	limit := resolveLimit(s.Stream(stream), operand, base)

	current := s.Stream(stream)
	floored := unit.Max(current, limit)
	delta, err := unit.Sub(floored, current)
	if err != nil {
		return err
	}
	s.SetStream(stream, floored)

	if err := e.recalc(s); err != nil {
		return err
	}

	if destKey != nil && !delta.IsZero() {
		return e.displaceTo(*destKey, stream, unit.NewFromDecimal(delta.Value.Neg(), delta.Units))
	}
	return nil
}

// displaceTo applies a signed delta to destKey's stream (positive grows it,
// negative shrinks it), then recalculates the destination substance.
func (e *Engine) displaceTo(destKey state.UseKey, stream string, delta unit.Num) error {
	dest := e.substance(destKey)
	current := dest.Stream(stream)
	next, err := unit.Add(current, delta)
	if err != nil {
		return err
	}
	dest.SetStream(stream, unit.ClampNonNegative(next))
	return e.recalc(dest)
}

// Change implements §4.3 rule 9: adds operand to stream, resolving a
// percentage operand against the stream's *current* value rather than
// lastSpecified. Unlike Cap/Floor, Change is explicitly signed: a negative
// resolved delta is allowed and is not clamped away before being added,
// per the clamping policy's carve-out for change.
func (e *Engine) Change(key state.UseKey, stream string, operand unit.Num) error {
	s := e.substance(key)
	current := s.Stream(stream)
	delta := resolveLimit(current, operand, current)

	next, err := unit.Add(current, delta)
	if err != nil {
		return err
	}
	s.SetStream(stream, unit.ClampNonNegative(next))
	return e.recalc(s)
}

// Replace implements §4.3 rule 10: moves mass volume from key's stream to
// destKey's same stream.
func (e *Engine) Replace(key state.UseKey, stream string, volume unit.Num, destKey state.UseKey) error {
	s := e.substance(key)
	ctx := buildContext(s, stream)
	volConverted, err := unit.Convert(volume, unit.Normalize(s.Stream(stream).Units), ctx)
	if err != nil {
		volConverted = volume
	}

	current := s.Stream(stream)
	next, err := unit.Sub(current, volConverted)
	if err != nil {
		return err
	}
	s.SetStream(stream, unit.ClampNonNegative(next))
	if err := e.recalc(s); err != nil {
		return err
	}

	return e.displaceTo(destKey, stream, volConverted)
}
