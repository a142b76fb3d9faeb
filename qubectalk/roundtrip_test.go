package qubectalk

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/kigalisim/core/ops"
)

// TestRoundTrip is universal property 7: re-serializing a normalized
// operation and re-parsing it yields an identical operation tree.
func TestRoundTrip(t *testing.T) {
	cases := []string{
		"enable domestic",
		"set domestic to 1000 kg",
		"initial charge 0.15 kg / unit for domestic",
		"equals 1430 kgCO2e / kg",
		"retire 5 %",
		"change domestic by -5 kg",
		"cap domestic to 600 kg displacing HFC32",
		"floor domestic to 100 kg",
		"recharge 10 % 0.5 kg / unit",
		"recover 100 kg with 50 % reuse eol",
		"recover 100 kg with 50 % reuse eol with 25 % induction",
		`replace 10 kg of domestic with "HFC-32"`,
	}

	for _, line := range cases {
		t.Run(line, func(t *testing.T) {
			original, err := parseOneStatement(line)
			if err != nil {
				t.Fatalf("parse original: %v", err)
			}

			text, err := Serialize(original)
			if err != nil {
				t.Fatalf("Serialize: %v", err)
			}

			reparsed, err := parseOneStatement(text)
			if err != nil {
				t.Fatalf("parse serialized form %q: %v", text, err)
			}

			if !reflect.DeepEqual(original, reparsed) {
				t.Errorf("round trip mismatch:\n original: %+v\n serialized: %q\n reparsed: %+v", original, text, reparsed)
			}
		})
	}
}

func parseOneStatement(line string) (ops.Operation, error) {
	src := fmt.Sprintf(`
start default
application "Domestic Refrigeration"
substance "HFC-134a"
%s
end substance
end application
end default
`, line)
	program, err := Parse(src)
	if err != nil {
		return ops.Operation{}, err
	}
	parsed := program.Policies[0].Applications[0].Substances[0].Operations
	if len(parsed) != 1 {
		return ops.Operation{}, fmt.Errorf("got %d operations, want 1", len(parsed))
	}
	return parsed[0], nil
}
