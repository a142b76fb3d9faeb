package qubectalk

import (
	"testing"

	"github.com/kigalisim/core/ops"
)

func TestParseMinimalProgram(t *testing.T) {
	src := `
start default
application "Domestic Refrigeration"
substance "HFC-134a"
enable domestic
set domestic to 1000 kg
end substance
end application
end default

start scenario "business as usual"
years 2025 to 2030
trials 2
end scenario
`
	program, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(program.Policies) != 1 || program.Policies[0].Name != "default" {
		t.Fatalf("got policies %+v", program.Policies)
	}
	apps := program.Policies[0].Applications
	if len(apps) != 1 || apps[0].Name != "Domestic Refrigeration" {
		t.Fatalf("got applications %+v", apps)
	}
	subs := apps[0].Substances
	if len(subs) != 1 || subs[0].Name != "HFC-134a" {
		t.Fatalf("got substances %+v", subs)
	}
	if len(subs[0].Operations) != 2 {
		t.Fatalf("got %d operations, want 2 (enable, set)", len(subs[0].Operations))
	}
	if subs[0].Operations[0].Kind != ops.KindEnable || subs[0].Operations[0].Stream != "domestic" {
		t.Errorf("op 0 = %+v, want KindEnable domestic", subs[0].Operations[0])
	}
	if subs[0].Operations[1].Kind != ops.KindSet || subs[0].Operations[1].Stream != "domestic" {
		t.Errorf("op 1 = %+v, want KindSet domestic", subs[0].Operations[1])
	}
	if got := subs[0].Operations[1].Left.Value; got.Value.String() != "1000" || got.Units != "kg" {
		t.Errorf("set value = %s, want 1000 kg", got)
	}

	if len(program.Scenarios) != 1 {
		t.Fatalf("got scenarios %+v", program.Scenarios)
	}
	sc := program.Scenarios[0]
	if sc.Name != "business as usual" || sc.StartYear != 2025 || sc.EndYear != 2030 || sc.Trials != 2 {
		t.Errorf("got scenario %+v", sc)
	}
}

func TestParseNamedPolicy(t *testing.T) {
	src := `
start policy "Kigali Amendment"
application "Commercial Refrigeration"
substance "HFC-404A"
retire 5 %
end substance
end application
end policy
`
	program, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(program.Policies) != 1 || program.Policies[0].Name != "Kigali Amendment" {
		t.Fatalf("got policies %+v", program.Policies)
	}
	op := program.Policies[0].Applications[0].Substances[0].Operations[0]
	if op.Kind != ops.KindRetire {
		t.Fatalf("got op %+v, want KindRetire", op)
	}
	if op.Left.Value.Value.String() != "5" || op.Left.Value.Units != "%" {
		t.Errorf("retire value = %s, want 5 %%", op.Left.Value)
	}
}

func TestParseInitialChargeAndEquals(t *testing.T) {
	src := `
start default
application "Domestic Refrigeration"
substance "HFC-134a"
initial charge 0.15 kg / unit for domestic
equals 1430 kgCO2e / kg
end substance
end application
end default
`
	program, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	operations := program.Policies[0].Applications[0].Substances[0].Operations
	if len(operations) != 2 {
		t.Fatalf("got %d operations, want 2", len(operations))
	}

	initial := operations[0]
	if initial.Kind != ops.KindInitialCharge || initial.Stream != "domestic" {
		t.Fatalf("op 0 = %+v, want KindInitialCharge domestic", initial)
	}
	if got := initial.Left.Value; got.Value.String() != "0.15" || got.Units != "kg / unit" {
		t.Errorf("initial charge value = %s, want 0.15 kg / unit", got)
	}

	equals := operations[1]
	if equals.Kind != ops.KindEquals {
		t.Fatalf("op 1 = %+v, want KindEquals", equals)
	}
	if got := equals.Left.Value; got.Value.String() != "1430" || got.Units != "kgCO2e / kg" {
		t.Errorf("equals value = %s, want 1430 kgCO2e / kg", got)
	}
}

func TestParseCapDisplacing(t *testing.T) {
	src := `
start default
application "Domestic Refrigeration"
substance "HFC-134a"
cap domestic to 600 kg displacing HFC32
end substance
end application
end default
`
	program, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	op := program.Policies[0].Applications[0].Substances[0].Operations[0]
	if op.Kind != ops.KindCap || op.Stream != "domestic" || op.Dest != "HFC32" {
		t.Fatalf("got %+v, want KindCap domestic displacing HFC32", op)
	}
	if got := op.Left.Value; got.Value.String() != "600" || got.Units != "kg" {
		t.Errorf("cap value = %s, want 600 kg", got)
	}
}

func TestParseUnrecognizedStatementErrors(t *testing.T) {
	src := `
start default
application "Domestic Refrigeration"
substance "HFC-134a"
frobnicate everything
end substance
end application
end default
`
	if _, err := Parse(src); err == nil {
		t.Fatal("expected a parse error for an unrecognized statement")
	}
}

func TestParseUnterminatedBlockErrors(t *testing.T) {
	src := `
start default
application "Domestic Refrigeration"
substance "HFC-134a"
enable domestic
`
	if _, err := Parse(src); err == nil {
		t.Fatal("expected a parse error for an unterminated substance block")
	}
}
