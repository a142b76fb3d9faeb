package qubectalk

import (
	"strconv"
	"strings"

	"github.com/kigalisim/core/engine/state"
	"github.com/kigalisim/core/kerr"
	"github.com/kigalisim/core/ops"
	"github.com/kigalisim/core/sim"
	"github.com/kigalisim/core/unit"
	"github.com/shopspring/decimal"
)

// statement is every token lexed from one source line; QubecTalk is
// one-statement-per-line, so grouping by Token.Line gives the parser its
// natural unit of work with no separate lowering pass.
type statement []Token

// Parse lexes and parses src into a sim.Program, per §6's ParsedProgram
// contract.
func Parse(src string) (sim.Program, error) {
	tokens, err := Lex(src)
	if err != nil {
		return sim.Program{}, err
	}
	stmts := groupByLine(tokens)

	p := &parser{stmts: stmts}
	return p.parseProgram()
}

func groupByLine(tokens []Token) []statement {
	var out []statement
	var cur statement
	line := -1
	for _, t := range tokens {
		if t.Kind == TokEOF {
			break
		}
		if t.Line != line {
			if len(cur) > 0 {
				out = append(out, cur)
			}
			cur = nil
			line = t.Line
		}
		cur = append(cur, t)
	}
	if len(cur) > 0 {
		out = append(out, cur)
	}
	return out
}

type parser struct {
	stmts []statement
	pos   int
}

func (p *parser) done() bool { return p.pos >= len(p.stmts) }

func (p *parser) peek() statement {
	if p.done() {
		return nil
	}
	return p.stmts[p.pos]
}

func (p *parser) next() statement {
	s := p.peek()
	p.pos++
	return s
}

func word(s statement, i int) string {
	if i < 0 || i >= len(s) {
		return ""
	}
	return s[i].Text
}

func (p *parser) parseProgram() (sim.Program, error) {
	var program sim.Program
	for !p.done() {
		s := p.peek()
		if len(s) >= 2 && word(s, 0) == "start" && word(s, 1) == "default" {
			p.next()
			app, err := p.parsePolicyBody()
			if err != nil {
				return program, err
			}
			program.Policies = append(program.Policies, sim.Policy{Name: "default", Applications: app})
			continue
		}
		if len(s) >= 3 && word(s, 0) == "start" && word(s, 1) == "policy" {
			name := unquote(word(s, 2))
			p.next()
			app, err := p.parsePolicyBody()
			if err != nil {
				return program, err
			}
			program.Policies = append(program.Policies, sim.Policy{Name: name, Applications: app})
			continue
		}
		if len(s) >= 3 && word(s, 0) == "start" && word(s, 1) == "scenario" {
			name := unquote(word(s, 2))
			p.next()
			sc, err := p.parseScenarioBody(name)
			if err != nil {
				return program, err
			}
			program.Scenarios = append(program.Scenarios, sc)
			continue
		}
		return program, &kerr.ParseError{Location: lineLoc(s[0].Line - 1), Message: "expected a start block"}
	}
	return program, nil
}

// parsePolicyBody parses the application/substance blocks shared by
// `start default ... end default` and `start policy "X" ... end policy`.
func (p *parser) parsePolicyBody() ([]sim.Application, error) {
	var apps []sim.Application
	for !p.done() {
		s := p.peek()
		if len(s) >= 2 && word(s, 0) == "end" && (word(s, 1) == "default" || word(s, 1) == "policy") {
			p.next()
			return apps, nil
		}
		if len(s) >= 2 && word(s, 0) == "application" {
			name := unquote(word(s, 1))
			p.next()
			subs, err := p.parseApplicationBody()
			if err != nil {
				return nil, err
			}
			apps = append(apps, sim.Application{Name: name, Substances: subs})
			continue
		}
		return nil, &kerr.ParseError{Location: lineLoc(s[0].Line - 1), Message: "expected 'application' or 'end'"}
	}
	return apps, &kerr.ParseError{Location: "eof", Message: "unterminated policy block"}
}

func (p *parser) parseApplicationBody() ([]sim.Substance, error) {
	var subs []sim.Substance
	for !p.done() {
		s := p.peek()
		if len(s) >= 2 && word(s, 0) == "end" && word(s, 1) == "application" {
			p.next()
			return subs, nil
		}
		if len(s) >= 2 && word(s, 0) == "substance" {
			name := unquote(word(s, 1))
			p.next()
			operations, err := p.parseSubstanceBody()
			if err != nil {
				return nil, err
			}
			subs = append(subs, sim.Substance{Name: name, Operations: operations})
			continue
		}
		return nil, &kerr.ParseError{Location: lineLoc(s[0].Line - 1), Message: "expected 'substance' or 'end'"}
	}
	return subs, &kerr.ParseError{Location: "eof", Message: "unterminated application block"}
}

func (p *parser) parseSubstanceBody() ([]ops.Operation, error) {
	var out []ops.Operation
	for !p.done() {
		s := p.peek()
		if len(s) >= 2 && word(s, 0) == "end" && word(s, 1) == "substance" {
			p.next()
			return out, nil
		}
		op, err := parseStatement(s)
		if err != nil {
			return nil, err
		}
		p.next()
		out = append(out, op)
	}
	return out, &kerr.ParseError{Location: "eof", Message: "unterminated substance block"}
}

func (p *parser) parseScenarioBody(name string) (sim.Scenario, error) {
	sc := sim.Scenario{Name: name, Trials: 1}
	for !p.done() {
		s := p.peek()
		if len(s) >= 2 && word(s, 0) == "end" && word(s, 1) == "scenario" {
			p.next()
			return sc, nil
		}
		switch word(s, 0) {
		case "years":
			start, _ := strconv.Atoi(word(s, 1))
			end, _ := strconv.Atoi(word(s, 3))
			sc.StartYear, sc.EndYear = start, end
		case "trials":
			n, _ := strconv.Atoi(word(s, 1))
			sc.Trials = n
		case "policies":
			for i := 1; i < len(s); i++ {
				if s[i].Kind == TokString {
					sc.Policies = append(sc.Policies, s[i].Text)
				}
			}
		default:
			return sc, &kerr.ParseError{Location: lineLoc(s[0].Line - 1), Message: "unexpected scenario statement"}
		}
		p.next()
	}
	return sc, &kerr.ParseError{Location: "eof", Message: "unterminated scenario block"}
}

func unquote(s string) string { return s }

// parseStatement dispatches a single substance-body line into one
// ops.Operation, per §4.5's surface grammar.
func parseStatement(s statement) (ops.Operation, error) {
	switch word(s, 0) {
	case "initial":
		// initial charge NUM UNIT... for STREAM
		v, rest := parseNumUnit(s, 2)
		stream := lastWord(s, rest)
		return ops.Operation{Kind: ops.KindInitialCharge, Stream: stream, Left: &ops.Operation{Kind: ops.KindPreCalculated, Value: v}}, nil

	case "enable":
		return ops.Operation{Kind: ops.KindEnable, Stream: word(s, 1)}, nil

	case "set":
		stream := word(s, 1)
		v, _ := parseNumUnit(s, 3)
		return ops.Operation{Kind: ops.KindSet, Stream: stream, Left: &ops.Operation{Kind: ops.KindPreCalculated, Value: v}}, nil

	case "recharge":
		pctNum, rest := parseNumUnit(s, 1)
		volNum, _ := parseNumUnit(s, rest+1)
		return ops.Operation{
			Kind:  ops.KindRecharge,
			Left:  &ops.Operation{Kind: ops.KindPreCalculated, Value: volNum},
			Right: &ops.Operation{Kind: ops.KindPreCalculated, Value: pctNum},
		}, nil

	case "retire":
		v, _ := parseNumUnit(s, 1)
		return ops.Operation{Kind: ops.KindRetire, Left: &ops.Operation{Kind: ops.KindPreCalculated, Value: v}}, nil

	case "equals":
		v, _ := parseNumUnit(s, 1)
		return ops.Operation{Kind: ops.KindEquals, Left: &ops.Operation{Kind: ops.KindPreCalculated, Value: v}}, nil

	case "recover":
		// recover NUM % with NUM % reuse [at] STAGE [with NUM % induction]
		volNum, rest := parseNumUnit(s, 1)
		yieldNum, rest2 := parseNumUnit(s, rest+2) // skip "with"
		stage := state.StageEOL
		idx := rest2 + 2 // skip "reuse"
		if word(s, idx) == "at" {
			idx++
		}
		if word(s, idx) == "recharge" {
			stage = state.StageRecharge
		}
		induction := decimal.Zero
		for i := idx; i < len(s); i++ {
			if word(s, i) == "induction" && i >= 2 {
				ind, _ := parseNumUnit(s, i-2)
				induction = ind.Value.Div(decimal.NewFromInt(100))
			}
		}
		return ops.Operation{
			Kind:      ops.KindRecover,
			Left:      &ops.Operation{Kind: ops.KindPreCalculated, Value: volNum},
			Yield:     yieldNum.Value.Div(decimal.NewFromInt(100)),
			Stage:     stage,
			Induction: induction,
		}, nil

	case "change":
		stream := word(s, 1)
		v, _ := parseNumUnit(s, 3)
		return ops.Operation{Kind: ops.KindChange, Stream: stream, Left: &ops.Operation{Kind: ops.KindPreCalculated, Value: v}}, nil

	case "cap":
		stream := word(s, 1)
		v, rest := parseNumUnit(s, 3)
		dest := ""
		if word(s, rest+1) == "displacing" {
			dest = word(s, rest+2)
		}
		return ops.Operation{Kind: ops.KindCap, Stream: stream, Dest: dest, Left: &ops.Operation{Kind: ops.KindPreCalculated, Value: v}}, nil

	case "floor":
		stream := word(s, 1)
		v, rest := parseNumUnit(s, 3)
		dest := ""
		if word(s, rest+1) == "displacing" {
			dest = word(s, rest+2)
		}
		return ops.Operation{Kind: ops.KindFloor, Stream: stream, Dest: dest, Left: &ops.Operation{Kind: ops.KindPreCalculated, Value: v}}, nil

	case "replace":
		v, rest := parseNumUnit(s, 1)
		stream := word(s, rest+2) // skip "of"
		dest := ""
		for i := rest; i < len(s); i++ {
			if s[i].Kind == TokString {
				dest = s[i].Text
			}
		}
		return ops.Operation{Kind: ops.KindReplace, Stream: stream, Dest: dest, Left: &ops.Operation{Kind: ops.KindPreCalculated, Value: v}}, nil
	}
	return ops.Operation{}, &kerr.ParseError{Location: lineLoc(s[0].Line - 1), Message: "unrecognized statement: " + word(s, 0)}
}

// parseNumUnit reads a NUMBER token at index i followed by zero or more
// unit-word tokens, stopping at the first token that can't plausibly be
// part of a unit string (a string literal, or a recognized keyword).
// It returns the parsed Num and the index of the last token consumed.
func parseNumUnit(s statement, i int) (unit.Num, int) {
	neg := false
	if i+1 < len(s) && s[i].Kind == TokSymbol && s[i].Text == "-" && s[i+1].Kind == TokNumber {
		neg = true
		i++
	}
	if i >= len(s) || s[i].Kind != TokNumber {
		return unit.Zero(""), i - 1
	}
	val, _ := strconv.ParseFloat(parseNumber(s[i].Text), 64)
	if neg {
		val = -val
	}

	var unitWords []string
	j := i + 1
	for j < len(s) && isUnitToken(s[j]) {
		unitWords = append(unitWords, s[j].Text)
		j++
	}
	return unit.NewFromDecimal(decimal.NewFromFloat(val), strings.Join(unitWords, " ")), j - 1
}

var stopWords = map[string]bool{
	"for": true, "with": true, "each": true, "displacing": true, "of": true,
	"to": true, "during": true, "at": true, "reuse": true, "induction": true,
	"from": true, "onwards": true,
}

func isUnitToken(t Token) bool {
	if t.Kind == TokSymbol && t.Text != "%" {
		return t.Text == "/"
	}
	if t.Kind == TokSymbol && t.Text == "%" {
		return true
	}
	if t.Kind != TokIdent {
		return false
	}
	return !stopWords[t.Text]
}

func lastWord(s statement, afterIdx int) string {
	for i := afterIdx + 1; i < len(s); i++ {
		if word(s, i) == "for" {
			return word(s, i+1)
		}
	}
	return ""
}
