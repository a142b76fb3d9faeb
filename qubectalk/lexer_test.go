package qubectalk

import "testing"

func TestLexBasicTokens(t *testing.T) {
	tokens, err := Lex(`enable domestic`)
	if err != nil {
		t.Fatalf("Lex: %v", err)
	}
	want := []string{"enable", "domestic"}
	if len(tokens) != len(want)+1 { // +1 for TokEOF
		t.Fatalf("got %d tokens, want %d", len(tokens), len(want)+1)
	}
	for i, w := range want {
		if tokens[i].Kind != TokIdent || tokens[i].Text != w {
			t.Errorf("token %d = %+v, want ident %q", i, tokens[i], w)
		}
	}
	if tokens[len(tokens)-1].Kind != TokEOF {
		t.Error("last token should be TokEOF")
	}
}

func TestLexSkipsCommentsAndWhitespace(t *testing.T) {
	tokens, err := Lex("enable domestic # a comment\n// another comment\nretire 5 %")
	if err != nil {
		t.Fatalf("Lex: %v", err)
	}
	var idents []string
	for _, tok := range tokens {
		if tok.Kind == TokIdent {
			idents = append(idents, tok.Text)
		}
	}
	want := []string{"enable", "domestic", "retire"}
	if len(idents) != len(want) {
		t.Fatalf("got idents %v, want %v", idents, want)
	}
	for i, w := range want {
		if idents[i] != w {
			t.Errorf("ident %d = %q, want %q", i, idents[i], w)
		}
	}
}

func TestLexStringLiteral(t *testing.T) {
	tokens, err := Lex(`application "Domestic Refrigeration"`)
	if err != nil {
		t.Fatalf("Lex: %v", err)
	}
	if len(tokens) < 2 || tokens[1].Kind != TokString || tokens[1].Text != "Domestic Refrigeration" {
		t.Fatalf("got %+v, want a string token with the unquoted text", tokens)
	}
}

func TestLexUnterminatedStringErrors(t *testing.T) {
	if _, err := Lex(`application "unterminated`); err == nil {
		t.Fatal("expected an error for an unterminated string literal")
	}
}

func TestLexNegativeNumberInUnaryPosition(t *testing.T) {
	// A '-' is only folded into the number when it follows a symbol (or
	// starts the stream); after an identifier it lexes as its own token.
	tokens, err := Lex(`-5 kg`)
	if err != nil {
		t.Fatalf("Lex: %v", err)
	}
	if len(tokens) < 1 || tokens[0].Kind != TokNumber || tokens[0].Text != "-5" {
		t.Fatalf("got %+v, want a single -5 number token first", tokens)
	}
}

func TestLexMinusAfterIdentIsSeparateToken(t *testing.T) {
	tokens, err := Lex(`change domestic by -5 kg`)
	if err != nil {
		t.Fatalf("Lex: %v", err)
	}
	var gotSymbol, gotNumber bool
	for _, tok := range tokens {
		if tok.Kind == TokSymbol && tok.Text == "-" {
			gotSymbol = true
		}
		if tok.Kind == TokNumber && tok.Text == "5" {
			gotNumber = true
		}
	}
	if !gotSymbol || !gotNumber {
		t.Errorf("expected '-' and '5' as separate tokens after an identifier, got %+v", tokens)
	}
}

func TestLexUnexpectedCharacterErrors(t *testing.T) {
	if _, err := Lex("enable domestic @"); err == nil {
		t.Fatal("expected an error for an unrecognized character")
	}
}

func TestParseNumberUKFormat(t *testing.T) {
	got := parseNumber("1,234.5")
	if got != "1234.5" {
		t.Errorf("got %q, want %q", got, "1234.5")
	}
}

func TestParseNumberEuropeanFormat(t *testing.T) {
	got := parseNumber("1.234,5")
	if got != "1234.5" {
		t.Errorf("got %q, want %q", got, "1234.5")
	}
}

func TestParseNumberLoneCommaIsDecimal(t *testing.T) {
	got := parseNumber("0,15")
	if got != "0.15" {
		t.Errorf("got %q, want %q", got, "0.15")
	}
}

func TestParseNumberPlain(t *testing.T) {
	got := parseNumber("42.5")
	if got != "42.5" {
		t.Errorf("got %q, want %q", got, "42.5")
	}
}
