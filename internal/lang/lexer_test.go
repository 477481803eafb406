package lang

import "testing"

func lexAll(t *testing.T, src string) []Token {
	t.Helper()
	lx := NewLexer(src)
	var toks []Token
	for {
		tok, err := lx.Next()
		if err != nil {
			t.Fatalf("unexpected lex error: %v", err)
		}
		if tok.Kind == TokEOF {
			return toks
		}
		toks = append(toks, tok)
	}
}

func TestLexerIdentifiersAndKeywords(t *testing.T) {
	toks := lexAll(t, "free c: channel.")
	want := []struct {
		kind TokKind
		text string
	}{
		{TokKeyword, "free"},
		{TokIdent, "c"},
		{TokPunct, ":"},
		{TokKeyword, "channel"},
		{TokPunct, "."},
	}
	if len(toks) != len(want) {
		t.Fatalf("expected %d tokens, got %d: %+v", len(want), len(toks), toks)
	}
	for i, w := range want {
		if toks[i].Kind != w.kind || toks[i].Text != w.text {
			t.Fatalf("token %d: got {%v %q}, want {%v %q}", i, toks[i].Kind, toks[i].Text, w.kind, w.text)
		}
	}
}

func TestLexerMultiCharPunctuation(t *testing.T) {
	toks := lexAll(t, "x <> y == z [private] ~/> w")
	texts := make([]string, len(toks))
	for i, tok := range toks {
		texts[i] = tok.Text
	}
	want := []string{"x", "<>", "y", "==", "z", "[private]", "~/>", "w"}
	if len(texts) != len(want) {
		t.Fatalf("got %v, want %v", texts, want)
	}
	for i := range want {
		if texts[i] != want[i] {
			t.Fatalf("got %v, want %v", texts, want)
		}
	}
}

func TestLexerStripsNestedComments(t *testing.T) {
	toks := lexAll(t, "a (* outer (* inner *) still outer *) b")
	if len(toks) != 2 || toks[0].Text != "a" || toks[1].Text != "b" {
		t.Fatalf("expected the comment to be stripped entirely, got %+v", toks)
	}
}

func TestLexerUnterminatedCommentIsParseError(t *testing.T) {
	lx := NewLexer("a (* never closed")
	if _, err := lx.Next(); err != nil {
		t.Fatalf("did not expect an error scanning 'a': %v", err)
	}
	_, err := lx.Next()
	if err == nil {
		t.Fatalf("expected an unterminated comment to be reported")
	}
	if _, ok := err.(*ParseError); !ok {
		t.Fatalf("expected a *ParseError, got %T", err)
	}
}

func TestLexerUnexpectedCharacter(t *testing.T) {
	lx := NewLexer("@")
	_, err := lx.Next()
	if err == nil {
		t.Fatalf("expected an error for an unrecognised character")
	}
	pe, ok := err.(*ParseError)
	if !ok {
		t.Fatalf("expected a *ParseError, got %T", err)
	}
	if pe.Pos.Line != 1 || pe.Pos.Col != 1 {
		t.Fatalf("expected the error position to point at the offending character, got %+v", pe.Pos)
	}
}

func TestLexerDigitsAreIdentLikeTokens(t *testing.T) {
	toks := lexAll(t, "42")
	if len(toks) != 1 || toks[0].Kind != TokIdent || toks[0].Text != "42" {
		t.Fatalf("expected a single ident-kind token for a number, got %+v", toks)
	}
}
