package token

import "testing"

func kinds(toks []Token) []Kind {
	out := make([]Kind, len(toks))
	for i, t := range toks {
		out[i] = t.Kind
	}
	return out
}

func assertKinds(t *testing.T, source string, want []Kind) {
	t.Helper()
	got := kinds(NewLexer(source).Tokenize())
	if len(got) != len(want) {
		t.Fatalf("Tokenize(%q) = %v, want %v", source, got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Tokenize(%q)[%d] = %s, want %s", source, i, got[i], want[i])
		}
	}
}

func TestTokenizeFunctionSignature(t *testing.T) {
	assertKinds(t, "int main(void) {", []Kind{
		Int, Ident, OParen, Void, CParen, OBrace,
	})
}

func TestTokenizeKeywordsVsIdentifiers(t *testing.T) {
	assertKinds(t, "while return int", []Kind{While, Return, Int})
	assertKinds(t, "whilex returned integer", []Kind{Ident, Ident, Ident})
}

func TestTokenizeNumberLiteral(t *testing.T) {
	toks := NewLexer("42").Tokenize()
	if len(toks) != 1 || toks[0].Kind != NumberLit || toks[0].Lexeme != "42" {
		t.Fatalf("got %+v", toks)
	}
}

func TestTokenizeStringAndCharLiterals(t *testing.T) {
	toks := NewLexer(`"hi" 'x'`).Tokenize()
	if len(toks) != 2 {
		t.Fatalf("got %d tokens, want 2: %+v", len(toks), toks)
	}
	if toks[0].Kind != StringLit || toks[0].Lexeme != "hi" {
		t.Errorf("string literal = %+v", toks[0])
	}
	if toks[1].Kind != CharLit || toks[1].Lexeme != "x" {
		t.Errorf("char literal = %+v", toks[1])
	}
}

func TestTokenizeEscapeSequence(t *testing.T) {
	toks := NewLexer(`"a\nb"`).Tokenize()
	if len(toks) != 1 || toks[0].Lexeme != "a\nb" {
		t.Fatalf("got %+v", toks)
	}
}

func TestTokenizePlusVsPlusPlus(t *testing.T) {
	assertKinds(t, "+", []Kind{Plus})
	assertKinds(t, "++", []Kind{PlusPlus})
	assertKinds(t, "+++", []Kind{PlusPlus, Plus})
}

func TestTokenizeSkipsLineComments(t *testing.T) {
	assertKinds(t, "int x; // int y;\nint z;", []Kind{
		Int, Ident, Semicolon, Int, Ident, Semicolon,
	})
}

func TestTokenizeWhitespaceInsensitive(t *testing.T) {
	a := kinds(NewLexer("int  x ;").Tokenize())
	b := kinds(NewLexer("int\nx\t;").Tokenize())
	if len(a) != len(b) {
		t.Fatalf("kind sequences differ in length: %v vs %v", a, b)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("kind[%d]: %s vs %s", i, a[i], b[i])
		}
	}
}

func TestTokenizeUnrecognizedByteIsSkippedNotFatal(t *testing.T) {
	assertKinds(t, "int x @ ;", []Kind{Int, Ident, Semicolon})
}
