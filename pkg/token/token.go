// Package token defines the lexical tokens produced by the lexer.
package token

// Kind identifies the lexical category of a Token.
type Kind int

const (
	Void Kind = iota
	Int
	Char
	Star
	Ident
	OParen
	CParen
	OBrace
	CBrace
	Comma
	Return
	NumberLit
	StringLit
	CharLit
	Semicolon
	Equal
	While
	Ampersand
	Plus
	PlusPlus
	Slash
	OAngle
	CAngle

	// EOF is the sentinel kind returned once the token stream is exhausted.
	// It compares equal to no real Kind (its value is negative) so peeking
	// past the end of input stays well-defined without a separate ok bool.
	EOF Kind = -1
)

var kindNames = map[Kind]string{
	Void:      "void",
	Int:       "int",
	Char:      "char",
	Star:      "star",
	Ident:     "ident",
	OParen:    "(",
	CParen:    ")",
	OBrace:    "{",
	CBrace:    "}",
	Comma:     ",",
	Return:    "return",
	NumberLit: "numberlit",
	StringLit: "stringlit",
	CharLit:   "charlit",
	Semicolon: ";",
	Equal:     "=",
	While:     "while",
	Ampersand: "&",
	Plus:      "+",
	PlusPlus:  "++",
	Slash:     "/",
	OAngle:    "<",
	CAngle:    ">",
	EOF:       "eof",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// keywords maps identifier spellings to their retagged keyword Kind.
var keywords = map[string]Kind{
	"return": Return,
	"while":  While,
	"void":   Void,
	"int":    Int,
	"char":   Char,
}

// LookupIdent returns Ident, or the keyword Kind if name is a reserved word.
func LookupIdent(name string) Kind {
	if kind, ok := keywords[name]; ok {
		return kind
	}
	return Ident
}

// Token is a single lexical element. Lexeme is populated for identifiers
// and literals; keyword tokens are distinguished by Kind, not by Lexeme.
type Token struct {
	Kind   Kind
	Lexeme string
}

// EOFToken is the sentinel returned by Peek once the stream is exhausted.
var EOFToken = Token{Kind: EOF}
