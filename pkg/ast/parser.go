package ast

import (
	"fmt"
	"os"

	"furncc/pkg/token"
)

// maxArgs bounds arguments per call and parameters per function; excess is
// undefined per the grammar (the original silently overruns a fixed array).
const maxArgs = 6

// Parser is a hand-written recursive-descent parser over a Token sequence.
// It never aborts on error: diagnostics are printed and parsing continues,
// possibly leaving the AST malformed (spec.md §7).
type Parser struct {
	toks  []token.Token
	pos   int
	Trace bool
}

// NewParser creates a Parser over an already-lexed token sequence.
func NewParser(toks []token.Token) *Parser {
	return &Parser{toks: toks}
}

// Parse consumes the whole token stream and returns the top-level statement
// sequence.
func (p *Parser) Parse() []*Stmt {
	var prog []*Stmt
	for p.pos < len(p.toks) {
		prog = append(prog, p.parseStmt())
	}
	return prog
}

func (p *Parser) peek() token.Token {
	if p.pos >= len(p.toks) {
		return token.EOFToken
	}
	return p.toks[p.pos]
}

// peekAt looks ahead by offset tokens from the current position; beyond the
// end of input it returns the EOF sentinel, mirroring Parser_PeekTok's
// static EofTok.
func (p *Parser) peekAt(offset int) token.Token {
	i := p.pos + offset
	if i >= len(p.toks) {
		return token.EOFToken
	}
	return p.toks[i]
}

func (p *Parser) consume() token.Token {
	tok := p.peek()
	if p.pos < len(p.toks) {
		p.pos++
	}
	return tok
}

// expect consumes the next token, printing a diagnostic (not aborting) if
// its kind doesn't match.
func (p *Parser) expect(kind token.Kind) token.Token {
	tok := p.peek()
	if tok.Kind != kind {
		fmt.Fprintf(os.Stderr, "expected %s, but got %s\n", kind, tok.Kind)
	}
	return p.consume()
}

func (p *Parser) parseType() TypeDesc {
	var desc TypeDesc
	switch p.peek().Kind {
	case token.Void:
		p.consume()
		desc.Base = VoidType
	case token.Int:
		p.consume()
		desc.Base = IntType
	case token.Char:
		p.consume()
		desc.Base = CharType
	default:
		desc.Base = NotAType
	}

	for p.peek().Kind == token.Star {
		p.consume()
		desc.PointerDepth++
	}
	return desc
}

// parseExpr parses a single binary operator, left-associative with no
// further precedence: `primary (('+'|'<') primary)?`.
func (p *Parser) parseExpr() *Expr {
	left := p.parsePrimary()

	switch p.peek().Kind {
	case token.Plus:
		p.consume()
		return &Expr{Kind: BinaryOp, Op: OpAdd, A: left, B: p.parsePrimary()}
	case token.OAngle:
		p.consume()
		return &Expr{Kind: BinaryOp, Op: OpLessThan, A: left, B: p.parsePrimary()}
	}
	return left
}

// parsePrimary parses a secondary, then optionally wraps it in a call or
// assignment.
func (p *Parser) parsePrimary() *Expr {
	expr := p.parseSecondary()

	switch p.peek().Kind {
	case token.OParen:
		p.consume()
		call := &Expr{Kind: Call, Callee: expr}
		for p.peek().Kind != token.CParen {
			if len(call.Args) < maxArgs {
				call.Args = append(call.Args, p.parseExpr())
			} else {
				p.parseExpr()
			}
			if p.peek().Kind != token.CParen {
				p.expect(token.Comma)
			}
		}
		p.consume()
		return call

	case token.Equal:
		p.consume()
		return &Expr{Kind: Assign, Target: expr, Value: p.parseExpr()}
	}

	return expr
}

// parseSecondary parses the atoms and prefix operators of the grammar.
// Returns nil with a diagnostic for an unrecognized primary start.
func (p *Parser) parseSecondary() *Expr {
	tok := p.consume()

	switch tok.Kind {
	case token.OParen:
		e := p.parseExpr()
		p.expect(token.CParen)
		return e

	case token.NumberLit:
		return &Expr{Kind: NumberLit, Number: parseDecimal(tok.Lexeme)}

	case token.CharLit:
		var c byte
		if len(tok.Lexeme) > 0 {
			c = tok.Lexeme[0]
		}
		return &Expr{Kind: CharLit, Char: c}

	case token.StringLit:
		return &Expr{Kind: StringLit, Text: tok.Lexeme}

	case token.Ident:
		return &Expr{Kind: Ident, Text: tok.Lexeme}

	case token.Ampersand:
		return &Expr{Kind: AddressOf, Operand: p.parseSecondary()}

	case token.PlusPlus:
		return &Expr{Kind: Inc, Operand: p.parseSecondary()}

	case token.Star:
		return &Expr{Kind: Deref, Operand: p.parseSecondary()}

	default:
		fmt.Fprintln(os.Stderr, "expected an expression")
		return nil
	}
}

// parseDecimal converts a decimal digit run to int64, matching atoi's
// behavior of stopping silently rather than erroring on an impossible run
// (the lexer guarantees every NumberLit lexeme is all digits).
func parseDecimal(s string) int64 {
	var n int64
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			break
		}
		n = n*10 + int64(c-'0')
	}
	return n
}

// tracef narrates a parsing decision to stderr, matching the density of
// token.Lexer.Tokenize's per-token trace and codegen.Generator.tracef.
func (p *Parser) tracef(format string, args ...any) {
	if p.Trace {
		fmt.Fprintf(os.Stderr, "parse: "+format+"\n", args...)
	}
}

func (p *Parser) parseStmt() *Stmt {
	typ := p.parseType()
	if typ.IsType() {
		if p.peekAt(1).Kind == token.OParen {
			return p.parseFuncStmt(typ)
		}
		return p.parseVarDecl(typ)
	}

	switch p.peek().Kind {
	case token.Return:
		p.tracef("return at token %d", p.pos)
		p.consume()
		stmt := &Stmt{Kind: ReturnStmt}
		if p.peek().Kind == token.Semicolon {
			p.consume()
		} else {
			stmt.Value = p.parseExpr()
			p.expect(token.Semicolon)
		}
		return stmt

	case token.While:
		p.tracef("while at token %d", p.pos)
		p.consume()
		p.expect(token.OParen)
		cond := p.parseExpr()
		p.expect(token.CParen)

		stmt := &Stmt{Kind: WhileStmt, Cond: cond}
		p.expect(token.OBrace)
		for p.peek().Kind != token.CBrace {
			stmt.Body = append(stmt.Body, p.parseStmt())
		}
		p.consume()
		return stmt

	default:
		stmt := &Stmt{Kind: ExprStmt, X: p.parseExpr()}
		p.expect(token.Semicolon)
		return stmt
	}
}

func (p *Parser) parseFuncStmt(returnType TypeDesc) *Stmt {
	name := p.expect(token.Ident).Lexeme
	p.tracef("func %s", name)

	stmt := &Stmt{Kind: FuncStmt, Name: name, ReturnType: returnType}

	p.expect(token.OParen)
	for p.peek().Kind != token.CParen {
		paramType := p.parseType()
		if !paramType.IsType() {
			fmt.Fprintln(os.Stderr, "parameters must have a type")
		}
		paramName := p.expect(token.Ident).Lexeme
		if len(stmt.Params) < maxArgs {
			stmt.Params = append(stmt.Params, Param{Name: paramName, Type: paramType})
		}
		if p.peek().Kind != token.CParen {
			p.expect(token.Comma)
		}
	}
	p.consume()

	p.expect(token.OBrace)
	for p.peek().Kind != token.CBrace {
		stmt.Body = append(stmt.Body, p.parseStmt())
	}
	p.consume()

	return stmt
}

func (p *Parser) parseVarDecl(typ TypeDesc) *Stmt {
	name := p.expect(token.Ident).Lexeme
	p.tracef("var %s", name)

	stmt := &Stmt{Kind: VarDeclStmt, VarName: name, VarType: typ}

	if p.peek().Kind == token.Equal {
		p.consume()
		stmt.Init = p.parseExpr()
	}

	p.expect(token.Semicolon)
	return stmt
}
