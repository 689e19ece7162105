// Package codegen walks a parsed statement list and emits a bytecode image:
// the symbol table, the single-pass generator, and the built-in library
// prelude (spec.md §4.5–§4.7).
package codegen

import (
	"fmt"
	"os"

	"furncc/pkg/ast"
	"furncc/pkg/bytecode"
)

// Generator performs single-pass code generation over a parsed program. It
// never aborts on error: errorf sets the flag HasErrors reports and generation continues, so
// later problems are still surfaced in one run (spec.md §7).
type Generator struct {
	img  *bytecode.Image
	syms *SymbolTable

	// strings holds interned string-literal bodies in encounter order; an
	// entry's static-data address is DataRegionStart plus the sum of
	// len(prev)+1 for every earlier entry.
	strings []string

	// returnType is the enclosing function's return type, or nil outside
	// any function body.
	returnType *ast.TypeDesc

	// stackLoc is the compile-time stack cursor: the byte count of locals
	// and parameters currently live on the runtime stack.
	stackLoc uint64

	mainPlaceholder uint64
	hasErrors       bool

	Trace bool
}

// NewGenerator returns a Generator ready to accept Generate.
func NewGenerator() *Generator {
	return &Generator{
		img:  bytecode.NewImage(),
		syms: NewSymbolTable(),
	}
}

// HasErrors reports whether any error was reported during generation.
func (g *Generator) HasErrors() bool {
	return g.hasErrors
}

// Image exposes the generated bytecode image for dumping or for direct
// execution by the reference VM.
func (g *Generator) Image() *bytecode.Image {
	return g.img
}

func (g *Generator) errorf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	g.hasErrors = true
}

func (g *Generator) tracef(format string, args ...any) {
	if g.Trace {
		fmt.Fprintf(os.Stderr, "codegen: "+format+"\n", args...)
	}
}

func (g *Generator) emitOp(op byte) {
	g.img.PutByte(op)
}

func (g *Generator) emitAddr(a uint64) {
	g.img.PutAddress(a)
}

func (g *Generator) emitQword(q uint64) {
	g.img.PutQword(q)
}

// emitSelfPatchMove emits a MOVE_QWORD that, at runtime, writes srcReg's
// current value into the address operand of the very next instruction —
// the mechanism a dynamic call or a through-pointer increment uses to
// inject a runtime-computed target into an instruction whose destination
// isn't known at compile time (spec.md §9, "self-patching instruction").
func (g *Generator) emitSelfPatchMove(srcReg uint64) {
	g.emitOp(bytecode.OpMoveQword)
	g.emitAddr(srcReg)
	dest := g.img.Position() + bytecode.AddressWidth + 1
	g.emitAddr(dest)
}

// internString returns the static-data address of s, adding it to the
// table in first-use order if this is its first occurrence.
func (g *Generator) internString(s string) uint64 {
	offset := uint64(0)
	for _, existing := range g.strings {
		if existing == s {
			return bytecode.DataRegionStart + offset
		}
		offset += uint64(len(existing)) + 1
	}
	g.strings = append(g.strings, s)
	return bytecode.DataRegionStart + offset
}

// Generate lays out the prelude, walks prog, resolves main's address into
// the entry trampoline, and writes the string-data region. The image is
// produced regardless of errors; HasErrors tells the caller whether it is
// valid (spec.md §7).
func (g *Generator) Generate(prog []*ast.Stmt) {
	g.emitPrelude()

	for _, stmt := range prog {
		g.genStmt(stmt)
	}

	g.resolveMain()
	g.emitStringData()
}

func (g *Generator) resolveMain() {
	main := g.syms.Lookup("main")
	if main == nil || main.Func == nil {
		g.errorf("main function was not found")
		return
	}
	g.img.WriteQwordAt(g.mainPlaceholder, main.Func.Label)
}

func (g *Generator) emitStringData() {
	total := uint64(0)
	for _, s := range g.strings {
		total += uint64(len(s)) + 1
	}
	g.img.Grow(bytecode.DataRegionStart + total)

	offset := uint64(bytecode.DataRegionStart)
	for _, s := range g.strings {
		for i := 0; i < len(s); i++ {
			g.img.WriteByteAt(offset+uint64(i), s[i])
		}
		g.img.WriteByteAt(offset+uint64(len(s)), 0)
		offset += uint64(len(s)) + 1
	}
}

// resolveSymbol mirrors Compiler_ResolveSymbol: it infers an expression's
// type and, when the expression denotes a declared name, returns the
// backing symbol. A call's callee is resolved recursively so the call's own
// type is the callee's return type; a call itself never carries a symbol
// (spec.md §9 OQ2 — calling the result of a call is unsupported, preserved
// intentionally, not silently fixed).
func (g *Generator) resolveSymbol(e *ast.Expr) (*Symbol, ast.TypeDesc) {
	if e == nil {
		return nil, ast.TypeDesc{Base: ast.NotAType}
	}

	switch e.Kind {
	case ast.StringLit:
		return nil, ast.TypeDesc{Base: ast.CharType, PointerDepth: 1}

	case ast.NumberLit:
		return nil, ast.TypeDesc{Base: ast.IntType}

	case ast.Ident:
		sym := g.syms.Lookup(e.Text)
		if sym == nil {
			return nil, ast.TypeDesc{Base: ast.NotAType}
		}
		return sym, sym.Type

	case ast.Call:
		calleeSym, _ := g.resolveSymbol(e.Callee)
		if calleeSym != nil && calleeSym.Func != nil {
			return nil, calleeSym.Func.ReturnType
		}
		return nil, ast.TypeDesc{Base: ast.VoidType}

	default:
		return nil, ast.TypeDesc{Base: ast.VoidType}
	}
}

// genExpr emits the instructions for e; the result lands in REGISTER64_A.
func (g *Generator) genExpr(e *ast.Expr) {
	if e == nil {
		return
	}

	switch e.Kind {
	case ast.NumberLit:
		g.emitOp(bytecode.OpLoadQword)
		g.emitAddr(bytecode.Register64A)
		g.emitQword(uint64(e.Number))

	case ast.CharLit:
		g.emitOp(bytecode.OpLoadQword)
		g.emitAddr(bytecode.Register64A)
		g.emitQword(uint64(e.Char))

	case ast.StringLit:
		addr := g.internString(e.Text)
		g.emitOp(bytecode.OpLoadQword)
		g.emitAddr(bytecode.Register64A)
		g.emitAddr(addr)

	case ast.Ident:
		g.genIdent(e)

	case ast.Call:
		g.genCall(e)

	case ast.Assign:
		g.genAssign(e)

	case ast.AddressOf:
		g.genAddressOf(e)

	case ast.Deref:
		g.genExpr(e.Operand)
		g.emitOp(bytecode.OpDerefQword)
		g.emitAddr(bytecode.Register64A)
		g.emitAddr(bytecode.Register64A)

	case ast.Inc:
		g.genInc(e)

	case ast.BinaryOp:
		g.genBinaryOp(e)
	}
}

func (g *Generator) genIdent(e *ast.Expr) {
	sym := g.syms.Lookup(e.Text)
	if sym == nil {
		g.errorf("undefined variable '%s'", e.Text)
		return
	}
	if sym.Func != nil {
		g.emitOp(bytecode.OpLoadQword)
		g.emitAddr(bytecode.Register64A)
		g.emitAddr(sym.Func.Label)
		return
	}
	g.emitOp(bytecode.OpStackReadQword)
	g.emitQword(g.stackLoc - sym.Offset)
	g.emitAddr(bytecode.Register64A)
}

func (g *Generator) genCall(e *ast.Expr) {
	// Arguments are evaluated and pushed in reverse source order; the
	// callee is responsible for popping its own arguments.
	for i := len(e.Args) - 1; i >= 0; i-- {
		g.genExpr(e.Args[i])
		g.emitOp(bytecode.OpPushQword)
		g.emitAddr(bytecode.Register64A)
	}

	callee, _ := g.resolveSymbol(e.Callee)
	if callee != nil && callee.Func != nil {
		g.emitOp(bytecode.OpCall)
		g.emitAddr(callee.Func.Label)
		return
	}

	g.errorf("expected an lvalue to call")
	g.genExpr(e.Callee)
	g.emitSelfPatchMove(bytecode.Register64A)
	g.emitOp(bytecode.OpCall)
	g.emitAddr(0) // replaced at runtime
}

func (g *Generator) genAssign(e *ast.Expr) {
	if e.Target.Kind != ast.Ident {
		return
	}
	sym := g.syms.Lookup(e.Target.Text)
	if sym == nil {
		g.errorf("variable '%s' must be declared before assigning", e.Target.Text)
		return
	}

	g.genExpr(e.Value)
	g.emitOp(bytecode.OpStackWriteQword)
	g.emitQword(g.stackLoc - sym.Offset)
	g.emitAddr(bytecode.Register64A)
}

func (g *Generator) genAddressOf(e *ast.Expr) {
	sym, _ := g.resolveSymbol(e.Operand)
	if sym == nil {
		g.errorf("expected an lvalue to take the address of")
		return
	}
	g.emitOp(bytecode.OpStackPointerFromOffset)
	g.emitQword(g.stackLoc - sym.Offset)
	g.emitAddr(bytecode.Register64A)
}

func (g *Generator) genInc(e *ast.Expr) {
	sym, _ := g.resolveSymbol(e.Operand)
	switch {
	case sym != nil:
		g.emitOp(bytecode.OpStackReadQword)
		g.emitQword(g.stackLoc - sym.Offset)
		g.emitAddr(bytecode.Register64A)

		g.emitOp(bytecode.OpIncQword)
		g.emitAddr(bytecode.Register64A)

		g.emitOp(bytecode.OpStackWriteQword)
		g.emitQword(g.stackLoc - sym.Offset)
		g.emitAddr(bytecode.Register64A)

	case e.Operand.Kind == ast.Deref:
		g.genExpr(e.Operand.Operand)
		g.emitSelfPatchMove(bytecode.Register64A)
		g.emitOp(bytecode.OpIncQword)
		g.emitAddr(0) // replaced at runtime

	default:
		g.errorf("expected an lvalue to increment")
	}
}

func (g *Generator) genBinaryOp(e *ast.Expr) {
	switch e.Op {
	case ast.OpAdd:
		g.genExpr(e.A)
		g.emitOp(bytecode.OpPushQword)
		g.emitAddr(bytecode.Register64A)
		g.stackLoc += bytecode.QwordWidth

		g.genExpr(e.B)
		g.emitOp(bytecode.OpPopQword)
		g.emitAddr(bytecode.Register64B)
		g.stackLoc -= bytecode.QwordWidth

		g.emitOp(bytecode.OpAddQword)
		g.emitAddr(bytecode.Register64A)
		g.emitAddr(bytecode.Register64B)
		g.emitAddr(bytecode.Register64A)

	case ast.OpLessThan:
		g.genExpr(e.A)
		g.emitOp(bytecode.OpPushQword)
		g.emitAddr(bytecode.Register64A)
		g.stackLoc += bytecode.QwordWidth

		g.genExpr(e.B)
		g.emitOp(bytecode.OpPopQword)
		g.emitAddr(bytecode.Register64B)
		g.stackLoc -= bytecode.QwordWidth

		// A holds the right operand, B the left, after the pop; the
		// compare-then-map-greater sequence yields left < right
		// (spec.md §9 OQ3 — preserved as specified, not reverified
		// against an independent VM implementation).
		g.emitOp(bytecode.OpCompareQword)
		g.emitAddr(bytecode.Register64A)
		g.emitAddr(bytecode.Register64B)

		g.emitOp(bytecode.OpLoadQword)
		g.emitAddr(bytecode.Register64A)
		g.emitQword(0)

		g.emitOp(bytecode.OpMapGreaterByte)
		g.emitAddr(bytecode.Register64A)
	}
}

// genStmt emits the instructions for a statement.
func (g *Generator) genStmt(s *ast.Stmt) {
	switch s.Kind {
	case ast.ExprStmt:
		g.genExpr(s.X)

	case ast.FuncStmt:
		g.genFuncStmt(s)

	case ast.ReturnStmt:
		g.genReturnStmt(s)

	case ast.VarDeclStmt:
		g.genVarDecl(s)

	case ast.WhileStmt:
		g.genWhile(s)
	}
}

func (g *Generator) genFuncStmt(s *ast.Stmt) {
	fn := &Function{
		Label:      g.img.Position(),
		Params:     s.Params,
		ReturnType: s.ReturnType,
	}
	g.syms.AppendGlobal(&Symbol{Name: s.Name, Type: s.ReturnType, Func: fn})
	g.tracef("func %s at %d", s.Name, fn.Label)

	g.syms.PushScope()
	for _, param := range s.Params {
		g.syms.Append(&Symbol{Name: param.Name, Type: param.Type, Offset: g.stackLoc})
		g.stackLoc += bytecode.QwordWidth
	}

	prevReturnType := g.returnType
	g.returnType = &fn.ReturnType
	for _, stmt := range s.Body {
		g.genStmt(stmt)
	}
	g.returnType = prevReturnType
	g.syms.PopScope()

	for range s.Params {
		g.emitOp(bytecode.OpPopQword)
		g.emitAddr(0)
		g.stackLoc -= bytecode.QwordWidth
	}
	g.emitOp(bytecode.OpReturn)
}

func (g *Generator) genReturnStmt(s *ast.Stmt) {
	if g.returnType == nil {
		g.errorf("no function to return from")
	} else if s.Value != nil && g.returnType.Base == ast.VoidType && g.returnType.PointerDepth == 0 {
		g.errorf("cannot return a value from a void function")
	}

	if s.Value != nil {
		g.genExpr(s.Value)
	}
	g.emitOp(bytecode.OpReturn)
}

func (g *Generator) genVarDecl(s *ast.Stmt) {
	g.syms.Append(&Symbol{Name: s.VarName, Type: s.VarType, Offset: g.stackLoc})

	if s.Init != nil {
		g.genExpr(s.Init)
		g.emitOp(bytecode.OpPushQword)
		g.emitAddr(bytecode.Register64A)
	} else {
		g.emitOp(bytecode.OpPushQword)
		g.emitAddr(0)
	}
	g.stackLoc += bytecode.QwordWidth
}

func (g *Generator) genWhile(s *ast.Stmt) {
	start := g.img.Position()
	g.genExpr(s.Cond)

	g.emitOp(bytecode.OpSetFlagsByte)
	g.emitAddr(bytecode.Register64A)

	g.emitOp(bytecode.OpJumpIfZero)
	placeholder := g.img.Position()
	g.emitAddr(0)

	for _, stmt := range s.Body {
		g.genStmt(stmt)
	}

	g.emitOp(bytecode.OpJump)
	g.emitAddr(start)

	g.img.WriteQwordAt(placeholder, g.img.Position())
}
