package codegen

import "furncc/pkg/ast"

// Function is a registered function's codegen-time record: its entry
// label and the signature needed to type-check returns and calls.
type Function struct {
	Label      uint64
	Params     []ast.Param
	ReturnType ast.TypeDesc
}

// Symbol is a symbol-table entry: either a function (Func set) or a local
// variable at a stack offset (Func nil).
type Symbol struct {
	Name   string
	Type   ast.TypeDesc
	Offset uint64 // meaningful only when Func == nil
	Func   *Function
}

// SymbolTable is a stack of append-only scopes. Lookup scans the innermost
// scope outward, first-match within each scope — the original compiler's
// single flat list, corrected for the parameter-leak gap (spec.md §9 OQ1):
// a function's parameters live in a scope pushed at its entry and popped at
// its exit, instead of a list that is never shrunk.
type SymbolTable struct {
	scopes [][]*Symbol
}

// NewSymbolTable returns a table with just the global scope, where function
// definitions are registered.
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{scopes: [][]*Symbol{{}}}
}

// PushScope opens a new scope, entered at function bodies.
func (t *SymbolTable) PushScope() {
	t.scopes = append(t.scopes, nil)
}

// PopScope discards the innermost scope and everything declared in it.
func (t *SymbolTable) PopScope() {
	t.scopes = t.scopes[:len(t.scopes)-1]
}

// Append adds a symbol to the innermost open scope.
func (t *SymbolTable) Append(sym *Symbol) {
	top := len(t.scopes) - 1
	t.scopes[top] = append(t.scopes[top], sym)
}

// AppendGlobal adds a symbol to the outermost (global) scope regardless of
// how many scopes are currently open — used for function definitions so
// they remain visible after their own body's scope is popped.
func (t *SymbolTable) AppendGlobal(sym *Symbol) {
	t.scopes[0] = append(t.scopes[0], sym)
}

// Lookup returns the first symbol named name, searching from the innermost
// scope outward and, within a scope, from first declaration to last —
// exactly the original's front-to-back scan, just scoped.
func (t *SymbolTable) Lookup(name string) *Symbol {
	for i := len(t.scopes) - 1; i >= 0; i-- {
		for _, sym := range t.scopes[i] {
			if sym.Name == name {
				return sym
			}
		}
	}
	return nil
}
