package jack

import (
	"fmt"
	"strings"

	"hmy.dev/n2t-toolchain/pkg/diag"
)

// Scope holds every Variable registered under a given name (class or
// class.subroutine), in declaration order. Offsets handed out to the Code
// Generator are the Variable's position in that order, which is exactly the
// memory-segment index the VM expects ('local 0', 'argument 1', ...).
type Scope struct {
	name    string
	entries []Variable
}

// resolve scans from the most recently declared entry backwards so that a
// re-declaration shadows an earlier one, but still reports the SHADOWING
// entry's own (forward) declaration index, not a reversed one.
func (s Scope) resolve(name string) (uint16, Variable, bool) {
	for i := len(s.entries) - 1; i >= 0; i-- {
		if s.entries[i].Name == name {
			return uint16(i), s.entries[i], true
		}
	}
	return 0, Variable{}, false
}

// ScopeTable tracks the four scopes a Jack identifier can live in at any
// point during compilation: the current subroutine's locals and parameters,
// the enclosing class' fields, and the program-wide static variables.
type ScopeTable struct {
	static Scope

	local     Scope
	field     Scope
	parameter Scope
}

func NewScopeTable() *ScopeTable {
	return &ScopeTable{}
}

func (st *ScopeTable) PushClassScope(class string) {
	st.field = Scope{name: fmt.Sprintf("%s.Global", class)}
}

func (st *ScopeTable) PopClassScope() { st.field = Scope{} }

func (st *ScopeTable) PushSubRoutineScope(method string) {
	newScope := strings.ReplaceAll(st.GetScope(), "Global", method)
	st.local = Scope{name: newScope}
	st.parameter = Scope{name: newScope}
}

func (st *ScopeTable) PopSubroutineScope() { st.local, st.parameter = Scope{}, Scope{} }

// GetScope returns the fully qualified name of the innermost active scope,
// falling back to the enclosing class scope, then to the program scope.
func (st *ScopeTable) GetScope() string {
	if st.local.name != "" && st.parameter.name != "" {
		return st.local.name
	}

	if st.field.name != "" {
		return st.field.name
	}

	return "Global"
}

func (st *ScopeTable) RegisterVariable(new Variable) {
	switch new.VarType {
	case Local:
		st.local.entries = append(st.local.entries, new)
	case Field:
		st.field.entries = append(st.field.entries, new)
	case Parameter:
		st.parameter.entries = append(st.parameter.entries, new)
	case Static:
		st.static.entries = append(st.static.entries, new)
	}
}

// ResolveVariable looks up 'name' in the order a Jack compiler resolves
// identifiers: subroutine locals, then parameters, then the class' fields,
// then program-wide statics. The first scope with a match wins.
func (st *ScopeTable) ResolveVariable(name string) (uint16, Variable, error) {
	scopes := []Scope{st.local, st.parameter, st.field, st.static}

	for _, scope := range scopes {
		if offset, variable, ok := scope.resolve(name); ok {
			return offset, variable, nil
		}
	}

	return 0, Variable{}, diag.New(diag.Symbol, fmt.Sprintf("variable '%s' undeclared, not found in any scope", name))
}
