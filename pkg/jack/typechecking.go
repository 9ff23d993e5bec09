package jack

import (
	"fmt"
	"sort"

	"hmy.dev/n2t-toolchain/pkg/diag"
	"hmy.dev/n2t-toolchain/pkg/utils"
)

// ----------------------------------------------------------------------------
// Jack TypeChecker

// Diagnostic reports one non-fatal issue found while walking a Program: a
// variable reference, a call target or an argument count that doesn't line
// up with what the class/subroutine declarations promise.
type Diagnostic struct {
	Class      string
	Subroutine string
	Message    string
}

func (d Diagnostic) String() string {
	if d.Subroutine == "" {
		return fmt.Sprintf("%s: %s", d.Class, d.Message)
	}
	return fmt.Sprintf("%s.%s: %s", d.Class, d.Subroutine, d.Message)
}

// TypeChecker walks a 'jack.Program' the same way the Lowerer does (DFS over
// class -> subroutine -> statement -> expression) but never produces VM
// operations: it only resolves identifiers and call targets, collecting a
// Diagnostic for each one that fails to resolve. An empty Program is the only
// condition considered fatal; a call into a class that is not part of the
// Program is skipped without a Diagnostic.
type TypeChecker struct {
	program     utils.OrderedMap[string, Class]
	scopes      ScopeTable
	diagnostics []Diagnostic

	class, subroutine string // the node currently being walked, for Diagnostic labeling
}

// NewTypeChecker mirrors NewLowerer's deterministic-ordering rationale: classes
// are walked in alphabetical order so repeated runs over the same Program
// always produce diagnostics in the same order.
func NewTypeChecker(p Program) *TypeChecker {
	classes := []utils.MapEntry[string, Class]{}
	for _, class := range p {
		classes = append(classes, utils.MapEntry[string, Class]{Key: class.Name, Value: class})
	}
	sort.Slice(classes, func(i, j int) bool { return classes[i].Key < classes[j].Key })

	return &TypeChecker{program: utils.NewOrderedMapFromList(classes)}
}

// Check walks every class, subroutine, statement and expression in the
// Program, resolving each variable reference and function call target. It
// returns every Diagnostic collected along the way; the error return is
// reserved for conditions that make the rest of the walk meaningless, such as
// an empty Program.
func (tc *TypeChecker) Check() ([]Diagnostic, error) {
	if tc.program.Size() == 0 {
		return nil, diag.New(diag.InvalidInput, "the given program is empty or nil")
	}

	for _, class := range tc.program.Entries() {
		tc.checkClass(class)
	}

	return tc.diagnostics, nil
}

func (tc *TypeChecker) report(format string, args ...any) {
	tc.diagnostics = append(tc.diagnostics, Diagnostic{
		Class:      tc.class,
		Subroutine: tc.subroutine,
		Message:    fmt.Sprintf(format, args...),
	})
}

func (tc *TypeChecker) checkClass(class Class) {
	tc.class = class.Name
	tc.scopes.PushClassScope(class.Name)
	defer tc.scopes.PopClassScope()

	for _, field := range class.Fields.Entries() {
		tc.scopes.RegisterVariable(field)
	}

	for _, subroutine := range class.Subroutines.Entries() {
		tc.checkSubroutine(class, subroutine)
	}
}

func (tc *TypeChecker) checkSubroutine(class Class, subroutine Subroutine) {
	tc.subroutine = subroutine.Name
	defer func() { tc.subroutine = "" }()

	tc.scopes.PushSubRoutineScope(subroutine.Name)
	defer tc.scopes.PopSubroutineScope()

	if subroutine.Type == Method {
		tc.scopes.RegisterVariable(Variable{Name: "__obj", VarType: Parameter, DataType: DataType{Main: Object, Subtype: class.Name}})
	}

	for _, arg := range subroutine.Arguments.Entries() {
		tc.scopes.RegisterVariable(arg)
	}

	for _, stmt := range subroutine.Statements {
		tc.checkStatement(stmt)
	}
}

func (tc *TypeChecker) checkStatement(stmt Statement) {
	switch tStmt := stmt.(type) {
	case DoStmt:
		tc.checkFuncCall(tStmt.FuncCall)
	case VarStmt:
		for _, v := range tStmt.Vars {
			tc.scopes.RegisterVariable(v)
		}
	case LetStmt:
		tc.checkLValue(tStmt.Lhs)
		tc.checkExpression(tStmt.Rhs)
	case IfStmt:
		tc.checkExpression(tStmt.Condition)
		for _, s := range tStmt.ThenBlock {
			tc.checkStatement(s)
		}
		for _, s := range tStmt.ElseBlock {
			tc.checkStatement(s)
		}
	case WhileStmt:
		tc.checkExpression(tStmt.Condition)
		for _, s := range tStmt.Block {
			tc.checkStatement(s)
		}
	case ReturnStmt:
		if tStmt.Expr != nil {
			tc.checkExpression(tStmt.Expr)
		}
	default:
		tc.report("unrecognized statement: %T", stmt)
	}
}

// checkLValue validates a let-statement target without re-reading its value:
// a VarExpr/ArrayExpr's base variable must resolve, but unlike checkExpression
// we don't care that it was ever 'read' here, just that it exists.
func (tc *TypeChecker) checkLValue(expr Expression) {
	switch tExpr := expr.(type) {
	case VarExpr:
		if _, _, err := tc.scopes.ResolveVariable(tExpr.Var); err != nil {
			tc.report("assignment to undeclared variable '%s'", tExpr.Var)
		}
	case ArrayExpr:
		if _, _, err := tc.scopes.ResolveVariable(tExpr.Var); err != nil {
			tc.report("assignment to undeclared array '%s'", tExpr.Var)
		}
		tc.checkExpression(tExpr.Index)
	default:
		tc.report("assignment target must be a variable or array element, got %T", expr)
	}
}

func (tc *TypeChecker) checkExpression(expr Expression) {
	switch tExpr := expr.(type) {
	case VarExpr:
		if tExpr.Var == "this" {
			return
		}
		if _, _, err := tc.scopes.ResolveVariable(tExpr.Var); err != nil {
			tc.report("undeclared variable '%s'", tExpr.Var)
		}
	case LiteralExpr:
		// literals carry their own type, nothing to resolve
	case ArrayExpr:
		if _, _, err := tc.scopes.ResolveVariable(tExpr.Var); err != nil {
			tc.report("undeclared array '%s'", tExpr.Var)
		}
		tc.checkExpression(tExpr.Index)
	case UnaryExpr:
		tc.checkExpression(tExpr.Rhs)
	case BinaryExpr:
		tc.checkExpression(tExpr.Lhs)
		tc.checkExpression(tExpr.Rhs)
	case FuncCallExpr:
		tc.checkFuncCall(tExpr)
	default:
		tc.report("unrecognized expression: %T", expr)
	}
}

func (tc *TypeChecker) checkFuncCall(call FuncCallExpr) {
	for _, arg := range call.Arguments {
		tc.checkExpression(arg)
	}

	argsLen := len(call.Arguments)

	if !call.IsExtCall {
		class, exists := tc.program.Get(tc.class)
		if !exists {
			tc.report("class definition not found for '%s'", tc.class)
			return
		}
		routine, exists := class.Subroutines.Get(call.FuncName)
		if !exists {
			tc.report("subroutine '%s' not found in class '%s'", call.FuncName, tc.class)
			return
		}
		tc.checkArity(class.Name, routine, argsLen)
		return
	}

	// Variable-qualified call: 'someVar.method(...)'.
	if _, variable, err := tc.scopes.ResolveVariable(call.Var); err == nil {
		if variable.DataType.Main != Object {
			tc.report("'%s' is not an object, cannot call '%s' on it", call.Var, call.FuncName)
			return
		}
		class, exists := tc.program.Get(variable.DataType.Subtype)
		if !exists {
			// The target class may be a Jack OS class merged in by the caller, or
			// simply not loaded in this Program; neither is a checker-fatal error.
			return
		}
		routine, exists := class.Subroutines.Get(call.FuncName)
		if !exists {
			tc.report("subroutine '%s' not found in class '%s'", call.FuncName, class.Name)
			return
		}
		tc.checkArity(class.Name, routine, argsLen)
		return
	}

	// Class-qualified call: 'Class.function(...)' or 'Class.new(...)'.
	class, exists := tc.program.Get(call.Var)
	if !exists {
		// Could be a Jack OS class not loaded into this Program; the Lowerer
		// treats that the same way, so we don't flag it here either.
		return
	}
	routine, exists := class.Subroutines.Get(call.FuncName)
	if !exists {
		tc.report("subroutine '%s' not found in class '%s'", call.FuncName, class.Name)
		return
	}
	if routine.Type == Method {
		tc.report("'%s.%s' is a method and cannot be called without an object instance", class.Name, call.FuncName)
		return
	}
	tc.checkArity(class.Name, routine, argsLen)
}

// checkArity compares the caller-supplied argument count against the
// subroutine's declared parameter list. Method receivers never appear in
// 'call.Arguments' (they're resolved separately, from the call's 'Var'), so
// 'routine.Arguments' already excludes them too.
func (tc *TypeChecker) checkArity(className string, routine Subroutine, argsLen int) {
	if wantArgs := routine.Arguments.Size(); wantArgs != argsLen {
		tc.report("wrong number of arguments calling '%s.%s': expected %d got %d", className, routine.Name, wantArgs, argsLen)
	}
}
