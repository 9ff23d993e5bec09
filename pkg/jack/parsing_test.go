package jack_test

import (
	"strings"
	"testing"

	"hmy.dev/n2t-toolchain/pkg/jack"
)

func parse(t *testing.T, src string) jack.Class {
	t.Helper()
	class, err := jack.NewParser(strings.NewReader(src)).Parse()
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	return class
}

func parseErr(t *testing.T, src string) error {
	t.Helper()
	_, err := jack.NewParser(strings.NewReader(src)).Parse()
	if err == nil {
		t.Fatalf("expected a parse error, got none")
	}
	return err
}

func TestParserClassVarDec(t *testing.T) {
	class := parse(t, `class Point {
		field int x, y;
		static boolean initialized;
	}`)

	if class.Name != "Point" {
		t.Fatalf("expected class name 'Point', got %q", class.Name)
	}
	if class.Fields.Size() != 3 {
		t.Fatalf("expected 3 fields, got %d", class.Fields.Size())
	}

	x, ok := class.Fields.Get("x")
	if !ok || x.VarType != jack.Field || x.DataType.Main != jack.Int {
		t.Errorf("expected field 'x' to be an int field, got %+v (found=%v)", x, ok)
	}

	flag, ok := class.Fields.Get("initialized")
	if !ok || flag.VarType != jack.Static || flag.DataType.Main != jack.Bool {
		t.Errorf("expected field 'initialized' to be a static boolean, got %+v (found=%v)", flag, ok)
	}
}

func TestParserBoolIsBooleanSynonym(t *testing.T) {
	class := parse(t, `class Flags {
		field bool ready;

		function bool check() {
			var bool done;
			return done;
		}
	}`)

	ready, ok := class.Fields.Get("ready")
	if !ok || ready.DataType.Main != jack.Bool {
		t.Fatalf("expected 'bool' to parse as a boolean field, got %+v (found=%v)", ready, ok)
	}

	sub, ok := class.Subroutines.Get("check")
	if !ok {
		t.Fatalf("expected subroutine 'check' to be declared")
	}
	if sub.Return.Main != jack.Bool {
		t.Errorf("expected 'bool' return type to resolve to jack.Bool, got %+v", sub.Return)
	}
}

func TestParserObjectType(t *testing.T) {
	class := parse(t, `class Main {
		field Array data;
	}`)

	data, ok := class.Fields.Get("data")
	if !ok || data.DataType.Main != jack.Object || data.DataType.Subtype != "Array" {
		t.Fatalf("expected field 'data' to be an Array object, got %+v (found=%v)", data, ok)
	}
}

func TestParserSubroutineDecAndParamList(t *testing.T) {
	class := parse(t, `class Calculator {
		method int add(int a, int b) {
			return a;
		}
	}`)

	sub, ok := class.Subroutines.Get("add")
	if !ok {
		t.Fatalf("expected subroutine 'add' to be declared")
	}
	if sub.Type != jack.Method {
		t.Errorf("expected subroutine kind 'method', got %q", sub.Type)
	}
	if sub.Arguments.Size() != 2 {
		t.Fatalf("expected 2 parameters, got %d", sub.Arguments.Size())
	}

	b, ok := sub.Arguments.Get("b")
	if !ok || b.VarType != jack.Parameter || b.DataType.Main != jack.Int {
		t.Errorf("expected parameter 'b' to be an int parameter, got %+v (found=%v)", b, ok)
	}
}

func TestParserExpressionIsRightAssociativeFold(t *testing.T) {
	class := parse(t, `class Main {
		function void main() {
			do Output.printInt(1 + 2 + 3);
			return;
		}
	}`)

	sub, ok := class.Subroutines.Get("main")
	if !ok || len(sub.Statements) == 0 {
		t.Fatalf("expected subroutine 'main' with at least one statement")
	}

	doStmt, ok := sub.Statements[0].(jack.DoStmt)
	if !ok {
		t.Fatalf("expected first statement to be a DoStmt, got %T", sub.Statements[0])
	}
	if len(doStmt.FuncCall.Arguments) != 1 {
		t.Fatalf("expected 1 argument to printInt, got %d", len(doStmt.FuncCall.Arguments))
	}

	// '1 + 2 + 3' folds right-associatively: Plus(1, Plus(2, 3))
	outer, ok := doStmt.FuncCall.Arguments[0].(jack.BinaryExpr)
	if !ok {
		t.Fatalf("expected argument to be a BinaryExpr, got %T", doStmt.FuncCall.Arguments[0])
	}
	if outer.Type != jack.Plus {
		t.Errorf("expected outer operator 'plus', got %q", outer.Type)
	}
	lhs, ok := outer.Lhs.(jack.LiteralExpr)
	if !ok || lhs.Value != "1" {
		t.Errorf("expected outer.Lhs to be literal '1', got %+v", outer.Lhs)
	}
	inner, ok := outer.Rhs.(jack.BinaryExpr)
	if !ok {
		t.Fatalf("expected outer.Rhs to be a nested BinaryExpr, got %T", outer.Rhs)
	}
	if inner.Type != jack.Plus {
		t.Errorf("expected inner operator 'plus', got %q", inner.Type)
	}
	innerLhs, ok := inner.Lhs.(jack.LiteralExpr)
	if !ok || innerLhs.Value != "2" {
		t.Errorf("expected inner.Lhs to be literal '2', got %+v", inner.Lhs)
	}
	innerRhs, ok := inner.Rhs.(jack.LiteralExpr)
	if !ok || innerRhs.Value != "3" {
		t.Errorf("expected inner.Rhs to be literal '3', got %+v", inner.Rhs)
	}
}

func TestParserSubroutineCallDisambiguation(t *testing.T) {
	class := parse(t, `class Main {
		function void main() {
			var Array data;
			let data = Array.new(3);
			do data.dispose();
			return;
		}
	}`)

	sub, ok := class.Subroutines.Get("main")
	if !ok || len(sub.Statements) < 3 {
		t.Fatalf("expected subroutine 'main' with at least 3 statements")
	}

	letStmt, ok := sub.Statements[1].(jack.LetStmt)
	if !ok {
		t.Fatalf("expected second statement to be a LetStmt, got %T", sub.Statements[1])
	}
	call, ok := letStmt.Rhs.(jack.FuncCallExpr)
	if !ok || !call.IsExtCall || call.Var != "Array" || call.FuncName != "new" {
		t.Fatalf("expected RHS to be a class-qualified call to Array.new, got %+v (ok=%v)", letStmt.Rhs, ok)
	}

	doStmt, ok := sub.Statements[2].(jack.DoStmt)
	if !ok || !doStmt.FuncCall.IsExtCall || doStmt.FuncCall.Var != "data" || doStmt.FuncCall.FuncName != "dispose" {
		t.Fatalf("expected a variable-qualified call to data.dispose, got %+v (ok=%v)", sub.Statements[2], ok)
	}
}

func TestParserArrayIndexing(t *testing.T) {
	class := parse(t, `class Main {
		function void main() {
			var Array data;
			let data[0] = 1;
			return;
		}
	}`)

	sub, _ := class.Subroutines.Get("main")
	letStmt, ok := sub.Statements[1].(jack.LetStmt)
	if !ok {
		t.Fatalf("expected second statement to be a LetStmt, got %T", sub.Statements[1])
	}
	arr, ok := letStmt.Lhs.(jack.ArrayExpr)
	if !ok || arr.Var != "data" {
		t.Fatalf("expected LHS to be an ArrayExpr over 'data', got %+v (ok=%v)", letStmt.Lhs, ok)
	}
}

func TestParserRejectsMalformedInput(t *testing.T) {
	err := parseErr(t, "class Broken { function void oops( }")
	if err == nil {
		t.Fatalf("expected an error for malformed source")
	}
}

func TestParserRejectsMissingClassWrapper(t *testing.T) {
	parseErr(t, "function void main() { return; }")
}
