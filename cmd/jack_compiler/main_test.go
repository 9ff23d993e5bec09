package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func readLines(t *testing.T, path string) []string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("error reading output file %s: %v", path, err)
	}
	text := strings.TrimRight(string(content), "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

func assertLines(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("line count mismatch: got %d want %d\ngot: %v\nwant: %v", len(got), len(want), got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("line %d mismatch: got %q want %q", i, got[i], want[i])
		}
	}
}

// compile writes 'sources' (name -> .jack content) to a fresh temp dir, runs
// the Handler over it and returns every generated '<name>.vm' file split into
// lines, keyed by the same names.
func compile(t *testing.T, sources map[string]string, options map[string]string) map[string][]string {
	t.Helper()

	dir := t.TempDir()
	var inputs []string
	for name, content := range sources {
		path := filepath.Join(dir, name+".jack")
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("failed to write input fixture %s: %v", name, err)
		}
		inputs = append(inputs, path)
	}

	status := Handler(inputs, options)
	if status != 0 {
		t.Fatalf("unexpected exit status code: expected 0 got %d", status)
	}

	out := map[string][]string{}
	for name := range sources {
		out[name] = readLines(t, filepath.Join(dir, name+".vm"))
	}
	return out
}

func TestJackCompilerSingleClass(t *testing.T) {
	t.Run("FunctionWithArithmetic", func(t *testing.T) {
		src := `class Main {
			function void main() {
				do Output.printInt(1 + 2);
				return;
			}
		}`

		out := compile(t, map[string]string{"Main": src}, map[string]string{"stdlib": "true"})

		expected := []string{
			"function Main.main 0",
			"push constant 1",
			"push constant 2",
			"add",
			"call Output.printInt 1",
			"pop temp 0",
			"push constant 0",
			"return",
		}
		assertLines(t, out["Main"], expected)
	})

	t.Run("ConstructorAllocatesFields", func(t *testing.T) {
		src := `class Point {
			field int x, y;

			constructor Point new(int ax, int ay) {
				let x = ax;
				let y = ay;
				return this;
			}

			method int getX() {
				return x;
			}
		}`

		out := compile(t, map[string]string{"Point": src}, map[string]string{"stdlib": "true"})

		expectedNew := []string{
			"function Point.new 0",
			"push constant 2",
			"call Memory.alloc 1",
			"pop pointer 0",
			"push argument 0",
			"pop this 0",
			"push argument 1",
			"pop this 1",
			"push pointer 0",
			"return",
			"function Point.getX 0",
			"push argument 0",
			"pop pointer 0",
			"push this 0",
			"return",
		}
		assertLines(t, out["Point"], expectedNew)
	})

	t.Run("WhileAndIfControlFlow", func(t *testing.T) {
		src := `class Counter {
			function int countTo(int n) {
				var int i;
				let i = 0;
				while (i < n) {
					let i = i + 1;
				}
				if (i = n) {
					return i;
				} else {
					return 0;
				}
			}
		}`

		out := compile(t, map[string]string{"Counter": src}, map[string]string{"stdlib": "true"})

		expected := []string{
			"function Counter.countTo 1",
			"push constant 0",
			"pop local 0",
			"label WHILE_START_0",
			"push local 0",
			"push argument 0",
			"lt",
			"not",
			"if-goto WHILE_END_1",
			"push local 0",
			"push constant 1",
			"add",
			"pop local 0",
			"goto WHILE_START_0",
			"label WHILE_END_1",
			"push local 0",
			"push argument 0",
			"eq",
			"if-goto THEN_2",
			"goto ELSE_3",
			"label THEN_2",
			"push local 0",
			"return",
			"goto END_4",
			"label ELSE_3",
			"push constant 0",
			"return",
			"label END_4",
		}
		assertLines(t, out["Counter"], expected)
	})

	t.Run("BooleanLiteralsLowerToAllOnesOrZero", func(t *testing.T) {
		src := `class Flags {
			function boolean yes() {
				return true;
			}

			function boolean no() {
				return false;
			}
		}`

		out := compile(t, map[string]string{"Flags": src}, map[string]string{"stdlib": "true"})

		assertLines(t, out["Flags"], []string{
			"function Flags.yes 0",
			"push constant 1",
			"neg",
			"return",
			"function Flags.no 0",
			"push constant 0",
			"return",
		})
	})
}

func TestJackCompilerCrossClassDispatch(t *testing.T) {
	adderSrc := `class Adder {
		constructor Adder new() {
			return this;
		}

		method int add(int a, int b) {
			return a + b;
		}
	}`

	mainSrc := `class Main {
		function void main() {
			var Adder adder;
			let adder = Adder.new();
			do Output.printInt(adder.add(1, 2));
			return;
		}
	}`

	out := compile(t, map[string]string{"Adder": adderSrc, "Main": mainSrc}, map[string]string{"stdlib": "true"})

	assertLines(t, out["Main"], []string{
		"function Main.main 1",
		"call Adder.new 0",
		"pop local 0",
		"push local 0",
		"push constant 1",
		"push constant 2",
		"call Adder.add 3",
		"call Output.printInt 1",
		"pop temp 0",
		"push constant 0",
		"return",
	})
}

func TestJackCompilerConstructorWithNonDefaultName(t *testing.T) {
	boxSrc := `class Box {
		field int value;

		constructor Box withValue(int v) {
			let value = v;
			return this;
		}
	}`

	mainSrc := `class Main {
		function void main() {
			do Box.withValue(5);
			return;
		}
	}`

	out := compile(t, map[string]string{"Box": boxSrc, "Main": mainSrc}, map[string]string{"stdlib": "true"})

	assertLines(t, out["Box"], []string{
		"function Box.withValue 0",
		"push constant 1",
		"call Memory.alloc 1",
		"pop pointer 0",
		"push argument 0",
		"pop this 0",
		"push pointer 0",
		"return",
	})

	assertLines(t, out["Main"], []string{
		"function Main.main 0",
		"push constant 5",
		"call Box.withValue 1",
		"pop temp 0",
		"push constant 0",
		"return",
	})
}

func TestJackCompilerRejectsMultiFileProgramWithoutMain(t *testing.T) {
	adderSrc := `class Adder {
		method int add(int a, int b) {
			return a + b;
		}
	}`
	helperSrc := `class Helper {
		function void noop() {
			return;
		}
	}`

	dir := t.TempDir()
	var inputs []string
	for name, src := range map[string]string{"Adder": adderSrc, "Helper": helperSrc} {
		path := filepath.Join(dir, name+".jack")
		if err := os.WriteFile(path, []byte(src), 0644); err != nil {
			t.Fatalf("failed to write input fixture %s: %v", name, err)
		}
		inputs = append(inputs, path)
	}

	status := Handler(inputs, map[string]string{"stdlib": "true"})
	if status == 0 {
		t.Fatalf("expected a non-zero exit status for a multi-file program without a 'Main' class")
	}
}

func TestJackCompilerRejectsMalformedSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Broken.jack")
	if err := os.WriteFile(path, []byte("class Broken { function void oops( }"), 0644); err != nil {
		t.Fatalf("failed to write input fixture: %v", err)
	}

	status := Handler([]string{path}, map[string]string{"stdlib": "true"})
	if status == 0 {
		t.Fatalf("expected a non-zero exit status for malformed source")
	}
}

func TestJackCompilerTypecheckRunsThenLoweringRejectsUndeclaredVariable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Bad.jack")
	src := `class Bad {
		function void oops() {
			let x = 1;
			return;
		}
	}`
	if err := os.WriteFile(path, []byte(src), 0644); err != nil {
		t.Fatalf("failed to write input fixture: %v", err)
	}

	// Typechecking only collects Diagnostics and never fails the build by
	// itself (lowering would later fail on the very same undeclared symbol),
	// so this just exercises that the pass runs without crashing.
	status := Handler([]string{path}, map[string]string{"stdlib": "true", "typecheck": "true"})
	if status == 0 {
		t.Fatalf("expected lowering to fail for an undeclared variable")
	}
}
