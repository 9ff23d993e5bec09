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

// pushD/pushReg/pushConst mirror the instruction sequences the Lowerer emits;
// duplicated here (rather than imported) so the test double-checks the actual
// textual output independently of the production helpers.
func pushDLines() []string { return []string{"@SP", "A=M", "M=D", "@SP", "M=M+1"} }
func popDLines() []string  { return []string{"@SP", "AM=M-1", "D=M"} }

func pushConstLines(n string) []string {
	return append([]string{"@" + n, "D=A"}, pushDLines()...)
}

func pushRegLines(reg string) []string {
	return append([]string{"@" + reg, "D=M"}, pushDLines()...)
}

func TestVMTranslatorSingleFile(t *testing.T) {
	test := func(name, source string, expected []string) {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			input := filepath.Join(dir, name+".vm")
			output := filepath.Join(dir, name+".asm")

			if err := os.WriteFile(input, []byte(source), 0644); err != nil {
				t.Fatalf("failed to write input fixture: %v", err)
			}

			status := Handler([]string{input}, map[string]string{"output": output})
			if status != 0 {
				t.Fatalf("unexpected exit status code: expected 0 got %d", status)
			}

			assertLines(t, readLines(t, output), expected)
		})
	}

	t.Run("SimpleAdd", func(t *testing.T) {
		var expected []string
		expected = append(expected, pushConstLines("7")...)
		expected = append(expected, pushConstLines("8")...)
		expected = append(expected, "@SP", "AM=M-1", "D=M", "A=A-1", "M=D+M")
		test("SimpleAdd", "push constant 7\npush constant 8\nadd\n", expected)
	})

	t.Run("StaticTest", func(t *testing.T) {
		var expected []string
		expected = append(expected, pushConstLines("5")...)
		expected = append(expected, popDLines()...)
		expected = append(expected, "@StaticTest.3", "M=D")
		expected = append(expected, "@StaticTest.3", "D=M")
		expected = append(expected, pushDLines()...)
		test("StaticTest", "push constant 5\npop static 3\npush static 3\n", expected)
	})

	t.Run("GotoTest", func(t *testing.T) {
		expected := []string{"(GotoTest.LOOP)", "@GotoTest.LOOP", "0;JMP"}
		test("GotoTest", "label LOOP\ngoto LOOP\n", expected)
	})

	t.Run("EqTest", func(t *testing.T) {
		var expected []string
		expected = append(expected, pushConstLines("1")...)
		expected = append(expected, pushConstLines("1")...)
		expected = append(expected,
			"@SP", "AM=M-1", "D=M", "A=A-1", "D=M-D",
			"@EqTest.CMP.0.TRUE", "D;JEQ",
			"@SP", "A=M-1", "M=0",
			"@EqTest.CMP.0.END", "0;JMP",
			"(EqTest.CMP.0.TRUE)",
			"@SP", "A=M-1", "M=-1",
			"(EqTest.CMP.0.END)",
		)
		test("EqTest", "push constant 1\npush constant 1\neq\n", expected)
	})
}

func TestVMTranslatorBootstrap(t *testing.T) {
	dir := t.TempDir()
	mainVM := filepath.Join(dir, "Main.vm")
	sysVM := filepath.Join(dir, "Sys.vm")
	output := filepath.Join(dir, "out.asm")

	if err := os.WriteFile(mainVM, []byte("push constant 0\n"), 0644); err != nil {
		t.Fatalf("failed to write Main.vm: %v", err)
	}
	if err := os.WriteFile(sysVM, []byte("function Sys.init 0\n"), 0644); err != nil {
		t.Fatalf("failed to write Sys.vm: %v", err)
	}

	// Bootstrap is implied whenever more than one input file is given.
	status := Handler([]string{mainVM, sysVM}, map[string]string{"output": output})
	if status != 0 {
		t.Fatalf("unexpected exit status code: expected 0 got %d", status)
	}

	var expected []string
	expected = append(expected, "@256", "D=A", "@SP", "M=D")
	for _, reg := range []string{"LCL", "ARG", "THIS", "THAT"} {
		expected = append(expected, "@"+reg, "M=-1")
	}
	// call Sys.init 0
	expected = append(expected, "@Sys.init$ret.0", "D=A")
	expected = append(expected, pushDLines()...)
	expected = append(expected, pushRegLines("LCL")...)
	expected = append(expected, pushRegLines("ARG")...)
	expected = append(expected, pushRegLines("THIS")...)
	expected = append(expected, pushRegLines("THAT")...)
	expected = append(expected, "@SP", "D=M", "@5", "D=D-A", "@ARG", "M=D")
	expected = append(expected, "@SP", "D=M", "@LCL", "M=D")
	expected = append(expected, "@Sys.init", "0;JMP")
	expected = append(expected, "(Sys.init$ret.0)")
	// Modules processed in sorted file-label order: Main, then Sys.
	expected = append(expected, pushConstLines("0")...)
	expected = append(expected, "(Sys.init)")

	assertLines(t, readLines(t, output), expected)
}
