package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestHackAssembler(t *testing.T) {
	test := func(name, source, expected string) {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			input := filepath.Join(dir, name+".asm")
			output := filepath.Join(dir, name+".hack")

			if err := os.WriteFile(input, []byte(source), 0644); err != nil {
				t.Fatalf("failed to write input fixture: %v", err)
			}

			status := Handler([]string{input, output}, nil)
			if status != 0 {
				t.Fatalf("unexpected exit status code: expected 0 got %d", status)
			}

			got, err := os.ReadFile(output)
			if err != nil {
				t.Fatalf("error reading output file %s: %v", output, err)
			}

			want := strings.TrimLeft(expected, "\n")
			if string(got) != want {
				t.Fatalf("output mismatch\n got:\n%s\nwant:\n%s", got, want)
			}
		})
	}

	test("Add", `
// Computes R0 = 2 + 3
@2
D=A
@3
D=D+A
@0
M=D
`, `
0000000000000010
1110110000010000
0000000000000011
1110000010010000
0000000000000000
1110001100001000
`)

	test("Max", `
// Computes R2 = max(R0, R1)
@0
D=M
@1
D=D-M
@ELSE
D;JGT
@1
D=M
@OUTPUT
0;JMP
(ELSE)
@0
D=M
(OUTPUT)
@2
M=D
`, `
0000000000000000
1111110000010000
0000000000000001
1111010011010000
0000000000001010
1110001100000001
0000000000000001
1111110000010000
0000000000001100
1110101010000111
0000000000000000
1111110000010000
0000000000000010
1110001100001000
`)

	test("FreeVariables", `
// Uses two new variables, allocated starting at RAM[16]
@i
M=0
@sum
M=0
@i
D=M
@sum
M=D+M
`, `
0000000000010000
1110101010001000
0000000000010001
1110101010001000
0000000000010000
1111110000010000
0000000000010001
1111000010001000
`)
}
