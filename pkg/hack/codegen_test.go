package hack_test

import (
	"fmt"
	"testing"

	"hmy.dev/n2t-toolchain/pkg/diag"
	"hmy.dev/n2t-toolchain/pkg/hack"
)

func TestGenerateAInst(t *testing.T) {
	table := hack.SymbolTable{"Test1": 0, "Test2": 67, "hmny": 9393, "n2t": 754, "JUMP": 90}
	codegen := hack.NewCodeGenerator(nil, table)

	test := func(inst hack.AInstruction, expected string, fail bool) {
		res, err := codegen.GenerateAInst(inst)
		if !fail && res != expected {
			t.Errorf("GenerateAInst(%+v) = %q, want %q", inst, res, expected)
		}
		if fail && err == nil {
			t.Errorf("GenerateAInst(%+v) = %q, want an error", inst, res)
		}
		if !fail && err != nil {
			t.Errorf("GenerateAInst(%+v) returned unexpected error: %v", inst, err)
		}
	}

	t.Run("Raw memory access", func(t *testing.T) {
		// A raw address must be strictly below 2^15, since only 15 bits are
		// available to index the Hack memory from an A instruction.
		test(hack.AInstruction{LocType: hack.Raw, LocName: "38"}, fmt.Sprintf("%016b", 38), false)
		test(hack.AInstruction{LocType: hack.Raw, LocName: "42"}, fmt.Sprintf("%016b", 42), false)
		test(hack.AInstruction{LocType: hack.Raw, LocName: "64"}, fmt.Sprintf("%016b", 64), false)
		test(hack.AInstruction{LocType: hack.Raw, LocName: "128"}, fmt.Sprintf("%016b", 128), false)
		test(hack.AInstruction{LocType: hack.Raw, LocName: "32768"}, "", true)
		// Out of bound and malformed addresses.
		test(hack.AInstruction{LocType: hack.Raw, LocName: "65538"}, "", true)
		test(hack.AInstruction{LocType: hack.Raw, LocName: "70000"}, "", true)
		test(hack.AInstruction{LocType: hack.Raw, LocName: "-1"}, "", true)
		test(hack.AInstruction{LocType: hack.Raw, LocName: "abc"}, "", true)
	})

	t.Run("Hack built-in labels", func(t *testing.T) {
		test(hack.AInstruction{LocType: hack.BuiltIn, LocName: "SP"}, fmt.Sprintf("%016b", 0), false)
		test(hack.AInstruction{LocType: hack.BuiltIn, LocName: "LCL"}, fmt.Sprintf("%016b", 1), false)
		test(hack.AInstruction{LocType: hack.BuiltIn, LocName: "ARG"}, fmt.Sprintf("%016b", 2), false)
		test(hack.AInstruction{LocType: hack.BuiltIn, LocName: "THIS"}, fmt.Sprintf("%016b", 3), false)
		test(hack.AInstruction{LocType: hack.BuiltIn, LocName: "THAT"}, fmt.Sprintf("%016b", 4), false)
		test(hack.AInstruction{LocType: hack.BuiltIn, LocName: "R3"}, fmt.Sprintf("%016b", 3), false)
		test(hack.AInstruction{LocType: hack.BuiltIn, LocName: "R13"}, fmt.Sprintf("%016b", 13), false)
		test(hack.AInstruction{LocType: hack.BuiltIn, LocName: "KBD"}, fmt.Sprintf("%016b", 24576), false)
		test(hack.AInstruction{LocType: hack.BuiltIn, LocName: "SCREEN"}, fmt.Sprintf("%016b", 16384), false)
		test(hack.AInstruction{LocType: hack.BuiltIn, LocName: "NOTREAL"}, "", true)
	})

	t.Run("User-defined labels", func(t *testing.T) {
		test(hack.AInstruction{LocType: hack.Label, LocName: "Test1"}, fmt.Sprintf("%016b", table["Test1"]), false)
		test(hack.AInstruction{LocType: hack.Label, LocName: "hmny"}, fmt.Sprintf("%016b", table["hmny"]), false)
		test(hack.AInstruction{LocType: hack.Label, LocName: "JUMP"}, fmt.Sprintf("%016b", table["JUMP"]), false)
	})

	t.Run("Free variable allocation", func(t *testing.T) {
		// Unknown labels are allocated starting at RAM address 16 on first
		// use and must resolve to the same address on every later reference.
		fresh := hack.NewCodeGenerator(nil, hack.SymbolTable{})
		check := func(inst hack.AInstruction, expected string) {
			res, err := fresh.GenerateAInst(inst)
			if res != expected || err != nil {
				t.Errorf("GenerateAInst(%+v) = (%q, %v), want (%q, nil)", inst, res, err, expected)
			}
		}
		check(hack.AInstruction{LocType: hack.Label, LocName: "i"}, fmt.Sprintf("%016b", 16))
		check(hack.AInstruction{LocType: hack.Label, LocName: "j"}, fmt.Sprintf("%016b", 17))
		check(hack.AInstruction{LocType: hack.Label, LocName: "i"}, fmt.Sprintf("%016b", 16))
	})
}

func TestGenerateCInst(t *testing.T) {
	codegen := hack.NewCodeGenerator(nil, nil)

	test := func(inst hack.CInstruction, expected string, fail bool) {
		res, err := codegen.GenerateCInst(inst)
		if !fail {
			if res != expected {
				t.Errorf("GenerateCInst(%+v) = %q, want %q", inst, res, expected)
			}
			if err != nil {
				t.Errorf("GenerateCInst(%+v) returned unexpected error: %v", inst, err)
			}
			return
		}
		if err == nil {
			t.Errorf("GenerateCInst(%+v) = %q, want an error", inst, res)
		} else if kind, ok := diag.KindOf(err); !ok || kind != diag.Encoding {
			t.Errorf("GenerateCInst(%+v) returned error not tagged diag.Encoding: %v", inst, err)
		}
	}

	t.Run("Comps and Jumps", func(t *testing.T) {
		test(hack.CInstruction{Comp: "M", Jump: ""}, "1111110000000000", false)
		test(hack.CInstruction{Comp: "0", Jump: "JGT"}, "1110101010000001", false)
		test(hack.CInstruction{Comp: "1", Jump: "JEQ"}, "1110111111000010", false)
		test(hack.CInstruction{Comp: "-1", Jump: "JEQ"}, "1110111010000010", false)
		test(hack.CInstruction{Comp: "!A", Jump: "JLT"}, "1110110001000100", false)
		test(hack.CInstruction{Comp: "D+1", Jump: "JMP"}, "1110011111000111", false)
	})

	t.Run("Comps and Dests", func(t *testing.T) {
		test(hack.CInstruction{Comp: "D+A", Dest: ""}, "1110000010000000", false)
		test(hack.CInstruction{Comp: "D-A", Dest: "M"}, "1110010011001000", false)
		test(hack.CInstruction{Comp: "D&A", Dest: "A"}, "1110000000100000", false)
		test(hack.CInstruction{Comp: "D|A", Dest: "MD"}, "1110010101011000", false)
		test(hack.CInstruction{Comp: "-1", Dest: "AMD"}, "1110111010111000", false)
	})

	t.Run("Dest, Comp and Jump together", func(t *testing.T) {
		// A C instruction can legally carry both a destination and a jump
		// (e.g. 'D=D-1;JGT'); neither half may be silently dropped.
		test(hack.CInstruction{Comp: "D-1", Dest: "D", Jump: "JGT"}, "1110001110010001", false)
		test(hack.CInstruction{Comp: "M+1", Dest: "AM", Jump: "JMP"}, "1111110111101111", false)
	})

	t.Run("Invalid opcodes", func(t *testing.T) {
		test(hack.CInstruction{Comp: ""}, "", true)
		test(hack.CInstruction{Comp: "D%A"}, "", true)
		test(hack.CInstruction{Comp: "0", Dest: "ZZZ"}, "", true)
		test(hack.CInstruction{Comp: "0", Jump: "ZZZ"}, "", true)
	})
}

func TestGenerateProgram(t *testing.T) {
	program := hack.Program{
		hack.AInstruction{LocType: hack.Raw, LocName: "2"},
		hack.CInstruction{Comp: "D+A", Dest: "D"},
		hack.AInstruction{LocType: hack.BuiltIn, LocName: "SP"},
		hack.CInstruction{Comp: "D", Dest: "M"},
	}
	codegen := hack.NewCodeGenerator(program, hack.SymbolTable{})

	out, err := codegen.Generate()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != len(program) {
		t.Fatalf("expected %d lines, got %d", len(program), len(out))
	}
	for _, line := range out {
		if len(line) != 16 {
			t.Errorf("expected a 16 bit line, got %q", line)
		}
	}
}
