package asm_test

import (
	"testing"

	"hmy.dev/n2t-toolchain/pkg/asm"
)

func TestLowerRejectsRedefinedPredefinedSymbol(t *testing.T) {
	program := asm.Program{
		asm.LabelDecl{Name: "SP"},
		asm.CInstruction{Comp: "0"},
	}

	lowerer := asm.NewLowerer(program)
	if _, _, err := lowerer.Lower(); err == nil {
		t.Fatalf("expected an error when a label redefines a predefined symbol, got none")
	}
}

func TestLowerRejectsDuplicateLabel(t *testing.T) {
	program := asm.Program{
		asm.LabelDecl{Name: "LOOP"},
		asm.CInstruction{Comp: "0"},
		asm.LabelDecl{Name: "LOOP"},
		asm.CInstruction{Comp: "0"},
	}

	lowerer := asm.NewLowerer(program)
	if _, _, err := lowerer.Lower(); err == nil {
		t.Fatalf("expected an error for a duplicate label declaration, got none")
	}
}

func TestLowerAcceptsDistinctLabels(t *testing.T) {
	program := asm.Program{
		asm.LabelDecl{Name: "LOOP"},
		asm.CInstruction{Comp: "0"},
		asm.AInstruction{Location: "LOOP"},
		asm.LabelDecl{Name: "END"},
		asm.CInstruction{Comp: "0"},
	}

	lowerer := asm.NewLowerer(program)
	_, table, err := lowerer.Lower()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if table["LOOP"] != 0 {
		t.Errorf("expected 'LOOP' to resolve to instruction 0, got %d", table["LOOP"])
	}
	if table["END"] != 2 {
		t.Errorf("expected 'END' to resolve to instruction 2, got %d", table["END"])
	}
}
