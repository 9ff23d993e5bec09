package vm

import (
	"fmt"
	"sort"

	"hmy.dev/n2t-toolchain/pkg/asm"
	"hmy.dev/n2t-toolchain/pkg/diag"
)

// segmentBase maps a real (non-virtual, non-constant) memory segment to the
// pointer register holding its base address.
var segmentBase = map[SegmentType]string{
	Local:    "LCL",
	Argument: "ARG",
	This:     "THIS",
	That:     "THAT",
}

// compareJump maps a comparison operator to the jump mnemonic used once the
// operands have been subtracted into D (x - y, x below y on the stack).
var compareJump = map[ArithOpType]string{
	Eq: "JEQ",
	Lt: "JLT",
	Gt: "JGT",
}

// binaryComp maps a binary arithmetic/logic operator to its comp mnemonic,
// assuming D holds the top operand and M the one below it.
var binaryComp = map[ArithOpType]string{
	Add: "D+M",
	Sub: "M-D",
	And: "D&M",
	Or:  "D|M",
}

// unaryComp maps a unary operator to its comp mnemonic, applied in place to
// the stack's top element.
var unaryComp = map[ArithOpType]string{
	Neg: "-M",
	Not: "!M",
}

// ----------------------------------------------------------------------------
// Vm Lowerer

// The Lowerer takes one or more already-parsed 'vm.Module's (one per source file,
// keyed by file label) and produces the combined 'asm.Program' implementing the
// stack machine's calling convention: memory segment access, the 9 stack ops,
// program flow (label/goto/if-goto, namespaced per file to avoid cross-file
// collisions) and the function/call/return convention.
//
// When Bootstrap is set the emitted program first initializes SP/LCL/ARG/THIS/THAT
// and calls 'Sys.init', matching how a multi-file VM Translator run bootstraps a
// full Jack program; a single hand-written .vm test file typically opts out.
type Lowerer struct {
	program   Program
	bootstrap bool
}

// Initializes and returns to the caller a brand new 'Lowerer' struct.
func NewLowerer(p Program, bootstrap bool) Lowerer {
	return Lowerer{program: p, bootstrap: bootstrap}
}

// Triggers the lowering process. Modules are processed in a fixed (alphabetical)
// order by file label so that generated labels and call-site counters stay
// reproducible across runs, mirroring the deterministic ordering the Jack Lowerer
// already enforces on classes.
func (l *Lowerer) Lowerer() (asm.Program, error) {
	if len(l.program) == 0 {
		return nil, diag.New(diag.InvalidInput, "the given 'program' is empty")
	}
	if l.bootstrap {
		if _, found := l.program["Sys"]; !found {
			return nil, diag.New(diag.InvalidInput, "bootstrap mode requires a 'Sys' module defining 'Sys.init'")
		}
	}

	fileLabels := make([]string, 0, len(l.program))
	for fileLabel := range l.program {
		fileLabels = append(fileLabels, fileLabel)
	}
	sort.Strings(fileLabels)

	var out asm.Program
	callCounts := map[string]int{}

	if l.bootstrap {
		out = append(out, bootstrapPrelude()...)
		callInst, err := lowerCall(FuncCallOp{Name: "Sys.init", NArgs: 0}, callCounts)
		if err != nil {
			return nil, err
		}
		out = append(out, callInst...)
	}

	for _, fileLabel := range fileLabels {
		cmpCounter := 0
		for _, op := range l.program[fileLabel] {
			inst, err := lowerOperation(op, fileLabel, &cmpCounter, callCounts)
			if err != nil {
				return nil, err
			}
			out = append(out, inst...)
		}
	}

	return out, nil
}

// lowerOperation dispatches a single vm.Operation to its dedicated lowering
// helper. Kept as a free function (rather than a Lowerer method) since none of
// the per-operation helpers need the Lowerer's own state, only the file-scoped
// state threaded explicitly by the caller (the comparison counter and the
// cross-file call-site counters).
func lowerOperation(op Operation, fileLabel string, cmpCounter *int, callCounts map[string]int) ([]asm.Instruction, error) {
	switch tOp := op.(type) {
	case MemoryOp:
		return lowerMemoryOp(tOp, fileLabel)
	case ArithmeticOp:
		return lowerArithmeticOp(tOp, fileLabel, cmpCounter)
	case LabelDecl:
		return []asm.Instruction{asm.LabelDecl{Name: fmt.Sprintf("%s.%s", fileLabel, tOp.Name)}}, nil
	case GotoOp:
		return lowerGotoOp(tOp, fileLabel)
	case FuncDecl:
		return lowerFuncDecl(tOp)
	case FuncCallOp:
		return lowerCall(tOp, callCounts)
	case ReturnOp:
		return lowerReturn(), nil
	default:
		return nil, diag.New(diag.Syntax, fmt.Sprintf("unrecognized operation '%T'", op))
	}
}

// ----------------------------------------------------------------------------
// Shared stack primitives

// pushD appends the value currently in the D register to the top of the stack
// and advances the stack pointer.
func pushD() []asm.Instruction {
	return []asm.Instruction{
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Comp: "M", Dest: "A"},
		asm.CInstruction{Comp: "D", Dest: "M"},
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Comp: "M+1", Dest: "M"},
	}
}

// popD decrements the stack pointer and loads the popped value into D, leaving
// A pointed at the popped slot.
func popD() []asm.Instruction {
	return []asm.Instruction{
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Comp: "M-1", Dest: "AM"},
		asm.CInstruction{Comp: "M", Dest: "D"},
	}
}

// ----------------------------------------------------------------------------
// Memory Op

func lowerMemoryOp(op MemoryOp, fileLabel string) ([]asm.Instruction, error) {
	switch op.Segment {
	case Constant:
		if op.Operation != Push {
			return nil, diag.New(diag.Syntax, "the 'constant' segment only supports 'push'")
		}
		inst := []asm.Instruction{
			asm.AInstruction{Location: fmt.Sprint(op.Offset)},
			asm.CInstruction{Comp: "A", Dest: "D"},
		}
		return append(inst, pushD()...), nil

	case Local, Argument, This, That:
		return lowerOffsetSegment(op, segmentBase[op.Segment])

	case Static:
		location := fmt.Sprintf("%s.%d", fileLabel, op.Offset)
		return lowerDirectSegment(op, location)

	case Pointer:
		if op.Offset > 1 {
			return nil, diag.New(diag.Syntax, fmt.Sprintf("invalid 'pointer' offset, got %d", op.Offset))
		}
		location := "THIS"
		if op.Offset == 1 {
			location = "THAT"
		}
		return lowerDirectSegment(op, location)

	case Temp:
		if op.Offset > 7 {
			return nil, diag.New(diag.Syntax, fmt.Sprintf("invalid 'temp' offset, got %d", op.Offset))
		}
		return lowerDirectSegment(op, fmt.Sprint(5+op.Offset))

	default:
		return nil, diag.New(diag.Syntax, fmt.Sprintf("unrecognized segment '%s'", op.Segment))
	}
}

// lowerOffsetSegment handles push/pop for the segments addressed through a base
// pointer register plus a variable offset (local, argument, this, that).
func lowerOffsetSegment(op MemoryOp, base string) ([]asm.Instruction, error) {
	computeAddress := []asm.Instruction{
		asm.AInstruction{Location: base},
		asm.CInstruction{Comp: "M", Dest: "D"},
		asm.AInstruction{Location: fmt.Sprint(op.Offset)},
		asm.CInstruction{Comp: "D+A", Dest: "D"},
	}

	if op.Operation == Push {
		inst := append(computeAddress, asm.CInstruction{Comp: "D", Dest: "A"}, asm.CInstruction{Comp: "M", Dest: "D"})
		return append(inst, pushD()...), nil
	}
	if op.Operation == Pop {
		inst := append(computeAddress, asm.AInstruction{Location: "R13"}, asm.CInstruction{Comp: "D", Dest: "M"})
		inst = append(inst, popD()...)
		inst = append(inst, asm.AInstruction{Location: "R13"}, asm.CInstruction{Comp: "M", Dest: "A"}, asm.CInstruction{Comp: "D", Dest: "M"})
		return inst, nil
	}
	return nil, diag.New(diag.Syntax, fmt.Sprintf("unrecognized OperationType '%s'", op.Operation))
}

// lowerDirectSegment handles push/pop for segments addressed by a fixed raw
// location known at lowering time (static, pointer, temp), with no offset
// arithmetic required.
func lowerDirectSegment(op MemoryOp, location string) ([]asm.Instruction, error) {
	if op.Operation == Push {
		inst := []asm.Instruction{asm.AInstruction{Location: location}, asm.CInstruction{Comp: "M", Dest: "D"}}
		return append(inst, pushD()...), nil
	}
	if op.Operation == Pop {
		inst := popD()
		return append(inst, asm.AInstruction{Location: location}, asm.CInstruction{Comp: "D", Dest: "M"}), nil
	}
	return nil, diag.New(diag.Syntax, fmt.Sprintf("unrecognized OperationType '%s'", op.Operation))
}

// ----------------------------------------------------------------------------
// Arithmetic Op

func lowerArithmeticOp(op ArithmeticOp, fileLabel string, cmpCounter *int) ([]asm.Instruction, error) {
	if comp, found := binaryComp[op.Operation]; found {
		return []asm.Instruction{
			asm.AInstruction{Location: "SP"},
			asm.CInstruction{Comp: "M-1", Dest: "AM"},
			asm.CInstruction{Comp: "M", Dest: "D"},
			asm.CInstruction{Comp: "A-1", Dest: "A"},
			asm.CInstruction{Comp: comp, Dest: "M"},
		}, nil
	}

	if comp, found := unaryComp[op.Operation]; found {
		return []asm.Instruction{
			asm.AInstruction{Location: "SP"},
			asm.CInstruction{Comp: "M-1", Dest: "A"},
			asm.CInstruction{Comp: comp, Dest: "M"},
		}, nil
	}

	if jump, found := compareJump[op.Operation]; found {
		n := *cmpCounter
		*cmpCounter++
		trueLabel := fmt.Sprintf("%s.CMP.%d.TRUE", fileLabel, n)
		endLabel := fmt.Sprintf("%s.CMP.%d.END", fileLabel, n)

		return []asm.Instruction{
			asm.AInstruction{Location: "SP"},
			asm.CInstruction{Comp: "M-1", Dest: "AM"},
			asm.CInstruction{Comp: "M", Dest: "D"},
			asm.CInstruction{Comp: "A-1", Dest: "A"},
			asm.CInstruction{Comp: "M-D", Dest: "D"},
			asm.AInstruction{Location: trueLabel},
			asm.CInstruction{Comp: "D", Jump: jump},
			asm.AInstruction{Location: "SP"},
			asm.CInstruction{Comp: "M-1", Dest: "A"},
			asm.CInstruction{Comp: "0", Dest: "M"},
			asm.AInstruction{Location: endLabel},
			asm.CInstruction{Comp: "0", Jump: "JMP"},
			asm.LabelDecl{Name: trueLabel},
			asm.AInstruction{Location: "SP"},
			asm.CInstruction{Comp: "M-1", Dest: "A"},
			asm.CInstruction{Comp: "-1", Dest: "M"},
			asm.LabelDecl{Name: endLabel},
		}, nil
	}

	return nil, diag.New(diag.Syntax, fmt.Sprintf("unrecognized ArithOpType '%s'", op.Operation))
}

// ----------------------------------------------------------------------------
// Program flow

func lowerGotoOp(op GotoOp, fileLabel string) ([]asm.Instruction, error) {
	target := fmt.Sprintf("%s.%s", fileLabel, op.Label)

	switch op.Jump {
	case Goto:
		return []asm.Instruction{
			asm.AInstruction{Location: target},
			asm.CInstruction{Comp: "0", Jump: "JMP"},
		}, nil
	case IfGoto:
		inst := popD()
		return append(inst, asm.AInstruction{Location: target}, asm.CInstruction{Comp: "D", Jump: "JNE"}), nil
	default:
		return nil, diag.New(diag.Syntax, fmt.Sprintf("unrecognized JumpType '%s'", op.Jump))
	}
}

// ----------------------------------------------------------------------------
// Function declaration, call and return

func lowerFuncDecl(op FuncDecl) ([]asm.Instruction, error) {
	if op.Name == "" {
		return nil, diag.New(diag.Syntax, "unable to lower a function declaration with no name")
	}

	inst := []asm.Instruction{asm.LabelDecl{Name: op.Name}}
	zero := []asm.Instruction{asm.AInstruction{Location: "0"}, asm.CInstruction{Comp: "A", Dest: "D"}}
	for i := uint16(0); i < op.NLocal; i++ {
		inst = append(inst, zero...)
		inst = append(inst, pushD()...)
	}
	return inst, nil
}

// pushRegister appends the contents of a segment pointer (LCL, ARG, THIS, THAT)
// to the stack, used while saving the caller's frame in lowerCall.
func pushRegister(name string) []asm.Instruction {
	inst := []asm.Instruction{asm.AInstruction{Location: name}, asm.CInstruction{Comp: "M", Dest: "D"}}
	return append(inst, pushD()...)
}

func lowerCall(op FuncCallOp, callCounts map[string]int) ([]asm.Instruction, error) {
	if op.Name == "" {
		return nil, diag.New(diag.Syntax, "unable to lower a function call with no callee name")
	}

	count := callCounts[op.Name]
	callCounts[op.Name] = count + 1
	returnLabel := fmt.Sprintf("%s$ret.%d", op.Name, count)

	var inst []asm.Instruction
	// Save the return address and the caller's frame (retAddr, LCL, ARG, THIS, THAT).
	inst = append(inst, asm.AInstruction{Location: returnLabel}, asm.CInstruction{Comp: "A", Dest: "D"})
	inst = append(inst, pushD()...)
	inst = append(inst, pushRegister("LCL")...)
	inst = append(inst, pushRegister("ARG")...)
	inst = append(inst, pushRegister("THIS")...)
	inst = append(inst, pushRegister("THAT")...)

	// ARG = SP - 5 - nArgs
	inst = append(inst,
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Comp: "M", Dest: "D"},
		asm.AInstruction{Location: fmt.Sprint(5 + op.NArgs)},
		asm.CInstruction{Comp: "D-A", Dest: "D"},
		asm.AInstruction{Location: "ARG"},
		asm.CInstruction{Comp: "D", Dest: "M"},
	)
	// LCL = SP
	inst = append(inst,
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Comp: "M", Dest: "D"},
		asm.AInstruction{Location: "LCL"},
		asm.CInstruction{Comp: "D", Dest: "M"},
	)
	// goto callee, then declare the return label right after.
	inst = append(inst,
		asm.AInstruction{Location: op.Name},
		asm.CInstruction{Comp: "0", Jump: "JMP"},
		asm.LabelDecl{Name: returnLabel},
	)

	return inst, nil
}

// restoreFromFrame pops one saved segment pointer off the callee's frame
// (addressed through R13, walked backward one slot at a time) into 'dest'.
func restoreFromFrame(dest string) []asm.Instruction {
	return []asm.Instruction{
		asm.AInstruction{Location: "R13"},
		asm.CInstruction{Comp: "M-1", Dest: "AM"},
		asm.CInstruction{Comp: "M", Dest: "D"},
		asm.AInstruction{Location: dest},
		asm.CInstruction{Comp: "D", Dest: "M"},
	}
}

func lowerReturn() []asm.Instruction {
	var inst []asm.Instruction

	// R13 (frame) = LCL
	inst = append(inst, asm.AInstruction{Location: "LCL"}, asm.CInstruction{Comp: "M", Dest: "D"},
		asm.AInstruction{Location: "R13"}, asm.CInstruction{Comp: "D", Dest: "M"})
	// R14 (retAddr) = *(frame - 5)
	inst = append(inst, asm.AInstruction{Location: "R13"}, asm.CInstruction{Comp: "M", Dest: "D"},
		asm.AInstruction{Location: "5"}, asm.CInstruction{Comp: "D-A", Dest: "A"}, asm.CInstruction{Comp: "M", Dest: "D"},
		asm.AInstruction{Location: "R14"}, asm.CInstruction{Comp: "D", Dest: "M"})
	// *ARG = pop()
	inst = append(inst, popD()...)
	inst = append(inst, asm.AInstruction{Location: "ARG"}, asm.CInstruction{Comp: "M", Dest: "A"}, asm.CInstruction{Comp: "D", Dest: "M"})
	// SP = ARG + 1
	inst = append(inst, asm.AInstruction{Location: "ARG"}, asm.CInstruction{Comp: "M+1", Dest: "D"},
		asm.AInstruction{Location: "SP"}, asm.CInstruction{Comp: "D", Dest: "M"})
	// Restore THAT, THIS, ARG, LCL from the frame, walking backward.
	inst = append(inst, restoreFromFrame("THAT")...)
	inst = append(inst, restoreFromFrame("THIS")...)
	inst = append(inst, restoreFromFrame("ARG")...)
	inst = append(inst, restoreFromFrame("LCL")...)
	// goto retAddr
	inst = append(inst, asm.AInstruction{Location: "R14"}, asm.CInstruction{Comp: "M", Dest: "A"}, asm.CInstruction{Comp: "0", Jump: "JMP"})

	return inst
}

// bootstrapPrelude initializes SP to 256 and the segment pointers to their
// sentinel values before the bootstrap 'call Sys.init 0' is appended. The
// sentinels use the ALU's own '-1' constant rather than a raw negative address
// literal, which the Assembler rejects.
func bootstrapPrelude() []asm.Instruction {
	inst := []asm.Instruction{
		asm.AInstruction{Location: "256"},
		asm.CInstruction{Comp: "A", Dest: "D"},
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Comp: "D", Dest: "M"},
	}
	for _, reg := range []string{"LCL", "ARG", "THIS", "THAT"} {
		inst = append(inst, asm.AInstruction{Location: reg}, asm.CInstruction{Comp: "-1", Dest: "M"})
	}
	return inst
}
