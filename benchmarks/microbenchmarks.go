package benchmarks

import "github.com/armvm/armvm/insts"

// sramBase is the scratch area the memory benchmarks address through a
// literal pool entry.
const sramBase uint32 = 0x20000000

// GetMicrobenchmarks returns the standard set of microbenchmarks. Each one
// stresses a different part of the execute path.
func GetMicrobenchmarks() []Benchmark {
	return []Benchmark{
		arithmeticSequential(),
		dependencyChain(),
		countdownLoop(),
		memorySequential(),
		functionCalls(),
		branchTaken(),
		stackPush(),
		mixedWorkload(),
	}
}

// GetCoreBenchmarks returns a minimal set for quick validation: a loop, a
// call-heavy program and branch-heavy code.
func GetCoreBenchmarks() []Benchmark {
	return []Benchmark{
		countdownLoop(),
		functionCalls(),
		branchTaken(),
	}
}

// 1. Arithmetic Sequential - independent MOVS feeding an ORRS accumulator
func arithmeticSequential() Benchmark {
	return Benchmark{
		Name:        "arithmetic_sequential",
		Description: "17 MOVS/ORRS operations accumulating bits into R0",
		Program: BuildProgram(
			EncodeMOVImm(0, 0),
			EncodeMOVImm(1, 1),
			EncodeMOVImm(2, 2),
			EncodeMOVImm(3, 4),
			EncodeMOVImm(4, 8),
			EncodeORRReg(0, 1),
			EncodeORRReg(0, 2),
			EncodeORRReg(0, 3),
			EncodeORRReg(0, 4),
			EncodeMOVImm(1, 16),
			EncodeMOVImm(2, 32),
			EncodeMOVImm(3, 64),
			EncodeMOVImm(4, 128),
			EncodeORRReg(0, 1),
			EncodeORRReg(0, 2),
			EncodeORRReg(0, 3),
			EncodeORRReg(0, 4),
			Halt,
		),
		ExpectedResult:       255,
		ExpectedInstructions: 18,
	}
}

// 2. Dependency Chain - every shift reads the previous result
func dependencyChain() Benchmark {
	return Benchmark{
		Name:                 "dependency_chain",
		Description:          "10 dependent LSLS (R0 = R0 << 1)",
		Program:              buildDependencyChain(10),
		ExpectedResult:       1 << 10,
		ExpectedInstructions: 12,
	}
}

func buildDependencyChain(n int) []byte {
	hws := make([]uint16, 0, n+2)
	hws = append(hws, EncodeMOVImm(0, 1))
	for i := 0; i < n; i++ {
		hws = append(hws, EncodeLSLImm(0, 0, 1))
	}
	hws = append(hws, Halt)
	return BuildProgram(hws...)
}

// 3. Countdown Loop - SUBS/CMP/BNE
func countdownLoop() Benchmark {
	return Benchmark{
		Name:        "countdown_loop",
		Description: "100 iterations of SUBS, CMP and a taken BNE",
		Program: BuildProgram(
			EncodeMOVImm(0, 100),          // 0x00
			EncodeSUBImm(0, 1),            // 0x02 loop:
			EncodeCMPImm(0, 0),            // 0x04
			EncodeBCond(insts.CondNE, -8), // 0x06 BNE loop
			Halt,                          // 0x08
		),
		ExpectedResult:       0,
		ExpectedInstructions: 302,
	}
}

// 4. Memory Sequential - store/load pairs to consecutive words of SRAM
func memorySequential() Benchmark {
	hws := []uint16{
		EncodeLDRLit(1, 36), // 0x00 R1 = literal at 0x28
		EncodeMOVImm(0, 42), // 0x02
	}
	for off := uint16(0); off < 32; off += 4 {
		hws = append(hws, EncodeSTRImm(0, 1, off), EncodeLDRImm(0, 1, off))
	}
	hws = append(hws, Halt, 0) // 0x24, padding at 0x26
	hws = append(hws, Word(sramBase)...)

	return Benchmark{
		Name:                 "memory_sequential",
		Description:          "8 STR/LDR pairs to sequential SRAM words",
		Program:              BuildProgram(hws...),
		ExpectedResult:       42,
		ExpectedInstructions: 19,
	}
}

// 5. Function Calls - BL and return through MOV PC, LR
func functionCalls() Benchmark {
	hws := []uint16{
		EncodeMOVImm(0, 0), // 0x00
		EncodeMOVImm(1, 1), // 0x02
	}
	hws = append(hws, EncodeBL(10)...) // 0x04 BL step
	hws = append(hws, EncodeBL(6)...)  // 0x08 BL step
	hws = append(hws, EncodeBL(2)...)  // 0x0c BL step
	hws = append(hws,
		Halt,                  // 0x10
		EncodeLSLImm(0, 0, 1), // 0x12 step:
		EncodeORRReg(0, 1),    // 0x14
		EncodeMOVReg(15, 14),  // 0x16 MOV PC, LR
	)

	return Benchmark{
		Name:                 "function_calls",
		Description:          "3 calls to a leaf routine shifting a bit into R0",
		Program:              BuildProgram(hws...),
		ExpectedResult:       7,
		ExpectedInstructions: 15,
	}
}

// 6. Branch Taken - unconditional and conditional branches over dead code
func branchTaken() Benchmark {
	hws := []uint16{EncodeMOVImm(0, 7)}
	for i := 0; i < 5; i++ {
		hws = append(hws, EncodeB(0), EncodeMOVImm(0, 0xFF))
	}
	for i := 0; i < 5; i++ {
		hws = append(hws,
			EncodeCMPImm(0, 7),
			EncodeBCond(insts.CondEQ, 0),
			EncodeMOVImm(0, 0xFF),
		)
	}
	hws = append(hws, Halt)

	return Benchmark{
		Name:                 "branch_taken",
		Description:          "5 B and 5 taken BEQ, each skipping a MOVS",
		Program:              BuildProgram(hws...),
		ExpectedResult:       7,
		ExpectedInstructions: 17,
	}
}

// 7. Stack Push - PUSH and SP arithmetic, read back through a low register
func stackPush() Benchmark {
	return Benchmark{
		Name:        "stack_push",
		Description: "2 PUSH {R0-R3}, SUB SP and a load from the stack",
		Program: BuildProgram(
			EncodeMOVImm(0, 5),
			EncodeMOVImm(1, 6),
			EncodeMOVImm(2, 7),
			EncodeMOVImm(3, 8),
			EncodePUSH(0x0F),
			EncodePUSH(0x0F),
			EncodeSUBSP(8),
			EncodeMOVReg(4, 13), // MOV R4, SP
			EncodeMOVImm(0, 0),
			EncodeLDRImm(0, 4, 20), // pushed R3
			Halt,
		),
		ExpectedResult:       8,
		ExpectedInstructions: 11,
	}
}

// 8. Mixed Workload - a loop of stores, loads, ORRS and a countdown
func mixedWorkload() Benchmark {
	hws := []uint16{
		EncodeLDRLit(1, 16),            // 0x00 R1 = literal at 0x14
		EncodeMOVImm(0, 8),             // 0x02
		EncodeMOVImm(3, 0),             // 0x04
		EncodeSTRImm(0, 1, 0),          // 0x06 loop:
		EncodeLDRImm(2, 1, 0),          // 0x08
		EncodeORRReg(3, 2),             // 0x0a
		EncodeSUBImm(0, 1),             // 0x0c
		EncodeBCond(insts.CondNE, -12), // 0x0e BNE loop
		EncodeMOVReg(0, 3),             // 0x10
		Halt,                           // 0x12
	}
	hws = append(hws, Word(sramBase)...)

	return Benchmark{
		Name:                 "mixed_workload",
		Description:          "8 iterations of STR, LDR, ORRS and SUBS/BNE",
		Program:              BuildProgram(hws...),
		ExpectedResult:       15,
		ExpectedInstructions: 45,
	}
}
