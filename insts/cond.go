package insts

// APSR condition flag masks within the program status register.
const (
	APSRN    uint32 = 1 << 31 // Negative
	APSRZ    uint32 = 1 << 30 // Zero
	APSRC    uint32 = 1 << 29 // Carry
	APSRV    uint32 = 1 << 28 // Overflow
	APSRMask uint32 = APSRN | APSRZ | APSRC | APSRV
)

// Cond represents a Thumb condition code.
type Cond uint8

// Condition codes. Odd codes below AL negate the preceding even code.
const (
	CondEQ        Cond = 0b0000 // Equal (Z == 1)
	CondNE        Cond = 0b0001 // Not Equal (Z == 0)
	CondCS        Cond = 0b0010 // Carry Set / Unsigned higher or same (C == 1)
	CondCC        Cond = 0b0011 // Carry Clear / Unsigned lower (C == 0)
	CondMI        Cond = 0b0100 // Minus / Negative (N == 1)
	CondPL        Cond = 0b0101 // Plus / Positive or zero (N == 0)
	CondVS        Cond = 0b0110 // Overflow (V == 1)
	CondVC        Cond = 0b0111 // No overflow (V == 0)
	CondHI        Cond = 0b1000 // Unsigned higher (C == 1 && Z == 0)
	CondLS        Cond = 0b1001 // Unsigned lower or same (C == 0 || Z == 1)
	CondGE        Cond = 0b1010 // Signed greater than or equal (N == V)
	CondLT        Cond = 0b1011 // Signed less than (N != V)
	CondGT        Cond = 0b1100 // Signed greater than (Z == 0 && N == V)
	CondLE        Cond = 0b1101 // Signed less than or equal (Z == 1 || N != V)
	CondAL        Cond = 0b1110 // Always
	CondUndefined Cond = 0b1111
)

var condNames = [...]string{
	"EQ", "NE", "CS", "CC", "MI", "PL", "VS", "VC",
	"HI", "LS", "GE", "LT", "GT", "LE", "AL",
}

func (c Cond) String() string {
	if int(c) < len(condNames) {
		return condNames[c]
	}
	return "<unknown condition>"
}

// ConditionPassed evaluates cond against the N, Z, C and V flags held in
// bits 31:28 of apsr.
func ConditionPassed(apsr uint32, cond Cond) bool {
	n := apsr&APSRN != 0
	z := apsr&APSRZ != 0
	c := apsr&APSRC != 0
	v := apsr&APSRV != 0

	var result bool
	switch (cond >> 1) & 0b111 {
	case 0b000:
		result = z
	case 0b001:
		result = c
	case 0b010:
		result = n
	case 0b011:
		result = v
	case 0b100:
		result = c && !z
	case 0b101:
		result = n == v
	case 0b110:
		result = n == v && !z
	case 0b111:
		result = true
	}

	if cond&1 == 1 && cond != CondUndefined {
		result = !result
	}

	return result
}
