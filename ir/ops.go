package ir

// Op is a unary or binary operator.
type Op uint8

const (
	OpAdd Op = iota
	OpSub
	OpMul
	OpDiv
	OpMod

	OpAssign
	OpAddAssign
	OpSubAssign
	OpMulAssign
	OpDivAssign

	OpEqual
	OpNotEqual
	OpLess
	OpGreater
	OpLessEqual
	OpGreaterEqual

	OpLogicalAnd
	OpLogicalOr
	OpLogicalXor

	OpBitAnd
	OpBitOr
	OpBitXor
	OpShiftLeft
	OpShiftRight

	OpIndexDirect
	OpIndexIndirect
	OpIndexDirectStruct
	OpIndexDirectInterfaceBlock

	OpComma

	OpNegative
	OpPositive
	OpLogicalNot
	OpBitwiseNot
	OpPostIncrement
	OpPostDecrement
	OpPreIncrement
	OpPreDecrement
)

var opTokens = [...]string{
	OpAdd:           "+",
	OpSub:           "-",
	OpMul:           "*",
	OpDiv:           "/",
	OpMod:           "%",
	OpAssign:        "=",
	OpAddAssign:     "+=",
	OpSubAssign:     "-=",
	OpMulAssign:     "*=",
	OpDivAssign:     "/=",
	OpEqual:         "==",
	OpNotEqual:      "!=",
	OpLess:          "<",
	OpGreater:       ">",
	OpLessEqual:     "<=",
	OpGreaterEqual:  ">=",
	OpLogicalAnd:    "&&",
	OpLogicalOr:     "||",
	OpLogicalXor:    "^^",
	OpBitAnd:        "&",
	OpBitOr:         "|",
	OpBitXor:        "^",
	OpShiftLeft:     "<<",
	OpShiftRight:    ">>",
	OpComma:         ",",
	OpNegative:      "-",
	OpPositive:      "+",
	OpLogicalNot:    "!",
	OpBitwiseNot:    "~",
	OpPostIncrement: "++",
	OpPostDecrement: "--",
	OpPreIncrement:  "++",
	OpPreDecrement:  "--",
}

// String returns the GLSL token of the operator. Indexing operators have
// no token and return their name.
func (o Op) String() string {
	switch o {
	case OpIndexDirect:
		return "index"
	case OpIndexIndirect:
		return "index-indirect"
	case OpIndexDirectStruct:
		return "field"
	case OpIndexDirectInterfaceBlock:
		return "block-field"
	}
	if int(o) < len(opTokens) {
		return opTokens[o]
	}
	return "?"
}

// IsAssignment reports whether o writes its left operand.
func (o Op) IsAssignment() bool {
	return o >= OpAssign && o <= OpDivAssign
}

// IsComparison reports whether o yields a bool from two operands.
func (o Op) IsComparison() bool {
	return o >= OpEqual && o <= OpGreaterEqual
}

// IsLogical reports whether o is a logical operator on bools.
func (o Op) IsLogical() bool {
	return o >= OpLogicalAnd && o <= OpLogicalXor
}

// IsIndex reports whether o selects an element or field.
func (o Op) IsIndex() bool {
	return o >= OpIndexDirect && o <= OpIndexDirectInterfaceBlock
}

// IsArithmetic reports whether o is an arithmetic or bitwise operator.
func (o Op) IsArithmetic() bool {
	return (o >= OpAdd && o <= OpMod) || (o >= OpBitAnd && o <= OpShiftRight)
}

// IsUnary reports whether o takes a single operand.
func (o Op) IsUnary() bool {
	return o >= OpNegative
}

// IsPostfix reports whether a unary operator is written after its operand.
func (o Op) IsPostfix() bool {
	return o == OpPostIncrement || o == OpPostDecrement
}

// WritesOperand reports whether a unary operator modifies its operand.
func (o Op) WritesOperand() bool {
	return o >= OpPostIncrement
}
