package ir

import "github.com/gogpu/glesvk/shader"

// Symbol adds a reference to v.
func (t *Tree) Symbol(v *Variable) NodeID {
	return t.Add(v.Type, Symbol{Variable: v})
}

// Float adds a float constant.
func (t *Tree) Float(f float32) NodeID {
	return t.Add(Scalar(TypeFloat).WithQualifier(QualConst).WithPrecision(shader.PrecisionHigh),
		ConstantUnion{Values: []ConstantValue{{Basic: TypeFloat, Float: f}}})
}

// Int adds an int constant.
func (t *Tree) Int(i int32) NodeID {
	return t.Add(Scalar(TypeInt).WithQualifier(QualConst).WithPrecision(shader.PrecisionHigh),
		ConstantUnion{Values: []ConstantValue{{Basic: TypeInt, Int: i}}})
}

// UInt adds a uint constant.
func (t *Tree) UInt(u uint32) NodeID {
	return t.Add(Scalar(TypeUInt).WithQualifier(QualConst).WithPrecision(shader.PrecisionHigh),
		ConstantUnion{Values: []ConstantValue{{Basic: TypeUInt, UInt: u}}})
}

// Bool adds a bool constant.
func (t *Tree) Bool(b bool) NodeID {
	return t.Add(Scalar(TypeBool).WithQualifier(QualConst),
		ConstantUnion{Values: []ConstantValue{{Basic: TypeBool, Bool: b}}})
}

// FloatVec adds a float vector constant.
func (t *Tree) FloatVec(values ...float32) NodeID {
	cv := make([]ConstantValue, len(values))
	for i, f := range values {
		cv[i] = ConstantValue{Basic: TypeFloat, Float: f}
	}
	typ := Vec(TypeFloat, uint8(len(values))).WithQualifier(QualConst).WithPrecision(shader.PrecisionHigh) //nolint:gosec // G115: at most 4 components
	return t.Add(typ, ConstantUnion{Values: cv})
}

// Binary adds a binary operation whose result type is derived from the
// operands.
func (t *Tree) Binary(op Op, left, right NodeID) NodeID {
	var typ Type
	if op == OpIndexDirectStruct || op == OpIndexDirectInterfaceBlock {
		typ = FieldResultType(t.TypeOf(left), t.ConstantInt(right))
	} else {
		typ = BinaryResultType(op, t.TypeOf(left), t.TypeOf(right))
	}
	return t.Add(typ, Binary{Op: op, Left: left, Right: right})
}

// ConstantInt returns the first component of a constant node as an int,
// or -1 when id is not an integer constant.
func (t *Tree) ConstantInt(id NodeID) int {
	cu, ok := t.Inner(id).(ConstantUnion)
	if !ok || len(cu.Values) == 0 {
		return -1
	}
	switch v := cu.Values[0]; v.Basic {
	case TypeInt:
		return int(v.Int)
	case TypeUInt:
		return int(v.UInt)
	default:
		return -1
	}
}

// Assign adds left = right.
func (t *Tree) Assign(left, right NodeID) NodeID {
	return t.Binary(OpAssign, left, right)
}

// Unary adds a unary operation.
func (t *Tree) Unary(op Op, operand NodeID) NodeID {
	typ := t.TypeOf(operand)
	if op == OpLogicalNot {
		typ = Scalar(TypeBool)
	}
	typ.Qualifier = QualTemporary
	return t.Add(typ, Unary{Op: op, Operand: operand})
}

// Swizzle adds a component selection of operand.
func (t *Tree) Swizzle(operand NodeID, offsets ...uint8) NodeID {
	typ := t.TypeOf(operand).ScalarOf()
	typ.PrimarySize = uint8(len(offsets)) //nolint:gosec // G115: swizzles have at most 4 components
	return t.Add(typ, Swizzle{Operand: operand, Offsets: offsets})
}

// Index adds operand[index] with a constant index.
func (t *Tree) Index(operand NodeID, index int32) NodeID {
	return t.Binary(OpIndexDirect, operand, t.Int(index))
}

// IndexIndirect adds operand[index] with a computed index.
func (t *Tree) IndexIndirect(operand, index NodeID) NodeID {
	return t.Binary(OpIndexIndirect, operand, index)
}

// Field adds a field selection by index on a struct or block value.
func (t *Tree) Field(operand NodeID, index int) NodeID {
	op := OpIndexDirectStruct
	if t.TypeOf(operand).Block != nil {
		op = OpIndexDirectInterfaceBlock
	}
	return t.Binary(op, operand, t.Int(int32(index))) //nolint:gosec // G115: field counts are small
}

// Construct adds a constructor call producing typ.
func (t *Tree) Construct(typ Type, args ...NodeID) NodeID {
	typ.Qualifier = QualTemporary
	return t.Add(typ, Aggregate{Op: AggConstruct, Args: args})
}

// CallBuiltIn adds a call to a built-in function returning ret.
func (t *Tree) CallBuiltIn(name string, ret Type, args ...NodeID) NodeID {
	ret.Qualifier = QualTemporary
	return t.Add(ret, Aggregate{Op: AggCallBuiltIn, Name: name, Args: args})
}

// Call adds a call to fn.
func (t *Tree) Call(fn *Function, args ...NodeID) NodeID {
	ret := fn.ReturnType
	ret.Qualifier = QualTemporary
	return t.Add(ret, Aggregate{Op: AggCallFunction, Function: fn, Name: fn.Name, Args: args})
}

// Declare adds a declaration of v with an optional initializer.
func (t *Tree) Declare(v *Variable, init NodeID) NodeID {
	return t.Add(Void, Declaration{Variable: v, Init: init})
}

// NewBlock adds a block of statements.
func (t *Tree) NewBlock(stmts ...NodeID) NodeID {
	return t.Add(Void, Block{Statements: stmts})
}

// If adds an if statement. then and els must be blocks; els may be NoNode.
func (t *Tree) If(cond, then, els NodeID) NodeID {
	return t.Add(Void, IfElse{Cond: cond, Then: then, Else: els})
}

// Discard adds a discard statement.
func (t *Tree) Discard() NodeID {
	return t.Add(Void, Branch{Op: BranchDiscard})
}

// Return adds a return statement; value may be NoNode.
func (t *Tree) Return(value NodeID) NodeID {
	return t.Add(Void, Branch{Op: BranchReturn, Value: value})
}

// Define adds a function definition.
func (t *Tree) Define(fn *Function, body NodeID) NodeID {
	return t.Add(Void, FunctionDefinition{Function: fn, Body: body})
}

// NewLoop adds a loop statement.
func (t *Tree) NewLoop(kind LoopKind, init, cond, expr, body NodeID) NodeID {
	return t.Add(Void, Loop{Kind: kind, Init: init, Cond: cond, Expr: expr, Body: body})
}

// BinaryResultType computes the type of left op right.
//
//nolint:gocyclo,cyclop // operator typing rules
func BinaryResultType(op Op, left, right Type) Type {
	var res Type
	switch {
	case op.IsAssignment():
		res = left
	case op.IsComparison(), op.IsLogical():
		res = Scalar(TypeBool)
	case op == OpComma:
		res = right
	case op == OpIndexDirect || op == OpIndexIndirect:
		res = left.ElementType()
	case op == OpMul && left.IsMatrix() && right.IsVector():
		res = Vec(TypeFloat, left.SecondarySize)
	case op == OpMul && left.IsVector() && right.IsMatrix():
		res = Vec(TypeFloat, right.PrimarySize)
	case op == OpMul && left.IsMatrix() && right.IsMatrix():
		res = Mat(right.PrimarySize, left.SecondarySize)
	case left.IsScalar() && !right.IsScalar():
		res = right
	default:
		res = left
	}
	if !op.IsAssignment() {
		res.Qualifier = QualTemporary
		res.Layout = DefaultLayout()
	}
	if res.Precision == shader.PrecisionUndefined || right.Precision > res.Precision {
		if res.Basic != TypeBool && !op.IsIndex() {
			res.Precision = max(left.Precision, right.Precision)
		}
	}
	return res
}

// FieldResultType returns the type of field index of a struct or block value.
func FieldResultType(left Type, index int) Type {
	var fields []Field
	switch {
	case left.Struct != nil:
		fields = left.Struct.Fields
	case left.Block != nil:
		fields = left.Block.Fields
	}
	if index < 0 || index >= len(fields) {
		return Void
	}
	ft := fields[index].Type
	ft.Qualifier = QualTemporary
	return ft
}
