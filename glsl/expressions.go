// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package glsl

import (
	"fmt"
	"math"
	"strings"

	"github.com/gogpu/glesvk/ir"
)

// legacyBuiltIns maps GLSL ES 1.00 texture functions to their core names.
var legacyBuiltIns = map[string]string{
	"texture2D":            "texture",
	"texture2DProj":        "textureProj",
	"texture2DLod":         "textureLod",
	"texture2DProjLod":     "textureProjLod",
	"textureCube":          "texture",
	"textureCubeLod":       "textureLod",
	"texture2DLodEXT":      "textureLod",
	"texture2DProjLodEXT":  "textureProjLod",
	"textureCubeLodEXT":    "textureLod",
	"texture2DGradEXT":     "textureGrad",
	"texture2DProjGradEXT": "textureProjGrad",
	"textureCubeGradEXT":   "textureGrad",
	"texture3D":            "texture",
	"texture3DLod":         "textureLod",
	"texture3DProj":        "textureProj",
	"shadow2DEXT":          "texture",
	"shadow2DProjEXT":      "textureProj",
}

// swizzleLetters spells component offsets.
const swizzleLetters = "xyzw"

// expr returns the GLSL text of an expression. Operators are fully
// parenthesized so precedence never depends on the reader.
//
//nolint:gocyclo,cyclop // one case per node kind
func (w *Writer) expr(id ir.NodeID) (string, error) {
	switch n := w.tree.Inner(id).(type) {
	case ir.Symbol:
		if n.Variable == nil {
			return "", fmt.Errorf("symbol %d without variable", id)
		}
		return w.mapName(n.Variable.Name, n.Variable.SymbolType), nil

	case ir.ConstantUnion:
		return w.constant(w.tree.TypeOf(id), n)

	case ir.Binary:
		return w.binary(n)

	case ir.Unary:
		operand, err := w.expr(n.Operand)
		if err != nil {
			return "", err
		}
		if n.Op.IsPostfix() {
			return "(" + operand + n.Op.String() + ")", nil
		}
		return "(" + n.Op.String() + operand + ")", nil

	case ir.Swizzle:
		operand, err := w.expr(n.Operand)
		if err != nil {
			return "", err
		}
		var sb strings.Builder
		sb.WriteString(operand)
		sb.WriteByte('.')
		for _, o := range n.Offsets {
			if int(o) >= len(swizzleLetters) {
				return "", fmt.Errorf("swizzle offset %d out of range", o)
			}
			sb.WriteByte(swizzleLetters[o])
		}
		return sb.String(), nil

	case ir.Aggregate:
		return w.aggregate(id, n)

	case nil:
		return "", fmt.Errorf("expression %d has no payload", id)

	default:
		return "", fmt.Errorf("%T is not an expression", n)
	}
}

// binary writes a binary operator, index or field selection.
func (w *Writer) binary(b ir.Binary) (string, error) {
	if b.Op.IsAssignment() {
		s, err := w.assignment(b)
		if err != nil {
			return "", err
		}
		return "(" + s + ")", nil
	}

	left, err := w.expr(b.Left)
	if err != nil {
		return "", err
	}
	switch b.Op {
	case ir.OpIndexDirectStruct, ir.OpIndexDirectInterfaceBlock:
		return w.field(b, left)
	case ir.OpIndexDirect, ir.OpIndexIndirect:
		index, err := w.expr(b.Right)
		if err != nil {
			return "", err
		}
		return left + "[" + index + "]", nil
	}

	right, err := w.expr(b.Right)
	if err != nil {
		return "", err
	}
	if b.Op == ir.OpComma {
		return "(" + left + ", " + right + ")", nil
	}
	return "(" + left + " " + b.Op.String() + " " + right + ")", nil
}

// assignment writes "left op right" without outer parentheses.
func (w *Writer) assignment(b ir.Binary) (string, error) {
	left, err := w.expr(b.Left)
	if err != nil {
		return "", err
	}
	right, err := w.expr(b.Right)
	if err != nil {
		return "", err
	}
	return left + " " + b.Op.String() + " " + right, nil
}

// field writes a struct or block member selection. Members of
// instanceless blocks are referenced by bare name.
func (w *Writer) field(b ir.Binary, left string) (string, error) {
	lt := w.tree.TypeOf(b.Left)
	var fields []ir.Field
	switch {
	case lt.Struct != nil:
		fields = lt.Struct.Fields
	case lt.Block != nil:
		fields = lt.Block.Fields
	default:
		return "", fmt.Errorf("field selection on %s", lt)
	}
	i := w.tree.ConstantInt(b.Right)
	if i < 0 || i >= len(fields) {
		return "", fmt.Errorf("field index %d out of range for %s", i, lt)
	}
	f := fields[i]
	name := w.mapName(f.Name, f.SymbolType)
	if s, ok := w.tree.Inner(b.Left).(ir.Symbol); ok && s.Variable != nil && s.Variable.SymbolType == ir.SymbolEmpty {
		return name, nil
	}
	return left + "." + name, nil
}

// aggregate writes a constructor or function call.
func (w *Writer) aggregate(id ir.NodeID, a ir.Aggregate) (string, error) {
	args := make([]string, len(a.Args))
	for i, arg := range a.Args {
		s, err := w.expr(arg)
		if err != nil {
			return "", err
		}
		args[i] = s
	}
	var callee string
	switch a.Op {
	case ir.AggConstruct:
		t := w.tree.TypeOf(id)
		callee = w.typeName(t) + arraySuffix(t)
	case ir.AggCallFunction:
		if a.Function == nil {
			return "", fmt.Errorf("call to %s without function", a.Name)
		}
		callee = w.functionName(a.Function)
	case ir.AggCallBuiltIn:
		callee = a.Name
		if core, ok := legacyBuiltIns[a.Name]; ok {
			callee = core
		}
	default:
		return "", fmt.Errorf("unknown aggregate op %d", a.Op)
	}
	return callee + "(" + strings.Join(args, ", ") + ")", nil
}

// constant writes a literal, or a constructor for multi-component values.
func (w *Writer) constant(t ir.Type, c ir.ConstantUnion) (string, error) {
	if len(c.Values) == 0 {
		return "", fmt.Errorf("empty constant")
	}
	parts := make([]string, len(c.Values))
	for i, v := range c.Values {
		parts[i] = scalarLiteral(v)
	}
	if len(parts) == 1 && (t.IsScalar() || t.Basic == ir.TypeVoid) {
		return parts[0], nil
	}
	return w.typeName(t) + "(" + strings.Join(parts, ", ") + ")", nil
}

// scalarLiteral returns the GLSL spelling of one constant component.
func scalarLiteral(v ir.ConstantValue) string {
	switch v.Basic {
	case ir.TypeBool:
		if v.Bool {
			return "true"
		}
		return "false"
	case ir.TypeInt:
		return fmt.Sprintf("%d", v.Int)
	case ir.TypeUInt:
		return fmt.Sprintf("%du", v.UInt)
	default:
		f := v.Float
		switch {
		case math.IsNaN(float64(f)):
			return "uintBitsToFloat(0x7fc00000u)"
		case math.IsInf(float64(f), 1):
			return "uintBitsToFloat(0x7f800000u)"
		case math.IsInf(float64(f), -1):
			return "uintBitsToFloat(0xff800000u)"
		}
		return formatFloat(f)
	}
}
