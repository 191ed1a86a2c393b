// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package glsl

import (
	"fmt"
	"strings"

	"github.com/gogpu/glesvk/ir"
	"github.com/gogpu/glesvk/shader"
)

// typeName returns the GLSL type name without array suffixes.
func (w *Writer) typeName(t ir.Type) string {
	switch {
	case t.Struct != nil:
		return w.mapName(t.Struct.Name, t.Struct.SymbolType)
	case t.Block != nil:
		return w.mapName(t.Block.Name, t.Block.SymbolType)
	default:
		return t.Name()
	}
}

// arraySuffix returns the array dimensions outermost first. Runtime
// sized dimensions are written as "[]".
func arraySuffix(t ir.Type) string {
	if len(t.ArraySizes) == 0 {
		return ""
	}
	var sb strings.Builder
	for i := len(t.ArraySizes) - 1; i >= 0; i-- {
		if t.ArraySizes[i] == 0 {
			sb.WriteString("[]")
			continue
		}
		fmt.Fprintf(&sb, "[%d]", t.ArraySizes[i])
	}
	return sb.String()
}

// precisionString returns the precision qualifier of t, or "" for types
// that do not take one.
func precisionString(t ir.Type) string {
	if t.Precision == shader.PrecisionUndefined {
		return ""
	}
	switch t.Basic {
	case ir.TypeBool, ir.TypeVoid, ir.TypeStruct, ir.TypeInterfaceBlock, ir.TypeAtomicCounter:
		return ""
	}
	return t.Precision.String()
}

// layoutString returns "layout(...)" for the qualifiers set in l.
func layoutString(l ir.Layout) string {
	var parts []string
	if l.Location >= 0 {
		parts = append(parts, fmt.Sprintf("location = %d", l.Location))
	}
	if l.Index >= 0 {
		parts = append(parts, fmt.Sprintf("index = %d", l.Index))
	}
	if l.Set >= 0 {
		parts = append(parts, fmt.Sprintf("set = %d", l.Set))
	}
	if l.Binding >= 0 {
		parts = append(parts, fmt.Sprintf("binding = %d", l.Binding))
	}
	if l.Offset >= 0 {
		parts = append(parts, fmt.Sprintf("offset = %d", l.Offset))
	}
	if l.ConstantID >= 0 {
		parts = append(parts, fmt.Sprintf("constant_id = %d", l.ConstantID))
	}
	if l.HasStorage {
		parts = append(parts, l.Storage.String())
	}
	switch l.Packing {
	case ir.PackingRowMajor:
		parts = append(parts, "row_major")
	case ir.PackingColumnMajor:
		parts = append(parts, "column_major")
	}
	if l.Format != "" {
		parts = append(parts, l.Format)
	}
	if len(parts) == 0 {
		return ""
	}
	return "layout(" + strings.Join(parts, ", ") + ")"
}

// formatFloat formats a float32 for GLSL output.
func formatFloat(f float32) string {
	s := fmt.Sprintf("%g", f)
	// Ensure it has a decimal point or exponent
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}
