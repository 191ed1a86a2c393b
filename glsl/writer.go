// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package glsl

import (
	"fmt"
	"strings"

	"github.com/gogpu/glesvk/ir"
	"github.com/gogpu/glesvk/shader"
)

// Writer generates GLSL source code from a tree.
type Writer struct {
	tree    *ir.Tree
	options *Options

	// Output buffer
	out strings.Builder

	// Current indentation level
	indent int

	// Name management
	names map[string]string

	// Structs already declared
	structs map[*ir.Struct]bool

	// Descriptor tracking
	bindings []Binding

	xfbPlaceholders bool
}

// newWriter creates a new GLSL writer.
func newWriter(tree *ir.Tree, options *Options) *Writer {
	return &Writer{
		tree:    tree,
		options: options,
		names:   make(map[string]string),
		structs: make(map[*ir.Struct]bool),
	}
}

// String returns the generated GLSL source code.
func (w *Writer) String() string {
	return w.out.String()
}

// writeTree generates GLSL code for the whole shader.
func (w *Writer) writeTree() error {
	// 1. Version and extension directives
	w.writeLine("#version %d core", w.options.Version)
	for _, ext := range w.options.Extensions {
		w.writeLine("#extension %s : require", ext)
	}
	w.writeLine("")

	// 2. Stage layouts
	w.writeStageLayouts()

	// 3. Transform feedback declarations
	if w.options.XfbPlaceholders {
		w.writeLine("%s", XfbDeclPlaceholder)
		w.xfbPlaceholders = true
	}

	// 4. Globals and functions in tree order
	for _, s := range w.tree.Statements(w.tree.Root) {
		switch n := w.tree.Inner(s).(type) {
		case ir.Declaration:
			if err := w.writeGlobalDeclaration(n); err != nil {
				return err
			}
		case ir.FunctionDefinition:
			if err := w.writeFunction(n); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unexpected %T at global scope", n)
		}
	}
	return nil
}

// writeStageLayouts writes the input and output layout declarations that
// apply to the whole stage.
func (w *Writer) writeStageLayouts() {
	wrote := false
	switch w.options.Stage {
	case shader.StageFragment:
		if w.options.EarlyFragmentTests {
			w.writeLine("layout(early_fragment_tests) in;")
			wrote = true
		}
	case shader.StageGeometry:
		g := w.options.Geometry
		if g == nil {
			break
		}
		if g.Input != shader.PrimitiveUndefined {
			if g.Invocations > 1 {
				w.writeLine("layout(%s, invocations = %d) in;", g.Input, g.Invocations)
			} else {
				w.writeLine("layout(%s) in;", g.Input)
			}
			wrote = true
		}
		if g.Output != shader.PrimitiveUndefined {
			w.writeLine("layout(%s, max_vertices = %d) out;", g.Output, max(1, g.MaxVertices))
			wrote = true
		}
	case shader.StageCompute:
		s := w.options.WorkGroupSize
		if s.IsDeclared() {
			s = s.Resolved()
			w.writeLine("layout(local_size_x = %d, local_size_y = %d, local_size_z = %d) in;", s[0], s[1], s[2])
			wrote = true
		}
	}
	if wrote {
		w.writeLine("")
	}
}

// writeGlobalDeclaration writes one global variable or block, preceded
// by the struct types it needs.
func (w *Writer) writeGlobalDeclaration(d ir.Declaration) error {
	v := d.Variable
	if v == nil {
		return fmt.Errorf("declaration without variable")
	}
	if err := w.checkName(v.Name, v.SymbolType); err != nil {
		return err
	}
	if err := w.writeStructsOf(v.Type); err != nil {
		return err
	}
	if v.Type.Block != nil {
		return w.writeInterfaceBlock(v)
	}

	w.recordBinding(v.Name, v.Type.Layout)
	decl := w.declarationString(v)
	if d.Init != ir.NoNode {
		init, err := w.expr(d.Init)
		if err != nil {
			return err
		}
		decl += " = " + init
	}
	w.writeLine("%s;", decl)
	return nil
}

// writeInterfaceBlock writes a uniform or buffer block. Blocks declared
// through an empty symbol are instanceless.
func (w *Writer) writeInterfaceBlock(v *ir.Variable) error {
	b := v.Type.Block
	layout := b.Layout
	layout.HasStorage = true
	if layout.Storage != shader.LayoutStd430 {
		layout.Storage = shader.LayoutStd140
	}
	w.recordBinding(b.Name, layout)

	storage := "uniform"
	if b.BlockType == shader.BlockBuffer {
		storage = "buffer"
	}
	var prefix strings.Builder
	if q := layoutString(layout); q != "" {
		prefix.WriteString(q + " ")
	}
	if v.Type.ReadOnly {
		prefix.WriteString("readonly ")
	}
	if v.Type.WriteOnly {
		prefix.WriteString("writeonly ")
	}
	w.writeLine("%s%s %s", prefix.String(), storage, w.mapName(b.Name, b.SymbolType))
	w.writeLine("{")
	w.pushIndent()
	for _, f := range b.Fields {
		w.writeField(f)
	}
	w.popIndent()
	if v.SymbolType == ir.SymbolEmpty || v.Name == "" {
		w.writeLine("};")
	} else {
		w.writeLine("} %s%s;", w.mapName(v.Name, v.SymbolType), arraySuffix(v.Type))
	}
	w.writeLine("")
	return nil
}

// writeStructsOf declares every struct reachable from t that has not
// been declared yet, inner structs first.
func (w *Writer) writeStructsOf(t ir.Type) error {
	var fields []ir.Field
	switch {
	case t.Struct != nil:
		s := t.Struct
		if w.structs[s] || s.SymbolType == ir.SymbolBuiltIn {
			return nil
		}
		for _, f := range s.Fields {
			if err := w.writeStructsOf(f.Type); err != nil {
				return err
			}
		}
		if err := w.checkName(s.Name, s.SymbolType); err != nil {
			return err
		}
		w.structs[s] = true
		w.writeLine("struct %s", w.mapName(s.Name, s.SymbolType))
		w.writeLine("{")
		w.pushIndent()
		for _, f := range s.Fields {
			w.writeField(f)
		}
		w.popIndent()
		w.writeLine("};")
		w.writeLine("")
		return nil
	case t.Block != nil:
		fields = t.Block.Fields
	}
	for _, f := range fields {
		if err := w.writeStructsOf(f.Type); err != nil {
			return err
		}
	}
	return nil
}

// writeField writes one struct or block member.
func (w *Writer) writeField(f ir.Field) {
	var sb strings.Builder
	if q := layoutString(f.Type.Layout); q != "" {
		sb.WriteString(q + " ")
	}
	if p := precisionString(f.Type); p != "" {
		sb.WriteString(p + " ")
	}
	sb.WriteString(w.typeName(f.Type))
	sb.WriteString(" ")
	sb.WriteString(w.mapName(f.Name, f.SymbolType))
	sb.WriteString(arraySuffix(f.Type))
	w.writeLine("%s;", sb.String())
}

// writeFunction writes a function definition.
func (w *Writer) writeFunction(def ir.FunctionDefinition) error {
	fn := def.Function
	if fn == nil {
		return fmt.Errorf("function definition without function")
	}
	if err := w.checkName(fn.Name, fn.SymbolType); err != nil {
		return err
	}
	if err := w.writeStructsOf(fn.ReturnType); err != nil {
		return err
	}
	params := make([]string, len(fn.Params))
	for i, p := range fn.Params {
		if err := w.writeStructsOf(p.Type); err != nil {
			return err
		}
		params[i] = w.declarationString(p)
	}
	w.writeLine("%s %s(%s)", w.typeName(fn.ReturnType)+arraySuffix(fn.ReturnType), w.functionName(fn), strings.Join(params, ", "))
	if err := w.writeBody(def.Body); err != nil {
		return fmt.Errorf("function %s: %w", fn.Name, err)
	}
	w.writeLine("")
	return nil
}

// functionName returns the written name of a user or internal function.
func (w *Writer) functionName(fn *ir.Function) string {
	if fn.Name == "main" {
		return "main"
	}
	return w.mapName(fn.Name, fn.SymbolType)
}

// declarationString returns "qualifiers type name[N]" for v.
func (w *Writer) declarationString(v *ir.Variable) string {
	t := v.Type
	var sb strings.Builder
	if q := layoutString(t.Layout); q != "" && t.Qualifier != ir.QualTemporary {
		sb.WriteString(q + " ")
	}
	if t.Invariant {
		sb.WriteString("invariant ")
	}
	if t.Interpolation != shader.InterpolationSmooth && isVarying(t.Qualifier) {
		sb.WriteString(t.Interpolation.String() + " ")
	}
	if t.ReadOnly {
		sb.WriteString("readonly ")
	}
	if t.WriteOnly {
		sb.WriteString("writeonly ")
	}
	if s := t.Qualifier.String(); s != "" {
		sb.WriteString(s + " ")
	}
	if p := precisionString(t); p != "" {
		sb.WriteString(p + " ")
	}
	sb.WriteString(w.typeName(t))
	sb.WriteString(" ")
	sb.WriteString(w.mapName(v.Name, v.SymbolType))
	sb.WriteString(arraySuffix(t))
	return sb.String()
}

func isVarying(q ir.Qualifier) bool {
	return q == ir.QualVaryingIn || q == ir.QualVaryingOut
}

// recordBinding remembers a descriptor declaration.
func (w *Writer) recordBinding(name string, l ir.Layout) {
	if l.Binding < 0 {
		return
	}
	w.bindings = append(w.bindings, Binding{Name: name, Set: max(l.Set, 0), Binding: l.Binding})
}

// mapName returns the written identifier and records user mappings.
func (w *Writer) mapName(name string, st ir.SymbolType) string {
	if st != ir.SymbolUserDefined {
		return name
	}
	if mapped, ok := w.names[name]; ok {
		return mapped
	}
	mapped := MappedName(name, *w.options)
	w.names[name] = mapped
	return mapped
}

// checkName rejects internal names that collide with reserved words.
func (w *Writer) checkName(name string, st ir.SymbolType) error {
	if st == ir.SymbolInternal && isKeyword(name) {
		return fmt.Errorf("internal name %q is reserved", name)
	}
	return nil
}

// writeLine writes a formatted line with indentation.
func (w *Writer) writeLine(format string, args ...any) {
	if format != "" {
		w.writeIndent()
	}
	if len(args) == 0 {
		w.out.WriteString(format)
	} else {
		fmt.Fprintf(&w.out, format, args...)
	}
	w.out.WriteByte('\n')
}

// writeIndent writes the current indentation.
func (w *Writer) writeIndent() {
	for i := 0; i < w.indent; i++ {
		w.out.WriteString("    ")
	}
}

// pushIndent increases indentation.
func (w *Writer) pushIndent() {
	w.indent++
}

// popIndent decreases indentation.
func (w *Writer) popIndent() {
	if w.indent > 0 {
		w.indent--
	}
}
