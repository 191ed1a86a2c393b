// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package translator

import (
	"slices"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/glesvk/glsl"
	"github.com/gogpu/glesvk/ir"
	"github.com/gogpu/glesvk/shader"
)

// imageFormats maps GLSL image format qualifiers to texture formats.
var imageFormats = map[string]gputypes.TextureFormat{
	"r32f":        gputypes.TextureFormatR32Float,
	"r32ui":       gputypes.TextureFormatR32Uint,
	"r32i":        gputypes.TextureFormatR32Sint,
	"rgba8":       gputypes.TextureFormatRGBA8Unorm,
	"rgba8_snorm": gputypes.TextureFormatRGBA8Snorm,
	"rgba8ui":     gputypes.TextureFormatRGBA8Uint,
	"rgba8i":      gputypes.TextureFormatRGBA8Sint,
	"rgba16f":     gputypes.TextureFormatRGBA16Float,
	"rgba16ui":    gputypes.TextureFormatRGBA16Uint,
	"rgba16i":     gputypes.TextureFormatRGBA16Sint,
	"rgba32f":     gputypes.TextureFormatRGBA32Float,
	"rgba32ui":    gputypes.TextureFormatRGBA32Uint,
	"rgba32i":     gputypes.TextureFormatRGBA32Sint,
}

// collector builds the introspection record of a loaded tree. Names are
// recorded as declared, before any pass renames or removes them.
type collector struct {
	tree  *ir.Tree
	names glsl.Options
	info  *shader.Compiled
	uses  map[*ir.Variable]int
}

// Collect returns the interface variables, blocks and layouts of tree.
// Each record is active when the shader references it.
func Collect(tree *ir.Tree, stage shader.Stage, version int, names glsl.Options, layouts Layouts) *shader.Compiled {
	c := &collector{
		tree:  tree,
		names: names,
		info:  shader.NewCompiled(stage, version),
		uses:  make(map[*ir.Variable]int),
	}
	var builtins []*ir.Variable
	tree.Walk(tree.Root, func(id ir.NodeID, _ []ir.NodeID) bool {
		s, ok := tree.Inner(id).(ir.Symbol)
		if !ok || s.Variable == nil {
			return true
		}
		if c.uses[s.Variable] == 0 && s.Variable.SymbolType == ir.SymbolBuiltIn {
			builtins = append(builtins, s.Variable)
		}
		c.uses[s.Variable]++
		return true
	})

	for _, v := range tree.GlobalDeclarations() {
		switch v.SymbolType {
		case ir.SymbolUserDefined, ir.SymbolEmpty:
			c.add(v)
		case ir.SymbolBuiltIn:
			// A redeclared built-in is recorded with its declared type
			// even when unused.
			if !slices.Contains(builtins, v) {
				builtins = append(builtins, v)
			}
		}
	}
	for _, v := range builtins {
		c.add(v)
	}

	switch stage {
	case shader.StageGeometry:
		c.info.Geometry = layouts.Geometry
	case shader.StageCompute:
		if layouts.WorkGroupSize.IsDeclared() {
			c.info.WorkGroupSize = layouts.WorkGroupSize
		}
	case shader.StageFragment:
		c.info.EarlyFragmentTests = layouts.EarlyFragmentTests
	}
	if layouts.NumViews > 0 {
		c.info.NumViews = layouts.NumViews
	}
	return c.info
}

// add records v in the list matching its qualifier.
func (c *collector) add(v *ir.Variable) {
	used := c.uses[v] > 0
	if b := v.Type.Block; b != nil {
		c.addBlock(v, b, used)
		return
	}

	var list *[]shader.Variable
	switch v.Type.Qualifier {
	case ir.QualVertexIn:
		list = &c.info.Attributes
	case ir.QualVaryingIn:
		list = &c.info.InputVaryings
	case ir.QualVaryingOut:
		list = &c.info.OutputVaryings
	case ir.QualFragmentOut:
		list = &c.info.Outputs
	case ir.QualUniform:
		if v.SymbolType == ir.SymbolBuiltIn {
			return
		}
		list = &c.info.Uniforms
	default:
		return
	}
	r := c.variable(v.Name, v.Type, v.SymbolType)
	r.StaticUse = used
	r.Active = used
	*list = append(*list, r)
}

func (c *collector) addBlock(v *ir.Variable, b *ir.InterfaceBlock, used bool) {
	fields := make([]shader.Variable, len(b.Fields))
	for i, f := range b.Fields {
		fields[i] = c.variable(f.Name, f.Type, f.SymbolType)
		fields[i].StaticUse = used
		fields[i].Active = used
	}
	r := shader.NewInterfaceBlock(b.Name, fields...)
	r.MappedName = glsl.MappedSymbolName(b.Name, b.SymbolType, c.names)
	if v.SymbolType != ir.SymbolEmpty {
		r.InstanceName = v.Name
	}
	if v.Type.IsArray() {
		r.ArraySize = v.Type.OutermostArraySize()
	}
	r.Layout = shader.LayoutShared
	if b.Layout.HasStorage {
		r.Layout = b.Layout.Storage
	}
	r.BlockType = b.BlockType
	r.IsRowMajor = b.Layout.Packing == ir.PackingRowMajor
	r.Binding = b.Layout.Binding
	r.StaticUse = used
	r.Active = used
	if b.BlockType == shader.BlockBuffer {
		c.info.StorageBlocks = append(c.info.StorageBlocks, r)
	} else {
		c.info.UniformBlocks = append(c.info.UniformBlocks, r)
	}
}

// variable converts a declaration to an introspection record.
func (c *collector) variable(name string, t ir.Type, st ir.SymbolType) shader.Variable {
	v := shader.NewVariable(t.GLType(), name)
	v.MappedName = glsl.MappedSymbolName(name, st, c.names)
	v.Precision = t.Precision
	v.ArraySizes = slices.Clone(t.ArraySizes)
	v.Location = t.Layout.Location
	v.Binding = t.Layout.Binding
	v.Offset = t.Layout.Offset
	v.Index = t.Layout.Index
	v.Interpolation = t.Interpolation
	v.Invariant = t.Invariant
	v.IsRowMajor = t.Layout.Packing == ir.PackingRowMajor
	v.ReadOnly = t.ReadOnly
	v.WriteOnly = t.WriteOnly
	v.ImageFormat = imageFormats[t.Layout.Format]
	if s := t.Struct; s != nil {
		v.StructName = s.Name
		v.MappedStructName = glsl.MappedSymbolName(s.Name, s.SymbolType, c.names)
		v.Fields = make([]shader.Variable, len(s.Fields))
		for i, f := range s.Fields {
			v.Fields[i] = c.variable(f.Name, f.Type, f.SymbolType)
		}
	}
	return v
}
