package backend

import (
	"fmt"
	"maps"
	"slices"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/glesvk/link"
	"github.com/gogpu/glesvk/passes"
	"github.com/gogpu/glesvk/shader"
	"github.com/gogpu/glesvk/spirv"
)

// DescriptorSet indexes the descriptor sets of a program.
type DescriptorSet uint8

const (
	SetUniformsAndXfb DescriptorSet = iota
	SetTexture
	SetShaderResource
	SetDriverUniforms
)

// DescriptorSetCount is the number of descriptor sets a program uses.
const DescriptorSetCount = 4

// String returns the set name.
func (s DescriptorSet) String() string {
	switch s {
	case SetUniformsAndXfb:
		return "uniforms-and-xfb"
	case SetTexture:
		return "texture"
	case SetShaderResource:
		return "shader-resource"
	case SetDriverUniforms:
		return "driver-uniforms"
	default:
		return fmt.Sprintf("DescriptorSet(%d)", uint8(s))
	}
}

// DescriptorKind is the descriptor type of a binding.
type DescriptorKind uint8

const (
	DescriptorNone DescriptorKind = iota
	DescriptorUniformBuffer
	DescriptorStorageBuffer
	DescriptorCombinedImageSampler
	DescriptorStorageImage
)

// String returns the descriptor kind name.
func (k DescriptorKind) String() string {
	switch k {
	case DescriptorNone:
		return "none"
	case DescriptorUniformBuffer:
		return "uniform-buffer"
	case DescriptorStorageBuffer:
		return "storage-buffer"
	case DescriptorCombinedImageSampler:
		return "combined-image-sampler"
	case DescriptorStorageImage:
		return "storage-image"
	default:
		return fmt.Sprintf("DescriptorKind(%d)", uint8(k))
	}
}

// XfbBufferName returns the name of emulated transform feedback buffer i.
func XfbBufferName(i int) string {
	return fmt.Sprintf("xfbBuffer%d", i)
}

// VariableInfo is the placement of one interface variable. Descriptor
// fields are -1 for inputs and outputs; Location is -1 for descriptors.
type VariableInfo struct {
	Set      int            `msgpack:"set"`
	Binding  int            `msgpack:"binding"`
	Kind     DescriptorKind `msgpack:"kind"`
	Count    uint32         `msgpack:"count"`
	Type     shader.GLType  `msgpack:"type"`
	Location int            `msgpack:"location"`
	// Component is the first component of a packed varying.
	Component int `msgpack:"component"`
	// Stages are the stages that use the variable.
	Stages shader.StageMask `msgpack:"stages"`
}

// IsDescriptor reports whether the variable occupies a descriptor binding.
func (v *VariableInfo) IsDescriptor() bool {
	return v.Kind != DescriptorNone
}

// VariableInfoMap maps variable names, as written in the translated
// source, to their placement.
type VariableInfoMap map[string]VariableInfo

// Names returns the variable names in sorted order.
func (m VariableInfoMap) Names() []string {
	return slices.Sorted(maps.Keys(m))
}

// Decorations returns the SPIR-V decorations for the module of stage.
// Descriptors the stage does not use lose their decorations.
func (m VariableInfoMap) Decorations(stage shader.Stage) map[string]spirv.Decorations {
	out := make(map[string]spirv.Decorations, len(m))
	for name, info := range m {
		switch {
		case info.IsDescriptor() && !info.Stages.Has(stage):
			out[name] = spirv.Decorations{Removed: true}
		case info.IsDescriptor():
			out[name] = spirv.Bind(info.Set, info.Binding)
		default:
			d := spirv.Locate(info.Location)
			if info.Component > 0 {
				d.Component = info.Component
			}
			out[name] = d
		}
	}
	return out
}

// DescriptorSetLayouts are the binding layouts of the four sets, ordered
// by binding.
type DescriptorSetLayouts [DescriptorSetCount][]gputypes.BindGroupLayoutEntry

// Layouts builds the descriptor set layouts of the map.
func (m VariableInfoMap) Layouts() DescriptorSetLayouts {
	var out DescriptorSetLayouts
	for _, name := range m.Names() {
		info := m[name]
		if !info.IsDescriptor() || info.Set < 0 || info.Set >= DescriptorSetCount {
			continue
		}
		out[info.Set] = append(out[info.Set], layoutEntry(&info))
	}
	for i := range out {
		slices.SortFunc(out[i], func(a, b gputypes.BindGroupLayoutEntry) int {
			return int(a.Binding) - int(b.Binding)
		})
	}
	return out
}

func layoutEntry(info *VariableInfo) gputypes.BindGroupLayoutEntry {
	entry := gputypes.BindGroupLayoutEntry{
		Binding:    uint32(info.Binding),
		Visibility: info.Stages.Visibility(),
	}
	switch info.Kind {
	case DescriptorUniformBuffer:
		entry.Buffer = &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform}
	case DescriptorStorageBuffer:
		entry.Buffer = &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage}
	case DescriptorCombinedImageSampler, DescriptorStorageImage:
		// Storage images are described by their view dimension; the
		// access mode comes from the shader.
		entry.Texture = &gputypes.TextureBindingLayout{
			SampleType:    info.Type.SamplerFormat().SampleType(),
			ViewDimension: info.Type.TextureType().ViewDimension(),
		}
	}
	return entry
}

// AssignOptions configure AssignVariableInfo.
type AssignOptions struct {
	// EmulateTransformFeedback adds storage buffers for captured
	// varyings to set 0.
	EmulateTransformFeedback bool
}

type assigner struct {
	infos VariableInfoMap
	next  [DescriptorSetCount]int
}

// addDescriptor assigns the next binding of set to name. A name seen
// before keeps its binding; its count grows by count and its stages
// merge.
func (a *assigner) addDescriptor(set DescriptorSet, name string, kind DescriptorKind, t shader.GLType, count uint32, stages shader.StageMask) {
	if info, ok := a.infos[name]; ok {
		info.Count += count
		info.Stages |= stages
		a.infos[name] = info
		return
	}
	a.infos[name] = VariableInfo{
		Set:      int(set),
		Binding:  a.next[set],
		Kind:     kind,
		Count:    count,
		Type:     t,
		Location: -1,
		Stages:   stages,
	}
	a.next[set]++
}

// addLocation records an input or output. A name seen before keeps its
// location and gains stages.
func (a *assigner) addLocation(name string, location int, stages shader.StageMask) {
	info, ok := a.infos[name]
	if ok {
		info.Stages |= stages
		a.infos[name] = info
		return
	}
	a.infos[name] = VariableInfo{Set: -1, Binding: -1, Location: location, Stages: stages}
}

// addVarying records a packed varying. The first placement of a name
// wins; later ones only add stages.
func (a *assigner) addVarying(name string, location, component int, stages shader.StageMask) {
	if _, ok := a.infos[name]; ok {
		a.addLocation(name, location, stages)
		return
	}
	a.infos[name] = VariableInfo{Set: -1, Binding: -1, Location: location, Component: component, Stages: stages}
}

// AssignVariableInfo places every resource of a linked program in the
// descriptor sets and every input and output at its location.
//
//nolint:gocognit,gocyclo,cyclop // one loop per resource kind
func AssignVariableInfo(res *link.Resources, opts AssignOptions) VariableInfoMap {
	a := &assigner{infos: make(VariableInfoMap)}
	stages := res.Stages.Stages()

	// Set 0: default uniforms per stage, then emulated xfb buffers.
	for _, s := range stages {
		if hasDefaultUniforms(res, s) {
			a.addDescriptor(SetUniformsAndXfb, passes.DefaultUniformsBlockName(s),
				DescriptorUniformBuffer, shader.TypeNone, 1, s.Mask())
		}
	}
	if opts.EmulateTransformFeedback && len(res.TransformFeedbackVaryings) > 0 {
		if last, ok := lastVertexStage(res.Stages); ok {
			for i := range xfbBufferCount(res) {
				a.addDescriptor(SetUniformsAndXfb, XfbBufferName(i),
					DescriptorStorageBuffer, shader.TypeNone, 1, last.Mask())
			}
		}
	}

	// Set 1: textures.
	for i := res.SamplerRange.Low; i < res.SamplerRange.High; i++ {
		u := &res.Uniforms[i]
		a.addDescriptor(SetTexture, baseName(u.MappedName), DescriptorCombinedImageSampler,
			u.Type, max(1, u.BasicTypeElementCount()), u.Stages)
	}

	// Set 2: blocks, atomic counters, images.
	for i := range res.UniformBlocks {
		b := &res.UniformBlocks[i]
		a.addDescriptor(SetShaderResource, b.MappedName, DescriptorUniformBuffer, shader.TypeNone, 1, b.Stages)
	}
	for i := range res.StorageBlocks {
		b := &res.StorageBlocks[i]
		a.addDescriptor(SetShaderResource, b.MappedName, DescriptorStorageBuffer, shader.TypeNone, 1, b.Stages)
	}
	if len(res.AtomicCounterBuffers) > 0 {
		var acbStages shader.StageMask
		for i := range res.AtomicCounterBuffers {
			acbStages |= res.AtomicCounterBuffers[i].Stages
		}
		a.addDescriptor(SetShaderResource, passes.AtomicCountersInstanceName, DescriptorStorageBuffer,
			shader.TypeNone, uint32(len(res.AtomicCounterBuffers)), acbStages)
	}
	for i := res.ImageRange.Low; i < res.ImageRange.High; i++ {
		u := &res.Uniforms[i]
		a.addDescriptor(SetShaderResource, baseName(u.MappedName), DescriptorStorageImage,
			u.Type, max(1, u.BasicTypeElementCount()), u.Stages)
	}

	// Set 3: driver uniforms, one binding shared by all stages.
	a.addDescriptor(SetDriverUniforms, passes.DriverUniformsInstanceName, DescriptorUniformBuffer,
		shader.TypeNone, 1, res.Stages)

	// Locations.
	for i := range res.Attributes {
		attr := &res.Attributes[i]
		if attr.IsBuiltIn() || attr.Location < 0 {
			continue
		}
		a.addLocation(attr.MappedName, attr.Location, shader.StageVertex.Mask())
	}
	assignVaryingLocations(a, res)
	for _, table := range [][]link.VariableLocation{res.OutputLocations, res.SecondaryOutputLocations} {
		for loc, l := range table {
			if !l.Used() || l.Ignored || l.ArrayIndex != 0 {
				continue
			}
			out := &res.Outputs[l.Index]
			if out.IsBuiltIn() {
				continue
			}
			a.addLocation(out.MappedName, loc, shader.StageFragment.Mask())
		}
	}
	return a.infos
}

// assignVaryingLocations places both sides of every varying pair at the
// location and component the linker packed it into.
func assignVaryingLocations(a *assigner, res *link.Resources) {
	for i := range res.Varyings {
		ref := &res.Varyings[i]
		if ref.Front != nil && !ref.Front.IsBuiltIn() {
			a.addVarying(ref.Front.MappedName, ref.Location, ref.Component, ref.FrontStage.Mask())
		}
		if ref.Back != nil && !ref.Back.IsBuiltIn() {
			a.addVarying(ref.Back.MappedName, ref.Location, ref.Component, ref.BackStage.Mask())
		}
	}
}

func hasDefaultUniforms(res *link.Resources, s shader.Stage) bool {
	for i := res.DefaultRange.Low; i < res.DefaultRange.High; i++ {
		u := &res.Uniforms[i]
		if !u.IsBuiltIn() && u.Stages.Has(s) {
			return true
		}
	}
	return false
}

// lastVertexStage returns the stage whose outputs are captured.
func lastVertexStage(m shader.StageMask) (shader.Stage, bool) {
	switch {
	case m.Has(shader.StageGeometry):
		return shader.StageGeometry, true
	case m.Has(shader.StageVertex):
		return shader.StageVertex, true
	default:
		return 0, false
	}
}

func xfbBufferCount(res *link.Resources) int {
	if res.TransformFeedbackMode == link.XfbSeparate {
		return len(res.TransformFeedbackVaryings)
	}
	return 1
}

// baseName strips a trailing array subscript: flattened elements of one
// array share the array's binding.
func baseName(name string) string {
	base, _ := shader.StripArrayIndex(name)
	return base
}
