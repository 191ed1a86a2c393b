package link

import (
	"fmt"
	"strings"

	"github.com/gogpu/glesvk/shader"
)

// BlockMemberInfo is the memory placement of a block member. Offsets and
// strides are in bytes; -1 means not applicable.
type BlockMemberInfo struct {
	Offset              int
	ArrayStride         int
	MatrixStride        int
	IsRowMajor          bool
	TopLevelArrayStride int
}

// DefaultBlockMemberInfo is the placement of a uniform outside any block.
func DefaultBlockMemberInfo() BlockMemberInfo {
	return BlockMemberInfo{Offset: -1, ArrayStride: -1, MatrixStride: -1, TopLevelArrayStride: -1}
}

// LinkedUniform is one leaf uniform of the program: structs are split
// into their fields and arrays of arrays into arrays of the innermost
// dimension.
type LinkedUniform struct {
	shader.Variable

	// Stages has a bit for every stage in which the uniform is active.
	Stages shader.StageMask
	// BufferIndex is the block or atomic counter buffer index, or -1.
	BufferIndex int
	BlockInfo   BlockMemberInfo

	// OuterArraySizes are the array dimensions removed by flattening,
	// outermost first; OuterArrayOffset is the flat index of this
	// uniform's first element within them.
	OuterArraySizes  []uint32
	OuterArrayOffset uint32
}

// IsSampler reports whether the uniform is a sampler.
func (u *LinkedUniform) IsSampler() bool { return u.Type.IsSampler() }

// IsImage reports whether the uniform is an image.
func (u *LinkedUniform) IsImage() bool { return u.Type.IsImage() }

// IsAtomicCounter reports whether the uniform is an atomic counter.
func (u *LinkedUniform) IsAtomicCounter() bool { return u.Type.IsAtomicCounter() }

// IsInDefaultBlock reports whether the uniform lives outside any block.
func (u *LinkedUniform) IsInDefaultBlock() bool { return u.BufferIndex == -1 }

// ActiveShaderCount returns the number of stages using the uniform.
func (u *LinkedUniform) ActiveShaderCount() int { return u.Stages.Count() }

// UnusedUniform records a declared uniform that no stage uses.
type UnusedUniform struct {
	Name            string
	IsSampler       bool
	IsImage         bool
	IsAtomicCounter bool
}

// InterfaceBlock is one linked uniform or storage block. Block arrays
// produce one entry per element.
type InterfaceBlock struct {
	Name                string
	MappedName          string
	IsArray             bool
	ArrayElement        uint32
	FirstFieldArraySize uint32
	Binding             int
	DataSize            uint32
	BlockType           shader.BlockType
	Layout              shader.BlockLayout
	// MemberIndexes index Resources.BlockUniforms for uniform blocks and
	// Resources.BufferVariables for storage blocks.
	MemberIndexes []uint32
	Stages        shader.StageMask
}

// NameWithArrayIndex returns "Name[i]" for block array elements.
func (b *InterfaceBlock) NameWithArrayIndex() string {
	if b.IsArray {
		return fmt.Sprintf("%s[%d]", b.Name, b.ArrayElement)
	}
	return b.Name
}

// MappedNameWithArrayIndex is NameWithArrayIndex for the mapped name.
func (b *InterfaceBlock) MappedNameWithArrayIndex() string {
	if b.IsArray {
		return fmt.Sprintf("%s[%d]", b.MappedName, b.ArrayElement)
	}
	return b.MappedName
}

// BufferVariable is one member of a shader storage block.
type BufferVariable struct {
	shader.Variable
	BufferIndex       int
	BlockInfo         BlockMemberInfo
	TopLevelArraySize uint32
	Stages            shader.StageMask
}

// AtomicCounterBuffer groups the atomic counters sharing a binding.
type AtomicCounterBuffer struct {
	Binding       int
	DataSize      uint32
	MemberIndexes []uint32
	Stages        shader.StageMask
}

// SamplerBinding is the texture units of one sampler uniform, one per
// array element.
type SamplerBinding struct {
	TextureType shader.TextureType
	Format      shader.SamplerFormat
	BoundUnits  []int
	// Unreferenced is set when the backend reports the sampler unused.
	Unreferenced bool
}

// ImageBinding is the image units of one image uniform.
type ImageBinding struct {
	TextureType shader.TextureType
	BoundUnits  []int
}

// VaryingRef pairs an output of one stage with the matching input of
// the next. Either side may be nil for unmatched varyings.
type VaryingRef struct {
	Name       string
	Front      *shader.Variable
	Back       *shader.Variable
	FrontStage shader.Stage
	BackStage  shader.Stage
	// Location and Component place both sides in the register grid of
	// their stage boundary.
	Location  int
	Component int
}

// Resources is the complete result of a successful link.
type Resources struct {
	Version   int
	Stages    shader.StageMask
	Separable bool

	Attributes              []shader.Variable
	ActiveAttributes        LocationMask
	AttributesTypeMask      ComponentTypeMask
	MaxActiveAttribLocation int

	Varyings                  []VaryingRef
	TransformFeedbackVaryings []XfbVarying
	TransformFeedbackMode     XfbMode
	TransformFeedbackStrides  []int

	Uniforms              []LinkedUniform
	UniformLocations      []VariableLocation
	UnusedUniforms        []UnusedUniform
	DefaultRange          Range
	SamplerRange          Range
	ImageRange            Range
	AtomicCounterRange    Range
	SamplerBindings       []SamplerBinding
	ImageBindings         []ImageBinding
	AtomicCounterBuffers  []AtomicCounterBuffer
	CombinedImageUniforms int

	UniformBlocks   []InterfaceBlock
	BlockUniforms   []LinkedUniform
	StorageBlocks   []InterfaceBlock
	BufferVariables []BufferVariable

	Outputs                  []shader.Variable
	OutputLocations          []VariableLocation
	SecondaryOutputLocations []VariableLocation
	OutputVariableTypes      []shader.GLType
	DrawBufferTypeMask       ComponentTypeMask
	ActiveOutputs            LocationMask
	YUVOutput                bool

	ComputeLocalSize   shader.WorkGroupSize
	Geometry           shader.GeometryLayout
	NumViews           int
	EarlyFragmentTests bool
	SpecConstUsage     shader.SpecConstUsage
}

func newResources() *Resources {
	return &Resources{
		ComputeLocalSize: shader.UndeclaredWorkGroupSize,
		Geometry:         shader.GeometryLayout{MaxVertices: -1},
		NumViews:         -1,
	}
}

// ===== Queries =====

// AttributeLocation returns the location of the named attribute, or -1.
func (r *Resources) AttributeLocation(name string) int {
	for i := range r.Attributes {
		if r.Attributes[i].Name == name {
			return r.Attributes[i].Location
		}
	}
	return -1
}

// UniformIndex returns the index of the named uniform. "u" and "u[0]"
// both name array u; other subscripts are rejected.
func (r *Resources) UniformIndex(name string) (uint32, bool) {
	base, sub := shader.StripArrayIndex(name)
	for i := range r.Uniforms {
		u := &r.Uniforms[i]
		if u.Name == name && sub < 0 {
			return uint32(i), true
		}
		if u.IsArray() && u.Name == base && sub == 0 {
			return uint32(i), true
		}
	}
	return Unused, false
}

// UniformLocation returns the location of the named uniform or array
// element, or -1 when it has none.
func (r *Resources) UniformLocation(name string) int {
	base, sub := shader.StripArrayIndex(name)
	for loc, l := range r.UniformLocations {
		if !l.Used() || l.Ignored {
			continue
		}
		u := &r.Uniforms[l.Index]
		if u.Name == name && l.ArrayIndex == 0 {
			return loc
		}
		if u.IsArray() && sub >= 0 && u.Name == base && l.ArrayIndex == uint32(sub) {
			return loc
		}
	}
	return -1
}

// UniformBlockIndex returns the index of the named uniform block or
// block array element.
func (r *Resources) UniformBlockIndex(name string) (uint32, bool) {
	return blockIndex(r.UniformBlocks, name)
}

// StorageBlockIndex returns the index of the named storage block.
func (r *Resources) StorageBlockIndex(name string) (uint32, bool) {
	return blockIndex(r.StorageBlocks, name)
}

func blockIndex(list []InterfaceBlock, name string) (uint32, bool) {
	base, sub := shader.StripArrayIndex(name)
	for i := range list {
		b := &list[i]
		if b.Name != base && b.Name != name {
			continue
		}
		switch {
		case !b.IsArray && b.Name == name:
			return uint32(i), true
		case b.IsArray && sub >= 0 && b.Name == base && b.ArrayElement == uint32(sub):
			return uint32(i), true
		}
	}
	return Unused, false
}

// FragDataLocation returns the location of the named fragment output,
// or -1.
func (r *Resources) FragDataLocation(name string) int {
	if loc := outputLocation(r.Outputs, r.OutputLocations, name); loc != -1 {
		return loc
	}
	return outputLocation(r.Outputs, r.SecondaryOutputLocations, name)
}

// FragDataIndex returns 0 or 1 for a located output, or -1.
func (r *Resources) FragDataIndex(name string) int {
	if outputLocation(r.Outputs, r.OutputLocations, name) != -1 {
		return 0
	}
	if outputLocation(r.Outputs, r.SecondaryOutputLocations, name) != -1 {
		return 1
	}
	return -1
}

func outputLocation(outputs []shader.Variable, table []VariableLocation, name string) int {
	base, sub := shader.StripArrayIndex(name)
	for loc, l := range table {
		if !l.Used() || l.Ignored {
			continue
		}
		v := &outputs[l.Index]
		if v.Name == name && l.ArrayIndex == 0 {
			return loc
		}
		if v.IsArray() && sub >= 0 && v.Name == base && l.ArrayIndex == uint32(sub) {
			return loc
		}
	}
	return -1
}

// IsSamplerIndex reports whether uniform index i is a sampler.
func (r *Resources) IsSamplerIndex(i uint32) bool { return r.SamplerRange.Contains(i) }

// IsImageIndex reports whether uniform index i is an image.
func (r *Resources) IsImageIndex(i uint32) bool { return r.ImageRange.Contains(i) }

// SamplerIndex converts a uniform index in the sampler range into an
// index of SamplerBindings.
func (r *Resources) SamplerIndex(uniformIndex uint32) uint32 {
	return uniformIndex - r.SamplerRange.Low
}

// ImageIndex converts a uniform index in the image range into an index
// of ImageBindings.
func (r *Resources) ImageIndex(uniformIndex uint32) uint32 {
	return uniformIndex - r.ImageRange.Low
}

// Summary renders a short human-readable description of the resources.
func (r *Resources) Summary() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "version %d, stages %s\n", r.Version, r.Stages)
	for i := range r.Attributes {
		a := &r.Attributes[i]
		fmt.Fprintf(&sb, "attribute %s %s location=%d\n", a.TypeString(), a.Name, a.Location)
	}
	for i := range r.Uniforms {
		u := &r.Uniforms[i]
		fmt.Fprintf(&sb, "uniform %d %s %s stages=%s\n", i, u.TypeString(), u.Name, u.Stages)
	}
	for loc, l := range r.UniformLocations {
		if l.Used() {
			fmt.Fprintf(&sb, "location %d -> uniform %d[%d]\n", loc, l.Index, l.ArrayIndex)
		}
	}
	for i := range r.UniformBlocks {
		b := &r.UniformBlocks[i]
		fmt.Fprintf(&sb, "uniform block %d %s binding=%d size=%d stages=%s\n",
			i, b.NameWithArrayIndex(), b.Binding, b.DataSize, b.Stages)
	}
	for i := range r.StorageBlocks {
		b := &r.StorageBlocks[i]
		fmt.Fprintf(&sb, "storage block %d %s binding=%d size=%d stages=%s\n",
			i, b.NameWithArrayIndex(), b.Binding, b.DataSize, b.Stages)
	}
	for loc, l := range r.OutputLocations {
		if l.Used() {
			o := &r.Outputs[l.Index]
			fmt.Fprintf(&sb, "output %s[%d] location=%d\n", o.Name, l.ArrayIndex, loc)
		}
	}
	fmt.Fprintf(&sb, "ranges default=%s sampler=%s image=%s atomic=%s\n",
		r.DefaultRange, r.SamplerRange, r.ImageRange, r.AtomicCounterRange)
	return sb.String()
}
