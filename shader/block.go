package shader

// BlockLayout is the memory layout of an interface block.
type BlockLayout uint8

const (
	LayoutShared BlockLayout = iota
	LayoutPacked
	LayoutStd140
	LayoutStd430
)

// String returns the GLSL layout keyword.
func (l BlockLayout) String() string {
	switch l {
	case LayoutPacked:
		return "packed"
	case LayoutStd140:
		return "std140"
	case LayoutStd430:
		return "std430"
	default:
		return "shared"
	}
}

// BlockType distinguishes uniform blocks from shader storage blocks.
type BlockType uint8

const (
	BlockUniform BlockType = iota
	BlockBuffer
)

// String returns "uniform" or "buffer".
func (t BlockType) String() string {
	if t == BlockBuffer {
		return "buffer"
	}
	return "uniform"
}

// InterfaceBlock describes a uniform or shader storage block declared by
// a shader. ArraySize is 0 for non-array blocks.
type InterfaceBlock struct {
	Name         string
	MappedName   string
	InstanceName string
	ArraySize    uint32
	Layout       BlockLayout
	BlockType    BlockType
	IsRowMajor   bool
	Binding      int
	StaticUse    bool
	Active       bool
	Fields       []Variable
}

// NewInterfaceBlock returns a block with an unspecified binding.
func NewInterfaceBlock(name string, fields ...Variable) InterfaceBlock {
	return InterfaceBlock{
		Name:       name,
		MappedName: name,
		Layout:     LayoutStd140,
		Binding:    -1,
		Fields:     fields,
	}
}

// IsArray reports whether the block is declared as an array.
func (b *InterfaceBlock) IsArray() bool {
	return b.ArraySize > 0
}

// ElementCount returns the number of block instances.
func (b *InterfaceBlock) ElementCount() uint32 {
	if b.ArraySize == 0 {
		return 1
	}
	return b.ArraySize
}

// FieldPrefix returns the prefix used for field names in program-level
// resource lists: "Block." when there is an instance name, else "".
func (b *InterfaceBlock) FieldPrefix() string {
	if b.InstanceName == "" {
		return ""
	}
	return b.Name + "."
}

// Clone returns a deep copy of the block.
func (b *InterfaceBlock) Clone() InterfaceBlock {
	out := *b
	if b.Fields != nil {
		out.Fields = make([]Variable, len(b.Fields))
		for i := range b.Fields {
			out.Fields[i] = b.Fields[i].Clone()
		}
	}
	return out
}
