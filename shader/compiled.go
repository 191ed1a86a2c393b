package shader

import "fmt"

// WorkGroupSize is a compute shader's declared local size. Unset
// dimensions hold -1.
type WorkGroupSize [3]int

// UndeclaredWorkGroupSize is the local size of a shader without a layout.
var UndeclaredWorkGroupSize = WorkGroupSize{-1, -1, -1}

// IsDeclared reports whether any dimension was declared.
func (w WorkGroupSize) IsDeclared() bool {
	return w[0] > 0 || w[1] > 0 || w[2] > 0
}

// Resolved returns the size with unset dimensions replaced by 1.
func (w WorkGroupSize) Resolved() WorkGroupSize {
	out := w
	for i := range out {
		if out[i] < 1 {
			out[i] = 1
		}
	}
	return out
}

// Primitive is a geometry shader input or output primitive type.
type Primitive uint8

const (
	PrimitiveUndefined Primitive = iota
	PrimitivePoints
	PrimitiveLines
	PrimitiveLinesAdjacency
	PrimitiveTriangles
	PrimitiveTrianglesAdjacency
	PrimitiveLineStrip
	PrimitiveTriangleStrip
)

// String returns the GLSL layout keyword.
func (p Primitive) String() string {
	switch p {
	case PrimitivePoints:
		return "points"
	case PrimitiveLines:
		return "lines"
	case PrimitiveLinesAdjacency:
		return "lines_adjacency"
	case PrimitiveTriangles:
		return "triangles"
	case PrimitiveTrianglesAdjacency:
		return "triangles_adjacency"
	case PrimitiveLineStrip:
		return "line_strip"
	case PrimitiveTriangleStrip:
		return "triangle_strip"
	default:
		return "undefined"
	}
}

// ParsePrimitive converts a layout keyword to a Primitive.
func ParsePrimitive(name string) (Primitive, error) {
	for p := PrimitivePoints; p <= PrimitiveTriangleStrip; p++ {
		if p.String() == name {
			return p, nil
		}
	}
	return PrimitiveUndefined, fmt.Errorf("unknown primitive %q", name)
}

// GeometryLayout holds geometry shader layout qualifiers. MaxVertices
// and Invocations are -1 / 0 when undeclared.
type GeometryLayout struct {
	Input       Primitive
	Output      Primitive
	MaxVertices int
	Invocations int
}

// SpecConstUsage records which specialization constants a shader reads.
type SpecConstUsage uint32

const (
	SpecConstLineRasterEmulation SpecConstUsage = 1 << iota
	SpecConstYFlip
	SpecConstRotation
	SpecConstDrawableSize
)

// Compiled is the product of translating one shader: its status, the
// translated source and every interface variable the linker needs.
//
// Attribute, varying and output lists hold every declared variable; the
// Active flag marks the ones that survived translation.
type Compiled struct {
	Stage    Stage
	Version  int
	Compiled bool
	InfoLog  string
	Source   string

	Attributes     []Variable
	InputVaryings  []Variable
	OutputVaryings []Variable
	Uniforms       []Variable
	UniformBlocks  []InterfaceBlock
	StorageBlocks  []InterfaceBlock
	Outputs        []Variable

	WorkGroupSize      WorkGroupSize
	Geometry           GeometryLayout
	NumViews           int
	EarlyFragmentTests bool
	SpecConstUsage     SpecConstUsage
}

// NewCompiled returns an empty record for stage with undeclared layouts.
func NewCompiled(stage Stage, version int) *Compiled {
	return &Compiled{
		Stage:         stage,
		Version:       version,
		WorkGroupSize: UndeclaredWorkGroupSize,
		Geometry:      GeometryLayout{MaxVertices: -1},
		NumViews:      -1,
	}
}

// ActiveAttributes returns the attributes marked active.
func (c *Compiled) ActiveAttributes() []Variable {
	return activeOnly(c.Attributes)
}

// ActiveOutputs returns the outputs marked active.
func (c *Compiled) ActiveOutputs() []Variable {
	return activeOnly(c.Outputs)
}

// UsesBuiltIn reports whether the shader statically uses the named
// built-in input or output.
func (c *Compiled) UsesBuiltIn(name string) bool {
	for _, list := range [][]Variable{c.InputVaryings, c.OutputVaryings, c.Outputs, c.Attributes} {
		for i := range list {
			if list[i].Name == name && list[i].StaticUse {
				return true
			}
		}
	}
	return false
}

// FindVarying returns the named varying from the given list.
func FindVarying(list []Variable, name string) (*Variable, bool) {
	for i := range list {
		if list[i].Name == name {
			return &list[i], true
		}
	}
	return nil, false
}

func activeOnly(vars []Variable) []Variable {
	out := make([]Variable, 0, len(vars))
	for _, v := range vars {
		if v.Active {
			out = append(out, v)
		}
	}
	return out
}
