package shader

import (
	"fmt"
	"strings"

	"github.com/gogpu/gputypes"
)

// Precision is a GLSL ES precision qualifier.
type Precision uint8

const (
	PrecisionUndefined Precision = iota
	PrecisionLow
	PrecisionMedium
	PrecisionHigh
)

// String returns the GLSL precision keyword.
func (p Precision) String() string {
	switch p {
	case PrecisionLow:
		return "lowp"
	case PrecisionMedium:
		return "mediump"
	case PrecisionHigh:
		return "highp"
	default:
		return ""
	}
}

// Interpolation is the interpolation qualifier of a varying.
type Interpolation uint8

const (
	InterpolationSmooth Interpolation = iota
	InterpolationFlat
	InterpolationNoPerspective
	InterpolationCentroid
	InterpolationSample
)

// String returns the GLSL interpolation keyword.
func (i Interpolation) String() string {
	switch i {
	case InterpolationFlat:
		return "flat"
	case InterpolationNoPerspective:
		return "noperspective"
	case InterpolationCentroid:
		return "centroid"
	case InterpolationSample:
		return "sample"
	default:
		return "smooth"
	}
}

// Variable describes one interface variable of a compiled shader:
// an attribute, varying, uniform, block field or fragment output.
//
// Integer layout fields use -1 for "not specified". Array sizes are stored
// innermost first, so the outermost size is the last element.
type Variable struct {
	Type       GLType
	Precision  Precision
	Name       string
	MappedName string
	ArraySizes []uint32

	StaticUse bool
	Active    bool

	Location         int
	Binding          int
	Offset           int
	Index            int
	ParentArrayIndex int

	ImageFormat gputypes.TextureFormat
	ReadOnly    bool
	WriteOnly   bool

	Fields           []Variable
	StructName       string
	MappedStructName string

	Interpolation Interpolation
	Invariant     bool
	IsRowMajor    bool

	// YUV marks a fragment output declared with layout(yuv).
	YUV bool

	TexelFetchStaticUse bool
}

// NewVariable returns a variable with all layout fields unspecified.
func NewVariable(t GLType, name string) Variable {
	return Variable{
		Type:             t,
		Name:             name,
		MappedName:       name,
		Location:         -1,
		Binding:          -1,
		Offset:           -1,
		Index:            -1,
		ParentArrayIndex: -1,
	}
}

// IsBuiltIn reports whether the variable is a GLSL built-in.
func (v *Variable) IsBuiltIn() bool {
	return strings.HasPrefix(v.Name, "gl_")
}

// IsStruct reports whether the variable has struct type.
func (v *Variable) IsStruct() bool {
	return len(v.Fields) > 0
}

// IsArray reports whether the variable is an array.
func (v *Variable) IsArray() bool {
	return len(v.ArraySizes) > 0
}

// IsArrayOfArrays reports whether the variable has more than one array dimension.
func (v *Variable) IsArrayOfArrays() bool {
	return len(v.ArraySizes) > 1
}

// OutermostArraySize returns the size of the outermost array dimension,
// or 0 for non-arrays.
func (v *Variable) OutermostArraySize() uint32 {
	if len(v.ArraySizes) == 0 {
		return 0
	}
	return v.ArraySizes[len(v.ArraySizes)-1]
}

// ArraySizeProduct returns the product of all array sizes, 1 for non-arrays.
func (v *Variable) ArraySizeProduct() uint32 {
	n := uint32(1)
	for _, s := range v.ArraySizes {
		n *= s
	}
	return n
}

// InnerArraySizeProduct returns the product of all but the outermost sizes.
func (v *Variable) InnerArraySizeProduct() uint32 {
	n := uint32(1)
	for i := 0; i+1 < len(v.ArraySizes); i++ {
		n *= v.ArraySizes[i]
	}
	return n
}

// BasicTypeElementCount returns the number of basic-typed elements the
// variable holds. Non-arrays count as one element.
func (v *Variable) BasicTypeElementCount() uint32 {
	return v.ArraySizeProduct()
}

// IndexOutermostArray strips the outermost array dimension in place.
func (v *Variable) IndexOutermostArray(index uint32) {
	if len(v.ArraySizes) == 0 {
		return
	}
	v.ArraySizes = v.ArraySizes[:len(v.ArraySizes)-1]
	v.ParentArrayIndex = int(index)
}

// Clone returns a deep copy of the variable.
func (v *Variable) Clone() Variable {
	out := *v
	if v.ArraySizes != nil {
		out.ArraySizes = append([]uint32(nil), v.ArraySizes...)
	}
	if v.Fields != nil {
		out.Fields = make([]Variable, len(v.Fields))
		for i := range v.Fields {
			out.Fields[i] = v.Fields[i].Clone()
		}
	}
	return out
}

// TypeString renders the type with array suffixes, e.g. "vec4[4]".
func (v *Variable) TypeString() string {
	var sb strings.Builder
	if v.IsStruct() {
		sb.WriteString(v.StructName)
	} else {
		sb.WriteString(v.Type.String())
	}
	for i := len(v.ArraySizes) - 1; i >= 0; i-- {
		fmt.Fprintf(&sb, "[%d]", v.ArraySizes[i])
	}
	return sb.String()
}

// FindField returns the field with the given name.
func (v *Variable) FindField(name string) (*Variable, bool) {
	for i := range v.Fields {
		if v.Fields[i].Name == name {
			return &v.Fields[i], true
		}
	}
	return nil, false
}

// StripArrayIndex splits "name[3]" into ("name", 3). Names without a
// trailing subscript return index -1.
func StripArrayIndex(name string) (string, int) {
	if !strings.HasSuffix(name, "]") {
		return name, -1
	}
	open := strings.LastIndexByte(name, '[')
	if open < 0 {
		return name, -1
	}
	index := 0
	digits := name[open+1 : len(name)-1]
	if digits == "" {
		return name, -1
	}
	for _, c := range digits {
		if c < '0' || c > '9' {
			return name, -1
		}
		index = index*10 + int(c-'0')
	}
	return name[:open], index
}
