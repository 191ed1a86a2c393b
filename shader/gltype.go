package shader

import (
	"fmt"

	"github.com/gogpu/gputypes"
)

// GLType is a GL type enumerant describing a variable's basic type.
type GLType uint32

// GL type enumerants. Values match the GLES headers so that they can be
// reported to API callers unchanged.
const (
	TypeNone GLType = 0

	TypeFloat     GLType = 0x1406
	TypeFloatVec2 GLType = 0x8B50
	TypeFloatVec3 GLType = 0x8B51
	TypeFloatVec4 GLType = 0x8B52
	TypeInt       GLType = 0x1404
	TypeIntVec2   GLType = 0x8B53
	TypeIntVec3   GLType = 0x8B54
	TypeIntVec4   GLType = 0x8B55
	TypeUInt      GLType = 0x1405
	TypeUIntVec2  GLType = 0x8DC6
	TypeUIntVec3  GLType = 0x8DC7
	TypeUIntVec4  GLType = 0x8DC8
	TypeBool      GLType = 0x8B56
	TypeBoolVec2  GLType = 0x8B57
	TypeBoolVec3  GLType = 0x8B58
	TypeBoolVec4  GLType = 0x8B59

	TypeFloatMat2   GLType = 0x8B5A
	TypeFloatMat3   GLType = 0x8B5B
	TypeFloatMat4   GLType = 0x8B5C
	TypeFloatMat2x3 GLType = 0x8B65
	TypeFloatMat2x4 GLType = 0x8B66
	TypeFloatMat3x2 GLType = 0x8B67
	TypeFloatMat3x4 GLType = 0x8B68
	TypeFloatMat4x2 GLType = 0x8B69
	TypeFloatMat4x3 GLType = 0x8B6A

	TypeSampler2D            GLType = 0x8B5E
	TypeSampler3D            GLType = 0x8B5F
	TypeSamplerCube          GLType = 0x8B60
	TypeSampler2DShadow      GLType = 0x8B62
	TypeSampler2DArray       GLType = 0x8DC1
	TypeSampler2DArrayShadow GLType = 0x8DC4
	TypeSamplerCubeShadow    GLType = 0x8DC5
	TypeSamplerExternalOES   GLType = 0x8D66
	TypeSampler2DMS          GLType = 0x9108
	TypeIntSampler2D         GLType = 0x8DCA
	TypeIntSampler3D         GLType = 0x8DCB
	TypeIntSamplerCube       GLType = 0x8DCC
	TypeIntSampler2DArray    GLType = 0x8DCF
	TypeUIntSampler2D        GLType = 0x8DD2
	TypeUIntSampler3D        GLType = 0x8DD3
	TypeUIntSamplerCube      GLType = 0x8DD4
	TypeUIntSampler2DArray   GLType = 0x8DD7

	TypeImage2D       GLType = 0x904D
	TypeImage3D       GLType = 0x904E
	TypeImageCube     GLType = 0x9050
	TypeImage2DArray  GLType = 0x9053
	TypeIntImage2D    GLType = 0x9058
	TypeUIntImage2D   GLType = 0x9063
	TypeAtomicCounter GLType = 0x92DB
)

// ComponentType is the scalar class of a type, used for attribute and
// draw buffer type masks.
type ComponentType uint8

const (
	ComponentNone ComponentType = iota
	ComponentFloat
	ComponentInt
	ComponentUInt
)

// String returns the component type name.
func (c ComponentType) String() string {
	switch c {
	case ComponentFloat:
		return "float"
	case ComponentInt:
		return "int"
	case ComponentUInt:
		return "uint"
	default:
		return "none"
	}
}

// TextureType is the texture target a sampler or image reads from.
type TextureType uint8

const (
	TextureNone TextureType = iota
	Texture2D
	Texture3D
	TextureCube
	Texture2DArray
	Texture2DMultisample
	TextureExternal
)

// String returns the texture type name.
func (t TextureType) String() string {
	switch t {
	case Texture2D:
		return "2D"
	case Texture3D:
		return "3D"
	case TextureCube:
		return "Cube"
	case Texture2DArray:
		return "2DArray"
	case Texture2DMultisample:
		return "2DMultisample"
	case TextureExternal:
		return "External"
	default:
		return "None"
	}
}

// ViewDimension maps the texture type to a descriptor view dimension.
func (t TextureType) ViewDimension() gputypes.TextureViewDimension {
	switch t {
	case Texture2D, Texture2DMultisample, TextureExternal:
		return gputypes.TextureViewDimension2D
	case Texture3D:
		return gputypes.TextureViewDimension3D
	case TextureCube:
		return gputypes.TextureViewDimensionCube
	case Texture2DArray:
		return gputypes.TextureViewDimension2DArray
	default:
		return gputypes.TextureViewDimensionUndefined
	}
}

// SamplerFormat is the class of values a sampler returns.
type SamplerFormat uint8

const (
	SamplerFloat SamplerFormat = iota
	SamplerSigned
	SamplerUnsigned
	SamplerShadow
)

// SampleType maps the sampler format to a descriptor sample type.
func (f SamplerFormat) SampleType() gputypes.TextureSampleType {
	switch f {
	case SamplerSigned:
		return gputypes.TextureSampleTypeSint
	case SamplerUnsigned:
		return gputypes.TextureSampleTypeUint
	case SamplerShadow:
		return gputypes.TextureSampleTypeDepth
	default:
		return gputypes.TextureSampleTypeFloat
	}
}

type typeInfo struct {
	name      string
	component ComponentType
	cols      int // 1 for non-matrix types
	rows      int // vector size for vectors
	texture   TextureType
	format    SamplerFormat
	sampler   bool
	image     bool
	atomic    bool
}

var typeTable = map[GLType]typeInfo{
	TypeFloat:     {name: "float", component: ComponentFloat, cols: 1, rows: 1},
	TypeFloatVec2: {name: "vec2", component: ComponentFloat, cols: 1, rows: 2},
	TypeFloatVec3: {name: "vec3", component: ComponentFloat, cols: 1, rows: 3},
	TypeFloatVec4: {name: "vec4", component: ComponentFloat, cols: 1, rows: 4},
	TypeInt:       {name: "int", component: ComponentInt, cols: 1, rows: 1},
	TypeIntVec2:   {name: "ivec2", component: ComponentInt, cols: 1, rows: 2},
	TypeIntVec3:   {name: "ivec3", component: ComponentInt, cols: 1, rows: 3},
	TypeIntVec4:   {name: "ivec4", component: ComponentInt, cols: 1, rows: 4},
	TypeUInt:      {name: "uint", component: ComponentUInt, cols: 1, rows: 1},
	TypeUIntVec2:  {name: "uvec2", component: ComponentUInt, cols: 1, rows: 2},
	TypeUIntVec3:  {name: "uvec3", component: ComponentUInt, cols: 1, rows: 3},
	TypeUIntVec4:  {name: "uvec4", component: ComponentUInt, cols: 1, rows: 4},
	TypeBool:      {name: "bool", component: ComponentInt, cols: 1, rows: 1},
	TypeBoolVec2:  {name: "bvec2", component: ComponentInt, cols: 1, rows: 2},
	TypeBoolVec3:  {name: "bvec3", component: ComponentInt, cols: 1, rows: 3},
	TypeBoolVec4:  {name: "bvec4", component: ComponentInt, cols: 1, rows: 4},

	TypeFloatMat2:   {name: "mat2", component: ComponentFloat, cols: 2, rows: 2},
	TypeFloatMat3:   {name: "mat3", component: ComponentFloat, cols: 3, rows: 3},
	TypeFloatMat4:   {name: "mat4", component: ComponentFloat, cols: 4, rows: 4},
	TypeFloatMat2x3: {name: "mat2x3", component: ComponentFloat, cols: 2, rows: 3},
	TypeFloatMat2x4: {name: "mat2x4", component: ComponentFloat, cols: 2, rows: 4},
	TypeFloatMat3x2: {name: "mat3x2", component: ComponentFloat, cols: 3, rows: 2},
	TypeFloatMat3x4: {name: "mat3x4", component: ComponentFloat, cols: 3, rows: 4},
	TypeFloatMat4x2: {name: "mat4x2", component: ComponentFloat, cols: 4, rows: 2},
	TypeFloatMat4x3: {name: "mat4x3", component: ComponentFloat, cols: 4, rows: 3},

	TypeSampler2D:            {name: "sampler2D", component: ComponentInt, cols: 1, rows: 1, sampler: true, texture: Texture2D},
	TypeSampler3D:            {name: "sampler3D", component: ComponentInt, cols: 1, rows: 1, sampler: true, texture: Texture3D},
	TypeSamplerCube:          {name: "samplerCube", component: ComponentInt, cols: 1, rows: 1, sampler: true, texture: TextureCube},
	TypeSampler2DShadow:      {name: "sampler2DShadow", component: ComponentInt, cols: 1, rows: 1, sampler: true, texture: Texture2D, format: SamplerShadow},
	TypeSampler2DArray:       {name: "sampler2DArray", component: ComponentInt, cols: 1, rows: 1, sampler: true, texture: Texture2DArray},
	TypeSampler2DArrayShadow: {name: "sampler2DArrayShadow", component: ComponentInt, cols: 1, rows: 1, sampler: true, texture: Texture2DArray, format: SamplerShadow},
	TypeSamplerCubeShadow:    {name: "samplerCubeShadow", component: ComponentInt, cols: 1, rows: 1, sampler: true, texture: TextureCube, format: SamplerShadow},
	TypeSamplerExternalOES:   {name: "samplerExternalOES", component: ComponentInt, cols: 1, rows: 1, sampler: true, texture: TextureExternal},
	TypeSampler2DMS:          {name: "sampler2DMS", component: ComponentInt, cols: 1, rows: 1, sampler: true, texture: Texture2DMultisample},
	TypeIntSampler2D:         {name: "isampler2D", component: ComponentInt, cols: 1, rows: 1, sampler: true, texture: Texture2D, format: SamplerSigned},
	TypeIntSampler3D:         {name: "isampler3D", component: ComponentInt, cols: 1, rows: 1, sampler: true, texture: Texture3D, format: SamplerSigned},
	TypeIntSamplerCube:       {name: "isamplerCube", component: ComponentInt, cols: 1, rows: 1, sampler: true, texture: TextureCube, format: SamplerSigned},
	TypeIntSampler2DArray:    {name: "isampler2DArray", component: ComponentInt, cols: 1, rows: 1, sampler: true, texture: Texture2DArray, format: SamplerSigned},
	TypeUIntSampler2D:        {name: "usampler2D", component: ComponentInt, cols: 1, rows: 1, sampler: true, texture: Texture2D, format: SamplerUnsigned},
	TypeUIntSampler3D:        {name: "usampler3D", component: ComponentInt, cols: 1, rows: 1, sampler: true, texture: Texture3D, format: SamplerUnsigned},
	TypeUIntSamplerCube:      {name: "usamplerCube", component: ComponentInt, cols: 1, rows: 1, sampler: true, texture: TextureCube, format: SamplerUnsigned},
	TypeUIntSampler2DArray:   {name: "usampler2DArray", component: ComponentInt, cols: 1, rows: 1, sampler: true, texture: Texture2DArray, format: SamplerUnsigned},

	TypeImage2D:      {name: "image2D", component: ComponentInt, cols: 1, rows: 1, image: true, texture: Texture2D},
	TypeImage3D:      {name: "image3D", component: ComponentInt, cols: 1, rows: 1, image: true, texture: Texture3D},
	TypeImageCube:    {name: "imageCube", component: ComponentInt, cols: 1, rows: 1, image: true, texture: TextureCube},
	TypeImage2DArray: {name: "image2DArray", component: ComponentInt, cols: 1, rows: 1, image: true, texture: Texture2DArray},
	TypeIntImage2D:   {name: "iimage2D", component: ComponentInt, cols: 1, rows: 1, image: true, texture: Texture2D, format: SamplerSigned},
	TypeUIntImage2D:  {name: "uimage2D", component: ComponentInt, cols: 1, rows: 1, image: true, texture: Texture2D, format: SamplerUnsigned},

	TypeAtomicCounter: {name: "atomic_uint", component: ComponentUInt, cols: 1, rows: 1, atomic: true},
}

// String returns the GLSL spelling of the type, or a hex enumerant for
// unknown values.
func (t GLType) String() string {
	if t == TypeNone {
		return "struct"
	}
	if info, ok := typeTable[t]; ok {
		return info.name
	}
	return fmt.Sprintf("GLType(0x%04X)", uint32(t))
}

// ParseGLType converts a GLSL type name to a GLType.
func ParseGLType(name string) (GLType, error) {
	for t, info := range typeTable {
		if info.name == name {
			return t, nil
		}
	}
	return TypeNone, fmt.Errorf("unknown GLSL type %q", name)
}

// IsSampler reports whether t is a sampler type.
func (t GLType) IsSampler() bool { return typeTable[t].sampler }

// IsImage reports whether t is an image type.
func (t GLType) IsImage() bool { return typeTable[t].image }

// IsAtomicCounter reports whether t is an atomic counter.
func (t GLType) IsAtomicCounter() bool { return typeTable[t].atomic }

// IsOpaque reports whether t cannot be stored in a buffer.
func (t GLType) IsOpaque() bool {
	info := typeTable[t]
	return info.sampler || info.image || info.atomic
}

// IsBool reports whether t is bool or a bool vector.
func (t GLType) IsBool() bool { return t >= TypeBool && t <= TypeBoolVec4 }

// IsMatrix reports whether t is a matrix type.
func (t GLType) IsMatrix() bool { return typeTable[t].cols > 1 }

// ColumnCount returns the number of matrix columns, 1 for non-matrices.
func (t GLType) ColumnCount() int {
	if c := typeTable[t].cols; c > 0 {
		return c
	}
	return 1
}

// RowCount returns the number of matrix rows or the vector size.
func (t GLType) RowCount() int {
	if r := typeTable[t].rows; r > 0 {
		return r
	}
	return 1
}

// ComponentCount returns the number of scalar components.
func (t GLType) ComponentCount() int {
	return t.ColumnCount() * t.RowCount()
}

// Registers returns the number of vec4 attribute locations t occupies:
// one per four components, rounded up.
func (t GLType) Registers() int {
	return (t.ComponentCount() + 3) / 4
}

// VectorCount returns how many vec4 uniform slots a value of t consumes.
func (t GLType) VectorCount() int {
	if t.IsMatrix() {
		return t.ColumnCount()
	}
	return 1
}

// Component returns the scalar class of t.
func (t GLType) Component() ComponentType { return typeTable[t].component }

// TextureType returns the texture target of a sampler or image.
func (t GLType) TextureType() TextureType { return typeTable[t].texture }

// SamplerFormat returns the sampled value class of a sampler or image.
func (t GLType) SamplerFormat() SamplerFormat { return typeTable[t].format }

// TransposedMatrix returns the matrix type with rows and columns swapped.
func (t GLType) TransposedMatrix() GLType {
	info := typeTable[t]
	if info.cols <= 1 {
		return t
	}
	for other, o := range typeTable {
		if o.cols == info.rows && o.rows == info.cols && o.component == info.component {
			return other
		}
	}
	return t
}
