package ir

import (
	"fmt"
	"strings"

	"github.com/gogpu/glesvk/shader"
)

// BasicType is the scalar or opaque kind of a type.
type BasicType uint8

const (
	TypeVoid BasicType = iota
	TypeFloat
	TypeInt
	TypeUInt
	TypeBool

	TypeSampler2D
	TypeSampler3D
	TypeSamplerCube
	TypeSampler2DArray
	TypeSampler2DShadow
	TypeSamplerCubeShadow
	TypeSampler2DArrayShadow
	TypeSamplerExternalOES
	TypeSampler2DMS
	TypeISampler2D
	TypeISampler3D
	TypeISamplerCube
	TypeISampler2DArray
	TypeUSampler2D
	TypeUSampler3D
	TypeUSamplerCube
	TypeUSampler2DArray

	TypeImage2D
	TypeImage3D
	TypeImageCube
	TypeImage2DArray
	TypeIImage2D
	TypeUImage2D

	TypeAtomicCounter

	TypeStruct
	TypeInterfaceBlock
)

var basicNames = [...]string{
	TypeVoid:                 "void",
	TypeFloat:                "float",
	TypeInt:                  "int",
	TypeUInt:                 "uint",
	TypeBool:                 "bool",
	TypeSampler2D:            "sampler2D",
	TypeSampler3D:            "sampler3D",
	TypeSamplerCube:          "samplerCube",
	TypeSampler2DArray:       "sampler2DArray",
	TypeSampler2DShadow:      "sampler2DShadow",
	TypeSamplerCubeShadow:    "samplerCubeShadow",
	TypeSampler2DArrayShadow: "sampler2DArrayShadow",
	TypeSamplerExternalOES:   "samplerExternalOES",
	TypeSampler2DMS:          "sampler2DMS",
	TypeISampler2D:           "isampler2D",
	TypeISampler3D:           "isampler3D",
	TypeISamplerCube:         "isamplerCube",
	TypeISampler2DArray:      "isampler2DArray",
	TypeUSampler2D:           "usampler2D",
	TypeUSampler3D:           "usampler3D",
	TypeUSamplerCube:         "usamplerCube",
	TypeUSampler2DArray:      "usampler2DArray",
	TypeImage2D:              "image2D",
	TypeImage3D:              "image3D",
	TypeImageCube:            "imageCube",
	TypeImage2DArray:         "image2DArray",
	TypeIImage2D:             "iimage2D",
	TypeUImage2D:             "uimage2D",
	TypeAtomicCounter:        "atomic_uint",
	TypeStruct:               "struct",
	TypeInterfaceBlock:       "block",
}

// String returns the GLSL keyword of the basic type.
func (b BasicType) String() string {
	if int(b) < len(basicNames) {
		return basicNames[b]
	}
	return fmt.Sprintf("BasicType(%d)", uint8(b))
}

// IsSampler reports whether b is a sampler type.
func (b BasicType) IsSampler() bool {
	return b >= TypeSampler2D && b <= TypeUSampler2DArray
}

// IsImage reports whether b is an image type.
func (b BasicType) IsImage() bool {
	return b >= TypeImage2D && b <= TypeUImage2D
}

// IsOpaque reports whether values of b cannot live in buffer memory.
func (b BasicType) IsOpaque() bool {
	return b.IsSampler() || b.IsImage() || b == TypeAtomicCounter
}

// IsNumeric reports whether b is float, int or uint.
func (b BasicType) IsNumeric() bool {
	return b == TypeFloat || b == TypeInt || b == TypeUInt
}

// Qualifier is the storage qualifier of a type.
type Qualifier uint8

const (
	QualTemporary Qualifier = iota
	QualGlobal
	QualConst
	QualUniform
	QualBuffer
	QualVertexIn
	QualVaryingIn
	QualVaryingOut
	QualFragmentOut
	QualShared
	QualSpecConst
	QualParamIn
	QualParamOut
	QualParamInOut
)

// String returns the GLSL storage keyword, empty for temporaries and globals.
func (q Qualifier) String() string {
	switch q {
	case QualConst:
		return "const"
	case QualUniform:
		return "uniform"
	case QualBuffer:
		return "buffer"
	case QualVertexIn, QualVaryingIn:
		return "in"
	case QualVaryingOut, QualFragmentOut:
		return "out"
	case QualShared:
		return "shared"
	case QualSpecConst:
		return "const"
	case QualParamOut:
		return "out"
	case QualParamInOut:
		return "inout"
	default:
		return ""
	}
}

// IsInterface reports whether q marks a shader interface variable.
func (q Qualifier) IsInterface() bool {
	switch q {
	case QualUniform, QualBuffer, QualVertexIn, QualVaryingIn, QualVaryingOut, QualFragmentOut:
		return true
	default:
		return false
	}
}

// MatrixPacking is the layout(row_major|column_major) qualifier.
type MatrixPacking uint8

const (
	PackingUnspecified MatrixPacking = iota
	PackingColumnMajor
	PackingRowMajor
)

// Layout holds layout qualifiers. Integer fields use -1 when unspecified;
// construct values with DefaultLayout.
type Layout struct {
	Location   int
	Binding    int
	Set        int
	Offset     int
	Index      int
	ConstantID int
	Storage    shader.BlockLayout
	HasStorage bool
	Packing    MatrixPacking
	Format     string
}

// DefaultLayout returns a layout with nothing specified.
func DefaultLayout() Layout {
	return Layout{Location: -1, Binding: -1, Set: -1, Offset: -1, Index: -1, ConstantID: -1}
}

// IsEmpty reports whether no qualifier is set.
func (l Layout) IsEmpty() bool {
	return l == DefaultLayout()
}

// Field is one member of a struct or interface block. SymbolType decides
// whether the emitter maps the field name.
type Field struct {
	Name       string
	Type       Type
	SymbolType SymbolType
}

// Struct is a named or anonymous struct type. Structs are compared by
// pointer identity.
type Struct struct {
	Name       string
	Fields     []Field
	SymbolType SymbolType
}

// InterfaceBlock is a uniform or buffer block type.
type InterfaceBlock struct {
	Name       string
	Fields     []Field
	Layout     Layout
	BlockType  shader.BlockType
	SymbolType SymbolType
}

// FieldIndex returns the index of the named field or -1.
func (s *Struct) FieldIndex(name string) int {
	for i, f := range s.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// FieldIndex returns the index of the named field or -1.
func (b *InterfaceBlock) FieldIndex(name string) int {
	for i, f := range b.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// Type is the full type of a node or variable.
//
// PrimarySize is the vector size or matrix column count; SecondarySize is
// the matrix row count and 1 otherwise. ArraySizes is innermost first.
type Type struct {
	Basic         BasicType
	Precision     shader.Precision
	Qualifier     Qualifier
	PrimarySize   uint8
	SecondarySize uint8
	ArraySizes    []uint32
	Struct        *Struct
	Block         *InterfaceBlock
	Layout        Layout
	Invariant     bool
	Interpolation shader.Interpolation
	ReadOnly      bool
	WriteOnly     bool
}

// Void is the type of statements.
var Void = Type{Basic: TypeVoid, PrimarySize: 1, SecondarySize: 1, Layout: DefaultLayout()}

// Scalar returns a scalar type.
func Scalar(b BasicType) Type {
	return Type{Basic: b, PrimarySize: 1, SecondarySize: 1, Layout: DefaultLayout()}
}

// Vec returns a vector type of size n.
func Vec(b BasicType, n uint8) Type {
	t := Scalar(b)
	t.PrimarySize = n
	return t
}

// Mat returns a float matrix type with cols columns and rows rows.
func Mat(cols, rows uint8) Type {
	t := Scalar(TypeFloat)
	t.PrimarySize = cols
	t.SecondarySize = rows
	return t
}

// Opaque returns a sampler, image or atomic counter type.
func Opaque(b BasicType) Type {
	t := Scalar(b)
	t.Qualifier = QualUniform
	return t
}

// StructOf returns the type of values of s.
func StructOf(s *Struct) Type {
	t := Scalar(TypeStruct)
	t.Struct = s
	return t
}

// BlockOf returns the type of an instance of b.
func BlockOf(b *InterfaceBlock) Type {
	t := Scalar(TypeInterfaceBlock)
	t.Block = b
	t.Layout = b.Layout
	if b.BlockType == shader.BlockBuffer {
		t.Qualifier = QualBuffer
	} else {
		t.Qualifier = QualUniform
	}
	return t
}

// WithQualifier returns a copy with the given storage qualifier.
func (t Type) WithQualifier(q Qualifier) Type {
	t.Qualifier = q
	return t
}

// WithPrecision returns a copy with the given precision.
func (t Type) WithPrecision(p shader.Precision) Type {
	t.Precision = p
	return t
}

// WithLayout returns a copy with the given layout.
func (t Type) WithLayout(l Layout) Type {
	t.Layout = l
	return t
}

// ArrayOf returns a copy wrapped in an outer array of size n.
func (t Type) ArrayOf(n uint32) Type {
	sizes := make([]uint32, len(t.ArraySizes), len(t.ArraySizes)+1)
	copy(sizes, t.ArraySizes)
	t.ArraySizes = append(sizes, n)
	return t
}

// IsArray reports whether t has array dimensions.
func (t Type) IsArray() bool { return len(t.ArraySizes) > 0 }

// IsMatrix reports whether t is a matrix.
func (t Type) IsMatrix() bool { return t.SecondarySize > 1 && !t.IsArray() }

// IsVector reports whether t is a vector.
func (t Type) IsVector() bool { return t.PrimarySize > 1 && t.SecondarySize <= 1 && !t.IsArray() }

// IsScalar reports whether t is a non-array scalar.
func (t Type) IsScalar() bool {
	return t.PrimarySize <= 1 && t.SecondarySize <= 1 && !t.IsArray() && t.Struct == nil && t.Block == nil
}

// IsStructure reports whether t is a struct (possibly array) type.
func (t Type) IsStructure() bool { return t.Struct != nil }

// ContainsOpaque reports whether t is opaque or a struct holding opaque members.
func (t Type) ContainsOpaque() bool {
	if t.Basic.IsOpaque() {
		return true
	}
	if t.Struct != nil {
		for _, f := range t.Struct.Fields {
			if f.Type.ContainsOpaque() {
				return true
			}
		}
	}
	return false
}

// ContainsNonOpaque reports whether t carries any data that can live in a buffer.
func (t Type) ContainsNonOpaque() bool {
	if t.Struct == nil {
		return !t.Basic.IsOpaque()
	}
	for _, f := range t.Struct.Fields {
		if f.Type.ContainsNonOpaque() {
			return true
		}
	}
	return false
}

// OutermostArraySize returns the outermost dimension or 0.
func (t Type) OutermostArraySize() uint32 {
	if len(t.ArraySizes) == 0 {
		return 0
	}
	return t.ArraySizes[len(t.ArraySizes)-1]
}

// ArraySizeProduct returns the product of all array sizes, 1 for non-arrays.
func (t Type) ArraySizeProduct() uint32 {
	n := uint32(1)
	for _, s := range t.ArraySizes {
		n *= s
	}
	return n
}

// ElementType strips one level of array, matrix column or vector component.
func (t Type) ElementType() Type {
	e := t
	switch {
	case t.IsArray():
		e.ArraySizes = t.ArraySizes[:len(t.ArraySizes)-1:len(t.ArraySizes)-1]
	case t.SecondarySize > 1:
		e.PrimarySize = t.SecondarySize
		e.SecondarySize = 1
	default:
		e.PrimarySize = 1
	}
	e.Qualifier = QualTemporary
	return e
}

// ScalarOf returns the non-array scalar type of t's components.
func (t Type) ScalarOf() Type {
	s := Scalar(t.Basic)
	s.Precision = t.Precision
	return s
}

// VectorOf returns a non-array vector of t's basic type.
func (t Type) VectorOf(n uint8) Type {
	v := Vec(t.Basic, n)
	v.Precision = t.Precision
	return v
}

// ComponentCount returns the number of scalar components of a non-array value.
func (t Type) ComponentCount() int {
	return int(t.PrimarySize) * int(max(t.SecondarySize, 1))
}

// SameShape reports whether two types are interchangeable as values,
// ignoring qualifiers, precision and layout.
func (t Type) SameShape(o Type) bool {
	if t.Basic != o.Basic || t.PrimarySize != o.PrimarySize || max(t.SecondarySize, 1) != max(o.SecondarySize, 1) {
		return false
	}
	if t.Struct != o.Struct || t.Block != o.Block {
		return false
	}
	if len(t.ArraySizes) != len(o.ArraySizes) {
		return false
	}
	for i := range t.ArraySizes {
		if t.ArraySizes[i] != o.ArraySizes[i] {
			return false
		}
	}
	return true
}

// GLType maps a non-struct type to its GL enumerant.
//
//nolint:gocyclo,cyclop // one case per GLSL type
func (t Type) GLType() shader.GLType {
	switch t.Basic {
	case TypeFloat:
		if t.SecondarySize > 1 {
			return matrixGLType(t.PrimarySize, t.SecondarySize)
		}
		return [...]shader.GLType{0, shader.TypeFloat, shader.TypeFloatVec2, shader.TypeFloatVec3, shader.TypeFloatVec4}[clampSize(t.PrimarySize)]
	case TypeInt:
		return [...]shader.GLType{0, shader.TypeInt, shader.TypeIntVec2, shader.TypeIntVec3, shader.TypeIntVec4}[clampSize(t.PrimarySize)]
	case TypeUInt:
		return [...]shader.GLType{0, shader.TypeUInt, shader.TypeUIntVec2, shader.TypeUIntVec3, shader.TypeUIntVec4}[clampSize(t.PrimarySize)]
	case TypeBool:
		return [...]shader.GLType{0, shader.TypeBool, shader.TypeBoolVec2, shader.TypeBoolVec3, shader.TypeBoolVec4}[clampSize(t.PrimarySize)]
	case TypeSampler2D:
		return shader.TypeSampler2D
	case TypeSampler3D:
		return shader.TypeSampler3D
	case TypeSamplerCube:
		return shader.TypeSamplerCube
	case TypeSampler2DArray:
		return shader.TypeSampler2DArray
	case TypeSampler2DShadow:
		return shader.TypeSampler2DShadow
	case TypeSamplerCubeShadow:
		return shader.TypeSamplerCubeShadow
	case TypeSampler2DArrayShadow:
		return shader.TypeSampler2DArrayShadow
	case TypeSamplerExternalOES:
		return shader.TypeSamplerExternalOES
	case TypeSampler2DMS:
		return shader.TypeSampler2DMS
	case TypeISampler2D:
		return shader.TypeIntSampler2D
	case TypeISampler3D:
		return shader.TypeIntSampler3D
	case TypeISamplerCube:
		return shader.TypeIntSamplerCube
	case TypeISampler2DArray:
		return shader.TypeIntSampler2DArray
	case TypeUSampler2D:
		return shader.TypeUIntSampler2D
	case TypeUSampler3D:
		return shader.TypeUIntSampler3D
	case TypeUSamplerCube:
		return shader.TypeUIntSamplerCube
	case TypeUSampler2DArray:
		return shader.TypeUIntSampler2DArray
	case TypeImage2D:
		return shader.TypeImage2D
	case TypeImage3D:
		return shader.TypeImage3D
	case TypeImageCube:
		return shader.TypeImageCube
	case TypeImage2DArray:
		return shader.TypeImage2DArray
	case TypeIImage2D:
		return shader.TypeIntImage2D
	case TypeUImage2D:
		return shader.TypeUIntImage2D
	case TypeAtomicCounter:
		return shader.TypeAtomicCounter
	default:
		return shader.TypeNone
	}
}

func clampSize(n uint8) uint8 {
	if n < 1 {
		return 1
	}
	if n > 4 {
		return 4
	}
	return n
}

func matrixGLType(cols, rows uint8) shader.GLType {
	switch {
	case cols == 2 && rows == 2:
		return shader.TypeFloatMat2
	case cols == 3 && rows == 3:
		return shader.TypeFloatMat3
	case cols == 4 && rows == 4:
		return shader.TypeFloatMat4
	case cols == 2 && rows == 3:
		return shader.TypeFloatMat2x3
	case cols == 2 && rows == 4:
		return shader.TypeFloatMat2x4
	case cols == 3 && rows == 2:
		return shader.TypeFloatMat3x2
	case cols == 3 && rows == 4:
		return shader.TypeFloatMat3x4
	case cols == 4 && rows == 2:
		return shader.TypeFloatMat4x2
	case cols == 4 && rows == 3:
		return shader.TypeFloatMat4x3
	default:
		return shader.TypeNone
	}
}

// Name returns the GLSL spelling of the type without array suffixes.
func (t Type) Name() string {
	switch {
	case t.Struct != nil:
		return t.Struct.Name
	case t.Block != nil:
		return t.Block.Name
	case t.Basic.IsOpaque() || t.Basic == TypeVoid:
		return t.Basic.String()
	case t.SecondarySize > 1:
		if t.PrimarySize == t.SecondarySize {
			return fmt.Sprintf("mat%d", t.PrimarySize)
		}
		return fmt.Sprintf("mat%dx%d", t.PrimarySize, t.SecondarySize)
	case t.PrimarySize > 1:
		prefix := map[BasicType]string{TypeFloat: "vec", TypeInt: "ivec", TypeUInt: "uvec", TypeBool: "bvec"}[t.Basic]
		return fmt.Sprintf("%s%d", prefix, t.PrimarySize)
	default:
		return t.Basic.String()
	}
}

// ArraySuffix returns the "[N]..." suffix, outermost first.
func (t Type) ArraySuffix() string {
	var sb strings.Builder
	for i := len(t.ArraySizes) - 1; i >= 0; i-- {
		fmt.Fprintf(&sb, "[%d]", t.ArraySizes[i])
	}
	return sb.String()
}

// String returns the type name with array suffixes.
func (t Type) String() string {
	return t.Name() + t.ArraySuffix()
}
