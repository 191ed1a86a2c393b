package link

import (
	"slices"
	"strings"

	"github.com/gogpu/glesvk/shader"
)

// Mismatch names the property on which two declarations of the same
// variable disagree.
type Mismatch uint8

const (
	NoMismatch Mismatch = iota
	MismatchType
	MismatchArraySize
	MismatchPrecision
	MismatchStructName
	MismatchFieldNumber
	MismatchFieldName
	MismatchInterpolation
	MismatchInvariance
	MismatchBinding
	MismatchLocation
	MismatchOffset
	MismatchInstanceName
	MismatchFormat
	MismatchLayoutQualifier
	MismatchMatrixPacking
)

// String returns the capitalized property name used in link messages.
func (m Mismatch) String() string {
	switch m {
	case MismatchType:
		return "Type"
	case MismatchArraySize:
		return "Array size"
	case MismatchPrecision:
		return "Precision"
	case MismatchStructName:
		return "Structure name"
	case MismatchFieldNumber:
		return "Field number"
	case MismatchFieldName:
		return "Field name"
	case MismatchInterpolation:
		return "Interpolation type"
	case MismatchInvariance:
		return "Invariance"
	case MismatchBinding:
		return "Binding layout qualifier"
	case MismatchLocation:
		return "Location layout qualifier"
	case MismatchOffset:
		return "Offset layout qualifier"
	case MismatchInstanceName:
		return "Instance name qualifier"
	case MismatchFormat:
		return "Format qualifier"
	case MismatchLayoutQualifier:
		return "Layout qualifier"
	case MismatchMatrixPacking:
		return "Matrix Packing"
	default:
		return "None"
	}
}

// stageName returns the upper-case stage name used in link messages.
func stageName(s shader.Stage) string {
	return strings.ToUpper(s.String())
}

// logMismatch writes "<Kind>s of <what> '<name>'[ member '<name.field>']
// differ between <A> and <B> shaders."
func logMismatch(log *InfoLog, name, what string, m Mismatch, field string, a, b shader.Stage) {
	var sb strings.Builder
	sb.WriteString(m.String())
	sb.WriteString("s of ")
	sb.WriteString(what)
	sb.WriteString(" '")
	sb.WriteString(name)
	if field != "" {
		sb.WriteString("' member '")
		sb.WriteString(name)
		sb.WriteByte('.')
		sb.WriteString(field)
	}
	sb.WriteString("' differ between ")
	sb.WriteString(stageName(a))
	sb.WriteString(" and ")
	sb.WriteString(stageName(b))
	sb.WriteString(" shaders.")
	log.Printf("%s", sb.String())
}

// compareOptions selects which properties compareVariables checks.
type compareOptions struct {
	precision bool
	// ignoreOuterArray2 compares v2 as if its outermost array dimension
	// were stripped, as for geometry shader inputs.
	ignoreOuterArray2 bool
}

// compareVariables checks that two declarations agree on type, array
// sizes, struct shape and optionally precision. For a struct mismatch it
// returns the dotted path of the first differing field.
func compareVariables(v1, v2 *shader.Variable, opts compareOptions) (Mismatch, string) {
	if v1.Type != v2.Type {
		return MismatchType, ""
	}
	sizes2 := v2.ArraySizes
	if opts.ignoreOuterArray2 && len(sizes2) > 0 {
		sizes2 = sizes2[:len(sizes2)-1]
	}
	if !slices.Equal(v1.ArraySizes, sizes2) {
		return MismatchArraySize, ""
	}
	if opts.precision && v1.Precision != v2.Precision {
		return MismatchPrecision, ""
	}
	if v1.StructName != v2.StructName {
		return MismatchStructName, ""
	}
	if v1.ImageFormat != v2.ImageFormat {
		return MismatchFormat, ""
	}
	if len(v1.Fields) != len(v2.Fields) {
		return MismatchFieldNumber, ""
	}
	for i := range v1.Fields {
		f1, f2 := &v1.Fields[i], &v2.Fields[i]
		if f1.Name != f2.Name {
			return MismatchFieldName, ""
		}
		m, field := compareVariables(f1, f2, compareOptions{precision: opts.precision})
		if m != NoMismatch {
			return m, parentPrefix(f1.Name, field)
		}
	}
	return NoMismatch, ""
}

func parentPrefix(parent, field string) string {
	if field == "" {
		return parent
	}
	return parent + "." + field
}
