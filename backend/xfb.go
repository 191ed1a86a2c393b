package backend

import (
	"fmt"
	"strings"

	"github.com/gogpu/glesvk/glsl"
	"github.com/gogpu/glesvk/link"
	"github.com/gogpu/glesvk/passes"
	"github.com/gogpu/glesvk/shader"
)

// substituteXfb replaces the transform feedback placeholders of src.
// With capture nil both placeholders are removed.
func substituteXfb(src string, capture *xfbCapture) string {
	if !strings.Contains(src, "@@") {
		return src
	}
	lines := strings.Split(src, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch trimmed {
		case glsl.XfbDeclPlaceholder:
			if capture != nil {
				out = append(out, capture.decl...)
			}
		case glsl.XfbOutPlaceholder + ";", glsl.XfbOutPlaceholder:
			if capture != nil {
				indent := line[:len(line)-len(strings.TrimLeft(line, " \t"))]
				for _, c := range capture.out {
					out = append(out, indent+c)
				}
			}
		default:
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// xfbCapture is the generated emulation code: buffer declarations for
// the header and the capture statements for the end of main.
type xfbCapture struct {
	decl []string
	out  []string
}

// newXfbCapture generates code writing the captured varyings of last
// to storage buffers at the offsets computed by the getXfbOffsets
// helper. infos supplies the buffer bindings.
func newXfbCapture(res *link.Resources, last *shader.Compiled, infos VariableInfoMap) *xfbCapture {
	if len(res.TransformFeedbackVaryings) == 0 {
		return nil
	}
	buffers := xfbBufferCount(res)
	c := &xfbCapture{}
	for b := range buffers {
		info := infos[XfbBufferName(b)]
		c.decl = append(c.decl, fmt.Sprintf(
			"layout(set = %d, binding = %d, std430) buffer %s { float xfbOut%d[]; };",
			info.Set, info.Binding, XfbBufferName(b), b))
	}

	var strides [4]int
	for i, s := range res.TransformFeedbackStrides {
		if i < len(strides) {
			strides[i] = s / 4
		}
	}
	c.out = append(c.out,
		fmt.Sprintf("if (%s.%s != 0u)", passes.DriverUniformsInstanceName, passes.FieldXfbActiveUnpaused),
		"{",
		fmt.Sprintf("    ivec4 xfbOffsets = %s(ivec4(%d, %d, %d, %d));",
			passes.XfbOffsetsFuncName, strides[0], strides[1], strides[2], strides[3]),
	)
	offset := 0
	for i := range res.TransformFeedbackVaryings {
		x := &res.TransformFeedbackVaryings[i]
		buffer := 0
		if res.TransformFeedbackMode == link.XfbSeparate {
			buffer = i
			offset = 0
		}
		for _, expr := range xfbComponents(x, mappedVaryingName(last, x.Name)) {
			c.out = append(c.out, fmt.Sprintf("    xfbOut%d[xfbOffsets[%d] + %d] = %s;", buffer, buffer, offset, expr))
			offset++
		}
	}
	c.out = append(c.out, "}")
	return c
}

// mappedVaryingName returns the name name was written as in last.
func mappedVaryingName(last *shader.Compiled, name string) string {
	if last == nil {
		return name
	}
	if v, ok := shader.FindVarying(last.OutputVaryings, name); ok && v.MappedName != "" {
		return v.MappedName
	}
	return name
}

// xfbComponents returns one float expression per captured component.
func xfbComponents(x *link.XfbVarying, name string) []string {
	var elements []string
	switch {
	case x.ArrayIndex >= 0:
		elements = []string{fmt.Sprintf("%s[%d]", name, x.ArrayIndex)}
	default:
		per := max(1, x.Type.ComponentCount())
		n := max(1, x.Components/per)
		if n == 1 {
			elements = []string{name}
		} else {
			for e := range n {
				elements = append(elements, fmt.Sprintf("%s[%d]", name, e))
			}
		}
	}

	t := x.Type
	var out []string
	for _, e := range elements {
		switch {
		case t.IsMatrix():
			for col := range t.ColumnCount() {
				for row := range t.RowCount() {
					out = append(out, toFloatBits(t, fmt.Sprintf("%s[%d][%d]", e, col, row)))
				}
			}
		case t.ComponentCount() == 1:
			out = append(out, toFloatBits(t, e))
		default:
			for k := range t.ComponentCount() {
				out = append(out, toFloatBits(t, e+"."+string("xyzw"[k])))
			}
		}
	}
	return out
}

// toFloatBits stores integer components bit-exactly in the float buffer.
func toFloatBits(t shader.GLType, expr string) string {
	switch {
	case t.IsBool():
		return "float(" + expr + ")"
	case t.Component() == shader.ComponentInt:
		return "intBitsToFloat(" + expr + ")"
	case t.Component() == shader.ComponentUInt:
		return "uintBitsToFloat(" + expr + ")"
	default:
		return expr
	}
}
