package link

import (
	"fmt"

	"github.com/gogpu/glesvk/shader"
)

// XfbMode is the transform feedback buffer mode.
type XfbMode uint8

const (
	XfbInterleaved XfbMode = iota
	XfbSeparate
)

// String returns the mode name.
func (m XfbMode) String() string {
	if m == XfbSeparate {
		return "separate"
	}
	return "interleaved"
}

// XfbVarying is one captured varying. ArrayIndex selects a single
// element, or is -1 when the whole variable is captured.
type XfbVarying struct {
	Name       string
	Type       shader.GLType
	ArrayIndex int
	// Components is the number of 32-bit components captured.
	Components int
}

// NameWithArrayIndex returns "name[i]" for element captures.
func (x *XfbVarying) NameWithArrayIndex() string {
	if x.ArrayIndex >= 0 {
		return fmt.Sprintf("%s[%d]", x.Name, x.ArrayIndex)
	}
	return x.Name
}

// linkTransformFeedback resolves the captured varyings against the
// outputs of the last vertex-processing stage and checks the component
// limits.
func (l *linker) linkTransformFeedback() bool {
	names := l.in.TransformFeedbackVaryings
	if len(names) == 0 {
		return true
	}
	last := l.in.Shader(shader.StageGeometry)
	if last == nil {
		last = l.in.Shader(shader.StageVertex)
	}
	if last == nil {
		l.log.Printf("Transform feedback requires a vertex or geometry shader.")
		return false
	}
	caps := &l.in.Caps
	mode := l.in.TransformFeedbackMode

	if mode == XfbSeparate && len(names) > caps.MaxTransformFeedbackSeparateAttributes {
		l.log.Printf("Too many transform feedback varyings (%d) for separate mode (%d).",
			len(names), caps.MaxTransformFeedbackSeparateAttributes)
		return false
	}

	seen := make(map[string]bool, len(names))
	total := 0
	captured := make([]XfbVarying, 0, len(names))
	for _, name := range names {
		if seen[name] {
			l.log.Printf("Two transform feedback varyings specify the same output variable (%s).", name)
			return false
		}
		seen[name] = true

		base, index := shader.StripArrayIndex(name)
		v, ok := shader.FindVarying(last.OutputVaryings, base)
		if !ok || (index >= 0 && !v.IsArray()) {
			l.log.Printf("Transform feedback varying %s does not exist in the %s shader.", name, last.Stage)
			return false
		}
		if index >= 0 && uint32(index) >= v.OutermostArraySize() {
			l.log.Printf("Transform feedback varying %s is out of bounds.", name)
			return false
		}
		if v.IsStruct() {
			l.log.Printf("Transform feedback varying %s has struct type, which cannot be captured.", name)
			return false
		}

		elements := 1
		if index < 0 {
			elements = int(v.BasicTypeElementCount())
		}
		components := v.Type.ComponentCount() * elements
		if mode == XfbSeparate && components > caps.MaxTransformFeedbackSeparateComponents {
			l.log.Printf("Transform feedback varying %s components (%d) exceed the maximum separate components (%d).",
				name, components, caps.MaxTransformFeedbackSeparateComponents)
			return false
		}
		total += components
		captured = append(captured, XfbVarying{Name: base, Type: v.Type, ArrayIndex: index, Components: components})
	}
	if mode == XfbInterleaved && total > caps.MaxTransformFeedbackInterleavedComponents {
		l.log.Printf("Transform feedback varying total components (%d) exceed the maximum interleaved components (%d).",
			total, caps.MaxTransformFeedbackInterleavedComponents)
		return false
	}

	l.res.TransformFeedbackVaryings = captured
	l.res.TransformFeedbackMode = mode
	if mode == XfbInterleaved {
		l.res.TransformFeedbackStrides = []int{total * 4}
	} else {
		for _, x := range captured {
			l.res.TransformFeedbackStrides = append(l.res.TransformFeedbackStrides, x.Components*4)
		}
	}
	return true
}
