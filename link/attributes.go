package link

import (
	"slices"

	"github.com/gogpu/glesvk/shader"
)

// linkAttributes assigns a location to every vertex input. Explicit
// locations, from a layout qualifier or the binding table, are placed
// first; the rest take the lowest free run of registers.
func (l *linker) linkAttributes() bool {
	vs := l.in.Shader(shader.StageVertex)
	if vs == nil {
		return true
	}
	maxAttribs := l.in.Caps.MaxVertexAttributes
	strict := vs.Version >= 300 || l.in.WebGL || l.in.Limitations.NoVertexAttributeAliasing

	// ES 3.00 rules apply to every declared attribute; ES 1.00 only
	// considers the active ones.
	var src []shader.Variable
	if vs.Version >= 300 {
		src = vs.Attributes
	} else {
		src = vs.ActiveAttributes()
	}
	inputs := make([]shader.Variable, len(src))
	for i := range src {
		inputs[i] = src[i].Clone()
	}

	var used LocationMask
	owner := make([]int, maxAttribs)
	for i := range owner {
		owner[i] = -1
	}

	for i := range inputs {
		a := &inputs[i]
		if a.IsBuiltIn() {
			continue
		}
		if a.Location == -1 {
			a.Location = l.in.AttributeBindings.Lookup(a.Name)
		}
		if a.Location == -1 {
			continue
		}
		regs := a.Type.Registers()
		if a.Location < 0 || a.Location+regs > maxAttribs {
			l.log.Printf("Attribute (%s) at location %d is too big to fit", a.Name, a.Location)
			return false
		}
		for r := range regs {
			loc := a.Location + r
			if prev := owner[loc]; prev != -1 {
				if strict {
					l.log.Printf("Attribute '%s' aliases attribute '%s' at location %d",
						a.Name, inputs[prev].Name, loc)
					return false
				}
			} else {
				owner[loc] = i
			}
			used.Set(loc)
		}
	}

	for i := range inputs {
		a := &inputs[i]
		if a.IsBuiltIn() || a.Location != -1 {
			continue
		}
		regs := a.Type.Registers()
		loc := firstFreeRun(&used, regs, maxAttribs)
		if loc == -1 {
			l.log.Printf("Too many attributes (%s)", a.Name)
			return false
		}
		a.Location = loc
	}

	if vs.Version >= 300 {
		inputs = slices.DeleteFunc(inputs, func(v shader.Variable) bool { return !v.Active })
	}

	for i := range inputs {
		a := &inputs[i]
		if a.IsBuiltIn() {
			continue
		}
		for r := range a.Type.Registers() {
			loc := a.Location + r
			l.res.ActiveAttributes.Set(loc)
			l.res.MaxActiveAttribLocation = max(l.res.MaxActiveAttribLocation, loc+1)
			l.res.AttributesTypeMask.Set(loc, a.Type.Component())
		}
	}
	l.res.Attributes = inputs
	return true
}
