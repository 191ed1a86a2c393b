package program

import (
	"github.com/gogpu/glesvk/link"
	"github.com/gogpu/glesvk/shader"
)

// Executable is the frozen result of one successful link. A Program
// never modifies a published Executable; every link builds a new one.
type Executable struct {
	link.Resources

	// Locations of the multi-draw and base vertex built-ins, or -1.
	DrawIDLocation       int
	BaseVertexLocation   int
	BaseInstanceLocation int
}

func newExecutable(res *link.Resources) *Executable {
	return &Executable{
		Resources:            *res,
		DrawIDLocation:       -1,
		BaseVertexLocation:   -1,
		BaseInstanceLocation: -1,
	}
}

// resolveSpecialLocations records the locations of gl_DrawID,
// gl_BaseVertex and gl_BaseInstance. Backends may mark them ignored,
// so it runs before MarkUnusedUniformLocations.
func (e *Executable) resolveSpecialLocations() {
	if !e.Stages.Has(shader.StageVertex) {
		return
	}
	e.DrawIDLocation = e.builtInLocation("gl_DrawID")
	e.BaseVertexLocation = e.builtInLocation("gl_BaseVertex")
	e.BaseInstanceLocation = e.builtInLocation("gl_BaseInstance")
}

func (e *Executable) builtInLocation(name string) int {
	for loc, l := range e.UniformLocations {
		if l.Used() && l.ArrayIndex == 0 && e.Uniforms[l.Index].Name == name {
			return loc
		}
	}
	return -1
}

// ActiveAttributeCount returns the number of active attributes.
func (e *Executable) ActiveAttributeCount() int {
	n := 0
	for i := range e.Attributes {
		if e.Attributes[i].Active {
			n++
		}
	}
	return n
}

// ActiveUniformCount returns the number of active uniforms, including
// members of uniform blocks.
func (e *Executable) ActiveUniformCount() int {
	return len(e.Uniforms) + len(e.BlockUniforms)
}

// IsCompute reports whether the program is a compute program.
func (e *Executable) IsCompute() bool {
	return e.Stages.Has(shader.StageCompute)
}
