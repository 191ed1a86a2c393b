package link

import (
	"github.com/gogpu/glesvk/shader"
)

// validateGlobalNames rejects a uniform that shares its name with an
// attribute or with a field of an instanceless uniform block, and
// instanceless block fields that collide with a different field.
func (l *linker) validateGlobalNames() bool {
	uniforms := make(map[string]bool)
	type blockField struct {
		block *shader.InterfaceBlock
		field *shader.Variable
	}
	blockFields := make(map[string][]blockField)
	var fieldOrder []string

	for _, stage := range shader.GraphicsStages {
		c := l.in.Shader(stage)
		if c == nil {
			continue
		}
		for i := range c.Uniforms {
			uniforms[c.Uniforms[i].Name] = true
		}
		for i := range c.UniformBlocks {
			b := &c.UniformBlocks[i]
			if b.InstanceName != "" {
				continue
			}
			for j := range b.Fields {
				f := &b.Fields[j]
				prevs, seen := blockFields[f.Name]
				if !seen {
					fieldOrder = append(fieldOrder, f.Name)
				}
				for _, prev := range prevs {
					if sameBlock(prev.block, b) {
						continue
					}
					if m, _ := compareVariables(f, prev.field, compareOptions{precision: true}); m != NoMismatch {
						l.log.Printf("Name conflicts between uniform block field names: %s", f.Name)
						return false
					}
				}
				blockFields[f.Name] = append(prevs, blockField{block: b, field: f})
			}
		}
	}

	if vs := l.in.Shader(shader.StageVertex); vs != nil {
		for _, a := range vs.ActiveAttributes() {
			if uniforms[a.Name] {
				l.log.Printf("Name conflicts between a uniform and an attribute: %s", a.Name)
				return false
			}
		}
	}
	for _, name := range fieldOrder {
		if uniforms[name] {
			l.log.Printf("Name conflicts between a uniform and a uniform block field: %s", name)
			return false
		}
	}
	return true
}

// sameBlock reports whether two declarations denote the same block at
// link time.
func sameBlock(b1, b2 *shader.InterfaceBlock) bool {
	if b1.Name != b2.Name {
		return false
	}
	m, _ := compareBlocks(b1, b2, true)
	return m == NoMismatch
}
