package passes

import (
	"slices"

	"github.com/gogpu/glesvk/ir"
	"github.com/gogpu/glesvk/shader"
)

// DefaultUniformsBlockName returns the name of the block holding the
// default uniforms of stage, e.g. defaultUniformsVS.
func DefaultUniformsBlockName(stage shader.Stage) string {
	return "defaultUniforms" + stage.Suffix()
}

// activeDefaultUniformCount counts the active non-opaque uniforms outside
// blocks, minus the struct uniforms removed by sampler extraction.
func (c *Compile) activeDefaultUniformCount() int {
	n := 0
	for _, u := range c.Info.Uniforms {
		if !u.IsBuiltIn() && u.Active && !u.Type.IsOpaque() {
			n++
		}
	}
	return n - c.RemovedStructUniforms
}

// DeclareDefaultUniforms moves the non-opaque default uniforms into one
// instanceless std140 block at set 0. Members keep their names and are
// referenced as before.
func DeclareDefaultUniforms(c *Compile, tree *ir.Tree, symbols *ir.SymbolTable, _ Options) (bool, error) {
	if c.activeDefaultUniformCount() <= 0 {
		return false, nil
	}

	layout := ir.DefaultLayout()
	layout.Set = DefaultUniformSet
	layout.Binding = c.NextBinding()
	layout.Storage = shader.LayoutStd140
	layout.HasStorage = true
	block := &ir.InterfaceBlock{
		Name:       DefaultUniformsBlockName(c.Stage),
		Layout:     layout,
		BlockType:  shader.BlockUniform,
		SymbolType: ir.SymbolInternal,
	}

	root := tree.Statements(tree.Root)
	out := make([]ir.NodeID, 0, len(root))
	at := -1
	for _, s := range root {
		d, ok := tree.Inner(s).(ir.Declaration)
		if !ok || !isDefaultUniform(d.Variable) {
			out = append(out, s)
			continue
		}
		if at < 0 {
			at = len(out)
		}
		v := d.Variable
		block.Fields = append(block.Fields, ir.Field{Name: v.Name, Type: v.Type.WithLayout(ir.DefaultLayout()), SymbolType: v.SymbolType})
		v.Block = block
	}
	if at < 0 {
		return false, nil
	}

	holder := &ir.Variable{Type: ir.BlockOf(block), SymbolType: ir.SymbolEmpty}
	if err := symbols.Declare(holder); err != nil {
		return false, err
	}
	out = slices.Insert(out, at, tree.Declare(holder, ir.NoNode))
	tree.SetStatements(tree.Root, out)
	c.DefaultUniforms = block
	return true, nil
}

func isDefaultUniform(v *ir.Variable) bool {
	if v == nil || v.SymbolType != ir.SymbolUserDefined {
		return false
	}
	t := v.Type
	return t.Qualifier == ir.QualUniform && t.Block == nil && !t.ContainsOpaque()
}
