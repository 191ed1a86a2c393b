package passes

import (
	"slices"

	"github.com/gogpu/glesvk/ir"
	"github.com/gogpu/glesvk/shader"
)

// RemoveInactiveInterfaceVariables deletes the global declarations of
// interface variables and blocks whose introspection record is inactive.
// Variables without a record are kept.
func RemoveInactiveInterfaceVariables(c *Compile, tree *ir.Tree, _ *ir.SymbolTable, _ Options) (bool, error) {
	root := tree.Statements(tree.Root)
	kept := make([]ir.NodeID, 0, len(root))
	for _, s := range root {
		d, ok := tree.Inner(s).(ir.Declaration)
		if ok && d.Variable != nil && c.isInactive(d.Variable) && len(tree.References(tree.Root, d.Variable)) == 0 {
			continue
		}
		kept = append(kept, s)
	}
	if len(kept) == len(root) {
		return false, nil
	}
	tree.SetStatements(tree.Root, kept)
	return true, nil
}

func (c *Compile) isInactive(v *ir.Variable) bool {
	if v.SymbolType == ir.SymbolBuiltIn || v.SymbolType == ir.SymbolInternal {
		return false
	}
	if b := v.Type.Block; b != nil {
		blocks := c.Info.UniformBlocks
		if b.BlockType == shader.BlockBuffer {
			blocks = c.Info.StorageBlocks
		}
		i := slices.IndexFunc(blocks, func(r shader.InterfaceBlock) bool { return r.Name == b.Name })
		return i >= 0 && !blocks[i].Active
	}

	var records []shader.Variable
	switch v.Type.Qualifier {
	case ir.QualVertexIn:
		records = c.Info.Attributes
	case ir.QualVaryingIn:
		records = c.Info.InputVaryings
	case ir.QualVaryingOut:
		records = c.Info.OutputVaryings
	case ir.QualFragmentOut:
		records = c.Info.Outputs
	case ir.QualUniform:
		records = c.Info.Uniforms
	default:
		return false
	}
	i := slices.IndexFunc(records, func(r shader.Variable) bool { return r.Name == v.Name })
	return i >= 0 && !records[i].Active
}
