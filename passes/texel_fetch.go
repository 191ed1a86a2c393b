package passes

import (
	"github.com/gogpu/glesvk/ir"
)

// FlagSamplersWithTexelFetch marks the introspection records of samplers
// read with texelFetch. The tree is not changed.
func FlagSamplersWithTexelFetch(c *Compile, tree *ir.Tree, _ *ir.SymbolTable, _ Options) (bool, error) {
	tree.Walk(tree.Root, func(id ir.NodeID, _ []ir.NodeID) bool {
		a, ok := tree.Inner(id).(ir.Aggregate)
		if !ok || a.Op != ir.AggCallBuiltIn || len(a.Args) == 0 {
			return true
		}
		if a.Name != "texelFetch" && a.Name != "texelFetchOffset" {
			return true
		}
		if v := rootVariable(tree, a.Args[0]); v != nil {
			if u := c.findUniform(v.Name); u != nil {
				u.TexelFetchStaticUse = true
			}
		}
		return true
	})
	return false, nil
}

// rootVariable returns the variable an access chain starts from.
func rootVariable(tree *ir.Tree, id ir.NodeID) *ir.Variable {
	for {
		switch n := tree.Inner(id).(type) {
		case ir.Symbol:
			return n.Variable
		case ir.Binary:
			if !n.Op.IsIndex() {
				return nil
			}
			id = n.Left
		case ir.Swizzle:
			id = n.Operand
		default:
			return nil
		}
	}
}
