package passes

import (
	"fmt"
	"slices"

	"github.com/gogpu/glesvk/ir"
)

// Names of the corrected built-in copies.
const (
	FlippedPointCoordName = "flippedPointCoord"
	FlippedFragCoordName  = "flippedFragCoord"
)

// RotateAndFlipBuiltin replaces every use of builtin with an internal
// copy whose xy components are corrected:
//
//	name = vecN(builtin);
//	name.xy = (rotation * builtin.xy - pivot) * flipXY + pivot;
//
// The two statements are inserted at the start of block, or of main when
// block is NoNode. rotation may be NoNode. flipXY, pivot and rotation
// must be fresh nodes; pivot is cloned for its second use.
func RotateAndFlipBuiltin(tree *ir.Tree, symbols *ir.SymbolTable, block ir.NodeID,
	builtin *ir.Variable, name string, flipXY, pivot, rotation ir.NodeID,
) (*ir.Variable, error) {
	typ := ir.Vec(ir.TypeFloat, builtin.Type.PrimarySize).
		WithPrecision(builtin.Type.Precision).
		WithQualifier(ir.QualGlobal)
	corrected, err := symbols.NewInternalVariable(name, typ)
	if err != nil {
		return nil, fmt.Errorf("rotate and flip %s: %w", builtin.Name, err)
	}
	tree.InsertGlobalsBeforeFunctions(tree.Declare(corrected, ir.NoNode))

	if _, err := ir.ReplaceVariableWith(tree, builtin, corrected); err != nil {
		return nil, err
	}

	builtinXY := tree.Swizzle(tree.Symbol(builtin), 0, 1)
	rotated := builtinXY
	if rotation != ir.NoNode {
		rotated = tree.Binary(ir.OpMul, rotation, builtinXY)
	}
	removePivot := tree.Binary(ir.OpSub, rotated, pivot)
	flipped := tree.Binary(ir.OpMul, removePivot, flipXY)
	plusPivot := tree.Binary(ir.OpAdd, flipped, tree.Clone(pivot))

	copyStmt := tree.Assign(tree.Symbol(corrected), tree.Construct(typ, tree.Symbol(builtin)))
	fixStmt := tree.Assign(tree.Swizzle(tree.Symbol(corrected), 0, 1), plusPivot)

	target := block
	if target == ir.NoNode {
		_, body, ok := tree.FindMain()
		if !ok {
			return nil, internalf("rotateAndFlip", "no main function")
		}
		target = body
	}
	stmts := append([]ir.NodeID{copyStmt, fixStmt}, slices.Clone(tree.Statements(target))...)
	tree.SetStatements(target, stmts)
	return corrected, nil
}
