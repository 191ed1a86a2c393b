package passes

import (
	"fmt"

	"github.com/gogpu/glesvk/ir"
	"github.com/gogpu/glesvk/shader"
)

// XfbOutputPlaceholder is the statement the backend replaces with
// transform feedback writes.
const XfbOutputPlaceholder = "@@ XFB-OUT @@"

// ReplaceGLDepthRange replaces gl_DepthRange with driverUniforms.depthRange.
func ReplaceGLDepthRange(c *Compile, tree *ir.Tree, symbols *ir.SymbolTable, _ Options) (bool, error) {
	depthRange := symbols.FindBuiltIn("gl_DepthRange")
	if depthRange == nil {
		return false, nil
	}
	var ferr error
	n, err := ir.ReplaceVariable(tree, depthRange, func() ir.NodeID {
		ref, err := c.Driver.Field(tree, FieldDepthRange)
		if err != nil {
			ferr = err
		}
		return ref
	})
	if ferr != nil {
		return false, ferr
	}
	return n > 0, err
}

// AppendTransformFeedbackOutput appends the transform feedback
// placeholder statement to main. It runs before any rewrite of
// gl_Position so captured positions are the shader's own.
func AppendTransformFeedbackOutput(c *Compile, tree *ir.Tree, symbols *ir.SymbolTable, _ Options) (bool, error) {
	placeholder := symbols.NewTemporary(XfbOutputPlaceholder, ir.Void)
	if err := tree.AppendToMain(symbols, tree.Symbol(placeholder)); err != nil {
		return false, internalf("appendXfbOutput", "%v", err)
	}
	c.XfbPlaceholders = true
	return true, nil
}

// ShaderBuiltinsWorkaround applies the vertex shader output workarounds:
// zero-initialized outputs and a clamped point size.
func ShaderBuiltinsWorkaround(c *Compile, tree *ir.Tree, symbols *ir.SymbolTable, opts Options) (bool, error) {
	if c.Stage != shader.StageVertex {
		return false, nil
	}
	changed := false
	if opts.InitializeOutputVariables {
		var stmts []ir.NodeID
		for _, v := range tree.GlobalDeclarations() {
			if v.Type.Qualifier == ir.QualVaryingOut && v.SymbolType == ir.SymbolUserDefined {
				stmts = append(stmts, tree.Assign(tree.Symbol(v), zeroValue(tree, v.Type)))
			}
		}
		if pos := symbols.FindBuiltIn("gl_Position"); pos != nil {
			stmts = append(stmts, tree.Assign(tree.Symbol(pos), zeroValue(tree, pos.Type)))
		}
		if err := tree.PrependToMain(stmts...); err != nil {
			return false, internalf("builtinWorkarounds", "%v", err)
		}
		changed = len(stmts) > 0
	}
	if opts.ClampPointSize && usesBuiltIn(tree, symbols, "gl_PointSize") {
		ps := symbols.FindBuiltIn("gl_PointSize")
		maxSize := c.Resources.MaxPointSize
		if maxSize < 1 {
			maxSize = 1
		}
		clamped := tree.CallBuiltIn("clamp", ps.Type, tree.Symbol(ps), tree.Float(1), tree.Float(maxSize))
		if err := tree.AppendToMain(symbols, tree.Assign(tree.Symbol(ps), clamped)); err != nil {
			return false, internalf("builtinWorkarounds", "%v", err)
		}
		changed = true
	}
	return changed, nil
}

// zeroValue builds a constructor producing the zero value of t.
func zeroValue(tree *ir.Tree, t ir.Type) ir.NodeID {
	t = t.WithQualifier(ir.QualTemporary)
	if t.IsArray() {
		elem := t.ElementType()
		n := t.OutermostArraySize()
		args := make([]ir.NodeID, n)
		for i := range args {
			args[i] = zeroValue(tree, elem)
		}
		return tree.Construct(t, args...)
	}
	if t.Struct != nil {
		args := make([]ir.NodeID, len(t.Struct.Fields))
		for i, f := range t.Struct.Fields {
			args[i] = zeroValue(tree, f.Type)
		}
		return tree.Construct(t, args...)
	}
	var scalar ir.NodeID
	switch t.Basic {
	case ir.TypeInt:
		scalar = tree.Int(0)
	case ir.TypeUInt:
		scalar = tree.UInt(0)
	case ir.TypeBool:
		scalar = tree.Bool(false)
	case ir.TypeFloat:
		scalar = tree.Float(0)
	default:
		panic(fmt.Sprintf("passes: no zero value for %s", t))
	}
	if t.IsScalar() {
		return scalar
	}
	return tree.Construct(t, scalar)
}
