package passes

import (
	"github.com/gogpu/glesvk/ir"
	"github.com/gogpu/glesvk/shader"
)

// Internal names introduced by fragment rewrites.
const (
	LineRasterPositionName = "linePosition"
	FragColorName          = "webgl_FragColor"
	FragDataName           = "webgl_FragData"
	SampleMaskInName       = "sampleMaskIn"
)

// lineRasterThreshold is 0.5 plus an epsilon that keeps exactly
// horizontal and vertical lines stable.
const lineRasterThreshold = 0.5 + 0.0001

// FragmentStage runs the fragment-only rewrites in order.
func FragmentStage(c *Compile, tree *ir.Tree, symbols *ir.SymbolTable, opts Options) (bool, error) {
	usesFragCoord := usesBuiltIn(tree, symbols, "gl_FragCoord")
	usesPointCoord := usesBuiltIn(tree, symbols, "gl_PointCoord")

	changed := false
	apply := func(did bool, err error) error {
		changed = changed || did
		return err
	}

	if opts.AddBresenhamLineRasterEmulation {
		if err := apply(AddBresenhamEmulationFS(c, tree, symbols, opts, usesFragCoord)); err != nil {
			return changed, err
		}
	}
	if err := apply(DeclareFragmentOutputs(c, tree, symbols, opts)); err != nil {
		return changed, err
	}
	if usesPointCoord {
		if err := apply(FlipPointCoord(c, tree, symbols, opts)); err != nil {
			return changed, err
		}
	}
	if usesFragCoord {
		if err := apply(FlipFragCoord(c, tree, symbols, opts, ir.NoNode)); err != nil {
			return changed, err
		}
	}
	for _, p := range []Pass{RewriteDfdy, RewriteInterpolateAtOffset, RewriteSampleMaskIn, RewriteSampleMask, ReplaceNumSamples} {
		if err := apply(p(c, tree, symbols, opts)); err != nil {
			return changed, err
		}
	}
	c.Header.EarlyFragmentTests = c.Info.EarlyFragmentTests
	return changed, nil
}

// FlipPointCoord corrects gl_PointCoord for the flipped viewport.
func FlipPointCoord(c *Compile, tree *ir.Tree, symbols *ir.SymbolTable, opts Options) (bool, error) {
	pc := symbols.FindBuiltIn("gl_PointCoord")
	if pc == nil {
		return false, nil
	}
	flip, err := c.Driver.Field(tree, FieldNegFlipXY)
	if err != nil {
		return false, err
	}
	rotation, err := c.fragRotation(tree, opts)
	if err != nil {
		return false, err
	}
	_, err = RotateAndFlipBuiltin(tree, symbols, ir.NoNode, pc, FlippedPointCoordName, flip, tree.Float(0.5), rotation)
	return err == nil, err
}

// FlipFragCoord corrects gl_FragCoord for the flipped and possibly
// rotated render area. The correction goes at the start of block, or of
// main when block is NoNode.
func FlipFragCoord(c *Compile, tree *ir.Tree, symbols *ir.SymbolTable, opts Options, block ir.NodeID) (bool, error) {
	fc := symbols.FindBuiltIn("gl_FragCoord")
	if fc == nil {
		return false, nil
	}
	flip, err := c.Driver.Field(tree, FieldFlipXY)
	if err != nil {
		return false, err
	}
	pivot, err := c.Driver.Field(tree, FieldHalfRenderArea)
	if err != nil {
		return false, err
	}
	rotation, err := c.fragRotation(tree, opts)
	if err != nil {
		return false, err
	}
	_, err = RotateAndFlipBuiltin(tree, symbols, block, fc, FlippedFragCoordName, flip, pivot, rotation)
	return err == nil, err
}

func (c *Compile) fragRotation(tree *ir.Tree, opts Options) (ir.NodeID, error) {
	if !opts.AddPreRotation {
		return ir.NoNode, nil
	}
	return c.Driver.Field(tree, FieldFragRotation)
}

// negFlipY returns driverUniforms.negFlipXY.y.
func (c *Compile) negFlipY(tree *ir.Tree) (ir.NodeID, error) {
	ref, err := c.Driver.Field(tree, FieldNegFlipXY)
	if err != nil {
		return ir.NoNode, err
	}
	return tree.Swizzle(ref, 1), nil
}

// RewriteDfdy multiplies every dFdy result by the y flip so derivatives
// keep GL orientation.
func RewriteDfdy(c *Compile, tree *ir.Tree, _ *ir.SymbolTable, _ Options) (bool, error) {
	var calls, parents []ir.NodeID
	tree.Traverse(tree.Root, func(visit ir.Visit, id ir.NodeID, path []ir.NodeID) bool {
		if visit != ir.PreVisit {
			return true
		}
		if a, ok := tree.Inner(id).(ir.Aggregate); ok && a.Op == ir.AggCallBuiltIn && a.Name == "dFdy" {
			calls = append(calls, id)
			parents = append(parents, ir.ParentOf(path))
		}
		return true
	})
	if len(calls) == 0 {
		return false, nil
	}
	var log ir.RewriteLog
	for i, id := range calls {
		flip, err := c.negFlipY(tree)
		if err != nil {
			return false, err
		}
		log.Replace(parents[i], id, tree.Binary(ir.OpMul, id, flip))
	}
	return true, log.Apply(tree)
}

// RewriteInterpolateAtOffset flips the y component of the offset passed
// to interpolateAtOffset.
func RewriteInterpolateAtOffset(c *Compile, tree *ir.Tree, _ *ir.SymbolTable, _ Options) (bool, error) {
	var calls []ir.NodeID
	tree.Walk(tree.Root, func(id ir.NodeID, _ []ir.NodeID) bool {
		if a, ok := tree.Inner(id).(ir.Aggregate); ok && a.Op == ir.AggCallBuiltIn &&
			a.Name == "interpolateAtOffset" && len(a.Args) == 2 {
			calls = append(calls, id)
		}
		return true
	})
	for _, id := range calls {
		a := tree.Inner(id).(ir.Aggregate)
		flip, err := c.negFlipY(tree)
		if err != nil {
			return false, err
		}
		scale := tree.Construct(highp(ir.Vec(ir.TypeFloat, 2)), tree.Float(1), flip)
		args := []ir.NodeID{a.Args[0], tree.Binary(ir.OpMul, a.Args[1], scale)}
		a.Args = args
		tree.SetInner(id, a)
	}
	return len(calls) > 0, nil
}

// sampleCountMask builds ((1 << numSamples) - 1).
func (c *Compile) sampleCountMask(tree *ir.Tree) (ir.NodeID, error) {
	numSamples, err := c.Driver.Field(tree, FieldNumSamples)
	if err != nil {
		return ir.NoNode, err
	}
	return tree.Binary(ir.OpSub, tree.Binary(ir.OpShiftLeft, tree.Int(1), numSamples), tree.Int(1)), nil
}

// RewriteSampleMaskIn masks gl_SampleMaskIn to the samples that exist in
// the framebuffer.
func RewriteSampleMaskIn(c *Compile, tree *ir.Tree, symbols *ir.SymbolTable, _ Options) (bool, error) {
	in := symbols.FindBuiltIn("gl_SampleMaskIn")
	if in == nil || len(tree.References(tree.Root, in)) == 0 {
		return false, nil
	}
	typ := in.Type.WithQualifier(ir.QualGlobal)
	masked, err := symbols.NewInternalVariable(SampleMaskInName, typ)
	if err != nil {
		return false, err
	}
	tree.InsertGlobalsBeforeFunctions(tree.Declare(masked, ir.NoNode))
	if _, err := ir.ReplaceVariableWith(tree, in, masked); err != nil {
		return false, err
	}
	mask, err := c.sampleCountMask(tree)
	if err != nil {
		return false, err
	}
	value := tree.Binary(ir.OpBitAnd, tree.Index(tree.Symbol(in), 0), mask)
	if err := tree.PrependToMain(tree.Assign(tree.Index(tree.Symbol(masked), 0), value)); err != nil {
		return false, internalf("rewriteSampleMaskIn", "%v", err)
	}
	return true, nil
}

// RewriteSampleMask makes gl_SampleMask writes a no-op on single-sampled
// framebuffers, where GLES ignores the mask.
func RewriteSampleMask(c *Compile, tree *ir.Tree, symbols *ir.SymbolTable, _ Options) (bool, error) {
	out := symbols.FindBuiltIn("gl_SampleMask")
	if out == nil || len(tree.References(tree.Root, out)) == 0 {
		return false, nil
	}
	numSamples, err := c.Driver.Field(tree, FieldNumSamples)
	if err != nil {
		return false, err
	}
	single := tree.Binary(ir.OpLessEqual, numSamples, tree.Int(1))
	all := tree.Assign(tree.Index(tree.Symbol(out), 0), tree.Int(-1))
	stmt := tree.If(single, tree.NewBlock(all), ir.NoNode)
	if err := tree.AppendToMain(symbols, stmt); err != nil {
		return false, internalf("rewriteSampleMask", "%v", err)
	}
	return true, nil
}

// ReplaceNumSamples replaces gl_NumSamples with driverUniforms.numSamples.
func ReplaceNumSamples(c *Compile, tree *ir.Tree, symbols *ir.SymbolTable, _ Options) (bool, error) {
	v := symbols.FindBuiltIn("gl_NumSamples")
	if v == nil || len(tree.References(tree.Root, v)) == 0 {
		return false, nil
	}
	var ferr error
	n, err := ir.ReplaceVariable(tree, v, func() ir.NodeID {
		ref, err := c.Driver.Field(tree, FieldNumSamples)
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

// DeclareFragmentOutputs replaces the ES 1.00 outputs gl_FragColor and
// gl_FragData with user-visible outputs at location 0.
func DeclareFragmentOutputs(_ *Compile, tree *ir.Tree, symbols *ir.SymbolTable, _ Options) (bool, error) {
	changed := false
	for _, name := range []string{"gl_FragColor", "gl_FragData"} {
		builtin := symbols.FindBuiltIn(name)
		if builtin == nil || len(tree.References(tree.Root, builtin)) == 0 {
			continue
		}
		replacement := FragColorName
		if name == "gl_FragData" {
			replacement = FragDataName
		}
		layout := ir.DefaultLayout()
		layout.Location = 0
		typ := builtin.Type.WithQualifier(ir.QualFragmentOut).WithLayout(layout)
		v, err := symbols.NewInternalVariable(replacement, typ)
		if err != nil {
			return changed, err
		}
		tree.InsertGlobalsBeforeFunctions(tree.Declare(v, ir.NoNode))
		if _, err := ir.ReplaceVariableWith(tree, builtin, v); err != nil {
			return changed, err
		}
		changed = true
	}
	return changed, nil
}

// AddBresenhamEmulationFS discards fragments outside the GL line
// rasterization diamond when the lineRasterEmulation specialization
// constant is set:
//
//	vec2 p = (linePosition * 0.5 + 0.5) * viewport.zw + viewport.xy;
//	vec2 d = dFdx(p) + dFdy(p);
//	vec2 f = gl_FragCoord.xy;
//	vec2 i = abs(p - f + (d / d.yx) * (f.yx - p.yx));
//	if (i.x > 0.5 + e && i.y > 0.5 + e) discard;
//
// When the shader does not read gl_FragCoord itself, the coordinate
// correction is placed inside the emulation block.
func AddBresenhamEmulationFS(c *Compile, tree *ir.Tree, symbols *ir.SymbolTable, opts Options, usesFragCoord bool) (bool, error) {
	guard, err := c.declareLineRasterEmulation(tree, symbols)
	if err != nil {
		return false, err
	}
	position, err := declareLinePosition(tree, symbols, ir.QualVaryingIn)
	if err != nil {
		return false, err
	}
	fragCoord := symbols.FindBuiltIn("gl_FragCoord")
	if fragCoord == nil {
		return false, internalf("bresenhamFS", "gl_FragCoord is not visible")
	}
	vec2 := highp(ir.Vec(ir.TypeFloat, 2))
	viewport := func(a, b uint8) (ir.NodeID, error) {
		ref, err := c.Driver.Field(tree, FieldViewport)
		if err != nil {
			return ir.NoNode, err
		}
		return tree.Swizzle(ref, a, b), nil
	}
	viewportXY, err := viewport(0, 1)
	if err != nil {
		return false, err
	}
	viewportZW, err := viewport(2, 3)
	if err != nil {
		return false, err
	}

	sym := tree.Symbol
	p := symbols.NewTemporary("p", vec2)
	d := symbols.NewTemporary("d", vec2)
	f := symbols.NewTemporary("f", vec2)
	pYX := symbols.NewTemporary("p_", vec2)
	dYX := symbols.NewTemporary("d_", vec2)
	fYX := symbols.NewTemporary("f_", vec2)
	i := symbols.NewTemporary("i", vec2)

	half := tree.Binary(ir.OpAdd, tree.Binary(ir.OpMul, sym(position), tree.Float(0.5)), tree.Float(0.5))
	window := tree.Binary(ir.OpAdd, tree.Binary(ir.OpMul, half, viewportZW), viewportXY)
	deriv := tree.Binary(ir.OpAdd,
		tree.CallBuiltIn("dFdx", vec2, sym(p)),
		tree.CallBuiltIn("dFdy", vec2, sym(p)))
	dist := tree.Binary(ir.OpAdd,
		tree.Binary(ir.OpSub, sym(p), sym(f)),
		tree.Binary(ir.OpMul,
			tree.Binary(ir.OpDiv, sym(d), sym(dYX)),
			tree.Binary(ir.OpSub, sym(fYX), sym(pYX))))

	outside := tree.Binary(ir.OpLogicalAnd,
		tree.Binary(ir.OpGreater, tree.Swizzle(sym(i), 0), tree.Float(lineRasterThreshold)),
		tree.Binary(ir.OpGreater, tree.Swizzle(sym(i), 1), tree.Float(lineRasterThreshold)))

	emulation := tree.NewBlock(
		tree.Declare(p, window),
		tree.Declare(d, deriv),
		tree.Declare(f, tree.Swizzle(sym(fragCoord), 0, 1)),
		tree.Declare(pYX, tree.Swizzle(sym(p), 1, 0)),
		tree.Declare(dYX, tree.Swizzle(sym(d), 1, 0)),
		tree.Declare(fYX, tree.Swizzle(sym(f), 1, 0)),
		tree.Declare(i, tree.CallBuiltIn("abs", vec2, dist)),
		tree.If(outside, tree.NewBlock(tree.Discard()), ir.NoNode),
	)
	if err := tree.PrependToMain(tree.If(sym(guard), emulation, ir.NoNode)); err != nil {
		return false, internalf("bresenhamFS", "%v", err)
	}
	if !usesFragCoord {
		if _, err := FlipFragCoord(c, tree, symbols, opts, emulation); err != nil {
			return false, err
		}
	}
	return true, nil
}

// declareLinePosition declares the varying that carries the
// subpixel-snapped line position from the vertex to the fragment stage.
func declareLinePosition(tree *ir.Tree, symbols *ir.SymbolTable, q ir.Qualifier) (*ir.Variable, error) {
	typ := ir.Vec(ir.TypeFloat, 2).WithPrecision(shader.PrecisionMedium).WithQualifier(q)
	v, err := symbols.NewInternalVariable(LineRasterPositionName, typ)
	if err != nil {
		return nil, err
	}
	tree.InsertGlobalsBeforeFunctions(tree.Declare(v, ir.NoNode))
	return v, nil
}
