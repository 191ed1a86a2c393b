package passes

import (
	"fmt"

	"github.com/gogpu/glesvk/ir"
)

// Internal names introduced by vertex rewrites.
const (
	ClipDistanceName      = "clipDistance"
	XfbOffsetsFuncName    = "getXfbOffsets"
	xfbOffsetsStridesName = "strides"
)

// SubPixelBits is the subpixel precision assumed by the Bresenham line
// emulation when snapping window coordinates.
const SubPixelBits = 8

// VertexStage runs the vertex-only rewrites in order: line raster
// emulation, transform feedback helpers, clip distance masking, depth
// correction and surface pre-rotation.
func VertexStage(c *Compile, tree *ir.Tree, symbols *ir.SymbolTable, opts Options) (bool, error) {
	changed := false
	if opts.AddBresenhamLineRasterEmulation {
		if _, err := AddBresenhamEmulationVS(c, tree, symbols, opts); err != nil {
			return changed, err
		}
		changed = true
	}
	if opts.AddXfbEmulationSupport {
		if _, err := DeclareXfbOffsetsFunction(c, tree, symbols, opts); err != nil {
			return changed, err
		}
		changed = true
	}
	did, err := MaskClipDistances(c, tree, symbols, opts)
	if err != nil {
		return changed, err
	}
	changed = changed || did
	if err := appendDepthCorrection(tree, symbols); err != nil {
		return changed, err
	}
	if opts.AddPreRotation {
		if err := c.appendPreRotation(tree, symbols); err != nil {
			return changed, err
		}
	}
	return true, nil
}

// GeometryStage records the geometry layout the emitter declares. A
// max_vertices of zero is raised to one since Vulkan rejects it.
func GeometryStage(c *Compile, tree *ir.Tree, symbols *ir.SymbolTable, opts Options) (bool, error) {
	g := c.Info.Geometry
	g.MaxVertices = max(1, g.MaxVertices)
	c.Header.Geometry = &g
	return MaskClipDistances(c, tree, symbols, opts)
}

// ComputeStage resolves the declared local size.
func ComputeStage(c *Compile, _ *ir.Tree, _ *ir.SymbolTable, _ Options) (bool, error) {
	c.Header.WorkGroupSize = c.Info.WorkGroupSize.Resolved()
	return false, nil
}

// appendDepthCorrection maps GL clip-space depth [-w, w] to the Vulkan
// range [0, w] at the end of main.
func appendDepthCorrection(tree *ir.Tree, symbols *ir.SymbolTable) error {
	pos := symbols.FindBuiltIn("gl_Position")
	if pos == nil {
		return internalf("depthCorrection", "gl_Position is not visible")
	}
	z := func() ir.NodeID { return tree.Swizzle(tree.Symbol(pos), 2) }
	w := tree.Swizzle(tree.Symbol(pos), 3)
	sum := tree.Binary(ir.OpAdd, z(), w)
	stmt := tree.Assign(z(), tree.Binary(ir.OpMul, sum, tree.Float(0.5)))
	if err := tree.AppendToMain(symbols, stmt); err != nil {
		return internalf("depthCorrection", "%v", err)
	}
	return nil
}

// appendPreRotation rotates gl_Position.xy into the surface orientation.
func (c *Compile) appendPreRotation(tree *ir.Tree, symbols *ir.SymbolTable) error {
	pos := symbols.FindBuiltIn("gl_Position")
	if pos == nil {
		return internalf("preRotation", "gl_Position is not visible")
	}
	rotation, err := c.Driver.Field(tree, FieldPreRotation)
	if err != nil {
		return err
	}
	xy := tree.Binary(ir.OpMul, rotation, tree.Swizzle(tree.Symbol(pos), 0, 1))
	stmt := tree.Assign(tree.Swizzle(tree.Symbol(pos), 0, 1), xy)
	if err := tree.AppendToMain(symbols, stmt); err != nil {
		return internalf("preRotation", "%v", err)
	}
	return nil
}

// MaskClipDistances redirects gl_ClipDistance writes to an internal array
// and copies only the planes enabled in clipDistancesEnabled back at the
// end of main. Disabled planes are written as zero.
func MaskClipDistances(c *Compile, tree *ir.Tree, symbols *ir.SymbolTable, _ Options) (bool, error) {
	builtin := symbols.FindBuiltIn("gl_ClipDistance")
	if builtin == nil || len(tree.References(tree.Root, builtin)) == 0 {
		return false, nil
	}
	size := c.clipDistanceCount(tree, builtin)
	if size == 0 {
		return false, nil
	}
	typ := builtin.Type.ElementType().ArrayOf(size).WithQualifier(ir.QualGlobal)
	internal, err := symbols.NewInternalVariable(ClipDistanceName, typ)
	if err != nil {
		return false, err
	}
	tree.InsertGlobalsBeforeFunctions(tree.Declare(internal, ir.NoNode))
	if _, err := ir.ReplaceVariableWith(tree, builtin, internal); err != nil {
		return false, err
	}

	stmts := make([]ir.NodeID, 0, size)
	for i := range size {
		enabled, err := c.Driver.Field(tree, FieldClipDistancesEnabled)
		if err != nil {
			return false, err
		}
		bit := tree.Binary(ir.OpShiftLeft, tree.UInt(1), tree.UInt(i))
		cond := tree.Binary(ir.OpNotEqual, tree.Binary(ir.OpBitAnd, enabled, bit), tree.UInt(0))
		target := func() ir.NodeID { return tree.Index(tree.Symbol(builtin), int32(i)) } //nolint:gosec // i < clip distance limit
		copyPlane := tree.Assign(target(), tree.Index(tree.Symbol(internal), int32(i)))  //nolint:gosec // i < clip distance limit
		zero := tree.Assign(target(), tree.Float(0))
		stmts = append(stmts, tree.If(cond, tree.NewBlock(copyPlane), tree.NewBlock(zero)))
	}
	if err := tree.AppendToMain(symbols, stmts...); err != nil {
		return false, internalf("clipDistance", "%v", err)
	}
	return true, nil
}

// clipDistanceCount returns the redeclared size of gl_ClipDistance, or one
// past the highest constant index the shader writes.
func (c *Compile) clipDistanceCount(tree *ir.Tree, builtin *ir.Variable) uint32 {
	for _, v := range c.Info.OutputVaryings {
		if v.Name == "gl_ClipDistance" && v.IsArray() {
			return v.OutermostArraySize()
		}
	}
	var highest uint32
	indirect := false
	tree.Walk(tree.Root, func(id ir.NodeID, _ []ir.NodeID) bool {
		b, ok := tree.Inner(id).(ir.Binary)
		if !ok || !b.Op.IsIndex() {
			return true
		}
		s, ok := tree.Inner(b.Left).(ir.Symbol)
		if !ok || s.Variable != builtin {
			return true
		}
		if b.Op == ir.OpIndexIndirect {
			indirect = true
			return true
		}
		if i := tree.ConstantInt(b.Right); i >= 0 {
			highest = max(highest, uint32(i)+1) //nolint:gosec // checked non-negative
		}
		return true
	})
	if indirect {
		return builtin.Type.OutermostArraySize()
	}
	return highest
}

// AddBresenhamEmulationVS computes the snapped line position varying at
// the end of main:
//
//	if (lineRasterEmulation) {
//	    vec2 ndc = gl_Position.xy / gl_Position.w;
//	    vec2 window = viewport.zw * (ndc + 1.0) * 0.5 + viewport.xy;
//	    vec2 snapped = round(window * 2^SubPixelBits) / 2^SubPixelBits;
//	    linePosition = (snapped - viewport.xy) * 2.0 / viewport.zw - 1.0;
//	}
func AddBresenhamEmulationVS(c *Compile, tree *ir.Tree, symbols *ir.SymbolTable, _ Options) (bool, error) {
	guard, err := c.declareLineRasterEmulation(tree, symbols)
	if err != nil {
		return false, err
	}
	position, err := declareLinePosition(tree, symbols, ir.QualVaryingOut)
	if err != nil {
		return false, err
	}
	pos := symbols.FindBuiltIn("gl_Position")
	if pos == nil {
		return false, internalf("bresenhamVS", "gl_Position is not visible")
	}
	viewport := func(a, b uint8) (ir.NodeID, error) {
		ref, err := c.Driver.Field(tree, FieldViewport)
		if err != nil {
			return ir.NoNode, err
		}
		return tree.Swizzle(ref, a, b), nil
	}
	var refs [4]ir.NodeID
	for i, sw := range [4][2]uint8{{2, 3}, {0, 1}, {0, 1}, {2, 3}} {
		if refs[i], err = viewport(sw[0], sw[1]); err != nil {
			return false, err
		}
	}

	vec2 := highp(ir.Vec(ir.TypeFloat, 2))
	ndc := symbols.NewTemporary("ndc", vec2)
	window := symbols.NewTemporary("windowCoords", vec2)
	snapped := symbols.NewTemporary("clampedWindowCoords", vec2)
	scale := float32(1 << SubPixelBits)

	sym := tree.Symbol
	ndcValue := tree.Binary(ir.OpDiv, tree.Swizzle(sym(pos), 0, 1), tree.Swizzle(sym(pos), 3))
	windowValue := tree.Binary(ir.OpAdd,
		tree.Binary(ir.OpMul,
			tree.Binary(ir.OpMul, refs[0], tree.Binary(ir.OpAdd, sym(ndc), tree.Float(1))),
			tree.Float(0.5)),
		refs[1])
	snappedValue := tree.Binary(ir.OpDiv,
		tree.CallBuiltIn("round", vec2, tree.Binary(ir.OpMul, sym(window), tree.Float(scale))),
		tree.Float(scale))
	lineValue := tree.Binary(ir.OpSub,
		tree.Binary(ir.OpDiv,
			tree.Binary(ir.OpMul, tree.Binary(ir.OpSub, sym(snapped), refs[2]), tree.Float(2)),
			refs[3]),
		tree.Float(1))

	body := tree.NewBlock(
		tree.Declare(ndc, ndcValue),
		tree.Declare(window, windowValue),
		tree.Declare(snapped, snappedValue),
		tree.Assign(sym(position), lineValue),
	)
	if err := tree.AppendToMain(symbols, tree.If(sym(guard), body, ir.NoNode)); err != nil {
		return false, internalf("bresenhamVS", "%v", err)
	}
	return true, nil
}

// DeclareXfbOffsetsFunction declares the helper that computes per-vertex
// transform feedback buffer offsets for emulated capture:
//
//	ivec4 getXfbOffsets(ivec4 strides) {
//	    return xfbBufferOffsets + (gl_VertexIndex + gl_InstanceIndex * xfbVerticesPerInstance) * strides;
//	}
func DeclareXfbOffsetsFunction(c *Compile, tree *ir.Tree, symbols *ir.SymbolTable, _ Options) (bool, error) {
	ivec4 := highp(ir.Vec(ir.TypeInt, 4))
	vertexIndex := symbols.FindBuiltIn("gl_VertexIndex")
	instanceIndex := symbols.FindBuiltIn("gl_InstanceIndex")
	if vertexIndex == nil || instanceIndex == nil {
		return false, internalf("xfbOffsets", "vertex index built-ins are not visible")
	}
	strides := symbols.NewTemporary(xfbOffsetsStridesName, ivec4)
	strides.Type.Qualifier = ir.QualParamIn
	fn, err := symbols.NewInternalFunction(XfbOffsetsFuncName, ivec4, strides)
	if err != nil {
		return false, fmt.Errorf("xfbOffsets: %w", err)
	}
	offsets, err := c.Driver.Field(tree, FieldXfbBufferOffsets)
	if err != nil {
		return false, err
	}
	perInstance, err := c.Driver.Field(tree, FieldXfbVerticesPerInstance)
	if err != nil {
		return false, err
	}
	vertex := tree.Binary(ir.OpAdd,
		tree.Symbol(vertexIndex),
		tree.Binary(ir.OpMul, tree.Symbol(instanceIndex), perInstance))
	value := tree.Binary(ir.OpAdd, offsets, tree.Binary(ir.OpMul, vertex, tree.Symbol(strides)))
	def := tree.Define(fn, tree.NewBlock(tree.Return(value)))
	if err := tree.InsertBeforeMain(def); err != nil {
		return false, internalf("xfbOffsets", "%v", err)
	}
	return true, nil
}
