package passes

import (
	"slices"

	"github.com/gogpu/glesvk/ir"
)

// CubeMapCoordsFunctionName is the helper that maps a cube direction to
// (u, v, face).
const CubeMapCoordsFunctionName = "cubeMapCoords"

var cubeTo2DArray = map[ir.BasicType]ir.BasicType{
	ir.TypeSamplerCube:  ir.TypeSampler2DArray,
	ir.TypeISamplerCube: ir.TypeISampler2DArray,
	ir.TypeUSamplerCube: ir.TypeUSampler2DArray,
}

// Sampling functions whose second argument is a cube direction.
var cubeCoordFunctions = []string{"texture", "textureCube", "textureLod", "textureCubeLod", "textureCubeLodEXT"}

// RewriteCubeMapSamplersAs2DArray turns cube samplers into 2D array
// samplers holding the six faces, so seams are sampled the way GLES
// requires. Sampling calls get their direction converted by a
// synthesized face-selection function.
func RewriteCubeMapSamplersAs2DArray(_ *Compile, tree *ir.Tree, symbols *ir.SymbolTable, opts Options) (bool, error) {
	if !opts.EmulateSeamfulCubeMapSampling {
		return false, nil
	}
	vars := cubeSamplerVariables(tree)
	if len(vars) == 0 {
		return false, nil
	}

	var sampleCalls, sizeCalls []ir.NodeID
	var sizeParents []ir.NodeID
	tree.Traverse(tree.Root, func(visit ir.Visit, id ir.NodeID, path []ir.NodeID) bool {
		if visit != ir.PreVisit {
			return true
		}
		a, ok := tree.Inner(id).(ir.Aggregate)
		if !ok || a.Op != ir.AggCallBuiltIn || len(a.Args) == 0 {
			return true
		}
		if _, cube := cubeTo2DArray[tree.TypeOf(a.Args[0]).Basic]; !cube {
			return true
		}
		switch {
		case len(a.Args) >= 2 && slices.Contains(cubeCoordFunctions, a.Name):
			sampleCalls = append(sampleCalls, id)
		case a.Name == "textureSize":
			sizeCalls = append(sizeCalls, id)
			sizeParents = append(sizeParents, ir.ParentOf(path))
		}
		return true
	})

	if len(sampleCalls) > 0 {
		fn, def, err := declareCubeMapCoords(tree, symbols)
		if err != nil {
			return false, err
		}
		tree.InsertGlobalsBeforeFunctions(def)
		for _, id := range sampleCalls {
			a := tree.Inner(id).(ir.Aggregate)
			args := slices.Clone(a.Args)
			args[1] = tree.Call(fn, args[1])
			a.Args = args
			tree.SetInner(id, a)
		}
	}

	// textureSize of a 2D array returns ivec3; callers expect the face size.
	var log ir.RewriteLog
	for i, id := range sizeCalls {
		a := tree.Inner(id).(ir.Aggregate)
		typ := tree.TypeOf(id).VectorOf(3)
		call := tree.CallBuiltIn(a.Name, typ, a.Args...)
		log.Replace(sizeParents[i], id, tree.Swizzle(call, 0, 1))
	}
	if err := log.Apply(tree); err != nil {
		return false, err
	}

	for _, v := range vars {
		v.Type.Basic = cubeTo2DArray[v.Type.Basic]
	}
	retypeVariables(tree, vars)
	return true, nil
}

// cubeSamplerVariables returns the global uniforms and function
// parameters of cube sampler type.
func cubeSamplerVariables(tree *ir.Tree) []*ir.Variable {
	var out []*ir.Variable
	for _, s := range tree.Statements(tree.Root) {
		switch n := tree.Inner(s).(type) {
		case ir.Declaration:
			if n.Variable != nil && n.Variable.Type.Qualifier == ir.QualUniform {
				if _, ok := cubeTo2DArray[n.Variable.Type.Basic]; ok {
					out = append(out, n.Variable)
				}
			}
		case ir.FunctionDefinition:
			if n.Function == nil {
				continue
			}
			for _, p := range n.Function.Params {
				if _, ok := cubeTo2DArray[p.Type.Basic]; ok {
					out = append(out, p)
				}
			}
		}
	}
	return out
}

// retypeVariables refreshes the node types of symbols referring to vars
// and of index expressions applied to them.
func retypeVariables(tree *ir.Tree, vars []*ir.Variable) {
	changed := make(map[ir.NodeID]bool)
	tree.Traverse(tree.Root, func(visit ir.Visit, id ir.NodeID, _ []ir.NodeID) bool {
		if visit != ir.PostVisit {
			return true
		}
		node := tree.Node(id)
		switch n := node.Inner.(type) {
		case ir.Symbol:
			if !slices.Contains(vars, n.Variable) {
				return true
			}
			node.Type = n.Variable.Type
		case ir.Binary:
			if !changed[n.Left] || (n.Op != ir.OpIndexDirect && n.Op != ir.OpIndexIndirect) {
				return true
			}
			node.Type = tree.TypeOf(n.Left).ElementType()
		default:
			return true
		}
		tree.Set(id, node)
		changed[id] = true
		return true
	})
}

// declareCubeMapCoords builds
//
//	vec3 cubeMapCoords(vec3 dir)
//
// which selects the major axis the way Vulkan selects cube faces and
// returns the face-local coordinates in [0, 1] and the face index.
func declareCubeMapCoords(tree *ir.Tree, symbols *ir.SymbolTable) (*ir.Function, ir.NodeID, error) {
	vec2 := highp(ir.Vec(ir.TypeFloat, 2))
	vec3 := highp(ir.Vec(ir.TypeFloat, 3))
	float := highp(ir.Scalar(ir.TypeFloat))

	dir := &ir.Variable{Name: "dir", Type: vec3.WithQualifier(ir.QualParamIn), SymbolType: ir.SymbolInternal}
	fn, err := symbols.NewInternalFunction(CubeMapCoordsFunctionName, vec3, dir)
	if err != nil {
		return nil, ir.NoNode, err
	}
	a := symbols.NewTemporary("absDir", vec3)
	ma := symbols.NewTemporary("majorAxis", float)
	face := symbols.NewTemporary("face", float)
	uv := symbols.NewTemporary("uv", vec2)

	sym := tree.Symbol
	d := func(c uint8) ir.NodeID { return tree.Swizzle(sym(dir), c) }
	negD := func(c uint8) ir.NodeID { return tree.Unary(ir.OpNegative, d(c)) }
	absC := func(c uint8) ir.NodeID { return tree.Swizzle(sym(a), c) }
	pair := func(x, y ir.NodeID) ir.NodeID { return tree.Construct(vec2, x, y) }
	ge := func(l, r ir.NodeID) ir.NodeID { return tree.Binary(ir.OpGreaterEqual, l, r) }

	axis := func(c uint8, posFace, negFace float32, posUV, negUV ir.NodeID) ir.NodeID {
		pos := tree.NewBlock(tree.Assign(sym(face), tree.Float(posFace)), tree.Assign(sym(uv), posUV))
		neg := tree.NewBlock(tree.Assign(sym(face), tree.Float(negFace)), tree.Assign(sym(uv), negUV))
		return tree.NewBlock(
			tree.Assign(sym(ma), absC(c)),
			tree.If(ge(d(c), tree.Float(0)), pos, neg),
		)
	}
	xAxis := axis(0, 0, 1, pair(negD(2), negD(1)), pair(d(2), negD(1)))
	yAxis := axis(1, 2, 3, pair(d(0), d(2)), pair(d(0), negD(2)))
	zAxis := axis(2, 4, 5, pair(d(0), negD(1)), pair(negD(0), negD(1)))

	isX := tree.Binary(ir.OpLogicalAnd, ge(absC(0), absC(1)), ge(absC(0), absC(2)))
	isY := ge(absC(1), absC(2))
	selectFace := tree.If(isX, xAxis, tree.NewBlock(tree.If(isY, yAxis, zAxis)))

	scaled := tree.Binary(ir.OpMul, tree.Binary(ir.OpDiv, sym(uv), sym(ma)), tree.Float(0.5))
	result := tree.Construct(vec3, tree.Binary(ir.OpAdd, scaled, tree.Float(0.5)), sym(face))

	body := tree.NewBlock(
		tree.Declare(a, tree.CallBuiltIn("abs", vec3, sym(dir))),
		tree.Declare(ma, ir.NoNode),
		tree.Declare(face, ir.NoNode),
		tree.Declare(uv, ir.NoNode),
		selectFace,
		tree.Return(result),
	)
	return fn, tree.Define(fn, body), nil
}
