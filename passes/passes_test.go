package passes

import (
	"errors"
	"fmt"
	"testing"

	"github.com/gogpu/glesvk/ir"
	"github.com/gogpu/glesvk/shader"
)

// fixture is a shader tree with an empty main and the pass state for it.
type fixture struct {
	tree    *ir.Tree
	symbols *ir.SymbolTable
	body    ir.NodeID
	c       *Compile
}

func newFixture(t *testing.T, stage shader.Stage, version int) *fixture {
	t.Helper()
	res := ir.DefaultResources()
	tree := ir.NewTree()
	symbols := ir.NewSymbolTable(stage, version, res)
	mainFn := &ir.Function{Name: "main", ReturnType: ir.Void}
	if err := symbols.DeclareFunction(mainFn); err != nil {
		t.Fatalf("DeclareFunction(main) error: %v", err)
	}
	body := tree.NewBlock()
	tree.SetStatements(tree.Root, []ir.NodeID{tree.Define(mainFn, body)})
	return &fixture{
		tree:    tree,
		symbols: symbols,
		body:    body,
		c:       NewCompile(shader.NewCompiled(stage, version), res),
	}
}

// global declares a user variable before main.
func (f *fixture) global(t *testing.T, name string, typ ir.Type) *ir.Variable {
	t.Helper()
	v := &ir.Variable{Name: name, Type: typ, SymbolType: ir.SymbolUserDefined}
	if err := f.symbols.Declare(v); err != nil {
		t.Fatalf("Declare(%s) error: %v", name, err)
	}
	f.tree.InsertGlobalsBeforeFunctions(f.tree.Declare(v, ir.NoNode))
	return v
}

func (f *fixture) validate(step string) error {
	errs, err := ir.Validate(f.tree)
	if err != nil {
		return err
	}
	if len(errs) > 0 {
		return fmt.Errorf("after %s: %v", step, errs[0])
	}
	return nil
}

func (f *fixture) run(t *testing.T, opts Options) {
	t.Helper()
	if err := Run(f.c, f.tree, f.symbols, opts, f.validate); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
}

// declarations counts global declarations of variables named name.
func (f *fixture) declarations(name string) int {
	n := 0
	for _, v := range f.tree.GlobalDeclarations() {
		if v.Name == name {
			n++
		}
	}
	return n
}

func (f *fixture) callsBuiltIn(name string) bool {
	return f.tree.CallsBuiltIn(f.tree.Root, name)
}

// ===== Step Order Tests =====

func TestStepsOrder(t *testing.T) {
	tests := []struct {
		stage shader.Stage
		last  []string
	}{
		{shader.StageFragment, []string{"rewriteAtomicCounters", "replaceGLDepthRange", "fragment"}},
		{shader.StageVertex, []string{"replaceGLDepthRange", "appendXfbOutput", "vertex"}},
		{shader.StageGeometry, []string{"replaceGLDepthRange", "appendXfbOutput", "geometry"}},
		{shader.StageCompute, []string{"declareDriverUniforms", "rewriteAtomicCounters", "compute"}},
	}
	for _, tt := range tests {
		t.Run(tt.stage.String(), func(t *testing.T) {
			steps := Steps(tt.stage)
			if steps[0].Name != "builtinWorkarounds" {
				t.Errorf("first step = %q, want builtinWorkarounds", steps[0].Name)
			}
			tail := steps[len(steps)-len(tt.last):]
			for i, want := range tt.last {
				if tail[i].Name != want {
					t.Errorf("step %d from end = %q, want %q", len(tt.last)-i, tail[i].Name, want)
				}
			}
		})
	}
}

func TestRunWrapsStepError(t *testing.T) {
	f := newFixture(t, shader.StageFragment, 300)
	f.c.Driver = &DriverUniforms{}
	err := Run(f.c, f.tree, f.symbols, Options{}, nil)
	var internal *InternalError
	if !errors.As(err, &internal) {
		t.Fatalf("Run() error = %v, want *InternalError", err)
	}
	if internal.Pass != "declareDriverUniforms" {
		t.Errorf("Pass = %q, want declareDriverUniforms", internal.Pass)
	}
}

// ===== Driver Uniform Tests =====

func TestDriverUniformsLayout(t *testing.T) {
	tests := []struct {
		stage     shader.Stage
		hasFlip   bool
		hasOffset bool
	}{
		{shader.StageVertex, true, true},
		{shader.StageFragment, true, true},
		{shader.StageCompute, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.stage.String(), func(t *testing.T) {
			f := newFixture(t, tt.stage, 310)
			if _, err := DeclareDriverUniforms(f.c, f.tree, f.symbols, Options{}); err != nil {
				t.Fatal(err)
			}
			d := f.c.Driver
			if got := d.Has(FieldFlipXY); got != tt.hasFlip {
				t.Errorf("Has(flipXY) = %v, want %v", got, tt.hasFlip)
			}
			if got := d.Has(FieldAcbBufferOffsets); got != tt.hasOffset {
				t.Errorf("Has(acbBufferOffsets) = %v, want %v", got, tt.hasOffset)
			}
			if d.Block.Layout.Set != DriverUniformSet {
				t.Errorf("set = %d, want %d", d.Block.Layout.Set, DriverUniformSet)
			}
			if f.declarations(DriverUniformsInstanceName) != 1 {
				t.Errorf("driverUniforms declared %d times, want 1", f.declarations(DriverUniformsInstanceName))
			}
		})
	}
}

func TestBindingsAreUnique(t *testing.T) {
	f := newFixture(t, shader.StageFragment, 300)
	u := f.global(t, "scale", ir.Scalar(ir.TypeFloat).WithQualifier(ir.QualUniform))
	rec := shader.NewVariable(shader.TypeFloat, "scale")
	rec.StaticUse, rec.Active = true, true
	f.c.Info.Uniforms = append(f.c.Info.Uniforms, rec)
	local := f.symbols.NewTemporary("s", ir.Scalar(ir.TypeFloat))
	f.tree.SetStatements(f.body, []ir.NodeID{f.tree.Declare(local, f.tree.Symbol(u))})

	f.run(t, Options{})

	if f.c.DefaultUniforms == nil {
		t.Fatal("default uniform block not declared")
	}
	if f.c.DefaultUniforms.Layout.Binding == f.c.Driver.Block.Layout.Binding {
		t.Errorf("default and driver uniforms share binding %d", f.c.DefaultUniforms.Layout.Binding)
	}
	if got := f.c.BindingsUsed(); got != 2 {
		t.Errorf("BindingsUsed() = %d, want 2", got)
	}
}

// ===== Default Uniform Tests =====

func TestDeclareDefaultUniforms(t *testing.T) {
	f := newFixture(t, shader.StageVertex, 300)
	color := f.global(t, "color", ir.Vec(ir.TypeFloat, 4).WithQualifier(ir.QualUniform))
	tex := f.global(t, "tex", ir.Opaque(ir.TypeSampler2D).WithQualifier(ir.QualUniform))
	for _, rec := range []shader.Variable{
		shader.NewVariable(shader.TypeFloatVec4, "color"),
		shader.NewVariable(shader.TypeSampler2D, "tex"),
	} {
		rec.Active = true
		f.c.Info.Uniforms = append(f.c.Info.Uniforms, rec)
	}

	changed, err := DeclareDefaultUniforms(f.c, f.tree, f.symbols, Options{})
	if err != nil || !changed {
		t.Fatalf("DeclareDefaultUniforms() = %v, %v, want true, nil", changed, err)
	}
	block := f.c.DefaultUniforms
	if block.Name != "defaultUniformsVS" {
		t.Errorf("block name = %q, want defaultUniformsVS", block.Name)
	}
	if len(block.Fields) != 1 || block.Fields[0].Name != "color" {
		t.Errorf("block fields = %v, want [color]", block.Fields)
	}
	if color.Block != block {
		t.Error("color is not attached to the default uniform block")
	}
	if tex.Block != nil {
		t.Error("sampler moved into the default uniform block")
	}
	if f.declarations("tex") != 1 {
		t.Error("sampler declaration was removed")
	}
}

func TestDeclareDefaultUniformsNoneActive(t *testing.T) {
	f := newFixture(t, shader.StageFragment, 300)
	f.global(t, "unused", ir.Scalar(ir.TypeFloat).WithQualifier(ir.QualUniform))
	f.c.Info.Uniforms = append(f.c.Info.Uniforms, shader.NewVariable(shader.TypeFloat, "unused"))

	changed, err := DeclareDefaultUniforms(f.c, f.tree, f.symbols, Options{})
	if err != nil || changed {
		t.Errorf("DeclareDefaultUniforms() = %v, %v, want false, nil", changed, err)
	}
	if f.c.BindingsUsed() != 0 {
		t.Errorf("BindingsUsed() = %d, want 0", f.c.BindingsUsed())
	}
}

// ===== Inactive Variable Tests =====

func TestRemoveInactiveInterfaceVariables(t *testing.T) {
	f := newFixture(t, shader.StageVertex, 300)
	f.global(t, "unusedIn", ir.Vec(ir.TypeFloat, 4).WithQualifier(ir.QualVertexIn))
	f.global(t, "usedIn", ir.Vec(ir.TypeFloat, 4).WithQualifier(ir.QualVertexIn))
	f.global(t, "unknown", ir.Vec(ir.TypeFloat, 4).WithQualifier(ir.QualVertexIn))
	unused := shader.NewVariable(shader.TypeFloatVec4, "unusedIn")
	used := shader.NewVariable(shader.TypeFloatVec4, "usedIn")
	used.Active = true
	f.c.Info.Attributes = append(f.c.Info.Attributes, unused, used)

	changed, err := RemoveInactiveInterfaceVariables(f.c, f.tree, f.symbols, Options{})
	if err != nil || !changed {
		t.Fatalf("RemoveInactiveInterfaceVariables() = %v, %v, want true, nil", changed, err)
	}
	tests := []struct {
		name string
		want int
	}{
		{"unusedIn", 0},
		{"usedIn", 1},
		{"unknown", 1},
	}
	for _, tt := range tests {
		if got := f.declarations(tt.name); got != tt.want {
			t.Errorf("declarations(%s) = %d, want %d", tt.name, got, tt.want)
		}
	}
}

// ===== Fragment Tests =====

func TestUnrelatedPassesAreNoops(t *testing.T) {
	f := newFixture(t, shader.StageFragment, 300)
	out := f.global(t, "color", ir.Vec(ir.TypeFloat, 4).WithQualifier(ir.QualFragmentOut))
	f.tree.SetStatements(f.body, []ir.NodeID{f.tree.Assign(f.tree.Symbol(out), f.tree.FloatVec(1, 0, 0, 1))})

	f.run(t, Options{})

	for _, name := range []string{FlippedFragCoordName, FlippedPointCoordName, SampleMaskInName, FragColorName, CubeMapCoordsFunctionName} {
		if f.declarations(name) != 0 {
			t.Errorf("%s declared for a shader that does not need it", name)
		}
	}
	if got := len(f.tree.Statements(f.body)); got != 1 {
		t.Errorf("main has %d statements, want 1", got)
	}
}

func TestFlipFragCoord(t *testing.T) {
	f := newFixture(t, shader.StageFragment, 300)
	fragCoord := f.symbols.FindBuiltIn("gl_FragCoord")
	a := f.symbols.NewTemporary("a", ir.Vec(ir.TypeFloat, 4))
	b := f.symbols.NewTemporary("b", ir.Vec(ir.TypeFloat, 2))
	f.tree.SetStatements(f.body, []ir.NodeID{
		f.tree.Declare(a, f.tree.Symbol(fragCoord)),
		f.tree.Declare(b, f.tree.Swizzle(f.tree.Symbol(fragCoord), 0, 1)),
	})

	f.run(t, Options{AddPreRotation: true})

	if got := f.declarations(FlippedFragCoordName); got != 1 {
		t.Fatalf("flippedFragCoord declared %d times, want 1", got)
	}
	stmts := f.tree.Statements(f.body)
	injected := map[ir.NodeID]bool{}
	for _, s := range stmts[:2] {
		f.tree.Walk(s, func(id ir.NodeID, _ []ir.NodeID) bool {
			injected[id] = true
			return true
		})
	}
	refs := f.tree.References(f.tree.Root, fragCoord)
	if len(refs) != 2 {
		t.Errorf("gl_FragCoord referenced %d times, want 2", len(refs))
	}
	for _, r := range refs {
		if !injected[r] {
			t.Errorf("reference %d to gl_FragCoord outside the correction", r)
		}
	}
}

func TestFlipPointCoord(t *testing.T) {
	f := newFixture(t, shader.StageFragment, 100)
	pointCoord := f.symbols.FindBuiltIn("gl_PointCoord")
	fragColor := f.symbols.FindBuiltIn("gl_FragColor")
	pc := f.tree.Swizzle(f.tree.Symbol(pointCoord), 0, 1, 0, 1)
	f.tree.SetStatements(f.body, []ir.NodeID{f.tree.Assign(f.tree.Symbol(fragColor), pc)})

	f.run(t, Options{})

	if f.declarations(FlippedPointCoordName) != 1 {
		t.Error("flippedPointCoord not declared")
	}
	if f.declarations(FragColorName) != 1 {
		t.Error("webgl_FragColor not declared")
	}
	if refs := f.tree.References(f.tree.Root, fragColor); len(refs) != 0 {
		t.Errorf("gl_FragColor referenced %d times after rewrite, want 0", len(refs))
	}
	for _, v := range f.tree.GlobalDeclarations() {
		if v.Name == FragColorName && v.Type.Layout.Location != 0 {
			t.Errorf("webgl_FragColor location = %d, want 0", v.Type.Layout.Location)
		}
	}
}

func TestRewriteDfdy(t *testing.T) {
	f := newFixture(t, shader.StageFragment, 300)
	in := f.global(t, "uv", ir.Vec(ir.TypeFloat, 2).WithQualifier(ir.QualVaryingIn))
	d := f.symbols.NewTemporary("d", ir.Vec(ir.TypeFloat, 2))
	call := f.tree.CallBuiltIn("dFdy", ir.Vec(ir.TypeFloat, 2), f.tree.Symbol(in))
	decl := f.tree.Declare(d, call)
	f.tree.SetStatements(f.body, []ir.NodeID{decl})

	f.run(t, Options{})

	init := f.tree.Inner(decl).(ir.Declaration).Init
	mul, ok := f.tree.Inner(init).(ir.Binary)
	if !ok || mul.Op != ir.OpMul || mul.Left != call {
		t.Fatalf("initializer = %#v, want dFdy(uv) * negFlipXY.y", f.tree.Inner(init))
	}
	if _, ok := f.tree.Inner(mul.Right).(ir.Swizzle); !ok {
		t.Errorf("right operand = %#v, want swizzle of negFlipXY", f.tree.Inner(mul.Right))
	}
}

func TestRewriteSampleMask(t *testing.T) {
	f := newFixture(t, shader.StageFragment, 310)
	maskIn := f.symbols.FindBuiltIn("gl_SampleMaskIn")
	mask := f.symbols.FindBuiltIn("gl_SampleMask")
	f.tree.SetStatements(f.body, []ir.NodeID{
		f.tree.Assign(f.tree.Index(f.tree.Symbol(mask), 0), f.tree.Index(f.tree.Symbol(maskIn), 0)),
	})

	f.run(t, Options{})

	if f.declarations(SampleMaskInName) != 1 {
		t.Error("sampleMaskIn copy not declared")
	}
	stmts := f.tree.Statements(f.body)
	if len(stmts) != 3 {
		t.Fatalf("main has %d statements, want copy, body, single-sample override", len(stmts))
	}
	if _, ok := f.tree.Inner(stmts[2]).(ir.IfElse); !ok {
		t.Errorf("last statement = %#v, want if (numSamples <= 1)", f.tree.Inner(stmts[2]))
	}
	if refs := f.tree.References(stmts[1], maskIn); len(refs) != 0 {
		t.Error("user code still reads gl_SampleMaskIn directly")
	}
}

func TestBresenhamFragment(t *testing.T) {
	f := newFixture(t, shader.StageFragment, 300)
	out := f.global(t, "color", ir.Vec(ir.TypeFloat, 4).WithQualifier(ir.QualFragmentOut))
	f.tree.SetStatements(f.body, []ir.NodeID{f.tree.Assign(f.tree.Symbol(out), f.tree.FloatVec(1, 1, 1, 1))})

	f.run(t, Options{AddBresenhamLineRasterEmulation: true})

	if f.c.Info.SpecConstUsage&shader.SpecConstLineRasterEmulation == 0 {
		t.Error("line raster specialization constant not recorded")
	}
	if f.declarations(LineRasterPositionName) != 1 {
		t.Error("linePosition varying not declared")
	}
	if f.declarations(FlippedFragCoordName) != 1 {
		t.Error("gl_FragCoord not corrected inside the emulation block")
	}
	first := f.tree.Statements(f.body)[0]
	guard, ok := f.tree.Inner(first).(ir.IfElse)
	if !ok {
		t.Fatalf("first statement = %#v, want emulation guard", f.tree.Inner(first))
	}
	discards := 0
	f.tree.Walk(guard.Then, func(id ir.NodeID, _ []ir.NodeID) bool {
		if b, ok := f.tree.Inner(id).(ir.Branch); ok && b.Op == ir.BranchDiscard {
			discards++
		}
		return true
	})
	if discards != 1 {
		t.Errorf("emulation block has %d discards, want 1", discards)
	}
}

func TestEarlyFragmentTests(t *testing.T) {
	f := newFixture(t, shader.StageFragment, 310)
	f.c.Info.EarlyFragmentTests = true
	f.run(t, Options{})
	if !f.c.Header.EarlyFragmentTests {
		t.Error("Header.EarlyFragmentTests = false, want true")
	}
}

// ===== Vertex Tests =====

func TestVertexDepthCorrection(t *testing.T) {
	f := newFixture(t, shader.StageVertex, 300)
	pos := f.symbols.FindBuiltIn("gl_Position")
	f.tree.SetStatements(f.body, []ir.NodeID{f.tree.Assign(f.tree.Symbol(pos), f.tree.FloatVec(0, 0, 0, 1))})

	f.run(t, Options{})

	stmts := f.tree.Statements(f.body)
	last := f.tree.Inner(stmts[len(stmts)-1])
	assign, ok := last.(ir.Binary)
	if !ok || assign.Op != ir.OpAssign {
		t.Fatalf("last statement = %#v, want depth correction", last)
	}
	sw, ok := f.tree.Inner(assign.Left).(ir.Swizzle)
	if !ok || len(sw.Offsets) != 1 || sw.Offsets[0] != 2 {
		t.Errorf("depth correction writes %#v, want gl_Position.z", f.tree.Inner(assign.Left))
	}
	if !f.c.XfbPlaceholders {
		t.Error("XfbPlaceholders = false, want true for vertex shaders")
	}
}

func TestVertexPreRotation(t *testing.T) {
	f := newFixture(t, shader.StageVertex, 300)
	f.run(t, Options{AddPreRotation: true})
	stmts := f.tree.Statements(f.body)
	last := f.tree.Inner(stmts[len(stmts)-1]).(ir.Binary)
	sw, ok := f.tree.Inner(last.Left).(ir.Swizzle)
	if !ok || len(sw.Offsets) != 2 {
		t.Errorf("last statement writes %#v, want gl_Position.xy", f.tree.Inner(last.Left))
	}
}

func TestMaskClipDistances(t *testing.T) {
	f := newFixture(t, shader.StageVertex, 300)
	clip := f.symbols.FindBuiltIn("gl_ClipDistance")
	f.tree.SetStatements(f.body, []ir.NodeID{
		f.tree.Assign(f.tree.Index(f.tree.Symbol(clip), 0), f.tree.Float(1)),
		f.tree.Assign(f.tree.Index(f.tree.Symbol(clip), 2), f.tree.Float(-1)),
	})

	f.run(t, Options{})

	var internal *ir.Variable
	for _, v := range f.tree.GlobalDeclarations() {
		if v.Name == ClipDistanceName {
			internal = v
		}
	}
	if internal == nil {
		t.Fatal("clipDistance not declared")
	}
	if got := internal.Type.OutermostArraySize(); got != 3 {
		t.Errorf("clipDistance size = %d, want 3", got)
	}
	ifs := 0
	for _, s := range f.tree.Statements(f.body) {
		if _, ok := f.tree.Inner(s).(ir.IfElse); ok {
			ifs++
		}
	}
	if ifs != 3 {
		t.Errorf("%d plane copies, want 3", ifs)
	}
}

func TestXfbOffsetsFunction(t *testing.T) {
	f := newFixture(t, shader.StageVertex, 300)
	f.run(t, Options{AddXfbEmulationSupport: true})
	if f.symbols.LookupFunction(XfbOffsetsFuncName) == nil {
		t.Fatal("getXfbOffsets not declared")
	}
	root := f.tree.Statements(f.tree.Root)
	def, ok := f.tree.Inner(root[len(root)-2]).(ir.FunctionDefinition)
	if !ok || def.Function.Name != XfbOffsetsFuncName {
		t.Errorf("statement before main = %#v, want getXfbOffsets", f.tree.Inner(root[len(root)-2]))
	}
}

func TestInitializeOutputVariables(t *testing.T) {
	f := newFixture(t, shader.StageVertex, 300)
	f.global(t, "v_color", ir.Vec(ir.TypeFloat, 4).WithQualifier(ir.QualVaryingOut))
	f.global(t, "v_count", ir.Scalar(ir.TypeInt).WithQualifier(ir.QualVaryingOut).ArrayOf(2))

	changed, err := ShaderBuiltinsWorkaround(f.c, f.tree, f.symbols, Options{InitializeOutputVariables: true})
	if err != nil || !changed {
		t.Fatalf("ShaderBuiltinsWorkaround() = %v, %v, want true, nil", changed, err)
	}
	if got := len(f.tree.Statements(f.body)); got != 3 {
		t.Errorf("main has %d statements, want 3 initializers", got)
	}
	if err := f.validate("builtinWorkarounds"); err != nil {
		t.Error(err)
	}
}

func TestClampPointSize(t *testing.T) {
	f := newFixture(t, shader.StageVertex, 300)
	ps := f.symbols.FindBuiltIn("gl_PointSize")
	f.tree.SetStatements(f.body, []ir.NodeID{f.tree.Assign(f.tree.Symbol(ps), f.tree.Float(4))})
	if _, err := ShaderBuiltinsWorkaround(f.c, f.tree, f.symbols, Options{ClampPointSize: true}); err != nil {
		t.Fatal(err)
	}
	if !f.callsBuiltIn("clamp") {
		t.Error("gl_PointSize is not clamped")
	}
}

// ===== Geometry and Compute Tests =====

func TestGeometryMaxVertices(t *testing.T) {
	tests := []struct {
		declared int
		want     int
	}{
		{0, 1},
		{4, 4},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.declared), func(t *testing.T) {
			f := newFixture(t, shader.StageGeometry, 310)
			f.c.Info.Geometry = shader.GeometryLayout{
				Input:       shader.PrimitiveTriangles,
				Output:      shader.PrimitiveTriangleStrip,
				MaxVertices: tt.declared,
			}
			f.run(t, Options{})
			if f.c.Header.Geometry == nil {
				t.Fatal("Header.Geometry = nil")
			}
			if got := f.c.Header.Geometry.MaxVertices; got != tt.want {
				t.Errorf("MaxVertices = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestComputeWorkGroupSize(t *testing.T) {
	f := newFixture(t, shader.StageCompute, 310)
	f.c.Info.WorkGroupSize = shader.WorkGroupSize{16, -1, -1}
	f.run(t, Options{})
	if got := f.c.Header.WorkGroupSize; got != (shader.WorkGroupSize{16, 1, 1}) {
		t.Errorf("WorkGroupSize = %v, want [16 1 1]", got)
	}
	if f.c.Driver.Has(FieldViewport) {
		t.Error("compute driver uniforms carry graphics fields")
	}
}

// ===== Depth Range Tests =====

func TestReplaceGLDepthRange(t *testing.T) {
	f := newFixture(t, shader.StageFragment, 300)
	depthRange := f.symbols.FindBuiltIn("gl_DepthRange")
	far := f.symbols.NewTemporary("far", ir.Scalar(ir.TypeFloat))
	f.tree.SetStatements(f.body, []ir.NodeID{f.tree.Declare(far, f.tree.Field(f.tree.Symbol(depthRange), 1))})

	f.run(t, Options{})

	if refs := f.tree.References(f.tree.Root, depthRange); len(refs) != 0 {
		t.Errorf("gl_DepthRange referenced %d times, want 0", len(refs))
	}
}
