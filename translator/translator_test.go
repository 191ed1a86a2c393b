// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package translator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/glesvk/glsl"
	"github.com/gogpu/glesvk/ir"
	"github.com/gogpu/glesvk/shader"
)

// loaded is a tree with an empty main function.
type loaded struct {
	tree    *ir.Tree
	symbols *ir.SymbolTable
	body    ir.NodeID
}

func newLoaded(t *testing.T, stage shader.Stage, version int) *loaded {
	t.Helper()
	tree := ir.NewTree()
	symbols := ir.NewSymbolTable(stage, version, ir.DefaultResources())
	mainFn := &ir.Function{Name: "main", ReturnType: ir.Void}
	if err := symbols.DeclareFunction(mainFn); err != nil {
		t.Fatalf("DeclareFunction(main) error: %v", err)
	}
	body := tree.NewBlock()
	tree.SetStatements(tree.Root, []ir.NodeID{tree.Define(mainFn, body)})
	return &loaded{tree: tree, symbols: symbols, body: body}
}

func (l *loaded) global(t *testing.T, name string, typ ir.Type) *ir.Variable {
	t.Helper()
	v := &ir.Variable{Name: name, Type: typ, SymbolType: ir.SymbolUserDefined}
	if err := l.symbols.Declare(v); err != nil {
		t.Fatalf("Declare(%s) error: %v", name, err)
	}
	l.tree.InsertGlobalsBeforeFunctions(l.tree.Declare(v, ir.NoNode))
	return v
}

func (l *loaded) stmt(ids ...ir.NodeID) {
	l.tree.SetStatements(l.body, append(l.tree.Statements(l.body), ids...))
}

func vec4() ir.Type {
	return ir.Vec(ir.TypeFloat, 4).WithPrecision(shader.PrecisionHigh)
}

// fragmentShader writes a uniform color to a located output and leaves
// a second uniform unused.
func fragmentShader(t *testing.T) *loaded {
	t.Helper()
	l := newLoaded(t, shader.StageFragment, 300)
	color := l.global(t, "u_color", vec4().WithQualifier(ir.QualUniform))
	l.global(t, "u_unused", ir.Scalar(ir.TypeFloat).WithPrecision(shader.PrecisionHigh).WithQualifier(ir.QualUniform))
	outType := vec4().WithQualifier(ir.QualFragmentOut)
	outType.Layout.Location = 0
	out := l.global(t, "fragColor", outType)
	l.stmt(l.tree.Assign(l.tree.Symbol(out), l.tree.Symbol(color)))
	return l
}

// ===== State Tests =====

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateUnparsed, "unparsed"},
		{StateParsed, "parsed"},
		{StateTranslating, "translating"},
		{StateTranslated, "translated"},
		{StateFailed, "failed"},
		{State(9), "State(9)"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestTranslateFragment(t *testing.T) {
	l := fragmentShader(t)
	tr := New(shader.StageFragment)
	if tr.State() != StateUnparsed {
		t.Fatalf("initial state = %v, want unparsed", tr.State())
	}
	if err := tr.Load(l.tree, l.symbols, 300); err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if tr.State() != StateParsed {
		t.Fatalf("state after Load = %v, want parsed", tr.State())
	}

	compiled, err := tr.Translate(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Translate() error: %v", err)
	}
	if tr.State() != StateTranslated {
		t.Errorf("state = %v, want translated", tr.State())
	}
	if !compiled.Compiled {
		t.Error("Compiled = false, want true")
	}
	if !strings.HasPrefix(compiled.Source, "#version 450 core") {
		t.Errorf("Source does not start with the version directive:\n%s", compiled.Source)
	}
	if !strings.Contains(compiled.Source, "_ufragColor") {
		t.Errorf("Source missing mapped output name:\n%s", compiled.Source)
	}
	if tr.InfoLog() != "" {
		t.Errorf("InfoLog() = %q, want empty", tr.InfoLog())
	}
	if got := tr.TranslationInfo().NameMap["fragColor"]; got != "_ufragColor" {
		t.Errorf("NameMap[fragColor] = %q, want _ufragColor", got)
	}

	if len(compiled.Uniforms) != 2 {
		t.Fatalf("len(Uniforms) = %d, want 2", len(compiled.Uniforms))
	}
	active := map[string]bool{}
	for _, u := range compiled.Uniforms {
		active[u.Name] = u.Active
	}
	if !active["u_color"] || active["u_unused"] {
		t.Errorf("uniform activity = %v, want only u_color active", active)
	}
	if len(compiled.Outputs) != 1 || compiled.Outputs[0].Location != 0 {
		t.Errorf("Outputs = %+v, want fragColor at location 0", compiled.Outputs)
	}
}

func TestTranslateTwice(t *testing.T) {
	l := fragmentShader(t)
	tr := New(shader.StageFragment)
	if err := tr.Load(l.tree, l.symbols, 300); err != nil {
		t.Fatal(err)
	}
	if _, err := tr.Translate(context.Background(), Options{}); err != nil {
		t.Fatal(err)
	}
	_, err := tr.Translate(context.Background(), Options{})
	var te *Error
	if !errors.As(err, &te) || !te.IsInvalidState() {
		t.Errorf("second Translate() error = %v, want InvalidState", err)
	}
}

func TestTranslateBeforeLoad(t *testing.T) {
	_, err := New(shader.StageVertex).Translate(context.Background(), Options{})
	var te *Error
	if !errors.As(err, &te) || te.Kind != ErrInvalidState {
		t.Errorf("Translate() error = %v, want InvalidState", err)
	}
}

func TestLoadRejects(t *testing.T) {
	frag := newLoaded(t, shader.StageFragment, 300)
	noMain := &loaded{tree: ir.NewTree(), symbols: ir.NewSymbolTable(shader.StageVertex, 300, ir.DefaultResources())}
	tests := []struct {
		name    string
		tree    *ir.Tree
		symbols *ir.SymbolTable
	}{
		{"nil tree", nil, frag.symbols},
		{"stage mismatch", frag.tree, frag.symbols},
		{"no main", noMain.tree, noMain.symbols},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := New(shader.StageVertex)
			if err := tr.Load(tt.tree, tt.symbols, 300); err == nil {
				t.Error("Load() succeeded, want error")
			}
			if tr.State() != StateUnparsed {
				t.Errorf("state = %v, want unparsed", tr.State())
			}
		})
	}
}

// ===== Failure Tests =====

func TestUniformLimit(t *testing.T) {
	l := newLoaded(t, shader.StageFragment, 300)
	a := l.global(t, "a", vec4().WithQualifier(ir.QualUniform))
	b := l.global(t, "b", vec4().WithQualifier(ir.QualUniform))
	tmp := l.symbols.NewTemporary("sum", vec4())
	l.stmt(l.tree.Declare(tmp, l.tree.Binary(ir.OpAdd, l.tree.Symbol(a), l.tree.Symbol(b))))

	res := ir.DefaultResources()
	res.MaxFragmentUniformVectors = 1
	tr := New(shader.StageFragment, WithResources(res))
	if err := tr.Load(l.tree, l.symbols, 300); err != nil {
		t.Fatal(err)
	}
	compiled, err := tr.Translate(context.Background(), Options{})
	var te *Error
	if !errors.As(err, &te) || !te.IsResourceLimit() {
		t.Fatalf("Translate() error = %v, want ResourceLimit", err)
	}
	if tr.State() != StateFailed {
		t.Errorf("state = %v, want failed", tr.State())
	}
	if compiled == nil || compiled.Compiled {
		t.Fatal("failed translation returned a compiled record")
	}
	if !strings.Contains(compiled.InfoLog, "too many uniforms") {
		t.Errorf("InfoLog = %q, want too many uniforms", compiled.InfoLog)
	}
}

func TestUnsupportedStructSampler(t *testing.T) {
	l := newLoaded(t, shader.StageFragment, 300)
	typ := ir.StructOf(&ir.Struct{Name: "S", SymbolType: ir.SymbolUserDefined, Fields: []ir.Field{
		{Name: "f", Type: ir.Scalar(ir.TypeFloat), SymbolType: ir.SymbolUserDefined},
		{Name: "tex", Type: ir.Opaque(ir.TypeSampler2D), SymbolType: ir.SymbolUserDefined},
	}})
	s := l.global(t, "s", typ.WithQualifier(ir.QualUniform))
	param := &ir.Variable{Name: "p", Type: typ.WithQualifier(ir.QualParamIn), SymbolType: ir.SymbolUserDefined}
	helper := &ir.Function{Name: "helper", ReturnType: ir.Void, Params: []*ir.Variable{param}, SymbolType: ir.SymbolUserDefined}
	if err := l.tree.InsertBeforeMain(l.tree.Define(helper, l.tree.NewBlock())); err != nil {
		t.Fatal(err)
	}
	l.stmt(l.tree.Call(helper, l.tree.Symbol(s)))

	tr := New(shader.StageFragment)
	if err := tr.Load(l.tree, l.symbols, 300); err != nil {
		t.Fatal(err)
	}
	_, err := tr.Translate(context.Background(), Options{})
	var te *Error
	if !errors.As(err, &te) || !te.IsUnsupported() {
		t.Errorf("Translate() error = %v, want Unsupported", err)
	}
}

func TestTranslateCanceled(t *testing.T) {
	l := fragmentShader(t)
	tr := New(shader.StageFragment)
	if err := tr.Load(l.tree, l.symbols, 300); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := tr.Translate(ctx, Options{}); !errors.Is(err, context.Canceled) {
		t.Errorf("Translate() error = %v, want context.Canceled", err)
	}
	if tr.State() != StateFailed {
		t.Errorf("state = %v, want failed", tr.State())
	}
}

func TestValidationAfterPasses(t *testing.T) {
	tests := []struct {
		name         string
		opts         Options
		wantInternal bool
	}{
		{"default options", Options{}, true},
		{"skipped", Options{SkipValidation: true}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := fragmentShader(t)
			l.stmt(l.tree.Add(ir.Void, ir.Branch{Op: ir.BranchBreak}))
			tr := New(shader.StageFragment)
			if err := tr.Load(l.tree, l.symbols, 300); err != nil {
				t.Fatal(err)
			}
			_, err := tr.Translate(context.Background(), tt.opts)
			var te *Error
			internal := errors.As(err, &te) && te.IsInternal()
			if internal != tt.wantInternal {
				t.Errorf("Translate() error = %v, want internal error %v", err, tt.wantInternal)
			}
			if tt.wantInternal && !strings.Contains(tr.InfoLog(), "break") {
				t.Errorf("InfoLog() = %q, want the stray break reported", tr.InfoLog())
			}
		})
	}
}

// ===== Introspection Tests =====

func TestCollectVertex(t *testing.T) {
	l := newLoaded(t, shader.StageVertex, 300)
	posType := vec4().WithQualifier(ir.QualVertexIn)
	posType.Layout.Location = 0
	pos := l.global(t, "a_position", posType)
	l.global(t, "a_unused", vec4().WithQualifier(ir.QualVertexIn))
	vary := vec4().WithQualifier(ir.QualVaryingOut)
	vary.Interpolation = shader.InterpolationFlat
	v := l.global(t, "v_color", vary)
	glPos := l.symbols.FindBuiltIn("gl_Position")
	l.stmt(
		l.tree.Assign(l.tree.Symbol(glPos), l.tree.Symbol(pos)),
		l.tree.Assign(l.tree.Symbol(v), l.tree.FloatVec(1, 1, 1, 1)),
	)

	info := Collect(l.tree, shader.StageVertex, 300, glsl.Options{}, Layouts{})
	if len(info.Attributes) != 2 {
		t.Fatalf("len(Attributes) = %d, want 2", len(info.Attributes))
	}
	if a := info.Attributes[0]; a.Name != "a_position" || a.Location != 0 || !a.Active || a.MappedName != "_ua_position" {
		t.Errorf("Attributes[0] = %+v", a)
	}
	if info.Attributes[1].Active {
		t.Error("unused attribute is active")
	}
	if len(info.OutputVaryings) != 2 {
		t.Fatalf("len(OutputVaryings) = %d, want 2", len(info.OutputVaryings))
	}
	if got := info.OutputVaryings[0]; got.Name != "v_color" || got.Interpolation != shader.InterpolationFlat {
		t.Errorf("OutputVaryings[0] = %+v, want flat v_color", got)
	}
	if got := info.OutputVaryings[1]; got.Name != "gl_Position" || got.MappedName != "gl_Position" || !got.StaticUse {
		t.Errorf("OutputVaryings[1] = %+v, want used gl_Position", got)
	}
}

func TestCollectBlocksAndImages(t *testing.T) {
	l := newLoaded(t, shader.StageCompute, 310)
	layout := ir.DefaultLayout()
	layout.Binding = 2
	layout.Storage, layout.HasStorage = shader.LayoutStd430, true
	block := &ir.InterfaceBlock{
		Name: "Data", BlockType: shader.BlockBuffer, SymbolType: ir.SymbolUserDefined, Layout: layout,
		Fields: []ir.Field{{Name: "values", Type: ir.Scalar(ir.TypeFloat).ArrayOf(0), SymbolType: ir.SymbolUserDefined}},
	}
	l.global(t, "data", ir.BlockOf(block).WithQualifier(ir.QualBuffer))
	img := ir.Opaque(ir.TypeImage2D).WithQualifier(ir.QualUniform)
	img.Layout.Format = "rgba8"
	img.WriteOnly = true
	l.global(t, "image", img)

	info := Collect(l.tree, shader.StageCompute, 310, glsl.Options{}, Layouts{WorkGroupSize: shader.WorkGroupSize{64, -1, -1}})
	if len(info.StorageBlocks) != 1 {
		t.Fatalf("len(StorageBlocks) = %d, want 1", len(info.StorageBlocks))
	}
	b := info.StorageBlocks[0]
	if b.Name != "Data" || b.InstanceName != "data" || b.Binding != 2 || b.Layout != shader.LayoutStd430 {
		t.Errorf("StorageBlocks[0] = %+v", b)
	}
	if len(info.Uniforms) != 1 || info.Uniforms[0].ImageFormat != gputypes.TextureFormatRGBA8Unorm || !info.Uniforms[0].WriteOnly {
		t.Errorf("Uniforms = %+v, want writeonly rgba8 image", info.Uniforms)
	}
	if info.WorkGroupSize != (shader.WorkGroupSize{64, -1, -1}) {
		t.Errorf("WorkGroupSize = %v, want [64 -1 -1]", info.WorkGroupSize)
	}
}

func TestCollectHashedNames(t *testing.T) {
	l := newLoaded(t, shader.StageFragment, 300)
	l.global(t, "u_tint", vec4().WithQualifier(ir.QualUniform))
	opts := glsl.Options{HashFunction: glsl.FNV64a, HashAllNames: true}
	info := Collect(l.tree, shader.StageFragment, 300, opts, Layouts{EarlyFragmentTests: true})
	want := fmt.Sprintf("_h%016x", glsl.FNV64a("u_tint"))
	if got := info.Uniforms[0].MappedName; got != want {
		t.Errorf("MappedName = %q, want %q", got, want)
	}
	if !info.EarlyFragmentTests {
		t.Error("EarlyFragmentTests = false, want true")
	}
}

// ===== Error Tests =====

func TestErrorKindString(t *testing.T) {
	tests := []struct {
		kind ErrorKind
		want string
	}{
		{ErrInvalidState, "InvalidState"},
		{ErrInternal, "Internal"},
		{ErrUnsupported, "Unsupported"},
		{ErrResourceLimit, "ResourceLimit"},
		{ErrorKind(200), "Unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.kind.String(); got != tt.want {
				t.Errorf("ErrorKind.String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestErrorMessage(t *testing.T) {
	cause := errors.New("boom")
	err := &Error{Kind: ErrInternal, Pass: "rewriteDfdy", Message: "bad node", Err: cause}
	got := err.Error()
	if !strings.Contains(got, "Internal") || !strings.Contains(got, "rewriteDfdy") || !strings.Contains(got, "bad node") {
		t.Errorf("Error() = %q, want kind, pass and message", got)
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}
	if !err.IsInternal() || err.IsUnsupported() {
		t.Error("IsInternal/IsUnsupported disagree with Kind")
	}
}
