package backend

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/gogpu/glesvk/link"
	"github.com/gogpu/glesvk/shader"
	"github.com/gogpu/glesvk/spirv"
)

// ===== Fakes =====

// fakeCompiler "compiles" a stage into a module declaring one uniform
// variable per configured name, each with a placeholder binding.
type fakeCompiler struct {
	mu      sync.Mutex
	names   map[shader.Stage][]string
	sources map[shader.Stage]string
	failOn  shader.Stage
	failErr error
	gate    chan struct{}
}

func newFakeCompiler(names map[shader.Stage][]string) *fakeCompiler {
	return &fakeCompiler{names: names, sources: make(map[shader.Stage]string), failOn: shader.StageCompute}
}

func (c *fakeCompiler) Compile(_ context.Context, stage shader.Stage, source string) ([]uint32, error) {
	if c.gate != nil {
		<-c.gate
	}
	c.mu.Lock()
	c.sources[stage] = source
	names := c.names[stage]
	c.mu.Unlock()
	if c.failErr != nil && stage == c.failOn {
		return nil, c.failErr
	}

	b := spirv.NewModuleBuilder(spirv.Version1_3)
	b.AddCapability(spirv.CapabilityShader)
	b.SetMemoryModel(spirv.AddressingModelLogical, spirv.MemoryModelGLSL450)
	f32 := b.AddTypeFloat(32)
	ptr := b.AddTypePointer(spirv.StorageClassUniform, f32)
	for _, n := range names {
		v := b.AddVariable(ptr, spirv.StorageClassUniform)
		b.AddName(v, n)
		b.AddDecorate(v, spirv.DecorationBinding, 99)
	}
	return b.Build(), nil
}

func (c *fakeCompiler) source(stage shader.Stage) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sources[stage]
}

type fakeModule struct {
	released *atomic.Int32
}

func (m fakeModule) Release() { m.released.Add(1) }

type fakeModules struct {
	created  atomic.Int32
	released atomic.Int32
	err      error
}

func (f *fakeModules) CreateShaderModule(_ context.Context, desc *ShaderModuleDescriptor) (ShaderModule, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(desc.Code) < spirv.HeaderWords {
		return nil, errors.New("empty code")
	}
	f.created.Add(1)
	return fakeModule{released: &f.released}, nil
}

// ===== Fixtures =====

func active(v shader.Variable) shader.Variable {
	v.Active = true
	v.StaticUse = true
	return v
}

const stageSource = "#version 450\n@@ XFB-DECL @@\nvoid main()\n{\n    @@ XFB-OUT @@;\n}\n"

// programInput is a vertex and fragment shader pair exercising every
// descriptor set.
func programInput() *link.Input {
	vs := shader.NewCompiled(shader.StageVertex, 300)
	vs.Compiled = true
	vs.Source = stageSource
	vs.Attributes = []shader.Variable{active(shader.NewVariable(shader.TypeFloatVec4, "a_pos"))}
	vs.Uniforms = []shader.Variable{active(shader.NewVariable(shader.TypeFloat, "u_scale"))}
	vs.OutputVaryings = []shader.Variable{
		active(shader.NewVariable(shader.TypeFloatVec4, "gl_Position")),
		active(shader.NewVariable(shader.TypeFloatVec2, "v_uv")),
	}

	fs := shader.NewCompiled(shader.StageFragment, 300)
	fs.Compiled = true
	fs.Source = stageSource
	fs.InputVaryings = []shader.Variable{active(shader.NewVariable(shader.TypeFloatVec2, "v_uv"))}
	fs.Uniforms = []shader.Variable{
		active(shader.NewVariable(shader.TypeSampler2D, "tex")),
		active(shader.NewVariable(shader.TypeFloatVec4, "u_color")),
		active(shader.NewVariable(shader.TypeFloatMat2, "u_rot")),
	}
	fs.Outputs = []shader.Variable{active(shader.NewVariable(shader.TypeFloatVec4, "o_color"))}

	block := shader.NewInterfaceBlock("Transform", shader.NewVariable(shader.TypeFloatMat4, "mvp"))
	block.Active = true
	block.StaticUse = true
	vs.UniformBlocks = []shader.InterfaceBlock{block}
	fs.UniformBlocks = []shader.InterfaceBlock{block.Clone()}

	in := &link.Input{Caps: link.DefaultCaps()}
	in.Shaders[shader.StageVertex] = vs
	in.Shaders[shader.StageFragment] = fs
	return in
}

func mustLink(t *testing.T, in *link.Input) *link.Resources {
	t.Helper()
	var log link.InfoLog
	res, err := link.Link(in, &log)
	if err != nil {
		t.Fatalf("link.Link() error = %v\n%s", err, log.String())
	}
	return res
}

var stageNames = map[shader.Stage][]string{
	shader.StageVertex:   {"defaultUniformsVS", "Transform", "driverUniforms", "a_pos", "v_uv"},
	shader.StageFragment: {"defaultUniformsFS", "Transform", "driverUniforms", "tex", "v_uv", "o_color"},
}

func newVulkan(opts VulkanOptions) (*Vulkan, *fakeCompiler, *fakeModules) {
	c := newFakeCompiler(stageNames)
	m := &fakeModules{}
	return NewVulkan(c, m, opts), c, m
}

func uniformIndex(t *testing.T, res *link.Resources, name string) uint32 {
	t.Helper()
	i, ok := res.UniformIndex(name)
	if !ok {
		t.Fatalf("UniformIndex(%q) not found", name)
	}
	return i
}

// decorationsOf returns the decorations of the variable called name.
func decorationsOf(t *testing.T, code []uint32, name string) map[spirv.Decoration]uint32 {
	t.Helper()
	m, err := spirv.Parse(code)
	if err != nil {
		t.Fatalf("spirv.Parse() error = %v", err)
	}
	for id, n := range m.VariableNames() {
		if n == name {
			return m.Decorations(id)
		}
	}
	t.Fatalf("no variable %q in module", name)
	return nil
}

// ===== Variable Info Tests =====

func TestAssignVariableInfo(t *testing.T) {
	res := mustLink(t, programInput())
	infos := AssignVariableInfo(res, AssignOptions{})

	vf := shader.StageVertex.Mask().With(shader.StageFragment)
	tests := []struct {
		name     string
		set      int
		binding  int
		location int
		kind     DescriptorKind
		stages   shader.StageMask
	}{
		{"defaultUniformsVS", 0, 0, -1, DescriptorUniformBuffer, shader.StageVertex.Mask()},
		{"defaultUniformsFS", 0, 1, -1, DescriptorUniformBuffer, shader.StageFragment.Mask()},
		{"tex", 1, 0, -1, DescriptorCombinedImageSampler, shader.StageFragment.Mask()},
		{"Transform", 2, 0, -1, DescriptorUniformBuffer, vf},
		{"driverUniforms", 3, 0, -1, DescriptorUniformBuffer, vf},
		{"a_pos", -1, -1, 0, DescriptorNone, shader.StageVertex.Mask()},
		{"v_uv", -1, -1, 0, DescriptorNone, vf},
		{"o_color", -1, -1, 0, DescriptorNone, shader.StageFragment.Mask()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, ok := infos[tt.name]
			if !ok {
				t.Fatalf("no info for %s; have %v", tt.name, infos.Names())
			}
			if info.Set != tt.set || info.Binding != tt.binding || info.Location != tt.location {
				t.Errorf("set/binding/location = %d/%d/%d, want %d/%d/%d",
					info.Set, info.Binding, info.Location, tt.set, tt.binding, tt.location)
			}
			if info.Kind != tt.kind {
				t.Errorf("Kind = %v, want %v", info.Kind, tt.kind)
			}
			if info.Stages != tt.stages {
				t.Errorf("Stages = %v, want %v", info.Stages, tt.stages)
			}
		})
	}
	if len(infos) != len(tests) {
		t.Errorf("len(infos) = %d, want %d: %v", len(infos), len(tests), infos.Names())
	}
}

func TestVaryingLocationsPacked(t *testing.T) {
	in := programInput()
	vs, fs := in.Shaders[shader.StageVertex], in.Shaders[shader.StageFragment]
	m := shader.NewVariable(shader.TypeFloatMat3, "v_m")
	vs.OutputVaryings = append(vs.OutputVaryings, active(m), active(shader.NewVariable(shader.TypeFloat, "v_last")))
	fs.InputVaryings = append(fs.InputVaryings, active(m), active(shader.NewVariable(shader.TypeFloat, "v_last")))
	in.Caps.MaxVaryingVectors = 4
	infos := AssignVariableInfo(mustLink(t, in), AssignOptions{})

	want := map[string][2]int{"v_m": {0, 0}, "v_uv": {3, 0}, "v_last": {3, 2}}
	for name, w := range want {
		if got := infos[name]; got.Location != w[0] || got.Component != w[1] {
			t.Errorf("%s location, component = %d, %d, want %d, %d", name, got.Location, got.Component, w[0], w[1])
		}
	}

	d := infos.Decorations(shader.StageFragment)["v_last"]
	if d.Location != 3 || d.Component != 2 {
		t.Errorf("v_last decorations = %+v, want location 3 component 2", d)
	}
	if d := infos.Decorations(shader.StageVertex)["v_uv"]; d != spirv.Locate(3) {
		t.Errorf("v_uv decorations = %+v, want location 3 only", d)
	}
}

func TestVariableInfoDecorations(t *testing.T) {
	infos := AssignVariableInfo(mustLink(t, programInput()), AssignOptions{})

	vs := infos.Decorations(shader.StageVertex)
	if !vs["tex"].Removed {
		t.Errorf("tex in vertex stage = %+v, want removed", vs["tex"])
	}
	if got := vs["Transform"]; got != spirv.Bind(2, 0) {
		t.Errorf("Transform = %+v, want set 2 binding 0", got)
	}
	fs := infos.Decorations(shader.StageFragment)
	if got := fs["tex"]; got != spirv.Bind(1, 0) {
		t.Errorf("tex in fragment stage = %+v, want set 1 binding 0", got)
	}
	if got := fs["v_uv"]; got != spirv.Locate(0) {
		t.Errorf("v_uv = %+v, want location 0", got)
	}
}

func TestDescriptorSetLayouts(t *testing.T) {
	layouts := AssignVariableInfo(mustLink(t, programInput()), AssignOptions{}).Layouts()

	if n := len(layouts[SetUniformsAndXfb]); n != 2 {
		t.Fatalf("set 0 has %d entries, want 2", n)
	}
	vsBlock := layouts[SetUniformsAndXfb][0]
	if vsBlock.Binding != 0 || vsBlock.Visibility != gputypes.ShaderStageVertex {
		t.Errorf("set 0 binding 0 = %+v, want vertex-visible", vsBlock)
	}
	if vsBlock.Buffer == nil || vsBlock.Buffer.Type != gputypes.BufferBindingTypeUniform {
		t.Errorf("set 0 binding 0 buffer = %+v, want uniform", vsBlock.Buffer)
	}

	tex := layouts[SetTexture]
	if len(tex) != 1 || tex[0].Texture == nil {
		t.Fatalf("set 1 = %+v, want one texture", tex)
	}
	if tex[0].Texture.ViewDimension != gputypes.TextureViewDimension2D {
		t.Errorf("tex view dimension = %v, want 2D", tex[0].Texture.ViewDimension)
	}
	if tex[0].Texture.SampleType != gputypes.TextureSampleTypeFloat {
		t.Errorf("tex sample type = %v, want float", tex[0].Texture.SampleType)
	}

	driver := layouts[SetDriverUniforms]
	if len(driver) != 1 || driver[0].Visibility != gputypes.ShaderStagesVertexFragment {
		t.Errorf("set 3 = %+v, want one entry visible to vertex and fragment", driver)
	}
}

// ===== Vulkan Backend Tests =====

func TestVulkanLink(t *testing.T) {
	in := programInput()
	res := mustLink(t, in)
	v, _, modules := newVulkan(VulkanOptions{MaxParallelCompiles: 1})
	p := v.NewProgram().(*VulkanProgram)
	defer p.Release()

	var log link.InfoLog
	if err := p.Link(context.Background(), in, res, &log).Wait(context.Background()); err != nil {
		t.Fatalf("Link().Wait() error = %v", err)
	}
	if got := modules.created.Load(); got != 2 {
		t.Errorf("modules created = %d, want 2", got)
	}
	if p.Module(shader.StageVertex) == nil || p.Module(shader.StageFragment) == nil {
		t.Fatal("missing shader module")
	}

	tests := []struct {
		stage   shader.Stage
		name    string
		dec     spirv.Decoration
		want    uint32
		present bool
	}{
		{shader.StageVertex, "defaultUniformsVS", spirv.DecorationBinding, 0, true},
		{shader.StageFragment, "defaultUniformsFS", spirv.DecorationBinding, 1, true},
		{shader.StageFragment, "tex", spirv.DecorationDescriptorSet, 1, true},
		{shader.StageFragment, "Transform", spirv.DecorationDescriptorSet, 2, true},
		{shader.StageVertex, "driverUniforms", spirv.DecorationDescriptorSet, 3, true},
		{shader.StageVertex, "a_pos", spirv.DecorationLocation, 0, true},
		{shader.StageFragment, "o_color", spirv.DecorationLocation, 0, true},
	}
	for _, tt := range tests {
		decs := decorationsOf(t, p.Code(tt.stage), tt.name)
		got, ok := decs[tt.dec]
		if ok != tt.present || got != tt.want {
			t.Errorf("%s %s decoration %d = %d (present %v), want %d", tt.stage, tt.name, tt.dec, got, ok, tt.want)
		}
	}
	if !log.Empty() {
		t.Errorf("info log = %q, want empty", log.String())
	}
}

func TestVulkanLinkErrors(t *testing.T) {
	t.Run("compile", func(t *testing.T) {
		in := programInput()
		res := mustLink(t, in)
		v, c, _ := newVulkan(VulkanOptions{})
		c.failOn = shader.StageFragment
		c.failErr = errors.New("syntax error")
		p := v.NewProgram()
		err := p.Link(context.Background(), in, res, nil).Wait(context.Background())
		var be *Error
		if !errors.As(err, &be) {
			t.Fatalf("Wait() error = %v, want *Error", err)
		}
		if be.Stage != shader.StageFragment || be.Op != "compile" {
			t.Errorf("Error = %+v, want fragment compile", be)
		}
		if !strings.Contains(err.Error(), "syntax error") {
			t.Errorf("Error() = %q, want the compiler message", err.Error())
		}
	})
	t.Run("device lost", func(t *testing.T) {
		in := programInput()
		res := mustLink(t, in)
		v, _, modules := newVulkan(VulkanOptions{})
		modules.err = ErrDeviceLost
		err := v.NewProgram().Link(context.Background(), in, res, nil).Wait(context.Background())
		if !IsDeviceLost(err) {
			t.Errorf("Wait() error = %v, want device lost", err)
		}
	})
}

func TestVulkanLinkIsAsynchronous(t *testing.T) {
	in := programInput()
	res := mustLink(t, in)
	v, c, _ := newVulkan(VulkanOptions{})
	c.gate = make(chan struct{})
	ev := v.NewProgram().Link(context.Background(), in, res, nil)
	if !ev.IsLinking() {
		t.Fatal("IsLinking() = false while the compiler is blocked")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := ev.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Wait(cancelled) = %v, want context.Canceled", err)
	}

	close(c.gate)
	if err := ev.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if ev.IsLinking() {
		t.Error("IsLinking() = true after Wait returned")
	}
}

func TestVulkanRelinkReleasesPrevious(t *testing.T) {
	in := programInput()
	res := mustLink(t, in)
	v, _, modules := newVulkan(VulkanOptions{})
	p := v.NewProgram()
	for range 2 {
		if err := p.Link(context.Background(), in, res, nil).Wait(context.Background()); err != nil {
			t.Fatalf("Wait() error = %v", err)
		}
	}
	if got := modules.released.Load(); got != 2 {
		t.Errorf("released = %d after relink, want 2", got)
	}
	p.Release()
	if got := modules.released.Load(); got != 4 {
		t.Errorf("released = %d after Release, want 4", got)
	}
}

func TestVulkanSaveLoad(t *testing.T) {
	in := programInput()
	res := mustLink(t, in)
	v, _, modules := newVulkan(VulkanOptions{})
	p := v.NewProgram().(*VulkanProgram)
	if err := p.Link(context.Background(), in, res, nil).Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	blob, err := p.Save()
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	q := v.NewProgram().(*VulkanProgram)
	ev, err := q.Load(context.Background(), res, blob)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := ev.Wait(context.Background()); err != nil {
		t.Fatalf("Load().Wait() error = %v", err)
	}
	for _, s := range []shader.Stage{shader.StageVertex, shader.StageFragment} {
		if !slices.Equal(p.Code(s), q.Code(s)) {
			t.Errorf("%s code differs after load", s)
		}
	}
	if q.VariableInfo()["tex"] != p.VariableInfo()["tex"] {
		t.Errorf("tex info = %+v, want %+v", q.VariableInfo()["tex"], p.VariableInfo()["tex"])
	}
	if got := modules.created.Load(); got != 4 {
		t.Errorf("modules created = %d, want 4", got)
	}

	t.Run("garbage", func(t *testing.T) {
		if _, err := v.NewProgram().Load(context.Background(), res, []byte{0xc1}); err == nil {
			t.Error("Load(garbage) succeeded")
		}
	})
	t.Run("version", func(t *testing.T) {
		old, _ := msgpack.Marshal(&vulkanBlob{Version: vulkanBlobVersion + 1})
		if _, err := v.NewProgram().Load(context.Background(), res, old); !errors.Is(err, ErrBlobVersion) {
			t.Errorf("Load(old) error = %v, want ErrBlobVersion", err)
		}
	})
	t.Run("unlinked stage", func(t *testing.T) {
		bad, _ := msgpack.Marshal(&vulkanBlob{
			Version: vulkanBlobVersion,
			Stages:  []vulkanStageBlob{{Stage: shader.StageCompute, Code: p.Code(shader.StageVertex)}},
		})
		if _, err := v.NewProgram().Load(context.Background(), res, bad); err == nil {
			t.Error("Load() accepted code for an unlinked stage")
		}
	})
}

func TestVulkanUniforms(t *testing.T) {
	in := programInput()
	res := mustLink(t, in)
	v, _, _ := newVulkan(VulkanOptions{})
	p := v.NewProgram().(*VulkanProgram)
	if err := p.Link(context.Background(), in, res, nil).Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	color := uniformIndex(t, res, "u_color")
	values := []uint32{
		math.Float32bits(0.25), math.Float32bits(0.5), math.Float32bits(0.75), math.Float32bits(1),
	}
	if err := p.SetUniform(color, 0, values); err != nil {
		t.Fatalf("SetUniform() error = %v", err)
	}
	got := make([]uint32, 4)
	if err := p.Uniform(color, 0, got); err != nil {
		t.Fatalf("Uniform() error = %v", err)
	}
	if !slices.Equal(got, values) {
		t.Errorf("Uniform() = %v, want %v", got, values)
	}
	if dirty := p.DirtyUniformStages(); dirty != shader.StageFragment.Mask() {
		t.Errorf("DirtyUniformStages() = %v, want fragment", dirty)
	}
	if _, ok := p.UniformData(shader.StageFragment); !ok {
		t.Fatal("UniformData(fragment) missing")
	}
	if dirty := p.DirtyUniformStages(); dirty != 0 {
		t.Errorf("DirtyUniformStages() = %v after read, want none", dirty)
	}

	// mat2 columns are 16 bytes apart under std140.
	rot := uniformIndex(t, res, "u_rot")
	if err := p.SetUniform(rot, 0, []uint32{1, 2, 3, 4}); err != nil {
		t.Fatalf("SetUniform(mat2) error = %v", err)
	}
	data, _ := p.UniformData(shader.StageFragment)
	off := p.current().uniforms.stages[shader.StageFragment].members[rot].Offset
	for i, want := range map[int]uint32{0: 1, 4: 2, 16: 3, 20: 4} {
		if got := binary.LittleEndian.Uint32(data[off+i:]); got != want {
			t.Errorf("mat2 byte %d = %d, want %d", i, got, want)
		}
	}

	if err := p.SetUniform(color, 0, values[:3]); !errors.Is(err, ErrUniformSize) {
		t.Errorf("SetUniform(3 of vec4) error = %v, want ErrUniformSize", err)
	}
	if err := p.SetUniform(uint32(len(res.Uniforms)), 0, values); !errors.Is(err, ErrNoUniform) {
		t.Errorf("SetUniform(out of range) error = %v, want ErrNoUniform", err)
	}
}

func TestVulkanMarkUnusedUniformLocations(t *testing.T) {
	in := programInput()
	res := mustLink(t, in)
	scale := uniformIndex(t, res, "u_scale")
	res.Uniforms[scale].Stages = 0

	v, _, _ := newVulkan(VulkanOptions{})
	p := v.NewProgram().(*VulkanProgram)
	if err := p.Link(context.Background(), in, res, nil).Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	delete(p.VariableInfo(), "tex")
	p.MarkUnusedUniformLocations(res)

	for loc, l := range res.UniformLocations {
		if l.Index == scale && !l.Ignored {
			t.Errorf("location %d of u_scale not ignored", loc)
		}
		if l.Index == uniformIndex(t, res, "u_color") && l.Ignored {
			t.Errorf("location %d of u_color ignored", loc)
		}
	}
	if !res.SamplerBindings[0].Unreferenced {
		t.Error("sampler without descriptor not flagged unreferenced")
	}
}

// ===== Transform Feedback Emulation Tests =====

func xfbInput() *link.Input {
	in := programInput()
	vs := in.Shaders[shader.StageVertex]
	vs.OutputVaryings = append(vs.OutputVaryings, active(shader.NewVariable(shader.TypeIntVec2, "v_id")))
	n := shader.NewVariable(shader.TypeFloatVec3, "v_n")
	n.ArraySizes = []uint32{2}
	vs.OutputVaryings = append(vs.OutputVaryings, active(n))
	in.TransformFeedbackVaryings = []string{"gl_Position", "v_n[1]", "v_id"}
	return in
}

func TestTransformFeedbackEmulation(t *testing.T) {
	in := xfbInput()
	res := mustLink(t, in)
	v, c, _ := newVulkan(VulkanOptions{EmulateTransformFeedback: true})
	var log link.InfoLog
	if err := v.NewProgram().Link(context.Background(), in, res, &log).Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	src := c.source(shader.StageVertex)
	for _, want := range []string{
		"layout(set = 0, binding = 2, std430) buffer xfbBuffer0 { float xfbOut0[]; };",
		"    if (driverUniforms.xfbActiveUnpaused != 0u)",
		"        ivec4 xfbOffsets = getXfbOffsets(ivec4(9, 0, 0, 0));",
		"        xfbOut0[xfbOffsets[0] + 0] = gl_Position.x;",
		"        xfbOut0[xfbOffsets[0] + 6] = v_n[1].z;",
		"        xfbOut0[xfbOffsets[0] + 8] = intBitsToFloat(v_id.y);",
	} {
		if !strings.Contains(src, want) {
			t.Errorf("vertex source missing %q:\n%s", want, src)
		}
	}
	if strings.Contains(src, "@@") {
		t.Errorf("vertex source still has placeholders:\n%s", src)
	}
	if fs := c.source(shader.StageFragment); strings.Contains(fs, "@@") || strings.Contains(fs, "xfbOut") {
		t.Errorf("fragment source = %q, want placeholders removed without capture", fs)
	}
	if info := AssignVariableInfo(res, AssignOptions{EmulateTransformFeedback: true})["xfbBuffer0"]; info.Stages != shader.StageVertex.Mask() {
		t.Errorf("xfbBuffer0 stages = %v, want vertex", info.Stages)
	}
	if !log.Empty() {
		t.Errorf("info log = %q, want empty", log.String())
	}
}

func TestTransformFeedbackSeparate(t *testing.T) {
	in := xfbInput()
	in.TransformFeedbackMode = link.XfbSeparate
	res := mustLink(t, in)
	infos := AssignVariableInfo(res, AssignOptions{EmulateTransformFeedback: true})
	capture := newXfbCapture(res, in.Shader(shader.StageVertex), infos)

	if len(capture.decl) != 3 {
		t.Fatalf("len(decl) = %d, want 3 buffers", len(capture.decl))
	}
	out := strings.Join(capture.out, "\n")
	for _, want := range []string{
		"xfbOut1[xfbOffsets[1] + 0] = v_n[1].x;",
		"xfbOut2[xfbOffsets[2] + 1] = intBitsToFloat(v_id.y);",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("capture missing %q:\n%s", want, out)
		}
	}
}

func TestTransformFeedbackNotEmulated(t *testing.T) {
	in := xfbInput()
	res := mustLink(t, in)
	v, c, _ := newVulkan(VulkanOptions{})
	var log link.InfoLog
	if err := v.NewProgram().Link(context.Background(), in, res, &log).Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if src := c.source(shader.StageVertex); strings.Contains(src, "@@") || strings.Contains(src, "xfbOut") {
		t.Errorf("vertex source = %q, want placeholders dropped", src)
	}
	if !strings.Contains(log.String(), "not emulated") {
		t.Errorf("info log = %q, want a warning", log.String())
	}
}

// ===== Null Backend Tests =====

func TestNullBackend(t *testing.T) {
	in := programInput()
	res := mustLink(t, in)
	p := Null{}.NewProgram()
	ev := p.Link(context.Background(), in, res, nil)
	if ev.IsLinking() {
		t.Error("null link is pending")
	}
	if err := ev.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	color := uniformIndex(t, res, "u_color")
	if err := p.SetUniform(color, 0, []uint32{1, 2, 3, 4}); err != nil {
		t.Fatalf("SetUniform() error = %v", err)
	}
	got := make([]uint32, 4)
	if err := p.Uniform(color, 0, got); err != nil || !slices.Equal(got, []uint32{1, 2, 3, 4}) {
		t.Errorf("Uniform() = %v, %v", got, err)
	}

	blob, err := p.Save()
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, err := (Null{}).NewProgram().Load(context.Background(), res, blob); err != nil {
		t.Errorf("Load(Save()) error = %v", err)
	}
	vblob, _ := msgpack.Marshal(&vulkanBlob{Version: vulkanBlobVersion})
	if _, err := (Null{}).NewProgram().Load(context.Background(), res, vblob); err == nil {
		t.Error("null backend accepted a Vulkan blob")
	}
}

// ===== Interface Assertions =====

var (
	_ Factory = Null{}
	_ Factory = (*Vulkan)(nil)
	_ Program = (*VulkanProgram)(nil)
)
