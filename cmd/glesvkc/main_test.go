package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"

	"github.com/gogpu/glesvk/program"
	"github.com/gogpu/glesvk/shader"
	"github.com/gogpu/glesvk/spirv"
)

const texturedProgram = `
[attribute_locations]
position = 0

[[shader]]
stage = "vertex"

  [[shader.attribute]]
  name = "position"
  type = "vec4"

  [[shader.out]]
  name = "v_uv"
  type = "vec2"
  precision = "mediump"

  [[shader.uniform]]
  name = "u_mvp"
  type = "mat4"

[[shader]]
stage = "fragment"

  [[shader.in]]
  name = "v_uv"
  type = "vec2"
  precision = "mediump"

  [[shader.uniform]]
  name = "tex"
  type = "sampler2D"

  [[shader.uniform]]
  name = "u_unused"
  type = "float"
  inactive = true

  [[shader.output]]
  name = "o_color"
  type = "vec4"
  location = 0
`

func writeFile(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

// noColor disables colored output until the returned func is called.
func noColor() func() {
	old := color.NoColor
	color.NoColor = true
	return func() { color.NoColor = old }
}

// run executes the root command with args and returns its combined
// output.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	linkOutput, disRawIDs = "", false
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--color=off"}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

// ===== Describe Tests =====

func TestLoadProgram(t *testing.T) {
	desc, err := loadProgram(writeFile(t, "p.toml", texturedProgram))
	if err != nil {
		t.Fatalf("loadProgram() error = %v", err)
	}
	if len(desc.Shaders) != 2 {
		t.Fatalf("len(Shaders) = %d, want 2", len(desc.Shaders))
	}

	vs, err := desc.Shaders[0].compiled()
	if err != nil {
		t.Fatalf("compiled() error = %v", err)
	}
	if vs.Stage != shader.StageVertex || vs.Version != 300 || !vs.Compiled {
		t.Errorf("vertex shader = %v %d %v", vs.Stage, vs.Version, vs.Compiled)
	}
	if len(vs.OutputVaryings) != 1 || vs.OutputVaryings[0].Precision != shader.PrecisionMedium {
		t.Errorf("OutputVaryings = %+v, want one mediump varying", vs.OutputVaryings)
	}

	fs, err := desc.Shaders[1].compiled()
	if err != nil {
		t.Fatalf("compiled() error = %v", err)
	}
	if got := fs.Outputs[0].Location; got != 0 {
		t.Errorf("o_color location = %d, want 0", got)
	}
	if u := fs.Uniforms[1]; u.Active || u.StaticUse {
		t.Errorf("inactive uniform %q is marked used", u.Name)
	}
}

func TestLoadProgramErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"no shaders", "separable = true\n", "missing [[shader]]"},
		{"unknown key", "[[shader]]\nstage = \"vertex\"\nlanguage = \"glsl\"\n", "unknown key"},
		{"syntax", "[[shader]\n", "failed to parse TOML"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadProgram(writeFile(t, "p.toml", tt.data))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("loadProgram() error = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestVariableErrors(t *testing.T) {
	tests := []struct {
		name string
		v    varDesc
	}{
		{"type", varDesc{Name: "a", Type: "vec5"}},
		{"precision", varDesc{Name: "a", Type: "float", Precision: "ultrap"}},
		{"interpolation", varDesc{Name: "a", Type: "float", Interpolation: "linear"}},
		{"field", varDesc{Name: "s", Fields: []varDesc{{Name: "f", Type: "bogus"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.v.variable(); err == nil {
				t.Error("variable() succeeded, want error")
			}
		})
	}
}

func TestStructAndBlocks(t *testing.T) {
	v := varDesc{Name: "light", StructName: "Light", Fields: []varDesc{
		{Name: "color", Type: "vec3"},
		{Name: "intensity", Type: "float"},
	}}
	got, err := v.variable()
	if err != nil {
		t.Fatalf("variable() error = %v", err)
	}
	if got.Type != shader.TypeNone || !got.IsStruct() || got.StructName != "Light" {
		t.Errorf("variable() = %+v, want struct Light", got)
	}

	binding := 3
	b := blockDesc{Name: "Buf", Binding: &binding, Fields: []varDesc{{Name: "data", Type: "float", Array: []uint32{0}}}}
	ssbo, err := b.block(shader.BlockBuffer)
	if err != nil {
		t.Fatalf("block() error = %v", err)
	}
	if ssbo.Layout != shader.LayoutStd430 || ssbo.Binding != 3 || ssbo.BlockType != shader.BlockBuffer {
		t.Errorf("storage block = %+v", ssbo)
	}
	b.Layout = "std140"
	ubo, err := b.block(shader.BlockUniform)
	if err != nil {
		t.Fatalf("block() error = %v", err)
	}
	if ubo.Layout != shader.LayoutStd140 {
		t.Errorf("Layout = %v, want std140", ubo.Layout)
	}
	b.Layout = "tight"
	if _, err := b.block(shader.BlockUniform); err == nil {
		t.Error("block() with unknown layout succeeded")
	}
}

func TestParseEnum(t *testing.T) {
	if got, ok := parseEnum("HIGHP", shader.PrecisionUndefined, shader.PrecisionHigh); !ok || got != shader.PrecisionHigh {
		t.Errorf("parseEnum(HIGHP) = %v, %v, want highp", got, ok)
	}
	if got, ok := parseEnum("", shader.InterpolationSmooth, shader.InterpolationSample); !ok || got != shader.InterpolationSmooth {
		t.Errorf("parseEnum(\"\") = %v, %v, want smooth", got, ok)
	}
	if _, ok := parseEnum("wobbly", shader.InterpolationSmooth, shader.InterpolationSample); ok {
		t.Error("parseEnum(wobbly) reported ok")
	}
}

// ===== Command Tests =====

func TestLinkAndInspect(t *testing.T) {
	src := writeFile(t, "p.toml", texturedProgram)
	bin := filepath.Join(t.TempDir(), "p.bin")

	out, err := run(t, "link", "-o", bin, src)
	if err != nil {
		t.Fatalf("link error = %v\n%s", err, out)
	}
	for _, want := range []string{"linked", "position", "u_mvp", "tex", "o_color", "unused uniforms: u_unused", "wrote"} {
		if !strings.Contains(out, want) {
			t.Errorf("link output missing %q:\n%s", want, out)
		}
	}

	blob, err := os.ReadFile(bin)
	if err != nil {
		t.Fatal(err)
	}
	if _, _, _, err := program.ReadBinary(blob); err != nil {
		t.Fatalf("ReadBinary() error = %v", err)
	}

	out, err = run(t, "inspect", bin)
	if err != nil {
		t.Fatalf("inspect error = %v\n%s", err, out)
	}
	for _, want := range []string{"(this build)", "client version", "u_mvp", "o_color"} {
		if !strings.Contains(out, want) {
			t.Errorf("inspect output missing %q:\n%s", want, out)
		}
	}
}

func TestLinkFailure(t *testing.T) {
	// The fragment input has no matching vertex output.
	src := writeFile(t, "p.toml", `
[[shader]]
stage = "vertex"

[[shader]]
stage = "fragment"
  [[shader.in]]
  name = "v_missing"
  type = "vec4"
`)
	out, err := run(t, "link", src)
	if err == nil {
		t.Fatalf("link succeeded, want failure:\n%s", out)
	}
	if !strings.Contains(out, "link failed") || !strings.Contains(out, "v_missing") {
		t.Errorf("link output = %q, want the info log", out)
	}
}

func TestInspectCorrupt(t *testing.T) {
	bin := writeFile(t, "bad.bin", "not a program")
	if _, err := run(t, "inspect", bin); err == nil {
		t.Error("inspect of a corrupt binary succeeded")
	}
}

func TestBadColorMode(t *testing.T) {
	if _, err := run(t, "--color=loud", "inspect", "x"); err == nil {
		t.Error("unknown color mode accepted")
	}
}

// ===== Disassembler Tests =====

func fragmentModule() []uint32 {
	b := spirv.NewModuleBuilder(spirv.Version1_0)
	b.AddCapability(spirv.CapabilityShader)
	b.SetMemoryModel(spirv.AddressingModelLogical, spirv.MemoryModelGLSL450)

	void := b.AddTypeVoid()
	fnType := b.AddTypeFunction(void)
	f32 := b.AddTypeFloat(32)
	vec4 := b.AddTypeVector(f32, 4)
	ptr := b.AddTypePointer(spirv.StorageClassOutput, vec4)
	out := b.AddVariable(ptr, spirv.StorageClassOutput)
	b.AddName(out, "o_color")
	b.AddDecorate(out, spirv.DecorationLocation, 0)

	fn := b.AddFunction(fnType, void, spirv.FunctionControlNone)
	b.AddName(fn, "main")
	b.AddLabel()
	b.AddReturn()
	b.AddFunctionEnd()
	b.AddEntryPoint(spirv.ExecutionModelFragment, fn, "main", []uint32{out})
	return b.Build()
}

func TestDisassemble(t *testing.T) {
	m, err := spirv.Parse(fragmentModule())
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	tests := []struct {
		name     string
		friendly bool
		want     []string
	}{
		{"friendly", true, []string{
			"; Version: 1.0",
			"OpCapability Shader",
			"OpMemoryModel Logical GLSL450",
			`OpEntryPoint Fragment %main "main" %o_color`,
			`OpName %o_color "o_color"`,
			"OpDecorate %o_color Location 0",
			"%o_color = OpVariable",
			"OpFunctionEnd",
		}},
		{"raw ids", false, []string{"OpDecorate %6 Location 0", "%6 = OpVariable %5 Output"}},
	}
	defer noColor()()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := disassemble(&buf, m, tt.friendly); err != nil {
				t.Fatalf("disassemble() error = %v", err)
			}
			for _, want := range tt.want {
				if !strings.Contains(buf.String(), want) {
					t.Errorf("output missing %q:\n%s", want, buf.String())
				}
			}
		})
	}
}

func TestDisassembleMalformed(t *testing.T) {
	// OpTypeInt with a single operand.
	words := []uint32{spirv.MagicNumber, 0x00010000, 0, 2, 0, 2<<16 | uint32(spirv.OpTypeInt), 1}
	m, err := spirv.Parse(words)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	var buf bytes.Buffer
	if err := disassemble(&buf, m, true); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "; malformed OpTypeInt") {
		t.Errorf("output = %q, want a malformed note", buf.String())
	}
}

func TestDisCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.spv")
	if err := os.WriteFile(path, spirv.WordsToBytes(fragmentModule()), 0o600); err != nil {
		t.Fatal(err)
	}
	out, err := run(t, "dis", "--raw-id", path)
	if err != nil {
		t.Fatalf("dis error = %v", err)
	}
	if !strings.Contains(out, "OpEntryPoint Fragment %") {
		t.Errorf("dis output = %q", out)
	}

	bad := writeFile(t, "bad.spv", "abc")
	if _, err := run(t, "dis", bad); err == nil {
		t.Error("dis of an unaligned file succeeded")
	}
}

func TestFriendlyNames(t *testing.T) {
	b := spirv.NewModuleBuilder(spirv.Version1_0)
	f32 := b.AddTypeFloat(32)
	a := b.AddTypePointer(spirv.StorageClassInput, f32)
	c := b.AddTypePointer(spirv.StorageClassOutput, f32)
	b.AddName(a, "x")
	b.AddName(c, "x")
	b.AddName(f32, "not valid")
	m, err := spirv.Parse(b.Build())
	if err != nil {
		t.Fatal(err)
	}
	names := friendlyNames(m)
	if names[a] != "x_2" || names[c] != "x_3" {
		t.Errorf("friendlyNames() = %v, want suffixed duplicates", names)
	}
	if _, ok := names[f32]; ok {
		t.Error("friendlyNames() kept a name with a space")
	}
}
