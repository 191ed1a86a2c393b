package shader

import (
	"testing"

	"github.com/gogpu/gputypes"
)

// ===== Stage Tests =====

func TestStageString(t *testing.T) {
	tests := []struct {
		stage Stage
		want  string
	}{
		{StageVertex, "vertex"},
		{StageGeometry, "geometry"},
		{StageFragment, "fragment"},
		{StageCompute, "compute"},
	}
	for _, tt := range tests {
		if got := tt.stage.String(); got != tt.want {
			t.Errorf("Stage(%d).String() = %q, want %q", tt.stage, got, tt.want)
		}
	}
}

func TestParseStage(t *testing.T) {
	for _, name := range []string{"vert", "VS", "vertex"} {
		s, err := ParseStage(name)
		if err != nil || s != StageVertex {
			t.Errorf("ParseStage(%q) = %v, %v, want vertex", name, s, err)
		}
	}
	if _, err := ParseStage("tess"); err == nil {
		t.Error("ParseStage(tess) succeeded, want error")
	}
}

func TestStageMask(t *testing.T) {
	m := StageVertex.Mask().With(StageFragment)
	if !m.Has(StageVertex) || !m.Has(StageFragment) || m.Has(StageCompute) {
		t.Fatalf("mask %v has wrong membership", m)
	}
	if m.Count() != 2 {
		t.Errorf("Count() = %d, want 2", m.Count())
	}
	if first, _ := m.First(); first != StageVertex {
		t.Errorf("First() = %v, want vertex", first)
	}
	if last, _ := m.Last(); last != StageFragment {
		t.Errorf("Last() = %v, want fragment", last)
	}
	if got := m.String(); got != "vertex|fragment" {
		t.Errorf("String() = %q, want %q", got, "vertex|fragment")
	}
	if got := m.Visibility(); got != gputypes.ShaderStagesVertexFragment {
		t.Errorf("Visibility() = %v, want Vertex|Fragment", got)
	}
	if _, ok := StageMask(0).First(); ok {
		t.Error("First() on empty mask reported ok")
	}
}

// ===== GLType Tests =====

func TestGLTypeShape(t *testing.T) {
	tests := []struct {
		typ       GLType
		cols      int
		rows      int
		registers int
	}{
		{TypeFloat, 1, 1, 1},
		{TypeFloatVec3, 1, 3, 1},
		{TypeFloatMat4, 4, 4, 4},
		{TypeFloatMat2x4, 2, 4, 2},
		{TypeFloatMat4x2, 4, 2, 2},
		{TypeFloatMat3, 3, 3, 3},
	}
	for _, tt := range tests {
		t.Run(tt.typ.String(), func(t *testing.T) {
			if got := tt.typ.ColumnCount(); got != tt.cols {
				t.Errorf("ColumnCount() = %d, want %d", got, tt.cols)
			}
			if got := tt.typ.RowCount(); got != tt.rows {
				t.Errorf("RowCount() = %d, want %d", got, tt.rows)
			}
			if got := tt.typ.Registers(); got != tt.registers {
				t.Errorf("Registers() = %d, want %d", got, tt.registers)
			}
		})
	}
}

func TestGLTypeClassification(t *testing.T) {
	if !TypeSampler2D.IsSampler() || !TypeSampler2D.IsOpaque() {
		t.Error("sampler2D should be an opaque sampler")
	}
	if !TypeImage2D.IsImage() || TypeImage2D.IsSampler() {
		t.Error("image2D should be an image and not a sampler")
	}
	if !TypeAtomicCounter.IsAtomicCounter() {
		t.Error("atomic_uint should be an atomic counter")
	}
	if TypeFloatVec4.IsOpaque() {
		t.Error("vec4 should not be opaque")
	}
	if got := TypeUIntSampler2D.SamplerFormat().SampleType(); got != gputypes.TextureSampleTypeUint {
		t.Errorf("usampler2D sample type = %v, want Uint", got)
	}
	if got := TypeSamplerCube.TextureType().ViewDimension(); got != gputypes.TextureViewDimensionCube {
		t.Errorf("samplerCube view dimension = %v, want Cube", got)
	}
}

func TestParseGLType(t *testing.T) {
	got, err := ParseGLType("mat3x2")
	if err != nil || got != TypeFloatMat3x2 {
		t.Errorf("ParseGLType(mat3x2) = %v, %v", got, err)
	}
	if got.TransposedMatrix() != TypeFloatMat2x3 {
		t.Errorf("TransposedMatrix() = %v, want mat2x3", got.TransposedMatrix())
	}
	if _, err := ParseGLType("vec5"); err == nil {
		t.Error("ParseGLType(vec5) succeeded, want error")
	}
}

// ===== Variable Tests =====

func TestVariableArrays(t *testing.T) {
	v := NewVariable(TypeFloatVec4, "colors")
	v.ArraySizes = []uint32{3, 2}
	if !v.IsArrayOfArrays() {
		t.Error("IsArrayOfArrays() = false, want true")
	}
	if got := v.OutermostArraySize(); got != 2 {
		t.Errorf("OutermostArraySize() = %d, want 2", got)
	}
	if got := v.ArraySizeProduct(); got != 6 {
		t.Errorf("ArraySizeProduct() = %d, want 6", got)
	}
	if got := v.TypeString(); got != "vec4[2][3]" {
		t.Errorf("TypeString() = %q, want %q", got, "vec4[2][3]")
	}
	c := v.Clone()
	c.ArraySizes[0] = 9
	if v.ArraySizes[0] != 3 {
		t.Error("Clone() shares array sizes with the original")
	}
}

func TestStripArrayIndex(t *testing.T) {
	tests := []struct {
		in    string
		name  string
		index int
	}{
		{"color", "color", -1},
		{"color[3]", "color", 3},
		{"s.f[12]", "s.f", 12},
		{"bad[x]", "bad[x]", -1},
		{"empty[]", "empty[]", -1},
	}
	for _, tt := range tests {
		name, index := StripArrayIndex(tt.in)
		if name != tt.name || index != tt.index {
			t.Errorf("StripArrayIndex(%q) = %q, %d, want %q, %d", tt.in, name, index, tt.name, tt.index)
		}
	}
}

func TestWorkGroupSize(t *testing.T) {
	if UndeclaredWorkGroupSize.IsDeclared() {
		t.Error("undeclared size reports declared")
	}
	w := WorkGroupSize{8, -1, -1}
	if !w.IsDeclared() {
		t.Error("partially declared size reports undeclared")
	}
	if got := w.Resolved(); got != (WorkGroupSize{8, 1, 1}) {
		t.Errorf("Resolved() = %v, want [8 1 1]", got)
	}
}

func TestCompiledUsesBuiltIn(t *testing.T) {
	c := NewCompiled(StageFragment, 300)
	fc := NewVariable(TypeFloatVec4, "gl_FragCoord")
	fc.StaticUse = true
	c.InputVaryings = append(c.InputVaryings, fc)
	if !c.UsesBuiltIn("gl_FragCoord") {
		t.Error("UsesBuiltIn(gl_FragCoord) = false, want true")
	}
	if c.UsesBuiltIn("gl_PointCoord") {
		t.Error("UsesBuiltIn(gl_PointCoord) = true, want false")
	}
}
