package link

import (
	"testing"

	"github.com/gogpu/glesvk/shader"
)

// ===== Layout Tests =====

func TestLayoutScalarsAndVectors(t *testing.T) {
	tests := []struct {
		name   string
		layout shader.BlockLayout
		types  []shader.GLType
		want   []int
		size   int
	}{
		{
			name:   "std140 float vec3 float",
			layout: shader.LayoutStd140,
			types:  []shader.GLType{shader.TypeFloat, shader.TypeFloatVec3, shader.TypeFloat},
			want:   []int{0, 16, 28},
			size:   32,
		},
		{
			name:   "std430 float vec2 vec4",
			layout: shader.LayoutStd430,
			types:  []shader.GLType{shader.TypeFloat, shader.TypeFloatVec2, shader.TypeFloatVec4},
			want:   []int{0, 8, 16},
			size:   32,
		},
		{
			name:   "std430 trailing scalar",
			layout: shader.LayoutStd430,
			types:  []shader.GLType{shader.TypeFloatVec2, shader.TypeFloat},
			want:   []int{0, 8},
			size:   12,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc := NewLayout(tt.layout)
			for i, typ := range tt.types {
				info := enc.EncodeType(typ, nil, false)
				if info.Offset != tt.want[i] {
					t.Errorf("member %d offset = %d, want %d", i, info.Offset, tt.want[i])
				}
			}
			if got := enc.Size(); got != tt.size {
				t.Errorf("Size() = %d, want %d", got, tt.size)
			}
		})
	}
}

func TestLayoutArrays(t *testing.T) {
	std140 := NewLayout(shader.LayoutStd140)
	info := std140.EncodeType(shader.TypeFloat, []uint32{4}, false)
	if info.ArrayStride != 16 {
		t.Errorf("std140 float[4] stride = %d, want 16", info.ArrayStride)
	}
	if std140.Offset() != 64 {
		t.Errorf("std140 float[4] end = %d, want 64", std140.Offset())
	}

	std430 := NewLayout(shader.LayoutStd430)
	info = std430.EncodeType(shader.TypeFloat, []uint32{4}, false)
	if info.ArrayStride != 4 {
		t.Errorf("std430 float[4] stride = %d, want 4", info.ArrayStride)
	}
	info = std430.EncodeType(shader.TypeFloatVec3, []uint32{2, 2}, false)
	if info.Offset != 16 || info.ArrayStride != 16 || std430.Offset() != 80 {
		t.Errorf("std430 vec3[2][2] = offset %d stride %d end %d, want 16 16 80",
			info.Offset, info.ArrayStride, std430.Offset())
	}
}

func TestLayoutMatrices(t *testing.T) {
	tests := []struct {
		name         string
		layout       shader.BlockLayout
		typ          shader.GLType
		rowMajor     bool
		matrixStride int
		end          int
	}{
		{"std140 mat3", shader.LayoutStd140, shader.TypeFloatMat3, false, 16, 48},
		{"std140 mat2", shader.LayoutStd140, shader.TypeFloatMat2, false, 16, 32},
		{"std430 mat2", shader.LayoutStd430, shader.TypeFloatMat2, false, 8, 16},
		{"std430 mat2x4 column", shader.LayoutStd430, shader.TypeFloatMat2x4, false, 16, 32},
		{"std430 mat2x4 row", shader.LayoutStd430, shader.TypeFloatMat2x4, true, 8, 32},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc := NewLayout(tt.layout)
			info := enc.EncodeType(tt.typ, nil, tt.rowMajor)
			if info.MatrixStride != tt.matrixStride {
				t.Errorf("MatrixStride = %d, want %d", info.MatrixStride, tt.matrixStride)
			}
			if info.IsRowMajor != tt.rowMajor {
				t.Errorf("IsRowMajor = %v, want %v", info.IsRowMajor, tt.rowMajor)
			}
			if enc.Offset() != tt.end {
				t.Errorf("end = %d, want %d", enc.Offset(), tt.end)
			}
		})
	}
}

func TestLayoutStructs(t *testing.T) {
	fields := []shader.Variable{
		shader.NewVariable(shader.TypeFloat, "a"),
		shader.NewVariable(shader.TypeFloatVec2, "b"),
	}

	std140 := NewLayout(shader.LayoutStd140)
	if got := std140.StructAlignment(fields, false); got != 16 {
		t.Errorf("std140 StructAlignment() = %d, want 16", got)
	}
	std430 := NewLayout(shader.LayoutStd430)
	if got := std430.StructAlignment(fields, false); got != 8 {
		t.Errorf("std430 StructAlignment() = %d, want 8", got)
	}

	std430.EncodeType(shader.TypeFloat, nil, false)
	align := std430.EnterStruct(fields, false)
	if std430.Offset() != 8 {
		t.Errorf("struct start = %d, want 8", std430.Offset())
	}
	std430.EncodeType(shader.TypeFloat, nil, false)
	std430.EncodeType(shader.TypeFloatVec2, nil, false)
	std430.ExitStruct(align)
	if std430.Offset() != 24 {
		t.Errorf("struct end = %d, want 24", std430.Offset())
	}
}

func TestBlockMemberEncoding(t *testing.T) {
	inner := shader.NewVariable(shader.TypeNone, "s")
	inner.StructName = "S"
	inner.Fields = []shader.Variable{
		shader.NewVariable(shader.TypeFloat, "x"),
		shader.NewVariable(shader.TypeFloatVec3, "y"),
	}
	inner.ArraySizes = []uint32{2}

	enc := NewLayout(shader.LayoutStd140)
	var names []string
	var offsets []int
	sink := func(_ *shader.Variable, name, _ string, info BlockMemberInfo, top uint32) {
		names = append(names, name)
		offsets = append(offsets, info.Offset)
		if top != 2 {
			t.Errorf("%s top-level size = %d, want 2", name, top)
		}
	}
	encodeMember(enc, &inner, "B.s", "B.s", false, 0, 2, sink)

	wantNames := []string{"B.s[0].x", "B.s[0].y", "B.s[1].x", "B.s[1].y"}
	wantOffsets := []int{0, 16, 32, 48}
	for i := range wantNames {
		if i >= len(names) {
			t.Fatalf("got %d members, want %d", len(names), len(wantNames))
		}
		if names[i] != wantNames[i] || offsets[i] != wantOffsets[i] {
			t.Errorf("member %d = %s@%d, want %s@%d", i, names[i], offsets[i], wantNames[i], wantOffsets[i])
		}
	}
	if got := enc.Size(); got != 64 {
		t.Errorf("Size() = %d, want 64", got)
	}
}

// ===== Location Tests =====

func TestFirstFreeRun(t *testing.T) {
	var used LocationMask
	used.Set(1)
	used.Set(4)

	tests := []struct {
		n    int
		want int
	}{
		{1, 0},
		{2, 2},
		{3, 5},
		{4, -1},
	}
	for _, tt := range tests {
		if got := firstFreeRun(&used, tt.n, 8); got != tt.want {
			t.Errorf("firstFreeRun(%d) = %d, want %d", tt.n, got, tt.want)
		}
	}
}

func TestComponentTypeMask(t *testing.T) {
	var m ComponentTypeMask
	m.Set(0, shader.ComponentFloat)
	m.Set(3, shader.ComponentUInt)
	m.Set(0, shader.ComponentInt)
	if got := m.Get(0); got != shader.ComponentInt {
		t.Errorf("Get(0) = %v, want int", got)
	}
	if got := m.Get(3); got != shader.ComponentUInt {
		t.Errorf("Get(3) = %v, want uint", got)
	}
	if got := m.Get(1); got != shader.ComponentNone {
		t.Errorf("Get(1) = %v, want none", got)
	}
}

func TestRange(t *testing.T) {
	r := Range{Low: 2, High: 5}
	if r.Len() != 3 || !r.Contains(2) || r.Contains(5) || r.Empty() {
		t.Errorf("Range %v has wrong membership", r)
	}
	if got := r.String(); got != "[2, 5)" {
		t.Errorf("String() = %q, want [2, 5)", got)
	}
}
