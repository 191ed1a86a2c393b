package link

import (
	"github.com/gogpu/glesvk/shader"
)

// Layout computes std140 and std430 member placement. Shared and packed
// blocks are laid out as std140.
type Layout struct {
	std430 bool
	offset int
}

// NewLayout returns an encoder for the given block layout.
func NewLayout(l shader.BlockLayout) *Layout {
	return &Layout{std430: l == shader.LayoutStd430}
}

// Offset returns the current end of the encoded data.
func (e *Layout) Offset() int {
	return e.offset
}

// Size returns the block data size: the encoded data rounded up to the
// block alignment.
func (e *Layout) Size() int {
	if e.std430 {
		return alignUp(e.offset, 4)
	}
	return alignUp(e.offset, 16)
}

func alignUp(n, align int) int {
	if align <= 1 {
		return n
	}
	return (n + align - 1) / align * align
}

// vectorAlignment is the base alignment of an n-component vector.
func vectorAlignment(n int) int {
	switch n {
	case 1:
		return 4
	case 2:
		return 8
	default:
		return 16
	}
}

// typeShape returns the alignment and the size of one element of t,
// plus the matrix stride for matrices.
func (e *Layout) typeShape(t shader.GLType, rowMajor bool) (align, size, matrixStride int) {
	if t.IsMatrix() {
		comps, vectors := t.RowCount(), t.ColumnCount()
		if rowMajor {
			comps, vectors = vectors, comps
		}
		matrixStride = vectorAlignment(comps)
		if !e.std430 {
			matrixStride = 16
		}
		return matrixStride, matrixStride * vectors, matrixStride
	}
	comps := t.ComponentCount()
	return vectorAlignment(comps), comps * 4, 0
}

// arrayStride returns the element stride and alignment of an array of
// elements with the given shape.
func (e *Layout) arrayStride(align, size int) (stride, arrayAlign int) {
	if !e.std430 {
		align = alignUp(align, 16)
	}
	return alignUp(size, align), align
}

// EncodeType places a basic-typed member and returns its placement.
func (e *Layout) EncodeType(t shader.GLType, arraySizes []uint32, rowMajor bool) BlockMemberInfo {
	align, size, matrixStride := e.typeShape(t, rowMajor)
	info := BlockMemberInfo{
		MatrixStride:        matrixStride,
		IsRowMajor:          rowMajor && t.IsMatrix(),
		TopLevelArrayStride: -1,
	}
	if len(arraySizes) > 0 {
		stride, arrayAlign := e.arrayStride(align, size)
		n := 1
		for _, s := range arraySizes {
			n *= int(s)
		}
		e.offset = alignUp(e.offset, arrayAlign)
		info.Offset = e.offset
		info.ArrayStride = stride
		e.offset += stride * n
		return info
	}
	e.offset = alignUp(e.offset, align)
	info.Offset = e.offset
	e.offset += size
	return info
}

// StructAlignment returns the base alignment of a struct with fields.
func (e *Layout) StructAlignment(fields []shader.Variable, rowMajor bool) int {
	align := 4
	for i := range fields {
		f := &fields[i]
		fieldRowMajor := rowMajor || f.IsRowMajor
		var a int
		if f.IsStruct() {
			a = e.StructAlignment(f.Fields, fieldRowMajor)
		} else {
			a, _, _ = e.typeShape(f.Type, fieldRowMajor)
			if f.IsArray() {
				_, a = e.arrayStride(a, 0)
			}
		}
		align = max(align, a)
	}
	if !e.std430 {
		align = alignUp(align, 16)
	}
	return align
}

// EnterStruct aligns the offset for a struct member and returns the
// struct alignment, to be passed to ExitStruct.
func (e *Layout) EnterStruct(fields []shader.Variable, rowMajor bool) int {
	align := e.StructAlignment(fields, rowMajor)
	e.offset = alignUp(e.offset, align)
	return align
}

// ExitStruct pads the offset to the struct alignment.
func (e *Layout) ExitStruct(align int) {
	e.offset = alignUp(e.offset, align)
}
