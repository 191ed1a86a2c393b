package backend

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/glesvk/link"
	"github.com/gogpu/glesvk/shader"
)

var (
	// ErrNoUniform is returned for an index outside the default uniforms.
	ErrNoUniform = errors.New("backend: not a default uniform")
	// ErrUniformSize is returned when values do not fit the uniform.
	ErrUniformSize = errors.New("backend: uniform data size mismatch")
)

// uniformShape is what SetUniform needs to know about one uniform.
type uniformShape struct {
	typ      shader.GLType
	elements uint32
}

func shapesOf(res *link.Resources) []uniformShape {
	shapes := make([]uniformShape, res.DefaultRange.High)
	for i := range shapes {
		u := &res.Uniforms[i]
		shapes[i] = uniformShape{typ: u.Type, elements: max(1, u.BasicTypeElementCount())}
	}
	return shapes
}

// check validates a write or read of n components at arrayIndex and
// returns the number of elements it covers.
func (s *uniformShape) check(arrayIndex uint32, n int) (uint32, error) {
	comps := s.typ.ComponentCount()
	if comps == 0 || n == 0 || n%comps != 0 {
		return 0, fmt.Errorf("%w: %d components for %s", ErrUniformSize, n, s.typ)
	}
	count := uint32(n / comps)
	if arrayIndex >= s.elements {
		return 0, fmt.Errorf("%w: element %d of %d", ErrUniformSize, arrayIndex, s.elements)
	}
	// Writes past the end of an array are truncated.
	return min(count, s.elements-arrayIndex), nil
}

// stageUniforms is the std140 default uniform block of one stage.
type stageUniforms struct {
	members map[uint32]link.BlockMemberInfo
	data    []byte
	dirty   bool
}

// defaultUniforms holds the default uniform buffers of every stage.
type defaultUniforms struct {
	mu     sync.Mutex
	shapes []uniformShape
	stages [shader.StageCount]*stageUniforms
}

// newDefaultUniforms lays out the non-opaque default uniforms of each
// stage in link order with std140 rules.
func newDefaultUniforms(res *link.Resources) *defaultUniforms {
	d := &defaultUniforms{shapes: shapesOf(res)}
	for _, s := range res.Stages.Stages() {
		layout := link.NewLayout(shader.LayoutStd140)
		members := make(map[uint32]link.BlockMemberInfo)
		for i := res.DefaultRange.Low; i < res.DefaultRange.High; i++ {
			u := &res.Uniforms[i]
			if u.IsBuiltIn() || !u.Stages.Has(s) {
				continue
			}
			members[i] = layout.EncodeType(u.Type, u.ArraySizes, false)
		}
		if len(members) == 0 {
			continue
		}
		d.stages[s] = &stageUniforms{members: members, data: make([]byte, layout.Size())}
	}
	return d
}

// has reports whether any stage stores uniform index.
func (d *defaultUniforms) has(index uint32) bool {
	for _, st := range d.stages {
		if st == nil {
			continue
		}
		if _, ok := st.members[index]; ok {
			return true
		}
	}
	return false
}

func (d *defaultUniforms) set(index, arrayIndex uint32, values []uint32) error {
	if index >= uint32(len(d.shapes)) {
		return ErrNoUniform
	}
	shape := &d.shapes[index]
	count, err := shape.check(arrayIndex, len(values))
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, st := range d.stages {
		if st == nil {
			continue
		}
		info, ok := st.members[index]
		if !ok {
			continue
		}
		forEachComponent(shape.typ, info, arrayIndex, count, func(k, off int) {
			binary.LittleEndian.PutUint32(st.data[off:], values[k])
		})
		st.dirty = true
	}
	return nil
}

func (d *defaultUniforms) get(index, arrayIndex uint32, dst []uint32) error {
	if index >= uint32(len(d.shapes)) {
		return ErrNoUniform
	}
	shape := &d.shapes[index]
	count, err := shape.check(arrayIndex, len(dst))
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, st := range d.stages {
		if st == nil {
			continue
		}
		info, ok := st.members[index]
		if !ok {
			continue
		}
		forEachComponent(shape.typ, info, arrayIndex, count, func(k, off int) {
			dst[k] = binary.LittleEndian.Uint32(st.data[off:])
		})
		return nil
	}
	return ErrNoUniform
}

// forEachComponent calls fn with the value index and byte offset of
// every component of count elements starting at arrayIndex. Matrix
// values are column-major.
func forEachComponent(t shader.GLType, info link.BlockMemberInfo, arrayIndex, count uint32, fn func(k, off int)) {
	comps := t.ComponentCount()
	cols, rows := 1, comps
	colStride := 0
	if t.IsMatrix() {
		cols, rows = t.ColumnCount(), t.RowCount()
		colStride = info.MatrixStride
	}
	for e := range int(count) {
		base := info.Offset + (int(arrayIndex)+e)*info.ArrayStride
		for c := range cols {
			for r := range rows {
				fn(e*comps+c*rows+r, base+c*colStride+r*4)
			}
		}
	}
}

// snapshot copies the data of stage and clears its dirty flag.
func (d *defaultUniforms) snapshot(s shader.Stage) ([]byte, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	st := d.stages[s]
	if st == nil {
		return nil, false
	}
	st.dirty = false
	return append([]byte(nil), st.data...), true
}

func (d *defaultUniforms) dirtyStages() shader.StageMask {
	d.mu.Lock()
	defer d.mu.Unlock()
	var m shader.StageMask
	for _, s := range shader.AllStages {
		if st := d.stages[s]; st != nil && st.dirty {
			m = m.With(s)
		}
	}
	return m
}

// uniformStore keeps default uniform values as flat component slices.
// The null backend uses it in place of device buffers.
type uniformStore struct {
	mu     sync.Mutex
	shapes []uniformShape
	values [][]uint32
}

func newUniformStore(res *link.Resources) *uniformStore {
	s := &uniformStore{shapes: shapesOf(res)}
	s.values = make([][]uint32, len(s.shapes))
	for i, sh := range s.shapes {
		s.values[i] = make([]uint32, int(sh.elements)*sh.typ.ComponentCount())
	}
	return s
}

func (s *uniformStore) set(index, arrayIndex uint32, values []uint32) error {
	if index >= uint32(len(s.shapes)) {
		return ErrNoUniform
	}
	shape := &s.shapes[index]
	count, err := shape.check(arrayIndex, len(values))
	if err != nil {
		return err
	}
	comps := shape.typ.ComponentCount()
	s.mu.Lock()
	defer s.mu.Unlock()
	copy(s.values[index][int(arrayIndex)*comps:], values[:int(count)*comps])
	return nil
}

func (s *uniformStore) get(index, arrayIndex uint32, dst []uint32) error {
	if index >= uint32(len(s.shapes)) {
		return ErrNoUniform
	}
	shape := &s.shapes[index]
	count, err := shape.check(arrayIndex, len(dst))
	if err != nil {
		return err
	}
	comps := shape.typ.ComponentCount()
	s.mu.Lock()
	defer s.mu.Unlock()
	copy(dst[:int(count)*comps], s.values[index][int(arrayIndex)*comps:])
	return nil
}
