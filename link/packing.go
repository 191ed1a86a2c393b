package link

import (
	"cmp"
	"slices"

	"github.com/gogpu/glesvk/shader"
)

// packKind is what every used cell of one grid row must share. Vulkan
// requires the components of one location to agree on basic type and
// interpolation.
type packKind struct {
	component     shader.ComponentType
	interpolation shader.Interpolation
}

// registerGrid is the varying space of one stage boundary: rows are
// locations, columns are vec4 components.
type registerGrid struct {
	used  [][4]bool
	kinds []packKind
	taken []bool
}

func newRegisterGrid(rows int) *registerGrid {
	return &registerGrid{
		used:  make([][4]bool, rows),
		kinds: make([]packKind, rows),
		taken: make([]bool, rows),
	}
}

func (g *registerGrid) fits(row, col, rows, cols int, k packKind) bool {
	if row < 0 || row+rows > len(g.used) || col+cols > 4 {
		return false
	}
	for r := row; r < row+rows; r++ {
		if g.taken[r] && g.kinds[r] != k {
			return false
		}
		for c := col; c < col+cols; c++ {
			if g.used[r][c] {
				return false
			}
		}
	}
	return true
}

func (g *registerGrid) insert(row, col, rows, cols int, k packKind) {
	for r := row; r < row+rows; r++ {
		g.taken[r] = true
		g.kinds[r] = k
		for c := col; c < col+cols; c++ {
			g.used[r][c] = true
		}
	}
}

// grow appends rows free rows.
func (g *registerGrid) grow(rows int) {
	for range rows {
		g.used = append(g.used, [4]bool{})
		g.kinds = append(g.kinds, packKind{})
		g.taken = append(g.taken, false)
	}
}

func (g *registerGrid) freeCells(col int) int {
	n := 0
	for r := range g.used {
		if !g.used[r][col] {
			n++
		}
	}
	return n
}

// firstFit returns the topmost row where a rows x cols block fits at col.
func (g *registerGrid) firstFit(col, rows, cols int, k packKind) (int, bool) {
	for r := 0; r+rows <= len(g.used); r++ {
		if g.fits(r, col, rows, cols, k) {
			return r, true
		}
	}
	return 0, false
}

// place finds a slot for a rows x cols block following the GLSL ES
// packing rules: three and four column blocks go top down from column
// 0, two column blocks top down in columns 0-1 and then bottom up in
// columns 2-3, single columns into the fullest column that still fits.
func (g *registerGrid) place(rows, cols int, k packKind) (row, col int, ok bool) {
	switch {
	case cols >= 3:
		row, ok = g.firstFit(0, rows, cols, k)
		return row, 0, ok
	case cols == 2:
		if row, ok = g.firstFit(0, rows, cols, k); ok {
			return row, 0, true
		}
		for r := len(g.used) - rows; r >= 0; r-- {
			if g.fits(r, 2, rows, cols, k) {
				return r, 2, true
			}
		}
		return 0, 0, false
	}
	best, bestFree := -1, 0
	for c := range 4 {
		free := g.freeCells(c)
		if free < rows || (best >= 0 && free >= bestFree) {
			continue
		}
		if r, fit := g.firstFit(c, rows, 1, k); fit {
			best, bestFree, row = c, free, r
		}
	}
	return row, best, best >= 0
}

// packItem is one varying waiting for a slot.
type packItem struct {
	ref      *VaryingRef
	rows     int
	cols     int
	kind     packKind
	order    int
	required bool
}

// packShape returns the grid footprint of v. perVertex strips the
// outermost array of geometry shader inputs.
func packShape(v *shader.Variable, perVertex bool) (rows, cols int) {
	sizes := v.ArraySizes
	if perVertex && len(sizes) > 0 {
		sizes = sizes[:len(sizes)-1]
	}
	if v.IsStruct() {
		rows, cols = 0, 4
		for i := range v.Fields {
			r, _ := packShape(&v.Fields[i], false)
			rows += r
		}
	} else {
		rows, cols = v.Type.ColumnCount(), v.Type.RowCount()
	}
	for _, s := range sizes {
		rows *= int(s)
	}
	return rows, cols
}

// packVaryings assigns every recorded varying a location and component
// in the grid of its stage boundary. Matched varyings, every varying of
// a separable program and captured outputs must fit in
// MaxVaryingVectors rows; other unmatched varyings take free cells or
// rows past the grid.
func (l *linker) packVaryings() bool {
	captured := make(map[string]bool, len(l.in.TransformFeedbackVaryings))
	for _, name := range l.in.TransformFeedbackVaryings {
		base, _ := shader.StripArrayIndex(name)
		captured[base] = true
	}

	type boundary struct{ front, back shader.Stage }
	groups := make(map[boundary][]packItem)
	var order []boundary
	for i := range l.res.Varyings {
		ref := &l.res.Varyings[i]
		v, perVertex := ref.Front, false
		if v == nil {
			v, perVertex = ref.Back, ref.BackStage == shader.StageGeometry
		}
		if v == nil {
			continue
		}
		item := packItem{
			ref:   ref,
			order: i,
			kind:  packKind{component: v.Type.Component(), interpolation: baseInterpolation(v.Interpolation)},
			required: (ref.Front != nil && ref.Back != nil) || l.in.Separable ||
				(ref.Front != nil && captured[ref.Front.Name]),
		}
		item.rows, item.cols = packShape(v, perVertex)
		b := boundary{ref.FrontStage, ref.BackStage}
		if _, ok := groups[b]; !ok {
			order = append(order, b)
		}
		groups[b] = append(groups[b], item)
	}

	for _, b := range order {
		items := groups[b]
		slices.SortStableFunc(items, func(x, y packItem) int {
			if x.required != y.required {
				if x.required {
					return -1
				}
				return 1
			}
			return cmp.Or(cmp.Compare(y.cols, x.cols), cmp.Compare(y.rows, x.rows), cmp.Compare(x.order, y.order))
		})
		grid := newRegisterGrid(max(l.in.Caps.MaxVaryingVectors, 0))
		for _, it := range items {
			row, col, ok := grid.place(it.rows, it.cols, it.kind)
			if !ok && it.required {
				l.log.Printf("Could not pack varying %s", it.ref.Name)
				return false
			}
			if !ok {
				row, col = len(grid.used), 0
				grid.grow(it.rows)
			}
			grid.insert(row, col, it.rows, it.cols, it.kind)
			it.ref.Location, it.ref.Component = row, col
		}
	}
	return true
}
