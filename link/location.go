package link

import (
	"fmt"

	"github.com/gogpu/glesvk/shader"
)

// Unused marks a VariableLocation that refers to no resource.
const Unused = ^uint32(0)

// VariableLocation maps one API location to an element of a resource.
type VariableLocation struct {
	ArrayIndex uint32
	// Index is the resource index, or Unused.
	Index uint32
	// Ignored locations are reserved for a resource that is not active;
	// writes to them are dropped silently.
	Ignored bool
}

// UnusedLocation returns an empty location slot.
func UnusedLocation() VariableLocation {
	return VariableLocation{Index: Unused}
}

// Used reports whether the slot refers to a resource.
func (l VariableLocation) Used() bool {
	return l.Index != Unused
}

// MarkIgnored flags the slot as ignored.
func (l *VariableLocation) MarkIgnored() {
	l.Ignored = true
}

// newLocations returns n unused slots.
func newLocations(n int) []VariableLocation {
	out := make([]VariableLocation, n)
	for i := range out {
		out[i] = UnusedLocation()
	}
	return out
}

// growLocations extends list with unused slots up to length n.
func growLocations(list []VariableLocation, n int) []VariableLocation {
	for len(list) < n {
		list = append(list, UnusedLocation())
	}
	return list
}

// Range is a half-open index range [Low, High).
type Range struct {
	Low  uint32
	High uint32
}

// Len returns the number of indices in the range.
func (r Range) Len() uint32 {
	return r.High - r.Low
}

// Contains reports whether i lies in the range.
func (r Range) Contains(i uint32) bool {
	return i >= r.Low && i < r.High
}

// Empty reports whether the range holds no indices.
func (r Range) Empty() bool {
	return r.High <= r.Low
}

// String formats the range as "[low, high)".
func (r Range) String() string {
	return fmt.Sprintf("[%d, %d)", r.Low, r.High)
}

// LocationMask is a set of locations below 64.
type LocationMask uint64

// Set adds location l.
func (m *LocationMask) Set(l int) {
	*m |= 1 << uint(l)
}

// Has reports whether location l is in the set.
func (m LocationMask) Has(l int) bool {
	return l >= 0 && l < 64 && m&(1<<uint(l)) != 0
}

// Count returns the number of locations in the set.
func (m LocationMask) Count() int {
	n := 0
	for v := m; v != 0; v &= v - 1 {
		n++
	}
	return n
}

// ComponentTypeMask stores a shader.ComponentType per location in two
// bits, for up to 32 locations.
type ComponentTypeMask uint64

// Set records component type c at location l.
func (m *ComponentTypeMask) Set(l int, c shader.ComponentType) {
	if l < 0 || l >= 32 {
		return
	}
	shift := uint(2 * l)
	*m = (*m &^ (3 << shift)) | ComponentTypeMask(c&3)<<shift
}

// Get returns the component type at location l.
func (m ComponentTypeMask) Get(l int) shader.ComponentType {
	if l < 0 || l >= 32 {
		return shader.ComponentNone
	}
	return shader.ComponentType((m >> uint(2*l)) & 3)
}

// firstFreeRun finds the lowest run of n clear bits below limit in used,
// sets them and returns the first index, or -1 when no run fits.
func firstFreeRun(used *LocationMask, n, limit int) int {
	if n <= 0 {
		return -1
	}
	for start := 0; start+n <= limit; start++ {
		fits := true
		for i := start; i < start+n; i++ {
			if used.Has(i) {
				fits = false
				start = i
				break
			}
		}
		if fits {
			for i := start; i < start+n; i++ {
				used.Set(i)
			}
			return start
		}
	}
	return -1
}
