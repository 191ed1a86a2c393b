package link

import (
	"maps"
	"slices"

	"github.com/gogpu/glesvk/shader"
)

// Bindings maps resource names to API-assigned locations, as set by
// BindAttribLocation. The zero value is ready to use.
type Bindings struct {
	m map[string]int
}

// Bind assigns location to name, replacing any previous binding.
func (b *Bindings) Bind(name string, location int) {
	if b.m == nil {
		b.m = make(map[string]int)
	}
	b.m[name] = location
}

// Lookup returns the location bound to name, or -1.
func (b *Bindings) Lookup(name string) int {
	if loc, ok := b.m[name]; ok {
		return loc
	}
	return -1
}

// Len returns the number of bindings.
func (b *Bindings) Len() int {
	return len(b.m)
}

// Names returns the bound names in sorted order.
func (b *Bindings) Names() []string {
	return slices.Sorted(maps.Keys(b.m))
}

// Clone returns an independent copy.
func (b *Bindings) Clone() Bindings {
	return Bindings{m: maps.Clone(b.m)}
}

type aliasedBinding struct {
	location int
	// aliased is set when "name[0]" was bound after "name", so the
	// subscripted form wins.
	aliased bool
}

// AliasedBindings maps names to locations where "name" and "name[0]"
// denote the same array resource. The most recent of the two binding
// calls wins. Used for uniform locations and fragment output locations
// and indexes.
type AliasedBindings struct {
	m map[string]aliasedBinding
}

// Bind assigns location to name.
func (b *AliasedBindings) Bind(name string, location int) {
	if b.m == nil {
		b.m = make(map[string]aliasedBinding)
	}
	b.m[name] = aliasedBinding{location: location}

	base, index := shader.StripArrayIndex(name)
	if index == 0 {
		if prev, ok := b.m[base]; ok {
			prev.aliased = true
			b.m[base] = prev
		}
	}
}

// Lookup returns the location bound to exactly name, or -1.
func (b *AliasedBindings) Lookup(name string) int {
	if e, ok := b.m[name]; ok {
		return e.location
	}
	return -1
}

// LookupVariable returns the location bound to v, resolving the
// "name" / "name[0]" aliasing for arrays.
func (b *AliasedBindings) LookupVariable(v *shader.Variable) int {
	if v.IsArray() {
		base, index := shader.StripArrayIndex(v.Name)
		switch {
		case index == 0:
			if e, ok := b.m[base]; ok && !e.aliased {
				return e.location
			}
		case index < 0:
			if e, ok := b.m[v.Name]; ok && !e.aliased {
				return e.location
			}
			return b.Lookup(v.Name + "[0]")
		}
	}
	return b.Lookup(v.Name)
}

// Len returns the number of bindings.
func (b *AliasedBindings) Len() int {
	return len(b.m)
}

// Names returns the bound names in sorted order.
func (b *AliasedBindings) Names() []string {
	return slices.Sorted(maps.Keys(b.m))
}

// Locations returns the distinct bound locations in ascending order.
func (b *AliasedBindings) Locations() []int {
	out := make([]int, 0, len(b.m))
	for _, e := range b.m {
		out = append(out, e.location)
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// Clone returns an independent copy.
func (b *AliasedBindings) Clone() AliasedBindings {
	return AliasedBindings{m: maps.Clone(b.m)}
}
