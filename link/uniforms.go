package link

import (
	"fmt"
	"slices"

	"fortio.org/safecast"

	"github.com/gogpu/glesvk/shader"
)

// uniformCounts are the per-stage resources consumed by active uniforms.
type uniformCounts struct {
	vectors  int
	samplers int
	images   int
	atomics  int
}

func (c *uniformCounts) add(o uniformCounts) {
	c.vectors += o.vectors
	c.samplers += o.samplers
	c.images += o.images
	c.atomics += o.atomics
}

// uniformLists holds the flattened uniforms by class while merging.
type uniformLists struct {
	plain    []LinkedUniform
	samplers []LinkedUniform
	images   []LinkedUniform
	atomics  []LinkedUniform
}

func (ls *uniformLists) listFor(t shader.GLType) *[]LinkedUniform {
	switch {
	case t.IsSampler():
		return &ls.samplers
	case t.IsImage():
		return &ls.images
	case t.IsAtomicCounter():
		return &ls.atomics
	default:
		return &ls.plain
	}
}

// flattener turns one declared uniform into leaf uniforms and merges
// them into lists.
type flattener struct {
	stage     shader.Stage
	active    bool
	staticUse bool
	lists     *uniformLists
	counts    uniformCounts
	// nextLocation is the location of the next leaf when the declared
	// uniform has an explicit location, else -1.
	nextLocation int
}

func (f *flattener) visit(v *shader.Variable, name, mapped string, outer []uint32, outerIndex uint32) {
	switch {
	case v.IsArray() && (v.IsStruct() || v.IsArrayOfArrays()):
		n := v.OutermostArraySize()
		elem := v.Clone()
		elem.ArraySizes = elem.ArraySizes[:len(elem.ArraySizes)-1]
		nextOuter := outer
		if !v.IsStruct() {
			nextOuter = append(slices.Clone(outer), n)
		}
		for i := range n {
			e := elem.Clone()
			e.ParentArrayIndex = int(i)
			sub := fmt.Sprintf("[%d]", i)
			f.visit(&e, name+sub, mapped+sub, nextOuter, outerIndex*n+i)
		}
	case v.IsStruct():
		for i := range v.Fields {
			field := &v.Fields[i]
			f.visit(field, name+"."+field.Name, mapped+"."+field.MappedName, nil, 0)
		}
	default:
		f.leaf(v, name, mapped, outer, outerIndex)
	}
}

func (f *flattener) leaf(v *shader.Variable, name, mapped string, outer []uint32, outerIndex uint32) {
	elements := int(v.BasicTypeElementCount())
	if f.active {
		switch {
		case v.Type.IsSampler():
			f.counts.samplers += elements
		case v.Type.IsImage():
			f.counts.images += elements
		case v.Type.IsAtomicCounter():
			f.counts.atomics += elements
		default:
			f.counts.vectors += v.Type.VectorCount() * elements
		}
	}

	list := f.lists.listFor(v.Type)
	for i := range *list {
		existing := &(*list)[i]
		if existing.Name != name {
			continue
		}
		if f.active {
			existing.Stages = existing.Stages.With(f.stage)
			existing.Active = true
		}
		existing.StaticUse = existing.StaticUse || f.staticUse
		f.advanceLocation(elements)
		return
	}

	u := LinkedUniform{
		Variable:         v.Clone(),
		BufferIndex:      -1,
		BlockInfo:        DefaultBlockMemberInfo(),
		OuterArraySizes:  outer,
		OuterArrayOffset: outerIndex * v.ArraySizeProduct(),
	}
	u.Name = name
	u.MappedName = mapped
	u.Fields = nil
	u.Active = f.active
	u.StaticUse = f.staticUse
	if f.active {
		u.Stages = f.stage.Mask()
	}
	if f.nextLocation >= 0 {
		u.Location = f.nextLocation
	}
	f.advanceLocation(elements)
	*list = append(*list, u)
}

func (f *flattener) advanceLocation(elements int) {
	if f.nextLocation >= 0 {
		f.nextLocation += elements
	}
}

// linkUniforms builds the flat uniform list, assigns locations and
// carves the index ranges.
//
//nolint:gocognit,gocyclo,cyclop // follows the fixed sequence of uniform link rules
func (l *linker) linkUniforms() bool {
	if !l.validateGraphicsUniforms() {
		return false
	}
	caps := &l.in.Caps

	var lists uniformLists
	var combined uniformCounts
	for _, stage := range shader.AllStages {
		c := l.in.Shader(stage)
		if c == nil {
			continue
		}
		var counts uniformCounts
		for i := range c.Uniforms {
			u := &c.Uniforms[i]
			f := flattener{
				stage:        stage,
				active:       u.Active,
				staticUse:    u.StaticUse,
				lists:        &lists,
				nextLocation: u.Location,
			}
			f.visit(u, u.Name, u.MappedName, nil, 0)
			counts.add(f.counts)
		}
		if !l.checkUniformCounts(stage, counts) {
			return false
		}
		combined.add(counts)
	}
	if combined.atomics > caps.MaxCombinedAtomicCounters {
		l.log.Printf("atomic counter count exceeds MAX_COMBINED_ATOMIC_COUNTERS (%d).", caps.MaxCombinedAtomicCounters)
		return false
	}
	if combined.samplers > caps.MaxCombinedTextureImageUnits {
		l.log.Printf("combined sampler uniforms exceed MAX_COMBINED_TEXTURE_IMAGE_UNITS (%d).", caps.MaxCombinedTextureImageUnits)
		return false
	}

	uniforms := make([]LinkedUniform, 0, len(lists.plain)+len(lists.samplers)+len(lists.images)+len(lists.atomics))
	uniforms = append(uniforms, lists.plain...)
	uniforms = append(uniforms, lists.samplers...)
	uniforms = append(uniforms, lists.images...)
	uniforms = append(uniforms, lists.atomics...)

	locations, ok := l.indexUniforms(&uniforms)
	if !ok {
		return false
	}
	if l.res.Version >= 310 && len(locations) > caps.MaxUniformLocations {
		l.log.Printf("Exceeded maximum uniform location size")
		return false
	}
	l.res.Uniforms = uniforms
	l.res.UniformLocations = locations

	l.linkSamplerAndImageBindings()
	if l.res.Version >= 310 && l.res.CombinedImageUniforms > caps.MaxCombinedImageUniforms {
		l.log.Printf("combined image uniforms exceed MAX_COMBINED_IMAGE_UNIFORMS (%d).", caps.MaxCombinedImageUniforms)
		return false
	}
	l.linkAtomicCounterBuffers()
	return true
}

// checkUniformCounts compares one stage's usage against its limits.
func (l *linker) checkUniformCounts(stage shader.Stage, c uniformCounts) bool {
	caps := &l.in.Caps
	checks := []struct {
		n, limit int
		what     string
		name     string
	}{
		{c.vectors, caps.MaxUniformVectors[stage], "active uniforms", limitName(stage, "UNIFORM_VECTORS")},
		{c.samplers, caps.MaxTextureImageUnits[stage], "sampler uniforms", textureUnitsLimitName(stage)},
		{c.images, caps.MaxImageUniforms[stage], "image uniforms", limitName(stage, "IMAGE_UNIFORMS")},
		{c.atomics, caps.MaxAtomicCounters[stage], "atomic counter uniforms", limitName(stage, "ATOMIC_COUNTERS")},
	}
	for _, ch := range checks {
		if ch.n > ch.limit {
			l.log.Printf("%s shader %s exceed %s (%d).", stageName(stage), ch.what, ch.name, ch.limit)
			return false
		}
	}
	return true
}

func limitName(stage shader.Stage, suffix string) string {
	name := "GL_MAX_" + stageName(stage) + "_" + suffix
	if stage == shader.StageGeometry {
		name += "_EXT"
	}
	return name
}

func textureUnitsLimitName(stage shader.Stage) string {
	if stage == shader.StageFragment {
		return "GL_MAX_TEXTURE_IMAGE_UNITS"
	}
	return limitName(stage, "TEXTURE_IMAGE_UNITS")
}

// validateGraphicsUniforms checks that uniforms declared in several
// graphics stages agree.
func (l *linker) validateGraphicsUniforms() bool {
	type seen struct {
		v     *shader.Variable
		stage shader.Stage
	}
	first := make(map[string]seen)
	for _, stage := range shader.GraphicsStages {
		c := l.in.Shader(stage)
		if c == nil {
			continue
		}
		for i := range c.Uniforms {
			u := &c.Uniforms[i]
			prev, ok := first[u.Name]
			if !ok {
				first[u.Name] = seen{v: u, stage: stage}
				continue
			}
			if m, field := compareUniforms(prev.v, u); m != NoMismatch {
				logMismatch(l.log, u.Name, "uniform", m, field, prev.stage, stage)
				return false
			}
		}
	}
	return true
}

// compareUniforms checks two declarations of one uniform. Precision has
// to match only when both are statically used.
func compareUniforms(u1, u2 *shader.Variable) (Mismatch, string) {
	opts := compareOptions{precision: u1.StaticUse && u2.StaticUse}
	if m, field := compareVariables(u1, u2, opts); m != NoMismatch {
		return m, field
	}
	if u1.Binding != -1 && u2.Binding != -1 && u1.Binding != u2.Binding {
		return MismatchBinding, ""
	}
	if u1.Location != -1 && u2.Location != -1 && u1.Location != u2.Location {
		return MismatchLocation, ""
	}
	if u1.Offset != u2.Offset {
		return MismatchOffset, ""
	}
	return NoMismatch, ""
}

// locatable reports whether a uniform takes API locations.
func locatable(u *LinkedUniform) bool {
	return !u.IsBuiltIn() && !u.IsAtomicCounter()
}

// indexUniforms checks location conflicts, prunes inactive uniforms and
// builds the location table.
func (l *linker) indexUniforms(uniforms *[]LinkedUniform) ([]VariableLocation, bool) {
	bindings := &l.in.UniformLocationBindings
	reserved := make(map[int]bool)
	ignored := make(map[int]bool)
	maxLocation := -1

	for i := range *uniforms {
		u := &(*uniforms)[i]
		if u.IsBuiltIn() {
			continue
		}
		apiLocation := bindings.LookupVariable(&u.Variable)
		switch {
		case u.Location != -1:
			for e := range int(u.BasicTypeElementCount()) {
				loc := u.Location + e
				maxLocation = max(maxLocation, loc)
				if reserved[loc] {
					l.log.Printf("Multiple uniforms bound to location %d.", loc)
					return nil, false
				}
				reserved[loc] = true
				if !u.Active {
					ignored[loc] = true
				}
			}
		case apiLocation != -1 && u.StaticUse:
			// Only the first element is reserved for arrays.
			maxLocation = max(maxLocation, apiLocation)
			if reserved[apiLocation] {
				l.log.Printf("Multiple uniforms bound to location %d.", apiLocation)
				return nil, false
			}
			reserved[apiLocation] = true
			if !u.Active {
				ignored[apiLocation] = true
			}
		}
	}
	// Locations bound through the API to names no shader declares stay
	// reserved.
	for _, loc := range bindings.Locations() {
		if !reserved[loc] {
			ignored[loc] = true
			maxLocation = max(maxLocation, loc)
		}
	}

	l.pruneUnusedUniforms(uniforms)

	type located struct {
		loc int
		vl  VariableLocation
	}
	var preLocated []located
	var unlocated []VariableLocation
	for i := range *uniforms {
		u := &(*uniforms)[i]
		if !locatable(u) {
			continue
		}
		index, err := safecast.Conv[uint32](i)
		if err != nil {
			l.log.Printf("Too many uniforms.")
			return nil, false
		}
		preset := bindings.LookupVariable(&u.Variable)
		if u.Location != -1 {
			preset = u.Location
		}
		for e := range u.BasicTypeElementCount() {
			vl := VariableLocation{ArrayIndex: e, Index: index}
			if (e == 0 && preset != -1) || u.Location != -1 {
				preLocated = append(preLocated, located{loc: preset + int(e), vl: vl})
			} else {
				unlocated = append(unlocated, vl)
			}
		}
	}

	size := max(len(unlocated)+len(preLocated)+len(ignored), maxLocation+1)
	table := newLocations(size)
	for _, p := range preLocated {
		table[p.loc] = p.vl
	}
	for loc := range ignored {
		table[loc].MarkIgnored()
	}
	next := 0
	for _, vl := range unlocated {
		for table[next].Used() || table[next].Ignored {
			next++
		}
		table[next] = vl
		next++
	}
	return table, true
}

// pruneUnusedUniforms removes uniforms no stage uses and records them.
func (l *linker) pruneUnusedUniforms(uniforms *[]LinkedUniform) {
	*uniforms = slices.DeleteFunc(*uniforms, func(u LinkedUniform) bool {
		if u.Active {
			return false
		}
		l.res.UnusedUniforms = append(l.res.UnusedUniforms, UnusedUniform{
			Name:            u.Name,
			IsSampler:       u.IsSampler(),
			IsImage:         u.IsImage(),
			IsAtomicCounter: u.IsAtomicCounter(),
		})
		return true
	})
}

// linkSamplerAndImageBindings carves the index ranges from the back of
// the uniform list: atomic counters, images, samplers, then the rest.
func (l *linker) linkSamplerAndImageBindings() {
	uniforms := l.res.Uniforms
	high := uint32(len(uniforms))
	low := high
	for low > 0 && uniforms[low-1].IsAtomicCounter() {
		low--
	}
	l.res.AtomicCounterRange = Range{Low: low, High: high}

	high = low
	for low > 0 && uniforms[low-1].IsImage() {
		low--
	}
	l.res.ImageRange = Range{Low: low, High: high}
	for i := l.res.ImageRange.Low; i < l.res.ImageRange.High; i++ {
		u := &uniforms[i]
		count := int(u.BasicTypeElementCount())
		units := make([]int, count)
		if u.Binding != -1 {
			for e := range units {
				units[e] = u.Binding + int(u.OuterArrayOffset) + e
			}
		}
		l.res.ImageBindings = append(l.res.ImageBindings, ImageBinding{
			TextureType: u.Type.TextureType(),
			BoundUnits:  units,
		})
		l.res.CombinedImageUniforms += u.ActiveShaderCount() * count
	}

	high = low
	for low > 0 && uniforms[low-1].IsSampler() {
		low--
	}
	l.res.SamplerRange = Range{Low: low, High: high}
	for i := l.res.SamplerRange.Low; i < l.res.SamplerRange.High; i++ {
		u := &uniforms[i]
		l.res.SamplerBindings = append(l.res.SamplerBindings, SamplerBinding{
			TextureType: u.Type.TextureType(),
			Format:      u.Type.SamplerFormat(),
			BoundUnits:  make([]int, u.BasicTypeElementCount()),
		})
	}

	l.res.DefaultRange = Range{Low: 0, High: low}
}

// linkAtomicCounterBuffers groups atomic counters by binding.
func (l *linker) linkAtomicCounterBuffers() {
	for i := l.res.AtomicCounterRange.Low; i < l.res.AtomicCounterRange.High; i++ {
		u := &l.res.Uniforms[i]
		u.BlockInfo = BlockMemberInfo{
			Offset:              max(u.Offset, 0),
			ArrayStride:         0,
			MatrixStride:        0,
			TopLevelArrayStride: -1,
		}
		if u.IsArray() {
			u.BlockInfo.ArrayStride = 4
		}
		end, err := safecast.Conv[uint32](u.BlockInfo.Offset + 4*int(u.BasicTypeElementCount()))
		if err != nil {
			end = 0
		}

		found := false
		for b := range l.res.AtomicCounterBuffers {
			buf := &l.res.AtomicCounterBuffers[b]
			if buf.Binding == u.Binding {
				buf.MemberIndexes = append(buf.MemberIndexes, i)
				buf.Stages |= u.Stages
				buf.DataSize = max(buf.DataSize, end)
				u.BufferIndex = b
				found = true
				break
			}
		}
		if !found {
			l.res.AtomicCounterBuffers = append(l.res.AtomicCounterBuffers, AtomicCounterBuffer{
				Binding:       u.Binding,
				DataSize:      end,
				MemberIndexes: []uint32{i},
				Stages:        u.Stages,
			})
			u.BufferIndex = len(l.res.AtomicCounterBuffers) - 1
		}
	}
}

// ApplySamplerBindingQualifiers sets the initial texture units of
// samplers declared with a binding qualifier: binding+i for element i.
func (r *Resources) ApplySamplerBindingQualifiers() {
	for i := r.SamplerRange.Low; i < r.SamplerRange.High; i++ {
		u := &r.Uniforms[i]
		if u.Binding == -1 {
			continue
		}
		b := &r.SamplerBindings[r.SamplerIndex(i)]
		for e := range b.BoundUnits {
			b.BoundUnits[e] = u.Binding + int(u.OuterArrayOffset) + e
		}
	}
}
