package link

import (
	"github.com/gogpu/glesvk/shader"
)

// linkVaryings matches the outputs of every graphics stage with the
// inputs of the next attached stage, records the pairs and packs them.
func (l *linker) linkVaryings() bool {
	var chain []*shader.Compiled
	for _, s := range shader.GraphicsStages {
		if c := l.in.Shader(s); c != nil {
			chain = append(chain, c)
		}
	}
	for i := 0; i+1 < len(chain); i++ {
		front, back := chain[i], chain[i+1]
		if !l.matchInterface(front, back) {
			return false
		}
		l.recordVaryings(front, back)
	}

	vs := l.in.Shader(shader.StageVertex)
	fs := l.in.Shader(shader.StageFragment)
	if vs != nil && fs != nil && !l.validateBuiltInVaryings(vs, fs) {
		return false
	}
	return l.packVaryings()
}

// userVaryings drops built-ins from a varying list.
func userVaryings(list []shader.Variable) []*shader.Variable {
	out := make([]*shader.Variable, 0, len(list))
	for i := range list {
		if !list[i].IsBuiltIn() {
			out = append(out, &list[i])
		}
	}
	return out
}

// matchInterface checks that every input of back has a structurally
// identical output in front. Unmatched inputs are tolerated unless
// statically used.
func (l *linker) matchInterface(front, back *shader.Compiled) bool {
	inputs := userVaryings(back.InputVaryings)
	outputs := userVaryings(front.OutputVaryings)

	if l.in.Separable {
		if len(inputs) < len(outputs) {
			l.log.Printf("%s does not consume all varyings generated by %s",
				stageName(back.Stage), stageName(front.Stage))
			return false
		}
		if len(inputs) > len(outputs) {
			l.log.Printf("%s does not generate all varyings consumed by %s",
				stageName(front.Stage), stageName(back.Stage))
			return false
		}
	}

	for _, in := range inputs {
		matched := false
		for _, out := range outputs {
			ok, found := l.matchVarying(front, back, out, in)
			if !ok {
				return false
			}
			if found {
				matched = true
				break
			}
		}
		if !matched && in.StaticUse {
			l.log.Printf("%s varying %s does not match any %s varying",
				stageName(back.Stage), in.Name, stageName(front.Stage))
			return false
		}
	}
	return true
}

// matchVarying reports found when out and in denote the same varying,
// by name or by a shared explicit location, and ok=false when they do
// but disagree.
func (l *linker) matchVarying(front, back *shader.Compiled, out, in *shader.Variable) (ok, found bool) {
	namesMatch := in.Name == out.Name
	locationsMatch := in.Location != -1 && in.Location == out.Location
	if !namesMatch && !locationsMatch {
		return true, false
	}
	m, field := compareVaryings(out, in, front.Version, back.Stage == shader.StageGeometry)
	if m != NoMismatch {
		logMismatch(l.log, in.Name, "varying", m, field, front.Stage, back.Stage)
		return false, true
	}
	return true, true
}

// compareVaryings checks an output/input pair. Precision never has to
// match; invariance only for GLSL ES 1.00.
func compareVaryings(out, in *shader.Variable, version int, geometryInput bool) (Mismatch, string) {
	opts := compareOptions{ignoreOuterArray2: geometryInput && in.IsArray()}
	if m, field := compareVariables(out, in, opts); m != NoMismatch {
		return m, field
	}
	if baseInterpolation(out.Interpolation) != baseInterpolation(in.Interpolation) {
		return MismatchInterpolation, ""
	}
	if version == 100 && out.Invariant != in.Invariant {
		return MismatchInvariance, ""
	}
	return NoMismatch, ""
}

// baseInterpolation folds the auxiliary centroid and sample qualifiers
// into smooth.
func baseInterpolation(i shader.Interpolation) shader.Interpolation {
	if i == shader.InterpolationCentroid || i == shader.InterpolationSample {
		return shader.InterpolationSmooth
	}
	return i
}

// recordVaryings appends the varying pairs of front and back, outputs
// first, then inputs without a producer.
func (l *linker) recordVaryings(front, back *shader.Compiled) {
	inputs := userVaryings(back.InputVaryings)
	matchedInputs := make(map[*shader.Variable]bool, len(inputs))

	for _, out := range userVaryings(front.OutputVaryings) {
		ref := VaryingRef{Name: out.Name, FrontStage: front.Stage, BackStage: back.Stage}
		c := out.Clone()
		ref.Front = &c
		for _, in := range inputs {
			if in.Name == out.Name || (in.Location != -1 && in.Location == out.Location) {
				b := in.Clone()
				ref.Back = &b
				matchedInputs[in] = true
				break
			}
		}
		l.res.Varyings = append(l.res.Varyings, ref)
	}
	for _, in := range inputs {
		if matchedInputs[in] {
			continue
		}
		b := in.Clone()
		l.res.Varyings = append(l.res.Varyings, VaryingRef{
			Name: in.Name, Back: &b, FrontStage: front.Stage, BackStage: back.Stage,
		})
	}
}

// validateBuiltInVaryings applies the GLSL ES 1.00 rule that
// gl_FragCoord and gl_PointCoord may only be invariant when gl_Position
// and gl_PointSize are.
func (l *linker) validateBuiltInVaryings(vs, fs *shader.Compiled) bool {
	if vs.Version != 100 {
		return true
	}
	invariant := func(list []shader.Variable, name string) bool {
		v, ok := shader.FindVarying(list, name)
		return ok && v.Invariant
	}
	if invariant(fs.InputVaryings, "gl_FragCoord") && !invariant(vs.OutputVaryings, "gl_Position") {
		l.log.Printf("gl_FragCoord can only be declared invariant if and only if gl_Position is declared invariant.")
		return false
	}
	if invariant(fs.InputVaryings, "gl_PointCoord") && !invariant(vs.OutputVaryings, "gl_PointSize") {
		l.log.Printf("gl_PointCoord can only be declared invariant if and only if gl_PointSize is declared invariant.")
		return false
	}
	return true
}
