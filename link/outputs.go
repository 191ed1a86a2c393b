package link

import (
	"slices"

	"github.com/gogpu/glesvk/shader"
)

// outputLocationForLink returns the fixed location of an output: the
// layout qualifier, else the API binding, else -1.
func (l *linker) outputLocationForLink(v *shader.Variable) int {
	if v.Location != -1 {
		return v.Location
	}
	return l.in.FragmentOutputLocations.LookupVariable(v)
}

// isSecondaryOutput reports whether v writes the second blend source.
// The layout qualifier takes precedence over the API binding.
func (l *linker) isSecondaryOutput(v *shader.Variable) bool {
	if v.Index != -1 {
		return v.Index == 1
	}
	return l.in.FragmentOutputIndexes.LookupVariable(v) == 1
}

// usedOutputLocation reports whether any of count locations from base is
// taken by something other than a reserved element of output index.
func usedOutputLocation(table []VariableLocation, base, count int, reserved []VariableLocation, index uint32) bool {
	if base+count > len(table) {
		count = max(len(table)-base, 0)
	}
	for e := range count {
		if !table[base+e].Used() {
			continue
		}
		info := VariableLocation{ArrayIndex: uint32(e), Index: index}
		if !slices.Contains(reserved, info) {
			return true
		}
	}
	return false
}

// assignOutputLocations places count elements of output index at base,
// skipping reserved elements.
func assignOutputLocations(table *[]VariableLocation, base, count int, reserved []VariableLocation, index uint32, v *shader.Variable) {
	*table = growLocations(*table, base+count)
	for e := range count {
		info := VariableLocation{ArrayIndex: uint32(e), Index: index}
		if !slices.Contains(reserved, info) {
			v.Location = base
			(*table)[base+e] = info
		}
	}
}

// linkOutputs records fragment output types and assigns output
// locations: API bindings of non-zero array elements first, then fixed
// locations, then the rest by linear probing from 0.
//
//nolint:gocognit,gocyclo,cyclop // fixed sequence of output placement rules
func (l *linker) linkOutputs() bool {
	fs := l.in.Shader(shader.StageFragment)
	if fs == nil {
		return true
	}
	outputs := fs.ActiveOutputs()

	for i := range outputs {
		v := &outputs[i]
		if v.IsBuiltIn() && v.Name != "gl_FragColor" && v.Name != "gl_FragData" {
			continue
		}
		base := max(v.Location, 0)
		for e := range int(v.BasicTypeElementCount()) {
			loc := base + e
			for len(l.res.OutputVariableTypes) <= loc {
				l.res.OutputVariableTypes = append(l.res.OutputVariableTypes, shader.TypeNone)
			}
			l.res.ActiveOutputs.Set(loc)
			l.res.OutputVariableTypes[loc] = v.Type
			l.res.DrawBufferTypeMask.Set(loc, v.Type.Component())
		}
		if v.YUV {
			l.res.YUVOutput = true
		}
	}

	caps := &l.in.Caps
	if l.res.Version >= 310 {
		total := l.res.CombinedImageUniforms + l.combinedStorageBlocks + l.res.ActiveOutputs.Count()
		if total > caps.MaxCombinedShaderOutputResources {
			l.log.Printf("The sum of the number of active image uniforms, active shader storage blocks and active fragment shader outputs exceeds MAX_COMBINED_SHADER_OUTPUT_RESOURCES (%d)",
				caps.MaxCombinedShaderOutputResources)
			return false
		}
	}

	// GLSL ES 1.00 outputs are the built-ins only.
	if fs.Version == 100 {
		return true
	}

	l.res.Outputs = make([]shader.Variable, len(outputs))
	for i := range outputs {
		l.res.Outputs[i] = outputs[i].Clone()
	}
	outs := l.res.Outputs
	var reserved []VariableLocation

	tableFor := func(secondary bool) *[]VariableLocation {
		if secondary {
			return &l.res.SecondaryOutputLocations
		}
		return &l.res.OutputLocations
	}

	for _, name := range l.in.FragmentOutputLocations.Names() {
		base, arrayIndex := shader.StripArrayIndex(name)
		if arrayIndex <= 0 {
			continue
		}
		for i := range outs {
			v := &outs[i]
			if v.IsBuiltIn() || !v.IsArray() || v.Name != base || uint32(arrayIndex) >= v.OutermostArraySize() {
				continue
			}
			table := tableFor(l.in.FragmentOutputIndexes.Lookup(name) == 1)
			loc := l.in.FragmentOutputLocations.Lookup(name)
			info := VariableLocation{ArrayIndex: uint32(arrayIndex), Index: uint32(i)}
			*table = growLocations(*table, loc+1)
			if (*table)[loc].Used() {
				l.log.Printf("Location of variable %s conflicts with another variable.", v.Name)
				return false
			}
			(*table)[loc] = info
			reserved = append(reserved, info)
		}
	}

	for i := range outs {
		v := &outs[i]
		if v.IsBuiltIn() {
			continue
		}
		fixed := l.outputLocationForLink(v)
		if fixed == -1 {
			continue
		}
		table := tableFor(l.isSecondaryOutput(v))
		count := int(v.BasicTypeElementCount())
		if usedOutputLocation(*table, fixed, count, reserved, uint32(i)) {
			l.log.Printf("Location of variable %s conflicts with another variable.", v.Name)
			return false
		}
		assignOutputLocations(table, fixed, count, reserved, uint32(i), v)
	}

	maxLocation := caps.MaxDrawBuffers
	if len(l.res.SecondaryOutputLocations) > 0 {
		maxLocation = caps.MaxDualSourceDrawBuffers
	}

	for i := range outs {
		v := &outs[i]
		if v.IsBuiltIn() {
			continue
		}
		fixed := l.outputLocationForLink(v)
		table := tableFor(l.isSecondaryOutput(v))
		count := int(v.BasicTypeElementCount())
		base := 0
		if fixed != -1 {
			base = fixed
		} else {
			for usedOutputLocation(*table, base, count, reserved, uint32(i)) {
				base++
			}
			assignOutputLocations(table, base, count, reserved, uint32(i), v)
		}

		if base+count > maxLocation &&
			(base >= maxLocation || usedOutputLocation(*table, maxLocation, base+count-maxLocation, reserved, uint32(i))) {
			l.log.Printf("Could not fit output variable into available locations: %s", v.Name)
			return false
		}
	}
	return true
}
