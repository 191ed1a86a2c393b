package spirv

import (
	"fmt"
	"slices"
)

// Decorations are the interface decorations to write for one variable.
// A negative field leaves that decoration as the compiler emitted it.
type Decorations struct {
	Location      int
	Component     int
	Binding       int
	DescriptorSet int
	// Removed drops every interface decoration of the variable, for
	// variables the linker eliminated as inactive.
	Removed bool
}

// Keep returns Decorations that change nothing.
func Keep() Decorations {
	return Decorations{Location: -1, Component: -1, Binding: -1, DescriptorSet: -1}
}

// Locate returns Decorations setting only the location.
func Locate(location int) Decorations {
	d := Keep()
	d.Location = location
	return d
}

// Bind returns Decorations setting the descriptor set and binding.
func Bind(set, binding int) Decorations {
	d := Keep()
	d.DescriptorSet = set
	d.Binding = binding
	return d
}

// interfaceDecorations are the decorations Transform owns, in the order
// new ones are emitted.
var interfaceDecorations = []Decoration{
	DecorationLocation, DecorationComponent, DecorationBinding, DecorationDescriptorSet,
}

func (d *Decorations) value(dec Decoration) int {
	switch dec {
	case DecorationLocation:
		return d.Location
	case DecorationComponent:
		return d.Component
	case DecorationBinding:
		return d.Binding
	case DecorationDescriptorSet:
		return d.DescriptorSet
	}
	return -1
}

// TransformOptions configures Transform.
type TransformOptions struct {
	// StripDebugInfo drops OpSource, OpString, OpName, OpMemberName and
	// OpModuleProcessed after the names were used for matching.
	StripDebugInfo bool
	// RequireAll fails when a name in the map has no global variable.
	RequireAll bool
}

func isDebugOp(op OpCode) bool {
	switch op {
	case OpSource, OpString, OpName, OpMemberName, OpModuleProcessed:
		return true
	}
	return false
}

func isPreambleOp(op OpCode) bool {
	switch op {
	case OpCapability, OpExtension, OpExtInstImport, OpMemoryModel, OpEntryPoint,
		OpExecutionMode, OpNop:
		return true
	case OpDecorate, OpMemberDecorate, OpDecorationGroup, OpGroupDecorate, OpDecorateString:
		return true
	}
	return isDebugOp(op)
}

// Transform rewrites the interface decorations of the global variables
// named in names, matched through Module.VariableNames. Decorations not
// owned by Transform and all other instructions are copied unchanged;
// new decorations go at the end of the annotation section.
func Transform(words []uint32, names map[string]Decorations, opts TransformOptions) ([]uint32, error) {
	m, err := Parse(words)
	if err != nil {
		return nil, err
	}

	targets := make(map[uint32]Decorations)
	matched := make(map[string]bool, len(names))
	for id, name := range m.VariableNames() {
		d, ok := names[name]
		if !ok {
			continue
		}
		targets[id] = d
		matched[name] = true
	}
	if opts.RequireAll {
		for _, name := range sortedKeys(names) {
			if !matched[name] {
				return nil, fmt.Errorf("spirv: no global variable named %q", name)
			}
		}
	}

	// Where new decorations go: after the last annotation, or before
	// the first type when the module has none.
	insertAt := len(m.Instructions)
	for i, inst := range m.Instructions {
		if !isPreambleOp(inst.Opcode) {
			insertAt = i
			break
		}
	}

	written := make(map[uint32]map[Decoration]bool, len(targets))
	out := make([]uint32, 0, len(words)+4*len(targets))
	out = append(out, MagicNumber, versionToWord(m.Header.Version), m.Header.Generator, m.Header.Bound, m.Header.Schema)

	for i, inst := range m.Instructions {
		if i == insertAt {
			out = appendMissing(out, targets, written)
		}
		if opts.StripDebugInfo && isDebugOp(inst.Opcode) {
			continue
		}
		if inst.Opcode != OpDecorate || len(inst.Words) < 2 {
			out = inst.AppendTo(out)
			continue
		}
		id, dec := inst.Words[0], Decoration(inst.Words[1])
		d, ok := targets[id]
		if !ok || !slices.Contains(interfaceDecorations, dec) {
			out = inst.AppendTo(out)
			continue
		}
		if d.Removed {
			continue
		}
		v := d.value(dec)
		if v < 0 {
			out = inst.AppendTo(out)
			continue
		}
		if written[id] == nil {
			written[id] = make(map[Decoration]bool)
		}
		if written[id][dec] {
			continue
		}
		written[id][dec] = true
		out = Instruction{Opcode: OpDecorate, Words: []uint32{id, uint32(dec), uint32(v)}}.AppendTo(out)
	}
	if insertAt == len(m.Instructions) {
		out = appendMissing(out, targets, written)
	}
	return out, nil
}

// appendMissing emits the requested decorations that the module did not
// already carry, ordered by id.
func appendMissing(out []uint32, targets map[uint32]Decorations, written map[uint32]map[Decoration]bool) []uint32 {
	ids := make([]uint32, 0, len(targets))
	for id := range targets {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		d := targets[id]
		if d.Removed {
			continue
		}
		for _, dec := range interfaceDecorations {
			v := d.value(dec)
			if v < 0 || written[id][dec] {
				continue
			}
			if written[id] == nil {
				written[id] = make(map[Decoration]bool)
			}
			written[id][dec] = true
			out = Instruction{Opcode: OpDecorate, Words: []uint32{id, uint32(dec), uint32(v)}}.AppendTo(out)
		}
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
