package spirv

import (
	"errors"
	"fmt"
	"math/bits"
)

var (
	// ErrUnaligned is returned for byte streams whose length is not a
	// multiple of four.
	ErrUnaligned = errors.New("spirv: binary length is not a multiple of 4")

	// ErrBadMagic is returned when the first word is not the SPIR-V
	// magic number in either byte order.
	ErrBadMagic = errors.New("spirv: bad magic number")
)

// ParseError reports a malformed instruction.
type ParseError struct {
	Offset  int // word offset of the instruction
	Message string
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("spirv: word %d: %s", e.Offset, e.Message)
}

// Header is the five-word module header.
type Header struct {
	Version   Version
	Generator uint32
	Bound     uint32
	Schema    uint32
}

// ParsedInstruction is one instruction of a parsed module. Words holds
// the operands and aliases the module's word slice.
type ParsedInstruction struct {
	Instruction
	// Offset is the word offset of the opcode word in the module.
	Offset int
}

// Module is a parsed SPIR-V binary.
type Module struct {
	Header       Header
	Instructions []ParsedInstruction
}

// Parse validates the header of words and splits the rest into
// instructions. Byte-swapped input is converted to native order first;
// otherwise the instructions alias words.
func Parse(words []uint32) (*Module, error) {
	if len(words) < HeaderWords {
		return nil, &ParseError{Offset: 0, Message: "truncated header"}
	}
	switch words[0] {
	case MagicNumber:
	case bits.ReverseBytes32(MagicNumber):
		swapped := make([]uint32, len(words))
		for i, w := range words {
			swapped[i] = bits.ReverseBytes32(w)
		}
		words = swapped
	default:
		return nil, ErrBadMagic
	}

	m := &Module{Header: Header{
		Version:   wordToVersion(words[1]),
		Generator: words[2],
		Bound:     words[3],
		Schema:    words[4],
	}}
	for off := HeaderWords; off < len(words); {
		count := int(words[off] >> 16)
		if count == 0 {
			return nil, &ParseError{Offset: off, Message: "zero word count"}
		}
		if off+count > len(words) {
			return nil, &ParseError{Offset: off, Message: fmt.Sprintf("instruction of %d words overruns the module", count)}
		}
		m.Instructions = append(m.Instructions, ParsedInstruction{
			Instruction: Instruction{Opcode: OpCode(words[off] & 0xffff), Words: words[off+1 : off+count]},
			Offset:      off,
		})
		off += count
	}
	return m, nil
}

// ParseBytes is Parse for a little-endian byte stream.
func ParseBytes(data []byte) (*Module, error) {
	words, err := BytesToWords(data)
	if err != nil {
		return nil, err
	}
	return Parse(words)
}

// Names returns the OpName debug names by id.
func (m *Module) Names() map[uint32]string {
	names := make(map[uint32]string)
	for _, inst := range m.Instructions {
		if inst.Opcode != OpName || len(inst.Words) < 2 {
			continue
		}
		if s, _, ok := DecodeString(inst.Words[1:]); ok {
			names[inst.Words[0]] = s
		}
	}
	return names
}

// Decorations returns the single-operand decorations of id, keyed by
// decoration.
func (m *Module) Decorations(id uint32) map[Decoration]uint32 {
	out := make(map[Decoration]uint32)
	for _, inst := range m.Instructions {
		if inst.Opcode != OpDecorate || len(inst.Words) < 2 || inst.Words[0] != id {
			continue
		}
		var value uint32
		if len(inst.Words) > 2 {
			value = inst.Words[2]
		}
		out[Decoration(inst.Words[1])] = value
	}
	return out
}

// Variables returns the ids of the global OpVariable instructions with
// their storage class.
func (m *Module) Variables() map[uint32]StorageClass {
	vars := make(map[uint32]StorageClass)
	inFunction := false
	for _, inst := range m.Instructions {
		switch inst.Opcode {
		case OpFunction:
			inFunction = true
		case OpFunctionEnd:
			inFunction = false
		case OpVariable:
			if !inFunction && len(inst.Words) >= 3 {
				vars[inst.Words[1]] = StorageClass(inst.Words[2])
			}
		}
	}
	return vars
}

// VariableNames returns the name of every global variable. A variable
// without an OpName of its own, such as an instanceless block, takes the
// name of its pointee type with any array layers removed.
func (m *Module) VariableNames() map[uint32]string {
	names := m.Names()
	pointee := make(map[uint32]uint32)
	element := make(map[uint32]uint32)
	varType := make(map[uint32]uint32)
	vars := m.Variables()
	for _, inst := range m.Instructions {
		switch {
		case inst.Opcode == OpTypePointer && len(inst.Words) >= 3:
			pointee[inst.Words[0]] = inst.Words[2]
		case (inst.Opcode == OpTypeArray || inst.Opcode == OpTypeRuntimeArray) && len(inst.Words) >= 2:
			element[inst.Words[0]] = inst.Words[1]
		case inst.Opcode == OpVariable && len(inst.Words) >= 2:
			if _, global := vars[inst.Words[1]]; global {
				varType[inst.Words[1]] = inst.Words[0]
			}
		}
	}

	out := make(map[uint32]string, len(vars))
	for id := range vars {
		if name := names[id]; name != "" {
			out[id] = name
			continue
		}
		t := pointee[varType[id]]
		for {
			e, ok := element[t]
			if !ok {
				break
			}
			t = e
		}
		if name := names[t]; name != "" {
			out[id] = name
		}
	}
	return out
}
