package spirv

import (
	"encoding/binary"
	"math"
)

// Instruction represents a SPIR-V instruction.
type Instruction struct {
	Opcode OpCode
	Words  []uint32 // result type ID, result ID, operands
}

// InstructionBuilder builds SPIR-V instructions.
type InstructionBuilder struct {
	words []uint32
}

// NewInstructionBuilder creates a new instruction builder.
func NewInstructionBuilder() *InstructionBuilder {
	return &InstructionBuilder{
		words: make([]uint32, 0, 8),
	}
}

// AddWord adds a word to the instruction.
func (b *InstructionBuilder) AddWord(word uint32) {
	b.words = append(b.words, word)
}

// AddWords adds several words to the instruction.
func (b *InstructionBuilder) AddWords(words ...uint32) {
	b.words = append(b.words, words...)
}

// AddString adds a null-terminated UTF-8 string.
func (b *InstructionBuilder) AddString(s string) {
	b.words = append(b.words, EncodeString(s)...)
}

// Build builds the instruction with the given opcode.
func (b *InstructionBuilder) Build(opcode OpCode) Instruction {
	return Instruction{
		Opcode: opcode,
		Words:  b.words,
	}
}

// WordCount returns the encoded size of the instruction, opcode word
// included.
func (i Instruction) WordCount() int {
	return len(i.Words) + 1
}

// Encode encodes the instruction to binary.
func (i Instruction) Encode() []uint32 {
	return i.AppendTo(make([]uint32, 0, i.WordCount()))
}

// AppendTo appends the encoded instruction to dst.
func (i Instruction) AppendTo(dst []uint32) []uint32 {
	wordCount := uint32(i.WordCount())
	dst = append(dst, (wordCount<<16)|uint32(i.Opcode))
	return append(dst, i.Words...)
}

// EncodeString returns the words of a null-terminated, zero-padded
// literal string.
func EncodeString(s string) []uint32 {
	n := len(s)/4 + 1
	words := make([]uint32, n)
	for i := range len(s) {
		words[i/4] |= uint32(s[i]) << (8 * (i % 4))
	}
	return words
}

// DecodeString reads a literal string from words and returns it with
// the number of words it occupied. ok is false when no terminator is
// found.
func DecodeString(words []uint32) (s string, n int, ok bool) {
	buf := make([]byte, 0, len(words)*4)
	for i, w := range words {
		for shift := 0; shift < 32; shift += 8 {
			c := byte(w >> shift)
			if c == 0 {
				return string(buf), i + 1, true
			}
			buf = append(buf, c)
		}
	}
	return "", 0, false
}

// ModuleBuilder builds complete SPIR-V modules.
type ModuleBuilder struct {
	// Header
	version   Version
	generator uint32
	schema    uint32

	// Sections (ordered per SPIR-V spec)
	capabilities   []Instruction
	extensions     []Instruction
	extInstImports []Instruction
	memoryModel    *Instruction
	entryPoints    []Instruction
	executionModes []Instruction
	debugStrings   []Instruction // OpString
	debugNames     []Instruction // OpName, OpMemberName
	annotations    []Instruction // OpDecorate, OpMemberDecorate
	types          []Instruction // OpType*, OpConstant*
	globalVars     []Instruction // OpVariable (global)
	functions      []Instruction // OpFunction...OpFunctionEnd

	// ID allocation
	nextID uint32
}

// NewModuleBuilder creates a new SPIR-V module builder.
func NewModuleBuilder(version Version) *ModuleBuilder {
	return &ModuleBuilder{
		version:   version,
		generator: GeneratorID,
		nextID:    1,
	}
}

// AllocID allocates a new SPIR-V ID.
func (b *ModuleBuilder) AllocID() uint32 {
	id := b.nextID
	b.nextID++
	return id
}

func emit(section *[]Instruction, op OpCode, words ...uint32) {
	*section = append(*section, Instruction{Opcode: op, Words: words})
}

// result allocates an id and emits op with it as the first operand.
func (b *ModuleBuilder) result(section *[]Instruction, op OpCode, operands ...uint32) uint32 {
	id := b.AllocID()
	emit(section, op, append([]uint32{id}, operands...)...)
	return id
}

// typedResult allocates an id and emits op with a result type first.
func (b *ModuleBuilder) typedResult(section *[]Instruction, op OpCode, resultType uint32, operands ...uint32) uint32 {
	id := b.AllocID()
	emit(section, op, append([]uint32{resultType, id}, operands...)...)
	return id
}

// AddCapability adds a capability.
func (b *ModuleBuilder) AddCapability(capability Capability) {
	emit(&b.capabilities, OpCapability, uint32(capability))
}

// AddExtension adds an extension.
func (b *ModuleBuilder) AddExtension(name string) {
	emit(&b.extensions, OpExtension, EncodeString(name)...)
}

// AddExtInstImport imports an extended instruction set.
func (b *ModuleBuilder) AddExtInstImport(name string) uint32 {
	return b.result(&b.extInstImports, OpExtInstImport, EncodeString(name)...)
}

// SetMemoryModel sets the memory model.
func (b *ModuleBuilder) SetMemoryModel(addressing AddressingModel, memory MemoryModel) {
	inst := Instruction{Opcode: OpMemoryModel, Words: []uint32{uint32(addressing), uint32(memory)}}
	b.memoryModel = &inst
}

// AddEntryPoint adds an entry point.
func (b *ModuleBuilder) AddEntryPoint(execModel ExecutionModel, funcID uint32, name string, interfaces []uint32) {
	builder := NewInstructionBuilder()
	builder.AddWord(uint32(execModel))
	builder.AddWord(funcID)
	builder.AddString(name)
	builder.AddWords(interfaces...)
	b.entryPoints = append(b.entryPoints, builder.Build(OpEntryPoint))
}

// AddExecutionMode adds an execution mode.
func (b *ModuleBuilder) AddExecutionMode(entryPoint uint32, mode ExecutionMode, params ...uint32) {
	emit(&b.executionModes, OpExecutionMode, append([]uint32{entryPoint, uint32(mode)}, params...)...)
}

// AddString adds a debug string.
func (b *ModuleBuilder) AddString(text string) uint32 {
	return b.result(&b.debugStrings, OpString, EncodeString(text)...)
}

// AddName adds a debug name.
func (b *ModuleBuilder) AddName(id uint32, name string) {
	emit(&b.debugNames, OpName, append([]uint32{id}, EncodeString(name)...)...)
}

// AddMemberName adds a debug member name.
func (b *ModuleBuilder) AddMemberName(structID, member uint32, name string) {
	emit(&b.debugNames, OpMemberName, append([]uint32{structID, member}, EncodeString(name)...)...)
}

// AddDecorate adds a decoration.
func (b *ModuleBuilder) AddDecorate(id uint32, decoration Decoration, params ...uint32) {
	emit(&b.annotations, OpDecorate, append([]uint32{id, uint32(decoration)}, params...)...)
}

// AddMemberDecorate adds a member decoration.
func (b *ModuleBuilder) AddMemberDecorate(structID, member uint32, decoration Decoration, params ...uint32) {
	emit(&b.annotations, OpMemberDecorate, append([]uint32{structID, member, uint32(decoration)}, params...)...)
}

// AddTypeVoid adds OpTypeVoid.
func (b *ModuleBuilder) AddTypeVoid() uint32 {
	return b.result(&b.types, OpTypeVoid)
}

// AddTypeBool adds OpTypeBool.
func (b *ModuleBuilder) AddTypeBool() uint32 {
	return b.result(&b.types, OpTypeBool)
}

// AddTypeFloat adds OpTypeFloat.
func (b *ModuleBuilder) AddTypeFloat(width uint32) uint32 {
	return b.result(&b.types, OpTypeFloat, width)
}

// AddTypeInt adds OpTypeInt.
func (b *ModuleBuilder) AddTypeInt(width uint32, signed bool) uint32 {
	var s uint32
	if signed {
		s = 1
	}
	return b.result(&b.types, OpTypeInt, width, s)
}

// AddTypeVector adds OpTypeVector.
func (b *ModuleBuilder) AddTypeVector(componentType uint32, count uint32) uint32 {
	return b.result(&b.types, OpTypeVector, componentType, count)
}

// AddTypeMatrix adds OpTypeMatrix.
func (b *ModuleBuilder) AddTypeMatrix(columnType uint32, columnCount uint32) uint32 {
	return b.result(&b.types, OpTypeMatrix, columnType, columnCount)
}

// AddTypeArray adds OpTypeArray. length is the id of a constant.
func (b *ModuleBuilder) AddTypeArray(elementType uint32, length uint32) uint32 {
	return b.result(&b.types, OpTypeArray, elementType, length)
}

// AddTypeSampledImage adds an OpTypeImage of the given dimensionality
// and the OpTypeSampledImage wrapping it.
func (b *ModuleBuilder) AddTypeSampledImage(sampledType uint32, dim uint32) uint32 {
	image := b.result(&b.types, OpTypeImage, sampledType, dim, 0, 0, 0, 1, 0)
	return b.result(&b.types, OpTypeSampledImage, image)
}

// AddTypePointer adds OpTypePointer.
func (b *ModuleBuilder) AddTypePointer(storageClass StorageClass, baseType uint32) uint32 {
	return b.result(&b.types, OpTypePointer, uint32(storageClass), baseType)
}

// AddTypeFunction adds OpTypeFunction.
func (b *ModuleBuilder) AddTypeFunction(returnType uint32, paramTypes ...uint32) uint32 {
	return b.result(&b.types, OpTypeFunction, append([]uint32{returnType}, paramTypes...)...)
}

// AddTypeStruct adds OpTypeStruct.
func (b *ModuleBuilder) AddTypeStruct(memberTypes ...uint32) uint32 {
	return b.result(&b.types, OpTypeStruct, memberTypes...)
}

// AddConstant adds OpConstant.
func (b *ModuleBuilder) AddConstant(typeID uint32, values ...uint32) uint32 {
	return b.typedResult(&b.types, OpConstant, typeID, values...)
}

// AddConstantFloat32 adds a 32-bit float constant.
func (b *ModuleBuilder) AddConstantFloat32(typeID uint32, value float32) uint32 {
	return b.AddConstant(typeID, math.Float32bits(value))
}

// AddConstantComposite adds OpConstantComposite.
func (b *ModuleBuilder) AddConstantComposite(typeID uint32, constituents ...uint32) uint32 {
	return b.typedResult(&b.types, OpConstantComposite, typeID, constituents...)
}

// AddVariable adds a global OpVariable.
func (b *ModuleBuilder) AddVariable(pointerType uint32, storageClass StorageClass) uint32 {
	return b.typedResult(&b.globalVars, OpVariable, pointerType, uint32(storageClass))
}

// AddFunction adds a function definition.
func (b *ModuleBuilder) AddFunction(funcType uint32, returnType uint32, control FunctionControl) uint32 {
	return b.typedResult(&b.functions, OpFunction, returnType, uint32(control), funcType)
}

// AddLabel adds a label.
func (b *ModuleBuilder) AddLabel() uint32 {
	return b.result(&b.functions, OpLabel)
}

// AddLoad adds OpLoad.
func (b *ModuleBuilder) AddLoad(resultType uint32, pointer uint32) uint32 {
	return b.typedResult(&b.functions, OpLoad, resultType, pointer)
}

// AddStore adds OpStore.
func (b *ModuleBuilder) AddStore(pointer uint32, value uint32) {
	emit(&b.functions, OpStore, pointer, value)
}

// AddAccessChain adds OpAccessChain.
func (b *ModuleBuilder) AddAccessChain(resultType uint32, base uint32, indices ...uint32) uint32 {
	return b.typedResult(&b.functions, OpAccessChain, resultType, append([]uint32{base}, indices...)...)
}

// AddReturn adds a return statement.
func (b *ModuleBuilder) AddReturn() {
	emit(&b.functions, OpReturn)
}

// AddFunctionEnd ends a function.
func (b *ModuleBuilder) AddFunctionEnd() {
	emit(&b.functions, OpFunctionEnd)
}

// Build generates the module words.
func (b *ModuleBuilder) Build() []uint32 {
	sections := [][]Instruction{
		b.capabilities, b.extensions, b.extInstImports,
	}
	if b.memoryModel != nil {
		sections = append(sections, []Instruction{*b.memoryModel})
	}
	sections = append(sections,
		b.entryPoints, b.executionModes, b.debugStrings, b.debugNames,
		b.annotations, b.types, b.globalVars, b.functions)

	total := HeaderWords
	for _, s := range sections {
		total += countWords(s)
	}
	words := make([]uint32, 0, total)
	words = append(words, MagicNumber, versionToWord(b.version), b.generator, b.nextID, b.schema)
	for _, s := range sections {
		for _, inst := range s {
			words = inst.AppendTo(words)
		}
	}
	return words
}

// countWords counts total words in instructions.
func countWords(instructions []Instruction) int {
	count := 0
	for _, inst := range instructions {
		count += inst.WordCount()
	}
	return count
}

// WordsToBytes encodes words little-endian.
func WordsToBytes(words []uint32) []byte {
	buf := make([]byte, len(words)*4)
	for i, w := range words {
		binary.LittleEndian.PutUint32(buf[i*4:], w)
	}
	return buf
}

// BytesToWords decodes a little-endian byte stream. The length must be
// a multiple of four.
func BytesToWords(data []byte) ([]uint32, error) {
	if len(data)%4 != 0 {
		return nil, ErrUnaligned
	}
	words := make([]uint32, len(data)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(data[i*4:])
	}
	return words, nil
}
