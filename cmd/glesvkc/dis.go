package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/gogpu/glesvk/spirv"
)

var disRawIDs bool

var disCmd = &cobra.Command{
	Use:   "dis <module.spv>",
	Short: "Disassemble a SPIR-V module",
	Args:  cobra.ExactArgs(1),
	RunE:  runDis,
}

func init() {
	disCmd.Flags().BoolVar(&disRawIDs, "raw-id", false, "print numeric ids instead of debug names")
}

func runDis(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	m, err := spirv.ParseBytes(data)
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}
	return disassemble(cmd.OutOrStdout(), m, !disRawIDs)
}

// Operand shapes, one letter per operand:
//
//	T result type id    R result id    i id    n literal number
//	s literal string    I ids to end   N numbers to end
//	c capability        m execution model      x execution mode
//	S storage class     d decoration and its operands
//	D image dimension   a addressing model     M memory model
var shapes = map[spirv.OpCode]string{
	spirv.OpSource:             "nN",
	spirv.OpName:               "is",
	spirv.OpMemberName:         "ins",
	spirv.OpString:             "Rs",
	spirv.OpExtension:          "s",
	spirv.OpExtInstImport:      "Rs",
	spirv.OpExtInst:            "TRinI",
	spirv.OpMemoryModel:        "aM",
	spirv.OpEntryPoint:         "misI",
	spirv.OpExecutionMode:      "ixN",
	spirv.OpCapability:         "c",
	spirv.OpTypeVoid:           "R",
	spirv.OpTypeBool:           "R",
	spirv.OpTypeInt:            "Rnn",
	spirv.OpTypeFloat:          "Rn",
	spirv.OpTypeVector:         "Rin",
	spirv.OpTypeMatrix:         "Rin",
	spirv.OpTypeImage:          "RiDnnnnN",
	spirv.OpTypeSampler:        "R",
	spirv.OpTypeSampledImage:   "Ri",
	spirv.OpTypeArray:          "Rii",
	spirv.OpTypeRuntimeArray:   "Ri",
	spirv.OpTypeStruct:         "RI",
	spirv.OpTypePointer:        "RSi",
	spirv.OpTypeFunction:       "RiI",
	spirv.OpConstant:           "TRN",
	spirv.OpConstantComposite:  "TRI",
	spirv.OpFunction:           "TRni",
	spirv.OpFunctionParameter:  "TR",
	spirv.OpFunctionEnd:        "",
	spirv.OpVariable:           "TRSI",
	spirv.OpLoad:               "TRiN",
	spirv.OpStore:              "iiN",
	spirv.OpAccessChain:        "TRiI",
	spirv.OpDecorate:           "id",
	spirv.OpMemberDecorate:     "ind",
	spirv.OpDecorationGroup:    "R",
	spirv.OpGroupDecorate:      "iI",
	spirv.OpCompositeConstruct: "TRI",
	spirv.OpLabel:              "R",
	spirv.OpBranch:             "i",
	spirv.OpReturn:             "",
	spirv.OpReturnValue:        "i",
	spirv.OpModuleProcessed:    "s",
	opConstantTrue:             "TR",
	opConstantFalse:            "TR",
	opConstantNull:             "TR",
	opSpecConstant:             "TRN",
	opVectorShuffle:            "TRiiN",
	opCompositeExtract:         "TRiN",
	opCompositeInsert:          "TRiiN",
	opSampledImage:             "TRii",
	opImageSampleImplicitLod:   "TRiiN",
	opImageSampleExplicitLod:   "TRiiN",
	opImageFetch:               "TRiiN",
	opPhi:                      "TRI",
	opLoopMerge:                "iin",
	opSelectionMerge:           "in",
	opBranchConditional:        "iiiN",
	opSwitch:                   "iiN",
	opKill:                     "",
	opUnreachable:              "",
}

// Opcodes the disassembler names that the spirv package does not emit.
const (
	opConstantTrue           spirv.OpCode = 41
	opConstantFalse          spirv.OpCode = 42
	opConstantNull           spirv.OpCode = 46
	opSpecConstant           spirv.OpCode = 50
	opVectorShuffle          spirv.OpCode = 79
	opCompositeExtract       spirv.OpCode = 81
	opCompositeInsert        spirv.OpCode = 82
	opSampledImage           spirv.OpCode = 86
	opImageSampleImplicitLod spirv.OpCode = 87
	opImageSampleExplicitLod spirv.OpCode = 88
	opImageFetch             spirv.OpCode = 95
	opPhi                    spirv.OpCode = 245
	opLoopMerge              spirv.OpCode = 246
	opSelectionMerge         spirv.OpCode = 247
	opBranchConditional      spirv.OpCode = 250
	opSwitch                 spirv.OpCode = 251
	opKill                   spirv.OpCode = 252
	opUnreachable            spirv.OpCode = 255
)

var opcodeNames = map[spirv.OpCode]string{
	spirv.OpNop:                "OpNop",
	spirv.OpSource:             "OpSource",
	spirv.OpName:               "OpName",
	spirv.OpMemberName:         "OpMemberName",
	spirv.OpString:             "OpString",
	spirv.OpExtension:          "OpExtension",
	spirv.OpExtInstImport:      "OpExtInstImport",
	spirv.OpExtInst:            "OpExtInst",
	spirv.OpMemoryModel:        "OpMemoryModel",
	spirv.OpEntryPoint:         "OpEntryPoint",
	spirv.OpExecutionMode:      "OpExecutionMode",
	spirv.OpCapability:         "OpCapability",
	spirv.OpTypeVoid:           "OpTypeVoid",
	spirv.OpTypeBool:           "OpTypeBool",
	spirv.OpTypeInt:            "OpTypeInt",
	spirv.OpTypeFloat:          "OpTypeFloat",
	spirv.OpTypeVector:         "OpTypeVector",
	spirv.OpTypeMatrix:         "OpTypeMatrix",
	spirv.OpTypeImage:          "OpTypeImage",
	spirv.OpTypeSampler:        "OpTypeSampler",
	spirv.OpTypeSampledImage:   "OpTypeSampledImage",
	spirv.OpTypeArray:          "OpTypeArray",
	spirv.OpTypeRuntimeArray:   "OpTypeRuntimeArray",
	spirv.OpTypeStruct:         "OpTypeStruct",
	spirv.OpTypePointer:        "OpTypePointer",
	spirv.OpTypeFunction:       "OpTypeFunction",
	spirv.OpConstant:           "OpConstant",
	spirv.OpConstantComposite:  "OpConstantComposite",
	spirv.OpFunction:           "OpFunction",
	spirv.OpFunctionParameter:  "OpFunctionParameter",
	spirv.OpFunctionEnd:        "OpFunctionEnd",
	spirv.OpVariable:           "OpVariable",
	spirv.OpLoad:               "OpLoad",
	spirv.OpStore:              "OpStore",
	spirv.OpAccessChain:        "OpAccessChain",
	spirv.OpDecorate:           "OpDecorate",
	spirv.OpMemberDecorate:     "OpMemberDecorate",
	spirv.OpDecorationGroup:    "OpDecorationGroup",
	spirv.OpGroupDecorate:      "OpGroupDecorate",
	spirv.OpCompositeConstruct: "OpCompositeConstruct",
	spirv.OpLabel:              "OpLabel",
	spirv.OpBranch:             "OpBranch",
	spirv.OpReturn:             "OpReturn",
	spirv.OpReturnValue:        "OpReturnValue",
	spirv.OpModuleProcessed:    "OpModuleProcessed",
	spirv.OpDecorateString:     "OpDecorateString",

	opConstantTrue:           "OpConstantTrue",
	opConstantFalse:          "OpConstantFalse",
	opConstantNull:           "OpConstantNull",
	opSpecConstant:           "OpSpecConstant",
	opVectorShuffle:          "OpVectorShuffle",
	opCompositeExtract:       "OpCompositeExtract",
	opCompositeInsert:        "OpCompositeInsert",
	opSampledImage:           "OpSampledImage",
	opImageSampleImplicitLod: "OpImageSampleImplicitLod",
	opImageSampleExplicitLod: "OpImageSampleExplicitLod",
	opImageFetch:             "OpImageFetch",
	opPhi:                    "OpPhi",
	opLoopMerge:              "OpLoopMerge",
	opSelectionMerge:         "OpSelectionMerge",
	opBranchConditional:      "OpBranchConditional",
	opSwitch:                 "OpSwitch",
	opKill:                   "OpKill",
	opUnreachable:            "OpUnreachable",

	109: "OpConvertFToU",
	110: "OpConvertFToS",
	111: "OpConvertSToF",
	112: "OpConvertUToF",
	124: "OpBitcast",
	126: "OpSNegate",
	127: "OpFNegate",
	128: "OpIAdd",
	129: "OpFAdd",
	130: "OpISub",
	131: "OpFSub",
	132: "OpIMul",
	133: "OpFMul",
	134: "OpUDiv",
	135: "OpSDiv",
	136: "OpFDiv",
	137: "OpUMod",
	138: "OpSRem",
	139: "OpSMod",
	141: "OpFMod",
	142: "OpVectorTimesScalar",
	143: "OpMatrixTimesScalar",
	144: "OpVectorTimesMatrix",
	145: "OpMatrixTimesVector",
	146: "OpMatrixTimesMatrix",
	148: "OpDot",
	154: "OpAny",
	155: "OpAll",
	164: "OpLogicalEqual",
	165: "OpLogicalNotEqual",
	166: "OpLogicalOr",
	167: "OpLogicalAnd",
	168: "OpLogicalNot",
	169: "OpSelect",
	170: "OpIEqual",
	171: "OpINotEqual",
	173: "OpSGreaterThan",
	175: "OpSGreaterThanEqual",
	177: "OpSLessThan",
	179: "OpSLessThanEqual",
	180: "OpFOrdEqual",
	182: "OpFOrdNotEqual",
	184: "OpFOrdLessThan",
	186: "OpFOrdGreaterThan",
	188: "OpFOrdLessThanEqual",
	190: "OpFOrdGreaterThanEqual",
	194: "OpShiftRightLogical",
	195: "OpShiftRightArithmetic",
	196: "OpShiftLeftLogical",
	197: "OpBitwiseOr",
	198: "OpBitwiseXor",
	199: "OpBitwiseAnd",
	200: "OpNot",
}

var (
	capabilityNames = map[uint32]string{
		0: "Matrix", 1: "Shader", 2: "Geometry", 24: "GeometryPointSize",
		31: "ClipDistance", 32: "CullDistance", 34: "SampleRateShading",
		52: "TransformFeedback", 56: "MultiViewport", 4427: "DrawParameters",
		4439: "StoragePushConstant16", 4442: "MultiView",
	}
	storageClassNames = map[uint32]string{
		0: "UniformConstant", 1: "Input", 2: "Uniform", 3: "Output",
		4: "Workgroup", 6: "Private", 7: "Function", 9: "PushConstant",
		12: "StorageBuffer",
	}
	decorationNames = map[uint32]string{
		0: "RelaxedPrecision", 1: "SpecId", 2: "Block", 3: "BufferBlock",
		4: "RowMajor", 5: "ColMajor", 6: "ArrayStride", 7: "MatrixStride",
		11: "BuiltIn", 13: "NoPerspective", 14: "Flat", 16: "Centroid",
		17: "Sample", 18: "Invariant", 24: "NonWritable", 25: "NonReadable",
		30: "Location", 31: "Component", 32: "Index", 33: "Binding",
		34: "DescriptorSet", 35: "Offset", 36: "XfbBuffer", 37: "XfbStride",
	}
	builtInNames = map[uint32]string{
		0: "Position", 1: "PointSize", 2: "ClipDistance", 3: "CullDistance",
		6: "PrimitiveId", 7: "InvocationId", 8: "Layer", 9: "ViewportIndex",
		14: "FragCoord", 15: "PointCoord", 16: "FrontFacing", 17: "SampleId",
		18: "SamplePosition", 19: "SampleMask", 22: "FragDepth",
		23: "HelperInvocation", 24: "NumWorkgroups", 25: "WorkgroupSize",
		26: "WorkgroupId", 27: "LocalInvocationId", 28: "GlobalInvocationId",
		29: "LocalInvocationIndex", 42: "VertexIndex", 43: "InstanceIndex",
		4424: "BaseVertex", 4425: "BaseInstance", 4426: "DrawIndex", 4440: "ViewIndex",
	}
	executionModelNames = map[uint32]string{
		0: "Vertex", 3: "Geometry", 4: "Fragment", 5: "GLCompute",
	}
	executionModeNames = map[uint32]string{
		0: "Invocations", 7: "OriginUpperLeft", 8: "OriginLowerLeft",
		9: "EarlyFragmentTests", 17: "LocalSize", 19: "InputPoints",
		20: "InputLines", 21: "InputLinesAdjacency", 22: "Triangles",
		23: "InputTrianglesAdjacency", 26: "OutputVertices", 27: "OutputPoints",
		28: "OutputLineStrip", 29: "OutputTriangleStrip",
	}
	dimNames        = map[uint32]string{0: "1D", 1: "2D", 2: "3D", 3: "Cube", 4: "Rect", 5: "Buffer", 6: "SubpassData"}
	addressingNames = map[uint32]string{0: "Logical", 1: "Physical32", 2: "Physical64"}
	memoryNames     = map[uint32]string{0: "Simple", 1: "GLSL450", 2: "OpenCL", 3: "Vulkan"}
)

const decorationBuiltIn = 11

// disassembler prints a module in the assembly syntax of spirv-dis.
type disassembler struct {
	w      io.Writer
	names  map[uint32]string
	opName func(a ...any) string
	err    error
}

func newDisassembler(w io.Writer, m *spirv.Module, friendly bool) *disassembler {
	d := &disassembler{w: w, opName: color.New(color.FgCyan).SprintFunc()}
	if friendly {
		d.names = friendlyNames(m)
	}
	return d
}

// friendlyNames maps ids to their OpName, made unique by suffixing the
// id where names collide.
func friendlyNames(m *spirv.Module) map[uint32]string {
	raw := m.Names()
	count := make(map[string]int, len(raw))
	for _, n := range raw {
		count[n]++
	}
	out := make(map[uint32]string, len(raw))
	for id, n := range raw {
		if !validIdent(n) {
			continue
		}
		if count[n] > 1 {
			n += "_" + strconv.FormatUint(uint64(id), 10)
		}
		out[id] = n
	}
	return out
}

func validIdent(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c != '_' && (c < '0' || c > '9') && (c < 'a' || c > 'z') && (c < 'A' || c > 'Z') {
			return false
		}
	}
	return true
}

func (d *disassembler) printf(format string, args ...any) {
	if d.err == nil {
		_, d.err = fmt.Fprintf(d.w, format, args...)
	}
}

func (d *disassembler) id(n uint32) string {
	if name, ok := d.names[n]; ok {
		return "%" + name
	}
	return "%" + strconv.FormatUint(uint64(n), 10)
}

func lookup(m map[uint32]string, v uint32) string {
	if s, ok := m[v]; ok {
		return s
	}
	return strconv.FormatUint(uint64(v), 10)
}

func (d *disassembler) module(m *spirv.Module) {
	h := m.Header
	d.printf("; SPIR-V\n; Version: %s\n; Generator: 0x%08X\n; Bound: %d\n; Schema: %d\n",
		h.Version, h.Generator, h.Bound, h.Schema)
	for _, in := range m.Instructions {
		d.instruction(in)
	}
}

// instruction prints one instruction with its result id right aligned,
// as spirv-dis does.
func (d *disassembler) instruction(in spirv.ParsedInstruction) {
	name, ok := opcodeNames[in.Opcode]
	if !ok {
		name = "Op" + strconv.Itoa(int(in.Opcode))
	}
	shape, ok := shapes[in.Opcode]
	if !ok {
		shape = "I"
		if in.Opcode >= 109 && in.Opcode <= 200 {
			shape = "TRI"
		}
	}

	ops, result, err := d.operands(shape, in.Words)
	if err != "" {
		d.printf("; malformed %s at word %d: %s\n", name, in.Offset, err)
		return
	}
	if result != "" {
		d.printf("%14s = %s", result, d.opName(name))
	} else {
		d.printf("%17s%s", "", d.opName(name))
	}
	for _, op := range ops {
		d.printf(" %s", op)
	}
	d.printf("\n")
}

// operands formats words per shape. The result id is returned apart so
// it can lead the line.
//
//nolint:gocyclo,cyclop // one case per operand kind
func (d *disassembler) operands(shape string, words []uint32) (ops []string, result, problem string) {
	i := 0
	for _, kind := range shape {
		if kind == 'I' || kind == 'N' {
			for ; i < len(words); i++ {
				if kind == 'I' {
					ops = append(ops, d.id(words[i]))
				} else {
					ops = append(ops, strconv.FormatUint(uint64(words[i]), 10))
				}
			}
			continue
		}
		if i >= len(words) {
			return nil, "", "missing operands"
		}
		w := words[i]
		i++
		switch kind {
		case 'T', 'i':
			ops = append(ops, d.id(w))
		case 'R':
			result = d.id(w)
		case 'n':
			ops = append(ops, strconv.FormatUint(uint64(w), 10))
		case 's':
			s, n, ok := spirv.DecodeString(words[i-1:])
			if !ok {
				return nil, "", "unterminated string"
			}
			ops = append(ops, strconv.Quote(s))
			i += n - 1
		case 'c':
			ops = append(ops, lookup(capabilityNames, w))
		case 'm':
			ops = append(ops, lookup(executionModelNames, w))
		case 'x':
			ops = append(ops, lookup(executionModeNames, w))
		case 'S':
			ops = append(ops, lookup(storageClassNames, w))
		case 'D':
			ops = append(ops, lookup(dimNames, w))
		case 'a':
			ops = append(ops, lookup(addressingNames, w))
		case 'M':
			ops = append(ops, lookup(memoryNames, w))
		case 'd':
			ops = append(ops, lookup(decorationNames, w))
			for ; i < len(words); i++ {
				if w == decorationBuiltIn {
					ops = append(ops, lookup(builtInNames, words[i]))
				} else {
					ops = append(ops, strconv.FormatUint(uint64(words[i]), 10))
				}
			}
		}
	}
	return ops, result, ""
}

// disassemble writes the assembly text of m to w.
func disassemble(w io.Writer, m *spirv.Module, friendly bool) error {
	d := newDisassembler(w, m, friendly)
	d.module(m)
	return d.err
}
