package ir

import "github.com/gogpu/glesvk/shader"

// Resources are the implementation limits that shape built-in
// declarations and a few rewrites.
type Resources struct {
	MaxVertexAttribs          int
	MaxVertexUniformVectors   int
	MaxFragmentUniformVectors int
	MaxVaryingVectors         int
	MaxDrawBuffers            int
	MaxDualSourceDrawBuffers  int
	MaxClipDistances          int
	MaxAtomicCounterBindings  int
	SubPixelBits              int
	MaxPointSize              float32
}

// DefaultResources returns the minimum limits of an ES 3.1 implementation.
func DefaultResources() Resources {
	return Resources{
		MaxVertexAttribs:          16,
		MaxVertexUniformVectors:   256,
		MaxFragmentUniformVectors: 224,
		MaxVaryingVectors:         15,
		MaxDrawBuffers:            4,
		MaxDualSourceDrawBuffers:  1,
		MaxClipDistances:          8,
		MaxAtomicCounterBindings:  1,
		SubPixelBits:              8,
		MaxPointSize:              1024,
	}
}

type builtin struct {
	name       string
	typ        Type
	stages     shader.StageMask
	minVersion int
	maxVersion int // 0 means no upper bound
}

func (b builtin) visible(stage shader.Stage, version int) bool {
	if !b.stages.Has(stage) || version < b.minVersion {
		return false
	}
	return b.maxVersion == 0 || version <= b.maxVersion
}

// DepthRangeParams is the struct type of gl_DepthRange.
var DepthRangeParams = &Struct{
	Name: "gl_DepthRangeParameters",
	Fields: []Field{
		{Name: "near", Type: Scalar(TypeFloat).WithPrecision(shader.PrecisionHigh), SymbolType: SymbolBuiltIn},
		{Name: "far", Type: Scalar(TypeFloat).WithPrecision(shader.PrecisionHigh), SymbolType: SymbolBuiltIn},
		{Name: "diff", Type: Scalar(TypeFloat).WithPrecision(shader.PrecisionHigh), SymbolType: SymbolBuiltIn},
	},
	SymbolType: SymbolBuiltIn,
}

func builtinTable(res Resources) []builtin {
	vs := shader.StageVertex.Mask()
	gs := shader.StageGeometry.Mask()
	fs := shader.StageFragment.Mask()
	cs := shader.StageCompute.Mask()
	graphics := vs | gs | fs

	highp := func(t Type) Type { return t.WithPrecision(shader.PrecisionHigh) }
	in := func(t Type) Type { return t.WithQualifier(QualVaryingIn) }
	out := func(t Type) Type { return t.WithQualifier(QualVaryingOut) }
	vin := func(t Type) Type { return t.WithQualifier(QualVertexIn) }
	fout := func(t Type) Type { return t.WithQualifier(QualFragmentOut) }

	drawBuffers := uint32(max(res.MaxDrawBuffers, 1))
	clipDistances := uint32(max(res.MaxClipDistances, 1))
	uvec3 := highp(Vec(TypeUInt, 3))

	return []builtin{
		{name: "gl_Position", typ: out(highp(Vec(TypeFloat, 4))), stages: vs | gs},
		{name: "gl_PointSize", typ: out(highp(Scalar(TypeFloat))), stages: vs | gs},
		{name: "gl_ClipDistance", typ: out(highp(Scalar(TypeFloat)).ArrayOf(clipDistances)), stages: vs | gs, minVersion: 300},
		{name: "gl_VertexID", typ: vin(highp(Scalar(TypeInt))), stages: vs, minVersion: 300},
		{name: "gl_InstanceID", typ: vin(highp(Scalar(TypeInt))), stages: vs, minVersion: 300},
		{name: "gl_VertexIndex", typ: vin(highp(Scalar(TypeInt))), stages: vs},
		{name: "gl_InstanceIndex", typ: vin(highp(Scalar(TypeInt))), stages: vs},
		{name: "gl_DrawID", typ: vin(highp(Scalar(TypeInt))), stages: vs},
		{name: "gl_BaseVertex", typ: vin(highp(Scalar(TypeInt))), stages: vs, minVersion: 300},
		{name: "gl_BaseInstance", typ: vin(highp(Scalar(TypeInt))), stages: vs, minVersion: 300},

		{name: "gl_PrimitiveIDIn", typ: in(highp(Scalar(TypeInt))), stages: gs, minVersion: 310},
		{name: "gl_InvocationID", typ: in(highp(Scalar(TypeInt))), stages: gs, minVersion: 310},
		{name: "gl_PrimitiveID", typ: in(highp(Scalar(TypeInt))), stages: fs | gs, minVersion: 310},

		{name: "gl_FragCoord", typ: in(highp(Vec(TypeFloat, 4))), stages: fs},
		{name: "gl_FrontFacing", typ: in(Scalar(TypeBool)), stages: fs},
		{name: "gl_PointCoord", typ: in(Vec(TypeFloat, 2).WithPrecision(shader.PrecisionMedium)), stages: fs},
		{name: "gl_FragColor", typ: fout(Vec(TypeFloat, 4).WithPrecision(shader.PrecisionMedium)), stages: fs, maxVersion: 100},
		{name: "gl_FragData", typ: fout(Vec(TypeFloat, 4).WithPrecision(shader.PrecisionMedium).ArrayOf(drawBuffers)), stages: fs, maxVersion: 100},
		{name: "gl_FragDepth", typ: fout(highp(Scalar(TypeFloat))), stages: fs, minVersion: 300},
		{name: "gl_SampleID", typ: in(highp(Scalar(TypeInt))), stages: fs, minVersion: 300},
		{name: "gl_SamplePosition", typ: in(Vec(TypeFloat, 2).WithPrecision(shader.PrecisionMedium)), stages: fs, minVersion: 300},
		{name: "gl_SampleMaskIn", typ: in(highp(Scalar(TypeInt)).ArrayOf(1)), stages: fs, minVersion: 300},
		{name: "gl_SampleMask", typ: fout(highp(Scalar(TypeInt)).ArrayOf(1)), stages: fs, minVersion: 300},
		{name: "gl_NumSamples", typ: in(Scalar(TypeInt).WithPrecision(shader.PrecisionLow)), stages: fs, minVersion: 300},

		{name: "gl_DepthRange", typ: StructOf(DepthRangeParams).WithQualifier(QualUniform), stages: graphics},

		{name: "gl_NumWorkGroups", typ: in(uvec3), stages: cs, minVersion: 310},
		{name: "gl_WorkGroupID", typ: in(uvec3), stages: cs, minVersion: 310},
		{name: "gl_LocalInvocationID", typ: in(uvec3), stages: cs, minVersion: 310},
		{name: "gl_GlobalInvocationID", typ: in(uvec3), stages: cs, minVersion: 310},
		{name: "gl_LocalInvocationIndex", typ: in(highp(Scalar(TypeUInt))), stages: cs, minVersion: 310},
	}
}
