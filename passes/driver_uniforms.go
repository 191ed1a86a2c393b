package passes

import (
	"fmt"

	"github.com/gogpu/glesvk/ir"
	"github.com/gogpu/glesvk/shader"
)

// Names of the driver uniform block and its instance.
const (
	DriverUniformsBlockName    = "DriverUniforms"
	DriverUniformsInstanceName = "driverUniforms"
)

// Driver uniform fields.
const (
	FieldViewport               = "viewport"
	FieldClipDistancesEnabled   = "clipDistancesEnabled"
	FieldXfbActiveUnpaused      = "xfbActiveUnpaused"
	FieldXfbVerticesPerInstance = "xfbVerticesPerInstance"
	FieldNumSamples             = "numSamples"
	FieldXfbBufferOffsets       = "xfbBufferOffsets"
	FieldAcbBufferOffsets       = "acbBufferOffsets"
	FieldDepthRange             = "depthRange"
	FieldHalfRenderArea         = "halfRenderArea"
	FieldFlipXY                 = "flipXY"
	FieldNegFlipXY              = "negFlipXY"
	FieldFragRotation           = "fragRotation"
	FieldPreRotation            = "preRotation"
)

// DepthRangeParams is the emulated gl_DepthRange struct. The reserved
// field pads it to a vec4.
var DepthRangeParams = &ir.Struct{
	Name: "DepthRangeParams",
	Fields: []ir.Field{
		internalField("near", highp(ir.Scalar(ir.TypeFloat))),
		internalField("far", highp(ir.Scalar(ir.TypeFloat))),
		internalField("diff", highp(ir.Scalar(ir.TypeFloat))),
		internalField("reserved", highp(ir.Scalar(ir.TypeFloat))),
	},
	SymbolType: ir.SymbolInternal,
}

func highp(t ir.Type) ir.Type { return t.WithPrecision(shader.PrecisionHigh) }

func internalField(name string, t ir.Type) ir.Field {
	return ir.Field{Name: name, Type: t, SymbolType: ir.SymbolInternal}
}

// graphicsDriverFields returns the driver uniform layout of graphics
// stages. The flip and rotation fields follow the base fields so the
// std140 offsets of the base fields do not depend on them.
func graphicsDriverFields() []ir.Field {
	return []ir.Field{
		internalField(FieldViewport, highp(ir.Vec(ir.TypeFloat, 4))),
		internalField(FieldClipDistancesEnabled, highp(ir.Scalar(ir.TypeUInt))),
		internalField(FieldXfbActiveUnpaused, highp(ir.Scalar(ir.TypeUInt))),
		internalField(FieldXfbVerticesPerInstance, highp(ir.Scalar(ir.TypeInt))),
		internalField(FieldNumSamples, highp(ir.Scalar(ir.TypeInt))),
		internalField(FieldXfbBufferOffsets, highp(ir.Vec(ir.TypeInt, 4))),
		internalField(FieldAcbBufferOffsets, highp(ir.Vec(ir.TypeUInt, 4))),
		internalField(FieldDepthRange, ir.StructOf(DepthRangeParams)),
		internalField(FieldHalfRenderArea, highp(ir.Vec(ir.TypeFloat, 2))),
		internalField(FieldFlipXY, highp(ir.Vec(ir.TypeFloat, 2))),
		internalField(FieldNegFlipXY, highp(ir.Vec(ir.TypeFloat, 2))),
		internalField(FieldFragRotation, highp(ir.Mat(2, 2))),
		internalField(FieldPreRotation, highp(ir.Mat(2, 2))),
	}
}

func computeDriverFields() []ir.Field {
	return []ir.Field{
		internalField(FieldAcbBufferOffsets, highp(ir.Vec(ir.TypeUInt, 4))),
	}
}

// DriverUniforms is the declared driver uniform block.
type DriverUniforms struct {
	Block    *ir.InterfaceBlock
	Variable *ir.Variable
}

// Has reports whether the block has the named field.
func (d *DriverUniforms) Has(name string) bool {
	return d != nil && d.Block.FieldIndex(name) >= 0
}

// Field adds a reference to driverUniforms.<name>.
func (d *DriverUniforms) Field(tree *ir.Tree, name string) (ir.NodeID, error) {
	if d == nil {
		return ir.NoNode, internalf("driverUniforms", "driver uniforms are not declared")
	}
	i := d.Block.FieldIndex(name)
	if i < 0 {
		return ir.NoNode, internalf("driverUniforms", "no driver uniform field %q", name)
	}
	return tree.Field(tree.Symbol(d.Variable), i), nil
}

// DeclareDriverUniforms declares the driver uniform block used by later
// rewrites. Compute shaders get the reduced layout.
func DeclareDriverUniforms(c *Compile, tree *ir.Tree, symbols *ir.SymbolTable, _ Options) (bool, error) {
	if c.Driver != nil {
		return false, internalf("declareDriverUniforms", "driver uniforms declared twice")
	}
	fields := graphicsDriverFields()
	if c.Stage == shader.StageCompute {
		fields = computeDriverFields()
	}
	layout := ir.DefaultLayout()
	layout.Set = DriverUniformSet
	layout.Binding = c.NextBinding()
	layout.Storage = shader.LayoutStd140
	layout.HasStorage = true
	block := &ir.InterfaceBlock{
		Name:       DriverUniformsBlockName,
		Fields:     fields,
		Layout:     layout,
		BlockType:  shader.BlockUniform,
		SymbolType: ir.SymbolInternal,
	}
	v, err := symbols.NewInternalVariable(DriverUniformsInstanceName, ir.BlockOf(block))
	if err != nil {
		return false, fmt.Errorf("declare driver uniforms: %w", err)
	}
	tree.InsertGlobalsBeforeFunctions(tree.Declare(v, ir.NoNode))
	c.Driver = &DriverUniforms{Block: block, Variable: v}
	return true, nil
}

// declareLineRasterEmulation declares the specialization constant that
// guards line raster emulation. It is declared at most once per compile.
func (c *Compile) declareLineRasterEmulation(tree *ir.Tree, symbols *ir.SymbolTable) (*ir.Variable, error) {
	if c.LineRasterEmulation != nil {
		return c.LineRasterEmulation, nil
	}
	layout := ir.DefaultLayout()
	layout.ConstantID = 0
	typ := ir.Scalar(ir.TypeBool).WithQualifier(ir.QualSpecConst).WithLayout(layout)
	v, err := symbols.NewInternalVariable("lineRasterEmulation", typ)
	if err != nil {
		return nil, err
	}
	tree.InsertGlobalsBeforeFunctions(tree.Declare(v, tree.Bool(false)))
	c.LineRasterEmulation = v
	c.Info.SpecConstUsage |= shader.SpecConstLineRasterEmulation
	return v, nil
}
