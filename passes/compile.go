package passes

import (
	"errors"
	"fmt"

	"github.com/gogpu/glesvk/internal/logging"
	"github.com/gogpu/glesvk/ir"
	"github.com/gogpu/glesvk/shader"
)

// Descriptor sets of internally declared resources.
const (
	DefaultUniformSet = 0
	ShaderResourceSet = 2
	DriverUniformSet  = 3
)

// ErrUnsupported reports a shader construct the rewrites cannot express.
var ErrUnsupported = errors.New("passes: unsupported construct")

// InternalError reports a broken invariant inside a pass. It never
// describes a problem with the user's shader.
type InternalError struct {
	Pass    string
	Message string
}

// Error implements the error interface.
func (e *InternalError) Error() string {
	return fmt.Sprintf("passes: %s: %s", e.Pass, e.Message)
}

func internalf(pass, format string, args ...any) error {
	return &InternalError{Pass: pass, Message: fmt.Sprintf(format, args...)}
}

// Options selects the optional rewrites.
type Options struct {
	// InitializeOutputVariables zero-initializes vertex outputs at the
	// start of main.
	InitializeOutputVariables bool
	// ClampPointSize clamps gl_PointSize to [1, MaxPointSize].
	ClampPointSize bool
	// EmulateSeamfulCubeMapSampling turns cube samplers into 2D arrays.
	EmulateSeamfulCubeMapSampling bool
	// AddBresenhamLineRasterEmulation adds the line raster fallback
	// guarded by a specialization constant.
	AddBresenhamLineRasterEmulation bool
	// AddXfbEmulationSupport adds the getXfbOffsets helper to vertex shaders.
	AddXfbEmulationSupport bool
	// AddPreRotation rotates positions and fragment coordinates by the
	// surface pre-rotation.
	AddPreRotation bool
}

// Header carries layout declarations the emitter writes before the body.
type Header struct {
	EarlyFragmentTests bool
	Geometry           *shader.GeometryLayout
	WorkGroupSize      shader.WorkGroupSize
}

// Compile is the state shared by the passes of one translation.
type Compile struct {
	Stage     shader.Stage
	Version   int
	Resources ir.Resources
	// Info is the introspection collected before the passes ran. Passes
	// update flags on it but never rename its records.
	Info *shader.Compiled

	Driver                *DriverUniforms
	LineRasterEmulation   *ir.Variable
	DefaultUniforms       *ir.InterfaceBlock
	RemovedStructUniforms int
	XfbPlaceholders       bool
	Header                Header

	nextBinding int
}

// NewCompile returns the pass state for one shader.
func NewCompile(info *shader.Compiled, res ir.Resources) *Compile {
	return &Compile{
		Stage:     info.Stage,
		Version:   info.Version,
		Resources: res,
		Info:      info,
		Header:    Header{WorkGroupSize: shader.UndeclaredWorkGroupSize},
	}
}

// NextBinding returns the next unused binding number. Bindings are
// handed out in increasing order and never reused within a compile.
func (c *Compile) NextBinding() int {
	b := c.nextBinding
	c.nextBinding++
	return b
}

// BindingsUsed returns how many bindings were handed out.
func (c *Compile) BindingsUsed() int {
	return c.nextBinding
}

// Pass is one tree rewrite. It reports whether the tree changed.
type Pass func(c *Compile, tree *ir.Tree, symbols *ir.SymbolTable, opts Options) (bool, error)

// Step is a named pass.
type Step struct {
	Name string
	Run  Pass
}

// Steps returns the passes for stage in the order they must run.
func Steps(stage shader.Stage) []Step {
	steps := []Step{
		{"builtinWorkarounds", ShaderBuiltinsWorkaround},
		{"removeInactiveInterfaceVariables", RemoveInactiveInterfaceVariables},
		{"nameEmbeddedStructUniforms", NameEmbeddedStructUniforms},
		{"rewriteStructSamplers", RewriteStructSamplers},
		{"rewriteCubeMapSamplersAs2DArray", RewriteCubeMapSamplersAs2DArray},
		{"flagSamplersWithTexelFetch", FlagSamplersWithTexelFetch},
		{"declareDefaultUniforms", DeclareDefaultUniforms},
		{"declareDriverUniforms", DeclareDriverUniforms},
		{"rewriteAtomicCounters", RewriteAtomicCounters},
	}
	if stage != shader.StageCompute {
		steps = append(steps, Step{"replaceGLDepthRange", ReplaceGLDepthRange})
	}
	if stage == shader.StageVertex || stage == shader.StageGeometry {
		steps = append(steps, Step{"appendXfbOutput", AppendTransformFeedbackOutput})
	}
	switch stage {
	case shader.StageFragment:
		steps = append(steps, Step{"fragment", FragmentStage})
	case shader.StageVertex:
		steps = append(steps, Step{"vertex", VertexStage})
	case shader.StageGeometry:
		steps = append(steps, Step{"geometry", GeometryStage})
	case shader.StageCompute:
		steps = append(steps, Step{"compute", ComputeStage})
	}
	return steps
}

// Run applies every step for c.Stage in order. validate is called after
// each step that changed the tree; its error aborts the run.
func Run(c *Compile, tree *ir.Tree, symbols *ir.SymbolTable, opts Options, validate func(step string) error) error {
	log := logging.Logger()
	for _, s := range Steps(c.Stage) {
		changed, err := s.Run(c, tree, symbols, opts)
		if err != nil {
			return fmt.Errorf("%s: %w", s.Name, err)
		}
		log.Debug("pass finished", "stage", c.Stage, "pass", s.Name, "changed", changed)
		if changed && validate != nil {
			if err := validate(s.Name); err != nil {
				return err
			}
		}
	}
	return nil
}

// usesBuiltIn reports whether the tree references the named built-in.
func usesBuiltIn(tree *ir.Tree, symbols *ir.SymbolTable, name string) bool {
	v := symbols.FindBuiltIn(name)
	return v != nil && len(tree.References(tree.Root, v)) > 0
}

// findUniform returns the introspection record of a uniform by name.
func (c *Compile) findUniform(name string) *shader.Variable {
	for i := range c.Info.Uniforms {
		if c.Info.Uniforms[i].Name == name {
			return &c.Info.Uniforms[i]
		}
	}
	return nil
}
