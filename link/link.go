package link

import (
	"fmt"

	"github.com/gogpu/glesvk/internal/logging"
	"github.com/gogpu/glesvk/shader"
)

// Step identifies a linker step.
type Step uint8

const (
	StepShaders Step = iota
	StepAttributes
	StepVaryings
	StepTransformFeedback
	StepUniforms
	StepInterfaceBlocks
	StepGlobalNames
	StepOutputs
)

// String returns the step name.
func (s Step) String() string {
	switch s {
	case StepShaders:
		return "shaders"
	case StepAttributes:
		return "attributes"
	case StepVaryings:
		return "varyings"
	case StepTransformFeedback:
		return "transform feedback"
	case StepUniforms:
		return "uniforms"
	case StepInterfaceBlocks:
		return "interface blocks"
	case StepGlobalNames:
		return "global names"
	case StepOutputs:
		return "outputs"
	default:
		return fmt.Sprintf("Step(%d)", s)
	}
}

// Error reports a failed link. Message is the first info log line the
// failing step wrote.
type Error struct {
	Step    Step
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("link %s: %s", e.Step, e.Message)
}

// Input is everything the linker reads: the translated shaders and the
// API state of the program.
type Input struct {
	Shaders     [shader.StageCount]*shader.Compiled
	Separable   bool
	WebGL       bool
	Caps        Caps
	Limitations Limitations

	AttributeBindings       Bindings
	UniformLocationBindings AliasedBindings
	FragmentOutputLocations AliasedBindings
	FragmentOutputIndexes   AliasedBindings

	TransformFeedbackVaryings []string
	TransformFeedbackMode     XfbMode
}

// Shader returns the compiled shader attached for stage, or nil.
func (in *Input) Shader(stage shader.Stage) *shader.Compiled {
	return in.Shaders[stage]
}

// AttachedStages returns the mask of stages with a shader.
func (in *Input) AttachedStages() shader.StageMask {
	var m shader.StageMask
	for _, s := range shader.AllStages {
		if in.Shaders[s] != nil {
			m = m.With(s)
		}
	}
	return m
}

type linker struct {
	in  *Input
	log *InfoLog
	res *Resources

	combinedStorageBlocks int
}

// Link validates the shaders of in and resolves the program interface.
// Diagnostics go to log. On failure it returns a *Error and no
// resources.
func Link(in *Input, log *InfoLog) (*Resources, error) {
	if err := in.Caps.Validate(); err != nil {
		return nil, err
	}
	l := &linker{in: in, log: log, res: newResources()}
	l.res.Separable = in.Separable
	l.res.Stages = in.AttachedStages()

	steps := []struct {
		step Step
		run  func() bool
	}{
		{StepShaders, l.validateShaders},
		{StepAttributes, l.linkAttributes},
		{StepVaryings, l.linkVaryings},
		{StepTransformFeedback, l.linkTransformFeedback},
		{StepUniforms, l.linkUniforms},
		{StepInterfaceBlocks, l.linkInterfaceBlocks},
		{StepGlobalNames, l.validateGlobalNames},
		{StepOutputs, l.linkOutputs},
	}
	for _, s := range steps {
		mark := len(log.Lines())
		if !s.run() {
			msg := "failed"
			if lines := log.Lines(); len(lines) > mark {
				msg = lines[mark]
			}
			logging.Logger().Debug("glesvk: link step failed", "step", s.step.String(), "message", msg)
			return nil, &Error{Step: s.step, Message: msg}
		}
		logging.Logger().Debug("glesvk: link step done", "step", s.step.String())
	}
	return l.res, nil
}

// validateShaders checks the stage combination and copies stage layouts
// into the resources.
//
//nolint:gocognit,gocyclo,cyclop // one branch per link rule
func (l *linker) validateShaders() bool {
	vs := l.in.Shader(shader.StageVertex)
	gs := l.in.Shader(shader.StageGeometry)
	fs := l.in.Shader(shader.StageFragment)
	cs := l.in.Shader(shader.StageCompute)
	graphics := vs != nil || gs != nil || fs != nil

	if cs != nil && graphics {
		l.log.Printf("Both compute and graphics shaders are attached to the same program.")
		return false
	}

	if cs != nil {
		if !cs.Compiled {
			l.log.Printf("Attached compute shader is not compiled.")
			return false
		}
		if !cs.WorkGroupSize.IsDeclared() {
			l.log.Printf("Work group size is not specified.")
			return false
		}
		l.res.ComputeLocalSize = cs.WorkGroupSize
		l.res.Version = cs.Version
		l.res.SpecConstUsage = cs.SpecConstUsage
		return true
	}

	if l.in.Separable {
		if !graphics {
			l.log.Printf("No compiled shaders.")
			return false
		}
		for _, s := range []*shader.Compiled{fs, vs, gs} {
			if s != nil && !s.Compiled {
				l.log.Printf("%s shader is not compiled.", titleStage(s.Stage))
				return false
			}
		}
	} else {
		if fs == nil || !fs.Compiled {
			l.log.Printf("No compiled fragment shader when at least one graphics shader is attached.")
			return false
		}
		if vs == nil || !vs.Compiled {
			l.log.Printf("No compiled vertex shader when at least one graphics shader is attached.")
			return false
		}
	}

	if vs != nil && fs != nil && vs.Version != fs.Version {
		l.log.Printf("Fragment shader version does not match vertex shader version.")
		return false
	}

	if gs != nil {
		if !gs.Compiled {
			l.log.Printf("The attached geometry shader isn't compiled.")
			return false
		}
		if vs != nil && gs.Version != vs.Version {
			l.log.Printf("Geometry shader version does not match vertex shader version.")
			return false
		}
		if gs.Geometry.Input == shader.PrimitiveUndefined {
			l.log.Printf("Input primitive type is not specified in the geometry shader.")
			return false
		}
		if gs.Geometry.Output == shader.PrimitiveUndefined {
			l.log.Printf("Output primitive type is not specified in the geometry shader.")
			return false
		}
		if gs.Geometry.MaxVertices < 0 {
			l.log.Printf("'max_vertices' is not specified in the geometry shader.")
			return false
		}
		l.res.Geometry = gs.Geometry
	}

	for _, s := range []*shader.Compiled{vs, gs, fs} {
		if s == nil {
			continue
		}
		if l.res.Version == 0 {
			l.res.Version = s.Version
		}
		l.res.SpecConstUsage |= s.SpecConstUsage
	}
	if vs != nil {
		l.res.NumViews = vs.NumViews
	}
	if fs != nil {
		l.res.EarlyFragmentTests = fs.EarlyFragmentTests
	}
	return true
}

func titleStage(s shader.Stage) string {
	name := s.String()
	return string(name[0]-'a'+'A') + name[1:]
}
