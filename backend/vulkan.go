package backend

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/gogpu/glesvk/internal/logging"
	"github.com/gogpu/glesvk/link"
	"github.com/gogpu/glesvk/shader"
	"github.com/gogpu/glesvk/spirv"
)

// vulkanBlobVersion is bumped when the saved program format changes.
const vulkanBlobVersion = 1

// VulkanOptions configure the Vulkan backend.
type VulkanOptions struct {
	// MaxParallelCompiles bounds the stages compiled at once; <= 0 means
	// GOMAXPROCS.
	MaxParallelCompiles int
	// StripDebugInfo removes names from the final SPIR-V.
	StripDebugInfo bool
	// EmulateTransformFeedback captures varyings into storage buffers.
	EmulateTransformFeedback bool
}

// Vulkan is the reference Vulkan-style backend.
type Vulkan struct {
	compiler ShaderCompiler
	modules  ShaderModuleFactory
	opts     VulkanOptions
}

// NewVulkan returns a backend compiling with compiler and creating
// modules with modules.
func NewVulkan(compiler ShaderCompiler, modules ShaderModuleFactory, opts VulkanOptions) *Vulkan {
	return &Vulkan{compiler: compiler, modules: modules, opts: opts}
}

// NewProgram returns a new Vulkan program.
func (v *Vulkan) NewProgram() Program {
	return &VulkanProgram{backend: v}
}

// vulkanStage is the device state of one stage.
type vulkanStage struct {
	code   []uint32
	module ShaderModule
}

// vulkanState is the result of one link or load. A relink builds a new
// state, so work of an abandoned link never touches the current one.
type vulkanState struct {
	mu       sync.Mutex
	infos    VariableInfoMap
	layouts  DescriptorSetLayouts
	uniforms *defaultUniforms
	stages   [shader.StageCount]*vulkanStage
	released bool
}

func (st *vulkanState) setStage(s shader.Stage, vs *vulkanStage) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.released {
		vs.module.Release()
		return
	}
	st.stages[s] = vs
}

func (st *vulkanState) stage(s shader.Stage) *vulkanStage {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.stages[s]
}

func (st *vulkanState) release() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.released = true
	for i, vs := range st.stages {
		if vs != nil && vs.module != nil {
			vs.module.Release()
		}
		st.stages[i] = nil
	}
}

// VulkanProgram is a program of the Vulkan backend.
type VulkanProgram struct {
	backend *Vulkan

	mu    sync.Mutex
	state *vulkanState
	event LinkEvent
}

// begin installs a fresh state, retiring the previous one once its
// link has finished.
func (p *VulkanProgram) begin(res *link.Resources, infos VariableInfoMap) *vulkanState {
	st := &vulkanState{
		infos:    infos,
		layouts:  infos.Layouts(),
		uniforms: newDefaultUniforms(res),
	}
	p.mu.Lock()
	old, oldEvent := p.state, p.event
	p.state, p.event = st, nil
	p.mu.Unlock()

	if old != nil {
		if oldEvent != nil && oldEvent.IsLinking() {
			go func() {
				_ = oldEvent.Wait(context.Background())
				old.release()
			}()
		} else {
			old.release()
		}
	}
	return st
}

func (p *VulkanProgram) current() *vulkanState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *VulkanProgram) setEvent(ev LinkEvent) LinkEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.event = ev
	return ev
}

// Link compiles every attached stage concurrently: GLSL to SPIR-V, then
// decoration patching, then module creation.
func (p *VulkanProgram) Link(ctx context.Context, in *link.Input, res *link.Resources, log *link.InfoLog) LinkEvent {
	opts := p.backend.opts
	infos := AssignVariableInfo(res, AssignOptions{EmulateTransformFeedback: opts.EmulateTransformFeedback})
	st := p.begin(res, infos)

	var capture *xfbCapture
	last, hasLast := lastVertexStage(res.Stages)
	if len(res.TransformFeedbackVaryings) > 0 {
		if opts.EmulateTransformFeedback && hasLast {
			capture = newXfbCapture(res, in.Shader(last), infos)
		} else if log != nil {
			log.Printf("Transform feedback is not emulated; captured varyings are not written.")
		}
	}

	var tasks []Task
	for _, s := range res.Stages.Stages() {
		c := in.Shader(s)
		if c == nil {
			continue
		}
		var stageCapture *xfbCapture
		if hasLast && s == last {
			stageCapture = capture
		}
		src := substituteXfb(c.Source, stageCapture)
		tasks = append(tasks, func(ctx context.Context) error {
			return p.buildStage(ctx, st, s, src)
		})
	}
	logging.Logger().Debug("glesvk: backend link started", "stages", res.Stages.String(), "bindings", len(infos))
	return p.setEvent(Go(ctx, opts.MaxParallelCompiles, tasks...))
}

func (p *VulkanProgram) buildStage(ctx context.Context, st *vulkanState, s shader.Stage, src string) error {
	words, err := p.backend.compiler.Compile(ctx, s, src)
	if err != nil {
		return &Error{Stage: s, Op: "compile", Err: err}
	}
	code, err := spirv.Transform(words, st.infos.Decorations(s), spirv.TransformOptions{
		StripDebugInfo: p.backend.opts.StripDebugInfo,
	})
	if err != nil {
		return &Error{Stage: s, Op: "transform", Err: err}
	}
	return p.createModule(ctx, st, s, code)
}

func (p *VulkanProgram) createModule(ctx context.Context, st *vulkanState, s shader.Stage, code []uint32) error {
	mod, err := p.backend.modules.CreateShaderModule(ctx, &ShaderModuleDescriptor{
		Label: s.String(),
		Stage: s.Visibility(),
		Code:  code,
	})
	if err != nil {
		return &Error{Stage: s, Op: "create module", Err: err}
	}
	st.setStage(s, &vulkanStage{code: code, module: mod})
	return nil
}

type vulkanStageBlob struct {
	Stage shader.Stage `msgpack:"stage"`
	Code  []uint32     `msgpack:"code"`
}

type vulkanBlob struct {
	Version   int               `msgpack:"version"`
	Variables VariableInfoMap   `msgpack:"variables"`
	Stages    []vulkanStageBlob `msgpack:"stages"`
}

// ErrBlobVersion is returned by Load for a blob of another format version.
var ErrBlobVersion = errors.New("backend: program blob version mismatch")

// Load restores a saved program and recreates its shader modules.
func (p *VulkanProgram) Load(ctx context.Context, res *link.Resources, blob []byte) (LinkEvent, error) {
	var b vulkanBlob
	if err := msgpack.Unmarshal(blob, &b); err != nil {
		return nil, fmt.Errorf("backend: decode vulkan program: %w", err)
	}
	if b.Version != vulkanBlobVersion {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrBlobVersion, b.Version, vulkanBlobVersion)
	}
	for _, sb := range b.Stages {
		if int(sb.Stage) >= shader.StageCount || !res.Stages.Has(sb.Stage) {
			return nil, fmt.Errorf("backend: blob has code for unlinked %s stage", sb.Stage)
		}
	}
	if b.Variables == nil {
		b.Variables = make(VariableInfoMap)
	}
	st := p.begin(res, b.Variables)

	tasks := make([]Task, 0, len(b.Stages))
	for _, sb := range b.Stages {
		tasks = append(tasks, func(ctx context.Context) error {
			return p.createModule(ctx, st, sb.Stage, sb.Code)
		})
	}
	return p.setEvent(Go(ctx, p.backend.opts.MaxParallelCompiles, tasks...)), nil
}

// Save serializes the variable placement and final SPIR-V of every
// stage. It fails while a link is running.
func (p *VulkanProgram) Save() ([]byte, error) {
	p.mu.Lock()
	st, ev := p.state, p.event
	p.mu.Unlock()
	if st == nil {
		return nil, errors.New("backend: program not linked")
	}
	if ev != nil && ev.IsLinking() {
		return nil, errors.New("backend: program is linking")
	}
	b := vulkanBlob{Version: vulkanBlobVersion, Variables: st.infos}
	for _, s := range shader.AllStages {
		if vs := st.stage(s); vs != nil {
			b.Stages = append(b.Stages, vulkanStageBlob{Stage: s, Code: vs.code})
		}
	}
	return msgpack.Marshal(&b)
}

// MarkUnusedUniformLocations ignores locations of default uniforms that
// no stage block holds and flags samplers without a descriptor.
func (p *VulkanProgram) MarkUnusedUniformLocations(res *link.Resources) {
	st := p.current()
	if st == nil {
		return
	}
	for i := range res.UniformLocations {
		l := &res.UniformLocations[i]
		if !l.Used() || l.Ignored || !res.DefaultRange.Contains(l.Index) {
			continue
		}
		if res.Uniforms[l.Index].IsBuiltIn() || !st.uniforms.has(l.Index) {
			l.MarkIgnored()
		}
	}
	for i := res.SamplerRange.Low; i < res.SamplerRange.High; i++ {
		if _, ok := st.infos[baseName(res.Uniforms[i].MappedName)]; !ok {
			res.SamplerBindings[res.SamplerIndex(i)].Unreferenced = true
		}
	}
}

// SetUniform writes default uniform values into the block of every
// stage that uses the uniform.
func (p *VulkanProgram) SetUniform(index, arrayIndex uint32, values []uint32) error {
	st := p.current()
	if st == nil {
		return ErrNoUniform
	}
	return st.uniforms.set(index, arrayIndex, values)
}

// Uniform reads default uniform values from the first stage using it.
func (p *VulkanProgram) Uniform(index, arrayIndex uint32, dst []uint32) error {
	st := p.current()
	if st == nil {
		return ErrNoUniform
	}
	return st.uniforms.get(index, arrayIndex, dst)
}

// VariableInfo returns the placement of every interface variable.
func (p *VulkanProgram) VariableInfo() VariableInfoMap {
	if st := p.current(); st != nil {
		return st.infos
	}
	return nil
}

// Layouts returns the descriptor set layouts.
func (p *VulkanProgram) Layouts() DescriptorSetLayouts {
	if st := p.current(); st != nil {
		return st.layouts
	}
	return DescriptorSetLayouts{}
}

// Code returns the final SPIR-V of stage, or nil.
func (p *VulkanProgram) Code(s shader.Stage) []uint32 {
	if st := p.current(); st != nil {
		if vs := st.stage(s); vs != nil {
			return vs.code
		}
	}
	return nil
}

// Module returns the shader module of stage, or nil.
func (p *VulkanProgram) Module(s shader.Stage) ShaderModule {
	if st := p.current(); st != nil {
		if vs := st.stage(s); vs != nil {
			return vs.module
		}
	}
	return nil
}

// DirtyUniformStages returns the stages whose default uniform block
// changed since it was last read with UniformData.
func (p *VulkanProgram) DirtyUniformStages() shader.StageMask {
	if st := p.current(); st != nil {
		return st.uniforms.dirtyStages()
	}
	return 0
}

// UniformData returns a copy of the default uniform block of stage and
// clears its dirty flag.
func (p *VulkanProgram) UniformData(s shader.Stage) ([]byte, bool) {
	if st := p.current(); st != nil {
		return st.uniforms.snapshot(s)
	}
	return nil, false
}

// Release frees the shader modules.
func (p *VulkanProgram) Release() {
	p.mu.Lock()
	st := p.state
	p.state, p.event = nil, nil
	p.mu.Unlock()
	if st != nil {
		st.release()
	}
}
