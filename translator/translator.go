// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package translator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gogpu/glesvk/glsl"
	"github.com/gogpu/glesvk/internal/logging"
	"github.com/gogpu/glesvk/ir"
	"github.com/gogpu/glesvk/passes"
	"github.com/gogpu/glesvk/shader"
)

// State is the lifecycle state of a Translator.
type State uint8

const (
	StateUnparsed State = iota
	StateParsed
	StateTranslating
	StateTranslated
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateUnparsed:
		return "unparsed"
	case StateParsed:
		return "parsed"
	case StateTranslating:
		return "translating"
	case StateTranslated:
		return "translated"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", s)
	}
}

// Layouts are the stage-wide layout qualifiers the parser found. They
// are not part of the tree.
type Layouts struct {
	Geometry           shader.GeometryLayout
	WorkGroupSize      shader.WorkGroupSize
	EarlyFragmentTests bool
	NumViews           int
}

// Options configures one translation.
type Options struct {
	// Passes selects the optional rewrites.
	Passes passes.Options

	// HashFunction, HashAllNames and MaxIdentifierLength control user
	// identifier mapping in the output.
	HashFunction        glsl.HashFunction
	HashAllNames        bool
	MaxIdentifierLength int

	// SkipValidation turns off the tree check that runs after every
	// pass that changed the tree. A failed check is an internal error.
	SkipValidation bool

	// Extensions are required by the output.
	Extensions []string

	Layouts Layouts
}

func (o *Options) nameOptions() glsl.Options {
	return glsl.Options{
		HashFunction:        o.HashFunction,
		HashAllNames:        o.HashAllNames,
		MaxIdentifierLength: o.MaxIdentifierLength,
	}
}

// Option configures a Translator at construction.
type Option func(*Translator)

// WithResources sets the implementation limits. The default is
// ir.DefaultResources.
func WithResources(res ir.Resources) Option {
	return func(t *Translator) { t.resources = res }
}

// Translator turns one loaded shader tree into Vulkan GLSL and its
// introspection record. A Translator is used for one shader only and is
// not safe for concurrent use.
type Translator struct {
	stage     shader.Stage
	resources ir.Resources
	state     State

	tree    *ir.Tree
	symbols *ir.SymbolTable
	version int

	infoLog     strings.Builder
	translation glsl.TranslationInfo
}

// New returns an unparsed translator for stage.
func New(stage shader.Stage, opts ...Option) *Translator {
	t := &Translator{stage: stage, resources: ir.DefaultResources()}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Stage returns the shader stage.
func (t *Translator) Stage() shader.Stage { return t.stage }

// State returns the current state.
func (t *Translator) State() State { return t.state }

// InfoLog returns the diagnostics of the last translation.
func (t *Translator) InfoLog() string { return t.infoLog.String() }

// Tree returns the loaded tree. After translation it holds the rewritten
// form.
func (t *Translator) Tree() *ir.Tree { return t.tree }

// TranslationInfo returns the name map and bindings of the output.
func (t *Translator) TranslationInfo() glsl.TranslationInfo { return t.translation }

// Load hands the translator a parsed shader.
func (t *Translator) Load(tree *ir.Tree, symbols *ir.SymbolTable, version int) error {
	if t.state != StateUnparsed {
		return t.invalidState("Load")
	}
	if tree == nil || symbols == nil {
		return &Error{Kind: ErrInvalidState, Message: "Load: nil tree or symbol table"}
	}
	if symbols.Stage() != t.stage {
		return &Error{Kind: ErrInvalidState, Message: fmt.Sprintf("Load: symbol table is for %s, translator for %s", symbols.Stage(), t.stage)}
	}
	if _, _, ok := tree.FindMain(); !ok {
		return &Error{Kind: ErrInvalidState, Message: "Load: no main function"}
	}
	t.tree = tree
	t.symbols = symbols
	t.version = version
	t.state = StateParsed
	return nil
}

// Translate runs the rewrite passes and emits GLSL. On failure the
// returned record has Compiled false and carries the info log.
func (t *Translator) Translate(ctx context.Context, opts Options) (*shader.Compiled, error) {
	if t.state != StateParsed {
		return nil, t.invalidState("Translate")
	}
	t.state = StateTranslating
	log := logging.Logger()

	info := Collect(t.tree, t.stage, t.version, opts.nameOptions(), opts.Layouts)
	if err := t.checkLimits(info); err != nil {
		return t.fail(info, err)
	}
	if err := ctx.Err(); err != nil {
		return t.fail(info, err)
	}

	c := passes.NewCompile(info, t.resources)
	validate := func(step string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if opts.SkipValidation {
			return nil
		}
		errs, err := ir.Validate(t.tree)
		if err != nil {
			return &Error{Kind: ErrInternal, Pass: step, Message: err.Error(), Err: err}
		}
		if len(errs) > 0 {
			return &Error{Kind: ErrInternal, Pass: step, Message: errs[0].Error(), Err: errs[0]}
		}
		return nil
	}
	if err := passes.Run(c, t.tree, t.symbols, opts.Passes, validate); err != nil {
		return t.fail(info, classify(err))
	}

	src, tinfo, err := glsl.Compile(t.tree, glsl.Options{
		Stage:               t.stage,
		Extensions:          opts.Extensions,
		HashFunction:        opts.HashFunction,
		HashAllNames:        opts.HashAllNames,
		MaxIdentifierLength: opts.MaxIdentifierLength,
		XfbPlaceholders:     c.XfbPlaceholders,
		EarlyFragmentTests:  c.Header.EarlyFragmentTests,
		Geometry:            c.Header.Geometry,
		WorkGroupSize:       c.Header.WorkGroupSize,
	})
	if err != nil {
		return t.fail(info, &Error{Kind: ErrInternal, Pass: "glsl", Message: err.Error(), Err: err})
	}

	info.Source = src
	info.Compiled = true
	if c.Header.Geometry != nil {
		info.Geometry = *c.Header.Geometry
	}
	t.translation = tinfo
	t.state = StateTranslated
	log.Debug("shader translated", "stage", t.stage, "version", t.version, "bytes", len(src))
	return info, nil
}

// fail records err in the info log and moves to StateFailed.
func (t *Translator) fail(info *shader.Compiled, err error) (*shader.Compiled, error) {
	t.state = StateFailed
	fmt.Fprintf(&t.infoLog, "ERROR: %v\n", err)
	info.Compiled = false
	info.InfoLog = t.infoLog.String()
	logging.Logger().Warn("shader translation failed", "stage", t.stage, "error", err)
	return info, err
}

func (t *Translator) invalidState(op string) error {
	return &Error{Kind: ErrInvalidState, Message: fmt.Sprintf("%s called in state %s", op, t.state)}
}

// classify maps a pass failure to an Error.
func classify(err error) error {
	var te *Error
	if errors.As(err, &te) {
		return err
	}
	var ie *passes.InternalError
	if errors.As(err, &ie) {
		return &Error{Kind: ErrInternal, Pass: ie.Pass, Message: ie.Message, Err: err}
	}
	if errors.Is(err, passes.ErrUnsupported) {
		pass, _, _ := strings.Cut(err.Error(), ":")
		return &Error{Kind: ErrUnsupported, Pass: pass, Message: err.Error(), Err: err}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &Error{Kind: ErrInternal, Message: err.Error(), Err: err}
}

// checkLimits rejects shaders whose default uniforms or varyings exceed
// the vector limits.
func (t *Translator) checkLimits(info *shader.Compiled) error {
	maxUniforms := t.resources.MaxVertexUniformVectors
	if t.stage == shader.StageFragment {
		maxUniforms = t.resources.MaxFragmentUniformVectors
	}
	if n := vectorCount(info.Uniforms, true); maxUniforms > 0 && n > maxUniforms {
		return &Error{Kind: ErrResourceLimit, Message: fmt.Sprintf("too many uniforms: %d vectors, limit %d", n, maxUniforms)}
	}
	varyings := info.OutputVaryings
	if t.stage == shader.StageFragment {
		varyings = info.InputVaryings
	}
	if n := vectorCount(varyings, false); t.resources.MaxVaryingVectors > 0 && n > t.resources.MaxVaryingVectors {
		return &Error{Kind: ErrResourceLimit, Message: fmt.Sprintf("too many varyings: %d vectors, limit %d", n, t.resources.MaxVaryingVectors)}
	}
	return nil
}

// vectorCount sums the registers of active user variables.
func vectorCount(vars []shader.Variable, skipOpaque bool) int {
	n := 0
	for i := range vars {
		v := &vars[i]
		if !v.Active || v.IsBuiltIn() || (skipOpaque && v.Type.IsOpaque()) {
			continue
		}
		n += registers(v) * int(max(v.ArraySizeProduct(), 1))
	}
	return n
}

func registers(v *shader.Variable) int {
	if !v.IsStruct() {
		return v.Type.Registers()
	}
	n := 0
	for i := range v.Fields {
		f := &v.Fields[i]
		if f.Type.IsOpaque() {
			continue
		}
		n += registers(f) * int(max(f.ArraySizeProduct(), 1))
	}
	return n
}
