// Package glesvk translates GLSL ES shaders into Vulkan-flavoured GLSL
// and links them into programs whose resources carry Vulkan descriptor
// bindings.
//
// The pipeline has two halves:
//   - Translation: a loaded shader tree is rewritten by the passes in
//     package passes and emitted as GLSL 450 by package glsl, producing
//     a shader.Compiled record with every interface variable
//   - Linking: a program.Program matches the records of its attached
//     shaders, assigns locations and resource indices, and hands the
//     result to a backend that builds the pipeline state
//
// Example usage:
//
//	compiled, err := glesvk.Translate(ctx, tree, symbols, glesvk.DefaultOptions())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	p := glesvk.NewProgram(backend.Null{})
//	_ = p.AttachShader(compiled)
//	if err := p.Link(ctx); err != nil {
//	    log.Fatal(p.InfoLog())
//	}
//	if err := p.ResolveLink(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// By default nothing is logged; SetLogger routes the diagnostics of all
// sub-packages to a slog.Logger.
package glesvk

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gogpu/glesvk/backend"
	"github.com/gogpu/glesvk/config"
	"github.com/gogpu/glesvk/internal/logging"
	"github.com/gogpu/glesvk/ir"
	"github.com/gogpu/glesvk/program"
	"github.com/gogpu/glesvk/shader"
	"github.com/gogpu/glesvk/translator"
)

// Version is the module version reported by the command-line tool.
const Version = "0.1.0-dev"

// SetLogger configures the logger for glesvk and all its sub-packages.
// Pass nil to restore the silent default. It is safe for concurrent use.
//
// Log levels used by glesvk:
//   - [slog.LevelDebug]: pass and linker steps, cache misses
//   - [slog.LevelInfo]: link and cache lifecycle events
//   - [slog.LevelWarn]: non-fatal problems (cache write failures,
//     rejected cached binaries, failed translations)
func SetLogger(l *slog.Logger) {
	logging.Set(l)
}

// Logger returns the current logger.
func Logger() *slog.Logger {
	return logging.Logger()
}

// DefaultOptions returns the translation options of config.Default.
func DefaultOptions() translator.Options {
	cfg := config.Default()
	return cfg.CompileOptions()
}

// Translate runs the translator on a loaded shader tree. The stage and
// shader version are those of symbols. On a shader error the returned
// record has Compiled false and carries the info log.
func Translate(ctx context.Context, tree *ir.Tree, symbols *ir.SymbolTable, opts translator.Options, topts ...translator.Option) (*shader.Compiled, error) {
	if symbols == nil {
		return nil, fmt.Errorf("glesvk: nil symbol table")
	}
	t := translator.New(symbols.Stage(), topts...)
	if err := t.Load(tree, symbols, symbols.Version()); err != nil {
		return nil, err
	}
	return t.Translate(ctx, opts)
}

// NewProgram returns an unlinked program backed by factory.
func NewProgram(factory backend.Factory, opts ...program.Option) *program.Program {
	return program.New(factory, opts...)
}

// NewProgramFromConfig returns a program using the caps and cache of
// cfg. The cache is opened on every call; share one BlobCache across
// programs with program.WithCache instead when linking many programs.
func NewProgramFromConfig(factory backend.Factory, cfg *config.Config, opts ...program.Option) (*program.Program, error) {
	c, err := cfg.OpenCache()
	if err != nil {
		return nil, err
	}
	base := []program.Option{program.WithCaps(cfg.Caps())}
	if c != nil {
		base = append(base, program.WithCache(c))
	}
	return program.New(factory, append(base, opts...)...), nil
}
