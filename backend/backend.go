package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/glesvk/link"
	"github.com/gogpu/glesvk/shader"
)

// ErrDeviceLost reports that the device disappeared. It is fatal for the
// program being linked.
var ErrDeviceLost = errors.New("backend: device lost")

// Error reports a failed backend operation on one stage.
type Error struct {
	Stage shader.Stage
	Op    string
	Err   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("backend: %s shader: %s: %v", e.Stage, e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsDeviceLost reports whether err was caused by a lost device.
func IsDeviceLost(err error) bool {
	return errors.Is(err, ErrDeviceLost)
}

// ShaderCompiler compiles Vulkan GLSL into SPIR-V words.
type ShaderCompiler interface {
	Compile(ctx context.Context, stage shader.Stage, source string) ([]uint32, error)
}

// ShaderModuleDescriptor describes a shader module to create.
type ShaderModuleDescriptor struct {
	Label string
	Stage gputypes.ShaderStages
	Code  []uint32
}

// ShaderModule is a device shader module.
type ShaderModule interface {
	Release()
}

// ShaderModuleFactory creates device shader modules.
type ShaderModuleFactory interface {
	CreateShaderModule(ctx context.Context, desc *ShaderModuleDescriptor) (ShaderModule, error)
}

// LinkEvent is the pending result of a backend link.
type LinkEvent interface {
	// Wait blocks until the link finished or ctx is done. Cancelling ctx
	// stops the wait, not the work.
	Wait(ctx context.Context) error
	// IsLinking reports whether the link is still running.
	IsLinking() bool
}

// Program is the backend half of a program object.
type Program interface {
	// Link starts building device objects for the linked program.
	// Synchronous diagnostics go to log; failures of the asynchronous
	// part are reported by the event.
	Link(ctx context.Context, in *link.Input, res *link.Resources, log *link.InfoLog) LinkEvent

	// Load restores the state written by Save for res. A blob the
	// backend cannot use is an error; the caller then links normally.
	Load(ctx context.Context, res *link.Resources, blob []byte) (LinkEvent, error)

	// Save serializes the backend state of a linked program.
	Save() ([]byte, error)

	// MarkUnusedUniformLocations flags the uniform locations and
	// samplers of res that no stage consumes.
	MarkUnusedUniformLocations(res *link.Resources)

	// SetUniform writes values, raw 32-bit components, to consecutive
	// elements of default uniform index starting at arrayIndex.
	SetUniform(index, arrayIndex uint32, values []uint32) error

	// Uniform reads len(dst) components of default uniform index
	// starting at element arrayIndex.
	Uniform(index, arrayIndex uint32, dst []uint32) error

	// Release frees device objects.
	Release()
}

// Factory creates backend programs.
type Factory interface {
	NewProgram() Program
}
