package link

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/glesvk/shader"
)

// Caps are the device limits the linker validates against. Per-stage
// arrays are indexed by shader.Stage.
type Caps struct {
	MaxVertexAttributes int
	MaxVaryingVectors   int
	MaxDrawBuffers      int
	// MaxDualSourceDrawBuffers replaces MaxDrawBuffers when any output
	// uses index 1.
	MaxDualSourceDrawBuffers int

	MaxUniformVectors    [shader.StageCount]int
	MaxTextureImageUnits [shader.StageCount]int
	MaxImageUniforms     [shader.StageCount]int
	MaxAtomicCounters    [shader.StageCount]int
	MaxUniformBlocks     [shader.StageCount]int
	MaxStorageBlocks     [shader.StageCount]int

	MaxCombinedTextureImageUnits     int
	MaxCombinedImageUniforms         int
	MaxCombinedAtomicCounters        int
	MaxCombinedUniformBlocks         int
	MaxCombinedStorageBlocks         int
	MaxCombinedShaderOutputResources int
	MaxUniformLocations              int

	MaxTransformFeedbackInterleavedComponents int
	MaxTransformFeedbackSeparateAttributes    int
	MaxTransformFeedbackSeparateComponents    int
}

// Limitations are implementation restrictions that turn otherwise legal
// programs into link errors.
type Limitations struct {
	// NoVertexAttributeAliasing rejects attributes bound to overlapping
	// locations even for GLSL ES 1.00.
	NoVertexAttributeAliasing bool
}

// maxAttributeMaskBits bounds MaxVertexAttributes and MaxDrawBuffers so
// location sets fit in a uint64.
const maxAttributeMaskBits = 64

// DefaultCaps returns limits derived from the WebGPU default limits, with
// the GLES-only limits set to their ES 3.1 minimums.
func DefaultCaps() Caps {
	return CapsFromLimits(gputypes.DefaultLimits())
}

// CapsFromLimits maps device limits onto linker caps.
func CapsFromLimits(l gputypes.Limits) Caps {
	uniformVectors := int(l.MaxUniformBufferBindingSize / 16)
	if uniformVectors > 1024 {
		uniformVectors = 1024
	}
	textures := int(min(l.MaxSampledTexturesPerShaderStage, l.MaxSamplersPerShaderStage))
	images := int(l.MaxStorageTexturesPerShaderStage)
	storage := int(l.MaxStorageBuffersPerShaderStage)
	ubos := int(l.MaxUniformBuffersPerShaderStage)

	c := Caps{
		MaxVertexAttributes:      int(min(l.MaxVertexAttributes, maxAttributeMaskBits)),
		MaxVaryingVectors:        int(l.MaxInterStageShaderVariables),
		MaxDrawBuffers:           int(min(l.MaxColorAttachments, maxAttributeMaskBits)),
		MaxDualSourceDrawBuffers: 1,

		MaxCombinedTextureImageUnits:     textures * int(shader.StageCount),
		MaxCombinedImageUniforms:         images * int(shader.StageCount),
		MaxCombinedAtomicCounters:        8,
		MaxCombinedUniformBlocks:         ubos * int(shader.StageCount),
		MaxCombinedStorageBlocks:         storage * int(shader.StageCount),
		MaxCombinedShaderOutputResources: storage + images + int(l.MaxColorAttachments),
		MaxUniformLocations:              1024,

		MaxTransformFeedbackInterleavedComponents: 64,
		MaxTransformFeedbackSeparateAttributes:    4,
		MaxTransformFeedbackSeparateComponents:    4,
	}
	for _, s := range shader.AllStages {
		c.MaxUniformVectors[s] = uniformVectors
		c.MaxTextureImageUnits[s] = textures
		c.MaxImageUniforms[s] = images
		c.MaxAtomicCounters[s] = 8
		c.MaxUniformBlocks[s] = ubos
		c.MaxStorageBlocks[s] = storage
	}
	return c
}

// Validate rejects caps the linker cannot represent.
func (c *Caps) Validate() error {
	if c.MaxVertexAttributes < 1 || c.MaxVertexAttributes > maxAttributeMaskBits {
		return fmt.Errorf("link: MaxVertexAttributes %d out of range [1, %d]", c.MaxVertexAttributes, maxAttributeMaskBits)
	}
	if c.MaxDrawBuffers < 1 || c.MaxDrawBuffers > maxAttributeMaskBits {
		return fmt.Errorf("link: MaxDrawBuffers %d out of range [1, %d]", c.MaxDrawBuffers, maxAttributeMaskBits)
	}
	if c.MaxDualSourceDrawBuffers < 0 || c.MaxDualSourceDrawBuffers > c.MaxDrawBuffers {
		return fmt.Errorf("link: MaxDualSourceDrawBuffers %d exceeds MaxDrawBuffers %d", c.MaxDualSourceDrawBuffers, c.MaxDrawBuffers)
	}
	return nil
}
