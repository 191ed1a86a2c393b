package program

import (
	"crypto/sha256"

	"github.com/gogpu/glesvk/cache"
	"github.com/gogpu/glesvk/link"
	"github.com/gogpu/glesvk/shader"
	"github.com/gogpu/glesvk/stream"
)

// cacheKey hashes everything that determines the link result: the
// build, the client version, the device caps, the translated stages and
// every binding.
func cacheKey(fp Fingerprint, major, minor int, in *link.Input) cache.Key {
	w := stream.NewWriter()
	w.WriteFixed(fp[:])
	w.WriteInt(major)
	w.WriteInt(minor)
	writeCaps(w, &in.Caps)
	w.WriteBool(in.Limitations.NoVertexAttributeAliasing)
	for _, s := range shader.AllStages {
		c := in.Shader(s)
		if c == nil {
			w.WriteBool(false)
			continue
		}
		w.WriteBool(true)
		w.WriteInt(c.Version)
		w.WriteString(c.Source)
	}

	w.WriteLen(in.AttributeBindings.Len())
	for _, name := range in.AttributeBindings.Names() {
		w.WriteString(name)
		w.WriteInt(in.AttributeBindings.Lookup(name))
	}
	for _, b := range []*link.AliasedBindings{
		&in.UniformLocationBindings, &in.FragmentOutputLocations, &in.FragmentOutputIndexes,
	} {
		w.WriteLen(b.Len())
		for _, name := range b.Names() {
			w.WriteString(name)
			w.WriteInt(b.Lookup(name))
		}
	}

	w.WriteStrings(in.TransformFeedbackVaryings)
	w.WriteUint8(uint8(in.TransformFeedbackMode))
	w.WriteBool(in.Separable)
	w.WriteBool(in.WebGL)
	return sha256.Sum256(w.Bytes())
}

// writeCaps appends every limit the linker checks. A cached link is only
// valid for caps at least as loose as the ones it was validated against,
// so any difference is a different key.
func writeCaps(w *stream.Writer, c *link.Caps) {
	w.WriteInts([]int{
		c.MaxVertexAttributes,
		c.MaxVaryingVectors,
		c.MaxDrawBuffers,
		c.MaxDualSourceDrawBuffers,
		c.MaxCombinedTextureImageUnits,
		c.MaxCombinedImageUniforms,
		c.MaxCombinedAtomicCounters,
		c.MaxCombinedUniformBlocks,
		c.MaxCombinedStorageBlocks,
		c.MaxCombinedShaderOutputResources,
		c.MaxUniformLocations,
		c.MaxTransformFeedbackInterleavedComponents,
		c.MaxTransformFeedbackSeparateAttributes,
		c.MaxTransformFeedbackSeparateComponents,
	})
	for _, perStage := range [][shader.StageCount]int{
		c.MaxUniformVectors,
		c.MaxTextureImageUnits,
		c.MaxImageUniforms,
		c.MaxAtomicCounters,
		c.MaxUniformBlocks,
		c.MaxStorageBlocks,
	} {
		w.WriteInts(perStage[:])
	}
}
