package program

import (
	"fmt"

	"github.com/gogpu/glesvk/link"
	"github.com/gogpu/glesvk/shader"
	"github.com/gogpu/glesvk/stream"
)

// locationBound is the longest uniform location table a link under c
// can produce: explicit locations stay below MaxUniformLocations and
// every element of a scalar array in any stage may take its own slot.
func locationBound(c *link.Caps) int {
	n := 0
	for _, v := range c.MaxUniformVectors {
		n += 4 * v
	}
	return max(c.MaxUniformLocations, n)
}

// elementCount returns the array size product of v, failing once it
// passes limit.
func elementCount(v *shader.Variable, limit int) (int, error) {
	n := 1
	for _, s := range v.ArraySizes {
		if s == 0 || int64(s) > int64(limit) || n*int(s) > limit {
			return 0, fmt.Errorf("%w: %s array size %v", stream.ErrCorrupt, v.Name, v.ArraySizes)
		}
		n *= int(s)
	}
	return n, nil
}

func checkRange(name string, rg link.Range, n int) error {
	if int64(rg.High) > int64(n) {
		return fmt.Errorf("%w: %s range [%d, %d) past %d uniforms", stream.ErrCorrupt, name, rg.Low, rg.High, n)
	}
	return nil
}

func checkIndexes(name string, idx []uint32, n int) error {
	for _, i := range idx {
		if int64(i) >= int64(n) {
			return fmt.Errorf("%w: %s member %d past %d", stream.ErrCorrupt, name, i, n)
		}
	}
	return nil
}

func checkLocations(name string, locs []link.VariableLocation, elements []int) error {
	for loc, l := range locs {
		if !l.Used() {
			continue
		}
		if int64(l.Index) >= int64(len(elements)) || int64(l.ArrayIndex) >= int64(elements[l.Index]) {
			return fmt.Errorf("%w: %s location %d refers to element %d of resource %d",
				stream.ErrCorrupt, name, loc, l.ArrayIndex, l.Index)
		}
	}
	return nil
}

// checkResources rejects decoded resources whose indexes, ranges or
// array sizes fall outside their own tables or past maxLocations. A
// binary passing it can be handed to a backend without bounds checks.
func checkResources(res *link.Resources, maxLocations int) error {
	if len(res.UniformLocations) > maxLocations {
		return fmt.Errorf("%w: %d uniform locations, limit %d", stream.ErrCorrupt, len(res.UniformLocations), maxLocations)
	}
	elements := make([]int, len(res.Uniforms))
	for i := range res.Uniforms {
		n, err := elementCount(&res.Uniforms[i].Variable, maxLocations)
		if err != nil {
			return err
		}
		elements[i] = n
	}
	if err := checkLocations("uniform", res.UniformLocations, elements); err != nil {
		return err
	}
	for name, rg := range map[string]link.Range{
		"default": res.DefaultRange, "sampler": res.SamplerRange,
		"image": res.ImageRange, "atomic counter": res.AtomicCounterRange,
	} {
		if err := checkRange(name, rg, len(res.Uniforms)); err != nil {
			return err
		}
	}
	for i := range res.AtomicCounterBuffers {
		if err := checkIndexes("atomic counter buffer", res.AtomicCounterBuffers[i].MemberIndexes, len(res.Uniforms)); err != nil {
			return err
		}
	}

	for i := range res.BlockUniforms {
		if _, err := elementCount(&res.BlockUniforms[i].Variable, maxLocations); err != nil {
			return err
		}
	}
	for i := range res.UniformBlocks {
		if err := checkIndexes("uniform block", res.UniformBlocks[i].MemberIndexes, len(res.BlockUniforms)); err != nil {
			return err
		}
	}
	for i := range res.StorageBlocks {
		if err := checkIndexes("storage block", res.StorageBlocks[i].MemberIndexes, len(res.BufferVariables)); err != nil {
			return err
		}
	}

	outputs := make([]int, len(res.Outputs))
	for i := range res.Outputs {
		n, err := elementCount(&res.Outputs[i], maxAttributeLocations)
		if err != nil {
			return err
		}
		outputs[i] = n
	}
	if len(res.OutputLocations) > maxAttributeLocations || len(res.SecondaryOutputLocations) > maxAttributeLocations {
		return fmt.Errorf("%w: %d output locations", stream.ErrCorrupt, len(res.OutputLocations))
	}
	if err := checkLocations("output", res.OutputLocations, outputs); err != nil {
		return err
	}
	if err := checkLocations("secondary output", res.SecondaryOutputLocations, outputs); err != nil {
		return err
	}
	for i := range res.Attributes {
		if _, err := elementCount(&res.Attributes[i], maxAttributeLocations); err != nil {
			return err
		}
	}
	return nil
}

// maxAttributeLocations bounds attribute and output arrays; location
// masks are 64 bits wide.
const maxAttributeLocations = 64
