package program

import (
	"context"

	"github.com/gogpu/glesvk/shader"
)

// Validate checks the program against the current sampler units: two
// active samplers of different texture types may not share a unit. The
// result is also written to the info log.
func (p *Program) Validate() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.resolve(context.Background())
	exe := p.exe.Load()
	if p.state != Linked || exe == nil {
		p.log.Printf("Program has not been successfully linked.")
		return ErrNotLinked
	}

	types := make(map[int]shader.TextureType)
	for i, b := range exe.SamplerBindings {
		if b.Unreferenced {
			continue
		}
		for _, unit := range p.samplerUnits[i] {
			prev, seen := types[unit]
			if seen && prev != b.TextureType {
				p.log.Printf("Samplers of conflicting types refer to the same texture image unit (%d).", unit)
				return ErrValidation
			}
			types[unit] = b.TextureType
		}
	}
	return nil
}
