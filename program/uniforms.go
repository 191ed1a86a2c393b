package program

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/gogpu/glesvk/link"
	"github.com/gogpu/glesvk/shader"
)

var (
	// ErrInvalidLocation is returned for a location the program does not
	// have.
	ErrInvalidLocation = errors.New("program: invalid uniform location")
	// ErrUniformType is returned when the setter does not match the
	// uniform's type.
	ErrUniformType = errors.New("program: uniform type mismatch")
)

// valueKind is the type of the values passed to a setter or getter.
type valueKind uint8

const (
	kindFloat valueKind = iota
	kindInt
	kindUint
	kindBool
)

func (k valueKind) String() string {
	switch k {
	case kindFloat:
		return "float"
	case kindInt:
		return "int"
	case kindUint:
		return "uint"
	default:
		return "bool"
	}
}

// storageKind is how values of t are stored.
func storageKind(t shader.GLType) valueKind {
	switch {
	case t.IsBool():
		return kindBool
	case t.IsSampler():
		return kindInt
	case t.Component() == shader.ComponentFloat:
		return kindFloat
	case t.Component() == shader.ComponentUInt:
		return kindUint
	default:
		return kindInt
	}
}

// convert turns a 32-bit value of kind from into kind to.
func convert(v uint32, from, to valueKind) uint32 {
	if from == to {
		return v
	}
	switch to {
	case kindBool:
		if from == kindFloat {
			return b2u(math.Float32frombits(v) != 0)
		}
		return b2u(v != 0)
	case kindFloat:
		switch from {
		case kindInt:
			return math.Float32bits(float32(int32(v))) //nolint:gosec // G115: bit pattern of a GLSL int
		default:
			return math.Float32bits(float32(v))
		}
	default:
		if from == kindFloat {
			f := math.Round(float64(math.Float32frombits(v)))
			if to == kindUint {
				return uint32(max(0, min(f, math.MaxUint32)))
			}
			return uint32(int32(max(math.MinInt32, min(f, math.MaxInt32)))) //nolint:gosec // G115: clamped above
		}
		return v
	}
}

func b2u(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// uniformTarget is the uniform behind a location.
type uniformTarget struct {
	exe     *Executable
	loc     link.VariableLocation
	uniform *link.LinkedUniform
}

func (p *Program) target(location int) (uniformTarget, error) {
	exe := p.exe.Load()
	if exe == nil || p.state != Linked {
		return uniformTarget{}, ErrNotLinked
	}
	if location < 0 || location >= len(exe.UniformLocations) || !exe.UniformLocations[location].Used() {
		return uniformTarget{}, fmt.Errorf("%w: %d", ErrInvalidLocation, location)
	}
	l := exe.UniformLocations[location]
	return uniformTarget{exe: exe, loc: l, uniform: &exe.Uniforms[l.Index]}, nil
}

// setUniform checks values against the uniform at location and stores
// them. Location -1 and ignored locations drop the write.
func (p *Program) setUniform(location int, kind valueKind, matrix bool, values []uint32) error {
	if location == -1 {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.resolveIfDone()
	tg, err := p.target(location)
	if err != nil {
		return err
	}
	if tg.loc.Ignored {
		return nil
	}
	u := tg.uniform
	t := u.Type
	comps := max(1, t.ComponentCount())
	if len(values) == 0 || len(values)%comps != 0 {
		return fmt.Errorf("%w: %d values for %s %s", ErrUniformType, len(values), t, u.Name)
	}
	if len(values) > comps && !u.IsArray() {
		return fmt.Errorf("%w: %s is not an array", ErrUniformType, u.Name)
	}
	if err := checkSetter(t, kind, matrix); err != nil {
		return fmt.Errorf("%w: %s", err, u.Name)
	}

	store := storageKind(t)
	if t.IsSampler() {
		return p.setSamplerUnits(tg, values)
	}
	raw := make([]uint32, len(values))
	for i, v := range values {
		raw[i] = convert(v, kind, store)
	}
	return p.impl.SetUniform(tg.loc.Index, tg.loc.ArrayIndex, raw)
}

func checkSetter(t shader.GLType, kind valueKind, matrix bool) error {
	switch {
	case t.IsImage() || t.IsAtomicCounter():
		return fmt.Errorf("%w: %s cannot be set", ErrUniformType, t)
	case t.IsMatrix() != matrix:
		return fmt.Errorf("%w: matrix setter mismatch for %s", ErrUniformType, t)
	case t.IsBool():
		return nil
	case storageKind(t) != kind:
		return fmt.Errorf("%w: %s values for %s", ErrUniformType, kind, t)
	}
	return nil
}

// setSamplerUnits binds texture units to sampler array elements.
func (p *Program) setSamplerUnits(tg uniformTarget, values []uint32) error {
	units := p.samplerUnits[tg.exe.SamplerIndex(tg.loc.Index)]
	for i, v := range values {
		unit := int(int32(v)) //nolint:gosec // G115: values come from SetUniformInts
		if unit < 0 || unit >= p.opts.caps.MaxCombinedTextureImageUnits {
			return fmt.Errorf("%w: texture unit %d out of range", ErrUniformType, unit)
		}
		e := int(tg.loc.ArrayIndex) + i
		if e >= len(units) {
			break
		}
		units[e] = unit
	}
	return nil
}

// getUniform reads count elements worth of values at location into dst
// converted to kind.
func (p *Program) getUniform(location int, kind valueKind, dst []uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.resolveIfDone()
	tg, err := p.target(location)
	if err != nil {
		return err
	}
	t := tg.uniform.Type
	if len(dst) < max(1, t.ComponentCount()) {
		return fmt.Errorf("%w: destination holds %d values, %s needs %d", ErrUniformType, len(dst), t, t.ComponentCount())
	}
	dst = dst[:max(1, t.ComponentCount())]
	switch {
	case tg.loc.Ignored:
		clear(dst)
		return nil
	case t.IsSampler():
		units := p.samplerUnits[tg.exe.SamplerIndex(tg.loc.Index)]
		dst[0] = convert(uint32(units[tg.loc.ArrayIndex]), kindInt, kind) //nolint:gosec // G115: unit is non-negative
		return nil
	case t.IsOpaque():
		return fmt.Errorf("%w: %s has no value", ErrUniformType, t)
	}
	if err := p.impl.Uniform(tg.loc.Index, tg.loc.ArrayIndex, dst); err != nil {
		return err
	}
	store := storageKind(t)
	for i, v := range dst {
		dst[i] = convert(v, store, kind)
	}
	return nil
}

// resolveIfDone resolves a pending link whose backend work has finished.
// Uniform calls never block on a running link.
func (p *Program) resolveIfDone() error {
	if p.pending == nil || p.pending.event.IsLinking() {
		return nil
	}
	return p.resolve(context.Background())
}

// ===== Setters =====

// SetUniformFloats sets a float uniform, vector or array at location.
func (p *Program) SetUniformFloats(location int, values ...float32) error {
	raw := make([]uint32, len(values))
	for i, v := range values {
		raw[i] = math.Float32bits(v)
	}
	return p.setUniform(location, kindFloat, false, raw)
}

// SetUniformInts sets an int, bool or sampler uniform at location. For
// samplers the values are texture units.
func (p *Program) SetUniformInts(location int, values ...int32) error {
	raw := make([]uint32, len(values))
	for i, v := range values {
		raw[i] = uint32(v) //nolint:gosec // G115: bit pattern preserved
	}
	return p.setUniform(location, kindInt, false, raw)
}

// SetUniformUints sets a uint or bool uniform at location.
func (p *Program) SetUniformUints(location int, values ...uint32) error {
	return p.setUniform(location, kindUint, false, append([]uint32(nil), values...))
}

// SetUniformMatrix sets a matrix uniform. values are column-major
// unless transpose is set.
func (p *Program) SetUniformMatrix(location int, transpose bool, values ...float32) error {
	raw := make([]uint32, len(values))
	for i, v := range values {
		raw[i] = math.Float32bits(v)
	}
	if transpose {
		p.mu.Lock()
		tg, err := p.target(location)
		p.mu.Unlock()
		if err == nil && tg.uniform.Type.IsMatrix() {
			raw = transposeMatrices(raw, tg.uniform.Type)
		}
	}
	return p.setUniform(location, kindFloat, true, raw)
}

// transposeMatrices converts row-major matrices of t to column-major.
func transposeMatrices(raw []uint32, t shader.GLType) []uint32 {
	cols, rows := t.ColumnCount(), t.RowCount()
	size := cols * rows
	out := make([]uint32, len(raw))
	for m := 0; m+size <= len(raw); m += size {
		for c := range cols {
			for r := range rows {
				out[m+c*rows+r] = raw[m+r*cols+c]
			}
		}
	}
	return out
}

// ===== Getters =====

// UniformFloats reads the uniform at location as floats into dst.
func (p *Program) UniformFloats(location int, dst []float32) error {
	raw := make([]uint32, len(dst))
	if err := p.getUniform(location, kindFloat, raw); err != nil {
		return err
	}
	for i := range dst {
		dst[i] = math.Float32frombits(raw[i])
	}
	return nil
}

// UniformInts reads the uniform at location as ints into dst.
func (p *Program) UniformInts(location int, dst []int32) error {
	raw := make([]uint32, len(dst))
	if err := p.getUniform(location, kindInt, raw); err != nil {
		return err
	}
	for i := range dst {
		dst[i] = int32(raw[i]) //nolint:gosec // G115: bit pattern preserved
	}
	return nil
}

// UniformUints reads the uniform at location as uints into dst.
func (p *Program) UniformUints(location int, dst []uint32) error {
	return p.getUniform(location, kindUint, dst)
}

// SamplerUnits returns the texture units currently bound to each
// sampler, indexed like Executable.SamplerBindings.
func (p *Program) SamplerUnits() [][]int {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([][]int, len(p.samplerUnits))
	for i, u := range p.samplerUnits {
		out[i] = append([]int(nil), u...)
	}
	return out
}
