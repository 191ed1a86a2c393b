// Package link resolves the interface of a program from its translated
// shaders.
//
// Link runs a fixed sequence of steps over the shader.Compiled records
// of the attached stages:
//
//  1. shader validation (stage combination, versions, layouts)
//  2. attributes: vertex input locations
//  3. varyings: cross-stage interface matching and transform feedback
//  4. uniforms: flattening, merging, locations and index ranges
//  5. interface blocks: limits, cross-stage matching, memory layout
//  6. global names: uniform/attribute/block field collisions
//  7. outputs: fragment output locations
//
// Each step either extends the Resources under construction or writes a
// message to the InfoLog and stops the link. The linker never touches
// the inputs; all results go to the returned Resources.
//
// # Uniform ordering
//
// The flat uniform list is ordered default-block uniforms, samplers,
// images, atomic counters. The four index ranges are carved from the
// back of the list in the reverse order, so every range is contiguous and
// callers can convert a uniform index into a sampler or image index by
// subtracting the range start.
//
// # Memory layout
//
// Interface block members get offsets and strides from the std140 or
// std430 rules (see Layout). Shared and packed blocks use std140.
package link
