// Package passes rewrites a GLSL ES shader tree into a form that the
// Vulkan GLSL emitter can print.
//
// Each pass is a function over the tree that reports whether it changed
// anything. Steps returns the passes for a stage in the order they must
// run; Run applies them and validates the tree after every change.
//
// # Coordinate correction
//
// Built-ins whose convention differs between GL and Vulkan, such as
// gl_FragCoord and gl_PointCoord, are replaced by an internal copy that
// main initializes from the built-in with a flip and optional rotation
// read from the driver uniform block. A built-in is corrected at most
// once per compile.
//
// # Resources
//
// Passes that declare descriptors take their binding numbers from
// Compile.NextBinding, so bindings stay unique within a shader:
//
//	set 0: default uniforms
//	set 2: atomic counter buffers
//	set 3: driver uniforms
package passes
