// Package backend defines what a Program needs from a graphics backend
// and provides two implementations.
//
// A backend turns a linked program into device objects: it compiles the
// translated shaders, assigns descriptor sets and bindings to every
// resource, and keeps the default uniform data. Linking may finish
// asynchronously; Program.Link returns a LinkEvent that the caller
// waits on.
//
// # Implementations
//
// Null links synchronously and creates nothing. It stores uniform values
// so API-level behavior can be exercised without a device.
//
// Vulkan is a reference Vulkan-style backend built on two collaborators:
// a ShaderCompiler turning GLSL into SPIR-V and a ShaderModuleFactory
// creating device modules. Resources are laid out in four descriptor
// sets:
//
//	0  default uniform blocks and transform feedback buffers
//	1  combined texture samplers
//	2  uniform blocks, storage blocks, atomic counters and images
//	3  driver uniforms
//
// The compiled SPIR-V of each stage is patched with spirv.Transform so
// its decorations match the assignment.
package backend
