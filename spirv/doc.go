// Package spirv reads, builds and patches SPIR-V binaries.
//
// The translator emits Vulkan GLSL; a ShaderCompiler collaborator turns
// that into SPIR-V. The backend then assigns final locations, bindings
// and descriptor sets, which this package writes into the binary with
// Transform, without recompiling.
//
// # Binary Writer
//
// ModuleBuilder constructs modules programmatically, mainly for tests
// and fake compilers:
//
//	builder := spirv.NewModuleBuilder(spirv.Version1_3)
//	builder.AddCapability(spirv.CapabilityShader)
//	builder.SetMemoryModel(spirv.AddressingModelLogical, spirv.MemoryModelGLSL450)
//
//	floatType := builder.AddTypeFloat(32)
//	vec4Type := builder.AddTypeVector(floatType, 4)
//
//	words := builder.Build()
//
// # Reading
//
// Parse validates the header and splits the stream into instructions:
//
//	m, err := spirv.Parse(words)
//	for _, inst := range m.Instructions {
//		...
//	}
//
// # Decoration Patching
//
// Transform rewrites the Location, Component, Binding and DescriptorSet
// decorations of variables named by OpName and preserves every other
// instruction word for word.
//
// # SPIR-V Structure
//
// SPIR-V modules consist of:
//   - Header (magic, version, generator, bound, schema)
//   - Capabilities, extensions and extended instruction imports
//   - Memory model, entry points and execution modes
//   - Debug information (strings, names)
//   - Annotations (decorations)
//   - Types, constants and global variables
//   - Functions (code)
//
// # References
//
// SPIR-V Specification: https://registry.khronos.org/SPIR-V/specs/unified1/SPIRV.html
package spirv
