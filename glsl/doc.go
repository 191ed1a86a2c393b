// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Package glsl writes Vulkan GLSL 4.50 source from a rewritten ir.Tree.
//
// The tree handed to Compile has already been through the translation
// passes, so every resource carries its set and binding and every
// built-in needing emulation has been replaced. The writer only spells
// out what is there:
//
//	source, info, err := glsl.Compile(tree, glsl.Options{
//	    Stage:        shader.StageFragment,
//	    HashFunction: glsl.FNV64a,
//	})
//
// # Names
//
// User identifiers are prefixed with "_u" so they can never collide with
// reserved words or internal names. When a HashFunction is set, names
// longer than MaxIdentifierLength (or all names, with HashAllNames) are
// written as "_h" followed by 16 hex digits. Internal and built-in names
// are written verbatim. TranslationInfo.NameMap records each mapping.
//
// # Expressions
//
// Every operator is parenthesized. Legacy texture functions such as
// texture2D are written with their core names.
//
// # Transform feedback
//
// With XfbPlaceholders set, the marker XfbDeclPlaceholder follows the
// header and XfbOutPlaceholder appears where outputs are captured, for
// the backend to substitute.
package glsl
