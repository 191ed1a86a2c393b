// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Package translator drives the translation of one GLSL ES shader into
// Vulkan GLSL.
//
// A Translator moves through a fixed set of states:
//
//	Unparsed --Load--> Parsed --Translate--> Translating --> Translated
//	                                                     \-> Failed
//
// Load takes the tree and symbol table a parser produced. Translate
// collects the introspection record, checks resource limits, runs the
// passes for the stage and emits GLSL:
//
//	t := translator.New(shader.StageFragment)
//	if err := t.Load(tree, symbols, 300); err != nil {
//	    return err
//	}
//	compiled, err := t.Translate(ctx, translator.Options{HashFunction: glsl.FNV64a})
//
// Failures are reported as *Error. Internal errors mean a pass broke an
// invariant; they never describe a problem in the user's shader.
package translator
