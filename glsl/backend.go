// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package glsl

import (
	"fmt"
	"hash/fnv"

	"github.com/gogpu/glesvk/ir"
	"github.com/gogpu/glesvk/shader"
)

// DefaultVersion is the Vulkan GLSL version written by Compile.
const DefaultVersion = 450

// DefaultMaxIdentifierLength is the user name length above which names
// are hashed when a hash function is set.
const DefaultMaxIdentifierLength = 1024

// Placeholder statements replaced by the backend when transform
// feedback is emulated.
const (
	XfbDeclPlaceholder = "@@ XFB-DECL @@"
	XfbOutPlaceholder  = "@@ XFB-OUT @@"
)

// HashFunction maps a user identifier to a 64-bit hash.
type HashFunction func(name string) uint64

// FNV64a hashes names with 64-bit FNV-1a.
func FNV64a(name string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(name)) //nolint:errcheck // hash.Hash never fails
	return h.Sum64()
}

// Options configures GLSL code generation.
type Options struct {
	// Version is the #version number. Defaults to DefaultVersion.
	Version int

	// Stage selects the stage-specific header layouts.
	Stage shader.Stage

	// Extensions are written as "#extension NAME : require".
	Extensions []string

	// HashFunction, when set, replaces long user names with
	// "_h" followed by the 16 hex digits of the hash.
	HashFunction HashFunction

	// HashAllNames hashes every user name regardless of length.
	HashAllNames bool

	// MaxIdentifierLength defaults to DefaultMaxIdentifierLength.
	MaxIdentifierLength int

	// XfbPlaceholders writes the transform feedback declaration
	// placeholder after the header.
	XfbPlaceholders bool

	// EarlyFragmentTests writes layout(early_fragment_tests) in.
	EarlyFragmentTests bool

	// Geometry is the geometry shader layout; nil for other stages.
	Geometry *shader.GeometryLayout

	// WorkGroupSize is the compute local size.
	WorkGroupSize shader.WorkGroupSize
}

// Binding is a descriptor a declaration occupies.
type Binding struct {
	Name    string
	Set     int
	Binding int
}

// TranslationInfo contains metadata about the translation.
type TranslationInfo struct {
	// NameMap maps user identifiers to the names written.
	NameMap map[string]string

	// Bindings lists the descriptors declared, in declaration order.
	Bindings []Binding

	// XfbPlaceholders reports whether either placeholder was written.
	XfbPlaceholders bool

	// Extensions lists the extension directives written.
	Extensions []string
}

// Compile generates Vulkan GLSL source from a rewritten tree. The output
// depends only on the tree and options.
func Compile(tree *ir.Tree, options Options) (string, TranslationInfo, error) {
	if tree == nil {
		return "", TranslationInfo{}, fmt.Errorf("glsl: nil tree")
	}
	if options.Version == 0 {
		options.Version = DefaultVersion
	}
	if options.MaxIdentifierLength <= 0 {
		options.MaxIdentifierLength = DefaultMaxIdentifierLength
	}

	w := newWriter(tree, &options)
	if err := w.writeTree(); err != nil {
		return "", TranslationInfo{}, fmt.Errorf("glsl: %w", err)
	}

	info := TranslationInfo{
		NameMap:         w.names,
		Bindings:        w.bindings,
		XfbPlaceholders: w.xfbPlaceholders,
		Extensions:      options.Extensions,
	}
	return w.String(), info, nil
}

// MappedName returns the identifier written for a user-defined name.
func MappedName(name string, options Options) string {
	maxLen := options.MaxIdentifierLength
	if maxLen <= 0 {
		maxLen = DefaultMaxIdentifierLength
	}
	if options.HashFunction != nil && (options.HashAllNames || len(name) > maxLen) {
		return fmt.Sprintf("_h%016x", options.HashFunction(name))
	}
	return "_u" + name
}

// MappedSymbolName applies MappedName to user-defined symbols and
// returns other names unchanged.
func MappedSymbolName(name string, st ir.SymbolType, options Options) string {
	if st == ir.SymbolUserDefined {
		return MappedName(name, options)
	}
	return name
}
