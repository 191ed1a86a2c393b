// Package ir defines the tree form of a GLSL ES shader that the
// translator rewrites.
//
// The IR is designed to be:
//   - Arena-based: nodes live in a Tree and are addressed by NodeID
//   - Single-owner: every node has at most one parent; reuse goes through Clone
//   - Batch-edited: passes record changes in a RewriteLog and apply them after the walk
//
// # Structure
//
// A Tree holds:
//   - Root: a Block with global declarations and function definitions
//   - Nodes: Symbol, ConstantUnion, Binary, Unary, Swizzle, Declaration,
//     Block, FunctionDefinition, Branch, Aggregate, IfElse and Loop
//
// Variables and functions are symbols owned by a SymbolTable; nodes point
// at them. The table also provides the built-in variables visible to a
// stage and shader version.
//
// # Traversal
//
// Tree.Traverse is the single walking primitive. A Visitor is called
// before, between and after a node's children and receives the ancestor
// path, so rewrites know each node's parent without parent links.
package ir
