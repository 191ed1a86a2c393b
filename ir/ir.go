package ir

import "fmt"

// NodeID is a handle into a Tree's node arena.
type NodeID uint32

// NoNode marks an absent child. Arena slot 0 is reserved for it.
const NoNode NodeID = 0

// Node is one element of the tree: an expression, a statement or a
// declaration. Statements have type Void.
type Node struct {
	Type  Type
	Inner NodeInner
}

// NodeInner is the kind-specific payload of a node.
type NodeInner interface {
	nodeKind() string
}

// Symbol references a variable.
type Symbol struct {
	Variable *Variable
}

func (Symbol) nodeKind() string { return "Symbol" }

// ConstantValue is one component of a constant.
type ConstantValue struct {
	Basic BasicType
	Float float32
	Int   int32
	UInt  uint32
	Bool  bool
}

// ConstantUnion is a literal scalar, vector or matrix value.
type ConstantUnion struct {
	Values []ConstantValue
}

func (ConstantUnion) nodeKind() string { return "ConstantUnion" }

// Binary is a binary operation, assignment or indexing.
type Binary struct {
	Op    Op
	Left  NodeID
	Right NodeID
}

func (Binary) nodeKind() string { return "Binary" }

// Unary is a unary operation.
type Unary struct {
	Op      Op
	Operand NodeID
}

func (Unary) nodeKind() string { return "Unary" }

// Swizzle selects vector components by offset (0..3).
type Swizzle struct {
	Operand NodeID
	Offsets []uint8
}

func (Swizzle) nodeKind() string { return "Swizzle" }

// Declaration declares one variable with an optional initializer.
type Declaration struct {
	Variable *Variable
	Init     NodeID
}

func (Declaration) nodeKind() string { return "Declaration" }

// Block is a sequence of statements. The tree root is a Block holding
// global declarations and function definitions.
type Block struct {
	Statements []NodeID
}

func (Block) nodeKind() string { return "Block" }

// FunctionDefinition is a function with its body block.
type FunctionDefinition struct {
	Function *Function
	Body     NodeID
}

func (FunctionDefinition) nodeKind() string { return "FunctionDefinition" }

// BranchOp is the kind of a jump statement.
type BranchOp uint8

const (
	BranchDiscard BranchOp = iota
	BranchReturn
	BranchBreak
	BranchContinue
)

// String returns the GLSL keyword.
func (b BranchOp) String() string {
	switch b {
	case BranchDiscard:
		return "discard"
	case BranchReturn:
		return "return"
	case BranchBreak:
		return "break"
	default:
		return "continue"
	}
}

// Branch is a jump statement. Value is set for returns with a value.
type Branch struct {
	Op    BranchOp
	Value NodeID
}

func (Branch) nodeKind() string { return "Branch" }

// AggregateOp is the kind of an Aggregate node.
type AggregateOp uint8

const (
	// AggConstruct is a type constructor such as vec4(x).
	AggConstruct AggregateOp = iota
	// AggCallFunction calls a user or internal function.
	AggCallFunction
	// AggCallBuiltIn calls a built-in function by name.
	AggCallBuiltIn
)

// Aggregate is a constructor or function call.
type Aggregate struct {
	Op       AggregateOp
	Function *Function
	Name     string
	Args     []NodeID
}

func (Aggregate) nodeKind() string { return "Aggregate" }

// IfElse is an if statement. Then and Else are blocks; Else may be NoNode.
type IfElse struct {
	Cond NodeID
	Then NodeID
	Else NodeID
}

func (IfElse) nodeKind() string { return "IfElse" }

// LoopKind is the form of a loop statement.
type LoopKind uint8

const (
	LoopFor LoopKind = iota
	LoopWhile
	LoopDoWhile
)

// Loop is a for, while or do-while loop. Unused parts are NoNode.
type Loop struct {
	Kind LoopKind
	Init NodeID
	Cond NodeID
	Expr NodeID
	Body NodeID
}

func (Loop) nodeKind() string { return "Loop" }

// Tree is an arena of nodes addressed by NodeID. Every node has at most
// one parent; code that wants to reuse a subtree must Clone it.
type Tree struct {
	nodes []Node
	Root  NodeID
}

// NewTree returns a tree with an empty root block.
func NewTree() *Tree {
	t := &Tree{nodes: make([]Node, 1, 64)}
	t.Root = t.Add(Void, Block{})
	return t
}

// Add appends a node and returns its handle.
func (t *Tree) Add(typ Type, inner NodeInner) NodeID {
	t.nodes = append(t.nodes, Node{Type: typ, Inner: inner})
	return NodeID(len(t.nodes) - 1) //nolint:gosec // G115: arena size bounded by memory
}

// Len returns the number of arena slots, including the reserved slot 0.
func (t *Tree) Len() int {
	return len(t.nodes)
}

// Valid reports whether id addresses a node.
func (t *Tree) Valid(id NodeID) bool {
	return id != NoNode && int(id) < len(t.nodes)
}

// Node returns a copy of the node. Slices inside the payload are shared
// with the arena; use Set to modify a node.
func (t *Tree) Node(id NodeID) Node {
	if !t.Valid(id) {
		return Node{Type: Void}
	}
	return t.nodes[id]
}

// Inner returns the payload of the node.
func (t *Tree) Inner(id NodeID) NodeInner {
	return t.Node(id).Inner
}

// TypeOf returns the type of the node.
func (t *Tree) TypeOf(id NodeID) Type {
	return t.Node(id).Type
}

// Set replaces the node stored at id.
func (t *Tree) Set(id NodeID, n Node) {
	if t.Valid(id) {
		t.nodes[id] = n
	}
}

// SetInner replaces the payload of id, keeping its type.
func (t *Tree) SetInner(id NodeID, inner NodeInner) {
	if t.Valid(id) {
		t.nodes[id].Inner = inner
	}
}

// Children returns the children of id in evaluation order, skipping
// absent ones.
func (t *Tree) Children(id NodeID) []NodeID {
	return childrenOf(t.Inner(id))
}

func childrenOf(inner NodeInner) []NodeID {
	var out []NodeID
	add := func(ids ...NodeID) {
		for _, c := range ids {
			if c != NoNode {
				out = append(out, c)
			}
		}
	}
	switch n := inner.(type) {
	case Binary:
		add(n.Left, n.Right)
	case Unary:
		add(n.Operand)
	case Swizzle:
		add(n.Operand)
	case Declaration:
		add(n.Init)
	case Block:
		add(n.Statements...)
	case FunctionDefinition:
		add(n.Body)
	case Branch:
		add(n.Value)
	case Aggregate:
		add(n.Args...)
	case IfElse:
		add(n.Cond, n.Then, n.Else)
	case Loop:
		add(n.Init, n.Cond, n.Expr, n.Body)
	}
	return out
}

// ReplaceChild substitutes newID for oldID among the children of parent.
// It reports whether oldID was found.
//
//nolint:gocyclo,cyclop // one case per node kind
func (t *Tree) ReplaceChild(parent, oldID, newID NodeID) bool {
	if !t.Valid(parent) {
		return false
	}
	swap := func(c *NodeID) bool {
		if *c == oldID {
			*c = newID
			return true
		}
		return false
	}
	swapIn := func(list []NodeID) ([]NodeID, bool) {
		for i, c := range list {
			if c == oldID {
				out := append([]NodeID(nil), list...)
				out[i] = newID
				return out, true
			}
		}
		return list, false
	}

	var found bool
	switch n := t.nodes[parent].Inner.(type) {
	case Binary:
		found = swap(&n.Left) || swap(&n.Right)
		t.nodes[parent].Inner = n
	case Unary:
		found = swap(&n.Operand)
		t.nodes[parent].Inner = n
	case Swizzle:
		found = swap(&n.Operand)
		t.nodes[parent].Inner = n
	case Declaration:
		found = swap(&n.Init)
		t.nodes[parent].Inner = n
	case Block:
		n.Statements, found = swapIn(n.Statements)
		t.nodes[parent].Inner = n
	case FunctionDefinition:
		found = swap(&n.Body)
		t.nodes[parent].Inner = n
	case Branch:
		found = swap(&n.Value)
		t.nodes[parent].Inner = n
	case Aggregate:
		n.Args, found = swapIn(n.Args)
		t.nodes[parent].Inner = n
	case IfElse:
		found = swap(&n.Cond) || swap(&n.Then) || swap(&n.Else)
		t.nodes[parent].Inner = n
	case Loop:
		found = swap(&n.Init) || swap(&n.Cond) || swap(&n.Expr) || swap(&n.Body)
		t.nodes[parent].Inner = n
	}
	return found
}

// Clone deep-copies the subtree rooted at id and returns the new root.
// Variables and functions are shared: they are symbols, not nodes.
func (t *Tree) Clone(id NodeID) NodeID {
	if id == NoNode {
		return NoNode
	}
	n := t.Node(id)
	c := func(x NodeID) NodeID { return t.Clone(x) }
	cs := func(list []NodeID) []NodeID {
		if list == nil {
			return nil
		}
		out := make([]NodeID, len(list))
		for i, x := range list {
			out[i] = t.Clone(x)
		}
		return out
	}

	var inner NodeInner
	switch v := n.Inner.(type) {
	case Symbol:
		inner = v
	case ConstantUnion:
		inner = ConstantUnion{Values: append([]ConstantValue(nil), v.Values...)}
	case Binary:
		inner = Binary{Op: v.Op, Left: c(v.Left), Right: c(v.Right)}
	case Unary:
		inner = Unary{Op: v.Op, Operand: c(v.Operand)}
	case Swizzle:
		inner = Swizzle{Operand: c(v.Operand), Offsets: append([]uint8(nil), v.Offsets...)}
	case Declaration:
		inner = Declaration{Variable: v.Variable, Init: c(v.Init)}
	case Block:
		inner = Block{Statements: cs(v.Statements)}
	case FunctionDefinition:
		inner = FunctionDefinition{Function: v.Function, Body: c(v.Body)}
	case Branch:
		inner = Branch{Op: v.Op, Value: c(v.Value)}
	case Aggregate:
		inner = Aggregate{Op: v.Op, Function: v.Function, Name: v.Name, Args: cs(v.Args)}
	case IfElse:
		inner = IfElse{Cond: c(v.Cond), Then: c(v.Then), Else: c(v.Else)}
	case Loop:
		inner = Loop{Kind: v.Kind, Init: c(v.Init), Cond: c(v.Cond), Expr: c(v.Expr), Body: c(v.Body)}
	default:
		panic(fmt.Sprintf("ir: clone of unknown node kind %T", n.Inner))
	}
	return t.Add(n.Type, inner)
}

// Statements returns the statements of a block node.
func (t *Tree) Statements(block NodeID) []NodeID {
	if b, ok := t.Inner(block).(Block); ok {
		return b.Statements
	}
	return nil
}

// SetStatements replaces the statement list of a block node.
func (t *Tree) SetStatements(block NodeID, stmts []NodeID) {
	if _, ok := t.Inner(block).(Block); ok {
		t.SetInner(block, Block{Statements: stmts})
	}
}

// FindMain returns the definition node and body block of main.
func (t *Tree) FindMain() (def, body NodeID, ok bool) {
	for _, s := range t.Statements(t.Root) {
		if fd, isDef := t.Inner(s).(FunctionDefinition); isDef && fd.Function != nil && fd.Function.Name == "main" {
			return s, fd.Body, true
		}
	}
	return NoNode, NoNode, false
}

// GlobalDeclarations returns the variables declared at global scope, in
// declaration order.
func (t *Tree) GlobalDeclarations() []*Variable {
	var out []*Variable
	for _, s := range t.Statements(t.Root) {
		if d, ok := t.Inner(s).(Declaration); ok && d.Variable != nil {
			out = append(out, d.Variable)
		}
	}
	return out
}
