package ir

import (
	"fmt"
)

// ValidationError represents a validation error.
type ValidationError struct {
	Message string
	// Optional context
	Function string
	Node     NodeID
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Function != "" {
		if e.Node != NoNode {
			return fmt.Sprintf("in function %s, node %d: %s", e.Function, e.Node, e.Message)
		}
		return fmt.Sprintf("in function %s: %s", e.Function, e.Message)
	}
	if e.Node != NoNode {
		return fmt.Sprintf("node %d: %s", e.Node, e.Message)
	}
	return e.Message
}

// Validator validates IR trees.
type Validator struct {
	tree    *Tree
	errors  []ValidationError
	context validationContext
}

// validationContext holds current validation context.
type validationContext struct {
	functionName string
	owner        map[NodeID]NodeID
	loopDepth    int
}

// Validate checks the tree for structural and typing errors.
// Returns validation errors if any, or nil if the tree is valid.
func Validate(tree *Tree) ([]ValidationError, error) {
	if tree == nil {
		return nil, fmt.Errorf("tree is nil")
	}

	v := &Validator{
		tree:   tree,
		errors: make([]ValidationError, 0),
		context: validationContext{
			owner: make(map[NodeID]NodeID, tree.Len()),
		},
	}

	v.ValidateTree()

	if len(v.errors) > 0 {
		return v.errors, nil
	}
	return nil, nil
}

// ValidateTree validates the complete tree.
func (v *Validator) ValidateTree() {
	root := v.tree.Root
	if !v.tree.Valid(root) {
		v.addError(NoNode, fmt.Sprintf("root %d is out of range", root))
		return
	}
	if _, ok := v.tree.Inner(root).(Block); !ok {
		v.addError(root, "root is not a block")
		return
	}

	// Global statements
	for _, s := range v.tree.Statements(root) {
		v.claim(root, s)
		switch inner := v.tree.Inner(s).(type) {
		case Declaration:
			v.validateDeclaration(s, inner)
		case FunctionDefinition:
			v.validateFunction(s, inner)
		default:
			v.addError(s, fmt.Sprintf("%s is not allowed at global scope", nodeKindOf(inner)))
		}
	}
}

// validateFunction checks one function definition and its body.
func (v *Validator) validateFunction(id NodeID, def FunctionDefinition) {
	if def.Function == nil {
		v.addError(id, "function definition without function symbol")
		return
	}
	v.context.functionName = def.Function.Name
	defer func() { v.context.functionName = "" }()

	if _, ok := v.tree.Inner(def.Body).(Block); !ok {
		v.addError(id, "function body is not a block")
		return
	}
	v.claim(id, def.Body)
	v.validateNode(def.Body)
}

// validateNode checks a node and recurses into its children.
//
//nolint:gocognit,gocyclo,cyclop // one case per node kind
func (v *Validator) validateNode(id NodeID) {
	if !v.tree.Valid(id) {
		v.addError(id, "reference to a node outside the arena")
		return
	}
	n := v.tree.Node(id)
	if n.Inner == nil {
		v.addError(id, "node has no payload")
		return
	}

	for _, c := range v.tree.Children(id) {
		if !v.claim(id, c) {
			continue
		}
		if _, isLoop := n.Inner.(Loop); isLoop {
			v.context.loopDepth++
			v.validateNode(c)
			v.context.loopDepth--
			continue
		}
		v.validateNode(c)
	}

	switch inner := n.Inner.(type) {
	case Symbol:
		if inner.Variable == nil {
			v.addError(id, "symbol without variable")
			return
		}
		if !n.Type.SameShape(inner.Variable.Type) {
			v.addError(id, fmt.Sprintf("symbol %q has type %s, variable has %s",
				inner.Variable.Name, n.Type, inner.Variable.Type))
		}

	case ConstantUnion:
		if len(inner.Values) == 0 {
			v.addError(id, "empty constant")
		}

	case Binary:
		v.validateBinary(id, n.Type, inner)

	case Unary:
		if inner.Op.WritesOperand() && !v.isLValue(inner.Operand) {
			v.addError(id, fmt.Sprintf("operand of %s is not assignable", inner.Op))
		}

	case Swizzle:
		operand := v.tree.TypeOf(inner.Operand)
		if len(inner.Offsets) == 0 || len(inner.Offsets) > 4 {
			v.addError(id, fmt.Sprintf("swizzle selects %d components", len(inner.Offsets)))
		}
		for _, o := range inner.Offsets {
			if o >= operand.PrimarySize {
				v.addError(id, fmt.Sprintf("swizzle offset %d out of range for %s", o, operand))
			}
		}

	case Declaration:
		v.validateDeclaration(id, inner)

	case IfElse:
		cond := v.tree.TypeOf(inner.Cond)
		if cond.Basic != TypeBool || !cond.IsScalar() {
			v.addError(id, fmt.Sprintf("if condition has type %s, want bool", cond))
		}
		if _, ok := v.tree.Inner(inner.Then).(Block); !ok {
			v.addError(id, "if branch is not a block")
		}
		if inner.Else != NoNode {
			if _, ok := v.tree.Inner(inner.Else).(Block); !ok {
				v.addError(id, "else branch is not a block")
			}
		}

	case Branch:
		if (inner.Op == BranchBreak || inner.Op == BranchContinue) && v.context.loopDepth == 0 {
			v.addError(id, fmt.Sprintf("%s outside of a loop", inner.Op))
		}

	case Aggregate:
		if inner.Op == AggCallFunction && inner.Function == nil {
			v.addError(id, "call without function symbol")
		}
		if inner.Op == AggCallFunction && inner.Function != nil && len(inner.Args) != len(inner.Function.Params) {
			v.addError(id, fmt.Sprintf("call to %s has %d arguments, want %d",
				inner.Function.Name, len(inner.Args), len(inner.Function.Params)))
		}

	case FunctionDefinition:
		v.addError(id, "nested function definition")
	}
}

// validateBinary checks operand agreement for a binary node.
func (v *Validator) validateBinary(id NodeID, result Type, b Binary) {
	left := v.tree.TypeOf(b.Left)
	right := v.tree.TypeOf(b.Right)

	switch {
	case b.Op.IsAssignment():
		if !v.isLValue(b.Left) {
			v.addError(id, "left side of assignment is not assignable")
		}
		if b.Op == OpAssign && !left.SameShape(right) {
			v.addError(id, fmt.Sprintf("cannot assign %s to %s", right, left))
		}
		if b.Op != OpAssign && left.Basic != right.Basic {
			v.addError(id, fmt.Sprintf("operands of %s have types %s and %s", b.Op, left, right))
		}
	case b.Op.IsIndex():
		if b.Op == OpIndexDirectStruct || b.Op == OpIndexDirectInterfaceBlock {
			if left.Struct == nil && left.Block == nil {
				v.addError(id, fmt.Sprintf("field selection on non-aggregate %s", left))
			}
			if result.Basic == TypeVoid {
				v.addError(id, "field index out of range")
			}
		} else if !left.IsArray() && left.PrimarySize <= 1 {
			v.addError(id, fmt.Sprintf("cannot index %s", left))
		}
	case b.Op.IsArithmetic():
		if b.Op == OpShiftLeft || b.Op == OpShiftRight {
			return
		}
		if left.Basic != right.Basic {
			v.addError(id, fmt.Sprintf("operands of %s have types %s and %s", b.Op, left, right))
		}
	case b.Op.IsLogical():
		if left.Basic != TypeBool || right.Basic != TypeBool {
			v.addError(id, fmt.Sprintf("operands of %s must be bool", b.Op))
		}
	}
}

// validateDeclaration checks a declaration and its initializer.
func (v *Validator) validateDeclaration(id NodeID, d Declaration) {
	if d.Variable == nil {
		v.addError(id, "declaration without variable")
		return
	}
	if d.Init == NoNode {
		return
	}
	if id != NoNode && v.context.functionName == "" {
		if !v.claim(id, d.Init) {
			return
		}
		v.validateNode(d.Init)
	}
	init := v.tree.TypeOf(d.Init)
	if !init.SameShape(d.Variable.Type) {
		v.addError(id, fmt.Sprintf("initializer of %q has type %s, want %s", d.Variable.Name, init, d.Variable.Type))
	}
}

// isLValue reports whether id denotes assignable storage.
func (v *Validator) isLValue(id NodeID) bool {
	switch inner := v.tree.Inner(id).(type) {
	case Symbol:
		if inner.Variable == nil {
			return false
		}
		switch inner.Variable.Type.Qualifier {
		case QualConst, QualUniform, QualVertexIn, QualVaryingIn, QualSpecConst:
			return false
		}
		return true
	case Binary:
		return inner.Op.IsIndex() && v.isLValue(inner.Left)
	case Swizzle:
		return v.isLValue(inner.Operand)
	default:
		return false
	}
}

// claim records parent as the owner of child. A second owner is an error.
func (v *Validator) claim(parent, child NodeID) bool {
	if prev, owned := v.context.owner[child]; owned {
		v.addError(child, fmt.Sprintf("node has multiple parents (%d and %d)", prev, parent))
		return false
	}
	v.context.owner[child] = parent
	return true
}

// addError adds a validation error with current context.
func (v *Validator) addError(id NodeID, msg string) {
	v.errors = append(v.errors, ValidationError{
		Message:  msg,
		Function: v.context.functionName,
		Node:     id,
	})
}

func nodeKindOf(inner NodeInner) string {
	if inner == nil {
		return "empty node"
	}
	return inner.nodeKind()
}
