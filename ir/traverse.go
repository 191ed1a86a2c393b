package ir

// Visit is the point in a node's traversal at which a visitor is called.
type Visit uint8

const (
	// PreVisit is called before the children. Returning false skips the
	// children and the remaining visits of the node.
	PreVisit Visit = iota
	// InVisit is called between consecutive children.
	InVisit
	// PostVisit is called after all children.
	PostVisit
)

// Visitor observes one traversal step. path holds the ancestors of id
// from the root down to its parent; it is reused between calls, so
// visitors must copy it to keep it.
type Visitor func(visit Visit, id NodeID, path []NodeID) bool

// Traverse walks the subtree rooted at root depth-first, calling fn at
// every visit point. Passes record changes in a RewriteLog during the
// walk and apply them afterwards; the tree must not be mutated from fn.
func (t *Tree) Traverse(root NodeID, fn Visitor) {
	path := make([]NodeID, 0, 32)
	t.traverse(root, fn, &path)
}

func (t *Tree) traverse(id NodeID, fn Visitor, path *[]NodeID) {
	if !t.Valid(id) {
		return
	}
	if !fn(PreVisit, id, *path) {
		return
	}
	children := t.Children(id)
	*path = append(*path, id)
	for i, c := range children {
		if i > 0 {
			*path = (*path)[:len(*path)-1]
			fn(InVisit, id, *path)
			*path = append(*path, id)
		}
		t.traverse(c, fn, path)
	}
	*path = (*path)[:len(*path)-1]
	fn(PostVisit, id, *path)
}

// Walk calls fn for every node of the subtree in pre-order. Returning
// false skips the node's children.
func (t *Tree) Walk(root NodeID, fn func(id NodeID, path []NodeID) bool) {
	t.Traverse(root, func(visit Visit, id NodeID, path []NodeID) bool {
		if visit != PreVisit {
			return true
		}
		return fn(id, path)
	})
}

// ParentOf returns the last element of a traversal path, or NoNode.
func ParentOf(path []NodeID) NodeID {
	if len(path) == 0 {
		return NoNode
	}
	return path[len(path)-1]
}

// References returns every Symbol node under root that refers to v.
func (t *Tree) References(root NodeID, v *Variable) []NodeID {
	var out []NodeID
	t.Walk(root, func(id NodeID, _ []NodeID) bool {
		if s, ok := t.Inner(id).(Symbol); ok && s.Variable == v {
			out = append(out, id)
		}
		return true
	})
	return out
}

// FindBuiltInReference returns the first Symbol node referring to the
// built-in with the given name, or NoNode.
func (t *Tree) FindBuiltInReference(root NodeID, name string) NodeID {
	found := NoNode
	t.Walk(root, func(id NodeID, _ []NodeID) bool {
		if found != NoNode {
			return false
		}
		if s, ok := t.Inner(id).(Symbol); ok && s.Variable != nil &&
			s.Variable.SymbolType == SymbolBuiltIn && s.Variable.Name == name {
			found = id
		}
		return true
	})
	return found
}

// CallsBuiltIn reports whether the subtree calls the named built-in function.
func (t *Tree) CallsBuiltIn(root NodeID, name string) bool {
	found := false
	t.Walk(root, func(id NodeID, _ []NodeID) bool {
		if a, ok := t.Inner(id).(Aggregate); ok && a.Op == AggCallBuiltIn && a.Name == name {
			found = true
		}
		return !found
	})
	return found
}
