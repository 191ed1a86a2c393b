package ir

import (
	"fmt"
	"slices"
)

// Replacement swaps child Old of Parent for New.
type Replacement struct {
	Parent NodeID
	Old    NodeID
	New    NodeID
}

type blockEdit struct {
	block  NodeID
	anchor NodeID
	after  bool
	remove bool
	stmts  []NodeID
}

// RewriteLog collects tree edits during a traversal and applies them in
// one batch afterwards, so no edit invalidates the walk that found it.
type RewriteLog struct {
	replacements []Replacement
	edits        []blockEdit
}

// Replace records that old, a child of parent, becomes new.
func (l *RewriteLog) Replace(parent, oldID, newID NodeID) {
	l.replacements = append(l.replacements, Replacement{Parent: parent, Old: oldID, New: newID})
}

// InsertBefore records statements to insert before anchor in block.
func (l *RewriteLog) InsertBefore(block, anchor NodeID, stmts ...NodeID) {
	l.edits = append(l.edits, blockEdit{block: block, anchor: anchor, stmts: stmts})
}

// InsertAfter records statements to insert after anchor in block.
func (l *RewriteLog) InsertAfter(block, anchor NodeID, stmts ...NodeID) {
	l.edits = append(l.edits, blockEdit{block: block, anchor: anchor, after: true, stmts: stmts})
}

// Remove records that stmt is to be dropped from block.
func (l *RewriteLog) Remove(block, stmt NodeID) {
	l.edits = append(l.edits, blockEdit{block: block, anchor: stmt, remove: true})
}

// Len returns the number of recorded edits.
func (l *RewriteLog) Len() int {
	return len(l.replacements) + len(l.edits)
}

// Replacements returns the recorded replacements in order.
func (l *RewriteLog) Replacements() []Replacement {
	return l.replacements
}

// Apply performs every recorded edit. A replacement whose parent no
// longer owns the old child, or a block edit whose anchor is missing,
// is reported as an error; the tree is left partially edited in that case.
func (l *RewriteLog) Apply(t *Tree) error {
	for _, r := range l.replacements {
		if !t.ReplaceChild(r.Parent, r.Old, r.New) {
			return fmt.Errorf("stale replacement: node %d is not a child of %d", r.Old, r.Parent)
		}
	}
	for _, e := range l.edits {
		stmts := t.Statements(e.block)
		i := slices.Index(stmts, e.anchor)
		if i < 0 {
			return fmt.Errorf("stale block edit: node %d is not a statement of block %d", e.anchor, e.block)
		}
		out := make([]NodeID, 0, len(stmts)+len(e.stmts))
		switch {
		case e.remove:
			out = append(append(out, stmts[:i]...), stmts[i+1:]...)
		case e.after:
			out = append(append(append(out, stmts[:i+1]...), e.stmts...), stmts[i+1:]...)
		default:
			out = append(append(append(out, stmts[:i]...), e.stmts...), stmts[i:]...)
		}
		t.SetStatements(e.block, out)
	}
	l.replacements = nil
	l.edits = nil
	return nil
}

// ReplaceVariable replaces every reference to v under the tree root with
// a fresh node produced by with. Each site gets its own subtree. It
// returns the number of references replaced.
func ReplaceVariable(t *Tree, v *Variable, with func() NodeID) (int, error) {
	var log RewriteLog
	t.Walk(t.Root, func(id NodeID, path []NodeID) bool {
		if s, ok := t.Inner(id).(Symbol); ok && s.Variable == v {
			log.Replace(ParentOf(path), id, with())
		}
		return true
	})
	n := len(log.replacements)
	return n, log.Apply(t)
}

// ReplaceVariableWith replaces every reference to v by a reference to w.
func ReplaceVariableWith(t *Tree, v, w *Variable) (int, error) {
	return ReplaceVariable(t, v, func() NodeID { return t.Symbol(w) })
}

// PrependToMain inserts statements at the start of main's body.
func (t *Tree) PrependToMain(stmts ...NodeID) error {
	_, body, ok := t.FindMain()
	if !ok {
		return fmt.Errorf("no main function")
	}
	t.SetStatements(body, append(slices.Clone(stmts), t.Statements(body)...))
	return nil
}

// AppendToMain runs statements at the end of main. When main contains a
// return statement, its body moves to an internal function that the new
// main calls before running the statements.
func (t *Tree) AppendToMain(symbols *SymbolTable, stmts ...NodeID) error {
	def, body, ok := t.FindMain()
	if !ok {
		return fmt.Errorf("no main function")
	}
	if !t.containsReturn(body) {
		t.SetStatements(body, append(slices.Clone(t.Statements(body)), stmts...))
		return nil
	}

	inner, err := symbols.NewInternalFunction("originalMain", Void)
	if err != nil {
		return err
	}
	innerDef := t.Define(inner, body)
	call := t.Call(inner)
	newBody := t.NewBlock(append([]NodeID{call}, stmts...)...)
	fd := t.Inner(def).(FunctionDefinition)
	fd.Body = newBody
	t.SetInner(def, fd)
	return t.InsertGlobalBefore(def, innerDef)
}

func (t *Tree) containsReturn(root NodeID) bool {
	found := false
	t.Walk(root, func(id NodeID, _ []NodeID) bool {
		if b, ok := t.Inner(id).(Branch); ok && b.Op == BranchReturn {
			found = true
		}
		return !found
	})
	return found
}

// InsertGlobalBefore inserts statements into the root block before anchor.
func (t *Tree) InsertGlobalBefore(anchor NodeID, stmts ...NodeID) error {
	var log RewriteLog
	log.InsertBefore(t.Root, anchor, stmts...)
	return log.Apply(t)
}

// InsertGlobalsBeforeFunctions inserts declarations into the root block
// before the first function definition, or at the end when there is none.
func (t *Tree) InsertGlobalsBeforeFunctions(stmts ...NodeID) {
	root := t.Statements(t.Root)
	i := slices.IndexFunc(root, func(s NodeID) bool {
		_, ok := t.Inner(s).(FunctionDefinition)
		return ok
	})
	if i < 0 {
		i = len(root)
	}
	out := make([]NodeID, 0, len(root)+len(stmts))
	out = append(append(append(out, root[:i]...), stmts...), root[i:]...)
	t.SetStatements(t.Root, out)
}

// InsertBeforeMain inserts global statements just before main's definition.
func (t *Tree) InsertBeforeMain(stmts ...NodeID) error {
	def, _, ok := t.FindMain()
	if !ok {
		return fmt.Errorf("no main function")
	}
	return t.InsertGlobalBefore(def, stmts...)
}

// RemoveGlobalDeclaration drops the global declaration of v. It reports
// whether a declaration was found.
func (t *Tree) RemoveGlobalDeclaration(v *Variable) bool {
	root := t.Statements(t.Root)
	for i, s := range root {
		if d, ok := t.Inner(s).(Declaration); ok && d.Variable == v {
			t.SetStatements(t.Root, slices.Delete(slices.Clone(root), i, i+1))
			return true
		}
	}
	return false
}
