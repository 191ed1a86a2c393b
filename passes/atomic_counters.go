package passes

import (
	"fmt"
	"slices"

	"github.com/gogpu/glesvk/ir"
	"github.com/gogpu/glesvk/shader"
)

// Names of the storage buffer that backs atomic counters.
const (
	AtomicCountersBlockName    = "AtomicCounters"
	AtomicCountersInstanceName = "atomicCounters"
)

// maxAtomicCounterBufferBindings is the number of buffers acbBufferOffsets
// can describe.
const maxAtomicCounterBufferBindings = 4

func (c *Compile) activeAtomicCounterCount() int {
	n := 0
	for _, u := range c.Info.Uniforms {
		if u.Active && u.Type.IsAtomicCounter() {
			n++
		}
	}
	return n
}

type atomicCounter struct {
	binding int
	offset  int // in counters, not bytes
}

// RewriteAtomicCounters replaces atomic counter uniforms with elements of
// a storage buffer array indexed by binding. The word offset of each
// binding comes from driverUniforms.acbBufferOffsets. Without active
// counters it only strips memoryBarrierAtomicCounter calls from ES 3.1
// shaders.
func RewriteAtomicCounters(c *Compile, tree *ir.Tree, symbols *ir.SymbolTable, _ Options) (bool, error) {
	if c.activeAtomicCounterCount() == 0 {
		if c.Version >= 310 {
			return RemoveAtomicCounterBuiltins(tree)
		}
		return false, nil
	}

	counters := make(map[*ir.Variable]atomicCounter)
	nextOffset := make(map[int]int)
	bindings := 0
	root := tree.Statements(tree.Root)
	out := make([]ir.NodeID, 0, len(root))
	at := -1
	for _, s := range root {
		d, ok := tree.Inner(s).(ir.Declaration)
		if !ok || d.Variable == nil || d.Variable.Type.Basic != ir.TypeAtomicCounter {
			out = append(out, s)
			continue
		}
		if at < 0 {
			at = len(out)
		}
		l := d.Variable.Type.Layout
		b := max(l.Binding, 0)
		if b >= maxAtomicCounterBufferBindings {
			return false, fmt.Errorf("%w: atomic counter binding %d", ErrUnsupported, b)
		}
		off := nextOffset[b]
		if l.Offset >= 0 {
			off = l.Offset / 4
		}
		counters[d.Variable] = atomicCounter{binding: b, offset: off}
		nextOffset[b] = off + int(d.Variable.Type.ArraySizeProduct())
		bindings = max(bindings, b+1)
	}

	layout := ir.DefaultLayout()
	layout.Set = ShaderResourceSet
	layout.Binding = c.NextBinding()
	layout.Storage = shader.LayoutStd430
	layout.HasStorage = true
	block := &ir.InterfaceBlock{
		Name:       AtomicCountersBlockName,
		Fields:     []ir.Field{internalField("counters", highp(ir.Scalar(ir.TypeUInt)).ArrayOf(0))},
		Layout:     layout,
		BlockType:  shader.BlockBuffer,
		SymbolType: ir.SymbolInternal,
	}
	//nolint:gosec // G115: bindings is below maxAtomicCounterBufferBindings
	buffers, err := symbols.NewInternalVariable(AtomicCountersInstanceName, ir.BlockOf(block).ArrayOf(uint32(bindings)))
	if err != nil {
		return false, err
	}
	out = slices.Insert(out, at, tree.Declare(buffers, ir.NoNode))
	tree.SetStatements(tree.Root, out)

	r := &counterRewriter{c: c, tree: tree, buffers: buffers, counters: counters}
	if err := r.rewrite(); err != nil {
		return false, err
	}
	return true, nil
}

type counterRewriter struct {
	c        *Compile
	tree     *ir.Tree
	buffers  *ir.Variable
	counters map[*ir.Variable]atomicCounter
}

func (r *counterRewriter) rewrite() error {
	t := r.tree
	var log ir.RewriteLog
	var err error
	t.Traverse(t.Root, func(visit ir.Visit, id ir.NodeID, path []ir.NodeID) bool {
		if visit != ir.PreVisit || err != nil {
			return err == nil
		}
		switch n := t.Inner(id).(type) {
		case ir.Aggregate:
			if n.Op != ir.AggCallBuiltIn {
				return true
			}
			var repl ir.NodeID
			repl, err = r.rewriteCall(n)
			if err != nil {
				return false
			}
			if repl != ir.NoNode {
				log.Replace(ir.ParentOf(path), id, repl)
				return false
			}
		case ir.Symbol:
			if _, ok := r.counters[n.Variable]; ok {
				err = fmt.Errorf("%w: atomic counter %s used outside counter functions", ErrUnsupported, n.Variable.Name)
				return false
			}
		}
		return true
	})
	if err != nil {
		return err
	}
	return log.Apply(t)
}

func (r *counterRewriter) rewriteCall(call ir.Aggregate) (ir.NodeID, error) {
	t := r.tree
	u32 := highp(ir.Scalar(ir.TypeUInt))
	if call.Name == "memoryBarrierAtomicCounter" {
		return t.CallBuiltIn("memoryBarrierBuffer", ir.Void), nil
	}
	if len(call.Args) != 1 {
		return ir.NoNode, nil
	}
	switch call.Name {
	case "atomicCounterIncrement", "atomicCounterDecrement", "atomicCounter":
	default:
		return ir.NoNode, nil
	}
	elem, err := r.element(call.Args[0])
	if err != nil {
		return ir.NoNode, err
	}
	switch call.Name {
	case "atomicCounterIncrement":
		return t.CallBuiltIn("atomicAdd", u32, elem, t.UInt(1)), nil
	case "atomicCounterDecrement":
		// atomicAdd returns the old value; decrement returns the new one.
		prev := t.CallBuiltIn("atomicAdd", u32, elem, t.UInt(0xFFFFFFFF))
		return t.Binary(ir.OpSub, prev, t.UInt(1)), nil
	default:
		return elem, nil
	}
}

// element builds atomicCounters[b].counters[acbBufferOffsets[b] + offset + i]
// for a counter reference.
func (r *counterRewriter) element(ref ir.NodeID) (ir.NodeID, error) {
	t := r.tree
	var index ir.NodeID
	v := rootVariable(t, ref)
	if b, ok := t.Inner(ref).(ir.Binary); ok && (b.Op == ir.OpIndexDirect || b.Op == ir.OpIndexIndirect) {
		index = b.Right
	}
	ac, ok := r.counters[v]
	if !ok {
		return ir.NoNode, internalf("rewriteAtomicCounters", "argument is not an atomic counter")
	}

	base, err := r.c.Driver.Field(t, FieldAcbBufferOffsets)
	if err != nil {
		return ir.NoNode, err
	}
	//nolint:gosec // G115: bindings and offsets are small
	offset := t.Binary(ir.OpAdd, t.Index(base, int32(ac.binding)), t.UInt(uint32(ac.offset)))
	if index != ir.NoNode {
		if t.TypeOf(index).Basic != ir.TypeUInt {
			index = t.Construct(highp(ir.Scalar(ir.TypeUInt)), index)
		}
		offset = t.Binary(ir.OpAdd, offset, index)
	}
	buffer := t.Index(t.Symbol(r.buffers), int32(ac.binding)) //nolint:gosec // G115: bindings are small
	return t.IndexIndirect(t.Field(buffer, 0), offset), nil
}

// RemoveAtomicCounterBuiltins drops memoryBarrierAtomicCounter() call
// statements. It reports whether any were removed.
func RemoveAtomicCounterBuiltins(tree *ir.Tree) (bool, error) {
	var log ir.RewriteLog
	tree.Walk(tree.Root, func(id ir.NodeID, _ []ir.NodeID) bool {
		for _, s := range tree.Statements(id) {
			if a, ok := tree.Inner(s).(ir.Aggregate); ok && a.Op == ir.AggCallBuiltIn && a.Name == "memoryBarrierAtomicCounter" {
				log.Remove(id, s)
			}
		}
		return true
	})
	if log.Len() == 0 {
		return false, nil
	}
	return true, log.Apply(tree)
}
