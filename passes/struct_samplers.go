package passes

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gogpu/glesvk/ir"
)

// NameEmbeddedStructUniforms gives anonymous struct types of uniforms a
// generated name so they can be declared separately.
func NameEmbeddedStructUniforms(_ *Compile, tree *ir.Tree, _ *ir.SymbolTable, _ Options) (bool, error) {
	n := 0
	var name func(s *ir.Struct)
	name = func(s *ir.Struct) {
		if s.Name == "" {
			s.Name = fmt.Sprintf("embeddedStruct%d", n)
			s.SymbolType = ir.SymbolInternal
			n++
		}
		for _, f := range s.Fields {
			if f.Type.Struct != nil {
				name(f.Type.Struct)
			}
		}
	}
	for _, v := range tree.GlobalDeclarations() {
		if v.Type.Qualifier == ir.QualUniform && v.Type.Struct != nil {
			name(v.Type.Struct)
		}
	}
	return n > 0, nil
}

// structSamplers records the top-level uniforms extracted from one
// struct uniform, keyed by field path ("inner.tex").
type structSamplers struct {
	leaves map[string]*ir.Variable
}

type samplerRewriter struct {
	tree     *ir.Tree
	symbols  *ir.SymbolTable
	stripped map[*ir.Struct]*ir.Struct
	origin   map[*ir.Struct]*ir.Struct
	rewrites map[*ir.Variable]*structSamplers
}

// RewriteStructSamplers moves samplers out of struct uniforms. A sampler
// at s[i].inner.tex becomes element i of the top-level uniform
// s_inner_tex; arrays along the path flatten into one dimension in
// element order. Struct uniforms left without data are removed and
// counted in c.RemovedStructUniforms.
func RewriteStructSamplers(c *Compile, tree *ir.Tree, symbols *ir.SymbolTable, _ Options) (bool, error) {
	r := &samplerRewriter{
		tree:     tree,
		symbols:  symbols,
		stripped: make(map[*ir.Struct]*ir.Struct),
		origin:   make(map[*ir.Struct]*ir.Struct),
		rewrites: make(map[*ir.Variable]*structSamplers),
	}

	root := tree.Statements(tree.Root)
	out := make([]ir.NodeID, 0, len(root))
	var retyped []*ir.Variable
	removed := 0
	for _, s := range root {
		d, ok := tree.Inner(s).(ir.Declaration)
		if !ok || d.Variable == nil || d.Variable.Type.Qualifier != ir.QualUniform ||
			d.Variable.Type.Struct == nil || !d.Variable.Type.ContainsOpaque() {
			out = append(out, s)
			continue
		}
		v := d.Variable
		decls, err := r.extract(v)
		if err != nil {
			return false, err
		}
		out = append(out, decls...)
		if r.strip(v.Type.Struct) == nil {
			removed++
			continue
		}
		retyped = append(retyped, v)
		out = append(out, s)
	}
	if len(r.rewrites) == 0 {
		return false, nil
	}
	tree.SetStatements(tree.Root, out)

	if err := r.replaceReferences(); err != nil {
		return false, err
	}
	for _, v := range retyped {
		t := v.Type
		t.Struct = r.stripped[v.Type.Struct]
		v.Type = t
	}
	r.retypeNodes()
	c.RemovedStructUniforms += removed
	return true, nil
}

// extract declares one top-level uniform per opaque leaf of v.
func (r *samplerRewriter) extract(v *ir.Variable) ([]ir.NodeID, error) {
	rw := &structSamplers{leaves: make(map[string]*ir.Variable)}
	r.rewrites[v] = rw
	var decls []ir.NodeID

	var walk func(s *ir.Struct, prefix string, path []string, count uint32) error
	walk = func(s *ir.Struct, prefix string, path []string, count uint32) error {
		for _, f := range s.Fields {
			name := prefix + "_" + f.Name
			fpath := append(slices.Clone(path), f.Name)
			n := count * f.Type.ArraySizeProduct()
			switch {
			case f.Type.Struct != nil && f.Type.ContainsOpaque():
				if err := walk(f.Type.Struct, name, fpath, n); err != nil {
					return err
				}
			case f.Type.Basic.IsOpaque():
				typ := ir.Opaque(f.Type.Basic).WithPrecision(f.Type.Precision)
				if n > 1 || f.Type.IsArray() || v.Type.IsArray() {
					typ = typ.ArrayOf(n)
				}
				flat := &ir.Variable{Name: name, Type: typ, SymbolType: v.SymbolType}
				if err := r.symbols.DeclareGlobal(flat); err != nil {
					return fmt.Errorf("%w: extracted sampler %s: %w", ErrUnsupported, name, err)
				}
				rw.leaves[strings.Join(fpath, ".")] = flat
				decls = append(decls, r.tree.Declare(flat, ir.NoNode))
			}
		}
		return nil
	}
	return decls, walk(v.Type.Struct, v.Name, nil, v.Type.ArraySizeProduct())
}

// strip returns s without opaque members, or nil when nothing remains.
func (r *samplerRewriter) strip(s *ir.Struct) *ir.Struct {
	if ns, ok := r.stripped[s]; ok {
		return ns
	}
	var fields []ir.Field
	for _, f := range s.Fields {
		switch {
		case f.Type.Basic.IsOpaque():
			continue
		case f.Type.Struct != nil && f.Type.ContainsOpaque():
			ns := r.strip(f.Type.Struct)
			if ns == nil {
				continue
			}
			f.Type.Struct = ns
		}
		fields = append(fields, f)
	}
	if len(fields) == 0 {
		r.stripped[s] = nil
		return nil
	}
	ns := &ir.Struct{Name: s.Name, Fields: fields, SymbolType: s.SymbolType}
	r.stripped[s] = ns
	r.origin[ns] = s
	return ns
}

// replaceReferences swaps every opaque access through a rewritten struct
// uniform for an access to the extracted uniform.
func (r *samplerRewriter) replaceReferences() error {
	t := r.tree
	var log ir.RewriteLog
	var err error
	t.Traverse(t.Root, func(visit ir.Visit, id ir.NodeID, path []ir.NodeID) bool {
		if visit != ir.PreVisit || err != nil {
			return err == nil
		}
		switch n := t.Inner(id).(type) {
		case ir.Binary:
			if !n.Op.IsIndex() || !t.TypeOf(id).Basic.IsOpaque() {
				return true
			}
			repl, ok, ferr := r.flatten(id)
			if ferr != nil {
				err = ferr
				return false
			}
			if ok {
				log.Replace(ir.ParentOf(path), id, repl)
				return false
			}
		case ir.Aggregate:
			for _, a := range n.Args {
				if s := t.TypeOf(a).Struct; s != nil && r.isRewritten(s) {
					err = fmt.Errorf("%w: struct %s with samplers passed to %s", ErrUnsupported, s.Name, n.Name)
					return false
				}
			}
		}
		return true
	})
	if err != nil {
		return err
	}
	return log.Apply(t)
}

func (r *samplerRewriter) isRewritten(s *ir.Struct) bool {
	_, ok := r.stripped[s]
	return ok
}

// flatten builds the replacement for the access chain ending at id.
func (r *samplerRewriter) flatten(id ir.NodeID) (ir.NodeID, bool, error) {
	t := r.tree
	var chain []ir.Binary
	cur := id
	for {
		b, ok := t.Inner(cur).(ir.Binary)
		if !ok {
			break
		}
		if !b.Op.IsIndex() {
			return ir.NoNode, false, nil
		}
		chain = append(chain, b)
		cur = b.Left
	}
	sym, ok := t.Inner(cur).(ir.Symbol)
	if !ok {
		return ir.NoNode, false, nil
	}
	rw := r.rewrites[sym.Variable]
	if rw == nil {
		return ir.NoNode, false, nil
	}

	var path []string
	var acc flatIndex
	for i := len(chain) - 1; i >= 0; i-- {
		b := chain[i]
		left := t.TypeOf(b.Left)
		switch b.Op {
		case ir.OpIndexDirectStruct:
			fi := t.ConstantInt(b.Right)
			if left.Struct == nil || fi < 0 || fi >= len(left.Struct.Fields) {
				return ir.NoNode, false, internalf("rewriteStructSamplers", "bad field selection on %s", left)
			}
			path = append(path, left.Struct.Fields[fi].Name)
		case ir.OpIndexDirect, ir.OpIndexIndirect:
			acc.push(t, left.OutermostArraySize(), b.Right)
		default:
			return ir.NoNode, false, internalf("rewriteStructSamplers", "unexpected %s in sampler access", b.Op)
		}
	}

	flat := rw.leaves[strings.Join(path, ".")]
	if flat == nil {
		return ir.NoNode, false, internalf("rewriteStructSamplers", "no extracted sampler for %s.%s",
			sym.Variable.Name, strings.Join(path, "."))
	}
	if t.TypeOf(id).IsArray() {
		if acc.used || len(t.TypeOf(id).ArraySizes) > 1 {
			return ir.NoNode, false, fmt.Errorf("%w: partially indexed sampler array %s", ErrUnsupported, flat.Name)
		}
		return t.Symbol(flat), true, nil
	}
	if !acc.used {
		return t.Symbol(flat), true, nil
	}
	return acc.index(t, t.Symbol(flat)), true, nil
}

// flatIndex accumulates a row-major flat index, folding constants.
type flatIndex struct {
	used     bool
	constant int32
	node     ir.NodeID
}

func (f *flatIndex) push(t *ir.Tree, dim uint32, index ir.NodeID) {
	f.used = true
	if c := t.ConstantInt(index); c >= 0 && f.node == ir.NoNode {
		f.constant = f.constant*int32(dim) + int32(c) //nolint:gosec // G115: array sizes are small
		return
	}
	if t.TypeOf(index).Basic != ir.TypeInt {
		index = t.Construct(ir.Scalar(ir.TypeInt), index)
	}
	base := f.node
	if base == ir.NoNode {
		base = t.Int(f.constant)
	}
	f.node = t.Binary(ir.OpAdd, t.Binary(ir.OpMul, base, t.Int(int32(dim))), index) //nolint:gosec // G115: array sizes are small
}

func (f *flatIndex) index(t *ir.Tree, operand ir.NodeID) ir.NodeID {
	if f.node == ir.NoNode {
		return t.Index(operand, f.constant)
	}
	return t.IndexIndirect(operand, f.node)
}

// retypeNodes updates symbol and access node types after structs were
// stripped, remapping field indices to the stripped layout.
func (r *samplerRewriter) retypeNodes() {
	t := r.tree
	t.Traverse(t.Root, func(visit ir.Visit, id ir.NodeID, _ []ir.NodeID) bool {
		if visit != ir.PostVisit {
			return true
		}
		node := t.Node(id)
		switch n := node.Inner.(type) {
		case ir.Symbol:
			if _, ok := r.rewrites[n.Variable]; !ok {
				return true
			}
			node.Type = n.Variable.Type
		case ir.Binary:
			left := t.TypeOf(n.Left)
			old := r.origin[left.Struct]
			if left.Struct == nil || old == nil {
				return true
			}
			switch n.Op {
			case ir.OpIndexDirectStruct:
				oldIndex := t.ConstantInt(n.Right)
				if oldIndex < 0 || oldIndex >= len(old.Fields) {
					return true
				}
				newIndex := left.Struct.FieldIndex(old.Fields[oldIndex].Name)
				t.SetInner(n.Right, ir.ConstantUnion{Values: []ir.ConstantValue{{Basic: ir.TypeInt, Int: int32(newIndex)}}}) //nolint:gosec // G115: field counts are small
				node.Type = ir.FieldResultType(left, newIndex)
			case ir.OpIndexDirect, ir.OpIndexIndirect:
				node.Type = left.ElementType()
			default:
				return true
			}
		default:
			return true
		}
		t.Set(id, node)
		return true
	})
}
