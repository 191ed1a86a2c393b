// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package glsl

import (
	"fmt"

	"github.com/gogpu/glesvk/ir"
)

// writeBody writes a braced block on its own lines.
func (w *Writer) writeBody(block ir.NodeID) error {
	w.writeLine("{")
	w.pushIndent()
	if err := w.writeBlock(block); err != nil {
		return err
	}
	w.popIndent()
	w.writeLine("}")
	return nil
}

// writeBlock writes the statements of a block.
func (w *Writer) writeBlock(block ir.NodeID) error {
	if _, ok := w.tree.Inner(block).(ir.Block); !ok {
		return fmt.Errorf("node %d is not a block", block)
	}
	for _, stmt := range w.tree.Statements(block) {
		if err := w.writeStatement(stmt); err != nil {
			return err
		}
	}
	return nil
}

// writeStatement writes a single statement.
func (w *Writer) writeStatement(id ir.NodeID) error {
	switch n := w.tree.Inner(id).(type) {
	case ir.Block:
		return w.writeBody(id)

	case ir.Declaration:
		s, err := w.localDeclaration(n)
		if err != nil {
			return err
		}
		w.writeLine("%s;", s)
		return nil

	case ir.IfElse:
		return w.writeIf(n)

	case ir.Loop:
		return w.writeLoop(n)

	case ir.Branch:
		return w.writeBranch(n)

	case ir.Symbol:
		if n.Variable != nil && n.Variable.Name == XfbOutPlaceholder {
			w.xfbPlaceholders = true
		}
		s, err := w.expr(id)
		if err != nil {
			return err
		}
		w.writeLine("%s;", s)
		return nil

	case ir.FunctionDefinition:
		return fmt.Errorf("nested function definition %s", n.Function.Name)

	case nil:
		return fmt.Errorf("statement %d has no payload", id)

	default:
		s, err := w.statementExpr(id)
		if err != nil {
			return err
		}
		w.writeLine("%s;", s)
		return nil
	}
}

// localDeclaration returns a declaration inside a function without the
// trailing semicolon.
func (w *Writer) localDeclaration(d ir.Declaration) (string, error) {
	if d.Variable == nil {
		return "", fmt.Errorf("declaration without variable")
	}
	if err := w.checkName(d.Variable.Name, d.Variable.SymbolType); err != nil {
		return "", err
	}
	s := w.declarationString(d.Variable)
	if d.Init == ir.NoNode {
		return s, nil
	}
	init, err := w.expr(d.Init)
	if err != nil {
		return "", err
	}
	return s + " = " + init, nil
}

// statementExpr writes an expression used as a statement. Assignments
// are not wrapped in parentheses at this level.
func (w *Writer) statementExpr(id ir.NodeID) (string, error) {
	if b, ok := w.tree.Inner(id).(ir.Binary); ok && b.Op.IsAssignment() {
		return w.assignment(b)
	}
	return w.expr(id)
}

// writeIf writes an if statement with an optional else branch.
func (w *Writer) writeIf(n ir.IfElse) error {
	cond, err := w.expr(n.Cond)
	if err != nil {
		return err
	}
	w.writeLine("if (%s)", cond)
	if err := w.writeBody(n.Then); err != nil {
		return err
	}
	if n.Else == ir.NoNode {
		return nil
	}
	w.writeLine("else")
	return w.writeBody(n.Else)
}

// writeLoop writes a for, while or do-while loop.
func (w *Writer) writeLoop(n ir.Loop) error {
	optional := func(id ir.NodeID) (string, error) {
		if id == ir.NoNode {
			return "", nil
		}
		return w.statementExpr(id)
	}
	switch n.Kind {
	case ir.LoopFor:
		var init string
		if n.Init != ir.NoNode {
			var err error
			if d, ok := w.tree.Inner(n.Init).(ir.Declaration); ok {
				init, err = w.localDeclaration(d)
			} else {
				init, err = w.statementExpr(n.Init)
			}
			if err != nil {
				return err
			}
		}
		cond, err := optional(n.Cond)
		if err != nil {
			return err
		}
		expr, err := optional(n.Expr)
		if err != nil {
			return err
		}
		w.writeLine("for (%s; %s; %s)", init, cond, expr)
		return w.writeBody(n.Body)

	case ir.LoopWhile:
		cond, err := w.expr(n.Cond)
		if err != nil {
			return err
		}
		w.writeLine("while (%s)", cond)
		return w.writeBody(n.Body)

	case ir.LoopDoWhile:
		w.writeLine("do")
		if err := w.writeBody(n.Body); err != nil {
			return err
		}
		cond, err := w.expr(n.Cond)
		if err != nil {
			return err
		}
		w.writeLine("while (%s);", cond)
		return nil

	default:
		return fmt.Errorf("unknown loop kind %d", n.Kind)
	}
}

// writeBranch writes discard, return, break or continue.
func (w *Writer) writeBranch(n ir.Branch) error {
	if n.Op == ir.BranchReturn && n.Value != ir.NoNode {
		v, err := w.expr(n.Value)
		if err != nil {
			return err
		}
		w.writeLine("return %s;", v)
		return nil
	}
	w.writeLine("%s;", n.Op)
	return nil
}
