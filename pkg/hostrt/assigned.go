// SPDX-License-Identifier: MPL-2.0

package hostrt

import "mvdan.cc/sh/v3/syntax"

var arithmAssignOps = map[syntax.BinAritOperator]bool{
	syntax.Assgn: true, syntax.AddAssgn: true, syntax.SubAssgn: true,
	syntax.MulAssgn: true, syntax.QuoAssgn: true, syntax.RemAssgn: true,
	syntax.AndAssgn: true, syntax.OrAssgn: true, syntax.XorAssgn: true,
	syntax.ShlAssgn: true, syntax.ShrAssgn: true,
}

// assignedNames lists the variables the program's code assigns: plain and
// declared assignments, for-loop variables and arithmetic assignments.
// Prefix assignments of a command (`FOO=1 cmd`) only last for that command
// and are not included.
func (p *Program) assignedNames() map[string]bool {
	names := map[string]bool{}
	addWord := func(x syntax.ArithmExpr) {
		if w, ok := x.(*syntax.Word); ok {
			if lit := w.Lit(); lit != "" {
				names[lit] = true
			}
		}
	}
	syntax.Walk(p.file, func(node syntax.Node) bool {
		switch n := node.(type) {
		case *syntax.CallExpr:
			if len(n.Args) == 0 {
				for _, as := range n.Assigns {
					if as.Name != nil {
						names[as.Name.Value] = true
					}
				}
			}
		case *syntax.DeclClause:
			for _, as := range n.Args {
				if as.Name != nil {
					names[as.Name.Value] = true
				}
			}
		case *syntax.WordIter:
			names[n.Name.Value] = true
		case *syntax.BinaryArithm:
			if arithmAssignOps[n.Op] {
				addWord(n.X)
			}
		case *syntax.UnaryArithm:
			if n.Op == syntax.Inc || n.Op == syntax.Dec {
				addWord(n.X)
			}
		}
		return true
	})
	return names
}
