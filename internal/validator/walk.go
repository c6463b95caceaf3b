package validator

import (
	"github.com/d5/tengo/v2/parser"
)

// inspect traverses the syntax tree in source order, calling fn for every
// node. If fn returns false the node's children are skipped. The tengo parser
// does not ship a walker, so the traversal is spelled out here.
func inspect(node parser.Node, fn func(parser.Node) bool) {
	if node == nil || !fn(node) {
		return
	}

	switch n := node.(type) {
	case *parser.File:
		for _, stmt := range n.Stmts {
			inspect(stmt, fn)
		}
	case *parser.ExprStmt:
		inspect(n.Expr, fn)
	case *parser.AssignStmt:
		for _, e := range n.LHS {
			inspect(e, fn)
		}
		for _, e := range n.RHS {
			inspect(e, fn)
		}
	case *parser.BlockStmt:
		for _, stmt := range n.Stmts {
			inspect(stmt, fn)
		}
	case *parser.IfStmt:
		if n.Init != nil {
			inspect(n.Init, fn)
		}
		inspect(n.Cond, fn)
		inspect(n.Body, fn)
		if n.Else != nil {
			inspect(n.Else, fn)
		}
	case *parser.ForStmt:
		if n.Init != nil {
			inspect(n.Init, fn)
		}
		if n.Cond != nil {
			inspect(n.Cond, fn)
		}
		if n.Post != nil {
			inspect(n.Post, fn)
		}
		inspect(n.Body, fn)
	case *parser.ForInStmt:
		inspect(n.Iterable, fn)
		inspect(n.Body, fn)
	case *parser.ReturnStmt:
		if n.Result != nil {
			inspect(n.Result, fn)
		}
	case *parser.ExportStmt:
		inspect(n.Result, fn)
	case *parser.IncDecStmt:
		inspect(n.Expr, fn)
	case *parser.FuncLit:
		inspect(n.Body, fn)
	case *parser.CallExpr:
		inspect(n.Func, fn)
		for _, arg := range n.Args {
			inspect(arg, fn)
		}
	case *parser.BinaryExpr:
		inspect(n.LHS, fn)
		inspect(n.RHS, fn)
	case *parser.UnaryExpr:
		inspect(n.Expr, fn)
	case *parser.CondExpr:
		inspect(n.Cond, fn)
		inspect(n.True, fn)
		inspect(n.False, fn)
	case *parser.ParenExpr:
		inspect(n.Expr, fn)
	case *parser.SelectorExpr:
		inspect(n.Expr, fn)
		inspect(n.Sel, fn)
	case *parser.IndexExpr:
		inspect(n.Expr, fn)
		inspect(n.Index, fn)
	case *parser.SliceExpr:
		inspect(n.Expr, fn)
		if n.Low != nil {
			inspect(n.Low, fn)
		}
		if n.High != nil {
			inspect(n.High, fn)
		}
	case *parser.ArrayLit:
		for _, el := range n.Elements {
			inspect(el, fn)
		}
	case *parser.MapLit:
		for _, el := range n.Elements {
			inspect(el.Value, fn)
		}
	case *parser.ImmutableExpr:
		inspect(n.Expr, fn)
	case *parser.ErrorExpr:
		inspect(n.Expr, fn)
	}
}
