package validator

import (
	"fmt"

	"github.com/d5/tengo/v2/parser"
	"github.com/d5/tengo/v2/token"
)

// unitScore is the complexity measurement for one callable unit.
type unitScore struct {
	name  string
	line  int
	score int
}

// checkComplexity computes a cyclomatic-style metric for the script body and
// for every function literal, warning when a unit exceeds the threshold.
// Complexity findings never block execution.
func (v *Validator) checkComplexity(file *parser.File, fileSet *parser.SourceFileSet, res *Result) {
	units := []unitScore{
		{name: "script body", line: 1, score: complexityOf(file)},
	}

	inspect(file, func(node parser.Node) bool {
		if fn, ok := node.(*parser.FuncLit); ok {
			units = append(units, unitScore{
				name:  "function",
				line:  fileSet.Position(fn.Pos()).Line,
				score: complexityOf(fn.Body),
			})
		}
		return true
	})

	for _, unit := range units {
		if unit.score > v.complexityThreshold {
			res.add(SeverityWarning, CategoryComplexity,
				fmt.Sprintf("%s has cyclomatic complexity %d (threshold %d)", unit.name, unit.score, v.complexityThreshold),
				unit.line)
		}
	}
}

// complexityOf counts decision points within one callable unit. Nested
// function literals are separate units and are not descended into.
func complexityOf(root parser.Node) int {
	score := 1
	first := true
	inspect(root, func(node parser.Node) bool {
		if first {
			first = false
			return true
		}
		switch n := node.(type) {
		case *parser.FuncLit:
			return false
		case *parser.IfStmt, *parser.ForStmt, *parser.ForInStmt, *parser.CondExpr:
			score++
		case *parser.BinaryExpr:
			if n.Token == token.LAnd || n.Token == token.LOr {
				score++
			}
		}
		return true
	})
	return score
}
