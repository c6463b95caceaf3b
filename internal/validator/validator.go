// Package validator performs static pre-execution analysis of mod scripts
// against a permission set. Nothing in this package executes script code.
package validator

import (
	"fmt"

	"github.com/d5/tengo/v2/parser"
	"github.com/d5/tengo/v2/token"

	"github.com/nholloway/modguard/internal/permission"
)

// DefaultComplexityThreshold is the cyclomatic complexity above which a
// callable unit draws a warning.
const DefaultComplexityThreshold = 12

// Literal sizes above these bounds are treated as allocation bombs.
const (
	maxLiteralElements = 10_000
	maxLiteralBytes    = 64 * 1024
)

// Validator inspects script source before any compilation or execution.
// The pipeline short-circuits on unparsable input; every later stage runs
// unconditionally and appends its findings in order.
type Validator struct {
	complexityThreshold int
}

// Option configures a Validator.
type Option func(*Validator)

// WithComplexityThreshold overrides the complexity warning threshold.
func WithComplexityThreshold(n int) Option {
	return func(v *Validator) {
		if n > 0 {
			v.complexityThreshold = n
		}
	}
}

// New creates a Validator with default settings.
func New(opts ...Option) *Validator {
	v := &Validator{complexityThreshold: DefaultComplexityThreshold}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate runs the full pipeline and returns an ordered result.
// The result is valid iff no Error or Critical violation was found;
// warnings never block execution.
func (v *Validator) Validate(source string, perms *permission.Set) *Result {
	res := &Result{}

	fileSet := parser.NewFileSet()
	srcFile := fileSet.AddFile(perms.ScriptID(), -1, len(source))
	p := parser.NewParser(srcFile, []byte(source), nil)
	file, err := p.ParseFile()
	if err != nil {
		// Unparsable input is fatal: nothing below can run on a broken tree.
		res.add(SeverityCritical, CategorySyntax,
			fmt.Sprintf("source does not parse: %v", err), 0)
		res.finalize()
		return res
	}

	imports := collectImports(file, fileSet)
	v.checkNamespaces(imports, perms, res)
	v.checkAPICategories(imports, perms, res)
	v.checkPatterns(file, fileSet, imports, res)
	v.checkComplexity(file, fileSet, res)

	res.finalize()
	return res
}

// importRef records the first reference to an imported module.
type importRef struct {
	name string
	line int
}

// collectImports gathers every referenced module namespace in source order,
// first occurrence only. Host modules are bound as globals, so bare
// identifier references to them count as namespace references too.
func collectImports(file *parser.File, fileSet *parser.SourceFileSet) []importRef {
	seen := make(map[string]bool)
	var refs []importRef

	record := func(name string, node parser.Node) {
		if seen[name] {
			return
		}
		seen[name] = true
		refs = append(refs, importRef{
			name: name,
			line: fileSet.Position(node.Pos()).Line,
		})
	}

	inspect(file, func(node parser.Node) bool {
		switch n := node.(type) {
		case *parser.ImportExpr:
			record(n.ModuleName, n)
		case *parser.Ident:
			if permission.IsHostModule(n.Name) {
				record(n.Name, n)
			}
		}
		return true
	})
	return refs
}

// checkNamespaces enforces the module allow/deny lists. Deny wins.
func (v *Validator) checkNamespaces(imports []importRef, perms *permission.Set, res *Result) {
	for _, imp := range imports {
		if perms.DeniesModule(imp.name) {
			res.add(SeverityError, CategoryNamespace,
				fmt.Sprintf("module %q is on the deny list", imp.name), imp.line)
			continue
		}
		if perms.HasAllowList() && !perms.InAllowList(imp.name) {
			res.add(SeverityError, CategoryNamespace,
				fmt.Sprintf("module %q is not on the allow list", imp.name), imp.line)
		}
	}
}

// checkAPICategories verifies that every known module's gating category is
// granted. Unknown modules are handled by the pattern stage.
func (v *Validator) checkAPICategories(imports []importRef, perms *permission.Set, res *Result) {
	for _, imp := range imports {
		cat, known := permission.ModuleCategory(imp.name)
		if !known {
			continue
		}
		if perms.Allows(cat) {
			continue
		}
		sev := SeverityError
		if cat == permission.CategoryUnsafe {
			sev = SeverityCritical
		}
		res.add(sev, CategoryAPIAccess,
			fmt.Sprintf("module %q requires the %s API category, which is not granted", imp.name, cat),
			imp.line)
	}
}

// checkPatterns flags known-dangerous constructs.
func (v *Validator) checkPatterns(file *parser.File, fileSet *parser.SourceFileSet, imports []importRef, res *Result) {
	// Unmanaged module imports are denied at every permission level: they
	// would resolve against arbitrary source on the module search path.
	for _, imp := range imports {
		if _, known := permission.ModuleCategory(imp.name); !known {
			res.add(SeverityCritical, CategoryPattern,
				fmt.Sprintf("unmanaged module %q cannot be imported", imp.name), imp.line)
		}
	}

	inspect(file, func(node parser.Node) bool {
		switch n := node.(type) {
		case *parser.ForStmt:
			if n.Cond == nil && !hasLoopExit(n.Body) {
				res.add(SeverityWarning, CategoryPattern,
					"unconditional infinite loop with no break or return",
					fileSet.Position(n.Pos()).Line)
			}
		case *parser.AssignStmt:
			for _, lhs := range n.LHS {
				if ident, ok := lhs.(*parser.Ident); ok && builtinNames[ident.Name] {
					res.add(SeverityWarning, CategoryPattern,
						fmt.Sprintf("script redefines builtin %q", ident.Name),
						fileSet.Position(ident.Pos()).Line)
				}
			}
		case *parser.ArrayLit:
			if len(n.Elements) > maxLiteralElements {
				res.add(SeverityWarning, CategoryPattern,
					fmt.Sprintf("array literal with %d elements exceeds the %d element bound", len(n.Elements), maxLiteralElements),
					fileSet.Position(n.Pos()).Line)
			}
		case *parser.StringLit:
			if len(n.Value) > maxLiteralBytes {
				res.add(SeverityWarning, CategoryPattern,
					fmt.Sprintf("string literal of %d bytes exceeds the %d byte bound", len(n.Value), maxLiteralBytes),
					fileSet.Position(n.Pos()).Line)
			}
		}
		return true
	})
}

// hasLoopExit reports whether a loop body contains a break or return that
// could terminate the loop. Breaks inside nested functions do not count.
func hasLoopExit(body *parser.BlockStmt) bool {
	found := false
	inspect(body, func(node parser.Node) bool {
		switch n := node.(type) {
		case *parser.FuncLit:
			return false
		case *parser.BranchStmt:
			if n.Token == token.Break {
				found = true
			}
		case *parser.ReturnStmt:
			found = true
		}
		return !found
	})
	return found
}

// builtinNames are globals whose redefinition usually signals an attempt to
// confuse later analysis or host bindings.
var builtinNames = map[string]bool{
	"len": true, "append": true, "copy": true, "delete": true,
	"format": true, "splice": true, "type_name": true,
	"string": true, "int": true, "float": true, "bool": true,
	"char": true, "bytes": true, "error": true, "immutable": true,
	"is_callable": true, "is_error": true, "is_undefined": true,
}
