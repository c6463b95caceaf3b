package validator

import (
	"fmt"
	"strings"
)

// Severity ranks how serious a violation is. Error and Critical block
// execution; Info and Warning never do.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
	SeverityCritical
)

// String returns the lowercase name of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// Violation categories, one per pipeline stage.
const (
	CategorySyntax     = "syntax"
	CategoryNamespace  = "namespace"
	CategoryAPIAccess  = "api_access"
	CategoryPattern    = "dangerous_pattern"
	CategoryComplexity = "complexity"
)

// Violation is a single finding from static validation.
type Violation struct {
	Severity   Severity
	Category   string
	Message    string
	SourceLine int
}

func (v Violation) String() string {
	if v.SourceLine > 0 {
		return fmt.Sprintf("[%s] %s (line %d): %s", v.Severity, v.Category, v.SourceLine, v.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", v.Severity, v.Category, v.Message)
}

// Result is the outcome of validating one script against a permission set.
type Result struct {
	// IsValid is true iff no Error or Critical violation is present.
	IsValid    bool
	Violations []Violation
	Summary    string
}

// add appends a violation in pipeline order.
func (r *Result) add(sev Severity, category, message string, line int) {
	r.Violations = append(r.Violations, Violation{
		Severity:   sev,
		Category:   category,
		Message:    message,
		SourceLine: line,
	})
}

// Blocking reports whether any violation has Error or Critical severity.
func (r *Result) Blocking() bool {
	for _, v := range r.Violations {
		if v.Severity >= SeverityError {
			return true
		}
	}
	return false
}

// finalize computes IsValid and the human-readable summary.
func (r *Result) finalize() {
	r.IsValid = !r.Blocking()

	if len(r.Violations) == 0 {
		r.Summary = "validation passed with no findings"
		return
	}

	counts := make(map[Severity]int)
	for _, v := range r.Violations {
		counts[v.Severity]++
	}
	parts := make([]string, 0, 4)
	for _, sev := range []Severity{SeverityCritical, SeverityError, SeverityWarning, SeverityInfo} {
		if counts[sev] > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", counts[sev], sev))
		}
	}
	verdict := "passed"
	if !r.IsValid {
		verdict = "failed"
	}
	r.Summary = fmt.Sprintf("validation %s: %s", verdict, strings.Join(parts, ", "))
}
