package validator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nholloway/modguard/internal/permission"
)

func standardSet() *permission.Set {
	return permission.NewBuilder(permission.LevelStandard).Build()
}

func findCategory(res *Result, category string) []Violation {
	var out []Violation
	for _, v := range res.Violations {
		if v.Category == category {
			out = append(out, v)
		}
	}
	return out
}

func TestValidate_CleanScript(t *testing.T) {
	v := New()
	res := v.Validate(`result := 2 + 2`, standardSet())

	assert.True(t, res.IsValid)
	assert.Empty(t, res.Violations)
	assert.Contains(t, res.Summary, "passed")
}

func TestValidate_UnparsableSource(t *testing.T) {
	v := New()
	res := v.Validate(`if { this is not tengo ===`, standardSet())

	assert.False(t, res.IsValid)
	require.Len(t, res.Violations, 1, "parse failure must short-circuit the pipeline")
	assert.Equal(t, SeverityCritical, res.Violations[0].Severity)
	assert.Equal(t, CategorySyntax, res.Violations[0].Category)
}

func TestValidate_DeniedModule(t *testing.T) {
	perms := permission.NewBuilder(permission.LevelStandard).
		DenyModules("rand").
		Build()

	v := New()
	res := v.Validate(`r := import("rand"); result := r.intn(6)`, perms)

	assert.False(t, res.IsValid)
	violations := findCategory(res, CategoryNamespace)
	require.Len(t, violations, 1)
	assert.Equal(t, SeverityError, violations[0].Severity)
	assert.Contains(t, violations[0].Message, "deny list")
}

func TestValidate_DenyWinsOverAllow(t *testing.T) {
	perms := permission.NewBuilder(permission.LevelStandard).
		AllowModules("rand").
		DenyModules("rand").
		Build()

	v := New()
	res := v.Validate(`r := import("rand")`, perms)

	assert.False(t, res.IsValid, "a module on both lists must always be rejected")
}

func TestValidate_AllowListExcludesOthers(t *testing.T) {
	perms := permission.NewBuilder(permission.LevelStandard).
		AllowModules("fmt").
		Build()

	v := New()
	res := v.Validate(`t := import("times")`, perms)

	assert.False(t, res.IsValid)
	violations := findCategory(res, CategoryNamespace)
	require.Len(t, violations, 1)
	assert.Contains(t, violations[0].Message, "allow list")
}

func TestValidate_MissingAPICategory(t *testing.T) {
	// Standard grants no FileIO, so the os module must be rejected by name.
	v := New()
	res := v.Validate(`os := import("os")
os.remove("save.dat")`, standardSet())

	assert.False(t, res.IsValid)
	violations := findCategory(res, CategoryAPIAccess)
	require.Len(t, violations, 1)
	assert.Equal(t, SeverityError, violations[0].Severity)
	assert.Contains(t, violations[0].Message, string(permission.CategoryFileIO))
	assert.Equal(t, 1, violations[0].SourceLine)
}

func TestValidate_UnsafeModuleIsCritical(t *testing.T) {
	v := New()
	res := v.Validate(`e := import("exec")`, standardSet())

	assert.False(t, res.IsValid)
	violations := findCategory(res, CategoryAPIAccess)
	require.Len(t, violations, 1)
	assert.Equal(t, SeverityCritical, violations[0].Severity)
}

func TestValidate_GrantedCategoryPasses(t *testing.T) {
	v := New()
	res := v.Validate(`r := import("rand"); result := r.intn(6)`, standardSet())
	assert.True(t, res.IsValid, res.Summary)
}

func TestValidate_UnmanagedModule(t *testing.T) {
	// Unknown modules are always rejected, even for unrestricted sets.
	perms := permission.NewBuilder(permission.LevelUnrestricted).Build()

	v := New()
	res := v.Validate(`m := import("totally_custom_native_lib")`, perms)

	assert.False(t, res.IsValid)
	violations := findCategory(res, CategoryPattern)
	require.Len(t, violations, 1)
	assert.Equal(t, SeverityCritical, violations[0].Severity)
	assert.Contains(t, violations[0].Message, "unmanaged")
}

func TestValidate_InfiniteLoopWarning(t *testing.T) {
	v := New()
	res := v.Validate(`
for {
	x := 1
}`, standardSet())

	assert.True(t, res.IsValid, "a warning alone must not block execution")
	violations := findCategory(res, CategoryPattern)
	require.Len(t, violations, 1)
	assert.Equal(t, SeverityWarning, violations[0].Severity)
	assert.Contains(t, violations[0].Message, "infinite loop")
}

func TestValidate_LoopWithBreakNotFlagged(t *testing.T) {
	v := New()
	res := v.Validate(`
i := 0
for {
	i++
	if i > 10 {
		break
	}
}
result := i`, standardSet())

	assert.True(t, res.IsValid)
	assert.Empty(t, findCategory(res, CategoryPattern))
}

func TestValidate_BuiltinRedefinition(t *testing.T) {
	v := New()
	res := v.Validate(`len := func(x) { return 0 }`, standardSet())

	assert.True(t, res.IsValid)
	violations := findCategory(res, CategoryPattern)
	require.Len(t, violations, 1)
	assert.Contains(t, violations[0].Message, `"len"`)
}

func TestValidate_ComplexityWarning(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("check := func(x) {\n")
	for i := 0; i < 15; i++ {
		sb.WriteString("\tif x > 0 { x-- }\n")
	}
	sb.WriteString("\treturn x\n}\nresult := check(5)")

	v := New()
	res := v.Validate(sb.String(), standardSet())

	assert.True(t, res.IsValid, "complexity findings are non-blocking")
	violations := findCategory(res, CategoryComplexity)
	require.Len(t, violations, 1)
	assert.Equal(t, SeverityWarning, violations[0].Severity)
}

func TestValidate_ComplexityThresholdOption(t *testing.T) {
	src := `x := 0
if x > 0 { x = 1 }
if x > 1 { x = 2 }
if x > 2 { x = 3 }`

	strict := New(WithComplexityThreshold(2))
	res := strict.Validate(src, standardSet())
	assert.NotEmpty(t, findCategory(res, CategoryComplexity))

	relaxed := New()
	res = relaxed.Validate(src, standardSet())
	assert.Empty(t, findCategory(res, CategoryComplexity))
}

func TestValidate_ViolationOrdering(t *testing.T) {
	perms := permission.NewBuilder(permission.LevelStandard).
		DenyModules("rand").
		Build()

	v := New()
	res := v.Validate(`r := import("rand")
o := import("os")
for {
	x := 1
}`, perms)

	require.GreaterOrEqual(t, len(res.Violations), 3)
	// Pipeline order: namespace findings, then API access, then patterns.
	assert.Equal(t, CategoryNamespace, res.Violations[0].Category)
	assert.Equal(t, CategoryAPIAccess, res.Violations[1].Category)
	assert.Equal(t, CategoryPattern, res.Violations[2].Category)
}

func TestValidate_HostGlobalsAreNamespaces(t *testing.T) {
	src := `hp := game.get("player.hp")
world.set("player.hp", hp - 10)`

	// Standard grants both game-state categories.
	res := New().Validate(src, standardSet())
	assert.True(t, res.IsValid, res.Summary)

	// Restricted grants neither; both references must be named.
	restricted := permission.NewBuilder(permission.LevelRestricted).Build()
	res = New().Validate(src, restricted)
	assert.False(t, res.IsValid)
	violations := findCategory(res, CategoryAPIAccess)
	require.Len(t, violations, 2)
	assert.Contains(t, violations[0].Message, string(permission.CategoryGameStateRead))
	assert.Contains(t, violations[1].Message, string(permission.CategoryGameStateWrite))
}

func TestSeverityString(t *testing.T) {
	assert.Equal(t, "warning", SeverityWarning.String())
	assert.Equal(t, "critical", SeverityCritical.String())
}
