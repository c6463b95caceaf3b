package permission

// moduleCategories maps every known script-importable module name to the API
// category that gates it. Modules absent from this table are unmanaged and
// always rejected by the validator regardless of permission level.
var moduleCategories = map[string]APICategory{
	// Tengo standard library.
	"fmt":    CategoryCore,
	"text":   CategoryCore,
	"math":   CategoryCore,
	"enum":   CategoryCollections,
	"rand":   CategoryRandom,
	"times":  CategoryDateTime,
	"json":   CategorySerialization,
	"base64": CategorySerialization,
	"hex":    CategorySerialization,
	"os":     CategoryFileIO,

	// Host modules bound by the sandbox.
	"game":  CategoryGameStateRead,
	"world": CategoryGameStateWrite,
	"log":   CategoryLogging,

	// Reserved names: no module is ever bound for these, but scripts that
	// ask for them are classified so the violation names the category.
	"http":    CategoryNetwork,
	"net":     CategoryNetwork,
	"reflect": CategoryReflection,
	"debug":   CategoryReflection,
	"sync":    CategoryThreading,
	"thread":  CategoryThreading,
	"exec":    CategoryUnsafe,
	"syscall": CategoryUnsafe,
	"unsafe":  CategoryUnsafe,
}

// ModuleCategory returns the API category gating the named module.
// The second return is false for unmanaged (unknown) modules.
func ModuleCategory(name string) (APICategory, bool) {
	cat, ok := moduleCategories[name]
	return cat, ok
}

// hostModules are bound as globals by the sandbox rather than imported, so
// scripts reference them as bare identifiers.
var hostModules = map[string]bool{
	"game":  true,
	"world": true,
	"log":   true,
}

// IsHostModule reports whether the name is a host-bound global namespace.
func IsHostModule(name string) bool {
	return hostModules[name]
}
