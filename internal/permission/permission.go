package permission

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Level represents an ordered trust tier for a script. Each level implies a
// default envelope of API categories and resource limits.
type Level int

const (
	LevelNone Level = iota
	LevelRestricted
	LevelReadOnly
	LevelStandard
	LevelElevated
	LevelUnrestricted
)

// String returns the lowercase name of the level.
func (l Level) String() string {
	switch l {
	case LevelNone:
		return "none"
	case LevelRestricted:
		return "restricted"
	case LevelReadOnly:
		return "readonly"
	case LevelStandard:
		return "standard"
	case LevelElevated:
		return "elevated"
	case LevelUnrestricted:
		return "unrestricted"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// ParseLevel converts a level name into a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none":
		return LevelNone, nil
	case "restricted":
		return LevelRestricted, nil
	case "readonly", "read-only":
		return LevelReadOnly, nil
	case "standard":
		return LevelStandard, nil
	case "elevated":
		return LevelElevated, nil
	case "unrestricted":
		return LevelUnrestricted, nil
	default:
		return LevelNone, fmt.Errorf("unknown permission level: %q", s)
	}
}

// APICategory is a capability tag gating access to a class of operations.
type APICategory string

const (
	CategoryCore          APICategory = "core"
	CategoryCollections   APICategory = "collections"
	CategoryGameStateRead APICategory = "gamestate_read"
	CategoryGameStateWrite APICategory = "gamestate_write"
	CategoryLogging       APICategory = "logging"
	CategoryRandom        APICategory = "random"
	CategoryDateTime      APICategory = "datetime"
	CategorySerialization APICategory = "serialization"
	CategoryFileIO        APICategory = "fileio"
	CategoryNetwork       APICategory = "network"
	CategoryReflection    APICategory = "reflection"
	CategoryThreading     APICategory = "threading"
	CategoryUnsafe        APICategory = "unsafe"
)

// AllCategories lists every known API category.
var AllCategories = []APICategory{
	CategoryCore,
	CategoryCollections,
	CategoryGameStateRead,
	CategoryGameStateWrite,
	CategoryLogging,
	CategoryRandom,
	CategoryDateTime,
	CategorySerialization,
	CategoryFileIO,
	CategoryNetwork,
	CategoryReflection,
	CategoryThreading,
	CategoryUnsafe,
}

// envelope is the default capability and resource grant for a level.
type envelope struct {
	categories []APICategory
	timeout    time.Duration
	maxMemory  int64
}

// levelEnvelopes holds the documented default envelope per level.
// A zero timeout or memory value means unlimited.
var levelEnvelopes = map[Level]envelope{
	LevelNone: {
		categories: nil,
		timeout:    1 * time.Second,
		maxMemory:  1 * 1024 * 1024,
	},
	LevelRestricted: {
		categories: []APICategory{CategoryCore, CategoryCollections},
		timeout:    5 * time.Second,
		maxMemory:  10 * 1024 * 1024,
	},
	LevelReadOnly: {
		categories: []APICategory{
			CategoryCore, CategoryCollections,
			CategoryGameStateRead, CategoryLogging,
		},
		timeout:   5 * time.Second,
		maxMemory: 25 * 1024 * 1024,
	},
	LevelStandard: {
		categories: []APICategory{
			CategoryCore, CategoryCollections,
			CategoryGameStateRead, CategoryGameStateWrite,
			CategoryLogging, CategoryRandom, CategoryDateTime,
		},
		timeout:   10 * time.Second,
		maxMemory: 50 * 1024 * 1024,
	},
	LevelElevated: {
		categories: []APICategory{
			CategoryCore, CategoryCollections,
			CategoryGameStateRead, CategoryGameStateWrite,
			CategoryLogging, CategoryRandom, CategoryDateTime,
			CategorySerialization,
		},
		timeout:   30 * time.Second,
		maxMemory: 100 * 1024 * 1024,
	},
	LevelUnrestricted: {
		categories: AllCategories,
		timeout:    0,
		maxMemory:  0,
	},
}

// Set is an immutable description of what a script may do. Build one via the
// Builder; a Set is never mutated after construction and is safe for
// concurrent use by any number of executions.
type Set struct {
	level      Level
	scriptID   string
	categories map[APICategory]bool
	allowList  map[string]bool
	denyList   map[string]bool
	timeout    time.Duration
	maxMemory  int64
}

// Level returns the trust tier the set was built from.
func (s *Set) Level() Level { return s.level }

// ScriptID returns the identifier of the script this set was built for.
func (s *Set) ScriptID() string { return s.scriptID }

// Timeout returns the execution time budget. Zero means unlimited.
func (s *Set) Timeout() time.Duration { return s.timeout }

// MaxMemoryBytes returns the approximate memory cap. Zero means unlimited.
func (s *Set) MaxMemoryBytes() int64 { return s.maxMemory }

// Allows reports whether the given API category is granted.
func (s *Set) Allows(cat APICategory) bool { return s.categories[cat] }

// Categories returns the granted categories in sorted order.
func (s *Set) Categories() []APICategory {
	cats := make([]APICategory, 0, len(s.categories))
	for cat := range s.categories {
		cats = append(cats, cat)
	}
	sort.Slice(cats, func(i, j int) bool { return cats[i] < cats[j] })
	return cats
}

// DeniesModule reports whether the module name is on the deny list.
// Deny always wins over allow.
func (s *Set) DeniesModule(name string) bool { return s.denyList[name] }

// HasAllowList reports whether an explicit module allow list was configured.
func (s *Set) HasAllowList() bool { return len(s.allowList) > 0 }

// InAllowList reports whether the module name is on the allow list.
func (s *Set) InAllowList(name string) bool { return s.allowList[name] }

// ModulePermitted applies the combined allow/deny policy to a module name.
func (s *Set) ModulePermitted(name string) bool {
	if s.denyList[name] {
		return false
	}
	if len(s.allowList) > 0 {
		return s.allowList[name]
	}
	return true
}
