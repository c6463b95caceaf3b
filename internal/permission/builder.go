package permission

import (
	"log/slog"
	"time"
)

// Builder assembles a Set from a base level plus optional overrides.
// The zero value is not usable; start from NewBuilder.
type Builder struct {
	level      Level
	scriptID   string
	categories map[APICategory]bool
	allowList  map[string]bool
	denyList   map[string]bool
	timeout    time.Duration
	maxMemory  int64

	timeoutSet   bool
	maxMemorySet bool
}

// NewBuilder creates a builder seeded with the default envelope for the level.
func NewBuilder(level Level) *Builder {
	b := &Builder{
		level:      level,
		categories: make(map[APICategory]bool),
		allowList:  make(map[string]bool),
		denyList:   make(map[string]bool),
	}
	if env, ok := levelEnvelopes[level]; ok {
		for _, cat := range env.categories {
			b.categories[cat] = true
		}
	}
	return b
}

// WithScriptID attaches the identifier of the script the set is built for.
func (b *Builder) WithScriptID(id string) *Builder {
	b.scriptID = id
	return b
}

// WithCategories grants additional API categories on top of the level default.
func (b *Builder) WithCategories(cats ...APICategory) *Builder {
	for _, cat := range cats {
		b.categories[cat] = true
	}
	return b
}

// WithoutCategories revokes API categories from the level default.
func (b *Builder) WithoutCategories(cats ...APICategory) *Builder {
	for _, cat := range cats {
		delete(b.categories, cat)
	}
	return b
}

// WithTimeout overrides the default execution time budget.
func (b *Builder) WithTimeout(d time.Duration) *Builder {
	b.timeout = d
	b.timeoutSet = true
	return b
}

// WithMaxMemory overrides the default memory cap in bytes.
func (b *Builder) WithMaxMemory(bytes int64) *Builder {
	b.maxMemory = bytes
	b.maxMemorySet = true
	return b
}

// AllowModules adds module names to the allow list.
func (b *Builder) AllowModules(names ...string) *Builder {
	for _, name := range names {
		b.allowList[name] = true
	}
	return b
}

// DenyModules adds module names to the deny list. Deny wins over allow.
func (b *Builder) DenyModules(names ...string) *Builder {
	for _, name := range names {
		b.denyList[name] = true
	}
	return b
}

// Build freezes the configuration into an immutable Set. The builder can be
// reused afterwards without affecting the returned Set.
func (b *Builder) Build() *Set {
	env := levelEnvelopes[b.level]

	timeout := env.timeout
	if b.timeoutSet {
		timeout = b.timeout
	}
	maxMemory := env.maxMemory
	if b.maxMemorySet {
		maxMemory = b.maxMemory
	}

	set := &Set{
		level:      b.level,
		scriptID:   b.scriptID,
		categories: make(map[APICategory]bool, len(b.categories)),
		allowList:  make(map[string]bool, len(b.allowList)),
		denyList:   make(map[string]bool, len(b.denyList)),
		timeout:    timeout,
		maxMemory:  maxMemory,
	}
	for cat := range b.categories {
		set.categories[cat] = true
	}
	for name := range b.allowList {
		set.allowList[name] = true
	}
	for name := range b.denyList {
		set.denyList[name] = true
	}

	// Flag unrestricted grants for the host to audit. This is a policy
	// signal, not an error: trusted system scripts legitimately use it.
	if b.level == LevelUnrestricted {
		slog.Warn("Built unrestricted permission set",
			"script_id", b.scriptID,
		)
	}

	return set
}
