package provider

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nholloway/modguard/internal/permission"
)

// hintPrefix marks a permission-hint directive in a script's header comment
// block. Hints end at the first non-comment line.
const hintPrefix = "//mod:"

// Hints are the permission declarations a script carries in its header, e.g.
//
//	//mod: level=standard timeout=2s
//	//mod: deny=rand
//
// Hints can only narrow what the host grants, never widen it.
type Hints struct {
	Level     string
	Allow     []string
	Deny      []string
	Timeout   time.Duration
	MaxMemory int64
}

// ParseHints extracts the hint directives from a script's header comments.
// Unknown keys and malformed values are ignored.
func ParseHints(content string) Hints {
	var h Hints
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "//") {
			break
		}
		rest, ok := strings.CutPrefix(line, hintPrefix)
		if !ok {
			continue
		}
		for _, field := range strings.Fields(rest) {
			key, value, ok := strings.Cut(field, "=")
			if !ok {
				continue
			}
			switch key {
			case "level":
				h.Level = value
			case "allow":
				h.Allow = append(h.Allow, strings.Split(value, ",")...)
			case "deny":
				h.Deny = append(h.Deny, strings.Split(value, ",")...)
			case "timeout":
				if d, err := time.ParseDuration(value); err == nil && d > 0 {
					h.Timeout = d
				}
			case "memory":
				if n, err := strconv.ParseInt(value, 10, 64); err == nil && n > 0 {
					h.MaxMemory = n
				}
			}
		}
	}
	return h
}

// Permissions builds the effective permission set for a script: the hinted
// level capped at maxLevel, plus the hinted module lists and resource
// overrides. A script with no level hint runs at maxLevel.
func (h Hints) Permissions(scriptID string, maxLevel permission.Level) (*permission.Set, error) {
	level := maxLevel
	if h.Level != "" {
		parsed, err := permission.ParseLevel(h.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid level hint for %s: %w", scriptID, err)
		}
		if parsed < level {
			level = parsed
		}
	}

	b := permission.NewBuilder(level).WithScriptID(scriptID)
	if len(h.Allow) > 0 {
		b.AllowModules(h.Allow...)
	}
	if len(h.Deny) > 0 {
		b.DenyModules(h.Deny...)
	}
	if h.Timeout > 0 {
		b.WithTimeout(h.Timeout)
	}
	if h.MaxMemory > 0 {
		b.WithMaxMemory(h.MaxMemory)
	}
	return b.Build(), nil
}
