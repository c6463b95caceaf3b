package sandbox

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"github.com/d5/tengo/v2"

	"github.com/nholloway/modguard/internal/permission"
)

// Artifact is an immutable compiled script shared by any number of concurrent
// executions. Host bindings and arguments are never set on the artifact
// itself; every invocation works on an independent clone.
type Artifact struct {
	fingerprint string
	entryPoint  string
	arity       int
	compiled    *tengo.Compiled
	compiledAt  time.Time
}

// Fingerprint returns the cache key the artifact was compiled under.
func (a *Artifact) Fingerprint() string { return a.fingerprint }

// CompiledAt returns when the artifact was built.
func (a *Artifact) CompiledAt() time.Time { return a.compiledAt }

// clone produces a fresh invocation unit detached from the shared artifact.
func (a *Artifact) clone() *tengo.Compiled {
	return a.compiled.Clone()
}

// fingerprint derives the cache key for a compilation. The entry point, the
// argument count and the granted categories all shape the generated bytecode
// and the resolvable module map, so they are part of the key: two permission
// envelopes never share an artifact.
func fingerprint(source, entryPoint string, arity int, perms *permission.Set) string {
	h := sha256.New()
	io.WriteString(h, source)
	fmt.Fprintf(h, "\x00%s\x00%d", entryPoint, arity)
	for _, cat := range perms.Categories() {
		fmt.Fprintf(h, "\x00%s", cat)
	}
	return hex.EncodeToString(h.Sum(nil))
}
