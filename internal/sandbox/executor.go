// Package sandbox orchestrates validated, resource-bounded execution of mod
// scripts: validate, compile or fetch from cache, load an isolated invocation
// unit, invoke the entry point, tear down.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/d5/tengo/v2"
	"github.com/google/uuid"

	"github.com/nholloway/modguard/internal/audit"
	"github.com/nholloway/modguard/internal/cache"
	"github.com/nholloway/modguard/internal/hostapi"
	"github.com/nholloway/modguard/internal/permission"
	"github.com/nholloway/modguard/internal/validator"
)

// bytesPerAlloc approximates the heap cost of one VM allocation when deriving
// the preemptive allocation cap from a byte budget.
const bytesPerAlloc = 64

// Generated symbol names. The double-underscore prefix keeps them out of the
// namespace mod authors write in.
const entryResultVar = "__entry_result__"

// resultVar is the conventional output variable for scripts run without an
// entry point.
const resultVar = "result"

var entryPointPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Request describes one script execution.
type Request struct {
	// Source is the raw script text.
	Source string

	// Permissions is the set the execution runs under. Nil falls back to
	// the None level.
	Permissions *permission.Set

	// EntryPoint names a top-level function to invoke with Args. Empty
	// means the script body itself is the unit of work and its "result"
	// variable, if any, becomes the return value.
	EntryPoint string

	// Args are passed positionally to the entry point.
	Args []interface{}

	// Host is the capability object behind the game/world/log bindings.
	// Ungranted bindings stay undefined regardless of the host.
	Host hostapi.Host
}

// ExecutionResult is the complete outcome of one execution, including the
// ordered audit trail. Execution-phase failures land here rather than in an
// error return so a misbehaving script can never crash the caller.
type ExecutionResult struct {
	ExecutionID         string
	Success             bool
	ReturnValue         interface{}
	ExecutionTime       time.Duration
	MemoryUsedApprox    int64
	TimedOut            bool
	MemoryLimitExceeded bool
	Exception           *SandboxError
	SecurityEvents      []audit.Event
}

// Executor runs scripts through the full validate-compile-load-invoke
// pipeline. It is safe for concurrent use; executions share nothing but the
// artifact cache.
type Executor struct {
	validator *validator.Validator
	cache     *cache.Cache[*Artifact]
	sink      audit.Sink
}

// Option configures an Executor.
type Option func(*Executor)

// WithValidator replaces the default validator.
func WithValidator(v *validator.Validator) Option {
	return func(e *Executor) {
		if v != nil {
			e.validator = v
		}
	}
}

// WithCacheSize bounds the artifact cache.
func WithCacheSize(n int) Option {
	return func(e *Executor) {
		e.cache = cache.New[*Artifact](n)
	}
}

// WithSink streams every audit event to the given sink as it is recorded.
func WithSink(sink audit.Sink) Option {
	return func(e *Executor) {
		if sink != nil {
			e.sink = sink
		}
	}
}

// New creates an Executor with default settings.
func New(opts ...Option) *Executor {
	e := &Executor{
		validator: validator.New(),
		cache:     cache.New[*Artifact](cache.DefaultMaxSize),
		sink:      audit.NopSink{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CacheStats returns a snapshot of the artifact cache counters.
func (e *Executor) CacheStats() cache.Stats {
	return e.cache.Stats()
}

// ClearCache drops every cached artifact.
func (e *Executor) ClearCache() {
	e.cache.Clear()
}

// Execute runs one script to completion and blocks until it finishes, times
// out, or fails. The returned result always carries the full audit trail.
func (e *Executor) Execute(ctx context.Context, req Request) *ExecutionResult {
	start := time.Now()
	perms := req.Permissions
	if perms == nil {
		perms = permission.NewBuilder(permission.LevelNone).Build()
	}

	result := &ExecutionResult{ExecutionID: uuid.NewString()}
	record := func(phase audit.Phase, detail string, violations []string) {
		event := audit.Event{
			ExecutionID: result.ExecutionID,
			ScriptID:    perms.ScriptID(),
			Phase:       phase,
			Timestamp:   time.Now(),
			Detail:      detail,
			Violations:  violations,
		}
		result.SecurityEvents = append(result.SecurityEvents, event)
		e.sink.Record(ctx, event)
	}
	fail := func(serr *SandboxError) *ExecutionResult {
		result.Exception = serr
		result.ExecutionTime = time.Since(start)
		record(audit.PhaseFailed, serr.Error(), nil)
		return result
	}

	// Validating. Invalid source never compiles or runs.
	vres := e.validator.Validate(req.Source, perms)
	record(audit.PhaseValidating, vres.Summary, violationStrings(vres))
	if !vres.IsValid {
		return fail(NewError(ErrorTypeValidation, perms.ScriptID(),
			"static validation rejected the script", nil))
	}
	if req.EntryPoint != "" && !entryPointPattern.MatchString(req.EntryPoint) {
		return fail(NewError(ErrorTypeValidation, perms.ScriptID(),
			fmt.Sprintf("entry point %q is not a valid identifier", req.EntryPoint), nil))
	}

	// Compiling. The cache is consulted first; artifacts are keyed by
	// source, entry point, arity and granted categories.
	fp := fingerprint(req.Source, req.EntryPoint, len(req.Args), perms)
	artifact, hit := e.cache.Get(fp)
	if hit {
		record(audit.PhaseCompiling, "artifact cache hit", nil)
	} else {
		var serr *SandboxError
		artifact, serr = e.compile(req, perms, fp)
		if serr != nil {
			record(audit.PhaseCompiling, "compilation failed", nil)
			return fail(serr)
		}
		e.cache.Add(fp, artifact)
		record(audit.PhaseCompiling, "artifact compiled and cached", nil)
	}

	// Loading. Each invocation gets its own clone; host bindings and
	// arguments exist only on the clone, never on the shared artifact.
	unit := artifact.clone()
	for name, obj := range hostapi.Bind(perms, req.Host) {
		if err := unit.Set(name, obj); err != nil {
			return fail(NewError(ErrorTypeLoad, perms.ScriptID(),
				fmt.Sprintf("cannot bind host namespace %q", name), err))
		}
	}
	for i, arg := range req.Args {
		if err := unit.Set(argName(i), arg); err != nil {
			return fail(NewError(ErrorTypeLoad, perms.ScriptID(),
				fmt.Sprintf("argument %d is not representable in the script runtime", i), err))
		}
	}
	record(audit.PhaseLoading, "invocation unit prepared", nil)

	// Invoking.
	record(audit.PhaseInvoking, "", nil)
	e.invoke(ctx, unit, perms, req, result)
	result.ExecutionTime = time.Since(start)

	switch {
	case result.TimedOut:
		record(audit.PhaseTimedOut,
			fmt.Sprintf("execution exceeded the %s budget", perms.Timeout()), nil)
	case result.Success:
		record(audit.PhaseCompleted, "", nil)
	default:
		detail := "execution failed"
		if result.Exception != nil {
			detail = result.Exception.Error()
		}
		record(audit.PhaseFailed, detail, nil)
	}
	return result
}

// compile builds a fresh artifact for the request. Only modules implied by
// the granted categories are resolvable; everything is emitted to memory.
func (e *Executor) compile(req Request, perms *permission.Set, fp string) (*Artifact, *SandboxError) {
	startTime := time.Now()

	source := req.Source
	if req.EntryPoint != "" {
		source += "\n" + entryTrailer(req.EntryPoint, len(req.Args))
	}

	script := tengo.NewScript([]byte(source))
	script.SetImports(hostapi.StdlibModules(perms))
	if max := perms.MaxMemoryBytes(); max > 0 {
		script.SetMaxAllocs(max / bytesPerAlloc)
	}

	// Declare every host namespace and argument slot up front so the
	// symbols exist in the compiled globals and can be bound per clone.
	for _, name := range hostapi.GlobalNames() {
		if err := script.Add(name, nil); err != nil {
			return nil, NewError(ErrorTypeCompilation, perms.ScriptID(),
				fmt.Sprintf("cannot declare host namespace %q", name), err)
		}
	}
	for i := 0; i < len(req.Args); i++ {
		if err := script.Add(argName(i), nil); err != nil {
			return nil, NewError(ErrorTypeCompilation, perms.ScriptID(),
				fmt.Sprintf("cannot declare argument slot %d", i), err)
		}
	}

	compiled, err := script.Compile()
	if err != nil {
		return nil, NewError(ErrorTypeCompilation, perms.ScriptID(),
			"script does not compile", err)
	}

	slog.Debug("Script compiled",
		"script", perms.ScriptID(),
		"fingerprint", fp[:12],
		"compilation_time", time.Since(startTime),
	)

	return &Artifact{
		fingerprint: fp,
		entryPoint:  req.EntryPoint,
		arity:       len(req.Args),
		compiled:    compiled,
		compiledAt:  time.Now(),
	}, nil
}

// invoke runs the prepared unit under the permission set's resource budget
// and fills in the execution-phase fields of the result.
func (e *Executor) invoke(ctx context.Context, unit *tengo.Compiled, perms *permission.Set, req Request, result *ExecutionResult) {
	runCtx := ctx
	cancel := context.CancelFunc(func() {})
	if t := perms.Timeout(); t > 0 {
		runCtx, cancel = context.WithTimeout(ctx, t)
	}
	defer cancel()

	sampler := startMemSampler()

	runErr := make(chan error, 1)
	go func() {
		// Teardown is owned by the run goroutine so that bindings are
		// stripped on every exit path, including an abandoned run that
		// only aborts after the caller has already returned.
		defer teardown(unit)
		defer func() {
			if r := recover(); r != nil {
				runErr <- fmt.Errorf("script panic: %v", r)
			}
		}()
		runErr <- unit.RunContext(runCtx)
	}()

	var err error
	select {
	case err = <-runErr:
	case <-runCtx.Done():
		// The VM aborts at the next instruction boundary. A host call
		// that never returns cannot be force-stopped, so the caller is
		// released now rather than waiting on it.
		err = runCtx.Err()
	}

	result.MemoryUsedApprox = sampler.finish()
	maxMemory := perms.MaxMemoryBytes()

	switch {
	case err == nil:
		if maxMemory > 0 && result.MemoryUsedApprox > maxMemory {
			result.MemoryLimitExceeded = true
			result.Exception = NewError(ErrorTypeMemoryLimit, perms.ScriptID(),
				fmt.Sprintf("script used approximately %d bytes, limit is %d", result.MemoryUsedApprox, maxMemory), nil)
			return
		}
		result.Success = true
		result.ReturnValue = extractReturn(unit, req.EntryPoint)

	case errors.Is(err, context.DeadlineExceeded):
		result.TimedOut = true
		result.Exception = NewError(ErrorTypeTimeout, perms.ScriptID(),
			"script execution timed out", err)

	case errors.Is(err, context.Canceled):
		result.Exception = NewError(ErrorTypeRuntime, perms.ScriptID(),
			"script execution canceled", err)

	case errors.Is(err, tengo.ErrObjectAllocLimit):
		result.MemoryLimitExceeded = true
		result.Exception = NewError(ErrorTypeMemoryLimit, perms.ScriptID(),
			"script exceeded its allocation limit", err)

	default:
		result.Exception = NewError(ErrorTypeRuntime, perms.ScriptID(),
			"script raised an error", err)
	}
}

// teardown strips the capability bindings from an invocation unit so a
// retained clone can never reach the host after its execution ends.
func teardown(unit *tengo.Compiled) {
	for _, name := range hostapi.GlobalNames() {
		_ = unit.Set(name, tengo.UndefinedValue)
	}
}

// extractReturn pulls the script's output variable off the finished unit.
func extractReturn(unit *tengo.Compiled, entryPoint string) interface{} {
	name := resultVar
	if entryPoint != "" {
		name = entryResultVar
	}
	if v := unit.Get(name); v != nil {
		return v.Value()
	}
	return nil
}

// entryTrailer generates the statement that calls the entry point with the
// declared argument slots and captures its return value.
func entryTrailer(entryPoint string, arity int) string {
	call := entryPoint + "("
	for i := 0; i < arity; i++ {
		if i > 0 {
			call += ", "
		}
		call += argName(i)
	}
	call += ")"
	return entryResultVar + " := " + call
}

func argName(i int) string {
	return fmt.Sprintf("__arg%d__", i)
}

// violationStrings formats a validation result for the audit trail.
func violationStrings(res *validator.Result) []string {
	if len(res.Violations) == 0 {
		return nil
	}
	out := make([]string, 0, len(res.Violations))
	for _, v := range res.Violations {
		out = append(out, fmt.Sprintf("%s/%s (line %d): %s", v.Severity, v.Category, v.SourceLine, v.Message))
	}
	return out
}
