package hostapi

import (
	"log/slog"

	"github.com/d5/tengo/v2"
	"github.com/d5/tengo/v2/stdlib"

	"github.com/nholloway/modguard/internal/permission"
)

// stdlibByCategory maps each granted category to the Tengo standard library
// modules it unlocks. FileIO deliberately maps to os: it is only reachable
// at the Unrestricted level or with an explicit FileIO grant.
var stdlibByCategory = map[permission.APICategory][]string{
	permission.CategoryCore:          {"fmt", "text", "math"},
	permission.CategoryCollections:   {"enum"},
	permission.CategoryRandom:        {"rand"},
	permission.CategoryDateTime:      {"times"},
	permission.CategorySerialization: {"json", "base64", "hex"},
	permission.CategoryFileIO:        {"os"},
}

// Global binding names injected into scripts. They are declared at compile
// time and bound per invocation, so cached artifacts never capture a host.
const (
	GlobalGame  = "game"
	GlobalWorld = "world"
	GlobalLog   = "log"
)

// GlobalNames returns every host binding name the sandbox must declare.
func GlobalNames() []string {
	return []string{GlobalGame, GlobalWorld, GlobalLog}
}

// StdlibModules builds the import map for a permission set. Only modules
// whose gating category is granted are resolvable; everything else fails at
// compile time, which is the load-stage backstop behind the validator.
func StdlibModules(perms *permission.Set) *tengo.ModuleMap {
	var names []string
	for _, cat := range perms.Categories() {
		names = append(names, stdlibByCategory[cat]...)
	}
	return stdlib.GetModuleMap(names...)
}

// Bind builds the host global bindings a permission set grants. Ungranted
// names are absent from the result and stay undefined inside the script.
func Bind(perms *permission.Set, host Host) map[string]tengo.Object {
	bindings := make(map[string]tengo.Object)
	if host == nil {
		return bindings
	}
	if perms.Allows(permission.CategoryGameStateRead) {
		bindings[GlobalGame] = gameModule(host)
	}
	if perms.Allows(permission.CategoryGameStateWrite) {
		bindings[GlobalWorld] = worldModule(host)
	}
	if perms.Allows(permission.CategoryLogging) {
		bindings[GlobalLog] = logModule(host)
	}
	return bindings
}

// gameModule exposes read-only game state.
func gameModule(host Host) tengo.Object {
	return &tengo.ImmutableMap{Value: map[string]tengo.Object{
		"get": &tengo.UserFunction{
			Name: "get",
			Value: func(args ...tengo.Object) (tengo.Object, error) {
				if len(args) != 1 {
					return nil, tengo.ErrWrongNumArguments
				}
				key, ok := tengo.ToString(args[0])
				if !ok {
					return nil, tengo.ErrInvalidArgumentType{Name: "key", Expected: "string", Found: args[0].TypeName()}
				}
				value, found := host.StateGet(key)
				if !found {
					return tengo.UndefinedValue, nil
				}
				obj, err := tengo.FromInterface(value)
				if err != nil {
					return nil, err
				}
				return obj, nil
			},
		},
		"has": &tengo.UserFunction{
			Name: "has",
			Value: func(args ...tengo.Object) (tengo.Object, error) {
				if len(args) != 1 {
					return nil, tengo.ErrWrongNumArguments
				}
				key, ok := tengo.ToString(args[0])
				if !ok {
					return nil, tengo.ErrInvalidArgumentType{Name: "key", Expected: "string", Found: args[0].TypeName()}
				}
				if _, found := host.StateGet(key); found {
					return tengo.TrueValue, nil
				}
				return tengo.FalseValue, nil
			},
		},
		"keys": &tengo.UserFunction{
			Name: "keys",
			Value: func(args ...tengo.Object) (tengo.Object, error) {
				if len(args) != 0 {
					return nil, tengo.ErrWrongNumArguments
				}
				keys := host.StateKeys()
				arr := make([]tengo.Object, 0, len(keys))
				for _, k := range keys {
					arr = append(arr, &tengo.String{Value: k})
				}
				return &tengo.Array{Value: arr}, nil
			},
		},
	}}
}

// worldModule exposes game-state mutation.
func worldModule(host Host) tengo.Object {
	return &tengo.ImmutableMap{Value: map[string]tengo.Object{
		"set": &tengo.UserFunction{
			Name: "set",
			Value: func(args ...tengo.Object) (tengo.Object, error) {
				if len(args) != 2 {
					return nil, tengo.ErrWrongNumArguments
				}
				key, ok := tengo.ToString(args[0])
				if !ok {
					return nil, tengo.ErrInvalidArgumentType{Name: "key", Expected: "string", Found: args[0].TypeName()}
				}
				if err := host.StateSet(key, tengo.ToInterface(args[1])); err != nil {
					return &tengo.Error{Value: &tengo.String{Value: err.Error()}}, nil
				}
				return tengo.UndefinedValue, nil
			},
		},
		"remove": &tengo.UserFunction{
			Name: "remove",
			Value: func(args ...tengo.Object) (tengo.Object, error) {
				if len(args) != 1 {
					return nil, tengo.ErrWrongNumArguments
				}
				key, ok := tengo.ToString(args[0])
				if !ok {
					return nil, tengo.ErrInvalidArgumentType{Name: "key", Expected: "string", Found: args[0].TypeName()}
				}
				if err := host.StateDelete(key); err != nil {
					return &tengo.Error{Value: &tengo.String{Value: err.Error()}}, nil
				}
				return tengo.UndefinedValue, nil
			},
		},
	}}
}

// logModule routes script logging through the host.
func logModule(host Host) tengo.Object {
	logFn := func(level slog.Level) *tengo.UserFunction {
		return &tengo.UserFunction{
			Name: "log",
			Value: func(args ...tengo.Object) (tengo.Object, error) {
				if len(args) != 1 {
					return nil, tengo.ErrWrongNumArguments
				}
				host.Log(level, args[0].String())
				return tengo.UndefinedValue, nil
			},
		}
	}
	return &tengo.ImmutableMap{Value: map[string]tengo.Object{
		"debug": logFn(slog.LevelDebug),
		"info":  logFn(slog.LevelInfo),
		"warn":  logFn(slog.LevelWarn),
		"error": logFn(slog.LevelError),
	}}
}
