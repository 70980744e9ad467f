package runtime

import (
	"reflect"
	"slices"
	"strings"
	"sync"
	"unicode"

	lua "github.com/yuin/gopher-lua"

	"github.com/wippyai/luabind/dispatch"
	"github.com/wippyai/luabind/errors"
	"github.com/wippyai/luabind/stack"
)

// Host is the interface for struct-based host libraries.
// All exported methods (except Namespace) are registered as functions.
type Host interface {
	// Namespace returns the global table name (e.g., "fs").
	Namespace() string
}

// ExplicitRegistrar allows hosts to provide exact Lua names when the
// automatic PascalCase-to-snake_case conversion doesn't apply.
type ExplicitRegistrar interface {
	Register() map[string]any
}

type HostRegistry struct {
	funcs   map[string]map[string]*HostFunc
	version uint64
	mu      sync.RWMutex
}

type HostFunc struct {
	Handler  any
	Receiver reflect.Value

	// bound is the Lua function built for state. Rebinding reuses it so an
	// io.Closer handler keeps a single release path.
	bound *lua.LFunction
	state *lua.LState
}

// function returns the Lua function for f on h, building it once per state.
func (f *HostFunc) function(h *stack.Handle) (*lua.LFunction, error) {
	if f.bound != nil && f.state == h.State() {
		return f.bound, nil
	}
	fn, err := dispatch.Function(h, f.Handler)
	if err != nil {
		return nil, err
	}
	f.bound, f.state = fn, h.State()
	return fn, nil
}

func NewHostRegistry() *HostRegistry {
	return &HostRegistry{
		funcs: make(map[string]map[string]*HostFunc),
	}
}

func (r *HostRegistry) RegisterHost(h Host) error {
	ns := h.Namespace()
	if ns == "" {
		return errors.InvalidInput(errors.PhaseRegister, "namespace cannot be empty")
	}

	handlers := make(map[string]any)
	rv := reflect.ValueOf(h)
	if er, ok := h.(ExplicitRegistrar); ok {
		for name, handler := range er.Register() {
			handlers[name] = handler
		}
	} else {
		rt := rv.Type()
		for i := 0; i < rt.NumMethod(); i++ {
			method := rt.Method(i)
			if !method.IsExported() || method.Name == "Namespace" {
				continue
			}
			handlers[toSnakeCase(method.Name)] = rv.Method(i).Interface()
		}
	}

	// Validate everything before touching the registry.
	for name, handler := range handlers {
		if _, err := dispatch.NewRecord(handler); err != nil {
			return errors.Registration(ns, name, err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.funcs[ns] == nil {
		r.funcs[ns] = make(map[string]*HostFunc)
	}
	for name, handler := range handlers {
		r.funcs[ns][name] = &HostFunc{Handler: handler, Receiver: rv}
	}
	r.version++
	return nil
}

// RegisterFunc registers one callable. Any callable accepted by
// dispatch.Push may be used, including signature.Method and
// signature.Field references.
func (r *HostRegistry) RegisterFunc(namespace, name string, fn any) error {
	if namespace == "" {
		return errors.InvalidInput(errors.PhaseRegister, "namespace cannot be empty")
	}
	if name == "" {
		return errors.InvalidInput(errors.PhaseRegister, "function name cannot be empty")
	}
	if _, err := dispatch.NewRecord(fn); err != nil {
		return errors.Registration(namespace, name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.funcs[namespace] == nil {
		r.funcs[namespace] = make(map[string]*HostFunc)
	}
	r.funcs[namespace][name] = &HostFunc{Handler: fn}
	r.version++
	return nil
}

// Version changes whenever a function is registered.
func (r *HostRegistry) Version() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.version
}

// Libraries returns one library per namespace, sorted by name, with
// functions sorted by name.
func (r *HostRegistry) Libraries() []*dispatch.Library {
	r.mu.RLock()
	defer r.mu.RUnlock()

	namespaces := make([]string, 0, len(r.funcs))
	for ns := range r.funcs {
		namespaces = append(namespaces, ns)
	}
	slices.Sort(namespaces)

	libs := make([]*dispatch.Library, 0, len(namespaces))
	for _, ns := range namespaces {
		funcs := r.funcs[ns]
		names := make([]string, 0, len(funcs))
		for name := range funcs {
			names = append(names, name)
		}
		slices.Sort(names)

		lib := dispatch.NewLibrary(ns)
		for _, name := range names {
			lib.Add(name, funcs[name].Handler)
		}
		libs = append(libs, lib)
	}
	return libs
}

// Bind publishes every namespace as a global table. Functions already
// bound to the state are reused; only new registrations are wrapped.
func (r *HostRegistry) Bind(h *stack.Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	namespaces := make([]string, 0, len(r.funcs))
	for ns := range r.funcs {
		namespaces = append(namespaces, ns)
	}
	slices.Sort(namespaces)

	L := h.State()
	for _, ns := range namespaces {
		tbl := L.NewTable()
		for name, f := range r.funcs[ns] {
			fn, err := f.function(h)
			if err != nil {
				return errors.Registration(ns, name, err)
			}
			tbl.RawSetString(name, fn)
		}
		L.SetGlobal(ns, tbl)
	}
	return nil
}

// toSnakeCase converts PascalCase to snake_case.
// Handles acronyms: GetHTTPServer -> get_http_server
func toSnakeCase(s string) string {
	if len(s) == 0 {
		return ""
	}

	runes := []rune(s)
	var result strings.Builder

	for i := 0; i < len(runes); i++ {
		r := runes[i]

		if !unicode.IsUpper(r) {
			result.WriteRune(r)
			continue
		}

		acronymEnd := i + 1
		for acronymEnd < len(runes) && unicode.IsUpper(runes[acronymEnd]) {
			acronymEnd++
		}
		// Last uppercase before lowercase starts the next word
		if acronymEnd > i+1 && acronymEnd < len(runes) && unicode.IsLower(runes[acronymEnd]) {
			acronymEnd--
		}

		if i > 0 {
			result.WriteByte('_')
		}
		for j := i; j < acronymEnd; j++ {
			result.WriteRune(unicode.ToLower(runes[j]))
		}
		i = acronymEnd - 1
	}
	return result.String()
}
