package executor

import (
	"fmt"
	"sort"
	"strings"
)

// Registry holds the executors parari knows about, keyed by name.
type Registry struct {
	order  []string
	byName map[string]Executor
}

// NewRegistry creates a registry holding execs. Later duplicates replace earlier ones.
func NewRegistry(execs ...Executor) *Registry {
	r := &Registry{byName: make(map[string]Executor)}
	for _, e := range execs {
		r.Register(e)
	}
	return r
}

// Builtin returns a registry with the claude, gemini and codex executors.
func Builtin(opts ...CommandOption) *Registry {
	return NewRegistry(Claude(opts...), Gemini(opts...), Codex(opts...))
}

// Register adds e, replacing any executor with the same name.
func (r *Registry) Register(e Executor) {
	key := strings.ToLower(e.Name())
	if _, ok := r.byName[key]; !ok {
		r.order = append(r.order, key)
	}
	r.byName[key] = e
}

// Get returns the executor called name.
func (r *Registry) Get(name string) (Executor, bool) {
	e, ok := r.byName[strings.ToLower(name)]
	return e, ok
}

// Names returns registered names, lowercased, in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// All returns every registered executor in registration order.
func (r *Registry) All() []Executor {
	out := make([]Executor, 0, len(r.order))
	for _, n := range r.order {
		out = append(out, r.byName[n])
	}
	return out
}

// Select returns the executors named in names, in that order. Names are
// matched case-insensitively and duplicates are dropped.
func (r *Registry) Select(names []string) ([]Executor, error) {
	var out []Executor
	var unknown []string
	seen := make(map[string]bool)
	for _, raw := range names {
		name := strings.ToLower(strings.TrimSpace(raw))
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		e, ok := r.byName[name]
		if !ok {
			unknown = append(unknown, raw)
			continue
		}
		out = append(out, e)
	}
	if len(unknown) > 0 {
		known := r.Names()
		sort.Strings(known)
		return nil, fmt.Errorf("unknown agent(s) %s (known: %s)",
			strings.Join(unknown, ", "), strings.Join(known, ", "))
	}
	return out, nil
}

// Available filters execs down to those whose program can be launched.
func Available(execs []Executor) []Executor {
	var out []Executor
	for _, e := range execs {
		if e.Available() == nil {
			out = append(out, e)
		}
	}
	return out
}
