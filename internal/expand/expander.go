// Package expand implements the variable/expression language: scanning
// $(...)/${...}/$x references inside any string, substitution references,
// function dispatch and recursive-flavor re-expansion.
//
// An Expander is an immutable view over a global store plus a chain of
// scope overlays. With and WithoutPrivate return fresh views; nothing ever
// mutates a parent, so concurrent reads during parallel builds are safe.
package expand

import (
	"context"

	"github.com/specialistvlad/gomake/internal/vars"
)

// Func is one entry of the function library. Raw functions receive their
// argument text unexpanded and decide when (and whether) to expand it.
type Func struct {
	Raw bool
	Fn  func(ctx context.Context, x *Expander, args []string) (string, error)
}

// Library resolves function names during expansion.
type Library interface {
	Lookup(name string) (Func, bool)
}

// frame is one scope overlay. Frames form a singly-linked chain; lookup
// walks innermost-first before falling back to the global store.
type frame struct {
	store  *vars.Store
	parent *frame
}

// Expander evaluates the expression language against a variable store.
type Expander struct {
	global *vars.Store
	top    *frame
	lib    Library

	skipPrivate bool
	warnUndef   bool

	// Eval feeds text back into the parser; wired by the parser itself so
	// the eval function can define rules and variables mid-expansion.
	Eval func(ctx context.Context, text string) error

	// OnWarnUndef is invoked once per read of an absent name when the
	// warn-undef option is on.
	OnWarnUndef func(name string)
}

// New creates an Expander over the global store with the given function
// library. lib may be nil for expression-only use (no function calls).
func New(global *vars.Store, lib Library) *Expander {
	return &Expander{global: global, lib: lib}
}

// WarnUndef toggles undefined-variable warnings and returns the receiver
// for chaining during construction.
func (x *Expander) WarnUndef(on bool) *Expander {
	x.warnUndef = on
	return x
}

// Global returns the underlying global store.
func (x *Expander) Global() *vars.Store {
	return x.global
}

// With returns a new Expander whose lookups consult scope before the
// receiver's chain. The receiver is not modified.
func (x *Expander) With(scope *vars.Store) *Expander {
	if scope == nil {
		return x
	}
	c := *x
	c.top = &frame{store: scope, parent: x.top}
	return &c
}

// WithoutPrivate returns a view hiding scope entries flagged private; used
// when descending from a target into its prerequisites.
func (x *Expander) WithoutPrivate() *Expander {
	c := *x
	c.skipPrivate = true
	return &c
}

// Lookup finds name in the overlay chain, then the global store. Private
// scope entries are invisible through a WithoutPrivate view.
func (x *Expander) Lookup(name string) (*vars.Value, bool) {
	for f := x.top; f != nil; f = f.parent {
		if v, ok := f.store.Lookup(name); ok {
			if x.skipPrivate && v.Private {
				continue
			}
			return v, true
		}
	}
	if v, ok := x.global.Lookup(name); ok {
		return v, true
	}
	return nil, false
}

// Bindings returns the merged view of every visible binding: global store
// first, then overlay frames outermost-in, so inner scopes shadow. Used to
// assemble recipe environments.
func (x *Expander) Bindings() map[string]*vars.Value {
	out := make(map[string]*vars.Value)
	for _, name := range x.global.Names() {
		v, _ := x.global.Lookup(name)
		out[name] = v
	}
	var frames []*frame
	for f := x.top; f != nil; f = f.parent {
		frames = append(frames, f)
	}
	for i := len(frames) - 1; i >= 0; i-- {
		for _, name := range frames[i].store.Names() {
			v, _ := frames[i].store.Lookup(name)
			if x.skipPrivate && v.Private {
				continue
			}
			out[name] = v
		}
	}
	return out
}

// Value returns the raw (unexpanded) text bound to name, or "" when unset.
// This backs the value function.
func (x *Expander) Value(name string) string {
	if v, ok := x.Lookup(name); ok {
		return v.Text()
	}
	return ""
}
