// Package env implements the kernel's hierarchical symbol table (entity Env
// in spec.md §3): an ordered, dotted-name-keyed list of declarations with
// parent/child freeze semantics and a universe-variable constraint graph.
package env

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"kernelnerd/internal/kernel/expr"
	"kernelnerd/internal/kernel/kerr"
	"kernelnerd/internal/klog"
)

// Env is a scope in the hierarchical symbol table. The zero value is not
// usable; construct with New or a parent's MkChild.
type Env struct {
	mu sync.RWMutex

	parent     *Env
	generation string // stamped by MkChild, used only for diagnostics

	objects []Object
	index   map[string]int // name -> index into objects, this frame only

	edges   map[string][]uedge
	geCache map[[2]string]bool

	children int // live child count; >0 means this frame is frozen
}

// New creates a fresh root environment with no parent.
func New() *Env {
	return &Env{
		index:   make(map[string]int),
		edges:   make(map[string][]uedge),
		geCache: make(map[[2]string]bool),
	}
}

// MkChild forks a mutable child scope; while it (or any of its descendants)
// lives, e is frozen against further declarations (spec.md "Parent/child").
// The caller must call Release on the returned child when done with it,
// which is this package's explicit stand-in for the spec's
// reference-counted "while any child lives" lifecycle — Go has no
// destructors, so the freeze/unfreeze transition is driven by an explicit
// call rather than the child going out of scope.
func (e *Env) MkChild() *Env {
	e.mu.Lock()
	e.children++
	e.mu.Unlock()

	child := &Env{
		parent:     e,
		generation: uuid.NewString(),
		index:      make(map[string]int),
		edges:      make(map[string][]uedge),
		geCache:    make(map[[2]string]bool),
	}
	klog.EnvDebug("forked child env generation=%s", child.generation)
	return child
}

// Release drops this child's hold on its parent, unfreezing the parent
// once no other child remains. Releasing a root environment (no parent)
// is a no-op. Release is idempotent-unsafe by design: calling it twice on
// the same child double-decrements the parent and is a caller bug, same as
// double-closing a file.
func (e *Env) Release() {
	if e.parent == nil {
		return
	}
	e.parent.mu.Lock()
	e.parent.children--
	e.parent.mu.Unlock()
}

// Parent returns the enclosing environment, or nil for a root.
func (e *Env) Parent() *Env { return e.parent }

// HasChildren reports whether e is currently frozen by a live child.
func (e *Env) HasChildren() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.children > 0
}

// DescribeEnv implements kerr.EnvRef.
func (e *Env) DescribeEnv() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	gen := e.generation
	if gen == "" {
		gen = "root"
	}
	return fmt.Sprintf("env(%s, %d objects)", gen, len(e.objects))
}

// FindObject looks up name in this frame, then walks up through parents.
func (e *Env) FindObject(name string) (Object, bool) {
	for cur := e; cur != nil; cur = cur.parent {
		cur.mu.RLock()
		if i, ok := cur.index[name]; ok {
			obj := cur.objects[i]
			cur.mu.RUnlock()
			return obj, true
		}
		cur.mu.RUnlock()
	}
	return nil, false
}

// declareLocked appends obj to this frame's object list after the
// frozen/duplicate checks the exported Add* methods perform. Caller holds
// e.mu for writing.
func (e *Env) declareLocked(name string, obj Object) {
	e.index[name] = len(e.objects)
	e.objects = append(e.objects, obj)
}

// checkWritable validates the frozen and already-declared invariants
// shared by every Add* method. Caller already holds e.mu for writing, so
// this reads e's own fields directly (re-locking e.mu here would deadlock
// on Go's non-reentrant sync.RWMutex) and only reaches out through
// e.parent.FindObject, which locks a distinct mutex belonging to the
// parent frame.
func (e *Env) checkWritable(name string) error {
	if e.children > 0 {
		return kerr.ReadOnlyEnvironmentErr(e, name)
	}
	if _, ok := e.index[name]; ok {
		return kerr.AlreadyDeclaredErr(e, name)
	}
	if e.parent != nil {
		if _, ok := e.parent.FindObject(name); ok {
			return kerr.AlreadyDeclaredErr(e, name)
		}
	}
	return nil
}

// AddUVar declares a universe variable with an optional lower bound. Note
// that env.go does not itself verify bound is well-formed (e.g. that any
// UVar it mentions is already declared) — callers needing that check use
// infer.DeclareUVarChecked, which validates before calling this (see
// DESIGN.md on why type-checking is layered above env to avoid an
// env<->infer import cycle).
func (e *Env) AddUVar(name string, bound *expr.Level) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkWritable(name); err != nil {
		return err
	}
	e.declareLocked(name, &UVarConstraint{Name: name, Bound: bound})
	e.addUVarConstraintLocked(name, bound)
	klog.EnvDebug("declared uvar %s", name)
	return nil
}

// AddPostulate declares name as an axiom of the given type.
func (e *Env) AddPostulate(name string, typ expr.Expr) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkWritable(name); err != nil {
		return err
	}
	e.declareLocked(name, &Postulate{Name: name, Type: typ})
	klog.EnvDebug("declared postulate %s", name)
	return nil
}

// AddDefinition declares name as a value of the given type. opaque
// definitions are never delta-unfolded.
func (e *Env) AddDefinition(name string, typ, value expr.Expr, opaque bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkWritable(name); err != nil {
		return err
	}
	e.declareLocked(name, &Definition{Name: name, Type: typ, Value: value, Opaque: opaque})
	klog.EnvDebug("declared definition %s (opaque=%v)", name, opaque)
	return nil
}

// AddBuiltin wires a host expr.Value in under name.
func (e *Env) AddBuiltin(name string, v expr.Value) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkWritable(name); err != nil {
		return err
	}
	e.declareLocked(name, &Builtin{Name: name, Value: v})
	return nil
}

// AddNeutral wires an opaque host payload in under name.
func (e *Env) AddNeutral(name, kindTag string, payload interface{}) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkWritable(name); err != nil {
		return err
	}
	e.declareLocked(name, &Neutral{Name: name, KindTag: kindTag, Payload: payload})
	return nil
}

// Objects returns a snapshot slice of every object in this frame, in
// declaration order. It does not include ancestor objects; walk Parent()
// to visit those. The slice is a copy, safe to range over even if the
// environment is mutated afterward (spec.md §4 supplemented feature:
// deterministic object iteration order).
func (e *Env) Objects() []Object {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Object, len(e.objects))
	copy(out, e.objects)
	return out
}
