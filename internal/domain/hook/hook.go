// Package hook models the seven lifecycle hook types as a fixed enum with one
// typed signature, dispatched from ordered lists per hook type per collection.
// There is no reflection and no dynamic dispatch: the dispatcher walks a slice.
package hook

import (
	"context"

	"github.com/momentum-hq/momentum/internal/domain/access"
	"github.com/momentum-hq/momentum/internal/domain/document"
)

// Type identifies a lifecycle hook point.
type Type string

// The seven hook types, in pipeline order for their operations.
const (
	BeforeValidate Type = "beforeValidate"
	BeforeChange   Type = "beforeChange"
	AfterChange    Type = "afterChange"
	BeforeRead     Type = "beforeRead"
	AfterRead      Type = "afterRead"
	BeforeDelete   Type = "beforeDelete"
	AfterDelete    Type = "afterDelete"
)

// Operation is the CRUD operation a hook invocation belongs to.
type Operation string

// Operation values.
const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
	OpRead   Operation = "read"
)

// Args carries the working state of one operation through its hooks.
// beforeValidate and beforeChange may mutate or replace Data; later hooks in
// the same operation observe the cumulative result. afterRead may attach
// ephemeral fields to Doc; the engine never persists those.
type Args struct {
	Collection  string
	Operation   Operation
	Access      access.Context
	Data        document.Document
	Doc         document.Document
	OriginalDoc document.Document
}

// Func is a lifecycle hook. Returning an error aborts the pipeline at the
// failure-semantics point defined for the hook's phase.
type Func func(ctx context.Context, args *Args) error

// Registry holds one ordered hook list per hook type for a single collection.
type Registry struct {
	hooks map[Type][]Func
}

// NewRegistry creates an empty hook registry.
func NewRegistry() *Registry {
	return &Registry{hooks: make(map[Type][]Func)}
}

// On appends a hook to the list for the given type. Registration order is
// invocation order.
func (r *Registry) On(t Type, fn Func) *Registry {
	r.hooks[t] = append(r.hooks[t], fn)
	return r
}

// Run invokes every hook of the given type sequentially. The first error stops
// the walk and is returned unwrapped; the caller decides the failure semantics
// for its phase.
func (r *Registry) Run(ctx context.Context, t Type, args *Args) error {
	if r == nil {
		return nil
	}
	for _, fn := range r.hooks[t] {
		if err := fn(ctx, args); err != nil {
			return err
		}
	}
	return nil
}

// Len returns the number of hooks registered for a type.
func (r *Registry) Len(t Type) int {
	if r == nil {
		return 0
	}
	return len(r.hooks[t])
}
