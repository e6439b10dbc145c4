package hook

import (
	"context"
	"sync"
	"time"

	"github.com/momentum-hq/momentum/internal/domain/document"
)

// Invocation is one recorded hook call. Data, Doc and OriginalDoc are cloned
// at record time so later pipeline mutations don't rewrite history.
type Invocation struct {
	Hook        Type
	Operation   Operation
	Data        document.Document
	Doc         document.Document
	OriginalDoc document.Document
	Timestamp   time.Time
}

// Recorder captures hook invocations to make pipeline ordering observable.
// Safe for concurrent use.
type Recorder struct {
	mu          sync.Mutex
	invocations []Invocation
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Hook returns a Func recording invocations of the given hook type.
func (r *Recorder) Hook(t Type) Func {
	return func(_ context.Context, args *Args) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.invocations = append(r.invocations, Invocation{
			Hook:        t,
			Operation:   args.Operation,
			Data:        args.Data.Clone(),
			Doc:         args.Doc.Clone(),
			OriginalDoc: args.OriginalDoc.Clone(),
			Timestamp:   time.Now(),
		})
		return nil
	}
}

// Attach registers a recording hook for every hook type on the registry.
func (r *Recorder) Attach(reg *Registry) {
	for _, t := range []Type{
		BeforeValidate, BeforeChange, AfterChange,
		BeforeRead, AfterRead, BeforeDelete, AfterDelete,
	} {
		reg.On(t, r.Hook(t))
	}
}

// Invocations returns a copy of the recorded invocations in call order.
func (r *Recorder) Invocations() []Invocation {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Invocation, len(r.invocations))
	copy(out, r.invocations)
	return out
}

// Sequence returns just the hook types in call order.
func (r *Recorder) Sequence() []Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	seq := make([]Type, len(r.invocations))
	for i, inv := range r.invocations {
		seq[i] = inv.Hook
	}
	return seq
}

// Count returns how many times a hook type was invoked.
func (r *Recorder) Count(t Type) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, inv := range r.invocations {
		if inv.Hook == t {
			n++
		}
	}
	return n
}

// Reset clears recorded invocations.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invocations = nil
}
