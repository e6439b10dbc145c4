package hook

import (
	"context"
	"errors"
	"testing"

	"github.com/momentum-hq/momentum/internal/domain/document"
)

func TestRun_RegistrationOrderIsInvocationOrder(t *testing.T) {
	r := NewRegistry()
	var calls []int
	for i := 0; i < 3; i++ {
		i := i
		r.On(BeforeChange, func(context.Context, *Args) error {
			calls = append(calls, i)
			return nil
		})
	}

	if err := r.Run(context.Background(), BeforeChange, &Args{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(calls) != 3 || calls[0] != 0 || calls[1] != 1 || calls[2] != 2 {
		t.Errorf("expected registration order, got %v", calls)
	}
}

func TestRun_FirstErrorStopsTheWalk(t *testing.T) {
	r := NewRegistry()
	boom := errors.New("boom")
	var ran []string
	r.On(BeforeChange, func(context.Context, *Args) error { ran = append(ran, "first"); return nil })
	r.On(BeforeChange, func(context.Context, *Args) error { ran = append(ran, "second"); return boom })
	r.On(BeforeChange, func(context.Context, *Args) error { ran = append(ran, "third"); return nil })

	err := r.Run(context.Background(), BeforeChange, &Args{})
	if !errors.Is(err, boom) {
		t.Errorf("expected the hook error unwrapped, got %v", err)
	}
	if len(ran) != 2 {
		t.Errorf("later hooks must not run after a failure, ran %v", ran)
	}
}

func TestRun_OtherTypesUnaffected(t *testing.T) {
	r := NewRegistry()
	called := false
	r.On(AfterChange, func(context.Context, *Args) error { called = true; return nil })

	if err := r.Run(context.Background(), BeforeChange, &Args{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if called {
		t.Error("hooks of other types must not fire")
	}
}

func TestRun_NilRegistry(t *testing.T) {
	var r *Registry
	if err := r.Run(context.Background(), BeforeChange, &Args{}); err != nil {
		t.Errorf("nil registry must be a no-op, got %v", err)
	}
	if r.Len(BeforeChange) != 0 {
		t.Error("nil registry has no hooks")
	}
}

func TestArgsMutationFlowsForward(t *testing.T) {
	r := NewRegistry()
	r.On(BeforeValidate, func(_ context.Context, args *Args) error {
		args.Data["a"] = 1
		return nil
	})
	r.On(BeforeValidate, func(_ context.Context, args *Args) error {
		if args.Data["a"] != 1 {
			t.Error("later hooks must observe earlier mutations")
		}
		args.Data = document.Document{"replaced": true}
		return nil
	})

	args := &Args{Data: document.Document{}}
	if err := r.Run(context.Background(), BeforeValidate, args); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if args.Data["replaced"] != true {
		t.Error("replacing Data must be visible to the caller")
	}
}

func TestRecorder(t *testing.T) {
	rec := NewRecorder()
	r := NewRegistry()
	rec.Attach(r)

	ctx := context.Background()
	args := &Args{Operation: OpCreate, Data: document.Document{"title": "x"}}
	_ = r.Run(ctx, BeforeValidate, args)
	_ = r.Run(ctx, BeforeChange, args)
	_ = r.Run(ctx, AfterChange, args)

	seq := rec.Sequence()
	want := []Type{BeforeValidate, BeforeChange, AfterChange}
	for i := range want {
		if seq[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, seq)
		}
	}
	if rec.Count(BeforeChange) != 1 || rec.Count(BeforeDelete) != 0 {
		t.Error("unexpected counts")
	}

	// Invocations clone state at record time.
	args.Data["title"] = "mutated later"
	if rec.Invocations()[0].Data["title"] != "x" {
		t.Error("recorded data must not track later mutations")
	}

	rec.Reset()
	if len(rec.Sequence()) != 0 {
		t.Error("reset must clear history")
	}
}
