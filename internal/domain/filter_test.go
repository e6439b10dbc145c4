package domain

import (
	"testing"

	"github.com/momentum-hq/momentum/internal/domain/document"
)

// --- Filter.And tests ---

func TestAnd_EmptySides(t *testing.T) {
	f := Filter{"status": "published"}

	if got := f.And(nil); len(got) != 1 || got["status"] != "published" {
		t.Errorf("And(nil) = %v, want the receiver unchanged", got)
	}
	if got := Filter(nil).And(f); len(got) != 1 || got["status"] != "published" {
		t.Errorf("nil.And(f) = %v, want the argument unchanged", got)
	}
}

func TestAnd_DisjointKeysUnion(t *testing.T) {
	merged := Filter{"status": "published"}.And(Filter{"author": "alice"})
	if len(merged) != 2 || merged["status"] != "published" || merged["author"] != "alice" {
		t.Errorf("unexpected merge %v", merged)
	}
}

func TestAnd_EqualClausesCollapse(t *testing.T) {
	merged := Filter{"author": "alice"}.And(Filter{"author": "alice"})
	if len(merged) != 1 || merged["author"] != "alice" {
		t.Errorf("unexpected merge %v", merged)
	}
}

func TestAnd_ConflictingClausesMatchNothing(t *testing.T) {
	// Two different equality constraints on one key have an empty
	// intersection; the merged clause must reject every field value,
	// including either original one.
	merged := Filter{"author": "bob"}.And(Filter{"author": "alice"})

	for _, v := range []any{"bob", "alice", "", nil, 42.0, map[string]any{"author": "bob"}} {
		if document.DeepEqual(v, merged["author"]) {
			t.Errorf("conflicting clause matched %v", v)
		}
	}
}

func TestAnd_ConflictSurvivesChaining(t *testing.T) {
	merged := Filter{"author": "bob"}.And(Filter{"author": "alice"}).And(Filter{"author": "bob"})
	if document.DeepEqual("bob", merged["author"]) {
		t.Error("chained And revived a conflicting clause")
	}
}
