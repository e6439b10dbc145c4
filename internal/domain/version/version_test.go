package version

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/momentum-hq/momentum/internal/domain/document"
)

func TestNew_Validation(t *testing.T) {
	if _, err := New("", "d1", nil); err == nil {
		t.Error("expected error for empty version id")
	}
	if _, err := New("v1", "", nil); err == nil {
		t.Error("expected error for empty parent doc id")
	}
	if _, err := New("v1", "d1", document.Document{"a": 1}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNew_SnapshotIsCopied(t *testing.T) {
	live := document.Document{"title": "original", "meta": map[string]any{"k": "v"}}
	v, err := New("v1", "d1", live)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	live["title"] = "mutated"
	live["meta"].(map[string]any)["k"] = "mutated"

	data := v.Data()
	if data["title"] != "original" {
		t.Error("top-level snapshot value leaked a live mutation")
	}
	if data["meta"].(map[string]any)["k"] != "v" {
		t.Error("nested snapshot value leaked a live mutation")
	}
}

func TestData_ReturnsCopy(t *testing.T) {
	v, err := New("v1", "d1", document.Document{"title": "x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v.Data()["title"] = "hacked"
	if v.Data()["title"] != "x" {
		t.Error("Data must hand out a copy, not the stored map")
	}
}

func TestCompare_FieldCases(t *testing.T) {
	oldV := Reconstruct("v1", "d1", document.Document{
		"kept":    "same",
		"changed": "a",
		"removed": "gone",
		"nested":  map[string]any{"k": 1.0},
	}, 1)
	newV := Reconstruct("v2", "d1", document.Document{
		"kept":    "same",
		"changed": "b",
		"added":   "fresh",
		"nested":  map[string]any{"k": 2.0},
	}, 2)

	diffs := Compare(oldV, newV)
	want := map[string][2]any{
		"added":   {nil, "fresh"},
		"changed": {"a", "b"},
		"nested":  {map[string]any{"k": 1.0}, map[string]any{"k": 2.0}},
		"removed": {"gone", nil},
	}
	if len(diffs) != len(want) {
		t.Fatalf("expected %d diffs, got %v", len(want), diffs)
	}
	// Sorted by field name.
	order := []string{"added", "changed", "nested", "removed"}
	for i, name := range order {
		if diffs[i].Field != name {
			t.Fatalf("expected field order %v, got %v", order, diffs)
		}
		if name == "nested" {
			continue
		}
		if diffs[i].OldValue != want[name][0] || diffs[i].NewValue != want[name][1] {
			t.Errorf("%s: expected %v -> %v, got %v -> %v",
				name, want[name][0], want[name][1], diffs[i].OldValue, diffs[i].NewValue)
		}
	}
}

func TestCompare_EqualNestedValues(t *testing.T) {
	a := Reconstruct("v1", "d1", document.Document{"tags": []any{"go", "cms"}}, 1)
	b := Reconstruct("v2", "d1", document.Document{"tags": []any{"go", "cms"}}, 2)
	if diffs := Compare(a, b); len(diffs) != 0 {
		t.Errorf("deep-equal slices must not diff, got %v", diffs)
	}
}

// genDoc produces small random documents over a fixed key space so comparisons
// hit all of kept/changed/added/removed.
func genDoc() gopter.Gen {
	keys := []string{"alpha", "beta", "gamma", "delta"}
	return gen.MapOf(gen.OneConstOf("alpha", "beta", "gamma", "delta"), gen.AlphaString()).
		Map(func(m map[string]string) document.Document {
			doc := make(document.Document, len(m))
			for _, k := range keys {
				if v, ok := m[k]; ok {
					doc[k] = v
				}
			}
			return doc
		})
}

func TestProperty_Compare(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("comparing a snapshot against itself yields no differences", prop.ForAll(
		func(doc document.Document) bool {
			v := Reconstruct("v1", "d1", doc, 1)
			return len(Compare(v, v)) == 0
		},
		genDoc(),
	))

	properties.Property("every difference names a field present in at least one snapshot", prop.ForAll(
		func(a, b document.Document) bool {
			va := Reconstruct("v1", "d1", a, 1)
			vb := Reconstruct("v2", "d1", b, 2)
			for _, d := range Compare(va, vb) {
				_, inA := a[d.Field]
				_, inB := b[d.Field]
				if !inA && !inB {
					return false
				}
			}
			return true
		},
		genDoc(), genDoc(),
	))

	properties.Property("reversing the comparison swaps old and new per field", prop.ForAll(
		func(a, b document.Document) bool {
			va := Reconstruct("v1", "d1", a, 1)
			vb := Reconstruct("v2", "d1", b, 2)
			forward := Compare(va, vb)
			backward := Compare(vb, va)
			if len(forward) != len(backward) {
				return false
			}
			rev := make(map[string]Difference, len(backward))
			for _, d := range backward {
				rev[d.Field] = d
			}
			for _, d := range forward {
				r, ok := rev[d.Field]
				if !ok || !document.DeepEqual(d.OldValue, r.NewValue) || !document.DeepEqual(d.NewValue, r.OldValue) {
					return false
				}
			}
			return true
		},
		genDoc(), genDoc(),
	))

	properties.Property("undiffed fields are equal in both snapshots", prop.ForAll(
		func(a, b document.Document) bool {
			va := Reconstruct("v1", "d1", a, 1)
			vb := Reconstruct("v2", "d1", b, 2)
			diffed := make(map[string]bool)
			for _, d := range Compare(va, vb) {
				diffed[d.Field] = true
			}
			for k, av := range a {
				if diffed[k] {
					continue
				}
				bv, ok := b[k]
				if !ok || !document.DeepEqual(av, bv) {
					return false
				}
			}
			return true
		},
		genDoc(), genDoc(),
	))

	properties.TestingRun(t)
}
