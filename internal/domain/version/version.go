// Package version defines immutable document snapshots captured by an explicit
// publish, and the field-level diff between two snapshots.
package version

import (
	"fmt"
	"sort"
	"time"

	"github.com/momentum-hq/momentum/internal/domain/document"
)

// Version is an append-only snapshot of a document at publish time.
type Version struct {
	id          string
	parentDocID string
	data        document.Document
	createdAt   int64 // unix millis
}

// New validates and creates a Version. The document is structurally copied, so
// later changes to the live document never mutate the snapshot.
func New(id, parentDocID string, data document.Document) (Version, error) {
	if id == "" {
		return Version{}, fmt.Errorf("version id is required")
	}
	if parentDocID == "" {
		return Version{}, fmt.Errorf("parent document id is required")
	}
	return Version{
		id:          id,
		parentDocID: parentDocID,
		data:        data.Clone(),
		createdAt:   time.Now().UnixMilli(),
	}, nil
}

// Reconstruct creates a Version without validation (storage hydration).
func Reconstruct(id, parentDocID string, data document.Document, createdAt int64) Version {
	return Version{id: id, parentDocID: parentDocID, data: data, createdAt: createdAt}
}

// ID returns the version identifier.
func (v Version) ID() string { return v.id }

// ParentDocID returns the id of the snapshotted document.
func (v Version) ParentDocID() string { return v.parentDocID }

// Data returns a copy of the snapshot, keeping the stored one immutable.
func (v Version) Data() document.Document { return v.data.Clone() }

// CreatedAt returns the snapshot timestamp (unix millis).
func (v Version) CreatedAt() int64 { return v.createdAt }

// Difference is one top-level field whose value differs between two snapshots.
type Difference struct {
	Field    string `json:"field"`
	OldValue any    `json:"oldValue"`
	NewValue any    `json:"newValue"`
}

// Compare returns one Difference per top-level field whose value differs
// between the two snapshots, sorted by field name. Nested object and array
// values are compared by deep equality, not diffed per subfield. Comparing a
// version against itself yields an empty slice.
func Compare(oldV, newV Version) []Difference {
	var diffs []Difference

	for name, oldVal := range oldV.data {
		newVal, present := newV.data[name]
		if !present {
			diffs = append(diffs, Difference{Field: name, OldValue: oldVal, NewValue: nil})
			continue
		}
		if !document.DeepEqual(oldVal, newVal) {
			diffs = append(diffs, Difference{Field: name, OldValue: oldVal, NewValue: newVal})
		}
	}
	for name, newVal := range newV.data {
		if _, present := oldV.data[name]; !present {
			diffs = append(diffs, Difference{Field: name, OldValue: nil, NewValue: newVal})
		}
	}

	sort.Slice(diffs, func(i, j int) bool { return diffs[i].Field < diffs[j].Field })
	return diffs
}
