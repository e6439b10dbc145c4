// Package document defines the dynamic document value handled by the lifecycle
// engine. Documents are schemaless maps owned by storage; the engine holds one
// only for the duration of a single operation.
package document

import "time"

// System field names set by the engine, never client-writable.
const (
	FieldID        = "id"
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"
)

// Document maps field names to values. System fields id, createdAt and
// updatedAt are assigned by the engine on create/update.
type Document map[string]any

// ID returns the document identifier, or "" if unset.
func (d Document) ID() string {
	id, _ := d[FieldID].(string)
	return id
}

// SetID assigns the identifier. The engine calls this exactly once, at create.
func (d Document) SetID(id string) { d[FieldID] = id }

// Touch sets createdAt (when create is true) and updatedAt to now in RFC 3339.
func (d Document) Touch(now time.Time, create bool) {
	stamp := now.UTC().Format(time.RFC3339Nano)
	if create {
		d[FieldCreatedAt] = stamp
	}
	d[FieldUpdatedAt] = stamp
}

// Clone returns a structural deep copy. Nested maps and slices are copied, so
// mutating the clone never leaks into the original. Version snapshots and
// per-request afterRead enrichment both rely on this.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	c := make(Document, len(d))
	for k, v := range d {
		c[k] = deepCopy(v)
	}
	return c
}

// Merge returns a copy of d overlaid with the fields of partial. Fields set in
// partial win; fields absent from partial keep their value from d.
func (d Document) Merge(partial Document) Document {
	merged := d.Clone()
	if merged == nil {
		merged = make(Document, len(partial))
	}
	for k, v := range partial {
		merged[k] = deepCopy(v)
	}
	return merged
}

// FieldNames returns the top-level field names of d in unspecified order.
func (d Document) FieldNames() []string {
	names := make([]string, 0, len(d))
	for k := range d {
		names = append(names, k)
	}
	return names
}

func deepCopy(v any) any {
	switch val := v.(type) {
	case map[string]any:
		c := make(map[string]any, len(val))
		for k, e := range val {
			c[k] = deepCopy(e)
		}
		return c
	case Document:
		return map[string]any(val.Clone())
	case []any:
		c := make([]any, len(val))
		for i, e := range val {
			c[i] = deepCopy(e)
		}
		return c
	default:
		return v
	}
}

// DeepEqual reports structural equality of two field values. Maps and slices
// are compared element-wise; scalars by ==. Numeric values that survived a JSON
// round trip are float64 on both sides, so no cross-type coercion is done.
func DeepEqual(a, b any) bool {
	switch av := a.(type) {
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, e := range av {
			other, present := bv[k]
			if !present || !DeepEqual(e, other) {
				return false
			}
		}
		return true
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i, e := range av {
			if !DeepEqual(e, bv[i]) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}
