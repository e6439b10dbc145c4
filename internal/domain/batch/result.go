// Package batch defines per-item outcomes for batch operations. Items fail
// independently; one bad item never rolls back its siblings.
package batch

// Operation is the batch discriminator submitted by the client.
type Operation string

// Batch operation values.
const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// IsValid checks if the batch operation is recognized.
func (o Operation) IsValid() bool {
	return o == OpCreate || o == OpUpdate || o == OpDelete
}

// ItemStatus is the processing outcome of a single batch item.
type ItemStatus string

// Batch item status values.
const (
	StatusOK    ItemStatus = "ok"
	StatusError ItemStatus = "error"
)

// Result is the outcome of processing one item in a batch operation.
type Result struct {
	index  int
	id     string
	status ItemStatus
	err    error
}

// NewOK creates a successful batch result.
func NewOK(index int, id string) Result {
	return Result{index: index, id: id, status: StatusOK}
}

// NewError creates a failed batch result.
func NewError(index int, id string, err error) Result {
	return Result{index: index, id: id, status: StatusError, err: err}
}

// Index returns the item's position in the submitted batch.
func (r Result) Index() int { return r.index }

// ID returns the item's document id, if known.
func (r Result) ID() string { return r.id }

// Status returns the processing outcome.
func (r Result) Status() ItemStatus { return r.status }

// Err returns the error, if any.
func (r Result) Err() error { return r.err }
