package lifecycle

import (
	"context"

	"github.com/momentum-hq/momentum/internal/domain"
	"github.com/momentum-hq/momentum/internal/domain/document"
)

// Storage is the persistence contract the engine drives. Implementations are
// external per backend; the engine never issues raw queries itself. Insert,
// Update and Delete are atomic per document. Find applies the filter before
// computing pagination. FindOne returns (nil, nil) for a missing id; Delete
// returns the removed document.
type Storage interface {
	Insert(ctx context.Context, table string, doc document.Document) (document.Document, error)
	Update(ctx context.Context, table, id string, doc document.Document) (document.Document, error)
	Delete(ctx context.Context, table, id string) (document.Document, error)
	FindOne(ctx context.Context, table, id string) (document.Document, error)
	Find(ctx context.Context, table string, filter domain.Filter, page, limit int) (FindResult, error)
	BatchInsert(ctx context.Context, table string, docs []document.Document) ([]document.Document, error)
	BatchDelete(ctx context.Context, table string, ids []string) error
}

// FindResult is one page of documents with pagination totals.
type FindResult struct {
	Docs       []document.Document `json:"docs"`
	TotalDocs  int                 `json:"totalDocs"`
	TotalPages int                 `json:"totalPages"`
}

// Event describes a committed mutation handed to the webhook dispatcher.
type Event struct {
	Event      string
	Collection string
	Operation  string
	Doc        document.Document
}

// Notifier delivers mutation events. Implementations must not block the
// calling request and must never surface delivery failures to it.
type Notifier interface {
	Notify(event Event)
}

// NopNotifier discards events. Used when no webhook endpoint is configured.
type NopNotifier struct{}

// Notify discards the event.
func (NopNotifier) Notify(Event) {}
