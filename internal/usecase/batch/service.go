// Package batch applies create, update and delete across many documents,
// reusing the lifecycle pipeline once per item in submission order. Items are
// independent: a failing item reports its own error and never rolls back its
// siblings. There is no cross-document atomicity.
package batch

import (
	"context"
	"fmt"

	"github.com/momentum-hq/momentum/internal/domain"
	"github.com/momentum-hq/momentum/internal/domain/access"
	dombatch "github.com/momentum-hq/momentum/internal/domain/batch"
	"github.com/momentum-hq/momentum/internal/domain/document"
)

// Item is one entry of a mixed batch request.
type Item struct {
	Operation dombatch.Operation
	ID        string
	Data      document.Document
}

// Outcome pairs per-item results with the documents of the successful items.
type Outcome struct {
	Docs    []document.Document
	Results []dombatch.Result
}

// Service coordinates batch operations.
type Service struct {
	pipeline Pipeline
}

// New creates a batch service.
func New(pipeline Pipeline) *Service {
	return &Service{pipeline: pipeline}
}

// CreateMany runs the create pipeline once per item. An empty slice is valid
// and yields an empty outcome.
func (s *Service) CreateMany(
	ctx context.Context, rctx access.Context, slug string, items []document.Document,
) Outcome {
	out := Outcome{Docs: []document.Document{}, Results: make([]dombatch.Result, len(items))}
	for i, data := range items {
		doc, err := s.pipeline.Create(ctx, rctx, slug, data)
		if err != nil {
			out.Results[i] = dombatch.NewError(i, "", err)
			continue
		}
		out.Results[i] = dombatch.NewOK(i, doc.ID())
		out.Docs = append(out.Docs, doc)
	}
	return out
}

// UpdateItem is one entry of a batch update.
type UpdateItem struct {
	ID   string
	Data document.Document
}

// UpdateMany runs the update pipeline once per item.
func (s *Service) UpdateMany(
	ctx context.Context, rctx access.Context, slug string, items []UpdateItem,
) Outcome {
	out := Outcome{Docs: []document.Document{}, Results: make([]dombatch.Result, len(items))}
	for i, item := range items {
		if item.ID == "" {
			out.Results[i] = dombatch.NewError(i, "", domain.NewValidationError(domain.Violation{
				Field: "id", Message: "id is required",
			}))
			continue
		}
		doc, err := s.pipeline.Update(ctx, rctx, slug, item.ID, item.Data)
		if err != nil {
			out.Results[i] = dombatch.NewError(i, item.ID, err)
			continue
		}
		out.Results[i] = dombatch.NewOK(i, doc.ID())
		out.Docs = append(out.Docs, doc)
	}
	return out
}

// DeleteMany runs the delete pipeline once per id.
func (s *Service) DeleteMany(
	ctx context.Context, rctx access.Context, slug string, ids []string,
) Outcome {
	out := Outcome{Docs: []document.Document{}, Results: make([]dombatch.Result, len(ids))}
	for i, id := range ids {
		doc, err := s.pipeline.Delete(ctx, rctx, slug, id)
		if err != nil {
			out.Results[i] = dombatch.NewError(i, id, err)
			continue
		}
		out.Results[i] = dombatch.NewOK(i, id)
		out.Docs = append(out.Docs, doc)
	}
	return out
}

// Apply dispatches a mixed batch by operation discriminator. An unrecognized
// operation is a validation failure for the whole request.
func (s *Service) Apply(
	ctx context.Context, rctx access.Context, slug string, op dombatch.Operation, items []Item,
) (Outcome, error) {
	if !op.IsValid() {
		return Outcome{}, domain.NewValidationError(domain.Violation{
			Field:   "operation",
			Message: fmt.Sprintf("unknown batch operation %q", op),
		})
	}

	switch op {
	case dombatch.OpCreate:
		data := make([]document.Document, len(items))
		for i, item := range items {
			data[i] = item.Data
		}
		return s.CreateMany(ctx, rctx, slug, data), nil
	case dombatch.OpUpdate:
		updates := make([]UpdateItem, len(items))
		for i, item := range items {
			updates[i] = UpdateItem{ID: item.ID, Data: item.Data}
		}
		return s.UpdateMany(ctx, rctx, slug, updates), nil
	default:
		ids := make([]string, len(items))
		for i, item := range items {
			ids[i] = item.ID
		}
		return s.DeleteMany(ctx, rctx, slug, ids), nil
	}
}
