package batch

import (
	"context"

	"github.com/momentum-hq/momentum/internal/domain/access"
	"github.com/momentum-hq/momentum/internal/domain/document"
)

// Creator runs the full create pipeline for one document.
type Creator interface {
	Create(ctx context.Context, rctx access.Context, slug string, data document.Document) (document.Document, error)
}

// Updater runs the full update pipeline for one document.
type Updater interface {
	Update(ctx context.Context, rctx access.Context, slug, id string, partial document.Document) (document.Document, error)
}

// Deleter runs the full delete pipeline for one document.
type Deleter interface {
	Delete(ctx context.Context, rctx access.Context, slug, id string) (document.Document, error)
}

// Pipeline is the full lifecycle contract batch operations reuse per item.
type Pipeline interface {
	Creator
	Updater
	Deleter
}
