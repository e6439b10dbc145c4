package transfer

import (
	"context"

	"github.com/momentum-hq/momentum/internal/domain"
	"github.com/momentum-hq/momentum/internal/domain/access"
	"github.com/momentum-hq/momentum/internal/domain/document"
	"github.com/momentum-hq/momentum/internal/usecase/lifecycle"
)

// Lister pages through a collection's documents via the read pipeline.
type Lister interface {
	Find(ctx context.Context, rctx access.Context, slug string,
		filter domain.Filter, page, limit int) (lifecycle.FindResult, error)
}

// Creator runs the full create pipeline for one imported row.
type Creator interface {
	Create(ctx context.Context, rctx access.Context, slug string, data document.Document) (document.Document, error)
}
