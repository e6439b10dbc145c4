package versioning

import (
	"context"

	"github.com/momentum-hq/momentum/internal/domain/document"
	"github.com/momentum-hq/momentum/internal/domain/version"
)

// Repository is the append-only storage contract for version snapshots.
// Versions are never mutated; List returns newest-first.
type Repository interface {
	Append(ctx context.Context, collection string, v version.Version) error
	List(ctx context.Context, collection, docID string, limit int) ([]version.Version, error)
	Get(ctx context.Context, collection, versionID string) (version.Version, error)
}

// DocumentReader loads the live document to snapshot. Returns (nil, nil) for a
// missing id.
type DocumentReader interface {
	FindOne(ctx context.Context, table, id string) (document.Document, error)
}
