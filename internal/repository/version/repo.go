// Package version persists document snapshots. Each snapshot lives at its own
// JSON key; a per-document list holds snapshot ids newest first.
package version

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/momentum-hq/momentum/internal/db"
	"github.com/momentum-hq/momentum/internal/domain"
	domdoc "github.com/momentum-hq/momentum/internal/domain/document"
	domver "github.com/momentum-hq/momentum/internal/domain/version"
	"github.com/momentum-hq/momentum/internal/usecase/versioning"
)

const keyPrefix = "momentum:version:"

// store is the consumer interface for version snapshots (ISP).
type store interface {
	JSONSet(ctx context.Context, key, path string, data []byte) error
	JSONGet(ctx context.Context, key string, paths ...string) ([]byte, error)
	LPush(ctx context.Context, key string, values ...string) error
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)
}

// dto is the stored shape of a snapshot.
type dto struct {
	ID          string          `json:"id"`
	ParentDocID string          `json:"parentDocId"`
	Data        domdoc.Document `json:"data"`
	CreatedAt   int64           `json:"createdAt"`
}

// Repo implements versioning.Repository.
type Repo struct {
	store store
}

var _ versioning.Repository = (*Repo)(nil)

// New creates a version repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// Append stores a snapshot and prepends its id to the document's history.
func (r *Repo) Append(ctx context.Context, collection string, v domver.Version) error {
	data, err := json.Marshal(dto{
		ID:          v.ID(),
		ParentDocID: v.ParentDocID(),
		Data:        v.Data(),
		CreatedAt:   v.CreatedAt(),
	})
	if err != nil {
		return fmt.Errorf("marshal version: %w", err)
	}

	key := versionKey(collection, v.ID())
	if err := r.store.JSONSet(ctx, key, "$", data); err != nil {
		return fmt.Errorf("json.set %s: %w", key, err)
	}
	if err := r.store.LPush(ctx, historyKey(collection, v.ParentDocID()), v.ID()); err != nil {
		return fmt.Errorf("push version id: %w", err)
	}
	return nil
}

// List returns up to limit snapshots of a document, newest first.
func (r *Repo) List(ctx context.Context, collection, docID string, limit int) ([]domver.Version, error) {
	if limit <= 0 {
		limit = 10
	}

	ids, err := r.store.LRange(ctx, historyKey(collection, docID), 0, int64(limit)-1)
	if err != nil {
		return nil, fmt.Errorf("list version ids: %w", err)
	}

	versions := make([]domver.Version, 0, len(ids))
	for _, id := range ids {
		v, err := r.Get(ctx, collection, id)
		if err != nil {
			if errors.Is(err, domain.ErrVersionNotFound) {
				continue
			}
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, nil
}

// Get returns one snapshot by id.
func (r *Repo) Get(ctx context.Context, collection, versionID string) (domver.Version, error) {
	key := versionKey(collection, versionID)
	raw, err := r.store.JSONGet(ctx, key, "$")
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return domver.Version{}, domain.ErrVersionNotFound
		}
		return domver.Version{}, fmt.Errorf("json.get %s: %w", key, err)
	}

	var dtos []dto
	if err := json.Unmarshal(raw, &dtos); err != nil {
		return domver.Version{}, fmt.Errorf("unmarshal version: %w", err)
	}
	if len(dtos) == 0 {
		return domver.Version{}, domain.ErrVersionNotFound
	}

	d := dtos[0]
	return domver.Reconstruct(d.ID, d.ParentDocID, d.Data, d.CreatedAt), nil
}

func versionKey(collection, versionID string) string {
	return keyPrefix + collection + ":" + versionID
}

func historyKey(collection, docID string) string {
	return keyPrefix + collection + ":doc:" + docID
}
