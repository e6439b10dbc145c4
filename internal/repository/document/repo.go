// Package document persists collection documents as JSON values in Redis.
package document

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/momentum-hq/momentum/internal/db"
	"github.com/momentum-hq/momentum/internal/domain"
	domdoc "github.com/momentum-hq/momentum/internal/domain/document"
	"github.com/momentum-hq/momentum/internal/usecase/lifecycle"
)

const keyPrefix = "momentum:doc:"

// store is the consumer interface for documents (ISP).
type store interface {
	JSONSet(ctx context.Context, key, path string, data []byte) error
	JSONSetMulti(ctx context.Context, items []db.JSONSetItem) error
	JSONGet(ctx context.Context, key string, paths ...string) ([]byte, error)
	Del(ctx context.Context, key string) error
	DelMulti(ctx context.Context, keys []string) error
	Exists(ctx context.Context, key string) (bool, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// Repo implements lifecycle.Storage.
type Repo struct {
	store store
}

var _ lifecycle.Storage = (*Repo)(nil)

// New creates a document repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// Insert stores a new document.
func (r *Repo) Insert(ctx context.Context, table string, doc domdoc.Document) (domdoc.Document, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	key := docKey(table, doc.ID())
	if err := r.store.JSONSet(ctx, key, "$", data); err != nil {
		return nil, fmt.Errorf("json.set %s: %w", key, err)
	}
	return doc, nil
}

// Update replaces an existing document.
func (r *Repo) Update(ctx context.Context, table, id string, doc domdoc.Document) (domdoc.Document, error) {
	key := docKey(table, id)
	exists, err := r.store.Exists(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("check exists %s: %w", key, err)
	}
	if !exists {
		return nil, domain.ErrDocumentNotFound
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	if err := r.store.JSONSet(ctx, key, "$", data); err != nil {
		return nil, fmt.Errorf("json.set %s: %w", key, err)
	}
	return doc, nil
}

// Delete removes a document and returns it.
func (r *Repo) Delete(ctx context.Context, table, id string) (domdoc.Document, error) {
	key := docKey(table, id)
	doc, err := r.fetch(ctx, key)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, domain.ErrDocumentNotFound
	}

	if err := r.store.Del(ctx, key); err != nil {
		return nil, fmt.Errorf("del %s: %w", key, err)
	}
	return doc, nil
}

// FindOne returns a document by id, or (nil, nil) when it does not exist.
func (r *Repo) FindOne(ctx context.Context, table, id string) (domdoc.Document, error) {
	return r.fetch(ctx, docKey(table, id))
}

// Find returns one page of documents matching the filter. Every matching
// document is counted before the page is cut, so totals reflect the filtered
// set rather than the stored set.
func (r *Repo) Find(
	ctx context.Context, table string, filter domain.Filter, page, limit int,
) (lifecycle.FindResult, error) {
	keys, err := r.store.Scan(ctx, docKey(table, "*"))
	if err != nil {
		return lifecycle.FindResult{}, fmt.Errorf("scan %s: %w", table, err)
	}

	matched := make([]domdoc.Document, 0, len(keys))
	for _, key := range keys {
		doc, err := r.fetch(ctx, key)
		if err != nil {
			return lifecycle.FindResult{}, err
		}
		if doc == nil {
			continue
		}
		if matches(doc, filter) {
			matched = append(matched, doc)
		}
	}
	sortByCreation(matched)

	return paginate(matched, page, limit), nil
}

// BatchInsert stores documents in one pipelined round-trip.
func (r *Repo) BatchInsert(ctx context.Context, table string, docs []domdoc.Document) ([]domdoc.Document, error) {
	items := make([]db.JSONSetItem, len(docs))
	for i, doc := range docs {
		data, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("marshal document %s: %w", doc.ID(), err)
		}
		items[i] = db.JSONSetItem{Key: docKey(table, doc.ID()), Path: "$", Data: data}
	}
	if err := r.store.JSONSetMulti(ctx, items); err != nil {
		return nil, fmt.Errorf("batch insert %s: %w", table, err)
	}
	return docs, nil
}

// BatchDelete removes documents in one pipelined round-trip.
func (r *Repo) BatchDelete(ctx context.Context, table string, ids []string) error {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = docKey(table, id)
	}
	if err := r.store.DelMulti(ctx, keys); err != nil {
		return fmt.Errorf("batch delete %s: %w", table, err)
	}
	return nil
}

func (r *Repo) fetch(ctx context.Context, key string) (domdoc.Document, error) {
	raw, err := r.store.JSONGet(ctx, key, "$")
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("json.get %s: %w", key, err)
	}
	return parseJSONGetResult(raw)
}

// parseJSONGetResult unwraps the JSONPath array envelope around a document.
func parseJSONGetResult(raw []byte) (domdoc.Document, error) {
	var docs []domdoc.Document
	if err := json.Unmarshal(raw, &docs); err != nil {
		return nil, fmt.Errorf("unmarshal document: %w", err)
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return docs[0], nil
}

func docKey(table, id string) string {
	return keyPrefix + table + ":" + id
}

func matches(doc domdoc.Document, filter domain.Filter) bool {
	for k, want := range filter {
		if !domdoc.DeepEqual(doc[k], want) {
			return false
		}
	}
	return true
}

// sortByCreation orders documents oldest first. Creation timestamps share one
// textual format, so the lexical order is the chronological order; ids break
// ties.
func sortByCreation(docs []domdoc.Document) {
	sort.Slice(docs, func(i, j int) bool {
		a, _ := docs[i][domdoc.FieldCreatedAt].(string)
		b, _ := docs[j][domdoc.FieldCreatedAt].(string)
		if a != b {
			return a < b
		}
		return strings.Compare(docs[i].ID(), docs[j].ID()) < 0
	})
}

func paginate(docs []domdoc.Document, page, limit int) lifecycle.FindResult {
	total := len(docs)
	res := lifecycle.FindResult{Docs: []domdoc.Document{}, TotalDocs: total}
	if limit <= 0 {
		limit = 20
	}
	if page <= 0 {
		page = 1
	}
	res.TotalPages = (total + limit - 1) / limit

	start := (page - 1) * limit
	if start >= total {
		return res
	}
	end := start + limit
	if end > total {
		end = total
	}
	res.Docs = docs[start:end]
	return res
}
