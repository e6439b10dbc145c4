// Package memory is an in-process storage backend. It backs tests and the
// "memory" database driver; data does not survive a restart.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/momentum-hq/momentum/internal/domain"
	domdoc "github.com/momentum-hq/momentum/internal/domain/document"
	domver "github.com/momentum-hq/momentum/internal/domain/version"
	"github.com/momentum-hq/momentum/internal/usecase/lifecycle"
	"github.com/momentum-hq/momentum/internal/usecase/versioning"
)

// Store holds documents and version snapshots behind one mutex. Documents are
// cloned on every boundary crossing, so callers can never mutate stored state
// through a returned map.
type Store struct {
	mu       sync.RWMutex
	tables   map[string]map[string]domdoc.Document
	versions map[string]map[string]domver.Version
	history  map[string][]string
}

var (
	_ lifecycle.Storage     = (*Store)(nil)
	_ versioning.Repository = (*Store)(nil)
)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		tables:   make(map[string]map[string]domdoc.Document),
		versions: make(map[string]map[string]domver.Version),
		history:  make(map[string][]string),
	}
}

// Ping reports the store as always reachable.
func (s *Store) Ping(context.Context) error { return nil }

// Insert stores a new document.
func (s *Store) Insert(_ context.Context, table string, doc domdoc.Document) (domdoc.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tables[table]
	if !ok {
		t = make(map[string]domdoc.Document)
		s.tables[table] = t
	}
	t[doc.ID()] = doc.Clone()
	return doc.Clone(), nil
}

// Update replaces an existing document.
func (s *Store) Update(_ context.Context, table, id string, doc domdoc.Document) (domdoc.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.tables[table]
	if _, ok := t[id]; !ok {
		return nil, domain.ErrDocumentNotFound
	}
	t[id] = doc.Clone()
	return doc.Clone(), nil
}

// Delete removes a document and returns it.
func (s *Store) Delete(_ context.Context, table, id string) (domdoc.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.tables[table]
	doc, ok := t[id]
	if !ok {
		return nil, domain.ErrDocumentNotFound
	}
	delete(t, id)
	return doc.Clone(), nil
}

// FindOne returns a document by id, or (nil, nil) when it does not exist.
func (s *Store) FindOne(_ context.Context, table, id string) (domdoc.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.tables[table][id]
	if !ok {
		return nil, nil
	}
	return doc.Clone(), nil
}

// Find returns one page of documents matching the filter, oldest first.
func (s *Store) Find(
	_ context.Context, table string, filter domain.Filter, page, limit int,
) (lifecycle.FindResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]domdoc.Document, 0)
	for _, doc := range s.tables[table] {
		if matchesFilter(doc, filter) {
			matched = append(matched, doc.Clone())
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		a, _ := matched[i][domdoc.FieldCreatedAt].(string)
		b, _ := matched[j][domdoc.FieldCreatedAt].(string)
		if a != b {
			return a < b
		}
		return strings.Compare(matched[i].ID(), matched[j].ID()) < 0
	})

	total := len(matched)
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
		return res, nil
	}
	end := start + limit
	if end > total {
		end = total
	}
	res.Docs = matched[start:end]
	return res, nil
}

// BatchInsert stores documents one by one under a single lock.
func (s *Store) BatchInsert(_ context.Context, table string, docs []domdoc.Document) ([]domdoc.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tables[table]
	if !ok {
		t = make(map[string]domdoc.Document)
		s.tables[table] = t
	}
	out := make([]domdoc.Document, len(docs))
	for i, doc := range docs {
		t[doc.ID()] = doc.Clone()
		out[i] = doc.Clone()
	}
	return out, nil
}

// BatchDelete removes documents by id. Missing ids are ignored.
func (s *Store) BatchDelete(_ context.Context, table string, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.tables[table]
	for _, id := range ids {
		delete(t, id)
	}
	return nil
}

// Append stores a snapshot and prepends its id to the document's history.
func (s *Store) Append(_ context.Context, collection string, v domver.Version) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byID, ok := s.versions[collection]
	if !ok {
		byID = make(map[string]domver.Version)
		s.versions[collection] = byID
	}
	byID[v.ID()] = v

	hk := collection + ":" + v.ParentDocID()
	s.history[hk] = append([]string{v.ID()}, s.history[hk]...)
	return nil
}

// List returns up to limit snapshots of a document, newest first.
func (s *Store) List(_ context.Context, collection, docID string, limit int) ([]domver.Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 10
	}
	ids := s.history[collection+":"+docID]
	if len(ids) > limit {
		ids = ids[:limit]
	}

	out := make([]domver.Version, 0, len(ids))
	for _, id := range ids {
		if v, ok := s.versions[collection][id]; ok {
			out = append(out, v)
		}
	}
	return out, nil
}

// Get returns one snapshot by id.
func (s *Store) Get(_ context.Context, collection, versionID string) (domver.Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.versions[collection][versionID]
	if !ok {
		return domver.Version{}, domain.ErrVersionNotFound
	}
	return v, nil
}

func matchesFilter(doc domdoc.Document, filter domain.Filter) bool {
	for k, want := range filter {
		if !domdoc.DeepEqual(doc[k], want) {
			return false
		}
	}
	return true
}
