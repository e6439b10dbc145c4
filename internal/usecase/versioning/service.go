// Package versioning implements publish snapshots and version diffing for
// versioned collections. Publishing captures a structural copy of the live
// document; ordinary updates never create versions.
package versioning

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/momentum-hq/momentum/internal/domain"
	"github.com/momentum-hq/momentum/internal/domain/access"
	"github.com/momentum-hq/momentum/internal/domain/collection"
	"github.com/momentum-hq/momentum/internal/domain/document"
	"github.com/momentum-hq/momentum/internal/domain/version"
	"github.com/momentum-hq/momentum/internal/registry"
)

// DefaultListLimit bounds listVersions when the caller passes no limit.
const DefaultListLimit = 10

// Service handles publish, listing and compare for versioned collections.
type Service struct {
	reg    *registry.Registry
	repo   Repository
	docs   DocumentReader
	logger *zap.Logger
	newID  func() string
}

// New creates a versioning service.
func New(reg *registry.Registry, repo Repository, docs DocumentReader, logger *zap.Logger) *Service {
	return &Service{reg: reg, repo: repo, docs: docs, logger: logger, newID: uuid.NewString}
}

// resolve looks up the collection and enforces that versioning is enabled.
func (s *Service) resolve(slug string) (collection.Collection, error) {
	entry, ok := s.reg.Get(slug)
	if !ok {
		return collection.Collection{}, fmt.Errorf("%q: %w", slug, domain.ErrNotFound)
	}
	if !entry.Collection.IsVersioned() {
		return collection.Collection{}, fmt.Errorf("%q: %w", slug, domain.ErrNotVersioned)
	}
	return entry.Collection, nil
}

// fetch loads the live document, enforcing the collection's defaultWhere scope.
func (s *Service) fetch(
	ctx context.Context, col collection.Collection, rctx access.Context, docID string,
) (document.Document, error) {
	doc, err := s.docs.FindOne(ctx, col.DBName(), docID)
	if err != nil {
		return nil, fmt.Errorf("find document: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("%s/%s: %w", col.Slug(), docID, domain.ErrDocumentNotFound)
	}
	for k, want := range col.Scope(rctx) {
		if !document.DeepEqual(doc[k], want) {
			return nil, fmt.Errorf("%s/%s: %w", col.Slug(), docID, domain.ErrDocumentNotFound)
		}
	}
	return doc, nil
}

// Publish captures a snapshot of the current live document and appends it to
// the document's version list. Publishing requires update access.
func (s *Service) Publish(
	ctx context.Context, rctx access.Context, slug, docID string,
) (version.Version, error) {
	col, err := s.resolve(slug)
	if err != nil {
		return version.Version{}, err
	}

	doc, err := s.fetch(ctx, col, rctx, docID)
	if err != nil {
		return version.Version{}, err
	}
	if !updateAllowed(col, rctx, doc) {
		return version.Version{}, deniedErr(rctx)
	}

	v, err := version.New(s.newID(), docID, doc)
	if err != nil {
		return version.Version{}, fmt.Errorf("build version: %w", err)
	}
	if err := s.repo.Append(ctx, slug, v); err != nil {
		return version.Version{}, fmt.Errorf("append version: %w", err)
	}

	s.logger.Info("published version",
		zap.String("collection", slug), zap.String("doc_id", docID), zap.String("version_id", v.ID()))
	return v, nil
}

// List returns a document's versions, newest first, bounded by limit.
func (s *Service) List(
	ctx context.Context, rctx access.Context, slug, docID string, limit int,
) ([]version.Version, error) {
	col, err := s.resolve(slug)
	if err != nil {
		return nil, err
	}
	doc, err := s.fetch(ctx, col, rctx, docID)
	if err != nil {
		return nil, err
	}
	if p := col.AccessPolicy().Read; p != nil && !p(rctx, doc) {
		return nil, deniedErr(rctx)
	}

	if limit <= 0 {
		limit = DefaultListLimit
	}
	versions, err := s.repo.List(ctx, slug, docID, limit)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	return versions, nil
}

// Compare returns one difference per top-level field that differs between two
// snapshots. A missing version id is a validation failure, not a lookup
// failure.
func (s *Service) Compare(
	ctx context.Context, rctx access.Context, slug, versionID1, versionID2 string,
) ([]version.Difference, error) {
	if _, err := s.resolve(slug); err != nil {
		return nil, err
	}
	if versionID1 == "" || versionID2 == "" {
		return nil, domain.NewValidationError(domain.Violation{
			Field: "versions", Message: "two version ids are required",
		})
	}

	v1, err := s.repo.Get(ctx, slug, versionID1)
	if err != nil {
		return nil, fmt.Errorf("version %s: %w", versionID1, err)
	}
	v2, err := s.repo.Get(ctx, slug, versionID2)
	if err != nil {
		return nil, fmt.Errorf("version %s: %w", versionID2, err)
	}

	diffs := version.Compare(v1, v2)
	if diffs == nil {
		diffs = []version.Difference{}
	}
	return diffs, nil
}

func updateAllowed(col collection.Collection, rctx access.Context, doc document.Document) bool {
	p := col.AccessPolicy().Update
	if p == nil {
		return rctx.Authenticated()
	}
	return p(rctx, doc)
}

func deniedErr(rctx access.Context) error {
	if !rctx.Authenticated() {
		return domain.ErrUnauthorized
	}
	return domain.ErrForbidden
}
