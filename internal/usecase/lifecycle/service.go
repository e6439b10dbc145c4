// Package lifecycle orchestrates the CRUD pipeline for every collection:
// access evaluation, the beforeValidate/beforeChange transform phases, field
// validation, the storage call, the after* notification phases, and the
// webhook event on a committed mutation. Hook execution within one operation
// is strictly sequential; storage is fired first, notifications second, and a
// post-commit hook failure never rolls the mutation back.
package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/momentum-hq/momentum/internal/domain"
	"github.com/momentum-hq/momentum/internal/domain/access"
	"github.com/momentum-hq/momentum/internal/domain/collection"
	"github.com/momentum-hq/momentum/internal/domain/document"
	"github.com/momentum-hq/momentum/internal/domain/hook"
	"github.com/momentum-hq/momentum/internal/metrics"
	"github.com/momentum-hq/momentum/internal/registry"
)

// Service runs the lifecycle pipeline. Stateless per request; safe for
// concurrent use once constructed.
type Service struct {
	reg             *registry.Registry
	storage         Storage
	notifier        Notifier
	logger          *zap.Logger
	defaultPageSize int
	maxPageSize     int
	newID           func() string
	now             func() time.Time
}

// New creates a lifecycle service.
func New(reg *registry.Registry, storage Storage, notifier Notifier, logger *zap.Logger) *Service {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Service{
		reg:             reg,
		storage:         storage,
		notifier:        notifier,
		logger:          logger,
		defaultPageSize: 20,
		maxPageSize:     100,
		newID:           uuid.NewString,
		now:             time.Now,
	}
}

// WithPagination configures page size limits.
func (s *Service) WithPagination(defaultPageSize, maxPageSize int) *Service {
	if defaultPageSize > 0 {
		s.defaultPageSize = defaultPageSize
	}
	if maxPageSize > 0 {
		s.maxPageSize = maxPageSize
	}
	return s
}

// Collection resolves a collection entry by slug.
func (s *Service) Collection(slug string) (registry.Entry, error) {
	entry, ok := s.reg.Get(slug)
	if !ok {
		return registry.Entry{}, fmt.Errorf("%q: %w", slug, domain.ErrNotFound)
	}
	return entry, nil
}

// denied maps an access denial to unauthorized or forbidden depending on
// whether the request carried a user at all.
func denied(rctx access.Context) error {
	if !rctx.Authenticated() {
		return domain.ErrUnauthorized
	}
	return domain.ErrForbidden
}

// allows evaluates a collection predicate with its operation default: reads
// default to Anyone, mutations to Authenticated.
func allows(p access.Predicate, rctx access.Context, doc document.Document, read bool) bool {
	if p == nil {
		if read {
			return true
		}
		return rctx.Authenticated()
	}
	return p(rctx, doc)
}

// Create runs the full create pipeline and returns the stored document with
// read-denied fields stripped.
func (s *Service) Create(
	ctx context.Context, rctx access.Context, slug string, data document.Document,
) (document.Document, error) {
	entry, err := s.Collection(slug)
	if err != nil {
		return nil, err
	}
	col := entry.Collection
	if col.IsManaged() {
		return nil, fmt.Errorf("collection %q is managed: %w", slug, domain.ErrForbidden)
	}
	if !allows(col.AccessPolicy().Create, rctx, nil, false) {
		s.count(slug, "create", "denied")
		return nil, denied(rctx)
	}

	args := &hook.Args{
		Collection: slug,
		Operation:  hook.OpCreate,
		Access:     rctx,
		Data:       stripSystemFields(data.Clone()),
	}
	stripDeniedWrites(col, rctx, args.Data, false)

	if err := entry.Hooks.Run(ctx, hook.BeforeValidate, args); err != nil {
		s.count(slug, "create", "hook_error")
		return nil, domain.NewHookError(string(hook.BeforeValidate), false, err)
	}

	applyDefaults(col, args.Data)
	if err := validateFields(col, args.Data, false); err != nil {
		s.count(slug, "create", "invalid")
		return nil, err
	}
	if err := s.checkUniqueIndexes(ctx, col, args.Data, ""); err != nil {
		s.count(slug, "create", "invalid")
		return nil, err
	}

	if err := entry.Hooks.Run(ctx, hook.BeforeChange, args); err != nil {
		s.count(slug, "create", "hook_error")
		return nil, domain.NewHookError(string(hook.BeforeChange), false, err)
	}

	doc := args.Data
	doc.SetID(s.newID())
	if col.HasTimestamps() {
		doc.Touch(s.now(), true)
	}

	stored, err := s.storage.Insert(ctx, col.DBName(), doc)
	if err != nil {
		s.count(slug, "create", "storage_error")
		return nil, fmt.Errorf("insert document: %w", err)
	}

	args.Doc = stored.Clone()
	if err := entry.Hooks.Run(ctx, hook.AfterChange, args); err != nil {
		// The insert is already committed; the failure surfaces but the
		// document stays.
		s.logger.Warn("afterChange hook failed after commit",
			zap.String("collection", slug), zap.String("id", stored.ID()), zap.Error(err))
		s.count(slug, "create", "hook_error")
		metrics.HookFailuresTotal.WithLabelValues(slug, string(hook.AfterChange)).Inc()
		return nil, domain.NewHookError(string(hook.AfterChange), true, err)
	}

	s.notifier.Notify(Event{
		Event: "afterCreate", Collection: slug, Operation: "create", Doc: stored.Clone(),
	})
	s.count(slug, "create", "ok")
	return redact(col, rctx, stored), nil
}

// Update applies a partial payload to an existing document. Hooks receive the
// submitted partial set in Data plus the complete pre-update document in
// OriginalDoc; the persisted result is the original merged with the
// transformed partial.
func (s *Service) Update(
	ctx context.Context, rctx access.Context, slug, id string, partial document.Document,
) (document.Document, error) {
	entry, err := s.Collection(slug)
	if err != nil {
		return nil, err
	}
	col := entry.Collection
	if col.IsManaged() {
		return nil, fmt.Errorf("collection %q is managed: %w", slug, domain.ErrForbidden)
	}

	original, err := s.fetchScoped(ctx, col, rctx, id)
	if err != nil {
		return nil, err
	}
	if !allows(col.AccessPolicy().Update, rctx, original, false) {
		s.count(slug, "update", "denied")
		return nil, denied(rctx)
	}

	args := &hook.Args{
		Collection:  slug,
		Operation:   hook.OpUpdate,
		Access:      rctx,
		Data:        stripSystemFields(partial.Clone()),
		OriginalDoc: original.Clone(),
	}
	stripDeniedWrites(col, rctx, args.Data, true)

	if err := entry.Hooks.Run(ctx, hook.BeforeValidate, args); err != nil {
		s.count(slug, "update", "hook_error")
		return nil, domain.NewHookError(string(hook.BeforeValidate), false, err)
	}

	if err := validateFields(col, args.Data, true); err != nil {
		s.count(slug, "update", "invalid")
		return nil, err
	}

	if err := entry.Hooks.Run(ctx, hook.BeforeChange, args); err != nil {
		s.count(slug, "update", "hook_error")
		return nil, domain.NewHookError(string(hook.BeforeChange), false, err)
	}

	merged := original.Merge(args.Data)
	if err := s.checkUniqueIndexes(ctx, col, merged, id); err != nil {
		s.count(slug, "update", "invalid")
		return nil, err
	}
	if col.HasTimestamps() {
		merged.Touch(s.now(), false)
	}

	stored, err := s.storage.Update(ctx, col.DBName(), id, merged)
	if err != nil {
		s.count(slug, "update", "storage_error")
		return nil, fmt.Errorf("update document: %w", err)
	}

	args.Doc = stored.Clone()
	if err := entry.Hooks.Run(ctx, hook.AfterChange, args); err != nil {
		s.logger.Warn("afterChange hook failed after commit",
			zap.String("collection", slug), zap.String("id", id), zap.Error(err))
		s.count(slug, "update", "hook_error")
		metrics.HookFailuresTotal.WithLabelValues(slug, string(hook.AfterChange)).Inc()
		return nil, domain.NewHookError(string(hook.AfterChange), true, err)
	}

	s.notifier.Notify(Event{
		Event: "afterUpdate", Collection: slug, Operation: "update", Doc: stored.Clone(),
	})
	s.count(slug, "update", "ok")
	return redact(col, rctx, stored), nil
}

// Delete removes a document after beforeDelete passes. A beforeDelete error
// leaves the document intact; an afterDelete error surfaces but the delete
// stands.
func (s *Service) Delete(
	ctx context.Context, rctx access.Context, slug, id string,
) (document.Document, error) {
	entry, err := s.Collection(slug)
	if err != nil {
		return nil, err
	}
	col := entry.Collection
	if col.IsManaged() {
		return nil, fmt.Errorf("collection %q is managed: %w", slug, domain.ErrForbidden)
	}

	doc, err := s.fetchScoped(ctx, col, rctx, id)
	if err != nil {
		return nil, err
	}
	if !allows(col.AccessPolicy().Delete, rctx, doc, false) {
		s.count(slug, "delete", "denied")
		return nil, denied(rctx)
	}

	args := &hook.Args{
		Collection: slug,
		Operation:  hook.OpDelete,
		Access:     rctx,
		Doc:        doc.Clone(),
	}

	if err := entry.Hooks.Run(ctx, hook.BeforeDelete, args); err != nil {
		s.count(slug, "delete", "hook_error")
		return nil, domain.NewHookError(string(hook.BeforeDelete), false, err)
	}

	deleted, err := s.storage.Delete(ctx, col.DBName(), id)
	if err != nil {
		s.count(slug, "delete", "storage_error")
		return nil, fmt.Errorf("delete document: %w", err)
	}

	args.Doc = deleted.Clone()
	if err := entry.Hooks.Run(ctx, hook.AfterDelete, args); err != nil {
		s.logger.Warn("afterDelete hook failed after commit",
			zap.String("collection", slug), zap.String("id", id), zap.Error(err))
		s.count(slug, "delete", "hook_error")
		metrics.HookFailuresTotal.WithLabelValues(slug, string(hook.AfterDelete)).Inc()
		return nil, domain.NewHookError(string(hook.AfterDelete), true, err)
	}

	s.notifier.Notify(Event{
		Event: "afterDelete", Collection: slug, Operation: "delete", Doc: deleted.Clone(),
	})
	s.count(slug, "delete", "ok")
	return redact(col, rctx, deleted), nil
}

// Find lists documents. beforeRead fires once, even on an empty result;
// afterRead fires exactly once per returned document against a fresh copy, so
// per-request enrichment never leaks between callers. A read predicate denial
// filters the listing to empty instead of rejecting.
func (s *Service) Find(
	ctx context.Context, rctx access.Context, slug string,
	filter domain.Filter, page, limit int,
) (FindResult, error) {
	entry, err := s.Collection(slug)
	if err != nil {
		return FindResult{}, err
	}
	col := entry.Collection

	args := &hook.Args{Collection: slug, Operation: hook.OpRead, Access: rctx}
	if err := entry.Hooks.Run(ctx, hook.BeforeRead, args); err != nil {
		return FindResult{}, domain.NewHookError(string(hook.BeforeRead), false, err)
	}

	if !allows(col.AccessPolicy().Read, rctx, nil, true) {
		return FindResult{Docs: []document.Document{}}, nil
	}

	if limit <= 0 {
		limit = s.defaultPageSize
	}
	if limit > s.maxPageSize {
		limit = s.maxPageSize
	}
	if page <= 0 {
		page = 1
	}

	// defaultWhere is merged before storage computes pagination, so scoping
	// never pushes documents onto later pages.
	scoped := filter.And(col.Scope(rctx))

	res, err := s.storage.Find(ctx, col.DBName(), scoped, page, limit)
	if err != nil {
		return FindResult{}, fmt.Errorf("find documents: %w", err)
	}

	out := make([]document.Document, 0, len(res.Docs))
	for _, doc := range res.Docs {
		enriched, err := s.afterRead(ctx, entry, rctx, doc)
		if err != nil {
			return FindResult{}, err
		}
		out = append(out, enriched)
	}
	res.Docs = out
	return res, nil
}

// FindByID retrieves one document. beforeRead fires even when the target id
// does not exist.
func (s *Service) FindByID(
	ctx context.Context, rctx access.Context, slug, id string,
) (document.Document, error) {
	entry, err := s.Collection(slug)
	if err != nil {
		return nil, err
	}
	col := entry.Collection

	args := &hook.Args{Collection: slug, Operation: hook.OpRead, Access: rctx}
	if err := entry.Hooks.Run(ctx, hook.BeforeRead, args); err != nil {
		return nil, domain.NewHookError(string(hook.BeforeRead), false, err)
	}

	doc, err := s.fetchScoped(ctx, col, rctx, id)
	if err != nil {
		return nil, err
	}
	if !allows(col.AccessPolicy().Read, rctx, doc, true) {
		return nil, denied(rctx)
	}

	return s.afterRead(ctx, entry, rctx, doc)
}

// afterRead runs the afterRead hooks against a fresh copy of doc and strips
// read-denied fields from the result. Enrichment attached by hooks is visible
// to the caller only; nothing is persisted.
func (s *Service) afterRead(
	ctx context.Context, entry registry.Entry, rctx access.Context, doc document.Document,
) (document.Document, error) {
	args := &hook.Args{
		Collection: entry.Collection.Slug(),
		Operation:  hook.OpRead,
		Access:     rctx,
		Doc:        doc.Clone(),
	}
	if err := entry.Hooks.Run(ctx, hook.AfterRead, args); err != nil {
		metrics.HookFailuresTotal.WithLabelValues(entry.Collection.Slug(), string(hook.AfterRead)).Inc()
		return nil, domain.NewHookError(string(hook.AfterRead), true, err)
	}
	return redact(entry.Collection, rctx, args.Doc), nil
}

// fetchScoped loads a document by id and enforces the collection's
// defaultWhere scope. A document outside the caller's scope reports not found
// rather than leaking its existence.
func (s *Service) fetchScoped(
	ctx context.Context, col collection.Collection, rctx access.Context, id string,
) (document.Document, error) {
	doc, err := s.storage.FindOne(ctx, col.DBName(), id)
	if err != nil {
		return nil, fmt.Errorf("find document: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("%s/%s: %w", col.Slug(), id, domain.ErrDocumentNotFound)
	}
	if scope := col.Scope(rctx); !matches(doc, scope) {
		return nil, fmt.Errorf("%s/%s: %w", col.Slug(), id, domain.ErrDocumentNotFound)
	}
	return doc, nil
}

// matches reports whether doc satisfies every equality clause of filter.
func matches(doc document.Document, filter domain.Filter) bool {
	for k, want := range filter {
		if !document.DeepEqual(doc[k], want) {
			return false
		}
	}
	return true
}

// stripSystemFields removes engine-owned fields from a client payload.
func stripSystemFields(data document.Document) document.Document {
	delete(data, document.FieldID)
	delete(data, document.FieldCreatedAt)
	delete(data, document.FieldUpdatedAt)
	return data
}

// stripDeniedWrites silently drops submitted values for fields whose create or
// update predicate denies the request.
func stripDeniedWrites(col collection.Collection, rctx access.Context, data document.Document, update bool) {
	for _, f := range col.Fields() {
		if _, present := data[f.Name()]; !present {
			continue
		}
		p := f.Access().Create
		if update {
			p = f.Access().Update
		}
		if p != nil && !p(rctx, data) {
			delete(data, f.Name())
		}
	}
}

// redact returns a copy of doc with read-denied fields suppressed. Field-level
// denial hides the value, never the document.
func redact(col collection.Collection, rctx access.Context, doc document.Document) document.Document {
	out := doc.Clone()
	for _, f := range col.Fields() {
		if p := f.Access().Read; p != nil && !p(rctx, doc) {
			delete(out, f.Name())
		}
	}
	return out
}

func (s *Service) count(slug, op, status string) {
	metrics.OperationsTotal.WithLabelValues(slug, op, status).Inc()
}
