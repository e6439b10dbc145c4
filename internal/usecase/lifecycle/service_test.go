package lifecycle

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/momentum-hq/momentum/internal/domain"
	"github.com/momentum-hq/momentum/internal/domain/access"
	"github.com/momentum-hq/momentum/internal/domain/collection"
	"github.com/momentum-hq/momentum/internal/domain/collection/field"
	"github.com/momentum-hq/momentum/internal/domain/document"
	"github.com/momentum-hq/momentum/internal/domain/hook"
	"github.com/momentum-hq/momentum/internal/registry"
)

// --- Mocks ---

// fakeStorage is a map-backed Storage with per-method error injection.
type fakeStorage struct {
	mu        sync.Mutex
	tables    map[string]map[string]document.Document
	insertErr error
	updateErr error
	deleteErr error
	findErr   error
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{tables: make(map[string]map[string]document.Document)}
}

func (f *fakeStorage) table(name string) map[string]document.Document {
	t, ok := f.tables[name]
	if !ok {
		t = make(map[string]document.Document)
		f.tables[name] = t
	}
	return t
}

func (f *fakeStorage) seed(table string, docs ...document.Document) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, doc := range docs {
		f.table(table)[doc.ID()] = doc.Clone()
	}
}

func (f *fakeStorage) stored(table, id string) document.Document {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.tables[table][id]
	if !ok {
		return nil
	}
	return doc.Clone()
}

func (f *fakeStorage) count(table string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tables[table])
}

func (f *fakeStorage) Insert(_ context.Context, table string, doc document.Document) (document.Document, error) {
	if f.insertErr != nil {
		return nil, f.insertErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.table(table)[doc.ID()] = doc.Clone()
	return doc.Clone(), nil
}

func (f *fakeStorage) Update(_ context.Context, table, id string, doc document.Document) (document.Document, error) {
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.table(table)[id]; !ok {
		return nil, domain.ErrDocumentNotFound
	}
	f.table(table)[id] = doc.Clone()
	return doc.Clone(), nil
}

func (f *fakeStorage) Delete(_ context.Context, table, id string) (document.Document, error) {
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.table(table)[id]
	if !ok {
		return nil, domain.ErrDocumentNotFound
	}
	delete(f.table(table), id)
	return doc.Clone(), nil
}

func (f *fakeStorage) FindOne(_ context.Context, table, id string) (document.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.tables[table][id]
	if !ok {
		return nil, nil
	}
	return doc.Clone(), nil
}

func (f *fakeStorage) Find(
	_ context.Context, table string, filter domain.Filter, page, limit int,
) (FindResult, error) {
	if f.findErr != nil {
		return FindResult{}, f.findErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	matched := make([]document.Document, 0)
	for _, doc := range f.tables[table] {
		if matches(doc, filter) {
			matched = append(matched, doc.Clone())
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		a, _ := matched[i][document.FieldCreatedAt].(string)
		b, _ := matched[j][document.FieldCreatedAt].(string)
		if a != b {
			return a < b
		}
		return strings.Compare(matched[i].ID(), matched[j].ID()) < 0
	})

	total := len(matched)
	res := FindResult{Docs: []document.Document{}, TotalDocs: total}
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

func (f *fakeStorage) BatchInsert(_ context.Context, table string, docs []document.Document) ([]document.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]document.Document, len(docs))
	for i, doc := range docs {
		f.table(table)[doc.ID()] = doc.Clone()
		out[i] = doc.Clone()
	}
	return out, nil
}

func (f *fakeStorage) BatchDelete(_ context.Context, table string, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		delete(f.table(table), id)
	}
	return nil
}

// mockNotifier records delivered events.
type mockNotifier struct {
	mu     sync.Mutex
	events []Event
}

func (m *mockNotifier) Notify(e Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
}

func (m *mockNotifier) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

func (m *mockNotifier) last() Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.events[len(m.events)-1]
}

// --- Helpers ---

var (
	anonymous = access.Context{}
	alice     = access.Context{User: &access.User{ID: "alice", Role: "editor"}}
	bob       = access.Context{User: &access.User{ID: "bob", Role: "viewer"}}
	root      = access.Context{User: &access.User{ID: "root", Role: "admin"}}
)

func makeField(t *testing.T, name string, ft field.Type, opts ...field.Option) field.Field {
	t.Helper()
	f, err := field.New(name, ft, opts...)
	if err != nil {
		t.Fatalf("field.New(%s): %v", name, err)
	}
	return f
}

func makeCollection(t *testing.T, slug string, opts ...collection.Option) collection.Collection {
	t.Helper()
	col, err := collection.New(slug, opts...)
	if err != nil {
		t.Fatalf("collection.New(%s): %v", slug, err)
	}
	return col
}

func postsCollection(t *testing.T, opts ...collection.Option) collection.Collection {
	t.Helper()
	base := []collection.Option{
		collection.Fields(
			makeField(t, "title", field.Text, field.Required()),
			makeField(t, "status", field.Select,
				field.Options("draft", "published"), field.Default("draft")),
			makeField(t, "author", field.Text),
		),
		collection.Timestamps(),
	}
	return makeCollection(t, "posts", append(base, opts...)...)
}

// newService wires a service over the given collections, letting the caller
// register hooks on the builder first.
func newService(
	t *testing.T, st Storage, n Notifier,
	cols []collection.Collection, setup func(*registry.Builder),
) *Service {
	t.Helper()
	b := registry.NewBuilder()
	for _, c := range cols {
		b.AddCollection(c)
	}
	if setup != nil {
		setup(b)
	}
	reg, err := b.Build()
	if err != nil {
		t.Fatalf("registry build: %v", err)
	}
	svc := New(reg, st, n, zap.NewNop())
	svc.newID = func() string { return "fixed-id" }
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return svc
}

// --- Create tests ---

func TestCreate_Success(t *testing.T) {
	st := newFakeStorage()
	notifier := &mockNotifier{}
	svc := newService(t, st, notifier, []collection.Collection{postsCollection(t)}, nil)

	doc, err := svc.Create(context.Background(), alice, "posts", document.Document{"title": "hello"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.ID() != "fixed-id" {
		t.Errorf("expected generated id, got %q", doc.ID())
	}
	if doc["status"] != "draft" {
		t.Errorf("expected default status 'draft', got %v", doc["status"])
	}
	if _, ok := doc[document.FieldCreatedAt].(string); !ok {
		t.Error("expected createdAt timestamp")
	}
	if st.stored("posts", "fixed-id") == nil {
		t.Error("expected document persisted")
	}
}

func TestCreate_UnknownCollection(t *testing.T) {
	svc := newService(t, newFakeStorage(), nil, []collection.Collection{postsCollection(t)}, nil)

	_, err := svc.Create(context.Background(), alice, "missing", document.Document{"title": "x"})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCreate_AnonymousDeniedByDefault(t *testing.T) {
	// Mutations with no predicate default to authenticated-only.
	st := newFakeStorage()
	svc := newService(t, st, nil, []collection.Collection{postsCollection(t)}, nil)

	_, err := svc.Create(context.Background(), anonymous, "posts", document.Document{"title": "x"})
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
	if st.count("posts") != 0 {
		t.Error("denied create must not touch storage")
	}
}

func TestCreate_PredicateForbidden(t *testing.T) {
	col := postsCollection(t, collection.Access(access.Policy{Create: access.Admin()}))
	svc := newService(t, newFakeStorage(), nil, []collection.Collection{col}, nil)

	_, err := svc.Create(context.Background(), alice, "posts", document.Document{"title": "x"})
	if !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
}

func TestCreate_ManagedCollectionRejected(t *testing.T) {
	col := postsCollection(t, collection.Managed())
	svc := newService(t, newFakeStorage(), nil, []collection.Collection{col}, nil)

	_, err := svc.Create(context.Background(), root, "posts", document.Document{"title": "x"})
	if !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("expected ErrForbidden for managed collection, got %v", err)
	}
}

func TestCreate_RequiredFieldMissing(t *testing.T) {
	st := newFakeStorage()
	svc := newService(t, st, nil, []collection.Collection{postsCollection(t)}, nil)

	_, err := svc.Create(context.Background(), alice, "posts", document.Document{"status": "draft"})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if len(verr.Violations) != 1 || verr.Violations[0].Field != "title" {
		t.Errorf("expected single title violation, got %v", verr.Violations)
	}
	if st.count("posts") != 0 {
		t.Error("invalid create must not touch storage")
	}
}

func TestCreate_AllViolationsReported(t *testing.T) {
	col := makeCollection(t, "posts", collection.Fields(
		makeField(t, "title", field.Text, field.Required()),
		makeField(t, "rating", field.Number),
	))
	svc := newService(t, newFakeStorage(), nil, []collection.Collection{col}, nil)

	_, err := svc.Create(context.Background(), alice, "posts", document.Document{"rating": "high"})
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	if len(verr.Violations) != 2 {
		t.Errorf("expected 2 violations (missing title, bad rating), got %v", verr.Violations)
	}
}

func TestCreate_SystemFieldsStripped(t *testing.T) {
	st := newFakeStorage()
	svc := newService(t, st, nil, []collection.Collection{postsCollection(t)}, nil)

	doc, err := svc.Create(context.Background(), alice, "posts", document.Document{
		"title":     "hello",
		"id":        "client-chosen",
		"createdAt": "1999-01-01T00:00:00Z",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.ID() != "fixed-id" {
		t.Errorf("client-submitted id must be ignored, got %q", doc.ID())
	}
	if created, _ := doc[document.FieldCreatedAt].(string); strings.HasPrefix(created, "1999") {
		t.Errorf("client-submitted createdAt must be ignored, got %q", created)
	}
}

func TestCreate_HookOrdering(t *testing.T) {
	rec := hook.NewRecorder()
	svc := newService(t, newFakeStorage(), nil, []collection.Collection{postsCollection(t)},
		func(b *registry.Builder) { rec.Attach(b.Hooks("posts")) })

	if _, err := svc.Create(context.Background(), alice, "posts", document.Document{"title": "x"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []hook.Type{hook.BeforeValidate, hook.BeforeChange, hook.AfterChange}
	got := rec.Sequence()
	if len(got) != len(want) {
		t.Fatalf("expected sequence %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected sequence %v, got %v", want, got)
		}
	}
}

func TestCreate_HookTransformVisible(t *testing.T) {
	st := newFakeStorage()
	svc := newService(t, st, nil, []collection.Collection{postsCollection(t)},
		func(b *registry.Builder) {
			b.Hooks("posts").On(hook.BeforeChange, func(_ context.Context, args *hook.Args) error {
				title, _ := args.Data["title"].(string)
				args.Data["slug"] = strings.ToLower(strings.ReplaceAll(title, " ", "-"))
				return nil
			})
		})

	doc, err := svc.Create(context.Background(), alice, "posts", document.Document{"title": "Hello World"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc["slug"] != "hello-world" {
		t.Errorf("expected hook-derived slug, got %v", doc["slug"])
	}
	if stored := st.stored("posts", "fixed-id"); stored["slug"] != "hello-world" {
		t.Errorf("expected slug persisted, got %v", stored["slug"])
	}
}

func TestCreate_BeforeChangeFailureAborts(t *testing.T) {
	st := newFakeStorage()
	notifier := &mockNotifier{}
	hookErr := errors.New("rejected by hook")
	svc := newService(t, st, notifier, []collection.Collection{postsCollection(t)},
		func(b *registry.Builder) {
			b.Hooks("posts").On(hook.BeforeChange, func(context.Context, *hook.Args) error {
				return hookErr
			})
		})

	_, err := svc.Create(context.Background(), alice, "posts", document.Document{"title": "x"})
	if !errors.Is(err, domain.ErrHookFailed) {
		t.Fatalf("expected ErrHookFailed, got %v", err)
	}
	var herr *domain.HookError
	if !errors.As(err, &herr) {
		t.Fatalf("expected *HookError, got %T", err)
	}
	if herr.Committed {
		t.Error("pre-commit failure must report Committed=false")
	}
	if herr.Hook != string(hook.BeforeChange) {
		t.Errorf("expected beforeChange, got %q", herr.Hook)
	}
	if st.count("posts") != 0 {
		t.Error("aborted create must not touch storage")
	}
	if notifier.count() != 0 {
		t.Error("aborted create must not notify")
	}
}

func TestCreate_AfterChangeFailureKeepsDocument(t *testing.T) {
	st := newFakeStorage()
	notifier := &mockNotifier{}
	svc := newService(t, st, notifier, []collection.Collection{postsCollection(t)},
		func(b *registry.Builder) {
			b.Hooks("posts").On(hook.AfterChange, func(context.Context, *hook.Args) error {
				return errors.New("downstream sync failed")
			})
		})

	_, err := svc.Create(context.Background(), alice, "posts", document.Document{"title": "x"})
	var herr *domain.HookError
	if !errors.As(err, &herr) {
		t.Fatalf("expected *HookError, got %v", err)
	}
	if !herr.Committed {
		t.Error("post-commit failure must report Committed=true")
	}
	if st.stored("posts", "fixed-id") == nil {
		t.Error("post-commit failure must not roll back the insert")
	}
	if notifier.count() != 0 {
		t.Error("failed afterChange must suppress the webhook event")
	}
}

func TestCreate_NotifiesWebhook(t *testing.T) {
	notifier := &mockNotifier{}
	svc := newService(t, newFakeStorage(), notifier, []collection.Collection{postsCollection(t)}, nil)

	if _, err := svc.Create(context.Background(), alice, "posts", document.Document{"title": "x"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if notifier.count() != 1 {
		t.Fatalf("expected 1 event, got %d", notifier.count())
	}
	ev := notifier.last()
	if ev.Event != "afterCreate" || ev.Operation != "create" || ev.Collection != "posts" {
		t.Errorf("unexpected event %+v", ev)
	}
	if ev.Doc.ID() != "fixed-id" {
		t.Errorf("expected committed doc in event, got %v", ev.Doc)
	}
}

func TestCreate_DeniedFieldWriteStripped(t *testing.T) {
	col := makeCollection(t, "posts", collection.Fields(
		makeField(t, "title", field.Text, field.Required()),
		makeField(t, "featured", field.Checkbox, field.WithAccess(access.FieldPolicy{
			Create: access.Admin(),
		})),
	))
	st := newFakeStorage()
	svc := newService(t, st, nil, []collection.Collection{col}, nil)

	doc, err := svc.Create(context.Background(), alice, "posts", document.Document{
		"title": "x", "featured": true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, present := doc["featured"]; present {
		t.Error("create-denied field must be silently dropped")
	}

	// An admin may set it.
	svc.newID = func() string { return "second-id" }
	doc, err = svc.Create(context.Background(), root, "posts", document.Document{
		"title": "y", "featured": true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc["featured"] != true {
		t.Error("admin write must pass through")
	}
}

func TestCreate_ReadDeniedFieldRedacted(t *testing.T) {
	col := makeCollection(t, "posts", collection.Fields(
		makeField(t, "title", field.Text, field.Required()),
		makeField(t, "internalNote", field.Text, field.WithAccess(access.FieldPolicy{
			Read: access.Admin(),
		})),
	))
	st := newFakeStorage()
	svc := newService(t, st, nil, []collection.Collection{col}, nil)

	doc, err := svc.Create(context.Background(), alice, "posts", document.Document{
		"title": "x", "internalNote": "secret",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, present := doc["internalNote"]; present {
		t.Error("read-denied field must be redacted from the response")
	}
	if stored := st.stored("posts", "fixed-id"); stored["internalNote"] != "secret" {
		t.Error("redaction must not affect the stored document")
	}
}

func TestCreate_UniqueIndexViolation(t *testing.T) {
	col := postsCollection(t, collection.Indexes(collection.Index{Fields: []string{"title"}, Unique: true}))
	st := newFakeStorage()
	st.seed("posts", document.Document{"id": "existing", "title": "taken"})
	svc := newService(t, st, nil, []collection.Collection{col}, nil)

	_, err := svc.Create(context.Background(), alice, "posts", document.Document{"title": "taken"})
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	if len(verr.Violations) != 1 || verr.Violations[0].Field != "title" {
		t.Errorf("expected title uniqueness violation, got %v", verr.Violations)
	}
}

func TestCreate_StorageError(t *testing.T) {
	st := newFakeStorage()
	st.insertErr = errors.New("connection reset")
	notifier := &mockNotifier{}
	svc := newService(t, st, notifier, []collection.Collection{postsCollection(t)}, nil)

	_, err := svc.Create(context.Background(), alice, "posts", document.Document{"title": "x"})
	if err == nil || !strings.Contains(err.Error(), "insert document") {
		t.Errorf("expected wrapped insert error, got %v", err)
	}
	if notifier.count() != 0 {
		t.Error("failed insert must not notify")
	}
}

// --- Update tests ---

func seedPost(st *fakeStorage, id, title, author string) {
	st.seed("posts", document.Document{
		"id": id, "title": title, "status": "draft", "author": author,
		"createdAt": "2026-01-01T00:00:00Z", "updatedAt": "2026-01-01T00:00:00Z",
	})
}

func TestUpdate_MergesPartial(t *testing.T) {
	st := newFakeStorage()
	seedPost(st, "p1", "old title", "alice")
	svc := newService(t, st, nil, []collection.Collection{postsCollection(t)}, nil)

	doc, err := svc.Update(context.Background(), alice, "posts", "p1", document.Document{"title": "new title"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc["title"] != "new title" {
		t.Errorf("expected updated title, got %v", doc["title"])
	}
	if doc["author"] != "alice" {
		t.Errorf("fields absent from the partial must survive, got %v", doc["author"])
	}
	if doc["createdAt"] != "2026-01-01T00:00:00Z" {
		t.Errorf("createdAt must not change on update, got %v", doc["createdAt"])
	}
	if doc["updatedAt"] == "2026-01-01T00:00:00Z" {
		t.Error("updatedAt must advance")
	}
}

func TestUpdate_MissingDocument(t *testing.T) {
	svc := newService(t, newFakeStorage(), nil, []collection.Collection{postsCollection(t)}, nil)

	_, err := svc.Update(context.Background(), alice, "posts", "nope", document.Document{"title": "x"})
	if !errors.Is(err, domain.ErrDocumentNotFound) {
		t.Errorf("expected ErrDocumentNotFound, got %v", err)
	}
}

func TestUpdate_RequiredFieldAbsentAllowed(t *testing.T) {
	// Partial update without the required title is fine.
	st := newFakeStorage()
	seedPost(st, "p1", "keep me", "alice")
	svc := newService(t, st, nil, []collection.Collection{postsCollection(t)}, nil)

	doc, err := svc.Update(context.Background(), alice, "posts", "p1", document.Document{"status": "published"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc["title"] != "keep me" {
		t.Errorf("expected title preserved, got %v", doc["title"])
	}
}

func TestUpdate_InvalidSubmittedField(t *testing.T) {
	st := newFakeStorage()
	seedPost(st, "p1", "x", "alice")
	svc := newService(t, st, nil, []collection.Collection{postsCollection(t)}, nil)

	_, err := svc.Update(context.Background(), alice, "posts", "p1", document.Document{"status": "archived"})
	if !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected ErrValidation for bad select value, got %v", err)
	}
}

func TestUpdate_OwnerPredicate(t *testing.T) {
	col := postsCollection(t, collection.Access(access.Policy{Update: access.Owner("author")}))
	st := newFakeStorage()
	seedPost(st, "p1", "x", "alice")
	svc := newService(t, st, nil, []collection.Collection{col}, nil)

	if _, err := svc.Update(context.Background(), bob, "posts", "p1", document.Document{"title": "hijack"}); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("expected ErrForbidden for non-owner, got %v", err)
	}
	if _, err := svc.Update(context.Background(), alice, "posts", "p1", document.Document{"title": "mine"}); err != nil {
		t.Errorf("owner update should pass, got %v", err)
	}
	if _, err := svc.Update(context.Background(), root, "posts", "p1", document.Document{"title": "admin"}); err != nil {
		t.Errorf("admin update should pass, got %v", err)
	}
}

func TestUpdate_HooksReceiveOriginal(t *testing.T) {
	st := newFakeStorage()
	seedPost(st, "p1", "before", "alice")
	var sawOriginal string
	svc := newService(t, st, nil, []collection.Collection{postsCollection(t)},
		func(b *registry.Builder) {
			b.Hooks("posts").On(hook.BeforeChange, func(_ context.Context, args *hook.Args) error {
				sawOriginal, _ = args.OriginalDoc["title"].(string)
				return nil
			})
		})

	if _, err := svc.Update(context.Background(), alice, "posts", "p1", document.Document{"title": "after"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sawOriginal != "before" {
		t.Errorf("expected OriginalDoc to hold the pre-update document, got %q", sawOriginal)
	}
}

func TestUpdate_ScopeMismatchReportsNotFound(t *testing.T) {
	// A document outside the caller's defaultWhere scope must not leak its
	// existence through a different error.
	col := postsCollection(t, collection.DefaultWhere(access.OwnerWhere("author")))
	st := newFakeStorage()
	seedPost(st, "p1", "x", "alice")
	svc := newService(t, st, nil, []collection.Collection{col}, nil)

	_, err := svc.Update(context.Background(), bob, "posts", "p1", document.Document{"title": "y"})
	if !errors.Is(err, domain.ErrDocumentNotFound) {
		t.Errorf("expected ErrDocumentNotFound for out-of-scope doc, got %v", err)
	}
}

func TestUpdate_UniqueIndexExcludesSelf(t *testing.T) {
	col := postsCollection(t, collection.Indexes(collection.Index{Fields: []string{"title"}, Unique: true}))
	st := newFakeStorage()
	seedPost(st, "p1", "mine", "alice")
	seedPost(st, "p2", "other", "alice")
	svc := newService(t, st, nil, []collection.Collection{col}, nil)

	// Re-saving the same title on the same document is not a collision.
	if _, err := svc.Update(context.Background(), alice, "posts", "p1", document.Document{"title": "mine"}); err != nil {
		t.Errorf("self-collision must be allowed, got %v", err)
	}
	// Taking another document's title is.
	if _, err := svc.Update(context.Background(), alice, "posts", "p1", document.Document{"title": "other"}); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected ErrValidation for cross-doc collision, got %v", err)
	}
}

func TestUpdate_AfterChangeFailureKeepsUpdate(t *testing.T) {
	st := newFakeStorage()
	seedPost(st, "p1", "old", "alice")
	svc := newService(t, st, nil, []collection.Collection{postsCollection(t)},
		func(b *registry.Builder) {
			b.Hooks("posts").On(hook.AfterChange, func(context.Context, *hook.Args) error {
				return errors.New("boom")
			})
		})

	_, err := svc.Update(context.Background(), alice, "posts", "p1", document.Document{"title": "new"})
	var herr *domain.HookError
	if !errors.As(err, &herr) || !herr.Committed {
		t.Fatalf("expected committed HookError, got %v", err)
	}
	if stored := st.stored("posts", "p1"); stored["title"] != "new" {
		t.Errorf("update must stand after post-commit hook failure, got %v", stored["title"])
	}
}

// --- Delete tests ---

func TestDelete_Success(t *testing.T) {
	st := newFakeStorage()
	seedPost(st, "p1", "x", "alice")
	notifier := &mockNotifier{}
	rec := hook.NewRecorder()
	svc := newService(t, st, notifier, []collection.Collection{postsCollection(t)},
		func(b *registry.Builder) { rec.Attach(b.Hooks("posts")) })

	doc, err := svc.Delete(context.Background(), alice, "posts", "p1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc["title"] != "x" {
		t.Errorf("expected removed document returned, got %v", doc)
	}
	if st.count("posts") != 0 {
		t.Error("expected document removed")
	}
	seq := rec.Sequence()
	if len(seq) != 2 || seq[0] != hook.BeforeDelete || seq[1] != hook.AfterDelete {
		t.Errorf("expected [beforeDelete afterDelete], got %v", seq)
	}
	if notifier.count() != 1 || notifier.last().Event != "afterDelete" {
		t.Error("expected afterDelete event")
	}
}

func TestDelete_BeforeDeleteFailureKeepsDocument(t *testing.T) {
	st := newFakeStorage()
	seedPost(st, "p1", "x", "alice")
	svc := newService(t, st, nil, []collection.Collection{postsCollection(t)},
		func(b *registry.Builder) {
			b.Hooks("posts").On(hook.BeforeDelete, func(context.Context, *hook.Args) error {
				return errors.New("still referenced")
			})
		})

	_, err := svc.Delete(context.Background(), alice, "posts", "p1")
	var herr *domain.HookError
	if !errors.As(err, &herr) || herr.Committed {
		t.Fatalf("expected pre-commit HookError, got %v", err)
	}
	if st.stored("posts", "p1") == nil {
		t.Error("beforeDelete failure must leave the document intact")
	}
}

func TestDelete_AfterDeleteFailureDeleteStands(t *testing.T) {
	st := newFakeStorage()
	seedPost(st, "p1", "x", "alice")
	svc := newService(t, st, nil, []collection.Collection{postsCollection(t)},
		func(b *registry.Builder) {
			b.Hooks("posts").On(hook.AfterDelete, func(context.Context, *hook.Args) error {
				return errors.New("cleanup failed")
			})
		})

	_, err := svc.Delete(context.Background(), alice, "posts", "p1")
	var herr *domain.HookError
	if !errors.As(err, &herr) || !herr.Committed {
		t.Fatalf("expected committed HookError, got %v", err)
	}
	if st.count("posts") != 0 {
		t.Error("afterDelete failure must not resurrect the document")
	}
}

func TestDelete_DeniedLeavesDocument(t *testing.T) {
	col := postsCollection(t, collection.Access(access.Policy{Delete: access.Owner("author")}))
	st := newFakeStorage()
	seedPost(st, "p1", "x", "alice")
	svc := newService(t, st, nil, []collection.Collection{col}, nil)

	if _, err := svc.Delete(context.Background(), bob, "posts", "p1"); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
	if st.stored("posts", "p1") == nil {
		t.Error("denied delete must leave the document intact")
	}
}

// --- Find tests ---

func TestFind_PaginationAndDefaults(t *testing.T) {
	st := newFakeStorage()
	for i := 0; i < 5; i++ {
		st.seed("posts", document.Document{
			"id":        string(rune('a' + i)),
			"title":     "t",
			"createdAt": "2026-01-0" + string(rune('1'+i)) + "T00:00:00Z",
		})
	}
	svc := newService(t, st, nil, []collection.Collection{postsCollection(t)}, nil).
		WithPagination(2, 3)

	res, err := svc.Find(context.Background(), alice, "posts", nil, 0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Docs) != 2 {
		t.Errorf("expected default page size 2, got %d", len(res.Docs))
	}
	if res.TotalDocs != 5 {
		t.Errorf("expected 5 total, got %d", res.TotalDocs)
	}
	if res.TotalPages != 3 {
		t.Errorf("expected 3 pages, got %d", res.TotalPages)
	}

	// Oversized limit clamps to the maximum.
	res, err = svc.Find(context.Background(), alice, "posts", nil, 1, 999)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Docs) != 3 {
		t.Errorf("expected limit clamped to 3, got %d", len(res.Docs))
	}
}

func TestFind_ReadDenialYieldsEmpty(t *testing.T) {
	col := postsCollection(t, collection.Access(access.Policy{Read: access.Authenticated()}))
	st := newFakeStorage()
	seedPost(st, "p1", "x", "alice")
	svc := newService(t, st, nil, []collection.Collection{col}, nil)

	res, err := svc.Find(context.Background(), anonymous, "posts", nil, 1, 10)
	if err != nil {
		t.Fatalf("read denial on a listing must not error: %v", err)
	}
	if len(res.Docs) != 0 {
		t.Errorf("expected empty listing, got %d docs", len(res.Docs))
	}
}

func TestFind_BeforeReadFiresOnceOnEmpty(t *testing.T) {
	rec := hook.NewRecorder()
	svc := newService(t, newFakeStorage(), nil, []collection.Collection{postsCollection(t)},
		func(b *registry.Builder) { rec.Attach(b.Hooks("posts")) })

	if _, err := svc.Find(context.Background(), alice, "posts", nil, 1, 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Count(hook.BeforeRead) != 1 {
		t.Errorf("expected beforeRead fired once, got %d", rec.Count(hook.BeforeRead))
	}
	if rec.Count(hook.AfterRead) != 0 {
		t.Errorf("expected no afterRead on empty result, got %d", rec.Count(hook.AfterRead))
	}
}

func TestFind_AfterReadPerDocument(t *testing.T) {
	st := newFakeStorage()
	seedPost(st, "p1", "a", "alice")
	seedPost(st, "p2", "b", "alice")
	rec := hook.NewRecorder()
	svc := newService(t, st, nil, []collection.Collection{postsCollection(t)},
		func(b *registry.Builder) { rec.Attach(b.Hooks("posts")) })

	res, err := svc.Find(context.Background(), alice, "posts", nil, 1, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Docs) != 2 {
		t.Fatalf("expected 2 docs, got %d", len(res.Docs))
	}
	if rec.Count(hook.AfterRead) != 2 {
		t.Errorf("expected afterRead once per doc, got %d", rec.Count(hook.AfterRead))
	}
}

func TestFind_DefaultWhereScopes(t *testing.T) {
	col := postsCollection(t, collection.DefaultWhere(access.OwnerWhere("author")))
	st := newFakeStorage()
	seedPost(st, "p1", "mine", "alice")
	seedPost(st, "p2", "theirs", "bob")
	svc := newService(t, st, nil, []collection.Collection{col}, nil)

	res, err := svc.Find(context.Background(), alice, "posts", nil, 1, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Docs) != 1 || res.Docs[0]["title"] != "mine" {
		t.Errorf("expected only alice's doc, got %v", res.Docs)
	}
	if res.TotalDocs != 1 {
		t.Errorf("scope must apply before pagination totals, got %d", res.TotalDocs)
	}

	// Admins bypass owner scoping.
	res, err = svc.Find(context.Background(), root, "posts", nil, 1, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Docs) != 2 {
		t.Errorf("expected admin to see everything, got %d", len(res.Docs))
	}

	// Anonymous requests match nothing.
	res, err = svc.Find(context.Background(), anonymous, "posts", nil, 1, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Docs) != 0 {
		t.Errorf("expected empty listing for anonymous, got %d", len(res.Docs))
	}
}

func TestFind_ScopeOverridesClientFilter(t *testing.T) {
	col := postsCollection(t, collection.DefaultWhere(access.OwnerWhere("author")))
	st := newFakeStorage()
	seedPost(st, "p1", "mine", "alice")
	seedPost(st, "p2", "theirs", "bob")
	svc := newService(t, st, nil, []collection.Collection{col}, nil)

	// A client filter targeting another owner cannot widen the scope.
	res, err := svc.Find(context.Background(), alice, "posts", domain.Filter{"author": "bob"}, 1, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Docs) != 0 {
		t.Errorf("scope filter must win over the client filter, got %d docs", len(res.Docs))
	}
}

// --- FindByID tests ---

func TestFindByID_Success(t *testing.T) {
	st := newFakeStorage()
	seedPost(st, "p1", "x", "alice")
	svc := newService(t, st, nil, []collection.Collection{postsCollection(t)}, nil)

	doc, err := svc.FindByID(context.Background(), anonymous, "posts", "p1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc["title"] != "x" {
		t.Errorf("expected document, got %v", doc)
	}
}

func TestFindByID_Missing(t *testing.T) {
	rec := hook.NewRecorder()
	svc := newService(t, newFakeStorage(), nil, []collection.Collection{postsCollection(t)},
		func(b *registry.Builder) { rec.Attach(b.Hooks("posts")) })

	_, err := svc.FindByID(context.Background(), alice, "posts", "nope")
	if !errors.Is(err, domain.ErrDocumentNotFound) {
		t.Errorf("expected ErrDocumentNotFound, got %v", err)
	}
	// beforeRead fires even when the target does not exist.
	if rec.Count(hook.BeforeRead) != 1 {
		t.Errorf("expected beforeRead fired, got %d", rec.Count(hook.BeforeRead))
	}
}

func TestFindByID_ReadDenied(t *testing.T) {
	col := postsCollection(t, collection.Access(access.Policy{Read: access.Authenticated()}))
	st := newFakeStorage()
	seedPost(st, "p1", "x", "alice")
	svc := newService(t, st, nil, []collection.Collection{col}, nil)

	if _, err := svc.FindByID(context.Background(), anonymous, "posts", "p1"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}

func TestFindByID_EnrichmentNotPersisted(t *testing.T) {
	st := newFakeStorage()
	seedPost(st, "p1", "x", "alice")
	svc := newService(t, st, nil, []collection.Collection{postsCollection(t)},
		func(b *registry.Builder) {
			b.Hooks("posts").On(hook.AfterRead, func(_ context.Context, args *hook.Args) error {
				args.Doc["computed"] = 42
				return nil
			})
		})

	doc, err := svc.FindByID(context.Background(), alice, "posts", "p1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc["computed"] != 42 {
		t.Errorf("expected enrichment visible to the caller, got %v", doc["computed"])
	}
	if _, present := st.stored("posts", "p1")["computed"]; present {
		t.Error("afterRead enrichment must never be persisted")
	}
}
