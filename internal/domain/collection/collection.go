// Package collection defines the immutable collection aggregate. Definitions
// are created once at configuration load and shared read-only by every request
// handler; nothing mutates a Collection after the registry is built.
package collection

import (
	"fmt"
	"regexp"

	"github.com/momentum-hq/momentum/internal/domain"
	"github.com/momentum-hq/momentum/internal/domain/access"
	"github.com/momentum-hq/momentum/internal/domain/collection/field"
)

var slugRegex = regexp.MustCompile(`^[a-z0-9_-]+$`)

// Index declares a storage index over one or more fields.
type Index struct {
	Fields []string
	Unique bool
}

// Collection is the declarative description of one document type.
type Collection struct {
	slug         string
	dbName       string
	fields       []field.Field
	indexes      []Index
	timestamps   bool
	managed      bool
	versioned    bool
	access       access.Policy
	defaultWhere access.Where
}

// Option configures collection creation.
type Option func(*Collection)

// DBName overrides the storage table name. Defaults to the slug.
func DBName(name string) Option {
	return func(c *Collection) { c.dbName = name }
}

// Fields sets the declared fields.
func Fields(fields ...field.Field) Option {
	return func(c *Collection) { c.fields = fields }
}

// Indexes sets the declared storage indexes.
func Indexes(indexes ...Index) Option {
	return func(c *Collection) { c.indexes = indexes }
}

// Timestamps enables engine-managed createdAt/updatedAt fields.
func Timestamps() Option {
	return func(c *Collection) { c.timestamps = true }
}

// Managed hides CRUD from direct client writes. An internal subsystem owns the
// collection's mutations.
func Managed() Option {
	return func(c *Collection) { c.managed = true }
}

// Versioned enables publish snapshots for the collection.
func Versioned() Option {
	return func(c *Collection) { c.versioned = true }
}

// Access sets the per-operation collection predicates.
func Access(p access.Policy) Option {
	return func(c *Collection) { c.access = p }
}

// DefaultWhere sets the implicit filter merged into every read.
func DefaultWhere(w access.Where) Option {
	return func(c *Collection) { c.defaultWhere = w }
}

// New validates and creates a Collection.
// Slug: ^[a-z0-9_-]+$, 1-64 chars. Fields: unique names.
func New(slug string, opts ...Option) (Collection, error) {
	if slug == "" {
		return Collection{}, fmt.Errorf("collection slug is required")
	}
	if len(slug) > 64 {
		return Collection{}, fmt.Errorf("collection slug too long (max 64)")
	}
	if !slugRegex.MatchString(slug) {
		return Collection{}, fmt.Errorf("collection slug must be lowercase alphanumeric with underscores and hyphens")
	}

	c := Collection{slug: slug}
	for _, opt := range opts {
		opt(&c)
	}
	if c.dbName == "" {
		c.dbName = slug
	}

	seen := make(map[string]bool, len(c.fields))
	for _, f := range c.fields {
		if seen[f.Name()] {
			return Collection{}, fmt.Errorf("duplicate field name: %s", f.Name())
		}
		seen[f.Name()] = true
	}

	return c, nil
}

// MustNew creates a Collection or panics. Intended for static schema declarations.
func MustNew(slug string, opts ...Option) Collection {
	c, err := New(slug, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// Slug returns the unique collection identifier.
func (c Collection) Slug() string { return c.slug }

// DBName returns the storage table name.
func (c Collection) DBName() string { return c.dbName }

// Fields returns the declared field definitions.
func (c Collection) Fields() []field.Field { return c.fields }

// Indexes returns the declared storage indexes.
func (c Collection) Indexes() []Index { return c.indexes }

// HasTimestamps reports whether the engine manages createdAt/updatedAt.
func (c Collection) HasTimestamps() bool { return c.timestamps }

// IsManaged reports whether direct client writes are hidden.
func (c Collection) IsManaged() bool { return c.managed }

// IsVersioned reports whether publish snapshots are enabled.
func (c Collection) IsVersioned() bool { return c.versioned }

// AccessPolicy returns the per-operation collection predicates.
func (c Collection) AccessPolicy() access.Policy { return c.access }

// Scope evaluates the defaultWhere filter for the given request context.
// Returns nil when the collection declares no implicit scoping.
func (c Collection) Scope(ctx access.Context) domain.Filter {
	if c.defaultWhere == nil {
		return nil
	}
	return c.defaultWhere(ctx)
}

// WithExtraFields returns a new Collection with the extra fields appended.
// Used by the registry to merge plugin-contributed fields before the schema
// freezes; the receiver is left untouched.
func (c Collection) WithExtraFields(extra ...field.Field) (Collection, error) {
	merged := c
	merged.fields = make([]field.Field, 0, len(c.fields)+len(extra))
	merged.fields = append(merged.fields, c.fields...)
	merged.fields = append(merged.fields, extra...)

	seen := make(map[string]bool, len(merged.fields))
	for _, f := range merged.fields {
		if seen[f.Name()] {
			return Collection{}, fmt.Errorf("duplicate field name: %s", f.Name())
		}
		seen[f.Name()] = true
	}
	return merged, nil
}

// FieldByName looks up a declared field by name.
func (c Collection) FieldByName(name string) (field.Field, bool) {
	for _, f := range c.fields {
		if f.Name() == name {
			return f, true
		}
	}
	return field.Field{}, false
}
