// Package registry assembles the immutable collection schema served by the
// engine. Contributions (base collections, plugin-added collections and
// fields, hook registrations) are collected in order at configuration time;
// Build produces one frozen registry before any request is handled. Nothing
// mutates the schema after startup.
package registry

import (
	"fmt"

	"github.com/momentum-hq/momentum/internal/domain/collection"
	"github.com/momentum-hq/momentum/internal/domain/collection/field"
	"github.com/momentum-hq/momentum/internal/domain/hook"
)

// Plugin contributes collections, fields or hooks to a builder.
type Plugin func(*Builder)

// Builder collects ordered schema contributions.
type Builder struct {
	order       []string
	collections map[string]collection.Collection
	extraFields map[string][]field.Field
	hooks       map[string]*hook.Registry
	errs        []error
}

// NewBuilder creates an empty schema builder.
func NewBuilder() *Builder {
	return &Builder{
		collections: make(map[string]collection.Collection),
		extraFields: make(map[string][]field.Field),
		hooks:       make(map[string]*hook.Registry),
	}
}

// AddCollection contributes a collection definition. Duplicate slugs fail at Build.
func (b *Builder) AddCollection(c collection.Collection) *Builder {
	if _, exists := b.collections[c.Slug()]; exists {
		b.errs = append(b.errs, fmt.Errorf("duplicate collection %q", c.Slug()))
		return b
	}
	b.order = append(b.order, c.Slug())
	b.collections[c.Slug()] = c
	return b
}

// AddFields contributes extra fields to a collection declared elsewhere.
// Contribution order is preserved at merge time.
func (b *Builder) AddFields(slug string, fields ...field.Field) *Builder {
	b.extraFields[slug] = append(b.extraFields[slug], fields...)
	return b
}

// Hooks returns the hook registry for a collection, creating it on first use.
// Registration order across contributions is invocation order.
func (b *Builder) Hooks(slug string) *hook.Registry {
	r, ok := b.hooks[slug]
	if !ok {
		r = hook.NewRegistry()
		b.hooks[slug] = r
	}
	return r
}

// Use applies plugins in order.
func (b *Builder) Use(plugins ...Plugin) *Builder {
	for _, p := range plugins {
		p(b)
	}
	return b
}

// Build merges all contributions into an immutable Registry.
func (b *Builder) Build() (*Registry, error) {
	if len(b.errs) > 0 {
		return nil, b.errs[0]
	}

	entries := make(map[string]Entry, len(b.collections))
	order := make([]string, 0, len(b.order))
	for _, slug := range b.order {
		col := b.collections[slug]
		if extra := b.extraFields[slug]; len(extra) > 0 {
			merged, err := col.WithExtraFields(extra...)
			if err != nil {
				return nil, fmt.Errorf("collection %q: %w", slug, err)
			}
			col = merged
		}
		hooks := b.hooks[slug]
		if hooks == nil {
			hooks = hook.NewRegistry()
		}
		entries[slug] = Entry{Collection: col, Hooks: hooks}
		order = append(order, slug)
	}

	for slug := range b.extraFields {
		if _, ok := b.collections[slug]; !ok {
			return nil, fmt.Errorf("fields contributed to unknown collection %q", slug)
		}
	}
	for slug := range b.hooks {
		if _, ok := b.collections[slug]; !ok {
			return nil, fmt.Errorf("hooks contributed to unknown collection %q", slug)
		}
	}

	return &Registry{order: order, entries: entries}, nil
}

// Entry pairs a collection definition with its hook registry.
type Entry struct {
	Collection collection.Collection
	Hooks      *hook.Registry
}

// Registry is the frozen collection schema shared by all request handlers.
type Registry struct {
	order   []string
	entries map[string]Entry
}

// Get looks up a collection entry by slug.
func (r *Registry) Get(slug string) (Entry, bool) {
	e, ok := r.entries[slug]
	return e, ok
}

// Slugs returns the collection slugs in contribution order.
func (r *Registry) Slugs() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
