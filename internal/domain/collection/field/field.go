// Package field describes the declarative field schema of a collection.
// Fields compose into nested shapes: group and array carry child fields,
// blocks carries a set of tagged block variants discriminated by blockType.
package field

import (
	"fmt"

	"github.com/momentum-hq/momentum/internal/domain/access"
)

// Type is the declared type of a field.
type Type string

// Field type constants.
const (
	Text         Type = "text"
	Number       Type = "number"
	Checkbox     Type = "checkbox"
	Date         Type = "date"
	Select       Type = "select"
	Relationship Type = "relationship"
	Upload       Type = "upload"
	Group        Type = "group"
	Array        Type = "array"
	Blocks       Type = "blocks"
)

// IsValid checks if the field type is supported.
func (t Type) IsValid() bool {
	switch t {
	case Text, Number, Checkbox, Date, Select, Relationship, Upload, Group, Array, Blocks:
		return true
	}
	return false
}

// BlockTypeKey is the discriminator key of a block value.
const BlockTypeKey = "blockType"

var reservedNames = map[string]bool{
	"id": true, "createdAt": true, "updatedAt": true,
}

// Block is one declared variant of a blocks field, discriminated by its slug.
type Block struct {
	slug   string
	fields []Field
}

// NewBlock validates and creates a block variant.
func NewBlock(slug string, fields []Field) (Block, error) {
	if slug == "" {
		return Block{}, fmt.Errorf("block slug is required")
	}
	return Block{slug: slug, fields: fields}, nil
}

// Slug returns the blockType discriminator value.
func (b Block) Slug() string { return b.slug }

// Fields returns the fields of this block shape.
func (b Block) Fields() []Field { return b.fields }

// Field is an immutable value object describing one declared collection field.
type Field struct {
	name         string
	fieldType    Type
	required     bool
	defaultValue any
	hasDefault   bool
	hidden       bool
	access       access.FieldPolicy
	options      []string // select
	relationTo   string   // relationship
	fields       []Field  // group, array
	blocks       []Block  // blocks
}

// Option configures field creation.
type Option func(*Field)

// Required marks the field as mandatory on create.
func Required() Option {
	return func(f *Field) { f.required = true }
}

// Default sets the value used when the field is absent on create.
func Default(v any) Option {
	return func(f *Field) { f.defaultValue = v; f.hasDefault = true }
}

// Hidden hides the field from the admin UI. It has no effect on the engine.
func Hidden() Option {
	return func(f *Field) { f.hidden = true }
}

// WithAccess sets the per-operation field predicates.
func WithAccess(p access.FieldPolicy) Option {
	return func(f *Field) { f.access = p }
}

// Options sets the allowed values of a select field.
func Options(values ...string) Option {
	return func(f *Field) { f.options = values }
}

// RelationTo sets the target collection slug of a relationship field.
func RelationTo(slug string) Option {
	return func(f *Field) { f.relationTo = slug }
}

// WithFields sets the child fields of a group or array field.
func WithFields(fields ...Field) Option {
	return func(f *Field) { f.fields = fields }
}

// WithBlocks sets the declared block variants of a blocks field.
func WithBlocks(blocks ...Block) Option {
	return func(f *Field) { f.blocks = blocks }
}

// New validates and creates a Field.
func New(name string, ft Type, opts ...Option) (Field, error) {
	if name == "" {
		return Field{}, fmt.Errorf("field name is required")
	}
	if reservedNames[name] {
		return Field{}, fmt.Errorf("field name %q is reserved", name)
	}
	if !ft.IsValid() {
		return Field{}, fmt.Errorf("invalid field type %q for %q", ft, name)
	}

	f := Field{name: name, fieldType: ft}
	for _, opt := range opts {
		opt(&f)
	}

	switch ft {
	case Select:
		if len(f.options) == 0 {
			return Field{}, fmt.Errorf("select field %q requires options", name)
		}
	case Relationship:
		if f.relationTo == "" {
			return Field{}, fmt.Errorf("relationship field %q requires a target collection", name)
		}
	case Group, Array:
		if len(f.fields) == 0 {
			return Field{}, fmt.Errorf("%s field %q requires child fields", ft, name)
		}
	case Blocks:
		if len(f.blocks) == 0 {
			return Field{}, fmt.Errorf("blocks field %q requires block variants", name)
		}
		seen := make(map[string]bool, len(f.blocks))
		for _, b := range f.blocks {
			if seen[b.slug] {
				return Field{}, fmt.Errorf("blocks field %q: duplicate block %q", name, b.slug)
			}
			seen[b.slug] = true
		}
	}

	return f, nil
}

// MustNew creates a Field or panics. Intended for static schema declarations.
func MustNew(name string, ft Type, opts ...Option) Field {
	f, err := New(name, ft, opts...)
	if err != nil {
		panic(err)
	}
	return f
}

// Name returns the field name.
func (f Field) Name() string { return f.name }

// FieldType returns the declared type.
func (f Field) FieldType() Type { return f.fieldType }

// IsRequired reports whether the field is mandatory on create.
func (f Field) IsRequired() bool { return f.required }

// DefaultValue returns the declared default and whether one exists.
func (f Field) DefaultValue() (any, bool) { return f.defaultValue, f.hasDefault }

// IsHidden reports whether the admin UI hides the field.
func (f Field) IsHidden() bool { return f.hidden }

// Access returns the per-operation field predicates.
func (f Field) Access() access.FieldPolicy { return f.access }

// SelectOptions returns the allowed values of a select field.
func (f Field) SelectOptions() []string { return f.options }

// RelationTarget returns the target collection slug of a relationship field.
func (f Field) RelationTarget() string { return f.relationTo }

// Fields returns the child fields of a group or array field.
func (f Field) Fields() []Field { return f.fields }

// BlockBySlug looks up a declared block variant by its discriminator.
func (f Field) BlockBySlug(slug string) (Block, bool) {
	for _, b := range f.blocks {
		if b.slug == slug {
			return b, true
		}
	}
	return Block{}, false
}

// BlockSlugs returns the declared block discriminators in declaration order.
func (f Field) BlockSlugs() []string {
	slugs := make([]string, len(f.blocks))
	for i, b := range f.blocks {
		slugs[i] = b.slug
	}
	return slugs
}
