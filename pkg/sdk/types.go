package momentum

import (
	"github.com/momentum-hq/momentum/internal/domain"
	"github.com/momentum-hq/momentum/internal/domain/access"
	dombatch "github.com/momentum-hq/momentum/internal/domain/batch"
	"github.com/momentum-hq/momentum/internal/domain/collection"
	"github.com/momentum-hq/momentum/internal/domain/collection/field"
	domdoc "github.com/momentum-hq/momentum/internal/domain/document"
	"github.com/momentum-hq/momentum/internal/domain/hook"
	domver "github.com/momentum-hq/momentum/internal/domain/version"
	"github.com/momentum-hq/momentum/internal/registry"
	"github.com/momentum-hq/momentum/internal/usecase/lifecycle"
)

// Aliases re-export the engine's domain vocabulary so SDK consumers never
// reach into internal packages.
type (
	// Document is a schemaless JSON object keyed by field name.
	Document = domdoc.Document
	// Filter matches documents by field equality.
	Filter = domain.Filter
	// Collection is a declarative collection definition.
	Collection = collection.Collection
	// CollectionOption configures a collection under construction.
	CollectionOption = collection.Option
	// Index declares a collection index.
	Index = collection.Index
	// Field is a declarative field definition.
	Field = field.Field
	// FieldOption configures a field under construction.
	FieldOption = field.Option
	// FieldType enumerates supported field types.
	FieldType = field.Type
	// Block is one variant of a blocks field.
	Block = field.Block
	// AccessContext carries the requesting identity.
	AccessContext = access.Context
	// User is an authenticated principal.
	User = access.User
	// Predicate decides one operation for one identity.
	Predicate = access.Predicate
	// Policy holds collection-level predicates.
	Policy = access.Policy
	// FieldPolicy holds field-level predicates.
	FieldPolicy = access.FieldPolicy
	// HookArgs is the mutable payload passed through lifecycle hooks.
	HookArgs = hook.Args
	// HookFunc is one lifecycle hook.
	HookFunc = hook.Func
	// HookType names a lifecycle stage.
	HookType = hook.Type
	// Plugin contributes collections, fields and hooks at build time.
	Plugin = registry.Plugin
	// Builder accumulates registry contributions inside a Plugin.
	Builder = registry.Builder
	// FindResult is one page of documents with totals.
	FindResult = lifecycle.FindResult
	// Version is an immutable document snapshot.
	Version = domver.Version
	// Difference is one changed field between two snapshots.
	Difference = domver.Difference
	// BatchResult is the outcome of one batch item.
	BatchResult = dombatch.Result
)

// Field type constants.
const (
	FieldText         = field.Text
	FieldNumber       = field.Number
	FieldCheckbox     = field.Checkbox
	FieldDate         = field.Date
	FieldSelect       = field.Select
	FieldRelationship = field.Relationship
	FieldUpload       = field.Upload
	FieldGroup        = field.Group
	FieldArray        = field.Array
	FieldBlocks       = field.Blocks
)

// Hook type constants.
const (
	BeforeValidate = hook.BeforeValidate
	BeforeChange   = hook.BeforeChange
	AfterChange    = hook.AfterChange
	BeforeRead     = hook.BeforeRead
	AfterRead      = hook.AfterRead
	BeforeDelete   = hook.BeforeDelete
	AfterDelete    = hook.AfterDelete
)

// Re-exported constructors.
var (
	// NewCollection builds a validated collection definition.
	NewCollection = collection.New
	// NewField builds a validated field definition.
	NewField = field.New
	// NewBlock builds a block variant.
	NewBlock = field.NewBlock

	// Collection options.
	Fields       = collection.Fields
	Indexes      = collection.Indexes
	DBName       = collection.DBName
	Timestamps   = collection.Timestamps
	Managed      = collection.Managed
	Versioned    = collection.Versioned
	Access       = collection.Access
	DefaultWhere = collection.DefaultWhere

	// Field options.
	Required      = field.Required
	Default       = field.Default
	Hidden        = field.Hidden
	SelectOptions = field.Options
	RelationTo    = field.RelationTo
	WithFields    = field.WithFields
	WithBlocks    = field.WithBlocks
	FieldAccess   = field.WithAccess

	// Anyone allows every request.
	Anyone = access.Anyone
	// Authenticated allows any signed-in user.
	Authenticated = access.Authenticated
	// Admin allows the admin role only.
	Admin = access.Admin
	// Nobody denies every request.
	Nobody = access.Nobody
	// Role allows one named role.
	Role = access.Role
	// Owner allows the user referenced by the given field.
	Owner = access.Owner
	// OwnerWhere scopes listings to the requester's own documents.
	OwnerWhere = access.OwnerWhere
)

// Sentinel errors surfaced by SDK operations.
var (
	ErrNotFound         = domain.ErrNotFound
	ErrDocumentNotFound = domain.ErrDocumentNotFound
	ErrVersionNotFound  = domain.ErrVersionNotFound
	ErrValidation       = domain.ErrValidation
	ErrUnauthorized     = domain.ErrUnauthorized
	ErrForbidden        = domain.ErrForbidden
	ErrHookFailed       = domain.ErrHookFailed
	ErrNotVersioned     = domain.ErrNotVersioned
)
