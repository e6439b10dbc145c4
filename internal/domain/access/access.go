// Package access defines the request context and the predicate model used for
// collection- and field-level access control. Predicates are pure functions of
// the request context (plus, optionally, the candidate document), so they are
// composable and trivially testable.
package access

import (
	"github.com/momentum-hq/momentum/internal/domain"
	"github.com/momentum-hq/momentum/internal/domain/document"
)

// RoleAdmin is the role every built-in admin predicate checks for.
const RoleAdmin = "admin"

// User identifies the authenticated principal of a request.
type User struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}

// Context is the request context access predicates consume. A nil User means
// the request is unauthenticated, which predicates must treat as the most
// restrictive case.
type Context struct {
	User *User
}

// Authenticated reports whether the request carries a user.
func (c Context) Authenticated() bool { return c.User != nil }

// IsAdmin reports whether the request user holds the admin role.
func (c Context) IsAdmin() bool { return c.User != nil && c.User.Role == RoleAdmin }

// Predicate decides whether an operation is allowed. doc is the candidate
// document for ownership checks and is nil for operations without one
// (create, list).
type Predicate func(ctx Context, doc document.Document) bool

// Where produces an implicit filter merged (AND) into every read of a
// collection. Returning nil applies no extra scoping.
type Where func(ctx Context) domain.Filter

// Anyone allows every request, authenticated or not.
func Anyone() Predicate {
	return func(Context, document.Document) bool { return true }
}

// Authenticated allows any request with a user.
func Authenticated() Predicate {
	return func(ctx Context, _ document.Document) bool { return ctx.Authenticated() }
}

// Admin allows only users with the admin role.
func Admin() Predicate {
	return func(ctx Context, _ document.Document) bool { return ctx.IsAdmin() }
}

// Role allows users holding the given role.
func Role(role string) Predicate {
	return func(ctx Context, _ document.Document) bool {
		return ctx.User != nil && ctx.User.Role == role
	}
}

// Owner allows admins, and non-admin users whose id equals the document's
// ownerField value. With no candidate document it admits any authenticated
// user; row scoping is then enforced by OwnerWhere.
func Owner(ownerField string) Predicate {
	return func(ctx Context, doc document.Document) bool {
		if ctx.User == nil {
			return false
		}
		if ctx.IsAdmin() {
			return true
		}
		if doc == nil {
			return true
		}
		owner, _ := doc[ownerField].(string)
		return owner == ctx.User.ID
	}
}

// Nobody denies every request. Managed collections use it for direct writes.
func Nobody() Predicate {
	return func(Context, document.Document) bool { return false }
}

// Or combines predicates, allowing when any allows.
func Or(preds ...Predicate) Predicate {
	return func(ctx Context, doc document.Document) bool {
		for _, p := range preds {
			if p(ctx, doc) {
				return true
			}
		}
		return false
	}
}

// OwnerWhere scopes reads to documents whose ownerField equals the request
// user's id. Admins see everything; unauthenticated requests match nothing.
func OwnerWhere(ownerField string) Where {
	return func(ctx Context) domain.Filter {
		if ctx.IsAdmin() {
			return nil
		}
		if ctx.User == nil {
			// No user id can ever equal the empty string, so this matches nothing.
			return domain.Filter{ownerField: ""}
		}
		return domain.Filter{ownerField: ctx.User.ID}
	}
}

// Policy holds the per-operation collection predicates. A nil predicate
// defaults to Authenticated for mutations and Anyone for reads.
type Policy struct {
	Create Predicate
	Read   Predicate
	Update Predicate
	Delete Predicate
}

// FieldPolicy holds the per-operation field predicates. A nil predicate allows.
type FieldPolicy struct {
	Read   Predicate
	Create Predicate
	Update Predicate
}
