// Package actor identifies the lab staff member behind a request.
//
// The gateway in front of the portal authenticates users and forwards their
// identity as X-User-* headers; the portal never issues or verifies tokens.
package actor

import (
	"context"
	"fmt"
	"net/http"
)

const systemID = "00000000-0000-0000-0000-000000000000"

// Forwarded identity headers
const (
	HeaderUserID    = "X-User-ID"
	HeaderUserName  = "X-User-Name"
	HeaderUserEmail = "X-User-Email"
	HeaderUserRole  = "X-User-Role"
)

// Actor is the staff member performing an action
type Actor struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role,omitempty"`
}

// String returns a string representation of the actor for logging
func (a *Actor) String() string {
	if a == nil {
		return "system"
	}
	if a.Email == "" {
		return a.Name
	}
	return fmt.Sprintf("%s (%s)", a.Name, a.Email)
}

// IsSystem returns true if the actor represents the portal itself.
func (a *Actor) IsSystem() bool {
	if a == nil {
		return true
	}
	return a.ID == systemID
}

type contextKey string

const actorContextKey contextKey = "actor"

// FromContext retrieves the Actor from the context.
// Returns nil if no actor is present.
func FromContext(ctx context.Context) *Actor {
	if ctx == nil {
		return nil
	}
	a, ok := ctx.Value(actorContextKey).(*Actor)
	if !ok {
		return nil
	}
	return a
}

// WithActor returns a new context with the Actor attached.
func WithActor(ctx context.Context, a *Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, actorContextKey, a)
}

// OrSystem returns the actor in ctx, or the system actor for background work.
func OrSystem(ctx context.Context) *Actor {
	if a := FromContext(ctx); a != nil {
		return a
	}
	return SystemActor()
}

// SystemActor returns an Actor representing the portal itself.
// Used for OCR jobs that outlive the request that started them.
func SystemActor() *Actor {
	return &Actor{
		ID:    systemID,
		Name:  "System",
		Email: "system@labportal.local",
	}
}

// FromHeaders builds an Actor from forwarded identity headers.
// Returns nil when no user ID was forwarded.
func FromHeaders(h http.Header) *Actor {
	id := h.Get(HeaderUserID)
	if id == "" {
		return nil
	}
	return &Actor{
		ID:    id,
		Name:  h.Get(HeaderUserName),
		Email: h.Get(HeaderUserEmail),
		Role:  h.Get(HeaderUserRole),
	}
}

// Apply copies the actor onto outbound request headers so the lab backend
// records the same uploader, approver or rejector.
func (a *Actor) Apply(h http.Header) {
	if a == nil {
		return
	}
	h.Set(HeaderUserID, a.ID)
	if a.Name != "" {
		h.Set(HeaderUserName, a.Name)
	}
	if a.Email != "" {
		h.Set(HeaderUserEmail, a.Email)
	}
	if a.Role != "" {
		h.Set(HeaderUserRole, a.Role)
	}
}
