// Package actor identifies who performed an action, for audit fields on
// published events and for log context.
package actor

import (
	"context"
	"fmt"
)

const systemID = "system"

// Actor represents the entity performing an action in the system.
type Actor struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// String returns a string representation of the actor for logging
func (a *Actor) String() string {
	if a == nil {
		return systemID
	}
	if a.Email == "" {
		return a.Name
	}
	return fmt.Sprintf("%s (%s)", a.Name, a.Email)
}

// IsSystem returns true if the actor represents the system.
func (a *Actor) IsSystem() bool {
	return a == nil || a.ID == systemID
}

// System returns the actor used by consumers and other background work.
func System() *Actor {
	return &Actor{ID: systemID, Name: "System"}
}

type contextKey string

const actorContextKey contextKey = "actor"

// FromContext retrieves the Actor from the context, falling back to System.
func FromContext(ctx context.Context) *Actor {
	if ctx == nil {
		return System()
	}
	if a, ok := ctx.Value(actorContextKey).(*Actor); ok && a != nil {
		return a
	}
	return System()
}

// WithActor returns a new context with the Actor attached.
func WithActor(ctx context.Context, a *Actor) context.Context {
	return context.WithValue(ctx, actorContextKey, a)
}
