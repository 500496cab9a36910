package handlers

import (
	"context"
	"net/http"

	"github.com/valuelens/screener/internal/access"
)

type contextKey string

const entitlementKey contextKey = "entitlement"

// WithEntitlement stores the caller's entitlement on the context. The
// auth middleware is the only writer.
func WithEntitlement(ctx context.Context, ent access.Entitlement) context.Context {
	return context.WithValue(ctx, entitlementKey, ent)
}

// Entitlement returns the caller's entitlement. Requests that never
// passed the auth middleware resolve to anonymous free tier.
func Entitlement(r *http.Request) access.Entitlement {
	if ent, ok := r.Context().Value(entitlementKey).(access.Entitlement); ok {
		return ent
	}
	return access.Entitlement{Tier: "free"}
}
