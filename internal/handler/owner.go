package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// OwnerHeader carries the authenticated user id. It is set by the
// authenticating proxy in front of the API and never by clients directly.
const OwnerHeader = "X-User-ID"

type ownerKey struct{}

// WithOwner returns a context carrying the owner id.
func WithOwner(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, ownerKey{}, id)
}

// OwnerFrom returns the owner id stored by RequireOwner.
func OwnerFrom(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(ownerKey{}).(uuid.UUID)
	return id, ok
}

// RequireOwner rejects requests without a valid owner header with 401.
func RequireOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(r.Header.Get(OwnerHeader))
		if err != nil || id == uuid.Nil {
			writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized", "missing or invalid "+OwnerHeader))
			return
		}
		next.ServeHTTP(w, r.WithContext(WithOwner(r.Context(), id)))
	})
}

// owner reads the id RequireOwner stored; routes without the middleware
// never call it.
func owner(r *http.Request) uuid.UUID {
	id, _ := OwnerFrom(r.Context())
	return id
}
