package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
)

// LocalOwner is the owner of every request when authentication is disabled.
const LocalOwner = "local"

type ctxKey struct{}

// WithOwner returns a context carrying owner.
func WithOwner(ctx context.Context, owner string) context.Context {
	return context.WithValue(ctx, ctxKey{}, owner)
}

// OwnerFromContext returns the authenticated owner, if any.
func OwnerFromContext(ctx context.Context) (string, bool) {
	owner, ok := ctx.Value(ctxKey{}).(string)
	return owner, ok && owner != ""
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, error) {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", ErrMissingToken
	}
	return strings.TrimSpace(h[len(prefix):]), nil
}

// Middleware authenticates requests with v. A nil verifier disables
// authentication and attributes every request to LocalOwner. onError writes
// the rejection response.
func Middleware(v *Verifier, onError func(http.ResponseWriter, *http.Request, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if v == nil {
				next.ServeHTTP(w, r.WithContext(WithOwner(r.Context(), LocalOwner)))
				return
			}
			token, err := BearerToken(r)
			if err == nil {
				var owner string
				if owner, err = v.Verify(token); err == nil {
					next.ServeHTTP(w, r.WithContext(WithOwner(r.Context(), owner)))
					return
				}
			}
			if !errors.Is(err, ErrMissingToken) {
				slog.WarnContext(r.Context(), "Rejected token", "path", r.URL.Path, "error", err)
			}
			onError(w, r, err)
		})
	}
}
