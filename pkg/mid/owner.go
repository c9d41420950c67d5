package mid

import (
	"context"
	"net/http"
	"strings"
	"unicode"
)

// OwnerHeader carries the authenticated user id set by the gateway.
const OwnerHeader = "X-User-ID"

const maxOwnerLen = 128

type ownerKey struct{}

// WithOwner returns ctx carrying owner.
func WithOwner(ctx context.Context, owner string) context.Context {
	return context.WithValue(ctx, ownerKey{}, owner)
}

// OwnerFrom returns the owner stored by Owner or WithOwner.
func OwnerFrom(ctx context.Context) (string, bool) {
	owner, ok := ctx.Value(ownerKey{}).(string)
	return owner, ok && owner != ""
}

// Owner requires a well-formed OwnerHeader and stores it in the request
// context. Requests for paths in public pass through without one.
func Owner(public ...string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			owner := strings.TrimSpace(r.Header.Get(OwnerHeader))
			if owner == "" {
				for _, p := range public {
					if r.URL.Path == p {
						next.ServeHTTP(w, r)
						return
					}
				}
				writeError(w, http.StatusUnauthorized, "missing "+OwnerHeader+" header")
				return
			}
			if !validOwner(owner) {
				writeError(w, http.StatusBadRequest, "malformed "+OwnerHeader+" header")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithOwner(r.Context(), owner)))
		})
	}
}

func validOwner(s string) bool {
	if len(s) > maxOwnerLen {
		return false
	}
	for _, r := range s {
		if !(unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune("-_.@:|", r)) {
			return false
		}
	}
	return true
}
