package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/mind-engage/classquiz/internal/profile"
	"github.com/mind-engage/classquiz/internal/rbac"
)

// ProfileLookup loads the profile of a logged-in subject.
type ProfileLookup interface {
	Get(ctx context.Context, uid string) (profile.Profile, error)
}

// AttachProfile replaces the token's role claim with the stored profile's
// role and makes the profile available to handlers. A token whose profile
// was deleted is rejected unless allowClaimFallback is set (offline mode).
func AttachProfile(profiles ProfileLookup, allowClaimFallback bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			sub := SubjectFromContext(ctx)
			p, err := profiles.Get(ctx, sub)
			switch {
			case err == nil:
				ctx = rbac.WithRole(ctx, string(p.Role))
				ctx = withProfile(ctx, p)
				next.ServeHTTP(w, r.WithContext(ctx))
			case errors.Is(err, profile.ErrNotFound) && allowClaimFallback && rbac.RoleFromContext(ctx) != "":
				next.ServeHTTP(w, r) // keep whatever JWTMiddleware set
			case errors.Is(err, profile.ErrNotFound):
				http.Error(w, "forbidden", http.StatusForbidden)
			default:
				http.Error(w, "profile lookup failed", http.StatusInternalServerError)
			}
		})
	}
}
