package middleware

import (
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"smmpanel/internal/domain"
)

const (
	HeaderUserID    = "X-User-ID"
	HeaderUserEmail = "X-User-Email"
)

// RequireIdentity attaches the caller identity set by the auth gateway and rejects
// requests that carry none. The headers are trusted as given: the service must only
// be reachable through that gateway, which strips or overwrites X-User-ID and
// X-User-Email on every inbound request.
func RequireIdentity(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(HeaderUserID))
		if userID == "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"code":    "unauthenticated",
				"message": "Sign in to continue",
			})
			return
		}

		identity := domain.Identity{
			UserID: userID,
			Email:  strings.TrimSpace(r.Header.Get(HeaderUserEmail)),
		}
		next(w, r.WithContext(domain.WithIdentity(r.Context(), identity)))
	}
}
