package auth

import (
	"net/http"
	"strings"

	"github.com/zhouzirui/mentor-relay/backend/internal/model/identity"
	"github.com/zhouzirui/mentor-relay/backend/pkg/utils"
)

// RequireSession rejects requests without a valid session token and stores
// the resolved session on the request context. The token is read from the
// Authorization header, or from the token query parameter for websocket
// clients that cannot set headers.
func RequireSession(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := TokenFromRequest(r)
			if token == "" {
				utils.RespondError(w, http.StatusUnauthorized, "missing session token")
				return
			}

			session, err := auth.Authenticate(token)
			if err != nil {
				respondAuthError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(identity.WithSession(r.Context(), session)))
		})
	}
}

// TokenFromRequest extracts the bearer token, if any.
func TokenFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}
