package auth

import (
	"net/http"
	"strings"

	"chatapp-gateway/internal/jwt"
)

// TokenFromRequest returns the bearer token of r, looking at the
// Authorization header first and the JWT cookie second. With allowQuery the
// token query parameter is tried last, for clients that cannot set headers
// on a websocket handshake.
func TokenFromRequest(r *http.Request, allowQuery bool) string {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, found := strings.Cut(header, " ")
		if found && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
	}

	if cookie, err := r.Cookie(jwt.CookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	if allowQuery {
		return r.URL.Query().Get("token")
	}
	return ""
}
