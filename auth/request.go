package auth

import (
	"chat-gateway/errors"
	"net/http"
	"strings"
)

const (
	UserIDQuery  = "userId"
	UserIDHeader = "X-User-Id"
	TokenQuery   = "token"
)

// UserFromRequest extracts the identity of a websocket handshake.
// With a secret configured only a valid JWT is accepted, from the token query
// parameter or a Bearer Authorization header. Without one the caller is trusted
// to send its id in the userId query parameter or the X-User-Id header.
func UserFromRequest(r *http.Request, secret string) (string, error) {
	if secret != "" {
		token := r.URL.Query().Get(TokenQuery)
		if token == "" {
			token = bearer(r.Header.Get("Authorization"))
		}
		if token == "" {
			return "", errors.ErrUnauthorized
		}
		return ValidateToken(secret, token)
	}

	userID := strings.TrimSpace(r.URL.Query().Get(UserIDQuery))
	if userID == "" {
		userID = strings.TrimSpace(r.Header.Get(UserIDHeader))
	}
	if userID == "" {
		return "", errors.ErrUnauthorized
	}
	return userID, nil
}

func bearer(header string) string {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
