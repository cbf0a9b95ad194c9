package chi

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// APIKeyHeader is the alternative to a Bearer token.
const APIKeyHeader = "X-API-Key"

// exemptPaths are routes that bypass authentication (health, metrics).
var exemptPaths = map[string]struct{}{
	"/api/health": {},
	"/metrics":    {},
}

// APIKeyAuthMiddleware returns a middleware that accepts a key either as a
// Bearer token or in the X-API-Key header.
// If apiKeys is empty, authentication is disabled (pass-through).
func APIKeyAuthMiddleware(apiKeys []string) func(http.Handler) http.Handler {
	var validKeys [][]byte
	for _, k := range apiKeys {
		if k != "" {
			validKeys = append(validKeys, []byte(k))
		}
	}

	return func(next http.Handler) http.Handler {
		// Auth disabled, pass everything through
		if len(validKeys) == 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := exemptPaths[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			token, ok := credential(r)
			if !ok {
				writeError(w, http.StatusUnauthorized, CodeUnauthorized, "missing api key")
				return
			}
			if token == "" {
				writeError(w, http.StatusUnauthorized, CodeUnauthorized, "authorization header must use Bearer scheme")
				return
			}
			if !knownKey(validKeys, token) {
				writeError(w, http.StatusUnauthorized, CodeUnauthorized, "invalid api key")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// credential extracts the presented key. ok is false when none was sent;
// an empty token with ok means a malformed Authorization header.
func credential(r *http.Request) (token string, ok bool) {
	if k := r.Header.Get(APIKeyHeader); k != "" {
		return k, true
	}
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return "", false
	}
	const bearerPrefix = "Bearer "
	if !strings.HasPrefix(auth, bearerPrefix) {
		return "", true
	}
	return auth[len(bearerPrefix):], true
}

func knownKey(keys [][]byte, token string) bool {
	t := []byte(token)
	found := false
	for _, k := range keys {
		if subtle.ConstantTimeCompare(k, t) == 1 {
			found = true
		}
	}
	return found
}
