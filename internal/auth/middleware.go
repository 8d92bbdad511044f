package auth

import (
	"context"
	"net/http"
	"strings"
)

const (
	apiKeyHeader     = "X-API-Key"
	apiKeyQueryParam = "api-key" // EventSource cannot set headers
)

type clientKey struct{}

// Client returns the authenticated client name stored by Middleware, or ""
// in open mode.
func Client(ctx context.Context) string {
	name, _ := ctx.Value(clientKey{}).(string)
	return name
}

// Middleware enforces API keys. In open mode all requests pass through.
// Keys are taken from the X-API-Key header, a Bearer token or the api-key
// query parameter. Read-scoped keys may only issue GET and HEAD.
func (s *Service) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.IsOpenMode() {
			next.ServeHTTP(w, r)
			return
		}

		name, scope, ok := s.Lookup(requestKey(r))
		if !ok {
			w.Header().Set("WWW-Authenticate", `Bearer realm="lyngdorfd"`)
			writeError(w, http.StatusUnauthorized, "missing or invalid api key")
			return
		}
		if scope == ScopeRead && r.Method != http.MethodGet && r.Method != http.MethodHead {
			writeError(w, http.StatusForbidden, "api key is read-only")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), clientKey{}, name)))
	})
}

func requestKey(r *http.Request) string {
	if k := r.Header.Get(apiKeyHeader); k != "" {
		return k
	}
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return r.URL.Query().Get(apiKeyQueryParam)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(`{"error":"` + msg + `"}`))
}
