package httpauth

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
)

// Middleware enforces bearer-token authentication for HTTP requests. When
// service is nil or has no configured tokens, requests pass through
// unauthenticated (local/dev mode).
func Middleware(service *Service, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if service == nil || !service.Enabled() {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Authorization")
			if strings.HasPrefix(strings.ToLower(header), "bearer ") {
				token := strings.TrimSpace(header[len("bearer "):])
				userID, err := service.ValidateBearer(token)
				if err == nil {
					next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), userID)))
					return
				}
				if logger != nil {
					logger.Warn("bearer validation failed", "error", err)
				}
			}

			w.Header().Set("WWW-Authenticate", `Bearer realm="housing-agent"`)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
		})
	}
}
