package api

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/terra-clan/training-engine/internal/models"
)

// readOnlyPermissions are granted to read-only keys
var readOnlyPermissions = []string{PermTasksRead, PermSessionRead, PermProgressRead, PermEventsRead}

// anonymous is attached to every request when no keys are configured
var anonymous = &models.ApiClient{Name: "anonymous", Permissions: []string{"*"}}

// AuthMiddleware handles API key authentication against statically
// configured keys
type AuthMiddleware struct {
	clients []*models.ApiClient
}

// NewAuthMiddleware creates auth middleware. With no keys at all every
// request is let through with full access.
func NewAuthMiddleware(fullKeys, readOnlyKeys []string) *AuthMiddleware {
	m := &AuthMiddleware{}
	for i, k := range fullKeys {
		m.clients = append(m.clients, &models.ApiClient{
			Name:        fmt.Sprintf("client-%d", i+1),
			ApiKey:      k,
			Permissions: []string{"*"},
		})
	}
	for i, k := range readOnlyKeys {
		m.clients = append(m.clients, &models.ApiClient{
			Name:        fmt.Sprintf("viewer-%d", i+1),
			ApiKey:      k,
			Permissions: readOnlyPermissions,
		})
	}
	return m
}

// Enabled reports whether any key is configured
func (m *AuthMiddleware) Enabled() bool {
	return len(m.clients) > 0
}

// Authenticate verifies API key from Authorization header
// Supports formats: "Bearer xxx" or "xxx" in Authorization header
// Also supports X-API-Key header and, for websocket clients, ?api_key=
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.Enabled() {
			next.ServeHTTP(w, r.WithContext(ContextWithClient(r.Context(), anonymous)))
			return
		}

		apiKey := extractAPIKey(r)
		if apiKey == "" {
			writeAuthError(w, http.StatusUnauthorized, "missing api key", "provide Authorization header with Bearer token or X-API-Key header")
			return
		}

		client := m.lookup(apiKey)
		if client == nil {
			slog.Warn("invalid api key attempt", "key_prefix", maskKey(apiKey), "remote_addr", r.RemoteAddr)
			writeAuthError(w, http.StatusUnauthorized, "invalid api key", "the provided api key is not valid")
			return
		}

		slog.Debug("authenticated request", "client", client.Name, "key_prefix", client.MaskedApiKey())

		ctx := ContextWithClient(r.Context(), client)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *AuthMiddleware) lookup(key string) *models.ApiClient {
	for _, c := range m.clients {
		if subtle.ConstantTimeCompare([]byte(c.ApiKey), []byte(key)) == 1 {
			return c
		}
	}
	return nil
}

// RequirePermission returns middleware that checks for specific permission
func (m *AuthMiddleware) RequirePermission(permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			client := ClientFromContext(r.Context())
			if client == nil {
				writeAuthError(w, http.StatusUnauthorized, "not authenticated", "authentication required")
				return
			}

			if !client.HasPermission(permission) {
				slog.Warn("permission denied",
					"client", client.Name,
					"required", permission,
					"has", client.Permissions,
				)
				writeAuthError(w, http.StatusForbidden, "permission denied",
					"client does not have required permission: "+permission)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// extractAPIKey extracts API key from request headers
func extractAPIKey(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		if strings.HasPrefix(authHeader, "Bearer ") {
			return strings.TrimPrefix(authHeader, "Bearer ")
		}
		return authHeader
	}

	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}

	// Browsers cannot set headers on a websocket handshake
	return r.URL.Query().Get("api_key")
}

// maskKey returns first 8 chars of key for safe logging
func maskKey(key string) string {
	if len(key) < 8 {
		return "***"
	}
	return key[:8] + "..."
}

// AuthError represents an authentication error response
type AuthError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeAuthError(w http.ResponseWriter, status int, error, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(AuthError{
		Error:   error,
		Message: message,
	})
}
