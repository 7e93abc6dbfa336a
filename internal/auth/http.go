// ABOUTME: HTTP middleware gating MCP routes behind a bearer JWT or an x-api-key header
// ABOUTME: Rejections are JSON-RPC failures with CORS headers so browser clients can read them

package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/2389/dflow-mcp/internal/mcp"
)

// extractBearerToken extracts a bearer token from the Authorization header.
// Returns the token and an error message (empty if successful).
func extractBearerToken(authHeader string) (string, string) {
	if authHeader == "" {
		return "", "missing authorization header"
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", "invalid authorization header format"
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == "" {
		return "", "empty token"
	}
	return token, ""
}

// GateConfig configures the MCP auth gate.
type GateConfig struct {
	Tokens  TokenVerifier // bearer JWTs; nil disables bearer auth
	APIKeys TokenVerifier // x-api-key values; nil disables key auth
	Exempt  []string      // exact paths served without credentials
	Logger  *slog.Logger
}

// Gate creates an HTTP middleware that requires a valid credential.
// OPTIONS requests and exempt paths pass through untouched.
func Gate(cfg GateConfig) func(http.Handler) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	exempt := make(map[string]bool, len(cfg.Exempt))
	for _, p := range cfg.Exempt {
		exempt[p] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions || exempt[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			principal, reason := authenticate(cfg, r)
			if principal == nil {
				logger.Debug("rejected MCP request", "path", r.URL.Path, "reason", reason)
				mcp.WriteError(w, logger, http.StatusUnauthorized, false,
					mcp.NewError(mcp.CodeInvalidRequest, "authentication required", nil))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

// authenticate tries the Authorization header first, then x-api-key.
func authenticate(cfg GateConfig, r *http.Request) (*Principal, string) {
	if header := r.Header.Get("Authorization"); header != "" {
		if cfg.Tokens == nil {
			return nil, "bearer tokens not accepted"
		}
		token, errMsg := extractBearerToken(header)
		if errMsg != "" {
			return nil, errMsg
		}
		id, err := cfg.Tokens.Verify(token)
		if err != nil {
			return nil, err.Error()
		}
		return &Principal{ID: id, Method: MethodJWT}, ""
	}

	if key := r.Header.Get("x-api-key"); key != "" {
		if cfg.APIKeys == nil {
			return nil, "api keys not accepted"
		}
		id, err := cfg.APIKeys.Verify(key)
		if err != nil {
			return nil, "invalid api key"
		}
		return &Principal{ID: id, Method: MethodAPIKey}, ""
	}

	return nil, "missing credentials"
}
