package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/harsh7800/adofly/internal/config"
)

// AnonymousUser owns every run when authentication is disabled.
const AnonymousUser = "anonymous"

type userKey struct{}

// WithUser returns a copy of ctx carrying the authenticated user id.
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKey{}, userID)
}

// UserFromContext returns the authenticated user id stored in ctx.
func UserFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userKey{}).(string)
	return id, ok && id != ""
}

// Auth resolves bearer tokens to user ids.
type Auth struct {
	disabled bool
	tokens   map[string]string
}

// NewAuth builds an Auth from configuration.
func NewAuth(cfg config.AuthConfig) *Auth {
	tokens := make(map[string]string, len(cfg.Tokens))
	for tok, user := range cfg.Tokens {
		tokens[tok] = user
	}
	return &Auth{disabled: cfg.Disabled, tokens: tokens}
}

// Resolve returns the user for an Authorization header value.
func (a *Auth) Resolve(header string) (string, bool) {
	if a.disabled {
		return AnonymousUser, true
	}
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	user, ok := a.tokens[strings.TrimSpace(token)]
	return user, ok && user != ""
}

// Middleware rejects unauthenticated requests with 401 and stores the user
// id in the request context otherwise.
func (a *Auth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := a.Resolve(r.Header.Get("Authorization"))
		if !ok {
			w.Header().Set("WWW-Authenticate", `Bearer realm="adofly"`)
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing or invalid bearer token", nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}
