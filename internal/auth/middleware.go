package auth

import (
	"log/slog"
	"net/http"
	"strings"
)

const bearerPrefix = "Bearer "

// Middleware attaches a resolved principal to the request context when a
// valid bearer token is presented. It deliberately never rejects a request:
// a missing, malformed, expired or otherwise unverifiable token leaves the
// context anonymous and rejection happens later, when a protected operation
// finds no usable principal.
type Middleware struct {
	Codec    *TokenCodec
	Resolver Repository
	Logger   *slog.Logger
}

// Authenticate is the per-request identity attachment step.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractBearer(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := m.Codec.Verify(token)
		if err != nil {
			if m.Logger != nil {
				m.Logger.Debug("bearer token rejected", slog.Any("error", err))
			}
			next.ServeHTTP(w, r)
			return
		}

		principal, err := m.Resolver.FindByUsernameOrEmail(r.Context(), claims.Subject)
		if err != nil {
			if m.Logger != nil {
				m.Logger.Warn("token subject unresolvable", slog.String("subject", claims.Subject), slog.Any("error", err))
			}
			next.ServeHTTP(w, r)
			return
		}
		// A principal disabled after issuance keeps the request anonymous.
		if !principal.Enabled() {
			next.ServeHTTP(w, r)
			return
		}

		ctx := ContextWithPrincipal(r.Context(), principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// extractBearer pulls the token out of the Authorization header. The
// "Bearer " prefix is matched case-sensitively; anything else counts as no
// token rather than an error.
func extractBearer(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, bearerPrefix) {
		return ""
	}
	return header[len(bearerPrefix):]
}
