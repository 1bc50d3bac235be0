package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	apiContext "keygate/internal/api/context"
	"keygate/internal/gate"
	"keygate/internal/pkg/errors"
)

// GateMiddleware runs every protected request through the gate and
// translates the verdict into an HTTP response. Handlers behind it read
// the Principal from the request context and never touch raw credentials.
type GateMiddleware struct {
	gate *gate.Gate
}

func NewGateMiddleware(g *gate.Gate) *GateMiddleware {
	return &GateMiddleware{gate: g}
}

// Protect gates the handler behind the given required scope. An empty
// scope gates on identity and rate limit alone.
func (m *GateMiddleware) Protect(requiredScope string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			cred := gate.Credential{
				APIKey: r.Header.Get("X-API-Key"),
				Bearer: bearerToken(r),
			}

			verdict := m.gate.Check(r.Context(), cred, requiredScope)
			if !verdict.Allowed {
				writeDenial(w, verdict)
				return
			}

			ctx := context.WithValue(r.Context(), apiContext.Principal, verdict.Principal)
			next(w, r.WithContext(ctx))
		}
	}
}

// TokensOnly rejects API-key credentials after the gate has admitted the
// request. Key management stays token-only so a leaked key cannot mint or
// revoke keys.
func TokensOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal := r.Context().Value(apiContext.Principal).(*gate.Principal)
		if principal.Kind != gate.CredentialToken {
			errors.WriteError(w, http.StatusForbidden, errors.ErrCodeForbidden, "API keys cannot manage API keys", nil)
			return
		}
		next(w, r)
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

func writeDenial(w http.ResponseWriter, v gate.Verdict) {
	switch v.Kind {
	case gate.DenyUnauthenticated:
		errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, v.Detail, nil)
	case gate.DenyForbidden:
		errors.WriteError(w, http.StatusForbidden, errors.ErrCodeForbidden, v.Detail, nil)
	case gate.DenyThrottled:
		w.Header().Set("Retry-After", "1")
		errors.WriteError(w, http.StatusTooManyRequests, errors.ErrCodeRateLimitExceeded, v.Detail, map[string]int{
			"limit":   v.Limit,
			"current": v.Current,
		})
	case gate.DenyUnavailable:
		errors.WriteError(w, http.StatusServiceUnavailable, errors.ErrCodeUnavailable, v.Detail, nil)
	default:
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "unknown verdict "+strconv.Quote(string(v.Kind)), nil)
	}
}
