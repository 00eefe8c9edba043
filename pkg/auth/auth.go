// Package auth verifies OIDC bearer tokens on incoming requests.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/JaimeStill/sectional/pkg/handlers"
)

var (
	// ErrMissingToken indicates a request without a bearer token.
	ErrMissingToken = errors.New("missing bearer token")
	// ErrInvalidToken indicates a bearer token that failed verification.
	ErrInvalidToken = errors.New("invalid bearer token")
)

// Claims is the caller identity taken from a verified token.
type Claims struct {
	Subject string `json:"sub"`
	Email   string `json:"email,omitempty"`
	Name    string `json:"name,omitempty"`
}

type claimsKey struct{}

// WithClaims returns a context carrying c.
func WithClaims(ctx context.Context, c Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, c)
}

// ClaimsFrom returns the claims stored in ctx, if any.
func ClaimsFrom(ctx context.Context) (Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(Claims)
	return c, ok
}

// Subject returns the caller subject from ctx, or "" for anonymous requests.
func Subject(ctx context.Context) string {
	c, _ := ClaimsFrom(ctx)
	return c.Subject
}

// Authenticator verifies bearer tokens. A nil Authenticator admits every
// request anonymously.
type Authenticator struct {
	verifier *oidc.IDTokenVerifier
	logger   *slog.Logger
}

// New discovers the issuer's provider metadata and returns an Authenticator
// for cfg. It returns nil when auth is disabled.
func New(ctx context.Context, cfg *Config, logger *slog.Logger) (*Authenticator, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	provider, err := oidc.NewProvider(ctx, cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("discover oidc provider %s: %w", cfg.Issuer, err)
	}
	return NewWithVerifier(provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}), logger), nil
}

// NewWithVerifier returns an Authenticator over an existing verifier.
func NewWithVerifier(v *oidc.IDTokenVerifier, logger *slog.Logger) *Authenticator {
	return &Authenticator{
		verifier: v,
		logger:   logger.With("system", "auth"),
	}
}

// Verify checks raw and returns its claims.
func (a *Authenticator) Verify(ctx context.Context, raw string) (Claims, error) {
	token, err := a.verifier.Verify(ctx, raw)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	var c Claims
	if err := token.Claims(&c); err != nil {
		return Claims{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if c.Subject == "" {
		c.Subject = token.Subject
	}
	return c, nil
}

// Middleware rejects requests without a valid bearer token and stores the
// verified claims in the request context. CORS preflight requests pass.
func (a *Authenticator) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if a == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			raw, ok := bearer(r.Header.Get("Authorization"))
			if !ok {
				handlers.RespondError(w, a.logger, http.StatusUnauthorized, ErrMissingToken)
				return
			}

			claims, err := a.Verify(r.Context(), raw)
			if err != nil {
				handlers.RespondError(w, a.logger, http.StatusUnauthorized, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

func bearer(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
