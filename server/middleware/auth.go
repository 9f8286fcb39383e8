package middleware

import (
	"context"
	"net/http"
	"strings"

	gojwt "github.com/golang-jwt/jwt/v5"

	apperrors "github.com/kbukum/runkit/errors"
)

// AuthConfig guards the server with HS256 bearer tokens.
//
//	auth:
//	  secret: ${RUNKIT_SERVER_AUTH_SECRET}
//	  issuer: runkit
type AuthConfig struct {
	// Secret is the HMAC key. Empty disables authentication.
	Secret string `yaml:"secret" mapstructure:"secret" validate:"omitempty,min=32"`
	// Issuer, when set, must match the "iss" claim.
	Issuer string `yaml:"issuer" mapstructure:"issuer"`
	// Audience, when set, must be one of the "aud" claims.
	Audience string `yaml:"audience" mapstructure:"audience"`
	// SkipPaths are path prefixes served without a token.
	SkipPaths []string `yaml:"skip_paths" mapstructure:"skip_paths"`
}

// Enabled reports whether a secret is configured.
func (c *AuthConfig) Enabled() bool { return c.Secret != "" }

// ApplyDefaults exempts the health and version endpoints.
func (c *AuthConfig) ApplyDefaults() {
	if c.SkipPaths == nil {
		c.SkipPaths = []string{"/health", "/version"}
	}
}

type claimsKey struct{}

// ClaimsFromContext returns the claims of an authenticated request.
func ClaimsFromContext(ctx context.Context) (*gojwt.RegisteredClaims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(*gojwt.RegisteredClaims)
	return claims, ok
}

// Auth rejects requests without a valid bearer token with 401 UNAUTHORIZED
// and stores the verified claims in the request context. It returns nil when
// cfg is disabled.
func Auth(cfg *AuthConfig) Middleware {
	if !cfg.Enabled() {
		return nil
	}
	key := []byte(cfg.Secret)
	opts := []gojwt.ParserOption{gojwt.WithValidMethods([]string{gojwt.SigningMethodHS256.Alg()})}
	if cfg.Issuer != "" {
		opts = append(opts, gojwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, gojwt.WithAudience(cfg.Audience))
	}
	parser := gojwt.NewParser(opts...)
	keyFunc := func(*gojwt.Token) (any, error) { return key, nil }

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions || skipped(r.URL.Path, cfg.SkipPaths) {
				next.ServeHTTP(w, r)
				return
			}

			scheme, raw, ok := strings.Cut(r.Header.Get("Authorization"), " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || raw == "" {
				w.Header().Set("WWW-Authenticate", `Bearer realm="runkit"`)
				reject(w, apperrors.Unauthorized("A bearer token is required."))
				return
			}

			claims := &gojwt.RegisteredClaims{}
			if _, err := parser.ParseWithClaims(raw, claims, keyFunc); err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="runkit", error="invalid_token"`)
				reject(w, apperrors.Unauthorized("The bearer token is invalid.").WithCause(err))
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey{}, claims)))
		})
	}
}

// NewToken signs claims with secret using HS256. Clients and tests use it
// to mint tokens the Auth middleware accepts.
func NewToken(secret string, claims gojwt.RegisteredClaims) (string, error) {
	return gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
