package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/utafrali/mercadolocal/pkg/errors"
	"github.com/utafrali/mercadolocal/pkg/httputil"
)

// Marketplace roles.
const (
	RoleBuyer  = "buyer"
	RoleVendor = "vendor"
	RoleAdmin  = "admin"
)

// SessionCookie is the cookie the web client stores the access token in.
const SessionCookie = "sb-access-token"

type principalKey struct{}

// Principal is the authenticated caller.
type Principal struct {
	UserID string
	Email  string
	Role   string
}

// SessionClaims are the claims carried by hosted-backend session tokens.
type SessionClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// TokenValidator verifies a session token and returns its claims.
type TokenValidator interface {
	Validate(token string) (*SessionClaims, error)
}

// HS256Validator verifies tokens signed with the project's shared JWT secret.
type HS256Validator struct {
	secret   []byte
	audience string
	leeway   time.Duration
}

// NewHS256Validator creates a validator. audience may be empty to skip the check.
func NewHS256Validator(secret, audience string) *HS256Validator {
	return &HS256Validator{secret: []byte(secret), audience: audience, leeway: 30 * time.Second}
}

// Validate implements TokenValidator.
func (v *HS256Validator) Validate(token string) (*SessionClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(v.leeway),
		jwt.WithExpirationRequired(),
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	claims := &SessionClaims{}
	if _, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...); err != nil {
		return nil, fmt.Errorf("parse session token: %w", err)
	}
	if claims.Subject == "" {
		return nil, errors.New("session token has no subject")
	}
	return claims, nil
}

// RoleResolver looks up the marketplace role of a user. Banned users must be
// reported with apperrors.ErrForbidden.
type RoleResolver func(ctx context.Context, userID string) (string, error)

// Auth requires a valid session. The role is resolved from the profile store
// on every request so that role changes and bans apply immediately.
func Auth(validator TokenValidator, resolve RoleResolver) func(http.Handler) http.Handler {
	return authenticate(validator, resolve, true)
}

// OptionalAuth attaches a principal when a valid session is present and
// otherwise lets the request through anonymously.
func OptionalAuth(validator TokenValidator, resolve RoleResolver) func(http.Handler) http.Handler {
	return authenticate(validator, resolve, false)
}

func authenticate(validator TokenValidator, resolve RoleResolver, required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				if required {
					httputil.WriteError(w, r, apperrors.Unauthorized("missing session token"), nil)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			claims, err := validator.Validate(token)
			if err != nil {
				if required {
					httputil.WriteError(w, r, apperrors.Unauthorized("invalid or expired session"), nil)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			role, err := resolve(r.Context(), claims.Subject)
			if err != nil {
				switch {
				case errors.Is(err, apperrors.ErrForbidden):
					httputil.WriteError(w, r, apperrors.Forbidden("account suspended"), nil)
				case errors.Is(err, apperrors.ErrNotFound):
					httputil.WriteError(w, r, apperrors.Unauthorized("unknown account"), nil)
				default:
					httputil.WriteError(w, r, err, nil)
				}
				return
			}

			p := Principal{UserID: claims.Subject, Email: claims.Email, Role: role}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// bearerToken reads the Authorization header, falling back to the session cookie.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		return c.Value
	}
	return ""
}

// RequireRole rejects principals whose role is not listed.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if !ok {
				httputil.WriteError(w, r, apperrors.Unauthorized("authentication required"), nil)
				return
			}
			if _, ok := allowed[p.Role]; !ok {
				httputil.WriteError(w, r, apperrors.Forbidden("insufficient permissions"), nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the authenticated caller, if any.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
