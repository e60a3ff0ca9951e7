// Package auth resolves the bearer token on a request into the calling identity.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Hasnainmunshi/diagnostic-management/internal/apperr"
)

type Role string

const (
	RoleAdmin      Role = "admin"
	RoleDoctor     Role = "doctor"
	RoleDiagnostic Role = "diagnostic"
	RoleUser       Role = "user"
	RoleEmployee   Role = "employee"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleDoctor, RoleDiagnostic, RoleUser, RoleEmployee:
		return true
	}
	return false
}

// Caller is the authenticated identity behind a request. CenterID is set for
// center staff (diagnostic, employee) and uuid.Nil otherwise.
type Caller struct {
	ID       uuid.UUID
	Role     Role
	CenterID uuid.UUID
}

// IsCenterStaff reports whether c acts on behalf of a diagnostic center.
func (c Caller) IsCenterStaff() bool {
	return c.Role == RoleDiagnostic || c.Role == RoleEmployee
}

const issuer = "diagnostic-management"

type Claims struct {
	Role     string `json:"role"`
	CenterID string `json:"center_id,omitempty"`
	jwt.RegisteredClaims
}

type Verifier struct {
	secret []byte
	now    func() time.Time
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret), now: time.Now}
}

// Issue signs an HS256 token for c that expires after ttl.
func (v *Verifier) Issue(c Caller, ttl time.Duration) (string, error) {
	now := v.now()
	claims := Claims{
		Role: string(c.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   c.ID.String(),
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if c.CenterID != uuid.Nil {
		claims.CenterID = c.CenterID.String()
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (v *Verifier) Verify(token string) (Caller, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(v.now))
	if err != nil {
		return Caller{}, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Caller{}, errors.New("invalid token claims")
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return Caller{}, fmt.Errorf("invalid subject: %w", err)
	}
	role := Role(claims.Role)
	if !role.Valid() {
		return Caller{}, fmt.Errorf("unknown role %q", claims.Role)
	}

	c := Caller{ID: id, Role: role}
	if claims.CenterID != "" {
		if c.CenterID, err = uuid.Parse(claims.CenterID); err != nil {
			return Caller{}, fmt.Errorf("invalid center id: %w", err)
		}
	}
	return c, nil
}

type contextKey struct{}

func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, contextKey{}, c)
}

func FromContext(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(contextKey{}).(Caller)
	return c, ok
}

// ErrorWriter renders auth failures in the transport's error format.
type ErrorWriter func(w http.ResponseWriter, status int, code, details string)

// Middleware rejects requests without a valid bearer token.
func (v *Verifier) Middleware(writeErr ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				writeErr(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
				return
			}

			c, err := v.Verify(token)
			if err != nil {
				writeErr(w, http.StatusUnauthorized, "unauthorized", "invalid token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), c)))
		})
	}
}

// RequireRole rejects callers whose role is not listed.
func RequireRole(writeErr ErrorWriter, roles ...Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c, ok := FromContext(r.Context())
			if !ok {
				writeErr(w, http.StatusUnauthorized, "unauthorized", "missing caller")
				return
			}
			if !slices.Contains(roles, c.Role) {
				writeErr(w, http.StatusForbidden, "forbidden", "role "+string(c.Role)+" not permitted")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Require returns a forbidden error unless c has one of roles.
func Require(c Caller, roles ...Role) error {
	if slices.Contains(roles, c.Role) {
		return nil
	}
	return apperr.Forbidden("role " + string(c.Role) + " not permitted")
}
