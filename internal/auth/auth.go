// Package auth verifies bearer tokens and guards routes by role.
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
)

// Roles recognised by the service.
const (
	RoleUser    = "user"
	RolePartner = "partner"
	RoleAdmin   = "admin"
)

// ErrInvalidToken is returned for tokens that fail parsing or verification.
var ErrInvalidToken = errors.New("invalid token")

// User is the authenticated caller.
type User struct {
	ID   string
	Role string
}

// Claims is the token payload: the user id and role.
type Claims struct {
	UserID string `json:"id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Authenticator issues and verifies HS256 tokens.
type Authenticator struct {
	secret []byte
	now    func() time.Time
}

// New returns an Authenticator signing with secret.
func New(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret), now: time.Now}
}

// Issue signs a token for userID with the given role, valid for ttl.
func (a *Authenticator) Issue(userID, role string, ttl time.Duration) (string, error) {
	now := a.now()
	claims := Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses a token and returns the user it names.
func (a *Authenticator) Verify(token string) (User, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return a.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return User{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.UserID == "" {
		return User{}, fmt.Errorf("%w: missing user id", ErrInvalidToken)
	}
	return User{ID: claims.UserID, Role: claims.Role}, nil
}

type ctxKey struct{}

// WithUser returns a context carrying u.
func WithUser(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// UserFromContext returns the authenticated user, if any.
func UserFromContext(ctx context.Context) (User, bool) {
	u, ok := ctx.Value(ctxKey{}).(User)
	return u, ok
}

// DenyFunc writes the response for a rejected request.
type DenyFunc func(w http.ResponseWriter, status int, msg string)

// Middleware requires a valid bearer token and stores the user in the
// request context.
func (a *Authenticator) Middleware(deny DenyFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				deny(w, http.StatusUnauthorized, "Not authorized, token missing")
				return
			}
			u, err := a.Verify(token)
			if err != nil {
				deny(w, http.StatusUnauthorized, "Not authorized, token failed")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
		})
	}
}

// RequireRole allows only users holding one of roles. It must run after
// Middleware.
func RequireRole(deny DenyFunc, roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, ok := UserFromContext(r.Context())
			if !ok || !slices.Contains(roles, u.Role) {
				deny(w, http.StatusForbidden, "Forbidden: insufficient role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
