package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"property-workflow/internal/domain"
)

// Identity is the caller named by a bearer token.
type Identity struct {
	UserID string
	Role   string
	Team   *domain.Team
}

type Claims struct {
	Role string `json:"role"`
	Team string `json:"team,omitempty"`
	jwt.RegisteredClaims
}

type identityKey struct{}

func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

func withIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// Identify resolves the optional bearer token into an Identity. Requests
// without a token pass through anonymously; a token that does not verify is
// refused. With an empty secret tokens are not inspected at all.
func Identify(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if len(secret) == 0 || header == "" {
				next.ServeHTTP(w, r)
				return
			}
			if !strings.HasPrefix(header, "Bearer ") {
				writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "missing token", "code": "unauthorized"})
				return
			}

			claims := &Claims{}
			parsed, err := jwt.ParseWithClaims(strings.TrimPrefix(header, "Bearer "), claims, func(token *jwt.Token) (any, error) {
				return secret, nil
			}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
			if err != nil || !parsed.Valid {
				writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "invalid token", "code": "unauthorized"})
				return
			}

			id, err := claims.identity()
			if err != nil {
				writeJSON(w, http.StatusUnauthorized, map[string]any{"error": err.Error(), "code": "unauthorized"})
				return
			}
			next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), id)))
		})
	}
}

func (c *Claims) identity() (Identity, error) {
	id := Identity{UserID: c.Subject, Role: c.Role}
	switch {
	case c.Team != "":
		team, err := domain.ParseTeam(c.Team)
		if err != nil {
			return Identity{}, err
		}
		id.Team = &team
	case strings.EqualFold(c.Role, "admin"):
		admin := domain.TeamAdmin
		id.Team = &admin
	}
	return id, nil
}

// IsAdmin reports whether the identity acts for the Admin team.
func (id Identity) IsAdmin() bool {
	return id.Team != nil && *id.Team == domain.TeamAdmin
}

// SignToken issues an HS256 token for tests and local tooling.
func SignToken(secret []byte, claims Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}
