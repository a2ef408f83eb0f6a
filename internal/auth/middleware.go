package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/storygraph/storygraph/internal/apperr"
	"github.com/storygraph/storygraph/internal/tenant"
)

// Claims are the session token claims issued by the authentication provider.
type Claims struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

type JWTMiddleware struct {
	secret        []byte
	tenantService *tenant.Service
}

func NewJWTMiddleware(secret string, ts *tenant.Service) *JWTMiddleware {
	return &JWTMiddleware{
		secret:        []byte(secret),
		tenantService: ts,
	}
}

// Authenticate resolves the session token, if any, into a user on the
// request context. Requests without a token continue anonymously so that
// queries can degrade to empty results; an invalid token is rejected.
func (m *JWTMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenStr := extractBearerToken(r)
		if tokenStr == "" {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := m.Parse(tokenStr)
		if errors.Is(err, ErrNoSecret) {
			slog.Error("rejecting session token", "error", err)
			writeError(w, http.StatusUnauthorized, "authentication is not configured")
			return
		}
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		userID, err := uuid.Parse(claims.Subject)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid user ID in token")
			return
		}

		ctx := r.Context()
		user, err := m.tenantService.EnsureUser(ctx, tenant.Identity{
			Subject: userID,
			Email:   claims.Email,
			Name:    claims.Name,
		})
		if apperr.KindOf(err) == apperr.KindConflict {
			writeError(w, http.StatusConflict, apperr.PublicMessage(err))
			return
		}
		if err != nil {
			slog.Error("resolve session user", "error", err, "user_id", userID)
			writeError(w, http.StatusInternalServerError, "could not resolve user")
			return
		}

		ctx = tenant.WithUser(ctx, user)
		ctx = context.WithValue(ctx, claimsKey, claims)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ErrNoSecret is returned by Parse when no signing secret is configured.
// An empty HMAC key would verify tokens anyone can forge.
var ErrNoSecret = errors.New("auth: no token signing secret configured")

// Parse verifies an HMAC-signed session token.
func (m *JWTMiddleware) Parse(tokenStr string) (*Claims, error) {
	if len(m.secret) == 0 {
		return nil, ErrNoSecret
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("token not valid")
	}
	return claims, nil
}

type ctxKey string

const claimsKey ctxKey = "claims"

func ClaimsFromContext(ctx context.Context) *Claims {
	c, _ := ctx.Value(claimsKey).(*Claims)
	return c
}

func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

func writeError(w http.ResponseWriter, status int, msg string) {
	code := apperr.KindUnauthorized
	switch {
	case status == http.StatusConflict:
		code = apperr.KindConflict
	case status >= http.StatusInternalServerError:
		code = apperr.KindInternal
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{"code": string(code), "message": msg},
	})
}
