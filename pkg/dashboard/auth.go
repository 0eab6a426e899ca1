package dashboard

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

// ClaimsContextKey holds the validated token claims on a request context
const ClaimsContextKey contextKey = "claims"

// Token scopes. A runs token opens every protected route; an archive token
// opens only the archive named in its subject.
const (
	ScopeRuns    = "runs"
	ScopeArchive = "archive"
)

// Claims are the JWT claims accepted by the dashboard API
type Claims struct {
	Scope string `json:"scope,omitempty"`
	jwt.RegisteredClaims
}

// GenerateToken signs an HS256 runs token for subject that expires after ttl
func GenerateToken(secret, subject string, ttl time.Duration) (string, error) {
	return signToken(secret, ScopeRuns, subject, ttl)
}

// GenerateArchiveToken signs a token that only downloads the archive file
func GenerateArchiveToken(secret, file string, ttl time.Duration) (string, error) {
	return signToken(secret, ScopeArchive, file, ttl)
}

func signToken(secret, scope, subject string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("dashboard jwt secret is not configured")
	}
	if ttl <= 0 {
		return "", fmt.Errorf("token ttl must be positive, got %s", ttl)
	}

	now := time.Now()
	claims := Claims{
		Scope: scope,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    "kobomedia",
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ValidateToken parses tokenStr and checks its signature and expiry
func ValidateToken(secret, tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrSignatureInvalid
	}
	return claims, nil
}

// Middleware requires a valid runs token when secret is set. The token is
// read from the Authorization header, or from an access_token form value so
// the HTML form can post without scripting.
func Middleware(secret string) func(http.Handler) http.Handler {
	return authenticate(secret, func(r *http.Request, claims *Claims) bool {
		return claims.Scope == ScopeRuns
	})
}

// ArchiveMiddleware guards GET /archives/{file}. It accepts a runs token or
// an archive token issued for that file, which is what the result page
// puts on its download link.
func ArchiveMiddleware(secret string) func(http.Handler) http.Handler {
	return authenticate(secret, func(r *http.Request, claims *Claims) bool {
		switch claims.Scope {
		case ScopeRuns:
			return true
		case ScopeArchive:
			return claims.Subject != "" && claims.Subject == chi.URLParam(r, "file")
		}
		return false
	})
}

func authenticate(secret string, allowed func(*http.Request, *Claims) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if secret == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr := bearerToken(r)
			if tokenStr == "" {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			claims, err := ValidateToken(secret, tokenStr)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}
			if !allowed(r, claims) {
				writeError(w, http.StatusForbidden, "token not valid for this resource")
				return
			}
			ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return r.FormValue("access_token")
}

// ClaimsFromContext returns the claims stored by Middleware, if any
func ClaimsFromContext(ctx context.Context) *Claims {
	claims, _ := ctx.Value(ClaimsContextKey).(*Claims)
	return claims
}
