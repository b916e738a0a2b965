package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stevecastle/sarview/renderer"
	"golang.org/x/crypto/bcrypt"
)

// TokenTTL is how long issued tokens stay valid.
var TokenTTL = 365 * 24 * time.Hour

type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Login checks the password and returns a signed token. Unknown users and
// wrong passwords both return ErrInvalidCreds.
func (s *Service) Login(username, password string) (string, error) {
	u, err := s.lookup(username)
	if errors.Is(err, ErrUserNotFound) {
		return "", ErrInvalidCreds
	}
	if err != nil {
		return "", err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return "", ErrInvalidCreds
	}
	now := time.Now()
	return jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		Username: u.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
		},
	}).SignedString(s.secret)
}

// VerifyToken parses an HS256 token signed with the service secret.
func (s *Service) VerifyToken(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	return claims, nil
}

type claimsKey struct{}

// ClaimsFromContext returns the claims Middleware attached to the request.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*Claims)
	return c, ok
}

// bearerToken reads the Authorization header, falling back to the token
// query parameter for EventSource clients.
func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h == "" {
		return r.URL.Query().Get("token")
	}
	tok, ok := strings.CutPrefix(h, "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(tok)
}

// Middleware has the signature of renderer.AuthMiddleware.
func (s *Service) Middleware(next http.Handler, role renderer.AuthRole) http.Handler {
	if role == renderer.RolePublic {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok := bearerToken(r)
		if tok == "" {
			renderer.Error(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		claims, err := s.VerifyToken(tok)
		if err != nil {
			renderer.Error(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey{}, claims)))
	})
}
