package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const adminContextKey = "admin"

var (
	ErrUnauthenticated = errors.New("invalid or expired token")
	ErrForbidden       = errors.New("admin access only")
)

// Admin is the identity carried by a verified token.
type Admin struct {
	ID    string
	Email string
	Role  string
}

// Authenticator verifies a raw bearer token.
type Authenticator interface {
	Authenticate(token string) (Admin, error)
}

// JWTAuthenticator accepts HS256 tokens whose role claim is "admin".
type JWTAuthenticator struct {
	secret []byte
	parser *jwt.Parser
}

func NewJWTAuthenticator(secret string) *JWTAuthenticator {
	return &JWTAuthenticator{
		secret: []byte(secret),
		parser: jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithJSONNumber()),
	}
}

func (a *JWTAuthenticator) Authenticate(raw string) (Admin, error) {
	claims := jwt.MapClaims{}
	_, err := a.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	})
	if err != nil {
		return Admin{}, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}

	role, _ := claims["role"].(string)
	if role != "admin" {
		return Admin{}, ErrForbidden
	}
	id, ok := claims["id"]
	if !ok || id == nil || fmt.Sprint(id) == "" {
		return Admin{}, fmt.Errorf("%w: missing id claim", ErrUnauthenticated)
	}
	email, _ := claims["email"].(string)
	return Admin{ID: fmt.Sprint(id), Email: email, Role: role}, nil
}

// RequireAdmin rejects requests without a valid admin bearer token and
// stores the admin in the gin context.
func RequireAdmin(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		admin, status, msg := authenticate(c, auth, false)
		if status != 0 {
			c.AbortWithStatusJSON(status, gin.H{"message": msg})
			return
		}
		c.Set(adminContextKey, admin)
		c.Next()
	}
}

func authenticate(c *gin.Context, auth Authenticator, allowQuery bool) (Admin, int, string) {
	raw := ""
	if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
		raw = strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	} else if allowQuery {
		raw = c.Query("token")
	}
	if raw == "" {
		return Admin{}, http.StatusUnauthorized, "Unauthorized: missing or malformed token."
	}

	admin, err := auth.Authenticate(raw)
	switch {
	case errors.Is(err, ErrForbidden):
		return Admin{}, http.StatusForbidden, "Forbidden: admin access only."
	case err != nil:
		return Admin{}, http.StatusUnauthorized, "Invalid or expired token. Please log in again."
	}
	return admin, 0, ""
}

func adminFrom(c *gin.Context) Admin {
	if v, ok := c.Get(adminContextKey); ok {
		if admin, ok := v.(Admin); ok {
			return admin
		}
	}
	return Admin{}
}
