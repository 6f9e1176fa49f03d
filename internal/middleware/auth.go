package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"reprography-backend/internal/config"
	"reprography-backend/internal/models"
)

const (
	UserIDKey = "user_id"
	RoleKey   = "user_role"

	adminRole = "admin"
)

// RequireAuth validates the Supabase access token (HS256, signed with the
// project's JWT secret) and stores the subject and role claims in the gin
// context. Requests without a valid token are rejected.
func RequireAuth(cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "missing authorization header"})
			c.Abort()
			return
		}

		sub, role, err := parseToken(tokenString, cfg.SupabaseJWTSecret)
		if err != nil {
			c.JSON(http.StatusUnauthorized, models.ErrorResponse{
				Error:   "invalid token",
				Message: err.Error(),
			})
			c.Abort()
			return
		}

		c.Set(UserIDKey, sub)
		c.Set(RoleKey, role)
		c.Next()
	}
}

// OptionalAuth resolves an identity when a valid token is present but never
// rejects the request. Order submission and listing accept guests, so an
// absent or broken token just means guest handling downstream.
func OptionalAuth(cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c)
		if ok {
			if sub, role, err := parseToken(tokenString, cfg.SupabaseJWTSecret); err == nil {
				c.Set(UserIDKey, sub)
				c.Set(RoleKey, role)
			}
		}
		c.Next()
	}
}

// RequireAdmin gates staff-only routes on the app_metadata role claim.
// Must run after RequireAuth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		role, exists := c.Get(RoleKey)
		if !exists || role != adminRole {
			c.JSON(http.StatusForbidden, models.ErrorResponse{Error: "admin access required"})
			c.Abort()
			return
		}
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", false
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", false
	}

	tokenString := strings.TrimSpace(parts[1])
	return tokenString, tokenString != ""
}

func parseToken(tokenString, secret string) (sub, role string, err error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		// Supabase signs access tokens with HS256 and the project JWT secret
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		if secret == "" {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return "", "", err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", "", jwt.ErrTokenInvalidClaims
	}

	sub, ok = claims["sub"].(string)
	if !ok || sub == "" {
		return "", "", jwt.ErrTokenInvalidSubject
	}

	// Role lives under app_metadata; the top-level "role" claim is the
	// Postgres role ("authenticated") and is not what staff gating wants.
	if appMetadata, ok := claims["app_metadata"].(map[string]interface{}); ok {
		role, _ = appMetadata["role"].(string)
	}

	return sub, role, nil
}
