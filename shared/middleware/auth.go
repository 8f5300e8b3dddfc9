package middleware

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/eaglebank/ledger/shared/logger"
	"github.com/eaglebank/ledger/shared/models"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

var (
	jwtSecretOnce sync.Once
	jwtSecretVal  []byte
)

func jwtSecret() []byte {
	jwtSecretOnce.Do(func() {
		secret := os.Getenv("JWT_SECRET")
		if secret == "" {
			panic("JWT_SECRET environment variable is not set")
		}
		jwtSecretVal = []byte(secret)
	})
	return jwtSecretVal
}

// Roles carried in the role claim or set by APIKeyMiddleware.
const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
	RoleAPIKey   = "api_key"
)

// APIKeyHeader carries partner keys on /v1/external routes.
const APIKeyHeader = "X-API-Key"

type Claims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			RespondWithError(c, http.StatusUnauthorized, "Authorization header required")
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			RespondWithError(c, http.StatusUnauthorized, "Invalid authorization header format")
			c.Abort()
			return
		}

		tokenString := parts[1]
		claims := &Claims{}

		token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
			return jwtSecret(), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}))

		if err != nil || !token.Valid || claims.UserID == "" {
			RespondWithError(c, http.StatusUnauthorized, "Invalid or expired token")
			c.Abort()
			return
		}

		role := claims.Role
		if role == "" {
			role = RoleCustomer
		}

		// Set user ID in context
		c.Set("userId", claims.UserID)
		c.Set("email", claims.Email)
		c.Set("role", role)
		c.Next()
	}
}

// RequireRole rejects callers whose role is not one of roles. It must run after
// AuthMiddleware or APIKeyMiddleware.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := GetRole(c)
		for _, r := range roles {
			if r == role {
				c.Next()
				return
			}
		}
		RespondWithError(c, http.StatusForbidden, "Insufficient permissions")
		c.Abort()
	}
}

// APIKeyResolver looks up a partner key by its raw value.
type APIKeyResolver interface {
	ResolveAPIKey(ctx context.Context, rawKey string) (*models.APIKey, error)
}

// APIKeyMiddleware authenticates partners by X-API-Key. The key's holder becomes
// the caller and the key must carry permission.
func APIKeyMiddleware(resolver APIKeyResolver, permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(APIKeyHeader))
		if raw == "" {
			RespondWithError(c, http.StatusUnauthorized, "API key required")
			c.Abort()
			return
		}

		key, err := resolver.ResolveAPIKey(c.Request.Context(), raw)
		if err != nil {
			if !errors.Is(err, models.ErrAPIKeyNotFound) {
				log := logger.FromContext(c.Request.Context())
				log.Error().Err(err).Msg("api key lookup failed")
				RespondWithError(c, http.StatusInternalServerError, "Internal server error")
				c.Abort()
				return
			}
			RespondWithError(c, http.StatusUnauthorized, "Invalid API key")
			c.Abort()
			return
		}
		if !key.Usable(time.Now()) {
			RespondWithError(c, http.StatusUnauthorized, "API key is inactive or expired")
			c.Abort()
			return
		}
		if !key.Allows(permission) {
			RespondWithError(c, http.StatusForbidden, "API key lacks permission "+permission)
			c.Abort()
			return
		}

		c.Set("userId", key.UserID)
		c.Set("role", RoleAPIKey)
		c.Set("apiKeyId", key.ID)
		c.Next()
	}
}

func GetUserID(c *gin.Context) (string, bool) {
	userID, exists := c.Get("userId")
	if !exists {
		return "", false
	}
	id, ok := userID.(string)
	return id, ok && id != ""
}

func GetRole(c *gin.Context) string {
	return c.GetString("role")
}
