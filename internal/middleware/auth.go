package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/radview/radview-backend/internal/platform/envutil"
	"github.com/radview/radview-backend/internal/platform/logger"
)

const (
	ContextKeyUserID      = "user_id"
	ContextKeyInstitution = "institution"
)

// AuthMiddleware verifies bearer tokens minted by the external identity
// system. Only the signature and claims are checked here; authorization
// policy lives upstream.
type AuthMiddleware struct {
	log       *logger.Logger
	jwtSecret []byte
}

func NewAuthMiddleware(baseLog *logger.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		log:       baseLog.With("middleware", "AuthMiddleware"),
		jwtSecret: []byte(envutil.String("JWT_SECRET_KEY", "")),
	}
}

func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractToken(c)
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid token"})
			return
		}

		claims := jwt.MapClaims{}
		_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return am.jwtSecret, nil
		})
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		sub, _ := claims["sub"].(string)
		userID, err := uuid.Parse(sub)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Set(ContextKeyUserID, userID)
		if inst, ok := claims["institution"].(string); ok {
			c.Set(ContextKeyInstitution, inst)
		}
		c.Next()
	}
}

// SSE connections cannot set headers from EventSource, so a query token is
// accepted there as well.
func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return authHeader[7:]
	}
	return c.Query("token")
}
