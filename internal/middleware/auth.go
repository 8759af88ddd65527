package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/notifier/pkg/auth"
	apperrors "github.com/jwalitptl/notifier/pkg/errors"
)

const ContextClaims = "claims"

type AuthMiddleware struct {
	jwt auth.JWTService
}

func NewAuthMiddleware(jwt auth.JWTService) *AuthMiddleware {
	return &AuthMiddleware{jwt: jwt}
}

// Authenticate verifies the bearer token and stores its claims in the context.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortError(c, apperrors.Unauthorized("missing authorization header", nil))
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			abortError(c, apperrors.Unauthorized("invalid authorization format", nil))
			return
		}

		claims, err := m.jwt.ValidateToken(parts[1])
		if err != nil {
			abortError(c, apperrors.Unauthorized("invalid token", err))
			return
		}

		c.Set(ContextClaims, claims)
		c.Next()
	}
}

// RequireOperator rejects tokens that may only read.
func (m *AuthMiddleware) RequireOperator() gin.HandlerFunc {
	return func(c *gin.Context) {
		v, ok := c.Get(ContextClaims)
		claims, _ := v.(*auth.Claims)
		if !ok || claims == nil {
			abortError(c, apperrors.Unauthorized("not authenticated", nil))
			return
		}
		if !claims.CanOperate() {
			abortError(c, apperrors.Forbidden("permission denied", nil))
			return
		}
		c.Next()
	}
}
