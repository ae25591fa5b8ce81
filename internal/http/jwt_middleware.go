package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"auth-service/internal/service"
)

const authUserIDKey = "auth_user_id"

// JWTAuthMiddleware valida access tokens y guarda el id de usuario en el contexto.
func JWTAuthMiddleware(jwtSvc *service.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if jwtSvc == nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "jwt not configured"})
			c.Abort()
			return
		}

		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if len(header) < len("Bearer ") || !strings.EqualFold(header[:len("Bearer ")], "bearer ") {
			unauthorized(c, "missing token")
			return
		}

		token := strings.TrimSpace(header[len("Bearer "):])
		claims, err := jwtSvc.Verify(token, service.TokenAccess)
		if err != nil {
			unauthorized(c, "invalid token")
			return
		}
		userID, err := claims.UserID()
		if err != nil {
			unauthorized(c, "invalid token")
			return
		}

		c.Set(authUserIDKey, userID)
		c.Next()
	}
}

// GetAuthUserID obtiene el id del usuario autenticado desde el contexto.
func GetAuthUserID(c *gin.Context) (int64, bool) {
	val, ok := c.Get(authUserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := val.(int64)
	return id, ok
}

func unauthorized(c *gin.Context, msg string) {
	c.Header("WWW-Authenticate", "Bearer")
	c.JSON(http.StatusUnauthorized, gin.H{"error": msg})
	c.Abort()
}
