package http

import (
	"strings"

	"github.com/gin-gonic/gin"

	"cred-lifecycle/internal/service"
)

const sessionTokenKey = "session_token"

// SessionAuthMiddleware exige un token de sesion emitido para el :email de la ruta.
func SessionAuthMiddleware(svc *service.CredentialService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := sessionToken(c)
		if token == "" || !svc.VerifySessionToken(c.Request.Context(), token, c.Param("email")) {
			writeError(c, service.ErrTokenInvalid)
			c.Abort()
			return
		}
		c.Set(sessionTokenKey, token)
		c.Next()
	}
}

// sessionToken lee x-access-token y, si falta, Authorization: Bearer.
func sessionToken(c *gin.Context) string {
	if token := strings.TrimSpace(c.GetHeader("x-access-token")); token != "" {
		return token
	}
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if len(header) > len("Bearer ") && strings.EqualFold(header[:len("Bearer ")], "bearer ") {
		return strings.TrimSpace(header[len("Bearer "):])
	}
	return ""
}
