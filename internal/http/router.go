package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RouterOptions controla piezas opcionales del router.
type RouterOptions struct {
	// ImageDir sirve las imagenes locales bajo ImagePath. Vacio desactiva la ruta.
	ImageDir  string
	ImagePath string
}

// NewRouter configura el router de Gin con middlewares y rutas de usuarios.
func NewRouter(
	logger *zap.Logger,
	userH *UserHandler,
	uploadH *UploadHandler,
	opts RouterOptions,
) *gin.Engine {
	r := gin.New()

	r.Use(zapLoggerMiddleware(logger), gin.Recovery())

	users := r.Group("/users", jsonContentTypeMiddleware())
	users.POST("/authenticate", userH.Authenticate)
	users.POST("", userH.Register)
	users.POST("/upload", uploadH.Upload)

	session := SessionAuthMiddleware(userH.svc)
	users.GET("/:email", session, userH.GetProfile)
	users.PUT("/:email/password", session, userH.ChangePassword)
	users.POST("/:email/password", userH.ResetPassword)
	users.POST("/:email/logout", session, userH.Logout)

	if opts.ImageDir != "" {
		path := opts.ImagePath
		if path == "" {
			path = "/images"
		}
		r.Static(path, opts.ImageDir)
	}

	return r
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// jsonContentTypeMiddleware fuerza Content-Type: application/json en responses.
func jsonContentTypeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json")
		c.Next()
	}
}
