package http

import (
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"cred-lifecycle/internal/service"
)

// UserHandler mantiene dependencias para endpoints de usuarios.
type UserHandler struct {
	logger *zap.Logger
	svc    *service.CredentialService
}

// NewUserHandler crea una instancia de UserHandler con dependencias necesarias.
func NewUserHandler(logger *zap.Logger, svc *service.CredentialService) *UserHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserHandler{logger: logger, svc: svc}
}

// Authenticate maneja POST /users/authenticate con credenciales Basic.
func (h *UserHandler) Authenticate(c *gin.Context) {
	emailAddr, password, ok := c.Request.BasicAuth()
	if !ok {
		writeError(c, service.ErrInvalidInput)
		return
	}

	res, err := h.svc.AuthenticateUser(c.Request.Context(), emailAddr, password)
	if err != nil {
		writeError(c, err)
		return
	}
	tok, err := h.svc.IssueSessionToken(res.Message)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": res.Message, "token": tok.Token})
}

// Register maneja POST /users.
func (h *UserHandler) Register(c *gin.Context) {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid register request", zap.Error(err))
		writeError(c, service.ErrInvalidInput)
		return
	}

	res, err := h.svc.RegisterUser(c.Request.Context(), service.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.Header("Location", "/users/"+url.PathEscape(strings.TrimSpace(req.Email)))
	writeResult(c, res)
}

// GetProfile maneja GET /users/:email.
func (h *UserHandler) GetProfile(c *gin.Context) {
	profile, err := h.svc.GetProfile(c.Request.Context(), c.Param("email"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// ChangePassword maneja PUT /users/:email/password.
func (h *UserHandler) ChangePassword(c *gin.Context) {
	var req struct {
		Password    string `json:"password"`
		NewPassword string `json:"new_password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid change password request", zap.Error(err))
		writeError(c, service.ErrInvalidInput)
		return
	}

	res, err := h.svc.ChangePassword(c.Request.Context(), c.Param("email"), req.Password, req.NewPassword)
	if err != nil {
		writeError(c, err)
		return
	}
	writeResult(c, res)
}

// ResetPassword maneja POST /users/:email/password. Sin token y password
// nuevo inicia el reset; con ambos lo completa.
func (h *UserHandler) ResetPassword(c *gin.Context) {
	var req struct {
		Token       string `json:"token"`
		NewPassword string `json:"new_password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		h.logger.Warn("invalid reset password request", zap.Error(err))
		writeError(c, service.ErrInvalidInput)
		return
	}

	ctx := c.Request.Context()
	emailAddr := c.Param("email")
	var (
		res service.Result
		err error
	)
	if strings.TrimSpace(req.Token) == "" || strings.TrimSpace(req.NewPassword) == "" {
		res, err = h.svc.InitResetPassword(ctx, emailAddr)
	} else {
		res, err = h.svc.FinishResetPassword(ctx, emailAddr, req.Token, req.NewPassword)
	}
	if err != nil {
		writeError(c, err)
		return
	}
	writeResult(c, res)
}

// Logout maneja POST /users/:email/logout revocando el token en uso.
func (h *UserHandler) Logout(c *gin.Context) {
	if err := h.svc.RevokeSessionToken(c.Request.Context(), c.GetString(sessionTokenKey)); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func writeResult(c *gin.Context, res service.Result) {
	c.JSON(httpStatus(res.Status), gin.H{"message": res.Message})
}

// writeError responde con el mensaje publico del error. Los errores internos
// ya fueron registrados por quien los produjo.
func writeError(c *gin.Context, err error) {
	c.JSON(httpStatus(service.StatusOf(err)), gin.H{"message": service.MessageOf(err)})
}

func httpStatus(s service.Status) int {
	switch s {
	case service.StatusOK:
		return http.StatusOK
	case service.StatusCreated:
		return http.StatusCreated
	case service.StatusNotFound:
		return http.StatusNotFound
	case service.StatusConflict:
		return http.StatusConflict
	case service.StatusUnauthorized:
		return http.StatusUnauthorized
	case service.StatusValidation:
		return http.StatusBadRequest
	case service.StatusUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
