package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"cred-lifecycle/internal/service"
	"cred-lifecycle/internal/storage"
)

const (
	imageField    = "my_image"
	ownerField    = "user"
	maxImageBytes = 5 << 20
	sniffLen      = 512
)

var imageTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
}

const (
	msgImageMissing  = "Image is required!"
	msgImageTooLarge = "Image exceeds 5MB!"
	msgImageType     = "Only accept .jpg, .png!"
)

// UploadHandler recibe imagenes de perfil y las guarda en Storage.
type UploadHandler struct {
	logger *zap.Logger
	svc    *service.CredentialService
	store  storage.Storage
	clock  service.Clock
}

func NewUploadHandler(logger *zap.Logger, svc *service.CredentialService, store storage.Storage, clock service.Clock) *UploadHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = service.SystemClock()
	}
	return &UploadHandler{logger: logger, svc: svc, store: store, clock: clock}
}

// Upload maneja POST /users/upload (multipart: my_image + user).
func (h *UploadHandler) Upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxImageBytes+(1<<20))

	owner := strings.TrimSpace(c.PostForm(ownerField))
	if owner == "" {
		writeError(c, service.ErrInvalidInput)
		return
	}
	ctx := c.Request.Context()
	if !h.svc.VerifySessionToken(ctx, sessionToken(c), owner) {
		writeError(c, service.ErrTokenInvalid)
		return
	}

	fh, err := c.FormFile(imageField)
	if err != nil {
		badImage(c, msgImageMissing)
		return
	}
	if fh.Size > maxImageBytes {
		badImage(c, msgImageTooLarge)
		return
	}
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	wantType, ok := imageTypes[ext]
	if !ok {
		badImage(c, msgImageType)
		return
	}

	f, err := fh.Open()
	if err != nil {
		h.fail(c, "open upload", err)
		return
	}
	defer f.Close()

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		h.fail(c, "read upload", err)
		return
	}
	if http.DetectContentType(head[:n]) != wantType {
		badImage(c, msgImageType)
		return
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		h.fail(c, "rewind upload", err)
		return
	}

	// El usuario debe existir antes de escribir en el store.
	if _, err := h.svc.GetProfile(ctx, owner); err != nil {
		writeError(c, err)
		return
	}

	key := fmt.Sprintf("%s-%d%s", imageField, h.clock.Now().UnixMilli(), ext)
	if err := h.store.Save(ctx, key, f, wantType); err != nil {
		h.fail(c, "save image", err)
		return
	}

	profile, err := h.svc.UpdateImageURL(ctx, owner, h.store.URL(key))
	if err != nil {
		if delErr := h.store.Delete(ctx, key); delErr != nil {
			h.logger.Warn("delete orphan image failed", zap.Error(delErr), zap.String("key", key))
		}
		writeError(c, err)
		return
	}
	h.logger.Info("profile image stored", zap.String("email", owner), zap.String("key", key))
	c.JSON(http.StatusOK, profile)
}

// fail registra un error propio del handler y responde 500.
func (h *UploadHandler) fail(c *gin.Context, op string, err error) {
	h.logger.Error(op+" failed", zap.Error(err))
	writeError(c, fmt.Errorf("%s: %w", op, err))
}

func badImage(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"message": msg})
}
