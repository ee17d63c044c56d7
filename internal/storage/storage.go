package storage

import (
	"context"
	"io"
)

// Storage guarda archivos de imagen de perfil y expone su URL publica.
type Storage interface {
	Save(ctx context.Context, key string, r io.Reader, contentType string) error
	Delete(ctx context.Context, key string) error
	URL(key string) string
}
