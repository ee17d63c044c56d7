package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

const DefaultBcryptCost = 10

// PasswordHasher hashea secretos con sal y verifica contra un digest.
type PasswordHasher interface {
	Hash(ctx context.Context, secret string) (string, error)
	Verify(ctx context.Context, secret, digest string) (bool, error)
}

// BcryptHasher corre bcrypt dentro de un pool acotado para que el trabajo de
// CPU no se acumule sin limite bajo carga.
type BcryptHasher struct {
	cost int
	pool *semaphore.Weighted
}

// NewBcryptHasher crea un hasher con el costo dado. workers <= 0 usa NumCPU.
func NewBcryptHasher(cost, workers int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &BcryptHasher{
		cost: cost,
		pool: semaphore.NewWeighted(int64(workers)),
	}
}

func (h *BcryptHasher) Hash(ctx context.Context, secret string) (string, error) {
	if err := h.pool.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer h.pool.Release(1)

	hashBytes, err := bcrypt.GenerateFromPassword([]byte(secret), h.cost)
	if err != nil {
		return "", fmt.Errorf("bcrypt hash: %w", err)
	}
	return string(hashBytes), nil
}

// Verify devuelve false, nil ante un secreto incorrecto. Otros fallos de
// bcrypt (digest corrupto, contexto cancelado) se devuelven como error.
func (h *BcryptHasher) Verify(ctx context.Context, secret, digest string) (bool, error) {
	if digest == "" {
		return false, nil
	}
	if err := h.pool.Acquire(ctx, 1); err != nil {
		return false, err
	}
	defer h.pool.Release(1)

	err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(secret))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("bcrypt compare: %w", err)
	}
}
