package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"cred-lifecycle/internal/domain"
	"cred-lifecycle/internal/repository"
)

const (
	// DefaultResetWindow es la vida de un token de reset desde su emision.
	DefaultResetWindow = 2 * time.Minute
	resetTokenLength   = 8
	resetTokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// ResetTokenManager maneja el ciclo NoPendingReset -> PendingReset ->
// NoPendingReset de los tokens de reset de password.
type ResetTokenManager struct {
	users  repository.UserRepository
	hasher PasswordHasher
	clock  Clock
	random RandomSource
	window time.Duration
}

func NewResetTokenManager(users repository.UserRepository, hasher PasswordHasher, clock Clock, random RandomSource, window time.Duration) *ResetTokenManager {
	if clock == nil {
		clock = SystemClock()
	}
	if random == nil {
		random = SystemRandom()
	}
	if window <= 0 {
		window = DefaultResetWindow
	}
	return &ResetTokenManager{
		users:  users,
		hasher: hasher,
		clock:  clock,
		random: random,
		window: window,
	}
}

func (m *ResetTokenManager) Window() time.Duration {
	return m.window
}

// Init emite un token nuevo para user, reemplazando cualquier reset
// pendiente, y lo persiste. Devuelve el token en claro y el registro guardado.
func (m *ResetTokenManager) Init(ctx context.Context, user domain.User) (string, domain.User, error) {
	token, err := generateResetToken(m.random)
	if err != nil {
		return "", domain.User{}, fmt.Errorf("generate reset token: %w", err)
	}
	hash, err := m.hasher.Hash(ctx, token)
	if err != nil {
		return "", domain.User{}, fmt.Errorf("hash reset token: %w", err)
	}

	user.SetPendingReset(hash, m.clock.Now())
	if err := m.users.Update(ctx, user); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", domain.User{}, ErrUserNotFound
		}
		return "", domain.User{}, fmt.Errorf("store reset token: %w", err)
	}
	return token, user, nil
}

// Finish consume el reset pendiente de email si token es correcto y la
// ventana sigue abierta. Los fallos dejan el registro intacto.
func (m *ResetTokenManager) Finish(ctx context.Context, email, token, newPassword string) error {
	now := m.clock.Now()

	user, err := m.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("load user: %w", err)
	}
	if !user.HasPendingReset() {
		return ErrResetNotRequested
	}
	if now.Sub(*user.TempHashedPasswordTime) >= m.window {
		return ErrResetExpired
	}

	ok, err := m.hasher.Verify(ctx, token, user.TempHashedPassword)
	if err != nil {
		return fmt.Errorf("verify reset token: %w", err)
	}
	if !ok {
		return ErrResetTokenInvalid
	}

	hash, err := m.hasher.Hash(ctx, newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user.HashedPassword = hash
	user.ClearPendingReset()
	if err := m.users.Update(ctx, user); err != nil {
		return fmt.Errorf("store password: %w", err)
	}
	return nil
}

func generateResetToken(random RandomSource) (string, error) {
	max := big.NewInt(int64(len(resetTokenAlphabet)))
	buf := make([]byte, resetTokenLength)
	for i := range buf {
		n, err := rand.Int(random, max)
		if err != nil {
			return "", err
		}
		buf[i] = resetTokenAlphabet[n.Int64()]
	}
	return string(buf), nil
}
