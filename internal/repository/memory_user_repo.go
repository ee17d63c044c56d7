package repository

import (
	"context"
	"sync"

	"cred-lifecycle/internal/domain"
)

// MemoryUserRepository guarda usuarios en memoria. Se usa cuando no hay
// DATABASE_URL y en tests.
type MemoryUserRepository struct {
	mu      sync.Mutex
	byEmail map[string]domain.User
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		byEmail: make(map[string]domain.User),
	}
}

func (r *MemoryUserRepository) Create(_ context.Context, user domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byEmail[user.Email]; ok {
		return ErrDuplicateEmail
	}
	r.byEmail[user.Email] = copyUser(user)
	return nil
}

func (r *MemoryUserRepository) GetByEmail(_ context.Context, email string) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.byEmail[email]
	if !ok {
		return domain.User{}, ErrNotFound
	}
	return copyUser(user), nil
}

func (r *MemoryUserRepository) GetProfile(ctx context.Context, email string) (domain.Profile, error) {
	user, err := r.GetByEmail(ctx, email)
	if err != nil {
		return domain.Profile{}, err
	}
	return user.Profile(), nil
}

func (r *MemoryUserRepository) Update(_ context.Context, user domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for email, existing := range r.byEmail {
		if existing.ID != user.ID {
			continue
		}
		if email != user.Email {
			if _, taken := r.byEmail[user.Email]; taken {
				return ErrDuplicateEmail
			}
			delete(r.byEmail, email)
		}
		r.byEmail[user.Email] = copyUser(user)
		return nil
	}
	return ErrNotFound
}

// copyUser evita compartir el puntero de la hora de reset con el llamador.
func copyUser(u domain.User) domain.User {
	if u.TempHashedPasswordTime != nil {
		at := *u.TempHashedPasswordTime
		u.TempHashedPasswordTime = &at
	}
	return u
}
