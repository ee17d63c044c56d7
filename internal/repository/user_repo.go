package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"cred-lifecycle/internal/domain"
)

var (
	ErrNotFound       = errors.New("user not found")
	ErrDuplicateEmail = errors.New("duplicate email")
)

// UserRepository define el contrato de persistencia para usuarios.
// La unicidad del email la garantiza el store, no la aplicacion.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) error
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	GetProfile(ctx context.Context, email string) (domain.Profile, error)
	Update(ctx context.Context, user domain.User) error
}

// pgxIface es el subconjunto de pgxpool.Pool que usa el repositorio.
type pgxIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PgUserRepository implementa UserRepository usando pgxpool.
type PgUserRepository struct {
	pool pgxIface
}

func NewPgUserRepository(pool *pgxpool.Pool) *PgUserRepository {
	return &PgUserRepository{pool: pool}
}

func newPgUserRepository(pool pgxIface) *PgUserRepository {
	return &PgUserRepository{pool: pool}
}

func (r *PgUserRepository) Create(ctx context.Context, user domain.User) error {
	const query = `
		INSERT INTO users (id, name, email, hashed_password, created_at, image_url)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''))
	`
	_, err := r.pool.Exec(ctx, query,
		user.ID,
		user.Name,
		user.Email,
		user.HashedPassword,
		user.CreatedAt,
		user.ImageURL,
	)
	if isUniqueViolation(err) {
		return ErrDuplicateEmail
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *PgUserRepository) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	const query = `
		SELECT id, name, email, hashed_password, created_at,
		       COALESCE(temp_hashed_password, ''), temp_hashed_password_time,
		       COALESCE(image_url, '')
		FROM users
		WHERE email = $1
	`
	var u domain.User
	err := r.pool.QueryRow(ctx, query, email).Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.HashedPassword,
		&u.CreatedAt,
		&u.TempHashedPassword,
		&u.TempHashedPasswordTime,
		&u.ImageURL,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, ErrNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("select user: %w", err)
	}
	return u, nil
}

func (r *PgUserRepository) GetProfile(ctx context.Context, email string) (domain.Profile, error) {
	const query = `
		SELECT name, email, created_at, COALESCE(image_url, '')
		FROM users
		WHERE email = $1
	`
	var p domain.Profile
	err := r.pool.QueryRow(ctx, query, email).Scan(
		&p.Name,
		&p.Email,
		&p.CreatedAt,
		&p.ImageURL,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Profile{}, ErrNotFound
	}
	if err != nil {
		return domain.Profile{}, fmt.Errorf("select profile: %w", err)
	}
	return p, nil
}

// Update escribe todas las columnas mutables en una sola sentencia, asi el
// cambio de password y el borrado del reset pendiente son atomicos.
func (r *PgUserRepository) Update(ctx context.Context, user domain.User) error {
	const query = `
		UPDATE users
		SET name = $2,
		    hashed_password = $3,
		    temp_hashed_password = NULLIF($4, ''),
		    temp_hashed_password_time = $5,
		    image_url = NULLIF($6, '')
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query,
		user.ID,
		user.Name,
		user.HashedPassword,
		user.TempHashedPassword,
		user.TempHashedPasswordTime,
		user.ImageURL,
	)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
