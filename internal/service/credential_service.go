package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"cred-lifecycle/internal/domain"
	"cred-lifecycle/internal/email"
	"cred-lifecycle/internal/repository"
)

const resetEmailSubject = "Reset password request"

// CredentialOptions agrupa los ajustes de CredentialService.
type CredentialOptions struct {
	AppName string
	// HideUnknownUser responde ErrInvalidCredentials en vez de ErrUserNotFound
	// cuando el login apunta a un email inexistente.
	HideUnknownUser bool
}

// CredentialService coordina registro, login, cambio y reset de password.
type CredentialService struct {
	logger  *zap.Logger
	users   repository.UserRepository
	hasher  PasswordHasher
	resets  *ResetTokenManager
	tokens  *SessionTokenCodec
	sender  email.Sender
	clock   Clock
	options CredentialOptions
}

func NewCredentialService(
	logger *zap.Logger,
	users repository.UserRepository,
	hasher PasswordHasher,
	resets *ResetTokenManager,
	tokens *SessionTokenCodec,
	sender email.Sender,
	clock Clock,
	options CredentialOptions,
) *CredentialService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = SystemClock()
	}
	if sender == nil {
		sender = email.NewDisabledSender("email sender not configured")
	}
	return &CredentialService{
		logger:  logger,
		users:   users,
		hasher:  hasher,
		resets:  resets,
		tokens:  tokens,
		sender:  sender,
		clock:   clock,
		options: options,
	}
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

func (s *CredentialService) RegisterUser(ctx context.Context, input RegisterInput) (Result, error) {
	name := strings.TrimSpace(input.Name)
	emailAddr := strings.TrimSpace(input.Email)
	if err := validateName(name); err != nil {
		return Result{}, err
	}
	if err := validateEmail(emailAddr); err != nil {
		return Result{}, err
	}
	if err := validateSecret("password", input.Password); err != nil {
		return Result{}, err
	}

	hash, err := s.hasher.Hash(ctx, input.Password)
	if err != nil {
		return Result{}, s.internal("hash password", err)
	}

	user := domain.User{
		ID:             uuid.NewString(),
		Name:           name,
		Email:          emailAddr,
		HashedPassword: hash,
		CreatedAt:      s.clock.Now().UTC(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return Result{}, ErrUserExists
		}
		return Result{}, s.internal("create user", err)
	}

	s.logger.Info("user registered", zap.String("email", emailAddr))
	return Result{Status: StatusCreated, Message: "User registered successfully"}, nil
}

// AuthenticateUser devuelve Result.Message con el email autenticado.
func (s *CredentialService) AuthenticateUser(ctx context.Context, emailAddr, password string) (Result, error) {
	emailAddr = strings.TrimSpace(emailAddr)
	if emailAddr == "" || strings.TrimSpace(password) == "" {
		return Result{}, ErrInvalidInput
	}

	user, err := s.lookup(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) && s.options.HideUnknownUser {
			return Result{}, ErrInvalidCredentials
		}
		return Result{}, err
	}

	ok, err := s.hasher.Verify(ctx, password, user.HashedPassword)
	if err != nil {
		return Result{}, s.internal("verify password", err)
	}
	if !ok {
		return Result{}, ErrInvalidCredentials
	}
	return Result{Status: StatusOK, Message: user.Email}, nil
}

func (s *CredentialService) GetProfile(ctx context.Context, emailAddr string) (domain.Profile, error) {
	emailAddr = strings.TrimSpace(emailAddr)
	if emailAddr == "" {
		return domain.Profile{}, ErrInvalidInput
	}
	profile, err := s.users.GetProfile(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Profile{}, ErrUserNotFound
		}
		return domain.Profile{}, s.internal("load profile", err)
	}
	return profile, nil
}

func (s *CredentialService) ChangePassword(ctx context.Context, emailAddr, oldPassword, newPassword string) (Result, error) {
	emailAddr = strings.TrimSpace(emailAddr)
	if emailAddr == "" {
		return Result{}, ErrInvalidInput
	}
	if err := validateSecret("password", oldPassword); err != nil {
		return Result{}, err
	}
	if err := validateSecret("new_password", newPassword); err != nil {
		return Result{}, err
	}

	user, err := s.lookup(ctx, emailAddr)
	if err != nil {
		return Result{}, err
	}
	ok, err := s.hasher.Verify(ctx, oldPassword, user.HashedPassword)
	if err != nil {
		return Result{}, s.internal("verify password", err)
	}
	if !ok {
		return Result{}, ErrInvalidOldPassword
	}

	hash, err := s.hasher.Hash(ctx, newPassword)
	if err != nil {
		return Result{}, s.internal("hash password", err)
	}
	user.HashedPassword = hash
	if err := s.users.Update(ctx, user); err != nil {
		return Result{}, s.internal("update password", err)
	}
	return Result{Status: StatusOK, Message: "Update password successfully!"}, nil
}

// InitResetPassword emite un token de reset y lo envia por email. Si el
// envio falla el reset pendiente vuelve al estado previo; el resto del
// registro no se toca.
func (s *CredentialService) InitResetPassword(ctx context.Context, emailAddr string) (Result, error) {
	emailAddr = strings.TrimSpace(emailAddr)
	if emailAddr == "" {
		return Result{}, ErrInvalidInput
	}
	previous, err := s.lookup(ctx, emailAddr)
	if err != nil {
		return Result{}, err
	}

	token, user, err := s.resets.Init(ctx, previous)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return Result{}, err
		}
		return Result{}, s.internal("init reset", err)
	}

	body := fmt.Sprintf(
		"Hello %s, your reset password token is %s. This token is valid for only %s.\nThank you, %s",
		user.Name, token, formatWindow(s.resets.Window()), s.options.AppName,
	)
	if err := s.sender.Send(ctx, user.Email, resetEmailSubject, body); err != nil {
		s.logger.Warn("send reset token failed", zap.Error(err), zap.String("email", user.Email))
		if rbErr := s.restorePendingReset(ctx, previous); rbErr != nil {
			s.logger.Error("rollback pending reset failed", zap.Error(rbErr), zap.String("email", user.Email))
		}
		return Result{}, ErrNotificationFailed
	}

	s.logger.Info("reset token sent", zap.String("email", user.Email))
	return Result{Status: StatusOK, Message: "Check mail for instruction"}, nil
}

func (s *CredentialService) FinishResetPassword(ctx context.Context, emailAddr, token, newPassword string) (Result, error) {
	emailAddr = strings.TrimSpace(emailAddr)
	token = strings.TrimSpace(token)
	if emailAddr == "" || token == "" {
		return Result{}, ErrInvalidInput
	}
	if err := validateSecret("new_password", newPassword); err != nil {
		return Result{}, err
	}

	if err := s.resets.Finish(ctx, emailAddr, token, newPassword); err != nil {
		if StatusOf(err) != StatusInternal {
			return Result{}, err
		}
		return Result{}, s.internal("finish reset", err)
	}
	s.logger.Info("password reset", zap.String("email", emailAddr))
	return Result{Status: StatusOK, Message: "Password changed successfully"}, nil
}

func (s *CredentialService) UpdateImageURL(ctx context.Context, emailAddr, reference string) (domain.Profile, error) {
	emailAddr = strings.TrimSpace(emailAddr)
	reference = strings.TrimSpace(reference)
	if emailAddr == "" || reference == "" {
		return domain.Profile{}, ErrInvalidInput
	}
	user, err := s.lookup(ctx, emailAddr)
	if err != nil {
		return domain.Profile{}, err
	}
	user.ImageURL = reference
	if err := s.users.Update(ctx, user); err != nil {
		return domain.Profile{}, s.internal("update image url", err)
	}
	return user.Profile(), nil
}

func (s *CredentialService) IssueSessionToken(emailAddr string) (SessionToken, error) {
	tok, err := s.tokens.Issue(emailAddr)
	if err != nil {
		return SessionToken{}, s.internal("issue session token", err)
	}
	return tok, nil
}

func (s *CredentialService) VerifySessionToken(ctx context.Context, token, expectedEmail string) bool {
	return s.tokens.Verify(ctx, token, expectedEmail)
}

func (s *CredentialService) RevokeSessionToken(ctx context.Context, token string) error {
	err := s.tokens.Revoke(ctx, token)
	if err != nil && StatusOf(err) == StatusInternal {
		return s.internal("revoke session token", err)
	}
	return err
}

// restorePendingReset repone solo los campos temporales de previous sobre una
// lectura fresca del registro.
func (s *CredentialService) restorePendingReset(ctx context.Context, previous domain.User) error {
	current, err := s.users.GetByEmail(ctx, previous.Email)
	if err != nil {
		return err
	}
	current.TempHashedPassword = previous.TempHashedPassword
	current.TempHashedPasswordTime = previous.TempHashedPasswordTime
	return s.users.Update(ctx, current)
}

func (s *CredentialService) lookup(ctx context.Context, emailAddr string) (domain.User, error) {
	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, s.internal("load user", err)
	}
	return user, nil
}

func (s *CredentialService) internal(op string, err error) error {
	s.logger.Error(op+" failed", zap.Error(err))
	return fmt.Errorf("%s: %w", op, err)
}

func formatWindow(d time.Duration) string {
	if d%time.Minute == 0 {
		n := int(d / time.Minute)
		if n == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", n)
	}
	return d.String()
}
