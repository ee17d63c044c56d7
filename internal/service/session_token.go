package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultSessionTTL es la vida fija de un token de sesion: 604800 s.
const DefaultSessionTTL = 7 * 24 * time.Hour

const sessionIssuer = "cred-lifecycle"

var errSigningKeyMissing = errors.New("session signing key not configured")

// SessionToken es un token emitido junto con su vencimiento.
type SessionToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionClaims lleva la identidad autenticada (el email).
type SessionClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// SessionTokenCodec emite y valida tokens de sesion firmados con HS256.
// Sin RevocationStore el codec es completamente stateless.
type SessionTokenCodec struct {
	secret  []byte
	ttl     time.Duration
	clock   Clock
	revoked RevocationStore
	logger  *zap.Logger
}

func NewSessionTokenCodec(secret string, ttl time.Duration, clock Clock, revoked RevocationStore, logger *zap.Logger) *SessionTokenCodec {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if clock == nil {
		clock = SystemClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionTokenCodec{
		secret:  []byte(secret),
		ttl:     ttl,
		clock:   clock,
		revoked: revoked,
		logger:  logger,
	}
}

func (c *SessionTokenCodec) Issue(email string) (SessionToken, error) {
	if len(c.secret) == 0 {
		return SessionToken{}, errSigningKeyMissing
	}
	email = strings.TrimSpace(email)
	if email == "" {
		return SessionToken{}, ErrTokenInvalid
	}
	// exp e iat viajan en segundos enteros; la emision se fija al segundo para
	// que la vida del token sea exactamente ttl.
	now := c.clock.Now().Truncate(time.Second)
	expiresAt := now.Add(c.ttl)
	claims := SessionClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    sessionIssuer,
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return SessionToken{}, err
	}
	return SessionToken{Token: signed, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// Parse valida firma, emisor, vencimiento y revocacion.
func (c *SessionTokenCodec) Parse(ctx context.Context, token string) (SessionClaims, error) {
	if len(c.secret) == 0 || strings.TrimSpace(token) == "" {
		return SessionClaims{}, ErrTokenInvalid
	}
	var claims SessionClaims
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(sessionIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.clock.Now),
	)
	_, err := parser.ParseWithClaims(token, &claims, func(_ *jwt.Token) (any, error) {
		return c.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return SessionClaims{}, ErrTokenExpired
		}
		return SessionClaims{}, ErrTokenInvalid
	}
	if claims.Email == "" || claims.Subject != claims.Email {
		return SessionClaims{}, ErrTokenInvalid
	}
	if c.revoked != nil && claims.ID != "" {
		revoked, err := c.revoked.IsRevoked(ctx, claims.ID)
		if err != nil {
			c.logger.Warn("revocation lookup failed", zap.Error(err))
			return SessionClaims{}, ErrTokenInvalid
		}
		if revoked {
			return SessionClaims{}, ErrTokenRevoked
		}
	}
	return claims, nil
}

// Verify acepta el token solo si es valido y pertenece a expectedEmail.
func (c *SessionTokenCodec) Verify(ctx context.Context, token, expectedEmail string) bool {
	claims, err := c.Parse(ctx, token)
	if err != nil {
		return false
	}
	return expectedEmail != "" && claims.Email == expectedEmail
}

// Revoke invalida el token hasta su vencimiento natural.
func (c *SessionTokenCodec) Revoke(ctx context.Context, token string) error {
	claims, err := c.Parse(ctx, token)
	if err != nil {
		return err
	}
	if c.revoked == nil || claims.ID == "" {
		return ErrTokenInvalid
	}
	ttl := claims.ExpiresAt.Time.Sub(c.clock.Now())
	return c.revoked.Revoke(ctx, claims.ID, ttl)
}
