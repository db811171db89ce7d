package security

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/ManuelReschke/CourseSeat/app/models"
	"github.com/ManuelReschke/CourseSeat/internal/pkg/ratelimit"
)

const (
	tokenIssuer      = "courseseat"
	revokedKeyPrefix = "token:revoked:"
	minSecretLength  = 32
)

var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrRevokedToken = errors.New("token has been revoked")
	ErrWeakSecret   = fmt.Errorf("token secret must be at least %d bytes", minSecretLength)
)

// AdminClaims is the payload of an operator session token.
type AdminClaims struct {
	Email              string `json:"email"`
	Name               string `json:"name"`
	Role               string `json:"role"`
	MustChangePassword bool   `json:"must_change_password"`
	jwt.RegisteredClaims
}

// AdminID returns the numeric admin id carried in the subject.
func (c *AdminClaims) AdminID() (uint, error) {
	id, err := strconv.ParseUint(c.Subject, 10, 64)
	if err != nil || id == 0 {
		return 0, ErrInvalidToken
	}
	return uint(id), nil
}

// CanMutate reports whether the holder may call mutating admin routes.
func (c *AdminClaims) CanMutate() bool {
	return models.RoleCanMutate(c.Role) && !c.MustChangePassword
}

// TokenManager issues, parses and revokes HS256 admin tokens. Revocations
// are kept in the expiring store until the token would have expired anyway.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	store  ratelimit.Store
	now    func() time.Time
}

func NewTokenManager(secret string, ttl time.Duration, store ratelimit.Store) (*TokenManager, error) {
	if len(secret) < minSecretLength {
		return nil, ErrWeakSecret
	}
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &TokenManager{
		secret: []byte(secret),
		ttl:    ttl,
		store:  store,
		now:    time.Now,
	}, nil
}

func (m *TokenManager) TTL() time.Duration {
	return m.ttl
}

func (m *TokenManager) Issue(admin *models.AdminUser) (string, *AdminClaims, error) {
	now := m.now()
	claims := &AdminClaims{
		Email:              admin.Email,
		Name:               admin.Name,
		Role:               admin.Role,
		MustChangePassword: admin.MustChangePassword,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   strconv.FormatUint(uint64(admin.ID), 10),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", nil, err
	}
	return signed, claims, nil
}

// Parse validates signature, algorithm, issuer and expiry, then checks the
// revocation list.
func (m *TokenManager) Parse(ctx context.Context, raw string) (*AdminClaims, error) {
	claims := &AdminClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || !token.Valid || claims.ID == "" {
		return nil, ErrInvalidToken
	}
	if _, err := claims.AdminID(); err != nil {
		return nil, err
	}

	if m.store != nil {
		ttl, err := m.store.TTL(ctx, revokedKeyPrefix+claims.ID)
		if err != nil {
			return nil, err
		}
		if ttl > 0 {
			return nil, ErrRevokedToken
		}
	}
	return claims, nil
}

// Revoke invalidates a token id for the rest of its lifetime.
func (m *TokenManager) Revoke(ctx context.Context, claims *AdminClaims) error {
	if m.store == nil || claims == nil || claims.ExpiresAt == nil {
		return nil
	}
	remaining := claims.ExpiresAt.Sub(m.now())
	if remaining <= 0 {
		return nil
	}
	return m.store.Set(ctx, revokedKeyPrefix+claims.ID, remaining)
}
