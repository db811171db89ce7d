package security

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/CourseSeat/app/models"
	"github.com/ManuelReschke/CourseSeat/internal/pkg/ratelimit"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func testAdmin() *models.AdminUser {
	return &models.AdminUser{
		ID:                 42,
		Email:              "ops@example.com",
		Name:               "Ops",
		Role:               models.ROLE_ADMIN,
		MustChangePassword: true,
	}
}

func newManager(t *testing.T) (*TokenManager, *ratelimit.FakeClock) {
	t.Helper()
	clock := ratelimit.NewFakeClock(time.Now())
	m, err := NewTokenManager(testSecret, 7*24*time.Hour, ratelimit.NewMemoryStore(clock))
	require.NoError(t, err)
	m.now = clock.Now
	return m, clock
}

func TestTokenManager_IssueAndParse(t *testing.T) {
	m, _ := newManager(t)

	raw, issued, err := m.Issue(testAdmin())
	require.NoError(t, err)
	assert.NotEmpty(t, issued.ID)

	claims, err := m.Parse(context.Background(), raw)
	require.NoError(t, err)
	id, err := claims.AdminID()
	require.NoError(t, err)
	assert.Equal(t, uint(42), id)
	assert.Equal(t, "ops@example.com", claims.Email)
	assert.Equal(t, models.ROLE_ADMIN, claims.Role)
	assert.True(t, claims.MustChangePassword)
	assert.False(t, claims.CanMutate())
}

func TestTokenManager_RejectsExpiredAndTampered(t *testing.T) {
	m, clock := newManager(t)
	raw, _, err := m.Issue(testAdmin())
	require.NoError(t, err)

	parts := strings.Split(raw, ".")
	require.Len(t, parts, 3)
	_, err = m.Parse(context.Background(), parts[0]+"."+parts[1]+".AAAA")
	assert.ErrorIs(t, err, ErrInvalidToken)

	other, err := NewTokenManager(strings.Repeat("x", 32), time.Hour, nil)
	require.NoError(t, err)
	_, err = other.Parse(context.Background(), raw)
	assert.ErrorIs(t, err, ErrInvalidToken)

	clock.Advance(8 * 24 * time.Hour)
	_, err = m.Parse(context.Background(), raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenManager_RejectsOtherAlgorithms(t *testing.T) {
	m, _ := newManager(t)
	claims := &AdminClaims{
		Role: models.ROLE_SUPER_ADMIN,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   "1",
			ID:        "jti",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = m.Parse(context.Background(), raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenManager_Revoke(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()
	raw, claims, err := m.Issue(testAdmin())
	require.NoError(t, err)

	require.NoError(t, m.Revoke(ctx, claims))
	_, err = m.Parse(ctx, raw)
	assert.ErrorIs(t, err, ErrRevokedToken)

	other, _, err := m.Issue(testAdmin())
	require.NoError(t, err)
	_, err = m.Parse(ctx, other)
	assert.NoError(t, err)
}

func TestNewTokenManager_WeakSecret(t *testing.T) {
	_, err := NewTokenManager("short", time.Hour, nil)
	assert.ErrorIs(t, err, ErrWeakSecret)
}

func TestValidatePassword(t *testing.T) {
	assert.NoError(t, ValidatePassword("Str0ng!pass"))
	for _, weak := range []string{"Sh0rt!", "alllower1!", "ALLUPPER1!", "NoDigits!!", "NoSpecial12"} {
		assert.ErrorIs(t, ValidatePassword(weak), ErrWeakPassword, weak)
	}
}
