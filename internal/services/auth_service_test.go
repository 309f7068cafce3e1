package services

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"biblio/internal/repositories"
)

func newTestAuth(t *testing.T) (*authService, repositories.UserRepository) {
	t.Helper()
	db := newTestDB(t)
	users := repositories.NewUserRepository(db)
	svc := NewAuthService(db, users, "test-secret", time.Hour, zaptest.NewLogger(t)).(*authService)
	svc.now = func() time.Time { return testNow }
	return svc, users
}

var testAdmin = AdminAccount{Username: "admin", Email: "admin@biblio.local", Password: "admin123"}

func TestEnsureDefaultAdmin_OnlyOnce(t *testing.T) {
	svc, users := newTestAuth(t)

	require.NoError(t, svc.EnsureDefaultAdmin(context.Background(), testAdmin))
	require.NoError(t, svc.EnsureDefaultAdmin(context.Background(), AdminAccount{Username: "other", Email: "o@x.io", Password: "x"}))

	n, err := users.Count(nil)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	u, err := users.GetByIdentifier(nil, "admin")
	require.NoError(t, err)
	assert.NotEqual(t, "admin123", u.PasswordHash)
	assert.Equal(t, "admin", u.Role)
}

func TestLogin(t *testing.T) {
	svc, _ := newTestAuth(t)
	require.NoError(t, svc.EnsureDefaultAdmin(context.Background(), testAdmin))

	for _, id := range []string{"admin", "admin@biblio.local"} {
		res, err := svc.Login(context.Background(), id, "admin123")
		require.NoError(t, err, id)
		assert.NotEmpty(t, res.AccessToken)
		assert.Equal(t, "admin", res.User.Username)

		claims, err := svc.Verify(res.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, res.User.ID.String(), claims.Subject)
		assert.Equal(t, "admin", claims.Role)
		assert.True(t, claims.ExpiresAt.Time.Equal(testNow.Add(time.Hour)))
	}

	_, err := svc.Login(context.Background(), "admin", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Equal(t, "unauthorized", KindOf(err))

	_, err = svc.Login(context.Background(), "nobody", "admin123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestVerify_Rejects(t *testing.T) {
	svc, _ := newTestAuth(t)
	require.NoError(t, svc.EnsureDefaultAdmin(context.Background(), testAdmin))
	res, err := svc.Login(context.Background(), "admin", "admin123")
	require.NoError(t, err)

	svc.now = func() time.Time { return testNow.Add(2 * time.Hour) }
	_, err = svc.Verify(res.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidCredentials, "expired")
	svc.now = func() time.Time { return testNow }

	_, err = svc.Verify(res.AccessToken + "x")
	assert.ErrorIs(t, err, ErrInvalidCredentials, "tampered")

	_, err = svc.Verify("garbage")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	foreign, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(testNow.Add(time.Hour))},
	}).SignedString([]byte("other-secret"))
	require.NoError(t, err)
	_, err = svc.Verify(foreign)
	assert.ErrorIs(t, err, ErrInvalidCredentials, "wrong key")
}
