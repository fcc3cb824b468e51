package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("letmein"), bcrypt.MinCost)
	require.NoError(t, err)
	return NewService("test-secret", time.Hour, "admin", string(hash))
}

func TestLogin(t *testing.T) {
	svc := newTestService(t)

	t.Run("valid credentials", func(t *testing.T) {
		resp, err := svc.Login(&LoginRequest{Username: "admin", Password: "letmein"})
		require.NoError(t, err)
		assert.NotEmpty(t, resp.Token)
		assert.Greater(t, resp.ExpiresAt, time.Now().Unix())

		claims, err := svc.ValidateToken(resp.Token)
		require.NoError(t, err)
		assert.Equal(t, "admin", claims.Username)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := svc.Login(&LoginRequest{Username: "admin", Password: "nope"})
		assert.True(t, errors.Is(err, ErrInvalidCredentials))
	})

	t.Run("wrong user", func(t *testing.T) {
		_, err := svc.Login(&LoginRequest{Username: "root", Password: "letmein"})
		assert.True(t, errors.Is(err, ErrInvalidCredentials))
	})

	t.Run("not configured", func(t *testing.T) {
		_, err := NewService("", time.Hour, "admin", "").Login(&LoginRequest{Username: "admin", Password: "x"})
		assert.True(t, errors.Is(err, ErrDisabled))
	})
}

func TestValidateToken(t *testing.T) {
	svc := newTestService(t)

	t.Run("expired", func(t *testing.T) {
		resp, err := svc.GenerateToken("admin")
		require.NoError(t, err)

		svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		defer func() { svc.now = time.Now }()

		_, err = svc.ValidateToken(resp.Token)
		assert.True(t, errors.Is(err, ErrInvalidToken))
	})

	t.Run("other secret", func(t *testing.T) {
		other := NewService("another-secret", time.Hour, "admin", svc.adminHash)
		resp, err := other.GenerateToken("admin")
		require.NoError(t, err)

		_, err = svc.ValidateToken(resp.Token)
		assert.True(t, errors.Is(err, ErrInvalidToken))
	})

	t.Run("other user", func(t *testing.T) {
		resp, err := svc.GenerateToken("mallory")
		require.NoError(t, err)

		_, err = svc.ValidateToken(resp.Token)
		assert.True(t, errors.Is(err, ErrInvalidToken))
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := svc.ValidateToken("not.a.jwt")
		assert.Error(t, err)
	})
}

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("hunter2")
	require.NoError(t, err)
	assert.True(t, CheckPassword("hunter2", hash))
	assert.False(t, CheckPassword("hunter3", hash))
}
