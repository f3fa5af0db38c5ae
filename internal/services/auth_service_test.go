package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"social-go/internal/auth"
	"social-go/internal/config"
	"social-go/internal/storage"
	"social-go/internal/testutil"
)

func TestRegisterLoginLogout(t *testing.T) {
	db := testutil.NewTestDB(t)
	cfg := config.AuthConfig{JWTSecretKey: "k", JWTExpiry: time.Minute}
	bl := auth.NewMemoryBlacklist()
	svc := NewAuthService(storage.NewGormUserRepository(db), bl, cfg)
	ctx := context.Background()

	user, err := svc.Register(ctx, " alice ", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.NotEqual(t, "secret1", user.PasswordHash)

	_, err = svc.Register(ctx, "alice", "secret2")
	assert.ErrorIs(t, err, ErrUserAlreadyExists)

	_, _, err = svc.Login(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = svc.Login(ctx, "nobody", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	token, _, err := svc.Login(ctx, "alice", "secret1")
	require.NoError(t, err)
	claims, err := auth.ValidateToken(ctx, token, cfg.JWTSecretKey, bl)
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, claims))
	_, err = auth.ValidateToken(ctx, token, cfg.JWTSecretKey, bl)
	assert.ErrorIs(t, err, auth.ErrTokenRevoked)
}

func TestRegisterValidatesInput(t *testing.T) {
	db := testutil.NewTestDB(t)
	svc := NewAuthService(storage.NewGormUserRepository(db), nil, config.AuthConfig{})

	for _, name := range []string{"", "has space", "a/b", strings80Plus()} {
		_, err := svc.Register(context.Background(), name, "secret1")
		assert.ErrorIs(t, err, ErrInvalidUsername, name)
	}
	_, err := svc.Register(context.Background(), "bob", "123")
	assert.ErrorIs(t, err, ErrWeakPassword)
}

func strings80Plus() string {
	b := make([]byte, 81)
	for i := range b {
		b[i] = 'x'
	}
	return string(b)
}
