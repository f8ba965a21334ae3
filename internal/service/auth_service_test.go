package service

import (
	"context"
	"testing"

	"backoffice/internal/apperr"
	"backoffice/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthFixture(t *testing.T) AuthService {
	t.Helper()
	db := newTestDB(t)
	return NewAuthService(repository.NewUserRepository(db), []byte("test-secret"))
}

func TestRegisterAndLogin(t *testing.T) {
	auth := newAuthFixture(t)

	user, err := auth.Register(context.Background(), RegisterRequest{
		Name:     "Erin",
		Email:    "erin@example.com",
		Password: "password123",
	})
	require.NoError(t, err)
	assert.NotEqual(t, "password123", user.Password)

	token, err := auth.Login(context.Background(), LoginRequest{
		Email:    "erin@example.com",
		Password: "password123",
	})
	require.NoError(t, err)
	require.NotEmpty(t, token.Token)

	parsed, err := jwt.Parse(token.Token, func(t *jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	})
	require.NoError(t, err)
	claims, ok := parsed.Claims.(jwt.MapClaims)
	require.True(t, ok)
	assert.Equal(t, user.ID.String(), claims["sub"])
}

func TestRegister_DuplicateEmailRejected(t *testing.T) {
	auth := newAuthFixture(t)

	_, err := auth.Register(context.Background(), RegisterRequest{
		Name: "Erin", Email: "erin@example.com", Password: "password123",
	})
	require.NoError(t, err)

	_, err = auth.Register(context.Background(), RegisterRequest{
		Name: "Impostor", Email: "erin@example.com", Password: "different",
	})
	require.Error(t, err)
	assert.Equal(t, apperr.CodeAlreadyExists, apperr.CodeOf(err))
}

func TestCurrentUser_ResolvesTokenSubject(t *testing.T) {
	auth := newAuthFixture(t)

	user, err := auth.Register(context.Background(), RegisterRequest{
		Name: "Erin", Email: "erin@example.com", Password: "password123",
	})
	require.NoError(t, err)

	got, err := auth.CurrentUser(context.Background(), user.ID.String())
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.Equal(t, "erin@example.com", got.Email)

	_, err = auth.CurrentUser(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = auth.CurrentUser(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	auth := newAuthFixture(t)

	_, err := auth.Register(context.Background(), RegisterRequest{
		Name: "Erin", Email: "erin@example.com", Password: "password123",
	})
	require.NoError(t, err)

	_, err = auth.Login(context.Background(), LoginRequest{
		Email: "erin@example.com", Password: "wrong",
	})
	assert.ErrorIs(t, err, apperr.ErrInvalidCredentials)

	_, err = auth.Login(context.Background(), LoginRequest{
		Email: "unknown@example.com", Password: "password123",
	})
	assert.ErrorIs(t, err, apperr.ErrInvalidCredentials)
}
