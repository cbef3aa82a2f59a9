package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/ajharbinger/crm-pipeline/internal/auth"
	"github.com/ajharbinger/crm-pipeline/internal/errors"
	"github.com/ajharbinger/crm-pipeline/internal/models"
)

func TestAuthService_RegisterThenLogin(t *testing.T) {
	defer auth.SetCostForTesting(bcrypt.MinCost)()
	f := newFixture()
	ctx := context.Background()

	reg, err := f.services.Auth.Register(ctx, models.RegisterRequest{Email: " Rep@Example.com ", Password: "correct-horse"})
	require.NoError(t, err)
	assert.Equal(t, "rep@example.com", reg.User.Email)
	assert.Equal(t, "user", reg.User.Role)
	assert.NotEmpty(t, reg.Token)
	assert.NotEmpty(t, reg.RefreshToken)

	login, err := f.services.Auth.Login(ctx, models.LoginRequest{Email: "REP@example.com", Password: "correct-horse"})
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, login.User.ID)

	user, err := f.services.Auth.ValidateToken(ctx, login.Token)
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, user.ID)
}

func TestAuthService_LoginFailuresLookAlike(t *testing.T) {
	defer auth.SetCostForTesting(bcrypt.MinCost)()
	f := newFixture()
	ctx := context.Background()
	_, err := f.services.Auth.Register(ctx, models.RegisterRequest{Email: "rep@example.com", Password: "correct-horse"})
	require.NoError(t, err)

	_, wrongPassword := f.services.Auth.Login(ctx, models.LoginRequest{Email: "rep@example.com", Password: "battery-staple"})
	_, unknownUser := f.services.Auth.Login(ctx, models.LoginRequest{Email: "nobody@example.com", Password: "battery-staple"})

	assert.Equal(t, errors.ErrCodeUnauthorized, errors.Code(wrongPassword))
	assert.Equal(t, errors.ErrCodeUnauthorized, errors.Code(unknownUser))
	assert.Equal(t, wrongPassword.Error(), unknownUser.Error())
}

func TestAuthService_CreateUser(t *testing.T) {
	defer auth.SetCostForTesting(bcrypt.MinCost)()
	f := newFixture()
	ctx := context.Background()

	admin, err := f.services.Auth.CreateUser(ctx, models.RegisterRequest{Email: "admin@example.com", Password: "long-enough"}, "admin")
	require.NoError(t, err)
	assert.True(t, admin.IsAdmin())
	assert.True(t, auth.CheckPassword("long-enough", admin.PasswordHash))

	_, err = f.services.Auth.CreateUser(ctx, models.RegisterRequest{Email: "admin@example.com", Password: "long-enough"}, "admin")
	assert.Equal(t, errors.ErrCodeConflict, errors.Code(err))

	_, err = f.services.Auth.CreateUser(ctx, models.RegisterRequest{Email: "x@example.com", Password: "short"}, "user")
	assert.Equal(t, errors.ErrCodeValidationError, errors.Code(err))

	_, err = f.services.Auth.CreateUser(ctx, models.RegisterRequest{Email: "x@example.com", Password: "long-enough"}, "root")
	assert.Equal(t, errors.ErrCodeInvalidInput, errors.Code(err))
}

func TestAuthService_RefreshToken(t *testing.T) {
	defer auth.SetCostForTesting(bcrypt.MinCost)()
	f := newFixture()
	ctx := context.Background()
	reg, err := f.services.Auth.Register(ctx, models.RegisterRequest{Email: "rep@example.com", Password: "correct-horse"})
	require.NoError(t, err)

	refreshed, err := f.services.Auth.RefreshToken(ctx, reg.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, refreshed.User.ID)

	_, err = f.services.Auth.RefreshToken(ctx, reg.Token)
	assert.Equal(t, errors.ErrCodeUnauthorized, errors.Code(err))
}
