package services

import (
	"context"
	stderrors "errors"
	"strings"

	"github.com/ajharbinger/crm-pipeline/internal/auth"
	"github.com/ajharbinger/crm-pipeline/internal/errors"
	"github.com/ajharbinger/crm-pipeline/internal/models"
	"github.com/ajharbinger/crm-pipeline/internal/repository"
)

// authServiceImpl implements AuthService
type authServiceImpl struct {
	Dependencies
}

// newAuthService creates a new auth service implementation
func newAuthService(deps Dependencies) *authServiceImpl {
	return &authServiceImpl{Dependencies: deps}
}

// Login authenticates a user and returns a token pair
func (s *authServiceImpl) Login(ctx context.Context, req models.LoginRequest) (*models.TokenResponse, error) {
	user, err := s.Repos.Users.GetByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, errors.Unauthorized("invalid credentials", nil).WithOperation("Login")
		}
		return nil, repoError(err, "user", "Login")
	}

	if !auth.CheckPassword(req.Password, user.PasswordHash) {
		s.Logger.Warn("Failed login attempt", "email", user.Email)
		return nil, errors.Unauthorized("invalid credentials", nil).WithOperation("Login")
	}

	return s.issueTokens(user, "Login")
}

// Register creates a regular user account and signs it in
func (s *authServiceImpl) Register(ctx context.Context, req models.RegisterRequest) (*models.TokenResponse, error) {
	user, err := s.CreateUser(ctx, req, string(models.RoleUser))
	if err != nil {
		return nil, err
	}
	return s.issueTokens(user, "Register")
}

// CreateUser stores a user with the given role. It is also used by the CLI
// to bootstrap administrators.
func (s *authServiceImpl) CreateUser(ctx context.Context, req models.RegisterRequest, role string) (*models.User, error) {
	email := normalizeEmail(req.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, errors.ValidationError("a valid email is required", nil).WithOperation("CreateUser")
	}
	if len(req.Password) < 8 {
		return nil, errors.ValidationError("password must be at least 8 characters", nil).WithOperation("CreateUser")
	}
	if role != string(models.RoleUser) && role != string(models.RoleAdmin) {
		return nil, errors.InvalidInput("invalid role: "+role, nil).WithOperation("CreateUser")
	}

	if existing, err := s.Repos.Users.GetByEmail(ctx, email); err == nil && existing != nil {
		return nil, errors.Conflict("user with this email already exists", nil).WithOperation("CreateUser")
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, errors.InternalError("failed to hash password", err).WithOperation("CreateUser")
	}

	user := &models.User{
		Email:        email,
		PasswordHash: hash,
		Role:         role,
	}
	if err := s.Repos.Users.Create(ctx, user); err != nil {
		return nil, repoError(err, "user", "CreateUser")
	}
	s.Logger.Info("User created", "user_id", user.ID, "role", role)
	return user, nil
}

// ValidateToken validates an access token and returns the user
func (s *authServiceImpl) ValidateToken(ctx context.Context, token string) (*models.User, error) {
	claims, err := s.JWT.ValidateToken(token)
	if err != nil {
		return nil, errors.Unauthorized("invalid token", err).WithOperation("ValidateToken")
	}

	// The user must still exist.
	user, err := s.Repos.Users.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, errors.Unauthorized("user not found", err).WithOperation("ValidateToken")
	}
	return user, nil
}

// RefreshToken exchanges a refresh token for a new token pair
func (s *authServiceImpl) RefreshToken(ctx context.Context, refreshToken string) (*models.TokenResponse, error) {
	claims, err := s.JWT.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, errors.Unauthorized("invalid refresh token", err).WithOperation("RefreshToken")
	}

	user, err := s.Repos.Users.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, errors.Unauthorized("user not found", err).WithOperation("RefreshToken")
	}
	return s.issueTokens(user, "RefreshToken")
}

func (s *authServiceImpl) issueTokens(user *models.User, operation string) (*models.TokenResponse, error) {
	claims := auth.Claims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
	}

	token, expiresAt, err := s.JWT.GenerateToken(claims)
	if err != nil {
		return nil, errors.InternalError("failed to generate token", err).WithOperation(operation)
	}
	refreshToken, _, err := s.JWT.GenerateRefreshToken(claims)
	if err != nil {
		return nil, errors.InternalError("failed to generate refresh token", err).WithOperation(operation)
	}

	return &models.TokenResponse{
		Token:        token,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
		User:         user,
	}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
