package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/wallshare/wallpaper-api/internal/auth"
	"github.com/wallshare/wallpaper-api/internal/metrics"
	"github.com/wallshare/wallpaper-api/internal/middleware"
	"github.com/wallshare/wallpaper-api/internal/models"
	"github.com/wallshare/wallpaper-api/internal/store"
	apperrors "github.com/wallshare/wallpaper-api/pkg/errors"
)

const (
	MaxUsernameLength = 50
	MaxPasswordBytes  = 72

	invalidCredentialsMessage = "Invalid username or password"
)

type AuthService struct {
	users   store.CredentialStore
	hasher  auth.PasswordHasher
	tokens  *auth.TokenManager
	timeout time.Duration
	logger  *logrus.Logger

	// verified against when the username is unknown so both login
	// failures cost one hash comparison
	dummyHash string
}

func NewAuthService(users store.CredentialStore, hasher auth.PasswordHasher, tokens *auth.TokenManager, timeout time.Duration, logger *logrus.Logger) (*AuthService, error) {
	dummy, err := hasher.Hash(uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("failed to prepare login hash: %w", err)
	}

	return &AuthService{
		users:     users,
		hasher:    hasher,
		tokens:    tokens,
		timeout:   timeout,
		logger:    logger,
		dummyHash: dummy,
	}, nil
}

// Register creates a user. The username is stored trimmed.
func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	ctx, span := middleware.StartSpan(ctx, "auth.register")
	defer span.End()

	username, err := validateRegistration(req)
	if err != nil {
		metrics.RecordAuthEvent("register", false)
		return nil, err
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	user := &models.User{
		UserID:       uuid.NewString(),
		Username:     username,
		PasswordHash: hash,
	}

	err = storeExec(ctx, s.timeout, "create_user", func(ctx context.Context) error {
		return s.users.CreateUser(ctx, user)
	})
	if err != nil {
		metrics.RecordAuthEvent("register", false)
		middleware.RecordError(span, err)
		if errors.Is(err, store.ErrUserExists) {
			return nil, apperrors.Conflict("Username already exists", err)
		}
		return nil, storeError(err)
	}

	metrics.RecordAuthEvent("register", true)
	s.logger.WithFields(logrus.Fields{
		"user_id":  user.UserID,
		"username": user.Username,
	}).Info("User registered")

	return user, nil
}

// Login never tells an unknown username apart from a wrong password.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	ctx, span := middleware.StartSpan(ctx, "auth.login")
	defer span.End()

	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		metrics.RecordAuthEvent("login", false)
		return nil, apperrors.Validation("Username and password are required")
	}

	user, err := storeCall(ctx, s.timeout, "get_user", func(ctx context.Context) (*models.User, error) {
		return s.users.GetUserByUsername(ctx, username)
	})
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.hasher.Verify(req.Password, s.dummyHash)
		s.logger.WithField("username", username).Warn("Login for unknown user")
		metrics.RecordAuthEvent("login", false)
		return nil, apperrors.NewAppError(apperrors.CodeInvalidCredentials, invalidCredentialsMessage, nil)
	case err != nil:
		middleware.RecordError(span, err)
		return nil, storeError(err)
	}

	if !s.hasher.Verify(req.Password, user.PasswordHash) {
		s.logger.WithField("user_id", user.UserID).Warn("Login with wrong password")
		metrics.RecordAuthEvent("login", false)
		return nil, apperrors.NewAppError(apperrors.CodeInvalidCredentials, invalidCredentialsMessage, nil)
	}

	token, _, err := s.tokens.Issue(user.UserID, user.Username)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	metrics.RecordAuthEvent("login", true)
	s.logger.WithField("user_id", user.UserID).Info("User logged in")

	return &models.AuthResponse{
		Token:     token,
		UserID:    user.UserID,
		Username:  user.Username,
		ExpiresIn: int(s.tokens.TTL().Seconds()),
	}, nil
}

func validateRegistration(req models.RegisterRequest) (string, error) {
	username := strings.TrimSpace(req.Username)
	switch {
	case username == "":
		return "", apperrors.Validation("Username is required")
	case utf8.RuneCountInString(username) > MaxUsernameLength:
		return "", apperrors.Validation(fmt.Sprintf("Username must be at most %d characters", MaxUsernameLength))
	case req.Password == "":
		return "", apperrors.Validation("Password is required")
	case len(req.Password) > MaxPasswordBytes:
		return "", apperrors.Validation(fmt.Sprintf("Password must be at most %d bytes", MaxPasswordBytes))
	}
	return username, nil
}
