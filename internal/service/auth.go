package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dsampson94/community-recruit/internal/apperror"
	"github.com/dsampson94/community-recruit/internal/auth"
	"github.com/dsampson94/community-recruit/internal/model"
	"github.com/dsampson94/community-recruit/internal/repository"
)

// AuthService handles login and the GitHub sign-in flow. Registration via
// GitHub goes through the same UserService create path as a password
// registration, so every account obeys the same store invariants.
type AuthService struct {
	users     repository.UserRepository
	userSvc   *UserService
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger
}

// NewAuthService creates an AuthService.
func NewAuthService(
	users repository.UserRepository,
	userSvc *UserService,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		userSvc:   userSvc,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
	}
}

// AuthResult bundles the authenticated user and the issued token so the
// handler can set the cookie and respond in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

// Login verifies an email/password pair and issues a token. Wrong email and
// wrong password produce the same Forbidden error so the response does not
// reveal which accounts exist.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, apperror.ValidationFailed("credentials", "email and password are required")
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Forbidden("invalid email or password")
		}
		return nil, err
	}
	if err := s.passwords.Verify(user.Password, password); err != nil {
		return nil, apperror.Forbidden("invalid email or password")
	}

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}

	s.logger.Info("user logged in", slog.String("userID", user.ID))
	return &AuthResult{User: user, Token: token}, nil
}

// LoginOrRegisterGitHub signs a GitHub user in, registering them on first
// login. GitHub's numeric id is not stored; the account key is the email,
// falling back to the noreply address GitHub synthesizes for hidden emails.
func (s *AuthService) LoginOrRegisterGitHub(ctx context.Context, ghUser *auth.GitHubUser) (*AuthResult, error) {
	if ghUser == nil {
		return nil, fmt.Errorf("service/auth: GitHub user must not be nil")
	}

	email := ghUser.Email
	if email == "" {
		email = fmt.Sprintf("%s@users.noreply.github.com", ghUser.Login)
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, apperror.ErrNotFound) {
			return nil, err
		}
		user, err = s.registerFromGitHub(ctx, ghUser, email)
		if err != nil {
			return nil, err
		}
	}

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}

	s.logger.Info("user authenticated via GitHub",
		slog.String("userID", user.ID),
		slog.String("login", ghUser.Login),
	)
	return &AuthResult{User: user, Token: token}, nil
}

// GetUserByID returns the user for the given internal id. Used by /api/me
// after the middleware extracts the id from the token.
func (s *AuthService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, apperror.ValidationFailed("id", "user ID is required")
	}
	return s.users.GetUserByID(ctx, id)
}

func (s *AuthService) registerFromGitHub(ctx context.Context, ghUser *auth.GitHubUser, email string) (*model.User, error) {
	// GitHub accounts have no local password; a random one keeps the
	// credential column opaque and unusable for password login.
	random := make([]byte, 32)
	if _, err := rand.Read(random); err != nil {
		return nil, fmt.Errorf("service/auth: generating placeholder password: %w", err)
	}

	username := ghUser.Login
	// The GitHub login may collide with an existing local username; suffix
	// until free rather than failing the sign-in.
	for attempt := 0; ; attempt++ {
		input := CreateUserInput{
			Username:         username,
			Email:            email,
			Password:         hex.EncodeToString(random),
			GitContributions: ghUser.PublicRepos,
		}
		user, err := s.userSvc.Create(ctx, input)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, apperror.ErrConflict) || attempt >= 3 {
			return nil, err
		}
		username = fmt.Sprintf("%s-%d", ghUser.Login, attempt+1)
	}
}
