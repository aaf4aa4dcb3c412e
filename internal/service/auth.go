// Package service holds the business rules of the server.
//
//	Handler (HTTP) → Service (rules, orchestration) → Repository (SQLite)
//	                         ↘ githubapi (GitHub REST)
//
// Services take repository interfaces and small capability interfaces in
// their constructors, so tests run them against in-memory fakes. They return
// *apperror.AppError for every failure a caller is expected to handle and
// plain wrapped errors for everything else.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/Ross11547/Automatizacion/internal/apperror"
	"github.com/Ross11547/Automatizacion/internal/auth"
	"github.com/Ross11547/Automatizacion/internal/model"
	"github.com/Ross11547/Automatizacion/internal/repository"
)

// AuthService handles password login.
//
// DEPENDENCIES (injected via NewAuthService):
//   - users      repository.UserRepository  → read users, store rehashed passwords
//   - tokens     *auth.TokenService         → issue session tokens
//   - passwords  *auth.PasswordService      → bcrypt comparison and hashing
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	emailRe   *regexp.Regexp
	domain    string
	logger    *slog.Logger
}

// NewAuthService creates an AuthService that only accepts addresses in domain.
func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	domain string,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		emailRe:   regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@` + regexp.QuoteMeta(domain) + `$`),
		domain:    domain,
		logger:    logger,
	}
}

// AuthResult bundles the user record and the issued session token.
type AuthResult struct {
	User  *model.User
	Token string
}

const badCredentials = "wrong email or password"

// Login checks an institutional email and password and issues a session
// token. Wrong email and wrong password are reported identically.
//
// Accounts seeded before hashing was enforced store the plaintext; a match
// against it is accepted once and the password is rehashed in place.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, apperror.ValidationFailed("correo", "email and password are required")
	}
	if !s.emailRe.MatchString(email) {
		return nil, apperror.ValidationFailed("correo", fmt.Sprintf("email must be institutional (@%s)", s.domain))
	}

	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, apperror.Unauthenticated(badCredentials)
	}
	if err != nil {
		return nil, fmt.Errorf("service/auth: loading user: %w", err)
	}

	needsRehash, err := s.passwords.Check(user.PasswordHash, password)
	if errors.Is(err, auth.ErrPasswordMismatch) {
		return nil, apperror.Unauthenticated(badCredentials)
	}
	if err != nil {
		return nil, fmt.Errorf("service/auth: checking password: %w", err)
	}

	if needsRehash {
		hash, err := s.passwords.Hash(password)
		if err != nil {
			return nil, fmt.Errorf("service/auth: hashing password: %w", err)
		}
		if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
			return nil, fmt.Errorf("service/auth: storing rehashed password: %w", err)
		}
		user.PasswordHash = hash
		s.logger.Info("legacy plaintext password rehashed", slog.String("userID", user.ID))
	}

	token, err := s.tokens.IssueSessionToken(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}

	s.logger.Info("user logged in", slog.String("userID", user.ID))
	return &AuthResult{User: user, Token: token}, nil
}

// GetUserByID returns the user for the given internal ID.
func (s *AuthService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, fmt.Errorf("service/auth: user ID must not be empty")
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching user %s: %w", id, err)
	}
	return user, nil
}
