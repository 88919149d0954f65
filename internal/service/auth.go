// Package service — authentication business logic.
//
// AuthService sits between the HTTP handlers and the repository/auth
// utilities:
//
//	AuthHandler (HTTP) → AuthService (business rules) → UserRepository (DB)
//	                   ↘ TokenService (JWT) + PasswordService (bcrypt)
//
// KEY RESPONSIBILITIES:
//   - Registration: validate, hash the password, create the account, issue a token
//   - Login: verify credentials without revealing which half was wrong
//   - Password reset: issue/validate short-lived reset tokens; delivery is
//     behind the Mailer interface because email transport is an external
//     collaborator, not core logic
package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"booktracker/internal/apperror"
	"booktracker/internal/auth"
	"booktracker/internal/model"
	"booktracker/internal/repository"
)

// MinPasswordLength is the shortest password accepted at registration and
// reset. bcrypt's 72-byte ceiling is enforced by the password service.
const MinPasswordLength = 8

// Mailer delivers a password-reset token to a user. The core ships only
// LogMailer; a real SMTP or provider-backed implementation plugs in here.
type Mailer interface {
	SendPasswordReset(ctx context.Context, email, token string) error
}

// LogMailer is a Mailer that just logs the token. Useful in development and
// as the default when no email transport is configured.
type LogMailer struct {
	Logger *slog.Logger
}

func (m *LogMailer) SendPasswordReset(_ context.Context, email, token string) error {
	m.Logger.Info("password reset requested",
		slog.String("email", email),
		slog.String("token", token),
	)
	return nil
}

// AuthService handles the authentication business logic.
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	mailer    Mailer
	logger    *slog.Logger
}

// NewAuthService creates an AuthService with all required dependencies.
// Call this in server.go when wiring the dependency graph.
func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	mailer Mailer,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		mailer:    mailer,
		logger:    logger,
	}
}

// AuthResult is returned by authentication operations. It bundles the user
// record and the issued JWT so the handler can respond in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

// Register creates a new account and signs the user in.
//
// Validation lives here, not in the handler: every caller of the service
// gets the same rules. The plaintext password exists only inside this call —
// it is hashed before the user struct is handed to the repository.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (*AuthResult, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)

	if name == "" {
		return nil, apperror.ValidationFailed("name", "name is required")
	}
	if email == "" {
		return nil, apperror.ValidationFailed("email", "email is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperror.ValidationFailed("email", "email is not a valid address")
	}
	if len(password) < MinPasswordLength {
		return nil, apperror.ValidationFailed("password",
			fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, apperror.ValidationFailed("password", err.Error())
	}

	user := &model.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
	}

	// The repository returns ErrConflict for a duplicate email; let it
	// propagate untouched so the handler maps it to 409.
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user registered",
		slog.String("userID", user.ID),
		slog.String("email", user.Email),
	)

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}

	return &AuthResult{User: user, Token: token}, nil
}

// Login verifies credentials and issues a fresh token.
//
// "No such email" and "wrong password" both come back as the same
// Unauthorized error. Distinguishing them would let an attacker probe which
// addresses have accounts.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.TrimSpace(email)

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, apperror.Unauthorized("invalid email or password")
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		s.logger.Warn("failed login attempt", slog.String("email", email))
		return nil, apperror.Unauthorized("invalid email or password")
	}

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}

	s.logger.Info("user logged in", slog.String("userID", user.ID))

	return &AuthResult{User: user, Token: token}, nil
}

// GetUserByID returns the user for the given internal ID. Used by /api/me
// after the middleware has validated the JWT.
func (s *AuthService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, apperror.ValidationFailed("id", "user ID is required")
	}
	return s.users.GetByID(ctx, id)
}

// UpdateAvatar records the uploaded avatar's file path on the user record.
// The handler owns the actual file write; the service only tracks the path.
func (s *AuthService) UpdateAvatar(ctx context.Context, userID, avatarPath string) error {
	if avatarPath == "" {
		return apperror.ValidationFailed("avatar", "avatar path is required")
	}

	if err := s.users.UpdateAvatar(ctx, userID, avatarPath); err != nil {
		return err
	}

	s.logger.Info("avatar updated", slog.String("userID", userID))
	return nil
}

// ForgotPassword issues a reset token for the account behind email and hands
// it to the mailer.
//
// When the email is unknown this succeeds silently — the caller always gets
// the same answer, so the endpoint cannot be used to enumerate accounts.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		s.logger.Info("password reset requested for unknown email")
		return nil
	}

	token, err := s.tokens.GenerateReset(user.ID)
	if err != nil {
		return fmt.Errorf("service/auth: generating reset token for user %s: %w", user.ID, err)
	}

	if err := s.mailer.SendPasswordReset(ctx, user.Email, token); err != nil {
		return fmt.Errorf("service/auth: sending reset mail: %w", err)
	}

	return nil
}

// ResetPassword validates a reset token and replaces the user's password.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	userID, err := s.tokens.ValidateReset(token)
	if err != nil {
		return apperror.Unauthorized("reset token is invalid or expired")
	}

	if len(newPassword) < MinPasswordLength {
		return apperror.ValidationFailed("password",
			fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}

	hash, err := s.passwords.Hash(newPassword)
	if err != nil {
		return apperror.ValidationFailed("password", err.Error())
	}

	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		return err
	}

	s.logger.Info("password reset completed", slog.String("userID", userID))
	return nil
}
