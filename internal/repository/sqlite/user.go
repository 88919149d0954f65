package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"

	"booktracker/internal/apperror"
	"booktracker/internal/model"
	"booktracker/internal/repository"
)

// UserStore implements repository.UserRepository on top of the shared
// connection pool. Obtain one from DB.Users().
type UserStore struct {
	db *DB
}

// compile-time check that *UserStore implements repository.UserRepository
var _ repository.UserRepository = (*UserStore)(nil)

// Create inserts a new user. The ID and timestamps are generated here and
// written back into the caller's struct.
//
// Duplicate emails surface as apperror.ErrConflict. The UNIQUE constraint on
// the email column is the authority — two concurrent registrations for the
// same email cannot both succeed, whatever the application layer checked.
func (s *UserStore) Create(ctx context.Context, user *model.User) error {
	now := time.Now()
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := s.db.conn.ExecContext(ctx,
		`INSERT INTO users (id, name, email, password_hash, avatar_path, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Name,
		user.Email,
		user.PasswordHash,
		user.AvatarPath,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		// modernc.org/sqlite reports constraint violations as plain errors;
		// the message is the only discriminator available.
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return apperror.Conflict("user", "email already registered")
		}
		return fmt.Errorf("sqlite: creating user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by their internal ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (s *UserStore) GetByID(ctx context.Context, id string) (*model.User, error) {
	return s.getUser(ctx, `WHERE id = ?`, id)
}

// GetByEmail retrieves a user by email. Emails are compared exactly as
// stored (case-sensitive), matching registration behavior.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.getUser(ctx, `WHERE email = ?`, email)
}

func (s *UserStore) getUser(ctx context.Context, where string, arg any) (*model.User, error) {
	var u model.User

	err := s.db.conn.QueryRowContext(ctx,
		`SELECT id, name, email, password_hash, avatar_path, created_at, updated_at
		 FROM users `+where,
		arg,
	).Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.PasswordHash,
		&u.AvatarPath,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", fmt.Sprint(arg))
		}
		return nil, fmt.Errorf("sqlite: getting user: %w", err)
	}

	return &u, nil
}

// UpdateAvatar sets the avatar file path for a user. Idempotent — setting
// the same path twice is a no-op as far as the caller can tell.
func (s *UserStore) UpdateAvatar(ctx context.Context, id, avatarPath string) error {
	return s.updateUserField(ctx, id, "avatar_path", avatarPath)
}

// UpdatePassword replaces the stored password hash. Used by the reset flow;
// the caller is responsible for hashing.
func (s *UserStore) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	return s.updateUserField(ctx, id, "password_hash", passwordHash)
}

func (s *UserStore) updateUserField(ctx context.Context, id, column, value string) error {
	// column is one of two hard-coded names from the callers above, never
	// user input, so interpolating it is safe.
	result, err := s.db.conn.ExecContext(ctx,
		fmt.Sprintf(`UPDATE users SET %s = ?, updated_at = ? WHERE id = ?`, column),
		value, time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating user %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("user", id)
	}

	return nil
}
