// Package repository declares the storage interfaces the service layer
// depends on. Concrete implementations live in sub-packages (sqlite).
package repository

import (
	"context"

	"booktracker/internal/model"
)

// UserRepository persists user accounts.
//
// Create must fail with apperror.ErrConflict when the email is already
// registered — the UNIQUE constraint on email is the source of truth.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	UpdateAvatar(ctx context.Context, id, avatarPath string) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
}

// BookRepository persists books and their comments. Every method that reads
// or mutates a book takes the owner's userID and scopes the query by it: a
// request for another user's book behaves exactly like a request for a book
// that does not exist.
type BookRepository interface {
	Create(ctx context.Context, book *model.Book) error
	GetByID(ctx context.Context, userID, bookID string) (*model.Book, error)
	ListByUser(ctx context.Context, userID string) ([]model.Book, error)
	Update(ctx context.Context, book *model.Book) error
	Delete(ctx context.Context, userID, bookID string) error

	AddComment(ctx context.Context, userID, bookID string, comment *model.Comment) error
	UpdateComment(ctx context.Context, userID, bookID, commentID, text string) error
	DeleteComment(ctx context.Context, userID, bookID, commentID string) error

	Stats(ctx context.Context, userID string) (*model.BookStats, error)
}
