// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces rules, orchestrates
//	Repository (Data layer)  → reads/writes to the database
//
// BookService takes a repository.BookRepository (interface), not a concrete
// *sqlite.DB. In tests we pass an in-memory mock; in production server.go
// passes the sqlite implementation. The service itself never imports either.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"booktracker/internal/apperror"
	"booktracker/internal/model"
	"booktracker/internal/repository"
)

// Validation constants.
const (
	MaxTitleLength   = 300
	MaxAuthorLength  = 200
	MaxCommentLength = 2000
	MinRating        = 0
	MaxRating        = 5
)

// statusUpdateAllowList is the full set of fields PUT /api/books/{id} may
// carry. Everything else — rating, isForSale, and above all any attempt to
// reassign ownership — is rejected, even when a valid status rides along.
var statusUpdateAllowList = map[string]bool{
	"status": true,
}

// BookService handles business logic for the book collection. All methods
// take the owner's userID as their first domain argument; the service never
// trusts IDs arriving in a request body.
type BookService struct {
	repo   repository.BookRepository
	logger *slog.Logger
}

// NewBookService creates a new BookService.
func NewBookService(repo repository.BookRepository, logger *slog.Logger) *BookService {
	return &BookService{
		repo:   repo,
		logger: logger,
	}
}

// BookDraft carries the caller-supplied fields for a new book. Ownership is
// NOT part of the draft — the service assigns it from the authenticated user.
type BookDraft struct {
	Title  string
	Author string
	Cover  string
	Status model.Status
}

// List returns all books owned by userID, newest first.
func (s *BookService) List(ctx context.Context, userID string) ([]model.Book, error) {
	books, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		s.logger.Error("failed to list books",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("listing books: %w", err)
	}
	return books, nil
}

// Create validates and saves a new book for userID.
// An empty status defaults to "to-read" (a freshly added book is something
// you intend to read).
func (s *BookService) Create(ctx context.Context, userID string, draft BookDraft) (*model.Book, error) {
	title := strings.TrimSpace(draft.Title)
	author := strings.TrimSpace(draft.Author)

	if title == "" {
		return nil, apperror.ValidationFailed("title", "title is required")
	}
	if len(title) > MaxTitleLength {
		return nil, apperror.ValidationFailed("title",
			fmt.Sprintf("title must be %d characters or less", MaxTitleLength))
	}
	if author == "" {
		return nil, apperror.ValidationFailed("author", "author is required")
	}
	if len(author) > MaxAuthorLength {
		return nil, apperror.ValidationFailed("author",
			fmt.Sprintf("author must be %d characters or less", MaxAuthorLength))
	}

	status := draft.Status
	if status == "" {
		status = model.StatusToRead
	}
	if !status.Valid() {
		return nil, apperror.ValidationFailed("status",
			fmt.Sprintf("status must be one of: %s, %s, %s, %s",
				model.StatusToRead, model.StatusInProgress, model.StatusRead, model.StatusToBuy))
	}

	book := &model.Book{
		Title:  title,
		Author: author,
		Cover:  strings.TrimSpace(draft.Cover),
		Status: status,
		UserID: userID,
	}

	if err := s.repo.Create(ctx, book); err != nil {
		s.logger.Error("failed to create book",
			slog.String("title", title),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating book: %w", err)
	}

	s.logger.Info("book created",
		slog.String("id", book.ID),
		slog.String("title", book.Title),
		slog.String("userID", userID),
	)

	return book, nil
}

// Delete removes a book owned by userID. A non-owner's request surfaces as
// the same not-found the owner of a bogus ID would see.
func (s *BookService) Delete(ctx context.Context, userID, bookID string) error {
	if bookID == "" {
		return apperror.ValidationFailed("id", "book ID is required")
	}

	if err := s.repo.Delete(ctx, userID, bookID); err != nil {
		return err
	}

	s.logger.Info("book deleted", slog.String("id", bookID), slog.String("userID", userID))
	return nil
}

// UpdateStatus applies the allow-listed general update to a book.
//
// OVER-POSTING DEFENSE:
// fields is the decoded request body as-is. Every key is checked against the
// allow-list BEFORE anything is applied, so a body like
// {"status":"read","userId":"attacker"} fails entirely — the valid status
// does not rescue the request.
func (s *BookService) UpdateStatus(ctx context.Context, userID, bookID string, fields map[string]any) (*model.Book, error) {
	if bookID == "" {
		return nil, apperror.ValidationFailed("id", "book ID is required")
	}

	for key := range fields {
		if !statusUpdateAllowList[key] {
			return nil, apperror.ValidationFailed(key,
				fmt.Sprintf("field %q cannot be updated through this operation", key))
		}
	}

	raw, ok := fields["status"]
	if !ok {
		return nil, apperror.ValidationFailed("status", "status is required")
	}
	statusStr, ok := raw.(string)
	if !ok {
		return nil, apperror.ValidationFailed("status", "status must be a string")
	}

	status := model.Status(statusStr)
	if !status.Valid() {
		return nil, apperror.ValidationFailed("status",
			fmt.Sprintf("unknown status %q", statusStr))
	}

	book, err := s.repo.GetByID(ctx, userID, bookID)
	if err != nil {
		return nil, err
	}

	// Any valid status is reachable from any other: the reading cycle shown
	// in the UI is a client convenience, not a server-side state machine.
	book.Status = status
	if err := s.repo.Update(ctx, book); err != nil {
		return nil, err
	}

	s.logger.Info("book status updated",
		slog.String("id", bookID),
		slog.String("status", string(status)),
	)

	return book, nil
}

// UpdateRating sets a book's rating (0–5; 0 clears it).
func (s *BookService) UpdateRating(ctx context.Context, userID, bookID string, rating int) (*model.Book, error) {
	if bookID == "" {
		return nil, apperror.ValidationFailed("id", "book ID is required")
	}
	if rating < MinRating || rating > MaxRating {
		return nil, apperror.ValidationFailed("rating",
			fmt.Sprintf("rating must be between %d and %d", MinRating, MaxRating))
	}

	book, err := s.repo.GetByID(ctx, userID, bookID)
	if err != nil {
		return nil, err
	}

	book.Rating = rating
	if err := s.repo.Update(ctx, book); err != nil {
		return nil, err
	}

	return book, nil
}

// ToggleForSale flips a book's sale flag.
//
// BUSINESS RULE: you can only sell a book you own. A book still on the
// wishlist (to-buy) cannot be listed for sale; the owner has to acquire it
// (move it to any owned status) first.
func (s *BookService) ToggleForSale(ctx context.Context, userID, bookID string) (*model.Book, error) {
	if bookID == "" {
		return nil, apperror.ValidationFailed("id", "book ID is required")
	}

	book, err := s.repo.GetByID(ctx, userID, bookID)
	if err != nil {
		return nil, err
	}

	if !book.Status.Owned() {
		return nil, apperror.ValidationFailed("status",
			"a book on the wishlist cannot be listed for sale")
	}

	book.IsForSale = !book.IsForSale
	if err := s.repo.Update(ctx, book); err != nil {
		return nil, err
	}

	s.logger.Info("book sale flag toggled",
		slog.String("id", bookID),
		slog.Bool("isForSale", book.IsForSale),
	)

	return book, nil
}

// AddComment appends a comment to a book and returns the updated comment
// list. commenterName is the authenticated user's display name, denormalized
// onto the comment at creation time.
func (s *BookService) AddComment(ctx context.Context, userID, bookID, text, commenterName string) ([]model.Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperror.ValidationFailed("text", "comment text is required")
	}
	if len(text) > MaxCommentLength {
		return nil, apperror.ValidationFailed("text",
			fmt.Sprintf("comment must be %d characters or less", MaxCommentLength))
	}

	comment := &model.Comment{Text: text, Name: commenterName}
	if err := s.repo.AddComment(ctx, userID, bookID, comment); err != nil {
		return nil, err
	}

	return s.commentsOf(ctx, userID, bookID)
}

// UpdateComment replaces a comment's text and returns the updated list.
func (s *BookService) UpdateComment(ctx context.Context, userID, bookID, commentID, text string) ([]model.Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperror.ValidationFailed("text", "comment text is required")
	}
	if len(text) > MaxCommentLength {
		return nil, apperror.ValidationFailed("text",
			fmt.Sprintf("comment must be %d characters or less", MaxCommentLength))
	}

	if err := s.repo.UpdateComment(ctx, userID, bookID, commentID, text); err != nil {
		return nil, err
	}

	return s.commentsOf(ctx, userID, bookID)
}

// DeleteComment removes a comment and returns the remaining list.
func (s *BookService) DeleteComment(ctx context.Context, userID, bookID, commentID string) ([]model.Comment, error) {
	if err := s.repo.DeleteComment(ctx, userID, bookID, commentID); err != nil {
		return nil, err
	}

	return s.commentsOf(ctx, userID, bookID)
}

func (s *BookService) commentsOf(ctx context.Context, userID, bookID string) ([]model.Comment, error) {
	book, err := s.repo.GetByID(ctx, userID, bookID)
	if err != nil {
		return nil, err
	}
	return book.Comments, nil
}

// Stats returns the aggregate view of userID's collection.
func (s *BookService) Stats(ctx context.Context, userID string) (*model.BookStats, error) {
	stats, err := s.repo.Stats(ctx, userID)
	if err != nil {
		s.logger.Error("failed to aggregate stats",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("aggregating stats: %w", err)
	}
	return stats, nil
}
