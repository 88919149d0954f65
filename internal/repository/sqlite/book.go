package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"

	"booktracker/internal/apperror"
	"booktracker/internal/model"
	"booktracker/internal/repository"
)

// BookStore implements repository.BookRepository on top of the shared
// connection pool. Obtain one from DB.Books().
type BookStore struct {
	db *DB
}

// compile-time check that *BookStore implements repository.BookRepository
var _ repository.BookRepository = (*BookStore)(nil)

// OWNERSHIP SCOPING:
// Every query in this file that touches an existing book includes
// "AND user_id = ?" in its WHERE clause. The database cannot tell the
// difference between "no such book" and "someone else's book" — both affect
// zero rows — which is exactly what the API promises: a non-owner's request
// is indistinguishable from not-found.

// Create inserts a new book for its owner. The ID and timestamps are
// generated here and written back into the caller's struct.
func (s *BookStore) Create(ctx context.Context, book *model.Book) error {
	book.ID = xid.New().String()

	now := time.Now()
	book.CreatedAt = now
	book.UpdatedAt = now

	_, err := s.db.conn.ExecContext(ctx,
		`INSERT INTO books (id, title, author, cover, status, rating, is_for_sale, user_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		book.ID,
		book.Title,
		book.Author,
		book.Cover,
		string(book.Status),
		book.Rating,
		book.IsForSale,
		book.UserID,
		book.CreatedAt,
		book.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating book: %w", err)
	}

	if book.Comments == nil {
		book.Comments = []model.Comment{}
	}

	return nil
}

// GetByID retrieves a single book owned by userID, comments attached.
func (s *BookStore) GetByID(ctx context.Context, userID, bookID string) (*model.Book, error) {
	var b model.Book
	var status string

	err := s.db.conn.QueryRowContext(ctx,
		`SELECT id, title, author, cover, status, rating, is_for_sale, user_id, created_at, updated_at
		 FROM books
		 WHERE id = ? AND user_id = ?`,
		bookID, userID,
	).Scan(
		&b.ID,
		&b.Title,
		&b.Author,
		&b.Cover,
		&status,
		&b.Rating,
		&b.IsForSale,
		&b.UserID,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("book", bookID)
		}
		return nil, fmt.Errorf("sqlite: getting book %s: %w", bookID, err)
	}
	b.Status = model.Status(status)

	comments, err := s.commentsForBook(ctx, b.ID)
	if err != nil {
		return nil, err
	}
	b.Comments = comments

	return &b, nil
}

// ListByUser returns all books owned by userID, newest first, each with its
// comments attached. Comments for the whole collection are fetched in one
// query and grouped in memory — one round trip instead of one per book.
func (s *BookStore) ListByUser(ctx context.Context, userID string) ([]model.Book, error) {
	rows, err := s.db.conn.QueryContext(ctx,
		`SELECT id, title, author, cover, status, rating, is_for_sale, user_id, created_at, updated_at
		 FROM books
		 WHERE user_id = ?
		 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing books: %w", err)
	}
	defer rows.Close()

	books := make([]model.Book, 0, 16)
	for rows.Next() {
		var b model.Book
		var status string
		if err := rows.Scan(
			&b.ID, &b.Title, &b.Author, &b.Cover, &status,
			&b.Rating, &b.IsForSale, &b.UserID, &b.CreatedAt, &b.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning book row: %w", err)
		}
		b.Status = model.Status(status)
		b.Comments = []model.Comment{}
		books = append(books, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating books: %w", err)
	}

	if len(books) == 0 {
		return books, nil
	}

	// Attach comments. Index the books by ID first so grouping is O(1).
	byID := make(map[string]*model.Book, len(books))
	for i := range books {
		byID[books[i].ID] = &books[i]
	}

	crows, err := s.db.conn.QueryContext(ctx,
		`SELECT c.id, c.book_id, c.text, c.name, c.created_at
		 FROM comments c
		 JOIN books b ON b.id = c.book_id
		 WHERE b.user_id = ?
		 ORDER BY c.created_at ASC, c.id ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing comments: %w", err)
	}
	defer crows.Close()

	for crows.Next() {
		var c model.Comment
		var bookID string
		if err := crows.Scan(&c.ID, &bookID, &c.Text, &c.Name, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning comment row: %w", err)
		}
		if b, ok := byID[bookID]; ok {
			b.Comments = append(b.Comments, c)
		}
	}
	if err := crows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating comments: %w", err)
	}

	return books, nil
}

// Update writes the mutable fields of a book back to the database. The WHERE
// clause is scoped by both id and user_id; zero rows affected means the book
// doesn't exist for this owner.
//
// Title, author, and cover are immutable after creation — the API only ever
// changes status, rating, and the sale flag.
func (s *BookStore) Update(ctx context.Context, book *model.Book) error {
	book.UpdatedAt = time.Now()

	result, err := s.db.conn.ExecContext(ctx,
		`UPDATE books
		 SET status = ?, rating = ?, is_for_sale = ?, updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		string(book.Status),
		book.Rating,
		book.IsForSale,
		book.UpdatedAt,
		book.ID,
		book.UserID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating book %s: %w", book.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("book", book.ID)
	}

	return nil
}

// Delete removes a book owned by userID. Cascades to its comments.
func (s *BookStore) Delete(ctx context.Context, userID, bookID string) error {
	result, err := s.db.conn.ExecContext(ctx,
		`DELETE FROM books WHERE id = ? AND user_id = ?`,
		bookID, userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting book %s: %w", bookID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("book", bookID)
	}

	return nil
}

// commentsForBook returns a book's comments, oldest first. Never returns a
// nil slice — an empty list serializes as [] rather than null.
func (s *BookStore) commentsForBook(ctx context.Context, bookID string) ([]model.Comment, error) {
	rows, err := s.db.conn.QueryContext(ctx,
		`SELECT id, text, name, created_at
		 FROM comments
		 WHERE book_id = ?
		 ORDER BY created_at ASC, id ASC`,
		bookID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing comments for book %s: %w", bookID, err)
	}
	defer rows.Close()

	comments := []model.Comment{}
	for rows.Next() {
		var c model.Comment
		if err := rows.Scan(&c.ID, &c.Text, &c.Name, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning comment row: %w", err)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating comments: %w", err)
	}

	return comments, nil
}

// bookOwned verifies that bookID exists and belongs to userID. The comment
// operations call this first so "book not found" and "comment not found"
// stay distinct failures.
func (s *BookStore) bookOwned(ctx context.Context, userID, bookID string) error {
	var one int
	err := s.db.conn.QueryRowContext(ctx,
		`SELECT 1 FROM books WHERE id = ? AND user_id = ?`,
		bookID, userID,
	).Scan(&one)
	if err != nil {
		if err == sql.ErrNoRows {
			return apperror.NotFound("book", bookID)
		}
		return fmt.Errorf("sqlite: checking book %s: %w", bookID, err)
	}
	return nil
}

// AddComment appends a comment to a book owned by userID.
func (s *BookStore) AddComment(ctx context.Context, userID, bookID string, comment *model.Comment) error {
	if err := s.bookOwned(ctx, userID, bookID); err != nil {
		return err
	}

	comment.ID = xid.New().String()
	comment.CreatedAt = time.Now()

	_, err := s.db.conn.ExecContext(ctx,
		`INSERT INTO comments (id, book_id, text, name, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		comment.ID,
		bookID,
		comment.Text,
		comment.Name,
		comment.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: adding comment to book %s: %w", bookID, err)
	}

	// Touch the parent so list ordering and caches see the change.
	_, err = s.db.conn.ExecContext(ctx,
		`UPDATE books SET updated_at = ? WHERE id = ?`, comment.CreatedAt, bookID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: touching book %s: %w", bookID, err)
	}

	return nil
}

// UpdateComment replaces the text of one comment under a book owned by
// userID. A missing comment under an existing book is reported as a comment
// not-found, distinct from the book not-found returned by bookOwned.
func (s *BookStore) UpdateComment(ctx context.Context, userID, bookID, commentID, text string) error {
	if err := s.bookOwned(ctx, userID, bookID); err != nil {
		return err
	}

	result, err := s.db.conn.ExecContext(ctx,
		`UPDATE comments SET text = ? WHERE id = ? AND book_id = ?`,
		text, commentID, bookID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating comment %s: %w", commentID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("comment", commentID)
	}

	return nil
}

// DeleteComment removes one comment under a book owned by userID.
func (s *BookStore) DeleteComment(ctx context.Context, userID, bookID, commentID string) error {
	if err := s.bookOwned(ctx, userID, bookID); err != nil {
		return err
	}

	result, err := s.db.conn.ExecContext(ctx,
		`DELETE FROM comments WHERE id = ? AND book_id = ?`,
		commentID, bookID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting comment %s: %w", commentID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("comment", commentID)
	}

	return nil
}

// Stats aggregates one user's collection in a single pass over their books.
//
// AVG(rating) would count unrated books (rating 0) and drag the average
// down, so the average is computed over rated books only.
func (s *BookStore) Stats(ctx context.Context, userID string) (*model.BookStats, error) {
	stats := &model.BookStats{
		ByStatus: make(map[model.Status]int),
	}

	rows, err := s.db.conn.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM books WHERE user_id = ? GROUP BY status`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: aggregating statuses: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("sqlite: scanning status count: %w", err)
		}
		stats.ByStatus[model.Status(status)] = count
		stats.Total += count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating status counts: %w", err)
	}

	err = s.db.conn.QueryRowContext(ctx,
		`SELECT
			COUNT(CASE WHEN is_for_sale THEN 1 END),
			COALESCE(AVG(CASE WHEN rating > 0 THEN CAST(rating AS REAL) END), 0)
		 FROM books WHERE user_id = ?`,
		userID,
	).Scan(&stats.ForSale, &stats.AverageRating)
	if err != nil {
		return nil, fmt.Errorf("sqlite: aggregating ratings: %w", err)
	}

	return stats, nil
}
