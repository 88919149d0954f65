package sqlite

import (
	"context"
	"errors"
	"testing"

	"booktracker/internal/apperror"
	"booktracker/internal/model"
)

// createTestBook creates a book for the given owner and fails the test on error.
func createTestBook(t *testing.T, db *DB, userID, title, author string) *model.Book {
	t.Helper()
	book := &model.Book{
		Title:  title,
		Author: author,
		Status: model.StatusToRead,
		UserID: userID,
	}
	if err := db.Books().Create(context.Background(), book); err != nil {
		t.Fatalf("failed to create test book: %v", err)
	}
	return book
}

// =========================================================================
// CREATE / GET TESTS
// =========================================================================

func TestBookCreate(t *testing.T) {
	db := newTestDB(t)
	owner := createTestUser(t, db, "Alice", "alice@example.com")

	book := createTestBook(t, db, owner.ID, "Dune", "Frank Herbert")

	if book.ID == "" {
		t.Error("Create() did not set book.ID")
	}
	if book.CreatedAt.IsZero() {
		t.Error("Create() did not set book.CreatedAt")
	}
	if book.Comments == nil {
		t.Error("Create() should initialize Comments to an empty slice")
	}
}

func TestBookGetByID_RoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	owner := createTestUser(t, db, "Alice", "alice@example.com")

	created := createTestBook(t, db, owner.ID, "Dune", "Frank Herbert")

	got, err := db.Books().GetByID(ctx, owner.ID, created.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Title != "Dune" || got.Author != "Frank Herbert" || got.Status != model.StatusToRead {
		t.Errorf("GetByID() = %+v, want the created book", got)
	}
}

// =========================================================================
// OWNERSHIP ISOLATION TESTS
// =========================================================================

func TestBookGetByID_OtherUsersBookIsNotFound(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	alice := createTestUser(t, db, "Alice", "alice@example.com")
	bob := createTestUser(t, db, "Bob", "bob@example.com")

	book := createTestBook(t, db, alice.ID, "Dune", "Frank Herbert")

	// Bob asks for Alice's book by its real ID. The error must be plain
	// not-found — nothing may hint that the book exists.
	_, err := db.Books().GetByID(ctx, bob.ID, book.ID)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetByID() error = %v, want ErrNotFound", err)
	}
}

func TestBookDelete_OtherUsersBookIsNotFound(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	alice := createTestUser(t, db, "Alice", "alice@example.com")
	bob := createTestUser(t, db, "Bob", "bob@example.com")

	book := createTestBook(t, db, alice.ID, "Dune", "Frank Herbert")

	if err := db.Books().Delete(ctx, bob.ID, book.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Delete() by non-owner error = %v, want ErrNotFound", err)
	}

	// Alice's book must be untouched.
	if _, err := db.Books().GetByID(ctx, alice.ID, book.ID); err != nil {
		t.Errorf("owner's book disappeared after non-owner delete attempt: %v", err)
	}
}

func TestBookListByUser_OnlyOwnBooks(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	alice := createTestUser(t, db, "Alice", "alice@example.com")
	bob := createTestUser(t, db, "Bob", "bob@example.com")

	createTestBook(t, db, alice.ID, "Dune", "Frank Herbert")
	createTestBook(t, db, alice.ID, "Hyperion", "Dan Simmons")
	createTestBook(t, db, bob.ID, "Neuromancer", "William Gibson")

	books, err := db.Books().ListByUser(ctx, alice.ID)
	if err != nil {
		t.Fatalf("ListByUser() error = %v", err)
	}
	if len(books) != 2 {
		t.Fatalf("ListByUser() returned %d books, want 2", len(books))
	}
	for _, b := range books {
		if b.UserID != alice.ID {
			t.Errorf("ListByUser() leaked a book owned by %q", b.UserID)
		}
	}
}

// =========================================================================
// UPDATE / DELETE TESTS
// =========================================================================

func TestBookUpdate(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	owner := createTestUser(t, db, "Alice", "alice@example.com")

	book := createTestBook(t, db, owner.ID, "Dune", "Frank Herbert")
	book.Status = model.StatusInProgress
	book.Rating = 5
	book.IsForSale = true

	if err := db.Books().Update(ctx, book); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, _ := db.Books().GetByID(ctx, owner.ID, book.ID)
	if got.Status != model.StatusInProgress || got.Rating != 5 || !got.IsForSale {
		t.Errorf("Update() not persisted: %+v", got)
	}
}

func TestBookDelete_CascadesComments(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	owner := createTestUser(t, db, "Alice", "alice@example.com")

	book := createTestBook(t, db, owner.ID, "Dune", "Frank Herbert")
	comment := &model.Comment{Text: "great start", Name: "Alice"}
	if err := db.Books().AddComment(ctx, owner.ID, book.ID, comment); err != nil {
		t.Fatalf("AddComment() error = %v", err)
	}

	if err := db.Books().Delete(ctx, owner.ID, book.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	// The FK cascade must have removed the comment row.
	var count int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM comments`).Scan(&count); err != nil {
		t.Fatalf("counting comments: %v", err)
	}
	if count != 0 {
		t.Errorf("comments remaining after book delete = %d, want 0", count)
	}
}

// =========================================================================
// COMMENT TESTS
// =========================================================================

func TestComments_AddUpdateDelete(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	owner := createTestUser(t, db, "Alice", "alice@example.com")
	book := createTestBook(t, db, owner.ID, "Dune", "Frank Herbert")

	first := &model.Comment{Text: "slow start", Name: "Alice"}
	if err := db.Books().AddComment(ctx, owner.ID, book.ID, first); err != nil {
		t.Fatalf("AddComment() error = %v", err)
	}
	if first.ID == "" {
		t.Fatal("AddComment() did not set comment.ID")
	}

	second := &model.Comment{Text: "picks up fast", Name: "Alice"}
	if err := db.Books().AddComment(ctx, owner.ID, book.ID, second); err != nil {
		t.Fatalf("AddComment() error = %v", err)
	}

	if err := db.Books().UpdateComment(ctx, owner.ID, book.ID, first.ID, "slow but worth it"); err != nil {
		t.Fatalf("UpdateComment() error = %v", err)
	}

	got, err := db.Books().GetByID(ctx, owner.ID, book.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if len(got.Comments) != 2 {
		t.Fatalf("book has %d comments, want 2", len(got.Comments))
	}
	// Oldest first.
	if got.Comments[0].Text != "slow but worth it" {
		t.Errorf("first comment = %q, want the updated text", got.Comments[0].Text)
	}

	if err := db.Books().DeleteComment(ctx, owner.ID, book.ID, first.ID); err != nil {
		t.Fatalf("DeleteComment() error = %v", err)
	}
	got, _ = db.Books().GetByID(ctx, owner.ID, book.ID)
	if len(got.Comments) != 1 || got.Comments[0].ID != second.ID {
		t.Errorf("after delete, comments = %+v, want only the second", got.Comments)
	}
}

func TestComments_MissingCommentVsMissingBook(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	owner := createTestUser(t, db, "Alice", "alice@example.com")
	book := createTestBook(t, db, owner.ID, "Dune", "Frank Herbert")

	// Existing book, bogus comment: the message names the comment.
	err := db.Books().UpdateComment(ctx, owner.ID, book.ID, "no-such-comment", "x")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("UpdateComment() error = %v, want ErrNotFound", err)
	}
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) || appErr.Message != "comment not found with id no-such-comment" {
		t.Errorf("UpdateComment() message = %v, want a comment not-found", err)
	}

	// Bogus book: the message names the book, even with a real comment id.
	comment := &model.Comment{Text: "x", Name: "Alice"}
	if err := db.Books().AddComment(ctx, owner.ID, book.ID, comment); err != nil {
		t.Fatalf("AddComment() error = %v", err)
	}
	err = db.Books().UpdateComment(ctx, owner.ID, "no-such-book", comment.ID, "x")
	if !errors.As(err, &appErr) || appErr.Message != "book not found with id no-such-book" {
		t.Errorf("UpdateComment() message = %v, want a book not-found", err)
	}
}

func TestComments_NonOwnerCannotTouch(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	alice := createTestUser(t, db, "Alice", "alice@example.com")
	bob := createTestUser(t, db, "Bob", "bob@example.com")
	book := createTestBook(t, db, alice.ID, "Dune", "Frank Herbert")

	comment := &model.Comment{Text: "mine", Name: "Alice"}
	if err := db.Books().AddComment(ctx, alice.ID, book.ID, comment); err != nil {
		t.Fatalf("AddComment() error = %v", err)
	}

	if err := db.Books().AddComment(ctx, bob.ID, book.ID, &model.Comment{Text: "hi"}); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("AddComment() by non-owner error = %v, want ErrNotFound", err)
	}
	if err := db.Books().DeleteComment(ctx, bob.ID, book.ID, comment.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("DeleteComment() by non-owner error = %v, want ErrNotFound", err)
	}
}

// =========================================================================
// STATS TESTS
// =========================================================================

func TestBookStats(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	owner := createTestUser(t, db, "Alice", "alice@example.com")
	other := createTestUser(t, db, "Bob", "bob@example.com")

	set := func(title string, status model.Status, rating int, forSale bool) {
		b := createTestBook(t, db, owner.ID, title, "Author")
		b.Status = status
		b.Rating = rating
		b.IsForSale = forSale
		if err := db.Books().Update(ctx, b); err != nil {
			t.Fatalf("Update() error = %v", err)
		}
	}

	set("A", model.StatusRead, 4, true)
	set("B", model.StatusRead, 2, false)
	set("C", model.StatusToRead, 0, false)
	set("D", model.StatusToBuy, 0, false)

	// Another user's books must not leak into the aggregates.
	createTestBook(t, db, other.ID, "E", "Author")

	stats, err := db.Books().Stats(ctx, owner.ID)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}

	if stats.Total != 4 {
		t.Errorf("Total = %d, want 4", stats.Total)
	}
	if stats.ByStatus[model.StatusRead] != 2 || stats.ByStatus[model.StatusToRead] != 1 || stats.ByStatus[model.StatusToBuy] != 1 {
		t.Errorf("ByStatus = %v", stats.ByStatus)
	}
	if stats.ForSale != 1 {
		t.Errorf("ForSale = %d, want 1", stats.ForSale)
	}
	// Average over rated books only: (4+2)/2 = 3.
	if stats.AverageRating != 3 {
		t.Errorf("AverageRating = %v, want 3", stats.AverageRating)
	}
}

func TestBookStats_EmptyCollection(t *testing.T) {
	db := newTestDB(t)
	owner := createTestUser(t, db, "Alice", "alice@example.com")

	stats, err := db.Books().Stats(context.Background(), owner.ID)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.Total != 0 || stats.ForSale != 0 || stats.AverageRating != 0 {
		t.Errorf("Stats() on empty collection = %+v, want zeros", stats)
	}
}
