package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"booktracker/internal/apperror"
	"booktracker/internal/auth"
	"booktracker/internal/model"
	"booktracker/internal/service"
)

// BookHandler manages the book collection endpoints.
//
// WHY A SEPARATE HANDLER?
// Separating book logic from auth logic follows the Single Responsibility
// Principle. Each handler struct "owns" one area of functionality. This
// makes code easier to:
// - Test (mock dependencies independently)
// - Understand (find all book logic in one place)
// - Modify (change book storage without touching authentication)
//
// Every route here sits behind RequireAuth, so the userID is always in the
// request context. The handler passes it to the service on every call; the
// service and repository scope all queries to that owner.
type BookHandler struct {
	books  *service.BookService
	users  *service.AuthService // comments are stamped with the commenter's display name
	logger *slog.Logger
}

// NewBookHandler creates a new BookHandler.
func NewBookHandler(books *service.BookService, users *service.AuthService, logger *slog.Logger) *BookHandler {
	return &BookHandler{books: books, users: users, logger: logger}
}

// userID extracts the authenticated user's ID from the request context.
// The bool is false only if the route was wired without RequireAuth — a
// programming error, answered with a plain 401.
func userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return "", false
	}
	return id, true
}

// HandleList returns the caller's entire collection, newest first.
//
// HTTP: GET /api/books
//
// RESPONSE FORMAT:
//
//	[
//	  {"id":"abc","title":"Dune","author":"Frank Herbert","status":"to-read",
//	   "rating":0,"isForSale":false,"comments":[],"createdAt":"...","updatedAt":"..."},
//	  ...
//	]
func (h *BookHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	books, err := h.books.List(r.Context(), uid)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, books)
}

// createBookRequest is the JSON body for POST /api/books. Status is
// optional — a new book defaults to "to-read".
type createBookRequest struct {
	Title  string `json:"title"`
	Author string `json:"author"`
	Cover  string `json:"cover"`
	Status string `json:"status"`
}

// HandleCreate adds a book to the collection.
//
// HTTP: POST /api/books
// REQUEST BODY: {"title": "Dune", "author": "Frank Herbert", "cover": "https://...", "status": "to-read"}
//
// JSON DECODING:
// json.NewDecoder(r.Body) reads the request body as a stream and decodes it
// into a struct. We use Decode() instead of json.Unmarshal() because it
// doesn't need to buffer the entire body in memory first.
func (h *BookHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	var req createBookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	book, err := h.books.Create(r.Context(), uid, service.BookDraft{
		Title:  req.Title,
		Author: req.Author,
		Cover:  req.Cover,
		Status: model.Status(req.Status),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	h.logger.Info("book created",
		slog.String("userID", uid),
		slog.String("bookID", book.ID),
	)
	writeJSON(w, http.StatusCreated, book)
}

// HandleUpdate changes a book's status.
//
// HTTP: PUT /api/books/{id}
// REQUEST BODY: {"status": "in-progress"}
//
// WHY DECODE INTO A MAP?
// The body is decoded into map[string]any rather than a struct on purpose:
// the service enforces a field allow-list, and a struct decode would
// silently drop unknown fields before the service could see them. A body
// like {"status":"read","userId":"mallory"} must be REJECTED, not
// partially applied — so the service needs to see every key the client sent.
func (h *BookHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	var fields map[string]any
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	book, err := h.books.UpdateStatus(r.Context(), uid, r.PathValue("id"), fields)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, book)
}

// HandleDelete removes a book (and, via the schema's cascade, its comments).
//
// HTTP: DELETE /api/books/{id}
//
// URL PARAMETERS:
// Chi provides r.PathValue("id") to extract URL parameters. For a request
// to DELETE /api/books/abc123, PathValue("id") returns "abc123".
func (h *BookHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	id := r.PathValue("id")
	if err := h.books.Delete(r.Context(), uid, id); err != nil {
		writeError(w, err)
		return
	}

	h.logger.Info("book deleted",
		slog.String("userID", uid),
		slog.String("bookID", id),
	)
	w.WriteHeader(http.StatusNoContent) // 204 No Content — successful deletion, no body
}

type updateRatingRequest struct {
	Rating int `json:"rating"`
}

// HandleUpdateRating sets a book's rating (1-5, or 0 to clear it).
//
// HTTP: PUT /api/books/{id}/rating
// REQUEST BODY: {"rating": 4}
func (h *BookHandler) HandleUpdateRating(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	var req updateRatingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	book, err := h.books.UpdateRating(r.Context(), uid, r.PathValue("id"), req.Rating)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, book)
}

// HandleToggleForSale flips a book's for-sale flag.
//
// HTTP: PUT /api/books/{id}/for-sale  (no request body)
//
// The toggle takes no body — the server flips whatever the current value
// is. Books still on the wishlist can't be listed for sale; that case
// returns a 400 from the service.
func (h *BookHandler) HandleToggleForSale(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	book, err := h.books.ToggleForSale(r.Context(), uid, r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, book)
}

type commentRequest struct {
	Text string `json:"text"`
}

// HandleAddComment attaches a note to a book.
//
// HTTP: POST /api/books/{id}/comments
// REQUEST BODY: {"text": "loved the ending"}
//
// COMMENT RESPONSES RETURN THE FULL LIST:
// All three comment endpoints respond with the book's complete comment
// array after the change. The client swaps its local list wholesale
// instead of splicing one entry, which keeps it correct even if another
// session changed the list in between.
func (h *BookHandler) HandleAddComment(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	var req commentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	// Stamp the comment with the author's display name so the client can
	// render it without a user lookup.
	user, err := h.users.GetUserByID(r.Context(), uid)
	if err != nil {
		writeError(w, err)
		return
	}

	comments, err := h.books.AddComment(r.Context(), uid, r.PathValue("id"), req.Text, user.Name)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, comments)
}

// HandleUpdateComment edits a comment's text.
//
// HTTP: PUT /api/books/{id}/comments/{commentId}
func (h *BookHandler) HandleUpdateComment(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	var req commentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	comments, err := h.books.UpdateComment(r.Context(), uid, r.PathValue("id"), r.PathValue("commentId"), req.Text)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, comments)
}

// HandleDeleteComment removes a comment.
//
// HTTP: DELETE /api/books/{id}/comments/{commentId}
//
// Unlike book deletion (204), this returns 200 with the remaining comment
// list — the client needs the new list to re-render.
func (h *BookHandler) HandleDeleteComment(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	comments, err := h.books.DeleteComment(r.Context(), uid, r.PathValue("id"), r.PathValue("commentId"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, comments)
}

// HandleStats returns aggregate numbers for the caller's collection.
//
// HTTP: GET /api/books/stats
//
// RESPONSE FORMAT:
//
//	{"total":12,"byStatus":{"read":5,"in-progress":2,"to-read":4,"to-buy":1},
//	 "forSale":3,"averageRating":3.8}
func (h *BookHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	stats, err := h.books.Stats(r.Context(), uid)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}
