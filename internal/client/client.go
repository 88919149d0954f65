// Package client is a Go consumer of the book tracker API.
//
// It backs the bookctl CLI and any other Go program that wants to talk to
// the server without hand-rolling HTTP calls. The client keeps a local copy
// of the caller's collection and refreshes it from the server after every
// mutation.
//
// FETCH-THEN-RECONCILE, NOT OPTIMISTIC UPDATES:
// A mutation could patch the local cache directly ("optimistic update"),
// but then the cache slowly drifts from reality: server-side defaults,
// timestamps, and changes made from another session never arrive. Instead,
// every mutation round-trips — apply on the server, then re-fetch the list
// and swap it in wholesale. Slightly more traffic, but the cache can never
// go stale for longer than one call.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"booktracker/internal/apperror"
	"booktracker/internal/model"
	"booktracker/internal/search"
)

// Client talks to a book tracker server. Safe for concurrent use; the
// token and the cached book list sit behind one mutex.
type Client struct {
	baseURL string
	http    *http.Client

	mu    sync.Mutex
	token string
	books []model.Book
}

// New creates a client for the server at baseURL (e.g. "http://localhost:8080").
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// authPayload mirrors the server's register/login response.
type authPayload struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

// errorPayload mirrors the server's error envelope.
type errorPayload struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// do sends a JSON request and decodes the response into out (if non-nil).
// Non-2xx responses are mapped back onto the apperror sentinels, so callers
// can errors.Is against ErrNotFound, ErrUnauthorized, etc. just like
// server-side code.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody *bytes.Buffer = bytes.NewBuffer(nil)
	if body != nil {
		if err := json.NewEncoder(reqBody).Encode(body); err != nil {
			return fmt.Errorf("client: encoding request body: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("client: building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.mu.Lock()
	token := c.token
	c.mu.Unlock()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}

	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("client: decoding response: %w", err)
		}
	}

	return nil
}

// decodeError turns an error response back into a typed apperror. The
// server's message survives the round trip; the HTTP status picks which
// sentinel the error wraps.
func decodeError(resp *http.Response) error {
	var payload errorPayload
	_ = json.NewDecoder(resp.Body).Decode(&payload)
	if payload.Message == "" {
		payload.Message = fmt.Sprintf("server returned status %d", resp.StatusCode)
	}

	switch resp.StatusCode {
	case http.StatusBadRequest:
		return apperror.ValidationFailed("request", payload.Message)
	case http.StatusUnauthorized:
		return apperror.Unauthorized(payload.Message)
	case http.StatusNotFound:
		return &apperror.AppError{Err: apperror.ErrNotFound, Message: payload.Message}
	case http.StatusConflict:
		return apperror.Conflict("request", payload.Message)
	default:
		return fmt.Errorf("client: server returned status %d: %s", resp.StatusCode, payload.Message)
	}
}

// Register creates an account and signs the client in.
func (c *Client) Register(ctx context.Context, name, email, password string) (*model.User, error) {
	var payload authPayload
	err := c.do(ctx, http.MethodPost, "/api/auth/register", map[string]string{
		"name": name, "email": email, "password": password,
	}, &payload)
	if err != nil {
		return nil, err
	}

	c.setToken(payload.Token)
	return payload.User, nil
}

// Login authenticates and stores the bearer token for subsequent calls.
func (c *Client) Login(ctx context.Context, email, password string) (*model.User, error) {
	var payload authPayload
	err := c.do(ctx, http.MethodPost, "/api/auth/login", map[string]string{
		"email": email, "password": password,
	}, &payload)
	if err != nil {
		return nil, err
	}

	c.setToken(payload.Token)
	return payload.User, nil
}

func (c *Client) setToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// Token returns the current bearer token, or "" when signed out. The CLI
// persists it between invocations.
func (c *Client) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// SetToken resumes a session from a previously issued token.
func (c *Client) SetToken(token string) {
	c.setToken(token)
}

// SignOut forgets the token and drops the cached collection. The server is
// stateless (JWT), so there is nothing to tell it.
func (c *Client) SignOut() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = ""
	c.books = nil
}

// Me fetches the signed-in user's profile.
func (c *Client) Me(ctx context.Context) (*model.User, error) {
	var user model.User
	if err := c.do(ctx, http.MethodGet, "/api/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Refresh re-fetches the collection from the server and replaces the cache.
func (c *Client) Refresh(ctx context.Context) error {
	var books []model.Book
	if err := c.do(ctx, http.MethodGet, "/api/books", nil, &books); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.books = books
	return nil
}

// Books returns the cached collection, fetching it first if the cache is
// empty. The returned slice is a copy — callers can't corrupt the cache.
func (c *Client) Books(ctx context.Context) ([]model.Book, error) {
	c.mu.Lock()
	cached := c.books
	c.mu.Unlock()

	if cached == nil {
		if err := c.Refresh(ctx); err != nil {
			return nil, err
		}
		c.mu.Lock()
		cached = c.books
		c.mu.Unlock()
	}

	out := make([]model.Book, len(cached))
	copy(out, cached)
	return out, nil
}

// mutate runs fn (a server-side change) and then reconciles the cache.
func (c *Client) mutate(ctx context.Context, fn func() error) error {
	if err := fn(); err != nil {
		return err
	}
	return c.Refresh(ctx)
}

// AddBook adds a book to the collection. Status may be empty — the server
// defaults it to "to-read".
func (c *Client) AddBook(ctx context.Context, title, author, cover string, status model.Status) (*model.Book, error) {
	var book model.Book
	err := c.mutate(ctx, func() error {
		return c.do(ctx, http.MethodPost, "/api/books", map[string]string{
			"title": title, "author": author, "cover": cover, "status": string(status),
		}, &book)
	})
	if err != nil {
		return nil, err
	}
	return &book, nil
}

// SetStatus moves a book to the given shelf.
func (c *Client) SetStatus(ctx context.Context, bookID string, status model.Status) error {
	return c.mutate(ctx, func() error {
		return c.do(ctx, http.MethodPut, "/api/books/"+url.PathEscape(bookID),
			map[string]string{"status": string(status)}, nil)
	})
}

// SetRating rates a book 1-5, or clears the rating with 0.
func (c *Client) SetRating(ctx context.Context, bookID string, rating int) error {
	return c.mutate(ctx, func() error {
		return c.do(ctx, http.MethodPut, "/api/books/"+url.PathEscape(bookID)+"/rating",
			map[string]int{"rating": rating}, nil)
	})
}

// ToggleForSale flips a book's for-sale flag and returns its new value.
func (c *Client) ToggleForSale(ctx context.Context, bookID string) (bool, error) {
	var book model.Book
	err := c.mutate(ctx, func() error {
		return c.do(ctx, http.MethodPut, "/api/books/"+url.PathEscape(bookID)+"/for-sale", nil, &book)
	})
	if err != nil {
		return false, err
	}
	return book.IsForSale, nil
}

// DeleteBook removes a book and its comments.
func (c *Client) DeleteBook(ctx context.Context, bookID string) error {
	return c.mutate(ctx, func() error {
		return c.do(ctx, http.MethodDelete, "/api/books/"+url.PathEscape(bookID), nil, nil)
	})
}

// AddComment attaches a note to a book and returns the book's full comment
// list as the server now sees it.
func (c *Client) AddComment(ctx context.Context, bookID, text string) ([]model.Comment, error) {
	var comments []model.Comment
	err := c.mutate(ctx, func() error {
		return c.do(ctx, http.MethodPost, "/api/books/"+url.PathEscape(bookID)+"/comments",
			map[string]string{"text": text}, &comments)
	})
	if err != nil {
		return nil, err
	}
	return comments, nil
}

// UpdateComment replaces a comment's text.
func (c *Client) UpdateComment(ctx context.Context, bookID, commentID, text string) ([]model.Comment, error) {
	var comments []model.Comment
	err := c.mutate(ctx, func() error {
		return c.do(ctx, http.MethodPut,
			"/api/books/"+url.PathEscape(bookID)+"/comments/"+url.PathEscape(commentID),
			map[string]string{"text": text}, &comments)
	})
	if err != nil {
		return nil, err
	}
	return comments, nil
}

// DeleteComment removes a comment.
func (c *Client) DeleteComment(ctx context.Context, bookID, commentID string) ([]model.Comment, error) {
	var comments []model.Comment
	err := c.mutate(ctx, func() error {
		return c.do(ctx, http.MethodDelete,
			"/api/books/"+url.PathEscape(bookID)+"/comments/"+url.PathEscape(commentID),
			nil, &comments)
	})
	if err != nil {
		return nil, err
	}
	return comments, nil
}

// Stats fetches aggregate numbers for the collection.
func (c *Client) Stats(ctx context.Context) (*model.BookStats, error) {
	var stats model.BookStats
	if err := c.do(ctx, http.MethodGet, "/api/books/stats", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// Search queries the server's Google Books proxy.
func (c *Client) Search(ctx context.Context, query string) ([]search.Result, error) {
	var results []search.Result
	path := "/api/search?q=" + url.QueryEscape(query)
	if err := c.do(ctx, http.MethodGet, path, nil, &results); err != nil {
		return nil, err
	}
	return results, nil
}

// NextStatus returns the shelf a book moves to when the user cycles it:
// to-read → in-progress → read → to-buy → to-read. The CLI's `bookctl
// status --next` uses this so one keypress walks a book through its life.
func NextStatus(s model.Status) model.Status {
	switch s {
	case model.StatusToRead:
		return model.StatusInProgress
	case model.StatusInProgress:
		return model.StatusRead
	case model.StatusRead:
		return model.StatusToBuy
	default:
		return model.StatusToRead
	}
}
