package handler_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"booktracker/internal/model"
)

// createBook posts a book and returns its decoded form.
func createBook(t *testing.T, router http.Handler, token, title, author string) model.Book {
	t.Helper()
	body := fmt.Sprintf(`{"title":%q,"author":%q}`, title, author)
	rr := doJSON(router, http.MethodPost, "/api/books", token, body)
	require.Equal(t, http.StatusCreated, rr.Code, "create response: %s", rr.Body)

	var book model.Book
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&book))
	return book
}

func TestBookEndpoints_CreateAndList(t *testing.T) {
	router := newTestRouter(t)
	token := registerUser(t, router, "Alice", "alice@example.com")

	book := createBook(t, router, token, "Dune", "Frank Herbert")
	assert.Equal(t, model.StatusToRead, book.Status)
	assert.NotEmpty(t, book.ID)
	assert.NotNil(t, book.Comments, "comments must serialize as [], not null")

	rr := doJSON(router, http.MethodGet, "/api/books", token, "")
	assert.Equal(t, http.StatusOK, rr.Code)

	var books []model.Book
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&books))
	require.Len(t, books, 1)
	assert.Equal(t, "Dune", books[0].Title)

	t.Run("missing title rejected", func(t *testing.T) {
		rr := doJSON(router, http.MethodPost, "/api/books", token, `{"author":"Nobody"}`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestBookEndpoints_StatusUpdateAllowList(t *testing.T) {
	router := newTestRouter(t)
	token := registerUser(t, router, "Alice", "alice@example.com")
	book := createBook(t, router, token, "Dune", "Frank Herbert")

	t.Run("status only is accepted", func(t *testing.T) {
		rr := doJSON(router, http.MethodPut, "/api/books/"+book.ID, token, `{"status":"in-progress"}`)
		assert.Equal(t, http.StatusOK, rr.Code)

		var updated model.Book
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&updated))
		assert.Equal(t, model.StatusInProgress, updated.Status)
	})

	t.Run("extra fields poison the whole request", func(t *testing.T) {
		rr := doJSON(router, http.MethodPut, "/api/books/"+book.ID, token,
			`{"status":"read","rating":5,"userId":"mallory"}`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)

		// The valid status riding along was NOT applied.
		list := doJSON(router, http.MethodGet, "/api/books", token, "")
		var books []model.Book
		require.NoError(t, json.NewDecoder(list.Body).Decode(&books))
		assert.Equal(t, model.StatusInProgress, books[0].Status)
	})

	t.Run("unknown status rejected", func(t *testing.T) {
		rr := doJSON(router, http.MethodPut, "/api/books/"+book.ID, token, `{"status":"abandoned"}`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("unknown book is 404", func(t *testing.T) {
		rr := doJSON(router, http.MethodPut, "/api/books/no-such-book", token, `{"status":"read"}`)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestBookEndpoints_RatingAndForSale(t *testing.T) {
	router := newTestRouter(t)
	token := registerUser(t, router, "Alice", "alice@example.com")
	book := createBook(t, router, token, "Dune", "Frank Herbert")

	rr := doJSON(router, http.MethodPut, "/api/books/"+book.ID+"/rating", token, `{"rating":4}`)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = doJSON(router, http.MethodPut, "/api/books/"+book.ID+"/rating", token, `{"rating":6}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doJSON(router, http.MethodPut, "/api/books/"+book.ID+"/for-sale", token, "")
	assert.Equal(t, http.StatusOK, rr.Code)
	var updated model.Book
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&updated))
	assert.True(t, updated.IsForSale)

	t.Run("wishlist books cannot be listed", func(t *testing.T) {
		wish := createBook(t, router, token, "Hyperion", "Dan Simmons")
		rr := doJSON(router, http.MethodPut, "/api/books/"+wish.ID, token, `{"status":"to-buy"}`)
		require.Equal(t, http.StatusOK, rr.Code)

		rr = doJSON(router, http.MethodPut, "/api/books/"+wish.ID+"/for-sale", token, "")
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestBookEndpoints_Comments(t *testing.T) {
	router := newTestRouter(t)
	token := registerUser(t, router, "Alice", "alice@example.com")
	book := createBook(t, router, token, "Dune", "Frank Herbert")

	// Add: response is the book's full comment list.
	rr := doJSON(router, http.MethodPost, "/api/books/"+book.ID+"/comments", token,
		`{"text":"the spice must flow"}`)
	require.Equal(t, http.StatusOK, rr.Code)

	var comments []model.Comment
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&comments))
	require.Len(t, comments, 1)
	assert.Equal(t, "the spice must flow", comments[0].Text)
	assert.Equal(t, "Alice", comments[0].Name)

	// Update.
	rr = doJSON(router, http.MethodPut,
		"/api/books/"+book.ID+"/comments/"+comments[0].ID, token,
		`{"text":"fear is the mind-killer"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&comments))
	assert.Equal(t, "fear is the mind-killer", comments[0].Text)

	// Delete: 200 with the remaining (empty) list, not 204 — the client
	// re-renders from the response.
	rr = doJSON(router, http.MethodDelete,
		"/api/books/"+book.ID+"/comments/"+comments[0].ID, token, "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&comments))
	assert.Empty(t, comments)

	t.Run("missing comment under existing book is 404", func(t *testing.T) {
		rr := doJSON(router, http.MethodPut,
			"/api/books/"+book.ID+"/comments/no-such-comment", token, `{"text":"x"}`)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestBookEndpoints_DeleteAndStats(t *testing.T) {
	router := newTestRouter(t)
	token := registerUser(t, router, "Alice", "alice@example.com")

	first := createBook(t, router, token, "Dune", "Frank Herbert")
	createBook(t, router, token, "Hyperion", "Dan Simmons")

	rr := doJSON(router, http.MethodPut, "/api/books/"+first.ID+"/rating", token, `{"rating":4}`)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = doJSON(router, http.MethodGet, "/api/books/stats", token, "")
	require.Equal(t, http.StatusOK, rr.Code)

	var stats model.BookStats
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&stats))
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 2, stats.ByStatus[model.StatusToRead])
	assert.InDelta(t, 4.0, stats.AverageRating, 0.001)

	// Delete returns 204 with no body.
	rr = doJSON(router, http.MethodDelete, "/api/books/"+first.ID, token, "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Empty(t, rr.Body.String())

	rr = doJSON(router, http.MethodDelete, "/api/books/"+first.ID, token, "")
	assert.Equal(t, http.StatusNotFound, rr.Code, "second delete of the same book")
}

func TestBookEndpoints_OwnershipBoundary(t *testing.T) {
	router := newTestRouter(t)
	alice := registerUser(t, router, "Alice", "alice@example.com")
	bob := registerUser(t, router, "Bob", "bob@example.com")

	book := createBook(t, router, alice, "Dune", "Frank Herbert")

	// Every verb Bob tries against Alice's book is a plain 404.
	paths := map[string][2]string{
		"update":  {http.MethodPut, "/api/books/" + book.ID},
		"delete":  {http.MethodDelete, "/api/books/" + book.ID},
		"rating":  {http.MethodPut, "/api/books/" + book.ID + "/rating"},
		"forsale": {http.MethodPut, "/api/books/" + book.ID + "/for-sale"},
		"comment": {http.MethodPost, "/api/books/" + book.ID + "/comments"},
	}
	bodies := map[string]string{
		"update":  `{"status":"read"}`,
		"rating":  `{"rating":1}`,
		"comment": `{"text":"hi"}`,
	}

	for name, mp := range paths {
		rr := doJSON(router, mp[0], mp[1], bob, bodies[name])
		assert.Equal(t, http.StatusNotFound, rr.Code, "%s by non-owner", name)
	}
}
