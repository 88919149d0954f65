package handler_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"booktracker/internal/auth"
	"booktracker/internal/handler"
	"booktracker/internal/repository/sqlite"
	"booktracker/internal/service"
)

// newTestRouter assembles the real middleware/handler/service/repository
// chain on an in-memory database. Handlers read path parameters and the
// authenticated user from the request context, so tests go through a chi
// router and the RequireAuth middleware exactly like production traffic.
func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tokens, err := auth.NewTokenService("test-secret-at-least-16-chars!!")
	require.NoError(t, err)
	passwords := auth.NewPasswordServiceForTest(4) // min bcrypt cost, tests stay fast

	authService := service.NewAuthService(db.Users(), tokens, passwords, &service.LogMailer{Logger: logger}, logger)
	bookService := service.NewBookService(db.Books(), logger)

	authHandler := handler.NewAuthHandler(authService, t.TempDir(), logger)
	bookHandler := handler.NewBookHandler(bookService, authService, logger)

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", authHandler.HandleRegister)
		r.Post("/auth/login", authHandler.HandleLogin)
		r.Post("/auth/forgot-password", authHandler.HandleForgotPassword)
		r.Post("/auth/reset-password/{token}", authHandler.HandleResetPassword)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))
			r.Get("/me", authHandler.HandleMe)
			r.Post("/auth/avatar", authHandler.HandleAvatarUpload)

			r.Get("/books", bookHandler.HandleList)
			r.Post("/books", bookHandler.HandleCreate)
			r.Get("/books/stats", bookHandler.HandleStats)
			r.Put("/books/{id}", bookHandler.HandleUpdate)
			r.Delete("/books/{id}", bookHandler.HandleDelete)
			r.Put("/books/{id}/rating", bookHandler.HandleUpdateRating)
			r.Put("/books/{id}/for-sale", bookHandler.HandleToggleForSale)
			r.Post("/books/{id}/comments", bookHandler.HandleAddComment)
			r.Put("/books/{id}/comments/{commentId}", bookHandler.HandleUpdateComment)
			r.Delete("/books/{id}/comments/{commentId}", bookHandler.HandleDeleteComment)
		})
	})
	return r
}

// doJSON sends a JSON request through the router and returns the recorder.
func doJSON(router http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

// registerUser registers a user and returns the issued token.
func registerUser(t *testing.T, router http.Handler, name, email string) string {
	t.Helper()
	body := fmt.Sprintf(`{"name":%q,"email":%q,"password":"hunter2hunter2"}`, name, email)
	rr := doJSON(router, http.MethodPost, "/api/auth/register", "", body)
	require.Equal(t, http.StatusCreated, rr.Code, "register response: %s", rr.Body)

	var payload struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&payload))
	require.NotEmpty(t, payload.Token)
	return payload.Token
}

func TestAuthEndpoints_Register(t *testing.T) {
	router := newTestRouter(t)

	t.Run("success returns user and token", func(t *testing.T) {
		rr := doJSON(router, http.MethodPost, "/api/auth/register", "",
			`{"name":"Alice","email":"alice@example.com","password":"hunter2hunter2"}`)
		assert.Equal(t, http.StatusCreated, rr.Code)

		var payload struct {
			Token string `json:"token"`
			User  struct {
				Name  string `json:"name"`
				Email string `json:"email"`
			} `json:"user"`
		}
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&payload))
		assert.NotEmpty(t, payload.Token)
		assert.Equal(t, "Alice", payload.User.Name)
		// The password hash must never appear in API output.
		assert.NotContains(t, rr.Body.String(), "passwordHash")
	})

	t.Run("duplicate email conflicts", func(t *testing.T) {
		rr := doJSON(router, http.MethodPost, "/api/auth/register", "",
			`{"name":"Imposter","email":"alice@example.com","password":"hunter2hunter2"}`)
		assert.Equal(t, http.StatusConflict, rr.Code)
	})

	t.Run("structurally invalid bodies are rejected", func(t *testing.T) {
		cases := map[string]string{
			"broken JSON":    `{"name":`,
			"missing email":  `{"name":"X","password":"hunter2hunter2"}`,
			"bad email":      `{"name":"X","email":"not-an-email","password":"hunter2hunter2"}`,
			"short password": `{"name":"X","email":"x@example.com","password":"short"}`,
		}
		for name, body := range cases {
			rr := doJSON(router, http.MethodPost, "/api/auth/register", "", body)
			assert.Equal(t, http.StatusBadRequest, rr.Code, name)
		}
	})
}

func TestAuthEndpoints_LoginAndMe(t *testing.T) {
	router := newTestRouter(t)
	registerUser(t, router, "Alice", "alice@example.com")

	rr := doJSON(router, http.MethodPost, "/api/auth/login", "",
		`{"email":"alice@example.com","password":"hunter2hunter2"}`)
	require.Equal(t, http.StatusOK, rr.Code)

	var payload struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&payload))

	// The token from login works on protected routes.
	me := doJSON(router, http.MethodGet, "/api/me", payload.Token, "")
	assert.Equal(t, http.StatusOK, me.Code)
	assert.Contains(t, me.Body.String(), "alice@example.com")

	// Without a token, protected routes are out of reach.
	anon := doJSON(router, http.MethodGet, "/api/me", "", "")
	assert.Equal(t, http.StatusUnauthorized, anon.Code)
}

func TestAuthEndpoints_LoginFailuresLookAlike(t *testing.T) {
	router := newTestRouter(t)
	registerUser(t, router, "Alice", "alice@example.com")

	wrongPassword := doJSON(router, http.MethodPost, "/api/auth/login", "",
		`{"email":"alice@example.com","password":"not the password"}`)
	unknownEmail := doJSON(router, http.MethodPost, "/api/auth/login", "",
		`{"email":"nobody@example.com","password":"hunter2hunter2"}`)

	assert.Equal(t, http.StatusUnauthorized, wrongPassword.Code)
	assert.Equal(t, http.StatusUnauthorized, unknownEmail.Code)
	// Byte-identical bodies: the endpoint can't be used to probe for accounts.
	assert.Equal(t, wrongPassword.Body.String(), unknownEmail.Body.String())
}

func TestAuthEndpoints_ForgotPasswordIsSilent(t *testing.T) {
	router := newTestRouter(t)
	registerUser(t, router, "Alice", "alice@example.com")

	known := doJSON(router, http.MethodPost, "/api/auth/forgot-password", "",
		`{"email":"alice@example.com"}`)
	unknown := doJSON(router, http.MethodPost, "/api/auth/forgot-password", "",
		`{"email":"nobody@example.com"}`)

	assert.Equal(t, http.StatusAccepted, known.Code)
	assert.Equal(t, http.StatusAccepted, unknown.Code)
	assert.Equal(t, known.Body.String(), unknown.Body.String())
}

func TestAuthEndpoints_AvatarUpload(t *testing.T) {
	router := newTestRouter(t)
	token := registerUser(t, router, "Alice", "alice@example.com")

	buildUpload := func(field, filename string) (*bytes.Buffer, string) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		fw, err := mw.CreateFormFile(field, filename)
		require.NoError(t, err)
		_, err = fw.Write([]byte("not-really-a-png"))
		require.NoError(t, err)
		require.NoError(t, mw.Close())
		return &buf, mw.FormDataContentType()
	}

	t.Run("accepted image type", func(t *testing.T) {
		buf, contentType := buildUpload("avatar", "me.png")
		req := httptest.NewRequest(http.MethodPost, "/api/auth/avatar", buf)
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Authorization", "Bearer "+token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		require.Equal(t, http.StatusOK, rr.Code, "upload response: %s", rr.Body)

		var payload struct {
			AvatarPath string `json:"avatarPath"`
		}
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&payload))
		assert.True(t, strings.HasPrefix(payload.AvatarPath, "/uploads/"))
		// The stored name is server-generated, never the client's filename.
		assert.NotContains(t, payload.AvatarPath, "me.png")

		me := doJSON(router, http.MethodGet, "/api/me", token, "")
		assert.Contains(t, me.Body.String(), payload.AvatarPath)
	})

	t.Run("unsupported extension rejected", func(t *testing.T) {
		buf, contentType := buildUpload("avatar", "payload.exe")
		req := httptest.NewRequest(http.MethodPost, "/api/auth/avatar", buf)
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Authorization", "Bearer "+token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("wrong field name rejected", func(t *testing.T) {
		buf, contentType := buildUpload("file", "me.png")
		req := httptest.NewRequest(http.MethodPost, "/api/auth/avatar", buf)
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Authorization", "Bearer "+token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestAuthEndpoints_ResetPasswordRejectsBadTokens(t *testing.T) {
	router := newTestRouter(t)
	accessToken := registerUser(t, router, "Alice", "alice@example.com")

	// Garbage token.
	rr := doJSON(router, http.MethodPost, "/api/auth/reset-password/garbage", "",
		`{"password":"a new password"}`)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	// A valid ACCESS token is still not a reset token — the audience claim
	// keeps the two kinds apart.
	rr = doJSON(router, http.MethodPost, "/api/auth/reset-password/"+accessToken, "",
		`{"password":"a new password"}`)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
