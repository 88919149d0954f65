package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/xid"

	"booktracker/internal/apperror"
	"booktracker/internal/auth"
	"booktracker/internal/model"
	"booktracker/internal/service"
)

// maxAvatarSize caps avatar uploads at 5 MiB. http.MaxBytesReader enforces
// this while the multipart body is being read, so an oversized upload is
// rejected without buffering it all in memory.
const maxAvatarSize = 5 << 20

// validate is shared by all handlers. A validator.Validate instance caches
// struct metadata, so one package-level instance is the intended usage.
var validate = validator.New()

// AuthHandler manages account endpoints: registration, login, the current
// user's profile, avatar upload, and the password-reset flow.
//
// HANDLER RESPONSIBILITIES:
//   - HandleRegister       → create an account, return the user + a JWT
//   - HandleLogin          → verify credentials, return the user + a JWT
//   - HandleMe             → return the currently logged-in user's profile
//   - HandleAvatarUpload   → store an uploaded image, link it to the user
//   - HandleForgotPassword → issue a reset token (delivered via the Mailer)
//   - HandleResetPassword  → consume a reset token, set a new password
//
// The handler only translates HTTP ⇄ service calls. All business rules
// (password hashing, token issuing, "don't reveal which credential was
// wrong") live in service.AuthService.
type AuthHandler struct {
	auth      *service.AuthService
	uploadDir string
	logger    *slog.Logger
}

// NewAuthHandler creates an AuthHandler. uploadDir is where avatar images
// are stored; the server creates it at startup.
func NewAuthHandler(authSvc *service.AuthService, uploadDir string, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		auth:      authSvc,
		uploadDir: uploadDir,
		logger:    logger,
	}
}

// registerRequest is the JSON body for POST /api/auth/register.
//
// VALIDATOR TAGS:
// The `validate` tags give us declarative shape checks before the service
// layer runs its own business validation. The handler rejects structurally
// broken requests (missing fields, not-an-email) with a 400 up front; the
// service still owns the semantic rules (duplicate email, password policy).
type registerRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type resetPasswordRequest struct {
	Password string `json:"password" validate:"required,min=8"`
}

// authResponse is returned by register and login: the profile plus the
// bearer token the client sends on every subsequent request.
type authResponse struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

// decodeAndValidate decodes a JSON body into dst and runs the validator.
// Returns a writeError-compatible error on failure.
func decodeAndValidate(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperror.ValidationFailed("body", "invalid JSON body")
	}
	if err := validate.Struct(dst); err != nil {
		// validator returns ValidationErrors — surface the first offending
		// field so the client knows what to fix.
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			field := strings.ToLower(verrs[0].Field())
			return apperror.ValidationFailed(field, fmt.Sprintf("%s failed the %q rule", field, verrs[0].Tag()))
		}
		return apperror.ValidationFailed("body", "request body failed validation")
	}
	return nil
}

// HandleRegister creates a new account.
//
// HTTP: POST /api/auth/register
// REQUEST BODY: {"name": "Alice", "email": "alice@example.com", "password": "..."}
//
// A successful registration signs the user in immediately — the response
// carries a JWT so the client doesn't need a follow-up login call.
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.auth.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		// Duplicate email comes back as apperror.ErrConflict → 409.
		writeError(w, err)
		return
	}

	h.logger.Info("user registered", slog.String("userID", result.User.ID))
	writeJSON(w, http.StatusCreated, authResponse{Token: result.Token, User: result.User})
}

// HandleLogin verifies credentials and issues a JWT.
//
// HTTP: POST /api/auth/login
//
// The service returns the same 401 for "no such account" and "wrong
// password" so the endpoint can't be used to probe which emails exist.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, authResponse{Token: result.Token, User: result.User})
}

// HandleMe returns the currently authenticated user's profile.
//
// HTTP: GET /api/me
// Auth: Required (RequireAuth middleware sets userID in context)
//
// This is useful for the frontend to:
//   - Know who is logged in (to show the username/avatar)
//   - Check authentication state on app load
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	// Auth middleware has already validated the JWT and set userID in context.
	// UserIDFromContext will always return (id, true) on this protected route.
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		// Should never happen on a RequireAuth-protected route, but be safe.
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	user, err := h.auth.GetUserByID(r.Context(), userID)
	if err != nil {
		h.logger.Error("HandleMe: user not found", slog.String("userID", userID))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// HandleAvatarUpload stores an uploaded profile image.
//
// HTTP: POST /api/auth/avatar  (multipart/form-data, field "avatar")
// Auth: Required
//
// STORAGE:
// The file is written under the configured upload directory with a
// generated name — never the client-supplied filename. Trusting the
// uploaded name would let a client write "../../etc/passwd" or clobber
// another user's avatar. We keep only the extension (whitelisted).
func (h *AuthHandler) HandleAvatarUpload(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxAvatarSize)
	if err := r.ParseMultipartForm(maxAvatarSize); err != nil {
		writeError(w, apperror.ValidationFailed("avatar", "avatar upload too large or malformed"))
		return
	}

	file, header, err := r.FormFile("avatar")
	if err != nil {
		writeError(w, apperror.ValidationFailed("avatar", "missing avatar file field"))
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	switch ext {
	case ".png", ".jpg", ".jpeg", ".gif", ".webp":
		// accepted image types
	default:
		writeError(w, apperror.ValidationFailed("avatar", "unsupported image type"))
		return
	}

	filename := xid.New().String() + ext
	dstPath := filepath.Join(h.uploadDir, filename)

	dst, err := os.Create(dstPath)
	if err != nil {
		h.logger.Error("avatar upload: create failed", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file); err != nil {
		h.logger.Error("avatar upload: write failed", slog.String("error", err.Error()))
		os.Remove(dstPath)
		writeError(w, err)
		return
	}

	// Store the public path, not the filesystem path — the server mounts
	// the upload dir at /uploads/.
	avatarPath := "/uploads/" + filename
	if err := h.auth.UpdateAvatar(r.Context(), userID, avatarPath); err != nil {
		os.Remove(dstPath)
		writeError(w, err)
		return
	}

	h.logger.Info("avatar updated",
		slog.String("userID", userID),
		slog.String("path", avatarPath),
	)
	writeJSON(w, http.StatusOK, map[string]string{"avatarPath": avatarPath})
}

// HandleForgotPassword starts the password-reset flow.
//
// HTTP: POST /api/auth/forgot-password
//
// ALWAYS 202:
// Whether or not the email exists, the response is the same. Returning 404
// for unknown emails would let anyone enumerate registered accounts.
func (h *AuthHandler) HandleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if err := h.auth.ForgotPassword(r.Context(), req.Email); err != nil {
		// Delivery failures are logged server-side; the client still gets 202
		// so the endpoint stays enumeration-safe.
		h.logger.Error("forgot password failed", slog.String("error", err.Error()))
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"message": "if that account exists, a reset link has been sent",
	})
}

// HandleResetPassword completes the password-reset flow.
//
// HTTP: POST /api/auth/reset-password/{token}
// REQUEST BODY: {"password": "new-password"}
//
// The token in the URL is the short-lived reset JWT from the email. An
// expired or tampered token maps to 401 via writeError.
func (h *AuthHandler) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")
	if token == "" {
		writeError(w, apperror.ValidationFailed("token", "reset token is required"))
		return
	}

	var req resetPasswordRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if err := h.auth.ResetPassword(r.Context(), token, req.Password); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "password updated"})
}
