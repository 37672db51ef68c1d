package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/planthub/authapi/internal/auth"
	"github.com/planthub/authapi/internal/metrics"
	"github.com/planthub/authapi/internal/services"
	"github.com/planthub/authapi/internal/store"
	"github.com/planthub/authapi/types"
)

const msgWrongCurrentPassword = "Current password is incorrect."

// AuthHandler provides the cookie session endpoints.
type AuthHandler struct {
	authService *services.AuthService
	userService *services.UserService
	cookies     auth.SessionCookiePolicy
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(authService *services.AuthService, userService *services.UserService, cookies auth.SessionCookiePolicy, m *metrics.Metrics, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{
		authService: authService,
		userService: userService,
		cookies:     cookies,
		metrics:     m,
		logger:      logger,
	}
}

// AuthRouter registers auth routes on the given router. The router must
// already run mw.Deserialize.
func AuthRouter(r chi.Router, handler *AuthHandler, mw *Middleware) {
	r.Post("/login", handler.Login)

	r.Group(func(r chi.Router) {
		r.Use(mw.RequireAuth)
		r.Post("/logout", handler.Logout)
		r.Get("/me", handler.Me)
		r.Patch("/me", handler.UpdateMe)
		r.Patch("/change-password", handler.ChangePassword)
	})
}

type UserResponse struct {
	Message string          `json:"message,omitempty"`
	User    types.Principal `json:"user"`
}

// Login verifies credentials and sets the access and refresh cookies.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidRequest)
		return
	}
	if errs := req.validate(); len(errs) > 0 {
		writeValidationError(w, errs)
		return
	}

	session, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			h.metrics.ObserveLogin(metrics.LoginInvalidCredentials)
			writeError(w, http.StatusUnauthorized, msgInvalidCredentials)
			return
		}
		h.metrics.ObserveLogin(metrics.LoginError)
		writeInternalError(w, r, h.logger, "login failed", err)
		return
	}
	h.metrics.ObserveLogin(metrics.LoginSucceeded)

	http.SetCookie(w, h.cookies.AccessCookie(session.AccessToken))
	http.SetCookie(w, h.cookies.RefreshCookie(session.RefreshToken))
	writeJSON(w, http.StatusOK, UserResponse{Message: "Login successful", User: session.User.Principal()})
}

// Logout clears both session cookies.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if principal, ok := PrincipalFromContext(r.Context()); ok {
		h.authService.Logout(r.Context(), principal.ID)
	}
	http.SetCookie(w, h.cookies.ClearAccessCookie())
	http.SetCookie(w, h.cookies.ClearRefreshCookie())
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Logout successful"})
}

// Me returns the current principal.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, msgUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, UserResponse{User: principal})
}

// UpdateMe patches the email and display names of the current account.
func (h *AuthHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, msgUnauthorized)
		return
	}

	var req UpdateProfileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidRequest)
		return
	}
	if errs := req.validate(); len(errs) > 0 {
		writeValidationError(w, errs)
		return
	}

	updated, err := h.userService.UpdateProfile(r.Context(), principal.ID, req.update())
	if err != nil {
		switch {
		case errors.Is(err, store.ErrConflict):
			writeError(w, http.StatusConflict, msgEmailTaken)
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, msgUserNotFound)
		default:
			writeInternalError(w, r, h.logger, "update profile failed", err)
		}
		return
	}

	writeJSON(w, http.StatusOK, UserResponse{Message: "Profile updated successfully", User: updated.Principal()})
}

// ChangePassword replaces the password of the current account.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, msgUnauthorized)
		return
	}

	var req ChangePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidRequest)
		return
	}
	if errs := req.validate(); len(errs) > 0 {
		writeValidationError(w, errs)
		return
	}

	err := h.userService.ChangePassword(r.Context(), principal.ID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidCurrentPassword):
			writeError(w, http.StatusBadRequest, msgWrongCurrentPassword)
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, msgUserNotFound)
		default:
			writeInternalError(w, r, h.logger, "change password failed", err)
		}
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "Password changed successfully"})
}
