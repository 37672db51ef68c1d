package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/planthub/authapi/internal/services"
	"github.com/planthub/authapi/internal/store"
	"github.com/planthub/authapi/types"
)

const (
	msgCannotDeleteSelf     = "You cannot delete your own account."
	msgUseOwnPasswordChange = "Use the regular change password endpoint to update your own password."
	msgUsersRetrieved       = "Users retrieved successfully"
	msgUserCreated          = "User created successfully"
	msgUserDeleted          = "User deleted successfully"
	msgUserPasswordChanged  = "User password changed successfully"
)

// UserHandler provides the administrator account management endpoints.
type UserHandler struct {
	service *services.UserService
	logger  *slog.Logger
}

func NewUserHandler(service *services.UserService, logger *slog.Logger) *UserHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserHandler{service: service, logger: logger}
}

// UserRouter registers the admin-only user routes on the given router.
func UserRouter(r chi.Router, handler *UserHandler, mw *Middleware) {
	r.Use(mw.RequireAuth, mw.RequireRole(types.RoleAdmin))

	r.Get("/", handler.List)
	r.Post("/", handler.Create)
	r.Delete("/{id}", handler.Delete)
	r.Patch("/{id}/password", handler.SetPassword)
}

type UserListResponse struct {
	Message string            `json:"message"`
	Users   []types.Principal `json:"users"`
	Count   int               `json:"count"`
}

// List returns every account, newest first.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.List(r.Context())
	if err != nil {
		writeInternalError(w, r, h.logger, "list users failed", err)
		return
	}

	principals := make([]types.Principal, 0, len(users))
	for _, u := range users {
		principals = append(principals, u.Principal())
	}
	writeJSON(w, http.StatusOK, UserListResponse{
		Message: msgUsersRetrieved,
		Users:   principals,
		Count:   len(principals),
	})
}

// Create adds an account. The role defaults to USER.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidRequest)
		return
	}
	if errs := req.validate(); len(errs) > 0 {
		writeValidationError(w, errs)
		return
	}

	user, err := h.service.Create(r.Context(), services.NewUser{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Password:  req.Password,
		Role:      req.Role,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			writeError(w, http.StatusConflict, msgEmailTaken)
			return
		}
		writeInternalError(w, r, h.logger, "create user failed", err)
		return
	}

	writeJSON(w, http.StatusCreated, UserResponse{Message: msgUserCreated, User: user.Principal()})
}

// Delete removes an account other than the caller's own.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, msgUnauthorized)
		return
	}
	id := chi.URLParam(r, "id")
	if id == actor.ID {
		writeError(w, http.StatusBadRequest, msgCannotDeleteSelf)
		return
	}

	deleted, err := h.service.Delete(r.Context(), actor.ID, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, msgUserNotFound)
			return
		}
		writeInternalError(w, r, h.logger, "delete user failed", err)
		return
	}

	writeJSON(w, http.StatusOK, UserResponse{Message: msgUserDeleted, User: deleted.Principal()})
}

// SetPassword resets the password of another account.
func (h *UserHandler) SetPassword(w http.ResponseWriter, r *http.Request) {
	actor, ok := PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, msgUnauthorized)
		return
	}
	id := chi.URLParam(r, "id")
	if id == actor.ID {
		writeError(w, http.StatusBadRequest, msgUseOwnPasswordChange)
		return
	}

	var req SetPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidRequest)
		return
	}
	if errs := req.validate(); len(errs) > 0 {
		writeValidationError(w, errs)
		return
	}

	if err := h.service.SetPassword(r.Context(), actor.ID, id, req.NewPassword); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, msgUserNotFound)
			return
		}
		writeInternalError(w, r, h.logger, "set user password failed", err)
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: msgUserPasswordChanged})
}
