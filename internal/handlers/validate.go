package handlers

import (
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/planthub/authapi/types"
)

const (
	minNameLength     = 2
	minPasswordLength = 8
)

// FieldError describes one invalid request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type validator struct {
	errs []FieldError
}

func (v *validator) add(field, message string) {
	v.errs = append(v.errs, FieldError{Field: field, Message: message})
}

func (v *validator) email(field, value string) {
	if !validEmail(value) {
		v.add(field, "A valid email is required")
	}
}

func (v *validator) minLength(field, value string, n int, message string) {
	if utf8.RuneCountInString(value) < n {
		v.add(field, message)
	}
}

func (v *validator) required(field, value, message string) {
	if value == "" {
		v.add(field, message)
	}
}

// validEmail accepts a bare address such as a@x.com; display names and
// angle brackets are rejected.
func validEmail(value string) bool {
	if value == "" || strings.ContainsAny(value, " <>") {
		return false
	}
	addr, err := mail.ParseAddress(value)
	if err != nil || addr.Address != value {
		return false
	}
	at := strings.LastIndexByte(value, '@')
	return at > 0 && strings.Contains(value[at+1:], ".")
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (req *LoginRequest) validate() []FieldError {
	req.Email = strings.TrimSpace(req.Email)
	var v validator
	v.email("email", req.Email)
	v.required("password", req.Password, "Password is required")
	return v.errs
}

type CreateUserRequest struct {
	Email     string     `json:"email"`
	FirstName string     `json:"firstName"`
	LastName  string     `json:"lastName"`
	Password  string     `json:"password"`
	Role      types.Role `json:"role,omitempty"`
}

func (req *CreateUserRequest) validate() []FieldError {
	req.Email = strings.TrimSpace(req.Email)
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	var v validator
	v.email("email", req.Email)
	v.minLength("firstName", req.FirstName, minNameLength, "First name must be at least 2 characters long")
	v.minLength("lastName", req.LastName, minNameLength, "Last name must be at least 2 characters long")
	v.minLength("password", req.Password, minPasswordLength, "Password must be at least 8 characters long")
	if req.Role != "" && !req.Role.Valid() {
		v.add("role", "Role must be ADMIN or USER")
	}
	return v.errs
}

type UpdateProfileRequest struct {
	Email     *string `json:"email"`
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
}

func (req *UpdateProfileRequest) validate() []FieldError {
	var v validator
	if req.Email == nil && req.FirstName == nil && req.LastName == nil {
		v.add("body", "At least one field must be provided for update")
		return v.errs
	}
	if req.Email != nil {
		*req.Email = strings.TrimSpace(*req.Email)
		v.email("email", *req.Email)
	}
	if req.FirstName != nil {
		*req.FirstName = strings.TrimSpace(*req.FirstName)
		v.minLength("firstName", *req.FirstName, minNameLength, "First name must be at least 2 characters long")
	}
	if req.LastName != nil {
		*req.LastName = strings.TrimSpace(*req.LastName)
		v.minLength("lastName", *req.LastName, minNameLength, "Last name must be at least 2 characters long")
	}
	return v.errs
}

func (req UpdateProfileRequest) update() types.ProfileUpdate {
	return types.ProfileUpdate{Email: req.Email, FirstName: req.FirstName, LastName: req.LastName}
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (req *ChangePasswordRequest) validate() []FieldError {
	var v validator
	v.required("currentPassword", req.CurrentPassword, "Current password is required")
	v.minLength("newPassword", req.NewPassword, minPasswordLength, "New password must be at least 8 characters long")
	return v.errs
}

type SetPasswordRequest struct {
	NewPassword string `json:"newPassword"`
}

func (req *SetPasswordRequest) validate() []FieldError {
	var v validator
	v.minLength("newPassword", req.NewPassword, minPasswordLength, "New password must be at least 8 characters long")
	return v.errs
}
