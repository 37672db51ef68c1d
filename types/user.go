package types

import "time"

// Role is the authorization level of an account.
type Role string

const (
	RoleAdmin Role = "ADMIN"
	RoleUser  Role = "USER"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

// User represents an account in the system.
// It contains identity, role, and audit metadata.
type User struct {
	// ID is the unique identifier of the user (UUID).
	ID string `json:"id" db:"id"`

	// Email is the user's login address. Unique and case-sensitive as stored.
	Email string `json:"email" db:"email"`

	// FirstName and LastName are the display names of the user.
	FirstName string `json:"firstName" db:"first_name"`
	LastName  string `json:"lastName" db:"last_name"`

	// Role indicates the user's authorization level within the system.
	Role Role `json:"role" db:"role"`

	// PasswordHash stores the hashed representation of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// Principal is the sanitized view of a User that is attached to a request
// and returned across the API boundary. It has no password field at all.
type Principal struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Principal returns the sanitized view of u.
func (u User) Principal() Principal {
	return Principal{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// ProfileUpdate holds the optional fields of a profile change.
// Nil fields are left untouched.
type ProfileUpdate struct {
	Email     *string
	FirstName *string
	LastName  *string
}

// Empty reports whether no field is set.
func (p ProfileUpdate) Empty() bool {
	return p.Email == nil && p.FirstName == nil && p.LastName == nil
}
