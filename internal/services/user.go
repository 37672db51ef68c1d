package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/planthub/authapi/internal/auth"
	"github.com/planthub/authapi/internal/events"
	"github.com/planthub/authapi/internal/store"
	"github.com/planthub/authapi/types"
)

// ErrInvalidCurrentPassword is returned by ChangePassword when the supplied
// current password does not match.
var ErrInvalidCurrentPassword = errors.New("invalid current password")

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	List(ctx context.Context) ([]types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, user types.User) (types.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	Delete(ctx context.Context, id string) (types.User, error)
}

// NewUser is the input of UserService.Create.
type NewUser struct {
	Email     string
	FirstName string
	LastName  string
	Password  string
	Role      types.Role
}

// UserService is the user directory: account lookup plus the profile and
// password use-cases. Lookups return store.ErrNotFound for unknown accounts.
type UserService struct {
	repo   UserRepository
	hasher auth.PasswordHasher
	events *events.Publisher
}

func NewUserService(repo UserRepository, hasher auth.PasswordHasher, publisher *events.Publisher) *UserService {
	return &UserService{repo: repo, hasher: hasher, events: publisher}
}

func (s *UserService) FindByID(ctx context.Context, id string) (types.User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *UserService) FindByEmail(ctx context.Context, email string) (types.User, error) {
	return s.repo.GetByEmail(ctx, email)
}

func (s *UserService) List(ctx context.Context) ([]types.User, error) {
	return s.repo.List(ctx)
}

// Create hashes the password and stores a new account. A duplicate email
// yields store.ErrConflict.
func (s *UserService) Create(ctx context.Context, input NewUser) (types.User, error) {
	if _, err := s.repo.GetByEmail(ctx, input.Email); err == nil {
		return types.User{}, store.ErrConflict
	} else if !errors.Is(err, store.ErrNotFound) {
		return types.User{}, err
	}

	role := input.Role
	if role == "" {
		role = types.RoleUser
	}

	hashed, err := s.hasher.Hash(input.Password)
	if err != nil {
		return types.User{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.repo.Create(ctx, types.User{
		Email:        input.Email,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Role:         role,
		PasswordHash: hashed,
	})
	if err != nil {
		return types.User{}, err
	}
	s.events.EmitContext(ctx, events.Event{Type: events.UserCreated, UserID: user.ID})
	return user, nil
}

// UpdateProfile applies the set fields of update to the account. Taking an
// email owned by another account yields store.ErrConflict.
func (s *UserService) UpdateProfile(ctx context.Context, id string, update types.ProfileUpdate) (types.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return types.User{}, err
	}

	if update.Email != nil && *update.Email != user.Email {
		existing, err := s.repo.GetByEmail(ctx, *update.Email)
		if err == nil && existing.ID != id {
			return types.User{}, store.ErrConflict
		}
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return types.User{}, err
		}
		user.Email = *update.Email
	}
	if update.FirstName != nil {
		user.FirstName = *update.FirstName
	}
	if update.LastName != nil {
		user.LastName = *update.LastName
	}

	updated, err := s.repo.Update(ctx, user)
	if err != nil {
		return types.User{}, err
	}
	s.events.EmitContext(ctx, events.Event{Type: events.ProfileUpdated, UserID: id})
	return updated, nil
}

// ChangePassword replaces the password after checking the current one.
func (s *UserService) ChangePassword(ctx context.Context, id, currentPassword, newPassword string) error {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	ok, err := s.hasher.Verify(user.PasswordHash, currentPassword)
	if err != nil {
		return fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return ErrInvalidCurrentPassword
	}

	if err := s.storePassword(ctx, id, newPassword); err != nil {
		return err
	}
	s.events.EmitContext(ctx, events.Event{Type: events.PasswordChanged, UserID: id, ActorID: id})
	return nil
}

// SetPassword replaces the password of id without checking the current one.
// actorID identifies the administrator performing the change.
func (s *UserService) SetPassword(ctx context.Context, actorID, id, newPassword string) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return err
	}
	if err := s.storePassword(ctx, id, newPassword); err != nil {
		return err
	}
	s.events.EmitContext(ctx, events.Event{Type: events.PasswordChanged, UserID: id, ActorID: actorID})
	return nil
}

// Delete removes the account and returns it.
func (s *UserService) Delete(ctx context.Context, actorID, id string) (types.User, error) {
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return types.User{}, err
	}
	s.events.EmitContext(ctx, events.Event{Type: events.UserDeleted, UserID: id, ActorID: actorID})
	return deleted, nil
}

// EnsureAdmin creates an ADMIN account for email unless one exists.
// It reports whether an account was created.
func (s *UserService) EnsureAdmin(ctx context.Context, email, password string) (types.User, bool, error) {
	existing, err := s.repo.GetByEmail(ctx, email)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return types.User{}, false, err
	}

	user, err := s.Create(ctx, NewUser{
		Email:     email,
		FirstName: "Admin",
		LastName:  "User",
		Password:  password,
		Role:      types.RoleAdmin,
	})
	if err != nil {
		return types.User{}, false, err
	}
	return user, true, nil
}

func (s *UserService) storePassword(ctx context.Context, id, password string) error {
	hashed, err := s.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.repo.UpdatePassword(ctx, id, hashed)
}
