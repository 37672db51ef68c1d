package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/planthub/authapi/types"
)

// MemoryUserRepository is an in-process user store with the same semantics
// as UserRepository. It backs tests and database-less local runs.
type MemoryUserRepository struct {
	mu      sync.RWMutex
	byID    map[string]types.User
	byEmail map[string]string
	now     func() time.Time
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		byID:    make(map[string]types.User),
		byEmail: make(map[string]string),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (r *MemoryUserRepository) GetByID(_ context.Context, id string) (types.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.byID[id]
	if !ok {
		return types.User{}, ErrNotFound
	}
	return user, nil
}

func (r *MemoryUserRepository) GetByEmail(_ context.Context, email string) (types.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[email]
	if !ok {
		return types.User{}, ErrNotFound
	}
	return r.byID[id], nil
}

func (r *MemoryUserRepository) List(_ context.Context) ([]types.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	users := make([]types.User, 0, len(r.byID))
	for _, user := range r.byID {
		users = append(users, user)
	}
	sort.SliceStable(users, func(i, j int) bool {
		return users[i].CreatedAt.After(users[j].CreatedAt)
	})
	return users, nil
}

func (r *MemoryUserRepository) Create(_ context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.byEmail[user.Email]; taken {
		return types.User{}, ErrConflict
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if _, taken := r.byID[user.ID]; taken {
		return types.User{}, ErrConflict
	}
	now := r.now()
	user.CreatedAt = now
	user.UpdatedAt = now
	r.byID[user.ID] = user
	r.byEmail[user.Email] = user.ID
	return user, nil
}

func (r *MemoryUserRepository) Update(_ context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.byID[user.ID]
	if !ok {
		return types.User{}, ErrNotFound
	}
	if owner, taken := r.byEmail[user.Email]; taken && owner != user.ID {
		return types.User{}, ErrConflict
	}
	delete(r.byEmail, current.Email)
	current.Email = user.Email
	current.FirstName = user.FirstName
	current.LastName = user.LastName
	current.Role = user.Role
	current.UpdatedAt = r.now()
	r.byID[current.ID] = current
	r.byEmail[current.Email] = current.ID
	return current, nil
}

func (r *MemoryUserRepository) UpdatePassword(_ context.Context, id, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	current.PasswordHash = passwordHash
	current.UpdatedAt = r.now()
	r.byID[id] = current
	return nil
}

func (r *MemoryUserRepository) Delete(_ context.Context, id string) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.byID[id]
	if !ok {
		return types.User{}, ErrNotFound
	}
	delete(r.byID, id)
	delete(r.byEmail, current.Email)
	return current, nil
}
