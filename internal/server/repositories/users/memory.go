package users

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/accounts/internal/common"
	"github.com/dmitrijs2005/accounts/internal/server/models"
)

// MemoryRepository keeps users in process memory. It enforces the same
// uniqueness rules as the PostgreSQL schema and hands out copies, never
// the stored records.
type MemoryRepository struct {
	mu    sync.RWMutex
	users map[string]*models.User
	now   func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{users: make(map[string]*models.User), now: time.Now}
}

// Clone returns an independent copy of the repository contents.
func (r *MemoryRepository) Clone() *MemoryRepository {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c := &MemoryRepository{users: make(map[string]*models.User, len(r.users)), now: r.now}
	for id, u := range r.users {
		c.users[id] = u.Clone()
	}
	return c
}

// ReplaceWith swaps in the contents of src.
func (r *MemoryRepository) ReplaceWith(src *MemoryRepository) {
	src.mu.RLock()
	users := src.users
	src.mu.RUnlock()

	r.mu.Lock()
	r.users = users
	r.mu.Unlock()
}

func (r *MemoryRepository) conflict(u *models.User) error {
	email := strings.ToLower(u.Email)
	for id, other := range r.users {
		if id == u.ID {
			continue
		}
		if other.UserName == u.UserName {
			return ErrUserNameTaken
		}
		if strings.ToLower(other.Email) == email {
			return ErrEmailTaken
		}
	}
	return nil
}

func (r *MemoryRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if _, ok := r.users[user.ID]; ok {
		return nil, common.ErrorAlreadyExists
	}
	if err := r.conflict(user); err != nil {
		return nil, err
	}

	now := r.now().UTC()
	user.DateJoined = now
	user.UpdatedAt = now
	r.users[user.ID] = user.Clone()

	return user, nil
}

func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return u.Clone(), nil
}

func (r *MemoryRepository) filter(match func(*models.User) bool) []*models.User {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*models.User
	for _, u := range r.users {
		if match(u) {
			result = append(result, u.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].DateJoined.Before(result[j].DateJoined)
	})
	return result
}

func (r *MemoryRepository) FindByLogin(ctx context.Context, login string) ([]*models.User, error) {
	lower := strings.ToLower(login)
	return r.filter(func(u *models.User) bool {
		return u.UserName == login || strings.ToLower(u.Email) == lower
	}), nil
}

func (r *MemoryRepository) FindByEmail(ctx context.Context, email string) ([]*models.User, error) {
	lower := strings.ToLower(email)
	return r.filter(func(u *models.User) bool {
		return strings.ToLower(u.Email) == lower
	}), nil
}

func (r *MemoryRepository) ExistsUserName(ctx context.Context, userName, excludeID string) (bool, error) {
	found := r.filter(func(u *models.User) bool {
		return u.ID != excludeID && u.UserName == userName
	})
	return len(found) > 0, nil
}

func (r *MemoryRepository) ExistsEmail(ctx context.Context, email, excludeID string) (bool, error) {
	lower := strings.ToLower(email)
	found := r.filter(func(u *models.User) bool {
		return u.ID != excludeID && strings.ToLower(u.Email) == lower
	})
	return len(found) > 0, nil
}

func (r *MemoryRepository) Update(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.users[user.ID]
	if !ok {
		return common.ErrorNotFound
	}
	if err := r.conflict(user); err != nil {
		return err
	}

	user.DateJoined = stored.DateJoined
	user.UpdatedAt = r.now().UTC()
	r.users[user.ID] = user.Clone()

	return nil
}

// GetByIDForUpdate is GetByID; the manager's transaction lock already
// serializes writers.
func (r *MemoryRepository) GetByIDForUpdate(ctx context.Context, id string) (*models.User, error) {
	return r.GetByID(ctx, id)
}

func (r *MemoryRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.users[id]
	if !ok {
		return common.ErrorNotFound
	}
	t := at
	stored.LastLogin = &t
	return nil
}

func (r *MemoryRepository) UpdatePasswordHash(ctx context.Context, id, oldHash, newHash string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.users[id]
	if !ok || stored.PasswordHash != oldHash {
		return false, nil
	}
	stored.PasswordHash = newHash
	stored.UpdatedAt = r.now().UTC()
	return true, nil
}

func (r *MemoryRepository) DeleteInactive(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.users[id]
	if !ok || stored.IsActive {
		return common.ErrorNotFound
	}
	delete(r.users, id)
	return nil
}
