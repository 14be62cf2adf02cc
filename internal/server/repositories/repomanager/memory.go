package repomanager

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/accounts/internal/server/models"
	"github.com/dmitrijs2005/accounts/internal/server/repositories/users"
)

// MemoryRepositoryManager keeps everything in process memory. Transactions
// run against a copy of the store that replaces it on success; txMu
// serializes them with each other and with calls made outside a transaction.
type MemoryRepositoryManager struct {
	txMu  sync.Mutex
	store *users.MemoryRepository
}

func NewMemoryRepositoryManager() *MemoryRepositoryManager {
	return &MemoryRepositoryManager{store: users.NewMemoryRepository()}
}

func (m *MemoryRepositoryManager) Users() users.Repository {
	return &lockedUsers{m: m}
}

func (m *MemoryRepositoryManager) WithTx(ctx context.Context, fn func(ctx context.Context, repo users.Repository) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	work := m.store.Clone()
	if err := fn(ctx, work); err != nil {
		return err
	}
	m.store.ReplaceWith(work)
	return nil
}

func (m *MemoryRepositoryManager) RunMigrations(context.Context) error { return nil }

func (m *MemoryRepositoryManager) Ping(context.Context) error { return nil }

func (m *MemoryRepositoryManager) Close() error { return nil }

type lockedUsers struct {
	m *MemoryRepositoryManager
}

func (l *lockedUsers) lock() func() {
	l.m.txMu.Lock()
	return l.m.txMu.Unlock
}

func (l *lockedUsers) Create(ctx context.Context, user *models.User) (*models.User, error) {
	defer l.lock()()
	return l.m.store.Create(ctx, user)
}

func (l *lockedUsers) GetByID(ctx context.Context, id string) (*models.User, error) {
	defer l.lock()()
	return l.m.store.GetByID(ctx, id)
}

func (l *lockedUsers) FindByLogin(ctx context.Context, login string) ([]*models.User, error) {
	defer l.lock()()
	return l.m.store.FindByLogin(ctx, login)
}

func (l *lockedUsers) FindByEmail(ctx context.Context, email string) ([]*models.User, error) {
	defer l.lock()()
	return l.m.store.FindByEmail(ctx, email)
}

func (l *lockedUsers) ExistsUserName(ctx context.Context, userName, excludeID string) (bool, error) {
	defer l.lock()()
	return l.m.store.ExistsUserName(ctx, userName, excludeID)
}

func (l *lockedUsers) ExistsEmail(ctx context.Context, email, excludeID string) (bool, error) {
	defer l.lock()()
	return l.m.store.ExistsEmail(ctx, email, excludeID)
}

func (l *lockedUsers) Update(ctx context.Context, user *models.User) error {
	defer l.lock()()
	return l.m.store.Update(ctx, user)
}

func (l *lockedUsers) GetByIDForUpdate(ctx context.Context, id string) (*models.User, error) {
	defer l.lock()()
	return l.m.store.GetByIDForUpdate(ctx, id)
}

func (l *lockedUsers) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	defer l.lock()()
	return l.m.store.UpdateLastLogin(ctx, id, at)
}

func (l *lockedUsers) UpdatePasswordHash(ctx context.Context, id, oldHash, newHash string) (bool, error) {
	defer l.lock()()
	return l.m.store.UpdatePasswordHash(ctx, id, oldHash, newHash)
}

func (l *lockedUsers) DeleteInactive(ctx context.Context, id string) error {
	defer l.lock()()
	return l.m.store.DeleteInactive(ctx, id)
}
