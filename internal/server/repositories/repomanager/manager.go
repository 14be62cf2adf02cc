// Package repomanager vends repositories and runs work inside transactions
// for the storage backend selected at startup.
package repomanager

import (
	"context"

	"github.com/dmitrijs2005/accounts/internal/server/repositories/users"
)

type RepositoryManager interface {
	// Users returns a repository bound to the shared connection.
	Users() users.Repository
	// WithTx runs fn against a repository bound to one transaction. The
	// transaction commits when fn returns nil and rolls back otherwise.
	WithTx(ctx context.Context, fn func(ctx context.Context, repo users.Repository) error) error
	RunMigrations(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
