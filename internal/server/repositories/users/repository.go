// Package users is the credential store: persistence of user accounts.
package users

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/accounts/internal/common"
	"github.com/dmitrijs2005/accounts/internal/server/models"
)

// Unique-index names in the users table.
const (
	ConstraintUserName = "users_username_key"
	ConstraintEmail    = "users_email_lower_key"
)

var (
	ErrUserNameTaken = fmt.Errorf("username %w", common.ErrorAlreadyExists)
	ErrEmailTaken    = fmt.Errorf("email %w", common.ErrorAlreadyExists)
)

// Repository stores users. Lookups by email compare lower-cased values.
// Get, Update, UpdateLastLogin and DeleteInactive return
// common.ErrorNotFound for unknown ids; Create and
// Update return ErrUserNameTaken or ErrEmailTaken on uniqueness conflicts.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	// GetByIDForUpdate also locks the row until the surrounding
	// transaction ends. Redemptions read through it so that a second
	// concurrent redeemer sees the first one's write.
	GetByIDForUpdate(ctx context.Context, id string) (*models.User, error)
	// FindByLogin matches the username exactly or the email case-insensitively.
	FindByLogin(ctx context.Context, login string) ([]*models.User, error)
	FindByEmail(ctx context.Context, email string) ([]*models.User, error)
	// ExistsUserName and ExistsEmail ignore the user with id excludeID.
	ExistsUserName(ctx context.Context, userName, excludeID string) (bool, error)
	ExistsEmail(ctx context.Context, email, excludeID string) (bool, error)
	Update(ctx context.Context, user *models.User) error
	// UpdateLastLogin writes only the last_login column.
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
	// UpdatePasswordHash replaces the hash only while it still equals
	// oldHash and reports whether it did.
	UpdatePasswordHash(ctx context.Context, id, oldHash, newHash string) (bool, error)
	// DeleteInactive removes an account that was never activated.
	DeleteInactive(ctx context.Context, id string) error
}
