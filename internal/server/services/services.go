// Package services contains the account business logic: login with lockout
// (AuthService) and the registration, activation, password reset and
// profile flows (AccountService). Errors returned to callers are the
// sentinels from internal/common or a validation.Errors value.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dmitrijs2005/accounts/internal/common"
	"github.com/dmitrijs2005/accounts/internal/logging"
	"github.com/dmitrijs2005/accounts/internal/server/attempts"
	"github.com/dmitrijs2005/accounts/internal/server/events"
	"github.com/dmitrijs2005/accounts/internal/server/hasher"
	"github.com/dmitrijs2005/accounts/internal/server/mail"
	"github.com/dmitrijs2005/accounts/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/accounts/internal/server/repositories/users"
	"github.com/dmitrijs2005/accounts/internal/server/tokens"
	"github.com/dmitrijs2005/accounts/internal/server/validation"
)

// Deps are the collaborators shared by both services.
type Deps struct {
	Repos   repomanager.RepositoryManager
	Counter attempts.Counter
	Tokens  *tokens.Generator
	Hasher  hasher.Hasher
	Mailer  mail.Mailer
	Events  events.Publisher
	Log     logging.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

func (d *Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d *Deps) publish(ctx context.Context, name, userID string, data map[string]string) {
	if d.Events == nil {
		return
	}
	if err := d.Events.Publish(ctx, events.New(name, userID, data)); err != nil {
		d.Log.Warn(ctx, "event publish failed", "event", name, "error", err)
	}
}

// collapse keeps known sentinels and turns everything else into
// common.ErrorInternal after logging it.
func (d *Deps) collapse(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	for _, known := range []error{
		common.ErrValidation,
		common.ErrInvalidToken,
		common.ErrMailDelivery,
		common.ErrInvalidCredentials,
		common.ErrLockedOut,
		common.ErrorUnauthorized,
		common.ErrorInternal,
	} {
		if errors.Is(err, known) {
			return err
		}
	}
	d.Log.Error(ctx, "operation failed", "op", op, "error", err)
	return common.ErrorInternal
}

// fieldConflict turns a uniqueness violation from the store into the form
// error a user would have seen had the pre-check caught it.
func fieldConflict(err error) error {
	switch {
	case errors.Is(err, users.ErrUserNameTaken):
		return validation.Errors{"username": {msgUserNameTaken}}
	case errors.Is(err, users.ErrEmailTaken):
		return validation.Errors{"email": {msgEmailTaken}}
	}
	return err
}

const (
	msgUserNameTaken = "A user with that username already exists."
	msgEmailTaken    = "User with this Email already exists."
)

func joinURL(base string, parts ...string) string {
	return strings.TrimRight(base, "/") + "/" + strings.Join(parts, "/") + "/"
}
