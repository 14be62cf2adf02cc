package services

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/accounts/internal/common"
	"github.com/dmitrijs2005/accounts/internal/server/attempts"
	"github.com/dmitrijs2005/accounts/internal/server/auth"
	"github.com/dmitrijs2005/accounts/internal/server/config"
	"github.com/dmitrijs2005/accounts/internal/server/events"
	"github.com/dmitrijs2005/accounts/internal/server/models"
	"github.com/dmitrijs2005/accounts/internal/server/repositories/users"
)

// AuthService logs users in by username or email and guards the login with
// the failed-attempt counter.
type AuthService struct {
	*Deps
	maxFailedAttempts int
	sessionSecret     []byte
	sessionValidity   time.Duration
}

func NewAuthService(d *Deps, cfg *config.Config) *AuthService {
	return &AuthService{
		Deps:              d,
		maxFailedAttempts: cfg.MaxFailedAttempts,
		sessionSecret:     []byte(cfg.SecretKey),
		sessionValidity:   cfg.SessionValidityDuration,
	}
}

// Login returns the user for a correct identity/password pair.
//
// Every attempt is counted before the password is looked at, so a locked
// identity gets common.ErrLockedOut without a password check and
// concurrent attempts cannot exceed the threshold. Unknown identities,
// wrong passwords and inactive accounts all count as a failure and return
// common.ErrInvalidCredentials, or ErrLockedOut once the failure reaches
// the threshold. A success clears the count.
func (s *AuthService) Login(ctx context.Context, identity, password string) (*models.User, error) {
	identity = strings.TrimSpace(identity)
	key := attempts.NormalizeKey(identity)

	allowed, n, err := s.Counter.Reserve(ctx, key)
	if err != nil {
		return nil, s.collapse(ctx, "login", err)
	}
	if !allowed {
		s.Log.Info(ctx, "login rejected, identity locked", "login", key)
		return nil, common.ErrLockedOut
	}

	user, err := s.authenticate(ctx, identity, password)
	if err != nil {
		return nil, s.collapse(ctx, "login", err)
	}

	if user != nil {
		user, err = s.recordLogin(ctx, user, password)
		if errors.Is(err, errStaleCredentials) {
			s.Log.Info(ctx, "credentials changed during login", "login", key)
			user, err = nil, nil
		}
		if err != nil {
			return nil, s.collapse(ctx, "login", err)
		}
	}

	if user == nil {
		return nil, s.loginFailed(ctx, key, n)
	}

	if err := s.Counter.Clear(ctx, key); err != nil {
		s.Log.Warn(ctx, "attempt counter clear failed", "login", key, "error", err)
	}

	s.Log.Info(ctx, "user logged in", "user_id", user.ID)
	s.publish(ctx, events.UserLoggedIn, user.ID, nil)
	return user, nil
}

// errStaleCredentials means the account changed between the password check
// and the write, so the checked password may no longer be current.
var errStaleCredentials = errors.New("credentials changed during login")

// recordLogin stamps last_login on the user whose password was verified
// against verified.PasswordHash, upgrading the hash when the hasher asks
// for it. Both writes touch only their own columns and are skipped with
// errStaleCredentials if the stored hash or active flag moved meanwhile.
func (s *AuthService) recordLogin(ctx context.Context, verified *models.User, password string) (*models.User, error) {
	var rehashed string
	if s.Hasher.NeedsRehash(verified.PasswordHash) {
		h, err := s.Hasher.Hash(password)
		if err != nil {
			s.Log.Warn(ctx, "password rehash failed", "user_id", verified.ID, "error", err)
		} else {
			rehashed = h
		}
	}

	var out *models.User
	err := s.Repos.WithTx(ctx, func(ctx context.Context, repo users.Repository) error {
		u, err := repo.GetByIDForUpdate(ctx, verified.ID)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return errStaleCredentials
			}
			return err
		}
		if !u.IsActive || u.PasswordHash != verified.PasswordHash {
			return errStaleCredentials
		}

		now := s.now().UTC()
		if err := repo.UpdateLastLogin(ctx, u.ID, now); err != nil {
			return err
		}
		u.LastLogin = &now

		if rehashed != "" {
			ok, err := repo.UpdatePasswordHash(ctx, u.ID, u.PasswordHash, rehashed)
			if err != nil {
				return err
			}
			if ok {
				u.PasswordHash = rehashed
			}
		}

		out = u
		return nil
	})
	return out, err
}

func (s *AuthService) loginFailed(ctx context.Context, key string, n int) error {
	s.Log.Info(ctx, "login failed", "login", key, "failures", n)
	s.publish(ctx, events.UserLoginFailed, "", map[string]string{"login": key, "failures": strconv.Itoa(n)})

	if n >= s.maxFailedAttempts {
		s.Log.Warn(ctx, "identity locked out", "login", key)
		s.publish(ctx, events.UserLockedOut, "", map[string]string{"login": key})
		return common.ErrLockedOut
	}
	return common.ErrInvalidCredentials
}

// IssueSession returns the signed session cookie value for user.
func (s *AuthService) IssueSession(user *models.User) (string, error) {
	tok, err := auth.GenerateToken(user.ID, s.sessionSecret, s.sessionValidity)
	if err != nil {
		return "", common.ErrorInternal
	}
	return tok, nil
}

// SessionUser resolves a session cookie value to an active user, or
// returns common.ErrorUnauthorized.
func (s *AuthService) SessionUser(ctx context.Context, session string) (*models.User, error) {
	id, err := auth.GetUserIDFromToken(session, s.sessionSecret)
	if err != nil {
		return nil, common.ErrorUnauthorized
	}

	user, err := s.Repos.Users().GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, s.collapse(ctx, "session", err)
	}
	if !user.IsActive {
		return nil, common.ErrorUnauthorized
	}
	return user, nil
}
