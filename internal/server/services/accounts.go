package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/accounts/internal/common"
	"github.com/dmitrijs2005/accounts/internal/server/attempts"
	"github.com/dmitrijs2005/accounts/internal/server/config"
	"github.com/dmitrijs2005/accounts/internal/server/events"
	"github.com/dmitrijs2005/accounts/internal/server/mail"
	"github.com/dmitrijs2005/accounts/internal/server/models"
	"github.com/dmitrijs2005/accounts/internal/server/repositories/users"
	"github.com/dmitrijs2005/accounts/internal/server/tokens"
	"github.com/dmitrijs2005/accounts/internal/server/validation"
)

// AccountService runs the account lifecycle: registration and activation,
// password reset by email, profile and password changes, and superuser
// creation for the admin CLI.
type AccountService struct {
	*Deps
	mailFrom string
	baseURL  string
	siteName string
}

func NewAccountService(d *Deps, cfg *config.Config) *AccountService {
	return &AccountService{
		Deps:     d,
		mailFrom: cfg.MailFrom,
		baseURL:  cfg.BaseURL,
		siteName: cfg.SiteName,
	}
}

// RegisterInput is the registration form.
type RegisterInput struct {
	UserName  string
	Email     string
	Password1 string
	Password2 string
}

// checkIdentity validates a username/email pair and its uniqueness,
// ignoring the user excludeID.
func checkIdentity(ctx context.Context, repo users.Repository, errs validation.Errors, userName, email, excludeID string) error {
	if errs.Required("username", userName) {
		for _, m := range validation.CheckUserName(userName) {
			errs.Add("username", m)
		}
	}
	if errs.Required("email", email) {
		if m := validation.CheckEmail(email); m != "" {
			errs.Add("email", m)
		}
	}

	if !errs.Has("username") {
		taken, err := repo.ExistsUserName(ctx, userName, excludeID)
		if err != nil {
			return err
		}
		if taken {
			errs.Add("username", msgUserNameTaken)
		}
	}
	if !errs.Has("email") {
		taken, err := repo.ExistsEmail(ctx, email, excludeID)
		if err != nil {
			return err
		}
		if taken {
			errs.Add("email", msgEmailTaken)
		}
	}
	return nil
}

func (s *AccountService) send(ctx context.Context, to, subject, body string) error {
	err := s.Mailer.Send(ctx, mail.Message{
		Subject: subject,
		Body:    body,
		From:    s.mailFrom,
		To:      []string{to},
	})
	if err != nil {
		s.Log.Error(ctx, "mail delivery failed", "subject", subject, "error", err)
		return fmt.Errorf("%w: %v", common.ErrMailDelivery, err)
	}
	return nil
}

// Register creates an inactive account and mails its activation link. The
// account is removed again when the mail is not accepted.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	userName := strings.TrimSpace(in.UserName)
	email := validation.NormalizeEmail(in.Email)

	errs := validation.Errors{}
	if err := checkIdentity(ctx, s.Repos.Users(), errs, userName, email, ""); err != nil {
		return nil, s.collapse(ctx, "register", err)
	}
	validation.CheckPasswordPair(errs, "password1", "password2", in.Password1, in.Password2, userName, email)
	if err := errs.Err(); err != nil {
		return nil, err
	}

	hash, err := s.Hasher.Hash(in.Password1)
	if err != nil {
		return nil, s.collapse(ctx, "register", err)
	}

	var created *models.User
	err = s.Repos.WithTx(ctx, func(ctx context.Context, repo users.Repository) error {
		u, err := repo.Create(ctx, &models.User{
			UserName:     userName,
			Email:        email,
			PasswordHash: hash,
		})
		if err != nil {
			return fieldConflict(err)
		}
		created = u
		return nil
	})
	if err != nil {
		return nil, s.collapse(ctx, "register", err)
	}

	// The mail goes out after commit so that no store lock is held while
	// the relay is talking.
	if err := s.sendActivation(ctx, created); err != nil {
		if derr := s.Repos.Users().DeleteInactive(ctx, created.ID); derr != nil {
			s.Log.Warn(ctx, "unmailed registration not removed", "user_id", created.ID, "error", derr)
		}
		return nil, s.collapse(ctx, "register", err)
	}

	s.Log.Info(ctx, "user registered", "user_id", created.ID)
	s.publish(ctx, events.UserRegistered, created.ID, map[string]string{"username": created.UserName})
	return created, nil
}

func (s *AccountService) sendActivation(ctx context.Context, u *models.User) error {
	uid, token, err := s.Tokens.Issue(u, tokens.PurposeActivate)
	if err != nil {
		return err
	}
	body, err := render(activationBody, emailData{
		UserName: u.UserName,
		SiteName: s.siteName,
		Link:     joinURL(s.baseURL, "activate", uid, token),
	})
	if err != nil {
		return err
	}
	return s.send(ctx, u.Email, subjectActivation, body)
}

// lockingGetter makes token verification read through GetByIDForUpdate, so
// that of two concurrent redemptions of one link the second sees the
// first one's write and fails to verify.
type lockingGetter struct {
	repo users.Repository
}

func (g lockingGetter) GetByID(ctx context.Context, id string) (*models.User, error) {
	return g.repo.GetByIDForUpdate(ctx, id)
}

// Activate redeems an activation link. Links for accounts that are already
// active do not verify, because the active flag is part of the link key.
func (s *AccountService) Activate(ctx context.Context, uid, token string) (*models.User, error) {
	var activated *models.User
	err := s.Repos.WithTx(ctx, func(ctx context.Context, repo users.Repository) error {
		u, err := s.Tokens.VerifyFrom(ctx, lockingGetter{repo}, uid, token, tokens.PurposeActivate)
		if err != nil {
			return err
		}
		if u.IsActive {
			return common.ErrInvalidToken
		}

		now := s.now().UTC()
		u.IsActive = true
		u.LastLogin = &now
		if err := repo.Update(ctx, u); err != nil {
			return err
		}
		activated = u
		return nil
	})
	if err != nil {
		return nil, s.collapse(ctx, "activate", err)
	}

	s.Log.Info(ctx, "user activated", "user_id", activated.ID)
	s.publish(ctx, events.UserActivated, activated.ID, nil)
	return activated, nil
}

// RequestPasswordReset mails a reset link to every active account with the
// address. An unknown address is not an error and sends nothing.
func (s *AccountService) RequestPasswordReset(ctx context.Context, email string) error {
	email = validation.NormalizeEmail(email)

	errs := validation.Errors{}
	if errs.Required("email", email) {
		if m := validation.CheckEmail(email); m != "" {
			errs.Add("email", m)
		}
	}
	if err := errs.Err(); err != nil {
		return err
	}

	found, err := s.Repos.Users().FindByEmail(ctx, email)
	if err != nil {
		return s.collapse(ctx, "password reset", err)
	}

	for _, u := range found {
		if !u.IsActive {
			continue
		}

		uid, token, err := s.Tokens.Issue(u, tokens.PurposeReset)
		if err != nil {
			return s.collapse(ctx, "password reset", err)
		}
		data := emailData{
			UserName: u.UserName,
			SiteName: s.siteName,
			Link:     joinURL(s.baseURL, "reset", uid, token),
		}
		subject, err := render(resetSubject, data)
		if err != nil {
			return s.collapse(ctx, "password reset", err)
		}
		body, err := render(resetBody, data)
		if err != nil {
			return s.collapse(ctx, "password reset", err)
		}
		if err := s.send(ctx, u.Email, subject, body); err != nil {
			return err
		}

		s.Log.Info(ctx, "password reset requested", "user_id", u.ID)
		s.publish(ctx, events.UserPasswordResetRequested, u.ID, nil)
	}

	return nil
}

// CheckPasswordResetToken reports whether a reset link is still valid.
func (s *AccountService) CheckPasswordResetToken(ctx context.Context, uid, token string) (*models.User, error) {
	u, err := s.Tokens.Verify(ctx, uid, token, tokens.PurposeReset)
	if err != nil {
		return nil, s.collapse(ctx, "password reset check", err)
	}
	return u, nil
}

// ConfirmPasswordReset sets a new password through a reset link. The new
// hash invalidates the link, and the failed-login counters for the
// account's username and email are cleared.
func (s *AccountService) ConfirmPasswordReset(ctx context.Context, uid, token, password1, password2 string) (*models.User, error) {
	var updated *models.User
	err := s.Repos.WithTx(ctx, func(ctx context.Context, repo users.Repository) error {
		u, err := s.Tokens.VerifyFrom(ctx, lockingGetter{repo}, uid, token, tokens.PurposeReset)
		if err != nil {
			return err
		}

		errs := validation.Errors{}
		validation.CheckPasswordPair(errs, "new_password1", "new_password2", password1, password2, u.UserName, u.Email)
		if err := errs.Err(); err != nil {
			return err
		}

		hash, err := s.Hasher.Hash(password1)
		if err != nil {
			return err
		}
		u.PasswordHash = hash
		if err := repo.Update(ctx, u); err != nil {
			return err
		}
		updated = u
		return nil
	})
	if err != nil {
		return nil, s.collapse(ctx, "password reset confirm", err)
	}

	for _, key := range []string{updated.UserName, updated.Email} {
		if err := s.Counter.Clear(ctx, attempts.NormalizeKey(key)); err != nil {
			s.Log.Warn(ctx, "attempt counter clear failed", "user_id", updated.ID, "error", err)
		}
	}

	s.Log.Info(ctx, "password reset", "user_id", updated.ID)
	s.publish(ctx, events.UserPasswordReset, updated.ID, nil)
	return updated, nil
}

// UpdateProfile changes the username and email of a logged-in user.
func (s *AccountService) UpdateProfile(ctx context.Context, userID, userName, email string) (*models.User, error) {
	userName = strings.TrimSpace(userName)
	email = validation.NormalizeEmail(email)

	var updated *models.User
	err := s.Repos.WithTx(ctx, func(ctx context.Context, repo users.Repository) error {
		u, err := repo.GetByIDForUpdate(ctx, userID)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrorUnauthorized
			}
			return err
		}

		errs := validation.Errors{}
		if err := checkIdentity(ctx, repo, errs, userName, email, u.ID); err != nil {
			return err
		}
		if err := errs.Err(); err != nil {
			return err
		}

		u.UserName = userName
		u.Email = email
		if err := repo.Update(ctx, u); err != nil {
			return fieldConflict(err)
		}
		updated = u
		return nil
	})
	if err != nil {
		return nil, s.collapse(ctx, "profile update", err)
	}

	s.Log.Info(ctx, "profile updated", "user_id", updated.ID)
	s.publish(ctx, events.UserProfileUpdated, updated.ID, nil)
	return updated, nil
}

// ChangePassword replaces the password of a logged-in user after checking
// the current one.
func (s *AccountService) ChangePassword(ctx context.Context, userID, oldPassword, password1, password2 string) (*models.User, error) {
	var updated *models.User
	err := s.Repos.WithTx(ctx, func(ctx context.Context, repo users.Repository) error {
		u, err := repo.GetByIDForUpdate(ctx, userID)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrorUnauthorized
			}
			return err
		}

		errs := validation.Errors{}
		if errs.Required("old_password", oldPassword) && !s.Hasher.Verify(oldPassword, u.PasswordHash) {
			errs.Add("old_password", "Your old password was entered incorrectly. Please enter it again.")
		}
		validation.CheckPasswordPair(errs, "new_password1", "new_password2", password1, password2, u.UserName, u.Email)
		if err := errs.Err(); err != nil {
			return err
		}

		hash, err := s.Hasher.Hash(password1)
		if err != nil {
			return err
		}
		u.PasswordHash = hash
		if err := repo.Update(ctx, u); err != nil {
			return err
		}
		updated = u
		return nil
	})
	if err != nil {
		return nil, s.collapse(ctx, "password change", err)
	}

	s.Log.Info(ctx, "password changed", "user_id", updated.ID)
	s.publish(ctx, events.UserPasswordChanged, updated.ID, nil)
	return updated, nil
}

// CreateSuperuser creates an active staff superuser.
func (s *AccountService) CreateSuperuser(ctx context.Context, userName, email, password string) (*models.User, error) {
	userName = strings.TrimSpace(userName)
	email = validation.NormalizeEmail(email)

	errs := validation.Errors{}
	if err := checkIdentity(ctx, s.Repos.Users(), errs, userName, email, ""); err != nil {
		return nil, s.collapse(ctx, "create superuser", err)
	}
	if errs.Required("password", password) {
		for _, m := range validation.CheckPassword(password, userName, email) {
			errs.Add("password", m)
		}
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	hash, err := s.Hasher.Hash(password)
	if err != nil {
		return nil, s.collapse(ctx, "create superuser", err)
	}

	u, err := s.Repos.Users().Create(ctx, &models.User{
		UserName:     userName,
		Email:        email,
		PasswordHash: hash,
		IsActive:     true,
		IsStaff:      true,
		IsSuperuser:  true,
	})
	if err != nil {
		return nil, s.collapse(ctx, "create superuser", fieldConflict(err))
	}

	s.Log.Info(ctx, "superuser created", "user_id", u.ID)
	return u, nil
}
