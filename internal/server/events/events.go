// Package events publishes account lifecycle notifications. Publishing is
// best effort: callers log failures and carry on.
package events

import (
	"context"
	"time"

	"github.com/dmitrijs2005/accounts/internal/logging"
)

const (
	UserRegistered             = "user.registered"
	UserActivated              = "user.activated"
	UserLoginFailed            = "user.login_failed"
	UserLockedOut              = "user.locked_out"
	UserLoggedIn               = "user.logged_in"
	UserPasswordResetRequested = "user.password_reset_requested"
	UserPasswordReset          = "user.password_reset"
	UserProfileUpdated         = "user.profile_updated"
	UserPasswordChanged        = "user.password_changed"
)

// Event never carries passwords or tokens.
type Event struct {
	Name   string            `json:"name"`
	UserID string            `json:"user_id,omitempty"`
	Time   time.Time         `json:"time"`
	Data   map[string]string `json:"data,omitempty"`
}

func New(name, userID string, data map[string]string) Event {
	return Event{Name: name, UserID: userID, Time: time.Now().UTC(), Data: data}
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }

// Log writes events to a logger at info level.
type Log struct {
	log logging.Logger
}

func NewLog(log logging.Logger) *Log {
	return &Log{log: log}
}

func (l *Log) Publish(ctx context.Context, e Event) error {
	args := []any{"event", e.Name, "user_id", e.UserID}
	for k, v := range e.Data {
		args = append(args, k, v)
	}
	l.log.Info(ctx, "account event", args...)
	return nil
}

func (l *Log) Close() error { return nil }
