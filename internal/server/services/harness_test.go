package services

import (
	"context"
	"io"
	"log/slog"
	"regexp"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrijs2005/accounts/internal/logging"
	"github.com/dmitrijs2005/accounts/internal/server/attempts"
	"github.com/dmitrijs2005/accounts/internal/server/config"
	"github.com/dmitrijs2005/accounts/internal/server/events"
	"github.com/dmitrijs2005/accounts/internal/server/hasher"
	"github.com/dmitrijs2005/accounts/internal/server/mail"
	"github.com/dmitrijs2005/accounts/internal/server/models"
	"github.com/dmitrijs2005/accounts/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/accounts/internal/server/tokens"
)

const strongPassword = "S3cure-horse-battery"

type recordedEvents struct {
	mu    sync.Mutex
	names []string
}

func (r *recordedEvents) Publish(_ context.Context, e events.Event) error {
	r.mu.Lock()
	r.names = append(r.names, e.Name)
	r.mu.Unlock()
	return nil
}

func (r *recordedEvents) Close() error { return nil }

func (r *recordedEvents) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.names...)
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type harness struct {
	cfg      *config.Config
	repos    *repomanager.MemoryRepositoryManager
	counter  *attempts.Memory
	outbox   *mail.Outbox
	events   *recordedEvents
	clock    *clock
	hasher   *hasher.Bcrypt
	deps     *Deps
	auth     *AuthService
	accounts *AccountService
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.BaseURL = "http://testserver"

	h := &harness{
		cfg:    cfg,
		repos:  repomanager.NewMemoryRepositoryManager(),
		outbox: mail.NewOutbox(),
		events: &recordedEvents{},
		clock:  &clock{now: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)},
	}
	h.counter = attempts.NewMemory(attempts.Config{
		MaxFailedAttempts: cfg.MaxFailedAttempts,
		LockoutTime:       cfg.LockoutTime,
	}).WithClock(h.clock.Now)

	var err error
	h.hasher, err = hasher.NewBcrypt(bcrypt.MinCost)
	require.NoError(t, err)

	gen := tokens.NewGenerator(cfg.SecretKey, cfg.ActivationTokenValidity, cfg.PasswordResetTimeout, h.repos.Users()).
		WithClock(h.clock.Now)

	deps := &Deps{
		Repos:   h.repos,
		Counter: h.counter,
		Tokens:  gen,
		Hasher:  h.hasher,
		Mailer:  h.outbox,
		Events:  h.events,
		Log:     logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		Now:     h.clock.Now,
	}
	h.deps = deps
	h.auth = NewAuthService(deps, cfg)
	h.accounts = NewAccountService(deps, cfg)
	return h
}

// activeUser creates an activated account directly in the store.
func (h *harness) activeUser(t *testing.T, userName, email, password string) *models.User {
	t.Helper()
	hash, err := h.hasher.Hash(password)
	require.NoError(t, err)
	u, err := h.repos.Users().Create(context.Background(), &models.User{
		UserName: userName, Email: email, PasswordHash: hash, IsActive: true,
	})
	require.NoError(t, err)
	return u
}

var linkRe = regexp.MustCompile(`/(activate|reset)/([A-Za-z0-9_-]+)/([A-Za-z0-9_.-]+)/`)

// lastLink returns the uid and token of the link in the newest mail.
func (h *harness) lastLink(t *testing.T) (string, string) {
	t.Helper()
	msgs := h.outbox.Messages()
	require.NotEmpty(t, msgs)
	m := linkRe.FindStringSubmatch(msgs[len(msgs)-1].Body)
	require.Len(t, m, 4, "no link in: %s", msgs[len(msgs)-1].Body)
	return m[2], m[3]
}

func newInactive(userName, email, hash string) *models.User {
	return &models.User{UserName: userName, Email: email, PasswordHash: hash}
}

// hookedHasher counts password evaluations and runs onVerify before each
// Verify.
type hookedHasher struct {
	*hasher.Bcrypt
	checks   atomic.Int32
	onVerify func()
}

func (h *hookedHasher) Verify(password, hash string) bool {
	h.checks.Add(1)
	if h.onVerify != nil {
		h.onVerify()
	}
	return h.Bcrypt.Verify(password, hash)
}

func (h *hookedHasher) Dummy(password string) {
	h.checks.Add(1)
	h.Bcrypt.Dummy(password)
}
