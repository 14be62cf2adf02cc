// Package server wires the configured backends into the account services
// and runs the HTTP site and the gRPC health endpoint until a shutdown
// signal arrives.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/accounts/internal/logging"
	"github.com/dmitrijs2005/accounts/internal/server/attempts"
	"github.com/dmitrijs2005/accounts/internal/server/config"
	"github.com/dmitrijs2005/accounts/internal/server/events"
	"github.com/dmitrijs2005/accounts/internal/server/hasher"
	"github.com/dmitrijs2005/accounts/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/accounts/internal/server/services"
	"github.com/dmitrijs2005/accounts/internal/server/tokens"
	"github.com/dmitrijs2005/accounts/internal/server/web"

	gs "github.com/dmitrijs2005/accounts/internal/server/grpc"
)

const (
	shutdownTimeout = 10 * time.Second
	sweepInterval   = time.Minute
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	repos    repomanager.RepositoryManager
	counter  attempts.Counter
	events   events.Publisher
	closers  []io.Closer
	auth     *services.AuthService
	accounts *services.AccountService
	site     *web.Server
}

// NewApp opens every backend named in c. Whatever was opened before a
// failure is closed again.
func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	app := &App{config: c, logger: logger}
	opened := false
	defer func() {
		if !opened {
			app.close(ctx)
		}
	}()

	var err error
	if app.repos, err = openStore(c); err != nil {
		return nil, err
	}
	app.closers = append(app.closers, app.repos)

	var counterCloser io.Closer
	if app.counter, counterCloser, err = openCounter(ctx, c); err != nil {
		return nil, err
	}
	if counterCloser != nil {
		app.closers = append(app.closers, counterCloser)
	}

	mailer, err := openMailer(ctx, c, os.Stdout)
	if err != nil {
		return nil, err
	}

	if app.events, err = openEvents(c, logger.With("module", "events")); err != nil {
		return nil, err
	}
	app.closers = append(app.closers, app.events)

	h, err := hasher.NewBcrypt(c.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hasher init error: %w", err)
	}

	deps := &services.Deps{
		Repos:   app.repos,
		Counter: app.counter,
		Tokens:  tokens.NewGenerator(c.SecretKey, c.ActivationTokenValidity, c.PasswordResetTimeout, app.repos.Users()),
		Hasher:  h,
		Mailer:  mailer,
		Events:  app.events,
		Log:     logger.With("module", "services"),
	}
	app.auth = services.NewAuthService(deps, c)
	app.accounts = services.NewAccountService(deps, c)

	app.site, err = web.NewServer(app.auth, app.accounts, app.repos, logger, web.Options{
		SiteName:      c.SiteName,
		SecureCookie:  strings.HasPrefix(c.BaseURL, "https://"),
		SessionMaxAge: int(c.SessionValidityDuration.Seconds()),
		AccessLog:     os.Stdout,
	})
	if err != nil {
		return nil, fmt.Errorf("web init error: %w", err)
	}

	opened = true
	return app, nil
}

// Accounts is used by the admin CLI.
func (app *App) Accounts() *services.AccountService {
	return app.accounts
}

// Migrate applies the embedded schema migrations.
func (app *App) Migrate(ctx context.Context) error {
	if err := app.repos.RunMigrations(ctx); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	return nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewHealthServer(app.config.EndpointAddrGRPC, app.logger, app.repos)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, "grpc server failed", "error", err)
		cancelFunc()
	}
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	srv := &http.Server{
		Addr:              app.config.EndpointAddrHTTP,
		Handler:           app.site.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		app.logger.Info(context.Background(), "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			app.logger.Error(shutdownCtx, "http shutdown failed", "error", err)
		}
	}()

	app.logger.Info(ctx, "Starting HTTP server", "address", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.logger.Error(ctx, "http server failed", "error", err)
		cancelFunc()
	}
}

// Run migrates the store, serves until SIGINT/SIGTERM or a server failure,
// then releases every backend.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")
	app.initSignalHandler(cancelFunc)

	if err := app.Migrate(ctx); err != nil {
		app.close(ctx)
		return err
	}

	var wg sync.WaitGroup

	if m, ok := app.counter.(*attempts.Memory); ok {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.RunSweeper(ctx, sweepInterval)
		}()
	}

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()
	app.close(context.Background())
	app.logger.Info(context.Background(), "App stopped")
	return nil
}

// Close releases every backend. It is safe to call more than once.
func (app *App) Close() {
	app.close(context.Background())
}

// close releases backends in reverse order of opening.
func (app *App) close(ctx context.Context) {
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i].Close(); err != nil {
			app.logger.Warn(ctx, "close failed", "error", err)
		}
	}
	app.closers = nil
}
