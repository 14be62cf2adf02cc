// Package web serves the account pages over HTTP.
package web

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/dmitrijs2005/accounts/internal/logging"
	"github.com/dmitrijs2005/accounts/internal/server/models"
	"github.com/dmitrijs2005/accounts/internal/server/services"
)

// Authenticator is the login side used by the handlers.
type Authenticator interface {
	Login(ctx context.Context, identity, password string) (*models.User, error)
	IssueSession(user *models.User) (string, error)
	SessionUser(ctx context.Context, session string) (*models.User, error)
}

// Accounts is the account lifecycle side used by the handlers.
type Accounts interface {
	Register(ctx context.Context, in services.RegisterInput) (*models.User, error)
	Activate(ctx context.Context, uid, token string) (*models.User, error)
	RequestPasswordReset(ctx context.Context, email string) error
	CheckPasswordResetToken(ctx context.Context, uid, token string) (*models.User, error)
	ConfirmPasswordReset(ctx context.Context, uid, token, password1, password2 string) (*models.User, error)
	UpdateProfile(ctx context.Context, userID, userName, email string) (*models.User, error)
	ChangePassword(ctx context.Context, userID, oldPassword, password1, password2 string) (*models.User, error)
}

// Pinger reports whether the store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Options struct {
	SiteName string
	// SecureCookie marks the session cookie Secure; set it when served over https.
	SecureCookie  bool
	SessionMaxAge int
	// AccessLog receives the combined-format access log. Nil disables it.
	AccessLog io.Writer
}

type Server struct {
	auth     Authenticator
	accounts Accounts
	store    Pinger
	log      logging.Logger
	pages    *pages
	opts     Options
}

func NewServer(a Authenticator, acc Accounts, store Pinger, log logging.Logger, opts Options) (*Server, error) {
	p, err := loadPages()
	if err != nil {
		return nil, err
	}
	return &Server{
		auth:     a,
		accounts: acc,
		store:    store,
		log:      log.With("module", "web"),
		pages:    p,
		opts:     opts,
	}, nil
}

// route registers path both with and without its trailing slash.
func route(r *mux.Router, path string, h http.HandlerFunc, methods ...string) {
	r.HandleFunc(path, h).Methods(methods...)
	if trimmed := strings.TrimSuffix(path, "/"); trimmed != "" && trimmed != path {
		r.HandleFunc(trimmed, h).Methods(methods...)
	}
}

// Router returns the mux with every account route registered.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.loadUser)

	route(r, "/", s.home, http.MethodGet)
	route(r, "/register/", s.register, http.MethodGet, http.MethodPost)
	route(r, "/activation_sent/", s.activationSent, http.MethodGet)
	route(r, "/activate/{uid}/{token}/", s.activate, http.MethodGet)
	route(r, "/login/", s.login, http.MethodGet, http.MethodPost)
	route(r, "/logout/", s.logout, http.MethodGet, http.MethodPost)
	route(r, "/password_reset/", s.passwordReset, http.MethodGet, http.MethodPost)
	route(r, "/password_reset/done/", s.passwordResetDone, http.MethodGet)
	route(r, "/reset/{uid}/{token}/", s.passwordResetConfirm, http.MethodGet, http.MethodPost)
	route(r, "/reset/done/", s.passwordResetComplete, http.MethodGet)
	route(r, "/healthz", s.healthz, http.MethodGet)

	private := r.NewRoute().Subrouter()
	private.Use(s.requireLogin)
	route(private, "/profile/", s.profile, http.MethodGet, http.MethodPost)
	route(private, "/password_change/", s.passwordChange, http.MethodGet, http.MethodPost)
	route(private, "/password_change/done/", s.passwordChangeDone, http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(s.notFound)
	return r
}

// Handler is the router wrapped with panic recovery and the access log.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.Router()
	h = handlers.RecoveryHandler(handlers.RecoveryLogger(recoveryLogger{s.log}))(h)
	if s.opts.AccessLog != nil {
		h = handlers.CombinedLoggingHandler(s.opts.AccessLog, h)
	}
	return h
}

type recoveryLogger struct {
	log logging.Logger
}

func (l recoveryLogger) Println(v ...interface{}) {
	l.log.Error(context.Background(), "panic in handler", "panic", v)
}
