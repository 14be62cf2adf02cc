package web

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/dmitrijs2005/accounts/internal/common"
	"github.com/dmitrijs2005/accounts/internal/server/services"
	"github.com/dmitrijs2005/accounts/internal/server/validation"
)

const (
	msgInvalidLogin = "Please enter a correct username or email and password. Note that both fields may be case-sensitive."
	msgLockedOut    = "Account locked: too many failed login attempts. Please try again later."
	msgMailFailed   = "We could not send the email. Please try again later."
	msgInternal     = "Something went wrong on our side. Please try again later."
	msgNotFound     = "The page you requested does not exist."
	msgProfileSaved = "Your profile was updated."
)

// fail renders the page for an error that is not a form problem.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, common.ErrMailDelivery):
		s.render(w, r, http.StatusServiceUnavailable, "error", pageData{Title: "Email not sent", Message: msgMailFailed})
	case errors.Is(err, common.ErrorUnauthorized):
		http.Redirect(w, r, "/login/", http.StatusFound)
	default:
		s.log.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		s.render(w, r, http.StatusInternalServerError, "error", pageData{Title: "Server error", Message: msgInternal})
	}
}

// formErrors extracts field messages from err.
func formErrors(err error) (validation.Errors, bool) {
	var verrs validation.Errors
	if errors.As(err, &verrs) {
		return verrs, true
	}
	return nil, false
}

func parseForm(w http.ResponseWriter, r *http.Request) bool {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return false
	}
	return true
}

func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusNotFound, "error", pageData{Title: "Not found", Message: msgNotFound})
}

func (s *Server) home(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "home", pageData{Title: "Home"})
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if err := s.store.Ping(r.Context()); err != nil {
		s.log.Warn(r.Context(), "health check failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("unavailable\n"))
		return
	}
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	data := pageData{Title: "Register"}
	if r.Method == http.MethodGet {
		s.render(w, r, http.StatusOK, "register", data)
		return
	}
	if !parseForm(w, r) {
		return
	}

	in := services.RegisterInput{
		UserName:  r.PostForm.Get("username"),
		Email:     r.PostForm.Get("email"),
		Password1: r.PostForm.Get("password1"),
		Password2: r.PostForm.Get("password2"),
	}
	if _, err := s.accounts.Register(r.Context(), in); err != nil {
		if verrs, ok := formErrors(err); ok {
			data.Form = map[string]string{"username": in.UserName, "email": in.Email}
			data.Errors = verrs
			s.render(w, r, http.StatusOK, "register", data)
			return
		}
		s.fail(w, r, err)
		return
	}

	http.Redirect(w, r, "/activation_sent/", http.StatusFound)
}

func (s *Server) activationSent(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "activation_sent", pageData{Title: "Check your email"})
}

func (s *Server) activate(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	user, err := s.accounts.Activate(r.Context(), vars["uid"], vars["token"])
	if err != nil {
		if errors.Is(err, common.ErrInvalidToken) {
			s.render(w, r, http.StatusOK, "activation_invalid", pageData{Title: "Activation failed"})
			return
		}
		s.fail(w, r, err)
		return
	}

	session, err := s.auth.IssueSession(user)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.setSession(w, session)
	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	data := pageData{Title: "Log in", Next: safeNext(r.URL.Query().Get("next"))}
	if r.Method == http.MethodGet {
		s.render(w, r, http.StatusOK, "login", data)
		return
	}
	if !parseForm(w, r) {
		return
	}

	identity := strings.TrimSpace(r.PostForm.Get("username"))
	password := r.PostForm.Get("password")
	if next := r.PostForm.Get("next"); next != "" {
		data.Next = safeNext(next)
	}
	data.Form = map[string]string{"username": identity}

	errs := validation.Errors{}
	errs.Required("username", identity)
	errs.Required("password", password)
	if len(errs) > 0 {
		data.Errors = errs
		s.render(w, r, http.StatusOK, "login", data)
		return
	}

	user, err := s.auth.Login(r.Context(), identity, password)
	switch {
	case errors.Is(err, common.ErrLockedOut):
		data.NonFieldErrors = []string{msgLockedOut}
		s.render(w, r, http.StatusOK, "login", data)
		return
	case errors.Is(err, common.ErrInvalidCredentials):
		data.NonFieldErrors = []string{msgInvalidLogin}
		s.render(w, r, http.StatusOK, "login", data)
		return
	case err != nil:
		s.fail(w, r, err)
		return
	}

	session, err := s.auth.IssueSession(user)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.setSession(w, session)
	http.Redirect(w, r, data.Next, http.StatusFound)
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	s.clearSession(w)
	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Server) passwordReset(w http.ResponseWriter, r *http.Request) {
	data := pageData{Title: "Password reset"}
	if r.Method == http.MethodGet {
		s.render(w, r, http.StatusOK, "password_reset_form", data)
		return
	}
	if !parseForm(w, r) {
		return
	}

	email := r.PostForm.Get("email")
	if err := s.accounts.RequestPasswordReset(r.Context(), email); err != nil {
		if verrs, ok := formErrors(err); ok {
			data.Form = map[string]string{"email": email}
			data.Errors = verrs
			s.render(w, r, http.StatusOK, "password_reset_form", data)
			return
		}
		s.fail(w, r, err)
		return
	}

	http.Redirect(w, r, "/password_reset/done/", http.StatusFound)
}

func (s *Server) passwordResetDone(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "password_reset_done", pageData{Title: "Password reset sent"})
}

func (s *Server) passwordResetConfirm(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	uid, token := vars["uid"], vars["token"]
	data := pageData{Title: "Enter new password", ValidLink: true}

	invalid := func() {
		s.render(w, r, http.StatusOK, "password_reset_confirm", pageData{Title: "Password reset unsuccessful"})
	}

	if r.Method == http.MethodGet {
		if _, err := s.accounts.CheckPasswordResetToken(r.Context(), uid, token); err != nil {
			if errors.Is(err, common.ErrInvalidToken) {
				invalid()
				return
			}
			s.fail(w, r, err)
			return
		}
		s.render(w, r, http.StatusOK, "password_reset_confirm", data)
		return
	}
	if !parseForm(w, r) {
		return
	}

	_, err := s.accounts.ConfirmPasswordReset(r.Context(), uid, token,
		r.PostForm.Get("new_password1"), r.PostForm.Get("new_password2"))
	if err != nil {
		if verrs, ok := formErrors(err); ok {
			data.Errors = verrs
			s.render(w, r, http.StatusOK, "password_reset_confirm", data)
			return
		}
		if errors.Is(err, common.ErrInvalidToken) {
			invalid()
			return
		}
		s.fail(w, r, err)
		return
	}

	http.Redirect(w, r, "/reset/done/", http.StatusFound)
}

func (s *Server) passwordResetComplete(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "password_reset_complete", pageData{Title: "Password reset complete"})
}

func (s *Server) profile(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	data := pageData{
		Title: "Profile",
		Form:  map[string]string{"username": user.UserName, "email": user.Email},
	}
	if r.Method == http.MethodGet {
		if r.URL.Query().Get("saved") == "1" {
			data.Message = msgProfileSaved
		}
		s.render(w, r, http.StatusOK, "profile", data)
		return
	}
	if !parseForm(w, r) {
		return
	}

	userName, email := r.PostForm.Get("username"), r.PostForm.Get("email")
	if _, err := s.accounts.UpdateProfile(r.Context(), user.ID, userName, email); err != nil {
		if verrs, ok := formErrors(err); ok {
			data.Form = map[string]string{"username": userName, "email": email}
			data.Errors = verrs
			s.render(w, r, http.StatusOK, "profile", data)
			return
		}
		s.fail(w, r, err)
		return
	}

	http.Redirect(w, r, "/profile/?saved=1", http.StatusFound)
}

func (s *Server) passwordChange(w http.ResponseWriter, r *http.Request) {
	data := pageData{Title: "Password change"}
	if r.Method == http.MethodGet {
		s.render(w, r, http.StatusOK, "password_change", data)
		return
	}
	if !parseForm(w, r) {
		return
	}

	user := UserFromContext(r.Context())
	_, err := s.accounts.ChangePassword(r.Context(), user.ID,
		r.PostForm.Get("old_password"), r.PostForm.Get("new_password1"), r.PostForm.Get("new_password2"))
	if err != nil {
		if verrs, ok := formErrors(err); ok {
			data.Errors = verrs
			s.render(w, r, http.StatusOK, "password_change", data)
			return
		}
		s.fail(w, r, err)
		return
	}

	http.Redirect(w, r, "/password_change/done/", http.StatusFound)
}

func (s *Server) passwordChangeDone(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "password_change_done", pageData{Title: "Password change successful"})
}
