package http

import (
	"errors"
	"net/http"

	"moneywire/internal/core"
	"moneywire/internal/log"
	"moneywire/internal/middleware/guard"
	"moneywire/internal/session"
)

type loginView struct {
	Title   string
	Email   string
	Errors  core.ValidationErrors
	Message string
}

type registerView struct {
	Title    string
	Email    string
	Username string
	Errors   core.ValidationErrors
	Message  string
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, NewHTMXResponse(), "login_page", loginView{Title: "Sign in"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		BadRequestError("Invalid request").Write(w)
		return
	}

	form := core.LoginForm{Email: p.Get("email"), Password: p.Value("password")}
	view := loginView{Title: "Sign in", Email: form.Email}

	if err := form.Validate(); err != nil {
		view.Errors = validationErrors(err)
		s.renderForm(w, r, http.StatusUnprocessableEntity, "login_page", "login_form", view)
		return
	}

	if err := session.FromContext(ctx).Login(ctx, form.Email, form.Password); err != nil {
		status := authFailureStatus(err)
		logAuthFailure(r, log.OpLogin, status, err)
		view.Message = core.UserMessage(err)
		s.renderForm(w, r, status, "login_page", "login_form", view)
		return
	}

	guard.Redirect(w, r, guard.DashboardPath)
}

func (s *Server) handleRegisterPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, NewHTMXResponse(), "register_page", registerView{Title: "Create Account"})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		BadRequestError("Invalid request").Write(w)
		return
	}

	form := core.RegisterForm{
		Email:    p.Get("email"),
		Password: p.Value("password"),
		Username: p.Get("username"),
	}
	view := registerView{Title: "Create Account", Email: form.Email, Username: form.Username}

	if err := form.Validate(); err != nil {
		view.Errors = validationErrors(err)
		s.renderForm(w, r, http.StatusUnprocessableEntity, "register_page", "register_form", view)
		return
	}

	if err := session.FromContext(ctx).Register(ctx, form.Email, form.Password, form.Username); err != nil {
		status := authFailureStatus(err)
		logAuthFailure(r, log.OpRegister, status, err)
		view.Message = core.UserMessage(err)
		s.renderForm(w, r, status, "register_page", "register_form", view)
		return
	}

	guard.Redirect(w, r, guard.DashboardPath)
}

// handleLogout always lands on the login page; remote and storage failures
// are only logged.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	res := session.FromContext(ctx).Logout(ctx)
	if !res.Complete() {
		log.FromContext(ctx).WarnContext(ctx, "Logout incomplete",
			log.FieldOperation, log.OpLogout,
			"remote_error", res.RemoteErr,
			"storage_error", res.StorageErr)
	}
	guard.Redirect(w, r, guard.LoginPath)
}

// authFailureStatus maps a login or registration failure to a status:
// 401 for rejected credentials, 502 when the backend could not be used or
// sent something unusable.
func authFailureStatus(err error) int {
	var authErr *core.AuthenticationError
	var profileErr *core.ProfileFetchError
	var netErr *core.NetworkError
	var upErr *core.UpstreamError
	switch {
	case errors.As(err, &authErr):
		return http.StatusUnauthorized
	case errors.As(err, &profileErr), errors.As(err, &netErr), errors.As(err, &upErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func logAuthFailure(r *http.Request, op string, status int, err error) {
	ctx := r.Context()
	errType := log.ErrorTypeInternal
	switch status {
	case http.StatusUnauthorized:
		errType = log.ErrorTypeAuth
	case http.StatusBadGateway:
		errType = log.ErrorTypeUpstream
	}
	logger := log.FromContext(ctx)
	if status == http.StatusUnauthorized {
		logger.InfoContext(ctx, "Credentials rejected",
			log.FieldOperation, op,
			log.FieldErrorType, errType,
			log.FieldError, err)
		return
	}
	logger.ErrorContext(ctx, "Authentication failed",
		log.FieldOperation, op,
		log.FieldErrorType, errType,
		log.FieldError, err)
}

func validationErrors(err error) core.ValidationErrors {
	var verrs core.ValidationErrors
	if errors.As(err, &verrs) {
		return verrs
	}
	return core.ValidationErrors{{Field: "form", Message: err.Error()}}
}
