package httpx

import (
	"errors"
	"net/http"
	"strings"

	"github.com/scolay/storefront/internal/adapters/devauth"
	"github.com/scolay/storefront/internal/adapters/gotrue"
	"github.com/scolay/storefront/internal/http/ui/viewmodel"
	"github.com/scolay/storefront/internal/http/validation"
	"github.com/scolay/storefront/internal/ports"
)

const errMsgFixBelow = "Please fix the errors below."

// authForm backs the login and sign-up pages.
type authForm struct {
	Email       string
	FullName    string
	RedirectURI string
	Errors      map[string]string
	Error       string
	Notice      string
}

// LoginPage renders the sign-in form. Signed-in visitors are sent on.
// GET /login?redirect_uri=<optional>.
func (h *UIHandlers) LoginPage(w http.ResponseWriter, r *http.Request) {
	target := safeRedirectPath(r.URL.Query().Get("redirect_uri"))
	if AuthStateFrom(r.Context()).SignedIn() {
		redirect(w, r, target)
		return
	}
	h.renderAuthForm(w, r, PageLogin, http.StatusOK, &authForm{RedirectURI: target})
}

// Login signs in with email and password.
// POST /login.
func (h *UIHandlers) Login(w http.ResponseWriter, r *http.Request) {
	ac, ok := h.requireAuthContext(w, r)
	if !ok {
		return
	}
	form := &authForm{
		Email:       strings.TrimSpace(r.PostFormValue("email")),
		RedirectURI: safeRedirectPath(r.PostFormValue("redirect_uri")),
	}
	password := r.PostFormValue("password")

	fv := validation.New().
		Validate("email", form.Email, validation.Email("Email")).
		Validate("password", password, validation.Required("Password", 256))
	if !fv.Valid() {
		form.Errors = fv.Errors()
		form.Error = errMsgFixBelow
		h.renderAuthForm(w, r, PageLogin, formErrorStatus(r), form)
		return
	}

	err := ac.SignInWithPassword(r.Context(), ports.Credentials{Email: form.Email, Password: password})
	if err != nil {
		h.logger().InfoContext(r.Context(), "sign in failed", "error", err)
		form.Error = authErrorMessage(err, "Invalid email or password.")
		h.renderAuthForm(w, r, PageLogin, formErrorStatus(r), form)
		return
	}
	redirect(w, r, form.RedirectURI)
}

// SignupPage renders the registration form.
// GET /signup.
func (h *UIHandlers) SignupPage(w http.ResponseWriter, r *http.Request) {
	if AuthStateFrom(r.Context()).SignedIn() {
		redirect(w, r, viewmodel.PathHome)
		return
	}
	h.renderAuthForm(w, r, PageSignup, http.StatusOK, &authForm{})
}

// Signup registers an account. Providers that require email confirmation return
// no session, in which case the form shows a notice instead of redirecting.
// POST /signup.
func (h *UIHandlers) Signup(w http.ResponseWriter, r *http.Request) {
	ac, ok := h.requireAuthContext(w, r)
	if !ok {
		return
	}
	form := &authForm{
		Email:    strings.TrimSpace(r.PostFormValue("email")),
		FullName: strings.TrimSpace(r.PostFormValue("full_name")),
	}
	password := r.PostFormValue("password")

	fv := validation.New().
		Validate("full_name", form.FullName, validation.Optional("Full name", 120)).
		Validate("email", form.Email, validation.Email("Email")).
		Validate("password", password, validation.RequiredRange("Password", 6, 72)).
		Validate("password_confirm", r.PostFormValue("password_confirm"),
			validation.Equals("Passwords do not match.", password))
	if !fv.Valid() {
		form.Errors = fv.Errors()
		form.Error = errMsgFixBelow
		h.renderAuthForm(w, r, PageSignup, formErrorStatus(r), form)
		return
	}

	signedIn, err := ac.SignUp(r.Context(), ports.Credentials{
		Email:    form.Email,
		Password: password,
		FullName: form.FullName,
	})
	if err != nil {
		h.logger().InfoContext(r.Context(), "sign up failed", "error", err)
		form.Error = authErrorMessage(err, "Unable to create your account. Please try again.")
		h.renderAuthForm(w, r, PageSignup, formErrorStatus(r), form)
		return
	}
	if signedIn {
		redirect(w, r, viewmodel.PathHome)
		return
	}
	form.Notice = "Check your email to confirm your account, then log in."
	h.renderAuthForm(w, r, PageSignup, http.StatusOK, form)
}

func (h *UIHandlers) renderAuthForm(w http.ResponseWriter, r *http.Request, page string, status int, form *authForm) {
	title := "Log in"
	if page == PageSignup {
		title = "Sign up"
	}
	data, ok := h.newPage(w, r, PageMeta{Title: title, PageTitle: title, CurrentPage: page})
	if !ok {
		return
	}
	if form.Errors == nil {
		form.Errors = map[string]string{}
	}
	data.Form = form
	h.renderPageStatus(w, r, status, data)
}

// formErrorStatus keeps htmx swapping re-rendered forms, which it skips for 4xx.
func formErrorStatus(r *http.Request) int {
	if IsHTMX(r) {
		return http.StatusOK
	}
	return http.StatusUnprocessableEntity
}

// authErrorMessage picks a user-facing message for a provider failure.
func authErrorMessage(err error, fallback string) string {
	var apiErr *gotrue.APIError
	switch {
	case errors.As(err, &apiErr) && apiErr.Status < http.StatusInternalServerError && apiErr.Message != "":
		return apiErr.Message
	case errors.Is(err, devauth.ErrInvalidCredentials):
		return "Invalid email or password."
	case errors.Is(err, devauth.ErrUserExists):
		return "An account with this email already exists."
	default:
		return fallback
	}
}
