package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mhartsell/gatehouse/internal/auth"
	"github.com/mhartsell/gatehouse/internal/middleware"
	"github.com/mhartsell/gatehouse/internal/models"
	"github.com/mhartsell/gatehouse/internal/services"
	pkghttp "github.com/mhartsell/gatehouse/pkg/http"
)

// HoneypotFieldName is the hidden trap field rendered into the login
// form. Named to look like a legitimate optional input to bots.
const HoneypotFieldName = "website"

// LoginService is the slice of the auth service the handler needs.
type LoginService interface {
	PrepareAttempt(ctx context.Context, params services.AttemptParams) (*services.LoginAttempt, error)
	Login(ctx context.Context, attempt *services.LoginAttempt) (*services.LoginResult, *services.Rejection, error)
}

// AuthHandler handles the login surface: form bootstrap, submission,
// and logout.
type AuthHandler struct {
	service       LoginService
	tokens        *auth.FormTokenManager
	matcher       *services.LoginPathMatcher
	ipConfig      *pkghttp.IPConfig
	secureCookies bool
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(service LoginService, tokens *auth.FormTokenManager, matcher *services.LoginPathMatcher, ipConfig *pkghttp.IPConfig, secureCookies bool) *AuthHandler {
	return &AuthHandler{
		service:       service,
		tokens:        tokens,
		matcher:       matcher,
		ipConfig:      ipConfig,
		secureCookies: secureCookies,
	}
}

// LoginRequest is the login submission, from either a form post or an
// AJAX JSON body. The honeypot and timestamp fields are filled by the
// rendered form, not by the user.
type LoginRequest struct {
	Username      string `json:"username" validate:"required,max=255"`
	Password      string `json:"password" validate:"required"`
	Remember      bool   `json:"remember"`
	SecurityToken string `json:"security_token"`
	Website       string `json:"website"`
	RenderedAt    string `json:"rendered_at"`
	RedirectTo    string `json:"redirect_to"`
}

// FormBootstrap is everything a client needs to render and submit the
// login form.
type FormBootstrap struct {
	FormToken     string `json:"form_token"`
	RenderedAt    string `json:"rendered_at"`
	HoneypotField string `json:"honeypot_field"`
	SubmitPath    string `json:"submit_path"`
	CSPNonce      string `json:"csp_nonce,omitempty"`
}

// LoginForm serves the form bootstrap for the canonical page or the
// custom slug. A hidden canonical path 404s exactly like an unknown
// route, so probes learn nothing.
func (h *AuthHandler) LoginForm(w http.ResponseWriter, r *http.Request) {
	path := strings.ToLower(strings.TrimSuffix(r.URL.Path, "/"))
	if path == services.CanonicalLoginPath && h.matcher.CanonicalHidden() {
		pkghttp.WriteNotFound(w, "Not found")
		return
	}

	h.writeBootstrap(w, r, auth.ActionLoginForm, services.FormLoginPath)
}

// Token issues a fresh single-use form token for AJAX clients that
// keep the page open past the token TTL.
func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	action := auth.ActionLoginForm
	submit := services.FormLoginPath
	if r.URL.Query().Get("mode") == "ajax" {
		action = auth.ActionLoginAjax
		submit = services.AjaxLoginPath
	}
	h.writeBootstrap(w, r, action, submit)
}

func (h *AuthHandler) writeBootstrap(w http.ResponseWriter, r *http.Request, action, submitPath string) {
	token, err := h.tokens.Issue(action)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}
	pkghttp.WriteData(w, http.StatusOK, FormBootstrap{
		FormToken:     token,
		RenderedAt:    strconv.FormatInt(time.Now().Unix(), 10),
		HoneypotField: HoneypotFieldName,
		SubmitPath:    submitPath,
		CSPNonce:      middleware.NonceFromContext(r.Context()),
	})
}

// Login handles classic form submissions.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	h.handleLogin(w, r, auth.ActionLoginForm)
}

// AjaxLogin handles submissions from the asynchronous login flow.
func (h *AuthHandler) AjaxLogin(w http.ResponseWriter, r *http.Request) {
	h.handleLogin(w, r, auth.ActionLoginAjax)
}

func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request, tokenAction string) {
	req, err := decodeLoginRequest(r)
	if err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	attempt, err := h.service.PrepareAttempt(r.Context(), services.AttemptParams{
		IP:          pkghttp.ExtractClientIP(r, h.ipConfig),
		Username:    strings.TrimSpace(req.Username),
		Password:    req.Password,
		Remember:    req.Remember,
		FormToken:   req.SecurityToken,
		TokenAction: tokenAction,
		Honeypot:    req.Website,
		RenderedAt:  req.RenderedAt,
		RedirectTo:  req.RedirectTo,
	})
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	result, rejection, err := h.service.Login(r.Context(), attempt)
	switch {
	case err != nil:
		if errors.Is(err, models.ErrUnauthorized) {
			pkghttp.WriteUnauthorized(w, services.GenericLoginFailure)
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	case rejection != nil:
		h.writeRejection(w, rejection)
		return
	}

	auth.SetSessionCookie(w, result.Token, result.SessionSeconds, h.secureCookies)
	pkghttp.WriteSuccess(w, http.StatusOK, pkghttp.SuccessData{
		Message:  "Login successful.",
		Redirect: result.Redirect,
		Token:    result.Token,
	})
}

func (h *AuthHandler) writeRejection(w http.ResponseWriter, rejection *services.Rejection) {
	switch rejection.Reason {
	case services.ReasonRateLimited, services.ReasonAccountLocked:
		if rejection.RetryAfter > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(rejection.RetryAfter.Seconds())))
		}
		pkghttp.WriteTooManyRequests(w, rejection.Reason, rejection.Message)
	default:
		pkghttp.WriteFailure(w, http.StatusForbidden, rejection.Reason, rejection.Message)
	}
}

// Logout clears the session cookie. The JWT itself simply expires.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	auth.ClearSessionCookie(w, h.secureCookies)
	pkghttp.WriteSuccess(w, http.StatusOK, pkghttp.SuccessData{
		Message:  "Logged out.",
		Redirect: h.matcher.LoginPath(),
	})
}

// decodeLoginRequest accepts both JSON and classic form encodings; the
// non-JS login page posts application/x-www-form-urlencoded.
func decodeLoginRequest(r *http.Request) (LoginRequest, error) {
	var req LoginRequest
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "application/x-www-form-urlencoded") || strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseForm(); err != nil {
			return req, err
		}
		req = LoginRequest{
			Username:      r.PostFormValue("username"),
			Password:      r.PostFormValue("password"),
			Remember:      r.PostFormValue("remember") == "1" || r.PostFormValue("remember") == "on",
			SecurityToken: r.PostFormValue("security_token"),
			Website:       r.PostFormValue(HoneypotFieldName),
			RenderedAt:    r.PostFormValue("rendered_at"),
			RedirectTo:    r.PostFormValue("redirect_to"),
		}
		return req, nil
	}
	err := json.NewDecoder(r.Body).Decode(&req)
	return req, err
}
