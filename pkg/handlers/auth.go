package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"foresttracker/pkg/claims"
	"foresttracker/pkg/middleware"
	"foresttracker/pkg/respond"
	"foresttracker/pkg/session"
	"foresttracker/pkg/upstream"
)

type LoginForm struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type AuthHandler struct {
	Backend      Backend
	Sessions     *session.Manager
	Logger       *slog.Logger
	SecureCookie bool
}

func NewAuthHandler(backend Backend, sessions *session.Manager, secureCookie bool, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		Backend:      backend,
		Sessions:     sessions,
		Logger:       logger,
		SecureCookie: secureCookie,
	}
}

// login authenticates against the upstream and opens a session for the returned token.
func (h *AuthHandler) login(ctx context.Context, form LoginForm) (map[string]any, *session.Session, error) {
	resp, err := h.Backend.Do(ctx, http.MethodPost, "/auth/login", form, "")
	if err != nil {
		return nil, nil, err
	}

	var body map[string]any
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		body = map[string]any{}
	}

	token, _ := body["token"].(string)
	if token == "" {
		return nil, nil, &upstream.Error{
			Kind:    respond.CodeUpstreamError,
			Status:  http.StatusBadGateway,
			Message: "login response carried no token",
		}
	}

	role, err := claims.RoleFromToken(token)
	if err != nil {
		h.Logger.Error("decode role from token", "error", err)
	}

	s, err := h.Sessions.Create(ctx, token, form.Username, role)
	if err != nil {
		return nil, nil, err
	}
	return body, s, nil
}

// APILogin handles POST /api/auth/login.
func (h *AuthHandler) APILogin(w http.ResponseWriter, r *http.Request) {
	logger := middleware.Logger(r, h.Logger)

	var form LoginForm
	if ok := DecodeJSONBody(w, r, &form); !ok {
		return
	}

	body, s, err := h.login(r.Context(), form)
	if err != nil {
		writeUpstreamError(w, logger, r.URL.Path, err)
		return
	}

	session.SetCookie(w, s, h.Sessions.TTL(), h.SecureCookie)

	body["username"] = form.Username
	body["role"] = s.Role
	if ok := respond.JSON(w, logger, http.StatusOK, body); ok {
		logger.Info("login", "user", form.Username, "role", s.Role)
	}
}

// APILogout handles POST /api/auth/logout.
func (h *AuthHandler) APILogout(w http.ResponseWriter, r *http.Request) {
	logger := middleware.Logger(r, h.Logger)

	if err := h.Sessions.Destroy(r.Context(), session.IDFromRequest(r)); err != nil {
		logger.Error("logout", "error", err)
	}
	session.ClearCookie(w, h.SecureCookie)

	respond.JSON(w, logger, http.StatusOK, map[string]string{"message": "Logged out"})
}

// FormLogin handles POST /login from the login page.
func (h *AuthHandler) FormLogin(w http.ResponseWriter, r *http.Request) {
	logger := middleware.Logger(r, h.Logger)

	form, redirect, ok := decodeLoginForm(r)
	if !ok {
		http.Redirect(w, r, middleware.LoginPath+"?error="+url.QueryEscape("Invalid login request"), http.StatusFound)
		return
	}
	logger.Info("login form", "user", form.Username)

	_, s, err := h.login(r.Context(), form)
	if err != nil {
		logger.Info("login failed", "user", form.Username, "error", err)
		http.Redirect(w, r, middleware.LoginPath+"?error="+url.QueryEscape(err.Error()), http.StatusFound)
		return
	}

	session.SetCookie(w, s, h.Sessions.TTL(), h.SecureCookie)

	target := "/dashboard"
	if s.Role == claims.RoleResearcher {
		target = "/resources"
	}
	if isLocalPath(redirect) {
		target = redirect
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// FormLogout handles POST /logout.
func (h *AuthHandler) FormLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.Sessions.Destroy(r.Context(), session.IDFromRequest(r)); err != nil {
		middleware.Logger(r, h.Logger).Error("logout", "error", err)
	}
	session.ClearCookie(w, h.SecureCookie)
	http.Redirect(w, r, middleware.LoginPath, http.StatusFound)
}

// decodeLoginForm accepts both urlencoded and JSON bodies.
func decodeLoginForm(r *http.Request) (LoginForm, string, bool) {
	if isJSON(r) {
		var body struct {
			LoginForm
			Redirect string `json:"redirect"`
		}
		defer r.Body.Close()
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return LoginForm{}, "", false
		}
		return body.LoginForm, body.Redirect, true
	}

	if err := r.ParseForm(); err != nil {
		return LoginForm{}, "", false
	}
	return LoginForm{
		Username: r.PostForm.Get("username"),
		Password: r.PostForm.Get("password"),
	}, r.PostForm.Get("redirect"), true
}

func isLocalPath(p string) bool {
	return strings.HasPrefix(p, "/") && !strings.HasPrefix(p, "//") && !strings.HasPrefix(p, "/\\")
}
