package handlers

import (
	"bytes"
	"html/template"
	"log/slog"
	"net/http"

	"foresttracker/pkg/claims"
	"foresttracker/pkg/middleware"
	"foresttracker/pkg/respond"
	"foresttracker/pkg/session"
)

type PageData struct {
	Title       string
	CurrentPath string
	User        string
	Role        claims.Role
	Error       string
	Redirect    string
}

type PageHandler struct {
	Pages    map[string]*template.Template
	Sessions *session.Manager
	Logger   *slog.Logger
}

func NewPageHandler(pages map[string]*template.Template, sessions *session.Manager, logger *slog.Logger) *PageHandler {
	return &PageHandler{
		Pages:    pages,
		Sessions: sessions,
		Logger:   logger,
	}
}

func (h *PageHandler) render(w http.ResponseWriter, r *http.Request, name string, data PageData) {
	logger := middleware.Logger(r, h.Logger)

	t, ok := h.Pages[name]
	if !ok {
		logger.Error("unknown page", "page", name)
		respond.Error(w, http.StatusInternalServerError, respond.CodeInternal, "page not found")
		return
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		logger.Error("render page", "page", name, "error", err)
		respond.Error(w, http.StatusInternalServerError, respond.CodeInternal, "failed to render page")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := buf.WriteTo(w); err != nil {
		logger.Error("failed to write page", "page", name, "error", err)
	}
}

// data fills in the caller from the page guard, or from the cookie on unguarded pages.
func (h *PageHandler) data(r *http.Request, title string) PageData {
	d := PageData{Title: title, CurrentPath: r.URL.Path, Role: claims.RoleUser}

	if p, ok := claims.PrincipalFrom(r.Context()); ok {
		d.User, d.Role = p.User, p.Role
		return d
	}
	if s, ok := h.Sessions.Lookup(r.Context(), session.IDFromRequest(r)); ok {
		d.User, d.Role = s.User, s.Role
	}
	return d
}

func (h *PageHandler) Landing(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "landing", h.data(r, "Forest Tracker - Home"))
}

func (h *PageHandler) Resources(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "resources", h.data(r, "Forest Tracker - Resources"))
}

func (h *PageHandler) Report(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "report", h.data(r, "Forest Tracker - Report Encroachment"))
}

func (h *PageHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "dashboard", h.data(r, "Forest Tracker - Dashboard"))
}

func (h *PageHandler) Admin(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "admin", h.data(r, "Forest Tracker - Admin Portal"))
}

func (h *PageHandler) Login(w http.ResponseWriter, r *http.Request) {
	d := h.data(r, "Forest Tracker - Login")
	d.Error = r.URL.Query().Get("error")
	if redirect := r.URL.Query().Get("redirect"); isLocalPath(redirect) {
		d.Redirect = redirect
	}
	h.render(w, r, "login", d)
}
