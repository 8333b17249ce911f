package routing

import (
	"context"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"foresttracker/internal/config"
	"foresttracker/pkg/handlers"
	"foresttracker/pkg/middleware"
	"foresttracker/pkg/respond"
	"foresttracker/pkg/session"
)

const shutdownTimeout = 10 * time.Second

type Deps struct {
	Config   config.Config
	Sessions *session.Manager
	Backend  handlers.Backend
	Reports  handlers.ReportLister
	Pages    map[string]*template.Template
	Logger   *slog.Logger
}

// NewRouter wires every route. Order matters: API routes, then pages, then static files.
func NewRouter(d Deps) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.RequestID(d.Logger))
	r.Use(middleware.Panic(d.Logger))

	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		respond.JSON(w, middleware.Logger(r, d.Logger), http.StatusOK, map[string]string{"status": "ok"})
	}).Methods("GET")

	InitRoutes(r, d)
	ServeFallback(r, d.Logger)
	ServeStaticFiles(r, d.Config.StaticDir)
	return r
}

func InitRoutes(r *mux.Router, d Deps) {
	authHandler := handlers.NewAuthHandler(d.Backend, d.Sessions, d.Config.CookieSecure, d.Logger)
	apiHandler := handlers.NewAPIHandler(d.Backend, d.Reports, d.Config.MaxUploadBytes, d.Logger)
	pageHandler := handlers.NewPageHandler(d.Pages, d.Sessions, d.Logger)

	checkAuth := middleware.CheckAuth(d.Sessions, []byte(d.Config.JWTSecret), d.Logger)
	requireAuth := middleware.RequireAuth(d.Sessions, d.Logger)
	requireAdmin := middleware.RequireAdmin(d.Logger)

	/* -+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+ */

	openAPI := r.PathPrefix("/api").Subrouter()
	api := r.PathPrefix("/api").Subrouter()
	api.Use(checkAuth)

	/* open api routers */
	openAPI.HandleFunc("/auth/login", authHandler.APILogin).Methods("POST")
	openAPI.HandleFunc("/auth/logout", authHandler.APILogout).Methods("POST")
	openAPI.HandleFunc("/whistle/submit", apiHandler.SubmitReport).Methods("POST")
	openAPI.HandleFunc("/s1/trend", apiHandler.S1Trend).Methods("GET")
	openAPI.HandleFunc("/evaluate", apiHandler.Evaluate).Methods("GET")
	r.HandleFunc("/filtered-data", apiHandler.FilteredData).Methods("GET")

	/* research routers */
	api.HandleFunc("/research/resources", apiHandler.ListResources).Methods("GET")
	api.HandleFunc("/research/resources", apiHandler.AddResource).Methods("POST")
	api.HandleFunc("/research/summarize_article", apiHandler.SummarizeArticle).Methods("POST")

	/* whistle routers */
	api.HandleFunc("/whistle/reports", apiHandler.ListReports).Methods("GET")

	/* dashboard routers */
	api.HandleFunc("/dashboard/policy-results", apiHandler.PolicyResults).Methods("GET")
	api.HandleFunc("/dashboard/ndvi/predict", apiHandler.PredictNDVI).Methods("POST")
	api.HandleFunc("/dashboard/policy-pdf", apiHandler.PolicyPDF).Methods("GET")
	api.HandleFunc("/dashboard/data", apiHandler.DashboardData).Methods("GET")
	api.HandleFunc("/dashboard/forest-health", apiHandler.ForestHealth).Methods("GET")

	/* admin routers */
	api.HandleFunc("/admin/upload", apiHandler.Upload).Methods("POST")
	api.HandleFunc("/admin/uploads", apiHandler.ListUploads).Methods("GET")

	/* page routers */
	r.HandleFunc("/", pageHandler.Landing).Methods("GET")
	r.Handle("/resources", requireAuth(http.HandlerFunc(pageHandler.Resources))).Methods("GET")
	r.HandleFunc("/report", pageHandler.Report).Methods("GET")
	r.HandleFunc("/dashboard", pageHandler.Dashboard).Methods("GET")
	r.Handle("/admin", requireAuth(requireAdmin(http.HandlerFunc(pageHandler.Admin)))).Methods("GET")
	r.HandleFunc("/login", pageHandler.Login).Methods("GET")
	r.HandleFunc("/login", authHandler.FormLogin).Methods("POST")
	r.HandleFunc("/logout", authHandler.FormLogout).Methods("POST")
}

func ServeStaticFiles(r *mux.Router, dir string) {
	r.PathPrefix("/").Handler(http.FileServer(http.Dir(dir))).Methods("GET", "HEAD")
}

// ServeFallback answers unknown API paths with JSON instead of the static file server's text 404.
func ServeFallback(r *mux.Router, logger *slog.Logger) {
	r.PathPrefix("/api/").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		middleware.Logger(r, logger).Info("unknown api route", "method", r.Method, "path", r.URL.Path)
		respond.Error(w, http.StatusNotFound, respond.CodeNotFound, "Not found")
	})
}

// StartServer serves until ctx is done, then drains in-flight requests.
func StartServer(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server running", "addr", "http://localhost"+addrPort(addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	logger.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}

func addrPort(addr string) string {
	if i := strings.LastIndex(addr, ":"); i >= 0 {
		return addr[i:]
	}
	return addr
}
