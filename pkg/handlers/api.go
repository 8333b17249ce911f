package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"foresttracker/pkg/claims"
	"foresttracker/pkg/middleware"
	"foresttracker/pkg/report"
	"foresttracker/pkg/respond"
)

const uploadField = "file"

type ReportLister interface {
	List() []report.Report
}

type APIHandler struct {
	Backend        Backend
	Reports        ReportLister
	Logger         *slog.Logger
	MaxUploadBytes int64
}

func NewAPIHandler(backend Backend, reports ReportLister, maxUploadBytes int64, logger *slog.Logger) *APIHandler {
	return &APIHandler{
		Backend:        backend,
		Reports:        reports,
		Logger:         logger,
		MaxUploadBytes: maxUploadBytes,
	}
}

// relay forwards a JSON call with the guard's token and writes back the upstream answer.
func (h *APIHandler) relay(w http.ResponseWriter, r *http.Request, method, endpoint string, body any) {
	logger := middleware.Logger(r, h.Logger)
	token, _ := claims.TokenFrom(r.Context())

	resp, err := h.Backend.Do(r.Context(), method, endpoint, body, token)
	if err != nil {
		writeUpstreamError(w, logger, endpoint, err)
		return
	}
	writeRaw(w, logger, resp.Status, resp.Body)
}

// relayBody forwards the inbound JSON body as is.
func (h *APIHandler) relayBody(w http.ResponseWriter, r *http.Request, endpoint string) {
	body, ok := readRawJSON(w, r)
	if !ok {
		return
	}
	if body == nil {
		h.relay(w, r, r.Method, endpoint, nil)
		return
	}
	h.relay(w, r, r.Method, endpoint, body)
}

func withQuery(endpoint string, r *http.Request) string {
	if q := r.URL.Query().Encode(); q != "" {
		return endpoint + "?" + q
	}
	return endpoint
}

func (h *APIHandler) ListResources(w http.ResponseWriter, r *http.Request) {
	h.relay(w, r, http.MethodGet, "/research/resources", nil)
}

func (h *APIHandler) AddResource(w http.ResponseWriter, r *http.Request) {
	h.relayBody(w, r, "/research/resources")
}

func (h *APIHandler) SummarizeArticle(w http.ResponseWriter, r *http.Request) {
	h.relayBody(w, r, "/research/summarize_article")
}

// SubmitReport takes anonymous reports; no credentials are forwarded.
func (h *APIHandler) SubmitReport(w http.ResponseWriter, r *http.Request) {
	var sub report.Submission
	if ok := DecodeJSONBody(w, r, &sub); !ok {
		return
	}
	h.relay(w, r, http.MethodPost, "/whistle/submit", sub.Compose())
}

func (h *APIHandler) ListReports(w http.ResponseWriter, r *http.Request) {
	logger := middleware.Logger(r, h.Logger)

	reports := h.Reports.List()
	if ok := respond.JSON(w, logger, http.StatusOK, reports); ok {
		logger.Info("reports listed", "count", len(reports))
	}
}

func (h *APIHandler) PolicyResults(w http.ResponseWriter, r *http.Request) {
	h.relay(w, r, http.MethodGet, withQuery("/dashboard/policy-results", r), nil)
}

func (h *APIHandler) PredictNDVI(w http.ResponseWriter, r *http.Request) {
	h.relayBody(w, r, "/dashboard/ndvi/predict")
}

func (h *APIHandler) ForestHealth(w http.ResponseWriter, r *http.Request) {
	h.relay(w, r, http.MethodGet, withQuery("/dashboard/forest-health", r), nil)
}

// PolicyPDF streams the binary report so the bytes reach the browser untouched.
func (h *APIHandler) PolicyPDF(w http.ResponseWriter, r *http.Request) {
	token, _ := claims.TokenFrom(r.Context())

	extra := http.Header{}
	extra.Set("Content-Type", "application/pdf")
	extra.Set("Content-Disposition", `attachment; filename="policy_recommendations.pdf"`)

	h.Backend.Stream(w, r, "/dashboard/policy-pdf", token, extra)
}

// DashboardData has no upstream counterpart yet and always answers with an empty list.
func (h *APIHandler) DashboardData(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, middleware.Logger(r, h.Logger), http.StatusOK, []any{})
}

func (h *APIHandler) S1Trend(w http.ResponseWriter, r *http.Request) {
	h.relay(w, r, http.MethodGet, withQuery("/ndvi/api/s1/trend", r), nil)
}

func (h *APIHandler) FilteredData(w http.ResponseWriter, r *http.Request) {
	h.relay(w, r, http.MethodGet, withQuery("/dashboard/filtered-data", r), nil)
}

func (h *APIHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	h.relay(w, r, http.MethodGet, withQuery("/evaluate", r), nil)
}

// Upload buffers the single "file" part and re-sends it to the upstream as a fresh multipart form.
func (h *APIHandler) Upload(w http.ResponseWriter, r *http.Request) {
	logger := middleware.Logger(r, h.Logger)
	token, _ := claims.TokenFrom(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes)
	file, hdr, err := r.FormFile(uploadField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respond.Error(w, http.StatusRequestEntityTooLarge, respond.CodeBadRequest, "File too large")
			return
		}
		respond.Error(w, http.StatusBadRequest, respond.CodeBadRequest, "No file provided")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, respond.CodeBadRequest, "unreadable file")
		return
	}
	logger.Info("upload", "filename", hdr.Filename, "size", len(data))

	resp, err := h.Backend.Upload(r.Context(), "/admin/upload", token, uploadField, hdr.Filename, hdr.Header.Get("Content-Type"), data)
	if err != nil {
		writeUpstreamError(w, logger, "/admin/upload", err)
		return
	}
	writeRaw(w, logger, resp.Status, resp.Body)
}

func (h *APIHandler) ListUploads(w http.ResponseWriter, r *http.Request) {
	token, _ := claims.TokenFrom(r.Context())
	h.Backend.Proxy(w, r, "/admin/uploads", token)
}
