package handlers_test

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"foresttracker/pkg/claims"
	"foresttracker/pkg/handlers"
	"foresttracker/pkg/report"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type seenRequest struct {
	Method string
	Path   string
	Query  string
	Auth   string
	Body   []byte
}

// recordingUpstream replies with status and body to every call and remembers the last one.
func recordingUpstream(t *testing.T, status int, body string) (http.HandlerFunc, *seenRequest) {
	seen := &seenRequest{}
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		*seen = seenRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			Auth:   r.Header.Get("Authorization"),
			Body:   data,
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}, seen
}

type staticReports []report.Report

func (s staticReports) List() []report.Report { return s }

func withToken(r *http.Request, token string) *http.Request {
	return r.WithContext(claims.WithToken(r.Context(), token))
}

func TestAPIRelay(t *testing.T) {
	tests := []struct {
		name         string
		method       string
		target       string
		body         string
		call         func(h *handlers.APIHandler) http.HandlerFunc
		expectedPath string
		expectQuery  string
	}{
		{
			name:         "list resources",
			method:       http.MethodGet,
			target:       "/api/research/resources",
			call:         func(h *handlers.APIHandler) http.HandlerFunc { return h.ListResources },
			expectedPath: "/research/resources",
		},
		{
			name:         "add resource",
			method:       http.MethodPost,
			target:       "/api/research/resources",
			body:         `{"title":"Mangroves"}`,
			call:         func(h *handlers.APIHandler) http.HandlerFunc { return h.AddResource },
			expectedPath: "/research/resources",
		},
		{
			name:         "summarize article",
			method:       http.MethodPost,
			target:       "/api/research/summarize_article",
			body:         `{"url":"https://example.org"}`,
			call:         func(h *handlers.APIHandler) http.HandlerFunc { return h.SummarizeArticle },
			expectedPath: "/research/summarize_article",
		},
		{
			name:         "policy results",
			method:       http.MethodGet,
			target:       "/api/dashboard/policy-results?forest=sundarbans",
			call:         func(h *handlers.APIHandler) http.HandlerFunc { return h.PolicyResults },
			expectedPath: "/dashboard/policy-results",
			expectQuery:  "forest=sundarbans",
		},
		{
			name:         "predict ndvi",
			method:       http.MethodPost,
			target:       "/api/dashboard/ndvi/predict",
			body:         `{"year":2030}`,
			call:         func(h *handlers.APIHandler) http.HandlerFunc { return h.PredictNDVI },
			expectedPath: "/dashboard/ndvi/predict",
		},
		{
			name:         "forest health",
			method:       http.MethodGet,
			target:       "/api/dashboard/forest-health",
			call:         func(h *handlers.APIHandler) http.HandlerFunc { return h.ForestHealth },
			expectedPath: "/dashboard/forest-health",
		},
		{
			name:         "s1 trend",
			method:       http.MethodGet,
			target:       "/api/s1/trend?start=2020",
			call:         func(h *handlers.APIHandler) http.HandlerFunc { return h.S1Trend },
			expectedPath: "/ndvi/api/s1/trend",
			expectQuery:  "start=2020",
		},
		{
			name:         "filtered data",
			method:       http.MethodGet,
			target:       "/filtered-data?region=north",
			call:         func(h *handlers.APIHandler) http.HandlerFunc { return h.FilteredData },
			expectedPath: "/dashboard/filtered-data",
			expectQuery:  "region=north",
		},
		{
			name:         "evaluate",
			method:       http.MethodGet,
			target:       "/api/evaluate?model=rf",
			call:         func(h *handlers.APIHandler) http.HandlerFunc { return h.Evaluate },
			expectedPath: "/evaluate",
			expectQuery:  "model=rf",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			upstreamHandler, seen := recordingUpstream(t, http.StatusOK, `{"ok":true}`)
			h := handlers.NewAPIHandler(newBackend(t, upstreamHandler), staticReports{}, 1<<20, logger)

			var body io.Reader
			if test.body != "" {
				body = strings.NewReader(test.body)
			}
			req := withToken(httptest.NewRequest(test.method, test.target, body), "jwt-abc")
			req.Header.Set("Content-Type", "application/json")
			rr := httptest.NewRecorder()

			test.call(h)(rr, req)

			assert.Equal(t, http.StatusOK, rr.Code)
			assert.JSONEq(t, `{"ok":true}`, rr.Body.String())

			assert.Equal(t, test.method, seen.Method)
			assert.Equal(t, test.expectedPath, seen.Path)
			assert.Equal(t, test.expectQuery, seen.Query)
			assert.Equal(t, "Bearer jwt-abc", seen.Auth)
			if test.body != "" {
				assert.JSONEq(t, test.body, string(seen.Body))
			}
		})
	}
}

func TestAPIRelay_UpstreamErrors(t *testing.T) {
	t.Run("error field is relayed", func(t *testing.T) {
		upstreamHandler, _ := recordingUpstream(t, http.StatusForbidden, `{"error":"Admins only"}`)
		h := handlers.NewAPIHandler(newBackend(t, upstreamHandler), staticReports{}, 1<<20, logger)

		rr := httptest.NewRecorder()
		h.ListResources(rr, withToken(httptest.NewRequest(http.MethodGet, "/api/research/resources", nil), "t"))

		assert.Equal(t, http.StatusForbidden, rr.Code)
		assert.JSONEq(t, `{"error":"Admins only","code":"upstream_error"}`, rr.Body.String())
	})

	t.Run("status without error field", func(t *testing.T) {
		upstreamHandler, _ := recordingUpstream(t, http.StatusServiceUnavailable, `{}`)
		h := handlers.NewAPIHandler(newBackend(t, upstreamHandler), staticReports{}, 1<<20, logger)

		rr := httptest.NewRecorder()
		h.ForestHealth(rr, withToken(httptest.NewRequest(http.MethodGet, "/api/dashboard/forest-health", nil), "t"))

		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
		assert.Contains(t, rr.Body.String(), "request failed with status code 503")
	})

	t.Run("invalid json body is rejected locally", func(t *testing.T) {
		upstreamHandler, seen := recordingUpstream(t, http.StatusOK, `{}`)
		h := handlers.NewAPIHandler(newBackend(t, upstreamHandler), staticReports{}, 1<<20, logger)

		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/dashboard/ndvi/predict", strings.NewReader(`{nope`))
		h.PredictNDVI(rr, withToken(req, "t"))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Empty(t, seen.Path)
	})
}

func TestSubmitReport(t *testing.T) {
	upstreamHandler, seen := recordingUpstream(t, http.StatusCreated, `{"message":"Report submitted"}`)
	h := handlers.NewAPIHandler(newBackend(t, upstreamHandler), staticReports{}, 1<<20, logger)

	req := httptest.NewRequest(http.MethodPost, "/api/whistle/submit",
		strings.NewReader(`{"location":"North ridge","incidentDetails":"Logging trucks at night","forest":"amazon"}`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()

	h.SubmitReport(rr, req)

	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "/whistle/submit", seen.Path)
	assert.Empty(t, seen.Auth)

	var sent report.Upstream
	require.NoError(t, json.Unmarshal(seen.Body, &sent))
	assert.Equal(t, "North ridge\nLogging trucks at night", sent.Report)
	assert.Equal(t, "amazon", sent.Forest)
	assert.Equal(t, []string{}, sent.Attachments)
}

func TestListReports(t *testing.T) {
	reports := staticReports{
		{ID: "r1", Location: "North ridge", IncidentDetails: "Fire", Timestamp: 1700000000000000000},
	}
	h := handlers.NewAPIHandler(nil, reports, 1<<20, logger)

	rr := httptest.NewRecorder()
	h.ListReports(rr, httptest.NewRequest(http.MethodGet, "/api/whistle/reports", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t,
		`[{"id":"r1","location":"North ridge","incidentDetails":"Fire","timestamp":1700000000000000000}]`,
		rr.Body.String())
}

func TestDashboardData(t *testing.T) {
	h := handlers.NewAPIHandler(nil, staticReports{}, 1<<20, logger)

	rr := httptest.NewRecorder()
	h.DashboardData(rr, httptest.NewRequest(http.MethodGet, "/api/dashboard/data", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())
}

func TestPolicyPDF(t *testing.T) {
	pdf := []byte("%PDF-1.4\x00\x01binary")
	backend := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/dashboard/policy-pdf", r.URL.Path)
		assert.Equal(t, "Bearer jwt-abc", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write(pdf)
	})
	h := handlers.NewAPIHandler(backend, staticReports{}, 1<<20, logger)

	rr := httptest.NewRecorder()
	h.PolicyPDF(rr, withToken(httptest.NewRequest(http.MethodGet, "/api/dashboard/policy-pdf", nil), "jwt-abc"))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/pdf", rr.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="policy_recommendations.pdf"`, rr.Header().Get("Content-Disposition"))
	assert.Equal(t, pdf, rr.Body.Bytes())
}

func multipartBody(t *testing.T, field, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if field != "" {
		fw, err := mw.CreateFormFile(field, filename)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	} else {
		require.NoError(t, mw.WriteField("note", "no file here"))
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestUpload(t *testing.T) {
	var gotName string
	var gotData []byte
	backend := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/admin/upload", r.URL.Path)
		assert.Equal(t, "Bearer admin-token", r.Header.Get("Authorization"))

		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		gotName = hdr.Filename
		gotData, _ = io.ReadAll(f)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"message":"File uploaded"}`))
	})
	h := handlers.NewAPIHandler(backend, staticReports{}, 1024, logger)

	t.Run("file is forwarded", func(t *testing.T) {
		body, contentType := multipartBody(t, "file", "plots.csv", []byte("a,b\n1,2\n"))
		req := httptest.NewRequest(http.MethodPost, "/api/admin/upload", body)
		req.Header.Set("Content-Type", contentType)
		rr := httptest.NewRecorder()

		h.Upload(rr, withToken(req, "admin-token"))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"message":"File uploaded"}`, rr.Body.String())
		assert.Equal(t, "plots.csv", gotName)
		assert.Equal(t, []byte("a,b\n1,2\n"), gotData)
	})

	t.Run("no file", func(t *testing.T) {
		body, contentType := multipartBody(t, "", "", nil)
		req := httptest.NewRequest(http.MethodPost, "/api/admin/upload", body)
		req.Header.Set("Content-Type", contentType)
		rr := httptest.NewRecorder()

		h.Upload(rr, withToken(req, "admin-token"))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "No file provided")
	})

	t.Run("too large", func(t *testing.T) {
		body, contentType := multipartBody(t, "file", "big.bin", bytes.Repeat([]byte("x"), 4096))
		req := httptest.NewRequest(http.MethodPost, "/api/admin/upload", body)
		req.Header.Set("Content-Type", contentType)
		rr := httptest.NewRecorder()

		h.Upload(rr, withToken(req, "admin-token"))

		assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
		assert.Contains(t, rr.Body.String(), "File too large")
	})
}

func TestListUploads(t *testing.T) {
	backend := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/admin/uploads", r.URL.Path)
		assert.Equal(t, "Bearer admin-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`["plots.csv"]`))
	})
	h := handlers.NewAPIHandler(backend, staticReports{}, 1<<20, logger)

	rr := httptest.NewRecorder()
	h.ListUploads(rr, withToken(httptest.NewRequest(http.MethodGet, "/api/admin/uploads", nil), "admin-token"))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `["plots.csv"]`, rr.Body.String())
}
