package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"

	"foresttracker/pkg/respond"
	"foresttracker/pkg/upstream"
)

const maxJSONBody = 1 << 20

// Backend is the upstream surface the handlers need. *upstream.Client implements it.
type Backend interface {
	Do(ctx context.Context, method, endpoint string, body any, token string) (*upstream.Response, error)
	Upload(ctx context.Context, endpoint, token, field, filename, contentType string, data []byte) (*upstream.Response, error)
	Proxy(w http.ResponseWriter, r *http.Request, endpoint, token string)
	Stream(w http.ResponseWriter, r *http.Request, endpoint, token string, extra http.Header)
}

func isJSON(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "application/json"
}

func DecodeJSONBody(w http.ResponseWriter, r *http.Request, req any) bool {
	if !isJSON(r) {
		respond.Error(w, http.StatusBadRequest, respond.CodeBadRequest, "invalid Content-Type")
		return false
	}

	defer r.Body.Close()

	if err := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody)).Decode(req); err != nil {
		respond.Error(w, http.StatusBadRequest, respond.CodeBadRequest, "bad json")
		return false
	}

	return true
}

// readRawJSON returns the request body for forwarding, or nil when there is none.
func readRawJSON(w http.ResponseWriter, r *http.Request) (json.RawMessage, bool) {
	defer r.Body.Close()

	data, err := io.ReadAll(io.LimitReader(r.Body, maxJSONBody))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, respond.CodeBadRequest, "unreadable body")
		return nil, false
	}
	if len(data) == 0 {
		return nil, true
	}
	if !json.Valid(data) {
		respond.Error(w, http.StatusBadRequest, respond.CodeBadRequest, "bad json")
		return nil, false
	}
	return json.RawMessage(data), true
}

func writeRaw(w http.ResponseWriter, logger *slog.Logger, status int, body json.RawMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		logger.Error("failed to write response to client", "error", err)
	}
}

// writeUpstreamError answers with the upstream status when there is one, 500 otherwise.
func writeUpstreamError(w http.ResponseWriter, logger *slog.Logger, path string, err error) {
	var uerr *upstream.Error
	if errors.As(err, &uerr) {
		logger.Info("backend error", "path", path, "status", uerr.Status, "error", uerr.Message)
		respond.Error(w, uerr.Status, uerr.Kind, uerr.Message)
		return
	}
	logger.Error("request failed", "path", path, "error", err)
	respond.Error(w, http.StatusInternalServerError, respond.CodeInternal, err.Error())
}
