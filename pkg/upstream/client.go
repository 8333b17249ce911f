package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"foresttracker/pkg/respond"
)

// Error is a failed upstream call. Kind is one of the respond upstream codes.
type Error struct {
	Kind    string
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Response is a successful JSON relay. Body is always valid JSON.
type Response struct {
	Status int
	Body   json.RawMessage
}

// Client talks to the upstream backend. Every call carries the resolved token as a bearer credential.
type Client struct {
	base   *url.URL
	http   *http.Client
	logger *slog.Logger
}

func New(baseURL string, timeout time.Duration, logger *slog.Logger) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse upstream url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("upstream url %q must be absolute", baseURL)
	}

	return &Client{
		base:   base,
		http:   &http.Client{Timeout: timeout},
		logger: logger,
	}, nil
}

func (c *Client) url(endpoint string) string {
	return c.base.String() + endpoint
}

// Do sends body (if any) as JSON to endpoint and returns the upstream JSON payload.
func (c *Client) Do(ctx context.Context, method, endpoint string, body any, token string) (*Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, &Error{Kind: respond.CodeBadRequest, Status: http.StatusBadRequest, Message: "invalid request body", Err: err}
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(endpoint), reader)
	if err != nil {
		return nil, unavailable(err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.send(req, token)
}

// Upload forwards one file as a multipart form with the given field name, filename and content type.
func (c *Client) Upload(ctx context.Context, endpoint, token, field, filename, contentType string, data []byte) (*Response, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, escapeQuotes(field), escapeQuotes(filename)))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h.Set("Content-Type", contentType)

	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, unavailable(err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, unavailable(err)
	}
	if err := mw.Close(); err != nil {
		return nil, unavailable(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(endpoint), &buf)
	if err != nil {
		return nil, unavailable(err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	return c.send(req, token)
}

func (c *Client) send(req *http.Request, token string) (*Response, error) {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	c.logger.Info("upstream request", "method", req.Method, "path", req.URL.Path, "auth", token != "")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("upstream unavailable", "path", req.URL.Path, "error", err)
		return nil, unavailable(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, unavailable(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("upstream error", "path", req.URL.Path, "status", resp.StatusCode)
		return nil, &Error{
			Kind:    respond.CodeUpstreamError,
			Status:  resp.StatusCode,
			Message: errorMessage(raw, resp.StatusCode),
		}
	}

	return &Response{Status: resp.StatusCode, Body: asJSON(raw)}, nil
}

func unavailable(err error) *Error {
	return &Error{
		Kind:    respond.CodeUpstreamUnavailable,
		Status:  http.StatusInternalServerError,
		Message: err.Error(),
		Err:     err,
	}
}

func errorMessage(raw []byte, status int) string {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.Error != "" {
		return body.Error
	}
	return fmt.Sprintf("request failed with status code %d", status)
}

// asJSON passes JSON through untouched and wraps anything else as a JSON string.
func asJSON(raw []byte) json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return json.RawMessage("null")
	}
	if json.Valid(trimmed) {
		return json.RawMessage(trimmed)
	}
	quoted, _ := json.Marshal(string(raw))
	return quoted
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
