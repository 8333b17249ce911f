package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Submission is what the report form posts.
type Submission struct {
	Location        string   `json:"location"`
	IncidentDetails string   `json:"incidentDetails"`
	Attachments     []string `json:"attachments"`
	Forest          string   `json:"forest"`
}

// Upstream is the body sent to /whistle/submit.
type Upstream struct {
	Report      string   `json:"report"`
	Attachments []string `json:"attachments"`
	Forest      string   `json:"forest"`
}

// Stored is one entry of the reports file written by the upstream.
type Stored struct {
	ID        string          `json:"id,omitempty"`
	Report    string          `json:"report"`
	Timestamp json.RawMessage `json:"timestamp,omitempty"`
}

// Report is the shape the dashboard consumes. Timestamp is in nanoseconds since the epoch.
type Report struct {
	ID              string `json:"id"`
	Location        string `json:"location"`
	IncidentDetails string `json:"incidentDetails"`
	Timestamp       int64  `json:"timestamp"`
}

const unknownLocation = "Unknown"

// Compose joins location and details so that splitting on the first newline gives them back.
func (s Submission) Compose() Upstream {
	attachments := s.Attachments
	if attachments == nil {
		attachments = []string{}
	}
	return Upstream{
		Report:      s.Location + "\n" + s.IncidentDetails,
		Attachments: attachments,
		Forest:      s.Forest,
	}
}

// Split is the inverse of Compose.
func Split(text string) (location, details string) {
	location, details, _ = strings.Cut(text, "\n")
	return location, details
}

// Transform converts stored entries. Entries without a usable timestamp get now,
// so repeated reads of such entries differ in that field only.
func Transform(stored []Stored, now time.Time) []Report {
	out := make([]Report, 0, len(stored))
	for i, s := range stored {
		location, details := Split(s.Report)
		if location == "" {
			location = unknownLocation
		}
		if details == "" {
			details = s.Report
		}

		id := s.ID
		if id == "" {
			id = fmt.Sprintf("report-%d", i)
		}

		ts, ok := parseTimestamp(s.Timestamp)
		if !ok {
			ts = now
		}

		out = append(out, Report{
			ID:              id,
			Location:        location,
			IncidentDetails: details,
			Timestamp:       ts.UnixMilli() * int64(time.Millisecond),
		})
	}
	return out
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// parseTimestamp accepts ISO-8601 strings (naive ones are UTC) and millisecond epoch numbers.
func parseTimestamp(raw json.RawMessage) (time.Time, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return time.Time{}, false
	}

	var ms float64
	if err := json.Unmarshal(raw, &ms); err == nil {
		return time.UnixMilli(int64(ms)), true
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FileReader reads the reports file the upstream appends to.
type FileReader struct {
	Path   string
	Logger *slog.Logger
	Now    func() time.Time
}

func NewFileReader(path string, logger *slog.Logger) *FileReader {
	return &FileReader{Path: path, Logger: logger, Now: time.Now}
}

// List never fails: a missing or malformed file reads as no reports.
func (r *FileReader) List() []Report {
	data, err := os.ReadFile(r.Path)
	if errors.Is(err, fs.ErrNotExist) {
		r.Logger.Info("no reports file", "path", r.Path)
		return []Report{}
	}
	if err != nil {
		r.Logger.Error("read reports", "path", r.Path, "error", err)
		return []Report{}
	}

	var stored []Stored
	if err := json.Unmarshal(data, &stored); err != nil {
		r.Logger.Error("parse reports", "path", r.Path, "error", err)
		return []Report{}
	}

	return Transform(stored, r.Now())
}
