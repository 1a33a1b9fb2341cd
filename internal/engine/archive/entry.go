package archive

import (
	"encoding/json"
	"time"

	"github.com/rshade/greenreport/internal/report"
)

// Entry is the on-disk form of an archived report.
type Entry struct {
	ID        string          `json:"id"`
	Kind      report.Kind     `json:"kind"`
	CreatedAt time.Time       `json:"created_at"`
	ExpiresAt time.Time       `json:"expires_at"`
	Report    json.RawMessage `json:"report"`
}

// Expired reports whether the entry is past its expiry at now.
func (e *Entry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}

// Decode unmarshals the archived report.
func (e *Entry) Decode() (*report.Report, error) {
	var r report.Report
	if err := json.Unmarshal(e.Report, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Summary is the listing form of an archived report.
type Summary struct {
	ID          string      `json:"id"`
	Kind        report.Kind `json:"kind"`
	CreatedAt   time.Time   `json:"created_at"`
	ExpiresAt   time.Time   `json:"expires_at"`
	ModelUsed   string      `json:"model_used"`
	ParseFailed bool        `json:"parse_failed,omitempty"`
}
