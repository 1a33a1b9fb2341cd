package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rshade/greenreport/internal/logging"
	"github.com/rshade/greenreport/internal/report"
)

const fileExtension = ".json"

// Archive errors.
var (
	ErrNotFound   = errors.New("archived report not found")
	ErrExpired    = errors.New("archived report expired")
	ErrInvalidID  = errors.New("report id is empty or malformed")
	ErrDisabled   = errors.New("report archive is disabled")
	ErrNoReportID = errors.New("report has no id")
)

// Store keeps reports as JSON files in one directory. It is safe for
// concurrent use.
type Store struct {
	directory string
	enabled   bool
	retention time.Duration
	now       func() time.Time

	mu sync.RWMutex
}

// Option customizes a Store.
type Option func(*Store)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore opens (creating if needed) an archive in directory. A disabled
// store accepts no writes and finds nothing.
func NewStore(directory string, enabled bool, retention time.Duration, opts ...Option) (*Store, error) {
	s := &Store{enabled: enabled, retention: retention, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if !enabled {
		return s, nil
	}
	if directory == "" {
		return nil, errors.New("archive directory cannot be empty")
	}
	if retention <= 0 {
		s.retention = DefaultRetention
	}
	if err := os.MkdirAll(directory, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}
	s.directory = directory
	return s, nil
}

// Put writes r under r.Metadata.ReportID, replacing any previous version.
func (s *Store) Put(ctx context.Context, r *report.Report) error {
	if !s.enabled {
		return ErrDisabled
	}
	if r == nil || r.Metadata.ReportID == "" {
		return ErrNoReportID
	}
	path, err := s.path(r.Metadata.ReportID)
	if err != nil {
		return err
	}

	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	now := s.now()
	entry := Entry{
		ID:        r.Metadata.ReportID,
		Kind:      r.Metadata.ReportType,
		CreatedAt: now,
		ExpiresAt: now.Add(s.retention),
		Report:    body,
	}
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal archive entry: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp := path + ".tmp"
	if writeErr := os.WriteFile(tmp, data, 0o600); writeErr != nil {
		return fmt.Errorf("failed to write archive file: %w", writeErr)
	}
	if renameErr := os.Rename(tmp, path); renameErr != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to rename archive file: %w", renameErr)
	}

	logging.FromContext(ctx).Debug().Ctx(ctx).
		Str("component", "archive").
		Str("report_id", entry.ID).
		Msg("report archived")
	return nil
}

// Get returns the archived report with the given id.
func (s *Store) Get(id string) (*report.Report, error) {
	entry, err := s.entry(id)
	if err != nil {
		return nil, err
	}
	r, err := entry.Decode()
	if err != nil {
		return nil, fmt.Errorf("failed to decode archived report %s: %w", id, err)
	}
	return r, nil
}

func (s *Store) entry(id string) (*Entry, error) {
	if !s.enabled {
		return nil, ErrDisabled
	}
	path, err := s.path(id)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to read archive file: %w", err)
	}
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal archive entry: %w", err)
	}
	if entry.Expired(s.now()) {
		return nil, fmt.Errorf("%w: %s", ErrExpired, id)
	}
	return &entry, nil
}

// List returns summaries of unexpired reports, newest first. Unreadable
// files are skipped.
func (s *Store) List() ([]Summary, error) {
	if !s.enabled {
		return nil, ErrDisabled
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	dirEntries, err := os.ReadDir(s.directory)
	if err != nil {
		return nil, fmt.Errorf("failed to read archive directory: %w", err)
	}

	now := s.now()
	out := []Summary{}
	for _, de := range dirEntries {
		if de.IsDir() || filepath.Ext(de.Name()) != fileExtension {
			continue
		}
		data, readErr := os.ReadFile(filepath.Join(s.directory, de.Name()))
		if readErr != nil {
			continue
		}
		var entry Entry
		if json.Unmarshal(data, &entry) != nil || entry.Expired(now) {
			continue
		}
		sum := Summary{ID: entry.ID, Kind: entry.Kind, CreatedAt: entry.CreatedAt, ExpiresAt: entry.ExpiresAt}
		if r, decodeErr := entry.Decode(); decodeErr == nil {
			sum.ModelUsed = r.Metadata.ModelUsed
			sum.ParseFailed = r.ParseFailed
		}
		out = append(out, sum)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Delete removes a report. Deleting a missing report is not an error.
func (s *Store) Delete(id string) error {
	if !s.enabled {
		return ErrDisabled
	}
	path, err := s.path(id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete archive file: %w", err)
	}
	return nil
}

// CleanupExpired removes expired reports and returns how many were removed.
func (s *Store) CleanupExpired() (int, error) {
	if !s.enabled {
		return 0, ErrDisabled
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dirEntries, err := os.ReadDir(s.directory)
	if err != nil {
		return 0, fmt.Errorf("failed to read archive directory: %w", err)
	}

	now := s.now()
	removed := 0
	for _, de := range dirEntries {
		if de.IsDir() || filepath.Ext(de.Name()) != fileExtension {
			continue
		}
		path := filepath.Join(s.directory, de.Name())
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			continue
		}
		var entry Entry
		if json.Unmarshal(data, &entry) != nil {
			continue
		}
		if entry.Expired(now) && os.Remove(path) == nil {
			removed++
		}
	}
	return removed, nil
}

// Enabled reports whether the store accepts reports.
func (s *Store) Enabled() bool {
	return s.enabled
}

// Directory returns the archive directory.
func (s *Store) Directory() string {
	return s.directory
}

// path maps an id to its file. IDs may not contain path separators.
func (s *Store) path(id string) (string, error) {
	if id == "" || strings.ContainsAny(id, `/\:`) || id == "." || id == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return filepath.Join(s.directory, id+fileExtension), nil
}
