// Package engine sequences carbon calculation, summarization, prompting and
// reply parsing into report generation, and answers the data, factor and
// component queries served by the CLI and HTTP API.
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/rshade/greenreport/internal/carbon"
	"github.com/rshade/greenreport/internal/report"
)

// Errors surfaced by the Orchestrator.
var (
	// ErrNoData indicates there are no daily records in the requested window.
	ErrNoData = errors.New("no data available for the requested period")

	// ErrGenerationFailed wraps any failure of the model call or of the
	// pipeline around it.
	ErrGenerationFailed = errors.New("report generation failed")

	// ErrUnavailable indicates an optional collaborator is not configured.
	ErrUnavailable = errors.New("component not configured")
)

// DataSource provides the aggregated sensor data reports are built from.
type DataSource interface {
	DailySummaries(ctx context.Context, months int) ([]carbon.DailyAggregate, error)
	MonthlySummaries(ctx context.Context, months int) ([]carbon.MonthlyAggregate, error)
	DeviceStatistics(ctx context.Context, months int) ([]carbon.DeviceStats, error)
	Ping(ctx context.Context) error
}

// ReadingQuery selects raw readings.
type ReadingQuery struct {
	DeviceID string    `json:"device_id,omitempty"`
	Start    time.Time `json:"start"`
	Stop     time.Time `json:"stop"`
	Limit    int       `json:"limit,omitempty"`
	// Newest keeps the last Limit readings of the range instead of the
	// first. Results are still oldest first.
	Newest bool `json:"newest,omitempty"`
}

// ReadingSource provides raw time-series readings.
type ReadingSource interface {
	Readings(ctx context.Context, q ReadingQuery) ([]carbon.Reading, error)
}

// ReportStore keeps generated reports.
type ReportStore interface {
	Put(ctx context.Context, r *report.Report) error
}

// Recorder receives pipeline measurements.
type Recorder interface {
	ObserveGeneration(kind report.Kind, outcome string, d time.Duration)
	ObserveModelCall(model, outcome string, d time.Duration)
	ParseFailed()
}

// Outcomes passed to Recorder.
const (
	OutcomeSuccess = "success"
	OutcomeNoData  = "no_data"
	OutcomeFailure = "failure"
)

type nopRecorder struct{}

func (nopRecorder) ObserveGeneration(report.Kind, string, time.Duration) {}
func (nopRecorder) ObserveModelCall(string, string, time.Duration)       {}
func (nopRecorder) ParseFailed()                                         {}
