package engine

import (
	"context"
	"fmt"

	"github.com/rshade/greenreport/internal/carbon"
	"github.com/rshade/greenreport/internal/logging"
	"github.com/rshade/greenreport/internal/summary"
)

// DataSummary describes the data available in the last months. An empty
// window is not an error.
func (o *Orchestrator) DataSummary(ctx context.Context, months int, factor string) (*summary.DataSummary, error) {
	if months <= 0 {
		months = DefaultMonths
	}
	eng, err := o.engineFor(factor)
	if err != nil {
		return nil, err
	}

	daily, err := o.source.DailySummaries(ctx, months)
	if err != nil {
		return nil, fmt.Errorf("loading daily summaries: %w", err)
	}
	monthly, err := o.source.MonthlySummaries(ctx, months)
	if err != nil {
		return nil, fmt.Errorf("loading monthly summaries: %w", err)
	}
	devices, err := o.source.DeviceStatistics(ctx, months)
	if err != nil {
		return nil, fmt.Errorf("loading device statistics: %w", err)
	}

	days, err := eng.ApplyDaily(ctx, daily)
	if err != nil {
		return nil, err
	}
	ds := summary.BuildDataSummary(days, len(monthly), devices, eng.Factor(), o.now())
	return &ds, nil
}

// Factors returns the factor listing for factor, or for the default factor
// when factor is empty.
func (o *Orchestrator) Factors(factor string) (carbon.FactorInfo, error) {
	eng, err := o.engineFor(factor)
	if err != nil {
		return carbon.FactorInfo{}, err
	}
	return eng.FactorInfo(), nil
}

// Readings computes per-reading carbon for a raw time series.
func (o *Orchestrator) Readings(ctx context.Context, q ReadingQuery, factor string) ([]carbon.ReadingEmission, error) {
	if o.readings == nil {
		return nil, fmt.Errorf("%w: reading source", ErrUnavailable)
	}
	eng, err := o.engineFor(factor)
	if err != nil {
		return nil, err
	}
	readings, err := o.readings.Readings(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("loading readings: %w", err)
	}
	if len(readings) == 0 {
		return nil, fmt.Errorf("%w: no readings for device %q", ErrNoData, q.DeviceID)
	}
	return eng.ApplyReadings(ctx, readings)
}

// Component statuses reported by CheckComponents.
const (
	StatusConnected     = "connected"
	StatusDisconnected  = "disconnected"
	StatusInitialized   = "initialized"
	StatusNotConfigured = "not_configured"

	OverallOperational = "all_systems_operational"
	OverallIssues      = "some_issues_detected"
)

// StoreCheck is the result of probing the data source.
type StoreCheck struct {
	Status        string `json:"status"`
	TestQuery     bool   `json:"test_query"`
	SampleRecords int    `json:"sample_records"`
	QueryError    string `json:"query_error,omitempty"`
}

// ModelCheck is the result of probing the model client.
type ModelCheck struct {
	Status string `json:"status"`
	Model  string `json:"model,omitempty"`
	Error  string `json:"error,omitempty"`
}

// CarbonCheck reports the carbon engine configuration.
type CarbonCheck struct {
	Status     string            `json:"status"`
	FactorInfo carbon.FactorInfo `json:"factor_info"`
}

// ComponentReport is the outcome of CheckComponents.
type ComponentReport struct {
	Database      StoreCheck  `json:"database"`
	Model         ModelCheck  `json:"model"`
	Carbon        CarbonCheck `json:"carbon_calculator"`
	OverallStatus string      `json:"overall_status"`
}

// Healthy reports whether every component is operational.
func (r ComponentReport) Healthy() bool {
	return r.OverallStatus == OverallOperational
}

// CheckComponents checks the data source with a ping and a one-month query,
// pings the model and reports the carbon factor in use. Check failures are
// reported in the result, never returned.
func (o *Orchestrator) CheckComponents(ctx context.Context) ComponentReport {
	log := logging.FromContext(ctx)
	var r ComponentReport

	r.Database.Status = StatusConnected
	if err := o.source.Ping(ctx); err != nil {
		r.Database.Status = StatusDisconnected
		log.Warn().Ctx(ctx).Str("component", "engine").Err(err).Msg("data source ping failed")
	}
	if days, err := o.source.DailySummaries(ctx, 1); err != nil {
		r.Database.QueryError = err.Error()
	} else {
		r.Database.TestQuery = true
		r.Database.SampleRecords = len(days)
	}

	switch {
	case o.model == nil:
		r.Model.Status = StatusNotConfigured
	default:
		r.Model.Model = o.model.Model()
		r.Model.Status = StatusConnected
		if err := o.model.Ping(ctx); err != nil {
			r.Model.Status = StatusDisconnected
			r.Model.Error = err.Error()
			log.Warn().Ctx(ctx).Str("component", "engine").Err(err).Msg("model ping failed")
		}
	}

	eng := carbon.NewEngineWithFactor(o.table, o.factor, carbon.WithVoltage(o.voltage))
	r.Carbon = CarbonCheck{Status: StatusInitialized, FactorInfo: eng.FactorInfo()}

	r.OverallStatus = OverallIssues
	if r.Database.Status == StatusConnected && r.Model.Status == StatusConnected {
		r.OverallStatus = OverallOperational
	}
	return r
}

// Ping checks the data source only. It backs the liveness endpoint.
func (o *Orchestrator) Ping(ctx context.Context) error {
	return o.source.Ping(ctx)
}

// ModelConfigured reports whether a model client is set.
func (o *Orchestrator) ModelConfigured() bool {
	return o.model != nil
}

// ReadingsConfigured reports whether a reading source is set.
func (o *Orchestrator) ReadingsConfigured() bool {
	return o.readings != nil
}
