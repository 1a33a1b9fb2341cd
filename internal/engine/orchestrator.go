package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/rshade/greenreport/internal/carbon"
	"github.com/rshade/greenreport/internal/greenops"
	"github.com/rshade/greenreport/internal/llm"
	"github.com/rshade/greenreport/internal/logging"
	"github.com/rshade/greenreport/internal/report"
	"github.com/rshade/greenreport/internal/summary"
)

// Generation parameters.
const (
	DefaultMonths = 3

	FullMaxTokens      = 4000
	FullTemperature    = 0.3
	SummaryMaxTokens   = 300
	SummaryTemperature = 0.2

	TestModeModel = "test-mode"
	testModeText  = "TEST MODE: ESG report generation successful. " +
		"Database queries completed without errors. Model integration ready."
)

// Request describes one report generation.
type Request struct {
	Months     int    `json:"months"`
	ReportType string `json:"report_type"`
	TestMode   bool   `json:"test_mode"`
	// Factor is a registered factor name or a numeric kgCO2/kWh value.
	// Empty selects the orchestrator default.
	Factor string `json:"factor,omitempty"`
}

// Orchestrator runs report generation. It holds no per-request state and
// is safe for concurrent use.
type Orchestrator struct {
	source   DataSource
	readings ReadingSource
	model    llm.Client
	store    ReportStore
	recorder Recorder
	parser   *report.Parser

	table   *carbon.FactorTable
	factor  carbon.EmissionFactor
	voltage float64

	now   func() time.Time
	newID func() string
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithModel sets the hosted model client. Without one only test-mode
// reports can be generated.
func WithModel(c llm.Client) Option { return func(o *Orchestrator) { o.model = c } }

// WithReadingSource enables raw reading queries.
func WithReadingSource(r ReadingSource) Option { return func(o *Orchestrator) { o.readings = r } }

// WithReportStore archives every generated report.
func WithReportStore(s ReportStore) Option { return func(o *Orchestrator) { o.store = s } }

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option { return func(o *Orchestrator) { o.recorder = r } }

// WithFactor sets the default emission factor.
func WithFactor(f carbon.EmissionFactor) Option { return func(o *Orchestrator) { o.factor = f } }

// WithVoltage sets the supply voltage used for power conversion.
func WithVoltage(v float64) Option {
	return func(o *Orchestrator) {
		if v > 0 {
			o.voltage = v
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(o *Orchestrator) { o.now = now } }

// WithIDGenerator replaces the report ID generator.
func WithIDGenerator(f func() string) Option { return func(o *Orchestrator) { o.newID = f } }

// New creates an Orchestrator reading from source and resolving factors in
// table. The default factor is carbon.DefaultFactorName unless WithFactor is
// given.
func New(source DataSource, table *carbon.FactorTable, opts ...Option) (*Orchestrator, error) {
	if source == nil {
		return nil, errors.New("engine: data source is required")
	}
	if table == nil {
		table = carbon.DefaultFactorTable()
	}
	factor, err := table.Lookup(carbon.DefaultFactorName)
	if err != nil {
		return nil, err
	}

	o := &Orchestrator{
		source:   source,
		recorder: nopRecorder{},
		parser:   report.NewParser(),
		table:    table,
		factor:   factor,
		voltage:  carbon.DefaultVoltage,
		now:      time.Now,
		newID:    func() string { return ulid.Make().String() },
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// engineFor resolves choice against the table, falling back to the default
// factor when choice is empty.
func (o *Orchestrator) engineFor(choice string) (*carbon.Engine, error) {
	if choice == "" {
		return carbon.NewEngineWithFactor(o.table, o.factor, carbon.WithVoltage(o.voltage)), nil
	}
	f, err := carbon.ResolveFactor(o.table, choice)
	if err != nil {
		return nil, err
	}
	return carbon.NewEngineWithFactor(o.table, f, carbon.WithVoltage(o.voltage)), nil
}

// dataset is the carbon-annotated input of one generation.
type dataset struct {
	months  int
	daily   []carbon.DailyAggregate
	monthly []carbon.MonthlyAggregate
	days    []carbon.DailyEmission
	monthsE []carbon.MonthlyEmission
	summary summary.ReportSummary
}

// Generate produces a report. It returns ErrNoData when the window has no
// daily records, carbon.ErrUnknownFactor or report.ErrInvalidReportType for
// bad requests, carbon.ErrMissingField for malformed rows and
// ErrGenerationFailed for every other failure. No report is returned with
// an error.
func (o *Orchestrator) Generate(ctx context.Context, req Request) (rep *report.Report, err error) {
	start := o.now()
	log := logging.FromContext(ctx)

	kind, err := report.ParseKind(req.ReportType)
	if err != nil {
		return nil, err
	}
	if req.TestMode {
		kind = report.KindTest
	}
	if req.Months <= 0 {
		req.Months = DefaultMonths
	}

	defer func() {
		if r := recover(); r != nil {
			rep, err = nil, fmt.Errorf("%w: panic: %v", ErrGenerationFailed, r)
		}
		outcome := OutcomeSuccess
		switch {
		case errors.Is(err, ErrNoData):
			outcome = OutcomeNoData
		case err != nil:
			outcome = OutcomeFailure
		}
		o.recorder.ObserveGeneration(kind, outcome, o.now().Sub(start))
	}()

	log.Info().Ctx(ctx).
		Str("component", "engine").
		Str("operation", "generate_report").
		Int("months", req.Months).
		Str("report_type", string(kind)).
		Msg("starting report generation")

	eng, err := o.engineFor(req.Factor)
	if err != nil {
		return nil, err
	}
	data, err := o.load(ctx, eng, req.Months)
	if err != nil {
		return nil, err
	}

	switch kind {
	case report.KindTest:
		rep = o.testReport(ctx, eng, data)
	case report.KindSummary:
		rep, err = o.summaryReport(ctx, data)
	default:
		rep, err = o.fullReport(ctx, eng, data)
	}
	if err != nil {
		log.Error().Ctx(ctx).Str("component", "engine").Err(err).Msg("report generation failed")
		return nil, err
	}

	o.archive(ctx, rep)
	log.Info().Ctx(ctx).
		Str("component", "engine").
		Str("report_id", rep.Metadata.ReportID).
		Bool("parse_failed", rep.ParseFailed).
		Dur("duration", o.now().Sub(start)).
		Msg("report generated")
	return rep, nil
}

func (o *Orchestrator) load(ctx context.Context, eng *carbon.Engine, months int) (*dataset, error) {
	daily, err := o.source.DailySummaries(ctx, months)
	if err != nil {
		return nil, fmt.Errorf("%w: loading daily summaries: %w", ErrGenerationFailed, err)
	}
	if len(daily) == 0 {
		return nil, fmt.Errorf("%w: no daily records in the last %d months", ErrNoData, months)
	}
	monthly, err := o.source.MonthlySummaries(ctx, months)
	if err != nil {
		return nil, fmt.Errorf("%w: loading monthly summaries: %w", ErrGenerationFailed, err)
	}

	days, err := eng.ApplyDaily(ctx, daily)
	if err != nil {
		return nil, err
	}
	monthsE, err := eng.ApplyMonthly(ctx, monthly)
	if err != nil {
		return nil, err
	}

	return &dataset{
		months:  months,
		daily:   daily,
		monthly: monthly,
		days:    days,
		monthsE: monthsE,
		summary: summary.Summarize(days, monthsE, eng.Factor()),
	}, nil
}

func (o *Orchestrator) baseMetadata(ctx context.Context, kind report.Kind, data *dataset) report.Metadata {
	period := data.summary.AnalysisPeriod
	return report.Metadata{
		ReportID:       o.newID(),
		TraceID:        logging.TraceIDFromContext(ctx),
		GeneratedAt:    o.now(),
		ReportType:     kind,
		MonthsAnalyzed: data.months,
		DataPoints:     len(data.daily),
		AnalysisPeriod: &period,
		DataPeriod: &report.DataPeriod{
			Months:         data.months,
			DailyRecords:   len(data.daily),
			MonthlyRecords: len(data.monthly),
		},
	}
}

// testReport builds a canned report from the numeric data without any
// model call.
func (o *Orchestrator) testReport(ctx context.Context, eng *carbon.Engine, data *dataset) *report.Report {
	meta := o.baseMetadata(ctx, report.KindTest, data)
	meta.ModelUsed = TestModeModel
	meta.Usage = &report.Usage{}
	s := data.summary
	meta.DataSummary = &s

	carbonData := summary.DailyCarbon(data.days)
	return &report.Report{
		Metadata:   meta,
		RawContent: testModeText,
		Metrics:    report.TextMetrics(testModeText),
		InputData: &report.InputData{
			DailySummary:   data.daily,
			MonthlySummary: nonNil(data.monthly),
			CarbonData:     carbonData,
		},
		CarbonTrends: summary.AnalyzeCarbon(carbonData, "daily", eng.Factor()),
		Equivalency:  greenops.ForReport(ctx, s.CarbonEmissions.TotalKgCO2),
	}
}

func (o *Orchestrator) summaryReport(ctx context.Context, data *dataset) (*report.Report, error) {
	if o.model == nil {
		return nil, fmt.Errorf("%w: %w: model client", ErrGenerationFailed, ErrUnavailable)
	}
	prompt, err := report.BuildSummaryPrompt(data.summary)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}
	resp, err := o.complete(ctx, llm.Request{
		Prompt:      prompt,
		MaxTokens:   SummaryMaxTokens,
		Temperature: llm.Temperature(SummaryTemperature),
	})
	if err != nil {
		return nil, err
	}

	meta := o.baseMetadata(ctx, report.KindSummary, data)
	meta.ModelUsed = resp.Model
	meta.Usage = &report.Usage{InputTokens: resp.Usage.InputTokens, OutputTokens: resp.Usage.OutputTokens}
	s := data.summary
	meta.DataSummary = &s

	return &report.Report{
		Metadata:   meta,
		Summary:    resp.Text,
		RawContent: resp.Text,
		Metrics:    report.TextMetrics(resp.Text),
	}, nil
}

// fullReport calls the model while trend statistics are computed
// concurrently, then parses and enriches the reply.
func (o *Orchestrator) fullReport(ctx context.Context, eng *carbon.Engine, data *dataset) (*report.Report, error) {
	if o.model == nil {
		return nil, fmt.Errorf("%w: %w: model client", ErrGenerationFailed, ErrUnavailable)
	}
	prompt, err := report.BuildPrompt(data.summary)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}

	var (
		resp           *llm.Response
		daily, monthly *summary.CarbonTrends
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var callErr error
		resp, callErr = o.complete(gctx, llm.Request{
			System:      report.SystemPrompt,
			Prompt:      prompt,
			MaxTokens:   FullMaxTokens,
			Temperature: llm.Temperature(FullTemperature),
		})
		return callErr
	})
	g.Go(func() error {
		daily = summary.AnalyzeCarbon(summary.DailyCarbon(data.days), "daily", eng.Factor())
		monthly = summary.AnalyzeCarbon(summary.MonthlyCarbon(data.monthsE), "monthly", eng.Factor())
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	meta := o.baseMetadata(ctx, report.KindFull, data)
	meta.ModelUsed = resp.Model
	meta.Usage = &report.Usage{InputTokens: resp.Usage.InputTokens, OutputTokens: resp.Usage.OutputTokens}

	rep := o.parser.Parse(ctx, resp.Text, meta)
	if rep.ParseFailed {
		o.recorder.ParseFailed()
		return rep, nil
	}

	s := data.summary
	rep.Metadata.DataSummary = &s
	rep.CarbonTrends = daily
	rep.MonthlyCarbonTrends = monthly
	rep.Equivalency = greenops.ForReport(ctx, s.CarbonEmissions.TotalKgCO2)
	return rep, nil
}

func (o *Orchestrator) complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	start := o.now()
	resp, err := o.model.Complete(ctx, req)
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}
	o.recorder.ObserveModelCall(o.model.Model(), outcome, o.now().Sub(start))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}
	return resp, nil
}

func (o *Orchestrator) archive(ctx context.Context, rep *report.Report) {
	if o.store == nil {
		return
	}
	if err := o.store.Put(ctx, rep); err != nil {
		logging.FromContext(ctx).Warn().Ctx(ctx).
			Str("component", "engine").
			Str("report_id", rep.Metadata.ReportID).
			Err(err).
			Msg("failed to archive report")
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
