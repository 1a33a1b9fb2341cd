// Package report builds model prompts from numeric summaries and turns the
// model's free-text reply into a structured Report.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/rshade/greenreport/internal/carbon"
	"github.com/rshade/greenreport/internal/greenops"
	"github.com/rshade/greenreport/internal/summary"
)

// constError is an immutable error type for sentinel errors.
type constError string

func (e constError) Error() string { return string(e) }

var (
	// ErrParseFailure describes why a reply could not be structured. It is
	// only ever recorded in Metadata.ParsingError, never returned.
	ErrParseFailure = constError("report parse failure")

	// ErrInvalidReportType indicates a report type other than full or summary.
	ErrInvalidReportType = constError("invalid report type")
)

// Kind selects the report generation mode.
type Kind string

// Report kinds. KindTest marks canned reports produced without a model call.
const (
	KindFull    Kind = "full"
	KindSummary Kind = "summary"
	KindTest    Kind = "test"
)

// ParseKind maps a user supplied report type to a Kind. An empty string and
// "comprehensive" select KindFull.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "full", "comprehensive":
		return KindFull, nil
	case "summary":
		return KindSummary, nil
	default:
		return "", fmt.Errorf("%w: %q (want full or summary)", ErrInvalidReportType, s)
	}
}

// Section keys of a full report, in heading order.
const (
	SectionExecutiveSummary      = "executive_summary"
	SectionEnvironmentalImpact   = "environmental_impact"
	SectionSustainabilityMetrics = "sustainability_metrics"
	SectionRecommendations       = "recommendations"
	SectionDataTables            = "data_tables"
	SectionRiskAssessment        = "risk_assessment"
)

// Section is one fixed heading of the report schema.
type Section struct {
	Number  int
	Heading string
	Key     string
}

// Token returns the heading as it appears in prompt and reply, e.g.
// "### 1. EXECUTIVE_SUMMARY".
func (s Section) Token() string {
	return fmt.Sprintf("### %d. %s", s.Number, s.Heading)
}

// Sections returns the six report sections in order.
func Sections() []Section {
	return []Section{
		{1, "EXECUTIVE_SUMMARY", SectionExecutiveSummary},
		{2, "ENVIRONMENTAL_IMPACT_ANALYSIS", SectionEnvironmentalImpact},
		{3, "SUSTAINABILITY_METRICS", SectionSustainabilityMetrics},
		{4, "ACTIONABLE_RECOMMENDATIONS", SectionRecommendations},
		{5, "DATA_TABLES", SectionDataTables},
		{6, "RISK_ASSESSMENT", SectionRiskAssessment},
	}
}

// Usage is the token accounting of a model call.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// DataPeriod describes the records a report was generated from.
type DataPeriod struct {
	Months         int `json:"months"`
	DailyRecords   int `json:"daily_records"`
	MonthlyRecords int `json:"monthly_records"`
}

// Metadata describes how and from what a report was produced.
type Metadata struct {
	ReportID       string                  `json:"report_id,omitempty"`
	TraceID        string                  `json:"trace_id,omitempty"`
	GeneratedAt    time.Time               `json:"generated_at"`
	ModelUsed      string                  `json:"model_used"`
	ReportType     Kind                    `json:"report_type,omitempty"`
	MonthsAnalyzed int                     `json:"months_analyzed,omitempty"`
	DataPoints     int                     `json:"data_points,omitempty"`
	AnalysisPeriod *summary.AnalysisPeriod `json:"analysis_period,omitempty"`
	DataSummary    *summary.ReportSummary  `json:"data_summary,omitempty"`
	DataPeriod     *DataPeriod             `json:"data_period,omitempty"`
	Usage          *Usage                  `json:"usage,omitempty"`
	ParsingError   string                  `json:"parsing_error,omitempty"`
}

// Metrics are size figures of a report reply.
type Metrics struct {
	TotalSections           int     `json:"total_sections"`
	WordCount               int     `json:"word_count"`
	RecommendationsCount    int     `json:"recommendations_count"`
	CharacterCount          int     `json:"character_count"`
	EstimatedReadingMinutes float64 `json:"estimated_reading_time_minutes"`
}

// InputData echoes the records a test-mode report was built from.
type InputData struct {
	DailySummary   []carbon.DailyAggregate   `json:"daily_summary"`
	MonthlySummary []carbon.MonthlyAggregate `json:"monthly_summary"`
	CarbonData     []carbon.CarbonRecord     `json:"carbon_data"`
}

// Report is a generated report. Full reports carry sections, tables and
// recommendations; summary reports carry Summary; a reply that could not be
// structured has ParseFailed set and only Metadata and RawContent filled.
type Report struct {
	Metadata            Metadata                    `json:"metadata"`
	Sections            map[string]string           `json:"report_sections,omitempty"`
	DataTables          map[string]map[string]any   `json:"data_tables,omitempty"`
	Recommendations     []string                    `json:"recommendations,omitempty"`
	Metrics             *Metrics                    `json:"report_metrics,omitempty"`
	RawContent          string                      `json:"raw_content"`
	Summary             string                      `json:"summary,omitempty"`
	InputData           *InputData                  `json:"input_data,omitempty"`
	CarbonTrends        *summary.CarbonTrends       `json:"carbon_trends,omitempty"`
	MonthlyCarbonTrends *summary.CarbonTrends       `json:"monthly_carbon_trends,omitempty"`
	Equivalency         *greenops.EquivalencyOutput `json:"equivalency,omitempty"`
	ParseFailed         bool                        `json:"error,omitempty"`
}

// Section returns the text of the section with the given key.
func (r *Report) Section(key string) string {
	if r == nil || r.Sections == nil {
		return ""
	}
	return r.Sections[key]
}
