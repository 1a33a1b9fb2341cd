package report

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/rshade/greenreport/internal/logging"
)

// State is a step of the reply parsing state machine.
type State int

// Parsing states. StateStructured and StateParseFailed are terminal.
const (
	StateRawText State = iota
	StateSectionSplit
	StateTableExtract
	StateRecommendationExtract
	StateStructured
	StateParseFailed
)

func (s State) String() string {
	switch s {
	case StateRawText:
		return "RAW_TEXT"
	case StateSectionSplit:
		return "SECTION_SPLIT"
	case StateTableExtract:
		return "TABLE_EXTRACT"
	case StateRecommendationExtract:
		return "RECOMMENDATION_EXTRACT"
	case StateStructured:
		return "STRUCTURED"
	case StateParseFailed:
		return "PARSE_FAILED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Terminal reports whether s ends parsing.
func (s State) Terminal() bool {
	return s == StateStructured || s == StateParseFailed
}

const wordsPerMinute = 200.0

// Parser structures full report replies. The zero value is ready to use.
type Parser struct {
	// OnTransition, when set, is called for every state change.
	OnTransition func(from, to State)
}

// NewParser returns a Parser.
func NewParser() *Parser {
	return &Parser{}
}

type parseRun struct {
	ctx    context.Context
	text   string
	state  State
	err    error
	report *Report
}

// Parse turns a model reply into a Report carrying meta. It never fails:
// any problem yields a Report with ParseFailed set, meta.ParsingError filled
// and the raw text preserved.
func (p *Parser) Parse(ctx context.Context, text string, meta Metadata) (rep *Report) {
	log := logging.FromContext(ctx)
	run := &parseRun{
		ctx:   ctx,
		text:  text,
		state: StateRawText,
		report: &Report{
			Metadata:   meta,
			RawContent: text,
		},
	}

	defer func() {
		if r := recover(); r != nil {
			run.err = fmt.Errorf("%w: panic in %s: %v", ErrParseFailure, run.state, r)
			rep = p.failed(ctx, run)
		}
	}()

	for !run.state.Terminal() {
		from := run.state
		p.step(run)
		if p.OnTransition != nil {
			p.OnTransition(from, run.state)
		}
	}

	if run.state == StateParseFailed {
		return p.failed(ctx, run)
	}

	log.Info().Ctx(ctx).
		Str("component", "report").
		Int("sections", run.report.Metrics.TotalSections).
		Int("tables", len(run.report.DataTables)).
		Int("recommendations", len(run.report.Recommendations)).
		Msg("report reply parsed")
	return run.report
}

func (p *Parser) step(run *parseRun) {
	switch run.state {
	case StateRawText:
		if !utf8.ValidString(run.text) {
			run.fail(fmt.Errorf("%w: reply is not valid UTF-8", ErrParseFailure))
			return
		}
		run.state = StateSectionSplit

	case StateSectionSplit:
		sections, missing := splitSections(run.text, Sections())
		for _, key := range missing {
			logging.FromContext(run.ctx).Warn().Ctx(run.ctx).
				Str("component", "report").
				Str("section", key).
				Msg("section not found in report")
		}
		run.report.Sections = sections
		run.state = StateTableExtract

	case StateTableExtract:
		run.report.DataTables = decodeTables(run.ctx, run.report.Sections[SectionDataTables])
		run.state = StateRecommendationExtract

	case StateRecommendationExtract:
		run.report.Recommendations = extractRecommendations(run.report.Sections[SectionRecommendations])
		run.report.Metrics = computeMetrics(run.text, run.report)
		run.state = StateStructured

	default:
		run.fail(fmt.Errorf("%w: unexpected state %s", ErrParseFailure, run.state))
	}
}

func (run *parseRun) fail(err error) {
	run.err = err
	run.state = StateParseFailed
}

func (p *Parser) failed(ctx context.Context, run *parseRun) *Report {
	logging.FromContext(ctx).Error().Ctx(ctx).
		Str("component", "report").
		Err(run.err).
		Msg("error parsing report reply")

	meta := run.report.Metadata
	meta.ParsingError = run.err.Error()
	return &Report{
		Metadata:    meta,
		RawContent:  run.text,
		ParseFailed: true,
	}
}

// decodeTables keeps every object literal of text that decodes as JSON,
// keyed table_1, table_2, ... in order of appearance.
func decodeTables(ctx context.Context, text string) map[string]map[string]any {
	tables := make(map[string]map[string]any)
	for _, candidate := range scanObjects(text) {
		var table map[string]any
		if err := json.Unmarshal([]byte(candidate), &table); err != nil {
			logging.FromContext(ctx).Warn().Ctx(ctx).
				Str("component", "report").
				Err(err).
				Str("candidate", truncate(candidate, 100)).
				Msg("failed to parse JSON table")
			continue
		}
		tables[fmt.Sprintf("table_%d", len(tables)+1)] = table
	}
	return tables
}

func computeMetrics(text string, r *Report) *Metrics {
	m := &Metrics{
		WordCount:            len(strings.Fields(text)),
		CharacterCount:       utf8.RuneCountInString(text),
		RecommendationsCount: len(r.Recommendations),
	}
	for _, content := range r.Sections {
		if content != "" {
			m.TotalSections++
		}
	}
	m.EstimatedReadingMinutes = ReadingMinutes(m.WordCount)
	return m
}

// ReadingMinutes estimates the reading time of words, rounded to a tenth of
// a minute.
func ReadingMinutes(words int) float64 {
	return math.Round(float64(words)/wordsPerMinute*10) / 10
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}

// TextMetrics computes the size figures of an unstructured text.
func TextMetrics(text string) *Metrics {
	words := len(strings.Fields(text))
	return &Metrics{
		WordCount:               words,
		CharacterCount:          utf8.RuneCountInString(text),
		EstimatedReadingMinutes: ReadingMinutes(words),
	}
}
