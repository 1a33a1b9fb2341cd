package report

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fullReply = `Here is your report.

### 1. EXECUTIVE_SUMMARY
Energy use stayed low across the period.

### 2. ENVIRONMENTAL_IMPACT_ANALYSIS
Consumption peaked on warm afternoons.

### 3. SUSTAINABILITY_METRICS
Carbon intensity: 0.478 kgCO2/kWh.

### 4. ACTIONABLE_RECOMMENDATIONS
- Schedule sensor sleep between midnight and 6am
- Ok
* Replace the oldest gateway power supply
• Review brightness thresholds for the lobby sensors

### 5. DATA_TABLES
Energy summary:
{"month": "2024-01", "energy_kwh": 12.3}
Broken table: {"month": "2024-02", energy}
Correlation: {"temperature": 0.62, "humidity": -0.1}

### 6. RISK_ASSESSMENT
Grid supply interruptions during summer peaks.`

func TestParse_AllSections(t *testing.T) {
	meta := Metadata{ModelUsed: "test-model", GeneratedAt: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)}

	var transitions []string
	p := &Parser{OnTransition: func(from, to State) {
		transitions = append(transitions, from.String()+">"+to.String())
	}}
	r := p.Parse(context.Background(), fullReply, meta)

	require.False(t, r.ParseFailed)
	assert.Equal(t, []string{
		"RAW_TEXT>SECTION_SPLIT",
		"SECTION_SPLIT>TABLE_EXTRACT",
		"TABLE_EXTRACT>RECOMMENDATION_EXTRACT",
		"RECOMMENDATION_EXTRACT>STRUCTURED",
	}, transitions)

	assert.Equal(t, "Energy use stayed low across the period.", r.Section(SectionExecutiveSummary))
	assert.Equal(t, "Consumption peaked on warm afternoons.", r.Section(SectionEnvironmentalImpact))
	assert.Equal(t, "Carbon intensity: 0.478 kgCO2/kWh.", r.Section(SectionSustainabilityMetrics))
	assert.Equal(t, "Grid supply interruptions during summer peaks.", r.Section(SectionRiskAssessment))
	assert.Len(t, r.Sections, 6)

	require.Len(t, r.DataTables, 2)
	assert.Equal(t, "2024-01", r.DataTables["table_1"]["month"])
	assert.InDelta(t, 0.62, r.DataTables["table_2"]["temperature"], 1e-12)

	assert.Equal(t, []string{
		"Schedule sensor sleep between midnight and 6am",
		"Replace the oldest gateway power supply",
		"Review brightness thresholds for the lobby sensors",
	}, r.Recommendations)

	require.NotNil(t, r.Metrics)
	assert.Equal(t, 6, r.Metrics.TotalSections)
	assert.Equal(t, 3, r.Metrics.RecommendationsCount)
	assert.Equal(t, len(strings.Fields(fullReply)), r.Metrics.WordCount)
	assert.Equal(t, fullReply, r.RawContent)
	assert.Equal(t, "test-model", r.Metadata.ModelUsed)
}

func TestParse_MissingSections(t *testing.T) {
	reply := "### 1. EXECUTIVE_SUMMARY\nShort summary.\n### 4. ACTIONABLE_RECOMMENDATIONS\n1. Turn off idle devices overnight\n2. Audit"

	r := NewParser().Parse(context.Background(), reply, Metadata{})
	require.False(t, r.ParseFailed)

	assert.Equal(t, "Short summary.", r.Section(SectionExecutiveSummary))
	assert.Equal(t, "1. Turn off idle devices overnight\n2. Audit", r.Section(SectionRecommendations))
	for _, key := range []string{SectionEnvironmentalImpact, SectionSustainabilityMetrics, SectionDataTables, SectionRiskAssessment} {
		v, ok := r.Sections[key]
		assert.True(t, ok, key)
		assert.Empty(t, v, key)
	}
	assert.Equal(t, 2, r.Metrics.TotalSections)
	assert.Equal(t, []string{"Turn off idle devices overnight"}, r.Recommendations)
	assert.Empty(t, r.DataTables)
}

func TestParse_PresentSubsets(t *testing.T) {
	all := Sections()
	for n := 0; n <= len(all); n++ {
		t.Run(fmt.Sprintf("%d headings", n), func(t *testing.T) {
			var b strings.Builder
			for _, sec := range all[:n] {
				fmt.Fprintf(&b, "%s\ncontent of %s\n\n", sec.Token(), sec.Key)
			}
			r := NewParser().Parse(context.Background(), b.String(), Metadata{})
			require.False(t, r.ParseFailed)
			for i, sec := range all {
				if i < n {
					assert.Equal(t, "content of "+sec.Key, r.Section(sec.Key))
				} else {
					assert.Empty(t, r.Section(sec.Key))
				}
			}
			assert.Equal(t, n, r.Metrics.TotalSections)
		})
	}
}

func TestParse_CaseInsensitiveHeadings(t *testing.T) {
	reply := "### 1. executive_summary\nlower case heading\n### 6. Risk_Assessment\nmixed"
	r := NewParser().Parse(context.Background(), reply, Metadata{})
	assert.Equal(t, "lower case heading", r.Section(SectionExecutiveSummary))
	assert.Equal(t, "mixed", r.Section(SectionRiskAssessment))
}

func TestParse_OutOfOrderHeadings(t *testing.T) {
	reply := "### 2. ENVIRONMENTAL_IMPACT_ANALYSIS\nsecond\n### 1. EXECUTIVE_SUMMARY\nfirst"
	r := NewParser().Parse(context.Background(), reply, Metadata{})
	assert.Equal(t, "second", r.Section(SectionEnvironmentalImpact))
	assert.Equal(t, "first", r.Section(SectionExecutiveSummary))
}

func TestParse_NonCanonicalHeadingEndsSection(t *testing.T) {
	reply := "### 1. EXECUTIVE_SUMMARY\nSummary text.\n### 2. Environmental Impact Analysis\nImpact text.\n### 3. SUSTAINABILITY_METRICS\nMetrics."

	r := NewParser().Parse(context.Background(), reply, Metadata{})
	require.False(t, r.ParseFailed)

	assert.Equal(t, "Summary text.", r.Section(SectionExecutiveSummary))
	assert.Empty(t, r.Section(SectionEnvironmentalImpact))
	assert.Equal(t, "Metrics.", r.Section(SectionSustainabilityMetrics))
}

func TestNextNumberedHeading(t *testing.T) {
	tests := []struct {
		name string
		text string
		from int
		want int
	}{
		{name: "next line", text: "abc\n### 2. X", from: 0, want: 4},
		{name: "indented", text: "abc\n  ###12. X", from: 0, want: 4},
		{name: "no digits", text: "abc\n### Notes\n", from: 0, want: 14},
		{name: "mid line ignored", text: "abc ### 2. X", from: 0, want: 12},
		{name: "before from ignored", text: "### 1. A\nbody", from: 3, want: 13},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, nextNumberedHeading(tt.text, tt.from))
		})
	}
}

func TestParse_InvalidUTF8(t *testing.T) {
	text := "### 1. EXECUTIVE_SUMMARY\n\xff\xfe"
	r := NewParser().Parse(context.Background(), text, Metadata{ModelUsed: "m"})

	require.True(t, r.ParseFailed)
	assert.Contains(t, r.Metadata.ParsingError, "UTF-8")
	assert.Equal(t, "m", r.Metadata.ModelUsed)
	assert.Equal(t, text, r.RawContent)
	assert.Nil(t, r.Sections)
	assert.Nil(t, r.Metrics)
}

func TestParse_RecoversPanic(t *testing.T) {
	p := &Parser{OnTransition: func(_, to State) {
		if to == StateTableExtract {
			panic("boom")
		}
	}}
	r := p.Parse(context.Background(), fullReply, Metadata{})
	require.True(t, r.ParseFailed)
	assert.Contains(t, r.Metadata.ParsingError, "boom")
	assert.Contains(t, r.Metadata.ParsingError, ErrParseFailure.Error())
}

func TestParse_Empty(t *testing.T) {
	r := NewParser().Parse(context.Background(), "", Metadata{})
	require.False(t, r.ParseFailed)
	assert.Len(t, r.Sections, 6)
	assert.Equal(t, 0, r.Metrics.TotalSections)
	assert.Empty(t, r.Recommendations)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "PARSE_FAILED", StateParseFailed.String())
	assert.Equal(t, "State(42)", State(42).String())
	assert.True(t, StateStructured.Terminal())
	assert.False(t, StateTableExtract.Terminal())
}

func TestReadingMinutes(t *testing.T) {
	assert.InDelta(t, 0.1, ReadingMinutes(20), 1e-12)
	assert.InDelta(t, 2.5, ReadingMinutes(500), 1e-12)
	assert.InDelta(t, 0, ReadingMinutes(0), 1e-12)
}
