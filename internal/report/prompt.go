package report

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/rshade/greenreport/internal/greenops"
	"github.com/rshade/greenreport/internal/summary"
)

// SystemPrompt is the analyst instruction sent with full report prompts.
const SystemPrompt = "You are an expert environmental analyst specializing in ESG reporting. " +
	"Generate comprehensive, data-driven environmental impact reports with actionable insights."

const fullPromptText = `
Generate a comprehensive ESG (Environmental, Social, Governance) report focused on Environmental aspects based on the following power consumption and environmental data:

## Data Summary
Analysis Period: {{or .S.AnalysisPeriod.StartDate "n/a"}} to {{or .S.AnalysisPeriod.EndDate "n/a"}} ({{.S.AnalysisPeriod.TotalDays}} days)

### Power Consumption Data:
- Total Energy Consumption: {{f2 .S.PowerConsumption.TotalKWh}} kWh
- Average Daily Consumption: {{f2 .S.PowerConsumption.AverageDailyKWh}} kWh
- Peak Daily Consumption: {{f2 .S.PowerConsumption.PeakDailyKWh}} kWh
- Minimum Daily Consumption: {{f2 .S.PowerConsumption.MinDailyKWh}} kWh

### Carbon Emissions ({{.FactorLabel}}: {{.S.Factor.Value}} {{.S.Factor.Unit}}):
- Total CO2 Emissions: {{f2 .S.CarbonEmissions.TotalKgCO2}} kg CO2
- Average Daily Emissions: {{f2 .S.CarbonEmissions.AverageDailyKgCO2}} kg CO2
- Peak Daily Emissions: {{f2 .S.CarbonEmissions.PeakDailyKgCO2}} kg CO2
{{- if .Equivalency}}
- {{.Equivalency}}
{{- end}}

### Environmental Conditions:
- Average Temperature: {{f1 .S.EnvironmentalFactors.AvgTemperature}}°C
- Average Humidity: {{f1 .S.EnvironmentalFactors.AvgHumidity}}%
- Average Brightness: {{f0 .S.EnvironmentalFactors.AvgBrightness}} lux
- Temperature Range: {{f1 .S.EnvironmentalFactors.TempRange.Min}}°C to {{f1 .S.EnvironmentalFactors.TempRange.Max}}°C
{{- with .S.MonthlyTrends}}

### Monthly Trends ({{.MonthsAnalyzed}} months):
{{- range .MonthlyAverages}}
- {{.YearMonth}}: {{f2 .EnergyKWh}} kWh, {{f3 .CarbonKg}} kg CO2
{{- end}}
{{- end}}
{{- with .S.RecentTrends}}

### Recent Trends (last 7 days vs previous 7 days):
- Recent Average: {{f2 .RecentAvgKWh}} kWh/day
- Previous Average: {{f2 .PreviousAvgKWh}} kWh/day
- Change: {{if .ChangePercent}}{{f1 (deref .ChangePercent)}}%{{else}}undefined (no consumption in the previous period){{end}}
{{- end}}

## Report Requirements

Please generate a structured ESG report with the following sections:

{{index .Headings 0}}
A concise overview of environmental performance, key findings, and immediate recommendations (150-200 words).

{{index .Headings 1}}
Detailed analysis including:
- Power consumption patterns and trends
- Carbon footprint assessment
- Environmental factor correlations (temperature, humidity, brightness effects on power usage)
- Benchmarking against industry standards

{{index .Headings 2}}
Key performance indicators:
- Energy efficiency metrics
- Carbon intensity calculations
- Environmental performance trends
- Comparative analysis with previous periods

{{index .Headings 3}}
Specific, measurable recommendations for:
- Energy consumption reduction strategies
- Carbon footprint minimization
- Operational efficiency improvements
- Environmental monitoring enhancements

{{index .Headings 4}}
Format as JSON objects for easy parsing:
- Monthly energy consumption summary
- Monthly carbon emissions summary
- Environmental factors correlation matrix

{{index .Headings 5}}
Environmental risks and mitigation strategies:
- Climate-related risks
- Energy supply risks
- Regulatory compliance risks

Please structure your response with clear section headers (use ### for main sections) and provide actionable, data-driven insights based on the provided information. Focus on practical recommendations that can be implemented to improve environmental performance.
`

const summaryPromptText = `
Generate a concise environmental impact summary based on this data:

Power Consumption: {{f2 .S.PowerConsumption.TotalKWh}} kWh over {{.S.AnalysisPeriod.TotalDays}} days
Carbon Emissions: {{f2 .S.CarbonEmissions.TotalKgCO2}} kg CO2 ({{.FactorLabel}}: {{.S.Factor.Value}} {{.S.Factor.Unit}})

Provide:
1. A 2-sentence environmental impact summary
2. Top 3 specific recommendations for improvement
3. One key metric to track

Keep response under 200 words.
`

//nolint:gochecknoglobals // parsed once, templates are safe for concurrent execution
var (
	promptFuncs = template.FuncMap{
		"f0":    fixed(0),
		"f1":    fixed(1),
		"f2":    fixed(2),
		"f3":    fixed(3),
		"deref": func(p *float64) float64 { return *p },
	}
	fullPrompt    = template.Must(template.New("full").Funcs(promptFuncs).Parse(fullPromptText))
	summaryPrompt = template.Must(template.New("summary").Funcs(promptFuncs).Parse(summaryPromptText))
)

type promptData struct {
	S           summary.ReportSummary
	FactorLabel string
	Equivalency string
	Headings    []string
}

// BuildPrompt renders the six-section report prompt for s.
func BuildPrompt(s summary.ReportSummary) (string, error) {
	return render(fullPrompt, s)
}

// BuildSummaryPrompt renders the abbreviated summary prompt for s.
func BuildSummaryPrompt(s summary.ReportSummary) (string, error) {
	return render(summaryPrompt, s)
}

func render(t *template.Template, s summary.ReportSummary) (string, error) {
	data := promptData{S: s, FactorLabel: factorLabel(s.Factor)}
	for _, sec := range Sections() {
		data.Headings = append(data.Headings, sec.Token())
	}
	if eq, err := greenops.FromKg(s.CarbonEmissions.TotalKgCO2); err == nil && !eq.IsEmpty {
		data.Equivalency = eq.DisplayText
	}

	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", fmt.Errorf("rendering %s prompt: %w", t.Name(), err)
	}
	return b.String(), nil
}

// factorLabel names the factor as it appears in prompts, e.g. "Korea Grid Factor".
func factorLabel(f summary.Factor) string {
	name := f.Source
	if name == "" {
		name = f.Name
	}
	if name == "" {
		return "Emission Factor"
	}
	words := strings.Fields(strings.ReplaceAll(name, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ") + " Factor"
}

func fixed(precision int) func(float64) string {
	format := fmt.Sprintf("%%.%df", precision)
	return func(v float64) string {
		return fmt.Sprintf(format, v)
	}
}
