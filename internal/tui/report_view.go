package tui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rshade/greenreport/internal/greenops"
	"github.com/rshade/greenreport/internal/report"
	"github.com/rshade/greenreport/internal/summary"
	"github.com/rshade/greenreport/internal/trend"
)

// RenderReport renders a generated report: a metadata box followed by the
// sections in heading order, the recommendations and the equivalency line.
// A report whose reply could not be structured shows the raw reply.
func RenderReport(rep *report.Report, width int) string {
	if rep == nil {
		return InfoStyle.Render("No report to display.")
	}

	var sb strings.Builder
	sb.WriteString(renderReportHeader(rep, width))
	sb.WriteString("\n")

	if rep.ParseFailed {
		sb.WriteString(WarningStyle.Render("Reply could not be structured: " + rep.Metadata.ParsingError))
		sb.WriteString("\n\n")
		sb.WriteString(rep.RawContent)
		sb.WriteString("\n")
		return sb.String()
	}

	switch {
	case rep.Summary != "":
		sb.WriteString(HeaderStyle.Render("SUMMARY"))
		sb.WriteString("\n")
		sb.WriteString(rep.Summary)
		sb.WriteString("\n")
	case len(rep.Sections) > 0:
		for _, s := range report.Sections() {
			text := rep.Section(s.Key)
			if text == "" {
				continue
			}
			sb.WriteString("\n")
			sb.WriteString(HeaderStyle.Render(fmt.Sprintf("%d. %s", s.Number, s.Heading)))
			sb.WriteString("\n")
			sb.WriteString(text)
			sb.WriteString("\n")
		}
	default:
		sb.WriteString(rep.RawContent)
		sb.WriteString("\n")
	}

	if len(rep.Recommendations) > 0 {
		sb.WriteString("\n")
		sb.WriteString(HeaderStyle.Render("RECOMMENDATIONS"))
		sb.WriteString("\n")
		for i, r := range rep.Recommendations {
			sb.WriteString(fmt.Sprintf("%2d. %s\n", i+1, r))
		}
	}

	if rep.Equivalency != nil && !rep.Equivalency.IsEmpty {
		sb.WriteString("\n")
		sb.WriteString(SubtleStyle.Render(rep.Equivalency.DisplayText))
		sb.WriteString("\n")
	}
	return sb.String()
}

func renderReportHeader(rep *report.Report, width int) string {
	meta := rep.Metadata
	var content strings.Builder
	content.WriteString(HeaderStyle.Render("CARBON REPORT"))
	content.WriteString("\n")

	writeField(&content, "Report:    ", orDash(meta.ReportID))
	writeField(&content, "Type:      ", string(meta.ReportType))
	writeField(&content, "Model:     ", meta.ModelUsed)
	writeField(&content, "Generated: ", meta.GeneratedAt.UTC().Format(time.RFC3339))

	if ds := meta.DataSummary; ds != nil {
		writeField(&content, "Period:    ", periodText(ds.AnalysisPeriod))
		writeField(&content, "Energy:    ", greenops.FormatFloat(ds.PowerConsumption.TotalKWh, 3)+" kWh")
		writeField(&content, "Carbon:    ", greenops.FormatCarbon(ds.CarbonEmissions.TotalKgCO2))
		writeField(&content, "Factor:    ", fmt.Sprintf("%s (%g %s)", ds.Factor.Name, ds.Factor.Value, ds.Factor.Unit))
	}
	if rep.CarbonTrends != nil {
		writeField(&content, "Trend:     ", TrendText(rep.CarbonTrends.Direction))
	}
	if m := rep.Metrics; m != nil {
		writeField(&content, "Length:    ", fmt.Sprintf("%d words, %.1f min read", m.WordCount, m.EstimatedReadingMinutes))
	}
	return BoxStyle.Width(boxWidth(width)).Render(strings.TrimRight(content.String(), "\n"))
}

func periodText(p summary.AnalysisPeriod) string {
	if p.StartDate == "" {
		return "-"
	}
	return fmt.Sprintf("%s to %s (%s days)", p.StartDate, p.EndDate, strconv.Itoa(p.TotalDays))
}

// TrendText renders a trend direction with its arrow.
func TrendText(d *trend.Direction) string {
	if d == nil {
		return SubtleStyle.Render("n/a")
	}
	switch *d {
	case trend.Increasing:
		return WarningStyle.Render(IconArrowUp + " increasing")
	case trend.Decreasing:
		return OKStyle.Render(IconArrowDown + " decreasing")
	default:
		return SubtleStyle.Render(IconArrowRight + " stable")
	}
}

func writeField(sb *strings.Builder, label, value string) {
	sb.WriteString(LabelStyle.Render(label))
	sb.WriteString(ValueStyle.Render(value))
	sb.WriteString("\n")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
