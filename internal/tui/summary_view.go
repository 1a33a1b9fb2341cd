package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/rshade/greenreport/internal/carbon"
	"github.com/rshade/greenreport/internal/engine"
	"github.com/rshade/greenreport/internal/engine/archive"
	"github.com/rshade/greenreport/internal/greenops"
	"github.com/rshade/greenreport/internal/summary"
)

// RenderDataSummary renders the data availability box and per-device table.
func RenderDataSummary(ds *summary.DataSummary, width int) string {
	if ds == nil || ds.DataAvailability.DailyRecords == 0 {
		return InfoStyle.Render("No data available for the requested period.")
	}

	var content strings.Builder
	content.WriteString(HeaderStyle.Render("DATA SUMMARY"))
	content.WriteString("\n")
	a := ds.DataAvailability
	writeField(&content, "Period:        ", fmt.Sprintf("%s to %s", a.PeriodStart, a.PeriodEnd))
	writeField(&content, "Records:       ", fmt.Sprintf("%d daily, %d monthly", a.DailyRecords, a.MonthlyRecords))
	writeField(&content, "Devices:       ", fmt.Sprintf("%d", a.DevicesTracked))
	p := ds.PowerStatistics
	writeField(&content, "Total energy:  ", greenops.FormatFloat(p.TotalEnergyKWh, 3)+" kWh")
	writeField(&content, "Daily average: ", greenops.FormatFloat(p.AvgDailyKWh, 3)+" kWh")
	if p.PeakDay != nil {
		writeField(&content, "Peak day:      ",
			fmt.Sprintf("%s (%s kWh)", p.PeakDay.Date, greenops.FormatFloat(p.PeakDay.EnergyKWh, 3)))
	}
	if c := ds.CarbonSummary; c != nil {
		writeField(&content, "Carbon:        ", greenops.FormatCarbon(c.Total))
		writeField(&content, "Carbon trend:  ", TrendText(c.Direction))
	}
	e := ds.EnvironmentalAverages
	writeField(&content, "Environment:   ",
		fmt.Sprintf("%.1f°C, %.1f%% humidity, %.0f brightness", e.Temperature, e.Humidity, e.Brightness))

	var sb strings.Builder
	sb.WriteString(BoxStyle.Width(boxWidth(width)).Render(strings.TrimRight(content.String(), "\n")))
	sb.WriteString("\n")
	if len(ds.DeviceStatistics) > 0 {
		sb.WriteString(renderDevices(ds.DeviceStatistics))
	}
	return sb.String()
}

func renderDevices(devices []carbon.DeviceStats) string {
	var sb strings.Builder
	sb.WriteString(HeaderStyle.Render(fmt.Sprintf("%-16s %10s %12s %12s %6s", "DEVICE", "READINGS", "AVG mA", "TOTAL mA", "DAYS")))
	sb.WriteString("\n")
	for _, d := range devices {
		sb.WriteString(fmt.Sprintf("%-16s %10d %12.2f %12.0f %6d\n",
			truncate(d.DeviceCode, 16), d.TotalReadings, d.AvgPower, d.TotalPower, d.ActiveDays))
	}
	return sb.String()
}

// RenderFactors lists the registered emission factors and marks the
// factor in use.
func RenderFactors(info carbon.FactorInfo, width int) string {
	table := carbon.NewFactorTable(info.AvailableFactors)
	var content strings.Builder
	content.WriteString(HeaderStyle.Render("EMISSION FACTORS"))
	content.WriteString(SubtleStyle.Render("  (" + info.Unit + ")"))
	content.WriteString("\n")
	for _, name := range table.Names() {
		marker := "  "
		if name == info.FactorSource {
			marker = OKStyle.Render(IconCheck + " ")
		}
		content.WriteString(marker)
		content.WriteString(LabelStyle.Render(fmt.Sprintf("%-16s", name)))
		content.WriteString(ValueStyle.Render(fmt.Sprintf("%.3f", info.AvailableFactors[name])))
		content.WriteString("\n")
	}
	if !table.Has(info.FactorSource) {
		content.WriteString(OKStyle.Render(IconCheck + " "))
		content.WriteString(LabelStyle.Render(fmt.Sprintf("%-16s", info.FactorSource)))
		content.WriteString(ValueStyle.Render(fmt.Sprintf("%.3f", info.FactorValue)))
		content.WriteString("\n")
	}
	return BoxStyle.Width(boxWidth(width)).Render(strings.TrimRight(content.String(), "\n"))
}

// RenderReadings renders per-reading power and carbon with a totals line.
func RenderReadings(rows []carbon.ReadingEmission) string {
	if len(rows) == 0 {
		return InfoStyle.Render("No readings in the requested range.")
	}
	var sb strings.Builder
	sb.WriteString(HeaderStyle.Render(fmt.Sprintf("%-20s %-12s %10s %12s %12s", "TIMESTAMP", "DEVICE", "WATTS", "kWh", "gCO2")))
	sb.WriteString("\n")
	var kwh, kg float64
	for _, r := range rows {
		kwh += r.Carbon.EnergyKWh
		kg += r.Carbon.CarbonKg
		sb.WriteString(fmt.Sprintf("%-20s %-12s %10.3f %12.6f %12.3f\n",
			r.Reading.Timestamp.UTC().Format(time.DateTime),
			truncate(r.Reading.DeviceID, 12),
			r.Carbon.AvgPowerWatts, r.Carbon.EnergyKWh, r.Carbon.CarbonG))
	}
	sb.WriteString(LabelStyle.Render(fmt.Sprintf("%d readings, ", len(rows))))
	sb.WriteString(ValueStyle.Render(fmt.Sprintf("%.6f kWh, %s", kwh, greenops.FormatCarbon(kg))))
	sb.WriteString("\n")
	return sb.String()
}

// RenderComponents renders a component check.
func RenderComponents(r engine.ComponentReport, width int) string {
	var content strings.Builder
	content.WriteString(HeaderStyle.Render("COMPONENTS"))
	content.WriteString("\n")

	db := r.Database.Status
	if r.Database.TestQuery {
		db += fmt.Sprintf(", %d sample records", r.Database.SampleRecords)
	} else if r.Database.QueryError != "" {
		db += ", query failed: " + r.Database.QueryError
	}
	writeStatus(&content, "Database", r.Database.Status == engine.StatusConnected, db)

	model := r.Model.Status
	if r.Model.Model != "" {
		model = r.Model.Model + " " + model
	}
	if r.Model.Error != "" {
		model += ": " + r.Model.Error
	}
	writeStatus(&content, "Model", r.Model.Status == engine.StatusConnected, model)

	writeStatus(&content, "Carbon", r.Carbon.Status == engine.StatusInitialized,
		fmt.Sprintf("%s %.3f %s", r.Carbon.FactorInfo.FactorSource, r.Carbon.FactorInfo.FactorValue, r.Carbon.FactorInfo.Unit))

	content.WriteString("\n")
	if r.Healthy() {
		content.WriteString(OKStyle.Render(r.OverallStatus))
	} else {
		content.WriteString(WarningStyle.Render(r.OverallStatus))
	}
	return BoxStyle.Width(boxWidth(width)).Render(content.String())
}

func writeStatus(sb *strings.Builder, name string, ok bool, detail string) {
	icon := ErrorStyle.Render(IconCross)
	if ok {
		icon = OKStyle.Render(IconCheck)
	}
	sb.WriteString(icon)
	sb.WriteString(" ")
	sb.WriteString(LabelStyle.Render(fmt.Sprintf("%-10s", name)))
	sb.WriteString(detail)
	sb.WriteString("\n")
}

// RenderArchive lists archived reports, newest first as given.
func RenderArchive(list []archive.Summary) string {
	if len(list) == 0 {
		return InfoStyle.Render("No archived reports.")
	}
	var sb strings.Builder
	sb.WriteString(HeaderStyle.Render(fmt.Sprintf("%-28s %-8s %-20s %-20s", "ID", "TYPE", "CREATED", "MODEL")))
	sb.WriteString("\n")
	for _, s := range list {
		line := fmt.Sprintf("%-28s %-8s %-20s %-20s", s.ID, s.Kind, s.CreatedAt.UTC().Format(time.DateTime), s.ModelUsed)
		if s.ParseFailed {
			line += " " + WarningStyle.Render("unparsed")
		}
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	return sb.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}

// RenderCarbonRecord renders a single conversion result.
func RenderCarbonRecord(rec carbon.CarbonRecord, width int) string {
	var content strings.Builder
	content.WriteString(HeaderStyle.Render("CARBON CONVERSION"))
	content.WriteString("\n")
	writeField(&content, "Power:   ", fmt.Sprintf("%.3f W", rec.AvgPowerWatts))
	writeField(&content, "Energy:  ", fmt.Sprintf("%.6f kWh", rec.EnergyKWh))
	writeField(&content, "Factor:  ", fmt.Sprintf("%.3f %s (%s)", rec.FactorUsed, carbon.FactorUnit, rec.FactorSource))
	writeField(&content, "Carbon:  ", greenops.FormatCarbon(rec.CarbonKg))
	return BoxStyle.Width(boxWidth(width)).Render(strings.TrimRight(content.String(), "\n"))
}

// RenderEquivalency renders the equivalencies of one carbon amount.
func RenderEquivalency(out greenops.EquivalencyOutput, width int) string {
	var content strings.Builder
	content.WriteString(HeaderStyle.Render("CARBON EQUIVALENCY"))
	content.WriteString("\n")
	writeField(&content, "Carbon:  ", greenops.FormatCarbon(out.InputKg))
	if out.IsEmpty {
		content.WriteString(SubtleStyle.Render("Too small for a meaningful equivalency"))
		return BoxStyle.Width(boxWidth(width)).Render(content.String())
	}
	for _, r := range out.Results {
		writeField(&content, "  ", r.FormattedValue+" "+r.Label)
	}
	content.WriteString(SubtleStyle.Render(out.DisplayText))
	return BoxStyle.Width(boxWidth(width)).Render(content.String())
}

// RenderWindowSummary renders the totals of a trailing window.
func RenderWindowSummary(ws *summary.WindowSummary, width int) string {
	if ws == nil || ws.TotalReadings == 0 {
		return InfoStyle.Render("No readings in the requested window.")
	}
	var content strings.Builder
	content.WriteString(HeaderStyle.Render("LAST " + strings.ToUpper(ws.TimeRange)))
	if ws.DeviceID != "" {
		content.WriteString(SubtleStyle.Render("  (" + ws.DeviceID + ")"))
	}
	content.WriteString("\n")
	writeField(&content, "Window:        ", fmt.Sprintf("%s to %s",
		ws.Start.UTC().Format(time.DateTime), ws.Stop.UTC().Format(time.DateTime)))
	writeField(&content, "Readings:      ", fmt.Sprintf("%d from %d devices", ws.TotalReadings, ws.Devices))
	writeField(&content, "Power:         ", fmt.Sprintf("%.3f W avg, %.3f W max", ws.AvgPowerWatts, ws.MaxPowerWatts))
	writeField(&content, "Energy:        ", greenops.FormatFloat(ws.EnergyKWh, 6)+" kWh")
	writeField(&content, "Carbon:        ", greenops.FormatCarbon(ws.CarbonKg))
	writeField(&content, "Factor:        ", fmt.Sprintf("%s %.3f %s", ws.Factor.Source, ws.Factor.Value, ws.Factor.Unit))
	return BoxStyle.Width(boxWidth(width)).Render(strings.TrimRight(content.String(), "\n"))
}

// RenderHourlyTrend renders one line per hour with readings and the trend
// of hourly carbon.
func RenderHourlyTrend(ht *summary.HourlyTrend) string {
	if ht == nil || ht.TotalHours == 0 {
		return InfoStyle.Render("No readings in the requested window.")
	}
	var sb strings.Builder
	sb.WriteString(HeaderStyle.Render(fmt.Sprintf("%-20s %8s %10s %12s %12s", "HOUR", "READINGS", "AVG W", "kWh", "gCO2")))
	sb.WriteString("\n")
	for _, p := range ht.Data {
		sb.WriteString(fmt.Sprintf("%-20s %8d %10.3f %12.6f %12.3f\n",
			p.Hour.UTC().Format(time.DateTime), p.Readings, p.AvgPowerWatts, p.EnergyKWh, p.CarbonKg*1000))
	}
	sb.WriteString(LabelStyle.Render(fmt.Sprintf("%d hours over %s, carbon trend ", ht.TotalHours, ht.TimeRange)))
	if ht.Carbon != nil {
		sb.WriteString(TrendText(ht.Carbon.Direction))
	} else {
		sb.WriteString(TrendText(nil))
	}
	sb.WriteString("\n")
	return sb.String()
}
