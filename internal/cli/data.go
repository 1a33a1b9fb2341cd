package cli

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rshade/greenreport/internal/carbon"
	"github.com/rshade/greenreport/internal/config"
	"github.com/rshade/greenreport/internal/engine"
	"github.com/rshade/greenreport/internal/greenops"
	"github.com/rshade/greenreport/internal/tui"
)

func newSummaryCmd() *cobra.Command {
	var (
		months int
		factor string
	)
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Summarize the data available for reporting",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if !cmd.Flags().Changed("months") {
				months = a.cfg.Carbon.DefaultMonths
			}
			ds, err := a.orch.DataSummary(cmd.Context(), months, factor)
			if err != nil {
				return err
			}
			return render(cmd, ds, func(width int) string { return tui.RenderDataSummary(ds, width) })
		},
	}
	cmd.Flags().IntVar(&months, "months", engine.DefaultMonths, "months of history to summarize")
	cmd.Flags().StringVar(&factor, "factor", "", "emission factor name or kgCO2/kWh value")
	return cmd
}

// factorEngine builds a carbon engine from configuration, with choice
// overriding the configured factor when set.
func factorEngine(choice string) (*carbon.Engine, error) {
	cfg := config.GetGlobalConfig()
	if choice == "" {
		choice = cfg.Carbon.Factor
	}
	table := carbon.DefaultFactorTable()
	f, err := carbon.ResolveFactor(table, choice)
	if err != nil {
		return nil, err
	}
	return carbon.NewEngineWithFactor(table, f, carbon.WithVoltage(cfg.Carbon.Voltage)), nil
}

func newFactorsCmd() *cobra.Command {
	var factor string
	cmd := &cobra.Command{
		Use:   "factors",
		Short: "List emission factors",
		RunE: func(cmd *cobra.Command, _ []string) error {
			eng, err := factorEngine(factor)
			if err != nil {
				return err
			}
			info := eng.FactorInfo()
			return render(cmd, info, func(width int) string { return tui.RenderFactors(info, width) })
		},
	}
	cmd.Flags().StringVar(&factor, "factor", "", "factor to mark as current")
	return cmd
}

func newCarbonConvertCmd() *cobra.Command {
	var (
		milliamps float64
		voltage   float64
		hours     float64
		factor    string
	)
	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert a constant current draw to energy and carbon",
		Example: `  greenreport carbon convert --ma 1000 --hours 1
  greenreport carbon convert --ma 250 --hours 24 --factor coal -o json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if milliamps < 0 || hours < 0 || math.IsNaN(milliamps) || math.IsNaN(hours) {
				return errors.New("--ma and --hours must be non-negative")
			}
			eng, err := factorEngine(factor)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("voltage") {
				voltage = eng.Voltage()
			}
			if voltage <= 0 {
				return fmt.Errorf("--voltage must be positive, got %g", voltage)
			}

			watts := carbon.CurrentToPower(milliamps, voltage)
			start := time.Now().UTC()
			end := start.Add(time.Duration(hours * float64(time.Hour)))
			rec := eng.Apply("conversion", carbon.EnergyRecord{
				PeriodStart: start,
				PeriodEnd:   end,
				EnergyKWh:   watts * hours / 1000,
			}, watts)
			return render(cmd, rec, func(width int) string { return tui.RenderCarbonRecord(rec, width) })
		},
	}
	cmd.Flags().Float64Var(&milliamps, "ma", 0, "current draw in milliamps")
	cmd.Flags().Float64Var(&voltage, "voltage", carbon.DefaultVoltage, "supply voltage")
	cmd.Flags().Float64Var(&hours, "hours", 1, "duration of the draw in hours")
	cmd.Flags().StringVar(&factor, "factor", "", "emission factor name or kgCO2/kWh value")
	return cmd
}

func newCarbonEquivalencyCmd() *cobra.Command {
	var in greenops.CarbonInput
	cmd := &cobra.Command{
		Use:   "equivalency",
		Short: "Express a carbon amount as real-world equivalencies",
		Example: `  greenreport carbon equivalency --value 12
  greenreport carbon equivalency --value 1500 --unit g -o json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !greenops.IsRecognizedUnit(in.Unit) {
				return fmt.Errorf("--unit %q is not one of g, kg, t, lb", in.Unit)
			}
			out, err := greenops.Calculate(in)
			if err != nil {
				return err
			}
			return render(cmd, out, func(width int) string { return tui.RenderEquivalency(out, width) })
		},
	}
	cmd.Flags().Float64Var(&in.Value, "value", 0, "carbon amount")
	cmd.Flags().StringVar(&in.Unit, "unit", "kg", "mass unit of --value (g, kg, t, lb)")
	return cmd
}

func newCarbonReadingsCmd() *cobra.Command {
	var (
		q          engine.ReadingQuery
		start, end string
		factor     string
	)
	cmd := &cobra.Command{
		Use:     "readings",
		Short:   "Show per-reading power and carbon for a time range",
		Example: `  greenreport carbon readings --device dev-1 --start 2025-02-01T00:00:00Z --stop 2025-02-02T00:00:00Z`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			now := time.Now().UTC()
			var err error
			if q.Stop, err = parseTimeFlag("stop", end, now); err != nil {
				return err
			}
			if q.Start, err = parseTimeFlag("start", start, q.Stop.Add(-24*time.Hour)); err != nil {
				return err
			}
			if !q.Stop.After(q.Start) {
				return errors.New("--stop must be after --start")
			}

			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			rows, err := a.orch.Readings(cmd.Context(), q, factor)
			if err != nil {
				return err
			}
			return render(cmd, rows, func(int) string { return tui.RenderReadings(rows) })
		},
	}
	cmd.Flags().StringVar(&q.DeviceID, "device", "", "device id filter")
	cmd.Flags().StringVar(&start, "start", "", "range start, RFC3339 (default 24h before --stop)")
	cmd.Flags().StringVar(&end, "stop", "", "range end, RFC3339 (default now)")
	cmd.Flags().IntVar(&q.Limit, "limit", 0, "maximum readings")
	cmd.Flags().StringVar(&factor, "factor", "", "emission factor name or kgCO2/kWh value")
	return cmd
}

// windowFlags binds the trailing-window flags shared by `carbon window`
// and `carbon trend`.
func windowFlags(cmd *cobra.Command, q *engine.WindowQuery, stop *string, ranges []string) {
	cmd.Flags().StringVar(&q.TimeRange, "range", engine.DefaultTimeRange,
		"trailing window ("+strings.Join(ranges, ", ")+")")
	cmd.Flags().StringVar(&q.DeviceID, "device", "", "device id filter")
	cmd.Flags().StringVar(stop, "stop", "", "window end, RFC3339 (default now)")
	cmd.Flags().StringVar(&q.Factor, "factor", "", "emission factor name or kgCO2/kWh value")
}

func newCarbonWindowCmd() *cobra.Command {
	var (
		q    engine.WindowQuery
		stop string
	)
	cmd := &cobra.Command{
		Use:   "window",
		Short: "Total power, energy and carbon over a trailing window of readings",
		Example: `  greenreport carbon window --range 6h
  greenreport carbon window --range 7d --device dev-1 -o json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			if q.Stop, err = parseTimeFlag("stop", stop, time.Time{}); err != nil {
				return err
			}
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ws, err := a.orch.WindowSummary(cmd.Context(), q)
			if err != nil {
				return err
			}
			return render(cmd, ws, func(width int) string { return tui.RenderWindowSummary(ws, width) })
		},
	}
	windowFlags(cmd, &q, &stop, engine.SummaryRanges)
	return cmd
}

func newCarbonTrendCmd() *cobra.Command {
	var (
		q    engine.WindowQuery
		stop string
	)
	cmd := &cobra.Command{
		Use:     "trend",
		Short:   "Hourly energy and carbon over a trailing window of readings",
		Example: `  greenreport carbon trend --range 7d -o json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			if q.Stop, err = parseTimeFlag("stop", stop, time.Time{}); err != nil {
				return err
			}
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ht, err := a.orch.HourlyTrend(cmd.Context(), q)
			if err != nil {
				return err
			}
			return render(cmd, ht, func(int) string { return tui.RenderHourlyTrend(ht) })
		},
	}
	windowFlags(cmd, &q, &stop, engine.TrendRanges)
	return cmd
}

func newCarbonRecentCmd() *cobra.Command {
	var (
		limit          int
		device, factor string
	)
	cmd := &cobra.Command{
		Use:   "recent",
		Short: "Show the carbon of the latest readings, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			rows, err := a.orch.RecentReadings(cmd.Context(), limit, device, factor)
			if err != nil {
				return err
			}
			return render(cmd, rows, func(int) string { return tui.RenderReadings(rows) })
		},
	}
	cmd.Flags().IntVar(&limit, "limit", engine.DefaultRecentLimit,
		fmt.Sprintf("readings to show (1-%d)", engine.MaxRecentLimit))
	cmd.Flags().StringVar(&device, "device", "", "device id filter")
	cmd.Flags().StringVar(&factor, "factor", "", "emission factor name or kgCO2/kWh value")
	return cmd
}

func parseTimeFlag(name, value string, def time.Time) (time.Time, error) {
	if value == "" {
		return def, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s: %w", name, err)
	}
	return t, nil
}

func newCheckCmd() *cobra.Command {
	var strict bool
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check the data source, the model and the carbon calculator",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			r := a.orch.CheckComponents(cmd.Context())
			if err = render(cmd, r, func(width int) string { return tui.RenderComponents(r, width) }); err != nil {
				return err
			}
			if strict && !r.Healthy() {
				return &ExitError{ExitCode: ExitComponentIssues, Reason: r.OverallStatus}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "exit non-zero unless every component is operational")
	return cmd
}
