package cli

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/rshade/greenreport/internal/cli/pagination"
	"github.com/rshade/greenreport/internal/config"
	"github.com/rshade/greenreport/internal/engine"
	"github.com/rshade/greenreport/internal/engine/archive"
	"github.com/rshade/greenreport/internal/tui"
)

func newReportGenerateCmd() *cobra.Command {
	var (
		months     int
		reportType string
		testMode   bool
		factor     string
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate an ESG report",
		Long: `Generate an ESG report from the aggregates of the last --months months.

Report types are "full" (default, alias "comprehensive") and "summary".
--test-mode builds the report from the data alone and never calls the model.`,
		Example: `  greenreport report generate --months 6
  greenreport report generate --type summary --factor natural_gas
  greenreport report generate --test-mode --data fixture.json -o json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if !cmd.Flags().Changed("months") {
				months = a.cfg.Carbon.DefaultMonths
			}
			if months <= 0 {
				return fmt.Errorf("--months must be positive, got %d", months)
			}

			rep, err := a.orch.Generate(cmd.Context(), engine.Request{
				Months:     months,
				ReportType: reportType,
				TestMode:   testMode,
				Factor:     factor,
			})
			if err != nil {
				return err
			}
			return render(cmd, rep, func(width int) string { return tui.RenderReport(rep, width) })
		},
	}

	cmd.Flags().IntVar(&months, "months", engine.DefaultMonths, "months of history to analyze")
	cmd.Flags().StringVar(&reportType, "type", "", "report type: full or summary")
	cmd.Flags().BoolVar(&testMode, "test-mode", false, "skip the model call")
	cmd.Flags().StringVar(&factor, "factor", "", "emission factor name or kgCO2/kWh value")
	return cmd
}

func newReportShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <report-id>",
		Short: "Show an archived report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openArchive(config.GetGlobalConfig())
			if err != nil {
				return err
			}
			rep, err := store.Get(args[0])
			if err != nil {
				return err
			}
			return render(cmd, rep, func(width int) string { return tui.RenderReport(rep, width) })
		},
	}
}

func newReportListCmd() *cobra.Command {
	params := pagination.New()
	var plain bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List archived reports, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := params.Validate(); err != nil {
				return err
			}
			store, err := openArchive(config.GetGlobalConfig())
			if err != nil {
				return err
			}
			list, err := store.List()
			if err != nil {
				return err
			}
			page := pagination.Apply(list, params)
			if shouldBrowse(cmd, plain) {
				return runArchiveBrowser(page.Items, store.Get)
			}
			return render(cmd, page, func(int) string {
				out := tui.RenderArchive(page.Items)
				if page.HasMore {
					out += fmt.Sprintf("\n%d of %d shown; use --offset %d for more",
						len(page.Items), page.Total, page.Offset+len(page.Items))
				}
				return out
			})
		},
	}
	cmd.Flags().IntVar(&params.Limit, "limit", pagination.DefaultLimit, "maximum reports to list")
	cmd.Flags().IntVar(&params.Offset, "offset", 0, "reports to skip")
	cmd.Flags().BoolVar(&plain, "plain", false, "print a plain listing even on a terminal")
	return cmd
}

// shouldBrowse reports whether `report list` should open the interactive
// browser: text output to a terminal without --plain.
func shouldBrowse(cmd *cobra.Command, plain bool) bool {
	if plain {
		return false
	}
	if format, err := outputFormat(cmd); err != nil || format != outputText {
		return false
	}
	return isTerminal(cmd.OutOrStdout())
}

func runArchiveBrowser(items []archive.Summary, load tui.ReportLoader) error {
	p := tea.NewProgram(tui.NewArchiveBrowser(items, load))
	final, err := p.Run()
	if err != nil {
		return fmt.Errorf("running archive browser: %w", err)
	}
	if b, ok := final.(*tui.ArchiveBrowser); ok && b.Err() != nil {
		return b.Err()
	}
	return nil
}
