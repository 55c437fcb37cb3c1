package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/revuedev/revue/internal/models"
	"github.com/revuedev/revue/internal/report"
)

var (
	reportOut      string
	reportTypeFlag string
	reportTemplate string
	reportMinSev   string
	reportLimit    int
	reportFrom     string
	reportTo       string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate markdown reports from stored reviews",
	Long: `Generate markdown reports from the review store.

Reports print to stdout unless --out is given.`,
}

var reportFileCmd = &cobra.Command{
	Use:   "file <path>",
	Short: "Report on the latest stored review of a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return reportFileRun(cmd.Context(), args[0])
	},
}

var reportBatchCmd = &cobra.Command{
	Use:   "batch <paths...>",
	Short: "Combined report over the latest stored review of each file",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return reportBatchRun(cmd.Context(), args)
	},
}

var reportHistoryCmd = &cobra.Command{
	Use:   "history <path>",
	Short: "Report on the full review history of a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return reportHistoryRun(cmd.Context(), args[0])
	},
}

var reportTrendCmd = &cobra.Command{
	Use:   "trend",
	Short: "Day-bucketed review activity over a date range",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return reportTrendRun(cmd.Context())
	},
}

func init() {
	reportCmd.PersistentFlags().StringVarP(&reportOut, "out", "o", "", "Write the report to this path instead of stdout")
	reportCmd.PersistentFlags().StringVarP(&reportTypeFlag, "type", "t", "", "Filter stored reviews by review type")

	reportFileCmd.Flags().StringVar(&reportTemplate, "template", "", "Render through a registered template (see 'revue templates')")
	reportFileCmd.Flags().StringVar(&reportMinSev, "min-severity", "", "Drop comments below this severity")
	reportBatchCmd.Flags().StringVar(&reportTemplate, "template", "", "Render through a registered template (see 'revue templates')")
	reportBatchCmd.Flags().StringVar(&reportMinSev, "min-severity", "", "Drop comments below this severity")
	reportHistoryCmd.Flags().IntVar(&reportLimit, "limit", 0, "Maximum records to analyze (0 for all)")
	reportTrendCmd.Flags().StringVar(&reportFrom, "from", "", "Range start, YYYY-MM-DD (default 30 days ago)")
	reportTrendCmd.Flags().StringVar(&reportTo, "to", "", "Range end, YYYY-MM-DD (default today)")

	reportCmd.AddCommand(reportFileCmd)
	reportCmd.AddCommand(reportBatchCmd)
	reportCmd.AddCommand(reportHistoryCmd)
	reportCmd.AddCommand(reportTrendCmd)
	rootCmd.AddCommand(reportCmd)
}

// reportType parses the --type filter, where empty means no filter.
func reportType() (models.ReviewType, error) {
	if reportTypeFlag == "" {
		return "", nil
	}
	return models.ParseReviewType(reportTypeFlag)
}

func reportFileRun(ctx context.Context, path string) error {
	rt, err := reportType()
	if err != nil {
		return err
	}
	minSev, err := parseSeverity(reportMinSev)
	if err != nil {
		return err
	}

	r, err := getReviewer()
	if err != nil {
		return err
	}

	records, err := r.FileHistory(ctx, path, 1, rt)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("no stored reviews for %s", path)
	}
	rec := records[0]

	rpt, err := r.FileReport(rec.Response, rec.FilePath, rec.ReviewType, report.RenderOptions{
		TemplateID:  reportTemplate,
		IncludeCode: true,
		MinSeverity: minSev,
	})
	if err != nil {
		return err
	}
	return writeReport(rpt)
}

func reportBatchRun(ctx context.Context, paths []string) error {
	rt, err := reportType()
	if err != nil {
		return err
	}
	minSev, err := parseSeverity(reportMinSev)
	if err != nil {
		return err
	}

	r, err := getReviewer()
	if err != nil {
		return err
	}

	// Each file contributes its latest stored review.
	reviews := make(map[string]*models.Response, len(paths))
	for _, p := range paths {
		records, err := r.FileHistory(ctx, p, 1, rt)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			ui.Warning("No stored reviews for %s, skipping", p)
			continue
		}
		reviews[p] = records[0].Response
	}
	if len(reviews) == 0 {
		return fmt.Errorf("no stored reviews for the given files")
	}

	rpt, err := r.Reports().BatchReport(reviews, rt, report.RenderOptions{
		TemplateID:  reportTemplate,
		IncludeCode: true,
		MinSeverity: minSev,
	})
	if err != nil {
		return err
	}
	return writeReport(rpt)
}

func reportHistoryRun(ctx context.Context, path string) error {
	rt, err := reportType()
	if err != nil {
		return err
	}

	r, err := getReviewer()
	if err != nil {
		return err
	}

	rpt, err := r.HistoricalReport(ctx, path, reportLimit, rt)
	if err != nil {
		return err
	}
	return writeReport(rpt)
}

func reportTrendRun(ctx context.Context) error {
	rt, err := reportType()
	if err != nil {
		return err
	}

	end := time.Now().UTC()
	if reportTo != "" {
		end, err = parseDay(reportTo)
		if err != nil {
			return err
		}
		// Include the whole end day
		end = end.Add(24*time.Hour - time.Nanosecond)
	}
	start := end.AddDate(0, 0, -30)
	if reportFrom != "" {
		start, err = parseDay(reportFrom)
		if err != nil {
			return err
		}
	}
	if end.Before(start) {
		return fmt.Errorf("range end %s is before start %s", end.Format("2006-01-02"), start.Format("2006-01-02"))
	}

	r, err := getReviewer()
	if err != nil {
		return err
	}

	rpt, err := r.TrendReport(ctx, start, end, rt)
	if err != nil {
		return err
	}
	return writeReport(rpt)
}

func parseDay(s string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (use YYYY-MM-DD)", s)
	}
	return t.UTC(), nil
}

// writeReport sends the rendered markdown to --out or stdout.
func writeReport(rpt *report.Report) error {
	md := rpt.Markdown()
	if reportOut == "" {
		fmt.Fprint(ui.Out, md)
		return nil
	}

	if dryRun {
		ui.DryRunMsg("Would write report: %s", reportOut)
		return nil
	}
	if err := os.WriteFile(reportOut, []byte(md), 0644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	ui.Success("Report written: %s", reportOut)
	return nil
}
