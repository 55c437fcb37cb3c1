package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/revuedev/revue/internal/models"
	"github.com/revuedev/revue/internal/output"
	"github.com/revuedev/revue/internal/store"
)

var (
	historyLimit    int
	historyTypeFlag string
	historyJSON     bool
)

var historyCmd = &cobra.Command{
	Use:   "history <file>",
	Short: "Show stored reviews for a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return historyRun(cmd.Context(), args[0])
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one stored review in full",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return historyShowRun(cmd.Context(), args[0])
	},
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete one stored review",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return historyDeleteRun(cmd.Context(), args[0])
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 10, "Maximum records to show (0 for all)")
	historyCmd.Flags().StringVarP(&historyTypeFlag, "type", "t", "", "Filter by review type")
	historyCmd.PersistentFlags().BoolVar(&historyJSON, "json", false, "Emit records as JSON")
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyDeleteCmd)
	rootCmd.AddCommand(historyCmd)
}

// historyType parses the --type filter, where empty means no filter.
func historyType() (models.ReviewType, error) {
	if historyTypeFlag == "" {
		return "", nil
	}
	return models.ParseReviewType(historyTypeFlag)
}

func historyRun(ctx context.Context, path string) error {
	rt, err := historyType()
	if err != nil {
		return err
	}

	r, err := getReviewer()
	if err != nil {
		return err
	}

	records, err := r.FileHistory(ctx, path, historyLimit, rt)
	if err != nil {
		return err
	}

	if historyJSON {
		return printRecordsJSON(records)
	}

	if len(records) == 0 {
		ui.Info("No stored reviews for %s.", path)
		return nil
	}

	table := ui.Table([]string{"ID", "Type", "Date", "Comments", "Score"})
	for _, rec := range records {
		table.Append([]string{
			rec.ID,
			string(rec.ReviewType),
			rec.CreatedAt.Local().Format("2006-01-02 15:04"),
			fmt.Sprintf("%d", len(rec.Response.Comments)),
			output.ScoreColor(rec.Response.Score),
		})
	}
	table.Render()
	return nil
}

func historyShowRun(ctx context.Context, id string) error {
	r, err := getReviewer()
	if err != nil {
		return err
	}

	rec, err := r.GetReview(ctx, id)
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("no review with ID %s", id)
	}

	if historyJSON {
		return printRecordsJSON([]*store.Record{rec})
	}

	ui.Info("%s  %s  %s", rec.ID, rec.ReviewType, rec.CreatedAt.Local().Format("2006-01-02 15:04"))
	fmt.Fprintln(ui.Out)
	printResponse(rec.FilePath, rec.Response)
	return nil
}

func historyDeleteRun(ctx context.Context, id string) error {
	r, err := getReviewer()
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would delete review %s", id)
		return nil
	}

	deleted, err := r.DeleteReview(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("no review with ID %s", id)
	}
	ui.Success("Deleted review %s", id)
	return nil
}

// recordJSON is the CLI JSON shape of a stored review.
type recordJSON struct {
	ID         string            `json:"id"`
	FilePath   string            `json:"file_path"`
	ReviewType string            `json:"review_type"`
	CreatedAt  time.Time         `json:"created_at"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Review     *models.Response  `json:"review"`
}

func printRecordsJSON(records []*store.Record) error {
	out := make([]recordJSON, 0, len(records))
	for _, rec := range records {
		out = append(out, recordJSON{
			ID:         rec.ID,
			FilePath:   rec.FilePath,
			ReviewType: string(rec.ReviewType),
			CreatedAt:  rec.CreatedAt,
			Metadata:   rec.Metadata,
			Review:     rec.Response,
		})
	}
	enc := json.NewEncoder(ui.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
