package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	cleanupOlderThan string
	cleanupYes       bool
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete stored reviews older than a retention window",
	Long: `Delete every stored review older than --older-than.

The window accepts days ("30", "30d") or a Go duration ("720h").`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cleanupRun(cmd.Context())
	},
}

func init() {
	cleanupCmd.Flags().StringVar(&cleanupOlderThan, "older-than", "30d", "Retention window: days or Go duration")
	cleanupCmd.Flags().BoolVarP(&cleanupYes, "yes", "y", false, "Skip the confirmation prompt")
	rootCmd.AddCommand(cleanupCmd)
}

// parseRetention accepts plain days ("30"), a day suffix ("30d"), or a Go
// duration ("720h").
func parseRetention(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)

	if days, err := strconv.Atoi(s); err == nil {
		return daysWindow(days, s)
	}
	if rest, ok := strings.CutSuffix(s, "d"); ok {
		if days, err := strconv.Atoi(rest); err == nil {
			return daysWindow(days, s)
		}
	}
	if d, err := time.ParseDuration(s); err == nil {
		if d <= 0 {
			return 0, fmt.Errorf("retention must be positive, got %q", s)
		}
		return d, nil
	}
	return 0, fmt.Errorf("invalid retention %q (use days like '30d' or a duration like '720h')", s)
}

func daysWindow(days int, raw string) (time.Duration, error) {
	if days <= 0 {
		return 0, fmt.Errorf("retention must be positive, got %q", raw)
	}
	return time.Duration(days) * 24 * time.Hour, nil
}

func cleanupRun(ctx context.Context) error {
	window, err := parseRetention(cleanupOlderThan)
	if err != nil {
		return err
	}
	cutoff := time.Now().Add(-window)

	if dryRun {
		ui.DryRunMsg("Would delete reviews created before %s", cutoff.Format("2006-01-02 15:04"))
		return nil
	}

	if !cleanupYes {
		fmt.Printf("Delete all reviews created before %s? [y/N]: ", cutoff.Format("2006-01-02 15:04"))
		reader := bufio.NewReader(os.Stdin)
		response, _ := reader.ReadString('\n')
		response = strings.TrimSpace(strings.ToLower(response))
		if response != "y" && response != "yes" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	r, err := getReviewer()
	if err != nil {
		return err
	}

	deleted, err := r.CleanupBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	ui.Success("Deleted %d review(s) older than %s", deleted, cleanupOlderThan)
	return nil
}
