package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/revuedev/revue/internal/git"
	"github.com/revuedev/revue/internal/models"
	"github.com/revuedev/revue/internal/output"
	"github.com/revuedev/revue/internal/report"
	"github.com/revuedev/revue/internal/reviewer"
)

var (
	reviewTypeFlag    string
	reviewNoStore     bool
	reviewConcurrency int
	reviewMinSev      string
	reviewMaxComments int
	reviewFocus       []string
	reviewReportPath  string
	reviewJSON        bool
	reviewChanged     bool
	reviewBase        string
)

var reviewCmd = &cobra.Command{
	Use:   "review [files...]",
	Short: "Review files with the configured provider",
	Long: `Review one or more files and print the comments.

With --changed no file arguments are given: the files that differ from the
base branch are discovered from the enclosing git repository and reviewed
as one change set, diffs included.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if reviewChanged && len(args) > 0 {
			return fmt.Errorf("--changed takes no file arguments")
		}
		if !reviewChanged && len(args) == 0 {
			return fmt.Errorf("no files given (pass paths or use --changed)")
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return reviewRun(cmd.Context(), args)
	},
}

func init() {
	reviewCmd.Flags().StringVarP(&reviewTypeFlag, "type", "t", "", "Review type: full, security, performance, maintainability, style, documentation, quick")
	reviewCmd.Flags().BoolVar(&reviewNoStore, "no-store", false, "Do not persist results to the review store")
	reviewCmd.Flags().IntVar(&reviewConcurrency, "concurrency", 0, "Parallel reviews (default from config)")
	reviewCmd.Flags().StringVar(&reviewMinSev, "min-severity", "", "Drop comments below this severity: error, warning, suggestion, praise")
	reviewCmd.Flags().IntVar(&reviewMaxComments, "max-comments", 0, "Comment cap per file (default from config)")
	reviewCmd.Flags().StringSliceVar(&reviewFocus, "focus", nil, "Focus areas for the review (repeatable)")
	reviewCmd.Flags().StringVar(&reviewReportPath, "report", "", "Write a markdown report to this path")
	reviewCmd.Flags().BoolVar(&reviewJSON, "json", false, "Emit results as JSON")
	reviewCmd.Flags().BoolVar(&reviewChanged, "changed", false, "Review the files changed against --base")
	reviewCmd.Flags().StringVar(&reviewBase, "base", "main", "Base branch for --changed")
	rootCmd.AddCommand(reviewCmd)
}

// parseSeverity validates a severity name from a flag. Empty input means
// "not set".
func parseSeverity(s string) (models.Severity, error) {
	if s == "" {
		return "", nil
	}
	sev := models.Severity(strings.ToLower(s))
	if sev.Rank() < 0 {
		return "", fmt.Errorf("invalid severity %q (use: error, warning, suggestion, praise)", s)
	}
	return sev, nil
}

// resolveReviewType resolves the effective review type: flag first, config
// default otherwise.
func resolveReviewType(flag string) (models.ReviewType, error) {
	if flag != "" {
		return models.ParseReviewType(flag)
	}
	rt, err := models.ParseReviewType(viper.GetString("review.type"))
	if err != nil {
		return "", fmt.Errorf("review.type: %w", err)
	}
	return rt, nil
}

// reviewSettings builds the effective settings from config, then applies
// flag overrides.
func reviewSettings() (*models.Settings, error) {
	s := models.DefaultSettings()
	s.MaxComments = viper.GetInt("review.max_comments")
	s.MinSeverity = models.NormalizeSeverity(viper.GetString("review.min_severity"))
	s.IncludePraise = viper.GetBool("review.include_praise")

	if reviewMaxComments > 0 {
		s.MaxComments = reviewMaxComments
	}
	if reviewMinSev != "" {
		sev, err := parseSeverity(reviewMinSev)
		if err != nil {
			return nil, err
		}
		s.MinSeverity = sev
	}
	if len(reviewFocus) > 0 {
		s.FocusAreas = reviewFocus
	}
	return s, nil
}

func reviewRun(ctx context.Context, args []string) error {
	rt, err := resolveReviewType(reviewTypeFlag)
	if err != nil {
		return err
	}
	settings, err := reviewSettings()
	if err != nil {
		return err
	}

	var (
		changes map[string]reviewer.ChangedFile
		meta    reviewer.ContextMeta
		base    string
	)
	if reviewChanged {
		base = reviewBase
		changes, meta, err = discoverChanges(base)
		if err != nil {
			return err
		}
		if len(changes) == 0 {
			ui.Info("No files changed against %s.", base)
			return nil
		}
	} else {
		changes, err = readFiles(args)
		if err != nil {
			return err
		}
	}

	if dryRun {
		ui.DryRunMsg("Would run a %s review of %d file(s):", rt, len(changes))
		for _, p := range sortedKeys(changes) {
			fmt.Fprintf(ui.Out, "  %s\n", p)
		}
		return nil
	}

	r, err := getReviewer()
	if err != nil {
		return err
	}

	res := r.ReviewChanges(ctx, changes, base, reviewer.BatchOptions{
		Type:          rt,
		Settings:      settings,
		Persist:       !reviewNoStore,
		MaxConcurrent: reviewConcurrency,
		Meta:          meta,
	})

	if reviewJSON {
		if err := printResultJSON(res); err != nil {
			return err
		}
	} else {
		printResultDetail(res)
	}

	if reviewReportPath != "" {
		if err := writeReviewReport(r, res, rt); err != nil {
			return err
		}
	}

	if res.Failed > 0 {
		return fmt.Errorf("%d of %d reviews failed", res.Failed, res.TotalFiles)
	}
	if n := len(res.CriticalIssues()); n > 0 {
		return fmt.Errorf("%d critical issue(s) found", n)
	}
	return nil
}

// readFiles loads explicit file arguments as a change set without diffs.
func readFiles(paths []string) (map[string]reviewer.ChangedFile, error) {
	changes := make(map[string]reviewer.ChangedFile, len(paths))
	for _, p := range paths {
		content, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		changes[p] = reviewer.ChangedFile{Content: string(content)}
	}
	return changes, nil
}

// discoverChanges collects the files changed against base in the enclosing
// repository, with per-file diffs and best-effort repo metadata.
func discoverChanges(base string) (map[string]reviewer.ChangedFile, reviewer.ContextMeta, error) {
	var meta reviewer.ContextMeta

	cwd, err := os.Getwd()
	if err != nil {
		return nil, meta, err
	}

	gc := git.NewClient()
	root, err := gc.RepoRoot(cwd)
	if err != nil {
		return nil, meta, fmt.Errorf("not inside a git repository: %w", err)
	}

	paths, err := gc.ChangedFiles(root, base)
	if err != nil {
		return nil, meta, fmt.Errorf("list changed files: %w", err)
	}
	if len(paths) == 0 {
		return nil, meta, nil
	}

	changes := make(map[string]reviewer.ChangedFile, len(paths))
	for _, p := range paths {
		content, err := os.ReadFile(filepath.Join(root, p))
		if err != nil {
			return nil, meta, fmt.Errorf("read %s: %w", p, err)
		}
		diff, err := gc.Diff(root, base, p)
		if err != nil {
			return nil, meta, fmt.Errorf("diff %s: %w", p, err)
		}
		changes[p] = reviewer.ChangedFile{Content: string(content), Diff: diff}
	}

	if hash, err := gc.CommitHash(root); err == nil {
		meta.CommitHash = hash
	}
	if author, err := gc.Author(root); err == nil {
		meta.Author = author
	}
	if url, err := gc.RemoteURL(root); err == nil && url != "" {
		if owner, repo, err := git.ExtractOwnerRepo(url); err == nil {
			meta.Repository = owner + "/" + repo
		}
	}
	return changes, meta, nil
}

func sortedKeys(changes map[string]reviewer.ChangedFile) []string {
	keys := make([]string, 0, len(changes))
	for k := range changes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// printResultDetail prints per-file comments, a summary table, and any
// failures.
func printResultDetail(res *reviewer.Result) {
	paths := make([]string, 0, len(res.Reviews))
	for p := range res.Reviews {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		printResponse(p, res.Reviews[p])
	}

	if len(paths) > 0 {
		table := ui.Table([]string{"File", "Errors", "Warnings", "Suggestions", "Score", "ID"})
		for _, p := range paths {
			resp := res.Reviews[p]
			counts := resp.SeverityCounts()
			table.Append([]string{
				output.Cyan(p),
				countCell(counts[models.SeverityError], output.Red),
				countCell(counts[models.SeverityWarning], output.Yellow),
				fmt.Sprintf("%d", counts[models.SeveritySuggestion]),
				output.ScoreColor(resp.Score),
				res.ReviewIDs[p],
			})
		}
		table.Render()
		fmt.Fprintln(ui.Out)
	}

	failed := make([]string, 0, len(res.Errors))
	for p := range res.Errors {
		failed = append(failed, p)
	}
	sort.Strings(failed)
	for _, p := range failed {
		ui.Error("%s: %s", p, res.Errors[p])
	}

	ui.Info("%s", res.Summary())
}

// printResponse prints one review: score, summary, then the comments.
func printResponse(path string, resp *models.Response) {
	fmt.Fprintf(ui.Out, "%s  score %s\n", output.Cyan(path), output.ScoreColor(resp.Score))
	if resp.Summary != "" {
		fmt.Fprintf(ui.Out, "  %s\n", resp.Summary)
	}
	for _, c := range resp.Comments {
		loc := "file"
		if c.LineNumber > 0 {
			loc = fmt.Sprintf("L%d", c.LineNumber)
		}
		fmt.Fprintf(ui.Out, "  %-10s %-6s [%s] %s\n", output.SeverityColor(c.Severity), loc, c.Category, c.Content)
		if c.SuggestedFix != "" {
			fmt.Fprintf(ui.Out, "             fix: %s\n", c.SuggestedFix)
		}
	}
	fmt.Fprintln(ui.Out)
}

func countCell(n int, colorize func(string) string) string {
	if n == 0 {
		return "0"
	}
	return colorize(fmt.Sprintf("%d", n))
}

func printResultJSON(res *reviewer.Result) error {
	out := struct {
		BatchID   string                      `json:"batch_id"`
		Reviews   map[string]*models.Response `json:"reviews"`
		ReviewIDs map[string]string           `json:"review_ids,omitempty"`
		Errors    map[string]string           `json:"errors,omitempty"`
		Succeeded int                         `json:"succeeded"`
		Failed    int                         `json:"failed"`
	}{
		BatchID:   res.BatchID,
		Reviews:   res.Reviews,
		ReviewIDs: res.ReviewIDs,
		Errors:    res.Errors,
		Succeeded: res.Succeeded,
		Failed:    res.Failed,
	}
	enc := json.NewEncoder(ui.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// writeReviewReport renders the batch as markdown and writes it to
// --report. A single-file batch gets the single-file layout.
func writeReviewReport(r *reviewer.Reviewer, res *reviewer.Result, rt models.ReviewType) error {
	opt := report.RenderOptions{IncludeCode: true}

	var (
		rpt *report.Report
		err error
	)
	if len(res.Reviews) == 1 {
		for path, resp := range res.Reviews {
			rpt, err = r.FileReport(resp, path, rt, opt)
		}
	} else {
		rpt, err = r.BatchReport(res, rt, opt)
	}
	if err != nil {
		return fmt.Errorf("generate report: %w", err)
	}

	if err := os.WriteFile(reviewReportPath, []byte(rpt.Markdown()), 0644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	ui.Success("Report written: %s", reviewReportPath)
	return nil
}
