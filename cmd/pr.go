package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/revuedev/revue/internal/git"
	"github.com/revuedev/revue/internal/hosting"
	"github.com/revuedev/revue/internal/output"
)

var (
	prTypeFlag     string
	prMinSev       string
	prNoStore      bool
	prApproveClean bool
)

var prCmd = &cobra.Command{
	Use:   "pr [owner/repo] <number>",
	Short: "Review a GitHub pull request",
	Long: `Review every file of a pull request and submit the feedback as a
GitHub review. With --dry-run the feedback is printed instead of submitted.

When owner/repo is omitted it is inferred from the origin remote of the
enclosing git repository. A GitHub token is required: set github.token in
the config file or the GITHUB_TOKEN environment variable.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return prRun(cmd.Context(), args)
	},
}

func init() {
	prCmd.Flags().StringVarP(&prTypeFlag, "type", "t", "", "Review type: full, security, performance, maintainability, style, documentation, quick")
	prCmd.Flags().StringVar(&prMinSev, "min-severity", "warning", "Drop comments below this severity from the feedback")
	prCmd.Flags().BoolVar(&prNoStore, "no-store", false, "Do not persist results to the review store")
	prCmd.Flags().BoolVar(&prApproveClean, "approve-clean", false, "Approve when no comments survive the severity filter")
	rootCmd.AddCommand(prCmd)
}

// githubToken resolves the token the same way the provider key is resolved:
// config first, environment second.
func githubToken() (string, error) {
	token := viper.GetString("github.token")
	if token == "" {
		token = os.Getenv("GITHUB_TOKEN")
	}
	if token == "" {
		return "", fmt.Errorf("GitHub token required: set github.token in config or GITHUB_TOKEN")
	}
	return token, nil
}

// resolvePullArgs turns the command arguments into repo and number,
// inferring the repo from the origin remote when only a number is given.
func resolvePullArgs(args []string) (repo, number string, err error) {
	if len(args) == 2 {
		repo, number = args[0], args[1]
	} else {
		number = args[0]
		repo, err = inferRepo()
		if err != nil {
			return "", "", err
		}
	}

	if !strings.Contains(repo, "/") {
		return "", "", fmt.Errorf("repository must be owner/name, got %q", repo)
	}
	if _, err := strconv.Atoi(number); err != nil {
		return "", "", fmt.Errorf("invalid pull request number %q", number)
	}
	return repo, number, nil
}

func inferRepo() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}

	gc := git.NewClient()
	url, err := gc.RemoteURL(cwd)
	if err != nil || url == "" {
		return "", fmt.Errorf("cannot infer repository: no origin remote (pass owner/repo explicitly)")
	}

	owner, repo, err := git.ExtractOwnerRepo(url)
	if err != nil {
		return "", fmt.Errorf("cannot infer repository from remote %s: %w", url, err)
	}
	return owner + "/" + repo, nil
}

func prRun(ctx context.Context, args []string) error {
	repo, number, err := resolvePullArgs(args)
	if err != nil {
		return err
	}

	rt, err := resolveReviewType(prTypeFlag)
	if err != nil {
		return err
	}
	minSev, err := parseSeverity(prMinSev)
	if err != nil {
		return err
	}

	token, err := githubToken()
	if err != nil {
		return err
	}

	r, err := getReviewer()
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Reviewing %s#%s without submitting feedback", repo, number)
	} else {
		ui.Info("Reviewing %s#%s", repo, number)
	}

	pull := hosting.NewPullReviewer(hosting.NewGitHub(token), r)
	res, fb, err := pull.ReviewPull(ctx, repo, number, hosting.PullOptions{
		Type:         rt,
		MinSeverity:  minSev,
		Persist:      !prNoStore,
		DryRun:       dryRun,
		ApproveClean: prApproveClean,
	})
	if err != nil {
		return err
	}

	printFeedback(fb)
	ui.Info("%s", res.Summary())

	if !dryRun {
		ui.Success("Feedback submitted to %s#%s", repo, number)
	}
	return nil
}

func printFeedback(fb hosting.Feedback) {
	fmt.Fprintf(ui.Out, "Verdict: %s\n\n", output.VerdictColor(string(fb.Verdict)))
	fmt.Fprintln(ui.Out, fb.Summary)
	fmt.Fprintln(ui.Out)

	for _, c := range fb.Comments {
		fmt.Fprintf(ui.Out, "  %s:%d\n    %s\n", output.Cyan(c.Path), c.Line, indentLines(c.Body, "    "))
	}
	if len(fb.Comments) > 0 {
		fmt.Fprintln(ui.Out)
	}
}

// indentLines indents every line after the first so multi-line comment
// bodies stay aligned under their file header.
func indentLines(s, indent string) string {
	return strings.ReplaceAll(strings.TrimRight(s, "\n"), "\n", "\n"+indent)
}
