package hosting

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/revuedev/revue/internal/models"
	"github.com/revuedev/revue/internal/reviewer"
)

// PullOptions tunes a pull request review.
type PullOptions struct {
	Type         models.ReviewType
	Settings     *models.Settings
	MinSeverity  models.Severity // comments below this rank stay out of the feedback
	Persist      bool
	DryRun       bool // build feedback but do not submit
	ApproveClean bool // approve when nothing survives the filter and every file succeeded
}

// PullReviewer reviews a proposed change end to end: fetch the files from
// the host, review them, submit the feedback.
type PullReviewer struct {
	host Host
	rev  *reviewer.Reviewer
}

// NewPullReviewer wires a host to a reviewer.
func NewPullReviewer(h Host, r *reviewer.Reviewer) *PullReviewer {
	return &PullReviewer{host: h, rev: r}
}

// ReviewPull fetches the change, reviews every file, and submits the
// feedback unless opt.DryRun. The result and feedback are returned either
// way.
func (p *PullReviewer) ReviewPull(ctx context.Context, repo, ref string, opt PullOptions) (*reviewer.Result, Feedback, error) {
	files, err := p.host.ChangedFiles(ctx, repo, ref)
	if err != nil {
		return nil, Feedback{}, fmt.Errorf("fetch changes for %s#%s: %w", repo, ref, err)
	}

	changes := make(map[string]reviewer.ChangedFile, len(files))
	for _, f := range files {
		changes[f.Path] = reviewer.ChangedFile{Content: f.Content, Diff: f.Patch}
	}

	res := p.rev.ReviewChanges(ctx, changes, "", reviewer.BatchOptions{
		Type:     opt.Type,
		Settings: opt.Settings,
		Persist:  opt.Persist,
		Meta:     reviewer.ContextMeta{Repository: repo},
	})

	fb := buildFeedback(res, opt)
	if !opt.DryRun {
		if err := p.host.SubmitFeedback(ctx, repo, ref, fb); err != nil {
			return res, fb, fmt.Errorf("submit feedback: %w", err)
		}
	}
	return res, fb, nil
}

// buildFeedback converts a batch result into host feedback, filtering by
// severity and picking the verdict.
func buildFeedback(res *reviewer.Result, opt PullOptions) Feedback {
	paths := make([]string, 0, len(res.Reviews))
	for path := range res.Reviews {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	var comments []ReviewComment
	hasError := false
	for _, path := range paths {
		for _, c := range res.Reviews[path].Comments {
			if opt.MinSeverity != "" && c.Severity.Rank() < opt.MinSeverity.Rank() {
				continue
			}
			if c.Severity == models.SeverityError {
				hasError = true
			}
			comments = append(comments, ReviewComment{
				Path: path,
				Line: c.LineNumber,
				Body: formatComment(c),
			})
		}
	}

	verdict := VerdictComment
	switch {
	case hasError:
		verdict = VerdictRequestChanges
	case len(comments) == 0 && res.Failed == 0 && opt.ApproveClean:
		verdict = VerdictApprove
	}

	return Feedback{
		Summary:  feedbackSummary(res, paths, comments),
		Comments: comments,
		Verdict:  verdict,
	}
}

func formatComment(c models.Comment) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "**[%s/%s]** %s", c.Severity, c.Category, c.Content)
	if c.SuggestedFix != "" {
		fmt.Fprintf(&sb, "\n\n```suggestion\n%s\n```", c.SuggestedFix)
	}
	return sb.String()
}

func feedbackSummary(res *reviewer.Result, paths []string, comments []ReviewComment) string {
	var sb strings.Builder
	sb.WriteString("## Automated Code Review\n\n")
	fmt.Fprintf(&sb, "Reviewed %d files, %d comments.\n", res.TotalFiles, len(comments))

	for _, path := range paths {
		if s := res.Reviews[path].Summary; s != "" {
			fmt.Fprintf(&sb, "\n**%s**: %s\n", path, s)
		}
	}
	if len(res.Errors) > 0 {
		sb.WriteString("\nFiles that could not be reviewed:\n")
		failed := make([]string, 0, len(res.Errors))
		for path := range res.Errors {
			failed = append(failed, path)
		}
		sort.Strings(failed)
		for _, path := range failed {
			fmt.Fprintf(&sb, "- `%s`: %s\n", path, res.Errors[path])
		}
	}
	return sb.String()
}
