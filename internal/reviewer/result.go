package reviewer

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/revuedev/revue/internal/models"
)

// Result aggregates the outcome of one batch review. After a batch returns,
// Succeeded+Failed == TotalFiles and FinishedAt is set.
type Result struct {
	BatchID    string                      // random per-batch identifier
	Reviews    map[string]*models.Response // path -> response, successes only
	Errors     map[string]string           // path -> failure message
	ReviewIDs  map[string]string           // path -> stored record ID, persisted successes only
	StartedAt  time.Time
	FinishedAt time.Time
	TotalFiles int
	Succeeded  int
	Failed     int
}

func newResult(total int) *Result {
	return &Result{
		BatchID:    uuid.NewString(),
		Reviews:    make(map[string]*models.Response, total),
		Errors:     make(map[string]string),
		ReviewIDs:  make(map[string]string),
		StartedAt:  time.Now().UTC(),
		TotalFiles: total,
	}
}

// Duration is the wall-clock time of the batch.
func (r *Result) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// CriticalIssue is an error-severity comment qualified with its file.
type CriticalIssue struct {
	Path    string
	Comment models.Comment
}

// CriticalIssues collects the error-severity comments across all reviewed
// files, ordered by path then line.
func (r *Result) CriticalIssues() []CriticalIssue {
	var out []CriticalIssue
	for path, resp := range r.Reviews {
		for _, c := range resp.Critical() {
			out = append(out, CriticalIssue{Path: path, Comment: c})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return out[i].Comment.LineNumber < out[j].Comment.LineNumber
	})
	return out
}

// Summary is a one-line digest of the batch.
func (r *Result) Summary() string {
	s := fmt.Sprintf("reviewed %d files: %d succeeded, %d failed",
		r.TotalFiles, r.Succeeded, r.Failed)
	if n := len(r.CriticalIssues()); n > 0 {
		s += fmt.Sprintf(", %d critical issues", n)
	}
	return s
}
