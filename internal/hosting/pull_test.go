package hosting

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/revuedev/revue/internal/models"
	"github.com/revuedev/revue/internal/reviewer"
)

// scriptedProvider returns canned comments per file path.
type scriptedProvider struct {
	comments map[string][]models.Comment
	fail     map[string]error
}

func (s *scriptedProvider) GenerateReview(ctx context.Context, req *models.Request) (*models.Response, error) {
	path := req.Context.FilePath
	if err, ok := s.fail[path]; ok {
		return nil, err
	}
	return &models.Response{
		Summary:   "summary of " + path,
		Comments:  s.comments[path],
		Timestamp: time.Now().UTC(),
	}, nil
}

func (s *scriptedProvider) ValidateConfiguration(ctx context.Context) bool { return true }
func (s *scriptedProvider) TokenLimit() int                                { return 100000 }
func (s *scriptedProvider) EstimateTokens(text string) int                 { return len(text) / 4 }
func (s *scriptedProvider) Name() string                                   { return "scripted" }

// fakeHost serves canned files and records submissions.
type fakeHost struct {
	files     []ChangedFile
	fetchErr  error
	submitErr error

	submitted     bool
	submittedRepo string
	submittedRef  string
	feedback      Feedback
}

func (h *fakeHost) ChangedFiles(ctx context.Context, repo, ref string) ([]ChangedFile, error) {
	if h.fetchErr != nil {
		return nil, h.fetchErr
	}
	return h.files, nil
}

func (h *fakeHost) SubmitFeedback(ctx context.Context, repo, ref string, fb Feedback) error {
	if h.submitErr != nil {
		return h.submitErr
	}
	h.submitted = true
	h.submittedRepo = repo
	h.submittedRef = ref
	h.feedback = fb
	return nil
}

func newPullReviewer(t *testing.T, p *scriptedProvider, h Host) *PullReviewer {
	t.Helper()
	r, err := reviewer.New(p, reviewer.Options{})
	require.NoError(t, err)
	return NewPullReviewer(h, r)
}

func TestReviewPullRequestChanges(t *testing.T) {
	p := &scriptedProvider{comments: map[string][]models.Comment{
		"a.py": {
			{LineNumber: 3, Content: "injection risk", Severity: models.SeverityError, Category: models.CategorySecurity, SuggestedFix: "use params"},
			{LineNumber: 9, Content: "nice touch", Severity: models.SeverityPraise, Category: models.CategoryStyle},
		},
		"b.py": {
			{Content: "could be simpler", Severity: models.SeveritySuggestion, Category: models.CategoryBestPractices},
		},
	}}
	h := &fakeHost{files: []ChangedFile{
		{Path: "a.py", Content: "aa", Patch: "@@ -1 +1 @@"},
		{Path: "b.py", Content: "bb"},
	}}

	pr := newPullReviewer(t, p, h)
	res, fb, err := pr.ReviewPull(context.Background(), "acme/widgets", "42", PullOptions{})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Succeeded)
	assert.Equal(t, VerdictRequestChanges, fb.Verdict)
	require.Len(t, fb.Comments, 3)
	assert.Equal(t, "a.py", fb.Comments[0].Path)
	assert.Contains(t, fb.Comments[0].Body, "[error/security]")
	assert.Contains(t, fb.Comments[0].Body, "```suggestion")
	assert.Contains(t, fb.Summary, "Reviewed 2 files")

	assert.True(t, h.submitted)
	assert.Equal(t, "acme/widgets", h.submittedRepo)
	assert.Equal(t, "42", h.submittedRef)
}

func TestReviewPullMinSeverityFilter(t *testing.T) {
	p := &scriptedProvider{comments: map[string][]models.Comment{
		"a.py": {
			{LineNumber: 1, Content: "style nit", Severity: models.SeveritySuggestion, Category: models.CategoryStyle},
			{LineNumber: 2, Content: "slow loop", Severity: models.SeverityWarning, Category: models.CategoryPerformance},
		},
	}}
	h := &fakeHost{files: []ChangedFile{{Path: "a.py", Content: "aa"}}}

	pr := newPullReviewer(t, p, h)
	_, fb, err := pr.ReviewPull(context.Background(), "acme/widgets", "42",
		PullOptions{MinSeverity: models.SeverityWarning})
	require.NoError(t, err)

	require.Len(t, fb.Comments, 1)
	assert.Contains(t, fb.Comments[0].Body, "slow loop")
	assert.Equal(t, VerdictComment, fb.Verdict)
}

func TestReviewPullApproveClean(t *testing.T) {
	p := &scriptedProvider{}
	h := &fakeHost{files: []ChangedFile{{Path: "a.py", Content: "aa"}}}

	pr := newPullReviewer(t, p, h)
	_, fb, err := pr.ReviewPull(context.Background(), "acme/widgets", "7",
		PullOptions{ApproveClean: true})
	require.NoError(t, err)
	assert.Equal(t, VerdictApprove, fb.Verdict)
	assert.Empty(t, fb.Comments)

	// Without the flag a clean run stays a comment.
	h2 := &fakeHost{files: []ChangedFile{{Path: "a.py", Content: "aa"}}}
	pr2 := newPullReviewer(t, p, h2)
	_, fb2, err := pr2.ReviewPull(context.Background(), "acme/widgets", "7", PullOptions{})
	require.NoError(t, err)
	assert.Equal(t, VerdictComment, fb2.Verdict)
}

func TestReviewPullNoApproveWithFailures(t *testing.T) {
	p := &scriptedProvider{fail: map[string]error{"a.py": errors.New("backend down")}}
	h := &fakeHost{files: []ChangedFile{{Path: "a.py", Content: "aa"}}}

	pr := newPullReviewer(t, p, h)
	res, fb, err := pr.ReviewPull(context.Background(), "acme/widgets", "7",
		PullOptions{ApproveClean: true})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, VerdictComment, fb.Verdict, "failed files block approval")
	assert.Contains(t, fb.Summary, "could not be reviewed")
}

func TestReviewPullDryRun(t *testing.T) {
	p := &scriptedProvider{}
	h := &fakeHost{files: []ChangedFile{{Path: "a.py", Content: "aa"}}}

	pr := newPullReviewer(t, p, h)
	_, _, err := pr.ReviewPull(context.Background(), "acme/widgets", "42", PullOptions{DryRun: true})
	require.NoError(t, err)
	assert.False(t, h.submitted)
}

func TestReviewPullFetchError(t *testing.T) {
	p := &scriptedProvider{}
	h := &fakeHost{fetchErr: errors.New("not found")}

	pr := newPullReviewer(t, p, h)
	_, _, err := pr.ReviewPull(context.Background(), "acme/widgets", "42", PullOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "acme/widgets#42")
}

func TestReviewPullSubmitError(t *testing.T) {
	p := &scriptedProvider{}
	h := &fakeHost{files: []ChangedFile{{Path: "a.py", Content: "aa"}}, submitErr: errors.New("forbidden")}

	pr := newPullReviewer(t, p, h)
	res, _, err := pr.ReviewPull(context.Background(), "acme/widgets", "42", PullOptions{})
	require.Error(t, err)
	assert.NotNil(t, res, "result survives a submit failure")
}

func TestSplitRepo(t *testing.T) {
	owner, name, err := splitRepo("acme/widgets")
	require.NoError(t, err)
	assert.Equal(t, "acme", owner)
	assert.Equal(t, "widgets", name)

	for _, bad := range []string{"acme", "acme/", "/widgets", "a/b/c", ""} {
		_, _, err := splitRepo(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseRef(t *testing.T) {
	n, err := parseRef("42")
	require.NoError(t, err)
	assert.Equal(t, 42, n)

	n, err = parseRef("#7")
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	for _, bad := range []string{"", "abc", "-1", "0"} {
		_, err := parseRef(bad)
		assert.Error(t, err, bad)
	}
}
