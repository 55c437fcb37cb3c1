package reviewer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/revuedev/revue/internal/models"
	"github.com/revuedev/revue/internal/store"
)

// fakeProvider is an instrumented provider for orchestration tests.
type fakeProvider struct {
	mu       sync.Mutex
	calls    int
	requests []*models.Request

	inFlight int32
	maxSeen  int32
	delay    time.Duration
	fail     map[string]error // path -> error to return
}

func (f *fakeProvider) GenerateReview(ctx context.Context, req *models.Request) (*models.Response, error) {
	cur := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)
	for {
		seen := atomic.LoadInt32(&f.maxSeen)
		if cur <= seen || atomic.CompareAndSwapInt32(&f.maxSeen, seen, cur) {
			break
		}
	}

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	f.calls++
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if err, ok := f.fail[req.Context.FilePath]; ok {
		return nil, err
	}

	score := 0.8
	return &models.Response{
		Summary: "reviewed " + req.Context.FilePath,
		Comments: []models.Comment{
			{LineNumber: 1, Content: "finding", Severity: models.SeverityWarning, Category: models.CategoryLogic},
		},
		Score:     &score,
		Timestamp: time.Now().UTC(),
	}, nil
}

func (f *fakeProvider) ValidateConfiguration(ctx context.Context) bool { return true }
func (f *fakeProvider) TokenLimit() int                                { return 100000 }
func (f *fakeProvider) EstimateTokens(text string) int                 { return len(text) / 4 }
func (f *fakeProvider) Name() string                                   { return "fake" }

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// failingStore rejects every save; reads are empty.
type failingStore struct{}

func (failingStore) SaveReview(context.Context, string, models.ReviewType, *models.Response, map[string]string) (string, error) {
	return "", errors.New("disk full")
}
func (failingStore) GetReview(context.Context, string) (*store.Record, error) { return nil, nil }
func (failingStore) FileReviews(context.Context, string, int, models.ReviewType) ([]*store.Record, error) {
	return nil, nil
}
func (failingStore) ReviewsBetween(context.Context, time.Time, time.Time, models.ReviewType) ([]*store.Record, error) {
	return nil, nil
}
func (failingStore) DeleteReview(context.Context, string) (bool, error)      { return false, nil }
func (failingStore) CleanupBefore(context.Context, time.Time) (int64, error) { return 0, nil }
func (failingStore) Migrate(context.Context) error                           { return nil }
func (failingStore) Close() error                                            { return nil }

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "revue.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewRequiresProvider(t *testing.T) {
	_, err := New(nil, Options{})
	require.Error(t, err)
}

func TestReviewFilePersists(t *testing.T) {
	fp := &fakeProvider{}
	r, err := New(fp, Options{Store: newTestStore(t)})
	require.NoError(t, err)

	resp, id, err := r.ReviewFile(context.Background(), "src/app.py", "print('hi')\n", ReviewOptions{Persist: true})
	require.NoError(t, err)
	require.NotNil(t, resp)
	require.NotEmpty(t, id)

	rec, err := r.GetReview(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "src/app.py", rec.FilePath)
	assert.Equal(t, models.ReviewTypeFull, rec.ReviewType)
	assert.Equal(t, resp.Summary, rec.Response.Summary)
}

func TestReviewFileWithoutPersist(t *testing.T) {
	fp := &fakeProvider{}
	r, err := New(fp, Options{Store: newTestStore(t)})
	require.NoError(t, err)

	_, id, err := r.ReviewFile(context.Background(), "src/app.py", "code", ReviewOptions{})
	require.NoError(t, err)
	assert.Empty(t, id)
}

func TestReviewFileBestEffortSave(t *testing.T) {
	fp := &fakeProvider{}
	r, err := New(fp, Options{Store: failingStore{}})
	require.NoError(t, err)

	resp, id, err := r.ReviewFile(context.Background(), "src/app.py", "code", ReviewOptions{Persist: true})
	require.NoError(t, err, "storage failure must not fail the review")
	require.NotNil(t, resp)
	assert.Empty(t, id)
}

func TestReviewFileProviderError(t *testing.T) {
	fp := &fakeProvider{fail: map[string]error{"bad.py": errors.New("backend down")}}
	r, err := New(fp, Options{})
	require.NoError(t, err)

	_, _, err = r.ReviewFile(context.Background(), "bad.py", "code", ReviewOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.py")
}

func TestReviewFileDefaults(t *testing.T) {
	fp := &fakeProvider{}
	r, err := New(fp, Options{DefaultType: models.ReviewTypeSecurity})
	require.NoError(t, err)

	_, _, err = r.ReviewFile(context.Background(), "src/app.py", "code", ReviewOptions{})
	require.NoError(t, err)

	req := fp.requests[0]
	assert.Equal(t, models.ReviewTypeSecurity, req.Type)
	require.NotNil(t, req.Settings)
	assert.Equal(t, models.DefaultSettings().MaxComments, req.Settings.MaxComments)
}

func TestReviewFileCacheHit(t *testing.T) {
	fp := &fakeProvider{}
	r, err := New(fp, Options{CacheTTL: time.Minute})
	require.NoError(t, err)

	first, _, err := r.ReviewFile(context.Background(), "src/app.py", "same content", ReviewOptions{})
	require.NoError(t, err)
	second, _, err := r.ReviewFile(context.Background(), "src/app.py", "same content", ReviewOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1, fp.callCount(), "second review should come from cache")
	assert.Equal(t, first.Summary, second.Summary)
	assert.NotSame(t, first, second, "cache hands out copies")

	// Different content misses.
	_, _, err = r.ReviewFile(context.Background(), "src/app.py", "other content", ReviewOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, fp.callCount())
}

func TestReviewFilesConcurrencyCap(t *testing.T) {
	fp := &fakeProvider{delay: 20 * time.Millisecond}
	r, err := New(fp, Options{MaxConcurrent: 3})
	require.NoError(t, err)

	files := make(map[string]string, 20)
	for i := 0; i < 20; i++ {
		files[fmt.Sprintf("src/file%02d.py", i)] = "content"
	}

	res := r.ReviewFiles(context.Background(), files, BatchOptions{})
	assert.Equal(t, 20, res.Succeeded)
	assert.LessOrEqual(t, atomic.LoadInt32(&fp.maxSeen), int32(3),
		"no more than MaxConcurrent provider calls in flight")
}

func TestReviewFilesMixedBatch(t *testing.T) {
	fp := &fakeProvider{fail: map[string]error{"b.py": errors.New("backend down")}}
	r, err := New(fp, Options{Store: newTestStore(t)})
	require.NoError(t, err)

	res := r.ReviewFiles(context.Background(), map[string]string{
		"a.py": "aa", "b.py": "bb", "c.py": "cc",
	}, BatchOptions{Persist: true})

	assert.Equal(t, 3, res.TotalFiles)
	assert.Equal(t, 2, res.Succeeded)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, res.TotalFiles, res.Succeeded+res.Failed)
	assert.False(t, res.FinishedAt.IsZero())

	assert.Contains(t, res.Reviews, "a.py")
	assert.Contains(t, res.Reviews, "c.py")
	assert.NotContains(t, res.Reviews, "b.py")
	require.Contains(t, res.Errors, "b.py")
	assert.Contains(t, res.Errors["b.py"], "backend down")
	assert.Len(t, res.Errors, 1)

	assert.Contains(t, res.ReviewIDs, "a.py")
	assert.Contains(t, res.ReviewIDs, "c.py")
	assert.NotEmpty(t, res.BatchID)
}

func TestReviewFilesEmpty(t *testing.T) {
	fp := &fakeProvider{}
	r, err := New(fp, Options{})
	require.NoError(t, err)

	res := r.ReviewFiles(context.Background(), nil, BatchOptions{})
	assert.Equal(t, 0, res.TotalFiles)
	assert.False(t, res.FinishedAt.IsZero())
	assert.Equal(t, 0, fp.callCount())
}

func TestReviewFilesFailingStoreKeepsReviews(t *testing.T) {
	fp := &fakeProvider{}
	r, err := New(fp, Options{Store: failingStore{}})
	require.NoError(t, err)

	res := r.ReviewFiles(context.Background(), map[string]string{"a.py": "aa"}, BatchOptions{Persist: true})
	assert.Equal(t, 1, res.Succeeded)
	assert.Empty(t, res.ReviewIDs, "failed saves leave no IDs behind")
}

func TestReviewChangesThreadsContext(t *testing.T) {
	fp := &fakeProvider{}
	r, err := New(fp, Options{})
	require.NoError(t, err)

	changes := map[string]ChangedFile{
		"a.py": {Content: "aa", Diff: "@@ -1 +1 @@"},
		"b.py": {Content: "bb"},
	}
	res := r.ReviewChanges(context.Background(), changes, "main", BatchOptions{})
	require.Equal(t, 2, res.Succeeded)

	for _, req := range fp.requests {
		assert.Equal(t, "main", req.Context.BaseBranch)
		switch req.Context.FilePath {
		case "a.py":
			assert.Equal(t, "@@ -1 +1 @@", req.Context.Diff)
			assert.Equal(t, []string{"b.py"}, req.Context.ChangedFiles)
		case "b.py":
			assert.Empty(t, req.Context.Diff)
			assert.Equal(t, []string{"a.py"}, req.Context.ChangedFiles)
		}
	}
}

func TestBatchCancellation(t *testing.T) {
	fp := &fakeProvider{delay: time.Second}
	r, err := New(fp, Options{MaxConcurrent: 1})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	res := r.ReviewFiles(ctx, map[string]string{
		"a.py": "aa", "b.py": "bb", "c.py": "cc", "d.py": "dd",
	}, BatchOptions{})

	assert.Equal(t, res.TotalFiles, res.Succeeded+res.Failed,
		"every task records an outcome even under cancellation")
	assert.GreaterOrEqual(t, res.Failed, 1)
	assert.False(t, res.FinishedAt.IsZero())
}

func TestHistoryWithoutStore(t *testing.T) {
	fp := &fakeProvider{}
	r, err := New(fp, Options{})
	require.NoError(t, err)

	ctx := context.Background()
	_, err = r.FileHistory(ctx, "a.py", 0, "")
	assert.ErrorIs(t, err, store.ErrNoStore)
	_, err = r.GetReview(ctx, "someid")
	assert.ErrorIs(t, err, store.ErrNoStore)
	_, err = r.CleanupBefore(ctx, time.Now())
	assert.ErrorIs(t, err, store.ErrNoStore)
	_, err = r.HistoricalReport(ctx, "a.py", 0, "")
	assert.ErrorIs(t, err, store.ErrNoStore)
}

func TestHistoryRoundTrip(t *testing.T) {
	fp := &fakeProvider{}
	r, err := New(fp, Options{Store: newTestStore(t)})
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, _, err := r.ReviewFile(ctx, "src/app.py", fmt.Sprintf("rev %d", i), ReviewOptions{Persist: true})
		require.NoError(t, err)
	}

	records, err := r.FileHistory(ctx, "src/app.py", 2, "")
	require.NoError(t, err)
	assert.Len(t, records, 2)

	rep, err := r.HistoricalReport(ctx, "src/app.py", 0, "")
	require.NoError(t, err)
	assert.Contains(t, rep.Markdown(), "| Total Reviews | 3 |")
}

func TestResultCriticalIssues(t *testing.T) {
	res := newResult(2)
	res.Reviews["b.py"] = &models.Response{Comments: []models.Comment{
		{LineNumber: 5, Content: "bad", Severity: models.SeverityError, Category: models.CategorySecurity},
	}}
	res.Reviews["a.py"] = &models.Response{Comments: []models.Comment{
		{LineNumber: 9, Content: "worse", Severity: models.SeverityError, Category: models.CategoryLogic},
		{LineNumber: 1, Content: "fine", Severity: models.SeverityPraise, Category: models.CategoryStyle},
	}}
	res.Succeeded = 2
	res.FinishedAt = res.StartedAt.Add(time.Second)

	issues := res.CriticalIssues()
	require.Len(t, issues, 2)
	assert.Equal(t, "a.py", issues[0].Path)
	assert.Equal(t, "b.py", issues[1].Path)
	assert.Contains(t, res.Summary(), "2 critical issues")
	assert.Equal(t, time.Second, res.Duration())
}
