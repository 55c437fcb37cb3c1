package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/revuedev/revue/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)

	err = s.Migrate(context.Background())
	require.NoError(t, err)

	t.Cleanup(func() { s.Close() })
	return s
}

func testResponse(summary string, at time.Time) *models.Response {
	score := 0.85
	return &models.Response{
		Summary: summary,
		Comments: []models.Comment{
			{LineNumber: 3, Content: "unchecked error", Severity: models.SeverityWarning, Category: models.CategoryLogic},
			{Content: "tidy file", Severity: models.SeverityPraise, Category: models.CategoryStyle},
		},
		Score:     &score,
		Metadata:  map[string]any{"model": "test-model"},
		Timestamp: at,
	}
}

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "subdir", "test.db")

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(filepath.Join(dir, "subdir"))
	assert.NoError(t, err, "should create parent directory")
}

func TestMigrate_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.Migrate(ctx)
	assert.NoError(t, err)
}

func TestSaveReview_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	resp := testResponse("needs a few fixes", at)

	id, err := s.SaveReview(ctx, "src/auth.go", models.ReviewTypeSecurity, resp,
		map[string]string{"branch": "main", "author": "kim"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	rec, err := s.GetReview(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, rec)

	assert.Equal(t, id, rec.ID)
	assert.Equal(t, "src/auth.go", rec.FilePath)
	assert.Equal(t, models.ReviewTypeSecurity, rec.ReviewType)
	assert.Equal(t, "needs a few fixes", rec.Response.Summary)
	require.Len(t, rec.Response.Comments, 2)
	assert.Equal(t, resp.Comments[0], rec.Response.Comments[0])
	require.NotNil(t, rec.Response.Score)
	assert.Equal(t, 0.85, *rec.Response.Score)
	assert.Equal(t, "test-model", rec.Response.Metadata["model"])
	assert.Equal(t, map[string]string{"branch": "main", "author": "kim"}, rec.Metadata)
	assert.True(t, rec.CreatedAt.Equal(at))
}

func TestSaveReview_NilResponse(t *testing.T) {
	s := newTestStore(t)
	_, err := s.SaveReview(context.Background(), "a.go", models.ReviewTypeFull, nil, nil)
	assert.Error(t, err)
}

func TestGetReview_Absent(t *testing.T) {
	s := newTestStore(t)

	rec, err := s.GetReview(context.Background(), "01JXXXXXXXXXXXXXXXXXXXXXXX")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestFileReviews_OrderLimitFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	// Three reviews of the same file at increasing times, mixed types.
	_, err := s.SaveReview(ctx, "app.py", models.ReviewTypeFull, testResponse("first", base), nil)
	require.NoError(t, err)
	_, err = s.SaveReview(ctx, "app.py", models.ReviewTypeSecurity, testResponse("second", base.Add(time.Hour)), nil)
	require.NoError(t, err)
	_, err = s.SaveReview(ctx, "app.py", models.ReviewTypeFull, testResponse("third", base.Add(2*time.Hour)), nil)
	require.NoError(t, err)
	// Unrelated file.
	_, err = s.SaveReview(ctx, "other.py", models.ReviewTypeFull, testResponse("noise", base), nil)
	require.NoError(t, err)

	recs, err := s.FileReviews(ctx, "app.py", 0, "")
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "third", recs[0].Response.Summary)
	assert.Equal(t, "second", recs[1].Response.Summary)
	assert.Equal(t, "first", recs[2].Response.Summary)

	recs, err = s.FileReviews(ctx, "app.py", 2, "")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "third", recs[0].Response.Summary)

	recs, err = s.FileReviews(ctx, "app.py", 0, models.ReviewTypeSecurity)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "second", recs[0].Response.Summary)

	recs, err = s.FileReviews(ctx, "missing.py", 0, "")
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestReviewsBetween_InclusiveBounds(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	times := []time.Time{base, base.Add(time.Hour), base.Add(2 * time.Hour)}
	for i, at := range times {
		_, err := s.SaveReview(ctx, "f.go", models.ReviewTypeFull, testResponse(string(rune('a'+i)), at), nil)
		require.NoError(t, err)
	}

	// Bounds land exactly on the first two records; both are included.
	recs, err := s.ReviewsBetween(ctx, times[0], times[1], "")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "b", recs[0].Response.Summary)
	assert.Equal(t, "a", recs[1].Response.Summary)

	recs, err = s.ReviewsBetween(ctx, base.Add(-time.Hour), base.Add(-time.Minute), "")
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestDeleteReview(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.SaveReview(ctx, "d.go", models.ReviewTypeFull,
		testResponse("doomed", time.Now().UTC()), nil)
	require.NoError(t, err)

	deleted, err := s.DeleteReview(ctx, id)
	require.NoError(t, err)
	assert.True(t, deleted)

	rec, err := s.GetReview(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, rec)

	deleted, err = s.DeleteReview(ctx, id)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestCleanupBefore_StrictlyOlder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	cutoff := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

	_, err := s.SaveReview(ctx, "old.go", models.ReviewTypeFull,
		testResponse("old", cutoff.Add(-time.Hour)), nil)
	require.NoError(t, err)
	_, err = s.SaveReview(ctx, "edge.go", models.ReviewTypeFull,
		testResponse("at cutoff", cutoff), nil)
	require.NoError(t, err)
	newID, err := s.SaveReview(ctx, "new.go", models.ReviewTypeFull,
		testResponse("new", cutoff.Add(time.Hour)), nil)
	require.NoError(t, err)

	n, err := s.CleanupBefore(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	// The record at the cutoff instant survives.
	recs, err := s.FileReviews(ctx, "edge.go", 0, "")
	require.NoError(t, err)
	assert.Len(t, recs, 1)

	rec, err := s.GetReview(ctx, newID)
	require.NoError(t, err)
	assert.NotNil(t, rec)

	recs, err = s.FileReviews(ctx, "old.go", 0, "")
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestGetReview_Corrupt(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.SaveReview(ctx, "c.go", models.ReviewTypeFull,
		testResponse("fine", time.Now().UTC()), nil)
	require.NoError(t, err)

	_, err = s.db.ExecContext(ctx, "UPDATE reviews SET response = 'not json' WHERE id = ?", id)
	require.NoError(t, err)

	_, err = s.GetReview(ctx, id)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCorrupt)
}
