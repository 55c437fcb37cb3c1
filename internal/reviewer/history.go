package reviewer

import (
	"context"
	"time"

	"github.com/revuedev/revue/internal/models"
	"github.com/revuedev/revue/internal/report"
	"github.com/revuedev/revue/internal/store"
)

// FileHistory returns the stored reviews for one file, most recent first.
// An empty rt means all review types.
func (r *Reviewer) FileHistory(ctx context.Context, path string, limit int, rt models.ReviewType) ([]*store.Record, error) {
	if r.store == nil {
		return nil, store.ErrNoStore
	}
	return r.store.FileReviews(ctx, path, limit, rt)
}

// ReviewsBetween returns the stored reviews in [start, end], most recent
// first.
func (r *Reviewer) ReviewsBetween(ctx context.Context, start, end time.Time, rt models.ReviewType) ([]*store.Record, error) {
	if r.store == nil {
		return nil, store.ErrNoStore
	}
	return r.store.ReviewsBetween(ctx, start, end, rt)
}

// GetReview fetches one stored review by ID. Absence is (nil, nil).
func (r *Reviewer) GetReview(ctx context.Context, id string) (*store.Record, error) {
	if r.store == nil {
		return nil, store.ErrNoStore
	}
	return r.store.GetReview(ctx, id)
}

// DeleteReview removes one stored review, reporting whether it existed.
func (r *Reviewer) DeleteReview(ctx context.Context, id string) (bool, error) {
	if r.store == nil {
		return false, store.ErrNoStore
	}
	return r.store.DeleteReview(ctx, id)
}

// CleanupBefore deletes every stored review strictly older than cutoff and
// returns the number deleted.
func (r *Reviewer) CleanupBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if r.store == nil {
		return 0, store.ErrNoStore
	}
	return r.store.CleanupBefore(ctx, cutoff)
}

// FileReport renders the report for one review response.
func (r *Reviewer) FileReport(resp *models.Response, path string, rt models.ReviewType, opt report.RenderOptions) (*report.Report, error) {
	return r.reports.FileReport(resp, path, rt, opt)
}

// BatchReport renders the combined report for a batch result.
func (r *Reviewer) BatchReport(res *Result, rt models.ReviewType, opt report.RenderOptions) (*report.Report, error) {
	return r.reports.BatchReport(res.Reviews, rt, opt)
}

// HistoricalReport queries the store and renders the review history of one
// file.
func (r *Reviewer) HistoricalReport(ctx context.Context, path string, limit int, rt models.ReviewType) (*report.Report, error) {
	records, err := r.FileHistory(ctx, path, limit, rt)
	if err != nil {
		return nil, err
	}
	return r.reports.HistoricalReport(records, path, rt), nil
}

// TrendReport queries the store and renders review activity over a window.
func (r *Reviewer) TrendReport(ctx context.Context, start, end time.Time, rt models.ReviewType) (*report.Report, error) {
	records, err := r.ReviewsBetween(ctx, start, end, rt)
	if err != nil {
		return nil, err
	}
	return r.reports.TrendReport(records, start, end, rt), nil
}
