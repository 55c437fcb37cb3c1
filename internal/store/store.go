// Package store persists review results. The SQLite implementation is the
// shipped default; the interface leaves room for others.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/revuedev/revue/internal/models"
)

var (
	// ErrNoStore is returned by callers that need persistence when none is
	// configured.
	ErrNoStore = errors.New("review store not configured")

	// ErrCorrupt marks a stored record whose payload no longer deserializes.
	ErrCorrupt = errors.New("corrupt review record")
)

// Record is one persisted review. Records are created only by a Store on
// save; the ID is a ULID, lexically ordered by creation time.
type Record struct {
	ID         string
	FilePath   string
	ReviewType models.ReviewType
	Response   *models.Response
	CreatedAt  time.Time
	Metadata   map[string]string
}

// Store defines the persistence interface for reviews.
type Store interface {
	// SaveReview atomically persists one review and returns the new record
	// ID. The record timestamp is the response timestamp when set, else now.
	SaveReview(ctx context.Context, filePath string, rt models.ReviewType,
		resp *models.Response, meta map[string]string) (string, error)

	// GetReview fetches one record by ID. Absence is (nil, nil), not an
	// error.
	GetReview(ctx context.Context, id string) (*Record, error)

	// FileReviews returns the records for one file, most recent first.
	// limit > 0 caps the result; a non-empty rt filters by review type.
	FileReviews(ctx context.Context, filePath string, limit int, rt models.ReviewType) ([]*Record, error)

	// ReviewsBetween returns the records in [start, end], bounds inclusive,
	// most recent first. A non-empty rt filters by review type.
	ReviewsBetween(ctx context.Context, start, end time.Time, rt models.ReviewType) ([]*Record, error)

	// DeleteReview removes one record, reporting whether it existed.
	DeleteReview(ctx context.Context, id string) (bool, error)

	// CleanupBefore deletes every record strictly older than cutoff and
	// returns the number deleted.
	CleanupBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
