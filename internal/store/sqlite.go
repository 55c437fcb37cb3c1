package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/revuedev/revue/internal/models"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements Store using modernc.org/sqlite (pure Go, no CGO).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at the given path.
// ":memory:" is accepted for throwaway stores.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		// Ensure parent directory exists
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite only supports one concurrent writer. Limiting to a single
	// connection serializes all DB access through Go's connection pool,
	// preventing "database is locked" errors from concurrent review saves.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	// Set busy timeout so concurrent writes wait instead of failing immediately
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// newULID generates a new ULID string. ulid.Make is safe for the concurrent
// saves a review batch produces.
func newULID() string {
	return ulid.Make().String()
}

// Migrate runs all embedded SQL migration files in order.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()

		var count int
		err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE filename = ?", name).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}

		if _, err := s.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}

		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (filename) VALUES (?)", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveReview persists one review and returns the new record ID.
func (s *SQLiteStore) SaveReview(ctx context.Context, filePath string, rt models.ReviewType,
	resp *models.Response, meta map[string]string) (string, error) {
	if resp == nil {
		return "", fmt.Errorf("save review: nil response")
	}

	id := newULID()
	createdAt := resp.Timestamp
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	createdAt = createdAt.UTC()

	respJSON, err := json.Marshal(resp)
	if err != nil {
		return "", fmt.Errorf("serialize review: %w", err)
	}

	var metaJSON any
	if len(meta) > 0 {
		b, err := json.Marshal(meta)
		if err != nil {
			return "", fmt.Errorf("serialize metadata: %w", err)
		}
		metaJSON = string(b)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO reviews (id, file_path, review_type, response, created_at, metadata)
		VALUES (?, ?, ?, ?, ?, ?)`,
		id, filePath, string(rt), string(respJSON), createdAt, metaJSON,
	)
	if err != nil {
		return "", fmt.Errorf("save review: %w", err)
	}
	return id, nil
}

// GetReview fetches one record by ID. A missing ID returns (nil, nil).
func (s *SQLiteStore) GetReview(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, file_path, review_type, response, created_at, metadata
		FROM reviews WHERE id = ?`, id)

	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get review: %w", err)
	}
	return rec, nil
}

// FileReviews returns the records for one file, most recent first.
func (s *SQLiteStore) FileReviews(ctx context.Context, filePath string, limit int, rt models.ReviewType) ([]*Record, error) {
	query := `SELECT id, file_path, review_type, response, created_at, metadata
		FROM reviews WHERE file_path = ?`
	args := []any{filePath}

	if rt != "" {
		query += " AND review_type = ?"
		args = append(args, string(rt))
	}
	query += " ORDER BY created_at DESC, id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	return s.queryRecords(ctx, query, args...)
}

// ReviewsBetween returns the records in [start, end], bounds inclusive,
// most recent first.
func (s *SQLiteStore) ReviewsBetween(ctx context.Context, start, end time.Time, rt models.ReviewType) ([]*Record, error) {
	query := `SELECT id, file_path, review_type, response, created_at, metadata
		FROM reviews WHERE created_at BETWEEN ? AND ?`
	args := []any{start.UTC(), end.UTC()}

	if rt != "" {
		query += " AND review_type = ?"
		args = append(args, string(rt))
	}
	query += " ORDER BY created_at DESC, id DESC"

	return s.queryRecords(ctx, query, args...)
}

// DeleteReview removes one record, reporting whether it existed.
func (s *SQLiteStore) DeleteReview(ctx context.Context, id string) (bool, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM reviews WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("delete review: %w", err)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

// CleanupBefore deletes every record strictly older than cutoff.
func (s *SQLiteStore) CleanupBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM reviews WHERE created_at < ?", cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("cleanup reviews: %w", err)
	}
	return result.RowsAffected()
}

// queryRecords runs a record SELECT and scans all rows.
func (s *SQLiteStore) queryRecords(ctx context.Context, query string, args ...any) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query reviews: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// scanner abstracts sql.Row and sql.Rows for scanRecord.
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (*Record, error) {
	rec := &Record{}
	var reviewType, respJSON string
	var metaJSON sql.NullString

	if err := sc.Scan(&rec.ID, &rec.FilePath, &reviewType, &respJSON, &rec.CreatedAt, &metaJSON); err != nil {
		return nil, err
	}

	rec.ReviewType = models.ReviewType(reviewType)

	resp := &models.Response{}
	if err := json.Unmarshal([]byte(respJSON), resp); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, rec.ID, err)
	}
	rec.Response = resp

	if metaJSON.Valid && metaJSON.String != "" {
		meta := make(map[string]string)
		if err := json.Unmarshal([]byte(metaJSON.String), &meta); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, rec.ID, err)
		}
		rec.Metadata = meta
	}

	return rec, nil
}
