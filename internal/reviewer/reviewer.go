// Package reviewer orchestrates code reviews: it drives a provider, caches
// responses, persists results best-effort, and fans out batch work under a
// concurrency bound.
package reviewer

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/revuedev/revue/internal/models"
	"github.com/revuedev/revue/internal/provider"
	"github.com/revuedev/revue/internal/report"
	"github.com/revuedev/revue/internal/store"
)

// DefaultMaxConcurrent bounds parallel provider calls in a batch.
const DefaultMaxConcurrent = 3

// Options configures a Reviewer. Zero values get working defaults.
type Options struct {
	Store           store.Store       // nil disables persistence and history
	Reports         *report.Generator // nil builds one over the builtin templates
	DefaultType     models.ReviewType // zero value means full
	DefaultSettings *models.Settings  // nil means models.DefaultSettings()
	MaxConcurrent   int               // zero means DefaultMaxConcurrent
	CacheTTL        time.Duration     // zero disables the response cache
	CacheSize       int               // max cached responses, zero means unbounded
	Logger          *slog.Logger      // nil means slog.Default()
}

// ContextMeta is the optional surrounding information for one review.
type ContextMeta struct {
	Diff         string
	Language     string
	Repository   string
	BaseBranch   string
	CommitHash   string
	Author       string
	ChangedFiles []string
}

// ReviewOptions tunes a single file review.
type ReviewOptions struct {
	Type     models.ReviewType // zero value uses the reviewer default
	Settings *models.Settings  // nil uses the reviewer default
	Persist  bool              // save the result when a store is configured
	Meta     ContextMeta
	Metadata map[string]string // extra tags stored with the record
}

// Reviewer runs reviews through a provider and coordinates storage, caching,
// and reporting.
type Reviewer struct {
	provider provider.Provider
	store    store.Store
	reports  *report.Generator
	opts     Options
	cache    *gocache.Cache
	logger   *slog.Logger
}

// New creates a Reviewer. The provider is required; everything else in opts
// is optional.
func New(p provider.Provider, opts Options) (*Reviewer, error) {
	if p == nil {
		return nil, fmt.Errorf("reviewer: provider is required")
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = DefaultMaxConcurrent
	}
	if opts.DefaultType == "" {
		opts.DefaultType = models.ReviewTypeFull
	}
	if opts.DefaultSettings == nil {
		opts.DefaultSettings = models.DefaultSettings()
	}
	if opts.Reports == nil {
		opts.Reports = report.NewGenerator(nil)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	var rc *gocache.Cache
	if opts.CacheTTL > 0 {
		rc = gocache.New(opts.CacheTTL, 2*opts.CacheTTL)
	}

	return &Reviewer{
		provider: p,
		store:    opts.Store,
		reports:  opts.Reports,
		opts:     opts,
		cache:    rc,
		logger:   opts.Logger,
	}, nil
}

// Provider returns the provider this reviewer drives.
func (r *Reviewer) Provider() provider.Provider { return r.provider }

// Reports returns the report generator.
func (r *Reviewer) Reports() *report.Generator { return r.reports }

// SetDefaultSettings replaces the default review settings.
func (r *Reviewer) SetDefaultSettings(s *models.Settings) {
	if s != nil {
		r.opts.DefaultSettings = s
	}
}

// ReviewFile reviews one file. It returns the response and the stored record
// ID, which is empty when the review was not persisted. A storage failure is
// logged and swallowed; the review still succeeds.
func (r *Reviewer) ReviewFile(ctx context.Context, path, content string, opt ReviewOptions) (*models.Response, string, error) {
	rt := opt.Type
	if rt == "" {
		rt = r.opts.DefaultType
	}
	settings := opt.Settings
	if settings == nil {
		settings = r.opts.DefaultSettings
	}

	var key string
	if r.cache != nil {
		key = r.cacheKey(rt, settings, content, opt.Meta.Diff)
		if v, ok := r.cache.Get(key); ok {
			if cached, ok := v.(*models.Response); ok {
				r.logger.Debug("review cache hit", "file", path, "type", rt)
				resp := cloneResponse(cached)
				return resp, r.persist(ctx, path, rt, resp, opt), nil
			}
		}
	}

	req := &models.Request{
		Context: models.CodeContext{
			FilePath:     path,
			Content:      content,
			Diff:         opt.Meta.Diff,
			Language:     opt.Meta.Language,
			Repository:   opt.Meta.Repository,
			BaseBranch:   opt.Meta.BaseBranch,
			CommitHash:   opt.Meta.CommitHash,
			Author:       opt.Meta.Author,
			ChangedFiles: opt.Meta.ChangedFiles,
		},
		Type:     rt,
		Settings: settings,
	}

	resp, err := r.provider.GenerateReview(ctx, req)
	if err != nil {
		return nil, "", fmt.Errorf("review %s: %w", path, err)
	}

	if key != "" {
		r.cacheResponse(key, resp)
	}
	return resp, r.persist(ctx, path, rt, resp, opt), nil
}

// persist saves a successful review best-effort and returns the record ID,
// or "" when persistence is off or the save failed.
func (r *Reviewer) persist(ctx context.Context, path string, rt models.ReviewType, resp *models.Response, opt ReviewOptions) string {
	if !opt.Persist || r.store == nil {
		return ""
	}
	id, err := r.store.SaveReview(ctx, path, rt, resp, opt.Metadata)
	if err != nil {
		r.logger.Warn("failed to save review", "file", path, "error", err)
		return ""
	}
	return id
}

// cacheKey fingerprints everything that determines a provider answer.
func (r *Reviewer) cacheKey(rt models.ReviewType, s *models.Settings, content, diff string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00", r.provider.Name(), rt)
	fmt.Fprintf(h, "%d\x00%s\x00%v\x00", s.MaxComments, s.MinSeverity, s.IncludePraise)
	fmt.Fprintf(h, "%s\x00%s\x00%s\x00",
		strings.Join(s.FocusAreas, ","), strings.Join(s.IgnorePatterns, ","), strings.Join(s.CustomRules, ","))
	h.Write([]byte(content))
	h.Write([]byte{0})
	h.Write([]byte(diff))
	return fmt.Sprintf("%x", h.Sum(nil))
}

func (r *Reviewer) cacheResponse(key string, resp *models.Response) {
	// go-cache has no eviction policy, so enforce the size cap by hand.
	if r.opts.CacheSize > 0 && r.cache.ItemCount() >= r.opts.CacheSize {
		r.cache.DeleteExpired()
		if r.cache.ItemCount() >= r.opts.CacheSize {
			r.cache.Flush()
		}
	}
	r.cache.Set(key, cloneResponse(resp), gocache.DefaultExpiration)
}

// cloneResponse copies a response so cache entries stay isolated from
// callers.
func cloneResponse(resp *models.Response) *models.Response {
	out := *resp
	if resp.Comments != nil {
		out.Comments = make([]models.Comment, len(resp.Comments))
		copy(out.Comments, resp.Comments)
	}
	if resp.Metadata != nil {
		out.Metadata = make(map[string]any, len(resp.Metadata))
		for k, v := range resp.Metadata {
			out.Metadata[k] = v
		}
	}
	if resp.Score != nil {
		score := *resp.Score
		out.Score = &score
	}
	return &out
}
