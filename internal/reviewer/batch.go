package reviewer

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/revuedev/revue/internal/models"
)

// BatchOptions tunes a batch review. Meta applies to every file; per-file
// diffs come from the ChangedFile entries.
type BatchOptions struct {
	Type          models.ReviewType
	Settings      *models.Settings
	Persist       bool
	MaxConcurrent int // overrides the reviewer bound for this batch
	Meta          ContextMeta
	Metadata      map[string]string
}

// ChangedFile is one file of a change set: full content plus its diff.
type ChangedFile struct {
	Content string
	Diff    string
}

// ReviewFiles reviews a set of files concurrently. Per-file failures land in
// Result.Errors and never abort the batch.
func (r *Reviewer) ReviewFiles(ctx context.Context, files map[string]string, opt BatchOptions) *Result {
	changes := make(map[string]ChangedFile, len(files))
	for path, content := range files {
		changes[path] = ChangedFile{Content: content}
	}
	return r.runBatch(ctx, changes, opt)
}

// ReviewChanges reviews a change set concurrently, threading each file's diff
// and the base branch into the review context.
func (r *Reviewer) ReviewChanges(ctx context.Context, changes map[string]ChangedFile, baseBranch string, opt BatchOptions) *Result {
	if baseBranch != "" {
		opt.Meta.BaseBranch = baseBranch
	}
	return r.runBatch(ctx, changes, opt)
}

func (r *Reviewer) runBatch(ctx context.Context, changes map[string]ChangedFile, opt BatchOptions) *Result {
	res := newResult(len(changes))
	if len(changes) == 0 {
		res.FinishedAt = time.Now().UTC()
		return res
	}

	bound := opt.MaxConcurrent
	if bound <= 0 {
		bound = r.opts.MaxConcurrent
	}

	paths := make([]string, 0, len(changes))
	for path := range changes {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	type outcome struct {
		resp *models.Response
		id   string
		err  error
	}
	outcomes := make([]outcome, len(paths))

	var wg sync.WaitGroup
	sem := make(chan struct{}, bound)

	for i, path := range paths {
		wg.Add(1)
		go func(i int, path string, cf ChangedFile) {
			defer wg.Done()
			sem <- struct{}{}        // acquire
			defer func() { <-sem }() // release

			if err := ctx.Err(); err != nil {
				outcomes[i] = outcome{err: err}
				return
			}

			fileOpt := ReviewOptions{
				Type:     opt.Type,
				Settings: opt.Settings,
				Persist:  opt.Persist,
				Meta:     opt.Meta,
				Metadata: withBatchID(opt.Metadata, res.BatchID),
			}
			fileOpt.Meta.Diff = cf.Diff
			fileOpt.Meta.ChangedFiles = siblings(paths, path)

			resp, id, err := r.ReviewFile(ctx, path, cf.Content, fileOpt)
			outcomes[i] = outcome{resp: resp, id: id, err: err}
		}(i, path, changes[path])
	}
	wg.Wait()

	for i, path := range paths {
		oc := outcomes[i]
		if oc.err != nil {
			res.Errors[path] = oc.err.Error()
			res.Failed++
			continue
		}
		res.Reviews[path] = oc.resp
		res.Succeeded++
		if oc.id != "" {
			res.ReviewIDs[path] = oc.id
		}
	}
	res.FinishedAt = time.Now().UTC()

	r.logger.Debug("batch review finished",
		"batch", res.BatchID, "total", res.TotalFiles, "failed", res.Failed)
	return res
}

func withBatchID(meta map[string]string, batchID string) map[string]string {
	out := make(map[string]string, len(meta)+1)
	for k, v := range meta {
		out[k] = v
	}
	out["batch_id"] = batchID
	return out
}

func siblings(paths []string, self string) []string {
	if len(paths) <= 1 {
		return nil
	}
	out := make([]string, 0, len(paths)-1)
	for _, p := range paths {
		if p != self {
			out = append(out, p)
		}
	}
	return out
}
