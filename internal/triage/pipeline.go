package triage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ProgressFunc receives the completed fraction of a run, monotonically
// increasing in [0,1].
type ProgressFunc func(fraction float64)

// Pipeline drives batch triage: chunk the pending emails, build one
// multimodal request per chunk, invoke the gateway, parse and reconcile the
// response, and persist one result per email. Batches run strictly
// sequentially; a failed batch degrades to defaults and never stops the
// batches after it.
type Pipeline struct {
	gateway Gateway
	store   ResultStore
	fetcher ImageFetcher
	log     *zap.Logger
}

func NewPipeline(gateway Gateway, store ResultStore, fetcher ImageFetcher, log *zap.Logger) *Pipeline {
	return &Pipeline{
		gateway: gateway,
		store:   store,
		fetcher: fetcher,
		log:     log,
	}
}

// Run processes every item in batches of at most batchSize, in input order.
// Each item receives exactly one store update: model-provided fields when
// the response contains its id, the default tuple otherwise. Gateway and
// parse failures are absorbed per batch; the only errors returned are an
// invalid batch size and context cancellation between batches.
func (p *Pipeline) Run(ctx context.Context, items []WorkItem, prompts Prompts, batchSize int, onProgress ProgressFunc) error {
	if batchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", batchSize)
	}

	runID := uuid.NewString()
	log := p.log.With(zap.String("run_id", runID))
	total := len(items)
	log.Info("triage run start", zap.Int("emails", total), zap.Int("batch_size", batchSize))

	processed := 0
	for i, batch := range Chunk(items, batchSize) {
		// The smallest cancellable unit is "before the next batch".
		if err := ctx.Err(); err != nil {
			return err
		}

		blog := log.With(zap.Int("batch", i+1), zap.Int("batch_len", len(batch)))
		start := time.Now()

		parts := BuildRequest(ctx, batch, prompts, p.fetcher, blog)

		results := map[string]Result{}
		raw, err := p.gateway.Generate(ctx, parts)
		if err != nil {
			blog.Error("gateway call failed, batch degrades to defaults", zap.Error(err))
		} else {
			results = ParseResults(raw, blog)
		}

		// Reconcile: every item in the batch gets exactly one update. Ids
		// returned by the model that are not in this batch are dropped.
		defaulted := 0
		for _, item := range batch {
			res, ok := results[item.ID]
			if !ok {
				res = DefaultResult()
				defaulted++
			} else {
				res = normalize(res)
			}
			if err := p.store.UpdateResult(ctx, item.ID, res); err != nil {
				blog.Error("result update failed",
					zap.String("email_id", item.ID),
					zap.Error(err))
			}
			processed++
		}

		if onProgress != nil {
			onProgress(min(1.0, float64(processed)/float64(total)))
		}
		blog.Info("batch complete",
			zap.Int("defaulted", defaulted),
			zap.Int("processed", processed),
			zap.Int("total", total),
			zap.Duration("duration", time.Since(start).Round(time.Millisecond)))
	}

	if total == 0 && onProgress != nil {
		onProgress(1.0)
	}
	log.Info("triage run complete", zap.Int("emails", total))
	return nil
}

// normalize applies per-field defaults to a model-provided result so the
// persisted row never carries empty-for-missing ambiguity in the category or
// a nil action item list.
func normalize(res Result) Result {
	if res.Category == "" {
		res.Category = DefaultCategory
	}
	if res.ActionItems == nil {
		res.ActionItems = []string{}
	}
	return res
}
