package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/una-transcript/internal/config"
	"github.com/stemsi/una-transcript/internal/scraper"
	"github.com/stemsi/una-transcript/internal/service"
)

const (
	PrewarmBatchSize    = 8
	PrewarmBatchTimeout = 2 * time.Second
	PrewarmPollTimeout  = 1 * time.Second
	PrewarmMaxAttempts  = 3
)

// Prefetcher fills the transcript cache for a batch of IDs.
type Prefetcher interface {
	GetMany(ctx context.Context, ids []string, limit int) []service.BatchResult
}

type prewarmPayload struct {
	StudentID  string    `json:"student_id"`
	Attempt    int       `json:"attempt"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// PrewarmQueue is the producer side of the Redis list consumed by PrewarmWorker.
type PrewarmQueue struct {
	rdb *redis.Client
}

func NewPrewarmQueue(rdb *redis.Client) *PrewarmQueue {
	return &PrewarmQueue{rdb: rdb}
}

// Enqueue pushes every ID in one round trip.
func (q *PrewarmQueue) Enqueue(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	now := time.Now().UTC()
	values := make([]any, 0, len(ids))
	for _, id := range ids {
		raw, err := json.Marshal(prewarmPayload{StudentID: id, EnqueuedAt: now})
		if err != nil {
			return err
		}
		values = append(values, raw)
	}
	if err := q.rdb.RPush(ctx, config.WorkerKey.PrewarmQueue, values...).Err(); err != nil {
		return fmt.Errorf("enqueue prewarm: %w", err)
	}
	return nil
}

// Len is the number of IDs waiting to be scraped.
func (q *PrewarmQueue) Len(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, config.WorkerKey.PrewarmQueue).Result()
}

// PrewarmWorker scrapes queued students in the background so that later
// requests hit the cache.
type PrewarmWorker struct {
	rdb         *redis.Client
	prefetcher  Prefetcher
	concurrency int
	log         zerolog.Logger
}

func NewPrewarmWorker(rdb *redis.Client, prefetcher Prefetcher, concurrency int, log zerolog.Logger) *PrewarmWorker {
	return &PrewarmWorker{
		rdb:         rdb,
		prefetcher:  prefetcher,
		concurrency: concurrency,
		log:         log.With().Str("component", "prewarm_worker").Logger(),
	}
}

// ----------------------------------------------------------------
// Worker loop with batching
// ----------------------------------------------------------------

// Start consumes the queue until ctx is cancelled. IDs already popped when
// shutdown is requested are pushed back rather than scraped.
func (w *PrewarmWorker) Start(ctx context.Context) {
	w.log.Info().Msg("PrewarmWorker started")

	batch := make([]*prewarmPayload, 0, PrewarmBatchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= PrewarmBatchSize || time.Since(lastFlush) >= PrewarmBatchTimeout) {

			w.flush(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Int("pending", len(batch)).Msg("Shutdown requested. Requeueing pending IDs...")
			w.requeue(context.Background(), batch)
			return

		default:
			item, err := w.rdb.BLPop(ctx, PrewarmPollTimeout, config.WorkerKey.PrewarmQueue).Result()
			if err != nil {
				if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
					sleep(ctx, PrewarmPollTimeout)
				}
				continue
			}

			if len(item) < 2 {
				continue
			}

			var p prewarmPayload
			if err := json.Unmarshal([]byte(item[1]), &p); err != nil {
				w.log.Error().Err(err).Msg("Invalid JSON payload")
				continue
			}

			batch = append(batch, &p)
		}
	}
}

// flush scrapes one batch. Timeouts are retried up to PrewarmMaxAttempts;
// every other failure is final.
func (w *PrewarmWorker) flush(ctx context.Context, batch []*prewarmPayload) {
	ids := make([]string, len(batch))
	for i, p := range batch {
		ids[i] = p.StudentID
	}

	results := w.prefetcher.GetMany(ctx, ids, w.concurrency)

	var retry []*prewarmPayload
	warmed := 0
	for i, r := range results {
		switch {
		case r.Err == nil:
			warmed++
		case errors.Is(r.Err, context.Canceled) && ctx.Err() != nil:
			// Interrupted by shutdown; try again on the next start.
			retry = append(retry, batch[i])
		case errors.Is(r.Err, scraper.ErrTimeout) && batch[i].Attempt+1 < PrewarmMaxAttempts:
			next := *batch[i]
			next.Attempt++
			retry = append(retry, &next)
		default:
			w.log.Warn().Err(r.Err).Str("student_id", r.ID).Int("attempt", batch[i].Attempt).Msg("Prewarm failed")
		}
	}

	w.log.Info().Int("batch", len(batch)).Int("warmed", warmed).Int("retry", len(retry)).Msg("Prewarm batch done")
	w.requeue(context.WithoutCancel(ctx), retry)
}

func (w *PrewarmWorker) requeue(ctx context.Context, batch []*prewarmPayload) {
	for _, p := range batch {
		raw, _ := json.Marshal(p)
		if err := w.rdb.RPush(ctx, config.WorkerKey.PrewarmQueue, raw).Err(); err != nil {
			w.log.Error().Err(err).Str("student_id", p.StudentID).Msg("Requeue failed")
		}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
