package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/una-transcript/internal/cache"
	"github.com/stemsi/una-transcript/internal/config"
	"github.com/stemsi/una-transcript/internal/model"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// ErrInvalidStudentID is returned before any browser work for IDs that are
// not plain integers.
var ErrInvalidStudentID = errors.New("invalid student ID: a numeric ID is required")

// maxStudentIDLength keeps absurd inputs away from the portal.
const maxStudentIDLength = 18

// TranscriptScraper produces a fresh transcript for a validated student ID.
type TranscriptScraper interface {
	Scrape(ctx context.Context, studentID string) (*model.StudentRecord, error)
}

// BatchResult is the outcome for one ID of GetMany.
type BatchResult struct {
	ID     string
	Record *model.StudentRecord
	Cached bool
	Err    error
}

// TranscriptService serves transcripts from the cache, scraping on a miss.
type TranscriptService struct {
	scraper TranscriptScraper
	cache   *cache.TranscriptCache
	group   singleflight.Group
	log     zerolog.Logger
}

// NewTranscriptService creates a new TranscriptService.
func NewTranscriptService(scraper TranscriptScraper, c *cache.TranscriptCache, log zerolog.Logger) *TranscriptService {
	return &TranscriptService{
		scraper: scraper,
		cache:   c,
		log:     log.With().Str("component", "transcript_service").Logger(),
	}
}

// ValidateStudentID accepts only base-10 digit strings. The raw string is
// kept as-is so leading zeros reach the portal unchanged.
func ValidateStudentID(raw string) (string, error) {
	if raw == "" || len(raw) > maxStudentIDLength {
		return "", ErrInvalidStudentID
	}
	if _, err := strconv.ParseUint(raw, 10, 64); err != nil {
		return "", ErrInvalidStudentID
	}
	return raw, nil
}

// GetTranscript returns the transcript for raw and whether it came from the
// cache. Concurrent misses for the same ID share one scrape.
func (s *TranscriptService) GetTranscript(ctx context.Context, raw string) (*model.StudentRecord, bool, error) {
	id, err := ValidateStudentID(raw)
	if err != nil {
		return nil, false, err
	}

	if rec, ok := s.cache.Get(config.CacheKey.TranscriptKey(id)); ok {
		return rec, true, nil
	}

	rec, err := s.scrape(ctx, id)
	return rec, false, err
}

// Refresh scrapes raw again and replaces the cached entry.
func (s *TranscriptService) Refresh(ctx context.Context, raw string) (*model.StudentRecord, error) {
	id, err := ValidateStudentID(raw)
	if err != nil {
		return nil, err
	}
	return s.scrape(ctx, id)
}

// Evict drops the cached transcript for raw. It reports whether one existed.
func (s *TranscriptService) Evict(raw string) (bool, error) {
	id, err := ValidateStudentID(raw)
	if err != nil {
		return false, err
	}
	return s.cache.Delete(config.CacheKey.TranscriptKey(id)), nil
}

// ExpiresAt reports when the cached transcript for raw expires.
func (s *TranscriptService) ExpiresAt(raw string) (time.Time, bool) {
	id, err := ValidateStudentID(raw)
	if err != nil {
		return time.Time{}, false
	}
	return s.cache.ExpiresAt(config.CacheKey.TranscriptKey(id))
}

// CacheStats exposes the cache counters.
func (s *TranscriptService) CacheStats() cache.Stats {
	return s.cache.Stats()
}

// GetMany fetches every ID with at most limit scrapes in flight. A failure
// for one student never aborts the others; results keep the input order.
func (s *TranscriptService) GetMany(ctx context.Context, ids []string, limit int) []BatchResult {
	if limit < 1 {
		limit = 1
	}
	results := make([]BatchResult, len(ids))
	start := time.Now()

	var g errgroup.Group
	g.SetLimit(limit)
	for i, id := range ids {
		g.Go(func() error {
			rec, cached, err := s.GetTranscript(ctx, id)
			results[i] = BatchResult{ID: id, Record: rec, Cached: cached, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	s.log.Info().
		Int("requested", len(ids)).
		Int("failed", failed).
		Dur("duration", time.Since(start)).
		Msg("Batch completed")

	return results
}

// scrape runs at most one scrape per ID at a time and caches the result.
// The scrape is detached from ctx so a disconnecting caller does not waste
// the work; the caller still stops waiting when ctx is done.
func (s *TranscriptService) scrape(ctx context.Context, id string) (*model.StudentRecord, error) {
	key := config.CacheKey.TranscriptKey(id)

	ch := s.group.DoChan(key, func() (any, error) {
		rec, err := s.scraper.Scrape(context.WithoutCancel(ctx), id)
		if err != nil {
			return nil, err
		}
		s.cache.Set(key, rec)
		return rec, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*model.StudentRecord), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for scrape of %s: %w", id, ctx.Err())
	}
}
