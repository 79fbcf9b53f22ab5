// Package cache keeps assembled transcripts in memory for a fixed TTL.
package cache

import (
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/stemsi/una-transcript/internal/model"
)

// Stats is a snapshot of cache activity.
type Stats struct {
	Hits       uint64 `json:"hits"`
	Misses     uint64 `json:"misses"`
	Keys       int    `json:"keys"`
	KSize      int    `json:"ksize"`
	TTLSeconds int64  `json:"ttl_seconds"`
}

// TranscriptCache maps a student ID to its transcript. Entries expire ttl
// after they were written; an expired entry is never returned.
type TranscriptCache struct {
	store  *gocache.Cache
	ttl    time.Duration
	hits   atomic.Uint64
	misses atomic.Uint64
}

// New creates a cache whose entries live for ttl. Expired entries are
// swept every cleanup interval; a zero interval disables the sweeper.
func New(ttl, cleanup time.Duration) *TranscriptCache {
	return &TranscriptCache{
		store: gocache.New(ttl, cleanup),
		ttl:   ttl,
	}
}

// Get returns the stored transcript for key and counts the lookup.
func (c *TranscriptCache) Get(key string) (*model.StudentRecord, bool) {
	v, ok := c.store.Get(key)
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	rec, ok := v.(*model.StudentRecord)
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return rec, true
}

// Set stores rec under key with the default TTL. Callers must not mutate
// rec afterwards.
func (c *TranscriptCache) Set(key string, rec *model.StudentRecord) {
	c.store.Set(key, rec, gocache.DefaultExpiration)
}

// ExpiresAt reports when the entry under key expires. It does not count
// as a lookup.
func (c *TranscriptCache) ExpiresAt(key string) (time.Time, bool) {
	_, exp, ok := c.store.GetWithExpiration(key)
	if !ok {
		return time.Time{}, false
	}
	return exp, true
}

// Delete removes key. It reports whether an unexpired entry was present.
func (c *TranscriptCache) Delete(key string) bool {
	_, found := c.store.Get(key)
	c.store.Delete(key)
	return found
}

// Flush drops every entry. Counters are kept.
func (c *TranscriptCache) Flush() {
	c.store.Flush()
}

// TTL is the lifetime of a stored entry.
func (c *TranscriptCache) TTL() time.Duration {
	return c.ttl
}

func (c *TranscriptCache) Stats() Stats {
	items := c.store.Items()
	ksize := 0
	for k := range items {
		ksize += len(k)
	}
	return Stats{
		Hits:       c.hits.Load(),
		Misses:     c.misses.Load(),
		Keys:       len(items),
		KSize:      ksize,
		TTLSeconds: int64(c.ttl / time.Second),
	}
}
