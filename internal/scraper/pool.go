package scraper

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
)

// TabPool bounds the number of tabs open at once on a shared browser.
// Callers beyond the limit wait in NewTab until a tab is closed.
type TabPool struct {
	inner Browser
	sem   *semaphore.Weighted
}

// NewTabPool wraps inner so that at most size tabs are open concurrently.
func NewTabPool(inner Browser, size int) *TabPool {
	if size < 1 {
		size = 1
	}
	return &TabPool{
		inner: inner,
		sem:   semaphore.NewWeighted(int64(size)),
	}
}

// NewTab blocks until a slot is free or ctx is done.
func (p *TabPool) NewTab(ctx context.Context) (Tab, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("waiting for a free tab: %w", err)
	}

	tab, err := p.inner.NewTab(ctx)
	if err != nil {
		p.sem.Release(1)
		return nil, err
	}

	return &pooledTab{Tab: tab, release: func() { p.sem.Release(1) }}, nil
}

type pooledTab struct {
	Tab
	once    sync.Once
	release func()
}

func (t *pooledTab) Close() error {
	var err error
	t.once.Do(func() {
		err = t.Tab.Close()
		t.release()
	})
	return err
}
