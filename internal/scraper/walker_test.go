package scraper

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/una-transcript/internal/extractor"
	"github.com/stretchr/testify/require"
)

func openStudentTab(t *testing.T, portal *fakePortal, query string) Tab {
	t.Helper()
	tab, err := portal.NewTab(context.Background())
	require.NoError(t, err)
	require.NoError(t, tab.Navigate(context.Background(), "http://portal.test/"))
	require.NoError(t, tab.Submit(context.Background(), extractor.SearchInput, query))
	t.Cleanup(func() { _ = tab.Close() })
	return tab
}

func TestWalkSkipsPlaceholderAndKeepsOrder(t *testing.T) {
	portal := newFakePortal(t)
	tab := openStudentTab(t, portal, "C12345")
	walker := NewSemesterWalker(WalkerConfig{SettleTimeout: 200 * time.Millisecond, PollInterval: time.Millisecond}, zerolog.Nop())

	set, err := walker.Walk(context.Background(), tab, "C12345")
	require.NoError(t, err)
	require.Equal(t, []string{"S1", "S2"}, set.Keys())
}

func TestWalkWaitsForDelayedRender(t *testing.T) {
	portal := newFakePortal(t)
	portal.staleReads = 3
	tab := openStudentTab(t, portal, "C12345")
	walker := NewSemesterWalker(WalkerConfig{SettleTimeout: time.Second, PollInterval: time.Millisecond}, zerolog.Nop())

	set, err := walker.Walk(context.Background(), tab, "C12345")
	require.NoError(t, err)

	// S2 must not be read while the S1 table is still on screen.
	s2, ok := set.Get("S2")
	require.True(t, ok)
	require.Equal(t, "MI201", s2.Modules[0].ID)
}

func TestWalkProceedsAfterSettleTimeout(t *testing.T) {
	portal := newFakePortal(t)
	// The table never appears to change within the settle bound.
	portal.staleReads = 1 << 20
	tab := openStudentTab(t, portal, "C12345")
	walker := NewSemesterWalker(WalkerConfig{SettleTimeout: 20 * time.Millisecond, PollInterval: time.Millisecond}, zerolog.Nop())

	set, err := walker.Walk(context.Background(), tab, "C12345")
	require.NoError(t, err)
	require.Equal(t, 2, set.Len())
}

func TestWalkDropsSemestersWithoutModules(t *testing.T) {
	portal := newFakePortal(t)
	tab := openStudentTab(t, portal, "C55555")
	walker := NewSemesterWalker(WalkerConfig{PollInterval: time.Millisecond}, zerolog.Nop())

	set, err := walker.Walk(context.Background(), tab, "C55555")
	require.NoError(t, err)
	require.Zero(t, set.Len())
}

func TestWalkHonoursCancellation(t *testing.T) {
	portal := newFakePortal(t)
	tab := openStudentTab(t, portal, "C12345")
	walker := NewSemesterWalker(WalkerConfig{PollInterval: time.Millisecond}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := walker.Walk(ctx, tab, "C12345")
	require.ErrorIs(t, err, context.Canceled)
}
