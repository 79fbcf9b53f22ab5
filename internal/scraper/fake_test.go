package scraper

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

func loadFixture(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "..", "testdata", "fixtures", name))
	if err != nil {
		t.Fatalf("failed to load fixture %s: %v", name, err)
	}
	return string(data)
}

// fakePortal serves fixture pages in place of the real results portal.
type fakePortal struct {
	landing  string
	notFound string
	// students maps a portal query to the page rendered for each semester.
	// The "" entry is the page shown right after the search.
	students map[string]map[string]string
	// staleReads is how many TextContent calls after a selector change
	// still see the previous table.
	staleReads int
	// hang makes Navigate block until its context is done.
	hang bool

	navigations atomic.Int32
	opened      atomic.Int32
	closed      atomic.Int32
	open        atomic.Int32
	maxOpen     atomic.Int32

	mu   sync.Mutex
	tabs []*fakeTab
}

func newFakePortal(t *testing.T) *fakePortal {
	t.Helper()
	return &fakePortal{
		landing:  `<html><body><input type="text" class="rsinputTetx"/></body></html>`,
		notFound: loadFixture(t, "not_found.html"),
		students: map[string]map[string]string{
			"C12345": {
				"":   loadFixture(t, "results_s1.html"),
				"S1": loadFixture(t, "results_s1.html"),
				"S2": loadFixture(t, "results_s2.html"),
			},
			"C55555": {
				"":   loadFixture(t, "results_empty.html"),
				"S1": loadFixture(t, "results_empty.html"),
			},
		},
	}
}

func (p *fakePortal) NewTab(ctx context.Context) (Tab, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.opened.Add(1)
	n := p.open.Add(1)
	for {
		peak := p.maxOpen.Load()
		if n <= peak || p.maxOpen.CompareAndSwap(peak, n) {
			break
		}
	}

	tab := &fakeTab{portal: p}
	p.mu.Lock()
	p.tabs = append(p.tabs, tab)
	p.mu.Unlock()
	return tab, nil
}

func (p *fakePortal) allClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, tab := range p.tabs {
		if !tab.isClosed {
			return false
		}
	}
	return true
}

type fakeTab struct {
	portal *fakePortal

	mu       sync.Mutex
	current  string
	student  map[string]string
	selected string
	previous string
	stale    int
	isClosed bool
}

func (t *fakeTab) Navigate(ctx context.Context, url string) error {
	t.portal.navigations.Add(1)
	if t.portal.hang {
		<-ctx.Done()
		return ctx.Err()
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current = t.portal.landing
	return nil
}

func (t *fakeTab) Submit(ctx context.Context, selector, value string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	pages, ok := t.portal.students[value]
	if !ok {
		t.current = t.portal.notFound
		return nil
	}
	t.student = pages
	t.current = pages[""]
	doc, err := t.doc()
	if err != nil {
		return err
	}
	t.selected, _ = doc.Find("option[selected]").First().Attr("value")
	return nil
}

func (t *fakeTab) HTML(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stale > 0 {
		return t.previous, nil
	}
	return t.current, nil
}

func (t *fakeTab) doc() (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(t.current))
}

func (t *fakeTab) OptionValues(ctx context.Context, selector string) ([]string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	doc, err := t.doc()
	if err != nil {
		return nil, err
	}
	values := []string{}
	doc.Find(selector).First().Find("option").Each(func(_ int, s *goquery.Selection) {
		v, _ := s.Attr("value")
		values = append(values, v)
	})
	return values, nil
}

func (t *fakeTab) SelectedValue(ctx context.Context, selector string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.selected, nil
}

func (t *fakeTab) SelectOption(ctx context.Context, selector, value string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.previous = t.current
	t.stale = t.portal.staleReads
	t.selected = value
	if html, ok := t.student[value]; ok && value != "" {
		t.current = html
	}
	return nil
}

func (t *fakeTab) TextContent(ctx context.Context, selector string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	html := t.current
	if t.stale > 0 {
		t.stale--
		html = t.previous
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}
	return doc.Find(selector).First().Text(), nil
}

func (t *fakeTab) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.isClosed {
		t.isClosed = true
		t.portal.closed.Add(1)
		t.portal.open.Add(-1)
	}
	return nil
}
