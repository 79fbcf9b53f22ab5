// Package extractor parses the results portal's rendered markup with goquery.
//
// The portal is a JSF application: element ids are generated ("j_id125") and
// every value sits in a span styled with couleurTetx1. The selectors below are
// the only coupling to that markup.
package extractor

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	// SearchInput is the student ID box on the landing page.
	SearchInput = "input[type='text'].rsinputTetx"
	// SemesterSelect is the selector whose change re-renders the results table.
	SemesterSelect = "select[name='ecriture:j_id125']"
	// ModulesBody holds one row per module.
	ModulesBody = "tbody[id='ecriture:j_id171:tb']"

	valueSpan = "td span.couleurTetx1"
	labelSpan = "td span.couleurTetx"

	moduleLabel = "Moyenne Module"
)

// Parse builds a goquery document from rendered HTML.
func Parse(html string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}
	return doc, nil
}

// spanTexts collects the trimmed text of every value span under sel.
func spanTexts(sel *goquery.Selection) []string {
	texts := make([]string, 0)
	sel.Find(valueSpan).Each(func(_ int, s *goquery.Selection) {
		texts = append(texts, strings.TrimSpace(s.Text()))
	})
	return texts
}
