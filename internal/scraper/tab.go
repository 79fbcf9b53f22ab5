// Package scraper replays the results portal's UI in a headless browser.
//
// One Tab serves exactly one student. The Session Driver opens it, searches
// for the student, and hands it to the Semester Walker, which flips the
// semester selector and reads back every rendered table. Everything that
// mutates a tab's DOM runs sequentially on the goroutine that owns the tab.
package scraper

import (
	"context"
	"errors"
)

var (
	// ErrStudentNotFound means the portal reported no such student.
	ErrStudentNotFound = errors.New("student not found")
	// ErrEmptyTranscript means the student exists but no semester had modules.
	ErrEmptyTranscript = errors.New("no semester data found")
	// ErrTimeout means navigation or a selector wait exceeded its bound.
	ErrTimeout = errors.New("portal did not respond in time")
)

// Tab is one browser tab, owned by a single scrape.
type Tab interface {
	// Navigate loads url and waits for the document to be ready.
	Navigate(ctx context.Context, url string) error
	// Submit clears the input matched by selector, types value and presses
	// Enter, returning once the resulting page load has completed.
	Submit(ctx context.Context, selector, value string) error
	// HTML returns the current document's markup.
	HTML(ctx context.Context) (string, error)
	// OptionValues lists the option values of the select matched by selector.
	OptionValues(ctx context.Context, selector string) ([]string, error)
	// SelectedValue returns the select's current value.
	SelectedValue(ctx context.Context, selector string) (string, error)
	// SelectOption sets the select's value and dispatches a bubbling change event.
	SelectOption(ctx context.Context, selector, value string) error
	// TextContent returns the text of the first element matched by selector,
	// or "" if there is none.
	TextContent(ctx context.Context, selector string) (string, error)
	// Close releases the tab. It is safe to call more than once.
	Close() error
}

// Browser hands out tabs that share one browser process.
type Browser interface {
	NewTab(ctx context.Context) (Tab, error)
}
