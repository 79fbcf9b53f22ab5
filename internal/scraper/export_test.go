package scraper

import "testing"

// NewFixturePortal exposes the fixture-backed portal to external tests.
func NewFixturePortal(t *testing.T) Browser {
	return newFakePortal(t)
}
