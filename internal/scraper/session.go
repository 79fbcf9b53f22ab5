package scraper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/una-transcript/internal/config"
	"github.com/stemsi/una-transcript/internal/extractor"
	"github.com/stemsi/una-transcript/internal/model"
	"github.com/stemsi/una-transcript/internal/normalize"
)

// State is a step of one student's scrape.
type State string

const (
	StateIdle             State = "idle"
	StateNavigating       State = "navigating"
	StateSearching        State = "searching"
	StateProfileCheck     State = "profile_check"
	StateNotFound         State = "not_found"
	StateWalkingSemesters State = "walking_semesters"
	StateAssembled        State = "assembled"
	StateFailed           State = "failed"
)

// DriverConfig describes where the portal lives and how long to wait for it.
type DriverConfig struct {
	PortalURL         string
	IDPrefix          string
	NavigationTimeout time.Duration
	SelectorTimeout   time.Duration
}

// SessionDriver scrapes one student per tab.
type SessionDriver struct {
	browser Browser
	walker  *SemesterWalker
	cfg     DriverConfig
	log     zerolog.Logger
}

// NewSessionDriver creates a SessionDriver.
func NewSessionDriver(browser Browser, walker *SemesterWalker, cfg DriverConfig, log zerolog.Logger) *SessionDriver {
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 60 * time.Second
	}
	if cfg.SelectorTimeout <= 0 {
		cfg.SelectorTimeout = 30 * time.Second
	}
	return &SessionDriver{
		browser: browser,
		walker:  walker,
		cfg:     cfg,
		log:     log.With().Str("component", "session_driver").Logger(),
	}
}

// session tracks the state machine of a single scrape for logging.
type session struct {
	log   zerolog.Logger
	state State
}

func (s *session) enter(next State) {
	s.log.Debug().Str("from", string(s.state)).Str("to", string(next)).Msg("Session state")
	s.state = next
}

// Scrape opens a tab, searches for studentID and assembles the transcript.
// It returns ErrStudentNotFound, ErrEmptyTranscript or ErrTimeout for the
// expected failure modes. The tab is closed on every path.
func (d *SessionDriver) Scrape(ctx context.Context, studentID string) (rec *model.StudentRecord, err error) {
	query := config.CacheKey.PortalQuery(d.cfg.IDPrefix, studentID)
	s := &session{log: d.log.With().Str("student_id", query).Logger(), state: StateIdle}
	start := time.Now()

	defer func() {
		switch {
		case err == nil:
			s.enter(StateAssembled)
			s.log.Info().Dur("duration", time.Since(start)).Int("semesters", rec.Semesters.Len()).Msg("Transcript scraped")
		case errors.Is(err, ErrStudentNotFound):
			s.enter(StateNotFound)
			s.log.Info().Dur("duration", time.Since(start)).Msg("Student not found")
		default:
			failedIn := s.state
			s.enter(StateFailed)
			s.log.Error().Err(err).Str("state", string(failedIn)).Dur("duration", time.Since(start)).Msg("Scrape failed")
		}
	}()

	// Waiting for a pool slot counts against the same bound as opening the tab.
	var tab Tab
	if err := withTimeout(ctx, d.cfg.NavigationTimeout, func(ctx context.Context) error {
		var err error
		tab, err = d.browser.NewTab(ctx)
		return err
	}); err != nil {
		return nil, fmt.Errorf("opening tab: %w", err)
	}
	defer func() {
		if cerr := tab.Close(); cerr != nil {
			s.log.Warn().Err(cerr).Msg("Failed to close tab")
		}
	}()

	s.enter(StateNavigating)
	if err := withTimeout(ctx, d.cfg.NavigationTimeout, func(ctx context.Context) error {
		return tab.Navigate(ctx, d.cfg.PortalURL)
	}); err != nil {
		return nil, fmt.Errorf("loading portal: %w", err)
	}

	s.enter(StateSearching)
	if err := withTimeout(ctx, d.cfg.SelectorTimeout+d.cfg.NavigationTimeout, func(ctx context.Context) error {
		return tab.Submit(ctx, extractor.SearchInput, query)
	}); err != nil {
		return nil, fmt.Errorf("searching %s: %w", query, err)
	}

	s.enter(StateProfileCheck)
	html, err := tab.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading search result: %w", err)
	}
	profile, layout, err := extractor.ExtractProfileHTML(html)
	switch {
	case errors.Is(err, normalize.ErrAbsentStudent):
		return nil, fmt.Errorf("%s: %w", query, ErrStudentNotFound)
	case errors.Is(err, extractor.ErrNameMissing):
		s.log.Warn().Err(err).Msg("Identity block unreadable, treating student as not found")
		return nil, fmt.Errorf("%s: %w: %w", query, ErrStudentNotFound, err)
	case err != nil:
		return nil, err
	}
	profile.ID = query
	s.log.Debug().Str("layout", layout.String()).Str("name", profile.Name).Msg("Profile resolved")

	s.enter(StateWalkingSemesters)
	semesters, err := d.walker.Walk(ctx, tab, query)
	if err != nil {
		return nil, fmt.Errorf("walking semesters: %w", err)
	}
	if semesters.Len() == 0 {
		return nil, fmt.Errorf("%s: %w", query, ErrEmptyTranscript)
	}

	return model.NewStudentRecord(*profile, semesters), nil
}
