package scraper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/una-transcript/internal/extractor"
	"github.com/stemsi/una-transcript/internal/model"
)

// WalkerConfig bounds the wait after each selector change.
type WalkerConfig struct {
	// SettleTimeout is the longest the walker waits for a re-render.
	SettleTimeout time.Duration
	// PollInterval is the delay between two fingerprint reads.
	PollInterval time.Duration
	// StepTimeout bounds everything done for one semester.
	StepTimeout time.Duration
}

// SemesterWalker flips the semester selector through every option and
// extracts the table rendered for each one.
type SemesterWalker struct {
	cfg WalkerConfig
	log zerolog.Logger
}

// NewSemesterWalker creates a SemesterWalker.
func NewSemesterWalker(cfg WalkerConfig, log zerolog.Logger) *SemesterWalker {
	if cfg.SettleTimeout <= 0 {
		cfg.SettleTimeout = 5 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 150 * time.Millisecond
	}
	if cfg.StepTimeout <= 0 {
		cfg.StepTimeout = 30 * time.Second
	}
	return &SemesterWalker{
		cfg: cfg,
		log: log.With().Str("component", "semester_walker").Logger(),
	}
}

// Walk visits every non-empty selector option in order. Semesters without
// modules are left out. The tab is mutated in place, so Walk must not run
// concurrently with anything else on the same tab.
func (w *SemesterWalker) Walk(ctx context.Context, tab Tab, studentID string) (model.SemesterSet, error) {
	var semesters model.SemesterSet
	log := w.log.With().Str("student_id", studentID).Logger()

	var options []string
	err := withTimeout(ctx, w.cfg.StepTimeout, func(ctx context.Context) error {
		var err error
		options, err = tab.OptionValues(ctx, extractor.SemesterSelect)
		return err
	})
	if err != nil {
		return semesters, fmt.Errorf("listing semesters: %w", err)
	}

	for _, value := range options {
		if value == "" {
			continue
		}

		var rec model.SemesterRecord
		var rep extractor.Report
		err := withTimeout(ctx, w.cfg.StepTimeout, func(ctx context.Context) error {
			var err error
			rec, rep, err = w.visit(ctx, tab, value)
			return err
		})
		if err != nil {
			return semesters, fmt.Errorf("semester %s: %w", value, err)
		}

		if rep.Degraded() {
			log.Warn().
				Str("semester", value).
				Strs("missing", rep.Missing).
				Int("skipped_modules", rep.SkippedModules).
				Msg("Semester table did not match the expected markup; fields defaulted")
		}
		if len(rec.Modules) == 0 {
			log.Debug().Str("semester", value).Msg("Semester has no modules, dropped")
			continue
		}

		semesters.Put(value, rec)
	}

	return semesters, nil
}

// visit shows one semester and extracts its table.
func (w *SemesterWalker) visit(ctx context.Context, tab Tab, value string) (model.SemesterRecord, extractor.Report, error) {
	if err := w.show(ctx, tab, value); err != nil {
		return model.SemesterRecord{}, extractor.Report{}, fmt.Errorf("selecting: %w", err)
	}

	html, err := tab.HTML(ctx)
	if err != nil {
		return model.SemesterRecord{}, extractor.Report{}, fmt.Errorf("reading table: %w", err)
	}
	doc, err := extractor.Parse(html)
	if err != nil {
		return model.SemesterRecord{}, extractor.Report{}, err
	}

	rec, rep := extractor.ExtractSemester(doc)
	return rec, rep, nil
}

// show selects value and waits until the results table has re-rendered.
//
// The portal gives no completion signal, so readiness is inferred from the
// modules table: its text must differ from what was shown before the change
// and then hold still for one poll. When the option was already selected the
// content may legitimately not change, and only stability is required. If the
// bound expires the current DOM is used as-is.
func (w *SemesterWalker) show(ctx context.Context, tab Tab, value string) error {
	before, err := tab.TextContent(ctx, extractor.ModulesBody)
	if err != nil {
		return err
	}
	current, err := tab.SelectedValue(ctx, extractor.SemesterSelect)
	if err != nil {
		return err
	}
	alreadyShown := current == value

	if err := tab.SelectOption(ctx, extractor.SemesterSelect, value); err != nil {
		return err
	}

	deadline := time.Now().Add(w.cfg.SettleTimeout)
	last := before
	polls := 0
	for {
		if err := sleepCtx(ctx, w.cfg.PollInterval); err != nil {
			return err
		}
		polls++

		text, err := tab.TextContent(ctx, extractor.ModulesBody)
		if err != nil {
			return err
		}

		changed := alreadyShown || text != before
		if changed && text == last && polls > 1 {
			w.log.Debug().Str("semester", value).Int("polls", polls).Msg("Render settled")
			return nil
		}
		last = text

		if time.Now().After(deadline) {
			w.log.Warn().
				Str("semester", value).
				Dur("waited", w.cfg.SettleTimeout).
				Msg("Render not confirmed before settle timeout; reading current table")
			return nil
		}
	}
}

// withTimeout runs fn under a deadline and reports an expired deadline as ErrTimeout.
func withTimeout(ctx context.Context, timeout time.Duration, fn func(context.Context) error) error {
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := fn(tctx)
	if err != nil && errors.Is(tctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s: %w", ErrTimeout, timeout, err)
	}
	return err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
