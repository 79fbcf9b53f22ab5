package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"github.com/rs/zerolog"
	"github.com/stemsi/una-transcript/internal/logger"
)

const (
	viewportWidth  = 1080
	viewportHeight = 1024
)

// blockedResources are never fetched; the scrape only reads markup.
var blockedResources = []network.ResourceType{
	network.ResourceTypeImage,
	network.ResourceTypeStylesheet,
	network.ResourceTypeFont,
}

// ChromeOptions configures the headless browser process.
type ChromeOptions struct {
	// ExecPath points at the Chrome/Chromium binary. Empty lets chromedp
	// look one up on PATH.
	ExecPath string
	Headless bool
}

// ChromeBrowser is a single headless Chrome process shared by all tabs.
type ChromeBrowser struct {
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	log           zerolog.Logger
	closeOnce     sync.Once
}

// LaunchChrome starts the browser and waits until it accepts commands.
func LaunchChrome(ctx context.Context, opts ChromeOptions, log zerolog.Logger) (*ChromeBrowser, error) {
	log = logger.Component(log, "browser")

	allocOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	allocOpts = append(allocOpts,
		chromedp.NoSandbox,
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("dns-prefetch-disable", true),
		chromedp.Flag("headless", opts.Headless),
	)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}

	// The browser outlives the request that launched it.
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(logger.Printf(log, zerolog.DebugLevel)),
		chromedp.WithErrorf(logger.Printf(log, zerolog.ErrorLevel)),
		chromedp.WithDebugf(logger.Printf(log, zerolog.TraceLevel)),
	)

	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("starting browser: %w", err)
	}

	log.Info().Str("exec_path", opts.ExecPath).Bool("headless", opts.Headless).Msg("Browser started")

	return &ChromeBrowser{
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		log:           log,
	}, nil
}

// NewTab opens a tab with heavy resources blocked and a fixed viewport.
func (b *ChromeBrowser) NewTab(ctx context.Context) (Tab, error) {
	if err := b.browserCtx.Err(); err != nil {
		return nil, fmt.Errorf("browser is closed: %w", err)
	}

	tabCtx, cancel := chromedp.NewContext(b.browserCtx)
	t := &chromeTab{ctx: tabCtx, cancel: cancel}

	patterns := make([]*fetch.RequestPattern, 0, len(blockedResources))
	for _, rt := range blockedResources {
		patterns = append(patterns, &fetch.RequestPattern{URLPattern: "*", ResourceType: rt})
	}

	chromedp.ListenTarget(tabCtx, func(ev any) {
		paused, ok := ev.(*fetch.EventRequestPaused)
		if !ok {
			return
		}
		// Listeners must not block the event loop.
		go func() {
			_ = chromedp.Run(tabCtx, fetch.FailRequest(paused.RequestID, network.ErrorReasonBlockedByClient))
		}()
	})

	// The first Run creates the target and ties it to the context it is
	// given, so it runs on the tab's own context and ctx only bounds the wait.
	err := awaitOpen(ctx, func() error {
		return chromedp.Run(tabCtx,
			fetch.Enable().WithPatterns(patterns),
			chromedp.EmulateViewport(viewportWidth, viewportHeight),
		)
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("opening tab: %w", err)
	}

	return t, nil
}

// Shutdown closes every tab and terminates the browser process.
func (b *ChromeBrowser) Shutdown() {
	b.closeOnce.Do(func() {
		if err := chromedp.Cancel(b.browserCtx); err != nil {
			b.log.Warn().Err(err).Msg("Failed to close browser gracefully")
		}
		b.browserCancel()
		b.allocCancel()
		b.log.Info().Msg("Browser stopped")
	})
}

type chromeTab struct {
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

// run executes actions on the tab, bounded by the caller's deadline and
// cancellation as well as the tab's own lifetime.
func (t *chromeTab) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := mergeContext(t.ctx, ctx)
	defer cancel()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return fmt.Errorf("%w: %w", ctx.Err(), err)
	}
	return err
}

// mergeContext derives a context from parent that also carries ctx's
// deadline and ends when ctx is cancelled. Values still come from parent.
func mergeContext(parent, ctx context.Context) (context.Context, context.CancelFunc) {
	var (
		merged context.Context
		cancel context.CancelFunc
	)
	if dl, ok := ctx.Deadline(); ok {
		merged, cancel = context.WithDeadline(parent, dl)
	} else {
		merged, cancel = context.WithCancel(parent)
	}
	stop := context.AfterFunc(ctx, cancel)
	return merged, func() {
		stop()
		cancel()
	}
}

// awaitOpen runs open in the background and waits for it or for ctx,
// whichever finishes first. open keeps running after ctx ends; the caller
// must abort it by cancelling whatever context open uses.
func awaitOpen(ctx context.Context, open func() error) error {
	done := make(chan error, 1)
	go func() { done <- open() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *chromeTab) Navigate(ctx context.Context, url string) error {
	return t.run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

func (t *chromeTab) Submit(ctx context.Context, selector, value string) error {
	loaded := make(chan struct{}, 1)
	listenCtx, stopListening := context.WithCancel(t.ctx)
	defer stopListening()

	if err := t.run(ctx,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.SetValue(selector, "", chromedp.ByQuery),
		chromedp.SendKeys(selector, value, chromedp.ByQuery),
	); err != nil {
		return err
	}

	// Registered before Enter so a fast load is not missed.
	chromedp.ListenTarget(listenCtx, func(ev any) {
		if _, ok := ev.(*page.EventLoadEventFired); ok {
			select {
			case loaded <- struct{}{}:
			default:
			}
		}
	})

	if err := t.run(ctx, chromedp.SendKeys(selector, kb.Enter, chromedp.ByQuery)); err != nil {
		return err
	}

	select {
	case <-loaded:
	case <-ctx.Done():
		return ctx.Err()
	case <-t.ctx.Done():
		return t.ctx.Err()
	}

	return t.run(ctx, chromedp.WaitReady("body", chromedp.ByQuery))
}

func (t *chromeTab) HTML(ctx context.Context) (string, error) {
	var html string
	if err := t.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

func (t *chromeTab) OptionValues(ctx context.Context, selector string) ([]string, error) {
	q, err := jsString(selector)
	if err != nil {
		return nil, err
	}
	values := []string{}
	expr := `(() => { const s = document.querySelector(` + q + `);
		return s ? Array.from(s.options).map(o => o.value) : []; })()`
	if err := t.run(ctx, chromedp.Evaluate(expr, &values)); err != nil {
		return nil, err
	}
	return values, nil
}

func (t *chromeTab) SelectedValue(ctx context.Context, selector string) (string, error) {
	q, err := jsString(selector)
	if err != nil {
		return "", err
	}
	var value string
	expr := `(() => { const s = document.querySelector(` + q + `); return s ? s.value : ""; })()`
	if err := t.run(ctx, chromedp.Evaluate(expr, &value)); err != nil {
		return "", err
	}
	return value, nil
}

func (t *chromeTab) SelectOption(ctx context.Context, selector, value string) error {
	q, err := jsString(selector)
	if err != nil {
		return err
	}
	v, err := jsString(value)
	if err != nil {
		return err
	}
	var ok bool
	expr := `(() => { const s = document.querySelector(` + q + `);
		if (!s) return false;
		s.value = ` + v + `;
		s.dispatchEvent(new Event("change", { bubbles: true }));
		return true; })()`
	if err := t.run(ctx, chromedp.Evaluate(expr, &ok)); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("select %s not found", selector)
	}
	return nil
}

func (t *chromeTab) TextContent(ctx context.Context, selector string) (string, error) {
	q, err := jsString(selector)
	if err != nil {
		return "", err
	}
	var text string
	expr := `(() => { const el = document.querySelector(` + q + `); return el ? el.textContent : ""; })()`
	if err := t.run(ctx, chromedp.Evaluate(expr, &text)); err != nil {
		return "", err
	}
	return text, nil
}

func (t *chromeTab) Close() error {
	var err error
	t.once.Do(func() {
		err = chromedp.Cancel(t.ctx)
		t.cancel()
	})
	return err
}

func jsString(s string) (string, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
