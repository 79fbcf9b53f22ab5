package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/stemsi/una-transcript/internal/cache"
	"github.com/stemsi/una-transcript/internal/config"
	"github.com/stemsi/una-transcript/internal/logger"
	"github.com/stemsi/una-transcript/internal/scraper"
	"github.com/stemsi/una-transcript/internal/service"
)

var (
	asJSON  bool
	verbose bool

	browser     *scraper.ChromeBrowser
	transcripts *service.TranscriptService
	cfg         *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "transcript",
	Short: "Fetch UNA student transcripts from the command line",
	Long: `transcript drives the same headless browser scraper as the HTTP service
and prints the results portal's transcript for one or more students.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.Load()

		level := "warn"
		if verbose {
			level = "debug"
		}
		log := logger.New(os.Stderr, level, "pretty")

		var err error
		browser, err = scraper.LaunchChrome(cmd.Context(), scraper.ChromeOptions{
			ExecPath: cfg.BrowserExecPath(),
			Headless: cfg.Headless,
		}, log)
		if err != nil {
			return err
		}

		transcripts = newService(browser, cfg, log)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&asJSON, "json", false, "print raw JSON instead of tables")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log scraper progress to stderr")
}

func newService(b scraper.Browser, cfg *config.Config, log zerolog.Logger) *service.TranscriptService {
	walker := scraper.NewSemesterWalker(scraper.WalkerConfig{
		SettleTimeout: cfg.SettleTimeout,
		PollInterval:  cfg.SettlePoll,
		StepTimeout:   cfg.SelectorTimeout,
	}, log)
	driver := scraper.NewSessionDriver(scraper.NewTabPool(b, cfg.MaxTabs), walker, scraper.DriverConfig{
		PortalURL:         cfg.PortalURL,
		IDPrefix:          cfg.StudentIDPrefix,
		NavigationTimeout: cfg.NavigationTimeout,
		SelectorTimeout:   cfg.SelectorTimeout,
	}, log)
	// One process, one run: nothing outlives it, so no janitor.
	return service.NewTranscriptService(driver, cache.New(time.Hour, 0), log)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// The browser is shut down on every path, including failed commands.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if browser != nil {
		browser.Shutdown()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
