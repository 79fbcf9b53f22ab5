package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/una-transcript/internal/cache"
	"github.com/stemsi/una-transcript/internal/config"
	"github.com/stemsi/una-transcript/internal/database"
	"github.com/stemsi/una-transcript/internal/handler"
	"github.com/stemsi/una-transcript/internal/logger"
	"github.com/stemsi/una-transcript/internal/middleware"
	"github.com/stemsi/una-transcript/internal/router"
	"github.com/stemsi/una-transcript/internal/scraper"
	"github.com/stemsi/una-transcript/internal/service"
	"github.com/stemsi/una-transcript/internal/validator"
	"github.com/stemsi/una-transcript/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("env", cfg.AppEnv).
		Str("portal", cfg.PortalURL).
		Msg("Starting UNA transcript service")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Launch Browser ────────────────────────────────────────────────
	browser, err := scraper.LaunchChrome(ctx, scraper.ChromeOptions{
		ExecPath: cfg.BrowserExecPath(),
		Headless: cfg.Headless,
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to launch browser")
	}
	defer browser.Shutdown()

	// ─── Scraper ───────────────────────────────────────────────────────
	walker := scraper.NewSemesterWalker(scraper.WalkerConfig{
		SettleTimeout: cfg.SettleTimeout,
		PollInterval:  cfg.SettlePoll,
		StepTimeout:   cfg.SelectorTimeout,
	}, log)
	driver := scraper.NewSessionDriver(scraper.NewTabPool(browser, cfg.MaxTabs), walker, scraper.DriverConfig{
		PortalURL:         cfg.PortalURL,
		IDPrefix:          cfg.StudentIDPrefix,
		NavigationTimeout: cfg.NavigationTimeout,
		SelectorTimeout:   cfg.SelectorTimeout,
	}, log)

	// ─── Initialize Services ──────────────────────────────────────────
	transcriptCache := cache.New(cfg.CacheTTL, 10*time.Minute)
	transcriptService := service.NewTranscriptService(driver, transcriptCache, log)

	// ─── Connect to Redis (optional) ───────────────────────────────────
	var queue *worker.PrewarmQueue
	var workers sync.WaitGroup
	workerCtx, workerCancel := context.WithCancel(context.Background())

	if cfg.RedisURL != "" {
		rdb, err := database.NewRedisClient(ctx, cfg, log)
		if err != nil {
			browser.Shutdown()
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer rdb.Close()

		queue = worker.NewPrewarmQueue(rdb)

		// ─── Start Background Workers ─────────────────────────────────
		prewarmWorker := worker.NewPrewarmWorker(rdb, transcriptService, cfg.MaxTabs, log)
		workers.Add(1)
		go func() {
			defer workers.Done()
			prewarmWorker.Start(workerCtx)
		}()
	} else {
		log.Info().Msg("REDIS_URL not set, prewarm queue disabled")
	}

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Student: handler.NewStudentHandler(transcriptService, log),
		Prewarm: handler.NewPrewarmHandler(queue, log),
		System:  handler.NewSystemHandler(transcriptService, queue, log),
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute, time.Minute, log)
	defer limiter.Close()

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(handlers, cfg, limiter)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop background workers; they push unfinished IDs back to Redis.
	workerCancel()
	workers.Wait()

	// 3. The browser goes last, once nothing can open a tab.
	browser.Shutdown()

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
