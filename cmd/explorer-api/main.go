package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fc_explorer/core-go/internal/cache"
	"fc_explorer/core-go/internal/chain"
	"fc_explorer/core-go/internal/collectibles"
	"fc_explorer/core-go/internal/config"
	"fc_explorer/core-go/internal/db"
	"fc_explorer/core-go/internal/farcaster"
	"fc_explorer/core-go/internal/fid"
	"fc_explorer/core-go/internal/httpapi"
	"fc_explorer/core-go/internal/manifest"
	"fc_explorer/core-go/internal/metrics"
	"fc_explorer/core-go/internal/mintworker"
	"fc_explorer/core-go/internal/preview"
	"fc_explorer/core-go/internal/session"
	"fc_explorer/core-go/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := httpapi.NewLogger("info", "json", nil)
		bootLogger.Fatal().Err(err).Msg("invalid configuration")
	}
	logger := httpapi.NewLogger(cfg.LogLevel, cfg.LogFormat, nil)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	checks := map[string]func(context.Context) error{}

	var backend cache.Backend = cache.NewMemory()
	if cfg.RedisURL != "" {
		rc, err := cache.NewRedis(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to configure redis")
		}
		defer rc.Close()
		backend = rc
		checks["redis"] = rc.Ping
	}
	ttl := cache.NewTTL(backend, cfg.CacheTTL, m)

	chainClient := chain.New(logger, chain.Options{
		BaseURL:  cfg.AlchemyBaseURL,
		APIKey:   cfg.AlchemyAPIKey,
		Contract: cfg.Contract,
		RPS:      cfg.UpstreamRPS,
	}, m)
	social := farcaster.New(logger, farcaster.Options{
		BaseURL: cfg.NeynarBaseURL,
		APIKey:  cfg.NeynarAPIKey,
		RPS:     cfg.UpstreamRPS,
	}, m)

	var (
		ledger   fid.Ledger
		recorder mintworker.Recorder
		journal  mintworker.Journal
	)
	if cfg.DatabaseURL != "" {
		pool, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()
		if err := pool.Migrate(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to apply schema")
		}
		ledger = db.NewLedger(pool.Queries())
		journal = db.NewRunJournal(pool.Queries())
		checks["postgres"] = pool.Ping
	}

	fids := fid.NewService(logger, fid.NewExtractor(fid.DefaultStrategies(chainClient)), ledger, m)
	if ledger != nil {
		recorder = fids
	}
	items := collectibles.NewService(logger, chainClient, social, ttl, collectibles.Options{})

	worker := mintworker.New(logger, items, mintworker.Options{
		Interval: cfg.RefreshInterval,
		Contract: chainClient.Contract(),
		Recorder: recorder,
		Journal:  journal,
	}, m)
	go worker.Run(ctx)

	loaderFor := func(r *http.Request) store.Loader {
		return collectibles.Viewer{Service: items, Addresses: r.URL.Query()["address"]}
	}
	sessions := session.NewHandler(logger, loaderFor, session.Options{
		Tuning: cfg.Navigation,
		Flags:  backend,
	}, m)

	h := httpapi.NewHandler(logger, httpapi.Deps{
		Profiles:     social,
		Tokens:       chainClient,
		FID:          fids,
		Collectibles: items,
		LoaderFor:    loaderFor,
		Sessions:     sessions,
		Manifest:     manifest.Build(cfg.PublicURL, cfg.Manifest),
		Preview: preview.NewRenderer(preview.Options{
			Title:       cfg.Manifest.Title,
			Description: cfg.Manifest.Description,
		}),
		Checks:  checks,
		Metrics: m,
	})
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Str("public_url", cfg.PublicURL).Msg("explorer-api listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server error")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	sessions.Wait()
	logger.Info().Msg("shutdown complete")
}
