package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"folio/internal/config"
	"folio/internal/httpapi"
	"folio/internal/news"
	"folio/internal/portfolio"
	"folio/internal/prices"
	"folio/internal/quote"
	"folio/internal/series"
	"folio/internal/stream"
	"folio/internal/util"
)

const defaultStreamURL = "wss://ws.finnhub.io"

func main() {
	cfgPath := "config/folio.yaml"
	if p := os.Getenv("FOLIO_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Holdings database.
	dbPath := cfg.Storage.SQLitePath
	if dbPath == "" {
		dbPath = filepath.Join(cfg.Storage.DataDir, "folio.db")
	}
	store, err := portfolio.NewSQLiteStore(dbPath)
	if err != nil {
		log.Fatalf("opening holdings database: %v", err)
	}
	defer store.Close()

	holdings, err := store.List(ctx)
	if err != nil {
		log.Fatalf("loading holdings: %v", err)
	}
	symbols := portfolio.Symbols(holdings)
	logger.Info("portfolio loaded", "holdings", len(holdings))

	// Poll source: Finnhub primary, Alpaca when Finnhub is not configured.
	var fetcher quote.Fetcher
	if cfg.Finnhub.APIKey == "" && cfg.Alpaca.APIKey != "" {
		fetcher = quote.NewAlpacaFetcher(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.DataURL, logger)
	} else {
		fetcher = quote.NewFinnhubFetcher(cfg.Finnhub.BaseURL, cfg.Finnhub.APIKey, cfg.Finnhub.RateLimitPerMin, logger)
	}

	reconciler := prices.New(fetcher, cfg.Poll.SelectedInterval(), logger)
	defer reconciler.Stop()
	reconciler.Track(symbols)

	// Streaming client. With no credential Run returns immediately and
	// prices stay on poll/simulated sources.
	streamURL := cfg.Finnhub.StreamURL
	if streamURL == "" {
		streamURL = defaultStreamURL
	}
	client := stream.NewClient(streamURL, cfg.Finnhub.APIKey, cfg.Stream.BaseDelay(), cfg.Stream.MaxDelay(), logger)
	client.SetSymbols(symbols)
	defer client.Close()

	_, batches := client.Subscribe(16)
	go reconciler.ConsumeStream(ctx, batches)
	go func() {
		if err := client.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("stream client", "error", err)
		}
	}()

	go reconciler.Baseline(ctx)

	// News sources in precedence order.
	var sources []news.Source
	if cfg.Finnhub.APIKey != "" {
		sources = append(sources, news.NewFinnhubSource(cfg.Finnhub.BaseURL, cfg.Finnhub.APIKey))
	}
	if cfg.Alpaca.APIKey != "" {
		sources = append(sources, news.NewAlpacaSource(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.DataURL))
	}
	newsSvc := news.NewService(sources, cfg.News.MaxItems, logger)

	seriesStore := series.NewParquetStore(cfg.Storage.DataDir)

	api := httpapi.NewDashboardServer(ctx, store, fetcher, reconciler, newsSvc, seriesStore, client, logger)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: api.Handler(),
	}

	go func() {
		logger.Info("folio-server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
}
