package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/eddiefleurent/ttc_positions/internal/config"
	"github.com/eddiefleurent/ttc_positions/internal/feed"
	"github.com/eddiefleurent/ttc_positions/internal/pipeline"
	"github.com/eddiefleurent/ttc_positions/internal/pricecache"
	"github.com/eddiefleurent/ttc_positions/internal/quotes"
	"github.com/eddiefleurent/ttc_positions/internal/resolver"
	"github.com/eddiefleurent/ttc_positions/internal/server"
	"github.com/eddiefleurent/ttc_positions/internal/update"
	"github.com/eddiefleurent/ttc_positions/internal/watchlist"
)

// version is stamped at build time via -ldflags.
var version = "2.0.0"

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	logger := newLogger(cfg.Environment.LogLevel)
	logger.Infof("Starting %s v%s", server.AppName, version)

	// Live feed with a circuit breaker in front, so a dead gateway trips
	// into the degraded path instead of timing out every refresh.
	gateway := feed.NewGatewayClient(cfg.Feed.Endpoint, cfg.Feed.APIKey, cfg.Feed.AccountID, cfg.FeedTimeout())
	liveFeed := feed.NewCircuitBreakerFeed(gateway, logger)

	secondary := quotes.NewProvider(
		cfg.Secondary.Endpoint,
		cfg.Secondary.APIToken,
		cfg.SecondaryTimeout(),
		cfg.Secondary.RatePerMinute,
		logger,
	)

	cacheStore := pricecache.NewStore(cfg.Cache.Path, cfg.CacheRetention(), logger)
	watchStore := watchlist.NewStore(cfg.Watchlist.Path, cfg.Watchlist.Seed, logger)

	priceResolver := resolver.New(liveFeed, secondary, cacheStore,
		cfg.SettleWindow(), cfg.Secondary.Workers, logger)

	refresh := pipeline.New(liveFeed, priceResolver, watchStore, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var checker *update.Checker
	if cfg.Update.Enabled {
		checker = update.NewChecker(cfg.Update.GitHubOwner, cfg.Update.GitHubRepo, version, logger)
		go func() {
			for info := range checker.Watch(ctx, cfg.UpdateInterval()) {
				logger.Infof("Update available: %s -> %s (%s)",
					info.CurrentVersion, info.LatestVersion, info.ReleaseURL)
			}
		}()
	}

	srv := server.NewServer(server.Config{Port: cfg.Server.Port, Version: version},
		refresh, checkerOrNil(checker), logger)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case sig := <-sigChan:
		logger.Infof("Received %s, shutting down...", sig)
	case err := <-errChan:
		logger.WithError(err).Error("Server failed")
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("Graceful shutdown failed")
	}
	logger.Info("Stopped")
}

func newLogger(level string) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	logger.SetLevel(parsed)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return logger
}

// checkerOrNil keeps the server's UpdateChecker interface nil when update
// checks are disabled (a typed nil would dodge the server's nil check).
func checkerOrNil(c *update.Checker) server.UpdateChecker {
	if c == nil {
		return nil
	}
	return c
}
