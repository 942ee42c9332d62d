// cmd/racesync runs one reconciliation pass from the command line and
// prints its report. It exits non-zero when the feed could not be read.
//
// Usage:
//
//	go run ./cmd/racesync run --date 2024-05-12 --venue MAR --create
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/padraicbc/hippodash/cache"
	"github.com/padraicbc/hippodash/config"
	bundb "github.com/padraicbc/hippodash/db"
	"github.com/padraicbc/hippodash/feed"
	applog "github.com/padraicbc/hippodash/logger"
	"github.com/padraicbc/hippodash/normalize"
	"github.com/padraicbc/hippodash/reconcile"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCommand(setup, os.Stdout)
	if err := cmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

// setup connects to the database and the feed the way the server does.
func setup(ctx context.Context, verbose bool) (*env, error) {
	cfg := config.Load()
	if !cfg.SyncReady() {
		return nil, errors.New("FEED_BASE_URL is required")
	}
	logger, err := applog.New(cfg.Debug || verbose, "console")
	if err != nil {
		return nil, err
	}

	bdb := bundb.Setup(cfg)
	if err := bundb.CreateTables(ctx, bdb); err != nil {
		_ = bdb.Close()
		return nil, err
	}

	var feedOpts []feed.Option
	closeCache := func() {}
	if cfg.RedisURL != "" {
		if rdb, err := cache.Connect(ctx, cfg.RedisURL); err != nil {
			logger.Warn("redis unavailable, detail cache disabled", zap.Error(err))
		} else {
			closeCache = func() { _ = rdb.Close() }
			feedOpts = append(feedOpts, feed.WithCache(cache.NewDetailCache(rdb, cfg.DetailCacheTTL, logger)))
		}
	}
	client := feed.NewClient(feed.Config{
		BaseURL: cfg.Feed.BaseURL,
		Timeout: cfg.Feed.Timeout,
		Proxy:   cfg.Feed.Proxy,
	}, logger, feedOpts...)

	return &env{
		syncer:       reconcile.New(bundb.NewStore(bdb), client, normalize.DefaultVenues, cfg.Feed.DefaultCurrency, logger),
		defaultVenue: cfg.Sync.DefaultVenue,
		close: func() {
			closeCache()
			_ = logger.Sync()
			_ = bdb.Close()
		},
	}, nil
}
