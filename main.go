package main

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"golang.org/x/crypto/acme/autocert"
	"golang.org/x/sync/errgroup"

	"github.com/padraicbc/hippodash/cache"
	"github.com/padraicbc/hippodash/config"
	"github.com/padraicbc/hippodash/db"
	"github.com/padraicbc/hippodash/feed"
	"github.com/padraicbc/hippodash/handlers"
	applog "github.com/padraicbc/hippodash/logger"
	mw "github.com/padraicbc/hippodash/middleware"
	"github.com/padraicbc/hippodash/normalize"
	"github.com/padraicbc/hippodash/reconcile"
	"github.com/padraicbc/hippodash/scheduler"
)

func main() {
	cfg := config.Load()
	logger, err := applog.New(cfg.Debug, cfg.LogFormat)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bdb := db.Setup(cfg)
	defer bdb.Close()

	if err := db.CreateTables(ctx, bdb); err != nil {
		logger.Fatal("create tables failed", zap.Error(err))
	}

	store := db.NewStore(bdb)
	opts := handlers.Options{
		Store:        store,
		DefaultVenue: cfg.Sync.DefaultVenue,
		Currency:     cfg.Feed.DefaultCurrency,
	}

	var rec *reconcile.Reconciler
	if cfg.SyncReady() {
		rec = newReconciler(ctx, cfg, store, logger)
		opts.Syncer = rec
	} else {
		logger.Warn("FEED_BASE_URL not set, sync disabled")
	}

	h := handlers.New(bdb, cfg.JWTKey(), opts)
	e := newServer(cfg, h, logger)

	var srv *http.Server
	if cfg.Debug {
		srv = &http.Server{Addr: cfg.Port, Handler: e}
	} else {
		autoTLS := &autocert.Manager{
			Prompt:     autocert.AcceptTOS,
			Cache:      autocert.DirCache(".cache"),
			HostPolicy: autocert.HostWhitelist(cfg.TLSDomains...),
		}
		srv = &http.Server{
			Addr:         ":443",
			Handler:      e,
			TLSConfig:    autoTLS.TLSConfig(),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 120 * time.Second,
			IdleTimeout:  15 * time.Second,
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		if cfg.Debug {
			logger.Info("starting server", zap.String("mode", "debug"), zap.String("addr", srv.Addr))
			err = srv.ListenAndServe()
		} else {
			logger.Info("starting server", zap.String("mode", "tls"), zap.Strings("domains", cfg.TLSDomains))
			err = srv.ListenAndServeTLS("", "")
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if cfg.Sync.Enabled && rec != nil {
		sched := scheduler.New(rec, cfg.Sync.Interval, cfg.Sync.DefaultVenue, logger)
		g.Go(func() error {
			if err := sched.Run(gctx); !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("server exited", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

// newReconciler wires the feed client, with the Redis detail cache when one
// is configured, into a Reconciler over store.
func newReconciler(ctx context.Context, cfg *config.Config, store *db.Store, logger *zap.Logger) *reconcile.Reconciler {
	var feedOpts []feed.Option
	if cfg.RedisURL != "" {
		rdb, err := cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			logger.Warn("redis unavailable, detail cache disabled", zap.Error(err))
		} else {
			feedOpts = append(feedOpts, feed.WithCache(cache.NewDetailCache(rdb, cfg.DetailCacheTTL, logger)))
		}
	}

	client := feed.NewClient(feed.Config{
		BaseURL: cfg.Feed.BaseURL,
		Timeout: cfg.Feed.Timeout,
		Proxy:   cfg.Feed.Proxy,
	}, logger, feedOpts...)

	return reconcile.New(store, client, normalize.DefaultVenues, cfg.Feed.DefaultCurrency, logger)
}

func newServer(cfg *config.Config, h *handlers.Handler, logger *zap.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod: true,
		LogURI:    true,
		LogStatus: true,
		LogError:  true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.Int("status", v.Status),
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
			}
			if v.Error != nil {
				fields = append(fields, zap.Error(v.Error))
			}
			switch {
			case v.Status >= 500:
				logger.Error("http request", fields...)
			case v.Status >= 400:
				logger.Warn("http request", fields...)
			default:
				logger.Info("http request", fields...)
			}
			return nil
		},
	}))
	e.Use(echomw.Recover())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"*", "Authorization"},
		AllowCredentials: true,
	}))

	// Public
	e.POST("/rp/signin", h.Signin)

	// Protected – require valid JWT in Authorization header
	rp := e.Group("/rp", mw.JWT(cfg.JWTKey()))
	rp.POST("/password-hash", h.PasswordHash)
	rp.GET("/venues", h.Venues)
	rp.GET("/dates", h.Dates)
	rp.GET("/races", h.Races)
	rp.POST("/races", h.CreateRace)
	rp.GET("/races/:id", h.Race)
	rp.PUT("/races/:id", h.UpdateRace)
	rp.DELETE("/races/:id", h.DeleteRace)
	rp.GET("/results", h.Results)
	rp.GET("/results/:raceID", h.Result)
	rp.PUT("/results/:raceID", h.SaveResult)
	rp.POST("/sync", h.Sync)

	if cfg.StaticDir != "" {
		serveDashboard(e, os.DirFS(cfg.StaticDir))
	}
	return e
}

// serveDashboard serves the built dashboard from root, falling back to
// index.html for client-side routes.
func serveDashboard(e *echo.Echo, root fs.FS) {
	fileServer := http.FileServer(http.FS(root))
	e.GET("/*", func(c echo.Context) error {
		path := c.Request().URL.Path

		// If request is for a static file, serve it
		if strings.Contains(path, ".") { // Matches JS, CSS, images, etc.
			fileServer.ServeHTTP(c.Response(), c.Request())
			return nil
		}
		// Otherwise, serve `index.html` for client-side routing (SPA fallback)
		indexFile, err := root.Open("index.html")
		if err != nil {
			return c.NoContent(http.StatusNotFound)
		}
		defer indexFile.Close()

		return c.Stream(http.StatusOK, "text/html", indexFile)
	})
}
