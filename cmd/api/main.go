package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Michael-Zapivahin/sensive-blog/internal/admin"
	"github.com/Michael-Zapivahin/sensive-blog/internal/api"
	"github.com/Michael-Zapivahin/sensive-blog/internal/blog"
	"github.com/Michael-Zapivahin/sensive-blog/internal/config"
	gdb "github.com/Michael-Zapivahin/sensive-blog/internal/db"
	"github.com/Michael-Zapivahin/sensive-blog/internal/jobs"
	"github.com/Michael-Zapivahin/sensive-blog/internal/log"
	"github.com/Michael-Zapivahin/sensive-blog/internal/metrics"
	"github.com/Michael-Zapivahin/sensive-blog/internal/render"
	"github.com/Michael-Zapivahin/sensive-blog/internal/store"
	"github.com/Michael-Zapivahin/sensive-blog/pkg/kv"

	_ "github.com/Michael-Zapivahin/sensive-blog/pkg/kv/memory"
	_ "github.com/Michael-Zapivahin/sensive-blog/pkg/kv/redis"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	logger, err := log.NewSugar(cfg.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Infow("Starting blog server",
		"env", cfg.Env,
		"addr", cfg.HTTPAddr,
		"db", cfg.Database.Type,
		"kv", cfg.Cache.Backend,
	)

	// Setup metrics
	metricsObj, metricsHandler, err := metrics.Setup("sensive-blog")
	if err != nil {
		logger.Fatalw("Failed to setup metrics", "error", err)
	}

	// Entity store
	db, err := gdb.NewDatabase(&gdb.Config{
		Type:     cfg.Database.Type,
		DSN:      cfg.Database.PostgresDSN,
		MaxConns: cfg.Database.MaxConns,
	}, logger)
	if err != nil {
		logger.Fatalw("Failed to create database", "error", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := gdb.ConnectAndMigrate(ctx, db); err != nil {
		logger.Fatalw("Failed to initialize database", "error", err)
	}
	defer db.Disconnect(context.Background())
	logger.Infow("Database initialized")

	if cfg.IsDev() && cfg.Database.Type == gdb.TypeMemory {
		if _, err := gdb.SeedSample(ctx, db, time.Now().UTC()); err != nil {
			logger.Fatalw("Failed to seed sample data", "error", err)
		}
		logger.Infow("Seeded sample blog into the in-memory store")
	}

	// Page cache; an unreachable Redis falls back to memory
	kvStore, err := kv.NewStoreFromConfig(kv.Config{
		Backend:          kv.Backend(cfg.Cache.Backend),
		RedisURL:         cfg.Cache.RedisURL,
		FallbackToMemory: true,
		Logger:           logger.Warnw,
	})
	if err != nil {
		logger.Fatalw("Failed to setup cache", "error", err)
	}
	cache := store.NewPageCache(kvStore, cfg.Cache.TTL, logger, metricsObj)
	defer cache.Close()

	if err := cache.Ping(ctx); err != nil {
		logger.Warnw("Cache ping failed, pages will be built on every request", "error", err)
	} else {
		logger.Infow("Cache connection established")
	}

	// Pages
	html, err := render.NewHTMLRenderer()
	if err != nil {
		logger.Fatalw("Failed to parse templates", "error", err)
	}
	pages := blog.NewService(db, blog.Serializer{MediaURL: cfg.Media.URL}, cache, logger, metricsObj)

	routeCfg := api.RouterConfig{
		CORSOrigins:    cfg.Security.CORSAllowedOrigins,
		RateLimitRPM:   cfg.Security.RateLimitRPM,
		RequestTimeout: cfg.RequestTimeout,
		Metrics:        metricsHandler,
		MediaURL:       cfg.Media.URL,
		MediaRoot:      cfg.Media.Root,
	}
	if cfg.AdminEnabled() {
		adminSvc := admin.NewService(db, cache, logger, metricsObj)
		routeCfg.Admin = admin.NewHandler(adminSvc, cfg.Security.AdminToken, logger).Routes()
		logger.Infow("Admin API enabled", "path", "/admin")
	} else {
		logger.Infow("Admin API disabled, set BLOG_ADMIN_TOKEN to enable it")
	}

	jobsCtx, jobsCancel := context.WithCancel(context.Background())
	defer jobsCancel()
	if cfg.Cache.WarmInterval > 0 {
		warmer := jobs.NewPageWarmer(pages, logger, jobs.PageWarmerConfig{
			Interval: cfg.Cache.WarmInterval,
			Timeout:  cfg.RequestTimeout,
		})
		go func() {
			if err := warmer.Start(jobsCtx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Errorw("Page warmer error", "error", err)
			}
		}()
	}

	handler := api.NewHandler(pages, html, db, cache, logger)
	middleware := api.NewMiddleware(logger, metricsObj)
	router := handler.Routes(middleware, routeCfg)

	logger.Infow("CORS configured", "allowed_origins", cfg.Security.CORSAllowedOrigins)

	// Setup HTTP server
	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Infow("HTTP server starting", "addr", server.Addr)
		serverErrors <- server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalw("Server startup failed", "error", err)
		}
	case sig := <-shutdown:
		logger.Infow("Shutdown signal received", "signal", sig.String())
		jobsCancel()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Errorw("Graceful shutdown failed", "error", err)
			server.Close()
		}

		logger.Infow("Server stopped")
	}
}
