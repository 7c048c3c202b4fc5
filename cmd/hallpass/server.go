package main

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	slogecho "github.com/samber/slog-echo"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/ihub-edu/hallpass/genai"
	"github.com/ihub-edu/hallpass/knowledge"
	"github.com/ihub-edu/hallpass/moderation"
	"github.com/ihub-edu/hallpass/moderation/actionlog"
	"github.com/ihub-edu/hallpass/moderation/cachestore"
	"github.com/ihub-edu/hallpass/moderation/countstore"
	"github.com/ihub-edu/hallpass/moderation/flagstore"
	"github.com/ihub-edu/hallpass/moderation/msglog"
	"github.com/ihub-edu/hallpass/moderation/rules"
	"github.com/ihub-edu/hallpass/moderation/sessionstore"
	"github.com/ihub-edu/hallpass/moderation/wordsets"
	"github.com/ihub-edu/hallpass/pkg/database"
	"github.com/ihub-edu/hallpass/pkg/metrics"
)

//go:embed static/*
var StaticFS embed.FS

//go:embed templates/*
var TemplateFS embed.FS

const (
	statsCacheTTL  = 30 * time.Second
	notifierPerDay = 200
)

// registers collectors once, no matter how many servers get built
var promMiddleware = echoprometheus.NewMiddleware("hallpass")

type ServerConfig struct {
	DatabaseURL      string
	RedisURL         string
	Bind             string
	MetricsListen    string
	AdminToken       string
	ConfigFile       string
	DenylistFile     string
	KnowledgeFile    string
	GeminiAPIKey     string
	GeminiModel      string
	SlackWebhookURL  string
	LogRetentionDays int
	Debug            bool
}

type Server struct {
	logger    *slog.Logger
	echo      *echo.Echo
	db        *gorm.DB
	engine    *moderation.Engine
	catalog   *knowledge.Catalog
	searcher  knowledge.Searcher
	completer genai.Completer

	bind          string
	metricsListen string
	adminToken    string
	retentionDays int
}

func NewServer(ctx context.Context, logger *slog.Logger, cfg ServerConfig) (*Server, error) {
	db, err := database.Setup(cfg.DatabaseURL, 40)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.AutoMigrate(&sessionstore.Session{}, &msglog.Entry{}, &actionlog.Action{}); err != nil {
		return nil, fmt.Errorf("migrating database: %w", err)
	}

	var counters countstore.CountStore
	var flags flagstore.FlagStore
	var cache cachestore.CacheStore
	if cfg.RedisURL != "" {
		counters, err = countstore.NewRedisCountStore(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("connecting redis countstore: %w", err)
		}
		flags, err = flagstore.NewRedisFlagStore(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("connecting redis flagstore: %w", err)
		}
		cache, err = cachestore.NewRedisCacheStore(cfg.RedisURL, statsCacheTTL)
		if err != nil {
			return nil, fmt.Errorf("connecting redis cachestore: %w", err)
		}
	} else {
		counters = countstore.NewMemCountStore()
		flags = flagstore.NewMemFlagStore()
		cache = cachestore.NewMemCacheStore(100, statsCacheTTL)
	}

	var notifier moderation.Notifier
	if cfg.SlackWebhookURL != "" {
		notifier = moderation.NewSlackNotifier(cfg.SlackWebhookURL, nil, notifierPerDay)
	}

	engine, err := moderation.NewEngine(moderation.EngineConfig{
		Logger:   logger.With("subsystem", "moderation"),
		Sessions: sessionstore.NewGormSessionStore(db),
		Messages: msglog.NewGormMessageLog(db),
		Actions:  actionlog.NewGormActionLog(db),
		Rules:    rules.DefaultRules(),
		Words:    wordsets.NewProvider(cfg.DenylistFile, logger),
		Config:   moderation.NewConfigStore(cfg.ConfigFile, logger),
		Counters: counters,
		Flags:    flags,
		Cache:    cache,
		Notifier: notifier,
	})
	if err != nil {
		return nil, err
	}

	catalog := knowledge.NewCatalog(cfg.KnowledgeFile, logger)
	searcher, err := knowledge.NewLexicalSearcher(catalog)
	if err != nil {
		return nil, err
	}

	var completer genai.Completer
	if cfg.GeminiAPIKey != "" {
		completer = genai.NewGeminiClient("", cfg.GeminiAPIKey, cfg.GeminiModel, 2)
	} else {
		logger.Info("no generation backend configured, serving canned responses")
	}

	srv := &Server{
		logger:        logger,
		db:            db,
		engine:        engine,
		catalog:       catalog,
		searcher:      searcher,
		completer:     completer,
		bind:          cfg.Bind,
		metricsListen: cfg.MetricsListen,
		adminToken:    cfg.AdminToken,
		retentionDays: cfg.LogRetentionDays,
	}
	srv.echo = srv.buildEcho(cfg.Debug)
	return srv, nil
}

func (srv *Server) buildEcho(debug bool) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(slogecho.New(srv.logger))
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("64K"))
	e.Use(middleware.CORS())
	// SECURITY: Do not modify without due consideration.
	e.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "SAMEORIGIN",
		HSTSMaxAge:         31536000, // 365 days
	}))
	e.Use(promMiddleware)
	e.Renderer = NewRenderer("templates/", &TemplateFS, debug)
	e.HTTPErrorHandler = srv.errorHandler

	staticHandler := http.FileServer(func() http.FileSystem {
		if debug {
			return http.FS(os.DirFS("static"))
		}
		fsys, err := fs.Sub(StaticFS, "static")
		if err != nil {
			srv.logger.Error("static FS setup failed", "err", err)
			os.Exit(1)
		}
		return http.FS(fsys)
	}())

	e.GET("/robots.txt", echo.WrapHandler(staticHandler))
	e.GET("/favicon.ico", echo.WrapHandler(staticHandler))
	e.GET("/static/*", echo.WrapHandler(http.StripPrefix("/static/", staticHandler)))

	e.GET("/", srv.handleHome)
	e.GET("/_health", srv.handleHealthCheck)

	api := e.Group("/api")
	api.POST("/chat", srv.handleChat)
	api.POST("/search", srv.handleSearch)
	api.GET("/tools", srv.handleTools)
	api.GET("/categories", srv.handleCategories)

	if srv.adminToken != "" {
		admin := api.Group("/admin", srv.checkAdminAuth)
		admin.GET("/stats", srv.handleAdminStats)
		admin.GET("/user/:identity", srv.handleAdminUser)
		admin.POST("/block", srv.handleAdminBlock)
		admin.POST("/unblock", srv.handleAdminUnblock)
		admin.GET("/config", srv.handleAdminGetConfig)
		admin.POST("/config", srv.handleAdminUpdateConfig)
		admin.GET("/denylist", srv.handleAdminGetDenylist)
		admin.POST("/denylist", srv.handleAdminUpdateDenylist)
		admin.GET("/activity", srv.handleAdminActivity)
	} else {
		srv.logger.Warn("no admin token configured, admin API disabled")
	}

	return e
}

// JSON for the API routes, rendered page for the web routes.
func (srv *Server) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code := http.StatusInternalServerError
	msg := "Internal server error"
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			msg = m
		}
	}
	if code >= 500 {
		srv.logger.Error("request failed", "path", c.Request().URL.Path, "err", err)
		// opaque message for server faults, no internals leak
		msg = "Internal server error"
	}
	if strings.HasPrefix(c.Request().URL.Path, "/api/") {
		_ = c.JSON(code, map[string]any{"error": msg})
		return
	}
	_ = c.Render(code, "error.html", map[string]any{"statusCode": code})
}

// RunUntilShutdown serves the API and metrics listeners until SIGINT/SIGTERM,
// then drains in-flight requests and closes the database handle.
func (srv *Server) RunUntilShutdown(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, ctx := errgroup.WithContext(ctx)
	cancelCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	group.Go(func() error {
		srv.logger.Info("hallpass listening", "bind", srv.bind)
		if err := srv.echo.Start(srv.bind); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		return metrics.RunServer(cancelCtx, cancel, srv.metricsListen)
	})
	if srv.retentionDays > 0 {
		group.Go(func() error {
			srv.runRetentionSweep(cancelCtx)
			return nil
		})
	}
	group.Go(func() error {
		<-ctx.Done()
		srv.logger.Info("shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.echo.Shutdown(shutdownCtx); err != nil {
			srv.logger.Error("failed to shut down HTTP server", "err", err)
		}
		cancel()
		if sqldb, err := srv.db.DB(); err == nil {
			_ = sqldb.Close()
		}
		return nil
	})

	return group.Wait()
}

// periodic delete of message log rows past the retention horizon
func (srv *Server) runRetentionSweep(ctx context.Context) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().UTC().AddDate(0, 0, -srv.retentionDays)
			removed, err := srv.engine.Messages.TrimBefore(ctx, cutoff)
			if err != nil {
				srv.logger.Error("message log retention sweep failed", "err", err)
				continue
			}
			if removed > 0 {
				srv.logger.Info("message log retention sweep", "removed", removed, "cutoff", cutoff)
			}
		}
	}
}
