package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/lims/lims/internal/config"
	"github.com/lims/lims/internal/domain/billing"
	"github.com/lims/lims/internal/domain/catalog"
	"github.com/lims/lims/internal/domain/identity"
	"github.com/lims/lims/internal/domain/inventory"
	"github.com/lims/lims/internal/domain/patient"
	"github.com/lims/lims/internal/domain/report"
	"github.com/lims/lims/internal/domain/result"
	"github.com/lims/lims/internal/domain/settings"
	"github.com/lims/lims/internal/domain/template"
	"github.com/lims/lims/internal/platform/auth"
	"github.com/lims/lims/internal/platform/db"
	"github.com/lims/lims/internal/platform/kv"
	"github.com/lims/lims/internal/platform/middleware"
	"github.com/lims/lims/internal/platform/notification"
	"github.com/lims/lims/internal/platform/websocket"
)

// namespaces is every collection the server writes, in copy order.
var namespaces = []string{
	settings.Namespace,
	identity.Namespace,
	template.Namespace,
	catalog.Namespace,
	patient.Namespace,
	billing.Namespace,
	result.Namespace,
	inventory.Namespace,
	notification.Namespace,
}

type app struct {
	store     kv.Store
	issuer    *auth.TokenIssuer
	feed      *notification.Feed
	templates *template.Service
	patients  *patient.Service
	catalog   *catalog.Service
	results   *result.Service
	billing   *billing.Service
	inventory *inventory.Service
	identity  *identity.Service
	settings  *settings.Service
	reports   *report.Service
}

// newApp wires the domain services over store. pub may be nil when no
// live clients are attached, as in the one-shot commands.
func newApp(cfg *config.Config, store kv.Store, pub notification.Publisher, logger zerolog.Logger) *app {
	a := &app{store: store}
	a.issuer = auth.NewTokenIssuer(auth.JWTConfig{
		SigningKey: []byte(cfg.AuthSigningKey),
		Issuer:     "lims",
		TTL:        cfg.AuthTokenTTL,
		Skipper:    auth.AuthSkipper,
	})
	a.feed = notification.NewFeed(store, cfg.NotificationFeedLimit, pub, logger)
	notifier := notification.Safe(a.feed, logger)

	a.templates = template.NewService(template.NewKVRepo(store), logger)
	a.patients = patient.NewService(patient.NewKVRepo(store))
	a.catalog = catalog.NewService(catalog.NewKVRepo(store), logger)
	a.settings = settings.NewService(store, notifier, logger)
	a.identity = identity.NewService(identity.NewKVRepo(store), a.issuer, notifier, logger)
	a.results = result.NewService(result.NewKVRepo(store), a.catalog, a.templates, a.patients, notifier, logger)
	a.billing = billing.NewService(billing.NewKVRepo(store), a.catalog, a.patients, a.settings, notifier, logger)
	a.inventory = inventory.NewService(inventory.NewKVRepo(store), notifier, logger)
	a.reports = report.NewService(a.billing, a.results, a.patients, a.settings, a.identity)
	return a
}

// bootstrap creates the administrator and the data deletion password on a
// fresh store. Both default to ADMIN_PASSWORD.
func (a *app) bootstrap(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	if cfg.AdminPassword == "" {
		logger.Warn().Msg("ADMIN_PASSWORD is empty, skipping administrator bootstrap")
		return nil
	}
	if _, err := a.identity.Bootstrap(ctx, cfg.AdminID, cfg.AdminPassword); err != nil {
		return err
	}
	created, err := a.settings.EnsureDeletionPassword(ctx, cfg.AdminPassword)
	if err != nil {
		return err
	}
	if created {
		logger.Info().Msg("data deletion password initialised from ADMIN_PASSWORD")
	}
	return nil
}

// newEcho builds the HTTP server with the middleware chain and every route.
func newEcho(cfg *config.Config, a *app, hub *websocket.Hub, logger zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: parseOrigins(cfg.CORSOrigins),
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	if cfg.DevAuth() {
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware(a.issuer))
	}

	e.GET("/health", db.HealthHandler(a.store, cfg.DataBackend, version))

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}

	api := e.Group("/api/v1")
	api.Use(middleware.RateLimit(rateLimitCfg))
	api.Use(middleware.BodyLimit("2M"))
	api.Use(middleware.RequestTimeout(30 * time.Second))

	identity.NewHandler(a.identity).RegisterRoutes(api)
	settings.NewHandler(a.settings).RegisterRoutes(api)
	patient.NewHandler(a.patients).RegisterRoutes(api)
	catalog.NewHandler(a.catalog).RegisterRoutes(api)
	template.NewHandler(a.templates).RegisterRoutes(api)
	billing.NewHandler(a.billing).RegisterRoutes(api)
	result.NewHandler(a.results).RegisterRoutes(api)
	report.NewHandler(a.reports).RegisterRoutes(api)
	inventory.NewHandler(a.inventory).RegisterRoutes(api)
	notification.NewHandler(a.feed).RegisterRoutes(api)

	userID := func(c echo.Context) string { return auth.UserIDFromContext(c.Request().Context()) }
	websocket.NewHandler(hub, parseOrigins(cfg.CORSOrigins), userID).RegisterRoutes(api)

	return e
}

func runServer(parent context.Context, cfg *config.Config, logger zerolog.Logger) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := kv.Open(ctx, storeOptions(cfg, ""), logger)
	if err != nil {
		return fmt.Errorf("open %s backend: %w", cfg.DataBackend, err)
	}
	defer store.Close()
	logger.Info().Str("backend", cfg.DataBackend).Msg("datastore opened")

	hub := websocket.NewHub(logger)
	a := newApp(cfg, store, hub, logger)
	if err := a.bootstrap(ctx, cfg, logger); err != nil {
		return err
	}
	e := newEcho(cfg, a, hub, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("version", version).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return websocket.Pump(gctx, store, hub)
	})
	if runner, ok := store.(kv.Runner); ok {
		g.Go(func() error {
			return runner.Run(gctx)
		})
	}
	return g.Wait()
}
