// Package bootstrap wires all dependencies and starts the application.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/buildsage/buildsage/adapters/clock"
	"github.com/buildsage/buildsage/adapters/idgen"
	"github.com/buildsage/buildsage/adapters/metrics"
	"github.com/buildsage/buildsage/adapters/payment"
	"github.com/buildsage/buildsage/adapters/sqlite"
	"github.com/buildsage/buildsage/app"
	"github.com/buildsage/buildsage/config"
	"github.com/buildsage/buildsage/domain/plan"
	"github.com/buildsage/buildsage/ports"
	"github.com/buildsage/buildsage/web"
)

// App represents the running application.
type App struct {
	Logger     zerolog.Logger
	DB         *sqlite.DB
	HTTPServer *http.Server
	Metrics    *metrics.Collector
	Registry   *prometheus.Registry

	// Services
	Entitlements *app.EntitlementService
	Signup       *app.SignupService
	Promotions   *app.PromotionService
	Billing      *app.BillingService

	holder *config.Holder
	cfg    *config.Config
}

// New creates and initializes the application from a static config.
func New(cfg *config.Config) (*App, error) {
	return build(cfg, nil)
}

// NewWithHotReload creates the application with a watched config file.
// Plan limit tables pick up edits without a restart; server and
// database settings need one.
func NewWithHotReload(path string) (*App, error) {
	holder, err := config.NewHolder(path, setupLogger(config.LoggingConfig{Level: "info", Format: "json"}))
	if err != nil {
		return nil, err
	}
	a, err := build(holder.Get(), holder)
	if err != nil {
		holder.Stop()
		return nil, err
	}
	if err := holder.WatchFile(); err != nil {
		a.Logger.Warn().Err(err).Msg("config file watch unavailable")
	}
	holder.WatchSignals()
	return a, nil
}

func build(cfg *config.Config, holder *config.Holder) (*App, error) {
	logger := setupLogger(cfg.Logging)
	logger.Info().Msg("initializing buildsage")

	a := &App{
		Logger: logger,
		cfg:    cfg,
		holder: holder,
	}

	db, err := sqlite.Open(cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	a.DB = db
	logger.Info().Str("dsn", cfg.Database.DSN).Msg("database initialized")

	if cfg.Metrics.Enabled {
		a.Registry = prometheus.NewRegistry()
		a.Registry.MustRegister(collectors.NewGoCollector())
		a.Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		a.Metrics = metrics.New(a.Registry)
		logger.Info().Msg("prometheus metrics enabled")
	}

	accounts := sqlite.NewAccountStore(db)
	devices := sqlite.NewDeviceStore(db)
	promoStore := sqlite.NewPromotionStore(db)
	events := sqlite.NewBillingEventStore(db)

	realClock := clock.Real{}
	uuidGen := idgen.UUID{}

	a.Promotions = app.NewPromotionService(promoStore, uuidGen, realClock, a.Metrics, logger)
	a.Signup = app.NewSignupService(accounts, a.Promotions, cfg.Bootstrap.PromoCode, realClock, logger)
	a.Entitlements = app.NewEntitlementService(
		accounts, devices, a.Signup, a.limitSource(), realClock, a.Metrics, logger)
	a.Billing = app.NewBillingService(accounts, events, realClock, a.Metrics, logger)

	// Seed the launch promotion before serving so first signups can
	// redeem it.
	if cfg.Bootstrap.PromoCode != "" {
		grants, _ := plan.ParseCode(cfg.Bootstrap.Grants)
		err := a.Promotions.EnsureBootstrap(context.Background(), app.BootstrapPromotion{
			Code:    cfg.Bootstrap.PromoCode,
			Grants:  grants,
			MaxUses: cfg.Bootstrap.MaxUses,
		})
		if err != nil {
			logger.Warn().Err(err).Str("code", cfg.Bootstrap.PromoCode).
				Msg("bootstrap promotion not seeded")
		}
	}

	var parser ports.WebhookParser
	if cfg.Billing.Mode == "stripe" {
		parser = payment.NewStripeWebhook(cfg.Billing.WebhookSecret)
		logger.Info().Msg("stripe webhook endpoint enabled")
	}

	handler := web.NewHandler(web.Deps{
		Entitlements: a.Entitlements,
		Signup:       a.Signup,
		Promotions:   a.Promotions,
		Billing:      a.Billing,
		Webhooks:     parser,
		Store:        db,
		Gatherer:     a.Registry,
		Logger:       logger,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	a.HTTPServer = &http.Server{
		Addr:         addr,
		Handler:      handler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	logger.Info().Str("addr", addr).Msg("http server configured")

	return a, nil
}

// limitSource returns the limit table provider: the live holder when
// hot reload is on, the static config otherwise.
func (a *App) limitSource() func() plan.LimitTable {
	if a.holder != nil {
		return a.holder.LimitTable
	}
	table := a.cfg.LimitTable()
	return func() plan.LimitTable { return table }
}

// Run starts the HTTP server and blocks until shutdown.
func (a *App) Run() error {
	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().Str("addr", a.HTTPServer.Addr).Msg("starting http server")
		if err := a.HTTPServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		a.Logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	return a.Shutdown()
}

// Shutdown gracefully stops the application.
func (a *App) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if a.HTTPServer != nil {
		if err := a.HTTPServer.Shutdown(ctx); err != nil {
			a.Logger.Error().Err(err).Msg("http server shutdown error")
		}
	}

	if a.holder != nil {
		a.holder.Stop()
	}

	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("database close error")
		}
	}

	a.Logger.Info().Msg("shutdown complete")
	return nil
}

func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		return zerolog.New(output).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}
