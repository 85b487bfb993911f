// Package app wires configuration, storage, domain services, and the HTTP
// server into a running process.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/go-redis/redis/v8"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/strhma/ukm-catalog/internal/cartstore"
	"github.com/strhma/ukm-catalog/internal/domain/cart"
	"github.com/strhma/ukm-catalog/internal/domain/order"
	"github.com/strhma/ukm-catalog/internal/domain/shipping"
	"github.com/strhma/ukm-catalog/internal/handler"
	"github.com/strhma/ukm-catalog/internal/shipping/rajaongkir"
	"github.com/strhma/ukm-catalog/internal/storage/postgres"
	"github.com/strhma/ukm-catalog/pkg/health"
	"github.com/strhma/ukm-catalog/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))

	// Cart store: Redis when configured, in-memory otherwise.
	var carts cart.Store
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return errors.Wrap(err, "parse redis url")
		}
		redisCarts, err := cartstore.NewRedis(ctx, opts, cfg.Cart.TTL)
		if err != nil {
			return errors.Wrap(err, "connect redis")
		}
		defer redisCarts.Close()
		healthSvc.AddReadinessCheck("redis", 5*time.Second, health.PingCheck(redisCarts))
		carts = redisCarts
	} else {
		lg.Info("No redis URL configured, using in-memory cart store")
		memCarts := cartstore.NewMemory(cfg.Cart.TTL)
		memCarts.StartSweep(ctx, cfg.Cart.SweepInterval)
		carts = memCarts
	}

	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Repositories.
	productRepo := postgres.NewProductRepository(pool)
	orderStore := postgres.NewOrderStore(pool)
	sessionRepo := postgres.NewSessionRepository(pool)
	activityLog := postgres.NewActivityLog(pool)

	// Domain services.
	orderService := order.NewService(orderStore, carts, activityLog,
		order.WithRestockOnCancel(cfg.RestockOnCancel),
	)

	// Shipping rates are optional: without an API key the endpoint reports
	// unavailable and checkout proceeds shipping-less.
	var rates shipping.Provider
	if cfg.Shipping.APIKey != "" {
		rates = rajaongkir.NewClient(rajaongkir.Config{
			BaseURL:      cfg.Shipping.BaseURL,
			APIKey:       cfg.Shipping.APIKey,
			OriginCityID: cfg.Shipping.OriginCityID,
			Timeout:      cfg.Shipping.Timeout,
		})
	}

	// HTTP handlers.
	h := handler.New(
		handler.Config{DevMode: cfg.DevMode, Couriers: cfg.Shipping.Couriers},
		productRepo,
		carts,
		orderService,
		rates,
		activityLog,
	)
	security := handler.NewSecurity(sessionRepo, []byte(cfg.SessionPepper))

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	h.Register(mux, security.Require, security.RequireAdmin)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument("ukm-catalog",
				otelhttpOptions(m)...,
			),
			httpmiddleware.LogRequests(),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

func otelhttpOptions(m *app.Telemetry) []otelhttp.Option {
	return []otelhttp.Option{
		otelhttp.WithTracerProvider(m.TracerProvider()),
		otelhttp.WithMeterProvider(m.MeterProvider()),
	}
}
