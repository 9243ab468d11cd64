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

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"api_backoffice/api"
	"api_backoffice/internal/config"
	"api_backoffice/internal/notifications"
	"api_backoffice/internal/observability"
	"api_backoffice/internal/reports"
	"api_backoffice/internal/sales"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		panic(fmt.Errorf("error trying to build logger: %v", err))
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	tp, shutdownTracing, err := observability.SetupTracing(ctx, cfg.OTelEndpoint, cfg.OTelInsecure)
	if err != nil {
		return err
	}
	defer shutdownStep(logger, "tracer provider", cfg.ShutdownTimeout, shutdownTracing)

	st, err := openStores(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.close(); err != nil {
			logger.Warn("failed to close storage", zap.Error(err))
		}
	}()

	if err := seedProducts(ctx, cfg.SeedProductsFile, st.catalog, logger); err != nil {
		return err
	}

	live, err := startRealtime(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer live.close()

	engine := notifications.NewEngine(st.notifications, live.dispatcher, logger.Named("notifications"),
		notifications.WithEngineTracer(tp.Tracer("notifications")),
		notifications.WithRetries(cfg.NotifyMaxRetries, 0),
	)
	listeners := []sales.Listener{engine}

	publisher, err := openEvents(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if publisher != nil {
		defer func() {
			if err := publisher.Close(); err != nil {
				logger.Warn("failed to close event publisher", zap.Error(err))
			}
		}()
		relay := newEventRelay(publisher, logger)
		defer shutdownStep(logger, "event relay", cfg.ShutdownTimeout, relay.Close)
		listeners = append(listeners, relay)
	}

	salesService := sales.NewService(st.sales, logger.Named("sales"),
		sales.WithListeners(listeners...),
		sales.WithTracer(tp.Tracer("sales")),
	)

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), api.AccessLog(logger.Named("http")))
	api.InitRoutes(r, api.Dependencies{
		Sales:                 salesService,
		Notifications:         notifications.NewService(st.notifications, logger.Named("notifications")),
		Reports:               reports.NewService(st.reports, logger.Named("reports")),
		Hub:                   live.hub,
		Auth:                  api.NewJWTAuthenticator(cfg.JWTSecret),
		Logger:                logger,
		RequireIdempotencyKey: cfg.RequireIdempotencyKey,
	})

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("error trying to start server: %w", err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}

func shutdownStep(logger *zap.Logger, name string, timeout time.Duration, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		logger.Warn("shutdown step failed", zap.String("component", name), zap.Error(err))
	}
}
