// Package main runs the storefront cart service.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/sync/errgroup"

	"github.com/giftsbydivi/gifts-by-divi-sub000/internal/app"
	"github.com/giftsbydivi/gifts-by-divi-sub000/internal/config"
	"github.com/giftsbydivi/gifts-by-divi-sub000/pkg/bootstrap"
	"github.com/giftsbydivi/gifts-by-divi-sub000/pkg/config/configloader"
	"github.com/giftsbydivi/gifts-by-divi-sub000/pkg/server"
	"github.com/giftsbydivi/gifts-by-divi-sub000/pkg/telemetry"
)

const serviceName = "storefront"

func main() {

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Printf("application run failed: %v", err)
		os.Exit(1)
	}
	log.Println("application stopped gracefully")
}

// run loads the configuration, wires the cart components and serves them until ctx is done.
func run(ctx context.Context) error {
	cfg, cfgErr := configloader.Load[*config.Config](serviceName, config.Defaults())
	if cfgErr != nil {
		return fmt.Errorf("failed to load configuration: %w", cfgErr)
	}
	log.Printf("Configuration loaded: %v", cfg)

	logger := bootstrap.NewLogger(cfg.Log.Level)
	slog.SetDefault(logger)

	meterProvider, metricsHandler, err := telemetry.NewMeterProvider(serviceName)
	if err != nil {
		return err
	}

	// create tracer provider if traces are exported
	var tracerProvider *tracesdk.TracerProvider
	if cfg.Telemetry.Traces.Enabled {
		tracerProvider, err = telemetry.NewTracerProvider(ctx, serviceName, cfg.Telemetry)
		if err != nil {
			logger.Error("error creating tracer provider", slog.Any("error", err))
			return err
		}
	}

	st, releaseStorage, err := app.NewStorage(ctx, cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("failed to open cart storage: %w", err)
	}
	defer releaseStorage()

	catalogClient, err := app.NewCatalog(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create catalog client: %w", err)
	}

	sinks, releaseSinks, err := app.NewSinks(ctx, cfg.Notify, logger)
	if err != nil {
		return fmt.Errorf("failed to create notification sinks: %w", err)
	}
	defer releaseSinks()

	deps := app.SetupDependencies(st, catalogClient, sinks, cfg, logger)
	defer deps.Carts.Close()
	httpServer := app.SetupHttpServer(deps, cfg)

	g, gCtx := errgroup.WithContext(ctx)

	// notifications keep flowing until the HTTP server has finished its in-flight requests
	dispatcherCtx, stopDispatcher := context.WithCancel(context.WithoutCancel(ctx))
	defer stopDispatcher()
	g.Go(func() error {
		return deps.Dispatcher.Run(dispatcherCtx)
	})

	// evict carts nobody has used for a while
	g.Go(func() error {
		return deps.Carts.Run(gCtx, deps.EvictAfter)
	})

	// Start the HTTP server
	g.Go(func() error {
		logger.Info("HTTP server listening", slog.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})
	// gracefully shutdown HTTP server on context cancellation, then drain notifications
	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("Shutting down HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown.Timeout)
		defer cancel()
		err := httpServer.Shutdown(shutdownCtx)
		logger.Info("Draining notifications...")
		stopDispatcher()
		return err
	})

	// Start the admin server if enabled
	if cfg.Admin.Enabled() {
		var metrics http.Handler
		if cfg.Admin.Metrics {
			metrics = metricsHandler
		}
		adminServer := server.NewAdminServer(cfg.Admin.Addr, metrics, cfg.Admin.PProf)
		g.Go(func() error {
			logger.Info("Admin server listening", slog.String("addr", adminServer.Addr))
			if err := adminServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("admin server failed: %w", err)
			}
			return nil
		})
		// gracefully shutdown admin server on context cancellation
		g.Go(func() error {
			<-gCtx.Done()
			logger.Info("Shutting down admin server...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown.Timeout)
			defer cancel()
			return adminServer.Shutdown(shutdownCtx)
		})
	}

	// gracefully shutdown tracer provider
	if tracerProvider != nil {
		g.Go(func() error {
			<-gCtx.Done()
			logger.Info("Shutting down tracer provider")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown.Timeout)
			defer cancel()
			if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("failed to shutdown tracer provider: %w", err)
			}
			return nil
		})
	}

	// gracefully shutdown meter provider
	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown.Timeout)
		defer cancel()
		if err := meterProvider.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shutdown meter provider: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("errgroup encountered an error: %w", err)
	}
	return nil
}
