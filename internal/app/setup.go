// Package app contains the application setup for the storefront.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/giftsbydivi/gifts-by-divi-sub000/internal/cart/reconcile"
	"github.com/giftsbydivi/gifts-by-divi-sub000/internal/cart/storage"
	"github.com/giftsbydivi/gifts-by-divi-sub000/internal/cart/store"
	"github.com/giftsbydivi/gifts-by-divi-sub000/internal/catalog"
	"github.com/giftsbydivi/gifts-by-divi-sub000/internal/config"
	"github.com/giftsbydivi/gifts-by-divi-sub000/internal/notify"
	"github.com/giftsbydivi/gifts-by-divi-sub000/internal/transport/rest"
	"github.com/giftsbydivi/gifts-by-divi-sub000/pkg/bootstrap"
	"github.com/giftsbydivi/gifts-by-divi-sub000/pkg/client/http/transport"
	natsclient "github.com/giftsbydivi/gifts-by-divi-sub000/pkg/nats"
	"github.com/giftsbydivi/gifts-by-divi-sub000/pkg/server"
)

type Dependencies struct {
	Carts          *store.Registry
	EvictAfter     time.Duration
	Catalog        catalog.Client
	Lookups        *reconcile.LookupCache
	Dispatcher     *notify.Dispatcher
	ResolveTimeout time.Duration
	Logger         *slog.Logger
}

// SetupDependencies wires the cart components on top of an opened storage backend, a catalog client and the
// notification sinks.
func SetupDependencies(st storage.Storage, catalogClient catalog.Client, sinks []notify.Sink, cfg *config.Config,
	logger *slog.Logger) *Dependencies {
	lookups := reconcile.NewLookupCache(catalogClient,
		reconcile.WithLookupTimeout(cfg.Reconcile.LookupTimeout),
		reconcile.WithTTL(cfg.Reconcile.CacheTTL),
		reconcile.WithFailureTTL(cfg.Reconcile.FailureTTL),
		reconcile.WithCacheLogger(logger),
	)
	carts := store.NewRegistry(st, cfg.Storage.Prefix, logger, store.WithPersistTimeout(cfg.Storage.PersistTimeout))
	dispatcher := notify.NewDispatcher(sinks,
		notify.WithQueueSize(cfg.Notify.QueueSize),
		notify.WithSendTimeout(cfg.Notify.SendTimeout),
		notify.WithDrainTimeout(cfg.Shutdown.Drain),
		notify.WithLogger(logger),
	)

	return &Dependencies{
		Carts:          carts,
		EvictAfter:     cfg.Storage.EvictAfter(),
		Catalog:        catalogClient,
		Lookups:        lookups,
		Dispatcher:     dispatcher,
		ResolveTimeout: cfg.Reconcile.ResolveTimeout,
		Logger:         logger,
	}
}

// NewStorage opens the configured snapshot backend. The returned func releases its connections.
func NewStorage(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (storage.Storage, func(), error) {
	switch cfg.Backend {
	case config.StorageMemory:
		return storage.NewMemory(), func() {}, nil

	case config.StorageFile:
		st, err := storage.NewFile(cfg.Dir)
		if err != nil {
			return nil, nil, err
		}
		return st, func() {}, nil

	case config.StorageRedis:
		client, err := bootstrap.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Successfully connected to redis", slog.String("addr", cfg.Redis.Addr))
		return storage.NewRedis(client, cfg.TTL), func() { _ = client.Close() }, nil

	case config.StoragePostgres:
		if cfg.Database.MigrationsPath != "" {
			if err := storage.RunMigrations(cfg.Database.MigrationsPath, cfg.Database.URL); err != nil {
				return nil, nil, err
			}
		}
		dbPool, err := bootstrap.NewDbPool(ctx, cfg.Database.URL, cfg.Database.Timeout)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Successfully connected to the database!")
		return storage.NewPostgres(dbPool), dbPool.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// NewCatalog builds the configured catalog client.
func NewCatalog(cfg *config.Config, logger *slog.Logger) (catalog.Client, error) {
	switch cfg.Catalog.Source {
	case config.CatalogMemory:
		seeded, err := catalog.LoadInMemory(cfg.Catalog.SeedFile)
		if err != nil {
			return nil, err
		}
		return seeded, nil
	case config.CatalogHTTP:
		client := transport.NewClient("catalog", cfg.Catalog.HTTP, cfg.Resilience.CircuitBreaker)
		return catalog.NewHTTPClient(cfg.Catalog.HTTP, client, logger), nil
	default:
		return nil, fmt.Errorf("unknown catalog source %q", cfg.Catalog.Source)
	}
}

// NewSinks returns the notification sinks. The log sink is always present; the NATS sink is added when enabled.
func NewSinks(ctx context.Context, cfg config.NotifyConfig, logger *slog.Logger) ([]notify.Sink, func(), error) {
	sinks := []notify.Sink{notify.NewLogSink(logger)}
	if !cfg.NatsEnabled {
		return sinks, func() {}, nil
	}

	nc, err := natsclient.NewClient(cfg.Nats.Url, cfg.Nats.Timeout)
	if err != nil {
		return nil, nil, err
	}
	js, err := natsclient.NewJetStreamContext(nc)
	if err != nil {
		return nil, nil, err
	}
	if err := natsclient.EnsureStream(ctx, js, cfg.Nats.Stream, cfg.Nats.SubjectPrefix); err != nil {
		nc.Close()
		return nil, nil, err
	}
	logger.Info("Successfully connected to NATS", slog.String("stream", cfg.Nats.Stream))

	publisher := natsclient.NewNatsPublisher(js, cfg.Nats.SubjectPrefix)
	sinks = append(sinks, notify.NewNatsSink(publisher))
	return sinks, func() { _ = nc.Drain() }, nil
}

// SetupHttpHandler initializes the router and routes of the storefront.
// Used by tests to exercise the full middleware stack.
func SetupHttpHandler(deps *Dependencies) http.Handler {
	mux := server.NewChiRouter(deps.Logger)
	wireRoutes(mux, deps)
	return mux
}

// wireRoutes sets up the HTTP routes of the storefront.
func wireRoutes(mux *chi.Mux, deps *Dependencies) {
	handler := rest.NewHandler(deps.Carts, deps.Catalog, deps.Lookups, deps.Dispatcher, deps.ResolveTimeout, deps.Logger)
	handler.RegisterRoutes(mux)
}

// SetupHttpServer creates and configures the HTTP server of the storefront.
func SetupHttpServer(deps *Dependencies, cfg *config.Config) *http.Server {

	mux := SetupHttpHandler(deps)

	httpCfg := server.HTTPConfig{
		Port:           cfg.HTTPServer.Port,
		MaxHeaderBytes: cfg.HTTPServer.MaxHeaderBytes,
		ReadTimeout:    cfg.HTTPServer.Timeout.Read,
		WriteTimeout:   cfg.HTTPServer.Timeout.Write,
		IdleTimeout:    cfg.HTTPServer.Timeout.Idle,
		ReadHeader:     cfg.HTTPServer.Timeout.ReadHeader,
	}

	return server.NewHTTPServer(httpCfg, "storefront", mux)
}
