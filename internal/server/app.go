// Package server builds the application's dependency graph and runs the HTTP server.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/partscout/internal/api"
	"github.com/JakeFAU/partscout/internal/clock/system"
	"github.com/JakeFAU/partscout/internal/config"
	"github.com/JakeFAU/partscout/internal/extract"
	"github.com/JakeFAU/partscout/internal/extract/sinks"
	"github.com/JakeFAU/partscout/internal/hash/sha256"
	"github.com/JakeFAU/partscout/internal/headless/detector"
	"github.com/JakeFAU/partscout/internal/id/uuid"
	"github.com/JakeFAU/partscout/internal/metrics"
	"github.com/JakeFAU/partscout/internal/pipeline"
	"github.com/JakeFAU/partscout/internal/policy/ratelimit"
	memorypublisher "github.com/JakeFAU/partscout/internal/publisher/memory"
	gcppublisher "github.com/JakeFAU/partscout/internal/publisher/pubsub"
	"github.com/JakeFAU/partscout/internal/render"
	"github.com/JakeFAU/partscout/internal/render/headless"
	"github.com/JakeFAU/partscout/internal/render/static"
	"github.com/JakeFAU/partscout/internal/scout"
	"github.com/JakeFAU/partscout/internal/source"
	gcsstorage "github.com/JakeFAU/partscout/internal/storage/gcs"
	localstorage "github.com/JakeFAU/partscout/internal/storage/local"
	memorystorage "github.com/JakeFAU/partscout/internal/storage/memory"
	pgstore "github.com/JakeFAU/partscout/internal/storage/postgres"
)

// App contains the application's dependencies.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	pipeline *pipeline.Service
	api      *api.Server

	headless     *headless.Renderer
	storage      *storage.Client
	pubsubClient *pubsub.Client
	gcpPublisher *gcppublisher.Publisher
	reportStore  *pgstore.ReportStore
}

// Build creates the application's dependencies. Clients opened before a failure are closed.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger) (app *App, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	built := &App{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			built.Close(context.Background())
		}
	}()
	app = built

	app.logger.Info("building application dependencies",
		zap.Int("server_port", cfg.Server.Port),
		zap.String("storage_backend", cfg.Storage.Backend),
		zap.Bool("headless", cfg.Render.Headless),
	)

	catalog, err := source.New(cfg.Catalog())
	if err != nil {
		return nil, fmt.Errorf("catalog init failed: %w", err)
	}
	blobs, err := app.setupStorage(ctx)
	if err != nil {
		return nil, err
	}
	reports, err := app.setupDatabase(ctx)
	if err != nil {
		return nil, err
	}
	publisher, err := app.setupPublisher(ctx)
	if err != nil {
		return nil, err
	}
	inventoryRenderer, marketRenderer := app.setupRenderers()

	app.pipeline, err = pipeline.New(pipeline.Dependencies{
		Catalog:           catalog,
		InventoryRenderer: inventoryRenderer,
		MarketRenderer:    marketRenderer,
		Extractor:         NewExtractor(cfg, logger),
		Blobs:             blobs,
		Reports:           reports,
		Publisher:         publisher,
		Hasher:            sha256.New(),
		Clock:             system.New(),
		IDs:               uuid.New(),
	}, pipeline.Config{
		ContentType:         cfg.Storage.ContentType,
		BlobPrefix:          cfg.Storage.Prefix,
		Topic:               cfg.PubSub.TopicName,
		ArchiveSnapshots:    cfg.Storage.KeepSnapshots,
		MaxParallelBranches: cfg.Render.MaxParallelBranches,
		ScrollRounds:        cfg.Render.ScrollRounds,
		Buckets:             cfg.Sources.Buckets,
	}, logger.Named("pipeline"))
	if err != nil {
		return nil, fmt.Errorf("pipeline init failed: %w", err)
	}

	app.api = api.NewServer(app.pipeline, catalog, cfg, logger.Named("api"))
	return app, nil
}

// NewExtractor builds the record extractor with log and metrics observers.
func NewExtractor(cfg config.Config, logger *zap.Logger) *extract.Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return extract.New(cfg.Extract(), extract.Observers{
		sinks.NewLogObserver(logger.Named("extract")),
		sinks.NewMetricsObserver(),
	})
}

// Pipeline exposes the service for one-off CLI runs.
func (a *App) Pipeline() *pipeline.Service {
	return a.pipeline
}

// Handler exposes the HTTP router.
func (a *App) Handler() http.Handler {
	return a.api.Handler()
}

// Run serves HTTP until ctx is canceled, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	a.Close(shutdownCtx)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	default:
		return nil
	}
}

// Close releases browsers, clients and pools. It is safe to call on a partly built App.
func (a *App) Close(_ context.Context) {
	if a.headless != nil {
		a.headless.Close()
	}
	if a.gcpPublisher != nil {
		a.gcpPublisher.Close()
	}
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
		}
	}
	if a.storage != nil {
		if err := a.storage.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
	if a.reportStore != nil {
		a.reportStore.Close()
	}
	if err := a.logger.Sync(); err != nil {
		a.logger.Debug("logger sync failed", zap.Error(err))
	}
}

func (a *App) setupStorage(ctx context.Context) (scout.BlobStore, error) {
	if !a.cfg.Storage.KeepSnapshots {
		a.logger.Info("snapshot archiving disabled")
		return nil, nil
	}
	switch a.cfg.Storage.Backend {
	case config.BackendGCS:
		a.logger.Info("using GCS storage backend", zap.String("bucket", a.cfg.Storage.Bucket))
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client init failed: %w", err)
		}
		a.storage = client
		blobs, err := gcsstorage.New(client, gcsstorage.Config{Bucket: a.cfg.Storage.Bucket})
		if err != nil {
			return nil, fmt.Errorf("gcs blob store init failed: %w", err)
		}
		return blobs, nil
	case config.BackendLocal:
		a.logger.Info("using local storage backend", zap.String("path", a.cfg.Storage.BaseDir))
		blobs, err := localstorage.New(localstorage.Config{BaseDir: a.cfg.Storage.BaseDir})
		if err != nil {
			return nil, fmt.Errorf("local blob store init failed: %w", err)
		}
		return blobs, nil
	default:
		a.logger.Info("using in-memory storage backend")
		return memorystorage.NewBlobStore(), nil
	}
}

func (a *App) setupDatabase(ctx context.Context) (scout.ReportStore, error) {
	if a.cfg.DB.DSN == "" {
		a.logger.Warn("no DSN specified for database, keeping reports in memory")
		return memorystorage.NewReportStore(), nil
	}
	store, err := pgstore.New(ctx, pgstore.Config{
		DSN:             a.cfg.DB.DSN,
		Table:           a.cfg.DB.Table,
		MaxConns:        a.cfg.DB.MaxConns,
		MinConns:        a.cfg.DB.MinConns,
		MaxConnLifetime: a.cfg.DB.MaxConnLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("report store init failed: %w", err)
	}
	a.reportStore = store
	if err := store.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("report store schema failed: %w", err)
	}
	a.logger.Info("report store initialized", zap.String("table", a.cfg.DB.Table))
	return store, nil
}

func (a *App) setupPublisher(ctx context.Context) (scout.Publisher, error) {
	if a.cfg.PubSub.TopicName == "" || a.cfg.PubSub.ProjectID == "" {
		a.logger.Warn("no Pub/Sub topic configured, using in-memory publisher")
		return memorypublisher.New(), nil
	}
	client, err := pubsub.NewClient(ctx, a.cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub client init failed: %w", err)
	}
	a.pubsubClient = client
	a.gcpPublisher, err = gcppublisher.New(client, a.cfg.PubSub.TopicName)
	if err != nil {
		return nil, fmt.Errorf("pubsub publisher init failed: %w", err)
	}
	a.logger.Info("Pub/Sub publisher initialized",
		zap.String("project", a.cfg.PubSub.ProjectID),
		zap.String("topic", a.cfg.PubSub.TopicName),
	)
	return a.gcpPublisher, nil
}

// setupRenderers returns the inventory and market renderers. Inventory pages need a browser
// for their lazy-loaded cards; without one they fall back to a static fetch. Market pages are
// fetched statically and promoted to the browser when the static HTML lacks results.
func (a *App) setupRenderers() (render.Renderer, render.Renderer) {
	rc := a.cfg.Render
	limiter := ratelimit.New(ratelimit.Config{DefaultRPS: a.cfg.RateLimit.RPS, DefaultBurst: a.cfg.RateLimit.Burst})
	staticRenderer := static.New(static.Config{
		UserAgent:     rc.UserAgent,
		RespectRobots: rc.RespectRobots,
		Timeout:       time.Duration(rc.FetchTimeoutSeconds) * time.Second,
	})
	renderLogger := a.logger.Named("render")

	var inventory, market render.Renderer = staticRenderer, staticRenderer
	if rc.Headless {
		browser, err := headless.New(headless.Config{
			MaxParallel:       rc.MaxParallel,
			UserAgent:         rc.UserAgent,
			NavigationTimeout: time.Duration(rc.NavTimeoutSeconds) * time.Second,
			WaitTimeout:       time.Duration(rc.WaitTimeoutSeconds) * time.Second,
			ScrollPause:       time.Duration(rc.ScrollPauseMs) * time.Millisecond,
			SettleDelay:       time.Duration(rc.SettleMs) * time.Millisecond,
			Visible:           rc.Visible,
		}, renderLogger)
		if err != nil {
			a.logger.Warn("headless renderer init failed, falling back to static fetch", zap.Error(err))
		} else {
			a.headless = browser
			inventory = browser
			market = render.NewPromoting(staticRenderer, browser, detector.NewHeuristic(rc.PromotionThreshold), renderLogger)
			a.logger.Info("using headless renderer", zap.Int("max_parallel", rc.MaxParallel))
		}
	}
	return render.NewInstrumented(inventory, limiter, renderLogger),
		render.NewInstrumented(market, limiter, renderLogger)
}
