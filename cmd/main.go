package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/We-are-Humans-Corp/recommendation-service/internal/adapters/formuladata"
	"github.com/We-are-Humans-Corp/recommendation-service/internal/adapters/http/api"
	"github.com/We-are-Humans-Corp/recommendation-service/internal/adapters/http/swagger"
	"github.com/We-are-Humans-Corp/recommendation-service/internal/adapters/modelcache"
	"github.com/We-are-Humans-Corp/recommendation-service/internal/adapters/ratings"
	app "github.com/We-are-Humans-Corp/recommendation-service/internal/app"
	"github.com/We-are-Humans-Corp/recommendation-service/internal/app/karma"
	"github.com/We-are-Humans-Corp/recommendation-service/internal/app/recommend"
	"github.com/We-are-Humans-Corp/recommendation-service/internal/config"
	"github.com/We-are-Humans-Corp/recommendation-service/internal/domain/model"
	"github.com/We-are-Humans-Corp/recommendation-service/internal/domain/ratingmodel"
	"github.com/We-are-Humans-Corp/recommendation-service/pkg/logger"
	"github.com/We-are-Humans-Corp/recommendation-service/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readHeaderTimeout         = 5 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	if err := logger.Init(); err != nil {
		// Use stderr for initialization errors since logger isn't available yet
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> .env -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.SetFormat(cfg.LogFormat); err != nil {
		os.Stderr.WriteString("failed to set log format: " + err.Error() + "\n")
		os.Exit(1)
	}
	log := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	if err := run(ctx, cfg, log); err != nil {
		log.Error(ctx, "service failed", logger.Error(err))
		stop()
		os.Exit(1)
	}
}

// run wires every component from cfg and serves HTTP until ctx is done.
func run(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	source, err := ratings.Open(ctx, ratingsConfig(cfg.Ratings), log.Named("ratings"))
	if err != nil {
		return fmt.Errorf("open ratings: %w", err)
	}
	defer func() {
		if err := source.Close(); err != nil {
			log.Warn(ctx, "closing ratings source failed", logger.Error(err))
		}
	}()

	svc, err := newService(cfg, source, log)
	if err != nil {
		return err
	}
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := svc.Stop(stopCtx); err != nil {
			log.Error(ctx, "service stop failed", logger.Error(err))
		}
	}()

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newHandler(ctx, cfg, svc, log),
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
	return nil
}

// newService builds the provider client and the service from cfg.
func newService(cfg *config.Config, source modelcache.RatingSource, log logger.Logger) (*app.Service, error) {
	f := cfg.Formula
	client, err := formuladata.New(formuladata.Endpoints{
		AScore:     f.AScoreURL,
		RScore:     f.RScoreURL,
		PostRating: f.PostRatingURL,
		Karma:      f.KarmaURL,
		KarmaLevel: f.KarmaLevelURL,
		UpdateInfo: f.UpdateInfoURL,
	},
		formuladata.WithTimeout(f.Timeout),
		formuladata.WithBreakerSettings(formuladata.BreakerSettings{
			MaxRequests:  f.Breaker.MaxRequests,
			Interval:     f.Breaker.Interval,
			Timeout:      f.Breaker.Timeout,
			MinRequests:  f.Breaker.MinRequests,
			FailureRatio: f.Breaker.FailureRatio,
		}),
		formuladata.WithLogger(log.Named("formuladata")),
	)
	if err != nil {
		return nil, fmt.Errorf("formula data client: %w", err)
	}

	algo, err := ratingmodel.ParseAlgorithm(cfg.Recommend.DefaultAlgorithm)
	if err != nil {
		return nil, err
	}

	m := cfg.Model
	opts := []app.Option{
		app.WithLogger(log),
		app.WithWorkerCount(cfg.Refresh.Workers),
		app.WithQueueSize(cfg.Refresh.QueueSize),
		app.WithDedupeSize(cfg.Refresh.DedupeSize),
		app.WithJobTimeout(cfg.Refresh.JobTimeout),
		app.WithKarmaOptions(karma.WithParallelFetch(f.ParallelFetch)),
		app.WithCacheOptions(
			modelcache.WithTTL(m.TTL),
			modelcache.WithPerAlgorithm(m.PerAlgorithm),
			modelcache.WithScale(model.Scale{Min: cfg.Ratings.ScaleMin, Max: cfg.Ratings.ScaleMax}),
			modelcache.WithModelConfig(modelConfig(m)),
		),
		app.WithRecommendOptions(
			recommend.WithDefaultAlgorithm(algo),
			recommend.WithMaxN(cfg.Recommend.MaxN),
		),
	}
	if client.CanPublish() {
		opts = append(opts, app.WithPublisher(client))
	}
	return app.New(client, source, opts...), nil
}

// newHandler registers the docs and API routes.
func newHandler(ctx context.Context, cfg *config.Config, svc *app.Service, log logger.Logger) http.Handler {
	mux := http.NewServeMux()

	swagger.Register(ctx, mux)

	apiServer := api.NewServer(svc, api.StatsFunc(func() any { return svc.GetStats() }),
		api.WithRateLimit(cfg.HTTP.RateLimit, cfg.HTTP.RateWindow),
		api.WithDefaultAlgorithm(cfg.Recommend.DefaultAlgorithm),
		api.WithLogger(log.Named("http")),
	)
	apiServer.Register(ctx, mux)
	return apiServer.Handler(mux)
}

func modelConfig(m config.ModelConfig) ratingmodel.Config {
	return ratingmodel.Config{
		KNN: ratingmodel.KNNConfig{
			K:          m.KNN.K,
			MinK:       m.KNN.MinK,
			Similarity: m.KNN.Similarity,
			MinSupport: m.KNN.MinSupport,
		},
		SVD: ratingmodel.SVDConfig{
			Factors:      m.SVD.Factors,
			Epochs:       m.SVD.Epochs,
			LearningRate: m.SVD.LearningRate,
			Reg:          m.SVD.Reg,
			InitMean:     m.SVD.InitMean,
			InitStdDev:   m.SVD.InitStdDev,
			Seed:         m.SVD.Seed,
		},
	}
}

func ratingsConfig(r config.RatingsConfig) ratings.Config {
	c := ratings.Config{
		Kind:   r.Source,
		Schema: r.Schema,
		Table:  r.Table,
		Path:   r.CSVPath,
		Pool: ratings.Pool{
			MaxOpen:     r.PoolSize,
			MaxIdle:     r.PoolSize,
			MaxLifetime: r.PoolRecycle,
			Timeout:     r.PoolTimeout,
		},
	}
	switch strings.ToLower(r.Source) {
	case ratings.KindPostgres:
		c.DSN = r.PostgresURL
	case ratings.KindSQLite:
		c.DSN = r.SQLitePath
	}
	return c
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater starts a background goroutine that updates service metrics.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)

	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}

// updateServiceMetrics refreshes queue and worker gauges from the service.
func updateServiceMetrics(svc *app.Service) {
	// GetStats updates the queue gauges itself.
	stats := svc.GetStats()
	if stats.Started {
		metrics.UpdateWorkerCount(stats.Workers.Workers)
	}
}
