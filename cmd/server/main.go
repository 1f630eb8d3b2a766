package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	grpcapi "github.com/clintrovert/ourstreet/internal/api/grpc"
	"github.com/clintrovert/ourstreet/internal/api/rest"
	"github.com/clintrovert/ourstreet/internal/autopost"
	"github.com/clintrovert/ourstreet/internal/config"
	"github.com/clintrovert/ourstreet/internal/feed"
	"github.com/clintrovert/ourstreet/internal/metrics"
	"github.com/clintrovert/ourstreet/internal/temporal"
	"github.com/clintrovert/ourstreet/internal/workflow"
)

func main() {
	logger, err := newLogger(os.Getenv("LOG_LEVEL"))
	if err != nil {
		panic(fmt.Sprintf("failed to create logger: %v", err))
	}
	defer logger.Sync()

	cfg := config.Load(logger)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	poster, platformClient := workflow.NewFromConfig(cfg, m, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	handlerOpts := []rest.Option{rest.WithAccount(platformClient)}

	// Durable batches
	if cfg.Temporal.Enabled {
		temporalClient, err := temporal.NewClient(cfg.Temporal.Address, cfg.Temporal.Namespace, cfg.Temporal.TaskQueue, logger)
		if err != nil {
			logger.Fatal("failed to create temporal client", zap.Error(err))
		}
		defer temporalClient.Close()
		handlerOpts = append(handlerOpts, rest.WithBatches(temporalClient))
	}

	// Auto-post on new issues
	if cfg.AutoPost.Enabled {
		orchestrator, closeFeed := newOrchestrator(cfg, poster, logger)
		defer closeFeed()
		handlerOpts = append(handlerOpts, rest.WithTrigger(orchestrator))

		go func() {
			if err := orchestrator.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("orchestrator failed", zap.Error(err))
			}
		}()
	}

	restHandler := rest.NewHandler(poster, cfg, logger.Named("rest"), handlerOpts...)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	restHandler.RegisterRoutes(router)
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	restAddr := fmt.Sprintf(":%s", cfg.RESTPort)
	restServer := &http.Server{
		Addr:              restAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting REST API server", zap.String("address", restAddr))
		if err := restServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start REST server", zap.Error(err))
		}
	}()

	grpcAddr := fmt.Sprintf(":%s", cfg.GRPCPort)
	grpcListener, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		logger.Fatal("failed to listen on gRPC port", zap.Error(err))
	}

	grpcSrv := grpc.NewServer(grpc.UnaryInterceptor(grpcapi.AuthInterceptor(cfg.AdminToken)))
	grpcServer := grpcapi.NewServer(poster, cfg, logger.Named("grpc"))
	grpcServer.Register(grpcSrv)

	go func() {
		logger.Info("starting gRPC server", zap.String("address", grpcAddr))
		if err := grpcSrv.Serve(grpcListener); err != nil {
			logger.Fatal("failed to start gRPC server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	grpcServer.Shutdown()
	if err := restServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("REST server shutdown", zap.Error(err))
	}
	grpcSrv.GracefulStop()

	logger.Info("shutdown complete")
}

// newOrchestrator wires the auto-post pipeline. The returned func closes the
// tracker and issue store connections.
func newOrchestrator(cfg *config.Config, poster workflow.IssuePoster, logger *zap.Logger) (*autopost.Orchestrator, func()) {
	var closers []io.Closer

	var tracker feed.Tracker = feed.NewMemoryTracker()
	if cfg.RedisURL != "" {
		redisTracker, err := feed.NewRedisTracker(cfg.RedisURL, feed.DefaultClaimTTL)
		if err != nil {
			logger.Fatal("failed to create redis tracker", zap.Error(err))
		}
		tracker = redisTracker
		closers = append(closers, redisTracker)
	}

	var opts []autopost.Option
	if cfg.DatabaseURL != "" {
		source, err := feed.NewPostgresSource(cfg.DatabaseURL, logger.Named("feed"))
		if err != nil {
			logger.Fatal("failed to create issue source", zap.Error(err))
		}
		closers = append(closers, source)
		poller := feed.NewPoller(source, cfg.AutoPost.Priorities, cfg.AutoPost.PollInterval, time.Now(), logger.Named("poller"))
		opts = append(opts, autopost.WithSource(source), autopost.WithPoller(poller))
	}

	closeFeed := func() {
		for _, c := range closers {
			if err := c.Close(); err != nil {
				logger.Warn("failed to close auto-post dependency", zap.Error(err))
			}
		}
	}
	return autopost.NewOrchestrator(poster, tracker, cfg.AutoPost, logger.Named("autopost"), opts...), closeFeed
}

func newLogger(level string) (*zap.Logger, error) {
	if level == "debug" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
