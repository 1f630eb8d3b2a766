package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"

	"github.com/clintrovert/ourstreet/internal/activities"
	"github.com/clintrovert/ourstreet/internal/config"
	"github.com/clintrovert/ourstreet/internal/metrics"
	workflows "github.com/clintrovert/ourstreet/internal/temporal/workflows"
	"github.com/clintrovert/ourstreet/internal/workflow"
)

func main() {
	newLogger := zap.NewProduction
	if os.Getenv("LOG_LEVEL") == "debug" {
		newLogger = zap.NewDevelopment
	}
	logger, err := newLogger()
	if err != nil {
		panic(fmt.Sprintf("failed to create logger: %v", err))
	}
	defer logger.Sync()

	cfg := config.Load(logger)

	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.Address,
		Namespace: cfg.Temporal.Namespace,
	})
	if err != nil {
		logger.Fatal("failed to create temporal client", zap.Error(err))
	}
	defer c.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	poster, _ := workflow.NewFromConfig(cfg, metrics.New(registry), logger)

	metricsServer := newMetricsServer(fmt.Sprintf(":%s", cfg.WorkerMetricsPort), registry)
	go func() {
		logger.Info("starting metrics server", zap.String("address", metricsServer.Addr))
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	// Initialize activities
	activities.SetPostingActivities(activities.NewPostingActivities(poster, logger.Named("activities")))

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{
		// batches post one issue at a time per worker
		MaxConcurrentActivityExecutionSize: 1,
	})

	w.RegisterWorkflow(workflows.BatchPostingWorkflow)
	w.RegisterActivity(activities.PostIssueActivity)

	logger.Info("starting worker",
		zap.String("task_queue", cfg.Temporal.TaskQueue),
		zap.String("namespace", cfg.Temporal.Namespace),
	)

	if err := w.Run(worker.InterruptCh()); err != nil {
		logger.Fatal("worker failed", zap.Error(err))
	}

	logger.Info("shutting down worker")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shut down metrics server", zap.Error(err))
	}
}

func newMetricsServer(addr string, gatherer prometheus.Gatherer) *http.Server {
	router := chi.NewRouter()
	router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
