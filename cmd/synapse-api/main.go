// Synapse API — HTTP сервер для flows и runs.
//
// API:
//   - CRUD flows, проверка и порядок выполнения графа
//   - Синхронное выполнение flow с NDJSON-потоком прогресса
//   - Постановка runs в очередь (RabbitMQ) и retry упавших runs
//   - Поток событий async run из synapse.events
//
// Без RabbitMQ runs всё равно создаются: их подберёт polling worker.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Synapse/internal/api"
	"github.com/shaiso/Synapse/internal/capability"
	"github.com/shaiso/Synapse/internal/capability/httpbackend"
	"github.com/shaiso/Synapse/internal/mq"
	"github.com/shaiso/Synapse/internal/orchestrator"
	"github.com/shaiso/Synapse/internal/repo"
	"github.com/shaiso/Synapse/internal/steps"
	"github.com/shaiso/Synapse/internal/telemetry"
)

var (
	startTime    = time.Now()
	healthzTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "synapse_api_healthz_requests_total",
		Help: "Total health check requests handled by synapse-api",
	})
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting synapse-api")

	// Ожидаем сигнал завершения
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Подключаемся к базе данных
	pool, err := repo.NewPool(ctx)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("connected to database")

	if err := repo.EnsureSchema(ctx, pool); err != nil {
		logger.Error("failed to apply schema", "error", err)
		os.Exit(1)
	}

	cfg := api.Config{
		FlowRepo: repo.NewFlowRepo(pool),
		RunRepo:  repo.NewRunRepo(pool),
		Logger:   logger,
	}

	// RabbitMQ
	mqConn, err := mq.NewConnection(mq.URLFromEnv(), logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, runs will be picked up by polling", "error", err)
	} else {
		defer mqConn.Close()
		logger.Info("RabbitMQ connected")

		if err := mq.SetupTopology(ctx, mqConn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}

		cfg.Publisher = mq.NewPublisher(mqConn, logger)
		cfg.Watch = func(ctx context.Context, runID uuid.UUID, w mq.RunWatcher) error {
			return mq.WatchRun(ctx, mqConn, runID, w)
		}
	}

	// Orchestrator для синхронного выполнения
	caps := capability.NewRegistry()
	backend := httpbackend.ConfigFromEnv()
	backend.Logger = logger
	httpbackend.New(backend).Register(caps)

	cfg.Orchestrator = orchestrator.New(orchestrator.Config{
		Dispatcher: steps.NewDispatcher(steps.DispatcherConfig{
			Registry: steps.DefaultRegistry(caps),
			Logger:   logger,
		}),
		StepDelay: durationFromEnv("STEP_DELAY_MS", time.Millisecond),
		Logger:    logger,
	})
	logger.Info("capability gateway configured", "url", backend.BaseURL)

	handler := api.NewHandler(cfg)

	mux := http.NewServeMux()

	// Health и metrics
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		healthzTotal.Inc()
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s", time.Since(startTime))
	})
	mux.Handle("/metrics", promhttp.Handler())

	// Регистрируем API маршруты
	handler.RegisterRoutes(mux)

	addr := ":8080"
	if v := os.Getenv("API_PORT"); v != "" {
		addr = ":" + v
	}

	// WriteTimeout не задан: выполнение flow стримится минутами
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	// Graceful shutdown с таймаутом 10 секунд
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("stopped")
}

// durationFromEnv читает целое число из окружения в указанных единицах.
// Пусто или мусор — 0.
func durationFromEnv(key string, unit time.Duration) time.Duration {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil || n < 0 {
		return 0
	}
	return time.Duration(n) * unit
}
