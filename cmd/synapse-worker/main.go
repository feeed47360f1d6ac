// Synapse Worker — выполняет async runs.
//
// Worker:
//   - Получает run.pending из RabbitMQ
//   - Подбирает PENDING runs из БД (polling fallback)
//   - Выполняет flow узел за узлом через шлюз моделей
//   - Публикует прогресс в synapse.events и сохраняет результаты
//   - Завершает runs, брошенные упавшими workers (один лидер на кластер)
//
// Workers масштабируются горизонтально.
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Synapse/internal/capability"
	"github.com/shaiso/Synapse/internal/capability/httpbackend"
	"github.com/shaiso/Synapse/internal/mq"
	"github.com/shaiso/Synapse/internal/orchestrator"
	"github.com/shaiso/Synapse/internal/recovery"
	"github.com/shaiso/Synapse/internal/repo"
	"github.com/shaiso/Synapse/internal/steps"
	"github.com/shaiso/Synapse/internal/telemetry"
	"github.com/shaiso/Synapse/internal/worker"
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting synapse-worker")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// DB pool
	pool, err := repo.NewPool(ctx)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("database connected")

	if err := repo.EnsureSchema(ctx, pool); err != nil {
		logger.Error("failed to apply schema", "error", err)
		os.Exit(1)
	}

	// Orchestrator
	caps := capability.NewRegistry()
	backend := httpbackend.ConfigFromEnv()
	backend.Logger = logger
	httpbackend.New(backend).Register(caps)

	orch := orchestrator.New(orchestrator.Config{
		Dispatcher: steps.NewDispatcher(steps.DispatcherConfig{
			Registry: steps.DefaultRegistry(caps),
			Logger:   logger,
		}),
		StepDelay: durationFromEnv("STEP_DELAY_MS", time.Millisecond),
		Logger:    logger,
	})

	runRepo := repo.NewRunRepo(pool)

	// Живой run не должен дожить до порога recovery
	staleAfter := durationFromEnv("STALE_RUN_SEC", time.Second)
	if staleAfter <= 0 {
		staleAfter = recovery.DefaultStaleAfter
	}
	runTimeout := durationFromEnv("RUN_TIMEOUT_SEC", time.Second)
	if runTimeout <= 0 {
		runTimeout = staleAfter * 9 / 10
	}

	cfg := worker.Config{
		RunRepo:      runRepo,
		FlowRepo:     repo.NewFlowRepo(pool),
		Orchestrator: orch,
		RunTimeout:   runTimeout,
		Logger:       logger,
	}

	// RabbitMQ
	mqConn, err := mq.NewConnection(mq.URLFromEnv(), logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, running in polling-only mode", "error", err)
	} else {
		defer mqConn.Close()
		logger.Info("RabbitMQ connected")

		// Создаём топологию
		if err := mq.SetupTopology(ctx, mqConn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}

		cfg.Conn = mqConn
		cfg.Publisher = mq.NewPublisher(mqConn, logger)
	}

	// Создаём и запускаем worker
	w := worker.New(cfg)
	if err := w.Start(ctx); err != nil {
		logger.Error("failed to start worker", "error", err)
		os.Exit(1)
	}

	// Recovery: runs, брошенные упавшими workers, переводятся в FAILED.
	// Тик выполняет только держатель advisory lock.
	if staleAfter <= cfg.RunTimeout {
		logger.Warn("STALE_RUN_SEC is not above RUN_TIMEOUT_SEC, live runs could be reaped",
			"stale_after", staleAfter, "run_timeout", cfg.RunTimeout)
	}
	reaperCfg := recovery.Config{
		RunRepo:    runRepo,
		Leader:     repo.NewAdvisoryLock(pool, recovery.LockKey),
		StaleAfter: staleAfter,
		Logger:     logger,
	}
	if cfg.Publisher != nil {
		reaperCfg.Publisher = cfg.Publisher
	}
	go recovery.New(reaperCfg).Run(ctx)

	// HTTP mux: /healthz + /metrics + /active
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, _ *http.Request) {
		if w.IsStopped() {
			rw.WriteHeader(http.StatusServiceUnavailable)
			rw.Write([]byte("stopping"))
			return
		}
		rw.WriteHeader(http.StatusOK)
		rw.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/active", func(rw http.ResponseWriter, _ *http.Request) {
		rw.Header().Set("Content-Type", "application/json")
		json.NewEncoder(rw).Encode(w.ActiveRuns())
	})

	port := ":8082"
	if v := os.Getenv("WORKER_PORT"); v != "" {
		port = ":" + v
	}

	go func() {
		logger.Info("listening", "addr", port)
		if err := http.ListenAndServe(port, mux); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()

	// Останавливаем worker
	w.Stop()
	logger.Info("synapse-worker stopped")
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
