package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Avik2024/pipeline-orchestrator/internal/api"
	"github.com/Avik2024/pipeline-orchestrator/internal/config"
	"github.com/Avik2024/pipeline-orchestrator/internal/logging"
	"github.com/Avik2024/pipeline-orchestrator/internal/metrics"
	"github.com/Avik2024/pipeline-orchestrator/internal/orchestration/metadata"
	"github.com/Avik2024/pipeline-orchestrator/internal/orchestration/ops"
	"github.com/Avik2024/pipeline-orchestrator/internal/orchestration/pstate"
	"github.com/Avik2024/pipeline-orchestrator/internal/orchestration/status"
	"github.com/Avik2024/pipeline-orchestrator/internal/orchestration/task"
	"github.com/Avik2024/pipeline-orchestrator/internal/orchestration/taskqueue"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Set via -ldflags at build time; "dev"/"none"/"unknown" are the teacher's
// own fallback values for an unreleased binary.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	log.Printf("config loaded: env=%s port=%s tick_interval=%s",
		cfg.App.Env, cfg.App.Port, cfg.Orchestrator.TickInterval)

	logger, err := logging.NewLogger(cfg.App.Env)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Sync()

	metrics.InitBuildInfo(version, commit, date)

	store := newMetadataStore(logger, cfg.Database.URL)
	taskQueue := &instrumentedTaskQueue{TaskQueue: taskqueue.NewInMemory()}
	orchestrator := ops.New(store, logger)

	stopTicker := runReconciliationLoop(logger, orchestrator, store, taskQueue, cfg.Orchestrator.TickInterval)
	defer stopTicker()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(logging.LoggerMiddleware(logger))
	r.Use(metrics.InstrumentHandler)

	handler := api.NewOrchestrationHandler(orchestrator, store)
	handler.RegisterRoutes(r)
	metrics.RegisterMetricsEndpoint(r)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("pipeline orchestrator"))
	})

	srv := &http.Server{Addr: ":" + cfg.App.Port, Handler: r}

	go func() {
		logger.Info("starting server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}
	logger.Info("server exited gracefully")
}

// instrumentedTaskQueue records orchestrator_tasks_enqueued_total by task
// kind around an underlying taskqueue.TaskQueue, keeping the metric
// concern out of internal/orchestration/ops (which stays free of any
// observability import) and at the wiring layer instead.
type instrumentedTaskQueue struct {
	taskqueue.TaskQueue
}

func (q *instrumentedTaskQueue) Enqueue(t task.Task) {
	kind := "exec_node"
	if _, ok := t.(task.CancelNodeTask); ok {
		kind = "cancel_node"
	}
	metrics.TasksEnqueued.WithLabelValues(kind).Inc()
	q.TaskQueue.Enqueue(t)
}

// newMetadataStore dials Postgres via gorm and falls back to the
// in-memory store if the connection fails, so a developer running this
// without a database still gets a working (if non-durable) orchestrator.
func newMetadataStore(logger *zap.Logger, dsn string) metadata.MetadataStore {
	db, err := metadata.Connect(dsn)
	if err != nil {
		logger.Warn("metadata store: falling back to in-memory store", zap.Error(err))
		return metadata.NewMemStore()
	}

	gormStore := metadata.NewGormStore(db)
	if err := gormStore.AutoMigrate(); err != nil {
		logger.Warn("metadata store: auto-migration failed, falling back to in-memory store", zap.Error(err))
		return metadata.NewMemStore()
	}
	logger.Info("metadata store: connected to postgres")
	return gormStore
}

// runReconciliationLoop ticks GenerateTasks on a fixed interval until the
// returned stop function is called, recording tick metrics each time.
func runReconciliationLoop(logger *zap.Logger, orchestrator *ops.Orchestrator, store metadata.MetadataStore, tq taskqueue.TaskQueue, interval time.Duration) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.C:
				metrics.TicksRun.Inc()
				if err := orchestrator.GenerateTasks(tq); err != nil {
					logger.Error("reconciliation tick failed", zap.Error(err))
					metrics.TicksFailed.WithLabelValues(status.CodeOf(err).String()).Inc()
				}
				if count, err := countActivePipelines(store); err != nil {
					logger.Warn("failed to sample active pipeline count", zap.Error(err))
				} else {
					metrics.ActivePipelines.Set(float64(count))
				}
			case <-done:
				return
			}
		}
	}()

	return func() {
		ticker.Stop()
		close(done)
	}
}

// countActivePipelines samples the number of pipelines with a NEW or
// RUNNING execution, for the orchestrator_active_pipelines gauge.
func countActivePipelines(store metadata.MetadataStore) (int, error) {
	contexts, err := pstate.GetOrchestratorContexts(store)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, c := range contexts {
		exec, err := store.GetExecutionForContext(c)
		if err != nil {
			return 0, err
		}
		if exec != nil && exec.LastKnownState.IsActive() {
			count++
		}
	}
	return count, nil
}
