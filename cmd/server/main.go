// Command server boots the workflow engine's HTTP API, grounded on the
// teacher's cmd/server/main.go wiring order (config -> logger -> db ->
// repository -> domain services -> HTTP server), narrowed to the
// engine's smaller dependency graph (no auth, cache, or observer
// subsystems).
package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/textforge/dagflow/internal/agent"
	"github.com/textforge/dagflow/internal/config"
	"github.com/textforge/dagflow/internal/coordinator"
	"github.com/textforge/dagflow/internal/infrastructure/api/rest"
	"github.com/textforge/dagflow/internal/infrastructure/logger"
	"github.com/textforge/dagflow/internal/infrastructure/storage"
	"github.com/textforge/dagflow/internal/nodeexec"
	"github.com/textforge/dagflow/internal/scheduler"
	"github.com/textforge/dagflow/internal/services"
)

func main() {
	cfg := config.Load()

	log := logger.New(cfg.Logging)
	log.Info("starting dagflow server", "port", cfg.Server.Port)

	if err := os.MkdirAll(cfg.Files.Dir, 0o755); err != nil {
		log.Error("failed to create files directory", "error", err)
		os.Exit(1)
	}

	db, err := openDB(cfg.Database.URL, cfg.Database.MaxConnections)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx := context.Background()
	if err := storage.Migrate(ctx, db); err != nil {
		log.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	repo := storage.New(db)

	llmClient := services.NewOpenAIClient(cfg.LLM.APIKey, cfg.LLM.APIBase)
	pdfExtractor := services.LedongthucPDFExtractor{}
	fileStore := services.RepositoryFileStore{Files: repo}
	clock := services.SystemClock{}

	svc := nodeexec.Services{
		Files:  fileStore,
		PDF:    pdfExtractor,
		LLM:    llmClient,
		Clock:  clock,
		Logger: log,
	}

	// Two-phase registry wiring (no import cycle between nodeexec and
	// agent): the agent's own tool registry excludes the agent node
	// type, since an agent never dispatches to another agent.
	agentTools := nodeexec.NewRegistry(nil)
	agentExecutor := &agent.Executor{
		Planner: &agent.LLMPlanner{LLM: llmClient, Model: "gpt-4.1-mini"},
		Tools:   agentTools,
	}
	registry := nodeexec.NewRegistry(agentExecutor)

	coord := &coordinator.Coordinator{Repo: repo, Registry: registry, Services: svc}
	sched := &scheduler.Scheduler{Repo: repo, Runner: coord, Logger: log}

	staleBefore := time.Now().Add(-cfg.Queue.StaleAfter).Unix()
	swept, err := scheduler.SweepStale(ctx, repo, staleBefore)
	if err != nil {
		log.Error("failed to sweep stale jobs at boot", "error", err)
	} else if swept > 0 {
		log.Info("swept stale jobs at boot", "count", swept)
	}

	handlers := &rest.Handlers{Repo: repo, Scheduler: sched, FilesDir: cfg.Files.Dir}
	router := rest.NewRouter(handlers, log)

	httpServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + strconv.Itoa(cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}

func openDB(dsn string, maxConns int) (*bun.DB, error) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	sqldb.SetMaxOpenConns(maxConns)
	db := bun.NewDB(sqldb, pgdialect.New())
	if err := db.PingContext(context.Background()); err != nil {
		return nil, err
	}
	return db, nil
}

