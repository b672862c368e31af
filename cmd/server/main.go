package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"coffee-backend/internal/auth"
	"coffee-backend/internal/cache"
	"coffee-backend/internal/config"
	"coffee-backend/internal/database"
	"coffee-backend/internal/db"
	"coffee-backend/internal/handlers"
	"coffee-backend/internal/health"
	h "coffee-backend/internal/http"
	"coffee-backend/internal/logger"
	"coffee-backend/internal/middleware"
	"coffee-backend/internal/models"
	"coffee-backend/internal/realtime"
	"coffee-backend/internal/receipts"
	"coffee-backend/internal/repositories"
	"coffee-backend/internal/services"
	"coffee-backend/internal/timeutil"
	"coffee-backend/internal/workflow"
	"coffee-backend/migrations"
)

func main() {
	port := flag.Int("port", 0, "Server port (overrides config)")
	flag.Parse()

	cfg := config.Load()
	if *port > 0 {
		cfg.Server.Port = *port
	}

	log := logger.New(cfg)
	defer log.Sync() //nolint:errcheck

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := timeutil.SetLocation(cfg.Server.Timezone); err != nil {
		log.Warn("unknown timezone, keeping default", zap.String("timezone", cfg.Server.Timezone), zap.Error(err))
	}

	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()
	log.Info("connected to database", zap.String("host", cfg.Database.Host), zap.String("name", cfg.Database.Name))

	migrateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	err = database.NewMigratorWithFS(pool, migrations.FS, ".", log).RunMigrations(migrateCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	// Document store is auxiliary: without it writes are counted as failures
	// and the employee mirror can be rebuilt later with a resync.
	var (
		documents services.DocumentStore = services.UnavailableDocuments{}
		mongoPing health.Pinger         = func(context.Context) error { return errors.New("mongo not connected") }
	)
	mongoClient, err := db.ConnectMongo(ctx, cfg)
	if err != nil {
		log.Warn("document store unavailable, auxiliary writes will fail", zap.Error(err))
	} else {
		defer db.DisconnectMongo(mongoClient) //nolint:errcheck
		docRepo := repositories.NewDocumentRepository(mongoClient.Database(cfg.Mongo.Database), cfg.Workflow.StoreRetries)
		documents = docRepo
		mongoPing = docRepo.Ping
		log.Info("connected to document store", zap.String("database", cfg.Mongo.Database))
	}

	// Initialize Redis cache (optional - graceful fallback if unavailable)
	if err := cache.Init(cfg); err != nil {
		log.Warn("cache unavailable, idempotent replays will read postgres", zap.Error(err))
	} else {
		log.Info("cache connected")
	}
	defer cache.Close() //nolint:errcheck

	var archiver services.ReceiptArchiver
	if cfg.Receipts.Enabled {
		a, err := receipts.NewArchiver(ctx, cfg, log.Named("receipts"))
		if err != nil {
			log.Warn("receipt archive disabled", zap.Error(err))
		} else {
			archiver = a
		}
	}

	hub := realtime.NewHub(log.Named("realtime"))
	go hub.Run(ctx)

	retries := cfg.Workflow.StoreRetries
	requestRepo := repositories.NewRequestRepository(pool, retries)
	accountRepo := repositories.NewAccountRepository(pool, retries)
	batchRepo := repositories.NewBatchRepository(pool, retries)
	outboxRepo := repositories.NewOutboxRepository(pool, retries)
	employeeRepo := repositories.NewEmployeeRepository(pool, retries)

	conflictRetries := cfg.Workflow.ConflictRetries
	requestService := services.NewRequestService(requestRepo, hub, log.Named("requests"))
	ledgerService := services.NewLedgerService(accountRepo, documents, cache.ReplayCache{}, hub, conflictRetries, log.Named("ledger"))
	batchService := services.NewBatchService(batchRepo, archiver, hub, conflictRetries, log.Named("batch"))
	employeeService := services.NewEmployeeSyncService(employeeRepo, documents, log.Named("sync"))
	effectService := services.NewEffectService(requestRepo, ledgerService, employeeService, documents, outboxRepo,
		cfg.Outbox.BatchSize, cfg.Outbox.MaxAttempts, log.Named("outbox"))
	approvalService := services.NewApprovalService(requestRepo, documents, effectService, hub,
		approvalPolicy(cfg), conflictRetries, log.Named("approval"))

	go effectService.Run(ctx, cfg.Outbox.RedeliverInterval)

	checker := health.NewHealthChecker().
		Require("postgres", pool.Ping).
		Optional("mongo", mongoPing).
		Optional("redis", cache.Ping)

	httpLog := log.Named("http")
	authMiddleware := middleware.NewAuthMiddleware(auth.NewJWTManager(cfg), httpLog)
	router := h.NewRouter(h.Handlers{
		Requests:  handlers.NewRequestHandler(requestService, approvalService, httpLog),
		Accounts:  handlers.NewAccountHandler(ledgerService, httpLog),
		Batches:   handlers.NewBatchHandler(batchService, httpLog),
		Employees: handlers.NewEmployeeHandler(employeeService, httpLog),
		Outbox:    handlers.NewOutboxHandler(effectService, httpLog),
		Health:    handlers.NewHealthHandler(checker),
		Realtime:  hub.ServeWS,
	}, authMiddleware, httpLog)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           middleware.NewCORS(cfg)(router),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server running", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func approvalPolicy(cfg *config.Config) workflow.Policy {
	if len(cfg.Workflow.SelfApprovalTypes) == 0 {
		return workflow.DefaultPolicy()
	}
	types := make([]models.RequestType, 0, len(cfg.Workflow.SelfApprovalTypes))
	for _, t := range cfg.Workflow.SelfApprovalTypes {
		types = append(types, models.RequestType(t))
	}
	return workflow.NewPolicy(types)
}
