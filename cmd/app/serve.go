package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"guard-backend/cmd/app/internal/controller"
	"guard-backend/internal/config"
	"guard-backend/internal/db"
	"guard-backend/internal/draftclient"
	"guard-backend/internal/jobs"
	"guard-backend/internal/repository"
	"guard-backend/internal/service"
	"guard-backend/internal/wizard"
	"guard-backend/pkg/logging"
	"guard-backend/pkg/middleware"
	"guard-backend/utilities"
)

// ServeCmd starts the HTTP server.
type ServeCmd struct{}

func (s *ServeCmd) Run(cli *CLI) error {
	printStartUpBanner()

	cfg, err := config.LoadConfig(cli.Config)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logging.Setup(logging.Options{
		Dir:        cfg.Logging.Dir,
		Level:      cfg.Logging.Level,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})
	if err != nil {
		return err
	}
	logging.SetDefault(logger)

	// Repositories.
	repo, pinger, err := openRepository(cfg)
	if err != nil {
		return err
	}
	if cfg.Cache.Addr != "" {
		client := repository.NewRedisClient(cfg.Cache.Addr, cfg.Cache.Password, cfg.Cache.DB)
		defer client.Close()
		repo = repository.NewCachedReportRepository(repo, client, cfg.CacheTTL(), logger)
		logger.Info("report cache enabled at %s", cfg.Cache.Addr)
	}

	// Services.
	bus := utilities.GlobalEventBus
	reports, err := service.NewReportService(repo, bus, logger)
	if err != nil {
		return err
	}
	receipts := service.NewReceiptService(repo, cfg.Receipts.Dir, logger)
	service.InitReceiptEventListeners(bus, receipts, logger)

	// The wizard saves through the local service unless a remote one is configured.
	var store wizard.DraftStore = reports
	if cfg.Wizard.ReportAPIURL != "" {
		client, err := draftclient.New(cfg.Wizard.ReportAPIURL, draftclient.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout()}))
		if err != nil {
			return err
		}
		store = client
		logger.Info("wizard persists through %s", cfg.Wizard.ReportAPIURL)
	}
	registry := wizard.NewRegistry(wizard.SystemClock(), cfg.AutosaveQuiet(), logger)
	defer registry.Close()
	wiz := wizard.NewController(store, wizard.WithRegistry(registry), wizard.WithLogger(logger))

	// Initialize Gin router.
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.RequestDump {
		r.Use(middleware.RequestDumpMiddleware(logger))
	}

	// CORS configuration.
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Context.AllowOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Length", "Location"},
		AllowCredentials: !containsWildcard(cfg.Context.AllowOrigins),
		MaxAge:           12 * time.Hour,
	}))

	var limit gin.HandlerFunc
	var sweepers []jobs.Sweeper
	if cfg.RateLimit.Enabled {
		limiter := utilities.NewIPRateLimiter(cfg.RateLimit.RequestsPerMin, cfg.RateLimit.Burst)
		limit = utilities.RateLimitMiddleware(limiter)
		sweepers = append(sweepers, limiter)
	}

	controller.RegisterRoutes(r,
		controller.NewReportController(reports, receipts, pinger, logger),
		controller.NewWizardController(wiz, cfg.RequestTimeout(), logger),
		limit,
	)

	scheduler := jobs.NewScheduler(logger)
	if err := scheduler.ScheduleEviction(cfg.Wizard.EvictSchedule, registry, cfg.EvictIdle(), sweepers...); err != nil {
		return err
	}
	scheduler.Start()
	defer scheduler.Stop()

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	bus.Wait()
	return nil
}

func openRepository(cfg *config.APIConfig) (repository.ReportRepository, controller.Pinger, error) {
	if cfg.DB.Driver == "memory" {
		logging.Warn("using in-memory storage; reports are lost on restart")
		return repository.NewMemoryReportRepository(), nil, nil
	}
	conn, err := db.InitDBFromConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	if cfg.DB.Initialize {
		if err := db.Migrate(conn); err != nil {
			return nil, nil, err
		}
	}
	return repository.NewReportRepository(conn), db.NewQueryExecutor(conn), nil
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
