package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/field-service/internal/api/http"
	"github.com/spec-kit/field-service/internal/api/http/handlers"
	"github.com/spec-kit/field-service/internal/auth"
	"github.com/spec-kit/field-service/internal/config"
	"github.com/spec-kit/field-service/internal/events"
	"github.com/spec-kit/field-service/internal/observability"
	"github.com/spec-kit/field-service/internal/persistence"
	"github.com/spec-kit/field-service/internal/repository"
	"github.com/spec-kit/field-service/internal/service"
	"github.com/spec-kit/field-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	pool := pg.PoolHandle()
	ticketRepo := repository.NewTicketRepository(pool)
	engineerRepo := repository.NewEngineerRepository(pool)
	sessionRepo := repository.NewWorkSessionRepository(pool)
	historyRepo := repository.NewTicketHistoryRepository(pool)

	dispatcher := events.NewInMemoryDispatcher()

	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:   ticketRepo,
		EngineerRepo: engineerRepo,
		HistoryRepo:  historyRepo,
		Dispatcher:   dispatcher,
		ClaimGuard:   redis,
	})
	workTimeService := service.NewWorkTimeService(service.WorkTimeDependencies{
		SessionRepo:  sessionRepo,
		EngineerRepo: engineerRepo,
		Dispatcher:   dispatcher,
	}, cfg.Workday, logger)
	authService := service.NewAuthService(cfg.Auth, engineerRepo)

	notificationService := service.NewNotificationService(dispatcher, redis, logger, cfg.Notify)
	notificationService.RegisterHandlers()

	cutoffWorker := worker.NewCutoffWorker(workTimeService, cfg.Workday.SweepInterval(), logger)
	go cutoffWorker.Run(ctx)

	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), engineerRepo)

	app := fiber.New()
	metrics := observability.NewMetrics()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		WorkTime:       handlers.NewWorkTimeHandler(workTimeService),
		Engineers:      handlers.NewEngineersHandler(authService, engineerRepo),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	cancel()
	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
