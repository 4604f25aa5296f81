package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/ticket-sla/internal/api/http"
	"github.com/spec-kit/ticket-sla/internal/api/http/handlers"
	"github.com/spec-kit/ticket-sla/internal/auth"
	"github.com/spec-kit/ticket-sla/internal/calendar"
	"github.com/spec-kit/ticket-sla/internal/config"
	"github.com/spec-kit/ticket-sla/internal/events"
	"github.com/spec-kit/ticket-sla/internal/observability"
	"github.com/spec-kit/ticket-sla/internal/persistence"
	"github.com/spec-kit/ticket-sla/internal/repository"
	"github.com/spec-kit/ticket-sla/internal/service"
	"github.com/spec-kit/ticket-sla/internal/worker"
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

	// An invalid calendar must stop the process before any deadline is computed.
	calendars, err := calendar.NewProvider(cfg.SLA, nil)
	if err != nil {
		logger.Fatal("invalid sla calendar", zap.Error(err))
	}
	cal := calendars.Current()
	logger.Info("sla calendar loaded",
		zap.String("timezone", cal.Timezone()),
		zap.Int("work_start_hour", cal.WorkStartHour()),
		zap.Int("work_end_hour", cal.WorkEndHour()),
		zap.Int("first_response_hours", cal.FirstResponseHours()),
		zap.Int("holidays", len(cal.Holidays())))

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()

	pool := pg.PoolHandle()
	ticketRepo := repository.NewTicketRepository(pool)
	messageRepo := repository.NewTicketMessageRepository(pool)
	historyRepo := repository.NewTicketHistoryRepository(pool)
	statusCache := repository.NewSLAStatusCache(redis.Client, "")

	dispatcher := events.NewInMemoryDispatcher()
	service.NewNotificationService(dispatcher, logger, cfg.Notification).RegisterHandlers()

	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:  ticketRepo,
		MessageRepo: messageRepo,
		HistoryRepo: historyRepo,
		StatusCache: statusCache,
		Calendar:    calendars,
		Dispatcher:  dispatcher,
		Metrics:     metrics,
		Logger:      logger,
	})
	sweepService := service.NewSweepService(service.SweepDependencies{
		TicketRepo:  ticketRepo,
		HistoryRepo: historyRepo,
		StatusCache: statusCache,
		Calendar:    calendars,
		Dispatcher:  dispatcher,
		Metrics:     metrics,
		Logger:      logger,
		BatchSize:   cfg.Sweep.BatchSize,
	})

	schedule := cfg.Sweep.Schedule
	if !cfg.Sweep.Enabled {
		schedule = ""
	}
	sweeper, err := worker.NewSweepWorker(sweepService, schedule, cal.Location(), logger)
	if err != nil {
		logger.Fatal("invalid sweep schedule", zap.Error(err))
	}
	// the reload keeps preset and feed holidays current even with the sweep off
	if err := sweeper.AddJob("@daily", "calendar_reload", calendars.Reload); err != nil {
		logger.Fatal("schedule calendar reload", zap.Error(err))
	}
	sweeper.Start()
	if cfg.Sweep.Enabled {
		logger.Info("sla sweep scheduled", zap.String("schedule", schedule), zap.Time("next", sweeper.Next()))
	} else {
		logger.Info("sla sweep disabled, manual sweeps only")
	}

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{
			"postgres": pg,
			"redis":    redis,
		}),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		SLA:            handlers.NewSLAHandler(calendars, ticketService, sweepService, sweeper),
		Metrics:        metrics.Handler(),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()
	if err := sweeper.Stop(stopCtx); err != nil {
		logger.Warn("sweep did not finish before shutdown", zap.Error(err))
	}
	_ = app.ShutdownWithContext(stopCtx)
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
