package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-grading-api/internal/config"
	"github.com/noah-isme/gema-grading-api/internal/database"
	"github.com/noah-isme/gema-grading-api/internal/handler"
	"github.com/noah-isme/gema-grading-api/internal/middleware"
	"github.com/noah-isme/gema-grading-api/internal/models"
	"github.com/noah-isme/gema-grading-api/internal/repository"
	"github.com/noah-isme/gema-grading-api/internal/router"
	"github.com/noah-isme/gema-grading-api/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(os.Stdout).Level(level).With().Timestamp().Str("service", cfg.AppName).Logger()

	db, err := database.Connect(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(models.All()...); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	probes := []handler.HealthProbe{{
		Name: "database",
		Check: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(ctx, cfg.RedisURL, logger)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
		probes = append(probes, handler.HealthProbe{
			Name:  "redis",
			Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		})
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName, logger)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Close()
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	activityService := service.NewActivityService(repository.NewActivityLogRepository(db), logger)
	notificationService := service.NewNotificationService(repository.NewNotificationRepository(db), redisClient, cfg.NotificationChannel, natsConn, validate, logger)
	notificationService.Start(ctx)

	dispatcher := service.NewNotificationDispatcher(notificationService, cfg.NotificationWorkers, cfg.NotificationQueueSize, logger)
	dispatcher.Start(ctx)

	deps := service.GradingDependencies{
		Ledger:      repository.NewLedgerRepository(db),
		Grades:      repository.NewGradeRepository(db),
		Courses:     repository.NewCourseRepository(db),
		Rubrics:     repository.NewRubricRepository(db),
		Users:       repository.NewUserRepository(db),
		Enrollments: repository.NewEnrollmentRepository(db),
		Submissions: repository.NewSubmissionRepository(db),
		Activity:    activityService,
		Notifier:    dispatcher,
		Validator:   validate,
		Logger:      logger,
	}
	ledger := service.NewGradeLedger(deps)
	workflow := service.NewGradingWorkflowService(deps)
	gradebook := service.NewGradebookService(deps)
	rubricService := service.NewRubricService(deps.Rubrics, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger, AllowOrigins: cfg.CORSOrigins})
	router.Register(app, cfg, router.Dependencies{
		GradingHandler:      handler.NewGradingHandler(ledger, workflow, validate, logger),
		DisputeHandler:      handler.NewDisputeHandler(workflow, cfg.DisputeRateLimit, cfg.DisputeRateWindow, logger),
		GradebookHandler:    handler.NewGradebookHandler(gradebook, workflow, logger),
		RubricHandler:       handler.NewRubricHandler(rubricService, logger),
		NotificationHandler: handler.NewNotificationHandler(notificationService, logger, cfg.NotificationKeepAlive),
		ActivityHandler:     handler.NewActivityHandler(activityService, logger),
		HealthProbes:        probes,
		JWTMiddleware:       middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	shutdown(app, dispatcher, cfg.ShutdownTimeout, logger)
}

func shutdown(app *fiber.App, dispatcher *service.NotificationDispatcher, timeout time.Duration, logger zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	// Workers drain the queue once the signal context is cancelled.
	drained := make(chan struct{})
	go func() {
		dispatcher.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-ctx.Done():
		logger.Warn().Msg("notification queue not drained before shutdown deadline")
	}

	logger.Info().Msg("server stopped")
}
