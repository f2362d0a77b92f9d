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
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-grader/internal/config"
	"github.com/noah-isme/gema-grader/internal/database"
	"github.com/noah-isme/gema-grader/internal/dto"
	"github.com/noah-isme/gema-grader/internal/errlog"
	"github.com/noah-isme/gema-grader/internal/handler"
	"github.com/noah-isme/gema-grader/internal/middleware"
	"github.com/noah-isme/gema-grader/internal/models"
	"github.com/noah-isme/gema-grader/internal/repository"
	"github.com/noah-isme/gema-grader/internal/router"
	"github.com/noah-isme/gema-grader/internal/service"
	"github.com/noah-isme/gema-grader/internal/worker"
	"github.com/noah-isme/gema-grader/pkg/ai"
	cloud "github.com/noah-isme/gema-grader/pkg/cloudinary"
	"github.com/noah-isme/gema-grader/pkg/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.AppName).Logger()

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(models.AllModels()...); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(rootCtx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			logger.Warn().Err(err).Msg("grade events stay local to this node")
		} else {
			defer natsConn.Close()
		}
	}

	errorLog, err := errlog.Open(cfg.ErrorLogPath)
	if err != nil {
		log.Fatalf("failed to open error log: %v", err)
	}
	defer errorLog.Close()

	fileStorage, err := newFileStorage(cfg, logger)
	if err != nil {
		log.Fatalf("failed to configure storage: %v", err)
	}

	var grader ai.Grader
	if cfg.OpenAIAPIKey != "" {
		grader, err = ai.NewOpenAIGrader(ai.OpenAIConfig{
			APIKey:     cfg.OpenAIAPIKey,
			Model:      cfg.AIModel,
			Structured: cfg.AIStructured,
			Logger:     logger,
		})
		if err != nil {
			log.Fatalf("failed to create grader: %v", err)
		}
	} else {
		logger.Warn().Msg("no openai api key configured, every submission will receive the fallback grade")
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	pool := worker.NewPool("grading", cfg.GradingWorkers, cfg.GradingQueueSize, logger)
	pool.Start(context.Background())

	studentRepo := repository.NewStudentRepository(db)
	instructorRepo := repository.NewInstructorRepository(db)
	adminRepo := repository.NewAdminRepository(db)
	classRepo := repository.NewClassRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	rosterRepo := repository.NewRosterRepository(db)

	gradeEvents := service.NewGradeEventService(natsConn, cfg.EventsChannel, logger)
	gradeEvents.Start(rootCtx)

	dashboardService := service.NewDashboardService(studentRepo, instructorRepo, classRepo, assignmentRepo, redisClient, cfg.DashboardCacheTTL, logger)
	gradeEvents.AddListener(func(event dto.GradeEvent) {
		dashboardService.Invalidate(context.Background(), event.ClassID)
	})

	gradingService := service.NewGradingService(grader, errorLog, cfg.AITimeout, logger)
	submissionService := service.NewSubmissionService(service.SubmissionServiceConfig{
		Students:    studentRepo,
		Classes:     classRepo,
		Assignments: assignmentRepo,
		Storage:     fileStorage,
		Grading:     gradingService,
		Events:      gradeEvents,
		Queue:       pool,
		ErrorLog:    errorLog,
		Validator:   validate,
		MaxSizeMB:   cfg.UploadMaxMB,
		Logger:      logger,
	})
	authService := service.NewAuthService(studentRepo, instructorRepo, adminRepo, redisClient, cfg.JWTSecret, cfg.SessionTTL, validate, logger)
	commentService := service.NewCommentService(assignmentRepo, commentRepo, dashboardService, validate, logger)
	rosterService := service.NewRosterService(rosterRepo, errorLog, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    (cfg.UploadMaxMB + 1) * 1024 * 1024,
	})

	middleware.Register(app, middleware.Config{Logger: &logger, AccessLog: cfg.AppEnv == "development"})
	router.Register(app, cfg, router.Dependencies{
		AuthHandler:        handler.NewAuthHandler(authService, cfg.AppEnv == "production", logger),
		StudentHandler:     handler.NewStudentHandler(dashboardService, submissionService, commentService, validate, cfg.UploadMaxMB, logger),
		InstructorHandler:  handler.NewInstructorHandler(dashboardService, commentService, logger),
		AdminHandler:       handler.NewAdminHandler(dashboardService, rosterService, logger),
		DownloadHandler:    handler.NewDownloadHandler(dashboardService, logger),
		GradeStreamHandler: handler.NewGradeStreamHandler(gradeEvents, logger),
		SessionMiddleware:  middleware.SessionAuth(authService),
		GradingStats:       pool.Stats,
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	<-rootCtx.Done()
	shutdown(app, pool, logger)
}

func newFileStorage(cfg config.Config, logger zerolog.Logger) (service.FileStorage, error) {
	if cfg.StorageDriver == "cloudinary" {
		remote, err := cloud.New(cloud.Config{
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
			Folder:    cfg.CloudinaryUploadFolder,
		}, logger)
		if err != nil {
			return nil, err
		}
		return remote, nil
	}
	return storage.NewDisk(cfg.StorageDir, logger), nil
}

func shutdown(app *fiber.App, pool *worker.Pool, logger zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	if err := pool.Stop(ctx); err != nil {
		logger.Error().Err(err).Msg("grading jobs still running at shutdown")
	}

	logger.Info().Msg("server stopped")
}
