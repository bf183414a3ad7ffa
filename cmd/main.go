package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Dosada05/debate-tournament/brackets"
	"github.com/Dosada05/debate-tournament/config"
	"github.com/Dosada05/debate-tournament/db"
	"github.com/Dosada05/debate-tournament/handlers"
	"github.com/Dosada05/debate-tournament/judges"
	"github.com/Dosada05/debate-tournament/models"
	"github.com/Dosada05/debate-tournament/repositories"
	"github.com/Dosada05/debate-tournament/roster"
	api "github.com/Dosada05/debate-tournament/routes"
	"github.com/Dosada05/debate-tournament/rules"
	"github.com/Dosada05/debate-tournament/services"
	"github.com/Dosada05/debate-tournament/storage"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded",
		slog.Int("port", cfg.ServerPort),
		slog.String("db_driver", cfg.DBDriver),
		slog.String("work_mode", string(cfg.WorkMode)),
		slog.String("rule_format", cfg.RuleFormat))

	ros, err := roster.Load(cfg.RosterPath)
	if err != nil {
		logger.Error("failed to load roster", slog.String("path", cfg.RosterPath), slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("roster loaded",
		slog.Int("teams", len(ros.Teams)),
		slog.Int("judges", len(ros.JudgeList())),
		slog.Int("questions", len(ros.ProblemSet)))

	dbConn, err := db.Connect(cfg.DBDriver, cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		} else {
			logger.Info("database connection closed")
		}
	}()
	if err := db.Migrate(context.Background(), dbConn); err != nil {
		logger.Error("failed to migrate database", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("database connection established")

	uploader, err := newUploader(cfg)
	if err != nil {
		logger.Error("failed to initialize room seed storage", slog.Any("error", err))
		os.Exit(1)
	}

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	wsHub := brackets.NewHub(logger)
	go wsHub.Run(hubCtx)
	logger.Info("WebSocket Hub started")

	scheduleRepo := repositories.NewScheduleRepository(dbConn)
	recordRepo := repositories.NewRecordRepository(dbConn)

	seed := time.Now().UnixNano()
	if cfg.RandomSeed != nil {
		seed = *cfg.RandomSeed
	}
	logger.Info("random source seeded", slog.Int64("seed", seed))

	scheduleService := services.NewScheduleService(services.ScheduleServiceDeps{
		Roster:       ros,
		Generator:    brackets.NewRotationGenerator(),
		Allocator:    judges.NewAllocator(cfg.JudgeMaxAttempts, logger),
		ScheduleRepo: scheduleRepo,
		RecordRepo:   recordRepo,
		Uploader:     uploader,
		Notifier:     wsHub,
		Rand:         rand.New(rand.NewSource(seed)),
		Logger:       logger,
	})

	rule := rules.New(cfg.RuleFormat, rules.Options{MinQuestionCount: cfg.MinQuestionCount}, logger)
	matchService := services.NewMatchService(ros, recordRepo, rule, models.RoundType(cfg.RoundType), wsHub, logger)
	logger.Info("Services initialized")

	router := chi.NewRouter()
	api.SetupRoutes(
		router,
		api.Options{JWTSecret: []byte(cfg.JWTSecretKey), AllowedOrigins: cfg.AllowedOrigins},
		handlers.NewScheduleHandler(scheduleService),
		handlers.NewMatchHandler(matchService),
		handlers.NewWebSocketHandler(wsHub),
	)
	logger.Info("Routes configured")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("server stopped gracefully")
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		logger.Info("shutting down server", slog.Duration("timeout", 15*time.Second))
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			os.Exit(1)
		}
		logger.Info("server shutdown complete")
	}
	logger.Info("application exited")
}

// newUploader picks where room seed files go: the local match directory
// offline, Cloudflare R2 online.
func newUploader(cfg *config.Config) (storage.FileUploader, error) {
	switch cfg.WorkMode {
	case config.WorkModeOnline:
		uploader, err := storage.NewCloudflareR2Uploader(context.Background(), storage.CloudflareR2UploaderConfig{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicBaseURL:   cfg.R2PublicBaseURL,
		})
		if err != nil {
			return nil, err
		}
		slog.Info("Cloudflare R2 uploader initialized", slog.String("bucket", cfg.R2BucketName))
		return uploader, nil
	default:
		uploader, err := storage.NewLocalUploader(cfg.MatchDir)
		if err != nil {
			return nil, err
		}
		slog.Info("local match directory initialized", slog.String("dir", cfg.MatchDir))
		return uploader, nil
	}
}
