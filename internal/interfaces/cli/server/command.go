package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	ticketApp "ticketd/internal/application/ticket"
	"ticketd/internal/infrastructure/cache"
	"ticketd/internal/infrastructure/config"
	"ticketd/internal/infrastructure/database"
	"ticketd/internal/infrastructure/migration"
	"ticketd/internal/infrastructure/repository"
	"ticketd/internal/infrastructure/storage"
	tickethandler "ticketd/internal/interfaces/http/handlers/ticket"
	"ticketd/internal/interfaces/http/routes"
	"ticketd/internal/shared/logger"
	"ticketd/internal/shared/readiness"
)

var (
	env   string
	debug bool
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Start the HTTP server",
		Long:  `Start the ticketd HTTP server with the configured storage backend.`,
		RunE:  run,
	}

	cmd.Flags().StringVarP(&env, "env", "e", "development", "Environment (development, test, production)")
	cmd.Flags().BoolVar(&debug, "debug", false, "Force debug logging regardless of the configured level")

	return cmd
}

func run(cmd *cobra.Command, args []string) error {
	if envVar := os.Getenv("ENV"); envVar != "" {
		env = envVar
	}

	cfg, err := config.Load(env)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(&cfg.Logger); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if debug {
		logger.SetLevel(slog.LevelDebug)
	}

	logger.Info("starting server",
		"environment", env,
		"driver", cfg.Database.Driver,
		"auto_migrate", cfg.Database.AutoMigrate)

	gin.SetMode(mapEnvToGinMode(env))
	gin.DefaultWriter = io.Discard

	db, engine, err := database.Open(&cfg.Database)
	if err != nil {
		logger.Fatal("failed to open database", "error", err)
	}
	defer database.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.GetAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	store := storage.NewLocalStore(cfg.Uploads.Dir)
	logger.Info("attachment store ready", "dir", store.Root())
	repo := repository.NewTicketRepository(db, store)
	ticketCache := cache.NewRedisTicketCache(redisClient, "ticket:")
	state := readiness.NewState()

	service := ticketApp.NewService(repo, ticketCache, state, logger.NewLogger())

	var migrator ticketApp.Migrator
	if cfg.Database.AutoMigrate {
		migrator = migration.NewRunner(db, engine)
	}
	bootstrapper := ticketApp.NewBootstrapper(migrator, repo, state, logger.NewLogger())

	bootCtx, bootCancel := context.WithCancel(context.Background())
	defer bootCancel()
	go func() {
		if err := bootstrapper.Run(bootCtx); err != nil {
			logger.Error("bootstrap failed, service stays unavailable", "error", err)
		}
	}()

	tickethandler.RegisterValidators()

	router := gin.New()
	router.Use(gin.Recovery())
	routes.SetupTicketRoutes(router, tickethandler.NewTicketHandler(service))

	srv := &http.Server{
		Addr:         cfg.Server.GetAddr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "address", cfg.Server.GetAddr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	bootCancel()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		return err
	}

	logger.Info("server exited gracefully")
	return nil
}

func mapEnvToGinMode(environment string) string {
	switch environment {
	case "production", "prod", "release":
		return "release"
	case "test", "testing":
		return "test"
	default:
		return "debug"
	}
}
