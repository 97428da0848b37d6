package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/jonesrussell/sherlock-center/internal/api"
	"github.com/jonesrussell/sherlock-center/internal/auth"
	"github.com/jonesrussell/sherlock-center/internal/config"
	"github.com/jonesrussell/sherlock-center/internal/database"
	"github.com/jonesrussell/sherlock-center/internal/events"
	"github.com/jonesrussell/sherlock-center/internal/handler"
	"github.com/jonesrussell/sherlock-center/internal/logger"
	"github.com/jonesrussell/sherlock-center/internal/metrics"
	"github.com/jonesrussell/sherlock-center/internal/probe"
	"github.com/jonesrussell/sherlock-center/internal/ratelimit"
	"github.com/jonesrussell/sherlock-center/internal/repository"
	"github.com/jonesrussell/sherlock-center/internal/scanner"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	log, err := createLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		return 1
	}
	defer func() { _ = log.Sync() }()

	db, err := database.Connect(cfg.Database.DSN())
	if err != nil {
		log.Error("Failed to connect to database", logger.Error(err))
		return 1
	}
	defer func() { _ = db.Close() }()

	log.Info("Database connected",
		logger.String("host", cfg.Database.Host),
		logger.Int("port", cfg.Database.Port),
		logger.String("database", cfg.Database.Database),
	)

	if err := database.RunMigrations(db, log); err != nil {
		log.Error("Failed to run migrations", logger.Error(err))
		return 1
	}

	return runServer(cfg, log, db)
}

// loadConfig loads and validates configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(config.GetConfigPath("config.yml"))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if validationErr := cfg.Validate(); validationErr != nil {
		return nil, fmt.Errorf("validate config: %w", validationErr)
	}
	return cfg, nil
}

// createLogger creates a logger instance from configuration.
func createLogger(cfg *config.Config) (logger.Logger, error) {
	log, err := logger.New(logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Development: cfg.Service.Debug,
	})
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return log.With(logger.String("service", cfg.Service.Name)), nil
}

// createLimiter picks the Redis-backed limiter when Redis is reachable
// and falls back to the in-process one otherwise.
func createLimiter(cfg *config.Config, log logger.Logger) (ratelimit.Limiter, func()) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		log.Warn("Redis unreachable, using in-process rate limiter",
			logger.String("address", cfg.Redis.Address),
			logger.Error(err),
		)
		mem := ratelimit.NewMemoryLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window())
		return mem, mem.Close
	}

	log.Info("Rate limiter backed by Redis",
		logger.String("address", cfg.Redis.Address),
	)
	limiter := ratelimit.NewRedisLimiter(client, cfg.RateLimit.Requests, cfg.RateLimit.Window(), log)
	return limiter, func() { _ = client.Close() }
}

// createEngine loads the site catalog. A missing catalog leaves the
// service up but makes every scan fail, mirroring a missing probe
// backend.
func createEngine(cfg *config.Config, log logger.Logger) probe.Engine {
	sites, err := probe.LoadCatalog(cfg.Scanner.SitesFile)
	if err != nil {
		log.Warn("Site catalog unavailable, scans will fail",
			logger.String("sites_file", cfg.Scanner.SitesFile),
			logger.Error(err),
		)
		return probe.Disabled{}
	}

	log.Info("Site catalog loaded",
		logger.String("sites_file", cfg.Scanner.SitesFile),
		logger.Int("sites", len(sites)),
	)
	return probe.NewHTTPEngine(sites, cfg.Scanner.ProbeWorkers, cfg.Scanner.SherlockTimeout(), log)
}

// runServer creates all dependencies and starts the HTTP server.
func runServer(cfg *config.Config, log logger.Logger, db *sql.DB) int {
	limiter, closeLimiter := createLimiter(cfg, log)
	defer closeLimiter()

	hub := events.NewHub(log)
	if err := hub.Start(context.Background()); err != nil {
		log.Error("Failed to start event hub", logger.Error(err))
		return 1
	}
	defer func() { _ = hub.Stop() }()

	scanRepo := repository.NewScanRepository(db, log)
	userRepo := repository.NewUserRepository(db, log)
	m := metrics.New(nil)
	engine := createEngine(cfg, log)

	scanSvc := scanner.NewService(scanRepo, limiter, engine, hub, m, scanner.Config{
		MaxConcurrent: cfg.Scanner.MaxConcurrentScans,
		Queue:         cfg.Scanner.QueueScans,
	}, log)

	jwtManager := auth.NewJWTManager(cfg.JWT.Secret, cfg.JWT.Expiry)

	done := make(chan struct{})
	defer close(done)

	server := api.NewServer(cfg, log, func(router *gin.Engine) {
		api.SetupRoutes(router, api.Handlers{
			Auth:   handler.NewAuthHandler(userRepo, jwtManager, log),
			Scan:   handler.NewScanHandler(scanSvc, log),
			Health: handler.NewHealthHandler(cfg.Service.Version),
			Hub:    hub,
			JWT:    jwtManager,
			Log:    log,
			Done:   done,
		})
	})

	log.Info("Sherlock center starting",
		logger.Int("port", cfg.Service.Port),
	)

	if err := server.Run(); err != nil {
		log.Error("Server error", logger.Error(err))
		return 1
	}

	log.Info("Sherlock center exited cleanly")
	return 0
}
