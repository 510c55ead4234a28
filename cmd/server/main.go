package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gtmquest/directory-service/internal/config"
	"github.com/gtmquest/directory-service/internal/handler"
	"github.com/gtmquest/directory-service/internal/middleware"
	"github.com/gtmquest/directory-service/internal/repository"
	"github.com/gtmquest/directory-service/internal/service"

	"github.com/cenkalti/backoff/v4"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Set up logger
	logger, err := createLogger(cfg.Logging.Level)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	// Connect to database
	db, err := connectToDB(cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Redis is optional; without it responses are simply not cached
	redisClient := setupRedis(cfg, logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	agencyRepo := repository.NewAgencyRepository(db, logger)
	directoryService := service.NewDirectoryService(agencyRepo, cfg.Directory, logger)
	directoryHandler := handler.NewDirectoryHandler(directoryService, logger)

	router := setupRouter(directoryHandler, agencyRepo, redisClient, cfg, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start the server in a goroutine
	go func() {
		logger.Info("Starting server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited properly")
}

func createLogger(level string) (*zap.Logger, error) {
	var zapLevel zap.AtomicLevel
	switch level {
	case "debug":
		zapLevel = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapLevel = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapLevel = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapLevel = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		zapLevel = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	config := zap.Config{
		Level:            zapLevel,
		Development:      false,
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	return config.Build()
}

// connectToDB opens the pool, retrying with exponential backoff until
// dbConfig.ConnectTimeout elapses
func connectToDB(dbConfig config.DatabaseConfig, logger *zap.Logger) (*sqlx.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		dbConfig.Host,
		dbConfig.Port,
		dbConfig.User,
		dbConfig.Password,
		dbConfig.DBName,
		dbConfig.SSLMode,
	)

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = dbConfig.ConnectTimeout

	var db *sqlx.DB
	connect := func() error {
		var err error
		db, err = sqlx.Connect("pgx", dsn)
		return err
	}
	notify := func(err error, wait time.Duration) {
		logger.Warn("Database not ready, retrying",
			zap.Error(err),
			zap.String("host", dbConfig.Host),
			zap.Duration("wait", wait))
	}

	if err := backoff.RetryNotify(connect, policy, notify); err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(dbConfig.MaxOpenConns)
	db.SetMaxIdleConns(dbConfig.MaxIdleConns)
	db.SetConnMaxLifetime(dbConfig.ConnMaxLifetime)

	return db, nil
}

func setupRedis(cfg *config.Config, logger *zap.Logger) *redis.Client {
	if !cfg.Cache.Enabled {
		return nil
	}

	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		logger.Warn("Invalid Redis URL, caching disabled", zap.Error(err))
		return nil
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("Redis unavailable, caching disabled", zap.Error(err), zap.String("addr", opts.Addr))
		client.Close()
		return nil
	}

	logger.Info("Connected to Redis", zap.String("addr", opts.Addr))
	return client
}

func setupRouter(
	directoryHandler *handler.DirectoryHandler,
	agencyRepo *repository.AgencyRepository,
	redisClient *redis.Client,
	cfg *config.Config,
	logger *zap.Logger,
) *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(logger))

	router.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := agencyRepo.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "database": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "cache": redisClient != nil})
	})

	cache := middleware.RedisCache(redisClient, middleware.CacheConfig{
		Enabled:   cfg.Cache.Enabled,
		TTL:       cfg.Cache.TTL,
		PrefixKey: cfg.Cache.PrefixKey,
	}, logger)

	v1 := router.Group("/api/v1")
	{
		directory := v1.Group("/directory")
		directory.GET("/summary", cache, directoryHandler.GetCategorySummary)

		locations := v1.Group("/locations")
		{
			locations.GET("", cache, directoryHandler.GetServiceAreas)
			locations.GET("/:location/summary", cache, directoryHandler.GetLocationSummary)
		}

		agencies := v1.Group("/agencies")
		{
			agencies.GET("", cache, directoryHandler.ListAgencies)
			agencies.GET("/:slug", cache, directoryHandler.GetAgency)
		}

		v1.POST("/summaries", directoryHandler.CreateSummary)
	}

	return router
}
