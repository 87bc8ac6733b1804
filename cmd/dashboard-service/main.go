package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ms-minting/internal/assets"
	"ms-minting/internal/config"
	"ms-minting/internal/dashboard"
	dashboard_api "ms-minting/internal/dashboard/api"
	"ms-minting/internal/kafka"
	"ms-minting/internal/logger"
)

func connectDatabase(cfg *config.Config, logger *logger.Logger) *bun.DB {
	dsn := cfg.Database.DSN
	if dsn == "" {
		logger.Fatal("CONFIG", "POSTGRES_DSN not set")
	}

	var sqldb *sql.DB
	var err error
	maxRetries := 5

	for i := 0; i < maxRetries; i++ {
		logger.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, maxRetries))
		sqldb, err = sql.Open("postgres", dsn)
		if err == nil {
			err = sqldb.Ping()
			if err == nil {
				break
			}
		}
		logger.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		if i < maxRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}

	if err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL after %d attempts: %v", maxRetries, err))
	}

	logger.Info("DATABASE", "✅ PostgreSQL connection successful")
	return bun.NewDB(sqldb, pgdialect.New())
}

func main() {
	logger := logger.NewLogger()
	defer logger.Close()

	logger.Info("APP", "Starting Dashboard Service initialization")

	if err := godotenv.Load(); err != nil {
		logger.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		logger.Info("CONFIG", "Loaded environment variables from .env file")
	}

	cfg := config.Load()

	bunDB := connectDatabase(cfg, logger)
	defer bunDB.Close()

	client := &http.Client{
		Timeout: time.Second * 10,
	}
	fetcher := assets.NewFetcher(client, cfg.Ledger.AlgodURL, cfg.Ledger.IndexerURL, cfg.Ledger.APIToken, logger)

	progress := dashboard.NewProgressCache()

	consumerCtx, cancelConsumer := context.WithCancel(context.Background())
	defer cancelConsumer()

	var consumer *kafka.Consumer
	if cfg.Kafka.Enabled {
		consumer = kafka.NewProgressConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID)
		go consumer.Start(consumerCtx, progress.Update)
		logger.Info("KAFKA", "Batch progress consumer started")
	} else {
		logger.Warn("KAFKA", "Kafka disabled, batch progress endpoint will serve no data")
	}

	dashboardService := dashboard.NewService(bunDB)
	handler := dashboard_api.NewHandler(dashboardService, fetcher, progress, logger)

	engine := gin.Default()
	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	handler.RegisterRoutes(engine)

	port := os.Getenv("DASHBOARD_PORT")
	if port == "" {
		port = ":8087"
	}

	server := &http.Server{
		Addr:    port,
		Handler: engine,
	}

	go func() {
		logger.Info("HTTP", fmt.Sprintf("🚀 Dashboard Service running on %s", port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	logger.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	logger.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	cancelConsumer()
	if consumer != nil {
		if err := consumer.Close(); err != nil {
			logger.Error("KAFKA", fmt.Sprintf("Failed to close consumer: %v", err))
		}
	}

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		logger.Info("HTTP", "✅ Dashboard Service shutdown complete")
	}
}
