package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sajilopay/payment-core/internal/reporter"
	"github.com/sajilopay/payment-core/pkg/config"
	"github.com/sajilopay/payment-core/pkg/database"
	"github.com/sajilopay/payment-core/pkg/logger"
	"github.com/sajilopay/payment-core/pkg/retry"
)

// Drains the payment_outbox table and delivers resolved results to the
// configured sink. Runs separately from the API server so delivery
// retries never hold a request goroutine.
func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logCfg := &logger.Config{
		Level:       cfg.App.Environment,
		ServiceName: "outbox-worker",
		Development: cfg.IsDevelopment(),
	}
	if err := logger.Init(logCfg); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	appLog := logger.Get()
	appLog.Info("Starting Outbox Worker...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database connection
	dbCfg := &database.PostgresConfig{
		Host:          cfg.Database.Host,
		Port:          cfg.Database.Port,
		User:          cfg.Database.User,
		Password:      cfg.Database.Password,
		Database:      cfg.Database.DBName,
		SSLMode:       cfg.Database.SSLMode,
		MaxConns:      10,
		MinConns:      2,
		MaxRetries:    3,
		RetryInterval: 2 * time.Second,
	}
	db, err := database.NewPostgres(ctx, dbCfg)
	if err != nil {
		appLog.Fatal(fmt.Sprintf("Failed to connect to database: %v", err))
	}
	defer db.Close()
	appLog.Info("Database connected")

	store := reporter.NewPostgresOutboxStore(db.Pool())

	// Pick the delivery sink: Kafka when enabled, HTTP endpoint otherwise
	var sink reporter.Reporter
	var dlq retry.DLQPublisher

	if cfg.Kafka.Enabled {
		publisher, err := reporter.NewKafkaPublisher(ctx, &reporter.KafkaPublisherConfig{
			Brokers:  cfg.Kafka.Brokers,
			ClientID: "outbox-worker",
			Topic:    cfg.Kafka.Topic,
		})
		if err != nil {
			appLog.Fatal(fmt.Sprintf("Failed to create Kafka publisher: %v", err))
		}
		defer publisher.Close()
		appLog.Info(fmt.Sprintf("Kafka publisher connected (topic: %s)", cfg.Kafka.Topic))

		sink = publisher
		dlq = retry.NewKafkaDLQPublisher(
			&retry.KafkaProducerAdapter{Producer: publisher},
			&retry.DLQConfig{Source: "outbox-worker"},
		)
	} else if cfg.Reporter.Endpoint != "" {
		sink = reporter.NewHTTPReporter(cfg.Reporter.Endpoint, cfg.Reporter.Timeout)
		appLog.Info(fmt.Sprintf("HTTP result sink configured (endpoint: %s)", cfg.Reporter.Endpoint))
	} else {
		appLog.Fatal("No delivery sink configured: set KAFKA_ENABLED or REPORTER_ENDPOINT")
	}

	worker := reporter.NewWorker(store, sink, &reporter.WorkerConfig{
		PollInterval: cfg.Reporter.PollInterval,
		BatchSize:    cfg.Reporter.BatchSize,
		MaxAttempts:  cfg.Reporter.MaxAttempts,
		DLQ:          dlq,
	})

	go worker.Start(ctx)
	appLog.Info("Outbox Worker started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLog.Info("Shutting down worker...")
	cancel()
	worker.Stop()

	appLog.Info("Worker exited gracefully")
}
