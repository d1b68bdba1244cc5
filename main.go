package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sajilopay/payment-core/internal/di"
	"github.com/sajilopay/payment-core/internal/gateway"
	"github.com/sajilopay/payment-core/internal/reporter"
	"github.com/sajilopay/payment-core/pkg/config"
	"github.com/sajilopay/payment-core/pkg/database"
	"github.com/sajilopay/payment-core/pkg/logger"
	"github.com/sajilopay/payment-core/pkg/middleware"
	pkgredis "github.com/sajilopay/payment-core/pkg/redis"
	"github.com/sajilopay/payment-core/pkg/telemetry"
)

func main() {
	// Optimize Go runtime for high concurrency
	runtime.GOMAXPROCS(runtime.NumCPU())

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logCfg := &logger.Config{
		Level:       cfg.App.Environment,
		ServiceName: cfg.App.Name,
		Development: cfg.IsDevelopment(),
	}
	if err := logger.Init(logCfg); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	appLog := logger.Get()
	appLog.Info("Starting Payment Core...")

	ctx := context.Background()

	// Initialize tracing
	_, err = telemetry.Init(ctx, &telemetry.Config{
		Enabled:        cfg.OTel.Enabled,
		ServiceName:    cfg.OTel.ServiceName,
		ServiceVersion: cfg.App.Version,
		Environment:    cfg.App.Environment,
		CollectorAddr:  cfg.OTel.CollectorAddr,
		SampleRatio:    cfg.OTel.SampleRatio,
	})
	if err != nil {
		appLog.Warn(fmt.Sprintf("Telemetry init failed: %v", err))
	}
	defer telemetry.Shutdown(ctx)

	// Initialize database connection
	var db *database.PostgresDB
	dbCfg := &database.PostgresConfig{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		MaxConns:        int32(cfg.Database.MaxOpenConns),
		MinConns:        int32(cfg.Database.MaxIdleConns),
		MaxConnLifetime: cfg.Database.ConnMaxLifetime,
		MaxConnIdleTime: cfg.Database.ConnMaxIdleTime,
		ConnectTimeout:  5 * time.Second,
		MaxRetries:      3,
		RetryInterval:   1 * time.Second,
		EnableTracing:   cfg.OTel.Enabled,
		ServiceName:     cfg.OTel.ServiceName,
	}
	db, err = database.NewPostgres(ctx, dbCfg)
	if err != nil {
		appLog.Warn(fmt.Sprintf("Database connection failed: %v", err))
		db = nil
	} else {
		defer db.Close()
		appLog.Info(fmt.Sprintf("Database connected (pool: min=%d, max=%d)", dbCfg.MinConns, dbCfg.MaxConns))
	}

	// Initialize Redis connection
	var redisClient *pkgredis.Client
	redisCfg := &pkgredis.Config{
		Host:          cfg.Redis.Host,
		Port:          cfg.Redis.Port,
		Password:      cfg.Redis.Password,
		DB:            cfg.Redis.DB,
		PoolSize:      cfg.Redis.PoolSize,
		MinIdleConns:  cfg.Redis.MinIdleConns,
		MaxRetries:    3,
		RetryInterval: 100 * time.Millisecond,
		DialTimeout:   cfg.Redis.DialTimeout,
		ReadTimeout:   cfg.Redis.ReadTimeout,
		WriteTimeout:  cfg.Redis.WriteTimeout,
	}
	redisClient, err = pkgredis.NewClient(ctx, redisCfg)
	if err != nil {
		appLog.Warn(fmt.Sprintf("Redis connection failed: %v", err))
		redisClient = nil
	} else {
		defer redisClient.Close()
		appLog.Info(fmt.Sprintf("Redis connected (pool: %d, minIdle: %d)", redisCfg.PoolSize, redisCfg.MinIdleConns))
	}

	// Decode provider secrets and build the gateway factory
	factoryCfg := gateway.FactoryConfig{}
	if cfg.Fonepay.Enabled {
		secret, err := cfg.Fonepay.SecretBytes()
		if err != nil {
			appLog.Fatal(fmt.Sprintf("Fonepay secret invalid: %v", err))
		}
		factoryCfg.Fonepay = gateway.FonepayConfig{
			BaseURL:    cfg.Fonepay.BaseURL,
			MerchantID: cfg.Fonepay.MerchantID,
			TerminalID: cfg.Fonepay.TerminalID,
			Username:   cfg.Fonepay.Username,
			Password:   cfg.Fonepay.Password,
			Secret:     secret,
			Timeout:    cfg.Fonepay.Timeout,
		}
	}
	if cfg.SmartQR.Enabled {
		secret, err := cfg.SmartQR.SecretBytes()
		if err != nil {
			appLog.Fatal(fmt.Sprintf("SmartQR secret invalid: %v", err))
		}
		factoryCfg.SmartQR = gateway.SmartQRConfig{
			MerchantID: cfg.SmartQR.MerchantID,
			TerminalID: cfg.SmartQR.TerminalID,
			Secret:     secret,
		}
	}

	catalog := gateway.DefaultCatalog(cfg.Fonepay.Enabled, cfg.SmartQR.Enabled)
	factory, err := gateway.NewFactory(catalog, factoryCfg)
	if err != nil {
		appLog.Fatal(fmt.Sprintf("Failed to build gateway factory: %v", err))
	}
	appLog.Info(fmt.Sprintf("Gateway factory ready (%d combinations)", len(catalog.Entries())))

	// Initialize Kafka result publisher when enabled
	var kafkaPublisher *reporter.KafkaPublisher
	if cfg.Kafka.Enabled {
		kafkaPublisher, err = reporter.NewKafkaPublisher(ctx, &reporter.KafkaPublisherConfig{
			Brokers:  cfg.Kafka.Brokers,
			ClientID: cfg.Kafka.ClientID,
			Topic:    cfg.Kafka.Topic,
		})
		if err != nil {
			appLog.Warn(fmt.Sprintf("Kafka connection failed: %v", err))
			kafkaPublisher = nil
		} else {
			defer kafkaPublisher.Close()
			appLog.Info(fmt.Sprintf("Kafka result publisher connected (topic: %s)", cfg.Kafka.Topic))
		}
	}

	hostname, _ := os.Hostname()

	// Build dependency injection container
	container := di.NewContainer(&di.ContainerConfig{
		DB:            db,
		Redis:         redisClient,
		Factory:       factory,
		Kafka:         kafkaPublisher,
		Reporter:      cfg.Reporter,
		WebhookSecret: factoryCfg.Fonepay.Secret,
		LeaseTTL:      getEnvDuration("PAYMENT_LEASE_TTL", 15*time.Minute),
		InstanceID:    hostname,
	})

	// Start the outbox worker alongside the server in outbox mode
	if container.OutboxWorker != nil {
		go container.OutboxWorker.Start(ctx)
		defer container.OutboxWorker.Stop()
		appLog.Info("Outbox delivery worker started")
	}

	// Setup Gin
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Apply middlewares
	router.Use(gin.Recovery())
	if cfg.OTel.Enabled {
		router.Use(telemetry.TracingMiddleware(cfg.OTel.ServiceName))
	}

	// Health check endpoints
	router.GET("/health", container.HealthHandler.Health)
	router.GET("/ready", container.HealthHandler.Ready)

	// API routes
	v1 := router.Group("/api/v1")
	{
		// Status endpoint
		v1.GET("/status", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"status":  "ok",
				"version": cfg.App.Version,
				"service": cfg.App.Name,
			})
		})

		v1.GET("/gateways", container.PaymentHandler.ListGateways)

		// Payment routes
		payments := v1.Group("/payments")

		// Configure idempotency middleware for the confirm endpoint
		var idempotencyConfig *middleware.IdempotencyConfig
		if redisClient != nil {
			idempotencyConfig = middleware.DefaultIdempotencyConfig(redisClient.Client())
			idempotencyConfig.SkipPaths = []string{"/health", "/ready"}
		}

		{
			if idempotencyConfig != nil {
				payments.POST("", middleware.IdempotencyMiddleware(idempotencyConfig), container.PaymentHandler.ConfirmPayment)
			} else {
				payments.POST("", container.PaymentHandler.ConfirmPayment)
			}

			// Surface callbacks resolve live attempts, not idempotent writes
			payments.POST("/:ref/complete", container.PaymentHandler.CompleteAttempt)
			payments.POST("/:ref/error", container.PaymentHandler.FailAttempt)
			payments.POST("/:ref/cancel", container.PaymentHandler.CancelAttempt)

			payments.GET("/:ref", container.PaymentHandler.GetAttempt)
		}

		// Provider webhooks
		if container.WebhookHandler != nil {
			v1.POST("/webhooks/fonepay", container.WebhookHandler.HandleFonepayWebhook)
		}
	}

	// Create HTTP server
	port := getEnvInt("PORT", cfg.Server.Port)
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		ReadHeaderTimeout: 2 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1MB
	}

	// Start server in goroutine
	go func() {
		appLog.Info(fmt.Sprintf("Payment Core listening on %s", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLog.Fatal(fmt.Sprintf("Failed to start server: %v", err))
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLog.Info("Shutting down server...")

	// Give outstanding requests and in-flight attempts 30 seconds
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.Fatal(fmt.Sprintf("Server forced to shutdown: %v", err))
	}

	appLog.Info("Server exited gracefully")
}

// getEnvInt returns environment variable as int or default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if result, err := strconv.Atoi(value); err == nil {
			return result
		}
	}
	return defaultValue
}

// getEnvDuration returns environment variable as duration or default value
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if result, err := time.ParseDuration(value); err == nil {
			return result
		}
	}
	return defaultValue
}
