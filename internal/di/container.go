package di

import (
	"time"

	"github.com/sajilopay/payment-core/internal/gateway"
	"github.com/sajilopay/payment-core/internal/handler"
	"github.com/sajilopay/payment-core/internal/orchestrator"
	"github.com/sajilopay/payment-core/internal/registry"
	"github.com/sajilopay/payment-core/internal/reporter"
	"github.com/sajilopay/payment-core/pkg/config"
	"github.com/sajilopay/payment-core/pkg/database"
	pkgredis "github.com/sajilopay/payment-core/pkg/redis"
	"github.com/sajilopay/payment-core/pkg/retry"
)

// Container holds all dependencies for the payment core service
type Container struct {
	// Infrastructure
	DB    *database.PostgresDB
	Redis *pkgredis.Client

	// Core
	Factory      *gateway.Factory
	Registry     *registry.Registry
	Reporter     reporter.Reporter
	Orchestrator *orchestrator.Orchestrator

	// Outbox delivery, nil in direct mode
	OutboxStore  reporter.OutboxStore
	OutboxWorker *reporter.Worker

	// Handlers
	HealthHandler  *handler.HealthHandler
	PaymentHandler *handler.PaymentHandler
	WebhookHandler *handler.WebhookHandler
}

// ContainerConfig contains configuration for building the container
type ContainerConfig struct {
	DB      *database.PostgresDB
	Redis   *pkgredis.Client
	Factory *gateway.Factory

	// Kafka is the optional result publisher. When set it becomes the
	// delivery sink and the outbox worker's dead-letter target.
	Kafka *reporter.KafkaPublisher

	Reporter      config.ReporterConfig
	WebhookSecret []byte
	LeaseTTL      time.Duration
	InstanceID    string
}

// NewContainer creates a new dependency injection container.
// Missing infrastructure degrades to in-process fallbacks: a memory
// lease store without Redis, a memory outbox without Postgres, and a
// no-op reporter when neither Kafka nor an endpoint is configured.
func NewContainer(cfg *ContainerConfig) *Container {
	c := &Container{
		DB:      cfg.DB,
		Redis:   cfg.Redis,
		Factory: cfg.Factory,
	}

	leaseTTL := cfg.LeaseTTL
	if leaseTTL <= 0 {
		leaseTTL = 15 * time.Minute
	}

	var leases registry.LeaseStore
	if cfg.Redis != nil {
		leases = registry.NewRedisLeaseStore(cfg.Redis, cfg.InstanceID)
	} else {
		leases = registry.NewMemoryLeaseStore()
	}
	c.Registry = registry.New(leases, leaseTTL)

	sink := buildSink(cfg)
	if cfg.Reporter.Mode == "outbox" {
		if cfg.DB != nil {
			c.OutboxStore = reporter.NewPostgresOutboxStore(cfg.DB.Pool())
		} else {
			c.OutboxStore = reporter.NewMemoryOutboxStore()
		}
		workerCfg := &reporter.WorkerConfig{
			PollInterval: cfg.Reporter.PollInterval,
			BatchSize:    cfg.Reporter.BatchSize,
			MaxAttempts:  cfg.Reporter.MaxAttempts,
		}
		if cfg.Kafka != nil {
			workerCfg.DLQ = retry.NewKafkaDLQPublisher(
				&retry.KafkaProducerAdapter{Producer: cfg.Kafka},
				&retry.DLQConfig{Source: "payment-core"},
			)
		}
		c.OutboxWorker = reporter.NewWorker(c.OutboxStore, sink, workerCfg)
		c.Reporter = reporter.NewOutboxReporter(c.OutboxStore)
	} else {
		c.Reporter = sink
	}

	c.Orchestrator = orchestrator.New(cfg.Factory, c.Registry, c.Reporter)

	// Initialize handlers
	checks := map[string]handler.Pinger{}
	if cfg.DB != nil {
		checks["postgres"] = cfg.DB
	}
	if cfg.Redis != nil {
		checks["redis"] = cfg.Redis
	}
	c.HealthHandler = handler.NewHealthHandler(checks)

	if cfg.Factory != nil {
		c.PaymentHandler = handler.NewPaymentHandler(c.Orchestrator, cfg.Factory.Catalog())
	}
	if len(cfg.WebhookSecret) > 0 {
		c.WebhookHandler = handler.NewWebhookHandler(c.Orchestrator, cfg.WebhookSecret)
	}

	return c
}

// buildSink picks the terminal delivery target for resolved results.
func buildSink(cfg *ContainerConfig) reporter.Reporter {
	if cfg.Kafka != nil {
		return cfg.Kafka
	}
	if cfg.Reporter.Endpoint != "" {
		return reporter.NewHTTPReporter(cfg.Reporter.Endpoint, cfg.Reporter.Timeout)
	}
	return reporter.Nop{}
}
