package di

import (
	"testing"
	"time"

	"github.com/sajilopay/payment-core/internal/gateway"
	"github.com/sajilopay/payment-core/internal/reporter"
	"github.com/sajilopay/payment-core/pkg/config"
	pkgredis "github.com/sajilopay/payment-core/pkg/redis"
)

func testFactory(t *testing.T) *gateway.Factory {
	t.Helper()
	factory, err := gateway.NewFactory(gateway.DefaultCatalog(true, true), gateway.FactoryConfig{
		Fonepay: gateway.FonepayConfig{
			BaseURL:    "http://127.0.0.1:1",
			MerchantID: "11000000025",
			TerminalID: "800022",
			Username:   "merchant",
			Password:   "secret",
			Secret:     []byte("fonepay-signing-key"),
		},
		SmartQR: gateway.SmartQRConfig{
			MerchantID: "22000000031",
			TerminalID: "900014",
			Secret:     []byte("smartqr-signing-key"),
		},
	})
	if err != nil {
		t.Fatalf("NewFactory: %v", err)
	}
	return factory
}

func TestNewContainerMemoryFallbacks(t *testing.T) {
	c := NewContainer(&ContainerConfig{Factory: testFactory(t)})

	if c.Registry == nil {
		t.Fatal("Registry not built")
	}
	if _, ok := c.Reporter.(reporter.Nop); !ok {
		t.Errorf("Reporter = %T, want Nop without any sink configured", c.Reporter)
	}
	if c.OutboxWorker != nil || c.OutboxStore != nil {
		t.Error("outbox delivery built in direct mode")
	}
	if c.Orchestrator == nil {
		t.Fatal("Orchestrator not built")
	}
	if c.PaymentHandler == nil {
		t.Error("PaymentHandler not built despite a factory")
	}
	if c.WebhookHandler != nil {
		t.Error("WebhookHandler built without a webhook secret")
	}
	if c.HealthHandler == nil {
		t.Error("HealthHandler not built")
	}
}

func TestNewContainerWiresRedisLeases(t *testing.T) {
	c := NewContainer(&ContainerConfig{
		Factory:    testFactory(t),
		Redis:      &pkgredis.Client{},
		LeaseTTL:   time.Minute,
		InstanceID: "payment-core-1",
	})

	if c.Redis == nil {
		t.Fatal("Redis not carried into the container")
	}
	if c.Registry == nil {
		t.Fatal("Registry not built over the redis lease store")
	}
}

func TestNewContainerOutboxMode(t *testing.T) {
	c := NewContainer(&ContainerConfig{
		Factory: testFactory(t),
		Reporter: config.ReporterConfig{
			Mode:         "outbox",
			PollInterval: 10 * time.Millisecond,
			BatchSize:    5,
			MaxAttempts:  2,
		},
	})

	if c.OutboxStore == nil {
		t.Fatal("OutboxStore not built in outbox mode")
	}
	if c.OutboxWorker == nil {
		t.Fatal("OutboxWorker not built in outbox mode")
	}
	if _, ok := c.Reporter.(*reporter.OutboxReporter); !ok {
		t.Errorf("Reporter = %T, want OutboxReporter in outbox mode", c.Reporter)
	}
}

func TestNewContainerBuildsWebhookHandler(t *testing.T) {
	c := NewContainer(&ContainerConfig{
		Factory:       testFactory(t),
		WebhookSecret: []byte("fonepay-signing-key"),
	})

	if c.WebhookHandler == nil {
		t.Fatal("WebhookHandler not built despite a webhook secret")
	}
}
