package retry

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// DLQMessage is the envelope published for work abandoned after its
// retry budget. The original payload travels as-is so an operator can
// replay it once the downstream problem is fixed.
type DLQMessage struct {
	ID             string          `json:"id"`
	OriginalTopic  string          `json:"original_topic"`
	OriginalKey    string          `json:"original_key,omitempty"`
	Payload        json.RawMessage `json:"payload"`
	Error          string          `json:"error"`
	Attempts       int             `json:"attempts"`
	FirstAttemptAt time.Time       `json:"first_attempt_at"`
	LastAttemptAt  time.Time       `json:"last_attempt_at"`
	MovedToDLQAt   time.Time       `json:"moved_to_dlq_at"`
	Source         string          `json:"source,omitempty"`
}

// DLQPublisher moves abandoned work to a dead letter topic.
type DLQPublisher interface {
	PublishToDLQ(ctx context.Context, msg *DLQMessage) error
	// GetDLQTopic maps an original topic to its dead letter topic.
	GetDLQTopic(originalTopic string) string
}

// DLQConfig configures dead letter topic naming and attribution.
type DLQConfig struct {
	// TopicSuffix is appended to the original topic. Defaults to ".dlq".
	TopicSuffix string
	// Source names the service that abandoned the work.
	Source string
}

func DefaultDLQConfig() *DLQConfig {
	return &DLQConfig{TopicSuffix: ".dlq"}
}

// PublishJSON is the producer surface the dead letter publisher needs.
type PublishJSON interface {
	ProduceJSON(ctx context.Context, topic, key string, data interface{}, headers map[string]string) error
}

// KafkaProducerAdapter adapts a JSON producer to the KafkaPublisher
// surface used by NewKafkaDLQPublisher.
type KafkaProducerAdapter struct {
	Producer PublishJSON
}

func (a *KafkaProducerAdapter) PublishJSON(ctx context.Context, topic, key string, data interface{}, headers map[string]string) error {
	return a.Producer.ProduceJSON(ctx, topic, key, data, headers)
}

// KafkaPublisher is the transport behind KafkaDLQPublisher.
type KafkaPublisher interface {
	PublishJSON(ctx context.Context, topic, key string, data interface{}, headers map[string]string) error
}

// KafkaDLQPublisher publishes dead letter envelopes to Kafka.
type KafkaDLQPublisher struct {
	producer KafkaPublisher
	config   *DLQConfig
}

// NewKafkaDLQPublisher builds a publisher, filling unset config fields
// with defaults.
func NewKafkaDLQPublisher(producer KafkaPublisher, cfg *DLQConfig) *KafkaDLQPublisher {
	if cfg == nil {
		cfg = DefaultDLQConfig()
	}
	if cfg.TopicSuffix == "" {
		cfg.TopicSuffix = ".dlq"
	}
	return &KafkaDLQPublisher{producer: producer, config: cfg}
}

// PublishToDLQ stamps the envelope and produces it to the dead letter
// topic derived from the original topic. The envelope ID keys the
// message so replays of the same abandonment land on one partition.
func (p *KafkaDLQPublisher) PublishToDLQ(ctx context.Context, msg *DLQMessage) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	msg.MovedToDLQAt = time.Now().UTC()
	if msg.Source == "" {
		msg.Source = p.config.Source
	}

	headers := map[string]string{
		"dlq_source":     msg.Source,
		"original_topic": msg.OriginalTopic,
		"attempts":       strconv.Itoa(msg.Attempts),
	}

	topic := p.GetDLQTopic(msg.OriginalTopic)
	if err := p.producer.PublishJSON(ctx, topic, msg.ID, msg, headers); err != nil {
		return fmt.Errorf("publish to dlq topic %s: %w", topic, err)
	}
	return nil
}

// GetDLQTopic appends the configured suffix to the original topic.
func (p *KafkaDLQPublisher) GetDLQTopic(originalTopic string) string {
	return originalTopic + p.config.TopicSuffix
}
