package reporter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"

	"github.com/sajilopay/payment-core/pkg/logger"
)

// TopicPaymentResult carries every resolved payment attempt.
const TopicPaymentResult = "payment.result"

// KafkaPublisherConfig configures the result event publisher.
type KafkaPublisherConfig struct {
	Brokers  []string
	ClientID string
	Topic    string
}

// KafkaPublisher publishes result records to Kafka, keyed by merchant
// reference so results for one order stay in one partition.
type KafkaPublisher struct {
	client *kgo.Client
	topic  string
}

// NewKafkaPublisher creates and pings a Kafka producer client.
func NewKafkaPublisher(ctx context.Context, cfg *KafkaPublisherConfig) (*KafkaPublisher, error) {
	topic := cfg.Topic
	if topic == "" {
		topic = TopicPaymentResult
	}

	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(cfg.ClientID),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
		kgo.ProduceRequestTimeout(10 * time.Second),
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka client: %w", err)
	}

	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Kafka: %w", err)
	}

	return &KafkaPublisher{client: client, topic: topic}, nil
}

func (p *KafkaPublisher) Report(ctx context.Context, rec *Record) error {
	value, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal result record: %w", err)
	}

	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(rec.MerchantRef),
		Value: value,
	}

	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("publish result for %s: %w", rec.MerchantRef, err)
	}

	logger.Get().Debug("payment result published",
		zap.String("topic", p.topic),
		zap.String("merchant_ref", rec.MerchantRef))
	return nil
}

// ProduceJSON publishes arbitrary JSON to a topic. Used by the dead
// letter publisher for abandoned result records.
func (p *KafkaPublisher) ProduceJSON(ctx context.Context, topic, key string, data interface{}, headers map[string]string) error {
	value, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", topic, err)
	}

	record := &kgo.Record{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
	}
	for k, v := range headers {
		record.Headers = append(record.Headers, kgo.RecordHeader{Key: k, Value: []byte(v)})
	}

	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

// Close flushes pending messages and releases the client.
func (p *KafkaPublisher) Close() {
	p.client.Close()
}
