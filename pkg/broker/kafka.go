package broker

import (
	"context"
	"time"

	otelkafka "github.com/Trendyol/otel-kafka-konsumer"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

type Config struct {
	Brokers      []string
	Topic        string
	GroupID      string
	ClientID     string
	BatchTimeout time.Duration
	BatchSize    int
}

type MessageConsumer interface {
	ReadMessage(ctx context.Context) (*kafka.Message, error)
	Close() error
}

type MessageProducer interface {
	WriteMessage(ctx context.Context, msg kafka.Message) error
	Close() error
}

type KafkaConsumer struct {
	reader *otelkafka.Reader
}

func NewConsumer(cfg *Config) (*KafkaConsumer, error) {
	base := kafka.NewReader(kafka.ReaderConfig{
		Brokers: cfg.Brokers,
		Topic:   cfg.Topic,
		GroupID: cfg.GroupID,
	})
	reader, err := otelkafka.NewReader(base)
	if err != nil {
		return nil, err
	}
	return &KafkaConsumer{reader: reader}, nil
}

func (c *KafkaConsumer) ReadMessage(ctx context.Context) (*kafka.Message, error) {
	return c.reader.ReadMessage(ctx)
}

func (c *KafkaConsumer) Close() error {
	return c.reader.Close()
}

type KafkaProducer struct {
	writer *otelkafka.Writer
}

func NewProducer(cfg *Config) (*KafkaProducer, error) {
	batchTimeout := cfg.BatchTimeout
	if batchTimeout == 0 {
		batchTimeout = 10 * time.Millisecond
	}
	base := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: batchTimeout,
		BatchSize:    cfg.BatchSize,
	}
	writer, err := otelkafka.NewWriter(base,
		otelkafka.WithTracerProvider(otel.GetTracerProvider()),
		otelkafka.WithPropagator(propagation.TraceContext{}),
		otelkafka.WithAttributes([]attribute.KeyValue{
			semconv.MessagingDestinationNameKey.String(cfg.Topic),
			attribute.String("messaging.kafka.client_id", cfg.ClientID),
		}),
	)
	if err != nil {
		return nil, err
	}
	return &KafkaProducer{writer: writer}, nil
}

func (p *KafkaProducer) WriteMessage(ctx context.Context, msg kafka.Message) error {
	return p.writer.WriteMessage(ctx, msg)
}

func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}

// ExtractTraceContext continues the producer's trace from the message headers.
func ExtractTraceContext(ctx context.Context, headers []kafka.Header) context.Context {
	carrier := propagation.MapCarrier{}
	for _, h := range headers {
		carrier[h.Key] = string(h.Value)
	}
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}
