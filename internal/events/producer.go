// Package events publishes and consumes domain events on Kafka.
package events

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/christianyoga13/vego/internal/domain/checkout"
)

const typeHeader = "event-type"

var producerTracer = otel.Tracer("vego/events/producer")

// messageWriter is the part of *kafka.Writer the Producer uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

var _ checkout.EventPublisher = (*Producer)(nil)

// Producer writes checkout events to a topic, keyed by user.
type Producer struct {
	writer messageWriter
	topic  string
}

// NewProducer creates a Producer for topic.
func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{
		topic: topic,
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: true,
			BatchTimeout:           50 * time.Millisecond,
			RequiredAcks:           kafka.RequireAll,
		},
	}
}

// PublishCompleted writes a checkout.completed event.
func (p *Producer) PublishCompleted(ctx context.Context, e checkout.Event) error {
	msg := kafka.Message{
		Key:   []byte(e.UserID),
		Value: encodeCompleted(e),
		Headers: []kafka.Header{
			{Key: typeHeader, Value: []byte(TypeCheckoutCompleted)},
		},
	}

	ctx, span := producerTracer.Start(ctx, "send "+p.topic,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			semconv.MessagingSystemKafka,
			semconv.MessagingOperationName("send"),
			semconv.MessagingOperationTypePublish,
			semconv.MessagingDestinationName(p.topic),
			semconv.MessagingKafkaMessageKey(e.UserID),
		),
	)
	defer span.End()

	otel.GetTextMapPropagator().Inject(ctx, headerCarrier{msg: &msg})

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return errors.Wrap(err, "write message")
	}
	return nil
}

// Close flushes pending messages.
func (p *Producer) Close() error {
	return p.writer.Close()
}
