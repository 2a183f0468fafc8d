package events

import (
	"context"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/christianyoga13/vego/internal/domain/checkout"
)

var consumerTracer = otel.Tracer("vego/events/consumer")

// messageReader is the part of *kafka.Reader the Consumer uses.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// CompletedHandler processes a checkout.completed event.
type CompletedHandler func(ctx context.Context, e checkout.Event) error

// Consumer reads checkout events as part of a consumer group.
type Consumer struct {
	reader  messageReader
	topic   string
	groupID string
}

// NewConsumer creates a Consumer for topic in groupID.
func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers: brokers,
			Topic:   topic,
			GroupID: groupID,
		}),
		topic:   topic,
		groupID: groupID,
	}
}

// Consume dispatches messages to h until ctx is done. Messages that cannot be
// decoded are logged and committed; a handler error stops consumption
// without committing so the message is redelivered.
func (c *Consumer) Consume(ctx context.Context, h CompletedHandler) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "fetch message")
		}

		if err := c.process(ctx, msg, h); err != nil {
			return err
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "commit message")
		}
	}
}

func (c *Consumer) process(ctx context.Context, msg kafka.Message, h CompletedHandler) error {
	parent := otel.GetTextMapPropagator().Extract(ctx, headerCarrier{msg: &msg})
	ctx, span := consumerTracer.Start(parent, "process "+c.topic,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			semconv.MessagingSystemKafka,
			semconv.MessagingOperationName("process"),
			semconv.MessagingOperationTypeDeliver,
			semconv.MessagingDestinationName(c.topic),
			semconv.MessagingKafkaConsumerGroup(c.groupID),
			semconv.MessagingKafkaMessageOffset(int(msg.Offset)),
			semconv.MessagingDestinationPartitionID(strconv.Itoa(msg.Partition)),
		),
	)
	defer span.End()

	lg := zctx.From(ctx).With(
		zap.Int("partition", msg.Partition),
		zap.Int64("offset", msg.Offset),
	)

	if t := (headerCarrier{msg: &msg}).Get(typeHeader); t != TypeCheckoutCompleted {
		lg.Debug("Skipping event", zap.String("type", t))
		return nil
	}

	e, err := decodeCompleted(msg.Value)
	if err != nil {
		lg.Warn("Skipping malformed event", zap.Error(err))
		return nil
	}

	if err := h(ctx, e); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return errors.Wrapf(err, "handle checkout %s", e.CheckoutID)
	}
	return nil
}

// Close leaves the consumer group.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
