package events

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/christianyoga13/vego/internal/domain/checkout"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return w.err
}

func (w *fakeWriter) Close() error { return nil }

type fakeReader struct {
	msgs      []kafka.Message
	committed []int64
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.msgs) == 0 {
		return kafka.Message{}, io.EOF
	}
	m := r.msgs[0]
	r.msgs = r.msgs[1:]
	return m, nil
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

var testEvent = checkout.Event{
	CheckoutID:   "c1",
	UserID:       "u1",
	RestaurantID: "r1",
	FinalTotal:   decimal.RequireFromString("49950"),
	ItemCount:    2,
	CompletedAt:  time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC),
}

func TestProducer_PublishCompleted(t *testing.T) {
	w := &fakeWriter{}
	p := &Producer{writer: w, topic: "checkout-events"}

	require.NoError(t, p.PublishCompleted(context.Background(), testEvent))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "u1", string(msg.Key))
	assert.Equal(t, TypeCheckoutCompleted, headerCarrier{msg: &msg}.Get(typeHeader))

	e, err := decodeCompleted(msg.Value)
	require.NoError(t, err)
	assert.Equal(t, testEvent.CheckoutID, e.CheckoutID)
	assert.True(t, testEvent.FinalTotal.Equal(e.FinalTotal))
	assert.True(t, testEvent.CompletedAt.Equal(e.CompletedAt))
	assert.Equal(t, 2, e.ItemCount)
}

func TestProducer_WriteError(t *testing.T) {
	p := &Producer{writer: &fakeWriter{err: errors.New("leader not available")}, topic: "t"}
	require.Error(t, p.PublishCompleted(context.Background(), testEvent))
}

func completedMessage(offset int64, value []byte) kafka.Message {
	return kafka.Message{
		Offset:  offset,
		Value:   value,
		Headers: []kafka.Header{{Key: typeHeader, Value: []byte(TypeCheckoutCompleted)}},
	}
}

func TestConsumer_Consume(t *testing.T) {
	r := &fakeReader{msgs: []kafka.Message{
		completedMessage(1, encodeCompleted(testEvent)),
		completedMessage(2, []byte(`{"checkout_id":`)),
		{Offset: 3, Value: []byte(`{}`), Headers: []kafka.Header{{Key: typeHeader, Value: []byte("other")}}},
		completedMessage(4, encodeCompleted(testEvent)),
	}}
	c := &Consumer{reader: r, topic: "t", groupID: "g"}

	var handled []string
	err := c.Consume(context.Background(), func(_ context.Context, e checkout.Event) error {
		handled = append(handled, e.CheckoutID)
		return nil
	})
	require.ErrorIs(t, err, io.EOF)

	assert.Equal(t, []string{"c1", "c1"}, handled)
	assert.Equal(t, []int64{1, 2, 3, 4}, r.committed)
}

func TestConsumer_HandlerErrorDoesNotCommit(t *testing.T) {
	r := &fakeReader{msgs: []kafka.Message{completedMessage(7, encodeCompleted(testEvent))}}
	c := &Consumer{reader: r, topic: "t", groupID: "g"}

	err := c.Consume(context.Background(), func(context.Context, checkout.Event) error {
		return errors.New("db down")
	})
	require.Error(t, err)
	assert.Empty(t, r.committed)
}

func TestHeaderCarrier(t *testing.T) {
	msg := &kafka.Message{}
	c := headerCarrier{msg: msg}

	c.Set("traceparent", "a")
	c.Set("traceparent", "b")
	c.Set("tracestate", "x")

	assert.Equal(t, "b", c.Get("traceparent"))
	assert.Equal(t, []string{"traceparent", "tracestate"}, c.Keys())
	assert.Empty(t, c.Get("missing"))
}
