package rabbitmq

import (
	"context"
	"testing"

	errors "github.com/Laisky/errors/v2"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type ackRecorder struct {
	acked, nacked, requeued bool
}

func (a *ackRecorder) Ack(uint64, bool) error { a.acked = true; return nil }

func (a *ackRecorder) Nack(_ uint64, _ bool, requeue bool) error {
	a.nacked, a.requeued = true, requeue
	return nil
}

func (a *ackRecorder) Reject(_ uint64, requeue bool) error {
	a.nacked, a.requeued = true, requeue
	return nil
}

func delivery(body string) (amqp.Delivery, *ackRecorder) {
	rec := &ackRecorder{}
	return amqp.Delivery{Acknowledger: rec, DeliveryTag: 1, Body: []byte(body)}, rec
}

func TestProcessAcksSuccessfulJob(t *testing.T) {
	d, rec := delivery(`{"job_id":"01HJOB"}`)
	var got string
	process(context.Background(), zap.NewNop(), d, func(_ context.Context, id string) error {
		got = id
		return nil
	})
	require.Equal(t, "01HJOB", got)
	require.True(t, rec.acked)
	require.False(t, rec.nacked)
}

func TestProcessNacksToDeadLetter(t *testing.T) {
	d, rec := delivery(`{"job_id":"01HJOB"}`)
	process(context.Background(), zap.NewNop(), d, func(context.Context, string) error {
		return errors.New("provider down")
	})
	require.True(t, rec.nacked)
	require.False(t, rec.requeued)

	called := false
	d, rec = delivery(`not json`)
	process(context.Background(), zap.NewNop(), d, func(context.Context, string) error {
		called = true
		return nil
	})
	require.False(t, called)
	require.True(t, rec.nacked)
}
