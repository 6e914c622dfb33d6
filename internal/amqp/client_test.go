package amqp

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fundledger/internal/events"
	applog "fundledger/internal/log"
)

type fakeAck struct {
	acked    []uint64
	nacked   []uint64
	requeued int
}

func (f *fakeAck) Ack(tag uint64, multiple bool) error {
	f.acked = append(f.acked, tag)
	return nil
}

func (f *fakeAck) Nack(tag uint64, multiple, requeue bool) error {
	f.nacked = append(f.nacked, tag)
	if requeue {
		f.requeued++
	}
	return nil
}

func (f *fakeAck) Reject(tag uint64, requeue bool) error {
	return f.Nack(tag, false, requeue)
}

func delivery(t *testing.T, ack *fakeAck, tag uint64, msg events.Message) amqp091.Delivery {
	t.Helper()
	_, pub, err := toPublishing(msg)
	require.NoError(t, err)
	return amqp091.Delivery{
		Acknowledger: ack,
		DeliveryTag:  tag,
		ContentType:  pub.ContentType,
		Body:         pub.Body,
	}
}

func TestToPublishing(t *testing.T) {
	msg := events.NewBudgetUpdated("instance-a", 2025, 7)

	key, pub, err := toPublishing(msg)
	require.NoError(t, err)

	assert.Equal(t, "budget.updated", key)
	assert.Equal(t, "application/json", pub.ContentType)
	assert.Equal(t, amqp091.Persistent, pub.DeliveryMode)
	assert.Equal(t, msg.ID, pub.MessageId)
	assert.Equal(t, "instance-a", pub.AppId)

	back, err := fromDelivery(amqp091.Delivery{ContentType: pub.ContentType, Body: pub.Body})
	require.NoError(t, err)
	assert.Equal(t, msg.ID, back.ID)
	assert.Equal(t, int64(7), back.AccountID)
	assert.Equal(t, 2025, back.FiscalYear)
}

func TestFromDelivery_Rejects(t *testing.T) {
	_, err := fromDelivery(amqp091.Delivery{ContentType: "text/plain", Body: []byte("{}")})
	assert.Error(t, err)

	_, err = fromDelivery(amqp091.Delivery{Body: []byte(`{"kind":"expense.synced"}`)})
	assert.Error(t, err)

	_, err = fromDelivery(amqp091.Delivery{Body: []byte("not json")})
	assert.Error(t, err)
}

func TestHandleDelivery(t *testing.T) {
	logger := applog.Discard()
	ctx := context.Background()

	t.Run("handled message is acked", func(t *testing.T) {
		ack := &fakeAck{}
		var got events.Message
		handleDelivery(ctx, delivery(t, ack, 1, events.NewEnterpriseChanged("a")), func(_ context.Context, m events.Message) error {
			got = m
			return nil
		}, logger)

		assert.Equal(t, []uint64{1}, ack.acked)
		assert.Empty(t, ack.nacked)
		assert.Equal(t, events.KindEnterpriseChanged, got.Kind)
	})

	t.Run("handler error is dropped", func(t *testing.T) {
		ack := &fakeAck{}
		handleDelivery(ctx, delivery(t, ack, 2, events.NewEnterpriseChanged("a")), func(context.Context, events.Message) error {
			return errors.New("refresh failed")
		}, logger)

		assert.Empty(t, ack.acked)
		assert.Equal(t, []uint64{2}, ack.nacked)
		assert.Zero(t, ack.requeued)
	})

	t.Run("malformed body never reaches handler", func(t *testing.T) {
		ack := &fakeAck{}
		called := false
		handleDelivery(ctx, amqp091.Delivery{Acknowledger: ack, DeliveryTag: 3, Body: []byte("{")}, func(context.Context, events.Message) error {
			called = true
			return nil
		}, logger)

		assert.False(t, called)
		assert.Equal(t, []uint64{3}, ack.nacked)
	})
}

func TestConsumeLoop(t *testing.T) {
	logger := applog.Discard()

	t.Run("closed channel", func(t *testing.T) {
		ch := make(chan amqp091.Delivery)
		close(ch)
		err := consumeLoop(context.Background(), ch, func(context.Context, events.Message) error { return nil }, logger)
		assert.ErrorIs(t, err, ErrConsumerClosed)
	})

	t.Run("context cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		ch := make(chan amqp091.Delivery, 2)
		ack := &fakeAck{}
		ch <- delivery(t, ack, 1, events.NewDataRefreshed("a", 2025))

		handled := make(chan struct{})
		done := make(chan error, 1)
		go func() {
			done <- consumeLoop(ctx, ch, func(context.Context, events.Message) error {
				close(handled)
				return nil
			}, logger)
		}()

		<-handled
		cancel()
		select {
		case err := <-done:
			assert.ErrorIs(t, err, context.Canceled)
		case <-time.After(2 * time.Second):
			t.Fatal("consumeLoop did not stop")
		}
	})
}

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		err      error
		expected bool
	}{
		{nil, false},
		{errors.New("dial tcp: connection refused"), true},
		{errors.New("connection closed"), true},
		{errors.New("unexpected EOF"), true},
		{errors.New("write: broken pipe"), true},
		{fmt.Errorf("publish: %w", amqp091.ErrClosed), true},
		{ErrConsumerClosed, true},
		{errors.New("invalid input"), false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.err), func(t *testing.T) {
			assert.Equal(t, tt.expected, IsConnectionError(tt.err))
		})
	}
}
