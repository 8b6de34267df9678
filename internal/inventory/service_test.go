package inventory

import (
	"context"
	"testing"
	"time"

	kafkax "github.com/ariefcatur/beras-storefront/internal/kafka"
	"github.com/ariefcatur/beras-storefront/internal/orders"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRestocker struct {
	calls    []string
	released map[string]bool
	err      error
}

func (f *fakeRestocker) RestockOrder(_ context.Context, orderID string) (bool, error) {
	f.calls = append(f.calls, orderID)
	if f.err != nil {
		return false, f.err
	}
	if f.released[orderID] {
		return false, nil
	}
	f.released[orderID] = true
	return true, nil
}

func statusMsg(eventType string, p orders.OrderStatusChangedPayload) kafkago.Message {
	env := orders.Envelope{
		EventID:       "ev-" + p.OrderID + "-" + string(p.To),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      "test",
		CorrelationID: p.OrderID,
		Payload:       kafkax.MustMarshal(p),
	}
	return kafkago.Message{Key: orders.PartitionKey(p.OrderID), Value: kafkax.MustMarshal(env)}
}

func TestHandleStatusChangedRestocksCancelled(t *testing.T) {
	f := &fakeRestocker{released: map[string]bool{}}
	restocked := 0
	s := &Service{Orders: f, OnRestock: func() { restocked++ }}
	ctx := context.Background()

	msg := statusMsg(orders.EventOrderStatusChanged, orders.OrderStatusChangedPayload{
		OrderID: "o1", From: orders.StatusPending, To: orders.StatusCancelled, Source: "sweeper",
	})
	require.NoError(t, s.HandleStatusChanged(ctx, msg))
	// redelivery: tanpa redis tetap aman karena guard di DB
	require.NoError(t, s.HandleStatusChanged(ctx, msg))

	assert.Equal(t, []string{"o1", "o1"}, f.calls)
	assert.Equal(t, 1, restocked)
}

func TestHandleStatusChangedIgnoresOthers(t *testing.T) {
	f := &fakeRestocker{released: map[string]bool{}}
	s := &Service{Orders: f}
	ctx := context.Background()

	require.NoError(t, s.HandleStatusChanged(ctx, statusMsg(orders.EventOrderStatusChanged, orders.OrderStatusChangedPayload{
		OrderID: "o1", From: orders.StatusPending, To: orders.StatusProcessing,
	})))
	require.NoError(t, s.HandleStatusChanged(ctx, statusMsg(orders.EventOrderCreated, orders.OrderStatusChangedPayload{
		OrderID: "o2", To: orders.StatusCancelled,
	})))
	require.NoError(t, s.HandleStatusChanged(ctx, kafkago.Message{Value: []byte("not json")}))
	assert.Empty(t, f.calls)
}

func TestHandleStatusChangedReturnsRepoError(t *testing.T) {
	f := &fakeRestocker{released: map[string]bool{}, err: assert.AnError}
	s := &Service{Orders: f}
	err := s.HandleStatusChanged(context.Background(), statusMsg(orders.EventOrderStatusChanged, orders.OrderStatusChangedPayload{
		OrderID: "o1", To: orders.StatusCancelled,
	}))
	assert.ErrorIs(t, err, assert.AnError)
}
