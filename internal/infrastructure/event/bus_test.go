package event

import (
	"context"
	"errors"
	"testing"

	"github.com/shopcore/stockengine/internal/domain/stock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestInMemoryEventBus_Publish(t *testing.T) {
	ctx := context.Background()

	t.Run("delivers to typed and wildcard handlers", func(t *testing.T) {
		bus := NewInMemoryEventBus(zap.NewNop())
		typed := newRecordingHandler(stock.EventTypeStockReserved)
		other := newRecordingHandler(stock.EventTypeSaleConfirmed)
		wildcard := newRecordingHandler()
		bus.Subscribe(typed)
		bus.Subscribe(other)
		bus.Subscribe(wildcard)

		require.NoError(t, bus.Publish(ctx, reservedEvent("SO-1"), reservedEvent("SO-2")))

		assert.Equal(t, 2, typed.count())
		assert.Equal(t, 0, other.count())
		assert.Equal(t, 2, wildcard.count())
	})

	t.Run("explicit types override the handler's own", func(t *testing.T) {
		bus := NewInMemoryEventBus(zap.NewNop())
		handler := newRecordingHandler(stock.EventTypeSaleConfirmed)
		bus.Subscribe(handler, stock.EventTypeStockReserved)

		require.NoError(t, bus.Publish(ctx, reservedEvent("SO-1")))
		assert.Equal(t, 1, handler.count())
	})

	t.Run("failing handler does not stop the others", func(t *testing.T) {
		core, logs := observer.New(zap.ErrorLevel)
		bus := NewInMemoryEventBus(zap.New(core))
		failing := newRecordingHandler(stock.EventTypeStockReserved)
		failing.err = errors.New("projection down")
		healthy := newRecordingHandler(stock.EventTypeStockReserved)
		bus.Subscribe(failing)
		bus.Subscribe(healthy)

		err := bus.Publish(ctx, reservedEvent("SO-1"))

		require.Error(t, err)
		assert.Contains(t, err.Error(), "projection down")
		assert.Equal(t, 1, healthy.count())
		assert.Equal(t, int64(1), bus.Failures())
		require.Equal(t, 1, logs.Len())
		assert.Equal(t, "handler failed to process event", logs.All()[0].Message)
	})

	t.Run("panic becomes an error", func(t *testing.T) {
		bus := NewInMemoryEventBus(zap.NewNop())
		handler := newRecordingHandler(stock.EventTypeStockReserved)
		handler.panicWith = "boom"
		bus.Subscribe(handler)

		err := bus.Publish(ctx, reservedEvent("SO-1"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "panicked")
	})

	t.Run("nil events are skipped", func(t *testing.T) {
		bus := NewInMemoryEventBus(zap.NewNop())
		handler := newRecordingHandler()
		bus.Subscribe(handler)

		require.NoError(t, bus.Publish(ctx, nil, reservedEvent("SO-1")))
		assert.Equal(t, 1, handler.count())
	})

	t.Run("cancelled context stops delivery", func(t *testing.T) {
		bus := NewInMemoryEventBus(zap.NewNop())
		handler := newRecordingHandler()
		bus.Subscribe(handler)

		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		err := bus.Publish(cancelled, reservedEvent("SO-1"))
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 0, handler.count())
	})
}

func TestInMemoryEventBus_Unsubscribe(t *testing.T) {
	ctx := context.Background()
	bus := NewInMemoryEventBus(zap.NewNop())
	handler := newRecordingHandler(stock.EventTypeStockReserved)
	bus.Subscribe(handler)

	require.NoError(t, bus.Publish(ctx, reservedEvent("SO-1")))
	bus.Unsubscribe(handler)
	require.NoError(t, bus.Publish(ctx, reservedEvent("SO-2")))

	assert.Equal(t, 1, handler.count())
}

func TestInMemoryEventBus_StartStop(t *testing.T) {
	ctx := context.Background()
	bus := NewInMemoryEventBus(zap.NewNop())
	handler := newRecordingHandler()
	bus.Subscribe(handler)

	require.NoError(t, bus.Stop(ctx))
	assert.ErrorIs(t, bus.Publish(ctx, reservedEvent("SO-1")), ErrBusStopped)

	require.NoError(t, bus.Start(ctx))
	require.NoError(t, bus.Publish(ctx, reservedEvent("SO-1")))
	assert.Equal(t, 1, handler.count())
}
