package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHandlerRegistry_Register(t *testing.T) {
	t.Run("specific types", func(t *testing.T) {
		registry := NewHandlerRegistry()
		handler := newRecordingHandler()

		registry.Register(handler, "StockReserved", "SaleConfirmed")

		assert.Equal(t, []any{handler}, toAny(registry.GetHandlers("StockReserved")))
		assert.Len(t, registry.GetHandlers("SaleConfirmed"), 1)
		assert.Empty(t, registry.GetHandlers("StockExpired"))
		assert.Equal(t, 2, registry.Len())
	})

	t.Run("wildcard receives every type", func(t *testing.T) {
		registry := NewHandlerRegistry()
		typed := newRecordingHandler()
		wildcard := newRecordingHandler()

		registry.Register(typed, "StockReserved")
		registry.Register(wildcard)

		handlers := registry.GetHandlers("StockReserved")
		assert.Len(t, handlers, 2)
		assert.Same(t, typed, handlers[0])
		assert.Same(t, wildcard, handlers[1])
		assert.Len(t, registry.GetHandlers("Anything"), 1)
	})
}

func TestHandlerRegistry_Unregister(t *testing.T) {
	registry := NewHandlerRegistry()
	keep := newRecordingHandler()
	drop := newRecordingHandler()

	registry.Register(keep, "StockReserved")
	registry.Register(drop, "StockReserved", "StockAdjusted")
	registry.Register(drop)

	registry.Unregister(drop)

	handlers := registry.GetHandlers("StockReserved")
	assert.Len(t, handlers, 1)
	assert.Same(t, keep, handlers[0])
	assert.Empty(t, registry.GetHandlers("StockAdjusted"))
	assert.Equal(t, 1, registry.Len())
}

func TestHandlerRegistry_GetHandlersReturnsCopy(t *testing.T) {
	registry := NewHandlerRegistry()
	registry.Register(newRecordingHandler(), "StockReserved")

	handlers := registry.GetHandlers("StockReserved")
	handlers[0] = nil

	assert.NotNil(t, registry.GetHandlers("StockReserved")[0])
}

func toAny[T any](in []T) []any {
	out := make([]any, len(in))
	for i := range in {
		out[i] = in[i]
	}
	return out
}
