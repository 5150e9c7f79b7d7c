package messaging

import (
	"context"
	"fmt"

	"github.com/apache/rocketmq-client-go/v2"
	"github.com/apache/rocketmq-client-go/v2/primitive"
	"github.com/apache/rocketmq-client-go/v2/producer"
	"github.com/shopcore/stockengine/internal/domain/shared"
	"github.com/shopcore/stockengine/internal/domain/stock"
	"github.com/shopcore/stockengine/internal/infrastructure/config"
	"github.com/shopcore/stockengine/internal/infrastructure/event"
	"go.uber.org/zap"
)

// MessageSender is the part of rocketmq.Producer the forwarder uses
type MessageSender interface {
	SendSync(ctx context.Context, msgs ...*primitive.Message) (*primitive.SendResult, error)
}

// EventForwarder publishes ledger events to messaging.stock_topic so order
// owners can react, e.g. cancel an order whose reservation expired. It is
// subscribed to the in-process bus; a failed send is logged by the bus and
// not retried.
type EventForwarder struct {
	sender     MessageSender
	topic      string
	serializer *event.EventSerializer
	logger     *zap.Logger
}

// NewEventForwarder wraps sender
func NewEventForwarder(sender MessageSender, topic string, serializer *event.EventSerializer, logger *zap.Logger) *EventForwarder {
	return &EventForwarder{
		sender:     sender,
		topic:      topic,
		serializer: serializer,
		logger:     logger.Named("event-forwarder"),
	}
}

// NewProducer creates and starts a producer for cfg
func NewProducer(cfg config.MessagingConfig) (rocketmq.Producer, error) {
	p, err := rocketmq.NewProducer(
		producer.WithNameServer(cfg.NameServers),
		producer.WithGroupName(cfg.ProducerGroup),
		producer.WithRetry(2),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create rocketmq producer: %w", err)
	}
	if err := p.Start(); err != nil {
		return nil, fmt.Errorf("failed to start rocketmq producer: %w", err)
	}
	return p, nil
}

// EventTypes returns every ledger event
func (f *EventForwarder) EventTypes() []string {
	return []string{
		stock.EventTypeStockReserved,
		stock.EventTypeReservationReleased,
		stock.EventTypeSaleConfirmed,
		stock.EventTypeStockAdjusted,
		stock.EventTypeStockExpired,
		stock.EventTypeReservationExpired,
	}
}

// Handle sends the event as an envelope tagged with its type and keyed by
// the item it concerns
func (f *EventForwarder) Handle(ctx context.Context, evt shared.DomainEvent) error {
	body, err := f.serializer.Marshal(evt)
	if err != nil {
		return err
	}

	msg := primitive.NewMessage(f.topic, body)
	msg.WithTag(evt.EventType())
	msg.WithKeys([]string{evt.AggregateID(), evt.EventID().String()})

	result, err := f.sender.SendSync(ctx, msg)
	if err != nil {
		return fmt.Errorf("forward %s: %w", evt.EventType(), err)
	}
	if result.Status != primitive.SendOK {
		return fmt.Errorf("forward %s: broker returned status %d", evt.EventType(), result.Status)
	}

	f.logger.Debug("Event forwarded",
		zap.String("event_type", evt.EventType()),
		zap.String("event_id", evt.EventID().String()),
		zap.String("msg_id", result.MsgID),
	)
	return nil
}

var _ shared.EventHandler = (*EventForwarder)(nil)
