// Package messaging connects the engine to RocketMQ: order status events
// come in through a push consumer and ledger events can be forwarded out.
package messaging

import (
	"context"
	"errors"
	"fmt"

	"github.com/apache/rocketmq-client-go/v2"
	"github.com/apache/rocketmq-client-go/v2/consumer"
	"github.com/apache/rocketmq-client-go/v2/primitive"
	"github.com/google/uuid"
	"github.com/shopcore/stockengine/internal/domain/order"
	"github.com/shopcore/stockengine/internal/domain/shared"
	"github.com/shopcore/stockengine/internal/infrastructure/config"
	"github.com/shopcore/stockengine/internal/infrastructure/event"
	"github.com/shopcore/stockengine/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// OrderEventConsumer feeds order status events from the broker into a
// handler, normally the idempotent wrapper around the lifecycle bridge.
//
// Undecodable messages and domain rejections are acknowledged and dropped;
// they would fail the same way on every redelivery. Anything else is
// retried by the broker up to messaging.max_reconsume times.
type OrderEventConsumer struct {
	pushConsumer rocketmq.PushConsumer
	topic        string
	serializer   *event.EventSerializer
	handler      shared.EventHandler
	logger       *zap.Logger
}

// NewOrderEventConsumer creates the push consumer; call Start to subscribe
func NewOrderEventConsumer(
	cfg config.MessagingConfig,
	serializer *event.EventSerializer,
	handler shared.EventHandler,
	logger *zap.Logger,
) (*OrderEventConsumer, error) {
	c := &OrderEventConsumer{
		topic:      cfg.OrderTopic,
		serializer: serializer,
		handler:    handler,
		logger:     logger.Named("order-consumer"),
	}

	pc, err := rocketmq.NewPushConsumer(
		consumer.WithNameServer(cfg.NameServers),
		consumer.WithGroupName(cfg.ConsumerGroup),
		consumer.WithConsumerModel(consumer.Clustering),
		consumer.WithMaxReconsumeTimes(cfg.MaxReconsume),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create rocketmq consumer: %w", err)
	}
	c.pushConsumer = pc
	return c, nil
}

// Start subscribes to the order topic and starts pulling
func (c *OrderEventConsumer) Start() error {
	if err := c.pushConsumer.Subscribe(c.topic, consumer.MessageSelector{}, c.Consume); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", c.topic, err)
	}
	if err := c.pushConsumer.Start(); err != nil {
		return fmt.Errorf("failed to start rocketmq consumer: %w", err)
	}
	c.logger.Info("Order event consumer started", zap.String("topic", c.topic))
	return nil
}

// Shutdown stops pulling and commits offsets
func (c *OrderEventConsumer) Shutdown() error {
	if err := c.pushConsumer.Shutdown(); err != nil {
		return fmt.Errorf("failed to shutdown rocketmq consumer: %w", err)
	}
	c.logger.Info("Order event consumer stopped")
	return nil
}

// Consume handles one batch. The whole batch is retried when any message
// needs a retry; messages already applied are skipped by the idempotency
// store on the next delivery.
func (c *OrderEventConsumer) Consume(ctx context.Context, msgs ...*primitive.MessageExt) (consumer.ConsumeResult, error) {
	for _, msg := range msgs {
		if retry := c.consumeOne(ctx, msg); retry {
			return consumer.ConsumeRetryLater, nil
		}
	}
	return consumer.ConsumeSuccess, nil
}

// consumeOne reports whether msg should be redelivered
func (c *OrderEventConsumer) consumeOne(ctx context.Context, msg *primitive.MessageExt) bool {
	fields := []zap.Field{
		zap.String("msg_id", msg.MsgId),
		zap.Int32("reconsume_times", msg.ReconsumeTimes),
	}

	evt, err := c.serializer.Unmarshal(msg.Body)
	if err != nil {
		c.logger.Error("Dropping undecodable message", append(fields, zap.Error(err))...)
		return false
	}
	statusEvent, ok := evt.(*order.OrderStatusChangedEvent)
	if !ok {
		c.logger.Warn("Dropping unexpected event type", append(fields, zap.String("event_type", evt.EventType()))...)
		return false
	}
	if statusEvent.ID == uuid.Nil {
		statusEvent.ID = order.EventIDFromSource(msg.MsgId)
	}

	fields = append(fields,
		zap.String("event_id", statusEvent.ID.String()),
		zap.String("order_ref", statusEvent.OrderRef),
		zap.String("to", string(statusEvent.To)),
	)
	ctx = logger.WithContext(ctx, c.logger.With(fields...))

	err = c.handler.Handle(ctx, statusEvent)
	switch {
	case err == nil:
		return false
	case isPermanent(err):
		c.logger.Warn("Order event rejected", append(fields, zap.String("code", shared.CodeOf(err)), zap.Error(err))...)
		return false
	default:
		c.logger.Error("Order event failed, will retry", append(fields, zap.Error(err))...)
		return true
	}
}

// isPermanent reports whether redelivering would fail the same way. Domain
// errors are permanent except for concurrency conflicts and transitions of
// orders the ledger has not recorded yet.
func isPermanent(err error) bool {
	if shared.CodeOf(err) == "" {
		return false
	}
	return !errors.Is(err, shared.ErrConcurrencyConflict) &&
		!errors.Is(err, order.ErrLedgerRecordNotFound)
}
