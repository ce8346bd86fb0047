package listener

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/fekuna/omnipos-stock-service/internal/model"
	"github.com/fekuna/omnipos-stock-service/internal/order"
	"github.com/fekuna/omnipos-stock-service/internal/order/dto"
	"github.com/fekuna/omnipos-stock-service/pkg/broker"
	"github.com/fekuna/omnipos-stock-service/pkg/logger"
	"go.uber.org/zap"
)

// OrderListener drives the order lifecycle from the orders topic. Events are
// applied through the order use case, so every transition goes through the
// state machine and its inventory side effects.
type OrderListener struct {
	consumer   broker.MessageConsumer
	uc         order.UseCase
	retryDelay time.Duration
	logger     logger.ZapLogger
}

func NewOrderListener(consumer broker.MessageConsumer, uc order.UseCase, logger logger.ZapLogger) *OrderListener {
	return &OrderListener{
		consumer:   consumer,
		uc:         uc,
		retryDelay: time.Second,
		logger:     logger,
	}
}

func (l *OrderListener) Start(ctx context.Context) {
	l.logger.Info("Starting Order Kafka Listener")
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("Stopping Order Kafka Listener")
			return
		default:
			msg, err := l.consumer.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				l.logger.Error("Failed to read kafka message", zap.Error(err))
				time.Sleep(l.retryDelay)
				continue
			}
			l.processMessage(broker.ExtractTraceContext(ctx, msg.Headers), msg.Value)
		}
	}
}

func (l *OrderListener) processMessage(ctx context.Context, value []byte) {
	var event dto.OrderEvent
	if err := json.Unmarshal(value, &event); err != nil {
		l.logger.Error("Failed to unmarshal event", zap.Error(err))
		return
	}
	if event.Payload.ID == "" {
		l.logger.Warn("Order event without order id", zap.String("event_id", event.EventID))
		return
	}

	if event.EventType == dto.EventOrderCreated {
		l.handleCreated(ctx, &event)
		return
	}
	status, ok := dto.StatusEvents[event.EventType]
	if !ok {
		return
	}

	l.logger.Info("Processing order event",
		zap.String("event_type", event.EventType),
		zap.String("order_id", event.Payload.ID),
	)
	_, err := l.uc.UpdateStatus(ctx, &dto.UpdateStatusInput{
		OrderID: event.Payload.ID,
		Status:  status,
		ActorID: actorOrSystem(event.Payload.ActorID),
		Reason:  event.Payload.Reason,
	})
	switch {
	case err == nil:
	case errors.Is(err, model.ErrInvalidState):
		// out of order or stale redelivery; the order already moved on
		l.logger.Warn("Order event rejected by state machine",
			zap.String("order_id", event.Payload.ID),
			zap.String("event_type", event.EventType),
			zap.Error(err),
		)
	default:
		l.logger.Error("Failed to apply order event",
			zap.String("order_id", event.Payload.ID),
			zap.String("event_type", event.EventType),
			zap.Error(err),
		)
	}
}

func (l *OrderListener) handleCreated(ctx context.Context, event *dto.OrderEvent) {
	_, err := l.uc.CreateOrder(ctx, &dto.CreateOrderInput{
		ID:         event.Payload.ID,
		CartID:     event.Payload.CartID,
		CustomerID: event.Payload.CustomerID,
	})
	if err != nil && !errors.Is(err, model.ErrAlreadyExists) {
		l.logger.Error("Failed to register order",
			zap.String("order_id", event.Payload.ID),
			zap.Error(err),
		)
	}
}

func actorOrSystem(actor string) string {
	if actor == "" {
		return "system"
	}
	return actor
}
