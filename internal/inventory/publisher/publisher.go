package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fekuna/omnipos-stock-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-stock-service/pkg/broker"
	"github.com/fekuna/omnipos-stock-service/pkg/logger"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type KafkaPublisher struct {
	producer broker.MessageProducer
	logger   logger.ZapLogger
}

func NewKafkaPublisher(producer broker.MessageProducer, log logger.ZapLogger) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, logger: log}
}

// Publish writes one message per event keyed by inventory item id, so events
// for the same item stay ordered within a partition.
func (p *KafkaPublisher) Publish(ctx context.Context, events ...dto.InventoryEvent) error {
	var errs error
	for _, evt := range events {
		payload, err := json.Marshal(evt)
		if err != nil {
			errs = errors.Join(errs, fmt.Errorf("marshal %s: %w", evt.EventType, err))
			continue
		}
		msg := kafka.Message{
			Key:   []byte(evt.InventoryItemID),
			Value: payload,
			Headers: []kafka.Header{
				{Key: "event_type", Value: []byte(evt.EventType)},
			},
		}
		if err := p.producer.WriteMessage(ctx, msg); err != nil {
			errs = errors.Join(errs, fmt.Errorf("write %s: %w", evt.EventType, err))
			continue
		}
		p.logger.Debug("inventory event published",
			zap.String("event_type", evt.EventType),
			zap.String("inventory_item_id", evt.InventoryItemID),
		)
	}
	return errs
}
