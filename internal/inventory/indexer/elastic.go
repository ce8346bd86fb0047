package indexer

import (
	"context"
	"sync"

	"github.com/fekuna/omnipos-stock-service/internal/model"
	"github.com/fekuna/omnipos-stock-service/pkg/logger"
	"github.com/fekuna/omnipos-stock-service/pkg/search"
	"go.uber.org/zap"
)

const movementsIndex = "inventory_movements"

const movementsMapping = `{
	"mappings": {
		"properties": {
			"inventory_item_id": { "type": "keyword" },
			"warehouse_id": { "type": "keyword" },
			"sku": { "type": "keyword" },
			"movement_type": { "type": "keyword" },
			"quantity": { "type": "integer" },
			"quantity_before": { "type": "integer" },
			"quantity_after": { "type": "integer" },
			"reference_type": { "type": "keyword" },
			"reference_id": { "type": "keyword" },
			"reason": { "type": "text" },
			"notes": { "type": "text" },
			"created_by": { "type": "keyword" },
			"created_at": { "type": "date" }
		}
	}
}`

type documentIndexer interface {
	CreateIndex(ctx context.Context, index, mapping string) error
	Index(ctx context.Context, index, id string, doc any) error
}

// MovementIndexer mirrors the movement audit trail into Elasticsearch for
// ad-hoc search. Postgres stays the source of truth.
type MovementIndexer struct {
	es     documentIndexer
	once   sync.Once
	logger logger.ZapLogger
}

func NewMovementIndexer(es *search.Client, log logger.ZapLogger) *MovementIndexer {
	return &MovementIndexer{es: es, logger: log}
}

func (i *MovementIndexer) IndexMovement(ctx context.Context, m *model.InventoryMovement) error {
	i.once.Do(func() {
		if err := i.es.CreateIndex(ctx, movementsIndex, movementsMapping); err != nil {
			i.logger.Warn("failed to ensure movements index", zap.Error(err))
		}
	})
	return i.es.Index(ctx, movementsIndex, m.ID, m)
}
