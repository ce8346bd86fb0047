package indexer

import (
	"context"
	"testing"

	"github.com/fekuna/omnipos-stock-service/internal/model"
	"github.com/fekuna/omnipos-stock-service/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeES struct {
	created []string
	indexed map[string]any
}

func (f *fakeES) CreateIndex(ctx context.Context, index, mapping string) error {
	f.created = append(f.created, index)
	return nil
}

func (f *fakeES) Index(ctx context.Context, index, id string, doc any) error {
	if f.indexed == nil {
		f.indexed = map[string]any{}
	}
	f.indexed[index+"/"+id] = doc
	return nil
}

func TestMovementIndexer_CreatesIndexOnce(t *testing.T) {
	es := &fakeES{}
	idx := &MovementIndexer{es: es, logger: logger.NewNop()}

	require.NoError(t, idx.IndexMovement(context.Background(), &model.InventoryMovement{ID: "m-1"}))
	require.NoError(t, idx.IndexMovement(context.Background(), &model.InventoryMovement{ID: "m-2"}))

	assert.Equal(t, []string{movementsIndex}, es.created)
	assert.Contains(t, es.indexed, movementsIndex+"/m-1")
	assert.Contains(t, es.indexed, movementsIndex+"/m-2")
}
