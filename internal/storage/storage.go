package storage

import (
	"context"

	"ammPool/internal/model"
)

// PoolStore loads and persists pool records by ID.
type PoolStore interface {
	LoadPool(ctx context.Context, id string) (model.PoolState, bool, error)
	SavePool(ctx context.Context, state model.PoolState) error
}

// Journal is a sink for executed operations.
type Journal interface {
	PutOperationBatch(ctx context.Context, records []model.OperationRecord) error
}
