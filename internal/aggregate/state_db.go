package aggregate

import (
	"context"
	"fmt"

	"ammPool/internal/storage/postgres"
)

// DBStateStore keeps aggregation progress in the aggregator_state table,
// one row per window size.
type DBStateStore struct {
	Store *postgres.Store
	Name  string
}

// NewDBStateStore returns a store whose row is keyed by the window size, so
// runs with different windows resume independently.
func NewDBStateStore(store *postgres.Store, windowSeconds uint64) *DBStateStore {
	return &DBStateStore{Store: store, Name: StateName(windowSeconds)}
}

// StateName is the aggregator_state key for a window size.
func StateName(windowSeconds uint64) string {
	return fmt.Sprintf("pool_window:%ds", windowSeconds)
}

func (s *DBStateStore) Load(ctx context.Context) (uint64, bool, error) {
	if s == nil || s.Store == nil {
		return 0, false, nil
	}
	if s.Name == "" {
		return 0, false, fmt.Errorf("aggregate state name is empty")
	}
	return s.Store.LoadState(ctx, s.Name)
}

func (s *DBStateStore) Save(ctx context.Context, ts uint64) error {
	if s == nil || s.Store == nil {
		return nil
	}
	if s.Name == "" {
		return fmt.Errorf("aggregate state name is empty")
	}
	return s.Store.SaveState(ctx, s.Name, ts)
}
