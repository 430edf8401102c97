package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"ammPool/internal/model"
)

// FileStore keeps every pool record in a single JSON snapshot file.
// Each save rewrites the snapshot through a temp file and rename.
type FileStore struct {
	path string
	mu   sync.Mutex
}

type snapshot struct {
	Pools []model.PoolState `json:"pools"`
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) LoadPool(_ context.Context, id string) (model.PoolState, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pools, err := s.read()
	if err != nil {
		return model.PoolState{}, false, err
	}
	state, ok := pools[id]
	return state, ok, nil
}

func (s *FileStore) SavePool(_ context.Context, state model.PoolState) error {
	if state.ID == "" {
		return fmt.Errorf("pool id required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	pools, err := s.read()
	if err != nil {
		return err
	}
	pools[state.ID] = state
	return s.write(pools)
}

// ListPools returns all stored pools ordered by ID.
func (s *FileStore) ListPools(_ context.Context) ([]model.PoolState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pools, err := s.read()
	if err != nil {
		return nil, err
	}
	out := make([]model.PoolState, 0, len(pools))
	for _, state := range pools {
		out = append(out, state)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *FileStore) read() (map[string]model.PoolState, error) {
	pools := make(map[string]model.PoolState)

	var snap snapshot
	if _, err := ReadJSONFile(s.path, &snap); err != nil {
		return nil, fmt.Errorf("load pools: %w", err)
	}
	for _, state := range snap.Pools {
		pools[state.ID] = state
	}
	return pools, nil
}

func (s *FileStore) write(pools map[string]model.PoolState) error {
	snap := snapshot{Pools: make([]model.PoolState, 0, len(pools))}
	for _, state := range pools {
		snap.Pools = append(snap.Pools, state)
	}
	sort.Slice(snap.Pools, func(i, j int) bool { return snap.Pools[i].ID < snap.Pools[j].ID })

	if err := WriteJSONFile(s.path, snap); err != nil {
		return fmt.Errorf("store pools: %w", err)
	}
	return nil
}
