package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"ammPool/internal/model"
)

// JsonlJournal appends operation records to a JSONL file.
type JsonlJournal struct {
	path string
	mu   sync.Mutex
}

func NewJsonlJournal(path string) *JsonlJournal {
	return &JsonlJournal{path: path}
}

// PutOperationBatch appends a batch of operation records as JSON lines.
func (s *JsonlJournal) PutOperationBatch(_ context.Context, records []model.OperationRecord) error {
	if len(records) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	values := make([]any, 0, len(records))
	for _, record := range records {
		values = append(values, record)
	}
	if err := appendLines(s.path, values); err != nil {
		return fmt.Errorf("journal: %w", err)
	}
	return nil
}

// JsonlMetrics appends window metrics to a JSONL file. Re-aggregated windows
// are appended again; readers keep the last line per key.
type JsonlMetrics struct {
	path string
	mu   sync.Mutex
}

func NewJsonlMetrics(path string) *JsonlMetrics {
	return &JsonlMetrics{path: path}
}

func (s *JsonlMetrics) UpsertWindowMetrics(_ context.Context, metrics []model.PoolWindowMetrics) error {
	if len(metrics) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	values := make([]any, 0, len(metrics))
	for _, m := range metrics {
		values = append(values, m)
	}
	if err := appendLines(s.path, values); err != nil {
		return fmt.Errorf("window metrics: %w", err)
	}
	return nil
}

func appendLines(path string, values []any) error {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create dir: %w", err)
		}
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	for _, value := range values {
		line, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("marshal: %w", err)
		}
		if _, err := writer.Write(line); err != nil {
			return fmt.Errorf("write: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("write newline: %w", err)
		}
	}
	return writer.Flush()
}
