package aggregate

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"go.uber.org/zap"

	"ammPool/internal/model"
)

// MetricsSink receives finished windows.
type MetricsSink interface {
	UpsertWindowMetrics(ctx context.Context, metrics []model.PoolWindowMetrics) error
}

// Config controls aggregation behavior.
type Config struct {
	WindowSeconds uint64
	BatchSize     int
	RecomputeFrom uint64
	StateStore    StateStore
}

// Summary counts what a run saw.
type Summary struct {
	Total   int
	Windows int
	Skipped int
	Failed  int
}

// Aggregator folds an operation journal into pool window metrics.
type Aggregator struct {
	cfg          Config
	sink         MetricsSink
	logger       *zap.Logger
	accumulators map[string]*Accumulator
	lastTs       uint64
}

func NewAggregator(cfg Config, sink MetricsSink, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1000
	}
	return &Aggregator{
		cfg:          cfg,
		sink:         sink,
		logger:       logger,
		accumulators: make(map[string]*Accumulator),
	}
}

// Run aggregates a journal JSONL file.
func (a *Aggregator) Run(ctx context.Context, inputPath string) (Summary, error) {
	file, err := os.Open(inputPath)
	if err != nil {
		return Summary{}, fmt.Errorf("open input: %w", err)
	}
	defer file.Close()
	return a.RunReader(ctx, file)
}

// RunReader aggregates journal lines read from r.
func (a *Aggregator) RunReader(ctx context.Context, r io.Reader) (Summary, error) {
	var summary Summary
	if a.sink == nil {
		return summary, fmt.Errorf("metrics sink is nil")
	}
	if a.cfg.WindowSeconds == 0 {
		return summary, fmt.Errorf("window seconds must be > 0")
	}

	startTs, err := a.loadStartTimestamp(ctx)
	if err != nil {
		return summary, err
	}
	a.lastTs = startTs

	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	batch := make([]model.PoolWindowMetrics, 0, a.cfg.BatchSize)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		summary.Total++

		var record model.OperationRecord
		if err := json.Unmarshal(line, &record); err != nil {
			summary.Failed++
			a.logger.Warn("decode journal record", zap.Error(err))
			continue
		}
		if record.Timestamp <= startTs {
			summary.Skipped++
			continue
		}

		start := windowStart(record.Timestamp, a.cfg.WindowSeconds)
		acc := a.accumulators[record.PoolID]
		if acc != nil && acc.WindowStart != start {
			batch = append(batch, acc.Metrics(a.cfg.WindowSeconds))
			acc = nil
		}
		if acc == nil {
			acc = NewAccumulator(record, start, start+a.cfg.WindowSeconds)
			a.accumulators[record.PoolID] = acc
		}

		if err := acc.AddRecord(record); err != nil {
			summary.Failed++
			a.logger.Warn("aggregate record", zap.Error(err), zap.String("pool", record.PoolID), zap.Uint64("seq", record.Seq))
			continue
		}
		if record.Timestamp > a.lastTs {
			a.lastTs = record.Timestamp
		}

		if len(batch) >= a.cfg.BatchSize {
			if err := a.flush(ctx, batch); err != nil {
				return summary, err
			}
			summary.Windows += len(batch)
			batch = batch[:0]
		}
	}
	if err := scanner.Err(); err != nil {
		return summary, fmt.Errorf("scan input: %w", err)
	}

	ids := make([]string, 0, len(a.accumulators))
	for id := range a.accumulators {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		batch = append(batch, a.accumulators[id].Metrics(a.cfg.WindowSeconds))
	}
	a.accumulators = make(map[string]*Accumulator)

	if err := a.flush(ctx, batch); err != nil {
		return summary, err
	}
	summary.Windows += len(batch)

	a.logger.Info("aggregate complete",
		zap.Int("total", summary.Total),
		zap.Int("windows", summary.Windows),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
	)
	return summary, nil
}

func (a *Aggregator) flush(ctx context.Context, batch []model.PoolWindowMetrics) error {
	if len(batch) > 0 {
		if err := a.sink.UpsertWindowMetrics(ctx, batch); err != nil {
			return fmt.Errorf("write window metrics: %w", err)
		}
	}
	return a.saveState(ctx)
}

func (a *Aggregator) loadStartTimestamp(ctx context.Context) (uint64, error) {
	if a.cfg.RecomputeFrom > 0 {
		return a.cfg.RecomputeFrom - 1, nil
	}
	if a.cfg.StateStore == nil {
		return 0, nil
	}
	last, ok, err := a.cfg.StateStore.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("load aggregate state: %w", err)
	}
	if !ok {
		return 0, nil
	}
	return last, nil
}

// saveState records a timestamp below every open window, so a rerun
// recomputes windows that were not flushed.
func (a *Aggregator) saveState(ctx context.Context) error {
	if a.cfg.StateStore == nil {
		return nil
	}
	safeTs := a.lastTs
	if open := minOpenWindowStart(a.accumulators); open > 0 && open-1 < safeTs {
		safeTs = open - 1
	}
	return a.cfg.StateStore.Save(ctx, safeTs)
}
