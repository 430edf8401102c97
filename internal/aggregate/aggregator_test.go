package aggregate

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"ammPool/internal/amm"
	"ammPool/internal/model"
)

type memSink struct {
	calls   int
	metrics []model.PoolWindowMetrics
}

func (s *memSink) UpsertWindowMetrics(_ context.Context, metrics []model.PoolWindowMetrics) error {
	s.calls++
	s.metrics = append(s.metrics, metrics...)
	return nil
}

func journalFixture(t *testing.T) []byte {
	t.Helper()
	records := []model.OperationRecord{
		{
			PoolID: "p1", Seq: 1, Op: model.OpInitialize, Timestamp: 1000,
			Operation: model.Operation{PoolID: "p1", Op: model.OpInitialize, AmountA: 1000, AmountB: 1000},
			After:     amm.Pool{ReserveA: 1000, ReserveB: 1000},
		},
		{
			PoolID: "p1", Seq: 2, Op: model.OpAddLiquidity, Timestamp: 1010,
			Operation: model.Operation{PoolID: "p1", Op: model.OpAddLiquidity, AmountA: 500, AmountB: 500},
			Outputs:   model.Outputs{Minted: 1000},
			Before:    amm.Pool{ReserveA: 1000, ReserveB: 1000},
			After:     amm.Pool{ReserveA: 1500, ReserveB: 1500, TotalClaimSupply: 1000},
		},
		{
			PoolID: "p1", Seq: 3, Op: model.OpSwap, Timestamp: 1020,
			Operation: model.Operation{PoolID: "p1", Op: model.OpSwap, AmountIn: 100, Direction: "a_to_b"},
			Outputs:   model.Outputs{AmountOut: 93},
			Before:    amm.Pool{ReserveA: 1500, ReserveB: 1500, TotalClaimSupply: 1000},
			After:     amm.Pool{ReserveA: 1600, ReserveB: 1407, TotalClaimSupply: 1000},
		},
		{
			PoolID: "p1", Seq: 3, Op: model.OpSwap, Timestamp: 1030,
			Operation: model.Operation{PoolID: "p1", Op: model.OpSwap, AmountIn: 100, MinAmountOut: 94, Direction: "a_to_b"},
			Before:    amm.Pool{ReserveA: 1600, ReserveB: 1407, TotalClaimSupply: 1000},
			After:     amm.Pool{ReserveA: 1600, ReserveB: 1407, TotalClaimSupply: 1000},
			Error:     "slippage exceeded",
		},
		{
			PoolID: "p2", Seq: 1, Op: model.OpInitialize, Timestamp: 1100,
			Operation: model.Operation{PoolID: "p2", Op: model.OpInitialize, AmountA: 5, AmountB: 7},
			After:     amm.Pool{ReserveA: 5, ReserveB: 7},
		},
		{
			PoolID: "p1", Seq: 4, Op: model.OpSwap, Timestamp: 1250,
			Operation: model.Operation{PoolID: "p1", Op: model.OpSwap, AmountIn: 50, Direction: "b_to_a"},
			Outputs:   model.Outputs{AmountOut: 54},
			Before:    amm.Pool{ReserveA: 1600, ReserveB: 1407, TotalClaimSupply: 1000},
			After:     amm.Pool{ReserveA: 1546, ReserveB: 1457, TotalClaimSupply: 1000},
		},
	}

	var buf bytes.Buffer
	for _, record := range records {
		line, err := json.Marshal(record)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	buf.WriteString("{not json\n")
	return buf.Bytes()
}

func TestAggregatorFoldsWindows(t *testing.T) {
	ctx := context.Background()
	sink := &memSink{}
	state := &FileStateStore{Path: filepath.Join(t.TempDir(), "agg_state.json")}
	agg := NewAggregator(Config{WindowSeconds: 300, StateStore: state}, sink, nil)

	summary, err := agg.RunReader(ctx, bytes.NewReader(journalFixture(t)))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Total != 7 || summary.Windows != 3 || summary.Failed != 1 || summary.Skipped != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if len(sink.metrics) != 3 {
		t.Fatalf("expected 3 windows, got %d", len(sink.metrics))
	}

	first := sink.metrics[0]
	if first.PoolID != "p1" || first.WindowStart.Unix() != 900 || first.WindowEnd.Unix() != 1200 {
		t.Fatalf("unexpected first window: %+v", first)
	}
	if first.SwapCount != 1 || first.FailedCount != 1 {
		t.Fatalf("unexpected counts: swaps=%d failed=%d", first.SwapCount, first.FailedCount)
	}
	if first.VolumeInA != "100" || first.VolumeOutB != "93" || first.VolumeInB != "0" || first.VolumeOutA != "0" {
		t.Fatalf("unexpected volumes: %+v", first)
	}
	if first.ClaimsMinted != "1000" || first.ClaimsBurned != "0" {
		t.Fatalf("unexpected claims: minted=%s burned=%s", first.ClaimsMinted, first.ClaimsBurned)
	}
	if first.ReserveA != 1600 || first.ReserveB != 1407 || first.ClaimSupply != 1000 {
		t.Fatalf("unexpected closing reserves: %+v", first)
	}

	second := sink.metrics[1]
	if second.PoolID != "p1" || second.WindowStart.Unix() != 1200 {
		t.Fatalf("unexpected second window: %+v", second)
	}
	if second.VolumeInB != "50" || second.VolumeOutA != "54" || second.ReserveA != 1546 {
		t.Fatalf("unexpected second window values: %+v", second)
	}

	third := sink.metrics[2]
	if third.PoolID != "p2" || third.SwapCount != 0 || third.ReserveA != 5 || third.ReserveB != 7 {
		t.Fatalf("unexpected third window: %+v", third)
	}

	last, ok, err := state.Load(ctx)
	if err != nil || !ok {
		t.Fatalf("load state: ok=%v err=%v", ok, err)
	}
	if last != 1250 {
		t.Fatalf("expected state 1250, got %d", last)
	}

	// A second pass over the same journal resumes after the saved timestamp.
	rerun := &memSink{}
	summary, err = NewAggregator(Config{WindowSeconds: 300, StateStore: state}, rerun, nil).RunReader(ctx, bytes.NewReader(journalFixture(t)))
	if err != nil {
		t.Fatalf("rerun: %v", err)
	}
	if summary.Skipped != 6 || summary.Windows != 0 || rerun.calls != 0 {
		t.Fatalf("unexpected rerun: summary=%+v calls=%d", summary, rerun.calls)
	}
}

func TestAggregatorRecomputeFrom(t *testing.T) {
	sink := &memSink{}
	agg := NewAggregator(Config{WindowSeconds: 300, RecomputeFrom: 1200}, sink, nil)

	summary, err := agg.RunReader(context.Background(), bytes.NewReader(journalFixture(t)))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Skipped != 5 || len(sink.metrics) != 1 {
		t.Fatalf("unexpected summary %+v with %d windows", summary, len(sink.metrics))
	}
	if sink.metrics[0].WindowStart.Unix() != 1200 {
		t.Fatalf("unexpected window start %v", sink.metrics[0].WindowStart)
	}
}

func TestAggregatorRequiresWindow(t *testing.T) {
	agg := NewAggregator(Config{}, &memSink{}, nil)
	if _, err := agg.RunReader(context.Background(), bytes.NewReader(nil)); err == nil {
		t.Fatalf("expected error for zero window")
	}
}

func TestDBStateStoreNaming(t *testing.T) {
	if got := StateName(300); got != "pool_window:300s" {
		t.Fatalf("unexpected state name %q", got)
	}
	if StateName(60) == StateName(3600) {
		t.Fatalf("windows must not share a state row")
	}

	var unset *DBStateStore
	if _, ok, err := unset.Load(context.Background()); ok || err != nil {
		t.Fatalf("nil store: ok=%v err=%v", ok, err)
	}
	if err := (&DBStateStore{}).Save(context.Background(), 1); err != nil {
		t.Fatalf("store without db should be a no-op: %v", err)
	}
}
