package storage

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"ammPool/internal/model"
)

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(filepath.Join(t.TempDir(), "state", "pools.json"))

	if _, ok, err := store.LoadPool(ctx, "p1"); err != nil || ok {
		t.Fatalf("expected missing pool, ok=%v err=%v", ok, err)
	}

	want := model.PoolState{ID: "p1", ReserveA: 1600, ReserveB: 1407, TotalClaimSupply: 1000, Seq: 3}
	if err := store.SavePool(ctx, want); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.SavePool(ctx, model.PoolState{ID: "p0", ReserveA: 1}); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, ok, err := store.LoadPool(ctx, "p1")
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if got != want {
		t.Fatalf("pool mismatch: %+v != %+v", got, want)
	}

	pools, err := store.ListPools(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(pools) != 2 || pools[0].ID != "p0" || pools[1].ID != "p1" {
		t.Fatalf("unexpected pools: %+v", pools)
	}
}

func TestFileStoreRejectsEmptyID(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "pools.json"))
	if err := store.SavePool(context.Background(), model.PoolState{}); err == nil {
		t.Fatalf("expected error for empty id")
	}
}

func TestJsonlJournalAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.jsonl")
	journal := NewJsonlJournal(path)

	batch := []model.OperationRecord{
		{PoolID: "p1", Seq: 1, Op: model.OpInitialize},
		{PoolID: "p1", Seq: 2, Op: model.OpAddLiquidity},
	}
	if err := journal.PutOperationBatch(context.Background(), batch); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := journal.PutOperationBatch(context.Background(), batch[:1]); err != nil {
		t.Fatalf("put: %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer file.Close()

	var seqs []uint64
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var record model.OperationRecord
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			t.Fatalf("decode line: %v", err)
		}
		seqs = append(seqs, record.Seq)
	}
	if len(seqs) != 3 || seqs[0] != 1 || seqs[1] != 2 || seqs[2] != 1 {
		t.Fatalf("unexpected journal contents: %v", seqs)
	}
}

func TestJsonlMetricsAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "metrics.jsonl")
	sink := NewJsonlMetrics(path)

	metrics := []model.PoolWindowMetrics{
		{PoolID: "p1", WindowSizeSecs: 300, SwapCount: 2, VolumeInA: "150"},
		{PoolID: "p2", WindowSizeSecs: 300, SwapCount: 1, VolumeInB: "9"},
	}
	if err := sink.UpsertWindowMetrics(context.Background(), metrics); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	lines := bytes.Split(bytes.TrimSpace(data), []byte("\n"))
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	var got model.PoolWindowMetrics
	if err := json.Unmarshal(lines[1], &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.PoolID != "p2" || got.VolumeInB != "9" {
		t.Fatalf("unexpected metrics: %+v", got)
	}
}

func TestJSONFileMissing(t *testing.T) {
	var v map[string]int
	ok, err := ReadJSONFile(filepath.Join(t.TempDir(), "none.json"), &v)
	if err != nil || ok {
		t.Fatalf("expected missing file, ok=%v err=%v", ok, err)
	}
}
