package aggregate

import (
	"math/big"

	"ammPool/internal/amm"
	"ammPool/internal/model"
)

// Accumulator holds activity totals for one pool window.
type Accumulator struct {
	PoolID       string
	WindowStart  uint64
	WindowEnd    uint64
	SwapCount    uint64
	FailedCount  uint64
	VolumeInA    *big.Int
	VolumeInB    *big.Int
	VolumeOutA   *big.Int
	VolumeOutB   *big.Int
	ClaimsMinted *big.Int
	ClaimsBurned *big.Int
	Closing      amm.Pool
	LastSeq      uint64
	LastTS       uint64
}

func NewAccumulator(record model.OperationRecord, windowStart, windowEnd uint64) *Accumulator {
	return &Accumulator{
		PoolID:       record.PoolID,
		WindowStart:  windowStart,
		WindowEnd:    windowEnd,
		VolumeInA:    big.NewInt(0),
		VolumeInB:    big.NewInt(0),
		VolumeOutA:   big.NewInt(0),
		VolumeOutB:   big.NewInt(0),
		ClaimsMinted: big.NewInt(0),
		ClaimsBurned: big.NewInt(0),
		Closing:      record.Before,
	}
}

// AddRecord folds one journal record into the window.
func (a *Accumulator) AddRecord(record model.OperationRecord) error {
	if record.Failed() {
		a.FailedCount++
		return nil
	}

	if record.Seq >= a.LastSeq {
		a.LastSeq = record.Seq
		a.LastTS = record.Timestamp
		a.Closing = record.After
	}

	switch record.Op {
	case model.OpSwap:
		dir, err := amm.ParseDirection(record.Operation.Direction)
		if err != nil {
			return err
		}
		if dir == amm.AToB {
			addUint(a.VolumeInA, record.Operation.AmountIn)
			addUint(a.VolumeOutB, record.Outputs.AmountOut)
		} else {
			addUint(a.VolumeInB, record.Operation.AmountIn)
			addUint(a.VolumeOutA, record.Outputs.AmountOut)
		}
		a.SwapCount++
	case model.OpAddLiquidity:
		addUint(a.ClaimsMinted, record.Outputs.Minted)
	case model.OpRemoveLiquidity:
		addUint(a.ClaimsBurned, record.Operation.Claims)
	}
	return nil
}

// Metrics renders the window for storage.
func (a *Accumulator) Metrics(windowSeconds uint64) model.PoolWindowMetrics {
	return model.PoolWindowMetrics{
		PoolID:         a.PoolID,
		WindowSizeSecs: int64(windowSeconds),
		WindowStart:    unixTime(a.WindowStart),
		WindowEnd:      unixTime(a.WindowEnd),
		SwapCount:      a.SwapCount,
		FailedCount:    a.FailedCount,
		VolumeInA:      a.VolumeInA.String(),
		VolumeInB:      a.VolumeInB.String(),
		VolumeOutA:     a.VolumeOutA.String(),
		VolumeOutB:     a.VolumeOutB.String(),
		ClaimsMinted:   a.ClaimsMinted.String(),
		ClaimsBurned:   a.ClaimsBurned.String(),
		ReserveA:       a.Closing.ReserveA,
		ReserveB:       a.Closing.ReserveB,
		ClaimSupply:    a.Closing.TotalClaimSupply,
	}
}
