package model

import "time"

// PoolWindowMetrics stores aggregated activity for a pool window.
type PoolWindowMetrics struct {
	PoolID         string    `json:"pool_id"`
	WindowSizeSecs int64     `json:"window_size_seconds"`
	WindowStart    time.Time `json:"window_start"`
	WindowEnd      time.Time `json:"window_end"`
	SwapCount      uint64    `json:"swap_count"`
	FailedCount    uint64    `json:"failed_count"`
	VolumeInA      string    `json:"volume_in_a"`
	VolumeInB      string    `json:"volume_in_b"`
	VolumeOutA     string    `json:"volume_out_a"`
	VolumeOutB     string    `json:"volume_out_b"`
	ClaimsMinted   string    `json:"claims_minted"`
	ClaimsBurned   string    `json:"claims_burned"`
	ReserveA       uint64    `json:"reserve_a"`
	ReserveB       uint64    `json:"reserve_b"`
	ClaimSupply    uint64    `json:"claim_supply"`
}
