package model

import "ammPool/internal/amm"

// PoolState is the persisted record of one pool.
type PoolState struct {
	ID               string `json:"id"`
	ReserveA         uint64 `json:"reserve_a"`
	ReserveB         uint64 `json:"reserve_b"`
	TotalClaimSupply uint64 `json:"total_claim_supply"`
	Seq              uint64 `json:"seq"`
	UpdatedAt        string `json:"updated_at"`
}

// Pool returns the engine view of the record.
func (s PoolState) Pool() amm.Pool {
	return amm.Pool{
		ReserveA:         s.ReserveA,
		ReserveB:         s.ReserveB,
		TotalClaimSupply: s.TotalClaimSupply,
	}
}

// WithPool returns a copy of the record carrying the given engine state.
func (s PoolState) WithPool(p amm.Pool) PoolState {
	s.ReserveA = p.ReserveA
	s.ReserveB = p.ReserveB
	s.TotalClaimSupply = p.TotalClaimSupply
	return s
}
