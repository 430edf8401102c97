package model

import "ammPool/internal/amm"

// Outputs carries the amounts the host must move after a successful call.
type Outputs struct {
	Minted    uint64 `json:"minted,omitempty"`
	AmountOut uint64 `json:"amount_out,omitempty"`
	WithdrawA uint64 `json:"withdraw_a,omitempty"`
	WithdrawB uint64 `json:"withdraw_b,omitempty"`
}

// OperationRecord is a journal entry for one executed operation.
// Error is empty on success; on failure Before and After are equal.
type OperationRecord struct {
	PoolID    string    `json:"pool_id"`
	Seq       uint64    `json:"seq"`
	Op        OpKind    `json:"op"`
	Timestamp uint64    `json:"timestamp"`
	Operation Operation `json:"operation"`
	Outputs   Outputs   `json:"outputs"`
	Before    amm.Pool  `json:"before"`
	After     amm.Pool  `json:"after"`
	Error     string    `json:"error,omitempty"`
}

// Failed reports whether the operation was rejected.
func (r OperationRecord) Failed() bool {
	return r.Error != ""
}
