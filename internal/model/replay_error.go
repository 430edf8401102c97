package model

// ReplayError records a replay failure for one input line.
type ReplayError struct {
	Line   int    `json:"line"`
	PoolID string `json:"pool_id,omitempty"`
	Op     string `json:"op,omitempty"`
	Error  string `json:"error"`
}
