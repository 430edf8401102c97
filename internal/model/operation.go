package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// OpKind names an engine entry point.
type OpKind string

const (
	OpInitialize      OpKind = "initialize"
	OpAddLiquidity    OpKind = "add_liquidity"
	OpSwap            OpKind = "swap"
	OpRemoveLiquidity OpKind = "remove_liquidity"
)

// ParseOpKind normalizes an operation name.
func ParseOpKind(input string) (OpKind, error) {
	switch kind := OpKind(strings.ToLower(strings.TrimSpace(input))); kind {
	case OpInitialize, OpAddLiquidity, OpSwap, OpRemoveLiquidity:
		return kind, nil
	case "init":
		return OpInitialize, nil
	case "add":
		return OpAddLiquidity, nil
	case "remove":
		return OpRemoveLiquidity, nil
	default:
		return "", fmt.Errorf("unknown operation: %s", input)
	}
}

// Operation is one call against a pool. Which amount fields apply depends on Op.
type Operation struct {
	PoolID       string `json:"pool_id"`
	Op           OpKind `json:"op"`
	AmountA      uint64 `json:"amount_a,omitempty"`
	AmountB      uint64 `json:"amount_b,omitempty"`
	AmountIn     uint64 `json:"amount_in,omitempty"`
	MinAmountOut uint64 `json:"min_amount_out,omitempty"`
	Direction    string `json:"direction,omitempty"`
	Claims       uint64 `json:"claims,omitempty"`
}

// UnmarshalJSON accepts short operation names such as "add" or "remove".
func (o *Operation) UnmarshalJSON(data []byte) error {
	type Alias Operation
	var a Alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	if a.Op != "" {
		kind, err := ParseOpKind(string(a.Op))
		if err != nil {
			return err
		}
		a.Op = kind
	}
	*o = Operation(a)
	return nil
}
