package dex

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"ammPool/internal/amm"
)

// ContractCaller performs read-only contract calls. *chain.Client satisfies it.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// PairReserves is a snapshot of a V2 pair read via eth_call.
type PairReserves struct {
	Pair               common.Address
	Token0             common.Address
	Token1             common.Address
	Reserve0           *big.Int
	Reserve1           *big.Int
	BlockTimestampLast uint32
}

// Pool maps token0 to asset A and token1 to asset B. Reserves that do not fit
// the 64-bit amount domain are rejected.
func (r PairReserves) Pool() (amm.Pool, error) {
	if r.Reserve0 == nil || r.Reserve1 == nil {
		return amm.Pool{}, fmt.Errorf("reserves missing")
	}
	if !r.Reserve0.IsUint64() || !r.Reserve1.IsUint64() {
		return amm.Pool{}, fmt.Errorf("%w: reserves %s/%s exceed uint64", amm.ErrArithmeticOverflow, r.Reserve0, r.Reserve1)
	}
	return amm.Initialize(r.Reserve0.Uint64(), r.Reserve1.Uint64()), nil
}

// FetchPairReserves loads token addresses and reserves of a V2 pair. A nil
// block reads the latest state.
func FetchPairReserves(ctx context.Context, caller ContractCaller, pair common.Address, block *big.Int) (PairReserves, error) {
	if caller == nil {
		return PairReserves{}, fmt.Errorf("chain client is nil")
	}

	pairABI, err := V2PairABI()
	if err != nil {
		return PairReserves{}, fmt.Errorf("parse pair abi: %w", err)
	}

	out := PairReserves{Pair: pair}

	values, err := callPairMethod(ctx, caller, pair, pairABI, "token0", block)
	if err != nil {
		return PairReserves{}, err
	}
	if out.Token0, err = asAddress(values[0]); err != nil {
		return PairReserves{}, fmt.Errorf("token0: %w", err)
	}

	values, err = callPairMethod(ctx, caller, pair, pairABI, "token1", block)
	if err != nil {
		return PairReserves{}, err
	}
	if out.Token1, err = asAddress(values[0]); err != nil {
		return PairReserves{}, fmt.Errorf("token1: %w", err)
	}

	values, err = callPairMethod(ctx, caller, pair, pairABI, "getReserves", block)
	if err != nil {
		return PairReserves{}, err
	}
	if len(values) != 3 {
		return PairReserves{}, fmt.Errorf("getReserves return size %d", len(values))
	}
	if out.Reserve0, err = asBigInt(values[0]); err != nil {
		return PairReserves{}, fmt.Errorf("reserve0: %w", err)
	}
	if out.Reserve1, err = asBigInt(values[1]); err != nil {
		return PairReserves{}, fmt.Errorf("reserve1: %w", err)
	}
	ts, ok := values[2].(uint32)
	if !ok {
		return PairReserves{}, fmt.Errorf("blockTimestampLast unexpected type %T", values[2])
	}
	out.BlockTimestampLast = ts

	return out, nil
}

func callPairMethod(ctx context.Context, caller ContractCaller, pair common.Address, pairABI abi.ABI, method string, block *big.Int) ([]interface{}, error) {
	data, err := pairABI.Pack(method)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	msg := ethereum.CallMsg{To: &pair, Data: data}
	resp, err := caller.CallContract(ctx, msg, block)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := pairABI.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%s returned nothing", method)
	}
	return values, nil
}

func asAddress(value interface{}) (common.Address, error) {
	switch v := value.(type) {
	case common.Address:
		return v, nil
	case *common.Address:
		return *v, nil
	default:
		return common.Address{}, fmt.Errorf("unsupported address type %T", value)
	}
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case big.Int:
		return new(big.Int).Set(&v), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}
