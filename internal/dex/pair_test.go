package dex

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"ammPool/internal/amm"
)

type fakeCaller struct {
	responses map[string][]byte
	blocks    []*big.Int
}

func (f *fakeCaller) CallContract(_ context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error) {
	f.blocks = append(f.blocks, block)
	for key, resp := range f.responses {
		if bytes.HasPrefix(msg.Data, []byte(key)) {
			return resp, nil
		}
	}
	return nil, errors.New("unexpected call")
}

func newFakeCaller(t *testing.T, pairABI abi.ABI, token0, token1 common.Address, r0, r1 *big.Int) *fakeCaller {
	t.Helper()

	pack := func(method string, args ...interface{}) []byte {
		data, err := pairABI.Methods[method].Outputs.Pack(args...)
		if err != nil {
			t.Fatalf("pack %s: %v", method, err)
		}
		return data
	}

	return &fakeCaller{responses: map[string][]byte{
		string(pairABI.Methods["token0"].ID):      pack("token0", token0),
		string(pairABI.Methods["token1"].ID):      pack("token1", token1),
		string(pairABI.Methods["getReserves"].ID): pack("getReserves", r0, r1, uint32(1700000000)),
	}}
}

func TestFetchPairReserves(t *testing.T) {
	pairABI, err := V2PairABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}

	pair := common.HexToAddress("0x1111111111111111111111111111111111111111")
	token0 := common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	token1 := common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	caller := newFakeCaller(t, pairABI, token0, token1, big.NewInt(1500), big.NewInt(1407))

	block := big.NewInt(36000000)
	reserves, err := FetchPairReserves(context.Background(), caller, pair, block)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}

	if reserves.Token0 != token0 || reserves.Token1 != token1 {
		t.Fatalf("token mismatch: %+v", reserves)
	}
	if reserves.Reserve0.Int64() != 1500 || reserves.Reserve1.Int64() != 1407 {
		t.Fatalf("reserve mismatch: %s/%s", reserves.Reserve0, reserves.Reserve1)
	}
	if reserves.BlockTimestampLast != 1700000000 {
		t.Fatalf("timestamp mismatch: %d", reserves.BlockTimestampLast)
	}
	for _, b := range caller.blocks {
		if b.Cmp(block) != 0 {
			t.Fatalf("call used block %v", b)
		}
	}

	pool, err := reserves.Pool()
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	if pool != amm.Initialize(1500, 1407) {
		t.Fatalf("pool mismatch: %+v", pool)
	}
}

func TestPairReservesPoolRejectsWideReserves(t *testing.T) {
	wide := new(big.Int).Lsh(big.NewInt(1), 100)
	reserves := PairReserves{Reserve0: wide, Reserve1: big.NewInt(1)}
	if _, err := reserves.Pool(); !errors.Is(err, amm.ErrArithmeticOverflow) {
		t.Fatalf("expected overflow, got %v", err)
	}
}
