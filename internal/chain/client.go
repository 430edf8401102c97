package chain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

const dialTimeout = 15 * time.Second

// Client is a read-only JSON-RPC client used to source pool reserves.
type Client struct {
	rpcClient *rpc.Client
	ethClient *ethclient.Client
}

// Head identifies the chain and block a read was pinned to.
type Head struct {
	ChainID *big.Int
	Number  uint64
	Time    uint64
}

// NewClient dials rpcURL.
func NewClient(ctx context.Context, rpcURL string) (*Client, error) {
	if rpcURL == "" {
		return nil, fmt.Errorf("rpc url is required")
	}
	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	rpcClient, err := rpc.DialContext(dialCtx, rpcURL)
	if err != nil {
		return nil, err
	}
	return &Client{
		rpcClient: rpcClient,
		ethClient: ethclient.NewClient(rpcClient),
	}, nil
}

func (c *Client) Close() {
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
}

// ResolveHead returns the chain ID and the header of block, or of the latest
// block when block is zero.
func (c *Client) ResolveHead(ctx context.Context, block uint64) (Head, error) {
	chainID, err := c.ethClient.ChainID(ctx)
	if err != nil {
		return Head{}, fmt.Errorf("chain id: %w", err)
	}

	var number *big.Int
	if block > 0 {
		number = new(big.Int).SetUint64(block)
	}
	header, err := c.ethClient.HeaderByNumber(ctx, number)
	if err != nil {
		return Head{}, fmt.Errorf("header %v: %w", number, err)
	}
	return Head{ChainID: chainID, Number: header.Number.Uint64(), Time: header.Time}, nil
}

// CallContract performs an eth_call.
func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return c.ethClient.CallContract(ctx, msg, blockNumber)
}
