package main

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ammPool/internal/chain"
	"ammPool/internal/config"
	"ammPool/internal/dex"
	"ammPool/internal/model"
)

func runSeed(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadSeed(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	if !common.IsHexAddress(cfg.Pair) {
		return fmt.Errorf("invalid pair address: %s", cfg.Pair)
	}
	pair := common.HexToAddress(cfg.Pair)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess, err := openSession(ctx, cfg.Config, nil)
	if err != nil {
		return err
	}
	defer sess.Close()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	head, err := chainClient.ResolveHead(ctx, cfg.Block)
	if err != nil {
		return err
	}
	block := new(big.Int).SetUint64(head.Number)

	reserves, err := dex.FetchPairReserves(ctx, chainClient, pair, block)
	if err != nil {
		return err
	}
	pool, err := reserves.Pool()
	if err != nil {
		return err
	}

	sess.logger.Info("seed pool",
		zap.String("pool", cfg.PoolID),
		zap.String("chain_id", head.ChainID.String()),
		zap.String("pair", pair.Hex()),
		zap.String("token0", reserves.Token0.Hex()),
		zap.String("token1", reserves.Token1.Hex()),
		zap.Uint64("block", head.Number),
		zap.Uint64("block_time", head.Time),
		zap.Uint64("reserve_a", pool.ReserveA),
		zap.Uint64("reserve_b", pool.ReserveB),
	)

	record, err := sess.host.Execute(ctx, model.Operation{
		PoolID:  cfg.PoolID,
		Op:      model.OpInitialize,
		AmountA: pool.ReserveA,
		AmountB: pool.ReserveB,
	})
	if err != nil {
		return err
	}
	return printJSON(cmd, record)
}
