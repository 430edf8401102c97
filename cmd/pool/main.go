package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"ammPool/internal/amm"
	"ammPool/internal/config"
	"ammPool/internal/host"
	"ammPool/internal/model"
	"ammPool/internal/storage"
	"ammPool/internal/storage/postgres"
)

func main() {
	root := &cobra.Command{
		Use:          "pool",
		Short:        "Constant-product liquidity pool engine",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Create a pool with seed reserves",
		RunE:  runOperation(model.OpInitialize),
	}
	addStoreFlags(initCmd.Flags())
	initCmd.Flags().Uint64("amount-a", 0, "seed reserve of asset A")
	initCmd.Flags().Uint64("amount-b", 0, "seed reserve of asset B")
	root.AddCommand(initCmd)

	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Deposit liquidity and mint claims",
		RunE:  runOperation(model.OpAddLiquidity),
	}
	addStoreFlags(addCmd.Flags())
	addCmd.Flags().Uint64("amount-a", 0, "deposit of asset A")
	addCmd.Flags().Uint64("amount-b", 0, "deposit of asset B")
	root.AddCommand(addCmd)

	swapCmd := &cobra.Command{
		Use:   "swap",
		Short: "Swap along the curve",
		RunE:  runOperation(model.OpSwap),
	}
	addStoreFlags(swapCmd.Flags())
	addSwapFlags(swapCmd.Flags())
	swapCmd.Flags().Uint64("min-out", 0, "minimum acceptable output")
	root.AddCommand(swapCmd)

	removeCmd := &cobra.Command{
		Use:   "remove",
		Short: "Burn claims and withdraw reserves",
		RunE:  runOperation(model.OpRemoveLiquidity),
	}
	addStoreFlags(removeCmd.Flags())
	removeCmd.Flags().Uint64("claims", 0, "claims to burn")
	root.AddCommand(removeCmd)

	quoteCmd := &cobra.Command{
		Use:   "quote",
		Short: "Quote a swap (--amount-in) or a removal (--claims) without applying it",
		RunE:  runQuote,
	}
	addStoreFlags(quoteCmd.Flags())
	addSwapFlags(quoteCmd.Flags())
	quoteCmd.Flags().Uint64("claims", 0, "claims to redeem")
	root.AddCommand(quoteCmd)

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print one pool, or every pool when --pool-id is empty",
		RunE:  runShow,
	}
	addStoreFlags(showCmd.Flags())
	root.AddCommand(showCmd)

	replayCmd := &cobra.Command{
		Use:   "replay",
		Short: "Apply an operations JSONL file",
		RunE:  runReplay,
	}
	addStoreFlags(replayCmd.Flags())
	replayCmd.Flags().String("in", "", "input operations JSONL")
	replayCmd.Flags().String("errors", "./data/replay_errors.jsonl", "replay errors JSONL")
	replayCmd.Flags().String("metrics-addr", "", "serve prometheus metrics on this address (e.g. :9100)")
	root.AddCommand(replayCmd)

	aggregateCmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Aggregate a journal into window metrics",
		RunE:  runAggregate,
	}
	aggregateCmd.Flags().String("in", "./data/journal.jsonl", "input journal JSONL")
	aggregateCmd.Flags().String("window", "5m", "aggregation window (e.g. 1m, 5m, 1h)")
	aggregateCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	aggregateCmd.Flags().String("out", "", "output window metrics JSONL (when no pg-dsn)")
	aggregateCmd.Flags().Int("batch-size", 1000, "batch size for metric writes")
	aggregateCmd.Flags().String("state-file", "", "optional local state file for progress tracking")
	aggregateCmd.Flags().String("recompute-from", "", "recompute from timestamp (unix seconds or RFC3339)")
	aggregateCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.AddCommand(aggregateCmd)

	seedCmd := &cobra.Command{
		Use:   "seed",
		Short: "Initialize a pool from a V2 pair's on-chain reserves",
		RunE:  runSeed,
	}
	addStoreFlags(seedCmd.Flags())
	seedCmd.Flags().String("rpc", "", "Ethereum-compatible RPC URL")
	seedCmd.Flags().String("pair", "", "V2 pair contract address")
	seedCmd.Flags().Uint64("block", 0, "block number to read, 0 means latest")
	root.AddCommand(seedCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addStoreFlags(flags *pflag.FlagSet) {
	flags.String("pool-id", "", "pool identifier")
	flags.String("store", config.StoreFile, "pool store backend (file, postgres)")
	flags.String("state-file", "./data/pools.json", "pool state file for the file store")
	flags.String("journal", "./data/journal.jsonl", "operation journal JSONL for the file store")
	flags.String("pg-dsn", "", "Postgres DSN for the postgres store")
	flags.Int("max-retries", 3, "maximum retry attempts for store writes")
	flags.Duration("retry-backoff", 200*time.Millisecond, "initial retry backoff")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
}

func addSwapFlags(flags *pflag.FlagSet) {
	flags.Uint64("amount-in", 0, "amount paid into the pool")
	flags.String("direction", amm.AToB.String(), "swap direction (a_to_b, b_to_a)")
}

// backend bundles the pool store, journal and a lister for show.
type backend struct {
	store   storage.PoolStore
	journal storage.Journal
	list    func(context.Context) ([]model.PoolState, error)
	close   func()
}

func openBackend(ctx context.Context, cfg config.Config) (*backend, error) {
	switch cfg.Store {
	case config.StorePostgres:
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, err
		}
		return &backend{store: store, journal: store, list: store.ListPools, close: store.Close}, nil
	default:
		store := storage.NewFileStore(cfg.StateFile)
		var journal storage.Journal
		if cfg.Journal != "" {
			journal = storage.NewJsonlJournal(cfg.Journal)
		}
		return &backend{store: store, journal: journal, list: store.ListPools, close: func() {}}, nil
	}
}

// session is the common setup of every store-backed command.
type session struct {
	cfg     config.Config
	logger  *zap.Logger
	backend *backend
	host    *host.Host
}

func openSession(ctx context.Context, cfg config.Config, metrics *host.Metrics) (*session, error) {
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	b, err := openBackend(ctx, cfg)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	h := host.New(host.Config{
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	}, b.store, b.journal, metrics, logger)
	return &session{cfg: cfg, logger: logger, backend: b, host: h}, nil
}

func (s *session) Close() {
	s.backend.close()
	_ = s.logger.Sync()
}

func runOperation(kind model.OpKind) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		cfgFile, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(cfgFile, cmd.Flags())
		if err != nil {
			return err
		}

		op, err := operationFromFlags(kind, cmd.Flags())
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		sess, err := openSession(ctx, cfg, nil)
		if err != nil {
			return err
		}
		defer sess.Close()

		record, err := sess.host.Execute(ctx, op)
		if err != nil {
			return err
		}
		return printJSON(cmd, record)
	}
}

func operationFromFlags(kind model.OpKind, flags *pflag.FlagSet) (model.Operation, error) {
	op := model.Operation{Op: kind}
	op.PoolID, _ = flags.GetString("pool-id")
	if op.PoolID == "" {
		return op, fmt.Errorf("pool id is required")
	}

	switch kind {
	case model.OpInitialize, model.OpAddLiquidity:
		op.AmountA, _ = flags.GetUint64("amount-a")
		op.AmountB, _ = flags.GetUint64("amount-b")
	case model.OpSwap:
		op.AmountIn, _ = flags.GetUint64("amount-in")
		op.MinAmountOut, _ = flags.GetUint64("min-out")
		dir, _ := flags.GetString("direction")
		parsed, err := amm.ParseDirection(dir)
		if err != nil {
			return op, err
		}
		op.Direction = parsed.String()
	case model.OpRemoveLiquidity:
		op.Claims, _ = flags.GetUint64("claims")
	}
	return op, nil
}

type quoteResult struct {
	PoolID    string   `json:"pool_id"`
	Pool      amm.Pool `json:"pool"`
	Direction string   `json:"direction,omitempty"`
	AmountIn  uint64   `json:"amount_in,omitempty"`
	AmountOut uint64   `json:"amount_out,omitempty"`
	Claims    uint64   `json:"claims,omitempty"`
	WithdrawA uint64   `json:"withdraw_a,omitempty"`
	WithdrawB uint64   `json:"withdraw_b,omitempty"`
}

func runQuote(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	poolID, _ := cmd.Flags().GetString("pool-id")
	if poolID == "" {
		return fmt.Errorf("pool id is required")
	}
	amountIn, _ := cmd.Flags().GetUint64("amount-in")
	claims, _ := cmd.Flags().GetUint64("claims")
	if (amountIn == 0) == (claims == 0) {
		return fmt.Errorf("exactly one of --amount-in or --claims is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess, err := openSession(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer sess.Close()

	state, err := sess.host.Get(ctx, poolID)
	if err != nil {
		return err
	}
	pool := state.Pool()
	result := quoteResult{PoolID: poolID, Pool: pool}

	if amountIn > 0 {
		input, _ := cmd.Flags().GetString("direction")
		dir, err := amm.ParseDirection(input)
		if err != nil {
			return err
		}
		out, err := pool.QuoteSwap(amountIn, dir)
		if err != nil {
			return err
		}
		result.Direction, result.AmountIn, result.AmountOut = dir.String(), amountIn, out
	} else {
		withdrawA, withdrawB, err := pool.QuoteRemove(claims)
		if err != nil {
			return err
		}
		result.Claims, result.WithdrawA, result.WithdrawB = claims, withdrawA, withdrawB
	}
	return printJSON(cmd, result)
}

func runShow(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess, err := openSession(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer sess.Close()

	poolID, _ := cmd.Flags().GetString("pool-id")
	if poolID != "" {
		state, err := sess.host.Get(ctx, poolID)
		if err != nil {
			return err
		}
		return printJSON(cmd, state)
	}

	pools, err := sess.backend.list(ctx)
	if err != nil {
		return fmt.Errorf("list pools: %w", err)
	}
	return printJSON(cmd, pools)
}

func printJSON(cmd *cobra.Command, value interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
