package host

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"ammPool/internal/amm"
	"ammPool/internal/model"
	"ammPool/internal/storage"
)

var (
	ErrPoolNotFound     = errors.New("pool not found")
	ErrPoolExists       = errors.New("pool already exists")
	ErrUnknownOperation = errors.New("unknown operation")
	// ErrJournalWrite marks a journal failure. The operation outcome is
	// already final when it is returned.
	ErrJournalWrite = errors.New("write journal")
)

const (
	resultOK    = "ok"
	resultError = "error"
)

// Config holds runtime settings for the host.
type Config struct {
	MaxRetries   int
	RetryBackoff time.Duration
	Now          func() time.Time
}

// Host runs engine operations against stored pools. Mutations of one pool
// are serialized; different pools proceed independently.
type Host struct {
	cfg     Config
	store   storage.PoolStore
	journal storage.Journal
	metrics *Metrics
	logger  *zap.Logger
	locks   *poolLocks
}

// New builds a Host. journal and metrics may be nil.
func New(cfg Config, store storage.PoolStore, journal storage.Journal, metrics *Metrics, logger *zap.Logger) *Host {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Host{
		cfg:     cfg,
		store:   store,
		journal: journal,
		metrics: metrics,
		logger:  logger,
		locks:   newPoolLocks(),
	}
}

// Get returns the stored pool record.
func (h *Host) Get(ctx context.Context, id string) (model.PoolState, error) {
	state, ok, err := h.loadWithRetry(ctx, id)
	if err != nil {
		return model.PoolState{}, err
	}
	if !ok {
		return model.PoolState{}, fmt.Errorf("%w: %s", ErrPoolNotFound, id)
	}
	return state, nil
}

// Execute applies one operation. Engine failures are journaled and returned
// with the record; the stored pool is only written when the engine succeeds.
// A committed operation whose journal write fails returns its record with an
// error wrapping ErrJournalWrite and an empty record.Error.
func (h *Host) Execute(ctx context.Context, op model.Operation) (model.OperationRecord, error) {
	if h.store == nil {
		return model.OperationRecord{}, fmt.Errorf("pool store is nil")
	}
	if op.PoolID == "" {
		return model.OperationRecord{}, fmt.Errorf("%w: pool id is required", amm.ErrInvalidArgument)
	}

	start := time.Now()
	unlock := h.locks.lock(op.PoolID)
	defer unlock()

	state, ok, err := h.loadWithRetry(ctx, op.PoolID)
	if err != nil {
		return model.OperationRecord{}, fmt.Errorf("load pool %s: %w", op.PoolID, err)
	}
	switch {
	case op.Op == model.OpInitialize && ok:
		h.metrics.observe(string(op.Op), resultError, time.Since(start).Seconds())
		return model.OperationRecord{}, fmt.Errorf("%w: %s", ErrPoolExists, op.PoolID)
	case op.Op == model.OpInitialize:
		state = model.PoolState{ID: op.PoolID}
	case !ok:
		h.metrics.observe(string(op.Op), resultError, time.Since(start).Seconds())
		return model.OperationRecord{}, fmt.Errorf("%w: %s", ErrPoolNotFound, op.PoolID)
	}

	before := state.Pool()
	after, outputs, applyErr := apply(before, op)

	record := model.OperationRecord{
		PoolID:    op.PoolID,
		Seq:       state.Seq,
		Op:        op.Op,
		Timestamp: uint64(h.cfg.Now().Unix()),
		Operation: op,
		Before:    before,
		After:     before,
	}

	if applyErr != nil {
		record.Error = applyErr.Error()
		h.logger.Debug("operation rejected",
			zap.String("pool", op.PoolID),
			zap.String("op", string(op.Op)),
			zap.Error(applyErr),
		)
		h.metrics.observe(string(op.Op), resultError, time.Since(start).Seconds())
		if err := h.putJournal(ctx, record); err != nil {
			return record, fmt.Errorf("%s %s: %w (%w)", op.Op, op.PoolID, applyErr, err)
		}
		return record, fmt.Errorf("%s %s: %w", op.Op, op.PoolID, applyErr)
	}

	next := state.WithPool(after)
	next.Seq = state.Seq + 1
	next.UpdatedAt = h.cfg.Now().UTC().Format(time.RFC3339Nano)
	if err := h.saveWithRetry(ctx, next); err != nil {
		h.metrics.observe(string(op.Op), resultError, time.Since(start).Seconds())
		return model.OperationRecord{}, fmt.Errorf("save pool %s: %w", op.PoolID, err)
	}

	record.Seq = next.Seq
	record.After = after
	record.Outputs = outputs

	h.logger.Debug("operation applied",
		zap.String("pool", op.PoolID),
		zap.String("op", string(op.Op)),
		zap.Uint64("seq", next.Seq),
		zap.Uint64("reserve_a", after.ReserveA),
		zap.Uint64("reserve_b", after.ReserveB),
		zap.Uint64("total_claim_supply", after.TotalClaimSupply),
	)

	// The pool is committed at this point; a journal failure is reported
	// alongside the record.
	h.metrics.observe(string(op.Op), resultOK, time.Since(start).Seconds())
	if err := h.putJournal(ctx, record); err != nil {
		return record, err
	}
	return record, nil
}

func apply(p amm.Pool, op model.Operation) (amm.Pool, model.Outputs, error) {
	var out model.Outputs
	switch op.Op {
	case model.OpInitialize:
		return amm.Initialize(op.AmountA, op.AmountB), out, nil
	case model.OpAddLiquidity:
		next, minted, err := p.AddLiquidity(op.AmountA, op.AmountB)
		out.Minted = minted
		return next, out, err
	case model.OpSwap:
		dir, err := amm.ParseDirection(op.Direction)
		if err != nil {
			return p, out, err
		}
		next, amountOut, err := p.Swap(op.AmountIn, op.MinAmountOut, dir)
		out.AmountOut = amountOut
		return next, out, err
	case model.OpRemoveLiquidity:
		next, withdrawA, withdrawB, err := p.RemoveLiquidity(op.Claims)
		out.WithdrawA, out.WithdrawB = withdrawA, withdrawB
		return next, out, err
	default:
		return p, out, fmt.Errorf("%w: %q", ErrUnknownOperation, op.Op)
	}
}

func (h *Host) putJournal(ctx context.Context, record model.OperationRecord) error {
	if h.journal == nil {
		return nil
	}
	err := withRetry(ctx, h.cfg.MaxRetries, h.cfg.RetryBackoff, func(ctx context.Context) error {
		err := h.journal.PutOperationBatch(ctx, []model.OperationRecord{record})
		if err != nil {
			h.logger.Warn("journal write failed", zap.Error(err), zap.String("pool", record.PoolID), zap.Uint64("seq", record.Seq))
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrJournalWrite, err)
	}
	return nil
}

func (h *Host) loadWithRetry(ctx context.Context, id string) (model.PoolState, bool, error) {
	var (
		state model.PoolState
		ok    bool
	)
	err := withRetry(ctx, h.cfg.MaxRetries, h.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		state, ok, err = h.store.LoadPool(ctx, id)
		if err != nil {
			h.logger.Warn("load pool failed", zap.Error(err), zap.String("pool", id))
		}
		return err
	})
	return state, ok, err
}

func (h *Host) saveWithRetry(ctx context.Context, state model.PoolState) error {
	return withRetry(ctx, h.cfg.MaxRetries, h.cfg.RetryBackoff, func(ctx context.Context) error {
		err := h.store.SavePool(ctx, state)
		if err != nil {
			h.logger.Warn("save pool failed", zap.Error(err), zap.String("pool", state.ID))
		}
		return err
	})
}
