package amm

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPoolScenario(t *testing.T) {
	req := require.New(t)

	pool := Initialize(1000, 1000)
	req.Equal(Pool{ReserveA: 1000, ReserveB: 1000}, pool)

	pool, minted, err := pool.AddLiquidity(500, 500)
	req.NoError(err)
	req.Equal(uint64(1000), minted)
	req.Equal(Pool{ReserveA: 1500, ReserveB: 1500, TotalClaimSupply: 1000}, pool)

	pool, out, err := pool.Swap(100, 0, AToB)
	req.NoError(err)
	req.Equal(uint64(93), out)
	req.Equal(Pool{ReserveA: 1600, ReserveB: 1407, TotalClaimSupply: 1000}, pool)

	next, out, err := pool.Swap(100, 94, AToB)
	req.ErrorIs(err, ErrSlippageExceeded)
	req.Zero(out)
	req.Equal(pool, next)

	pool, withdrawA, withdrawB, err := pool.RemoveLiquidity(1000)
	req.NoError(err)
	req.Equal(uint64(1600), withdrawA)
	req.Equal(uint64(1407), withdrawB)
	req.True(pool.IsEmpty())
}

func TestAddLiquidityProportional(t *testing.T) {
	req := require.New(t)

	pool := Pool{ReserveA: 1200, ReserveB: 600, TotalClaimSupply: 300}

	// 10% of A but 20% of B: the A bound wins.
	next, minted, err := pool.AddLiquidity(120, 120)
	req.NoError(err)
	req.Equal(uint64(30), minted)
	req.Equal(Pool{ReserveA: 1320, ReserveB: 720, TotalClaimSupply: 330}, next)

	// Single-sided deposits mint the smaller bound, which is zero.
	next, minted, err = pool.AddLiquidity(120, 0)
	req.NoError(err)
	req.Zero(minted)
	req.Equal(Pool{ReserveA: 1320, ReserveB: 600, TotalClaimSupply: 300}, next)

	// Floor rounding: 7 * 300 / 1200 = 1.75.
	_, minted, err = pool.AddLiquidity(7, 1000)
	req.NoError(err)
	req.Equal(uint64(1), minted)
}

func TestSwapBToA(t *testing.T) {
	req := require.New(t)

	pool := Pool{ReserveA: 1200, ReserveB: 600, TotalClaimSupply: 1800}
	next, out, err := pool.Swap(50, 20, BToA)
	req.NoError(err)
	// floor(1200 * 50 / 650) = 92
	req.Equal(uint64(92), out)
	req.Equal(Pool{ReserveA: 1108, ReserveB: 650, TotalClaimSupply: 1800}, next)
}

func TestSwapFromEmptyOutputReserve(t *testing.T) {
	req := require.New(t)

	pool := Initialize(1000, 0)
	next, out, err := pool.Swap(100, 0, AToB)
	req.NoError(err)
	req.Zero(out)
	req.Equal(Pool{ReserveA: 1100, ReserveB: 0}, next)

	quoted, err := pool.QuoteSwap(100, AToB)
	req.NoError(err)
	req.Zero(quoted)
}

func TestSwapSlippageBoundary(t *testing.T) {
	req := require.New(t)

	pool := Pool{ReserveA: 1500, ReserveB: 1500, TotalClaimSupply: 1000}
	quoted, err := pool.QuoteSwap(100, AToB)
	req.NoError(err)

	_, out, err := pool.Swap(100, quoted, AToB)
	req.NoError(err)
	req.Equal(quoted, out)

	next, _, err := pool.Swap(100, quoted+1, AToB)
	req.ErrorIs(err, ErrSlippageExceeded)
	req.Equal(pool, next)
}

func TestFailuresLeavePoolUnchanged(t *testing.T) {
	tests := []struct {
		name string
		pool Pool
		call func(Pool) (Pool, error)
		err  error
	}{
		{
			name: "initial claims overflow",
			pool: Pool{},
			call: func(p Pool) (Pool, error) {
				next, _, err := p.AddLiquidity(math.MaxUint64, 1)
				return next, err
			},
			err: ErrArithmeticOverflow,
		},
		{
			name: "reserve overflow on deposit",
			pool: Pool{ReserveA: math.MaxUint64, ReserveB: 1, TotalClaimSupply: 1},
			call: func(p Pool) (Pool, error) {
				next, _, err := p.AddLiquidity(1, 1)
				return next, err
			},
			err: ErrArithmeticOverflow,
		},
		{
			name: "minted claims exceed 64 bits",
			pool: Pool{ReserveA: 1, ReserveB: 1, TotalClaimSupply: math.MaxUint64},
			call: func(p Pool) (Pool, error) {
				next, _, err := p.AddLiquidity(2, 2)
				return next, err
			},
			err: ErrArithmeticOverflow,
		},
		{
			name: "deposit into inconsistent pool",
			pool: Pool{ReserveA: 0, ReserveB: 10, TotalClaimSupply: 10},
			call: func(p Pool) (Pool, error) {
				next, _, err := p.AddLiquidity(1, 1)
				return next, err
			},
			err: ErrDivisionByZero,
		},
		{
			name: "zero deposit",
			pool: Pool{ReserveA: 10, ReserveB: 10, TotalClaimSupply: 10},
			call: func(p Pool) (Pool, error) {
				next, _, err := p.AddLiquidity(0, 0)
				return next, err
			},
			err: ErrInvalidArgument,
		},
		{
			name: "swap zero amount",
			pool: Pool{ReserveA: 10, ReserveB: 10, TotalClaimSupply: 10},
			call: func(p Pool) (Pool, error) {
				next, _, err := p.Swap(0, 0, AToB)
				return next, err
			},
			err: ErrInvalidArgument,
		},
		{
			name: "swap unknown direction",
			pool: Pool{ReserveA: 10, ReserveB: 10, TotalClaimSupply: 10},
			call: func(p Pool) (Pool, error) {
				next, _, err := p.Swap(1, 0, Direction(7))
				return next, err
			},
			err: ErrInvalidArgument,
		},
		{
			name: "swap into empty input reserve",
			pool: Pool{ReserveA: 0, ReserveB: 10},
			call: func(p Pool) (Pool, error) {
				next, _, err := p.Swap(5, 0, AToB)
				return next, err
			},
			err: ErrDivisionByZero,
		},
		{
			name: "swap from empty output reserve below floor",
			pool: Pool{ReserveA: 10, ReserveB: 0},
			call: func(p Pool) (Pool, error) {
				next, _, err := p.Swap(5, 1, AToB)
				return next, err
			},
			err: ErrSlippageExceeded,
		},
		{
			name: "swap overflows input reserve",
			pool: Pool{ReserveA: 10, ReserveB: math.MaxUint64, TotalClaimSupply: 1},
			call: func(p Pool) (Pool, error) {
				next, _, err := p.Swap(math.MaxUint64, 0, BToA)
				return next, err
			},
			err: ErrArithmeticOverflow,
		},
		{
			name: "slippage",
			pool: Pool{ReserveA: 1600, ReserveB: 1407, TotalClaimSupply: 1000},
			call: func(p Pool) (Pool, error) {
				next, _, err := p.Swap(100, 94, AToB)
				return next, err
			},
			err: ErrSlippageExceeded,
		},
		{
			name: "remove without supply",
			pool: Pool{ReserveA: 1000, ReserveB: 1000},
			call: func(p Pool) (Pool, error) {
				next, _, _, err := p.RemoveLiquidity(1)
				return next, err
			},
			err: ErrDivisionByZero,
		},
		{
			name: "remove zero claims",
			pool: Pool{ReserveA: 1000, ReserveB: 1000, TotalClaimSupply: 10},
			call: func(p Pool) (Pool, error) {
				next, _, _, err := p.RemoveLiquidity(0)
				return next, err
			},
			err: ErrInvalidArgument,
		},
		{
			name: "remove more than supply",
			pool: Pool{ReserveA: 1000, ReserveB: 1000, TotalClaimSupply: 10},
			call: func(p Pool) (Pool, error) {
				next, _, _, err := p.RemoveLiquidity(11)
				return next, err
			},
			err: ErrInsufficientClaims,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			before := tt.pool
			next, err := tt.call(tt.pool)
			req.ErrorIs(err, tt.err)
			req.Equal(before, next)
			req.Equal(before, tt.pool)
		})
	}
}

func TestSwapProductNonDecreasing(t *testing.T) {
	req := require.New(t)
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 2000; i++ {
		pool := Pool{
			ReserveA:         1 + uint64(rng.Int63n(math.MaxInt64)),
			ReserveB:         1 + uint64(rng.Int63n(math.MaxInt64)),
			TotalClaimSupply: 1,
		}
		dir := Direction(rng.Intn(2))
		amountIn := 1 + uint64(rng.Int63n(1<<40))

		next, out, err := pool.Swap(amountIn, 0, dir)
		req.NoError(err)
		req.True(next.Product().Cmp(pool.Product()) >= 0, "product decreased: %+v -> %+v", pool, next)
		if dir == AToB {
			req.Less(out, pool.ReserveB)
		} else {
			req.Less(out, pool.ReserveA)
		}
	}
}

func TestClaimsReservesConsistency(t *testing.T) {
	req := require.New(t)
	rng := rand.New(rand.NewSource(7))

	consistent := func(p Pool) bool {
		if p.TotalClaimSupply == 0 {
			return p.ReserveA == 0 && p.ReserveB == 0
		}
		return p.ReserveA > 0 && p.ReserveB > 0
	}

	for round := 0; round < 50; round++ {
		pool := Initialize(0, 0)
		pool, _, err := pool.AddLiquidity(1+uint64(rng.Intn(1_000_000)), 1+uint64(rng.Intn(1_000_000)))
		req.NoError(err)
		req.True(consistent(pool))

		for step := 0; step < 40; step++ {
			switch rng.Intn(3) {
			case 0:
				pool, _, err = pool.Swap(1+uint64(rng.Intn(100_000)), 0, Direction(rng.Intn(2)))
			case 1:
				pool, _, err = pool.AddLiquidity(1+uint64(rng.Intn(100_000)), 1+uint64(rng.Intn(100_000)))
			case 2:
				if pool.TotalClaimSupply > 1 {
					pool, _, _, err = pool.RemoveLiquidity(1 + uint64(rng.Int63n(int64(pool.TotalClaimSupply-1))))
				}
			}
			req.NoError(err)
			req.True(consistent(pool), "inconsistent pool %+v", pool)
		}

		withdrawA, withdrawB, err := pool.QuoteRemove(pool.TotalClaimSupply)
		req.NoError(err)
		req.Equal(pool.ReserveA, withdrawA)
		req.Equal(pool.ReserveB, withdrawB)

		pool, _, _, err = pool.RemoveLiquidity(pool.TotalClaimSupply)
		req.NoError(err)
		req.True(pool.IsEmpty())
	}
}

func TestParseDirection(t *testing.T) {
	req := require.New(t)

	dir, err := ParseDirection("a_to_b")
	req.NoError(err)
	req.Equal(AToB, dir)

	dir, err = ParseDirection(" BA ")
	req.NoError(err)
	req.Equal(BToA, dir)
	req.Equal("b_to_a", dir.String())

	_, err = ParseDirection("sideways")
	req.ErrorIs(err, ErrInvalidArgument)
}
