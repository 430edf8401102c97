package amm

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"
)

// Direction selects which reserve a swap pays into.
type Direction uint8

const (
	AToB Direction = iota
	BToA
)

func (d Direction) String() string {
	switch d {
	case AToB:
		return "a_to_b"
	case BToA:
		return "b_to_a"
	default:
		return fmt.Sprintf("direction(%d)", uint8(d))
	}
}

// ParseDirection accepts "a_to_b"/"b_to_a" and the short forms "ab"/"ba".
func ParseDirection(input string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "a_to_b", "a-to-b", "ab", "a":
		return AToB, nil
	case "b_to_a", "b-to-a", "ba", "b":
		return BToA, nil
	default:
		return 0, fmt.Errorf("%w: unknown direction %q", ErrInvalidArgument, input)
	}
}

// Pool is the complete engine state of a constant-product pool.
//
// All operations use value receivers and return the next state, so a failed
// call leaves the receiver exactly as it was.
type Pool struct {
	ReserveA         uint64 `json:"reserve_a"`
	ReserveB         uint64 `json:"reserve_b"`
	TotalClaimSupply uint64 `json:"total_claim_supply"`
}

// Initialize seeds a pool. No claims are minted; the first AddLiquidity
// establishes the claim supply.
func Initialize(seedA, seedB uint64) Pool {
	return Pool{ReserveA: seedA, ReserveB: seedB}
}

// IsEmpty reports whether the pool holds nothing and has no claims outstanding.
func (p Pool) IsEmpty() bool {
	return p.ReserveA == 0 && p.ReserveB == 0 && p.TotalClaimSupply == 0
}

// Product returns reserve_a * reserve_b without truncation.
func (p Pool) Product() *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(p.ReserveA), uint256.NewInt(p.ReserveB))
}

// AddLiquidity deposits a pair of amounts and returns the claims minted for it.
//
// The first deposit into a pool without claims mints amountA + amountB.
// Later deposits mint the smaller of the two proportional bounds, rounded down.
func (p Pool) AddLiquidity(amountA, amountB uint64) (Pool, uint64, error) {
	if amountA == 0 && amountB == 0 {
		return p, 0, fmt.Errorf("%w: deposit amounts are both zero", ErrInvalidArgument)
	}

	var minted uint64
	if p.TotalClaimSupply == 0 {
		sum, err := checkedAdd(amountA, amountB)
		if err != nil {
			return p, 0, fmt.Errorf("initial claims: %w", err)
		}
		minted = sum
	} else {
		if p.ReserveA == 0 || p.ReserveB == 0 {
			return p, 0, fmt.Errorf("%w: empty reserve with %d claims outstanding", ErrDivisionByZero, p.TotalClaimSupply)
		}
		fromA, err := mulDiv(amountA, p.TotalClaimSupply, p.ReserveA)
		if err != nil {
			return p, 0, fmt.Errorf("claims from a: %w", err)
		}
		fromB, err := mulDiv(amountB, p.TotalClaimSupply, p.ReserveB)
		if err != nil {
			return p, 0, fmt.Errorf("claims from b: %w", err)
		}
		minted = min(fromA, fromB)
	}

	next := p
	var err error
	if next.ReserveA, err = checkedAdd(p.ReserveA, amountA); err != nil {
		return p, 0, fmt.Errorf("reserve a: %w", err)
	}
	if next.ReserveB, err = checkedAdd(p.ReserveB, amountB); err != nil {
		return p, 0, fmt.Errorf("reserve b: %w", err)
	}
	if next.TotalClaimSupply, err = checkedAdd(p.TotalClaimSupply, minted); err != nil {
		return p, 0, fmt.Errorf("claim supply: %w", err)
	}
	return next, minted, nil
}

// QuoteSwap returns the output of a swap without applying it.
func (p Pool) QuoteSwap(amountIn uint64, dir Direction) (uint64, error) {
	_, amountOut, err := p.swap(amountIn, dir)
	return amountOut, err
}

// Swap trades amountIn along the curve and returns the amount owed to the
// trader. The swap fails with ErrSlippageExceeded when the output is below
// minAmountOut; an output equal to it succeeds.
func (p Pool) Swap(amountIn, minAmountOut uint64, dir Direction) (Pool, uint64, error) {
	next, amountOut, err := p.swap(amountIn, dir)
	if err != nil {
		return p, 0, err
	}
	if amountOut < minAmountOut {
		return p, 0, fmt.Errorf("%w: out %d < min %d", ErrSlippageExceeded, amountOut, minAmountOut)
	}
	return next, amountOut, nil
}

func (p Pool) swap(amountIn uint64, dir Direction) (Pool, uint64, error) {
	if amountIn == 0 {
		return p, 0, fmt.Errorf("%w: amount in is zero", ErrInvalidArgument)
	}

	var reserveIn, reserveOut uint64
	switch dir {
	case AToB:
		reserveIn, reserveOut = p.ReserveA, p.ReserveB
	case BToA:
		reserveIn, reserveOut = p.ReserveB, p.ReserveA
	default:
		return p, 0, fmt.Errorf("%w: %s", ErrInvalidArgument, dir)
	}

	// An empty output reserve prices the trade at zero; the slippage floor
	// is what rejects it.
	if reserveIn == 0 {
		return p, 0, fmt.Errorf("%w: input reserve is zero", ErrDivisionByZero)
	}

	newIn, err := checkedAdd(reserveIn, amountIn)
	if err != nil {
		return p, 0, fmt.Errorf("input reserve: %w", err)
	}
	amountOut, err := mulDiv(reserveOut, amountIn, newIn)
	if err != nil {
		return p, 0, fmt.Errorf("amount out: %w", err)
	}
	newOut, err := checkedSub(reserveOut, amountOut)
	if err != nil {
		return p, 0, fmt.Errorf("output reserve: %w", err)
	}

	next := p
	if dir == AToB {
		next.ReserveA, next.ReserveB = newIn, newOut
	} else {
		next.ReserveB, next.ReserveA = newIn, newOut
	}
	return next, amountOut, nil
}

// QuoteRemove returns what redeeming claims would pay out without applying it.
func (p Pool) QuoteRemove(claims uint64) (uint64, uint64, error) {
	_, withdrawA, withdrawB, err := p.RemoveLiquidity(claims)
	return withdrawA, withdrawB, err
}

// RemoveLiquidity burns claims and returns the proportional share of each
// reserve, rounded down.
func (p Pool) RemoveLiquidity(claims uint64) (Pool, uint64, uint64, error) {
	if p.TotalClaimSupply == 0 {
		return p, 0, 0, fmt.Errorf("%w: no claims outstanding", ErrDivisionByZero)
	}
	if claims == 0 {
		return p, 0, 0, fmt.Errorf("%w: claims is zero", ErrInvalidArgument)
	}
	if claims > p.TotalClaimSupply {
		return p, 0, 0, fmt.Errorf("%w: %d > supply %d", ErrInsufficientClaims, claims, p.TotalClaimSupply)
	}

	withdrawA, err := mulDiv(claims, p.ReserveA, p.TotalClaimSupply)
	if err != nil {
		return p, 0, 0, fmt.Errorf("withdraw a: %w", err)
	}
	withdrawB, err := mulDiv(claims, p.ReserveB, p.TotalClaimSupply)
	if err != nil {
		return p, 0, 0, fmt.Errorf("withdraw b: %w", err)
	}

	next := p
	if next.ReserveA, err = checkedSub(p.ReserveA, withdrawA); err != nil {
		return p, 0, 0, fmt.Errorf("reserve a: %w", err)
	}
	if next.ReserveB, err = checkedSub(p.ReserveB, withdrawB); err != nil {
		return p, 0, 0, fmt.Errorf("reserve b: %w", err)
	}
	next.TotalClaimSupply = p.TotalClaimSupply - claims
	return next, withdrawA, withdrawB, nil
}
