package amm

import (
	"fmt"

	"github.com/holiman/uint256"
)

func checkedAdd(x, y uint64) (uint64, error) {
	sum := x + y
	if sum < x {
		return 0, fmt.Errorf("%w: %d + %d", ErrArithmeticOverflow, x, y)
	}
	return sum, nil
}

func checkedSub(x, y uint64) (uint64, error) {
	if y > x {
		return 0, fmt.Errorf("%w: %d - %d", ErrInsufficientReserve, x, y)
	}
	return x - y, nil
}

// mulDiv returns floor(x*y/d). The product is formed in 256 bits so it
// cannot wrap; only a quotient that does not fit in 64 bits is an overflow.
func mulDiv(x, y, d uint64) (uint64, error) {
	if d == 0 {
		return 0, ErrDivisionByZero
	}
	q := new(uint256.Int).Mul(uint256.NewInt(x), uint256.NewInt(y))
	q.Div(q, uint256.NewInt(d))
	if !q.IsUint64() {
		return 0, fmt.Errorf("%w: %d * %d / %d", ErrArithmeticOverflow, x, y, d)
	}
	return q.Uint64(), nil
}
