package amm

import "errors"

var (
	ErrArithmeticOverflow  = errors.New("arithmetic overflow")
	ErrInsufficientReserve = errors.New("insufficient reserve")
	ErrDivisionByZero      = errors.New("division by zero")
	ErrSlippageExceeded    = errors.New("slippage exceeded")
	ErrInsufficientClaims  = errors.New("insufficient claims")
	ErrInvalidArgument     = errors.New("invalid argument")
)
