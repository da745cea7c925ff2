// Package amm implements the swap math and liquidity-pool mechanics of a
// simulated automated-market-maker economy: a pluggable swap formula, a
// constant-product pool, and a virtual pool that defends a stablecoin peg by
// absorbing and slowly unwinding imbalance.
package amm

import (
	"errors"
	"fmt"
)

var (
	// ErrNonPositiveQuantity is returned when a swap quantity is zero or negative
	// where the contract requires a positive amount.
	ErrNonPositiveQuantity = errors.New("quantity must be positive")
	// ErrNonPositiveReserve is returned when a pool reserve is zero or negative.
	ErrNonPositiveReserve = errors.New("reserve must be positive")
	// ErrInsufficientLiquidity is returned when an output is requested that is
	// greater than or equal to the available reserve.
	ErrInsufficientLiquidity = errors.New("insufficient liquidity for swap")
	// ErrInvalidFee is returned when a pool fee falls outside [0, 1).
	ErrInvalidFee = errors.New("fee must be in [0, 1)")
	// ErrInvalidToken is returned when a swap names a token the pool does not hold.
	ErrInvalidToken = errors.New("token does not belong to this pool")
	// ErrReserveInvariant is returned when a swap would leave a pool reserve
	// negative. This is an invariant violation, fatal for the current step.
	ErrReserveInvariant = errors.New("swap would leave a negative reserve")
)

// Formula computes swap values from pool reserves. Implementations must keep
// Apply and InverseApply true inverses under the same pool invariant:
// InverseApply(Apply(x, in, out), in, out) == x up to float tolerance.
type Formula interface {
	// Apply returns the output amount obtained by depositing inputQuantity
	// against the given reserves.
	Apply(inputQuantity, inputReserve, outputReserve float64) (float64, error)

	// InverseApply returns the input amount required to withdraw outputQuantity
	// against the given reserves.
	InverseApply(outputQuantity, inputReserve, outputReserve float64) (float64, error)

	// ComputeReserve returns the output-side reserve consistent with the pool
	// invariant after the input-side reserve moves to newInputReserve. Shrinking
	// the input side is treated as an inverse swap (the output reserve grows);
	// growing it as a forward swap (the output reserve shrinks).
	ComputeReserve(inputReserve, outputReserve, newInputReserve float64) (float64, error)
}

// ComputeReserve derives the new output-side reserve from a target input-side
// reserve using only the formula's Apply and InverseApply. It is the shared
// implementation behind Formula.ComputeReserve.
func ComputeReserve(f Formula, inputReserve, outputReserve, newInputReserve float64) (float64, error) {
	if inputReserve <= 0 || outputReserve <= 0 {
		return 0, fmt.Errorf("%w: reserves (%g, %g)", ErrNonPositiveReserve, inputReserve, outputReserve)
	}
	if newInputReserve == inputReserve {
		return outputReserve, nil
	}
	if newInputReserve < inputReserve {
		obtained := inputReserve - newInputReserve
		refund, err := f.InverseApply(obtained, outputReserve, inputReserve)
		if err != nil {
			return 0, err
		}
		return outputReserve + refund, nil
	}
	deposited := newInputReserve - inputReserve
	out, err := f.Apply(deposited, inputReserve, outputReserve)
	if err != nil {
		return 0, err
	}
	return outputReserve - out, nil
}
