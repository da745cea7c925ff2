package amm

import (
	"fmt"
)

// ConstantProductFormula prices swaps so that the product of the two reserves
// stays constant: k = x * y, net of any fee applied upstream.
type ConstantProductFormula struct{}

// Apply returns outputReserve * x / (inputReserve + x), the unique output amount
// preserving x * y = k for a deposit of x.
func (ConstantProductFormula) Apply(inputQuantity, inputReserve, outputReserve float64) (float64, error) {
	if inputQuantity <= 0 {
		return 0, fmt.Errorf("%w: input quantity %g", ErrNonPositiveQuantity, inputQuantity)
	}
	if inputReserve <= 0 {
		return 0, fmt.Errorf("%w: input reserve %g", ErrNonPositiveReserve, inputReserve)
	}
	if outputReserve <= 0 {
		return 0, fmt.Errorf("%w: output reserve %g", ErrNonPositiveReserve, outputReserve)
	}
	return outputReserve * inputQuantity / (inputReserve + inputQuantity), nil
}

// InverseApply returns inputReserve * q / (outputReserve - q), the algebraic
// inverse of Apply. The requested output must be strictly less than the output
// reserve; a pool cannot pay out more than it holds.
func (ConstantProductFormula) InverseApply(outputQuantity, inputReserve, outputReserve float64) (float64, error) {
	if outputQuantity <= 0 {
		return 0, fmt.Errorf("%w: output quantity %g", ErrNonPositiveQuantity, outputQuantity)
	}
	if inputReserve <= 0 {
		return 0, fmt.Errorf("%w: input reserve %g", ErrNonPositiveReserve, inputReserve)
	}
	if outputReserve <= 0 {
		return 0, fmt.Errorf("%w: output reserve %g", ErrNonPositiveReserve, outputReserve)
	}
	if outputQuantity >= outputReserve {
		return 0, fmt.Errorf("%w: requested %g of reserve %g", ErrInsufficientLiquidity, outputQuantity, outputReserve)
	}
	return inputReserve * outputQuantity / (outputReserve - outputQuantity), nil
}

// ComputeReserve derives the output-side reserve for a target input-side reserve.
func (f ConstantProductFormula) ComputeReserve(inputReserve, outputReserve, newInputReserve float64) (float64, error) {
	return ComputeReserve(f, inputReserve, outputReserve, newInputReserve)
}
