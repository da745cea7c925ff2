package amm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstantProductApply(t *testing.T) {
	formula := ConstantProductFormula{}

	t.Run("KnownValues", func(t *testing.T) {
		// Depositing 100 into a 5000/5000 pool pays out 5000*100/5100.
		out, err := formula.Apply(100, 5000, 5000)
		require.NoError(t, err)
		assert.InDelta(t, 98.0392156862745, out, 1e-9)
	})

	t.Run("PreservesInvariant", func(t *testing.T) {
		inReserve, outReserve := 5000.0, 4000.0
		k := inReserve * outReserve
		for _, deposit := range []float64{0.5, 10, 100, 2500, 100000} {
			out, err := formula.Apply(deposit, inReserve, outReserve)
			require.NoError(t, err)
			assert.InEpsilon(t, k, (inReserve+deposit)*(outReserve-out), 1e-12,
				"deposit %g must keep x*y constant", deposit)
			assert.Less(t, out, outReserve, "output can never drain the reserve")
		}
	})

	t.Run("RejectsInvalidArguments", func(t *testing.T) {
		_, err := formula.Apply(0, 5000, 5000)
		assert.ErrorIs(t, err, ErrNonPositiveQuantity)
		_, err = formula.Apply(-10, 5000, 5000)
		assert.ErrorIs(t, err, ErrNonPositiveQuantity)
		_, err = formula.Apply(100, 0, 5000)
		assert.ErrorIs(t, err, ErrNonPositiveReserve)
		_, err = formula.Apply(100, 5000, -1)
		assert.ErrorIs(t, err, ErrNonPositiveReserve)
	})
}

func TestConstantProductInverseApply(t *testing.T) {
	formula := ConstantProductFormula{}

	t.Run("InvertsApply", func(t *testing.T) {
		inReserve, outReserve := 5000.0, 4000.0
		for _, deposit := range []float64{1, 50, 1234.5, 10000} {
			out, err := formula.Apply(deposit, inReserve, outReserve)
			require.NoError(t, err)
			back, err := formula.InverseApply(out, inReserve, outReserve)
			require.NoError(t, err)
			assert.InEpsilon(t, deposit, back, 1e-12)
		}
	})

	t.Run("RejectsOutputAtOrAboveReserve", func(t *testing.T) {
		_, err := formula.InverseApply(4000, 5000, 4000)
		assert.ErrorIs(t, err, ErrInsufficientLiquidity)
		_, err = formula.InverseApply(4001, 5000, 4000)
		assert.ErrorIs(t, err, ErrInsufficientLiquidity)
	})

	t.Run("RejectsInvalidArguments", func(t *testing.T) {
		_, err := formula.InverseApply(0, 5000, 4000)
		assert.ErrorIs(t, err, ErrNonPositiveQuantity)
		_, err = formula.InverseApply(100, 0, 4000)
		assert.ErrorIs(t, err, ErrNonPositiveReserve)
		_, err = formula.InverseApply(100, 5000, 0)
		assert.ErrorIs(t, err, ErrNonPositiveReserve)
	})
}

func TestConstantProductComputeReserve(t *testing.T) {
	formula := ConstantProductFormula{}

	t.Run("UnchangedInputReserve", func(t *testing.T) {
		out, err := formula.ComputeReserve(1000, 200, 1000)
		require.NoError(t, err)
		assert.Equal(t, 200.0, out)
	})

	t.Run("ShrinkingInputGrowsOutput", func(t *testing.T) {
		out, err := formula.ComputeReserve(1000, 200, 900)
		require.NoError(t, err)
		assert.Greater(t, out, 200.0)
		// The result must satisfy the same invariant a swap would have left:
		// withdrawing 100 of the input side costs InverseApply(100) of the other.
		refund, err := formula.InverseApply(100, 200, 1000)
		require.NoError(t, err)
		assert.InEpsilon(t, 200+refund, out, 1e-12)
	})

	t.Run("GrowingInputShrinksOutput", func(t *testing.T) {
		out, err := formula.ComputeReserve(1000, 200, 1100)
		require.NoError(t, err)
		assert.Less(t, out, 200.0)
		paid, err := formula.Apply(100, 1000, 200)
		require.NoError(t, err)
		assert.InEpsilon(t, 200-paid, out, 1e-12)
	})

	t.Run("RejectsNonPositiveReserves", func(t *testing.T) {
		_, err := formula.ComputeReserve(0, 200, 100)
		assert.ErrorIs(t, err, ErrNonPositiveReserve)
		_, err = formula.ComputeReserve(1000, 0, 100)
		assert.ErrorIs(t, err, ErrNonPositiveReserve)
	})
}
