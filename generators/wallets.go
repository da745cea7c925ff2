// Package generators produces the stochastic inputs of a simulation run: random
// wallet balances and random purchase or sale events, shaped by the state of the
// stablecoin being simulated. All randomness flows through an injected source so
// runs are reproducible under a fixed seed.
package generators

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
)

var (
	// ErrInvalidProbability is returned when a probability is outside (0, 1).
	ErrInvalidProbability = errors.New("probability must be strictly between 0 and 1")
	// ErrNegativeSupply is returned when a free-supply ceiling is negative.
	ErrNegativeSupply = errors.New("free token supply must not be negative")
)

// WalletsGenerator produces a bounded random wallet balance given a free-supply
// ceiling.
type WalletsGenerator interface {
	RandomWallet(totalFreeSupply float64) (float64, error)
}

// ExponentialWalletsGenerator draws wallet balances from an exponential
// distribution whose rate is fitted so that a balance equal to the whole free
// supply has the configured tail probability. Draws above the ceiling are
// rejected and resampled.
type ExponentialWalletsGenerator struct {
	tailProbability float64
	rng             *rand.Rand
}

// NewExponentialWalletsGenerator creates the generator. tailProbability is the
// probability mass assigned to balances at or beyond the whole free supply and
// must lie strictly in (0, 1).
func NewExponentialWalletsGenerator(tailProbability float64, rng *rand.Rand) (*ExponentialWalletsGenerator, error) {
	if tailProbability <= 0 || tailProbability >= 1 {
		return nil, fmt.Errorf("%w: got %g", ErrInvalidProbability, tailProbability)
	}
	if rng == nil {
		return nil, errors.New("wallets generator requires a random source")
	}
	return &ExponentialWalletsGenerator{tailProbability: tailProbability, rng: rng}, nil
}

// RandomWallet draws a balance from Exp(rate) with rate = -ln(p)/totalFreeSupply,
// rejection-sampled to stay within the free supply. A zero free supply yields a
// zero balance.
func (g *ExponentialWalletsGenerator) RandomWallet(totalFreeSupply float64) (float64, error) {
	if totalFreeSupply < 0 {
		return 0, fmt.Errorf("%w: got %g", ErrNegativeSupply, totalFreeSupply)
	}
	if totalFreeSupply == 0 {
		return 0, nil
	}
	if math.IsInf(totalFreeSupply, 1) {
		return 0, fmt.Errorf("%w: free supply must be finite", ErrNegativeSupply)
	}

	rate := -math.Log(g.tailProbability) / totalFreeSupply
	for {
		balance := g.rng.ExpFloat64() / rate
		if balance <= totalFreeSupply {
			return balance, nil
		}
	}
}
