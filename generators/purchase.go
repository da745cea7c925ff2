package generators

import (
	"errors"
	"math"
	"math/rand/v2"

	"github.com/stablesim/stablesim-go/amm"
	"github.com/stablesim/stablesim-go/tokens"
)

// PurchaseGenerator proposes a signed trade amount for its token each step:
// positive amounts sell the token into its pool, negative amounts buy it out.
type PurchaseGenerator interface {
	RandomPurchase() (float64, error)
}

// SeigniorageModelConfig parameterizes a SeigniorageModelPurchaseGenerator.
type SeigniorageModelConfig struct {
	// Token is the token whose trades are simulated.
	Token amm.Token
	// Stablecoin drives the panic behavior: when its price leaves the band
	// [peg - Threshold, +inf) the Gaussian mean is pulled by DeltaVariation.
	Stablecoin *tokens.Stablecoin
	// Wallets bounds each trade by a randomly drawn wallet balance.
	Wallets WalletsGenerator
	// Rand is the random source; required for reproducible runs.
	Rand *rand.Rand

	// Sigma is the Gaussian standard deviation. Defaults to 1.
	Sigma float64
	// Mean is the Gaussian mean under normal market conditions. Defaults to 0.
	Mean float64
	// Volatility scales the drawn reference-unit trade size. Defaults to 1000.
	Volatility float64
	// Threshold is the peg-deviation band that separates normal trading from
	// panic. Defaults to 0.05.
	Threshold float64
	// DeltaVariation maps the stablecoin price to the panic shift of the mean.
	// Defaults to 1/price.
	DeltaVariation func(price float64) float64
}

func (c *SeigniorageModelConfig) validate() error {
	if c.Token == nil {
		return errors.New("config: Token is required")
	}
	if c.Stablecoin == nil {
		return errors.New("config: Stablecoin is required")
	}
	if c.Wallets == nil {
		return errors.New("config: Wallets is required")
	}
	if c.Rand == nil {
		return errors.New("config: Rand is required")
	}
	if c.Sigma < 0 {
		return errors.New("config: Sigma must not be negative")
	}
	if c.Threshold < 0 {
		return errors.New("config: Threshold must not be negative")
	}
	return nil
}

// SeigniorageModelPurchaseGenerator draws trade sizes from a Gaussian in
// reference-token units, converts them at the token's price, and clamps them by
// a random wallet balance. While the stablecoin holds its peg the mean is zero;
// when the price falls out of the threshold band the mean shifts by
// DeltaVariation(price), mimicking market panic.
type SeigniorageModelPurchaseGenerator struct {
	token       amm.Token
	stablecoin  *tokens.Stablecoin
	wallets     WalletsGenerator
	rng         *rand.Rand
	sigma       float64
	initialMean float64
	mean        float64
	volatility  float64
	threshold   float64
	variation   func(price float64) float64
}

// NewSeigniorageModelPurchaseGenerator constructs the generator, applying the
// documented defaults.
func NewSeigniorageModelPurchaseGenerator(cfg SeigniorageModelConfig) (*SeigniorageModelPurchaseGenerator, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Sigma == 0 {
		cfg.Sigma = 1
	}
	if cfg.Volatility == 0 {
		cfg.Volatility = 1000
	}
	if cfg.Threshold == 0 {
		cfg.Threshold = 0.05
	}
	if cfg.DeltaVariation == nil {
		cfg.DeltaVariation = func(price float64) float64 { return 1 / price }
	}
	return &SeigniorageModelPurchaseGenerator{
		token:       cfg.Token,
		stablecoin:  cfg.Stablecoin,
		wallets:     cfg.Wallets,
		rng:         cfg.Rand,
		sigma:       cfg.Sigma,
		initialMean: cfg.Mean,
		mean:        cfg.Mean,
		volatility:  cfg.Volatility,
		threshold:   cfg.Threshold,
		variation:   cfg.DeltaVariation,
	}, nil
}

// RandomPurchase returns the signed token amount to trade this step, never
// exceeding a randomly drawn wallet balance.
func (g *SeigniorageModelPurchaseGenerator) RandomPurchase() (float64, error) {
	g.updateMean()

	referenceAmount := (g.rng.NormFloat64()*g.sigma + g.mean) * g.volatility
	tradeAmount := referenceAmount / g.token.Price()

	walletBalance, err := g.wallets.RandomWallet(g.stablecoin.FreeSupply())
	if err != nil {
		return 0, err
	}
	return math.Min(tradeAmount, walletBalance), nil
}

// updateMean pulls the Gaussian mean away from zero once the stablecoin price
// drops out of the panic band.
func (g *SeigniorageModelPurchaseGenerator) updateMean() {
	price := g.stablecoin.Price()
	if price > g.stablecoin.Peg()-g.threshold {
		g.mean = 0
		return
	}
	g.mean = g.initialMean + g.variation(price)
}
