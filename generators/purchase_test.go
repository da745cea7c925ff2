package generators

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stablesim/stablesim-go/tokens"
)

type walletsStub struct {
	balance float64
	err     error
}

func (w *walletsStub) RandomWallet(float64) (float64, error) {
	return w.balance, w.err
}

func newPurchaseFixture(t *testing.T, stablecoinPrice float64,
	wallets WalletsGenerator, mutate func(*SeigniorageModelConfig)) (*SeigniorageModelPurchaseGenerator, *tokens.Stablecoin) {
	t.Helper()

	stablecoin, err := tokens.NewStablecoin("USD-S", 100000, 50000, stablecoinPrice, 1.0)
	require.NoError(t, err)

	cfg := SeigniorageModelConfig{
		Token:      stablecoin,
		Stablecoin: stablecoin,
		Wallets:    wallets,
		Rand:       rand.New(rand.NewPCG(3, 3)),
	}
	if mutate != nil {
		mutate(&cfg)
	}
	gen, err := NewSeigniorageModelPurchaseGenerator(cfg)
	require.NoError(t, err)
	return gen, stablecoin
}

func TestNewSeigniorageModelPurchaseGenerator(t *testing.T) {
	stablecoin, err := tokens.NewStablecoin("USD-S", 100000, 50000, 1.0, 1.0)
	require.NoError(t, err)
	wallets := &walletsStub{balance: 100}
	rng := rand.New(rand.NewPCG(1, 1))

	t.Run("AppliesDefaults", func(t *testing.T) {
		gen, err := NewSeigniorageModelPurchaseGenerator(SeigniorageModelConfig{
			Token: stablecoin, Stablecoin: stablecoin, Wallets: wallets, Rand: rng,
		})
		require.NoError(t, err)
		assert.Equal(t, 1.0, gen.sigma)
		assert.Equal(t, 1000.0, gen.volatility)
		assert.Equal(t, 0.05, gen.threshold)
		assert.Equal(t, 2.0, gen.variation(0.5))
	})

	t.Run("RejectsMissingDependencies", func(t *testing.T) {
		_, err := NewSeigniorageModelPurchaseGenerator(SeigniorageModelConfig{})
		assert.Error(t, err)
		_, err = NewSeigniorageModelPurchaseGenerator(SeigniorageModelConfig{
			Token: stablecoin, Stablecoin: stablecoin, Wallets: wallets,
		})
		assert.Error(t, err, "a random source is required")
	})

	t.Run("RejectsNegativeParameters", func(t *testing.T) {
		_, err := NewSeigniorageModelPurchaseGenerator(SeigniorageModelConfig{
			Token: stablecoin, Stablecoin: stablecoin, Wallets: wallets, Rand: rng, Sigma: -1,
		})
		assert.Error(t, err)
		_, err = NewSeigniorageModelPurchaseGenerator(SeigniorageModelConfig{
			Token: stablecoin, Stablecoin: stablecoin, Wallets: wallets, Rand: rng, Threshold: -0.1,
		})
		assert.Error(t, err)
	})
}

func TestRandomPurchaseMean(t *testing.T) {
	t.Run("ZeroWhileThePegHolds", func(t *testing.T) {
		gen, _ := newPurchaseFixture(t, 1.0, &walletsStub{balance: 1e9}, nil)
		_, err := gen.RandomPurchase()
		require.NoError(t, err)
		assert.Zero(t, gen.mean)
	})

	t.Run("ShiftsOutsideThePanicBand", func(t *testing.T) {
		gen, _ := newPurchaseFixture(t, 0.9, &walletsStub{balance: 1e9}, nil)
		_, err := gen.RandomPurchase()
		require.NoError(t, err)
		assert.InDelta(t, 1/0.9, gen.mean, 1e-12)
	})

	t.Run("RecoversWhenThePriceReturns", func(t *testing.T) {
		gen, stablecoin := newPurchaseFixture(t, 0.9, &walletsStub{balance: 1e9}, nil)
		_, err := gen.RandomPurchase()
		require.NoError(t, err)
		require.NotZero(t, gen.mean)

		require.NoError(t, stablecoin.SetPrice(1.0))
		_, err = gen.RandomPurchase()
		require.NoError(t, err)
		assert.Zero(t, gen.mean)
	})
}

func TestRandomPurchaseClamping(t *testing.T) {
	t.Run("ClampsBuyToWalletBalance", func(t *testing.T) {
		// A strongly positive panic mean makes the raw trade far exceed the
		// wallet, so the wallet balance wins.
		gen, _ := newPurchaseFixture(t, 0.9, &walletsStub{balance: 1},
			func(cfg *SeigniorageModelConfig) {
				cfg.DeltaVariation = func(float64) float64 { return 1000 }
			})
		amount, err := gen.RandomPurchase()
		require.NoError(t, err)
		assert.Equal(t, 1.0, amount)
	})

	t.Run("SellsPassThroughUnclamped", func(t *testing.T) {
		gen, _ := newPurchaseFixture(t, 0.9, &walletsStub{balance: 1},
			func(cfg *SeigniorageModelConfig) {
				cfg.DeltaVariation = func(float64) float64 { return -1000 }
			})
		amount, err := gen.RandomPurchase()
		require.NoError(t, err)
		assert.Negative(t, amount)
	})

	t.Run("PropagatesWalletErrors", func(t *testing.T) {
		walletErr := errors.New("wallets exhausted")
		gen, _ := newPurchaseFixture(t, 1.0, &walletsStub{err: walletErr}, nil)
		_, err := gen.RandomPurchase()
		assert.ErrorIs(t, err, walletErr)
	})
}
