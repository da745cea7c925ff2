// Package arbitrage detects and exploits price divergence between a stablecoin
// pool, a collateral pool and the virtual pool that links them, sizing the
// profit-maximizing round trip with bounded scalar optimization.
package arbitrage

import (
	"errors"
	"fmt"
	"math"

	"github.com/stablesim/stablesim-go/amm"
)

var (
	// ErrOptimizationFailed is returned when the bounded profit maximization
	// does not converge. Callers typically skip arbitrage for the step rather
	// than abort the run.
	ErrOptimizationFailed = errors.New("arbitrage profit optimization did not converge")
	// ErrUnknownKind is returned when a profit query names no arbitrage kind.
	ErrUnknownKind = errors.New("unknown arbitrage kind")
)

// Kind identifies the direction of a three-hop arbitrage loop.
type Kind uint8

const (
	// KindNone means no profitable loop exists.
	KindNone Kind = iota
	// Type1 exploits a stablecoin trading above its peg: buy collateral in the
	// collateral pool, convert it to stablecoin in the virtual pool, sell the
	// stablecoin in the stablecoin pool.
	Type1
	// Type2 is the mirror path for a stablecoin trading below its peg.
	Type2
)

func (k Kind) String() string {
	switch k {
	case Type1:
		return "Type 1"
	case Type2:
		return "Type 2"
	default:
		return ""
	}
}

// Logger defines a standard interface for structured, leveled logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Optimizer detects price divergence across a pool set and executes the trades
// that close it.
type Optimizer interface {
	LeverageArbitrageOpportunity() (Kind, error)
}

// Config holds the dependencies of a ThreePoolsOptimizer.
type Config struct {
	// StablecoinPool trades the stablecoin against the reference token.
	StablecoinPool *amm.Pool
	// CollateralPool trades the collateral token against the reference token.
	CollateralPool *amm.Pool
	// VirtualPool trades the stablecoin against the collateral.
	VirtualPool *amm.VirtualPool

	// MaxArbitrageInput bounds the trade size in reference-token units.
	// Defaults to 1e6.
	MaxArbitrageInput float64
	// Threshold is a guard constant retained for a future tie-break policy.
	// Defaults to 0.001.
	Threshold float64
	// Peg is the stablecoin's target price, used for diagnostic consistency
	// checks between the detected kind and the price direction. Defaults to 1.
	Peg float64

	Logger Logger
}

func (c *Config) validate() error {
	if c.StablecoinPool == nil || c.CollateralPool == nil {
		return errors.New("config: both liquidity pools are required")
	}
	if c.VirtualPool == nil {
		return errors.New("config: VirtualPool is required")
	}
	if c.MaxArbitrageInput < 0 {
		return errors.New("config: MaxArbitrageInput must be positive")
	}
	if c.Logger == nil {
		return errors.New("config: Logger is required")
	}
	return nil
}

// ThreePoolsOptimizer is the Optimizer over two real pools and one virtual
// pool. Profit probes never mutate pool state; only LeverageArbitrageOpportunity
// executes real swaps.
type ThreePoolsOptimizer struct {
	stablecoinPool *amm.Pool
	collateralPool *amm.Pool
	virtualPool    *amm.VirtualPool

	maxArbitrageInput float64
	threshold         float64
	peg               float64

	logger Logger
}

// NewThreePoolsOptimizer constructs the optimizer, applying defaults for the
// trade-size bound, threshold and peg.
func NewThreePoolsOptimizer(cfg Config) (*ThreePoolsOptimizer, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.MaxArbitrageInput == 0 {
		cfg.MaxArbitrageInput = 1e6
	}
	if cfg.Threshold == 0 {
		cfg.Threshold = 0.001
	}
	if cfg.Peg == 0 {
		cfg.Peg = 1.0
	}
	return &ThreePoolsOptimizer{
		stablecoinPool:    cfg.StablecoinPool,
		collateralPool:    cfg.CollateralPool,
		virtualPool:       cfg.VirtualPool,
		maxArbitrageInput: cfg.MaxArbitrageInput,
		threshold:         cfg.Threshold,
		peg:               cfg.Peg,
		logger:            cfg.Logger,
	}, nil
}

// DetectArbitrage probes both loop directions with a unit amount of the
// reference token. Type 1 is checked first and wins ties; at most one kind is
// reported.
func (o *ThreePoolsOptimizer) DetectArbitrage() (Kind, bool, error) {
	type1Profit, err := o.ArbitrageProfit(Type1, 1)
	if err != nil {
		return KindNone, false, err
	}
	type2Profit, err := o.ArbitrageProfit(Type2, 1)
	if err != nil {
		return KindNone, false, err
	}

	stablecoinPrice := o.stablecoinPool.TokenA().Price()
	switch {
	case type1Profit > 0:
		if stablecoinPrice < o.peg {
			o.logger.Warn("detected above-peg arbitrage while stablecoin trades below peg",
				"kind", Type1.String(), "price", stablecoinPrice, "peg", o.peg)
		}
		return Type1, true, nil
	case type2Profit > 0:
		if stablecoinPrice > o.peg {
			o.logger.Warn("detected below-peg arbitrage while stablecoin trades above peg",
				"kind", Type2.String(), "price", stablecoinPrice, "peg", o.peg)
		}
		return Type2, true, nil
	default:
		return KindNone, false, nil
	}
}

// ArbitrageProfit composes the three-hop path for the given kind without
// mutating any pool and returns the round-trip profit in reference-token units.
// Non-positive inputs yield zero profit.
func (o *ThreePoolsOptimizer) ArbitrageProfit(kind Kind, input float64) (float64, error) {
	if input <= 0 {
		return 0, nil
	}

	var firstPool, secondPool *amm.Pool
	switch kind {
	case Type1:
		firstPool, secondPool = o.collateralPool, o.stablecoinPool
	case Type2:
		firstPool, secondPool = o.stablecoinPool, o.collateralPool
	default:
		return 0, fmt.Errorf("%w: %d", ErrUnknownKind, kind)
	}

	// Hop 1: reference token into the first pool's own token.
	bought, err := firstPool.ComputeSwapValue(input,
		firstPool.QuantityTokenB(), firstPool.QuantityTokenA())
	if err != nil {
		return 0, err
	}

	// Hop 2: through the virtual pool. Type 1 converts collateral to
	// stablecoin, Type 2 the reverse.
	var converted float64
	if kind == Type1 {
		converted, err = o.virtualPool.ComputeSwapValue(bought,
			o.virtualPool.QuantityTokenB(), o.virtualPool.QuantityTokenA())
	} else {
		converted, err = o.virtualPool.ComputeSwapValue(bought,
			o.virtualPool.QuantityTokenA(), o.virtualPool.QuantityTokenB())
	}
	if err != nil {
		return 0, err
	}

	// Hop 3: back into the reference token through the second pool.
	output, err := secondPool.ComputeSwapValue(converted,
		secondPool.QuantityTokenA(), secondPool.QuantityTokenB())
	if err != nil {
		return 0, err
	}

	return output - input, nil
}

// ComputeMaxArbitrageProfit returns the input size in [1, MaxArbitrageInput]
// that maximizes the round-trip profit for the given kind. AMM slippage makes
// the profit curve unimodal, so a bounded scalar search suffices.
func (o *ThreePoolsOptimizer) ComputeMaxArbitrageProfit(kind Kind) (float64, error) {
	var probeErr error
	negativeYield := func(x float64) float64 {
		profit, err := o.ArbitrageProfit(kind, x)
		if err != nil {
			if probeErr == nil {
				probeErr = err
			}
			return math.Inf(1)
		}
		return -profit
	}

	optimum, converged := minimizeBounded(negativeYield, 1, o.maxArbitrageInput, defaultXAtol, defaultMaxFun)
	if probeErr != nil {
		return 0, probeErr
	}
	if !converged {
		return 0, fmt.Errorf("%w: kind %s", ErrOptimizationFailed, kind)
	}

	if profit, err := o.ArbitrageProfit(kind, optimum); err == nil && profit < 0 {
		o.logger.Warn("optimal arbitrage size has negative profit",
			"kind", kind.String(), "input", optimum, "profit", profit)
	}
	return optimum, nil
}

// LeverageArbitrageOpportunity detects and executes an opportunity: it sizes
// the trade, clamps it to MaxArbitrageInput, and runs the three real swaps in
// the fixed order implied by the kind, mutating pool state. The returned kind
// reports which loop was executed, KindNone when no profitable loop exists; on
// error it names the loop that failed.
func (o *ThreePoolsOptimizer) LeverageArbitrageOpportunity() (Kind, error) {
	kind, available, err := o.DetectArbitrage()
	if err != nil {
		return KindNone, err
	}
	if !available {
		return KindNone, nil
	}

	tradeAmount, err := o.ComputeMaxArbitrageProfit(kind)
	if err != nil {
		return kind, err
	}
	tradeAmount = math.Min(tradeAmount, o.maxArbitrageInput)

	var firstPool, secondPool *amm.Pool
	if kind == Type1 {
		firstPool, secondPool = o.collateralPool, o.stablecoinPool
	} else {
		firstPool, secondPool = o.stablecoinPool, o.collateralPool
	}

	token, amount, err := firstPool.Swap(firstPool.TokenB(), tradeAmount)
	if err != nil {
		return kind, fmt.Errorf("arbitrage %s hop 1: %w", kind, err)
	}
	token, amount, err = o.virtualPool.Swap(token, amount)
	if err != nil {
		return kind, fmt.Errorf("arbitrage %s hop 2: %w", kind, err)
	}
	if _, _, err = secondPool.Swap(token, amount); err != nil {
		return kind, fmt.Errorf("arbitrage %s hop 3: %w", kind, err)
	}

	o.logger.Debug("leveraged arbitrage opportunity", "kind", kind.String(), "input", tradeAmount)
	return kind, nil
}
