// Package marketsim orchestrates a three-pools simulation run: per step it asks
// the purchase generators for trades, executes them against the real pools,
// refreshes derived prices, lets the arbitrage optimizer close any price gap,
// and relaxes the virtual pool's delta.
package marketsim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/stablesim/stablesim-go/amm"
	"github.com/stablesim/stablesim-go/arbitrage"
	"github.com/stablesim/stablesim-go/generators"
	"github.com/stablesim/stablesim-go/telemetry"
	"github.com/stablesim/stablesim-go/tokens"
)

// ErrStablecoinCollapse is returned when the stablecoin system has collapsed:
// the market price fell so far below the peg that the collateral mechanism can
// no longer credibly restore it. The run is over.
var ErrStablecoinCollapse = errors.New("the algorithmic stablecoin system has collapsed")

// negligibleTrade filters out float-noise trade proposals.
const negligibleTrade = 1e-12

// Logger defines a standard interface for structured, leveled logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Publisher receives the per-step telemetry snapshot.
type Publisher interface {
	Broadcast(state *telemetry.State) error
}

// Config wires a ThreePoolsSimulator together.
type Config struct {
	Stablecoin *tokens.Stablecoin
	Collateral *tokens.Token

	// StablecoinPool trades the stablecoin against the reference token,
	// CollateralPool the collateral against the same reference.
	StablecoinPool *amm.Pool
	CollateralPool *amm.Pool
	VirtualPool    *amm.VirtualPool

	Optimizer *arbitrage.ThreePoolsOptimizer

	// StablecoinPurchases and CollateralPurchases propose one trade per step
	// for their respective pools.
	StablecoinPurchases generators.PurchaseGenerator
	CollateralPurchases generators.PurchaseGenerator

	// CollapseFraction: the run collapses when the stablecoin price drops below
	// this fraction of the peg. Defaults to 0.5.
	CollapseFraction float64

	Logger   Logger
	Registry prometheus.Registerer

	// Publisher is optional; when set, every step's snapshot is broadcast.
	Publisher Publisher
}

func (c *Config) validate() error {
	if c.Stablecoin == nil || c.Collateral == nil {
		return errors.New("config: Stablecoin and Collateral are required")
	}
	if c.StablecoinPool == nil || c.CollateralPool == nil || c.VirtualPool == nil {
		return errors.New("config: all three pools are required")
	}
	if c.Optimizer == nil {
		return errors.New("config: Optimizer is required")
	}
	if c.StablecoinPurchases == nil || c.CollateralPurchases == nil {
		return errors.New("config: both purchase generators are required")
	}
	if c.CollapseFraction < 0 || c.CollapseFraction >= 1 {
		return errors.New("config: CollapseFraction must be in [0, 1)")
	}
	if c.Logger == nil {
		return errors.New("config: Logger is required")
	}
	if c.Registry == nil {
		return errors.New("config: Registry is required")
	}
	return nil
}

// ThreePoolsSimulator drives the simulated economy one discrete step at a time.
// It is single-threaded: a step completes fully before the next begins.
type ThreePoolsSimulator struct {
	cfg     Config
	metrics *Metrics
	step    uint64
}

// NewThreePoolsSimulator constructs the simulator and registers its metrics.
func NewThreePoolsSimulator(cfg Config) (*ThreePoolsSimulator, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.CollapseFraction == 0 {
		cfg.CollapseFraction = 0.5
	}
	return &ThreePoolsSimulator{
		cfg:     cfg,
		metrics: NewMetrics(cfg.Registry),
	}, nil
}

// Step runs one simulation tick and returns its telemetry snapshot. The
// returned error is ErrStablecoinCollapse when the run cannot continue;
// transient per-step problems (an unaffordable trade, a non-converging
// optimizer) are logged, counted and skipped.
func (s *ThreePoolsSimulator) Step(ctx context.Context) (*telemetry.State, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	timer := prometheus.NewTimer(s.metrics.stepDuration)
	defer timer.ObserveDuration()

	s.randomPurchase("stablecoin", s.cfg.StablecoinPool, s.cfg.StablecoinPurchases)
	s.randomPurchase("collateral", s.cfg.CollateralPool, s.cfg.CollateralPurchases)

	if err := s.refreshPrices(); err != nil {
		return nil, err
	}
	if s.cfg.Stablecoin.Price() < s.cfg.CollapseFraction*s.cfg.Stablecoin.Peg() {
		return nil, fmt.Errorf("%w: price %g against peg %g",
			ErrStablecoinCollapse, s.cfg.Stablecoin.Price(), s.cfg.Stablecoin.Peg())
	}

	executed := s.leverageArbitrage()

	if err := s.cfg.VirtualPool.PerformPoolReplenishing(); err != nil {
		return nil, err
	}
	if err := s.refreshPrices(); err != nil {
		return nil, err
	}

	s.step++
	s.metrics.stepsTotal.Inc()
	state := s.snapshot(executed)
	if s.cfg.Publisher != nil {
		if err := s.cfg.Publisher.Broadcast(state); err != nil {
			s.cfg.Logger.Warn("telemetry broadcast failed", "step", state.Step, "error", err)
		}
	}
	return state, nil
}

// Run executes steps until the count is reached, the context is canceled, or
// the system collapses.
func (s *ThreePoolsSimulator) Run(ctx context.Context, steps int) error {
	for i := 0; i < steps; i++ {
		if _, err := s.Step(ctx); err != nil {
			return err
		}
	}
	return nil
}

// randomPurchase executes one generated trade against a pool. A trade the
// market cannot absorb is a skipped step for that pool, not a fatal error.
func (s *ThreePoolsSimulator) randomPurchase(poolName string, pool *amm.Pool, gen generators.PurchaseGenerator) {
	amount, err := gen.RandomPurchase()
	if err != nil {
		s.cfg.Logger.Warn("purchase generation failed", "pool", poolName, "error", err)
		return
	}
	if math.Abs(amount) < negligibleTrade {
		return
	}
	if _, _, err := pool.Swap(pool.TokenA(), amount); err != nil {
		s.cfg.Logger.Warn("generated trade rejected", "pool", poolName, "amount", amount, "error", err)
		return
	}
	s.metrics.swapsTotal.WithLabelValues(poolName).Inc()
}

// refreshPrices rederives both token prices from their pool reserves (the
// reference token is the unit of account) and pushes them into the virtual
// pool's derived-reserve view.
func (s *ThreePoolsSimulator) refreshPrices() error {
	stablecoinPrice := s.cfg.StablecoinPool.QuantityTokenB() / s.cfg.StablecoinPool.QuantityTokenA()
	collateralPrice := s.cfg.CollateralPool.QuantityTokenB() / s.cfg.CollateralPool.QuantityTokenA()

	if err := s.cfg.Stablecoin.SetPrice(stablecoinPrice); err != nil {
		return err
	}
	if err := s.cfg.Collateral.SetPrice(collateralPrice); err != nil {
		return err
	}
	if err := s.cfg.VirtualPool.UpdateCollateralPrice(collateralPrice); err != nil {
		return err
	}
	if err := s.cfg.VirtualPool.UpdateStablecoinPrice(stablecoinPrice); err != nil {
		return err
	}
	s.metrics.stablecoinPrice.Set(stablecoinPrice)
	s.metrics.collateralPrice.Set(collateralPrice)
	return nil
}

// leverageArbitrage lets the optimizer act and returns the kind it executed.
// A non-converging sizing run skips arbitrage for this step only.
func (s *ThreePoolsSimulator) leverageArbitrage() arbitrage.Kind {
	kind, err := s.cfg.Optimizer.LeverageArbitrageOpportunity()
	if err != nil {
		if errors.Is(err, arbitrage.ErrOptimizationFailed) {
			s.metrics.optimizationFailures.Inc()
			s.cfg.Logger.Warn("skipping arbitrage for this step", "kind", kind.String(), "error", err)
			return arbitrage.KindNone
		}
		s.cfg.Logger.Warn("arbitrage execution failed", "kind", kind.String(), "error", err)
		return arbitrage.KindNone
	}
	if kind == arbitrage.KindNone {
		return arbitrage.KindNone
	}
	s.metrics.arbitragesTotal.WithLabelValues(kind.String()).Inc()
	return kind
}

// snapshot captures the end-of-step state for telemetry consumers.
func (s *ThreePoolsSimulator) snapshot(executed arbitrage.Kind) *telemetry.State {
	s.metrics.virtualPoolDelta.Set(s.cfg.VirtualPool.Delta())
	return &telemetry.State{
		Step:      s.step,
		Timestamp: time.Now().UnixNano(),
		Stablecoin: telemetry.TokenState{
			Price:      s.cfg.Stablecoin.Price(),
			Supply:     s.cfg.Stablecoin.Supply(),
			FreeSupply: s.cfg.Stablecoin.FreeSupply(),
		},
		Collateral: telemetry.TokenState{
			Price:      s.cfg.Collateral.Price(),
			Supply:     s.cfg.Collateral.Supply(),
			FreeSupply: s.cfg.Collateral.FreeSupply(),
		},
		StablecoinPool: telemetry.PoolState{
			QuantityTokenA: s.cfg.StablecoinPool.QuantityTokenA(),
			QuantityTokenB: s.cfg.StablecoinPool.QuantityTokenB(),
		},
		CollateralPool: telemetry.PoolState{
			QuantityTokenA: s.cfg.CollateralPool.QuantityTokenA(),
			QuantityTokenB: s.cfg.CollateralPool.QuantityTokenB(),
		},
		VirtualPool: telemetry.PoolState{
			QuantityTokenA: s.cfg.VirtualPool.QuantityTokenA(),
			QuantityTokenB: s.cfg.VirtualPool.QuantityTokenB(),
		},
		Delta:     s.cfg.VirtualPool.Delta(),
		Arbitrage: executed.String(),
	}
}
