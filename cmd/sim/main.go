package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stablesim/stablesim-go/amm"
	"github.com/stablesim/stablesim-go/arbitrage"
	"github.com/stablesim/stablesim-go/cmd/sim/config"
	"github.com/stablesim/stablesim-go/generators"
	"github.com/stablesim/stablesim-go/marketsim"
	"github.com/stablesim/stablesim-go/telemetry"
	"github.com/stablesim/stablesim-go/tokens"
)

const shutdownTimeout = 5 * time.Second

func main() {
	// create the log handler
	rootLogHandler := slog.NewJSONHandler(os.Stdout, nil)
	close := func() {
		os.Exit(1)
	}

	rootLogger := slog.New(rootLogHandler)
	prometheusRegistry := prometheus.DefaultRegisterer
	cfg, err := loadConfig()
	if err != nil {
		rootLogger.Error("Failed to load configuration", "error", err)
		close()
	}

	// Create a context that cancels when the OS sends an interrupt (Ctrl+C) or termination signal.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sim, stream, err := buildSimulation(cfg, rootLogger, prometheusRegistry)
	if err != nil {
		rootLogger.Error("Failed to build simulation", "error", err)
		close()
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/stream", stream.Handler())
	server := &http.Server{Addr: cfg.ListenAddr, Handler: mux}

	go func() {
		rootLogger.Info("Telemetry server listening", "addr", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			rootLogger.Error("Telemetry server failed", "error", err)
		}
	}()

	err = sim.Run(ctx, cfg.Simulation.Steps)
	switch {
	case err == nil:
		rootLogger.Info("Simulation completed", "steps", cfg.Simulation.Steps)
	case errors.Is(err, marketsim.ErrStablecoinCollapse):
		rootLogger.Warn("Simulation ended early", "reason", err)
	case errors.Is(err, context.Canceled):
		rootLogger.Info("Simulation interrupted")
	default:
		rootLogger.Error("Simulation failed", "error", err)
	}

	stream.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		rootLogger.Error("Telemetry server shutdown failed", "error", err)
	}
}

// buildSimulation assembles the token economy, the three pools, the random trade
// generators and the arbitrage optimizer from the loaded configuration.
func buildSimulation(cfg *config.SimConfig, logger *slog.Logger,
	registry prometheus.Registerer) (*marketsim.ThreePoolsSimulator, *telemetry.StreamServer, error) {

	stablecoin, err := tokens.NewStablecoin(cfg.Stablecoin.Name,
		cfg.Stablecoin.Supply, cfg.Stablecoin.FreeSupply, cfg.Stablecoin.Price, cfg.Peg)
	if err != nil {
		return nil, nil, err
	}
	collateral, err := tokens.NewCollateral(cfg.Collateral.Name,
		cfg.Collateral.Supply, cfg.Collateral.FreeSupply, cfg.Collateral.Price)
	if err != nil {
		return nil, nil, err
	}
	reference := tokens.NewReference("USD")

	formula := amm.ConstantProductFormula{}
	stablecoinPool, err := amm.NewPool(stablecoin, reference,
		cfg.StablecoinPool.QuantityTokenA, cfg.StablecoinPool.QuantityTokenB,
		cfg.StablecoinPool.Fee, formula)
	if err != nil {
		return nil, nil, err
	}
	collateralPool, err := amm.NewPool(collateral, reference,
		cfg.CollateralPool.QuantityTokenA, cfg.CollateralPool.QuantityTokenB,
		cfg.CollateralPool.Fee, formula)
	if err != nil {
		return nil, nil, err
	}

	replenisher, err := newReplenisher(cfg.VirtualPool)
	if err != nil {
		return nil, nil, err
	}
	virtualPool, err := amm.NewVirtualPool(stablecoin, collateral,
		cfg.VirtualPool.BaseQuantity, cfg.VirtualPool.Fee, formula, replenisher)
	if err != nil {
		return nil, nil, err
	}

	optimizer, err := arbitrage.NewThreePoolsOptimizer(arbitrage.Config{
		StablecoinPool:    stablecoinPool,
		CollateralPool:    collateralPool,
		VirtualPool:       virtualPool,
		MaxArbitrageInput: cfg.Optimizer.MaxArbitrageInput,
		Threshold:         cfg.Optimizer.Threshold,
		Peg:               cfg.Peg,
		Logger:            logger.With("component", "arbitrage-optimizer"),
	})
	if err != nil {
		return nil, nil, err
	}

	rng := rand.New(rand.NewPCG(cfg.Simulation.Seed, cfg.Simulation.Seed))
	wallets, err := generators.NewExponentialWalletsGenerator(cfg.Market.WalletProbability, rng)
	if err != nil {
		return nil, nil, err
	}
	stablecoinPurchases, err := generators.NewSeigniorageModelPurchaseGenerator(generators.SeigniorageModelConfig{
		Token:      stablecoin,
		Stablecoin: stablecoin,
		Wallets:    wallets,
		Rand:       rng,
		Sigma:      cfg.Market.Sigma,
		Mean:       cfg.Market.Mean,
		Volatility: cfg.Market.Volatility,
		Threshold:  cfg.Market.PanicThreshold,
	})
	if err != nil {
		return nil, nil, err
	}
	collateralPurchases, err := generators.NewSeigniorageModelPurchaseGenerator(generators.SeigniorageModelConfig{
		Token:      collateral,
		Stablecoin: stablecoin,
		Wallets:    wallets,
		Rand:       rng,
		Sigma:      cfg.Market.Sigma,
		Mean:       cfg.Market.Mean,
		Volatility: cfg.Market.Volatility,
		Threshold:  cfg.Market.PanicThreshold,
	})
	if err != nil {
		return nil, nil, err
	}

	stream, err := telemetry.NewStreamServer(telemetry.StreamConfig{
		Logger: logger.With("component", "telemetry-stream"),
	})
	if err != nil {
		return nil, nil, err
	}

	sim, err := marketsim.NewThreePoolsSimulator(marketsim.Config{
		Stablecoin:          stablecoin,
		Collateral:          collateral,
		StablecoinPool:      stablecoinPool,
		CollateralPool:      collateralPool,
		VirtualPool:         virtualPool,
		Optimizer:           optimizer,
		StablecoinPurchases: stablecoinPurchases,
		CollateralPurchases: collateralPurchases,
		CollapseFraction:    cfg.Simulation.CollapseFraction,
		Logger:              logger.With("component", "simulator"),
		Registry:            registry,
		Publisher:           stream,
	})
	if err != nil {
		return nil, nil, err
	}
	return sim, stream, nil
}

func newReplenisher(cfg config.VirtualPoolConfig) (amm.ReplenishingSystem, error) {
	if cfg.Replenisher == "simple" {
		return amm.NewSimpleReplenisher(cfg.RecoveryPeriod)
	}
	return amm.NewImprovedReplenisher(cfg.RecoveryPeriod)
}

func loadConfig() (*config.SimConfig, error) {
	configPath := flag.String("config", "config.yaml", "Path to the configuration file.")
	flag.Parse()
	log.Printf("Loading configuration from: %s", *configPath)
	return config.LoadConfig(*configPath)
}
