// Package config loads and validates the simulator's YAML configuration.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// TokenConfig describes one simulated token's initial state.
type TokenConfig struct {
	Name       string  `yaml:"name"`
	Supply     float64 `yaml:"supply"`
	FreeSupply float64 `yaml:"freeSupply"`
	Price      float64 `yaml:"price"`
}

// PoolConfig describes one real pool's initial reserves and fee.
type PoolConfig struct {
	QuantityTokenA float64 `yaml:"quantityTokenA"`
	QuantityTokenB float64 `yaml:"quantityTokenB"`
	Fee            float64 `yaml:"fee"`
}

// VirtualPoolConfig describes the protocol-owned virtual pool.
type VirtualPoolConfig struct {
	BaseQuantity float64 `yaml:"baseQuantity"`
	Fee          float64 `yaml:"fee"`
	// Replenisher selects the delta recovery strategy: "simple" or "improved".
	Replenisher    string `yaml:"replenisher"`
	RecoveryPeriod int    `yaml:"recoveryPeriod"`
}

// OptimizerConfig bounds the arbitrage sizing search.
type OptimizerConfig struct {
	MaxArbitrageInput float64 `yaml:"maxArbitrageInput"`
	Threshold         float64 `yaml:"threshold"`
}

// MarketConfig parameterizes the random trade generators.
type MarketConfig struct {
	Sigma             float64 `yaml:"sigma"`
	Mean              float64 `yaml:"mean"`
	Volatility        float64 `yaml:"volatility"`
	PanicThreshold    float64 `yaml:"panicThreshold"`
	WalletProbability float64 `yaml:"walletProbability"`
}

// SimulationConfig controls the run itself.
type SimulationConfig struct {
	Steps            int     `yaml:"steps"`
	Seed             uint64  `yaml:"seed"`
	CollapseFraction float64 `yaml:"collapseFraction"`
}

// SimConfig is the root configuration document.
type SimConfig struct {
	ListenAddr string `yaml:"listenAddr"`

	Stablecoin TokenConfig `yaml:"stablecoin"`
	Collateral TokenConfig `yaml:"collateral"`
	Peg        float64     `yaml:"peg"`

	StablecoinPool PoolConfig        `yaml:"stablecoinPool"`
	CollateralPool PoolConfig        `yaml:"collateralPool"`
	VirtualPool    VirtualPoolConfig `yaml:"virtualPool"`

	Optimizer  OptimizerConfig  `yaml:"optimizer"`
	Market     MarketConfig     `yaml:"market"`
	Simulation SimulationConfig `yaml:"simulation"`
}

// LoadConfig reads, parses and validates a configuration file.
func LoadConfig(path string) (*SimConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultConfig() *SimConfig {
	return &SimConfig{
		ListenAddr: ":8080",
		Peg:        1.0,
		VirtualPool: VirtualPoolConfig{
			Replenisher:    "improved",
			RecoveryPeriod: 10,
		},
		Market: MarketConfig{
			Sigma:             1,
			Volatility:        1000,
			PanicThreshold:    0.05,
			WalletProbability: 0.001,
		},
		Simulation: SimulationConfig{
			Steps:            10000,
			Seed:             1,
			CollapseFraction: 0.5,
		},
	}
}

func (c *SimConfig) validate() error {
	if err := c.Stablecoin.validate("stablecoin"); err != nil {
		return err
	}
	if err := c.Collateral.validate("collateral"); err != nil {
		return err
	}
	if c.Peg <= 0 {
		return fmt.Errorf("config: peg must be positive, got %g", c.Peg)
	}
	if err := c.StablecoinPool.validate("stablecoinPool"); err != nil {
		return err
	}
	if err := c.CollateralPool.validate("collateralPool"); err != nil {
		return err
	}
	if c.VirtualPool.BaseQuantity <= 0 {
		return fmt.Errorf("config: virtualPool.baseQuantity must be positive, got %g", c.VirtualPool.BaseQuantity)
	}
	if c.VirtualPool.Fee < 0 || c.VirtualPool.Fee >= 1 {
		return fmt.Errorf("config: virtualPool.fee must be in [0, 1), got %g", c.VirtualPool.Fee)
	}
	switch c.VirtualPool.Replenisher {
	case "simple", "improved":
	default:
		return fmt.Errorf("config: virtualPool.replenisher must be %q or %q, got %q",
			"simple", "improved", c.VirtualPool.Replenisher)
	}
	if c.VirtualPool.RecoveryPeriod < 1 {
		return fmt.Errorf("config: virtualPool.recoveryPeriod must be at least 1, got %d", c.VirtualPool.RecoveryPeriod)
	}
	if c.Market.WalletProbability <= 0 || c.Market.WalletProbability >= 1 {
		return fmt.Errorf("config: market.walletProbability must be in (0, 1), got %g", c.Market.WalletProbability)
	}
	if c.Simulation.Steps < 1 {
		return fmt.Errorf("config: simulation.steps must be at least 1, got %d", c.Simulation.Steps)
	}
	if c.Simulation.CollapseFraction < 0 || c.Simulation.CollapseFraction >= 1 {
		return fmt.Errorf("config: simulation.collapseFraction must be in [0, 1), got %g", c.Simulation.CollapseFraction)
	}
	return nil
}

func (t *TokenConfig) validate(section string) error {
	if t.Name == "" {
		return fmt.Errorf("config: %s.name is required", section)
	}
	if t.Supply <= 0 {
		return fmt.Errorf("config: %s.supply must be positive, got %g", section, t.Supply)
	}
	if t.FreeSupply < 0 || t.FreeSupply > t.Supply {
		return fmt.Errorf("config: %s.freeSupply must be in [0, supply], got %g", section, t.FreeSupply)
	}
	if t.Price <= 0 {
		return fmt.Errorf("config: %s.price must be positive, got %g", section, t.Price)
	}
	return nil
}

func (p *PoolConfig) validate(section string) error {
	if p.QuantityTokenA <= 0 || p.QuantityTokenB <= 0 {
		return fmt.Errorf("config: %s reserves must be positive", section)
	}
	if p.Fee < 0 || p.Fee >= 1 {
		return fmt.Errorf("config: %s.fee must be in [0, 1), got %g", section, p.Fee)
	}
	return nil
}
