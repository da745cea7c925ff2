// Package telemetry exposes the read-only state of a simulation run to
// visualization consumers: a per-step snapshot type and a websocket server that
// broadcasts the snapshot stream to subscribers.
package telemetry

// PoolState is the reserve view of one pool at the end of a step.
type PoolState struct {
	QuantityTokenA float64 `json:"quantityTokenA"`
	QuantityTokenB float64 `json:"quantityTokenB"`
}

// TokenState is the supply and price view of one token at the end of a step.
type TokenState struct {
	Price      float64 `json:"price"`
	Supply     float64 `json:"supply,omitempty"`
	FreeSupply float64 `json:"freeSupply,omitempty"`
}

// State is the snapshot broadcast to subscribers after every simulation step.
type State struct {
	Step      uint64 `json:"step"`
	Timestamp int64  `json:"timestamp"` // Unix nanoseconds when the step finished.

	Stablecoin TokenState `json:"stablecoin"`
	Collateral TokenState `json:"collateral"`

	StablecoinPool PoolState `json:"stablecoinPool"`
	CollateralPool PoolState `json:"collateralPool"`
	VirtualPool    PoolState `json:"virtualPool"`

	// Delta is the virtual pool's outstanding peg-defense exposure.
	Delta float64 `json:"delta"`

	// Arbitrage names the arbitrage kind executed this step, empty when none.
	Arbitrage string `json:"arbitrage,omitempty"`
}
