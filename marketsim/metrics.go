package marketsim

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the simulator's Prometheus instruments. They are registered on
// the Registerer supplied through Config.
type Metrics struct {
	stepDuration         prometheus.Histogram
	stepsTotal           prometheus.Counter
	swapsTotal           *prometheus.CounterVec
	arbitragesTotal      *prometheus.CounterVec
	optimizationFailures prometheus.Counter

	stablecoinPrice  prometheus.Gauge
	collateralPrice  prometheus.Gauge
	virtualPoolDelta prometheus.Gauge
}

// NewMetrics creates and registers the simulator metrics.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)
	return &Metrics{
		stepDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "stablesim",
			Subsystem: "simulator",
			Name:      "step_duration_seconds",
			Help:      "Wall time of one full simulation step.",
			Buckets:   prometheus.DefBuckets,
		}),
		stepsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "stablesim",
			Subsystem: "simulator",
			Name:      "steps_total",
			Help:      "Total number of completed simulation steps.",
		}),
		swapsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stablesim",
			Subsystem: "simulator",
			Name:      "swaps_total",
			Help:      "Total number of executed pool swaps.",
		}, []string{"pool"}),
		arbitragesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stablesim",
			Subsystem: "simulator",
			Name:      "arbitrages_total",
			Help:      "Total number of leveraged arbitrage opportunities.",
		}, []string{"kind"}),
		optimizationFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "stablesim",
			Subsystem: "simulator",
			Name:      "optimization_failures_total",
			Help:      "Arbitrage sizing runs that did not converge.",
		}),
		stablecoinPrice: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "stablesim",
			Subsystem: "simulator",
			Name:      "stablecoin_price",
			Help:      "Stablecoin price implied by the stablecoin pool reserves.",
		}),
		collateralPrice: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "stablesim",
			Subsystem: "simulator",
			Name:      "collateral_price",
			Help:      "Collateral price implied by the collateral pool reserves.",
		}),
		virtualPoolDelta: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "stablesim",
			Subsystem: "simulator",
			Name:      "virtual_pool_delta",
			Help:      "Outstanding peg-defense exposure of the virtual pool.",
		}),
	}
}
