package amm

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidRecoveryPeriod is returned for recovery periods or window lengths
// below 1.
var ErrInvalidRecoveryPeriod = errors.New("recovery period must be at least 1")

// ReplenishingSystem is the recovery policy of a virtual pool. It decides how a
// trade's net stablecoin flow is scheduled (UpdateDelta) and how delta relaxes
// toward zero on each maintenance tick (RestoreDelta). Implementations are
// selected at construction time.
type ReplenishingSystem interface {
	// UpdateDelta folds a trade's delta variation into the recovery state and
	// returns the new delta.
	UpdateDelta(delta, variation float64) float64

	// RestoreDelta consumes one scheduled correction and returns the new delta.
	// stablecoinPrice is the last observed stablecoin price; policies that do
	// not depend on it ignore the argument.
	RestoreDelta(delta, stablecoinPrice float64) float64

	// Reset clears all scheduled corrections back to a deterministic zero state.
	Reset()
}

// SimpleReplenisher relaxes delta by exponential decay: each tick multiplies it
// by (1 - 1/period), giving a half-life of roughly period*ln2. This mirrors the
// original Terra-protocol virtual pool.
type SimpleReplenisher struct {
	period float64
}

// NewSimpleReplenisher creates the exponential-decay policy. period is the pool
// recovery period in ticks and must be at least 1.
func NewSimpleReplenisher(period int) (*SimpleReplenisher, error) {
	if period < 1 {
		return nil, fmt.Errorf("%w: recovery period %d", ErrInvalidRecoveryPeriod, period)
	}
	return &SimpleReplenisher{period: float64(period)}, nil
}

// UpdateDelta is pure addition.
func (r *SimpleReplenisher) UpdateDelta(delta, variation float64) float64 {
	return delta + variation
}

// RestoreDelta multiplies delta by (1 - 1/period).
func (r *SimpleReplenisher) RestoreDelta(delta, _ float64) float64 {
	return delta * (1 - 1/r.period)
}

// Reset is a no-op: the policy keeps no state beyond delta itself.
func (r *SimpleReplenisher) Reset() {}

// replenishThresholds are the stablecoin price levels that scale the improved
// policy's recovery horizon: 0.95 to 0.99 in 0.005 steps.
var replenishThresholds = [9]float64{0.950, 0.955, 0.960, 0.965, 0.970, 0.975, 0.980, 0.985, 0.990}

// ImprovedReplenisher schedules partial corrections over a fixed-length window:
// each trade's delta variation is spread evenly across all slots, and each
// maintenance tick consumes the oldest slot. The window length shrinks as the
// stablecoin price deviates from the peg, so a stressed pool recovers faster;
// shrinking conserves the total scheduled correction by redistributing the
// dropped slots over the retained ones.
type ImprovedReplenisher struct {
	period int
	// window is the schedule of pending corrections. Its backing array is sized
	// to period once; length changes reslice it, never reallocate.
	window []float64
}

// NewImprovedReplenisher creates the windowed policy with the given recovery
// period, which is both the initial and the maximum window length.
func NewImprovedReplenisher(period int) (*ImprovedReplenisher, error) {
	if period < 1 {
		return nil, fmt.Errorf("%w: recovery period %d", ErrInvalidRecoveryPeriod, period)
	}
	return &ImprovedReplenisher{
		period: period,
		window: make([]float64, period),
	}, nil
}

// UpdateDelta spreads the variation evenly across every window slot.
func (r *ImprovedReplenisher) UpdateDelta(delta, variation float64) float64 {
	spread := variation / float64(len(r.window))
	for i := range r.window {
		r.window[i] += spread
	}
	return delta + variation
}

// RestoreDelta resizes the window to the target length implied by the last
// stablecoin price, consumes the oldest slot, and shifts the window left with a
// zero appended.
func (r *ImprovedReplenisher) RestoreDelta(delta, stablecoinPrice float64) float64 {
	r.resizeWindow(r.targetWindowLength(stablecoinPrice))

	consumed := r.window[0]
	copy(r.window, r.window[1:])
	r.window[len(r.window)-1] = 0
	return delta - consumed
}

// Reset reinitializes the window to period zeroed slots.
func (r *ImprovedReplenisher) Reset() {
	r.window = r.window[:cap(r.window)]
	for i := range r.window {
		r.window[i] = 0
	}
}

// Window returns a copy of the pending correction schedule.
func (r *ImprovedReplenisher) Window() []float64 {
	out := make([]float64, len(r.window))
	copy(out, r.window)
	return out
}

// targetWindowLength maps the stablecoin price to a recovery horizon: matching
// the i-th threshold counting down from 0.99 yields round(period*(1 - i*0.1)),
// clamped to [1, period]. Prices at or below 0.95 collapse the horizon to 1,
// forcing the whole outstanding correction through on the next ticks.
func (r *ImprovedReplenisher) targetWindowLength(stablecoinPrice float64) int {
	length := 1
	for i := 0; i < len(replenishThresholds); i++ {
		if stablecoinPrice > replenishThresholds[len(replenishThresholds)-1-i] {
			length = int(math.Round(float64(r.period) * (1 - float64(i)*0.1)))
			break
		}
	}
	if length < 1 {
		length = 1
	}
	if length > r.period {
		length = r.period
	}
	return length
}

// resizeWindow shrinks the window to newLength, redistributing the sum of the
// dropped slots evenly over the retained ones so the total scheduled correction
// is conserved, or grows it by exposing zeroed slots.
func (r *ImprovedReplenisher) resizeWindow(newLength int) {
	if newLength >= len(r.window) {
		old := len(r.window)
		r.window = r.window[:newLength]
		for i := old; i < newLength; i++ {
			r.window[i] = 0
		}
		return
	}

	excess := 0.0
	for _, v := range r.window[newLength:] {
		excess += v
	}
	r.window = r.window[:newLength]
	redistribute := excess / float64(newLength)
	for i := range r.window {
		r.window[i] += redistribute
	}
}
