package amm

import (
	"fmt"
)

// VirtualPool is a synthetic pool between a stablecoin and its collateral that
// defends the peg. It holds no real liquidity: both reserves are a derived view,
// rebuilt from (baseQuantity + delta) and (baseQuantity / collateralPrice) at the
// start of every swap and every recovery step. delta is the single source of
// truth, accumulating the net stablecoin pulled into or out of the pool since the
// last full recovery.
type VirtualPool struct {
	Pool

	stablecoin SeigniorageToken
	collateral SeigniorageToken

	baseQuantity    float64
	collateralPrice float64
	stablecoinPrice float64
	delta           float64

	replenisher ReplenishingSystem
}

// NewVirtualPool creates a virtual pool. The collateral reserve is implied by
// the stablecoin base quantity and the collateral's current price; the
// replenishing system decides how delta relaxes back toward zero.
func NewVirtualPool(stablecoin, collateral SeigniorageToken, baseQuantity, fee float64,
	formula Formula, replenisher ReplenishingSystem) (*VirtualPool, error) {

	if baseQuantity <= 0 {
		return nil, fmt.Errorf("%w: base quantity %g", ErrNonPositiveReserve, baseQuantity)
	}
	if replenisher == nil {
		return nil, fmt.Errorf("virtual pool requires a replenishing system")
	}
	pool, err := NewPool(stablecoin, collateral, baseQuantity, baseQuantity/collateral.Price(), fee, formula)
	if err != nil {
		return nil, err
	}
	return &VirtualPool{
		Pool:            *pool,
		stablecoin:      stablecoin,
		collateral:      collateral,
		baseQuantity:    baseQuantity,
		collateralPrice: collateral.Price(),
		stablecoinPrice: stablecoin.Price(),
		replenisher:     replenisher,
	}, nil
}

// Delta returns the accumulated deviation from the base reserve quantity.
func (vp *VirtualPool) Delta() float64 { return vp.delta }

// StablecoinBaseQuantity returns the reference stablecoin reserve at delta zero.
func (vp *VirtualPool) StablecoinBaseQuantity() float64 { return vp.baseQuantity }

// Swap rebuilds the derived reserves, delegates to the base pool, then folds the
// net stablecoin flow into delta: +amount when the stablecoin side is the input,
// -outputAmount when the collateral side is. Tokens absorbed by the virtual pool
// are burned and tokens paid out are minted; the virtual pool is the system's
// mint/burn valve rather than a custodian of reserves.
func (vp *VirtualPool) Swap(token Token, amount float64) (Token, float64, error) {
	quantityA := vp.baseQuantity + vp.delta
	quantityB := vp.baseQuantity / vp.collateralPrice
	vp.setReserves(quantityA, quantityB)

	other, otherAmount, err := vp.Pool.Swap(token, amount)
	if err != nil {
		return nil, 0, err
	}
	if amount == 0 {
		return other, 0, nil
	}

	// The seigniorage step can still reject the swap; delta and the recovery
	// schedule are only updated once the whole swap has committed.
	if err := vp.updateSupplies(token, other, amount, otherAmount); err != nil {
		vp.unwindSwap(token, other, amount, otherAmount, quantityA, quantityB)
		return nil, 0, err
	}

	variation := vp.QuantityTokenA() - quantityA
	vp.delta = vp.replenisher.UpdateDelta(vp.delta, variation)
	return other, otherAmount, nil
}

// unwindSwap restores the derived reserves and both tokens' circulation after
// the seigniorage step rejects a swap the base pool had already applied.
// Restoring previously valid values cannot fail.
func (vp *VirtualPool) unwindSwap(token, other Token, amount, otherAmount, quantityA, quantityB float64) {
	vp.setReserves(quantityA, quantityB)

	otherDelta := -otherAmount
	if amount < 0 {
		otherDelta = otherAmount
	}
	_ = token.AddFreeSupply(amount)
	_ = other.AddFreeSupply(otherDelta)
}

// updateSupplies burns the deposited token from supply and mints the withdrawn
// one, resolving the swap direction from the sign of amount.
func (vp *VirtualPool) updateSupplies(token, other Token, amount, otherAmount float64) error {
	depositedToken, deposited := token, amount
	withdrawnToken, withdrawn := other, otherAmount
	if amount < 0 {
		depositedToken, deposited = other, otherAmount
		withdrawnToken, withdrawn = token, -amount
	}
	if err := vp.seigniorage(depositedToken).Burn(deposited); err != nil {
		return err
	}
	return vp.seigniorage(withdrawnToken).Mint(withdrawn)
}

func (vp *VirtualPool) seigniorage(token Token) SeigniorageToken {
	if token == Token(vp.stablecoin) {
		return vp.stablecoin
	}
	return vp.collateral
}

// PerformPoolReplenishing is the periodic maintenance call: the replenishing
// system consumes one scheduled correction, then both reserves are realigned to
// the new delta through the formula so the implied price stays consistent with
// the pool invariant.
func (vp *VirtualPool) PerformPoolReplenishing() error {
	vp.delta = vp.replenisher.RestoreDelta(vp.delta, vp.stablecoinPrice)
	return vp.updateTokenQuantities()
}

// updateTokenQuantities pins the stablecoin reserve at baseQuantity + delta and
// recomputes the collateral reserve through the formula.
func (vp *VirtualPool) updateTokenQuantities() error {
	newQuantityA := vp.baseQuantity + vp.delta
	newQuantityB, err := vp.Formula().ComputeReserve(vp.QuantityTokenA(), vp.QuantityTokenB(), newQuantityA)
	if err != nil {
		return err
	}
	vp.setReserves(newQuantityA, newQuantityB)
	return nil
}

// UpdateCollateralPrice refreshes the reference price used to derive the
// collateral-side reserve.
func (vp *VirtualPool) UpdateCollateralPrice(price float64) error {
	if price <= 0 {
		return fmt.Errorf("%w: collateral price %g", ErrNonPositiveReserve, price)
	}
	vp.collateralPrice = price
	return nil
}

// UpdateStablecoinPrice records the last observed stablecoin price. Replenishing
// systems that scale their recovery horizon with peg deviation read it on the
// next RestoreDelta.
func (vp *VirtualPool) UpdateStablecoinPrice(price float64) error {
	if price <= 0 {
		return fmt.Errorf("%w: stablecoin price %g", ErrNonPositiveReserve, price)
	}
	vp.stablecoinPrice = price
	return nil
}

// ResetReplenishingSystem zeroes delta and clears any scheduled corrections.
func (vp *VirtualPool) ResetReplenishingSystem() {
	vp.delta = 0
	vp.replenisher.Reset()
}
