package amm

import (
	"fmt"
)

// Token is the view of a collaborating token a pool needs during swaps. The
// pool compares tokens by interface identity, so callers must pass the same
// object they constructed the pool with.
type Token interface {
	Name() string
	Price() float64
	FreeSupply() float64
	AddFreeSupply(delta float64) error
}

// SeigniorageToken is a token whose supply the virtual pool may expand or
// contract to defend the peg.
type SeigniorageToken interface {
	Token
	Mint(amount float64) error
	Burn(amount float64) error
}

// Pool holds two token reserves, a swap fee and a Formula, and executes swaps
// against them. It is single-owner and mutated in place; one simulation step
// completes fully before the next begins, so no locking is needed.
type Pool struct {
	tokenA    Token
	tokenB    Token
	quantityA float64
	quantityB float64
	fee       float64
	formula   Formula
}

// NewPool creates a pool over two distinct tokens with positive initial
// reserves, a fee in [0, 1) and a swap formula.
func NewPool(tokenA, tokenB Token, quantityA, quantityB, fee float64, formula Formula) (*Pool, error) {
	if tokenA == nil || tokenB == nil {
		return nil, fmt.Errorf("%w: nil token", ErrInvalidToken)
	}
	if tokenA == tokenB {
		return nil, fmt.Errorf("%w: pool tokens must be distinct", ErrInvalidToken)
	}
	if quantityA <= 0 || quantityB <= 0 {
		return nil, fmt.Errorf("%w: initial reserves (%g, %g)", ErrNonPositiveReserve, quantityA, quantityB)
	}
	if fee < 0 || fee >= 1 {
		return nil, fmt.Errorf("%w: got %g", ErrInvalidFee, fee)
	}
	if formula == nil {
		return nil, fmt.Errorf("pool requires a formula")
	}
	return &Pool{
		tokenA:    tokenA,
		tokenB:    tokenB,
		quantityA: quantityA,
		quantityB: quantityB,
		fee:       fee,
		formula:   formula,
	}, nil
}

// TokenA returns the pool's first token.
func (p *Pool) TokenA() Token { return p.tokenA }

// TokenB returns the pool's second token.
func (p *Pool) TokenB() Token { return p.tokenB }

// QuantityTokenA returns the current reserve of token A.
func (p *Pool) QuantityTokenA() float64 { return p.quantityA }

// QuantityTokenB returns the current reserve of token B.
func (p *Pool) QuantityTokenB() float64 { return p.quantityB }

// Fee returns the pool's swap fee.
func (p *Pool) Fee() float64 { return p.fee }

// Formula returns the pool's swap formula.
func (p *Pool) Formula() Formula { return p.formula }

// Swap trades against the pool. The sign of amount selects the direction:
// a positive amount deposits that much of token and withdraws the computed
// amount of the other token; a negative amount withdraws |amount| of token and
// deposits the computed amount of the other token, inflated by 1/(1-fee) so the
// fee is netted on the side actually being deposited. A zero amount is a no-op.
//
// The returned pair is the counterpart token and the amount of it that moved.
// Free-supply bookkeeping mirrors the reserve movement: tokens deposited into
// the pool leave circulation, tokens withdrawn re-enter it. A rejected swap
// leaves the pool reserves and both tokens' free supplies untouched.
func (p *Pool) Swap(token Token, amount float64) (Token, float64, error) {
	if token != p.tokenA && token != p.tokenB {
		name := "<nil>"
		if token != nil {
			name = token.Name()
		}
		return nil, 0, fmt.Errorf("%w: %s", ErrInvalidToken, name)
	}

	other := p.tokenB
	if token == p.tokenB {
		other = p.tokenA
	}
	if amount == 0 {
		return other, 0, nil
	}
	if amount > 0 {
		return p.swapForward(token, other, amount)
	}
	return p.swapReverse(token, other, -amount)
}

// swapForward deposits amount of token and withdraws the formula output of the
// other token, charging the fee on the input side. The fallible free-supply
// movements happen before the reserves are touched, so a rejected swap never
// leaves the pool half-mutated.
func (p *Pool) swapForward(token, other Token, amount float64) (Token, float64, error) {
	inReserve, outReserve := p.reserves(token)
	output, err := p.ComputeSwapValue(amount, inReserve, outReserve)
	if err != nil {
		return nil, 0, err
	}
	if err := p.moveFreeSupply(token, -amount, other, output); err != nil {
		return nil, 0, err
	}
	if err := p.applyReserves(token, amount, -output); err != nil {
		_ = p.moveFreeSupply(token, amount, other, -output)
		return nil, 0, err
	}
	return other, output, nil
}

// swapReverse withdraws amount of token and deposits the formula-derived input
// of the other token, inflated by 1/(1-fee).
func (p *Pool) swapReverse(token, other Token, amount float64) (Token, float64, error) {
	inReserve, outReserve := p.reserves(other)
	input, err := p.formula.InverseApply(amount, inReserve, outReserve)
	if err != nil {
		return nil, 0, err
	}
	input /= 1 - p.fee
	if err := p.moveFreeSupply(other, -input, token, amount); err != nil {
		return nil, 0, err
	}
	if err := p.applyReserves(token, -amount, input); err != nil {
		_ = p.moveFreeSupply(other, input, token, -amount)
		return nil, 0, err
	}
	return other, input, nil
}

// moveFreeSupply applies both circulation movements of a swap as a unit: when
// the second movement is rejected the first is undone before the error is
// returned. Undoing a just-applied movement restores a previously valid value,
// so the rollback itself cannot fail.
func (p *Pool) moveFreeSupply(deposited Token, depositedDelta float64, withdrawn Token, withdrawnDelta float64) error {
	if err := deposited.AddFreeSupply(depositedDelta); err != nil {
		return err
	}
	if err := withdrawn.AddFreeSupply(withdrawnDelta); err != nil {
		_ = deposited.AddFreeSupply(-depositedDelta)
		return err
	}
	return nil
}

// ComputeSwapValue prices a forward swap against explicit reserves without
// mutating the pool: the fee is charged on the input, then the formula applies.
func (p *Pool) ComputeSwapValue(inputQuantity, inputReserve, outputReserve float64) (float64, error) {
	effective := inputQuantity * (1 - p.fee)
	return p.formula.Apply(effective, inputReserve, outputReserve)
}

// reserves returns the (input, output) reserves for the given input token.
func (p *Pool) reserves(input Token) (float64, float64) {
	if input == p.tokenA {
		return p.quantityA, p.quantityB
	}
	return p.quantityB, p.quantityA
}

// applyReserves shifts the reserve of token by tokenDelta and of the other side
// by otherDelta, failing if either reserve would go negative.
func (p *Pool) applyReserves(token Token, tokenDelta, otherDelta float64) error {
	newA, newB := p.quantityA, p.quantityB
	if token == p.tokenA {
		newA += tokenDelta
		newB += otherDelta
	} else {
		newB += tokenDelta
		newA += otherDelta
	}
	if newA < 0 || newB < 0 {
		return fmt.Errorf("%w: reserves would become (%g, %g)", ErrReserveInvariant, newA, newB)
	}
	p.quantityA, p.quantityB = newA, newB
	return nil
}

// setReserves overwrites both reserves. The virtual pool uses it to rebuild its
// derived view before delegating a swap.
func (p *Pool) setReserves(quantityA, quantityB float64) {
	p.quantityA = quantityA
	p.quantityB = quantityB
}
