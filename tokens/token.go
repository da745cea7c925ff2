package tokens

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidSupply is returned when a supply value is non-positive.
	ErrInvalidSupply = errors.New("supply must be positive")
	// ErrInvalidFreeSupply is returned when a free-supply value falls outside [0, supply].
	ErrInvalidFreeSupply = errors.New("free supply must be between zero and the total supply")
	// ErrInvalidPrice is returned when a price value is non-positive.
	ErrInvalidPrice = errors.New("price must be positive")
	// ErrPriceFixed is returned when attempting to reprice a token with a fixed price.
	ErrPriceFixed = errors.New("token price is fixed")
	// ErrInvalidAmount is returned when a mint or burn amount is non-positive.
	ErrInvalidAmount = errors.New("amount must be positive")
	// ErrSupplyExceeded is returned when a burn would remove more tokens than exist,
	// or would leave the total supply below the circulating free supply.
	ErrSupplyExceeded = errors.New("burn exceeds available supply")
)

// freeSupplyEpsilon absorbs float drift around zero: repeated swap bookkeeping can
// leave a free supply at -1e-13 instead of 0, which must not trip validation.
const freeSupplyEpsilon = 1e-3

// Token models a simulated token: a total supply, the portion of it circulating in
// user wallets (free supply), and a market price. Supply is mutated by Mint and
// Burn; free supply is mutated by pool swaps via AddFreeSupply. Identity is by
// pointer: two tokens are the same token only when they are the same object.
type Token struct {
	name       string
	supply     float64
	freeSupply float64
	price      float64
	fixedPrice bool
}

// New creates a token and validates the invariant 0 <= freeSupply <= supply,
// price > 0, supply > 0.
func New(name string, supply, freeSupply, price float64) (*Token, error) {
	if supply <= 0 {
		return nil, fmt.Errorf("%w: got %g", ErrInvalidSupply, supply)
	}
	if freeSupply < 0 || freeSupply > supply {
		return nil, fmt.Errorf("%w: got %g with supply %g", ErrInvalidFreeSupply, freeSupply, supply)
	}
	if price <= 0 {
		return nil, fmt.Errorf("%w: got %g", ErrInvalidPrice, price)
	}
	return &Token{
		name:       name,
		supply:     supply,
		freeSupply: freeSupply,
		price:      price,
	}, nil
}

// NewReference creates a reference token: price pinned at 1.0, unbounded supply.
// It anchors the pricing of the other token in a pool to a stable unit of account.
func NewReference(name string) *Token {
	return &Token{
		name:       name,
		supply:     math.Inf(1),
		freeSupply: math.Inf(1),
		price:      1.0,
		fixedPrice: true,
	}
}

// Name returns the token's human label.
func (t *Token) Name() string { return t.name }

// Price returns the token's current market price.
func (t *Token) Price() float64 { return t.price }

// Supply returns the token's total supply.
func (t *Token) Supply() float64 { return t.supply }

// FreeSupply returns the amount of tokens circulating in user wallets.
func (t *Token) FreeSupply() float64 { return t.freeSupply }

// SetPrice updates the token's market price. It fails on non-positive prices and
// on tokens whose price is fixed, such as reference tokens.
func (t *Token) SetPrice(price float64) error {
	if t.fixedPrice {
		return fmt.Errorf("%w: %s", ErrPriceFixed, t.name)
	}
	if price <= 0 {
		return fmt.Errorf("%w: got %g", ErrInvalidPrice, price)
	}
	t.price = price
	return nil
}

// SetFreeSupply replaces the circulating free supply, snapping values within
// freeSupplyEpsilon of zero to exactly zero before validating the invariant.
func (t *Token) SetFreeSupply(freeSupply float64) error {
	if math.Abs(freeSupply) < freeSupplyEpsilon {
		freeSupply = 0
	}
	if freeSupply < 0 || freeSupply > t.supply {
		return fmt.Errorf("%w: got %g with supply %g", ErrInvalidFreeSupply, freeSupply, t.supply)
	}
	t.freeSupply = freeSupply
	return nil
}

// AddFreeSupply shifts the circulating free supply by delta. Pools call this with
// a negative delta when tokens are deposited (leaving circulation) and a positive
// delta when tokens are withdrawn.
func (t *Token) AddFreeSupply(delta float64) error {
	return t.SetFreeSupply(t.freeSupply + delta)
}

// Mint increases the total supply. Newly minted tokens are not circulating until
// a swap releases them, so the free supply is left untouched.
func (t *Token) Mint(amount float64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: mint %g", ErrInvalidAmount, amount)
	}
	t.supply += amount
	return nil
}

// Burn decreases the total supply. The burn must not exceed the supply and must
// not leave the supply below the circulating free supply.
func (t *Token) Burn(amount float64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: burn %g", ErrInvalidAmount, amount)
	}
	if amount > t.supply {
		return fmt.Errorf("%w: burn %g with supply %g", ErrSupplyExceeded, amount, t.supply)
	}
	if t.supply-amount < t.freeSupply-freeSupplyEpsilon {
		return fmt.Errorf("%w: burn %g would leave supply %g below free supply %g",
			ErrSupplyExceeded, amount, t.supply-amount, t.freeSupply)
	}
	t.supply -= amount
	if t.freeSupply > t.supply {
		t.freeSupply = t.supply
	}
	return nil
}

func (t *Token) String() string {
	return fmt.Sprintf("Token(name=%s, price=%g, supply=%g)", t.name, t.price, t.supply)
}
