package tokens

import (
	"fmt"
)

// Stablecoin is a token pegged to a target price. Its supply expands and
// contracts through the virtual pool's mint/burn mechanism to defend the peg.
type Stablecoin struct {
	Token
	peg float64
}

// NewStablecoin creates a stablecoin with the given peg (typically 1.0).
func NewStablecoin(name string, supply, freeSupply, price, peg float64) (*Stablecoin, error) {
	if peg <= 0 {
		return nil, fmt.Errorf("%w: peg %g", ErrInvalidPrice, peg)
	}
	base, err := New(name, supply, freeSupply, price)
	if err != nil {
		return nil, err
	}
	return &Stablecoin{Token: *base, peg: peg}, nil
}

// Peg returns the price the stablecoin is pegged to.
func (s *Stablecoin) Peg() float64 { return s.peg }

func (s *Stablecoin) String() string {
	return fmt.Sprintf("Stablecoin(name=%s, price=%g, supply=%g, peg=%g)",
		s.Name(), s.Price(), s.Supply(), s.peg)
}

// NewCollateral creates the freely floating token that backs a stablecoin in the
// seigniorage model. It is a plain token; the constructor exists to make call
// sites self-describing.
func NewCollateral(name string, supply, freeSupply, price float64) (*Token, error) {
	return New(name, supply, freeSupply, price)
}
