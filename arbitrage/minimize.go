package arbitrage

import (
	"math"
)

// Defaults matching the reference bounded-minimization routine.
const (
	defaultXAtol   = 1e-5
	defaultMaxFun  = 500
	goldenMean     = 0.3819660112501051 // (3 - sqrt(5)) / 2
	sqrtMachineEps = 1.4901161193847656e-08
)

// minimizeBounded finds a local minimum of f on [lower, upper] using Brent's
// bounded method: golden-section search accelerated by successive parabolic
// interpolation. It returns the abscissa of the minimum and whether the search
// converged within maxFun function evaluations to absolute tolerance xatol.
// The profit curves optimized here are unimodal, so the local minimum is global.
func minimizeBounded(f func(float64) float64, lower, upper, xatol float64, maxFun int) (float64, bool) {
	a, b := lower, upper

	fulc := a + goldenMean*(b-a)
	nfc, xf := fulc, fulc
	rat, e := 0.0, 0.0
	x := xf
	fx := f(x)
	num := 1
	ffulc, fnfc := fx, fx

	xm := 0.5 * (a + b)
	tol1 := sqrtMachineEps*math.Abs(xf) + xatol/3
	tol2 := 2 * tol1

	for math.Abs(xf-xm) > tol2-0.5*(b-a) {
		golden := true
		// Try a parabolic fit through the three best points so far.
		if math.Abs(e) > tol1 {
			golden = false
			r := (xf - nfc) * (fx - ffulc)
			q := (xf - fulc) * (fx - fnfc)
			p := (xf-fulc)*q - (xf-nfc)*r
			q = 2 * (q - r)
			if q > 0 {
				p = -p
			}
			q = math.Abs(q)
			r = e
			e = rat

			// Accept the parabolic step only if it falls inside the bracket and
			// is smaller than half the second-to-last step.
			if math.Abs(p) < math.Abs(0.5*q*r) && p > q*(a-xf) && p < q*(b-xf) {
				rat = p / q
				x = xf + rat
				if (x-a) < tol2 || (b-x) < tol2 {
					rat = tol1 * signOrOne(xm-xf)
				}
			} else {
				golden = true
			}
		}

		if golden {
			if xf >= xm {
				e = a - xf
			} else {
				e = b - xf
			}
			rat = goldenMean * e
		}

		x = xf + signOrOne(rat)*math.Max(math.Abs(rat), tol1)
		fu := f(x)
		num++

		if fu <= fx {
			if x >= xf {
				a = xf
			} else {
				b = xf
			}
			fulc, ffulc = nfc, fnfc
			nfc, fnfc = xf, fx
			xf, fx = x, fu
		} else {
			if x < xf {
				a = x
			} else {
				b = x
			}
			if fu <= fnfc || nfc == xf {
				fulc, ffulc = nfc, fnfc
				nfc, fnfc = x, fu
			} else if fu <= ffulc || fulc == xf || fulc == nfc {
				fulc, ffulc = x, fu
			}
		}

		xm = 0.5 * (a + b)
		tol1 = sqrtMachineEps*math.Abs(xf) + xatol/3
		tol2 = 2 * tol1

		if num >= maxFun {
			return xf, false
		}
	}

	return xf, true
}

// signOrOne returns the sign of v, treating zero as +1 so a zero step still
// advances by the tolerance.
func signOrOne(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}
