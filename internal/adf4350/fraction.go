package adf4350

import "math/big"

/*
NearestFraction returns the fraction c/d closest to a/b with 1 <= d <= maxDenominator,
and the error a/b - c/d as floating point. b must not be zero.

If a/b already reduces to a small enough denominator it is returned as is.
Otherwise the continued fraction of a/b is expanded until the next convergent
p/q would need a larger denominator. The answer is then either the last
convergent p1/q1 or the semiconvergent

	(p0 + k*p1) / (q0 + k*q1),   k = (maxDenominator - q0) / q1

whichever lies closer to a/b. Equal distances keep the convergent. The result
is always in lowest terms.

For the synthesizer, a/b is the fractional part of the feedback divider and
maxDenominator the 12-bit modulus limit.
*/
func NearestFraction(a, b, maxDenominator uint64) (c, d uint64, eps float64) {
	maxDenominator = max(maxDenominator, 1)
	g := gcd(a, b)
	if b/g <= maxDenominator {
		c, d = a/g, b/g
	} else {
		c, d = limitDenominator(a, b, maxDenominator)
	}
	return c, d, float64(a)/float64(b) - float64(c)/float64(d)
}

func limitDenominator(a, b, maxDenominator uint64) (c, d uint64) {
	p0, q0, p1, q1 := uint64(0), uint64(1), uint64(1), uint64(0)
	n, m := a, b
	for m != 0 {
		term := n / m
		// q0 + term*q1 must stay within maxDenominator; checked without overflow
		if q1 != 0 && term > (maxDenominator-q0)/q1 {
			break
		}
		p0, q0, p1, q1 = p1, q1, p0+term*p1, q0+term*q1
		n, m = m, n-term*m
	}
	if m == 0 {
		return p1, q1
	}
	k := (maxDenominator - q0) / q1
	sc, sd := p0+k*p1, q0+k*q1
	if atLeastAsClose(a, b, p1, q1, sc, sd) {
		return p1, q1
	}
	return sc, sd
}

// atLeastAsClose reports whether |a/b - p1/q1| <= |a/b - p2/q2|, exactly.
func atLeastAsClose(a, b, p1, q1, p2, q2 uint64) bool {
	d1 := distance(a, b, p1, q1)
	d1.Mul(d1, new(big.Int).SetUint64(q2))
	d2 := distance(a, b, p2, q2)
	d2.Mul(d2, new(big.Int).SetUint64(q1))
	return d1.Cmp(d2) <= 0
}

// distance is |a*q - p*b|, the numerator of |a/b - p/q| over b*q.
func distance(a, b, p, q uint64) *big.Int {
	x := new(big.Int).Mul(new(big.Int).SetUint64(a), new(big.Int).SetUint64(q))
	y := new(big.Int).Mul(new(big.Int).SetUint64(p), new(big.Int).SetUint64(b))
	return x.Abs(x.Sub(x, y))
}

func gcd(a, b uint64) uint64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
