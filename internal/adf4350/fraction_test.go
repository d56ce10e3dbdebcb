package adf4350

import (
	"math"
	"math/big"
	"math/rand"
	"testing"

	"github.com/danmuck/labctl/internal/testutil/testlog"
)

const piNum, piDen = 314159265358, 100_000_000_000

func TestNearestFraction(t *testing.T) {
	testlog.Start(t)
	tests := []struct {
		name     string
		a, b     uint64
		maxDen   uint64
		wantC    uint64
		wantD    uint64
		wantZero bool
	}{
		{"zero", 0, 1 << 52, MaxModulus, 0, 1, true},
		{"reduces exactly", 2 * 1712, 4 * 1712, MaxModulus, 1, 2, true},
		{"integer", 3879 * 1712, 1712, 20, 3879, 1, true},
		{"denominator one rounds down", 1, 4, 1, 0, 1, false},
		{"denominator one rounds up", 3, 4, 1, 1, 1, false},
		{"third within halves", 1, 3, 2, 1, 2, false},
		{"pi at 1", piNum, piDen, 1, 3, 1, false},
		{"pi at 7", piNum, piDen, 7, 22, 7, false},
		{"pi at 8", piNum, piDen, 8, 22, 7, false},
		{"pi semiconvergent at 100", piNum, piDen, 100, 311, 99, false},
		{"pi at 106", piNum, piDen, 106, 333, 106, false},
		{"pi at 113", piNum, piDen, 113, 355, 113, false},
		{"pi at modulus limit", piNum, piDen, MaxModulus, 355, 113, false},
		{"pi at 33102", piNum, piDen, 33102, 103993, 33102, false},
		{"just above one", 1<<62 + 1, 1 << 62, MaxModulus, 1, 1, false},
		{"just below one", 4094*1000 + 1, 4095 * 1000, MaxModulus, 4094, 4095, false},
		{"near one half", uint64(math.Round(math.Ldexp(0.50012, 52))), 1 << 52, MaxModulus, 2048, 4095, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, d, eps := NearestFraction(tt.a, tt.b, tt.maxDen)
			if c != tt.wantC || d != tt.wantD {
				t.Fatalf("NearestFraction(%d, %d, %d) = %d/%d, want %d/%d", tt.a, tt.b, tt.maxDen, c, d, tt.wantC, tt.wantD)
			}
			want := float64(tt.a)/float64(tt.b) - float64(tt.wantC)/float64(tt.wantD)
			if eps != want {
				t.Fatalf("eps = %g, want %g", eps, want)
			}
			if tt.wantZero && eps != 0 {
				t.Fatalf("eps = %g, want exact", eps)
			}
		})
	}
}

func TestNearestFractionErrorShrinksWithDenominator(t *testing.T) {
	testlog.Start(t)
	target := big.NewRat(piNum, piDen)
	last := big.NewRat(1, 1)
	for maxDen := uint64(1); maxDen <= MaxModulus; maxDen++ {
		c, d, _ := NearestFraction(piNum, piDen, maxDen)
		got := new(big.Rat).SetFrac(new(big.Int).SetUint64(c), new(big.Int).SetUint64(d))
		dist := new(big.Rat).Abs(got.Sub(got, target))
		if dist.Cmp(last) > 0 {
			t.Fatalf("max denominator %d: error grew to %s", maxDen, dist.FloatString(12))
		}
		last = dist
	}
}

// bestByExhaustion scans every denominator up to maxDen and returns the
// smallest distance |a/b - c/d| any fraction can reach.
func bestByExhaustion(a, b, maxDen uint64) *big.Rat {
	target := new(big.Rat).SetFrac(new(big.Int).SetUint64(a), new(big.Int).SetUint64(b))
	var best *big.Rat
	for d := uint64(1); d <= maxDen; d++ {
		// nearest numerator for this denominator
		num := new(big.Int).Mul(new(big.Int).SetUint64(a), new(big.Int).SetUint64(2*d))
		num.Add(num, new(big.Int).SetUint64(b))
		num.Quo(num, new(big.Int).SetUint64(2*b))
		cand := new(big.Rat).SetFrac(num, new(big.Int).SetUint64(d))
		dist := new(big.Rat).Abs(cand.Sub(cand, target))
		if best == nil || dist.Cmp(best) < 0 {
			best = dist
		}
	}
	return best
}

func TestNearestFractionMatchesExhaustiveSearch(t *testing.T) {
	testlog.Start(t)
	const one = uint64(1) << fractionBits
	rng := rand.New(rand.NewSource(4350))
	ratios := []uint64{
		uint64(math.Round(math.Ldexp(0.50012, fractionBits))),
		uint64(math.Round(math.Ldexp(0.9998, fractionBits))),
		uint64(math.Round(math.Ldexp(0.00011, fractionBits))),
		one - 1,
		1,
	}
	for i := 0; i < 40; i++ {
		ratios = append(ratios, uint64(rng.Int63n(int64(one))))
	}
	for _, a := range ratios {
		c, d, _ := NearestFraction(a, one, MaxModulus)
		if d < 1 || d > MaxModulus {
			t.Fatalf("a=%d: denominator %d out of range", a, d)
		}
		if gcd(c, d) != 1 {
			t.Fatalf("a=%d: %d/%d not in lowest terms", a, c, d)
		}
		got := new(big.Rat).SetFrac(new(big.Int).SetUint64(c), new(big.Int).SetUint64(d))
		target := new(big.Rat).SetFrac(new(big.Int).SetUint64(a), new(big.Int).SetUint64(one))
		dist := new(big.Rat).Abs(got.Sub(got, target))
		if best := bestByExhaustion(a, one, MaxModulus); dist.Cmp(best) != 0 {
			t.Fatalf("a=%d: %d/%d is %s away, best fraction is %s away",
				a, c, d, dist.FloatString(15), best.FloatString(15))
		}
	}
}
