package quotes

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"paperbroker/internal/models"
)

// GreeksInput is the option observation a greeks estimator prices against.
type GreeksInput struct {
	Kind             models.InstrumentKind
	Strike           float64
	UnderlyingPrice  float64
	DaysToExpiration int
	Price            float64
	Dividend         float64
}

// GreeksEstimator computes raw option greeks. Any value may be left nil when
// it cannot be derived.
type GreeksEstimator interface {
	Compute(in GreeksInput) models.Greeks
}

// BlackScholes estimates greeks from a European Black-Scholes model, backing
// out implied volatility from the observed price by bisection.
// DividendYield applies when the input carries no dividend of its own.
type BlackScholes struct {
	RiskFreeRate  float64
	DividendYield float64
}

const (
	ivLow        = 1e-4
	ivHigh       = 5.0
	ivTolerance  = 1e-6
	ivIterations = 200
	daysPerYear  = 365.0
)

// Compute implements GreeksEstimator.
func (b BlackScholes) Compute(in GreeksInput) models.Greeks {
	if !in.Kind.IsOption() || in.DaysToExpiration <= 0 || in.Strike <= 0 || in.UnderlyingPrice <= 0 || in.Price <= 0 {
		return models.Greeks{}
	}
	t := float64(in.DaysToExpiration) / daysPerYear
	call := in.Kind == models.KindCall
	div := in.Dividend
	if div == 0 {
		div = b.DividendYield
	}

	sigma, ok := b.impliedVol(call, in.UnderlyingPrice, in.Strike, t, div, in.Price)
	if !ok {
		return models.Greeks{}
	}

	n := distuv.UnitNormal
	s, k, r, q := in.UnderlyingPrice, in.Strike, b.RiskFreeRate, div
	sqrtT := math.Sqrt(t)
	d1 := (math.Log(s/k) + (r-q+sigma*sigma/2)*t) / (sigma * sqrtT)
	d2 := d1 - sigma*sqrtT
	discQ := math.Exp(-q * t)
	discR := math.Exp(-r * t)
	pdf := n.Prob(d1)

	var delta, theta, rho float64
	if call {
		delta = discQ * n.CDF(d1)
		theta = -s*discQ*pdf*sigma/(2*sqrtT) - r*k*discR*n.CDF(d2) + q*s*discQ*n.CDF(d1)
		rho = k * t * discR * n.CDF(d2)
	} else {
		delta = discQ * (n.CDF(d1) - 1)
		theta = -s*discQ*pdf*sigma/(2*sqrtT) + r*k*discR*n.CDF(-d2) - q*s*discQ*n.CDF(-d1)
		rho = -k * t * discR * n.CDF(-d2)
	}
	gamma := discQ * pdf / (s * sigma * sqrtT)
	vega := s * discQ * pdf * sqrtT / 100
	theta /= daysPerYear
	rho /= 100

	return models.Greeks{
		Delta: &delta,
		IV:    &sigma,
		Gamma: &gamma,
		Vega:  &vega,
		Theta: &theta,
		Rho:   &rho,
	}
}

func (b BlackScholes) price(call bool, s, k, t, q, sigma float64) float64 {
	n := distuv.UnitNormal
	sqrtT := math.Sqrt(t)
	d1 := (math.Log(s/k) + (b.RiskFreeRate-q+sigma*sigma/2)*t) / (sigma * sqrtT)
	d2 := d1 - sigma*sqrtT
	if call {
		return s*math.Exp(-q*t)*n.CDF(d1) - k*math.Exp(-b.RiskFreeRate*t)*n.CDF(d2)
	}
	return k*math.Exp(-b.RiskFreeRate*t)*n.CDF(-d2) - s*math.Exp(-q*t)*n.CDF(-d1)
}

// impliedVol finds sigma with price(sigma) == target. The option price is
// monotonic in sigma, so bisection converges whenever the target is
// bracketed.
func (b BlackScholes) impliedVol(call bool, s, k, t, q, target float64) (float64, bool) {
	lo, hi := ivLow, ivHigh
	if target < b.price(call, s, k, t, q, lo) || target > b.price(call, s, k, t, q, hi) {
		return 0, false
	}
	for i := 0; i < ivIterations; i++ {
		mid := (lo + hi) / 2
		if b.price(call, s, k, t, q, mid) < target {
			lo = mid
		} else {
			hi = mid
		}
		if hi-lo < ivTolerance {
			break
		}
	}
	return (lo + hi) / 2, true
}
