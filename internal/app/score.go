package app

import (
	"math"

	"rentcrunch/internal/domain"
)

// Score weights. The positive weights sum to 100; penalties only pull down.
const (
	weightCashOnCash  = 50.0
	weightCashflow    = 20.0
	weightRentRatio   = 20.0
	weightDownPayment = 10.0
	penaltyMarket     = 5.0
	penaltyRehab      = 5.0
)

// Normalization ranges for each factor.
const (
	cocFloor, cocCeil           = -10.0, 20.0 // percent
	cashflowFloor, cashflowCeil = -0.5, 0.5   // monthly cash flow / rent
	ratioCeil                   = 1.5         // monthly rent / price, in percent
	marketDaysCeil              = 365.0
	rehabCeil                   = 100000.0
)

// ComputeScore returns the desirability score of p in [0,100]. cf must come
// from ComputeCashflow on the same effective property and settings.
func ComputeScore(p domain.Property, s domain.CashflowSettings, cf domain.CashflowResult) int {
	if !(p.Price > 0) || !(p.RentEstimate > 0) {
		return 0
	}

	score := weightCashOnCash*unit(cf.CashOnCashReturn, cocFloor, cocCeil) +
		weightCashflow*unit(cf.MonthlyCashflow/p.RentEstimate, cashflowFloor, cashflowCeil) +
		weightRentRatio*unit(RentToPrice(p)*percent, 0, ratioCeil) +
		weightDownPayment*unit(s.DownPaymentPercent, 0, percent)

	if p.DaysOnMarket != nil {
		score -= penaltyMarket * unit(float64(*p.DaysOnMarket), 0, marketDaysCeil)
	}
	score -= penaltyRehab * unit(s.RehabAmount, 0, rehabCeil)

	return int(math.Round(clamp(score, 0, 100)))
}

// unit maps v from [lo,hi] onto [0,1], clipping outside values. NaN maps to 0.
func unit(v, lo, hi float64) float64 {
	if math.IsNaN(v) || hi <= lo {
		return 0
	}
	return (clamp(v, lo, hi) - lo) / (hi - lo)
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
