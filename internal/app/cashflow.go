package app

import (
	"math"

	"rentcrunch/internal/domain"
)

const (
	monthsPerYear = 12.0
	percent       = 100.0

	// ClosingCostRate is the flat share of price assumed for closing costs.
	ClosingCostRate = 0.03
)

// MonthlyMortgagePayment is the fixed-rate amortized payment on the financed
// part of price. A non-positive loan term is treated as an all-cash purchase.
func MonthlyMortgagePayment(price float64, s domain.CashflowSettings) float64 {
	loanAmount := price * (1 - s.DownPaymentPercent/percent)
	n := s.LoanTermYears * monthsPerYear
	if n <= 0 {
		return 0
	}
	monthlyRate := s.InterestRate / percent / monthsPerYear
	if monthlyRate == 0 {
		return loanAmount / n
	}
	power := math.Pow(1+monthlyRate, n)
	return loanAmount * (monthlyRate * power) / (power - 1)
}

// EstimatedClosingCosts is the flat closing-cost allowance for price.
func EstimatedClosingCosts(price float64) float64 {
	return price * ClosingCostRate
}

// ComputeCashflow breaks down the monthly and annual cash flow of p.
// Callers pass the effective property (overrides already applied).
// Cash-on-cash return falls back to 0 when the initial investment is not
// positive or the quotient is not finite.
func ComputeCashflow(p domain.Property, s domain.CashflowSettings) domain.CashflowResult {
	price, rent := p.Price, p.RentEstimate

	r := domain.CashflowResult{
		MortgagePayment: MonthlyMortgagePayment(price, s),
		TaxInsurance:    price * (s.TaxInsurancePercent / percent) / monthsPerYear,
		Vacancy:         rent * (s.VacancyPercent / percent),
		Capex:           rent * (s.CapexPercent / percent),
		Management:      rent * (s.ManagementPercent / percent),
	}
	r.TotalExpenses = r.MortgagePayment + r.TaxInsurance + r.Vacancy + r.Capex + r.Management
	r.MonthlyCashflow = rent - r.TotalExpenses
	r.AnnualCashflow = r.MonthlyCashflow * monthsPerYear
	r.InitialInvestment = price*(s.DownPaymentPercent/percent) + EstimatedClosingCosts(price) + s.RehabAmount

	if r.InitialInvestment > 0 {
		coc := r.AnnualCashflow / r.InitialInvestment * percent
		if !math.IsNaN(coc) && !math.IsInf(coc, 0) {
			r.CashOnCashReturn = coc
		}
	}
	return r
}

// RentToPrice is monthly rent over price, 0 when price is not positive.
func RentToPrice(p domain.Property) float64 {
	if p.Price <= 0 {
		return 0
	}
	return p.RentEstimate / p.Price
}
