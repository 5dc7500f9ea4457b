package app

import "rentcrunch/internal/domain"

// Analysis is the per-property view served to consumers: effective values
// plus the derived cash flow and score under the given settings.
type Analysis struct {
	Property    domain.Property       `json:"property"`
	Override    *domain.Override      `json:"override,omitempty"`
	Cashflow    domain.CashflowResult `json:"cashflow"`
	Score       int                   `json:"score"`
	RentToPrice float64               `json:"rent_to_price"`
}

// Analyze computes the analysis of p. ov may be nil.
func Analyze(p domain.Property, ov *OverrideStore, s domain.CashflowSettings) Analysis {
	a := Analysis{Property: ov.Effective(p)}
	if o, ok := ov.get(p.ID); ok {
		a.Override = &o
	}
	a.Cashflow = ComputeCashflow(a.Property, s)
	a.Score = ComputeScore(a.Property, s, a.Cashflow)
	a.RentToPrice = RentToPrice(a.Property)
	return a
}

func AnalyzeAll(props []domain.Property, ov *OverrideStore, s domain.CashflowSettings) []Analysis {
	out := make([]Analysis, len(props))
	for i, p := range props {
		out[i] = Analyze(p, ov, s)
	}
	return out
}
