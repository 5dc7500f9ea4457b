package domain

// CashflowSettings are the user's financing and operating assumptions.
// Percentages are plain numbers (6 means 6%).
type CashflowSettings struct {
	InterestRate        float64 `json:"interest_rate"`
	LoanTermYears       float64 `json:"loan_term_years"`
	DownPaymentPercent  float64 `json:"down_payment_percent"`
	TaxInsurancePercent float64 `json:"tax_insurance_percent"`
	VacancyPercent      float64 `json:"vacancy_percent"`
	CapexPercent        float64 `json:"capex_percent"`
	ManagementPercent   float64 `json:"management_percent"`
	RehabAmount         float64 `json:"rehab_amount"`
}

// CashflowResult is derived on demand and never stored.
type CashflowResult struct {
	MortgagePayment   float64 `json:"mortgage_payment"`
	TaxInsurance      float64 `json:"tax_insurance"`
	Vacancy           float64 `json:"vacancy"`
	Capex             float64 `json:"capex"`
	Management        float64 `json:"management"`
	TotalExpenses     float64 `json:"total_expenses"`
	MonthlyCashflow   float64 `json:"monthly_cashflow"`
	AnnualCashflow    float64 `json:"annual_cashflow"`
	InitialInvestment float64 `json:"initial_investment"`
	CashOnCashReturn  float64 `json:"cash_on_cash_return"`
}

type SortKey string

const (
	SortByPrice        SortKey = "price"
	SortByRatio        SortKey = "ratio"
	SortByCashflow     SortKey = "cashflow"
	SortByScore        SortKey = "score"
	SortByBeds         SortKey = "beds"
	SortByBaths        SortKey = "baths"
	SortByArea         SortKey = "area"
	SortByDaysOnMarket SortKey = "days_on_market"
	SortByRent         SortKey = "rent"
	SortByAddress      SortKey = "address"
)

// Computed reports whether the key depends on settings or overrides.
func (k SortKey) Computed() bool {
	switch k {
	case SortByPrice, SortByRatio, SortByCashflow, SortByScore:
		return true
	}
	return false
}

type SortDirection string

const (
	Ascending  SortDirection = "asc"
	Descending SortDirection = "desc"
)

type SortConfig struct {
	Key       SortKey       `json:"key"`
	Direction SortDirection `json:"direction"`
}
