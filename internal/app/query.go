package app

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"rentcrunch/internal/domain"
)

// addressLike matches free text that starts with a house number, e.g.
// "123 Main St, Springfield". Such queries go to the single-property lookup.
var addressLike = regexp.MustCompile(`^\d+[A-Za-z]?\s+\S+`)

func IsAddressLike(location string) bool {
	return addressLike.MatchString(strings.TrimSpace(location))
}

// ParseAmount parses user-typed numeric filter text such as "$300,000".
// Empty text means "no filter".
func ParseAmount(field, text string) (*float64, error) {
	t := strings.TrimSpace(text)
	if t == "" {
		return nil, nil
	}
	t = strings.NewReplacer("$", "", ",", "", " ", "").Replace(t)
	v, err := strconv.ParseFloat(t, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, fmt.Errorf("%w: %s must be a number, got %q", domain.ErrInvalidInput, field, text)
	}
	if v < 0 {
		return nil, fmt.Errorf("%w: %s must not be negative", domain.ErrInvalidInput, field)
	}
	return &v, nil
}

// ParseFilters builds Filters from raw text fields.
func ParseFilters(minPrice, maxPrice, minBeds, minBaths string, homeTypes []string) (domain.Filters, error) {
	var f domain.Filters
	var err error
	if f.MinPrice, err = ParseAmount("min price", minPrice); err != nil {
		return domain.Filters{}, err
	}
	if f.MaxPrice, err = ParseAmount("max price", maxPrice); err != nil {
		return domain.Filters{}, err
	}
	if f.MinBeds, err = ParseAmount("beds", minBeds); err != nil {
		return domain.Filters{}, err
	}
	if f.MinBaths, err = ParseAmount("baths", minBaths); err != nil {
		return domain.Filters{}, err
	}
	for _, t := range homeTypes {
		if t = strings.TrimSpace(t); t != "" {
			f.HomeTypes = append(f.HomeTypes, t)
		}
	}
	return f, nil
}

// NormalizeQuery trims and validates a search before anything is fetched.
func NormalizeQuery(q domain.SearchQuery) (domain.SearchQuery, error) {
	q.Location = strings.Join(strings.Fields(q.Location), " ")
	if q.Location == "" {
		return domain.SearchQuery{}, fmt.Errorf("%w: location is required", domain.ErrInvalidInput)
	}
	f := q.Filters
	for name, v := range map[string]*float64{
		"min price": f.MinPrice, "max price": f.MaxPrice, "beds": f.MinBeds, "baths": f.MinBaths,
	} {
		if v != nil && (*v < 0 || math.IsNaN(*v) || math.IsInf(*v, 0)) {
			return domain.SearchQuery{}, fmt.Errorf("%w: %s must be a non-negative number", domain.ErrInvalidInput, name)
		}
	}
	if f.MinPrice != nil && f.MaxPrice != nil && *f.MinPrice > *f.MaxPrice {
		return domain.SearchQuery{}, fmt.Errorf("%w: min price exceeds max price", domain.ErrInvalidInput)
	}
	return q, nil
}

// ValidateSettings rejects negative or non-finite assumptions.
func ValidateSettings(s domain.CashflowSettings) error {
	for name, v := range map[string]float64{
		"interest rate": s.InterestRate, "loan term": s.LoanTermYears, "down payment": s.DownPaymentPercent,
		"tax and insurance": s.TaxInsurancePercent, "vacancy": s.VacancyPercent, "capex": s.CapexPercent,
		"management": s.ManagementPercent, "rehab": s.RehabAmount,
	} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s must be a non-negative number", domain.ErrInvalidInput, name)
		}
	}
	return nil
}

// PageCount is the number of pages needed for total results.
func PageCount(total, pageSize int) int {
	if total <= 0 || pageSize <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}
