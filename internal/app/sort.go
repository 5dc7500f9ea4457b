package app

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"rentcrunch/internal/domain"
)

var sortKeys = map[domain.SortKey]struct{}{
	domain.SortByPrice: {}, domain.SortByRatio: {}, domain.SortByCashflow: {}, domain.SortByScore: {},
	domain.SortByBeds: {}, domain.SortByBaths: {}, domain.SortByArea: {}, domain.SortByDaysOnMarket: {},
	domain.SortByRent: {}, domain.SortByAddress: {},
}

// ParseSortKey validates a user-supplied sort key, case-insensitively.
func ParseSortKey(s string) (domain.SortKey, error) {
	k := domain.SortKey(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := sortKeys[k]; !ok {
		return "", fmt.Errorf("%w: unknown sort key %q", domain.ErrInvalidInput, s)
	}
	return k, nil
}

// ParseSortDirection accepts asc/desc (or their long forms); empty means ascending.
func ParseSortDirection(s string) (domain.SortDirection, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "asc", "ascending":
		return domain.Ascending, nil
	case "desc", "descending":
		return domain.Descending, nil
	}
	return "", fmt.Errorf("%w: unknown sort direction %q", domain.ErrInvalidInput, s)
}

type sortEntry struct {
	p   domain.Property
	num float64
	str string
}

// SortProperties returns a stably sorted copy of props. Computed keys are
// evaluated on the effective property; raw keys read the stored field.
// Missing values count as the lowest value ascending and the highest
// descending, so they always lead.
func SortProperties(props []domain.Property, cfg domain.SortConfig, ov OverrideReader, s domain.CashflowSettings) []domain.Property {
	entries := make([]sortEntry, len(props))
	desc := cfg.Direction == domain.Descending
	for i, p := range props {
		e := sortEntry{p: p}
		if cfg.Key == domain.SortByAddress {
			e.str = p.Address
		} else {
			v, ok := sortValue(p, cfg.Key, ov, s)
			if !ok || math.IsNaN(v) {
				v = math.Inf(-1)
				if desc {
					v = math.Inf(1)
				}
			}
			e.num = v
		}
		entries[i] = e
	}

	var less func(a, b sortEntry) bool
	if cfg.Key == domain.SortByAddress {
		col := collate.New(language.AmericanEnglish, collate.Loose)
		less = func(a, b sortEntry) bool {
			switch {
			case a.str == "" || b.str == "":
				return a.str == "" && b.str != ""
			case desc:
				return col.CompareString(a.str, b.str) > 0
			default:
				return col.CompareString(a.str, b.str) < 0
			}
		}
	} else if desc {
		less = func(a, b sortEntry) bool { return a.num > b.num }
	} else {
		less = func(a, b sortEntry) bool { return a.num < b.num }
	}

	sort.SliceStable(entries, func(i, j int) bool { return less(entries[i], entries[j]) })

	out := make([]domain.Property, len(entries))
	for i, e := range entries {
		out[i] = e.p
	}
	return out
}

func sortValue(p domain.Property, key domain.SortKey, ov OverrideReader, s domain.CashflowSettings) (float64, bool) {
	if key.Computed() && ov != nil {
		p = ov.Effective(p)
	}
	switch key {
	case domain.SortByPrice:
		return p.Price, true
	case domain.SortByRatio:
		return RentToPrice(p), true
	case domain.SortByCashflow:
		return ComputeCashflow(p, s).MonthlyCashflow, true
	case domain.SortByScore:
		return float64(ComputeScore(p, s, ComputeCashflow(p, s))), true
	case domain.SortByBeds:
		return derefF(p.Bedrooms)
	case domain.SortByBaths:
		return derefF(p.Bathrooms)
	case domain.SortByArea:
		return derefF(p.LivingArea)
	case domain.SortByDaysOnMarket:
		if p.DaysOnMarket == nil {
			return 0, false
		}
		return float64(*p.DaysOnMarket), true
	case domain.SortByRent:
		return p.RentEstimate, true
	}
	return 0, false
}

func derefF(p *float64) (float64, bool) {
	if p == nil {
		return 0, false
	}
	return *p, true
}
