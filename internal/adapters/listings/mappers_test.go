package listings

import (
	"encoding/json"
	"testing"
)

func TestGetFloatFlexible(t *testing.T) {
	cases := []struct {
		in   any
		want float64
	}{
		{"$1,250/mo", 1250},
		{"300,000", 300000},
		{"2+", 2},
		{1500.5, 1500.5},
	}
	for _, c := range cases {
		got := getFloatFlexible(map[string]any{"v": c.in}, "v")
		if got == nil || *got != c.want {
			t.Fatalf("getFloatFlexible(%v) = %v, want %v", c.in, got, c.want)
		}
	}
	if got := getFloatFlexible(map[string]any{"v": "n/a"}, "v"); got != nil {
		t.Fatalf("expected nil for unparsable text, got %v", *got)
	}
}

func TestMapListing_ComposesAddress(t *testing.T) {
	p, ok := mapListing(map[string]any{
		"property_id": "p1",
		"address": map[string]any{
			"line": "12 Pine Rd", "city": "Boise", "state_code": "ID", "postal_code": "83702",
		},
		"list_price":     "425000",
		"days_on_market": 12.0,
		"lat":            43.6,
		"lon":            -116.2,
		"propertyType":   "single_family",
	})
	if !ok {
		t.Fatalf("expected listing to map")
	}
	if p.Address != "12 Pine Rd, Boise, ID 83702" {
		t.Fatalf("address = %q", p.Address)
	}
	if p.Price != 425000 || p.DaysOnMarket == nil || *p.DaysOnMarket != 12 {
		t.Fatalf("unexpected listing: %+v", p)
	}
	if p.Coords == nil || p.Coords.Lat != 43.6 {
		t.Fatalf("coords = %+v", p.Coords)
	}
	if p.HomeType != "SINGLE_FAMILY" {
		t.Fatalf("home type = %q", p.HomeType)
	}
	if p.RentEstimate != 0 || p.RentSource != "" {
		t.Fatalf("expected no rent, got %v/%q", p.RentEstimate, p.RentSource)
	}
}

func TestMapListing_RequiresID(t *testing.T) {
	if _, ok := mapListing(map[string]any{"price": 1}); ok {
		t.Fatalf("expected listing without id to be rejected")
	}
}

func TestMapListing_SkipsNonFiniteNumbers(t *testing.T) {
	p, ok := mapListing(map[string]any{
		"id":            "x",
		"price":         "Infinity",
		"list_price":    "$310,000",
		"rent_estimate": "NaN",
		"beds":          "NaN",
		"baths":         "-Inf",
		"sqft":          "inf",
		"lat":           "NaN",
		"lon":           -97.7,
	})
	if !ok {
		t.Fatalf("expected listing to map")
	}
	if p.Price != 310000 {
		t.Fatalf("price = %v, want fallback to list_price", p.Price)
	}
	if p.RentEstimate != 0 || p.RentSource != "" {
		t.Fatalf("rent = %v/%q, want none", p.RentEstimate, p.RentSource)
	}
	if p.Bedrooms != nil || p.Bathrooms != nil || p.LivingArea != nil || p.Coords != nil {
		t.Fatalf("non-finite optionals kept: %+v", p)
	}
	if _, err := json.Marshal(p); err != nil {
		t.Fatalf("marshal mapped listing: %v", err)
	}
}
