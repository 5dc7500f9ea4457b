package domain

type Coords struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// RentSourceEstimate marks a rent figure that came from the provider's
// dedicated rent-estimate lookup rather than the listing itself.
const RentSourceEstimate = "rent_estimate"

// Property is one listing as returned by the provider. Only RentEstimate and
// RentSource change after the initial fetch.
type Property struct {
	ID           string   `json:"id"`
	Address      string   `json:"address"`
	Price        float64  `json:"price"`
	RentEstimate float64  `json:"rent_estimate"`
	RentSource   string   `json:"rent_source,omitempty"`
	Bedrooms     *float64 `json:"bedrooms,omitempty"`
	Bathrooms    *float64 `json:"bathrooms,omitempty"`
	LivingArea   *float64 `json:"living_area,omitempty"`
	DaysOnMarket *int     `json:"days_on_market,omitempty"`
	HomeType     string   `json:"home_type,omitempty"`
	Coords       *Coords  `json:"coords,omitempty"`
	URL          string   `json:"url,omitempty"`
}

// Refined reports whether the rent estimate came from a dedicated lookup.
func (p Property) Refined() bool { return p.RentSource == RentSourceEstimate }

// WithRentFrom copies the mutable fields of src onto p.
func (p Property) WithRentFrom(src Property) Property {
	p.RentEstimate = src.RentEstimate
	p.RentSource = src.RentSource
	return p
}

type Filters struct {
	MinPrice  *float64 `json:"min_price,omitempty"`
	MaxPrice  *float64 `json:"max_price,omitempty"`
	MinBeds   *float64 `json:"min_beds,omitempty"`
	MinBaths  *float64 `json:"min_baths,omitempty"`
	HomeTypes []string `json:"home_types,omitempty"`
}

type SearchQuery struct {
	Location string  `json:"location"`
	Filters  Filters `json:"filters"`
}

// PageRequest asks the provider for one page of a search. Generation is echoed
// back on any push update the page triggers.
type PageRequest struct {
	Generation Generation
	Query      SearchQuery
	Page       int
	PageSize   int
}

// PropertyUpdate is an unsolicited refinement pushed by the provider.
// Generation 0 means the provider could not attribute it to a request.
type PropertyUpdate struct {
	Generation Generation
	Property   Property
}

// Override holds user-entered values that supersede a property's own.
type Override struct {
	Price *float64 `json:"price,omitempty"`
	Rent  *float64 `json:"rent,omitempty"`
}

func (o Override) IsZero() bool { return o.Price == nil && o.Rent == nil }
