package listings

import (
	"math"
	"strconv"
	"strings"

	"rentcrunch/internal/domain"
)

/********** alias registries (single source of truth) **********/

var listingAliases = map[string][]string{
	"id":          {"id", "zpid", "property_id", "propertyId", "listing_id"},
	"address":     {"address", "full_address", "formatted_address", "streetAddress", "location.address"},
	"url":         {"url", "detailUrl", "detail_url", "href", "permalink"},
	"home_type":   {"home_type", "homeType", "property_type", "propertyType", "type"},
	"rent_source": {"rent_source", "rentSource", "rent.source"},
}

var (
	priceAliases = []string{"price", "list_price", "listPrice", "unformattedPrice", "price.value"}
	rentAliases  = []string{"rent_estimate", "rentEstimate", "rentZestimate", "rent", "rent.value", "estimate"}
	bedAliases   = []string{"bedrooms", "beds", "bed"}
	bathAliases  = []string{"bathrooms", "baths", "bath"}
	areaAliases  = []string{"living_area", "livingArea", "sqft", "area", "building_size.size"}
	domAliases   = []string{"days_on_market", "daysOnMarket", "daysOnZillow", "dom"}
	latAliases   = []string{"latitude", "lat", "coords.lat", "latLong.latitude", "location.lat"}
	lonAliases   = []string{"longitude", "lon", "lng", "coords.lon", "latLong.longitude", "location.lon", "location.lng"}

	countAliases  = []string{"total", "count", "totalResultCount", "total_results", "meta.total"}
	pageEnvelopes = []string{"results", "listings", "properties", "props", "data"}
)

/********** tiny helpers **********/

// lookupAny: safe nested lookup with dot paths on maps.
func lookupAny(m map[string]any, path string) any {
	cur := any(m)
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		v, ok := obj[part]
		if !ok {
			return nil
		}
		cur = v
	}
	return cur
}

// lookupStr returns the string at path or "". Numbers are formatted.
func lookupStr(m map[string]any, path string) string {
	switch v := lookupAny(m, path).(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

// firstNonEmptyAlias: first non-empty string for a named alias set.
func firstNonEmptyAlias(m map[string]any, aliases map[string][]string, key string) string {
	for _, p := range aliases[key] {
		if s := lookupStr(m, p); s != "" {
			return s
		}
	}
	return ""
}

// getFloatFlexible: finite number from several paths (float64/int/string like "$1,250").
// "NaN" and "Inf" strings are skipped like any other unusable value.
func getFloatFlexible(m map[string]any, paths ...string) *float64 {
	for _, k := range paths {
		switch v := lookupAny(m, k).(type) {
		case float64:
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			f := v
			return &f
		case int:
			f := float64(v)
			return &f
		case string:
			s := strings.NewReplacer("$", "", ",", "", " ", "").Replace(v)
			s = strings.TrimSuffix(strings.TrimSuffix(s, "/mo"), "+")
			if s == "" {
				continue
			}
			if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
				return &f
			}
		}
	}
	return nil
}

// firstInt64Flexible: int64 from several paths (float64/int/string).
func firstInt64Flexible(m map[string]any, paths ...string) *int64 {
	for _, k := range paths {
		switch v := lookupAny(m, k).(type) {
		case float64:
			x := int64(v)
			return &x
		case int:
			x := int64(v)
			return &x
		case int64:
			x := v
			return &x
		case string:
			s := strings.TrimSpace(strings.ReplaceAll(v, ",", ""))
			if s == "" {
				continue
			}
			if n, err := strconv.ParseInt(s, 10, 64); err == nil {
				return &n
			}
		}
	}
	return nil
}

func joinNonEmpty(sep string, parts ...string) string {
	var out []string
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return strings.Join(out, sep)
}

/********** listing mapper **********/

// mapListing converts one provider record. ok is false when the record has
// no usable id.
func mapListing(m map[string]any) (domain.Property, bool) {
	id := firstNonEmptyAlias(m, listingAliases, "id")
	if id == "" {
		return domain.Property{}, false
	}

	p := domain.Property{
		ID:       id,
		Address:  mapAddress(m),
		URL:      firstNonEmptyAlias(m, listingAliases, "url"),
		HomeType: strings.ToUpper(firstNonEmptyAlias(m, listingAliases, "home_type")),
	}
	if f := getFloatFlexible(m, priceAliases...); f != nil && *f > 0 {
		p.Price = *f
	}
	if f := getFloatFlexible(m, rentAliases...); f != nil && *f >= 0 {
		p.RentEstimate = *f
		p.RentSource = firstNonEmptyAlias(m, listingAliases, "rent_source")
		if p.RentSource == "" {
			p.RentSource = "listing"
		}
	}
	p.Bedrooms = getFloatFlexible(m, bedAliases...)
	p.Bathrooms = getFloatFlexible(m, bathAliases...)
	p.LivingArea = getFloatFlexible(m, areaAliases...)
	if n := firstInt64Flexible(m, domAliases...); n != nil && *n >= 0 {
		d := int(*n)
		p.DaysOnMarket = &d
	}
	lat, lon := getFloatFlexible(m, latAliases...), getFloatFlexible(m, lonAliases...)
	if lat != nil && lon != nil {
		p.Coords = &domain.Coords{Lat: *lat, Lon: *lon}
	}
	return p, true
}

// mapAddress prefers a single-line address and otherwise composes one from
// its components.
func mapAddress(m map[string]any) string {
	if s := firstNonEmptyAlias(m, listingAliases, "address"); s != "" {
		return s
	}
	street := joinNonEmpty(" ",
		lookupStr(m, "address.line"),
		lookupStr(m, "address.street"),
		lookupStr(m, "address.streetAddress"),
	)
	stateZip := joinNonEmpty(" ",
		firstStr(m, "address.state", "address.state_code", "state"),
		firstStr(m, "address.zip", "address.zipcode", "address.postal_code", "zipcode"),
	)
	return joinNonEmpty(", ",
		street,
		firstStr(m, "address.city", "city"),
		stateZip,
	)
}

func firstStr(m map[string]any, paths ...string) string {
	for _, p := range paths {
		if s := lookupStr(m, p); s != "" {
			return s
		}
	}
	return ""
}
