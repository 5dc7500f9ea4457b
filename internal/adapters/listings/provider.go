package listings

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/rs/zerolog/log"

	"rentcrunch/internal/domain"
)

var _ domain.ListingProvider = (*Client)(nil)

func (c *Client) CountMatches(ctx context.Context, q domain.SearchQuery) (int, error) {
	var body map[string]any
	if err := c.get(ctx, "count", c.base+"/listings/count?"+queryValues(q).Encode(), &body); err != nil {
		return 0, fmt.Errorf("count listings: %w", err)
	}
	n := firstInt64Flexible(body, countAliases...)
	if n == nil {
		return 0, fmt.Errorf("count listings: no total in response")
	}
	return int(*n), nil
}

// FetchPage returns one page of listings. Listings without a dedicated rent
// estimate are refined in the background and pushed to subscribers tagged
// with req.Generation.
func (c *Client) FetchPage(ctx context.Context, req domain.PageRequest) ([]domain.Property, error) {
	v := queryValues(req.Query)
	v.Set("page", strconv.Itoa(req.Page))
	v.Set("page_size", strconv.Itoa(req.PageSize))

	var body any
	if err := c.get(ctx, "page", c.base+"/listings?"+v.Encode(), &body); err != nil {
		return nil, fmt.Errorf("fetch page %d: %w", req.Page, err)
	}
	items := listingItems(body)
	out := make([]domain.Property, 0, len(items))
	for _, it := range items {
		p, ok := mapListing(it)
		if !ok {
			log.Debug().Int("page", req.Page).Msg("skipping listing without id")
			continue
		}
		out = append(out, p)
	}
	for _, p := range out {
		if !p.Refined() {
			c.enrichAsync(ctx, req.Generation, p)
		}
	}
	return out, nil
}

func (c *Client) FetchByAddress(ctx context.Context, gen domain.Generation, address string) (domain.Property, error) {
	var body map[string]any
	err := c.get(ctx, "lookup", c.base+"/properties/lookup?"+url.Values{"address": {address}}.Encode(), &body)
	if errors.Is(err, ErrNotFound) {
		return domain.Property{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Property{}, fmt.Errorf("lookup address: %w", err)
	}
	p, ok := mapListing(body)
	if !ok {
		return domain.Property{}, domain.ErrNotFound
	}
	if !p.Refined() {
		c.enrichAsync(ctx, gen, p)
	}
	return p, nil
}

func (c *Client) Subscribe(fn func(domain.PropertyUpdate)) func() {
	c.subMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.subMu.Unlock()
	return func() {
		c.subMu.Lock()
		delete(c.subs, id)
		c.subMu.Unlock()
	}
}

// Wait blocks until in-flight enrichment goroutines finish.
func (c *Client) Wait() { c.wg.Wait() }

func (c *Client) push(u domain.PropertyUpdate) {
	c.subMu.RLock()
	fns := make([]func(domain.PropertyUpdate), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.subMu.RUnlock()
	for _, fn := range fns {
		fn(u)
	}
}

func queryValues(q domain.SearchQuery) url.Values {
	v := url.Values{}
	v.Set("location", q.Location)
	f := q.Filters
	setFloat(v, "min_price", f.MinPrice)
	setFloat(v, "max_price", f.MaxPrice)
	setFloat(v, "beds_min", f.MinBeds)
	setFloat(v, "baths_min", f.MinBaths)
	for _, t := range f.HomeTypes {
		v.Add("home_type", t)
	}
	return v
}

func setFloat(v url.Values, key string, f *float64) {
	if f != nil {
		v.Set(key, strconv.FormatFloat(*f, 'f', -1, 64))
	}
}

// listingItems accepts either a bare array or an envelope object.
func listingItems(body any) []map[string]any {
	var raw []any
	switch t := body.(type) {
	case []any:
		raw = t
	case map[string]any:
		for _, k := range pageEnvelopes {
			if arr, ok := lookupAny(t, k).([]any); ok {
				raw = arr
				break
			}
		}
	}
	out := make([]map[string]any, 0, len(raw))
	for _, it := range raw {
		if m, ok := it.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}
