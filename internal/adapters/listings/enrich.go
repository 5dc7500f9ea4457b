package listings

import (
	"context"
	"fmt"
	"net/url"

	"github.com/rs/zerolog/log"

	"rentcrunch/internal/domain"
)

type rentEstimate struct {
	Rent float64 `json:"rent"`
}

func rentKey(id string) string { return "rent:" + id }

// enrichAsync looks up the dedicated rent estimate for p and pushes the
// refined property. It stops quietly when ctx is cancelled.
func (c *Client) enrichAsync(ctx context.Context, gen domain.Generation, p domain.Property) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := c.enrich.Acquire(ctx, 1); err != nil {
			return
		}
		defer c.enrich.Release(1)

		rent, err := c.RentEstimate(ctx, p.ID)
		if err != nil {
			if ctx.Err() == nil {
				log.Debug().Err(err).Str("id", p.ID).Msg("rent estimate unavailable")
			}
			return
		}
		p.RentEstimate = rent
		p.RentSource = domain.RentSourceEstimate
		c.push(domain.PropertyUpdate{Generation: gen, Property: p})
	}()
}

// RentEstimate returns the provider's rent estimate for a listing id, served
// from cache when available.
func (c *Client) RentEstimate(ctx context.Context, id string) (float64, error) {
	if c.cache != nil {
		var cached rentEstimate
		if ok, err := c.cache.Get(ctx, rentKey(id), &cached); err == nil && ok {
			return cached.Rent, nil
		}
	}

	var body map[string]any
	if err := c.get(ctx, "rent_estimate", c.base+"/properties/"+url.PathEscape(id)+"/rent-estimate", &body); err != nil {
		return 0, fmt.Errorf("rent estimate %s: %w", id, err)
	}
	rent := getFloatFlexible(body, rentAliases...)
	if rent == nil || *rent < 0 {
		return 0, fmt.Errorf("rent estimate %s: no usable value", id)
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, rentKey(id), rentEstimate{Rent: *rent}, c.cacheTTL); err != nil {
			log.Warn().Err(err).Str("id", id).Msg("rent cache set failed")
		}
	}
	return *rent, nil
}
