package redisad

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"rentcrunch/internal/domain"
)

// OverridesKey is the hash holding one JSON-encoded override per property id.
const OverridesKey = KeyPrefix + "overrides"

var _ domain.OverrideMirror = (*Cache)(nil)

func (r *Cache) SaveOverride(ctx context.Context, id string, o domain.Override) error {
	if o.IsZero() {
		return r.DeleteOverride(ctx, id)
	}
	b, err := json.Marshal(o)
	if err != nil {
		return err
	}
	return r.c.HSet(ctx, OverridesKey, id, b).Err()
}

func (r *Cache) DeleteOverride(ctx context.Context, id string) error {
	return r.c.HDel(ctx, OverridesKey, id).Err()
}

// LoadOverrides returns every mirrored override. Undecodable entries are
// skipped.
func (r *Cache) LoadOverrides(ctx context.Context) (map[string]domain.Override, error) {
	raw, err := r.c.HGetAll(ctx, OverridesKey).Result()
	if err != nil {
		return nil, fmt.Errorf("load overrides: %w", err)
	}
	out := make(map[string]domain.Override, len(raw))
	for id, v := range raw {
		var o domain.Override
		if err := json.Unmarshal([]byte(v), &o); err != nil {
			log.Warn().Err(err).Str("id", id).Msg("skipping malformed override")
			continue
		}
		if !o.IsZero() {
			out[id] = o
		}
	}
	return out, nil
}
