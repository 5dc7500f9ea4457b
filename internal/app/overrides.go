package app

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"rentcrunch/internal/domain"
)

// OverrideReader resolves the effective values of a property.
type OverrideReader interface {
	Effective(p domain.Property) domain.Property
}

// OverrideStore holds user price/rent overrides keyed by property id. The
// in-memory map is authoritative; the mirror is written through best-effort.
type OverrideStore struct {
	writeMu sync.Mutex // orders mirror writes with map writes
	mu      sync.RWMutex
	m       map[string]domain.Override
	mirror  domain.OverrideMirror
}

func NewOverrideStore(mirror domain.OverrideMirror) *OverrideStore {
	return &OverrideStore{m: map[string]domain.Override{}, mirror: mirror}
}

// Load replaces the in-memory map with the mirror's contents.
func (s *OverrideStore) Load(ctx context.Context) error {
	if s.mirror == nil {
		return nil
	}
	loaded, err := s.mirror.LoadOverrides(ctx)
	if err != nil {
		return fmt.Errorf("load overrides: %w", err)
	}
	s.mu.Lock()
	s.m = make(map[string]domain.Override, len(loaded))
	for id, o := range loaded {
		if !o.IsZero() {
			s.m[id] = o
		}
	}
	s.mu.Unlock()
	return nil
}

func (s *OverrideStore) SetPrice(ctx context.Context, id string, price float64) error {
	if !(price > 0) || math.IsInf(price, 0) {
		return fmt.Errorf("%w: price must be a positive number", domain.ErrInvalidInput)
	}
	return s.update(ctx, id, func(o *domain.Override) { o.Price = &price })
}

func (s *OverrideStore) ClearPrice(ctx context.Context, id string) error {
	return s.update(ctx, id, func(o *domain.Override) { o.Price = nil })
}

func (s *OverrideStore) SetRent(ctx context.Context, id string, rent float64) error {
	if !(rent >= 0) || math.IsInf(rent, 0) {
		return fmt.Errorf("%w: rent must be a non-negative number", domain.ErrInvalidInput)
	}
	return s.update(ctx, id, func(o *domain.Override) { o.Rent = &rent })
}

func (s *OverrideStore) ClearRent(ctx context.Context, id string) error {
	return s.update(ctx, id, func(o *domain.Override) { o.Rent = nil })
}

func (s *OverrideStore) update(ctx context.Context, id string, fn func(*domain.Override)) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: property id is required", domain.ErrInvalidInput)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	o := s.m[id]
	fn(&o)
	if o.IsZero() {
		delete(s.m, id)
	} else {
		s.m[id] = o
	}
	s.mu.Unlock()

	if s.mirror == nil {
		return nil
	}
	var err error
	if o.IsZero() {
		err = s.mirror.DeleteOverride(ctx, id)
	} else {
		err = s.mirror.SaveOverride(ctx, id, o)
	}
	if err != nil {
		log.Warn().Err(err).Str("property", id).Msg("override mirror write failed")
	}
	return nil
}

func (s *OverrideStore) Get(id string) (domain.Override, bool) {
	return s.get(id)
}

func (s *OverrideStore) get(id string) (domain.Override, bool) {
	if s == nil {
		return domain.Override{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.m[id]
	return o, ok
}

// Price returns the overridden price of id, if any.
func (s *OverrideStore) Price(id string) (float64, bool) {
	o, ok := s.get(id)
	if !ok || o.Price == nil {
		return 0, false
	}
	return *o.Price, true
}

// Rent returns the overridden rent of id, if any.
func (s *OverrideStore) Rent(id string) (float64, bool) {
	o, ok := s.get(id)
	if !ok || o.Rent == nil {
		return 0, false
	}
	return *o.Rent, true
}

// All returns a copy of the override map.
func (s *OverrideStore) All() map[string]domain.Override {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]domain.Override, len(s.m))
	for id, o := range s.m {
		out[id] = o
	}
	return out
}

// Effective returns p with any override substituted for price and rent.
func (s *OverrideStore) Effective(p domain.Property) domain.Property {
	if s == nil {
		return p
	}
	s.mu.RLock()
	o, ok := s.m[p.ID]
	s.mu.RUnlock()
	if !ok {
		return p
	}
	if o.Price != nil {
		p.Price = *o.Price
	}
	if o.Rent != nil {
		p.RentEstimate = *o.Rent
	}
	return p
}
