package domain

import "context"

// ListingProvider is the remote listing + rent-estimate source.
type ListingProvider interface {
	CountMatches(ctx context.Context, q SearchQuery) (int, error)
	FetchPage(ctx context.Context, req PageRequest) ([]Property, error)
	// FetchByAddress returns ErrNotFound when the address has no listing.
	FetchByAddress(ctx context.Context, gen Generation, address string) (Property, error)
	// Subscribe registers fn for push updates; the returned func unregisters it.
	Subscribe(fn func(PropertyUpdate)) (unsubscribe func())
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}

// OverrideMirror persists the override map outside the process.
type OverrideMirror interface {
	SaveOverride(ctx context.Context, id string, o Override) error
	DeleteOverride(ctx context.Context, id string) error
	LoadOverrides(ctx context.Context) (map[string]Override, error)
}

type SearchJournal interface {
	// Write paths
	RecordRun(ctx context.Context, run SearchRun) error
	LogMiss(ctx context.Context, runID string, page int, reason string) error

	// Read paths
	ListRuns(ctx context.Context, limit int) ([]SearchRun, error)
}
