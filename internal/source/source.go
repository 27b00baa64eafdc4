package source

import (
	"context"
	"errors"

	"ytmon/internal/models"
)

// Failure taxonomy for upstream fetches. Everything else returned by a
// fetch is a transient transport or parse error: log it and wait for
// the next tick.
var (
	// ErrAuthInvalid means the cookie credentials are missing, empty or
	// rejected. Surfaced to status readers; polling keeps trying since
	// the cookie file may be refreshed externally.
	ErrAuthInvalid = errors.New("source: credentials invalid")

	// ErrRateLimited means the upstream answered 429. No update this
	// cycle, no immediate retry.
	ErrRateLimited = errors.New("source: rate limited")
)

// Subscriptions is one raw membership capture.
type Subscriptions struct {
	TotalCount int
	Channels   []*models.Channel
}

// Source yields raw watch events and subscription snapshots on demand.
// The core never cares how they were obtained.
type Source interface {
	FetchHistory(ctx context.Context) ([]*models.WatchEvent, error)
	FetchSubscriptions(ctx context.Context) (*Subscriptions, error)
	FetchRecommended(ctx context.Context) ([]*models.WatchEvent, error)
}
