package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ytmon/internal/models"
	"ytmon/internal/source"
	"ytmon/internal/structures"
)

// CooldownError reports a refresh rejected because the previous one was
// too recent. RetryAfter is always positive.
type CooldownError struct {
	RetryAfter time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("refresh on cooldown, retry after %s", e.RetryAfter.Round(time.Second))
}

// RefreshGate rate-limits on-demand recommended fetches. Fetches run
// one at a time under refreshMu; state reads take only stateMu so they
// never block behind a slow fetch.
type RefreshGate struct {
	cooldown time.Duration
	src      source.Source

	refreshMu sync.Mutex

	stateMu     sync.Mutex
	lastRefresh time.Time

	now func() time.Time
}

func NewRefreshGate(conf *structures.Config, src source.Source) *RefreshGate {
	return &RefreshGate{
		cooldown: time.Duration(conf.Monitor.RefreshCooldown) * time.Second,
		src:      src,
		now:      time.Now,
	}
}

// TryRefresh performs a recommended fetch if the cooldown has elapsed.
// The cooldown timestamp advances only on a successful fetch, so a
// failed attempt can be retried immediately.
func (g *RefreshGate) TryRefresh(ctx context.Context) ([]*models.WatchEvent, error) {
	g.refreshMu.Lock()
	defer g.refreshMu.Unlock()

	if remaining := g.RetryAfter(); remaining > 0 {
		return nil, &CooldownError{RetryAfter: remaining}
	}

	videos, err := g.src.FetchRecommended(ctx)
	if err != nil {
		return nil, err
	}

	g.stateMu.Lock()
	g.lastRefresh = g.now()
	g.stateMu.Unlock()
	return videos, nil
}

// RetryAfter returns how long until the next refresh is allowed, or
// zero when one is allowed now.
func (g *RefreshGate) RetryAfter() time.Duration {
	g.stateMu.Lock()
	defer g.stateMu.Unlock()

	if g.lastRefresh.IsZero() {
		return 0
	}
	remaining := g.cooldown - g.now().Sub(g.lastRefresh)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// AvailableAt returns the absolute time the next refresh becomes
// allowed. When no cooldown is pending it returns the current time.
func (g *RefreshGate) AvailableAt() time.Time {
	return g.now().Add(g.RetryAfter())
}
