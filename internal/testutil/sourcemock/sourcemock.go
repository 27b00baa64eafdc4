// Package sourcemock holds the source.Source mock. It lives apart from
// testutil so that source's own tests can import testutil without an
// import cycle.
package sourcemock

import (
	"context"
	"sync"

	"ytmon/internal/models"
	"ytmon/internal/source"
)

// MockSource implements source.Source with injectable func fields.
type MockSource struct {
	HistoryFn       func(ctx context.Context) ([]*models.WatchEvent, error)
	SubscriptionsFn func(ctx context.Context) (*source.Subscriptions, error)
	RecommendedFn   func(ctx context.Context) ([]*models.WatchEvent, error)

	mu               sync.Mutex
	HistoryCalls     int
	SubsCalls        int
	RecommendedCalls int
}

func (m *MockSource) FetchHistory(ctx context.Context) ([]*models.WatchEvent, error) {
	m.mu.Lock()
	m.HistoryCalls++
	m.mu.Unlock()
	if m.HistoryFn != nil {
		return m.HistoryFn(ctx)
	}
	return nil, nil
}

func (m *MockSource) FetchSubscriptions(ctx context.Context) (*source.Subscriptions, error) {
	m.mu.Lock()
	m.SubsCalls++
	m.mu.Unlock()
	if m.SubscriptionsFn != nil {
		return m.SubscriptionsFn(ctx)
	}
	return &source.Subscriptions{}, nil
}

func (m *MockSource) FetchRecommended(ctx context.Context) ([]*models.WatchEvent, error) {
	m.mu.Lock()
	m.RecommendedCalls++
	m.mu.Unlock()
	if m.RecommendedFn != nil {
		return m.RecommendedFn(ctx)
	}
	return nil, nil
}
