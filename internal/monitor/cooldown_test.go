package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ytmon/internal/models"
	"ytmon/internal/structures"
	"ytmon/internal/testutil/sourcemock"
)

func gateConfig() *structures.Config {
	return &structures.Config{
		Monitor: structures.MonitorConfig{RefreshCooldown: 600},
	}
}

func TestRefreshGate_FirstRefreshAllowed(t *testing.T) {
	src := &sourcemock.MockSource{
		RecommendedFn: func(ctx context.Context) ([]*models.WatchEvent, error) {
			return []*models.WatchEvent{{VideoID: "r1"}}, nil
		},
	}
	g := NewRefreshGate(gateConfig(), src)

	assert.Equal(t, time.Duration(0), g.RetryAfter())

	videos, err := g.TryRefresh(context.Background())
	require.NoError(t, err)
	assert.Len(t, videos, 1)
	assert.Equal(t, 1, src.RecommendedCalls)
}

func TestRefreshGate_CooldownRejects(t *testing.T) {
	src := &sourcemock.MockSource{}
	g := NewRefreshGate(gateConfig(), src)
	base := time.Now()
	g.now = func() time.Time { return base }

	_, err := g.TryRefresh(context.Background())
	require.NoError(t, err)

	g.now = func() time.Time { return base.Add(100 * time.Second) }
	_, err = g.TryRefresh(context.Background())
	var cdErr *CooldownError
	require.ErrorAs(t, err, &cdErr)
	assert.Equal(t, 500*time.Second, cdErr.RetryAfter)
	assert.Equal(t, 1, src.RecommendedCalls)
}

func TestRefreshGate_RetryAfterDecreases(t *testing.T) {
	g := NewRefreshGate(gateConfig(), &sourcemock.MockSource{})
	base := time.Now()
	g.now = func() time.Time { return base }

	_, err := g.TryRefresh(context.Background())
	require.NoError(t, err)

	g.now = func() time.Time { return base.Add(100 * time.Second) }
	first := g.RetryAfter()
	g.now = func() time.Time { return base.Add(200 * time.Second) }
	second := g.RetryAfter()

	assert.Less(t, second, first)
}

func TestRefreshGate_AllowedAgainAfterCooldown(t *testing.T) {
	src := &sourcemock.MockSource{}
	g := NewRefreshGate(gateConfig(), src)
	base := time.Now()
	g.now = func() time.Time { return base }

	_, err := g.TryRefresh(context.Background())
	require.NoError(t, err)

	g.now = func() time.Time { return base.Add(600 * time.Second) }
	assert.Equal(t, time.Duration(0), g.RetryAfter())
	_, err = g.TryRefresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, src.RecommendedCalls)
}

func TestRefreshGate_FailedFetchDoesNotStartCooldown(t *testing.T) {
	src := &sourcemock.MockSource{
		RecommendedFn: func(ctx context.Context) ([]*models.WatchEvent, error) {
			return nil, errors.New("connection refused")
		},
	}
	g := NewRefreshGate(gateConfig(), src)

	_, err := g.TryRefresh(context.Background())
	require.Error(t, err)
	assert.Equal(t, time.Duration(0), g.RetryAfter())
}

func TestRefreshGate_ConcurrentCallersSingleFetch(t *testing.T) {
	var fetches int
	var mu sync.Mutex
	src := &sourcemock.MockSource{
		RecommendedFn: func(ctx context.Context) ([]*models.WatchEvent, error) {
			mu.Lock()
			fetches++
			mu.Unlock()
			time.Sleep(20 * time.Millisecond)
			return nil, nil
		},
	}
	g := NewRefreshGate(gateConfig(), src)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = g.TryRefresh(context.Background())
		}(i)
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, fetches, "second caller must hit the cooldown, not fetch")

	var cooldowns int
	for _, err := range errs {
		var cdErr *CooldownError
		if errors.As(err, &cdErr) {
			cooldowns++
		}
	}
	assert.Equal(t, 1, cooldowns)
}

func TestRefreshGate_AvailableAt(t *testing.T) {
	g := NewRefreshGate(gateConfig(), &sourcemock.MockSource{})
	base := time.Now()
	g.now = func() time.Time { return base }

	assert.Equal(t, base, g.AvailableAt())

	_, err := g.TryRefresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, base.Add(600*time.Second), g.AvailableAt())
}

func TestCooldownError_Message(t *testing.T) {
	err := &CooldownError{RetryAfter: 90 * time.Second}
	assert.Contains(t, err.Error(), "1m30s")
}
