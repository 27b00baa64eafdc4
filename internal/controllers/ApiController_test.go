package controllers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ytmon/internal/models"
	"ytmon/internal/monitor"
	"ytmon/internal/services"
	"ytmon/internal/source"
	"ytmon/internal/structures"
	"ytmon/internal/testutil"
	"ytmon/internal/testutil/sourcemock"
)

func controllerConfig() *structures.Config {
	return &structures.Config{
		Source: structures.SourceConfig{
			CookiesPath: "/tmp/cookies.txt",
			Timezone:    "UTC",
		},
		Monitor: structures.MonitorConfig{
			ScanInterval:     60,
			FetchRecommended: true,
			DuplicateMinutes: 5,
			RefreshCooldown:  600,
		},
	}
}

type controllerFixture struct {
	conf      *structures.Config
	ac        *ApiController
	service   services.MonitorServiceInterface
	persister *testutil.MockPersister
	src       *sourcemock.MockSource
	gate      *monitor.RefreshGate
	cache     *testutil.MockCache
	metrics   *testutil.MockMetrics
}

func newControllerFixture(t *testing.T) *controllerFixture {
	t.Helper()
	conf := controllerConfig()
	persister := &testutil.MockPersister{}
	svc, err := services.NewMonitorService(conf, persister)
	require.NoError(t, err)

	src := &sourcemock.MockSource{}
	gate := monitor.NewRefreshGate(conf, src)
	cache := testutil.NewMockCache()
	metrics := &testutil.MockMetrics{}
	ac := NewApiController(conf, &testutil.MockLogger{}, svc, gate, cache, metrics)
	return &controllerFixture{
		conf:      conf,
		ac:        ac,
		service:   svc,
		persister: persister,
		src:       src,
		gate:      gate,
		cache:     cache,
		metrics:   metrics,
	}
}

func postIngest(fx *controllerFixture, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/ingest", strings.NewReader(body))
	rr := httptest.NewRecorder()
	fx.ac.Ingest(rr, req)
	return rr
}

// --- Ingest tests ---

func TestIngest_Accepted(t *testing.T) {
	fx := newControllerFixture(t)

	rr := postIngest(fx, `{"video_id":"abc123","title":"Some Video","channel":"Some Channel"}`)

	assert.Equal(t, http.StatusOK, rr.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
	assert.Equal(t, "abc123", resp["video_id"])

	assert.Equal(t, 1, fx.service.EventCount())
	assert.Equal(t, 1, fx.persister.HistorySaves)
}

func TestIngest_DerivesDefaults(t *testing.T) {
	fx := newControllerFixture(t)

	rr := postIngest(fx, `{"video_id":"abc123"}`)
	require.Equal(t, http.StatusOK, rr.Code)

	day := time.Now().UTC().Format("2006-01-02")
	buckets := fx.service.DayBuckets()
	require.Len(t, buckets[day], 1)
	e := buckets[day][0]
	assert.Equal(t, "https://www.youtube.com/watch?v=abc123", e.URL)
	assert.Equal(t, "https://img.youtube.com/vi/abc123/0.jpg", e.Thumbnail)
	assert.Equal(t, models.UnknownField, e.Title)
	assert.Equal(t, models.UnknownField, e.Channel)
	assert.Equal(t, models.UnknownField, e.Duration)
}

func TestIngest_VideoIdAlias(t *testing.T) {
	fx := newControllerFixture(t)

	rr := postIngest(fx, `{"videoId":"xyz789"}`)

	assert.Equal(t, http.StatusOK, rr.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "xyz789", resp["video_id"])
}

func TestIngest_MissingVideoID(t *testing.T) {
	fx := newControllerFixture(t)

	rr := postIngest(fx, `{"title":"no id"}`)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "video_id required", resp["error"])
	assert.Equal(t, 0, fx.persister.HistorySaves)
}

func TestIngest_PlaceholderVideoID(t *testing.T) {
	fx := newControllerFixture(t)

	rr := postIngest(fx, `{"video_id":"N/A"}`)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestIngest_InvalidJSON(t *testing.T) {
	fx := newControllerFixture(t)

	rr := postIngest(fx, `{not json`)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestIngest_SkipsShortForm(t *testing.T) {
	fx := newControllerFixture(t)

	for _, body := range []string{
		`{"video_id":"s1","duration":"Shorts"}`,
		`{"video_id":"s2","channel":"YouTube Shorts"}`,
		`{"video_id":"s3","url":"https://www.youtube.com/shorts/s3"}`,
	} {
		rr := postIngest(fx, body)
		assert.Equal(t, http.StatusOK, rr.Code)
		var resp map[string]string
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, "skipped", resp["status"])
		assert.Equal(t, "shorts", resp["reason"])
	}

	assert.Equal(t, 0, fx.service.EventCount())
	assert.Equal(t, 0, fx.persister.HistorySaves)
}

func TestIngest_SkipsDuplicate(t *testing.T) {
	fx := newControllerFixture(t)

	rr := postIngest(fx, `{"video_id":"dup1"}`)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = postIngest(fx, `{"video_id":"dup1"}`)
	assert.Equal(t, http.StatusOK, rr.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "skipped", resp["status"])
	assert.Equal(t, "duplicate", resp["reason"])

	assert.Equal(t, 1, fx.service.EventCount())
}

func TestIngest_PersistFailure(t *testing.T) {
	fx := newControllerFixture(t)
	fx.persister.SaveHistoryErr = errors.New("disk full")

	rr := postIngest(fx, `{"video_id":"abc123"}`)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, 0, fx.service.EventCount())
}

func TestIngest_RecordsOutcomeMetric(t *testing.T) {
	fx := newControllerFixture(t)

	postIngest(fx, `{"video_id":"abc123"}`)
	postIngest(fx, `{"video_id":"s1","duration":"Shorts"}`)

	outcomes := fx.metrics.IngestOutcomeList()
	assert.Contains(t, outcomes, "/api/ingest:accepted")
	assert.Contains(t, outcomes, "/api/ingest:shorts")
}

// --- GetHistory / GetStats tests ---

func TestGetHistory_Shape(t *testing.T) {
	fx := newControllerFixture(t)
	require.Equal(t, http.StatusOK, postIngest(fx, `{"video_id":"abc123"}`).Code)

	req := httptest.NewRequest(http.MethodGet, "/api/history", nil)
	rr := httptest.NewRecorder()
	fx.ac.GetHistory(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))

	day := time.Now().UTC().Format("2006-01-02")
	month := time.Now().UTC().Format("2006-01")

	byDate, ok := resp["by_date"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, byDate, day)

	stats, ok := resp["monthly_stats"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 1, stats[month])

	assert.Equal(t, false, resp["cookies_valid"])
	assert.Equal(t, true, resp["fetch_recommended"])
	assert.Contains(t, resp, "monthly_breakdown")
	assert.Contains(t, resp, "live")
	assert.Contains(t, resp, "subscriptions")
	assert.Contains(t, resp, "monthly_subscription_changes")
	assert.Contains(t, resp, "recommended")
	assert.Contains(t, resp, "recommended_refresh_available_at")
	assert.Contains(t, resp, "recommended_refresh_retry_after")
}

func TestGetHistory_CacheInvalidatedByMutation(t *testing.T) {
	fx := newControllerFixture(t)

	get := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/history", nil)
		rr := httptest.NewRecorder()
		fx.ac.GetHistory(rr, req)
		return rr
	}

	get()
	firstKeys := len(fx.cache.Data)
	assert.Equal(t, 1, firstKeys)

	// same version, same key
	get()
	assert.Len(t, fx.cache.Data, 1)

	// mutation bumps the version and produces a fresh key
	require.Equal(t, http.StatusOK, postIngest(fx, `{"video_id":"abc123"}`).Code)
	rr := get()
	assert.Len(t, fx.cache.Data, 2)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	day := time.Now().UTC().Format("2006-01-02")
	assert.Contains(t, resp["by_date"].(map[string]any), day)
}

// A cooldown started between two reads of the same store version must
// show up in the second read even though its body comes from the cache.
func TestGetHistory_CooldownCountdownLiveAcrossCacheHits(t *testing.T) {
	fx := newControllerFixture(t)
	fx.src.RecommendedFn = func(ctx context.Context) ([]*models.WatchEvent, error) {
		return []*models.WatchEvent{{VideoID: "r1"}}, nil
	}

	get := func() map[string]any {
		req := httptest.NewRequest(http.MethodGet, "/api/history", nil)
		rr := httptest.NewRecorder()
		fx.ac.GetHistory(rr, req)
		require.Equal(t, http.StatusOK, rr.Code)
		var resp map[string]any
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		return resp
	}

	first := get()
	assert.EqualValues(t, 0, first["recommended_refresh_retry_after"])
	require.Len(t, fx.cache.Data, 1)

	// start a cooldown without bumping the store version
	_, err := fx.gate.TryRefresh(context.Background())
	require.NoError(t, err)

	second := get()
	assert.Len(t, fx.cache.Data, 1)
	assert.Greater(t, second["recommended_refresh_retry_after"], float64(0))
	assert.Greater(t, second["recommended_refresh_available_at"], first["recommended_refresh_available_at"])
}

func TestGetStats_Shape(t *testing.T) {
	fx := newControllerFixture(t)
	require.Equal(t, http.StatusOK, postIngest(fx, `{"video_id":"abc123"}`).Code)

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	rr := httptest.NewRecorder()
	fx.ac.GetStats(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))

	assert.Contains(t, resp, "monthly_stats")
	assert.Contains(t, resp, "monthly_breakdown")
	assert.NotContains(t, resp, "by_date")
	assert.NotContains(t, resp, "live")
}

func TestGetHistory_IncludesLatestSnapshot(t *testing.T) {
	fx := newControllerFixture(t)
	require.NoError(t, fx.service.PutSnapshot([]*models.Channel{
		{ChannelName: "Channel A"},
		{ChannelName: "Channel B"},
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/history", nil)
	rr := httptest.NewRecorder()
	fx.ac.GetHistory(rr, req)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	subs, ok := resp["subscriptions"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 2, subs["total_count"])
}

// --- RefreshRecommended tests ---

func TestRefreshRecommended_Success(t *testing.T) {
	fx := newControllerFixture(t)
	fx.src.RecommendedFn = func(ctx context.Context) ([]*models.WatchEvent, error) {
		return []*models.WatchEvent{
			{VideoID: "r1", Title: "First"},
			{VideoID: "r2", Title: "Second"},
		}, nil
	}

	req := httptest.NewRequest(http.MethodPost, "/api/refresh/recommended", nil)
	rr := httptest.NewRecorder()
	fx.ac.RefreshRecommended(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
	assert.Len(t, resp["recommended"], 2)
	assert.Greater(t, resp["next_refresh_at"], float64(0))

	assert.Len(t, fx.service.Recommended(), 2)
}

func TestRefreshRecommended_Cooldown(t *testing.T) {
	fx := newControllerFixture(t)
	fx.src.RecommendedFn = func(ctx context.Context) ([]*models.WatchEvent, error) {
		return []*models.WatchEvent{{VideoID: "r1"}}, nil
	}

	req := httptest.NewRequest(http.MethodPost, "/api/refresh/recommended", nil)
	rr := httptest.NewRecorder()
	fx.ac.RefreshRecommended(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	fx.ac.RefreshRecommended(rr, req)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "cooldown", resp["error"])
	assert.Greater(t, resp["retry_after"], float64(0))

	assert.Equal(t, 1, fx.src.RecommendedCalls)
}

func TestRefreshRecommended_AuthInvalid(t *testing.T) {
	fx := newControllerFixture(t)
	fx.src.RecommendedFn = func(ctx context.Context) ([]*models.WatchEvent, error) {
		return nil, source.ErrAuthInvalid
	}

	req := httptest.NewRequest(http.MethodPost, "/api/refresh/recommended", nil)
	rr := httptest.NewRecorder()
	fx.ac.RefreshRecommended(rr, req)

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestRefreshRecommended_FetchError(t *testing.T) {
	fx := newControllerFixture(t)
	fx.src.RecommendedFn = func(ctx context.Context) ([]*models.WatchEvent, error) {
		return nil, errors.New("connection refused")
	}

	req := httptest.NewRequest(http.MethodPost, "/api/refresh/recommended", nil)
	rr := httptest.NewRecorder()
	fx.ac.RefreshRecommended(rr, req)

	assert.Equal(t, http.StatusBadGateway, rr.Code)

	// a failed fetch does not start the cooldown
	fx.src.RecommendedFn = func(ctx context.Context) ([]*models.WatchEvent, error) {
		return []*models.WatchEvent{{VideoID: "r1"}}, nil
	}
	rr = httptest.NewRecorder()
	fx.ac.RefreshRecommended(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}
