package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	json "github.com/goccy/go-json"

	"ytmon/internal/models"
	"ytmon/internal/monitor"
	"ytmon/internal/providers"
	"ytmon/internal/services"
	"ytmon/internal/source"
	"ytmon/internal/structures"
)

const maxRequestBodySize = 1 << 20 // 1 MB

type ApiController struct {
	conf    *structures.Config
	logger  providers.Logger
	service services.MonitorServiceInterface
	gate    *monitor.RefreshGate
	cache   providers.CacheProviderInterface
	metrics providers.MetricsProviderInterface
}

func NewApiController(conf *structures.Config, logger providers.Logger, service services.MonitorServiceInterface, gate *monitor.RefreshGate, cache providers.CacheProviderInterface, metrics providers.MetricsProviderInterface) *ApiController {
	return &ApiController{
		conf:    conf,
		logger:  logger,
		service: service,
		gate:    gate,
		cache:   cache,
		metrics: metrics,
	}
}

type subscriptionsView struct {
	TotalCount int               `json:"total_count"`
	Channels   []*models.Channel `json:"channels"`
}

// historyResponse is the cacheable part of the history view; the
// cooldown countdown fields are appended per request in GetHistory.
type historyResponse struct {
	CookiesValid               bool                                 `json:"cookies_valid"`
	ByDate                     models.HistoryDoc                    `json:"by_date"`
	MonthlyStats               map[string]int                       `json:"monthly_stats"`
	MonthlyBreakdown           map[string]*models.MonthlyBreakdown  `json:"monthly_breakdown"`
	Live                       []*models.WatchEvent                 `json:"live"`
	Subscriptions              *subscriptionsView                   `json:"subscriptions"`
	MonthlySubscriptionChanges map[string]*models.SubscriptionDelta `json:"monthly_subscription_changes"`
	Recommended                []*models.WatchEvent                 `json:"recommended"`
	FetchRecommended           bool                                 `json:"fetch_recommended"`
}

type statsResponse struct {
	MonthlyStats     map[string]int                      `json:"monthly_stats"`
	MonthlyBreakdown map[string]*models.MonthlyBreakdown `json:"monthly_breakdown"`
}

type ingestPayload struct {
	VideoID      string `json:"video_id"`
	VideoIDAlias string `json:"videoId"`
	Title        string `json:"title"`
	Channel      string `json:"channel"`
	Thumbnail    string `json:"thumbnail"`
	URL          string `json:"url"`
	Duration     string `json:"duration"`
}

// Cache keys carry the store version, so any mutation invalidates every
// cached view without explicit eviction.
func (ac *ApiController) versionKey(prefix string) string {
	return prefix + ":" + strconv.FormatUint(ac.service.Version(), 10)
}

func (ac *ApiController) serveFromCacheOrCompute(w http.ResponseWriter, cacheKey string, compute func() (any, error)) {
	if data, ok := ac.cache.Get(cacheKey); ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
		return
	}

	result, err := compute()
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	gson, err := json.Marshal(result)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	ac.cache.Set(cacheKey, gson)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(gson)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	gson, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(gson)
}

// GetHistory caches the store-derived part of the view against the
// store version and splices the live cooldown countdown into every
// response, so a cache hit never serves a stale retry-after.
func (ac *ApiController) GetHistory(w http.ResponseWriter, r *http.Request) {
	key := ac.versionKey("history")
	stable, ok := ac.cache.Get(key)
	if !ok {
		var subs *subscriptionsView
		if _, snap := ac.service.LatestSnapshot(); snap != nil {
			subs = &subscriptionsView{
				TotalCount: len(snap.Channels),
				Channels:   snap.Channels,
			}
		}

		gson, err := json.Marshal(&historyResponse{
			CookiesValid:               ac.service.SourceAuthValid(),
			ByDate:                     ac.service.DayBuckets(),
			MonthlyStats:               ac.service.MonthlyStats(),
			MonthlyBreakdown:           ac.service.MonthlyBreakdown(),
			Live:                       ac.service.Live(),
			Subscriptions:              subs,
			MonthlySubscriptionChanges: ac.service.SubscriptionDiff(),
			Recommended:                ac.service.Recommended(),
			FetchRecommended:           ac.conf.Monitor.FetchRecommended,
		})
		if err != nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		ac.cache.Set(key, gson)
		stable = gson
	}

	// stable is a marshaled object, so it always ends with '}'
	body := make([]byte, 0, len(stable)+80)
	body = append(body, stable[:len(stable)-1]...)
	body = append(body, fmt.Sprintf(
		`,"recommended_refresh_available_at":%d,"recommended_refresh_retry_after":%d}`,
		ac.gate.AvailableAt().Unix(), int64(ac.gate.RetryAfter().Seconds()))...)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (ac *ApiController) GetStats(w http.ResponseWriter, r *http.Request) {
	ac.serveFromCacheOrCompute(w, ac.versionKey("stats"), func() (any, error) {
		return &statsResponse{
			MonthlyStats:     ac.service.MonthlyStats(),
			MonthlyBreakdown: ac.service.MonthlyBreakdown(),
		}, nil
	})
}

// Ingest accepts a single externally observed watch event. The outcome
// mirrors what the pipeline decided: stored, dropped as short-form, or
// dropped as a duplicate.
func (ac *ApiController) Ingest(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var payload ingestPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	videoID := payload.VideoID
	if videoID == "" {
		videoID = payload.VideoIDAlias
	}
	if videoID == "" || videoID == models.UnknownField {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "video_id required"})
		return
	}

	event := &models.WatchEvent{
		VideoID:   videoID,
		Title:     orUnknown(payload.Title),
		Channel:   orUnknown(payload.Channel),
		Thumbnail: payload.Thumbnail,
		URL:       payload.URL,
		Duration:  orUnknown(payload.Duration),
	}
	if event.URL == "" {
		event.URL = fmt.Sprintf("https://www.youtube.com/watch?v=%s", videoID)
	}
	if event.Thumbnail == "" {
		event.Thumbnail = fmt.Sprintf("https://img.youtube.com/vi/%s/0.jpg", videoID)
	}

	outcome, err := ac.service.Ingest(event)
	if err != nil {
		ac.logger.Errorf(providers.TypeApp, "Error while ingesting video %s: %s", videoID, err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	ac.metrics.IncIngestOutcome("/api/ingest", string(outcome))

	switch outcome {
	case services.OutcomeShortForm:
		writeJSON(w, http.StatusOK, map[string]string{"status": "skipped", "reason": "shorts"})
	case services.OutcomeDuplicate:
		writeJSON(w, http.StatusOK, map[string]string{"status": "skipped", "reason": "duplicate"})
	default:
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "video_id": videoID})
	}
}

// RefreshRecommended triggers an on-demand side-channel fetch through
// the cooldown gate.
func (ac *ApiController) RefreshRecommended(w http.ResponseWriter, r *http.Request) {
	videos, err := ac.gate.TryRefresh(r.Context())
	if err != nil {
		var cdErr *monitor.CooldownError
		switch {
		case errors.As(err, &cdErr):
			retryAfter := int64(cdErr.RetryAfter.Seconds())
			writeJSON(w, http.StatusTooManyRequests, map[string]any{
				"error":       "cooldown",
				"retry_after": retryAfter,
				"message":     fmt.Sprintf("%d초 후 다시 시도하세요.", retryAfter),
			})
		case errors.Is(err, source.ErrAuthInvalid):
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "source credentials invalid"})
		default:
			ac.logger.Errorf(providers.TypeApp, "Error while refreshing recommended: %s", err)
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": "fetch failed"})
		}
		return
	}

	ac.service.SetRecommended(videos)
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "ok",
		"recommended":     videos,
		"next_refresh_at": ac.gate.AvailableAt().Unix(),
	})
}

func orUnknown(s string) string {
	if s == "" {
		return models.UnknownField
	}
	return s
}
