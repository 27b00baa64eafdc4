package monitor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/roylee0704/gron"
	"golang.org/x/time/rate"

	"ytmon/internal/monitor/interfaces"
	"ytmon/internal/providers"
	"ytmon/internal/services"
	"ytmon/internal/source"
	"ytmon/internal/structures"
)

// fetchSpacing keeps consecutive upstream requests inside one poll
// cycle apart so a cycle never bursts against the source.
const fetchSpacing = 2 * time.Second

type Scheduler struct {
	config      *structures.Config
	logger      providers.Logger
	metrics     providers.MetricsProviderInterface
	service     services.MonitorServiceInterface
	fileManager *FileManager
	src         source.Source
	gate        *RefreshGate
	cron        *gron.Cron
	limiter     *rate.Limiter
	ctx         context.Context
	cancel      context.CancelFunc
	opsMu       sync.Mutex
}

func (s *Scheduler) Init() {
	s.metrics.RegisterStoreGauges(s.service)
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.limiter = rate.NewLimiter(rate.Every(fetchSpacing), 1)
	s.cron = gron.New()

	interval := time.Duration(s.config.Monitor.ScanInterval) * time.Second

	s.cron.AddFunc(gron.Every(interval), func() {
		s.opsMu.Lock()
		defer s.opsMu.Unlock()
		s.pollOnce()
	})

	if s.config.Monitor.FetchRecommended {
		recommendedInterval := time.Duration(s.config.Monitor.ScanIntervalRecommended) * time.Second
		s.cron.AddFunc(gron.Every(recommendedInterval), func() {
			s.opsMu.Lock()
			defer s.opsMu.Unlock()
			s.pollRecommended()
		})
	}

	s.cron.Start()

	// First cycle runs right away so the stores reflect the source
	// before the first tick.
	go func() {
		s.opsMu.Lock()
		defer s.opsMu.Unlock()
		s.pollOnce()
	}()
}

// pollOnce fetches the watch history and the subscription roster and
// feeds both through the service. Every event goes through the same
// ingestion pipeline as the HTTP endpoint, so filtering and dedup apply
// uniformly.
func (s *Scheduler) pollOnce() {
	if err := s.limiter.Wait(s.ctx); err != nil {
		return
	}

	videos, err := s.src.FetchHistory(s.ctx)
	if err != nil {
		s.onFetchError("history", err)
		return
	}

	accepted := 0
	for _, video := range videos {
		outcome, err := s.service.Ingest(video)
		if err != nil {
			s.logger.Errorf(providers.TypeApp, "Error while ingesting video %s: %s", video.VideoID, err)
			continue
		}
		if outcome == services.OutcomeAccepted {
			accepted++
		}
	}
	s.service.SetSourceAuth(true)
	s.service.SetLive(videos)

	if err := s.limiter.Wait(s.ctx); err != nil {
		return
	}

	subs, err := s.src.FetchSubscriptions(s.ctx)
	if err != nil {
		s.onFetchError("subscriptions", err)
		return
	}
	if len(subs.Channels) > 0 {
		if err := s.service.PutSnapshot(subs.Channels); err != nil {
			s.logger.Errorf(providers.TypeApp, "Error while storing subscription snapshot: %s", err)
			s.metrics.IncPollCycles("error")
			return
		}
	}

	s.metrics.IncPollCycles("ok")
	s.logger.Infof(providers.TypeApp, "Poll cycle done: %d new of %d fetched, %d subscriptions", accepted, len(videos), len(subs.Channels))
}

// pollRecommended goes through the refresh gate so scheduled and
// on-demand refreshes share one cooldown. A cooldown hit here is
// expected overlap, not an error.
func (s *Scheduler) pollRecommended() {
	if s.ctx.Err() != nil {
		return
	}

	videos, err := s.gate.TryRefresh(s.ctx)
	if err != nil {
		var cdErr *CooldownError
		if errors.As(err, &cdErr) {
			s.logger.Debugf(providers.TypeApp, "Recommended refresh skipped: %s", cdErr)
			return
		}
		s.onFetchError("recommended", err)
		return
	}

	s.service.SetRecommended(videos)
	s.logger.Infof(providers.TypeApp, "Recommended refresh done: %d videos", len(videos))
}

func (s *Scheduler) onFetchError(what string, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	if errors.Is(err, source.ErrAuthInvalid) {
		s.service.SetSourceAuth(false)
	}
	s.metrics.IncPollCycles("error")
	s.logger.Errorf(providers.TypeApp, "Error while fetching %s: %s", what, err)
}

func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.cron != nil {
		s.cron.Stop()
	}
}

// Restore loads both stores and seeds the service. A malformed store is
// returned as-is so startup fails instead of silently overwriting it.
func (s *Scheduler) Restore() error {
	history, err := s.fileManager.LoadHistory()
	if err != nil {
		return err
	}
	subs, err := s.fileManager.LoadSubscriptions()
	if err != nil {
		return err
	}

	s.service.PutHistory(history)
	s.service.PutSubscriptions(subs)
	s.logger.Infof(providers.TypeApp, "Restored %d days of history and %d subscription months", len(history), len(subs))
	return nil
}

func NewScheduler(config *structures.Config, logger providers.Logger, metrics providers.MetricsProviderInterface, service services.MonitorServiceInterface, fileManager *FileManager, src source.Source, gate *RefreshGate) interfaces.SchedulerInterface {
	return &Scheduler{
		config:      config,
		logger:      logger,
		metrics:     metrics,
		service:     service,
		fileManager: fileManager,
		src:         src,
		gate:        gate,
	}
}
