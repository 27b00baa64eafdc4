package services

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"ytmon/internal/models"
	"ytmon/internal/structures"
)

const (
	dayKeyFormat   = "2006-01-02"
	monthKeyFormat = "2006-01"
)

// ErrMissingVideoID rejects an event without an identity before any
// state is touched.
var ErrMissingVideoID = errors.New("video_id required")

// IngestOutcome is the tri-state result of submitting an event.
type IngestOutcome string

const (
	OutcomeAccepted  IngestOutcome = "accepted"
	OutcomeShortForm IngestOutcome = "shorts"
	OutcomeDuplicate IngestOutcome = "duplicate"
)

// Persister writes a document durably before returning. Both methods
// must replace the target atomically, never tear it.
type Persister interface {
	SaveHistory(doc models.HistoryDoc) error
	SaveSubscriptions(doc models.SubscriptionsDoc) error
}

type MonitorServiceInterface interface {
	Ingest(e *models.WatchEvent) (IngestOutcome, error)
	PutSnapshot(channels []*models.Channel) error
	PutHistory(doc models.HistoryDoc)
	PutSubscriptions(doc models.SubscriptionsDoc)
	SetLive(videos []*models.WatchEvent)
	SetRecommended(videos []*models.WatchEvent)
	Recommended() []*models.WatchEvent
	SetSourceAuth(valid bool)
	SourceAuthValid() bool
	DayBuckets() models.HistoryDoc
	Live() []*models.WatchEvent
	Snapshots() models.SubscriptionsDoc
	LatestSnapshot() (string, *models.Snapshot)
	MonthlyStats() map[string]int
	MonthlyBreakdown() map[string]*models.MonthlyBreakdown
	SubscriptionDiff() map[string]*models.SubscriptionDelta
	Version() uint64
	EventCount() int
	DayCount() int
	SnapshotCount() int
	DedupSize() int
}

// MonitorService owns the durable state: the day-keyed event log, the
// month-keyed subscription snapshots and the dedup identity table. One
// mutation lock guards all three so an admission is never recorded
// without its event being persisted, and vice versa. Reads take the
// shared side and work on copies.
type MonitorService struct {
	mu          sync.RWMutex
	history     models.HistoryDoc
	subs        models.SubscriptionsDoc
	dedup       *DedupGate
	live        []*models.WatchEvent
	recommended []*models.WatchEvent
	authValid   bool
	version     uint64

	loc       *time.Location
	persister Persister
	now       func() time.Time
}

func NewMonitorService(conf *structures.Config, persister Persister) (MonitorServiceInterface, error) {
	loc, err := time.LoadLocation(conf.Source.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", conf.Source.Timezone, err)
	}
	window := time.Duration(conf.Monitor.DuplicateMinutes) * time.Minute
	return &MonitorService{
		history:   make(models.HistoryDoc),
		subs:      make(models.SubscriptionsDoc),
		dedup:     NewDedupGate(window),
		loc:       loc,
		persister: persister,
		now:       time.Now,
	}, nil
}

// Ingest runs one event through the category filter, the dedup gate and
// the durable store. Both the poll path and the ingestion endpoint end
// up here, sharing the same gate state.
func (s *MonitorService) Ingest(e *models.WatchEvent) (IngestOutcome, error) {
	if e == nil || e.VideoID == "" || e.VideoID == models.UnknownField {
		return "", ErrMissingVideoID
	}
	if models.IsShortForm(e) {
		return OutcomeShortForm, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if e.Timestamp.IsZero() {
		e.Timestamp = s.now().In(s.loc)
	} else {
		e.Timestamp = e.Timestamp.In(s.loc)
	}

	prev, had := s.dedup.Seen(e.VideoID)
	if !s.dedup.Admit(e.VideoID, e.Timestamp) {
		return OutcomeDuplicate, nil
	}

	day := e.Timestamp.Format(dayKeyFormat)
	s.history[day] = append(s.history[day], e)

	if err := s.persister.SaveHistory(s.history); err != nil {
		entries := s.history[day]
		if len(entries) <= 1 {
			delete(s.history, day)
		} else {
			s.history[day] = entries[:len(entries)-1]
		}
		s.dedup.restore(e.VideoID, prev, had)
		return "", fmt.Errorf("persist history: %w", err)
	}

	s.version++
	return OutcomeAccepted, nil
}

// PutSnapshot stores a subscription snapshot under the current month,
// overwriting an earlier capture of the same month. Snapshots are not
// deduplicated.
func (s *MonitorService) PutSnapshot(channels []*models.Channel) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().In(s.loc)
	month := now.Format(monthKeyFormat)

	prev, had := s.subs[month]
	s.subs[month] = &models.Snapshot{CapturedAt: now, Channels: channels}

	if err := s.persister.SaveSubscriptions(s.subs); err != nil {
		if had {
			s.subs[month] = prev
		} else {
			delete(s.subs, month)
		}
		return fmt.Errorf("persist subscriptions: %w", err)
	}

	s.version++
	return nil
}

// PutHistory replaces the in-memory event log; used only on startup
// restore, before the scheduler runs.
func (s *MonitorService) PutHistory(doc models.HistoryDoc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if doc == nil {
		doc = make(models.HistoryDoc)
	}
	s.history = doc
	s.version++
}

func (s *MonitorService) PutSubscriptions(doc models.SubscriptionsDoc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if doc == nil {
		doc = make(models.SubscriptionsDoc)
	}
	s.subs = doc
	s.version++
}

// SetLive caches the latest raw poll result for the history view. Not
// persisted.
func (s *MonitorService) SetLive(videos []*models.WatchEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.live = videos
	s.version++
}

// SetRecommended caches the latest side-channel fetch result. These
// never enter the event log.
func (s *MonitorService) SetRecommended(videos []*models.WatchEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recommended = videos
	s.version++
}

func (s *MonitorService) Recommended() []*models.WatchEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.WatchEvent, len(s.recommended))
	copy(out, s.recommended)
	return out
}

// SetSourceAuth records credential validity as observed by the most
// recent poll outcome.
func (s *MonitorService) SetSourceAuth(valid bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.authValid != valid {
		s.version++
	}
	s.authValid = valid
}

func (s *MonitorService) SourceAuthValid() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authValid
}

// DayBuckets returns the day-keyed log with legacy short-form entries
// filtered out of the copy.
func (s *MonitorService) DayBuckets() models.HistoryDoc {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.history.FilterShortForm()
}

func (s *MonitorService) Live() []*models.WatchEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.WatchEvent, 0, len(s.live))
	for _, v := range s.live {
		if !models.IsShortForm(v) {
			out = append(out, v)
		}
	}
	return out
}

func (s *MonitorService) Snapshots() models.SubscriptionsDoc {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.subs.Clone()
}

func (s *MonitorService) LatestSnapshot() (string, *models.Snapshot) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.subs.Latest()
}

func (s *MonitorService) MonthlyStats() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return models.MonthlyStats(s.history)
}

func (s *MonitorService) MonthlyBreakdown() map[string]*models.MonthlyBreakdown {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return models.MonthlyBreakdowns(s.history)
}

func (s *MonitorService) SubscriptionDiff() map[string]*models.SubscriptionDelta {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return models.SubscriptionDiff(s.subs)
}

// Version increments on every state change; read views are cached
// against it.
func (s *MonitorService) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

func (s *MonitorService) EventCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.history.EventCount()
}

func (s *MonitorService) DayCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.history)
}

func (s *MonitorService) SnapshotCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}

func (s *MonitorService) DedupSize() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dedup.Len()
}
