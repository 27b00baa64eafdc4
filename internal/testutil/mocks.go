package testutil

import (
	"sync"
	"time"

	"ytmon/internal/models"
	"ytmon/internal/providers"
)

// MockLogger implements providers.Logger and records calls.
type MockLogger struct {
	mu   sync.Mutex
	Logs []LogEntry
}

type LogEntry struct {
	Level  string
	Type   providers.TypeEnum
	Format string
	Args   []interface{}
}

func (m *MockLogger) record(level string, t providers.TypeEnum, format string, args ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Logs = append(m.Logs, LogEntry{Level: level, Type: t, Format: format, Args: args})
}

func (m *MockLogger) Errorf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("error", t, format, args...)
}
func (m *MockLogger) Warnf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("warn", t, format, args...)
}
func (m *MockLogger) Debugf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("debug", t, format, args...)
}
func (m *MockLogger) Infof(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("info", t, format, args...)
}
func (m *MockLogger) Fatalf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("fatal", t, format, args...)
}
func (m *MockLogger) Close() {}

// MockPersister implements services.Persister in memory with an
// injectable failure per method.
type MockPersister struct {
	mu             sync.Mutex
	History        models.HistoryDoc
	Subscriptions  models.SubscriptionsDoc
	HistorySaves   int
	SubsSaves      int
	SaveHistoryErr error
	SaveSubsErr    error
}

func (m *MockPersister) SaveHistory(doc models.HistoryDoc) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveHistoryErr != nil {
		return m.SaveHistoryErr
	}
	m.History = doc.Clone()
	m.HistorySaves++
	return nil
}

func (m *MockPersister) SaveSubscriptions(doc models.SubscriptionsDoc) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveSubsErr != nil {
		return m.SaveSubsErr
	}
	m.Subscriptions = doc.Clone()
	m.SubsSaves++
	return nil
}

// MockCache implements providers.CacheProviderInterface.
type MockCache struct {
	mu   sync.Mutex
	Data map[string][]byte
}

func NewMockCache() *MockCache {
	return &MockCache{Data: make(map[string][]byte)}
}

func (m *MockCache) Get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	val, ok := m.Data[key]
	return val, ok
}

func (m *MockCache) Set(key string, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Data[key] = value
}

// MockMetrics implements providers.MetricsProviderInterface and records
// the calls tests care about.
type MockMetrics struct {
	mu                  sync.Mutex
	Requests            []string
	IngestOutcomes      []string
	PollResults         []string
	PersistenceFailures int
}

func (m *MockMetrics) IncRequestsTotal(endpoint string, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Requests = append(m.Requests, endpoint)
}

func (m *MockMetrics) ObserveRequestDuration(string, time.Duration) {}
func (m *MockMetrics) IncCacheHits()                                {}
func (m *MockMetrics) IncCacheMisses()                              {}
func (m *MockMetrics) ObservePersistenceDuration(time.Duration)     {}

func (m *MockMetrics) IncPersistenceFailures() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PersistenceFailures++
}

func (m *MockMetrics) IncIngestOutcome(path, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.IngestOutcomes = append(m.IngestOutcomes, path+":"+outcome)
}

func (m *MockMetrics) IncPollCycles(result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PollResults = append(m.PollResults, result)
}

func (m *MockMetrics) RegisterStoreGauges(providers.StoreCounts) {}

// IngestOutcomeList returns a copy of the recorded ingest outcomes.
func (m *MockMetrics) IngestOutcomeList() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.IngestOutcomes))
	copy(out, m.IngestOutcomes)
	return out
}
