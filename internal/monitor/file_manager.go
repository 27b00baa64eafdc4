package monitor

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	json "github.com/goccy/go-json"

	"ytmon/internal/models"
	"ytmon/internal/providers"
	"ytmon/internal/services"
	"ytmon/internal/structures"
)

// FileManager persists the two store documents as plain indented JSON
// so they stay hand-editable. Writes go through a temp file, fsync and
// rename; a crash mid-write never tears the previous state.
type FileManager struct {
	conf    *structures.Config
	logger  providers.Logger
	metrics providers.MetricsProviderInterface
}

var _ services.Persister = (*FileManager)(nil)

func NewFileManager(conf *structures.Config, logger providers.Logger, metrics providers.MetricsProviderInterface) *FileManager {
	return &FileManager{
		conf:    conf,
		logger:  logger,
		metrics: metrics,
	}
}

// LoadHistory reads the persisted day-keyed event log. An absent file
// yields an empty document; a malformed one is an error the caller must
// treat as fatal, never as an empty store.
func (f *FileManager) LoadHistory() (models.HistoryDoc, error) {
	doc := make(models.HistoryDoc)
	if err := loadJSON(f.conf.Persistence.HistoryPath, &doc); err != nil {
		return nil, fmt.Errorf("history store %s: %w", f.conf.Persistence.HistoryPath, err)
	}
	return doc, nil
}

// LoadSubscriptions reads the persisted month-keyed snapshot log with
// the same absent-vs-malformed contract as LoadHistory.
func (f *FileManager) LoadSubscriptions() (models.SubscriptionsDoc, error) {
	doc := make(models.SubscriptionsDoc)
	if err := loadJSON(f.conf.Persistence.SubscriptionsPath, &doc); err != nil {
		return nil, fmt.Errorf("subscription store %s: %w", f.conf.Persistence.SubscriptionsPath, err)
	}
	return doc, nil
}

func (f *FileManager) SaveHistory(doc models.HistoryDoc) error {
	return f.save(f.conf.Persistence.HistoryPath, doc)
}

func (f *FileManager) SaveSubscriptions(doc models.SubscriptionsDoc) error {
	return f.save(f.conf.Persistence.SubscriptionsPath, doc)
}

func (f *FileManager) save(path string, v any) error {
	start := time.Now()
	if err := saveJSON(path, v); err != nil {
		f.metrics.IncPersistenceFailures()
		f.logger.Errorf(providers.TypeApp, "Error while persisting %s: %s", path, err)
		return err
	}
	f.metrics.ObservePersistenceDuration(time.Since(start))
	return nil
}

func loadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return json.Unmarshal(data, v)
}

func saveJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	tmpFile := path + ".tmp"
	file, err := os.Create(tmpFile)
	if err != nil {
		return err
	}

	_, err = file.Write(data)
	if err != nil {
		file.Close()
		os.Remove(tmpFile)
		return err
	}

	if err = file.Sync(); err != nil {
		file.Close()
		os.Remove(tmpFile)
		return err
	}

	if err = file.Close(); err != nil {
		os.Remove(tmpFile)
		return err
	}

	return os.Rename(tmpFile, path)
}
