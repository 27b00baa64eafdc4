package monitor

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ytmon/internal/models"
	"ytmon/internal/structures"
	"ytmon/internal/testutil"
)

func fileManagerFixture(t *testing.T) (*FileManager, *structures.Config, *testutil.MockMetrics) {
	t.Helper()
	dir := t.TempDir()
	conf := &structures.Config{
		Persistence: structures.Persistence{
			HistoryPath:       filepath.Join(dir, "yt_history.json"),
			SubscriptionsPath: filepath.Join(dir, "yt_subscriptions.json"),
		},
	}
	metrics := &testutil.MockMetrics{}
	return NewFileManager(conf, &testutil.MockLogger{}, metrics), conf, metrics
}

func TestFileManager_LoadHistory_AbsentFile(t *testing.T) {
	fm, _, _ := fileManagerFixture(t)

	doc, err := fm.LoadHistory()
	require.NoError(t, err)
	assert.NotNil(t, doc)
	assert.Empty(t, doc)
}

func TestFileManager_HistoryRoundTrip(t *testing.T) {
	fm, _, _ := fileManagerFixture(t)

	doc := models.HistoryDoc{
		"2025-03-10": {
			{VideoID: "abc", Title: "Some Video", Duration: "3:45", Timestamp: time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)},
		},
	}
	require.NoError(t, fm.SaveHistory(doc))

	loaded, err := fm.LoadHistory()
	require.NoError(t, err)
	require.Len(t, loaded["2025-03-10"], 1)
	assert.Equal(t, "abc", loaded["2025-03-10"][0].VideoID)
	assert.Equal(t, "3:45", loaded["2025-03-10"][0].Duration)
}

func TestFileManager_SubscriptionsRoundTrip(t *testing.T) {
	fm, _, _ := fileManagerFixture(t)

	doc := models.SubscriptionsDoc{
		"2025-03": {
			CapturedAt: time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC),
			Channels:   []*models.Channel{{ChannelID: "c1", ChannelName: "Channel One"}},
		},
	}
	require.NoError(t, fm.SaveSubscriptions(doc))

	loaded, err := fm.LoadSubscriptions()
	require.NoError(t, err)
	require.Contains(t, loaded, "2025-03")
	require.Len(t, loaded["2025-03"].Channels, 1)
	assert.Equal(t, "Channel One", loaded["2025-03"].Channels[0].ChannelName)
}

func TestFileManager_LoadHistory_MalformedIsError(t *testing.T) {
	fm, conf, _ := fileManagerFixture(t)
	require.NoError(t, os.WriteFile(conf.Persistence.HistoryPath, []byte("{not json"), 0o644))

	_, err := fm.LoadHistory()
	assert.Error(t, err)
}

func TestFileManager_LoadSubscriptions_MalformedIsError(t *testing.T) {
	fm, conf, _ := fileManagerFixture(t)
	require.NoError(t, os.WriteFile(conf.Persistence.SubscriptionsPath, []byte("[]"), 0o644))

	_, err := fm.LoadSubscriptions()
	assert.Error(t, err)
}

func TestFileManager_SaveIsHandEditable(t *testing.T) {
	fm, conf, _ := fileManagerFixture(t)

	doc := models.HistoryDoc{"2025-03-10": {{VideoID: "abc"}}}
	require.NoError(t, fm.SaveHistory(doc))

	data, err := os.ReadFile(conf.Persistence.HistoryPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n  ", "store must stay indented plain JSON")
}

func TestFileManager_SaveLeavesNoTempFile(t *testing.T) {
	fm, conf, _ := fileManagerFixture(t)

	require.NoError(t, fm.SaveHistory(models.HistoryDoc{}))

	_, err := os.Stat(conf.Persistence.HistoryPath + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestFileManager_SaveCreatesParentDir(t *testing.T) {
	dir := t.TempDir()
	conf := &structures.Config{
		Persistence: structures.Persistence{
			HistoryPath:       filepath.Join(dir, "nested", "deep", "yt_history.json"),
			SubscriptionsPath: filepath.Join(dir, "yt_subscriptions.json"),
		},
	}
	fm := NewFileManager(conf, &testutil.MockLogger{}, &testutil.MockMetrics{})

	require.NoError(t, fm.SaveHistory(models.HistoryDoc{}))
	_, err := os.Stat(conf.Persistence.HistoryPath)
	assert.NoError(t, err)
}

func TestFileManager_SaveFailureIncrementsMetric(t *testing.T) {
	dir := t.TempDir()
	conf := &structures.Config{
		Persistence: structures.Persistence{
			// a directory at the target path makes the rename fail
			HistoryPath:       dir,
			SubscriptionsPath: filepath.Join(dir, "yt_subscriptions.json"),
		},
	}
	metrics := &testutil.MockMetrics{}
	fm := NewFileManager(conf, &testutil.MockLogger{}, metrics)

	err := fm.SaveHistory(models.HistoryDoc{})
	require.Error(t, err)
	assert.Equal(t, 1, metrics.PersistenceFailures)
}
