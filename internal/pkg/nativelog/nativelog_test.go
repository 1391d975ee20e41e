package nativelog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestTodayFilename(t *testing.T) {
	assert.Equal(t, "tldr_2024-07-01.log", TodayFilename(time.Date(2024, 7, 1, 23, 59, 0, 0, time.UTC)))
}

func TestWriterRollsDaily(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir)
	require.NoError(t, err)

	day := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return day }
	_, err = w.Write([]byte("first\n"))
	require.NoError(t, err)

	day = day.Add(24 * time.Hour)
	_, err = w.Write([]byte("second\n"))
	require.NoError(t, err)

	first, err := os.ReadFile(filepath.Join(dir, "tldr_2024-07-01.log"))
	require.NoError(t, err)
	assert.Equal(t, "first\n", string(first))
	second, err := os.ReadFile(filepath.Join(dir, "tldr_2024-07-02.log"))
	require.NoError(t, err)
	assert.Equal(t, "second\n", string(second))
}

func TestNewZapLoggerWritesJSONFile(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewZapLogger(Options{Dir: dir, Level: zapcore.InfoLevel})
	require.NoError(t, err)
	logger.Named("TLDRService").Info("summary generated", zap.String("documentId", "p1"))
	logger.Debug("hidden")
	_ = logger.Sync()

	raw, err := os.ReadFile(filepath.Join(dir, TodayFilename(time.Now())))
	require.NoError(t, err)
	var line map[string]any
	require.NoError(t, json.Unmarshal(raw, &line))
	assert.Equal(t, "summary generated", line["msg"])
	assert.Equal(t, "TLDRService", line["logger"])
	assert.Equal(t, "p1", line["documentId"])
}
