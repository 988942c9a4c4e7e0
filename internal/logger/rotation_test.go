package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRotatingWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "smodf.log")

	w, err := NewRotatingWriter(path, RotationConfig{MaxSizeMB: 1, MaxBackups: 1})
	require.NoError(t, err)
	New(w, LevelInfo, false).Module("camera").Info("camera started", String("stream_id", "s1"))
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "camera started")
	assert.Contains(t, string(data), "module=camera")
	assert.Contains(t, string(data), "stream_id=s1")
}
