package metrics

import (
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()
	m.ClipsProcessed.Inc()
	m.ClipsRejected.WithLabelValues("too_hot").Inc()
	m.TracksFiltered.WithLabelValues("too_short").Add(3)
	m.ObserveClip(250 * time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ClipsProcessed))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ClipsRejected.WithLabelValues("too_hot")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.TracksFiltered.WithLabelValues("too_short")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.ClipDuration))
}

func TestHandler(t *testing.T) {
	m := New()
	m.FramesProcessed.Add(42)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "thermal_frames_processed_total 42")
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.TracksKept.Add(2)

	path := filepath.Join(t.TempDir(), "thermal.prom")
	require.NoError(t, m.WriteTextfile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "thermal_tracks_kept_total 2")
}
