package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/thermal.tracker/internal/metrics"
)

func TestServeMetrics(t *testing.T) {
	m := metrics.New()
	m.FramesProcessed.Add(45)

	ms, err := serveMetrics("127.0.0.1:0", m)
	require.NoError(t, err)

	resp, err := http.Get("http://" + ms.addr + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "thermal_frames_processed_total 45")

	require.NoError(t, ms.Close())
	_, err = http.Get("http://" + ms.addr + "/metrics")
	assert.Error(t, err, "server should stop accepting after Close")
}

func TestRunServesMetrics(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{
		"-synthetic", "1",
		"-metrics-listen", "127.0.0.1:0",
	}, &stdout, &stderr)
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "synthetic-00")
}
