package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/banshee-data/thermal.tracker/internal/metrics"
	"github.com/banshee-data/thermal.tracker/internal/monitoring"
)

// metricsServer exposes /metrics while a batch runs.
type metricsServer struct {
	srv  *http.Server
	addr string
	done chan struct{}
}

func serveMetrics(addr string, m *metrics.Metrics) (*metricsServer, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	ms := &metricsServer{
		srv:  &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		addr: ln.Addr().String(),
		done: make(chan struct{}),
	}
	go func() {
		defer close(ms.done)
		if err := ms.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			monitoring.Logf("metrics server: %v", err)
		}
	}()
	monitoring.Logf("serving metrics on http://%s/metrics", ms.addr)
	return ms, nil
}

// Close shuts the server down, waiting up to five seconds for scrapes in
// flight.
func (ms *metricsServer) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := ms.srv.Shutdown(ctx)
	<-ms.done
	return err
}
