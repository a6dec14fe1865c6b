package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	logger "github.com/tigerroll/blobtosql/pkg/batch/support/util/logger"
)

// Server exposes a Prometheus registry on /metrics.
type Server struct {
	addr   string
	server *http.Server
	ln     net.Listener
}

// NewServer creates a server for registry listening on addr.
func NewServer(addr string, registry *prometheus.Registry) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	return &Server{
		addr:   addr,
		server: &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second},
	}
}

// Start binds the listener and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("metrics endpoint cannot listen on %s: %w", s.addr, err)
	}
	s.ln = ln
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("Metrics endpoint stopped: %v", err)
		}
	}()
	logger.Infof("Serving Prometheus metrics on http://%s/metrics", ln.Addr())
	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.addr
}

// Stop shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.ln == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
