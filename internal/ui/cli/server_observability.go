package cli

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"autocomplete/internal/core/session"
	"autocomplete/internal/shared/util"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type ObservabilityServer struct {
	addr    string
	session *session.Session
	server  *http.Server
}

type healthStatus struct {
	Status      string `json:"status"`
	Session     string `json:"session"`
	Version     string `json:"version"`
	CachedFiles int    `json:"cachedFiles"`
	HeapMB      uint64 `json:"heapMB"`
}

func NewObservabilityServer(addr string, sess *session.Session) *ObservabilityServer {
	return &ObservabilityServer{
		addr:    addr,
		session: sess,
	}
}

func (s *ObservabilityServer) handler() http.Handler {
	mux := http.NewServeMux()

	// Prometheus metrics
	mux.Handle("/metrics", promhttp.Handler())

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		status := healthStatus{
			Status:      "up",
			Session:     s.session.ID(),
			Version:     s.session.Version(),
			CachedFiles: len(s.session.CachedPaths()),
			HeapMB:      util.GetHeapAllocMB(),
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(status)
	})
	return mux
}

// Start binds the listener before returning so a bad address fails the command.
func (s *ObservabilityServer) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.server = &http.Server{
		Handler:           s.handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	slog.Info("observability server starting", "addr", ln.Addr().String())

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("observability server failed", "error", err)
		}
	}()

	return nil
}

func (s *ObservabilityServer) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
