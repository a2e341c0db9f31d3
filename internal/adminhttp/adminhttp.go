// Package adminhttp exposes a tiny chi-routed /healthz and /status
// surface on a long-lived daemon, reporting sync/queue cycle status so
// an operator can probe a daemon over HTTP without tailing its logs.
package adminhttp

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nuco-0416/ecauto-sub000/internal/logger"
)

// StatusProvider is the narrow contract a daemon runtime exposes for
// the /status endpoint. internal/daemon.Runtime implements it directly.
type StatusProvider interface {
	Status() map[string]interface{}
}

// Server is the admin HTTP surface. It never blocks the daemon's own
// cycle loop: ListenAndServe runs in its own goroutine from Start.
type Server struct {
	addr     string
	provider StatusProvider
	srv      *http.Server
}

// New builds a Server bound to addr (e.g. "127.0.0.1:9090"), reporting
// through provider.
func New(addr string, provider StatusProvider) *Server {
	r := chi.NewRouter()
	s := &Server{addr: addr, provider: provider}

	r.Get("/healthz", s.handleHealthz)
	r.Get("/status", s.handleStatus)

	s.srv = &http.Server{Addr: addr, Handler: r}
	return s
}

// Start begins serving in the background. A bind failure is logged, not
// fatal: the admin surface is a diagnostic convenience, never load-
// bearing for the daemon's own sync/upload work.
func (s *Server) Start() {
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("AdminHTTP", "listen "+s.addr+": "+err.Error())
		}
	}()
}

// Shutdown gracefully stops the HTTP server, bounded at 5 seconds.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.provider.Status()); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
