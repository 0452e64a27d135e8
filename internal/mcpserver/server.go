// Package mcpserver implements the loopback JSON-RPC tool surface the
// coding and planning agents call into (C5): the standard handshake
// (initialize, tools/list, tools/call) plus submit_pr, create_area,
// create_ticket, add_note.
//
// Routing is gorilla/mux, grounded on wingedpig-trellis's internal/api
// router.go (Dependencies struct injected into a NewRouter, a thin Server
// wrapping *http.Server with ListenAndServe/Shutdown). The teacher itself
// never runs an HTTP server, so this package's shape comes entirely from
// the broader retrieval pack.
package mcpserver

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/orchestrator/kernel/internal/kernlog"
)

// Config configures one server instance.
type Config struct {
	Addr   string // host:port to bind, loopback only
	Queue  *TaskQueue
	Log    *kernlog.Component
}

// Server is the loopback MCP tool server (C5).
type Server struct {
	router       *mux.Router
	httpServer   *http.Server
	token        string
	submissions  *submissionStore
	queue        *TaskQueue
	log          *kernlog.Component
}

// New builds a server with a freshly minted session token, following the
// per-connection session-token pattern used for spawned-agent identity in
// the wider pack (orchestrator.go mints IDs via uuid.New().String()).
func New(cfg Config) *Server {
	s := &Server{
		token:       uuid.New().String(),
		submissions: newSubmissionStore(),
		queue:       cfg.Queue,
		log:         cfg.Log,
	}
	s.router = mux.NewRouter()
	s.router.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	s.router.HandleFunc("/", s.handleRPC).Methods(http.MethodPost)
	s.httpServer = &http.Server{Addr: cfg.Addr, Handler: s.router}
	return s
}

// Token returns the session token announced to spawned children via
// <TOOL>_SESSION_TOKEN.
func (s *Server) Token() string { return s.token }

// Addr returns the server's address: the configured host:port, replaced
// by the actually bound address once ListenAndServeBackground has bound.
// ListenAndServe leaves it as configured, so a port of 0 stays 0.
func (s *Server) Addr() string { return s.httpServer.Addr }

// ListenAndServe blocks serving the MCP endpoint until Shutdown is called.
func (s *Server) ListenAndServe() error {
	if s.log != nil {
		s.log.Infof("mcpserver: listening on %s", s.httpServer.Addr)
	}
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// ListenAndServeBackground binds synchronously (so a configured port of 0
// resolves to a real ephemeral port before this call returns), then
// serves on a background goroutine whose terminal error, if any, is
// delivered on the returned channel. Production wiring (internal/kernel)
// uses a fixed configured port and ListenAndServe directly; this exists
// for callers — tests — that need Addr() to reflect the bound port
// immediately.
func (s *Server) ListenAndServeBackground() (<-chan error, error) {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return nil, err
	}
	s.httpServer.Addr = ln.Addr().String()
	if s.log != nil {
		s.log.Infof("mcpserver: listening on %s", s.httpServer.Addr)
	}
	errCh := make(chan error, 1)
	go func() {
		err := s.httpServer.Serve(ln)
		if err == http.ErrServerClosed {
			err = nil
		}
		errCh <- err
	}()
	return errCh, nil
}

// Shutdown gracefully stops the server, following the teacher pack's
// context-with-timeout shutdown convention.
func (s *Server) Shutdown(ctx context.Context) error {
	shutdownCtx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		shutdownCtx, cancel = context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
	}
	return s.httpServer.Shutdown(shutdownCtx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// ConsumeSubmission returns and clears the most recent submit_pr summary
// for the given session token, if one is pending (spec.md §4.5 "consumed
// exactly once").
func (s *Server) ConsumeSubmission(token string) (string, bool) {
	return s.submissions.consume(token)
}
