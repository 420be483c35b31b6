package debug

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/npezzotti/go-chatclient/internal/config"
	"github.com/npezzotti/go-chatclient/internal/session"
	"github.com/npezzotti/go-chatclient/internal/transport"
)

// StateSource is the read-only view of the session state.
type StateSource interface {
	Snapshot() session.Snapshot
}

type ConnState interface {
	State() transport.State
}

// Server exposes a read-only projection of the running session on a local
// address. It never changes session state.
type Server struct {
	log   *log.Logger
	srv   *http.Server
	state StateSource
	conn  ConnState
}

// NewServer adds the debug routes to mux, which may already carry the stats
// handler at /debug/vars.
func NewServer(mux *http.ServeMux, logger *log.Logger, state StateSource, conn ConnState, cfg *config.Config) *Server {
	s := &Server{
		log:   logger,
		state: state,
		conn:  conn,
	}

	mux.HandleFunc("GET /debug/state", s.snapshot)
	mux.HandleFunc("GET /debug/healthz", s.healthz)
	mux.HandleFunc("/", s.notFound)

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Accept"}),
	)(readOnly(mux))

	h = handlers.LoggingHandler(logger.Writer(), h)
	h = s.errorHandler(h)

	s.srv = &http.Server{
		Addr:    cfg.DebugAddr,
		Handler: h,
	}

	return s
}

func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

func (s *Server) Start() error {
	s.log.Printf("starting debug server on %s\n", s.srv.Addr)
	return s.srv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down debug server...")
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("debug server shutdown: %w", err)
	}

	return nil
}
