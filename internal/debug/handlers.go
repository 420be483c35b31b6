package debug

import (
	"encoding/json"
	"net/http"

	"github.com/npezzotti/go-chatclient/internal/transport"
	"github.com/npezzotti/go-chatclient/internal/types"
)

type HealthResponse struct {
	Connection string         `json:"connection"`
	Presence   types.Presence `json:"presence"`
}

func (s *Server) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Printf("json encode: %v", err)
	}
}

func (s *Server) snapshot(w http.ResponseWriter, _ *http.Request) {
	s.writeJson(w, http.StatusOK, s.state.Snapshot())
}

// healthz answers 200 while the connection is open and 503 otherwise.
func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	resp := HealthResponse{
		Connection: s.conn.State().String(),
		Presence:   s.state.Snapshot().Presence,
	}

	if s.conn.State() != transport.StateOpen {
		errResp := NewServiceUnavailableError("connection " + resp.Connection)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, resp)
}

func (s *Server) notFound(w http.ResponseWriter, _ *http.Request) {
	errResp := NewNotFoundError()
	s.writeJson(w, errResp.StatusCode, errResp)
}
