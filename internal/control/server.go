package control

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"
)

// defaultPollTimeout bounds a POST .../poll request when the caller does
// not supply a ?timeout= query parameter.
const defaultPollTimeout = 200 * time.Millisecond

// Server is the admin HTTP+JSON API: a read-only view over a Registry,
// plus an on-demand readiness check.
type Server struct {
	reg     *Registry
	started time.Time
}

// New constructs the admin API handler. Wrap the result with
// LoggingMiddleware/RecoveryMiddleware before serving it, the same way the
// BFD control plane wrapped its RPC handler with interceptors.
func New(reg *Registry) http.Handler {
	s := &Server{reg: reg, started: time.Now()}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/lines", s.handleList)
	mux.HandleFunc("GET /v1/lines/{name}", s.handleGet)
	mux.HandleFunc("POST /v1/lines/{name}/poll", s.handlePoll)
	mux.HandleFunc("GET /healthz", s.handleHealthz)

	return mux
}

func (s *Server) handleList(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.reg.List())
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	status, ok := s.reg.Get(name)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "line not found"})
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handlePoll(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	timeout := defaultPollTimeout
	if raw := r.URL.Query().Get("timeout"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid timeout: " + err.Error()})
			return
		}
		timeout = parsed
	}

	ready, err := s.reg.Poll(name, timeout)
	switch {
	case errors.Is(err, ErrLineNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "line not found"})
	case err != nil:
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: err.Error()})
	default:
		writeJSON(w, http.StatusOK, pollBody{Ready: ready, TimeoutMS: timeout.Milliseconds()})
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthBody{
		Status: "ok",
		Uptime: uptime(s.started).String(),
	})
}

type errorBody struct {
	Error string `json:"error"`
}

type healthBody struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

type pollBody struct {
	Ready     bool  `json:"ready"`
	TimeoutMS int64 `json:"timeout_ms"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
