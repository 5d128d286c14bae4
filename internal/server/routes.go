package server

import (
	"encoding/json"
	"net/http"

	"github.com/zsiec/flowprobe/internal/errors"
	"github.com/zsiec/flowprobe/pkg/version"
)

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "public, max-age=3600")
	s.writeJSON(w, r, http.StatusOK, version.GetInfo())
}

// handleStats serves the receiver counters. Sender-only processes have no
// receiver and answer 404.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		s.errorHandler.HandleError(w, r, errors.NewNotFoundError("receiver stats"))
		return
	}
	s.writeJSON(w, r, http.StatusOK, s.stats.Stats())
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	body, err := json.Marshal(data)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}
