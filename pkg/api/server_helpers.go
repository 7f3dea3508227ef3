package api

import (
	"encoding/json"
	"net/http"

	"github.com/dd0wney/cluso-coord/pkg/logging"
)

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("failed to encode JSON response", logging.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	response := ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Code:    status,
	}
	s.respondJSON(w, status, response)
}

// respondInternal logs err and sends a generic message; store errors can
// carry connection details that should not leave the node.
func (s *Server) respondInternal(w http.ResponseWriter, r *http.Request, operation string, err error) {
	s.logger.Error("admin request failed",
		logging.Operation(operation),
		logging.Path(r.URL.Path),
		logging.Error(err))
	s.respondError(w, http.StatusInternalServerError, operation+" failed")
}
