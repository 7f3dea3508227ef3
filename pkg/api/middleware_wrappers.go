package api

import (
	"net/http"

	"github.com/dd0wney/cluso-coord/pkg/api/middleware"
)

// panicRecoveryMiddleware recovers from panics in HTTP handlers
func (s *Server) panicRecoveryMiddleware(next http.Handler) http.Handler {
	return middleware.PanicRecovery(s.logger)(next)
}

// loggingMiddleware logs HTTP requests with timing information
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return middleware.Logging(s.logger, middleware.GetRequestID)(next)
}

// requestIDMiddleware adds a unique request ID to each request
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return middleware.RequestID()(next)
}

// metricsMiddleware records HTTP request metrics on the node registry
func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return middleware.Metrics(s.metricsRegistry)(next)
}
