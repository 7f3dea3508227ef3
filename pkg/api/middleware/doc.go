// Package middleware provides HTTP middleware for the admin API server.
//
//   - recovery.go: Panic recovery middleware
//   - logging.go: Request logging middleware
//   - request_id.go: Request ID generation and tracking middleware
//   - metrics.go: HTTP metrics collection middleware
//
// All middleware follows the standard pattern: func(http.Handler) http.Handler
//
//	handler := middleware.Metrics(registry)(mux)
//	handler = middleware.Logging(logger, middleware.GetRequestID)(handler)
//	handler = middleware.RequestID()(handler)
//	handler = middleware.PanicRecovery(logger)(handler)
package middleware
