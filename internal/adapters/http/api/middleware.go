// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/kdawg1232/jitter/pkg/metrics"
)

// MetricsMiddleware wraps a handler to record request counts, latency, and
// failure buckets per endpoint.
func MetricsMiddleware(next http.HandlerFunc, endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		durationMs := float64(time.Since(start).Milliseconds())
		statusCodeStr := strconv.Itoa(wrapped.statusCode)

		metrics.RecordHTTPRequest(endpoint, r.Method, statusCodeStr)
		metrics.RecordHTTPRequestDuration(endpoint, r.Method, statusCodeStr, durationMs)

		if wrapped.statusCode >= http.StatusBadRequest {
			failure, severity := classifyFailure(wrapped.statusCode)
			metrics.RecordErrorByEndpoint(endpoint, r.Method, failure)
			metrics.RecordErrorByType(failure, severity)
		}
	}
}

// classifyFailure buckets a failed response by the API's own failure
// modes: domain validation rejections (422), unknown users or plans (404),
// wrong verbs (405), malformed requests (other 4xx), and server faults.
func classifyFailure(statusCode int) (failure, severity string) {
	switch {
	case statusCode >= http.StatusInternalServerError:
		return "server_fault", "high"
	case statusCode == http.StatusUnprocessableEntity:
		return "invalid_input", "medium"
	case statusCode == http.StatusNotFound:
		return "not_found", "low"
	case statusCode == http.StatusMethodNotAllowed:
		return "method_not_allowed", "low"
	case statusCode >= http.StatusBadRequest:
		return "bad_request", "medium"
	default:
		return "unknown", "low"
	}
}

// responseWriter captures the status code written by the wrapped handler.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("failed to write response: %w", err)
	}
	return n, nil
}
