package middleware

import (
	"net/http"
	"time"

	"relayq/internal/httputil"
	"relayq/internal/metrics"
	"relayq/internal/tracing"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// statusRecorder captures the response status for logging and metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Observability wires request tracing, structured logging and metrics
// around every admin HTTP request. Each request gets a request ID, an
// OpenTelemetry span, a timing metric and one completion log line.
func Observability(logger *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = tracing.GenerateRequestID()
			}

			ctx := tracing.WithRequestID(r.Context(), requestID)
			ctx = tracing.WithStartTime(ctx, start)

			ctx, span := tracing.WithOtelTracing(ctx, "http "+r.Method+" "+r.URL.Path)
			defer span.End()

			span.SetAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.target", r.URL.Path),
				attribute.String("request.id", requestID),
			)

			w.Header().Set("X-Request-ID", requestID)
			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(recorder, r.WithContext(ctx))

			duration := time.Since(start)

			span.SetAttributes(attribute.Int("http.status_code", recorder.status))
			if recorder.status >= 500 {
				span.SetStatus(codes.Error, http.StatusText(recorder.status))
			}

			labels := map[string]string{
				"method": r.Method,
				"path":   r.URL.Path,
			}
			metrics.IncrementCounter("http_requests_total", labels, "Admin HTTP requests")
			metrics.RecordTimer("http_request_duration", duration, labels, "Admin HTTP request duration")

			entry := logger.WithFields(logrus.Fields{
				"request_id":  requestID,
				"method":      r.Method,
				"path":        r.URL.Path,
				"status_code": recorder.status,
				"duration_ms": duration.Milliseconds(),
				"remote_ip":   httputil.GetClientIP(r),
				"user_agent":  r.UserAgent(),
			})

			if traceID := tracing.GetOtelTraceID(ctx); traceID != "" {
				entry = entry.WithField("trace_id", traceID)
			}

			switch {
			case recorder.status >= 500:
				entry.Error("Request completed")
			case recorder.status >= 400:
				entry.Warn("Request completed")
			default:
				entry.Info("Request completed")
			}
		})
	}
}
