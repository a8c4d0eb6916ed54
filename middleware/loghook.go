package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/alfreddev/alfred-gateway/analytics"
	"github.com/alfreddev/alfred-gateway/auth"
	"github.com/alfreddev/alfred-gateway/logger"
	"github.com/alfreddev/alfred-gateway/metrics"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// LogHookMiddleware is the pipeline's first stage: it installs a
// response-completion hook that fires regardless of which later stage
// rejects the request, per spec.md §2 and §5's ordering guarantee.
type LogHookMiddleware struct {
	analytics *analytics.Engine
	fileSink  *logger.FileSink // nil disables JSONL file logging
	service   string
	logger    zerolog.Logger
}

// NewLogHookMiddleware wires the analytics engine and an optional file
// sink into the pipeline's logging stage.
func NewLogHookMiddleware(eng *analytics.Engine, fileSink *logger.FileSink, service string, log zerolog.Logger) *LogHookMiddleware {
	return &LogHookMiddleware{analytics: eng, fileSink: fileSink, service: service, logger: log}
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (sr *statusRecorder) WriteHeader(code int) {
	if sr.wroteHeader {
		return
	}
	sr.wroteHeader = true
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if !sr.wroteHeader {
		sr.WriteHeader(http.StatusOK)
	}
	return sr.ResponseWriter.Write(b)
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func statusClass(status int) string {
	switch {
	case status < 300:
		return "2xx"
	case status < 400:
		return "3xx"
	case status < 500:
		return "4xx"
	default:
		return "5xx"
	}
}

// Handler returns the HTTP middleware handler.
func (m *LogHookMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		requestID := uuid.New().String()

		next.ServeHTTP(rec, r)

		// Stamped at completion, not at start: records are appended to the
		// buffer in completion order, and a slow request that started
		// before a fast one but finishes after it must still sort after it
		// by timestamp, per the buffer's insertion-order/timestamp-order
		// invariant.
		finished := time.Now()
		elapsed := finished.Sub(start)
		ip := ClientIP(r)
		id, _ := auth.FromContext(r.Context())

		apiKey := r.Header.Get("X-API-Key")
		if apiKey == "" {
			apiKey = r.URL.Query().Get("apiKey")
		}

		m.analytics.Add(analytics.LogRecord{
			Timestamp:     finished,
			Method:        r.Method,
			Path:          r.URL.Path,
			StatusCode:    rec.status,
			ResponseTime:  elapsed,
			ClientID:      id.ClientID,
			IP:            ip,
			APIKey:        apiKey,
			Authenticated: id.Authenticated,
		})

		metrics.RequestsTotal.WithLabelValues(statusClass(rec.status), strconv.FormatBool(id.Authenticated)).Inc()

		if m.fileSink != nil {
			_ = m.fileSink.Write(logger.LogRecord{
				Timestamp:     finished,
				Service:       m.service,
				Method:        r.Method,
				Path:          r.URL.Path,
				StatusCode:    rec.status,
				ResponseTime:  elapsed,
				RequestID:     requestID,
				ClientID:      id.ClientID,
				IP:            ip,
				Authenticated: id.Authenticated,
			})
		}
	})
}
