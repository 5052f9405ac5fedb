package observability

import (
	"net/http"
	"strconv"
	"time"
)

// MetricsMiddleware instruments a handler with the request counter, the
// latency histogram, and the active streaming gauge. Requests that
// negotiate text/event-stream count toward the gauge for as long as the
// handler runs.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept") == "text/event-stream" {
			StreamingConnections.Inc()
			defer StreamingConnections.Dec()
		}

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(sw, r)
		elapsed := time.Since(start)

		// The registered mux pattern keeps label cardinality bounded;
		// the raw path is only a fallback for unmatched requests.
		route := r.Pattern
		if route == "" {
			route = r.URL.Path
		}
		class := strconv.Itoa(sw.status/100) + "xx"

		RequestsTotal.WithLabelValues(r.Method, class, route).Inc()
		RequestDuration.WithLabelValues(r.Method, route).Observe(elapsed.Seconds())
	})
}

// statusWriter remembers the first status code written so the labels
// reflect what the client actually saw.
type statusWriter struct {
	http.ResponseWriter
	status  int
	written bool
}

func (w *statusWriter) WriteHeader(status int) {
	if !w.written {
		w.status = status
		w.written = true
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.written = true
	return w.ResponseWriter.Write(b)
}

// Flush forwards to the wrapped writer; SSE responses depend on it.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap exposes the wrapped writer to http.ResponseController.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
