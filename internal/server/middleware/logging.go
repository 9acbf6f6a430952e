package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Logger logs every request with structured logging: method, path, status,
// duration, request id, remote address, and any attributes the handler
// attached with Annotate. The query string is never logged because the
// lookup RPCs carry credentials in it.
func Logger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			ann := &annotations{}
			r = r.WithContext(context.WithValue(r.Context(), annotationsKey, ann))

			next.ServeHTTP(ww, r)

			duration := time.Since(start)
			level := slog.LevelInfo
			if ww.status >= 500 {
				level = slog.LevelError
			} else if ww.status >= 400 {
				level = slog.LevelWarn
			}

			args := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.status,
				"duration_ms", float64(duration.Microseconds()) / 1000.0,
				"bytes", ww.bytes,
				"request_id", GetRequestID(r.Context()),
				"remote_addr", r.RemoteAddr,
			}
			logger.Log(r.Context(), level, "request", append(args, ann.list()...)...)
		})
	}
}

const annotationsKey contextKey = "log_annotations"

type annotations struct {
	mu    sync.Mutex
	attrs []any
}

func (a *annotations) list() []any {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.attrs
}

// Annotate attaches key=value to the access log line of the request in ctx.
// It is a no-op outside the Logger middleware.
func Annotate(ctx context.Context, key string, value any) {
	a, ok := ctx.Value(annotationsKey).(*annotations)
	if !ok {
		return
	}
	a.mu.Lock()
	a.attrs = append(a.attrs, key, value)
	a.mu.Unlock()
}

// responseWriter wraps http.ResponseWriter to capture the status code and
// bytes written for logging purposes.
type responseWriter struct {
	http.ResponseWriter
	status      int
	bytes       int
	wroteHeader bool
}

func (w *responseWriter) WriteHeader(code int) {
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *responseWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// Unwrap returns the underlying ResponseWriter, required for http.Flusher
// and other interface assertions through middleware chains.
func (w *responseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
