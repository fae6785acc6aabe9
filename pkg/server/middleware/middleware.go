package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"
)

func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if p := recover(); p != nil {
				slog.Error("panic caught",
					slog.String("request_id", RequestIDFrom(r.Context())),
					slog.String("method", r.Method),
					slog.String("request_uri", r.URL.RequestURI()),
					slog.Any("panic", p),
					slog.String("stacktrace", string(debug.Stack())),
				)

				http.Error(w, "internal error", http.StatusInternalServerError)
			}
		}()

		next.ServeHTTP(w, r)
	})
}

type responseWriter struct {
	http.ResponseWriter

	status  int
	written int
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += n
	return n, err
}

func (rw *responseWriter) WriteHeader(statusCode int) {
	rw.status = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

// Log writes a debug record per request. Rejected requests (4xx and 5xx) are logged at
// info level so they stay visible with debug disabled.
func Log(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if !slog.Default().Enabled(ctx, slog.LevelInfo) {
			next.ServeHTTP(w, r)
			return
		}

		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		t0 := time.Now()

		next.ServeHTTP(rw, r)

		lvl := slog.LevelDebug
		if rw.status >= http.StatusBadRequest {
			lvl = slog.LevelInfo
		}

		slog.Log(ctx, lvl, "request served",
			slog.Duration("delay", time.Since(t0)),
			slog.String("request_id", RequestIDFrom(ctx)),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("caller", r.URL.Query().Get("caller")),
			slog.Int("status", rw.status),
			slog.Int("response_length", rw.written),
		)
	})
}
