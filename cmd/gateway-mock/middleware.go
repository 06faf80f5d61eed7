package main

import (
	"bytes"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"sync"
	"time"
)

type loggingResponseWriter struct {
	http.ResponseWriter
	status int
	body   *bytes.Buffer
}

func (lrw *loggingResponseWriter) WriteHeader(status int) {
	lrw.status = status
	lrw.ResponseWriter.WriteHeader(status)
}

func (lrw *loggingResponseWriter) Write(b []byte) (int, error) {
	lrw.body.Write(b)
	return lrw.ResponseWriter.Write(b)
}

func loggingMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{ResponseWriter: w, status: http.StatusOK, body: &bytes.Buffer{}}
		next.ServeHTTP(lrw, r)

		logger.Info("Request",
			"method", r.Method,
			"uri", r.URL.RequestURI(),
			"status", lrw.status,
			"durationMs", time.Since(start).Milliseconds(),
			"responseBytes", lrw.body.Len())
		logger.Debug("Response body", "body", lrw.body.String())
	})
}

type counter struct {
	mu     sync.Mutex
	counts map[string]int
}

func newCounter() *counter {
	return &counter{counts: make(map[string]int)}
}

// countMiddleware logs how often each path was hit, which shows whether the
// reconciler re-fetches a customer within one run.
func countMiddleware(c *counter, logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.mu.Lock()
		c.counts[r.URL.Path]++
		count := c.counts[r.URL.Path]
		c.mu.Unlock()

		logger.Debug("Endpoint hit", "path", r.URL.Path, "count", count)
		next.ServeHTTP(w, r)
	})
}

func (c *counter) get(path string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[path]
}

type chaos struct {
	failRate float64
	maxDelay time.Duration
}

// chaosMiddleware injects random 500s and latency.
func chaosMiddleware(cfg chaos, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if cfg.maxDelay > 0 {
			time.Sleep(time.Duration(rand.Int64N(int64(cfg.maxDelay))))
		}
		if cfg.failRate > 0 && rand.Float64() < cfg.failRate {
			writeErrors(w, http.StatusInternalServerError, "injected failure")
			return
		}
		next.ServeHTTP(w, r)
	})
}
