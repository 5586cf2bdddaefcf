package api

import (
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/portfolio-tracker/internal/logging"
)

// loggingMiddleware logs each request with method, path, status and latency.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		ctx := logging.WithLogger(r.Context(), s.logger)
		next.ServeHTTP(recorder, r.WithContext(ctx))

		s.logger.WithFields(map[string]interface{}{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   recorder.status,
			"duration": time.Since(start).String(),
			"remote":   r.RemoteAddr,
		}).Info("Request handled")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// rateLimitMiddleware throttles per remote address. Every portfolio request
// fans out to external sources, so an unthrottled caller would burn through
// venue rate limits on our behalf.
func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiterFor(r.RemoteAddr).Allow() {
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) limiterFor(remote string) *rate.Limiter {
	s.limiterMu.Lock()
	defer s.limiterMu.Unlock()
	limiter, ok := s.limiters[remote]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(1), 3)
		s.limiters[remote] = limiter
	}
	return limiter
}
