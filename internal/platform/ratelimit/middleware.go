package ratelimit

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"dunning/pkg/platform/httputil"
	"dunning/pkg/platform/privacy"
	"dunning/pkg/requestcontext"
)

type exceededResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after"`
}

// PerClient limits requests by client IP. A nil store disables the check.
func PerClient(store *Store, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if store == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			now := requestcontext.Now(ctx)
			ip := requestcontext.ClientIP(ctx)
			res := store.Allow(ip, now)

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))

			if !res.Allowed {
				retry := res.RetryAfter(now)
				logger.WarnContext(ctx, "client rate limit exceeded",
					"client", privacy.HashID(ip),
					"path", r.URL.Path,
					"request_id", requestcontext.RequestID(ctx),
				)
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				httputil.WriteJSON(w, http.StatusTooManyRequests, exceededResponse{
					Error:      "rate_limit_exceeded",
					Message:    "too many requests from this client, try again later",
					RetryAfter: retry,
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SweepEvery runs Sweep on interval until stop is closed.
func (s *Store) SweepEvery(interval time.Duration, stop <-chan struct{}) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case now := <-t.C:
			s.Sweep(now)
		}
	}
}
