package mid

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"

	"github.com/WessleyAI/wessley-diagnostics/pkg/resilience"
)

// KeyFunc picks the rate-limit bucket for a request.
type KeyFunc func(*http.Request) string

// OwnerOrIP keys by owner when known, else by client address.
func OwnerOrIP(r *http.Request) string {
	if owner, ok := OwnerFrom(r.Context()); ok {
		return "owner:" + owner
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}

// RateLimit rejects requests over the limiter's window with 429. Only the
// listed methods are counted; none means every method. A failing counter
// store lets the request through.
func RateLimit(l *resilience.WindowLimiter, key KeyFunc, log *slog.Logger, methods ...string) Middleware {
	if key == nil {
		key = OwnerOrIP
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !counted(r.Method, methods) {
				next.ServeHTTP(w, r)
				return
			}
			k := key(r)
			d, err := l.Allow(r.Context(), k)
			if err != nil {
				log.Warn("rate limit store failed", "key", k, "err", err)
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			if !d.Allowed {
				secs := int(math.Ceil(d.RetryAfter(l.Now()).Seconds()))
				w.Header().Set("Retry-After", strconv.Itoa(max(secs, 1)))
				log.Info("rate limited", "key", k, "path", r.URL.Path)
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func counted(method string, methods []string) bool {
	if len(methods) == 0 {
		return true
	}
	for _, m := range methods {
		if m == method {
			return true
		}
	}
	return false
}
