package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimiter ограничивает число запросов с одного адреса за окно времени.
// Используется для неаутентифицированных эндпоинтов (register, login, refresh),
// чтобы замедлить перебор паролей.
type RateLimiter struct {
	buckets    map[string]*bucket
	logger     *slog.Logger
	now        func() time.Time
	stopC      chan struct{}
	stopOnce   sync.Once
	rate       int
	window     time.Duration
	trustProxy bool
	mu         sync.Mutex
}

// bucket счетчик запросов одного клиента в текущем окне
type bucket struct {
	windowStart time.Time
	count       int
}

// NewRateLimiter создает rate limiter: не более rate запросов за window.
// trustProxy разрешает брать адрес клиента из X-Forwarded-For / X-Real-IP.
func NewRateLimiter(rate int, window time.Duration, trustProxy bool, logger *slog.Logger) *RateLimiter {
	rl := &RateLimiter{
		buckets:    make(map[string]*bucket),
		logger:     logger,
		now:        time.Now,
		stopC:      make(chan struct{}),
		rate:       rate,
		window:     window,
		trustProxy: trustProxy,
	}

	// Периодическая очистка неактивных клиентов
	go rl.cleanup()

	return rl
}

func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(rl.window * 2)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanupOldBuckets()
		case <-rl.stopC:
			return
		}
	}
}

// cleanupOldBuckets удаляет клиентов, окно которых давно закончилось
func (rl *RateLimiter) cleanupOldBuckets() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for key, b := range rl.buckets {
		if now.Sub(b.windowStart) > rl.window*2 {
			delete(rl.buckets, key)
		}
	}
}

// Stop останавливает cleanup goroutine. Safe to call twice.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopC) })
}

// Allow reports whether one more request from key fits into the current
// window and, if not, how long until the window resets.
func (rl *RateLimiter) Allow(key string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b, ok := rl.buckets[key]
	if !ok || now.Sub(b.windowStart) >= rl.window {
		b = &bucket{windowStart: now}
		rl.buckets[key] = b
	}

	if b.count >= rl.rate {
		return false, b.windowStart.Add(rl.window).Sub(now)
	}

	b.count++
	return true, 0
}

// Limit wraps next with the limiter.
func (rl *RateLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := rl.clientIP(r)

		allowed, retryAfter := rl.Allow(key)
		if !allowed {
			rl.logger.WarnContext(r.Context(), "Rate limit exceeded",
				slog.String("ip", key),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
			)

			seconds := int(retryAfter.Round(time.Second) / time.Second)
			if seconds < 1 {
				seconds = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(seconds))
			writeError(w, http.StatusTooManyRequests, "Too many requests, please try again later")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// clientIP извлекает IP адрес клиента из запроса.
// Заголовки прокси учитываются только при trustProxy.
func (rl *RateLimiter) clientIP(r *http.Request) string {
	if rl.trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			return strings.TrimSpace(first)
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return strings.TrimSpace(xri)
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
