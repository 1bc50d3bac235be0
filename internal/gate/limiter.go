package gate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"keygate/internal/platform/config"
)

// Decision is the outcome of one admit attempt. Limit and Current are
// populated on throttle so callers can tune their backoff.
type Decision struct {
	Allowed bool
	Limit   int
	Current int
}

// RateLimiter enforces a fixed-window request count per principal.
// A limit of 0 or less means unlimited: the call must succeed without
// touching the counter store.
type RateLimiter interface {
	Admit(ctx context.Context, principalID string, limit int) (Decision, error)
}

// incrScript atomically increments the window counter and, on the first
// increment, sets the key to expire after the window plus a grace period.
// Splitting INCR and EXPIRE into two round trips would leak an unexpired
// key if the process crashed between them.
const incrScript = `
local current = redis.call("INCR", KEYS[1])
if current == 1 then
	redis.call("EXPIRE", KEYS[1], ARGV[1])
end
return current
`

// RedisLimiter is the distributed fixed-window limiter shared by every
// service instance. On backend failure it fails open (admits) unless
// configured closed: strict enforcement is traded for availability.
type RedisLimiter struct {
	client     *redis.Client
	windowSecs int64
	graceSecs  int64
	failClosed bool
}

func NewRedisLimiter(client *redis.Client, cfg config.RateLimitConfig) *RedisLimiter {
	windowSecs := int64(cfg.Window / time.Second)
	if windowSecs < 1 {
		windowSecs = 1
	}
	graceSecs := int64(cfg.Grace / time.Second)
	if graceSecs < 1 {
		graceSecs = 1
	}
	return &RedisLimiter{
		client:     client,
		windowSecs: windowSecs,
		graceSecs:  graceSecs,
		failClosed: cfg.FailClosed,
	}
}

func (l *RedisLimiter) Admit(ctx context.Context, principalID string, limit int) (Decision, error) {
	if limit <= 0 {
		return Decision{Allowed: true}, nil
	}

	windowStart := time.Now().Unix() / l.windowSecs * l.windowSecs
	key := fmt.Sprintf("rl:user:%s:%d", principalID, windowStart)
	ttl := l.windowSecs + l.graceSecs

	res, err := l.client.Eval(ctx, incrScript, []string{key}, ttl).Result()
	if err != nil {
		if l.failClosed {
			return Decision{Allowed: false, Limit: limit}, err
		}
		log.Warn().Err(err).Str("principal", principalID).Msg("rate limiter backend unavailable, failing open")
		return Decision{Allowed: true, Limit: limit}, nil
	}

	current, ok := res.(int64)
	if !ok {
		if l.failClosed {
			return Decision{Allowed: false, Limit: limit}, fmt.Errorf("unexpected limiter reply type %T", res)
		}
		log.Warn().Str("principal", principalID).Msgf("unexpected limiter reply type %T, failing open", res)
		return Decision{Allowed: true, Limit: limit}, nil
	}

	// The request is counted before the comparison, so under concurrency
	// the limiter over-counts rather than over-admits.
	if int(current) > limit {
		return Decision{Allowed: false, Limit: limit, Current: int(current)}, nil
	}
	return Decision{Allowed: true, Limit: limit, Current: int(current)}, nil
}

type memoryWindow struct {
	count     int
	windowEnd time.Time
}

// MemoryLimiter is a process-local fixed-window limiter with the same
// semantics as RedisLimiter. Suitable for tests and single-node runs.
type MemoryLimiter struct {
	mu      sync.Mutex
	window  time.Duration
	windows map[string]*memoryWindow
	swept   time.Time
}

func NewMemoryLimiter(window time.Duration) *MemoryLimiter {
	if window <= 0 {
		window = time.Second
	}
	return &MemoryLimiter{
		window:  window,
		windows: make(map[string]*memoryWindow),
		swept:   time.Now(),
	}
}

func (l *MemoryLimiter) Admit(_ context.Context, principalID string, limit int) (Decision, error) {
	if limit <= 0 {
		return Decision{Allowed: true}, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	l.sweep(now)

	win := l.windows[principalID]
	if win == nil || now.After(win.windowEnd) {
		win = &memoryWindow{windowEnd: now.Truncate(l.window).Add(l.window)}
		l.windows[principalID] = win
	}
	win.count++

	if win.count > limit {
		return Decision{Allowed: false, Limit: limit, Current: win.count}, nil
	}
	return Decision{Allowed: true, Limit: limit, Current: win.count}, nil
}

// Len reports the number of tracked windows. Test hook.
func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

func (l *MemoryLimiter) sweep(now time.Time) {
	if now.Sub(l.swept) < time.Minute {
		return
	}
	for id, win := range l.windows {
		if now.After(win.windowEnd) {
			delete(l.windows, id)
		}
	}
	l.swept = now
}
