package middleware

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// Deduper tracks idempotency keys already used for order submission.
type Deduper interface {
	Seen(ctx context.Context, key string) (bool, error)
}

type redisDeduper struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func (d *redisDeduper) Seen(ctx context.Context, key string) (bool, error) {
	ok, err := d.client.SetNX(ctx, d.prefix+":"+key, "1", d.ttl).Result()
	if err != nil {
		return false, err
	}
	// false => key exists => duplicate
	return !ok, nil
}

type memoryDeduper struct {
	mu     sync.Mutex
	seen   map[string]time.Time
	ttl    time.Duration
	nextGC time.Time
}

func newMemoryDeduper(ttl time.Duration) *memoryDeduper {
	now := time.Now()
	return &memoryDeduper{
		seen:   make(map[string]time.Time),
		ttl:    ttl,
		nextGC: now.Add(ttl),
	}
}

func (d *memoryDeduper) Seen(_ context.Context, key string) (bool, error) {
	now := time.Now()

	d.mu.Lock()
	defer d.mu.Unlock()

	if exp, ok := d.seen[key]; ok && exp.After(now) {
		return true, nil
	}

	d.seen[key] = now.Add(d.ttl)
	if now.After(d.nextGC) {
		for k, exp := range d.seen {
			if exp.Before(now) {
				delete(d.seen, k)
			}
		}
		d.nextGC = now.Add(d.ttl)
	}

	return false, nil
}

// NewDeduper builds a Redis deduper and falls back to in-memory when Redis
// is unreachable or unconfigured.
func NewDeduper(addr, pass string, db int, ttl time.Duration) (Deduper, error) {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if addr == "" {
		return newMemoryDeduper(ttl), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: pass,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return newMemoryDeduper(ttl), err
	}

	return &redisDeduper{
		client: client,
		prefix: "orders:idem",
		ttl:    ttl,
	}, nil
}

// Idempotency rejects a repeated submission carrying an Idempotency-Key
// header already seen within the dedup window. Requests without the
// header pass through unchecked.
func Idempotency(deduper Deduper) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if deduper == nil {
				return next(c)
			}

			key := strings.TrimSpace(c.Request().Header.Get("Idempotency-Key"))
			if key == "" {
				return next(c)
			}

			duplicate, err := deduper.Seen(c.Request().Context(), key)
			if err != nil {
				// Dedup is best effort; never block a submission on it.
				return next(c)
			}
			if duplicate {
				return c.JSON(http.StatusConflict, map[string]interface{}{
					"status": false,
					"msg":    "duplicate submission",
					"obj":    nil,
				})
			}

			return next(c)
		}
	}
}
