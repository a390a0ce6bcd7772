package service

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// El primer envio de la ventana fija el vencimiento del contador.
var signupMailScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`)

const signupMailKeyPrefix = "signup:mail:rl:"

type redisMailRateLimiter struct {
	client redis.Scripter
	window time.Duration
	max    int64
}

// NewRedisMailRateLimiter comparte el conteo de correos de signup entre instancias.
// Recibe emails ya normalizados. Si Redis falla, el envio se permite.
func NewRedisMailRateLimiter(client *redis.Client, window time.Duration, max int) MailRateLimiter {
	if client == nil {
		return nil
	}
	return newRedisMailRateLimiter(client, window, max)
}

func newRedisMailRateLimiter(client redis.Scripter, window time.Duration, max int) *redisMailRateLimiter {
	if window < time.Millisecond {
		window = time.Minute
	}
	if max <= 0 {
		max = 1
	}
	return &redisMailRateLimiter{client: client, window: window, max: int64(max)}
}

func (l *redisMailRateLimiter) Allow(ctx context.Context, email string) bool {
	if l == nil || l.client == nil {
		return true
	}
	if email == "" {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	n, err := signupMailScript.Run(ctx, l.client, []string{signupMailKeyPrefix + email}, l.window.Milliseconds()).Int64()
	if err != nil {
		return true
	}
	return n <= l.max
}
