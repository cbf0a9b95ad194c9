package redis

import (
	"context"
	"time"

	"github.com/redis/rueidis"

	"github.com/MatiasPrietoHernan/Retriever/internal/db"
)

// unlockScript deletes the key only when it still holds the caller's token.
var unlockScript = rueidis.NewLuaScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// TryLock acquires key with SET NX PX.
func (s *Store) TryLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	cmd := s.b().Set().Key(key).Value(token).Nx().PxMilliseconds(ttl.Milliseconds()).Build()
	err := s.do(ctx, cmd).Error()
	if err == nil {
		return true, nil
	}
	if rueidis.IsRedisNil(err) {
		return false, nil
	}
	return false, &db.Error{Op: db.OpLock, Err: err}
}

// Unlock releases key if token still owns it. Releasing an expired or foreign lock is a no-op.
func (s *Store) Unlock(ctx context.Context, key, token string) error {
	err := unlockScript.Exec(ctx, s.client, []string{key}, []string{token}).Error()
	if err != nil && !rueidis.IsRedisNil(err) {
		return &db.Error{Op: db.OpUnlock, Err: err}
	}
	return nil
}
