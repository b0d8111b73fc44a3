package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const DefaultKey = "obsnapshots:run-lock"

// ErrLocked is returned when another run holds the lock.
var ErrLocked = errors.New("snapshot run already in progress")

// releaseScript deletes the key only while it still holds our token.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

// Client is the subset of *redis.Client the lock needs.
type Client interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// RunLock keeps a single generator run writing snapshots at a time.
type RunLock struct {
	client Client
	key    string
	ttl    time.Duration
	token  string
}

func NewRunLock(client Client, key string, ttl time.Duration) *RunLock {
	if key == "" {
		key = DefaultKey
	}
	return &RunLock{client: client, key: key, ttl: ttl}
}

// Acquire takes the lock or returns ErrLocked.
func (l *RunLock) Acquire(ctx context.Context) error {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire run lock %s: %w", l.key, err)
	}
	if !ok {
		return ErrLocked
	}
	l.token = token
	return nil
}

// Release drops the lock if this run still owns it. It reports whether the
// key was deleted; false means the lock expired or was taken over.
func (l *RunLock) Release(ctx context.Context) (bool, error) {
	if l.token == "" {
		return false, nil
	}
	n, err := l.client.Eval(ctx, releaseScript, []string{l.key}, l.token).Int64()
	if err != nil {
		return false, fmt.Errorf("release run lock %s: %w", l.key, err)
	}
	l.token = ""
	return n == 1, nil
}

// Token identifies the holder while the lock is held.
func (l *RunLock) Token() string {
	return l.token
}
