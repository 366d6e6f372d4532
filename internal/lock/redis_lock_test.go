package lock

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedisLockerRequiresClient(t *testing.T) {
	_, err := NewRedisLocker(nil, "")
	assert.Error(t, err)
}

func TestKeyIsStableAndPrefixed(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:0"})
	t.Cleanup(func() { _ = client.Close() })

	l, err := NewRedisLocker(client, "")
	require.NoError(t, err)

	a := l.Key("/srv/out/a.jpg")
	assert.Equal(t, a, l.Key("/srv/out/a.jpg"))
	assert.NotEqual(t, a, l.Key("/srv/out/b.jpg"))
	assert.Regexp(t, `^pixelmod:lock:[0-9a-f]{40}$`, a)
}

func TestAcquireRejectsNonPositiveTTL(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:0"})
	t.Cleanup(func() { _ = client.Close() })

	l, err := NewRedisLocker(client, "test")
	require.NoError(t, err)

	_, err = l.Acquire(context.Background(), "x", 0)
	assert.Error(t, err)
	_, err = l.Acquire(context.Background(), "x", -time.Second)
	assert.Error(t, err)
}
