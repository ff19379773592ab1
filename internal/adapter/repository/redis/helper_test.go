package redis

import (
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	redislib "github.com/redis/go-redis/v9"
)

// newTestRedisClient backs the store tests with an in-process miniredis
// so TTL and SetNX behaviour can be exercised without a real server.
func newTestRedisClient(t *testing.T) (*redislib.Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redislib.NewClient(&redislib.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return client, mr
}
