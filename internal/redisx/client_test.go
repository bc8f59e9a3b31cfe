package redisx

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "products:tenant-1", fmt.Sprintf(KeyProducts, "tenant-1"))
	assert.Equal(t, "dedup:notifier:ev-1", fmt.Sprintf(KeyDedup, "notifier", "ev-1"))
	assert.Equal(t, 5*time.Minute, TTLProducts)
}

// Redis mati: error dikembalikan apa adanya, bukan dianggap cache miss.
func TestCache_UnreachableRedisIsAnError(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 200 * time.Millisecond})
	defer rdb.Close()
	c := NewCache(rdb)
	ctx := context.Background()

	var out []string
	hit, err := c.GetJSON(ctx, "products:t1", &out)
	assert.Error(t, err)
	assert.False(t, hit)
	assert.Error(t, c.Invalidate(ctx, "products:t1"))
	assert.NoError(t, c.Invalidate(ctx))

	_, err = NewDedup(rdb, "notifier").Claim(ctx, "ev-1")
	assert.Error(t, err)
}
