package cache_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jonesrussell/north-cloud/curator/internal/cache"
)

func TestTTL_Expires(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	c := cache.NewTTL[string, []string](time.Minute).WithClock(func() time.Time { return now })

	c.Set("channel-1", []string{"roads"})
	got, ok := c.Get("channel-1")
	assert.True(t, ok)
	assert.Equal(t, []string{"roads"}, got)

	now = now.Add(59 * time.Second)
	_, ok = c.Get("channel-1")
	assert.True(t, ok)

	now = now.Add(time.Second)
	_, ok = c.Get("channel-1")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestTTL_Delete(t *testing.T) {
	t.Parallel()

	c := cache.NewTTL[int, string](time.Hour)
	c.Set(1, "a")
	c.Delete(1)

	_, ok := c.Get(1)
	assert.False(t, ok)
}
