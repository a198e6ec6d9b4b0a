package cache

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestCache(t *testing.T) *RistrettoCache {
	t.Helper()
	c, err := NewRistrettoCache(&RistrettoConfig{Name: "test", Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestRistrettoCache_SetGetDelete(t *testing.T) {
	c := newTestCache(t)
	var _ Cache = c

	require.True(t, c.Set("health:Orca", "healthy", time.Hour))
	c.Wait()

	got, ok := c.Get("health:Orca")
	require.True(t, ok)
	assert.Equal(t, "healthy", got)

	_, ok = c.Get("health:Phoenix")
	assert.False(t, ok)

	c.Delete("health:Orca")
	_, ok = c.Get("health:Orca")
	assert.False(t, ok)
}

func TestRistrettoCache_TTL(t *testing.T) {
	c := newTestCache(t)

	c.Set("short", "v", 100*time.Millisecond)
	c.Set("forever", "v", 0)
	c.Wait()

	_, ok := c.Get("short")
	require.True(t, ok)

	time.Sleep(200 * time.Millisecond)

	_, ok = c.Get("short")
	assert.False(t, ok, "entry should expire after its ttl")
	_, ok = c.Get("forever")
	assert.True(t, ok, "non-positive ttl never expires")
}

func TestGetOrLoad(t *testing.T) {
	c := newTestCache(t)

	calls := 0
	load := func() (interface{}, error) {
		calls++
		return calls, nil
	}

	v, err := GetOrLoad(c, "k", time.Hour, load)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	c.Wait()

	v, err = GetOrLoad(c, "k", time.Hour, load)
	require.NoError(t, err)
	assert.Equal(t, 1, v, "second call is served from cache")
	assert.Equal(t, 1, calls)
}

func TestGetOrLoad_ErrorsAreNotCached(t *testing.T) {
	c := newTestCache(t)
	boom := errors.New("probe failed")

	_, err := GetOrLoad(c, "k", time.Hour, func() (interface{}, error) { return nil, boom })
	require.ErrorIs(t, err, boom)
	c.Wait()

	v, err := GetOrLoad(c, "k", time.Hour, func() (interface{}, error) { return "ok", nil })
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}
