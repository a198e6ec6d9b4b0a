package cache

import "time"

// Cache is a TTL key/value store. The venue registry keeps health probes in
// one so a burst of opportunities does not probe the same venue repeatedly.
type Cache interface {
	Get(key string) (interface{}, bool)
	// Set may return false when the entry is not admitted.
	Set(key string, value interface{}, ttl time.Duration) bool
	Delete(key string)
	Clear()
	// Wait blocks until buffered writes are visible to Get.
	Wait()
	Close()
}

// GetOrLoad returns the cached value for key, or calls load and caches its
// result for ttl. Load errors are returned and never cached.
func GetOrLoad(c Cache, key string, ttl time.Duration, load func() (interface{}, error)) (interface{}, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	v, err := load()
	if err != nil {
		LoadsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	LoadsTotal.WithLabelValues("ok").Inc()

	c.Set(key, v, ttl)
	return v, nil
}
