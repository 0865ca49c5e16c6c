package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

var cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "neuyz_cache_lookups_total",
	Help: "Article cache lookups by result",
}, []string{"result"})

// Cache memoizes computed values per key for a limited time.
// Concurrent lookups of the same missing key run the computation once.
type Cache[V any] struct {
	entries   *expirable.LRU[string, V]
	group     singleflight.Group
	retention time.Duration
}

func New[V any](size int, retention time.Duration) *Cache[V] {
	if size <= 0 {
		size = 1024
	}
	return &Cache[V]{
		entries:   expirable.NewLRU[string, V](size, nil, retention),
		retention: retention,
	}
}

// TryGet returns the cached value for key, or computes and stores it.
// Errors are returned to every waiting caller and are not cached.
// The computation runs detached from ctx so that one caller giving up does
// not fail the others sharing it; a cancelled caller returns ctx.Err().
func (c *Cache[V]) TryGet(ctx context.Context, key string, compute func(ctx context.Context) (V, error)) (V, error) {
	var zero V
	if v, ok := c.entries.Get(key); ok {
		cacheLookups.WithLabelValues("hit").Inc()
		log.WithFields(log.Fields{"key": key}).Debug("Cache hit")
		return v, nil
	}

	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (interface{}, error) {
		// Another flight may have stored the value between Get and DoChan
		if v, ok := c.entries.Get(key); ok {
			return v, nil
		}
		v, err := compute(detached)
		if err != nil {
			return v, err
		}
		c.entries.Add(key, v)
		return v, nil
	})

	select {
	case <-ctx.Done():
		cacheLookups.WithLabelValues("cancelled").Inc()
		return zero, ctx.Err()
	case res := <-ch:
		if res.Shared {
			cacheLookups.WithLabelValues("shared").Inc()
		} else {
			cacheLookups.WithLabelValues("miss").Inc()
		}
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(V), nil
	}
}

// Get returns the cached value for key without computing it
func (c *Cache[V]) Get(key string) (V, bool) {
	return c.entries.Get(key)
}

func (c *Cache[V]) Purge() {
	c.entries.Purge()
}

func (c *Cache[V]) Stats() map[string]interface{} {
	return map[string]interface{}{
		"entries":   c.entries.Len(),
		"retention": c.retention.String(),
	}
}
