package datasource

import (
	"context"
	"fmt"
	"sync"
	"time"

	cache "github.com/patrickmn/go-cache"

	"github.com/yourusername/smart-charge/internal/models"
)

// CacheKey identifies one fetched price series.
type CacheKey struct {
	Source string
	Region string
	From   time.Time
	To     time.Time
}

// String returns string representation of cache key
func (k CacheKey) String() string {
	return fmt.Sprintf("%s:%s:%d:%d", k.Source, k.Region, k.From.Unix(), k.To.Unix())
}

// CachedPriceSource memoizes a PriceSource for a TTL. Empty results are not cached.
type CachedPriceSource struct {
	inner PriceSource
	cache *cache.Cache
	ttl   time.Duration

	mu        sync.Mutex
	hitCount  uint64
	missCount uint64
}

// NewCachedPriceSource wraps inner with a TTL cache.
func NewCachedPriceSource(inner PriceSource, ttl time.Duration) *CachedPriceSource {
	return &CachedPriceSource{
		inner: inner,
		cache: cache.New(ttl, ttl*2),
		ttl:   ttl,
	}
}

func (c *CachedPriceSource) Name() string {
	return c.inner.Name()
}

func (c *CachedPriceSource) FetchPrices(ctx context.Context, region string, from, to time.Time) ([]models.PriceSlot, error) {
	key := CacheKey{Source: c.inner.Name(), Region: region, From: from, To: to}.String()
	if v, found := c.cache.Get(key); found {
		if slots, ok := v.([]models.PriceSlot); ok {
			c.count(true)
			return append([]models.PriceSlot(nil), slots...), nil
		}
	}
	c.count(false)

	slots, err := c.inner.FetchPrices(ctx, region, from, to)
	if err != nil {
		return nil, err
	}
	if len(slots) > 0 {
		c.cache.Set(key, append([]models.PriceSlot(nil), slots...), c.ttl)
	}
	return slots, nil
}

func (c *CachedPriceSource) count(hit bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if hit {
		c.hitCount++
	} else {
		c.missCount++
	}
}

// Clear flushes the entire cache
func (c *CachedPriceSource) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Flush()
	c.hitCount = 0
	c.missCount = 0
}

// Stats returns cache statistics
func (c *CachedPriceSource) Stats() (hits, misses uint64, ratio float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	hits = c.hitCount
	misses = c.missCount
	total := hits + misses
	if total > 0 {
		ratio = float64(hits) / float64(total)
	}
	return
}

// ItemCount returns the number of items in cache
func (c *CachedPriceSource) ItemCount() int {
	return c.cache.ItemCount()
}
