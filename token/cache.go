package token

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// CachingResolver remembers successful resolutions for a short time so that a
// burst of MCP requests does not hit the upstream once per request. Failures
// are never cached.
type CachingResolver struct {
	next  Resolver
	ttl   time.Duration
	cache *gocache.Cache
	now   func() time.Time
}

var _ Resolver = (*CachingResolver)(nil)

func NewCachingResolver(next Resolver, ttl time.Duration) *CachingResolver {
	return &CachingResolver{
		next:  next,
		ttl:   ttl,
		cache: gocache.New(ttl, time.Minute),
		now:   time.Now,
	}
}

func (c *CachingResolver) Resolve(ctx context.Context, bearer string) (*Identity, error) {
	key := cacheKey(bearer)
	if v, ok := c.cache.Get(key); ok {
		id := v.(*Identity)
		if id.ExpiresAt.IsZero() || c.now().Before(id.ExpiresAt) {
			return id, nil
		}
		c.cache.Delete(key)
	}

	id, err := c.next.Resolve(ctx, bearer)
	if err != nil {
		return nil, err
	}

	ttl := c.ttl
	if !id.ExpiresAt.IsZero() {
		if untilExp := id.ExpiresAt.Sub(c.now()); untilExp < ttl {
			ttl = untilExp
		}
	}
	if ttl > 0 {
		c.cache.Set(key, id, ttl)
	}
	return id, nil
}

func cacheKey(bearer string) string {
	sum := sha256.Sum256([]byte(bearer))
	return hex.EncodeToString(sum[:])
}
