package profilecache

import (
	"context"
	"sync"

	"github.com/RyanW02/chainsocial/pkg/ledger"
	"github.com/RyanW02/chainsocial/pkg/types/social"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Cache memoises profile reads. Entries live until invalidated; there is no expiry.
type Cache struct {
	reader ledger.Reader
	logger *zap.Logger

	mu          sync.RWMutex
	profiles    map[social.Identity]social.Profile
	generations map[social.Identity]uint64

	group singleflight.Group
}

func New(reader ledger.Reader, logger *zap.Logger) *Cache {
	return &Cache{
		reader:      reader,
		logger:      logger,
		profiles:    make(map[social.Identity]social.Profile),
		generations: make(map[social.Identity]uint64),
	}
}

// Get returns the cached profile, fetching it on a miss. Concurrent misses for the same identity share one read.
// Failed reads are not cached.
func (c *Cache) Get(ctx context.Context, id social.Identity) (social.Profile, error) {
	c.mu.RLock()
	profile, ok := c.profiles[id]
	c.mu.RUnlock()

	if ok {
		return profile, nil
	}

	ch := c.group.DoChan(id.String(), func() (any, error) {
		c.mu.RLock()
		generation := c.generations[id]
		c.mu.RUnlock()

		// The shared read is not tied to any one caller, who may give up waiting independently
		profile, err := c.reader.GetProfile(context.WithoutCancel(ctx), id)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		defer c.mu.Unlock()

		if c.generations[id] == generation {
			c.profiles[id] = profile
		} else {
			c.logger.Debug("Profile invalidated during fetch, not caching", zap.String("identity", id.String()))
		}

		return profile, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return social.Profile{}, res.Err
		}

		return res.Val.(social.Profile), nil
	case <-ctx.Done():
		return social.Profile{}, ledger.NewTransientFetchError("get_profile", ctx.Err())
	}
}

// Peek returns the cached profile without fetching.
func (c *Cache) Peek(id social.Identity) (social.Profile, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	profile, ok := c.profiles[id]
	return profile, ok
}

// Invalidate drops the given identities. A fetch already in flight for one of them will still be returned to its
// callers, but will not repopulate the cache.
func (c *Cache) Invalidate(ids ...social.Identity) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, id := range ids {
		delete(c.profiles, id)
		c.generations[id]++
	}

	// Later callers must not join a read that started before the invalidation
	for _, id := range ids {
		c.group.Forget(id.String())
	}
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.profiles)
}
