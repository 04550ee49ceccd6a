package profilecache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/RyanW02/chainsocial/pkg/ledger"
	"github.com/RyanW02/chainsocial/pkg/ledger/ledgertest"
	"github.com/RyanW02/chainsocial/pkg/types/social"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func countingHook(counter *atomic.Int32, release <-chan struct{}) ledgertest.ReadHook {
	return func(ctx context.Context, op ledgertest.Op, _ string) error {
		if op != ledgertest.OpGetProfile {
			return nil
		}

		counter.Add(1)
		if release != nil {
			select {
			case <-release:
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		return nil
	}
}

func TestGetCachesProfile(t *testing.T) {
	l := ledgertest.New()
	l.SeedUser("AA", "alice", "bio")

	var reads atomic.Int32
	l.SetReadHook(countingHook(&reads, nil))

	cache := New(l, zap.NewNop())

	for i := 0; i < 3; i++ {
		profile, err := cache.Get(context.Background(), "AA")
		require.NoError(t, err)
		require.Equal(t, "alice", profile.Username)
	}

	require.EqualValues(t, 1, reads.Load())
}

func TestConcurrentMissesShareRead(t *testing.T) {
	l := ledgertest.New()
	l.SeedUser("AA", "alice", "bio")

	var reads atomic.Int32
	release := make(chan struct{})
	l.SetReadHook(countingHook(&reads, release))

	cache := New(l, zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			profile, err := cache.Get(context.Background(), "AA")
			require.NoError(t, err)
			require.Equal(t, "alice", profile.Username)
		}()
	}

	require.Eventually(t, func() bool {
		return reads.Load() == 1
	}, time.Second, time.Millisecond)

	close(release)
	wg.Wait()

	require.EqualValues(t, 1, reads.Load())
}

func TestErrorsAreNotCached(t *testing.T) {
	l := ledgertest.New()
	l.SeedUser("AA", "alice", "bio")
	l.SetReadHook(ledgertest.FailWith(ledgertest.OpGetProfile, "AA", errors.New("timeout")))

	cache := New(l, zap.NewNop())

	_, err := cache.Get(context.Background(), "AA")
	require.ErrorIs(t, err, ledger.ErrTransientFetch)
	require.Zero(t, cache.Len())

	l.SetReadHook(nil)

	profile, err := cache.Get(context.Background(), "AA")
	require.NoError(t, err)
	require.Equal(t, "alice", profile.Username)
}

func TestNotFound(t *testing.T) {
	cache := New(ledgertest.New(), zap.NewNop())

	_, err := cache.Get(context.Background(), "ZZ")
	require.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestInvalidate(t *testing.T) {
	l := ledgertest.New()
	l.SeedUser("AA", "alice", "bio")

	cache := New(l, zap.NewNop())
	_, err := cache.Get(context.Background(), "AA")
	require.NoError(t, err)

	l.SeedUser("AA", "alice2", "bio")
	cache.Invalidate("AA")

	_, ok := cache.Peek("AA")
	require.False(t, ok)

	profile, err := cache.Get(context.Background(), "AA")
	require.NoError(t, err)
	require.Equal(t, "alice2", profile.Username)
}

func TestFetchRacingInvalidationIsNotStored(t *testing.T) {
	l := ledgertest.New()
	l.SeedUser("AA", "alice", "bio")

	var reads atomic.Int32
	release := make(chan struct{})
	l.SetReadHook(countingHook(&reads, release))

	cache := New(l, zap.NewNop())

	result := make(chan social.Profile, 1)
	go func() {
		profile, err := cache.Get(context.Background(), "AA")
		require.NoError(t, err)
		result <- profile
	}()

	require.Eventually(t, func() bool {
		return reads.Load() == 1
	}, time.Second, time.Millisecond)

	cache.Invalidate("AA")
	close(release)

	require.Equal(t, "alice", (<-result).Username)

	_, ok := cache.Peek("AA")
	require.False(t, ok)
}

func TestCancelledGet(t *testing.T) {
	l := ledgertest.New()
	l.SeedUser("AA", "alice", "bio")

	var reads atomic.Int32
	release := make(chan struct{})
	defer close(release)
	l.SetReadHook(countingHook(&reads, release))

	cache := New(l, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := cache.Get(ctx, "AA")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
