package pool

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type connection struct {
	id int
}

var (
	passingTest TestFunc[connection] = func(c connection) bool {
		return true
	}

	failingTest TestFunc[connection] = func(c connection) bool {
		return false
	}
)

func TestTakeConns(t *testing.T) {
	p := NewPool[connection](nil, PoolConfig[connection]{
		LivenessValidThreshold: time.Minute,
		TestFunc:               passingTest,
	})

	c1, c2, c3 := connection{1}, connection{2}, connection{3}
	p.Add(c1, c2, c3)

	for _, expected := range []connection{c1, c2, c3} {
		conn, err := p.Get()
		require.NoError(t, err)
		require.Equal(t, expected, conn)
	}
}

func TestRoundRobin(t *testing.T) {
	p := NewPool[connection]([]connection{{1}, {2}}, PoolConfig[connection]{
		LivenessValidThreshold: time.Minute,
		TestFunc:               passingTest,
	})

	var ids []int
	for i := 0; i < 5; i++ {
		conn, err := p.Get()
		require.NoError(t, err)
		ids = append(ids, conn.id)
	}

	require.Equal(t, []int{1, 2, 1, 2, 1}, ids)
}

func TestEmptyPool(t *testing.T) {
	p := NewPool[connection](nil, PoolConfig[connection]{})

	_, err := p.Get()
	require.ErrorIs(t, err, ErrPoolEmpty)
}

func TestDeadConnsNotReturned(t *testing.T) {
	p := NewPool[connection]([]connection{{1}, {2}}, PoolConfig[connection]{
		LivenessValidThreshold: time.Minute,
		TestFunc:               failingTest,
	})

	live, dead := p.Size()
	require.Equal(t, 0, live)
	require.Equal(t, 2, dead)

	_, err := p.Get()
	require.ErrorIs(t, err, ErrPoolEmpty)
	require.Len(t, p.GetAll(true), 2)
	require.Empty(t, p.GetAll(false))
}

func TestStaleConnRetested(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)

	p := NewPool[connection]([]connection{{1}, {2}}, PoolConfig[connection]{
		LivenessValidThreshold: 0, // Always re-test
		TestFunc: func(c connection) bool {
			return c.id != 1 || healthy.Load()
		},
	})

	healthy.Store(false)

	for i := 0; i < 3; i++ {
		conn, err := p.Get()
		require.NoError(t, err)
		require.Equal(t, 2, conn.id)
	}

	live, dead := p.Size()
	require.Equal(t, 1, live)
	require.Equal(t, 1, dead)
}

func TestDeadConnRevived(t *testing.T) {
	var healthy atomic.Bool

	p := NewPool[connection]([]connection{{1}}, PoolConfig[connection]{
		LivenessValidThreshold: time.Minute,
		DeadConnCheckInterval:  10 * time.Millisecond,
		TestFunc: func(c connection) bool {
			return healthy.Load()
		},
	})
	defer p.Close()

	_, err := p.Get()
	require.ErrorIs(t, err, ErrPoolEmpty)

	healthy.Store(true)
	require.Eventually(t, func() bool {
		_, err := p.Get()
		return err == nil
	}, time.Second, 10*time.Millisecond)
}

func TestCloseRunsDestructors(t *testing.T) {
	var destroyed atomic.Int32

	p := NewPool[connection]([]connection{{1}, {2}, {3}}, PoolConfig[connection]{
		TestFunc: passingTest,
		DestructorFunc: func(connection) error {
			destroyed.Add(1)
			return nil
		},
	})

	require.NoError(t, p.Close())
	require.Equal(t, int32(3), destroyed.Load())
}
