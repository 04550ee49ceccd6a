package pool

import (
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

type TestFunc[T any] func(T) bool
type DestructorFunc[T any] func(T) error

// Pool is a round-robin pool used to spread ledger RPCs across nodes. The same connection is handed to many callers
// at once, so **the connection object must be thread-safe**. Connections failing their liveness test are parked and
// periodically re-tested.
type Pool[T comparable] struct {
	mu                     sync.Mutex
	idx                    int
	conns                  []T
	deadConns              []T
	lastTestTime           map[T]time.Time
	livenessValidThreshold time.Duration
	testFunc               TestFunc[T]
	destructorFunc         DestructorFunc[T]
	closeCh                chan struct{}
	closeOnce              sync.Once
}

type PoolConfig[T any] struct {
	LivenessValidThreshold time.Duration
	DeadConnCheckInterval  time.Duration
	TestFunc               TestFunc[T]
	DestructorFunc         DestructorFunc[T]
}

var ErrPoolEmpty = errors.New("pool is empty")

func NewPool[T comparable](conns []T, config PoolConfig[T]) *Pool[T] {
	if config.TestFunc == nil {
		config.TestFunc = func(T) bool { return true }
	}

	if config.DestructorFunc == nil {
		config.DestructorFunc = func(T) error { return nil }
	}

	p := &Pool[T]{
		idx:                    -1,
		lastTestTime:           make(map[T]time.Time),
		livenessValidThreshold: config.LivenessValidThreshold,
		testFunc:               config.TestFunc,
		destructorFunc:         config.DestructorFunc,
		closeCh:                make(chan struct{}),
	}

	if len(conns) > 0 {
		p.Add(conns...)
	}

	if config.DeadConnCheckInterval > 0 {
		go p.startDeadConnTester(config.DeadConnCheckInterval)
	}

	return p
}

// Add tests each connection before admitting it to the live set. Testing happens outside the lock, as it usually
// involves a network round trip.
func (p *Pool[T]) Add(conns ...T) {
	results := make([]bool, len(conns))
	for i, c := range conns {
		results[i] = p.testFunc(c)
	}

	now := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()

	for i, c := range conns {
		p.lastTestTime[c] = now
		if results[i] {
			p.conns = append(p.conns, c)
		} else {
			p.deadConns = append(p.deadConns, c)
		}
	}
}

func (p *Pool[T]) Remove(conn T) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.conns = without(p.conns, conn)
	p.deadConns = without(p.deadConns, conn)
	delete(p.lastTestTime, conn)
}

// Get returns the next live connection in round-robin order. A connection whose last successful test is older than
// the liveness threshold is re-tested first, and moved to the dead set if it fails.
func (p *Pool[T]) Get() (T, error) {
	for {
		p.mu.Lock()
		if len(p.conns) == 0 {
			p.mu.Unlock()

			var zero T
			return zero, ErrPoolEmpty
		}

		p.idx = (p.idx + 1) % len(p.conns)
		conn := p.conns[p.idx]

		lastTested, ok := p.lastTestTime[conn]
		if ok && time.Since(lastTested) <= p.livenessValidThreshold {
			p.mu.Unlock()
			return conn, nil
		}
		p.mu.Unlock()

		if p.testFunc(conn) {
			p.mu.Lock()
			p.lastTestTime[conn] = time.Now()
			p.mu.Unlock()
			return conn, nil
		}

		p.markDead(conn)
	}
}

// GetAll returns every connection. Unless includeDead is set, stale connections are re-tested and only live ones
// are returned.
func (p *Pool[T]) GetAll(includeDead bool) []T {
	p.mu.Lock()
	live := append([]T(nil), p.conns...)
	dead := append([]T(nil), p.deadConns...)
	p.mu.Unlock()

	if includeDead {
		return append(live, dead...)
	}

	conns := make([]T, 0, len(live))
	for _, conn := range live {
		p.mu.Lock()
		lastTested, ok := p.lastTestTime[conn]
		p.mu.Unlock()

		if ok && time.Since(lastTested) <= p.livenessValidThreshold {
			conns = append(conns, conn)
			continue
		}

		if p.testFunc(conn) {
			p.mu.Lock()
			p.lastTestTime[conn] = time.Now()
			p.mu.Unlock()

			conns = append(conns, conn)
		} else {
			p.markDead(conn)
		}
	}

	return conns
}

// Size returns the number of live and dead connections.
func (p *Pool[T]) Size() (live int, dead int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.conns), len(p.deadConns)
}

func (p *Pool[T]) Close() error {
	p.closeOnce.Do(func() {
		close(p.closeCh)
	})

	p.mu.Lock()
	all := append(append([]T(nil), p.conns...), p.deadConns...)
	p.conns = nil
	p.deadConns = nil
	p.mu.Unlock()

	var group errgroup.Group
	for _, conn := range all {
		conn := conn
		group.Go(func() error {
			return p.destructorFunc(conn)
		})
	}

	return group.Wait()
}

func (p *Pool[T]) markDead(conn T) {
	p.mu.Lock()
	defer p.mu.Unlock()

	before := len(p.conns)
	p.conns = without(p.conns, conn)
	if len(p.conns) < before {
		p.deadConns = append(p.deadConns, conn)
	}
}

func (p *Pool[T]) startDeadConnTester(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.mu.Lock()
			dead := append([]T(nil), p.deadConns...)
			p.mu.Unlock()

			for _, conn := range dead {
				if !p.testFunc(conn) {
					continue
				}

				p.mu.Lock()
				before := len(p.deadConns)
				p.deadConns = without(p.deadConns, conn)
				if len(p.deadConns) < before {
					p.conns = append(p.conns, conn)
					p.lastTestTime[conn] = time.Now()
				}
				p.mu.Unlock()
			}
		case <-p.closeCh:
			return
		}
	}
}

func without[T comparable](conns []T, conn T) []T {
	for i, c := range conns {
		if c == conn {
			return append(conns[:i:i], conns[i+1:]...)
		}
	}

	return conns
}
