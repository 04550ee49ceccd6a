package mutation

import (
	"context"
	"encoding/hex"
	"sync"
)

// Pending tracks one submitted mutation until it resolves.
type Pending struct {
	Key  Key    `json:"key"`
	Kind Kind   `json:"kind"`
	Seq  uint64 `json:"seq"`

	mu     sync.RWMutex
	state  State
	err    error
	txHash []byte
	done   chan struct{}
	once   sync.Once
}

func newPending(key Key, kind Kind, seq uint64) *Pending {
	return &Pending{
		Key:   key,
		Kind:  kind,
		Seq:   seq,
		state: StatePending,
		done:  make(chan struct{}),
	}
}

// Done is closed once the mutation has been committed or rolled back.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the mutation resolves, returning the error it failed with. Giving up on the wait does not
// affect the mutation.
func (p *Pending) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return p.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pending) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

func (p *Pending) Err() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.err
}

// TxHash is the hex encoded hash of the ledger write, empty until submitted.
func (p *Pending) TxHash() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return hex.EncodeToString(p.txHash)
}

func (p *Pending) setTxHash(txHash []byte) {
	p.mu.Lock()
	p.txHash = txHash
	p.mu.Unlock()
}

func (p *Pending) setState(state State) {
	p.mu.Lock()
	p.state = state
	p.mu.Unlock()
}

func (p *Pending) finish(state State, err error) {
	p.once.Do(func() {
		p.mu.Lock()
		p.state = state
		p.err = err
		p.mu.Unlock()

		close(p.done)
	})
}
