package ledger

import (
	"context"
	"encoding/hex"
	"sync"
)

type Status uint8

const (
	StatusPending Status = iota
	StatusConfirmed
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusConfirmed:
		return "confirmed"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Handle is the pending result of a ledger write. It resolves exactly once, either to confirmed or to failed.
type Handle struct {
	txHash []byte
	done   chan struct{}

	once   sync.Once
	mu     sync.RWMutex
	status Status
	err    error
}

func NewHandle(txHash []byte) *Handle {
	return &Handle{
		txHash: txHash,
		done:   make(chan struct{}),
		status: StatusPending,
	}
}

func (h *Handle) TxHash() []byte {
	return h.txHash
}

func (h *Handle) TxHashString() string {
	return hex.EncodeToString(h.txHash)
}

// Resolve marks the write as confirmed if err is nil, and failed otherwise. Only the first call has any effect.
// It reports whether this call resolved the handle.
func (h *Handle) Resolve(err error) bool {
	resolved := false
	h.once.Do(func() {
		h.mu.Lock()
		if err == nil {
			h.status = StatusConfirmed
		} else {
			h.status = StatusFailed
			h.err = err
		}
		h.mu.Unlock()

		close(h.done)
		resolved = true
	})

	return resolved
}

func (h *Handle) Done() <-chan struct{} {
	return h.done
}

func (h *Handle) Status() Status {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.status
}

// Err returns the failure, or nil while pending or once confirmed.
func (h *Handle) Err() error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.err
}

// Wait blocks until the write resolves or ctx is done. A cancelled wait leaves the handle pending: the write itself
// cannot be aborted once submitted.
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return h.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}
