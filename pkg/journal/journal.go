package journal

import (
	"context"
	"time"

	"github.com/RyanW02/chainsocial/pkg/types/social"
)

// Journal records writes that have been submitted to the ledger but not yet resolved, so that a later session can
// re-attach to them.
type Journal interface {
	Record(ctx context.Context, entry Entry) error
	Resolve(ctx context.Context, txHash []byte) error
	// Unresolved returns the signer's unresolved writes in submission order.
	Unresolved(ctx context.Context, signer social.Identity) ([]Entry, error)
	Close(ctx context.Context) error
}

// Entry describes a write with enough detail to re-apply its optimistic update.
type Entry struct {
	TxHash      []byte          `json:"tx_hash"`
	Signer      social.Identity `json:"signer"`
	Kind        string          `json:"kind"`
	Entity      string          `json:"entity"`
	Text        string          `json:"text,omitempty"`
	Extra       string          `json:"extra,omitempty"`
	SubmittedAt time.Time       `json:"submitted_at"`
}
