package journal

import (
	"context"

	"github.com/RyanW02/chainsocial/pkg/types/social"
)

type NoopJournal struct{}

var _ Journal = (*NoopJournal)(nil)

func NewNoopJournal() *NoopJournal {
	return &NoopJournal{}
}

func (NoopJournal) Record(context.Context, Entry) error {
	return nil
}

func (NoopJournal) Resolve(context.Context, []byte) error {
	return nil
}

func (NoopJournal) Unresolved(context.Context, social.Identity) ([]Entry, error) {
	return nil, nil
}

func (NoopJournal) Close(context.Context) error {
	return nil
}
