package mutation

import (
	"context"
	"errors"

	"github.com/RyanW02/chainsocial/pkg/journal"
	"github.com/RyanW02/chainsocial/pkg/session"
	"github.com/RyanW02/chainsocial/pkg/types/social"
	"go.uber.org/zap"
)

// Resume re-attaches to writes submitted by an earlier session of the same identity that had not resolved when it
// ended. Their optimistic updates are re-applied until the ledger resolves them.
func (c *Coordinator) Resume(ctx context.Context, s *session.Session) ([]*Pending, error) {
	if err := session.Require(s); err != nil {
		return nil, err
	}

	entries, err := c.journal.Unresolved(ctx, s.Identity())
	if err != nil {
		return nil, err
	}

	var resumed []*Pending
	for _, entry := range entries {
		p, err := c.resumeEntry(ctx, s, entry)
		if err == nil {
			resumed = append(resumed, p)
			continue
		}

		logger := c.logger.With(zap.String("kind", entry.Kind), zap.String("entity", entry.Entity), zap.Error(err))

		switch {
		case errors.Is(err, ErrConflict):
			logger.Debug("Not resuming write, a mutation is already pending")
		case errors.Is(err, ErrClosed) || ctx.Err() != nil:
			return resumed, err
		default:
			logger.Warn("Dropping unreadable journal entry")
			if err := c.journal.Resolve(ctx, entry.TxHash); err != nil {
				logger.Warn("Failed to remove journal entry", zap.Error(err))
			}
		}
	}

	if len(resumed) > 0 {
		c.logger.Info("Resumed unresolved writes", zap.Int("count", len(resumed)))
	}

	return resumed, nil
}

func (c *Coordinator) resumeEntry(ctx context.Context, s *session.Session, entry journal.Entry) (*Pending, error) {
	intent, err := intentFromEntry(entry)
	if err != nil {
		return nil, err
	}

	op, err := c.plan(s.Identity(), intent)
	if err != nil {
		return nil, err
	}

	// The write is already on the ledger, so it is tracked even if the current value cannot be read. The refresh
	// after confirmation corrects the displayed value.
	if err := op.lane.prime(ctx); err != nil {
		c.logger.Warn("Failed to read current value for resumed write", zap.String("kind", entry.Kind),
			zap.String("entity", entry.Entity), zap.Error(err))
	}

	p, err := c.begin(op)
	if err != nil {
		return nil, err
	}

	if err := c.slots.Acquire(ctx, 1); err != nil {
		c.abort(p, op, err)
		return nil, err
	}

	handle := c.ledger.Track(entry.TxHash)
	p.setTxHash(entry.TxHash)

	c.wg.Add(1)
	go c.resolve(p, op, handle)

	return p, nil
}

func intentFromEntry(entry journal.Entry) (Intent, error) {
	intent := Intent{
		Kind:  Kind(entry.Kind),
		Text:  entry.Text,
		Extra: entry.Extra,
	}

	switch intent.Kind {
	case KindLike, KindUnlike, KindComment, KindDeletePost:
		key, err := social.ParsePostKey(entry.Entity)
		if err != nil {
			return Intent{}, err
		}

		intent.Post = key
	case KindFollow, KindUnfollow:
		intent.Target = social.NewIdentity(entry.Entity)
	case KindCreatePost, KindUpdateProfile, KindRegister:
	default:
		return Intent{}, invalid(ErrUnknownKind)
	}

	return intent, nil
}
