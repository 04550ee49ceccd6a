package mutation

import (
	"context"
	"sync"
	"time"

	"github.com/RyanW02/chainsocial/internal/config"
	"github.com/RyanW02/chainsocial/pkg/interaction"
	"github.com/RyanW02/chainsocial/pkg/journal"
	"github.com/RyanW02/chainsocial/pkg/ledger"
	"github.com/RyanW02/chainsocial/pkg/media"
	"github.com/RyanW02/chainsocial/pkg/profilecache"
	"github.com/RyanW02/chainsocial/pkg/session"
	"github.com/RyanW02/chainsocial/pkg/types/social"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// Coordinator applies user mutations optimistically, submits them to the ledger and reconciles the store once the
// ledger resolves them. At most one mutation per Key is pending at any time.
type Coordinator struct {
	config  config.Sync
	logger  *zap.Logger
	ledger  ledger.Ledger
	store   *interaction.Store
	cache   *profilecache.Cache
	journal journal.Journal
	media   *media.Resolver

	slots *semaphore.Weighted

	mu       sync.Mutex
	inflight map[Key]*Pending
	closed   bool

	// Resolvers outlive the request that submitted the mutation
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewCoordinator(
	cfg config.Sync,
	logger *zap.Logger,
	l ledger.Ledger,
	store *interaction.Store,
	cache *profilecache.Cache,
	j journal.Journal,
	resolver *media.Resolver,
) *Coordinator {
	maxPendingWrites := cfg.MaxPendingWrites
	if maxPendingWrites <= 0 {
		maxPendingWrites = 1
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Coordinator{
		config:   cfg,
		logger:   logger,
		ledger:   l,
		store:    store,
		cache:    cache,
		journal:  j,
		media:    resolver,
		slots:    semaphore.NewWeighted(int64(maxPendingWrites)),
		inflight: make(map[Key]*Pending),
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (c *Coordinator) Like(ctx context.Context, s *session.Session, key social.PostKey) (*Pending, error) {
	return c.Submit(ctx, s, Intent{Kind: KindLike, Post: key})
}

func (c *Coordinator) Unlike(ctx context.Context, s *session.Session, key social.PostKey) (*Pending, error) {
	return c.Submit(ctx, s, Intent{Kind: KindUnlike, Post: key})
}

func (c *Coordinator) Comment(ctx context.Context, s *session.Session, key social.PostKey, text string) (*Pending, error) {
	return c.Submit(ctx, s, Intent{Kind: KindComment, Post: key, Text: text})
}

func (c *Coordinator) Follow(ctx context.Context, s *session.Session, target social.Identity) (*Pending, error) {
	return c.Submit(ctx, s, Intent{Kind: KindFollow, Target: target})
}

func (c *Coordinator) Unfollow(ctx context.Context, s *session.Session, target social.Identity) (*Pending, error) {
	return c.Submit(ctx, s, Intent{Kind: KindUnfollow, Target: target})
}

// CreatePost accepts an optional media reference: a CID, ipfs:// URI or web URL.
func (c *Coordinator) CreatePost(ctx context.Context, s *session.Session, content, mediaRef string) (*Pending, error) {
	return c.Submit(ctx, s, Intent{Kind: KindCreatePost, Text: content, Extra: mediaRef})
}

func (c *Coordinator) DeletePost(ctx context.Context, s *session.Session, postId uint64) (*Pending, error) {
	if err := session.Require(s); err != nil {
		return nil, err
	}

	return c.Submit(ctx, s, Intent{Kind: KindDeletePost, Post: social.NewPostKey(s.Identity(), postId)})
}

func (c *Coordinator) UpdateProfile(ctx context.Context, s *session.Session, avatarRef string) (*Pending, error) {
	return c.Submit(ctx, s, Intent{Kind: KindUpdateProfile, Extra: avatarRef})
}

func (c *Coordinator) Register(ctx context.Context, s *session.Session, username, bio string) (*Pending, error) {
	return c.Submit(ctx, s, Intent{Kind: KindRegister, Text: username, Extra: bio})
}

// Submit validates the intent, applies its optimistic update and submits it to the ledger. The returned Pending
// resolves once the ledger has confirmed and the store has been reconciled, or the update has been rolled back.
// ctx only bounds the submission: a submitted write is never cancelled.
func (c *Coordinator) Submit(ctx context.Context, s *session.Session, intent Intent) (*Pending, error) {
	if err := session.Require(s); err != nil {
		return nil, err
	}

	op, err := c.plan(s.Identity(), intent)
	if err != nil {
		return nil, err
	}

	if err := op.lane.prime(ctx); err != nil {
		return nil, err
	}

	p, err := c.begin(op)
	if err != nil {
		return nil, err
	}

	if err := c.slots.Acquire(ctx, 1); err != nil {
		c.abort(p, op, err)
		return nil, err
	}

	handle, err := op.submit(ctx, s)
	if err != nil {
		c.slots.Release(1)
		c.abort(p, op, err)
		return nil, err
	}

	p.setTxHash(handle.TxHash())
	c.record(s.Identity(), op, handle)

	c.wg.Add(1)
	go c.resolve(p, op, handle)

	return p, nil
}

// State returns the state of the given key. Mutations leave Pending as soon as the ledger resolves them.
func (c *Coordinator) State(key Key) State {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.inflight[key]; ok {
		return StatePending
	}

	return StateIdle
}

// InFlight returns the pending mutations in no particular order.
func (c *Coordinator) InFlight() []*Pending {
	c.mu.Lock()
	defer c.mu.Unlock()

	pending := make([]*Pending, 0, len(c.inflight))
	for _, p := range c.inflight {
		pending = append(pending, p)
	}

	return pending
}

// Close stops waiting for unresolved writes. They remain in the journal, and are picked up by Resume.
func (c *Coordinator) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
}

// begin moves the key from Idle to Pending and applies the optimistic update.
func (c *Coordinator) begin(op *operation) (*Pending, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}

	if existing, ok := c.inflight[op.key]; ok {
		return nil, errors.Wrapf(ErrConflict, "%s is pending for %s", existing.Kind, op.key)
	}

	// Sequence numbers are issued and applied under the same lock, so that they reach each overlay in order
	seq := c.store.NextSeq()
	if err := op.lane.apply(seq); err != nil {
		return nil, err
	}

	p := newPending(op.key, op.intent.Kind, seq)
	c.inflight[op.key] = p
	return p, nil
}

func (c *Coordinator) release(p *Pending) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.inflight[p.Key] == p {
		delete(c.inflight, p.Key)
	}
}

// abort undoes a mutation that never reached the ledger.
func (c *Coordinator) abort(p *Pending, op *operation, err error) {
	if rollbackErr := op.lane.rollback(p.Seq); rollbackErr != nil {
		c.logger.Debug("Rollback of unsubmitted mutation was stale", zap.Error(rollbackErr))
	}

	c.release(p)
	p.finish(StateFailed, err)
}

func (c *Coordinator) record(signer social.Identity, op *operation, handle *ledger.Handle) {
	entry := journal.Entry{
		TxHash:      handle.TxHash(),
		Signer:      signer,
		Kind:        string(op.intent.Kind),
		Entity:      op.key.Entity,
		Text:        op.intent.Text,
		Extra:       op.intent.Extra,
		SubmittedAt: time.Now(),
	}

	if err := c.journal.Record(c.ctx, entry); err != nil {
		c.logger.Warn("Failed to journal pending write", zap.Error(err), zap.String("tx_hash", handle.TxHashString()))
	}
}

func (c *Coordinator) resolve(p *Pending, op *operation, handle *ledger.Handle) {
	defer c.wg.Done()

	logger := c.logger.With(
		zap.String("kind", string(p.Kind)),
		zap.String("key", p.Key.String()),
		zap.Uint64("seq", p.Seq),
		zap.String("tx_hash", handle.TxHashString()),
	)

	select {
	case <-handle.Done():
	case <-c.ctx.Done():
		c.slots.Release(1)
		c.release(p)
		p.finish(StatePending, ErrClosed)
		return
	}

	c.slots.Release(1)

	if err := c.journal.Resolve(c.ctx, handle.TxHash()); err != nil {
		logger.Warn("Failed to remove resolved write from journal", zap.Error(err))
	}

	if err := handle.Err(); err != nil {
		logger.Info("Mutation failed, rolling back", zap.Error(err))

		if rollbackErr := op.lane.rollback(p.Seq); rollbackErr != nil {
			logger.Debug("Rollback was stale", zap.Error(rollbackErr))
		}

		c.release(p)
		p.finish(StateFailed, err)
		return
	}

	// The key is free for the next mutation while the confirmed state is re-read: the store orders the commits
	p.setState(StateConfirmed)
	c.release(p)

	if len(op.invalidate) > 0 {
		c.cache.Invalidate(op.invalidate...)
	}

	c.reconcile(logger, p, op)

	if op.afterCommit != nil {
		op.afterCommit()
	}

	p.finish(StateConfirmed, nil)
}

// reconcile replaces the optimistic update of a confirmed mutation with a fresh read of the ledger.
func (c *Coordinator) reconcile(logger *zap.Logger, p *Pending, op *operation) {
	attempts := c.config.RefreshAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 && !c.sleep(c.config.RefreshBackoff.Duration()) {
			lastErr = c.ctx.Err()
			break
		}

		commit, err := op.lane.refresh(c.ctx)
		if err != nil {
			lastErr = err

			// The entity is gone, e.g. the post was deleted while the like was in flight
			if errors.Is(err, ledger.ErrNotFound) {
				break
			}

			logger.Debug("Failed to refresh confirmed state", zap.Error(err), zap.Int("attempt", attempt+1))
			continue
		}

		if err := commit(p.Seq); err != nil {
			logger.Debug("Discarded stale commit", zap.Error(err))
		}

		return
	}

	if errors.Is(lastErr, ledger.ErrNotFound) {
		if err := op.lane.rollback(p.Seq); err != nil {
			logger.Debug("Rollback was stale", zap.Error(err))
		}

		return
	}

	logger.Warn("Could not re-read confirmed state, keeping optimistic update", zap.Error(lastErr))
	if err := op.lane.promote(p.Seq); err != nil {
		logger.Debug("Promotion was stale", zap.Error(err))
	}
}

// sleep returns false if the coordinator was closed while sleeping.
func (c *Coordinator) sleep(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-c.ctx.Done():
		return false
	}
}
