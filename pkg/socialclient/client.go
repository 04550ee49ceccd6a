// Package socialclient wires the sync layer together for one connected session at a time.
package socialclient

import (
	"context"
	"sync"

	"github.com/RyanW02/chainsocial/internal/config"
	"github.com/RyanW02/chainsocial/pkg/feed"
	"github.com/RyanW02/chainsocial/pkg/interaction"
	"github.com/RyanW02/chainsocial/pkg/journal"
	"github.com/RyanW02/chainsocial/pkg/ledger"
	"github.com/RyanW02/chainsocial/pkg/media"
	"github.com/RyanW02/chainsocial/pkg/mutation"
	"github.com/RyanW02/chainsocial/pkg/profilecache"
	"github.com/RyanW02/chainsocial/pkg/session"
	"github.com/cometbft/cometbft/crypto/ed25519"
	"go.uber.org/zap"
)

type Client struct {
	config   config.Config
	logger   *zap.Logger
	ledger   ledger.Ledger
	journal  journal.Journal
	resolver *media.Resolver

	mu     sync.RWMutex
	active *Active
}

// Active holds the state of a connected session. Nothing in it outlives the session: the store and cache are
// specific to the viewer.
type Active struct {
	Session   *session.Session
	Store     *interaction.Store
	Cache     *profilecache.Cache
	Feed      *feed.Aggregator
	Mutations *mutation.Coordinator
}

func New(cfg config.Config, logger *zap.Logger, l ledger.Ledger, j journal.Journal) *Client {
	return &Client{
		config:   cfg,
		logger:   logger,
		ledger:   l,
		journal:  j,
		resolver: media.NewResolver(cfg.Media.GatewayPrefix),
	}
}

// Connect starts a session for key, replacing any existing session, and resumes writes left unresolved by an
// earlier session of the same identity.
func (c *Client) Connect(ctx context.Context, key ed25519.PrivKey) (*Active, error) {
	s, err := session.Connect(context.Background(), key)
	if err != nil {
		return nil, err
	}

	logger := c.logger.With(zap.String("identity", s.Identity().String()))

	store := interaction.NewStore()
	cache := profilecache.New(c.ledger, logger.With(zap.String("module", "profile_cache")))

	active := &Active{
		Session: s,
		Store:   store,
		Cache:   cache,
		Feed:    feed.NewAggregator(c.config.Sync, logger.With(zap.String("module", "feed")), c.ledger, cache, store),
		Mutations: mutation.NewCoordinator(
			c.config.Sync,
			logger.With(zap.String("module", "mutations")),
			c.ledger,
			store,
			cache,
			c.journal,
			c.resolver,
		),
	}

	c.mu.Lock()
	previous := c.active
	c.active = active
	c.mu.Unlock()

	if previous != nil {
		previous.teardown()
	}

	if _, err := active.Mutations.Resume(ctx, s); err != nil {
		logger.Warn("Failed to resume unresolved writes", zap.Error(err))
	}

	logger.Info("Session connected")
	return active, nil
}

// Active returns the current session, or ledger.ErrNotConnected if there is none.
func (c *Client) Active() (*Active, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.active == nil || !c.active.Session.Active() {
		return nil, ledger.ErrNotConnected
	}

	return c.active, nil
}

// Disconnect tears down the current session, if any. Pending writes stay in the journal.
func (c *Client) Disconnect() {
	c.mu.Lock()
	active := c.active
	c.active = nil
	c.mu.Unlock()

	if active != nil {
		active.teardown()
		c.logger.Info("Session disconnected", zap.String("identity", active.Session.Identity().String()))
	}
}

func (c *Client) Resolver() *media.Resolver {
	return c.resolver
}

func (a *Active) teardown() {
	a.Session.Disconnect()
	a.Mutations.Close()
	a.Store.Close()
}
