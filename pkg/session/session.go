package session

import (
	"context"
	"sync"

	"github.com/RyanW02/chainsocial/pkg/ledger"
	"github.com/RyanW02/chainsocial/pkg/types/rpc"
	"github.com/RyanW02/chainsocial/pkg/types/social"
	"github.com/cometbft/cometbft/crypto/ed25519"
	"github.com/pkg/errors"
)

// Session is a connected wallet. Everything that acts on behalf of a user takes the session explicitly, and fails
// with ledger.ErrNotConnected once it has been torn down.
type Session struct {
	key      ed25519.PrivKey
	identity social.Identity

	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

var _ rpc.Signer = (*Session)(nil)

var ErrInvalidKey = errors.New("invalid ed25519 private key")

// Connect starts a session for the given key. The session's context is derived from parent, so cancelling parent
// also tears the session down.
func Connect(parent context.Context, key ed25519.PrivKey) (*Session, error) {
	if len(key) != ed25519.PrivateKeySize {
		return nil, errors.Wrapf(ErrInvalidKey, "expected %d bytes, got %d", ed25519.PrivateKeySize, len(key))
	}

	ctx, cancel := context.WithCancel(parent)

	return &Session{
		key:      key,
		identity: social.NewIdentity(key.PubKey().Address().String()),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

func (s *Session) Identity() social.Identity {
	return s.identity
}

func (s *Session) PublicKey() []byte {
	return s.key.PubKey().Bytes()
}

func (s *Session) Sign(msg []byte) ([]byte, error) {
	if !s.Active() {
		return nil, ledger.ErrNotConnected
	}

	return s.key.Sign(msg)
}

// Context is cancelled when the session is torn down.
func (s *Session) Context() context.Context {
	return s.ctx
}

func (s *Session) Active() bool {
	return s.ctx.Err() == nil
}

func (s *Session) Disconnect() {
	s.once.Do(s.cancel)
}

// Require returns ledger.ErrNotConnected if s is nil or torn down.
func Require(s *Session) error {
	if s == nil || !s.Active() {
		return ledger.ErrNotConnected
	}

	return nil
}
