// Package ledgertest provides an in-memory ledger whose writes are resolved by the test, in any order, and whose
// reads can be delayed or failed on demand.
package ledgertest

import (
	"context"
	"encoding/binary"
	"sync"
	"time"

	"github.com/RyanW02/chainsocial/pkg/ledger"
	"github.com/RyanW02/chainsocial/pkg/types/social"
	cmttypes "github.com/cometbft/cometbft/types"
)

type Op string

const (
	OpGetProfile         Op = "get_profile"
	OpGetPosts           Op = "get_posts"
	OpGetFollowing       Op = "get_following"
	OpGetFollowers       Op = "get_followers"
	OpGetComments        Op = "get_comments"
	OpGetLikers          Op = "get_likers"
	OpIsFollowing        Op = "is_following"
	OpDidLike            Op = "did_like"
	OpGetRegisteredUsers Op = "get_registered_users"
)

// ReadHook runs before every read. Returning an error fails the read; blocking delays it. Subject is the identity or
// post key the read is about.
type ReadHook func(ctx context.Context, op Op, subject string) error

// FailWith returns a hook failing every read of op for subject with a *ledger.TransientFetchError.
func FailWith(op Op, subject string, cause error) ReadHook {
	return func(_ context.Context, o Op, s string) error {
		if o == op && s == subject {
			return ledger.NewTransientFetchError(string(op), cause)
		}

		return nil
	}
}

type Ledger struct {
	mu sync.Mutex

	users      []social.Identity
	profiles   map[social.Identity]social.Profile
	posts      map[social.Identity][]social.Post
	nextPostId map[social.Identity]uint64
	following  map[social.Identity][]social.Identity
	followers  map[social.Identity][]social.Identity
	likers     map[social.PostKey][]social.Identity
	comments   map[social.PostKey][]social.Comment

	writes      []*Write
	handles     map[string]*ledger.Handle
	txCounter   uint64
	autoConfirm bool
	readHook    ReadHook
	submitErr   error
	now         func() time.Time
}

var _ ledger.Ledger = (*Ledger)(nil)

func New() *Ledger {
	return &Ledger{
		profiles:   make(map[social.Identity]social.Profile),
		posts:      make(map[social.Identity][]social.Post),
		nextPostId: make(map[social.Identity]uint64),
		following:  make(map[social.Identity][]social.Identity),
		followers:  make(map[social.Identity][]social.Identity),
		likers:     make(map[social.PostKey][]social.Identity),
		comments:   make(map[social.PostKey][]social.Comment),
		handles:    make(map[string]*ledger.Handle),
		now:        time.Now,
	}
}

func (l *Ledger) SetReadHook(hook ReadHook) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.readHook = hook
}

// FailSubmissions makes every following write fail at submission with err, until called again with nil.
func (l *Ledger) FailSubmissions(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.submitErr = err
}

// SetAutoConfirm confirms every write as soon as it is submitted.
func (l *Ledger) SetAutoConfirm(autoConfirm bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.autoConfirm = autoConfirm
}

func (l *Ledger) Track(txHash []byte) *ledger.Handle {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := string(txHash)
	if handle, ok := l.handles[key]; ok {
		return handle
	}

	handle := ledger.NewHandle(txHash)
	l.handles[key] = handle
	return handle
}

func (l *Ledger) newTxHash() []byte {
	l.txCounter++

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], l.txCounter)
	return cmttypes.Tx(buf[:]).Hash()
}
