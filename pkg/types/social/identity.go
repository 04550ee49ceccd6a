package social

import (
	"strings"

	"github.com/pkg/errors"
)

// Identity is the address of an account on the ledger. It is opaque to the rest of the module: two identities are
// equal iff their normalised strings are equal.
type Identity string

var (
	ErrEmptyIdentity = errors.New("identity is empty")
	ErrSelfFollow    = errors.New("an identity cannot follow itself")
)

// NewIdentity normalises an address. Ledger addresses are hex encoded, and wallets are inconsistent about case.
func NewIdentity(address string) Identity {
	return Identity(strings.ToUpper(strings.TrimPrefix(strings.TrimSpace(address), "0x")))
}

func (i Identity) String() string {
	return string(i)
}

func (i Identity) Bytes() []byte {
	return []byte(i)
}

func (i Identity) IsZero() bool {
	return len(i) == 0
}

// Short returns an abbreviated form of the address for display, e.g. "1A2B3C...9F0E".
func (i Identity) Short() string {
	if len(i) <= 10 {
		return string(i)
	}

	return string(i[:6]) + "..." + string(i[len(i)-4:])
}

// FollowEdge is a directed follow relation: Follower's feed includes Followee's posts.
type FollowEdge struct {
	Follower Identity `json:"follower"`
	Followee Identity `json:"followee"`
}

func NewFollowEdge(follower, followee Identity) (FollowEdge, error) {
	if follower.IsZero() || followee.IsZero() {
		return FollowEdge{}, ErrEmptyIdentity
	}

	if follower == followee {
		return FollowEdge{}, errors.Wrapf(ErrSelfFollow, "identity %s", follower)
	}

	return FollowEdge{Follower: follower, Followee: followee}, nil
}

func (e FollowEdge) String() string {
	return e.Follower.String() + "->" + e.Followee.String()
}
