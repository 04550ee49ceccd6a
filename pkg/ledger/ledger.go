package ledger

import (
	"context"

	"github.com/RyanW02/chainsocial/pkg/types/rpc"
	"github.com/RyanW02/chainsocial/pkg/types/social"
)

// Reader is the read side of the ledger. Reads are side-effect free and reflect the ledger at call time only: two
// reads issued moments apart may observe different states.
type Reader interface {
	GetProfile(ctx context.Context, id social.Identity) (social.Profile, error)
	GetPosts(ctx context.Context, id social.Identity) ([]social.Post, error)
	GetFollowing(ctx context.Context, id social.Identity) ([]social.Identity, error)
	GetFollowers(ctx context.Context, id social.Identity) ([]social.Identity, error)
	GetComments(ctx context.Context, key social.PostKey) ([]social.Comment, error)
	GetLikers(ctx context.Context, key social.PostKey) ([]social.Identity, error)
	IsFollowing(ctx context.Context, follower, followee social.Identity) (bool, error)
	DidLike(ctx context.Context, viewer social.Identity, key social.PostKey) (bool, error)
	GetRegisteredUsers(ctx context.Context) ([]social.Identity, error)
}

// Writer submits writes. A returned error means the write was never accepted; otherwise the Handle resolves
// asynchronously, in no particular order relative to other writes.
type Writer interface {
	Register(ctx context.Context, signer rpc.Signer, username, bio string) (*Handle, error)
	UpdateProfileURI(ctx context.Context, signer rpc.Signer, uri string) (*Handle, error)
	CreatePost(ctx context.Context, signer rpc.Signer, content, mediaURI string) (*Handle, error)
	DeletePost(ctx context.Context, signer rpc.Signer, postId uint64) (*Handle, error)
	LikePost(ctx context.Context, signer rpc.Signer, key social.PostKey) (*Handle, error)
	UnlikePost(ctx context.Context, signer rpc.Signer, key social.PostKey) (*Handle, error)
	AddComment(ctx context.Context, signer rpc.Signer, key social.PostKey, text string) (*Handle, error)
	Follow(ctx context.Context, signer rpc.Signer, id social.Identity) (*Handle, error)
	Unfollow(ctx context.Context, signer rpc.Signer, id social.Identity) (*Handle, error)
}

type Ledger interface {
	Reader
	Writer

	// Track returns a handle for a write submitted earlier, possibly by a previous session.
	Track(txHash []byte) *Handle
}
