package mutation

import (
	"context"
	"strings"
	"time"

	"github.com/RyanW02/chainsocial/pkg/interaction"
	"github.com/RyanW02/chainsocial/pkg/ledger"
	"github.com/RyanW02/chainsocial/pkg/types/rpc"
	"github.com/RyanW02/chainsocial/pkg/types/social"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// lane binds a mutation to the overlay entry it speculates on.
type lane struct {
	// prime seeds the entry from the ledger when nothing has been observed for it yet, so the optimistic update
	// starts from the real value rather than the zero value
	prime    func(ctx context.Context) error
	apply    func(seq uint64) error
	rollback func(seq uint64) error
	promote  func(seq uint64) error
	// refresh reads the authoritative value after confirmation, returning a function committing it
	refresh func(ctx context.Context) (func(seq uint64) error, error)
}

// newLane binds the entry at key. transform is built from the confirmed value at the time the update is applied, so
// that it can recognise a later snapshot that already includes the write.
func newLane[K comparable, V any](
	store *interaction.Store,
	overlay *interaction.Overlay[K, V],
	key K,
	transform func(base V) interaction.Transform[V],
	read func(ctx context.Context) (V, error),
) lane {
	return lane{
		prime: primer(store, overlay, key, read),
		apply: func(seq uint64) error {
			base, _ := overlay.Confirmed(key)
			return overlay.Apply(key, seq, transform(base))
		},
		rollback: func(seq uint64) error {
			return overlay.Rollback(key, seq)
		},
		promote: func(seq uint64) error {
			return overlay.Promote(key, seq)
		},
		refresh: func(ctx context.Context) (func(seq uint64) error, error) {
			value, err := read(ctx)
			if err != nil {
				return nil, err
			}

			return func(seq uint64) error {
				return overlay.Commit(key, seq, value)
			}, nil
		},
	}
}

func primer[K comparable, V any](
	store *interaction.Store,
	overlay *interaction.Overlay[K, V],
	key K,
	read func(ctx context.Context) (V, error),
) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if _, ok := overlay.Confirmed(key); ok {
			return nil
		}

		epoch := store.Epoch()
		value, err := read(ctx)
		if err != nil {
			return err
		}

		overlay.Observe(key, epoch, interaction.Replace(value))
		return nil
	}
}

// fixed is used by transforms that are idempotent without knowing the value they were applied over.
func fixed[V any](transform interaction.Transform[V]) func(V) interaction.Transform[V] {
	return func(V) interaction.Transform[V] {
		return transform
	}
}

// absentAsZero treats a missing entity as the zero value, for lanes whose write may create the entity.
func absentAsZero[V any](read func(ctx context.Context) (V, error)) func(ctx context.Context) (V, error) {
	return func(ctx context.Context) (V, error) {
		value, err := read(ctx)
		if errors.Is(err, ledger.ErrNotFound) {
			var zero V
			return zero, nil
		}

		return value, err
	}
}

type operation struct {
	intent Intent
	key    Key
	lane   lane
	submit func(ctx context.Context, signer rpc.Signer) (*ledger.Handle, error)

	// Profiles whose cached copy is outdated once the write is confirmed
	invalidate []social.Identity
	// Runs after the confirmed state has been committed
	afterCommit func()
}

// plan validates the intent and binds it to the ledger write and overlay lane it affects.
func (c *Coordinator) plan(viewer social.Identity, intent Intent) (*operation, error) {
	switch intent.Kind {
	case KindLike, KindUnlike:
		return c.planLike(viewer, intent)
	case KindComment:
		return c.planComment(viewer, intent)
	case KindFollow, KindUnfollow:
		return c.planFollow(viewer, intent)
	case KindCreatePost:
		return c.planCreatePost(viewer, intent)
	case KindDeletePost:
		return c.planDeletePost(viewer, intent)
	case KindUpdateProfile:
		return c.planUpdateProfile(viewer, intent)
	case KindRegister:
		return c.planRegister(viewer, intent)
	default:
		return nil, invalid(ErrUnknownKind)
	}
}

func (c *Coordinator) planLike(viewer social.Identity, intent Intent) (*operation, error) {
	key := intent.Post
	if key.Owner.IsZero() {
		return nil, invalid(social.ErrInvalidPostKey)
	}

	like := intent.Kind == KindLike
	transform := interaction.Unlike()
	submit := func(ctx context.Context, signer rpc.Signer) (*ledger.Handle, error) {
		return c.ledger.UnlikePost(ctx, signer, key)
	}

	if like {
		transform = interaction.Like()
		submit = func(ctx context.Context, signer rpc.Signer) (*ledger.Handle, error) {
			return c.ledger.LikePost(ctx, signer, key)
		}
	}

	return &operation{
		intent: intent,
		key:    Key{Entity: key.String(), Family: FamilyLike},
		submit: submit,
		lane: newLane(c.store, c.store.Likes(), key, fixed(transform), func(ctx context.Context) (interaction.LikeState, error) {
			likers, err := c.ledger.GetLikers(ctx, key)
			if err != nil {
				return interaction.LikeState{}, err
			}

			liked := false
			for _, liker := range likers {
				if liker == viewer {
					liked = true
					break
				}
			}

			return interaction.LikeState{Count: uint64(len(likers)), Liked: liked}, nil
		}),
	}, nil
}

func (c *Coordinator) planComment(viewer social.Identity, intent Intent) (*operation, error) {
	key := intent.Post
	if key.Owner.IsZero() {
		return nil, invalid(social.ErrInvalidPostKey)
	}

	text := strings.TrimSpace(intent.Text)
	if text == "" {
		return nil, invalid(ErrEmptyComment)
	}

	comment := social.Comment{
		Commenter: viewer,
		Content:   text,
		Timestamp: time.Now(),
	}

	return &operation{
		intent: intent,
		key:    Key{Entity: key.String(), Family: KindComment.Family()},
		submit: func(ctx context.Context, signer rpc.Signer) (*ledger.Handle, error) {
			return c.ledger.AddComment(ctx, signer, key, text)
		},
		lane: newLane(c.store, c.store.Comments(), key, func(base interaction.CommentState) interaction.Transform[interaction.CommentState] {
			return interaction.AddComment(comment, base)
		}, func(ctx context.Context) (interaction.CommentState, error) {
			comments, err := c.ledger.GetComments(ctx, key)
			if err != nil {
				return interaction.CommentState{}, err
			}

			return interaction.LoadedComments(comments), nil
		}),
	}, nil
}

func (c *Coordinator) planFollow(viewer social.Identity, intent Intent) (*operation, error) {
	edge, err := social.NewFollowEdge(viewer, intent.Target)
	if err != nil {
		return nil, invalid(err)
	}

	follow := intent.Kind == KindFollow
	target := edge.Followee

	return &operation{
		intent: intent,
		key:    Key{Entity: target.String(), Family: FamilyFollow},
		submit: func(ctx context.Context, signer rpc.Signer) (*ledger.Handle, error) {
			if follow {
				return c.ledger.Follow(ctx, signer, target)
			}

			return c.ledger.Unfollow(ctx, signer, target)
		},
		lane: newLane(c.store, c.store.Follows(), target, fixed(interaction.SetFollowing(follow)), func(ctx context.Context) (interaction.FollowState, error) {
			following, err := c.ledger.IsFollowing(ctx, viewer, target)
			if err != nil {
				return interaction.FollowState{}, err
			}

			return interaction.FollowState{Following: following}, nil
		}),
		invalidate: []social.Identity{viewer, target},
	}, nil
}

func (c *Coordinator) readOwnPosts(viewer social.Identity) func(ctx context.Context) (interaction.PostList, error) {
	return func(ctx context.Context) (interaction.PostList, error) {
		posts, err := c.ledger.GetPosts(ctx, viewer)
		if err != nil {
			return interaction.PostList{}, err
		}

		return interaction.PostListOf(posts), nil
	}
}

func (c *Coordinator) planCreatePost(viewer social.Identity, intent Intent) (*operation, error) {
	content := strings.TrimSpace(intent.Text)
	if content == "" && strings.TrimSpace(intent.Extra) == "" {
		return nil, invalid(ErrEmptyPost)
	}

	mediaURI, err := c.media.Resolve(intent.Extra)
	if err != nil {
		return nil, invalid(err)
	}

	placeholder := social.Post{
		Owner:    viewer,
		Content:  content,
		MediaURI: mediaURI,
	}
	localId := uuid.NewString()

	return &operation{
		intent: intent,
		key:    Key{Entity: viewer.String(), Family: KindCreatePost.Family()},
		submit: func(ctx context.Context, signer rpc.Signer) (*ledger.Handle, error) {
			return c.ledger.CreatePost(ctx, signer, content, mediaURI)
		},
		lane:       newLane(c.store, c.store.Posts(), viewer, func(base interaction.PostList) interaction.Transform[interaction.PostList] {
			return interaction.AddPost(localId, placeholder, base)
		}, c.readOwnPosts(viewer)),
		invalidate: []social.Identity{viewer},
	}, nil
}

func (c *Coordinator) planDeletePost(viewer social.Identity, intent Intent) (*operation, error) {
	key := intent.Post
	if key.Owner != viewer {
		return nil, invalid(ErrNotOwner)
	}

	return &operation{
		intent: intent,
		key:    Key{Entity: key.String(), Family: KindDeletePost.Family()},
		submit: func(ctx context.Context, signer rpc.Signer) (*ledger.Handle, error) {
			return c.ledger.DeletePost(ctx, signer, key.PostID)
		},
		lane:       newLane(c.store, c.store.Posts(), viewer, fixed(interaction.RemovePost(key.PostID)), c.readOwnPosts(viewer)),
		invalidate: []social.Identity{viewer},
		afterCommit: func() {
			c.store.Likes().Forget(key)
			c.store.Comments().Forget(key)
		},
	}, nil
}

func (c *Coordinator) readProfileFields(viewer social.Identity) func(ctx context.Context) (interaction.ProfileFields, error) {
	return func(ctx context.Context) (interaction.ProfileFields, error) {
		profile, err := c.cache.Get(ctx, viewer)
		if err != nil {
			return interaction.ProfileFields{}, err
		}

		return interaction.ProfileFieldsOf(profile), nil
	}
}

// profileLane primes from an unregistered profile as empty fields, since a registration is what creates them.
func (c *Coordinator) profileLane(viewer social.Identity, transform interaction.Transform[interaction.ProfileFields]) lane {
	read := c.readProfileFields(viewer)

	l := newLane(c.store, c.store.Profiles(), viewer, fixed(transform), read)
	l.prime = primer(c.store, c.store.Profiles(), viewer, absentAsZero(read))
	return l
}

func (c *Coordinator) planUpdateProfile(viewer social.Identity, intent Intent) (*operation, error) {
	uri, err := c.media.Resolve(intent.Extra)
	if err != nil {
		return nil, invalid(err)
	}

	return &operation{
		intent: intent,
		key:    Key{Entity: viewer.String(), Family: KindUpdateProfile.Family()},
		submit: func(ctx context.Context, signer rpc.Signer) (*ledger.Handle, error) {
			return c.ledger.UpdateProfileURI(ctx, signer, uri)
		},
		lane:       c.profileLane(viewer, interaction.SetAvatar(uri)),
		invalidate: []social.Identity{viewer},
	}, nil
}

func (c *Coordinator) planRegister(viewer social.Identity, intent Intent) (*operation, error) {
	username := strings.TrimSpace(intent.Text)
	if username == "" {
		return nil, invalid(ErrEmptyUsername)
	}

	bio := strings.TrimSpace(intent.Extra)

	return &operation{
		intent: intent,
		key:    Key{Entity: viewer.String(), Family: KindRegister.Family()},
		submit: func(ctx context.Context, signer rpc.Signer) (*ledger.Handle, error) {
			return c.ledger.Register(ctx, signer, username, bio)
		},
		lane:       c.profileLane(viewer, interaction.Register(username, bio)),
		invalidate: []social.Identity{viewer},
	}, nil
}
