package interaction

import (
	"context"
	"sync/atomic"

	"github.com/RyanW02/chainsocial/pkg/broadcast"
	"github.com/RyanW02/chainsocial/pkg/types/social"
)

type Lane string

const (
	LaneLikes    Lane = "likes"
	LaneComments Lane = "comments"
	LaneFollows  Lane = "follows"
	LaneProfiles Lane = "profiles"
	LanePosts    Lane = "posts"
)

// Change is published whenever the displayed value of a key may have changed.
type Change struct {
	Lane Lane   `json:"lane"`
	Key  string `json:"key"`
}

const subscriberBuffer = 64

// Store is the per-session interaction state: one overlay per kind of state a mutation can touch.
type Store struct {
	seq     atomic.Uint64
	epoch   atomic.Uint64
	changes *broadcast.BroadcastChannel[Change]

	likes    *Overlay[social.PostKey, LikeState]
	comments *Overlay[social.PostKey, CommentState]
	follows  *Overlay[social.Identity, FollowState]
	profiles *Overlay[social.Identity, ProfileFields]
	posts    *Overlay[social.Identity, PostList]
}

func NewStore() *Store {
	s := &Store{
		changes: broadcast.NewBroadcastChannel[Change](),
	}

	s.likes = newOverlay[social.PostKey, LikeState](&s.epoch, identity[LikeState], postKeyNotifier(s, LaneLikes))
	s.comments = newOverlay[social.PostKey, CommentState](&s.epoch, cloneCommentState, postKeyNotifier(s, LaneComments))
	s.follows = newOverlay[social.Identity, FollowState](&s.epoch, identity[FollowState], identityNotifier(s, LaneFollows))
	s.profiles = newOverlay[social.Identity, ProfileFields](&s.epoch, identity[ProfileFields], identityNotifier(s, LaneProfiles))
	s.posts = newOverlay[social.Identity, PostList](&s.epoch, clonePostList, identityNotifier(s, LanePosts))

	return s
}

func postKeyNotifier(s *Store, lane Lane) func(social.PostKey) {
	return func(key social.PostKey) {
		s.changes.Publish(Change{Lane: lane, Key: key.String()})
	}
}

func identityNotifier(s *Store, lane Lane) func(social.Identity) {
	return func(id social.Identity) {
		s.changes.Publish(Change{Lane: lane, Key: id.String()})
	}
}

// NextSeq issues the sequence number for a new mutation. It increases strictly across the whole store.
func (s *Store) NextSeq() uint64 {
	return s.seq.Add(1)
}

// Epoch must be captured before issuing reads whose results will be passed to Observe.
func (s *Store) Epoch() uint64 {
	return s.epoch.Load()
}

// Subscribe streams changes until ctx is done. A slow subscriber misses changes rather than blocking writers, so
// subscribers should re-read the store on each change instead of counting them.
func (s *Store) Subscribe(ctx context.Context) <-chan Change {
	return s.changes.Subscribe(ctx, subscriberBuffer)
}

// Close ends every subscription.
func (s *Store) Close() {
	s.changes.CloseAll()
}

func (s *Store) Likes() *Overlay[social.PostKey, LikeState] {
	return s.likes
}

func (s *Store) Comments() *Overlay[social.PostKey, CommentState] {
	return s.comments
}

func (s *Store) Follows() *Overlay[social.Identity, FollowState] {
	return s.follows
}

func (s *Store) Profiles() *Overlay[social.Identity, ProfileFields] {
	return s.profiles
}

func (s *Store) Posts() *Overlay[social.Identity, PostList] {
	return s.posts
}

// ObservePosts records a fresh listing of an author's posts, along with the viewer's like state of each, read after
// epoch was captured.
func (s *Store) ObservePosts(author social.Identity, epoch uint64, posts []social.Post, liked []bool) {
	s.posts.Observe(author, epoch, Replace(PostListOf(posts)))

	for i, post := range posts {
		count := post.LikesCount
		if i < len(liked) {
			s.likes.Observe(post.Key(), epoch, Replace(LikeState{Count: count, Liked: liked[i]}))
		} else {
			// Like state unknown, only the count is fresh
			s.likes.Observe(post.Key(), epoch, func(prev LikeState, _ bool) LikeState {
				prev.Count = count
				return prev
			})
		}

		s.comments.Observe(post.Key(), epoch, CommentCount(post.CommentsCount))
	}
}
