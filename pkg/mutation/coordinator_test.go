package mutation

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/RyanW02/chainsocial/internal/config"
	"github.com/RyanW02/chainsocial/pkg/interaction"
	"github.com/RyanW02/chainsocial/pkg/journal"
	"github.com/RyanW02/chainsocial/pkg/ledger"
	"github.com/RyanW02/chainsocial/pkg/ledger/ledgertest"
	"github.com/RyanW02/chainsocial/pkg/media"
	"github.com/RyanW02/chainsocial/pkg/profilecache"
	"github.com/RyanW02/chainsocial/pkg/session"
	"github.com/RyanW02/chainsocial/pkg/types"
	"github.com/RyanW02/chainsocial/pkg/types/social"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const author social.Identity = "A0A0A0"

type fixture struct {
	ledger      *ledgertest.Ledger
	store       *interaction.Store
	cache       *profilecache.Cache
	journal     journal.Journal
	coordinator *Coordinator
	session     *session.Session
	post        social.Post
}

func testSyncConfig() config.Sync {
	return config.Sync{
		FeedFanOut:       8,
		MaxPendingWrites: 4,
		RefreshAttempts:  2,
		RefreshBackoff:   types.MarshalledDuration(time.Millisecond),
	}
}

func newFixture(t *testing.T, cfg config.Sync, j journal.Journal) *fixture {
	s, err := session.Connect(context.Background(), session.GenerateKey())
	require.NoError(t, err)

	l := ledgertest.New()
	l.SeedUser(s.Identity(), "viewer", "")
	l.SeedUser(author, "author", "")
	post := l.SeedPost(author, "hello", "")
	l.SeedLikes(post.Key(), "L1", "L2")
	post, _ = l.Post(post.Key())

	store := interaction.NewStore()
	store.ObservePosts(author, store.Epoch(), []social.Post{post}, []bool{false})

	if j == nil {
		j = journal.NewNoopJournal()
	}

	f := &fixture{
		ledger:  l,
		store:   store,
		journal: j,
		session: s,
		post:    post,
	}
	f.coordinator = f.newCoordinator(cfg)
	t.Cleanup(f.coordinator.Close)

	return f
}

func (f *fixture) newCoordinator(cfg config.Sync) *Coordinator {
	f.cache = profilecache.New(f.ledger, zap.NewNop())
	return NewCoordinator(cfg, zap.NewNop(), f.ledger, f.store, f.cache, f.journal, media.NewResolver(""))
}

func (f *fixture) likes(t *testing.T) interaction.LikeState {
	state, ok := f.store.Likes().Get(f.post.Key())
	require.True(t, ok)
	return state
}

func wait(t *testing.T, p *Pending) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := p.Wait(ctx)
	require.NotErrorIs(t, err, context.DeadlineExceeded, "mutation did not resolve")
	return err
}

func likeKey(post social.Post) Key {
	return Key{Entity: post.Key().String(), Family: FamilyLike}
}

func TestLikeFailureRollsBack(t *testing.T) {
	f := newFixture(t, testSyncConfig(), nil)
	require.Equal(t, interaction.LikeState{Count: 2, Liked: false}, f.likes(t))

	p, err := f.coordinator.Like(context.Background(), f.session, f.post.Key())
	require.NoError(t, err)
	require.Equal(t, StatePending, p.State())
	require.Equal(t, StatePending, f.coordinator.State(likeKey(f.post)))
	require.Equal(t, interaction.LikeState{Count: 3, Liked: true}, f.likes(t))

	writes := f.ledger.PendingWrites()
	require.Len(t, writes, 1)
	f.ledger.Fail(writes[0], &ledger.RejectedError{Codespace: social.Codespace, Code: social.CodeUnknownError, Log: "reverted"})

	err = wait(t, p)
	require.ErrorIs(t, err, ledger.ErrRejected)
	require.Equal(t, StateFailed, p.State())
	require.Equal(t, StateIdle, f.coordinator.State(likeKey(f.post)))
	require.Equal(t, interaction.LikeState{Count: 2, Liked: false}, f.likes(t))
}

func TestLikeConfirmationCommitsFreshRead(t *testing.T) {
	f := newFixture(t, testSyncConfig(), nil)

	p, err := f.coordinator.Like(context.Background(), f.session, f.post.Key())
	require.NoError(t, err)

	// Someone else likes the post at the same time
	f.ledger.SeedLikes(f.post.Key(), "L3")
	require.NoError(t, f.ledger.Confirm(f.ledger.PendingWrites()[0]))

	require.NoError(t, wait(t, p))
	require.Equal(t, StateConfirmed, p.State())
	require.Equal(t, interaction.LikeState{Count: 4, Liked: true}, f.likes(t))
	require.False(t, f.store.Likes().Outstanding(f.post.Key()))
}

func TestConcurrentSubmitsAcceptOne(t *testing.T) {
	f := newFixture(t, testSyncConfig(), nil)

	var accepted, conflicts atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, err := f.coordinator.Like(context.Background(), f.session, f.post.Key())
			if err == nil {
				accepted.Add(1)
			} else if errors.Is(err, ErrConflict) {
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()

	require.EqualValues(t, 1, accepted.Load())
	require.EqualValues(t, 9, conflicts.Load())
	require.Len(t, f.ledger.Writes(), 1)
	require.Equal(t, interaction.LikeState{Count: 3, Liked: true}, f.likes(t))
}

func TestSwitchingKindWhilePendingConflicts(t *testing.T) {
	f := newFixture(t, testSyncConfig(), nil)

	_, err := f.coordinator.Like(context.Background(), f.session, f.post.Key())
	require.NoError(t, err)

	_, err = f.coordinator.Unlike(context.Background(), f.session, f.post.Key())
	require.ErrorIs(t, err, ErrConflict)

	require.Len(t, f.ledger.Writes(), 1)
	require.Equal(t, interaction.LikeState{Count: 3, Liked: true}, f.likes(t))
}

func TestRapidLikeThenUnlike(t *testing.T) {
	f := newFixture(t, testSyncConfig(), nil)

	// Hold the first refresh read until the unlike has been applied
	release := make(chan struct{})
	var blocked atomic.Bool
	f.ledger.SetReadHook(func(ctx context.Context, op ledgertest.Op, _ string) error {
		if op == ledgertest.OpGetLikers && blocked.CompareAndSwap(false, true) {
			<-release
		}

		return nil
	})

	like, err := f.coordinator.Like(context.Background(), f.session, f.post.Key())
	require.NoError(t, err)
	require.NoError(t, f.ledger.Confirm(f.ledger.PendingWrites()[0]))

	require.Eventually(t, func() bool {
		return f.coordinator.State(likeKey(f.post)) == StateIdle
	}, time.Second, time.Millisecond)

	unlike, err := f.coordinator.Unlike(context.Background(), f.session, f.post.Key())
	require.NoError(t, err)
	require.Greater(t, unlike.Seq, like.Seq)
	require.Equal(t, interaction.LikeState{Count: 2, Liked: false}, f.likes(t))

	// The like's late commit must not resurrect the like
	close(release)
	require.NoError(t, wait(t, like))
	require.Equal(t, interaction.LikeState{Count: 2, Liked: false}, f.likes(t))

	require.NoError(t, f.ledger.Confirm(f.ledger.PendingWrites()[0]))
	require.NoError(t, wait(t, unlike))
	require.Equal(t, interaction.LikeState{Count: 2, Liked: false}, f.likes(t))
	require.False(t, f.store.Likes().Outstanding(f.post.Key()))
}

func TestNotConnected(t *testing.T) {
	f := newFixture(t, testSyncConfig(), nil)
	f.session.Disconnect()

	_, err := f.coordinator.Like(context.Background(), f.session, f.post.Key())
	require.ErrorIs(t, err, ledger.ErrNotConnected)

	_, err = f.coordinator.DeletePost(context.Background(), nil, 1)
	require.ErrorIs(t, err, ledger.ErrNotConnected)

	require.Empty(t, f.ledger.Writes())
	require.Equal(t, interaction.LikeState{Count: 2, Liked: false}, f.likes(t))
}

func TestValidation(t *testing.T) {
	f := newFixture(t, testSyncConfig(), nil)
	ctx := context.Background()

	_, err := f.coordinator.Comment(ctx, f.session, f.post.Key(), "   ")
	require.ErrorIs(t, err, ErrValidation)
	require.ErrorIs(t, err, ErrEmptyComment)

	_, err = f.coordinator.Follow(ctx, f.session, f.session.Identity())
	require.ErrorIs(t, err, ErrValidation)
	require.ErrorIs(t, err, social.ErrSelfFollow)

	_, err = f.coordinator.CreatePost(ctx, f.session, "look", "not a cid")
	require.ErrorIs(t, err, media.ErrInvalidMedia)

	_, err = f.coordinator.Register(ctx, f.session, "", "bio")
	require.ErrorIs(t, err, ErrEmptyUsername)

	_, err = f.coordinator.Submit(ctx, f.session, Intent{Kind: KindDeletePost, Post: f.post.Key()})
	require.ErrorIs(t, err, ErrNotOwner)

	_, err = f.coordinator.Submit(ctx, f.session, Intent{Kind: "boost"})
	require.ErrorIs(t, err, ErrUnknownKind)

	require.Empty(t, f.ledger.Writes())
	require.Empty(t, f.coordinator.InFlight())
}

func TestSubmissionErrorRollsBack(t *testing.T) {
	f := newFixture(t, testSyncConfig(), nil)
	cause := errors.New("connection refused")
	f.ledger.FailSubmissions(cause)

	_, err := f.coordinator.Like(context.Background(), f.session, f.post.Key())
	require.ErrorIs(t, err, cause)
	require.Equal(t, StateIdle, f.coordinator.State(likeKey(f.post)))
	require.Equal(t, interaction.LikeState{Count: 2, Liked: false}, f.likes(t))

	// The key is free again
	f.ledger.FailSubmissions(nil)
	_, err = f.coordinator.Like(context.Background(), f.session, f.post.Key())
	require.NoError(t, err)
}

func TestRefreshFailurePromotesOptimisticUpdate(t *testing.T) {
	f := newFixture(t, testSyncConfig(), nil)
	f.ledger.SetReadHook(ledgertest.FailWith(ledgertest.OpGetLikers, f.post.Key().String(), errors.New("timeout")))

	p, err := f.coordinator.Like(context.Background(), f.session, f.post.Key())
	require.NoError(t, err)
	require.NoError(t, f.ledger.Confirm(f.ledger.PendingWrites()[0]))

	require.NoError(t, wait(t, p))

	confirmed, ok := f.store.Likes().Confirmed(f.post.Key())
	require.True(t, ok)
	require.Equal(t, interaction.LikeState{Count: 3, Liked: true}, confirmed)
	require.False(t, f.store.Likes().Outstanding(f.post.Key()))
}

func TestLikeUnreadPostStartsFromLedgerCount(t *testing.T) {
	f := newFixture(t, testSyncConfig(), nil)
	unread := f.ledger.SeedPost(author, "not in any feed yet", "")
	f.ledger.SeedLikes(unread.Key(), "L1", "L2", "L3", "L4")
	unread, _ = f.ledger.Post(unread.Key())

	p, err := f.coordinator.Like(context.Background(), f.session, unread.Key())
	require.NoError(t, err)

	view := f.store.RenderPost(unread)
	require.EqualValues(t, 5, view.LikesCount)
	require.True(t, view.Liked)

	// The refresh fails, so the optimistic value is what gets promoted
	f.ledger.SetReadHook(ledgertest.FailWith(ledgertest.OpGetLikers, unread.Key().String(), errors.New("timeout")))
	require.NoError(t, f.ledger.Confirm(f.ledger.PendingWrites()[0]))
	require.NoError(t, wait(t, p))

	confirmed, ok := f.store.Likes().Confirmed(unread.Key())
	require.True(t, ok)
	require.Equal(t, interaction.LikeState{Count: 5, Liked: true}, confirmed)
}

func TestLikeUnknownPostIsNotSubmitted(t *testing.T) {
	f := newFixture(t, testSyncConfig(), nil)
	missing := social.NewPostKey(author, 99)

	_, err := f.coordinator.Like(context.Background(), f.session, missing)
	require.ErrorIs(t, err, ledger.ErrNotFound)
	require.Empty(t, f.ledger.PendingWrites())
	require.Equal(t, StateIdle, f.coordinator.State(Key{Entity: missing.String(), Family: FamilyLike}))

	_, ok := f.store.Likes().Get(missing)
	require.False(t, ok)
}

func TestWriteSlotsAreBounded(t *testing.T) {
	cfg := testSyncConfig()
	cfg.MaxPendingWrites = 1
	f := newFixture(t, cfg, nil)

	other := f.ledger.SeedPost(author, "second", "")

	_, err := f.coordinator.Like(context.Background(), f.session, f.post.Key())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = f.coordinator.Like(ctx, f.session, other.Key())
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Len(t, f.ledger.Writes(), 1)

	require.False(t, f.store.Likes().Outstanding(other.Key()))
	require.Equal(t, StateIdle, f.coordinator.State(likeKey(other)))
}

func TestFollowInvalidatesProfiles(t *testing.T) {
	f := newFixture(t, testSyncConfig(), nil)
	ctx := context.Background()

	_, err := f.cache.Get(ctx, author)
	require.NoError(t, err)

	p, err := f.coordinator.Follow(ctx, f.session, author)
	require.NoError(t, err)

	following, _ := f.store.Follows().Get(author)
	require.True(t, following.Following)

	// Invalidation only happens once confirmed
	_, cached := f.cache.Peek(author)
	require.True(t, cached)

	require.NoError(t, f.ledger.Confirm(f.ledger.PendingWrites()[0]))
	require.NoError(t, wait(t, p))

	profile, err := f.cache.Get(ctx, author)
	require.NoError(t, err)
	require.EqualValues(t, 1, profile.FollowerCount)

	confirmed, ok := f.store.Follows().Confirmed(author)
	require.True(t, ok)
	require.True(t, confirmed.Following)
}

func TestCreatePostReplacesPlaceholder(t *testing.T) {
	f := newFixture(t, testSyncConfig(), nil)
	viewer := f.session.Identity()

	p, err := f.coordinator.CreatePost(context.Background(), f.session, "first post", "https://example.com/cat.png")
	require.NoError(t, err)

	views, ok := f.store.RenderPosts(viewer)
	require.True(t, ok)
	require.Len(t, views, 1)
	require.True(t, views[0].Placeholder)
	require.Equal(t, "https://example.com/cat.png", views[0].MediaURI)

	require.NoError(t, f.ledger.Confirm(f.ledger.PendingWrites()[0]))
	require.NoError(t, wait(t, p))

	views, _ = f.store.RenderPosts(viewer)
	require.Len(t, views, 1)
	require.False(t, views[0].Placeholder)
	require.EqualValues(t, 1, views[0].PostID)
	require.Equal(t, "first post", views[0].Content)
}

func TestCreatePostReadBeforeConfirmation(t *testing.T) {
	f := newFixture(t, testSyncConfig(), nil)
	viewer := f.session.Identity()

	_, err := f.coordinator.CreatePost(context.Background(), f.session, "first post", "https://example.com/cat.png")
	require.NoError(t, err)

	// The post lands on the ledger, and a profile read sees it before the confirmation arrives
	landed := f.ledger.SeedPost(viewer, "first post", "https://example.com/cat.png")
	f.store.ObservePosts(viewer, f.store.Epoch(), []social.Post{landed}, nil)

	views, ok := f.store.RenderPosts(viewer)
	require.True(t, ok)
	require.Len(t, views, 1)
	require.False(t, views[0].Placeholder)
	require.Equal(t, landed.PostID, views[0].PostID)
}

func TestDeletePost(t *testing.T) {
	f := newFixture(t, testSyncConfig(), nil)
	viewer := f.session.Identity()
	own := f.ledger.SeedPost(viewer, "mine", "")
	f.store.ObservePosts(viewer, f.store.Epoch(), []social.Post{own}, nil)

	p, err := f.coordinator.DeletePost(context.Background(), f.session, own.PostID)
	require.NoError(t, err)

	views, _ := f.store.RenderPosts(viewer)
	require.Empty(t, views)

	f.ledger.Fail(f.ledger.PendingWrites()[0], ledger.ErrDropped)
	require.ErrorIs(t, wait(t, p), ledger.ErrRejected)

	views, _ = f.store.RenderPosts(viewer)
	require.Len(t, views, 1)
}

func TestCommentPendingThenLoaded(t *testing.T) {
	f := newFixture(t, testSyncConfig(), nil)

	p, err := f.coordinator.Comment(context.Background(), f.session, f.post.Key(), "nice")
	require.NoError(t, err)

	view := f.store.RenderPost(f.post)
	require.EqualValues(t, 1, view.CommentsCount)
	require.Len(t, view.PendingComments, 1)
	require.True(t, view.Syncing)

	require.NoError(t, f.ledger.Confirm(f.ledger.PendingWrites()[0]))
	require.NoError(t, wait(t, p))

	state, _ := f.store.Comments().Get(f.post.Key())
	require.True(t, state.Loaded)
	require.Empty(t, state.Pending)
	require.Len(t, state.Comments, 1)
	require.Equal(t, f.session.Identity(), state.Comments[0].Commenter)
}

func TestCommentReadBeforeConfirmation(t *testing.T) {
	f := newFixture(t, testSyncConfig(), nil)
	viewer := f.session.Identity()

	_, err := f.coordinator.Comment(context.Background(), f.session, f.post.Key(), "nice")
	require.NoError(t, err)

	// The comment lands on the ledger, and a feed read sees it before the confirmation arrives
	f.ledger.SeedComment(f.post.Key(), viewer, "nice")
	landed, _ := f.ledger.Post(f.post.Key())
	f.store.ObservePosts(author, f.store.Epoch(), []social.Post{landed}, []bool{false})

	view := f.store.RenderPost(landed)
	require.EqualValues(t, 1, view.CommentsCount)
	require.Empty(t, view.PendingComments)

	thread := interaction.LoadedComments([]social.Comment{{Commenter: viewer, Content: "nice"}})
	f.store.Comments().Observe(f.post.Key(), f.store.Epoch(), interaction.Replace(thread))

	view = f.store.RenderPost(landed)
	require.EqualValues(t, 1, view.CommentsCount)
	require.Empty(t, view.PendingComments)
}

func TestRegisterOptimistic(t *testing.T) {
	f := newFixture(t, testSyncConfig(), nil)

	s, err := session.Connect(context.Background(), session.GenerateKey())
	require.NoError(t, err)

	p, err := f.coordinator.Register(context.Background(), s, "newbie", "hello")
	require.NoError(t, err)

	view := f.store.RenderProfile(social.Profile{Identity: s.Identity()})
	require.True(t, view.Registered)
	require.Equal(t, "newbie", view.Username)

	require.NoError(t, f.ledger.Confirm(f.ledger.PendingWrites()[0]))
	require.NoError(t, wait(t, p))

	confirmed, ok := f.store.Profiles().Confirmed(s.Identity())
	require.True(t, ok)
	require.Equal(t, "newbie", confirmed.Username)
}

func TestResumeAfterRestart(t *testing.T) {
	j, err := journal.NewLevelDBJournal(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, j.Close(context.Background()))
	})

	f := newFixture(t, testSyncConfig(), j)

	_, err = f.coordinator.Like(context.Background(), f.session, f.post.Key())
	require.NoError(t, err)
	f.coordinator.Close()

	unresolved, err := j.Unresolved(context.Background(), f.session.Identity())
	require.NoError(t, err)
	require.Len(t, unresolved, 1)

	// A fresh store, as after a restart
	f.store = interaction.NewStore()
	f.store.ObservePosts(author, f.store.Epoch(), []social.Post{f.post}, []bool{false})
	coordinator := f.newCoordinator(testSyncConfig())
	defer coordinator.Close()

	resumed, err := coordinator.Resume(context.Background(), f.session)
	require.NoError(t, err)
	require.Len(t, resumed, 1)
	require.Equal(t, KindLike, resumed[0].Kind)
	require.Equal(t, interaction.LikeState{Count: 3, Liked: true}, f.likes(t))

	require.NoError(t, f.ledger.Confirm(f.ledger.PendingWrites()[0]))
	require.NoError(t, wait(t, resumed[0]))

	unresolved, err = j.Unresolved(context.Background(), f.session.Identity())
	require.NoError(t, err)
	require.Empty(t, unresolved)
}
