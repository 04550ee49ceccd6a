package interaction

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/RyanW02/chainsocial/pkg/types/social"
	"github.com/stretchr/testify/require"
)

var testKey = social.NewPostKey("AA", 1)

func TestRollbackRestoresDisplayedValue(t *testing.T) {
	store := NewStore()
	store.Likes().Observe(testKey, store.Epoch(), Replace(LikeState{Count: 2}))
	store.Comments().Observe(testKey, store.Epoch(), Replace(LoadedComments([]social.Comment{{Commenter: "BB", Content: "first"}})))

	beforeLikes, _ := store.Likes().Get(testKey)
	beforeComments, _ := store.Comments().Get(testKey)
	beforeJSON, err := json.Marshal(store.RenderPost(social.Post{Owner: "AA", PostID: 1}))
	require.NoError(t, err)

	likeSeq := store.NextSeq()
	require.NoError(t, store.Likes().Apply(testKey, likeSeq, Like()))
	commentSeq := store.NextSeq()
	require.NoError(t, store.Comments().Apply(testKey, commentSeq, AddComment(social.Comment{Commenter: "CC", Content: "hi"}, LoadedComments([]social.Comment{{Commenter: "BB", Content: "first"}}))))

	during, _ := store.Likes().Get(testKey)
	require.Equal(t, LikeState{Count: 3, Liked: true}, during)

	require.NoError(t, store.Likes().Rollback(testKey, likeSeq))
	require.NoError(t, store.Comments().Rollback(testKey, commentSeq))

	afterLikes, _ := store.Likes().Get(testKey)
	afterComments, _ := store.Comments().Get(testKey)
	require.Equal(t, beforeLikes, afterLikes)
	require.Equal(t, beforeComments, afterComments)

	afterJSON, err := json.Marshal(store.RenderPost(social.Post{Owner: "AA", PostID: 1}))
	require.NoError(t, err)
	require.Equal(t, string(beforeJSON), string(afterJSON))
}

func TestHighestSeqWinsRegardlessOfResolutionOrder(t *testing.T) {
	for _, commitLatestFirst := range []bool{false, true} {
		store := NewStore()
		store.Likes().Observe(testKey, store.Epoch(), Replace(LikeState{Count: 2}))

		likeSeq := store.NextSeq()
		require.NoError(t, store.Likes().Apply(testKey, likeSeq, Like()))
		unlikeSeq := store.NextSeq()
		require.NoError(t, store.Likes().Apply(testKey, unlikeSeq, Unlike()))

		displayed, _ := store.Likes().Get(testKey)
		require.Equal(t, LikeState{Count: 2, Liked: false}, displayed)

		likeSnapshot := LikeState{Count: 3, Liked: true}
		unlikeSnapshot := LikeState{Count: 2, Liked: false}

		if commitLatestFirst {
			require.NoError(t, store.Likes().Commit(testKey, unlikeSeq, unlikeSnapshot))
			require.ErrorIs(t, store.Likes().Commit(testKey, likeSeq, likeSnapshot), ErrStaleResolution)
		} else {
			require.NoError(t, store.Likes().Commit(testKey, likeSeq, likeSnapshot))

			// The unlike is still outstanding, so it is still displayed on top of the like's snapshot
			displayed, _ = store.Likes().Get(testKey)
			require.Equal(t, LikeState{Count: 2, Liked: false}, displayed)

			require.NoError(t, store.Likes().Commit(testKey, unlikeSeq, unlikeSnapshot))
		}

		displayed, _ = store.Likes().Get(testKey)
		require.Equal(t, unlikeSnapshot, displayed)
		require.False(t, store.Likes().Outstanding(testKey))
	}
}

func TestApplyRejectsStaleSeq(t *testing.T) {
	store := NewStore()

	require.NoError(t, store.Likes().Apply(testKey, 5, Like()))
	require.ErrorIs(t, store.Likes().Apply(testKey, 5, Unlike()), ErrStaleResolution)
	require.ErrorIs(t, store.Likes().Apply(testKey, 3, Unlike()), ErrStaleResolution)

	displayed, _ := store.Likes().Get(testKey)
	require.True(t, displayed.Liked)
}

func TestRollbackUnknownSeq(t *testing.T) {
	store := NewStore()
	require.ErrorIs(t, store.Likes().Rollback(testKey, 1), ErrStaleResolution)

	require.NoError(t, store.Likes().Apply(testKey, 1, Like()))
	require.ErrorIs(t, store.Likes().Rollback(testKey, 2), ErrStaleResolution)
}

func TestObserveIgnoredAfterNewerCommit(t *testing.T) {
	store := NewStore()

	epoch := store.Epoch() // A feed read starts here

	seq := store.NextSeq()
	require.NoError(t, store.Likes().Apply(testKey, seq, Like()))
	require.NoError(t, store.Likes().Commit(testKey, seq, LikeState{Count: 1, Liked: true}))

	// The feed read returns state from before the like was confirmed
	require.False(t, store.Likes().Observe(testKey, epoch, Replace(LikeState{Count: 0})))

	displayed, _ := store.Likes().Get(testKey)
	require.Equal(t, LikeState{Count: 1, Liked: true}, displayed)

	require.True(t, store.Likes().Observe(testKey, store.Epoch(), Replace(LikeState{Count: 4, Liked: true})))
	displayed, _ = store.Likes().Get(testKey)
	require.Equal(t, LikeState{Count: 4, Liked: true}, displayed)
}

func TestTransformsAreIdempotent(t *testing.T) {
	store := NewStore()

	seq := store.NextSeq()
	require.NoError(t, store.Likes().Apply(testKey, seq, Like()))

	// A read lands after the ledger confirmed the like but before the commit
	store.Likes().Observe(testKey, store.Epoch(), Replace(LikeState{Count: 3, Liked: true}))

	displayed, _ := store.Likes().Get(testKey)
	require.Equal(t, LikeState{Count: 3, Liked: true}, displayed)
}

func TestPromoteFoldsTransform(t *testing.T) {
	store := NewStore()
	store.Follows().Observe("BB", store.Epoch(), Replace(FollowState{}))

	seq := store.NextSeq()
	require.NoError(t, store.Follows().Apply("BB", seq, SetFollowing(true)))
	require.NoError(t, store.Follows().Promote("BB", seq))

	confirmed, ok := store.Follows().Confirmed("BB")
	require.True(t, ok)
	require.True(t, confirmed.Following)
	require.False(t, store.Follows().Outstanding("BB"))
}

func TestUnknownKey(t *testing.T) {
	store := NewStore()

	_, ok := store.Likes().Get(testKey)
	require.False(t, ok)

	view := store.RenderPost(social.Post{Owner: "AA", PostID: 1, LikesCount: 7})
	require.EqualValues(t, 7, view.LikesCount)
	require.False(t, view.Liked)
}

func TestForget(t *testing.T) {
	store := NewStore()
	store.Likes().Observe(testKey, store.Epoch(), Replace(LikeState{Count: 1}))
	store.Likes().Forget(testKey)

	_, ok := store.Likes().Get(testKey)
	require.False(t, ok)
}

func TestSubscribeReceivesChanges(t *testing.T) {
	store := NewStore()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := store.Subscribe(ctx)
	require.NoError(t, store.Follows().Apply("BB", store.NextSeq(), SetFollowing(true)))

	select {
	case change := <-changes:
		require.Equal(t, Change{Lane: LaneFollows, Key: "BB"}, change)
	case <-time.After(time.Second):
		t.Fatal("no change received")
	}
}
