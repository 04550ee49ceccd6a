package feed

import (
	"context"

	"github.com/RyanW02/chainsocial/pkg/interaction"
	"github.com/RyanW02/chainsocial/pkg/session"
	"github.com/RyanW02/chainsocial/pkg/types/social"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type ProfilePage struct {
	Profile   interaction.ProfileView `json:"profile"`
	Posts     []interaction.PostView  `json:"posts"`
	Followers []social.Identity       `json:"followers"`
	Following []social.Identity       `json:"following"`
}

type Directory struct {
	Users  []interaction.ProfileView `json:"users"`
	Failed int                       `json:"failed"`
}

type Thread struct {
	Post     social.PostKey   `json:"post"`
	Comments []social.Comment `json:"comments"`
	Pending  []social.Comment `json:"pending"`
}

// ProfilePage reads everything shown on an identity's profile. Unlike the feed, any failed read fails the page,
// returning ErrNotFound if the identity has no profile.
func (a *Aggregator) ProfilePage(ctx context.Context, s *session.Session, id social.Identity) (ProfilePage, error) {
	if err := session.Require(s); err != nil {
		return ProfilePage{}, err
	}

	viewer := s.Identity()
	epoch := a.store.Epoch()
	limiter := a.newLimiter()

	var (
		profile              social.Profile
		posts                source
		followers, following []social.Identity
		viewerFollows        bool
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() (err error) {
		profile, err = a.cache.Get(groupCtx, id)
		return
	})

	group.Go(func() error {
		posts = a.readSource(groupCtx, limiter, viewer, id)
		return posts.err
	})

	group.Go(func() (err error) {
		followers, err = limited(groupCtx, limiter, "get_followers", func(ctx context.Context) ([]social.Identity, error) {
			return a.reader.GetFollowers(ctx, id)
		})
		return
	})

	group.Go(func() (err error) {
		following, err = limited(groupCtx, limiter, "get_following", func(ctx context.Context) ([]social.Identity, error) {
			return a.reader.GetFollowing(ctx, id)
		})
		return
	})

	if viewer != id {
		group.Go(func() (err error) {
			viewerFollows, err = limited(groupCtx, limiter, "is_following", func(ctx context.Context) (bool, error) {
				return a.reader.IsFollowing(ctx, viewer, id)
			})
			return
		})
	}

	if err := group.Wait(); err != nil {
		return ProfilePage{}, err
	}

	if err := ctx.Err(); err != nil {
		return ProfilePage{}, err
	}

	a.store.Profiles().Observe(id, epoch, interaction.Replace(interaction.ProfileFieldsOf(profile)))
	a.store.ObservePosts(id, epoch, posts.posts, posts.liked)
	if viewer != id {
		a.store.Follows().Observe(id, epoch, interaction.Replace(interaction.FollowState{Following: viewerFollows}))
	}

	page := ProfilePage{
		Profile:   a.store.RenderProfile(profile),
		Posts:     a.render(posts),
		Followers: followers,
		Following: following,
	}

	// Show the viewer in the follower list as soon as they follow, as the follower count already does
	if viewer != id {
		page.Followers = adjustMembership(page.Followers, viewer, page.Profile.Following)
	}

	return page, nil
}

// Discover lists every registered identity other than the viewer, and whether the viewer follows each. Identities
// whose profile can't be read are counted in Failed and left out.
func (a *Aggregator) Discover(ctx context.Context, s *session.Session) (Directory, error) {
	if err := session.Require(s); err != nil {
		return Directory{}, err
	}

	viewer := s.Identity()
	epoch := a.store.Epoch()

	users, err := a.reader.GetRegisteredUsers(ctx)
	if err != nil {
		return Directory{}, err
	}

	type entry struct {
		profile   social.Profile
		following bool
		err       error
	}

	limiter := a.newLimiter()
	entries := make([]entry, len(users))

	group := new(errgroup.Group)
	for i, id := range users {
		if id == viewer {
			continue
		}

		i, id := i, id
		group.Go(func() error {
			profile, err := a.cache.Get(ctx, id)
			if err != nil {
				entries[i].err = err
				return nil
			}

			following, err := limited(ctx, limiter, "is_following", func(ctx context.Context) (bool, error) {
				return a.reader.IsFollowing(ctx, viewer, id)
			})

			entries[i] = entry{profile: profile, following: following, err: err}
			return nil
		})
	}

	_ = group.Wait()

	if err := ctx.Err(); err != nil {
		return Directory{}, err
	}

	directory := Directory{Users: make([]interaction.ProfileView, 0, len(users))}
	for i, id := range users {
		if id == viewer {
			continue
		}

		if entries[i].err != nil {
			directory.Failed++
			a.logger.Warn("Failed to read user for discovery", zap.String("identity", id.String()), zap.Error(entries[i].err))
			continue
		}

		a.store.Follows().Observe(id, epoch, interaction.Replace(interaction.FollowState{Following: entries[i].following}))
		directory.Users = append(directory.Users, a.store.RenderProfile(entries[i].profile))
	}

	return directory, nil
}

// Comments reads the full comment thread of a post. Comments awaiting confirmation are returned separately.
func (a *Aggregator) Comments(ctx context.Context, s *session.Session, key social.PostKey) (Thread, error) {
	if err := session.Require(s); err != nil {
		return Thread{}, err
	}

	epoch := a.store.Epoch()

	comments, err := a.reader.GetComments(ctx, key)
	if err != nil {
		return Thread{}, err
	}

	if err := ctx.Err(); err != nil {
		return Thread{}, err
	}

	a.store.Comments().Observe(key, epoch, interaction.Replace(interaction.LoadedComments(comments)))

	thread := Thread{Post: key, Comments: comments}
	if state, ok := a.store.Comments().Get(key); ok {
		// A commit newer than this read wins
		if state.Loaded {
			thread.Comments = state.Comments
		}

		thread.Pending = state.Pending
	}

	return thread, nil
}

// Likers reads the identities that liked a post, with the viewer added or removed per their displayed like state.
func (a *Aggregator) Likers(ctx context.Context, s *session.Session, key social.PostKey) ([]social.Identity, error) {
	if err := session.Require(s); err != nil {
		return nil, err
	}

	viewer := s.Identity()
	epoch := a.store.Epoch()

	likers, err := a.reader.GetLikers(ctx, key)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	liked := contains(likers, viewer)
	a.store.Likes().Observe(key, epoch, interaction.Replace(interaction.LikeState{Count: uint64(len(likers)), Liked: liked}))

	if state, ok := a.store.Likes().Get(key); ok {
		likers = adjustMembership(likers, viewer, state.Liked)
	}

	return likers, nil
}

func contains(ids []social.Identity, id social.Identity) bool {
	for _, other := range ids {
		if other == id {
			return true
		}
	}

	return false
}

// adjustMembership returns ids with id appended or removed, so that its membership matches member.
func adjustMembership(ids []social.Identity, id social.Identity, member bool) []social.Identity {
	present := contains(ids, id)
	if member == present {
		return ids
	}

	if member {
		return append(ids, id)
	}

	filtered := make([]social.Identity, 0, len(ids)-1)
	for _, other := range ids {
		if other != id {
			filtered = append(filtered, other)
		}
	}

	return filtered
}
