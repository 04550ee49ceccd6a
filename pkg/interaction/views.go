package interaction

import (
	"github.com/RyanW02/chainsocial/pkg/types/social"
)

// PostView is a post as displayed to the viewer: the ledger's post with every outstanding optimistic update
// applied. It is derived on demand and never stored.
type PostView struct {
	social.Post
	Key             string           `json:"key"`
	Liked           bool             `json:"liked"`
	PendingComments []social.Comment `json:"pending_comments"`
	LocalID         string           `json:"local_id,omitempty"`
	Placeholder     bool             `json:"placeholder"` // Created optimistically, not yet on the ledger
	Syncing         bool             `json:"syncing"`     // Has a like or comment awaiting confirmation
}

type ProfileView struct {
	social.Profile
	Following     bool `json:"following"` // Whether the viewer follows this identity
	FollowPending bool `json:"follow_pending"`
}

// RenderPost overlays the like and comment lanes onto post.
func (s *Store) RenderPost(post social.Post) PostView {
	key := post.Key()
	view := PostView{
		Post: post,
		Key:  key.String(),
	}

	if likes, ok := s.likes.Get(key); ok {
		view.LikesCount = likes.Count
		view.Liked = likes.Liked
	}

	if comments, ok := s.comments.Get(key); ok {
		view.CommentsCount = comments.Count
		view.PendingComments = comments.Pending
	}

	view.Syncing = s.likes.Outstanding(key) || s.comments.Outstanding(key)
	return view
}

// RenderPosts returns the displayed post list of author, including placeholders for posts still being created.
// ok is false if the author's posts have never been read or written.
func (s *Store) RenderPosts(author social.Identity) (views []PostView, ok bool) {
	list, ok := s.posts.Get(author)
	if !ok {
		return nil, false
	}

	views = make([]PostView, 0, len(list.Entries))
	for _, entry := range list.Entries {
		if entry.Pending {
			views = append(views, PostView{
				Post:        entry.Post,
				LocalID:     entry.LocalID,
				Placeholder: true,
				Syncing:     true,
			})
			continue
		}

		views = append(views, s.RenderPost(entry.Post))
	}

	return views, true
}

// RenderProfile overlays the profile and follow lanes onto profile. Follower and post counts are adjusted for
// follows and posts still awaiting confirmation.
func (s *Store) RenderProfile(profile social.Profile) ProfileView {
	view := ProfileView{Profile: profile}

	if fields, ok := s.profiles.Get(profile.Identity); ok {
		view.Username = fields.Username
		view.Bio = fields.Bio
		view.AvatarURI = fields.AvatarURI
		view.Registered = fields.Registered
	}

	if follow, ok := s.follows.Get(profile.Identity); ok {
		view.Following = follow.Following
		view.FollowPending = s.follows.Outstanding(profile.Identity)

		if confirmed, ok := s.follows.Confirmed(profile.Identity); ok && confirmed.Following != follow.Following {
			if follow.Following {
				view.FollowerCount++
			} else if view.FollowerCount > 0 {
				view.FollowerCount--
			}
		}
	}

	if s.posts.Outstanding(profile.Identity) {
		if list, ok := s.posts.Get(profile.Identity); ok {
			view.PostCount = uint64(len(list.Entries))
		}
	}

	return view
}
