package interaction

import (
	"github.com/RyanW02/chainsocial/pkg/types/social"
)

type LikeState struct {
	Count uint64 `json:"count"`
	Liked bool   `json:"liked"`
}

func Like() Transform[LikeState] {
	return func(s LikeState) LikeState {
		if !s.Liked {
			s.Liked = true
			s.Count++
		}

		return s
	}
}

func Unlike() Transform[LikeState] {
	return func(s LikeState) LikeState {
		if s.Liked {
			s.Liked = false
			if s.Count > 0 {
				s.Count--
			}
		}

		return s
	}
}

// CommentState is the comment thread of a post. Comments is only populated once the thread has been read in full;
// feed reads only learn the count.
type CommentState struct {
	Count    uint64           `json:"count"`
	Comments []social.Comment `json:"comments"`
	Loaded   bool             `json:"loaded"`
	Pending  []social.Comment `json:"pending"`
}

func cloneCommentState(s CommentState) CommentState {
	s.Comments = cloneSlice(s.Comments)
	s.Pending = cloneSlice(s.Pending)
	return s
}

// AddComment appends comment as pending. base is the confirmed state the comment was written over: a confirmed
// state that has moved past it already includes the comment, and is left unchanged.
func AddComment(comment social.Comment, base CommentState) Transform[CommentState] {
	return func(s CommentState) CommentState {
		if base.Loaded && s.Loaded {
			if countComment(s.Comments, comment) > countComment(base.Comments, comment) {
				return s
			}
		} else if s.Count > base.Count {
			return s
		}

		s.Count++
		s.Pending = append(s.Pending, comment)
		return s
	}
}

func countComment(comments []social.Comment, comment social.Comment) (count int) {
	for _, c := range comments {
		if c.Commenter == comment.Commenter && c.Content == comment.Content {
			count++
		}
	}

	return
}

// CommentCount merges a comment count learnt from a post listing into the thread state.
func CommentCount(count uint64) func(CommentState, bool) CommentState {
	return func(prev CommentState, _ bool) CommentState {
		if prev.Loaded && uint64(len(prev.Comments)) != count {
			prev.Loaded = false
		}

		prev.Count = count
		return prev
	}
}

func LoadedComments(comments []social.Comment) CommentState {
	return CommentState{
		Count:    uint64(len(comments)),
		Comments: cloneSlice(comments),
		Loaded:   true,
	}
}

type FollowState struct {
	Following bool `json:"following"`
}

func SetFollowing(following bool) Transform[FollowState] {
	return func(s FollowState) FollowState {
		s.Following = following
		return s
	}
}

type ProfileFields struct {
	Username   string `json:"username"`
	Bio        string `json:"bio"`
	AvatarURI  string `json:"avatar_uri"`
	Registered bool   `json:"registered"`
}

func ProfileFieldsOf(p social.Profile) ProfileFields {
	return ProfileFields{
		Username:   p.Username,
		Bio:        p.Bio,
		AvatarURI:  p.AvatarURI,
		Registered: p.Registered,
	}
}

func Register(username, bio string) Transform[ProfileFields] {
	return func(f ProfileFields) ProfileFields {
		if !f.Registered {
			f.Username = username
			f.Bio = bio
			f.Registered = true
		}

		return f
	}
}

func SetAvatar(uri string) Transform[ProfileFields] {
	return func(f ProfileFields) ProfileFields {
		f.AvatarURI = uri
		return f
	}
}

// PostEntry is a post in an author's list. Entries created optimistically have no post ID until the ledger
// assigns one, and are identified by LocalID instead.
type PostEntry struct {
	social.Post
	LocalID string `json:"local_id,omitempty"`
	Pending bool   `json:"pending"`
}

type PostList struct {
	Entries []PostEntry `json:"entries"`
}

func clonePostList(l PostList) PostList {
	l.Entries = cloneSlice(l.Entries)
	return l
}

func PostListOf(posts []social.Post) PostList {
	entries := make([]PostEntry, len(posts))
	for i, post := range posts {
		entries[i] = PostEntry{Post: post}
	}

	return PostList{Entries: entries}
}

func (l PostList) Posts() []social.Post {
	posts := make([]social.Post, 0, len(l.Entries))
	for _, entry := range l.Entries {
		if !entry.Pending {
			posts = append(posts, entry.Post)
		}
	}

	return posts
}

func (l PostList) Find(postId uint64) (social.Post, bool) {
	for _, entry := range l.Entries {
		if !entry.Pending && entry.PostID == postId {
			return entry.Post, true
		}
	}

	return social.Post{}, false
}

// AddPost appends post as a placeholder. Once a confirmed list holds a matching post with an ID beyond those in
// base, the list already includes the write and is left unchanged.
func AddPost(localId string, post social.Post, base PostList) Transform[PostList] {
	var lastId uint64
	for _, entry := range base.Entries {
		if !entry.Pending && entry.PostID > lastId {
			lastId = entry.PostID
		}
	}

	return func(l PostList) PostList {
		for _, entry := range l.Entries {
			if entry.LocalID == localId {
				return l
			}

			if !entry.Pending && entry.PostID > lastId && entry.Owner == post.Owner &&
				entry.Content == post.Content && entry.MediaURI == post.MediaURI {
				return l
			}
		}

		l.Entries = append(l.Entries, PostEntry{Post: post, LocalID: localId, Pending: true})
		return l
	}
}

func RemovePost(postId uint64) Transform[PostList] {
	return func(l PostList) PostList {
		for i, entry := range l.Entries {
			if !entry.Pending && entry.PostID == postId {
				l.Entries = append(l.Entries[:i:i], l.Entries[i+1:]...)
				return l
			}
		}

		return l
	}
}

// Replace is a merge function that discards the previous confirmed value.
func Replace[V any](value V) func(V, bool) V {
	return func(V, bool) V {
		return value
	}
}

func identity[V any](v V) V {
	return v
}

func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}

	return append(make([]T, 0, len(s)), s...)
}
