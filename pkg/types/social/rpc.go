package social

import (
	"fmt"
	"net/url"
)

const (
	AppName = "social"

	RequestTypeRegister         = "register"
	RequestTypeUpdateProfileURI = "update_profile_uri"
	RequestTypeCreatePost       = "create_post"
	RequestTypeDeletePost       = "delete_post"
	RequestTypeLikePost         = "like_post"
	RequestTypeUnlikePost       = "unlike_post"
	RequestTypeAddComment       = "add_comment"
	RequestTypeFollow           = "follow"
	RequestTypeUnfollow         = "unfollow"
)

type (
	PayloadRegister struct {
		Username string `json:"username"`
		Bio      string `json:"bio"`
	}

	PayloadUpdateProfileURI struct {
		URI string `json:"uri"`
	}

	PayloadCreatePost struct {
		Content  string `json:"content"`
		MediaURI string `json:"media_uri"`
	}

	PayloadDeletePost struct {
		PostID uint64 `json:"post_id"`
	}

	// PayloadPostReference is used by like_post and unlike_post
	PayloadPostReference struct {
		Owner  Identity `json:"owner"`
		PostID uint64   `json:"post_id"`
	}

	PayloadAddComment struct {
		Owner   Identity `json:"owner"`
		PostID  uint64   `json:"post_id"`
		Content string   `json:"content"`
	}

	// PayloadFollowTarget is used by follow and unfollow
	PayloadFollowTarget struct {
		Target Identity `json:"target"`
	}
)

// Query paths understood by the social app's ABCI query handler.

func PathProfile(id Identity) string {
	return "/profile/" + url.PathEscape(id.String())
}

func PathPosts(id Identity) string {
	return "/posts/" + url.PathEscape(id.String())
}

func PathFollowing(id Identity) string {
	return "/following/" + url.PathEscape(id.String())
}

func PathFollowers(id Identity) string {
	return "/followers/" + url.PathEscape(id.String())
}

func PathComments(key PostKey) string {
	return fmt.Sprintf("/comments/%s/%d", url.PathEscape(key.Owner.String()), key.PostID)
}

func PathLikers(key PostKey) string {
	return fmt.Sprintf("/likers/%s/%d", url.PathEscape(key.Owner.String()), key.PostID)
}

func PathIsFollowing(follower, followee Identity) string {
	return fmt.Sprintf("/is-following/%s/%s", url.PathEscape(follower.String()), url.PathEscape(followee.String()))
}

func PathDidLike(viewer Identity, key PostKey) string {
	return fmt.Sprintf("/did-like/%s/%s/%d", url.PathEscape(viewer.String()), url.PathEscape(key.Owner.String()), key.PostID)
}

const PathRegisteredUsers = "/users"
