package social

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// PostKey identifies a post globally. Post IDs are only unique per owner, and are never reused after a deletion.
type PostKey struct {
	Owner  Identity `json:"owner"`
	PostID uint64   `json:"post_id"`
}

var ErrInvalidPostKey = errors.New("invalid post key")

func NewPostKey(owner Identity, postId uint64) PostKey {
	return PostKey{Owner: owner, PostID: postId}
}

// ParsePostKey is the inverse of PostKey.String.
func ParsePostKey(s string) (PostKey, error) {
	owner, id, found := strings.Cut(s, "/")
	if !found || len(owner) == 0 {
		return PostKey{}, errors.Wrapf(ErrInvalidPostKey, "%q", s)
	}

	postId, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return PostKey{}, errors.Wrapf(ErrInvalidPostKey, "%q: %v", s, err)
	}

	return NewPostKey(NewIdentity(owner), postId), nil
}

func (k PostKey) String() string {
	return fmt.Sprintf("%s/%d", k.Owner, k.PostID)
}

type Post struct {
	Owner         Identity `json:"owner"`
	PostID        uint64   `json:"post_id"`
	Content       string   `json:"content"`
	MediaURI      string   `json:"media_uri"`
	LikesCount    uint64   `json:"likes_count"`
	CommentsCount uint64   `json:"comments_count"`
}

func (p Post) Key() PostKey {
	return NewPostKey(p.Owner, p.PostID)
}

// Comment is append-only: the ledger has no edit or delete operation for comments.
type Comment struct {
	Commenter Identity  `json:"commenter"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}
