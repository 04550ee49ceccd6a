package mutation

import (
	"errors"

	"github.com/RyanW02/chainsocial/pkg/types/social"
)

type Kind string

const (
	KindLike          Kind = "like"
	KindUnlike        Kind = "unlike"
	KindComment       Kind = "comment"
	KindFollow        Kind = "follow"
	KindUnfollow      Kind = "unfollow"
	KindCreatePost    Kind = "create_post"
	KindDeletePost    Kind = "delete_post"
	KindUpdateProfile Kind = "update_profile"
	KindRegister      Kind = "register"
)

// Family groups kinds that act on the same state and therefore must not be pending at the same time for one
// entity: a like and an unlike of the same post are mutually exclusive.
type Family string

const (
	FamilyLike   Family = "like"
	FamilyFollow Family = "follow"
)

func (k Kind) Family() Family {
	switch k {
	case KindLike, KindUnlike:
		return FamilyLike
	case KindFollow, KindUnfollow:
		return FamilyFollow
	default:
		return Family(k)
	}
}

func (k Kind) Valid() bool {
	switch k {
	case KindLike, KindUnlike, KindComment, KindFollow, KindUnfollow, KindCreatePost, KindDeletePost,
		KindUpdateProfile, KindRegister:
		return true
	default:
		return false
	}
}

// Key identifies the state machine a mutation runs in.
type Key struct {
	Entity string `json:"entity"`
	Family Family `json:"family"`
}

func (k Key) String() string {
	return string(k.Family) + ":" + k.Entity
}

type State uint8

const (
	StateIdle State = iota
	StatePending
	StateConfirmed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePending:
		return "pending"
	case StateConfirmed:
		return "confirmed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Intent is a mutation requested by the user. Which fields are used depends on Kind:
//   - like, unlike, delete_post: Post
//   - comment: Post, Text
//   - follow, unfollow: Target
//   - create_post: Text (content), Extra (media reference)
//   - update_profile: Extra (avatar reference)
//   - register: Text (username), Extra (bio)
type Intent struct {
	Kind   Kind            `json:"kind"`
	Post   social.PostKey  `json:"post"`
	Target social.Identity `json:"target"`
	Text   string          `json:"text"`
	Extra  string          `json:"extra"`
}

var (
	// ErrConflict is returned when a mutation of the same family is already pending for the entity.
	ErrConflict = errors.New("a conflicting mutation is already pending")
	ErrClosed   = errors.New("mutation coordinator closed")

	// ErrValidation is matched by every *ValidationError.
	ErrValidation    = errors.New("invalid mutation")
	ErrUnknownKind   = errors.New("unknown mutation kind")
	ErrEmptyComment  = errors.New("comment is empty")
	ErrEmptyPost     = errors.New("post has no content")
	ErrEmptyUsername = errors.New("username is empty")
	ErrNotOwner      = errors.New("only the owner of a post can delete it")
)

// ValidationError is returned for intents rejected before anything is applied or submitted.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return ErrValidation.Error() + ": " + e.Err.Error()
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(err error) error {
	return &ValidationError{Err: err}
}
