package ledgertest

import (
	"context"
	"fmt"

	"github.com/RyanW02/chainsocial/pkg/ledger"
	"github.com/RyanW02/chainsocial/pkg/types/rpc"
	"github.com/RyanW02/chainsocial/pkg/types/social"
)

// Write is a submitted transaction awaiting resolution by the test.
type Write struct {
	Type    rpc.RequestType
	Signer  social.Identity
	Payload any
	Handle  *ledger.Handle

	apply func() error
}

func (l *Ledger) submit(ctx context.Context, signer rpc.Signer, requestType rpc.RequestType, payload any, apply func(signer social.Identity) error) (*ledger.Handle, error) {
	if signer == nil {
		return nil, ledger.ErrNotConnected
	}

	// Exercise the signer the same way the real ledger does
	if _, err := signer.Sign([]byte(requestType)); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	if l.submitErr != nil {
		err := l.submitErr
		l.mu.Unlock()
		return nil, err
	}

	identity := signer.Identity()
	handle := ledger.NewHandle(l.newTxHash())
	write := &Write{
		Type:    requestType,
		Signer:  identity,
		Payload: payload,
		Handle:  handle,
		apply: func() error {
			return apply(identity)
		},
	}

	l.writes = append(l.writes, write)
	l.handles[string(handle.TxHash())] = handle
	autoConfirm := l.autoConfirm
	l.mu.Unlock()

	if autoConfirm {
		l.Confirm(write)
	}

	return handle, nil
}

// Writes returns every write submitted so far, in submission order.
func (l *Ledger) Writes() []*Write {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*Write(nil), l.writes...)
}

// PendingWrites returns the unresolved writes, in submission order.
func (l *Ledger) PendingWrites() []*Write {
	l.mu.Lock()
	defer l.mu.Unlock()

	var pending []*Write
	for _, w := range l.writes {
		if w.Handle.Status() == ledger.StatusPending {
			pending = append(pending, w)
		}
	}

	return pending
}

// Confirm executes the write against the in-memory state. If execution fails, as it would on chain (e.g. liking a
// post twice), the write resolves to a *ledger.RejectedError, which is also returned.
func (l *Ledger) Confirm(w *Write) error {
	if w.Handle.Status() != ledger.StatusPending {
		return w.Handle.Err()
	}

	l.mu.Lock()
	err := w.apply()
	l.mu.Unlock()

	w.Handle.Resolve(err)
	return err
}

func (l *Ledger) Fail(w *Write, err error) {
	w.Handle.Resolve(err)
}

// ConfirmAll confirms every pending write in submission order.
func (l *Ledger) ConfirmAll() {
	for _, w := range l.PendingWrites() {
		_ = l.Confirm(w)
	}
}

func rejected(code uint32, format string, args ...any) error {
	return &ledger.RejectedError{Codespace: social.Codespace, Code: code, Log: fmt.Sprintf(format, args...)}
}

func (l *Ledger) Register(ctx context.Context, signer rpc.Signer, username, bio string) (*ledger.Handle, error) {
	payload := social.PayloadRegister{Username: username, Bio: bio}
	return l.submit(ctx, signer, social.RequestTypeRegister, payload, func(id social.Identity) error {
		if _, ok := l.profiles[id]; ok {
			return rejected(social.CodeAlreadyRegistered, "%s is already registered", id)
		}

		l.register(id, username, bio)
		return nil
	})
}

func (l *Ledger) UpdateProfileURI(ctx context.Context, signer rpc.Signer, uri string) (*ledger.Handle, error) {
	payload := social.PayloadUpdateProfileURI{URI: uri}
	return l.submit(ctx, signer, social.RequestTypeUpdateProfileURI, payload, func(id social.Identity) error {
		profile, ok := l.profiles[id]
		if !ok {
			return rejected(social.CodeNotRegistered, "%s is not registered", id)
		}

		profile.AvatarURI = uri
		l.profiles[id] = profile
		return nil
	})
}

func (l *Ledger) CreatePost(ctx context.Context, signer rpc.Signer, content, mediaURI string) (*ledger.Handle, error) {
	payload := social.PayloadCreatePost{Content: content, MediaURI: mediaURI}
	return l.submit(ctx, signer, social.RequestTypeCreatePost, payload, func(id social.Identity) error {
		if _, ok := l.profiles[id]; !ok {
			return rejected(social.CodeNotRegistered, "%s is not registered", id)
		}

		l.createPost(id, content, mediaURI)
		return nil
	})
}

func (l *Ledger) DeletePost(ctx context.Context, signer rpc.Signer, postId uint64) (*ledger.Handle, error) {
	payload := social.PayloadDeletePost{PostID: postId}
	return l.submit(ctx, signer, social.RequestTypeDeletePost, payload, func(id social.Identity) error {
		key := social.NewPostKey(id, postId)
		i, ok := l.findPost(key)
		if !ok {
			return rejected(social.CodeNotFound, "post %s not found", key)
		}

		posts := l.posts[id]
		l.posts[id] = append(posts[:i:i], posts[i+1:]...)
		delete(l.likers, key)
		delete(l.comments, key)
		l.adjustProfile(id, func(p *social.Profile) { p.PostCount-- })
		return nil
	})
}

func (l *Ledger) LikePost(ctx context.Context, signer rpc.Signer, key social.PostKey) (*ledger.Handle, error) {
	payload := social.PayloadPostReference{Owner: key.Owner, PostID: key.PostID}
	return l.submit(ctx, signer, social.RequestTypeLikePost, payload, func(id social.Identity) error {
		i, ok := l.findPost(key)
		if !ok {
			return rejected(social.CodeNotFound, "post %s not found", key)
		}

		if indexOf(l.likers[key], id) >= 0 {
			return rejected(social.CodeAlreadyLiked, "%s already liked %s", id, key)
		}

		l.likers[key] = append(l.likers[key], id)
		l.posts[key.Owner][i].LikesCount++
		return nil
	})
}

func (l *Ledger) UnlikePost(ctx context.Context, signer rpc.Signer, key social.PostKey) (*ledger.Handle, error) {
	payload := social.PayloadPostReference{Owner: key.Owner, PostID: key.PostID}
	return l.submit(ctx, signer, social.RequestTypeUnlikePost, payload, func(id social.Identity) error {
		i, ok := l.findPost(key)
		if !ok {
			return rejected(social.CodeNotFound, "post %s not found", key)
		}

		if indexOf(l.likers[key], id) < 0 {
			return rejected(social.CodeNotLiked, "%s has not liked %s", id, key)
		}

		l.likers[key] = without(l.likers[key], id)
		l.posts[key.Owner][i].LikesCount--
		return nil
	})
}

func (l *Ledger) AddComment(ctx context.Context, signer rpc.Signer, key social.PostKey, text string) (*ledger.Handle, error) {
	payload := social.PayloadAddComment{Owner: key.Owner, PostID: key.PostID, Content: text}
	return l.submit(ctx, signer, social.RequestTypeAddComment, payload, func(id social.Identity) error {
		if _, ok := l.findPost(key); !ok {
			return rejected(social.CodeNotFound, "post %s not found", key)
		}

		l.addComment(key, id, text)
		return nil
	})
}

func (l *Ledger) Follow(ctx context.Context, signer rpc.Signer, target social.Identity) (*ledger.Handle, error) {
	payload := social.PayloadFollowTarget{Target: target}
	return l.submit(ctx, signer, social.RequestTypeFollow, payload, func(id social.Identity) error {
		if id == target {
			return rejected(social.CodeSelfFollow, "%s cannot follow itself", id)
		}

		if indexOf(l.following[id], target) >= 0 {
			return rejected(social.CodeAlreadyFollowing, "%s already follows %s", id, target)
		}

		l.follow(id, target)
		return nil
	})
}

func (l *Ledger) Unfollow(ctx context.Context, signer rpc.Signer, target social.Identity) (*ledger.Handle, error) {
	payload := social.PayloadFollowTarget{Target: target}
	return l.submit(ctx, signer, social.RequestTypeUnfollow, payload, func(id social.Identity) error {
		if indexOf(l.following[id], target) < 0 {
			return rejected(social.CodeNotFollowing, "%s does not follow %s", id, target)
		}

		l.following[id] = without(l.following[id], target)
		l.followers[target] = without(l.followers[target], id)
		l.adjustProfile(id, func(p *social.Profile) { p.FollowingCount-- })
		l.adjustProfile(target, func(p *social.Profile) { p.FollowerCount-- })
		return nil
	})
}
