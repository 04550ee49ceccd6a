package ledgertest

import (
	"context"

	"github.com/RyanW02/chainsocial/pkg/ledger"
	"github.com/RyanW02/chainsocial/pkg/types/social"
	"github.com/pkg/errors"
)

func (l *Ledger) beforeRead(ctx context.Context, op Op, subject string) error {
	l.mu.Lock()
	hook := l.readHook
	l.mu.Unlock()

	if hook != nil {
		if err := hook(ctx, op, subject); err != nil {
			return err
		}
	}

	if err := ctx.Err(); err != nil {
		return ledger.NewTransientFetchError(string(op), err)
	}

	return nil
}

func (l *Ledger) GetProfile(ctx context.Context, id social.Identity) (social.Profile, error) {
	if err := l.beforeRead(ctx, OpGetProfile, id.String()); err != nil {
		return social.Profile{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	profile, ok := l.profiles[id]
	if !ok {
		return social.Profile{}, errors.Wrapf(ledger.ErrNotFound, "profile %s", id)
	}

	return profile, nil
}

func (l *Ledger) GetPosts(ctx context.Context, id social.Identity) ([]social.Post, error) {
	if err := l.beforeRead(ctx, OpGetPosts, id.String()); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return clone(l.posts[id]), nil
}

func (l *Ledger) GetFollowing(ctx context.Context, id social.Identity) ([]social.Identity, error) {
	if err := l.beforeRead(ctx, OpGetFollowing, id.String()); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return clone(l.following[id]), nil
}

func (l *Ledger) GetFollowers(ctx context.Context, id social.Identity) ([]social.Identity, error) {
	if err := l.beforeRead(ctx, OpGetFollowers, id.String()); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return clone(l.followers[id]), nil
}

func (l *Ledger) GetComments(ctx context.Context, key social.PostKey) ([]social.Comment, error) {
	if err := l.beforeRead(ctx, OpGetComments, key.String()); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.findPost(key); !ok {
		return nil, errors.Wrapf(ledger.ErrNotFound, "post %s", key)
	}

	return clone(l.comments[key]), nil
}

func (l *Ledger) GetLikers(ctx context.Context, key social.PostKey) ([]social.Identity, error) {
	if err := l.beforeRead(ctx, OpGetLikers, key.String()); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.findPost(key); !ok {
		return nil, errors.Wrapf(ledger.ErrNotFound, "post %s", key)
	}

	return clone(l.likers[key]), nil
}

func (l *Ledger) IsFollowing(ctx context.Context, follower, followee social.Identity) (bool, error) {
	if err := l.beforeRead(ctx, OpIsFollowing, follower.String()+"->"+followee.String()); err != nil {
		return false, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return indexOf(l.following[follower], followee) >= 0, nil
}

func (l *Ledger) DidLike(ctx context.Context, viewer social.Identity, key social.PostKey) (bool, error) {
	if err := l.beforeRead(ctx, OpDidLike, key.String()); err != nil {
		return false, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return indexOf(l.likers[key], viewer) >= 0, nil
}

func (l *Ledger) GetRegisteredUsers(ctx context.Context) ([]social.Identity, error) {
	if err := l.beforeRead(ctx, OpGetRegisteredUsers, ""); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return clone(l.users), nil
}

// findPost must be called with mu held.
func (l *Ledger) findPost(key social.PostKey) (int, bool) {
	for i, post := range l.posts[key.Owner] {
		if post.PostID == key.PostID {
			return i, true
		}
	}

	return -1, false
}

func clone[T any](s []T) []T {
	if s == nil {
		return []T{}
	}

	return append(make([]T, 0, len(s)), s...)
}

func indexOf(ids []social.Identity, id social.Identity) int {
	for i, candidate := range ids {
		if candidate == id {
			return i
		}
	}

	return -1
}

func without(ids []social.Identity, id social.Identity) []social.Identity {
	i := indexOf(ids, id)
	if i < 0 {
		return ids
	}

	return append(ids[:i:i], ids[i+1:]...)
}
