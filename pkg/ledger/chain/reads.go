package chain

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/RyanW02/chainsocial/pkg/ledger"
	"github.com/RyanW02/chainsocial/pkg/types/social"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

func query[T any](ctx context.Context, c *Client, op, path string) (T, error) {
	var zero T

	conn, err := c.pool.Get()
	if err != nil {
		return zero, ledger.NewTransientFetchError(op, err)
	}

	ctx, cancelFunc := context.WithTimeout(ctx, c.config.QueryTimeout.Duration())
	defer cancelFunc()

	res, err := conn.ABCIQueryWithOptions(ctx, path, c.queryData, ABCIQueryOptions)
	if err != nil {
		c.logger.Debug("ABCI query failed", zap.String("path", path), zap.String("node", conn.Remote()), zap.Error(err))
		return zero, ledger.NewTransientFetchError(op, err)
	}

	if res.Response.Code != social.CodeOk {
		if res.Response.Codespace == social.Codespace &&
			(res.Response.Code == social.CodeNotFound || res.Response.Code == social.CodeNotRegistered) {
			return zero, errors.Wrapf(ledger.ErrNotFound, "%s %s", op, path)
		}

		return zero, ledger.NewTransientFetchError(op, fmt.Errorf(
			"code: %s:%d, log: %s, info: %s",
			res.Response.Codespace, res.Response.Code, res.Response.Log, res.Response.Info,
		))
	}

	var value T
	if err := json.Unmarshal(res.Response.Value, &value); err != nil {
		return zero, ledger.NewTransientFetchError(op, errors.Wrap(err, "failed to decode query response"))
	}

	return value, nil
}

func (c *Client) GetProfile(ctx context.Context, id social.Identity) (social.Profile, error) {
	return query[social.Profile](ctx, c, "get_profile", social.PathProfile(id))
}

func (c *Client) GetPosts(ctx context.Context, id social.Identity) ([]social.Post, error) {
	return query[[]social.Post](ctx, c, "get_posts", social.PathPosts(id))
}

func (c *Client) GetFollowing(ctx context.Context, id social.Identity) ([]social.Identity, error) {
	return query[[]social.Identity](ctx, c, "get_following", social.PathFollowing(id))
}

func (c *Client) GetFollowers(ctx context.Context, id social.Identity) ([]social.Identity, error) {
	return query[[]social.Identity](ctx, c, "get_followers", social.PathFollowers(id))
}

func (c *Client) GetComments(ctx context.Context, key social.PostKey) ([]social.Comment, error) {
	return query[[]social.Comment](ctx, c, "get_comments", social.PathComments(key))
}

func (c *Client) GetLikers(ctx context.Context, key social.PostKey) ([]social.Identity, error) {
	return query[[]social.Identity](ctx, c, "get_likers", social.PathLikers(key))
}

func (c *Client) IsFollowing(ctx context.Context, follower, followee social.Identity) (bool, error) {
	return query[bool](ctx, c, "is_following", social.PathIsFollowing(follower, followee))
}

func (c *Client) DidLike(ctx context.Context, viewer social.Identity, key social.PostKey) (bool, error) {
	return query[bool](ctx, c, "did_like", social.PathDidLike(viewer, key))
}

func (c *Client) GetRegisteredUsers(ctx context.Context) ([]social.Identity, error) {
	return query[[]social.Identity](ctx, c, "get_registered_users", social.PathRegisteredUsers)
}
