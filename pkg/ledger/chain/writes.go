package chain

import (
	"context"
	"encoding/hex"

	"github.com/RyanW02/chainsocial/pkg/ledger"
	"github.com/RyanW02/chainsocial/pkg/types/rpc"
	"github.com/RyanW02/chainsocial/pkg/types/social"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

func (c *Client) submit(ctx context.Context, signer rpc.Signer, requestType rpc.RequestType, data any) (*ledger.Handle, error) {
	if signer == nil {
		return nil, ledger.ErrNotConnected
	}

	tx, err := rpc.NewBuilder().
		App(social.AppName).
		Data(requestType, data).
		Signed(signer).
		Marshal()
	if err != nil {
		return nil, errors.Wrap(err, "failed to build transaction")
	}

	conn, err := c.pool.Get()
	if err != nil {
		return nil, ledger.NewTransientFetchError(string(requestType), err)
	}

	ctx, cancelFunc := context.WithTimeout(ctx, c.config.QueryTimeout.Duration())
	defer cancelFunc()

	res, err := conn.BroadcastTxSync(ctx, tx)
	if err != nil {
		return nil, ledger.NewTransientFetchError(string(requestType), errors.Wrap(err, "failed to broadcast transaction"))
	}

	if res.Code != social.CodeOk {
		c.logger.Debug(
			"Transaction rejected by CheckTx",
			zap.String("type", string(requestType)),
			zap.String("codespace", res.Codespace),
			zap.Uint32("code", res.Code),
			zap.String("log", res.Log),
		)

		return nil, &ledger.RejectedError{Codespace: res.Codespace, Code: res.Code, Log: res.Log}
	}

	handle := ledger.NewHandle(res.Hash)

	c.trackedMu.Lock()
	c.tracked[hex.EncodeToString(res.Hash)] = handle
	c.startPoller(handle)
	c.trackedMu.Unlock()

	return handle, nil
}

func (c *Client) Register(ctx context.Context, signer rpc.Signer, username, bio string) (*ledger.Handle, error) {
	return c.submit(ctx, signer, social.RequestTypeRegister, social.PayloadRegister{
		Username: username,
		Bio:      bio,
	})
}

func (c *Client) UpdateProfileURI(ctx context.Context, signer rpc.Signer, uri string) (*ledger.Handle, error) {
	return c.submit(ctx, signer, social.RequestTypeUpdateProfileURI, social.PayloadUpdateProfileURI{URI: uri})
}

func (c *Client) CreatePost(ctx context.Context, signer rpc.Signer, content, mediaURI string) (*ledger.Handle, error) {
	return c.submit(ctx, signer, social.RequestTypeCreatePost, social.PayloadCreatePost{
		Content:  content,
		MediaURI: mediaURI,
	})
}

func (c *Client) DeletePost(ctx context.Context, signer rpc.Signer, postId uint64) (*ledger.Handle, error) {
	return c.submit(ctx, signer, social.RequestTypeDeletePost, social.PayloadDeletePost{PostID: postId})
}

func (c *Client) LikePost(ctx context.Context, signer rpc.Signer, key social.PostKey) (*ledger.Handle, error) {
	return c.submit(ctx, signer, social.RequestTypeLikePost, social.PayloadPostReference{
		Owner:  key.Owner,
		PostID: key.PostID,
	})
}

func (c *Client) UnlikePost(ctx context.Context, signer rpc.Signer, key social.PostKey) (*ledger.Handle, error) {
	return c.submit(ctx, signer, social.RequestTypeUnlikePost, social.PayloadPostReference{
		Owner:  key.Owner,
		PostID: key.PostID,
	})
}

func (c *Client) AddComment(ctx context.Context, signer rpc.Signer, key social.PostKey, text string) (*ledger.Handle, error) {
	return c.submit(ctx, signer, social.RequestTypeAddComment, social.PayloadAddComment{
		Owner:   key.Owner,
		PostID:  key.PostID,
		Content: text,
	})
}

func (c *Client) Follow(ctx context.Context, signer rpc.Signer, id social.Identity) (*ledger.Handle, error) {
	return c.submit(ctx, signer, social.RequestTypeFollow, social.PayloadFollowTarget{Target: id})
}

func (c *Client) Unfollow(ctx context.Context, signer rpc.Signer, id social.Identity) (*ledger.Handle, error) {
	return c.submit(ctx, signer, social.RequestTypeUnfollow, social.PayloadFollowTarget{Target: id})
}
