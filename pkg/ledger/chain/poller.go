package chain

import (
	"context"
	"encoding/hex"
	"strings"
	"time"

	"github.com/RyanW02/chainsocial/pkg/ledger"
	"github.com/RyanW02/chainsocial/pkg/types/social"
	rpctypes "github.com/cometbft/cometbft/rpc/jsonrpc/types"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// startPoller must be called with trackedMu held.
func (c *Client) startPoller(handle *ledger.Handle) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.poll(handle)

		c.trackedMu.Lock()
		delete(c.tracked, handle.TxHashString())
		c.trackedMu.Unlock()
	}()
}

func (c *Client) poll(handle *ledger.Handle) {
	logger := c.logger.With(zap.String("tx_hash", handle.TxHashString()))

	ctx, cancelFunc := context.WithTimeout(c.ctx, c.config.ConfirmationTimeout.Duration())
	defer cancelFunc()

	ticker := time.NewTicker(c.config.PollInterval.Duration())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if c.ctx.Err() != nil {
				logger.Debug("Client closed, leaving transaction unresolved")
				return
			}

			logger.Warn("Transaction was not included before the confirmation timeout")
			handle.Resolve(ledger.ErrDropped)
			return
		case <-ticker.C:
			resolved, err := c.checkTx(ctx, handle.TxHash())
			if !resolved {
				if err != nil {
					logger.Debug("Failed to poll transaction, retrying", zap.Error(err))
				}

				continue
			}

			if err != nil {
				logger.Debug("Transaction failed", zap.Error(err))
			}

			handle.Resolve(err)
			return
		}
	}
}

// checkTx reports whether the transaction has been included in a block, and if so, the error it resolved to.
func (c *Client) checkTx(ctx context.Context, txHash []byte) (bool, error) {
	conn, err := c.pool.Get()
	if err != nil {
		return false, err
	}

	ctx, cancelFunc := context.WithTimeout(ctx, c.config.QueryTimeout.Duration())
	defer cancelFunc()

	res, err := conn.Tx(ctx, txHash, false)
	if err != nil {
		var rpcError *rpctypes.RPCError
		if errors.As(err, &rpcError) && strings.Contains(rpcError.Data, "not found") {
			return false, nil
		}

		return false, errors.Wrapf(err, "tx %s", hex.EncodeToString(txHash))
	}

	if res.TxResult.Code != social.CodeOk {
		return true, &ledger.RejectedError{
			Codespace: res.TxResult.Codespace,
			Code:      res.TxResult.Code,
			Log:       res.TxResult.Log,
		}
	}

	return true, nil
}
