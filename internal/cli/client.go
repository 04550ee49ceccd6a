// Package cli is the interactive terminal front end over a socialclient.Client.
package cli

import (
	"context"
	"time"

	"github.com/RyanW02/chainsocial/internal/config"
	"github.com/RyanW02/chainsocial/pkg/mutation"
	"github.com/RyanW02/chainsocial/pkg/socialclient"
	"go.uber.org/zap"
)

const readTimeout = time.Second * 15

type Client struct {
	Config config.Config
	Logger *zap.Logger
	Social *socialclient.Client
}

func (c *Client) readContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), readTimeout)
}

// await waits for a submitted mutation to resolve and displays the outcome. Giving up on the wait leaves the
// mutation running in the background.
func (c *Client) await(p *mutation.Pending) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.Config.Ledger.ConfirmationTimeout.Duration()+readTimeout)
	defer cancel()

	err := p.Wait(ctx)
	return displayResult(p, err)
}

// submit waits on a mutation the coordinator accepted. Errors from Submit itself (validation, conflicts, no slot)
// are returned to the menu loop for display.
func (c *Client) submit(p *mutation.Pending, err error) error {
	if err != nil {
		return err
	}

	return c.await(p)
}
