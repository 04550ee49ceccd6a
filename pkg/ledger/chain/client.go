package chain

import (
	"context"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/RyanW02/chainsocial/internal/config"
	"github.com/RyanW02/chainsocial/pkg/ledger"
	"github.com/RyanW02/chainsocial/pkg/pool"
	"github.com/RyanW02/chainsocial/pkg/types/rpc"
	"github.com/RyanW02/chainsocial/pkg/types/social"
	cmtbytes "github.com/cometbft/cometbft/libs/bytes"
	"github.com/cometbft/cometbft/libs/service"
	rpcclient "github.com/cometbft/cometbft/rpc/client"
	"github.com/cometbft/cometbft/rpc/client/http"
	coretypes "github.com/cometbft/cometbft/rpc/core/types"
	"github.com/cometbft/cometbft/types"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Node is the subset of the CometBFT RPC client used by the ledger. *http.HTTP satisfies it.
type Node interface {
	ABCIInfo(ctx context.Context) (*coretypes.ResultABCIInfo, error)
	ABCIQueryWithOptions(ctx context.Context, path string, data cmtbytes.HexBytes, opts rpcclient.ABCIQueryOptions) (*coretypes.ResultABCIQuery, error)
	BroadcastTxSync(ctx context.Context, tx types.Tx) (*coretypes.ResultBroadcastTx, error)
	Tx(ctx context.Context, hash []byte, prove bool) (*coretypes.ResultTx, error)
	Remote() string
}

// Client is a ledger.Ledger backed by the social app running on a set of CometBFT nodes. Requests are spread
// across the nodes round-robin, skipping nodes that fail their liveness check.
type Client struct {
	config config.Ledger
	logger *zap.Logger
	pool   *pool.Pool[Node]

	queryData []byte

	// Pollers outlive the request that submitted the write, so they hang off the client's own context.
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	trackedMu sync.Mutex
	tracked   map[string]*ledger.Handle
}

var _ ledger.Ledger = (*Client)(nil)

var (
	ErrNotEnoughNodes = errors.New("not enough nodes to satisfy minimum nodes requirement")

	ABCIQueryOptions = rpcclient.ABCIQueryOptions{
		Height: 0,
		Prove:  false,
	}
)

// Dial creates an RPC client for each configured node address.
func Dial(cfg config.Ledger, logger *zap.Logger) (*Client, error) {
	var nodes []Node
	for _, nodeAddress := range cfg.NodeAddresses {
		client, err := http.New(nodeAddress, "/websocket")
		if err != nil {
			logger.Error("Failed to create blockchain client", zap.Error(err), zap.String("node_address", nodeAddress))
			continue
		}

		nodes = append(nodes, client)
	}

	if len(nodes) < cfg.MinimumNodes || len(nodes) == 0 {
		return nil, fmt.Errorf("%w, expected: %d, actual: %d", ErrNotEnoughNodes, cfg.MinimumNodes, len(nodes))
	}

	return NewClient(cfg, logger, nodes), nil
}

func NewClient(cfg config.Ledger, logger *zap.Logger, nodes []Node) *Client {
	queryData, err := rpc.NewQuery(social.AppName)
	if err != nil {
		panic(err) // Marshalling a struct with a string field cannot fail
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		config:    cfg,
		logger:    logger,
		queryData: queryData,
		ctx:       ctx,
		cancel:    cancel,
		tracked:   make(map[string]*ledger.Handle),
		pool: pool.NewPool[Node](nodes, pool.PoolConfig[Node]{
			LivenessValidThreshold: 10 * time.Second,
			DeadConnCheckInterval:  15 * time.Second,
			TestFunc: func(n Node) bool {
				ctx, cancelFunc := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancelFunc()

				_, err := n.ABCIInfo(ctx)
				return err == nil
			},
			DestructorFunc: func(n Node) error {
				stoppable, ok := n.(interface{ Stop() error })
				if !ok {
					return nil
				}

				// The websocket event client is only started when subscribing, which we never do
				if err := stoppable.Stop(); err != nil && !errors.Is(err, service.ErrNotStarted) {
					return err
				}

				return nil
			},
		}),
	}
}

// Nodes returns the number of live and dead nodes in the pool.
func (c *Client) Nodes() (live, dead int) {
	return c.pool.Size()
}

// Close stops all pollers, leaving their handles pending, and closes the node connections.
func (c *Client) Close() error {
	c.cancel()
	c.wg.Wait()
	return c.pool.Close()
}

func (c *Client) Track(txHash []byte) *ledger.Handle {
	key := hex.EncodeToString(txHash)

	c.trackedMu.Lock()
	defer c.trackedMu.Unlock()

	if handle, ok := c.tracked[key]; ok {
		return handle
	}

	handle := ledger.NewHandle(txHash)
	c.tracked[key] = handle
	c.startPoller(handle)

	return handle
}
