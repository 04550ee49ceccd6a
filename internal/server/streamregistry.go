package server

import (
	"sync"

	"github.com/RyanW02/chainsocial/pkg/broadcast"
	"go.uber.org/zap"
)

// streamRegistry tracks open streams so that they can be closed on shutdown.
type streamRegistry struct {
	logger     *zap.Logger
	clients    map[*streamClient]struct{} // Use a hashset, as order does not matter
	mu         sync.RWMutex
	shutdownCh chan chan error
}

func newStreamRegistry(logger *zap.Logger, shutdownOrchestrator *broadcast.ErrorWaitChannel) *streamRegistry {
	return &streamRegistry{
		logger:     logger,
		clients:    make(map[*streamClient]struct{}),
		shutdownCh: shutdownOrchestrator.Subscribe(),
	}
}

func (r *streamRegistry) Register(client *streamClient) {
	r.mu.Lock()
	r.clients[client] = struct{}{}
	r.mu.Unlock()
}

func (r *streamRegistry) Unregister(client *streamClient) {
	r.mu.Lock()
	delete(r.clients, client)
	r.mu.Unlock()
}

func (r *streamRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

func (r *streamRegistry) StartLoop() {
	errCh := <-r.shutdownCh

	r.mu.RLock()
	clients := make([]*streamClient, 0, len(r.clients))
	for client := range r.clients {
		clients = append(clients, client)
	}
	r.mu.RUnlock()

	// Close takes the lock to unregister itself
	for _, client := range clients {
		client.Close()
	}

	r.logger.Debug("Closed streams", zap.Int("count", len(clients)))
	errCh <- nil
}
