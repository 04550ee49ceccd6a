package server

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/RyanW02/chainsocial/pkg/interaction"
	"github.com/RyanW02/chainsocial/pkg/socialclient"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type streamClient struct {
	ws       *websocket.Conn
	server   *Server
	identity string
	changes  <-chan interaction.Change

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

type websocketMessage struct {
	Type    websocketMessageType `json:"type"`
	Payload json.RawMessage      `json:"data,omitempty"`
}

type websocketMessageType string

const (
	wsReadLimit         = 4 * 1024
	wsWriteTimeout      = time.Second * 10
	wsKeepaliveInterval = time.Second * 30
	wsKeepaliveTimeout  = time.Second * 40

	wsMessageTypeHello        websocketMessageType = "hello"
	wsMessageTypeChange       websocketMessageType = "change"
	wsMessageTypeSessionEnded websocketMessageType = "session_ended"
)

func (s *Server) newStreamClient(ws *websocket.Conn, active *socialclient.Active) *streamClient {
	ctx, cancel := context.WithCancel(active.Session.Context())

	return &streamClient{
		ws:       ws,
		server:   s,
		identity: active.Session.Identity().String(),
		changes:  active.Store.Subscribe(ctx),
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (c *streamClient) Configure() {
	c.ws.SetReadLimit(wsReadLimit)
	_ = c.ws.SetReadDeadline(time.Now().Add(wsKeepaliveTimeout))
	c.ws.SetPongHandler(func(string) error {
		_ = c.ws.SetReadDeadline(time.Now().Add(wsKeepaliveTimeout))
		return nil
	})
}

// Close ends both loops. The change subscription is released with the context.
func (c *streamClient) Close() {
	c.closeOnce.Do(func() {
		c.cancel()
		_ = c.ws.Close()
		c.server.streams.Unregister(c)
	})
}

func (c *streamClient) writeJSON(messageType websocketMessageType, data any) error {
	var payload json.RawMessage
	if data != nil {
		marshalled, err := json.Marshal(data)
		if err != nil {
			return err
		}

		payload = marshalled
	}

	bytes, err := json.Marshal(websocketMessage{Type: messageType, Payload: payload})
	if err != nil {
		return err
	}

	_ = c.ws.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return c.ws.WriteMessage(websocket.TextMessage, bytes)
}

func (c *streamClient) StartWriteLoop() {
	defer c.Close()

	ticker := time.NewTicker(wsKeepaliveInterval)
	defer ticker.Stop()

	if err := c.writeJSON(wsMessageTypeHello, map[string]string{"identity": c.identity}); err != nil {
		c.server.logger.Debug("failed to write hello to websocket", zap.Error(err))
		return
	}

	for {
		select {
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				// Socket likely closed
				c.server.logger.Debug("failed to write ping to websocket", zap.Error(err))
				return
			}
		case change, ok := <-c.changes:
			if !ok {
				// The session was replaced or torn down. If the socket closed instead, this write fails harmlessly
				_ = c.writeJSON(wsMessageTypeSessionEnded, nil)
				return
			}

			if err := c.writeJSON(wsMessageTypeChange, change); err != nil {
				c.server.logger.Debug("failed to write message to websocket", zap.Error(err))
				return
			}
		}
	}
}

// StartReadLoop only consumes control frames: clients have nothing to send.
func (c *streamClient) StartReadLoop() {
	defer c.Close()

	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			var closeError *websocket.CloseError
			if !errors.As(err, &closeError) { // errors.Is comparison does not work for *websocket.CloseError
				c.server.logger.Debug(
					"failed to read message from websocket",
					zap.Error(err),
					zap.Stringer("client", c.ws.RemoteAddr()),
				)
			}

			return
		}
	}
}
