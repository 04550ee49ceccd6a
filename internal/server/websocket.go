package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	HandshakeTimeout: time.Second * 5,
	ReadBufferSize:   1024,
	WriteBufferSize:  1024,
	Error: func(w http.ResponseWriter, r *http.Request, status int, reason error) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(status)

		marshalled, err := json.Marshal(gin.H{"error": reason.Error()})
		if err != nil {
			return
		}

		_, _ = w.Write(marshalled)
	},
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins
		return true
	},
	EnableCompression: true,
}

// streamHandler streams store changes of the active session. The stream ends when the session does.
func (s *Server) streamHandler(c *gin.Context) {
	active, err := s.client.Active()
	if err != nil {
		s.writeError(c, err)
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Error("failed to upgrade websocket connection", zap.Error(err))
		return
	}

	client := s.newStreamClient(ws, active)
	client.Configure()

	s.streams.Register(client)

	go client.StartReadLoop()
	go client.StartWriteLoop()
}
