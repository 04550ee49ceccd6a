package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/RyanW02/chainsocial/pkg/session"
	"github.com/gin-gonic/gin"
)

type connectRequest struct {
	KeyFile  string `json:"key_file"`
	Generate bool   `json:"generate"`
}

func (s *Server) statusHandler(c *gin.Context) {
	active, err := s.client.Active()
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "connected": false})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"connected": true,
		"identity":  active.Session.Identity(),
		"in_flight": len(active.Mutations.InFlight()),
	})
}

func (s *Server) connectHandler(c *gin.Context) {
	var req connectRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	keyFile := req.KeyFile
	if keyFile == "" {
		keyFile = s.config.Client.KeyFile
	}

	key, created, err := session.LoadOrGenerateKey(keyFile, req.Generate)
	if err != nil {
		s.writeError(c, NewHttpError(http.StatusBadRequest, "failed to load key file: "+err.Error()))
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	active, err := s.client.Connect(ctx, key)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"identity":    active.Session.Identity(),
		"key_created": created,
		"resumed":     len(active.Mutations.InFlight()),
	})
}

func (s *Server) disconnectHandler(c *gin.Context) {
	s.client.Disconnect()
	c.Status(http.StatusNoContent)
}
