package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/RyanW02/chainsocial/pkg/mutation"
	"github.com/RyanW02/chainsocial/pkg/socialclient"
	"github.com/RyanW02/chainsocial/pkg/types/social"
	"github.com/gin-gonic/gin"
)

type mutationResponse struct {
	Seq    uint64 `json:"seq"`
	Kind   string `json:"kind"`
	Key    string `json:"key"`
	State  string `json:"state"`
	TxHash string `json:"tx_hash"`
}

type commentRequest struct {
	Text string `json:"text"`
}

type createPostRequest struct {
	Content string `json:"content"`
	Media   string `json:"media"`
}

type avatarRequest struct {
	Avatar string `json:"avatar"`
}

type registerRequest struct {
	Username string `json:"username"`
	Bio      string `json:"bio"`
}

func newMutationResponse(p *mutation.Pending) mutationResponse {
	return mutationResponse{
		Seq:    p.Seq,
		Kind:   string(p.Kind),
		Key:    p.Key.String(),
		State:  p.State().String(),
		TxHash: p.TxHash(),
	}
}

// submit runs a mutation against the active session. The response is sent as soon as the write is submitted, unless
// the wait query parameter is set, in which case it is sent once the mutation resolves.
func (s *Server) submit(c *gin.Context, intent mutation.Intent) {
	active, err := s.client.Active()
	if err != nil {
		s.writeError(c, err)
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	p, err := active.Mutations.Submit(ctx, active.Session, intent)
	if err != nil {
		s.writeError(c, err)
		return
	}

	if c.Query("wait") != "true" {
		c.JSON(http.StatusAccepted, newMutationResponse(p))
		return
	}

	s.awaitResolution(c, active, p)
}

func (s *Server) awaitResolution(c *gin.Context, active *socialclient.Active, p *mutation.Pending) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), s.config.Ledger.ConfirmationTimeout.Duration()+requestTimeout)
	defer cancel()

	if err := p.Wait(ctx); err != nil {
		// Still pending, the caller can follow it on the stream
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			c.JSON(http.StatusAccepted, newMutationResponse(p))
			return
		}

		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, newMutationResponse(p))
}

func (s *Server) postIntent(c *gin.Context, kind mutation.Kind) (mutation.Intent, bool) {
	key, err := postKeyParam(c)
	if err != nil {
		s.writeError(c, err)
		return mutation.Intent{}, false
	}

	return mutation.Intent{Kind: kind, Post: key}, true
}

func (s *Server) likeHandler(c *gin.Context) {
	if intent, ok := s.postIntent(c, mutation.KindLike); ok {
		s.submit(c, intent)
	}
}

func (s *Server) unlikeHandler(c *gin.Context) {
	if intent, ok := s.postIntent(c, mutation.KindUnlike); ok {
		s.submit(c, intent)
	}
}

func (s *Server) deletePostHandler(c *gin.Context) {
	if intent, ok := s.postIntent(c, mutation.KindDeletePost); ok {
		s.submit(c, intent)
	}
}

func (s *Server) commentHandler(c *gin.Context) {
	intent, ok := s.postIntent(c, mutation.KindComment)
	if !ok {
		return
	}

	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	intent.Text = req.Text
	s.submit(c, intent)
}

func (s *Server) createPostHandler(c *gin.Context) {
	var req createPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.submit(c, mutation.Intent{Kind: mutation.KindCreatePost, Text: req.Content, Extra: req.Media})
}

func (s *Server) followHandler(c *gin.Context) {
	s.submit(c, mutation.Intent{Kind: mutation.KindFollow, Target: social.NewIdentity(c.Param("id"))})
}

func (s *Server) unfollowHandler(c *gin.Context) {
	s.submit(c, mutation.Intent{Kind: mutation.KindUnfollow, Target: social.NewIdentity(c.Param("id"))})
}

func (s *Server) updateAvatarHandler(c *gin.Context) {
	var req avatarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.submit(c, mutation.Intent{Kind: mutation.KindUpdateProfile, Extra: req.Avatar})
}

func (s *Server) registerHandler(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.submit(c, mutation.Intent{Kind: mutation.KindRegister, Text: req.Username, Extra: req.Bio})
}
