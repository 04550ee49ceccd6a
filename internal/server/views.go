package server

import (
	"net/http"
	"strconv"

	"github.com/RyanW02/chainsocial/pkg/types/social"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
)

func postKeyParam(c *gin.Context) (social.PostKey, error) {
	owner := social.NewIdentity(c.Param("owner"))
	if owner.IsZero() {
		return social.PostKey{}, errors.Wrap(social.ErrInvalidPostKey, "missing owner")
	}

	postId, err := strconv.ParseUint(c.Param("post_id"), 10, 64)
	if err != nil {
		return social.PostKey{}, errors.Wrapf(social.ErrInvalidPostKey, "post id %q", c.Param("post_id"))
	}

	return social.NewPostKey(owner, postId), nil
}

func (s *Server) feedHandler(c *gin.Context) {
	active, err := s.client.Active()
	if err != nil {
		s.writeError(c, err)
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	feed, err := active.Feed.Build(ctx, active.Session)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, feed)
}

func (s *Server) discoverHandler(c *gin.Context) {
	active, err := s.client.Active()
	if err != nil {
		s.writeError(c, err)
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	directory, err := active.Feed.Discover(ctx, active.Session)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, directory)
}

func (s *Server) profileHandler(c *gin.Context) {
	active, err := s.client.Active()
	if err != nil {
		s.writeError(c, err)
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	page, err := active.Feed.ProfilePage(ctx, active.Session, social.NewIdentity(c.Param("id")))
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, page)
}

func (s *Server) commentsHandler(c *gin.Context) {
	key, err := postKeyParam(c)
	if err != nil {
		s.writeError(c, err)
		return
	}

	active, err := s.client.Active()
	if err != nil {
		s.writeError(c, err)
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	thread, err := active.Feed.Comments(ctx, active.Session, key)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, thread)
}

func (s *Server) likersHandler(c *gin.Context) {
	key, err := postKeyParam(c)
	if err != nil {
		s.writeError(c, err)
		return
	}

	active, err := s.client.Active()
	if err != nil {
		s.writeError(c, err)
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	likers, err := active.Feed.Likers(ctx, active.Session, key)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"post": key, "likers": likers})
}
