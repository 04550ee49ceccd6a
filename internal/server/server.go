package server

import (
	"context"
	"net/http"
	"time"

	"github.com/RyanW02/chainsocial/internal/config"
	"github.com/RyanW02/chainsocial/pkg/broadcast"
	"github.com/RyanW02/chainsocial/pkg/socialclient"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// requestTimeout bounds the reads of a single request. Aggregations issue many ledger reads, so it is well above the
// per-read timeout.
const requestTimeout = time.Second * 30

// Server is the local gateway a UI talks to. It serves a single user: whichever session was last connected.
type Server struct {
	config  config.Config
	logger  *zap.Logger
	client  *socialclient.Client
	streams *streamRegistry

	router *gin.Engine
}

func NewServer(
	cfg config.Config,
	logger *zap.Logger,
	client *socialclient.Client,
	shutdownOrchestrator *broadcast.ErrorWaitChannel,
) *Server {
	if cfg.Production {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		config:  cfg,
		logger:  logger,
		client:  client,
		streams: newStreamRegistry(logger, shutdownOrchestrator),

		router: gin.New(),
	}

	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	_ = s.router.SetTrustedProxies(nil)

	s.router.Use(gin.Recovery())
	if !s.config.Production {
		s.router.Use(gin.Logger())
	}

	// The gateway only listens locally and holds no cookies, so any origin may call it
	s.router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PUT", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:    []string{"Content-Type"},
		AllowWebSockets: true,
	}))

	s.router.GET("/status", s.statusHandler)
	s.router.POST("/session", s.connectHandler)
	s.router.DELETE("/session", s.disconnectHandler)
	s.router.GET("/stream", s.streamHandler)

	s.router.GET("/feed", s.feedHandler)
	s.router.GET("/users", s.discoverHandler)
	s.router.GET("/profiles/:id", s.profileHandler)

	s.router.POST("/posts", s.createPostHandler)
	postsGroup := s.router.Group("/posts/:owner/:post_id")
	postsGroup.DELETE("", s.deletePostHandler)
	postsGroup.GET("/comments", s.commentsHandler)
	postsGroup.POST("/comments", s.commentHandler)
	postsGroup.GET("/likers", s.likersHandler)
	postsGroup.POST("/like", s.likeHandler)
	postsGroup.DELETE("/like", s.unlikeHandler)

	s.router.POST("/follows/:id", s.followHandler)
	s.router.DELETE("/follows/:id", s.unfollowHandler)
	s.router.PUT("/profile/avatar", s.updateAvatarHandler)
	s.router.POST("/register", s.registerHandler)

	s.registerFrontend()
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Run() error {
	go s.streams.StartLoop()

	s.logger.Info("Starting gateway server", zap.String("address", s.config.Gateway.Address))
	return s.router.Run(s.config.Gateway.Address)
}

// requestContext is cancelled if the caller goes away, so that reads for a view nobody is waiting for are abandoned.
func requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), requestTimeout)
}
