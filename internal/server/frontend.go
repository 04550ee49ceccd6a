package server

import (
	"net/http"
	"os"
	"path"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// registerFrontend serves the frontend build for any GET that no API route matched. Paths that are not files in
// the build fall through to the index file so that client side routing works.
func (s *Server) registerFrontend() {
	root := s.config.Gateway.FrontendPath
	if root == "" {
		return
	}

	s.logger.Info("Serving frontend", zap.String("path", root))

	s.router.NoRoute(func(c *gin.Context) {
		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}

		file := filepath.Join(root, filepath.FromSlash(path.Clean("/"+c.Request.URL.Path)))
		if info, err := os.Stat(file); err == nil && !info.IsDir() {
			c.File(file)
			return
		}

		c.File(filepath.Join(root, s.config.Gateway.IndexFile))
	})
}
