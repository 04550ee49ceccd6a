package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/RyanW02/chainsocial/pkg/ledger"
	"github.com/RyanW02/chainsocial/pkg/media"
	"github.com/RyanW02/chainsocial/pkg/mutation"
	"github.com/RyanW02/chainsocial/pkg/session"
	"github.com/RyanW02/chainsocial/pkg/types/social"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type HttpError struct {
	error
	ResponseCode int
}

var _ error = (*HttpError)(nil)

func NewHttpError(responseCode int, message string) *HttpError {
	return &HttpError{
		error:        errors.New(message),
		ResponseCode: responseCode,
	}
}

func statusCode(err error) int {
	var httpErr *HttpError
	if errors.As(err, &httpErr) {
		return httpErr.ResponseCode
	}

	switch {
	case errors.Is(err, ledger.ErrNotConnected):
		return http.StatusUnauthorized
	case errors.Is(err, ledger.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, mutation.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, mutation.ErrValidation),
		errors.Is(err, social.ErrInvalidPostKey),
		errors.Is(err, media.ErrInvalidMedia),
		errors.Is(err, session.ErrInvalidKey):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrRejected):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ledger.ErrTransientFetch),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, mutation.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(c *gin.Context, err error) {
	code := statusCode(err)
	if code >= http.StatusInternalServerError {
		s.logger.Error("Request failed", zap.Error(err), zap.String("path", c.FullPath()), zap.Int("status", code))
	} else {
		s.logger.Debug("Request rejected", zap.Error(err), zap.String("path", c.FullPath()), zap.Int("status", code))
	}

	c.JSON(code, gin.H{"error": err.Error()})
}
