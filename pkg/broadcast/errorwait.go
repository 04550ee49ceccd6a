package broadcast

import (
	"errors"
	"time"
)

// ErrorWaitChannel orchestrates shutdown: each long-running goroutine subscribes, and on shutdown replies with the
// error (or nil) it stopped with.
type ErrorWaitChannel struct {
	wc *WaitBroadcastChannel[error]
}

var ErrShutdownTimeout = errors.New("timed out waiting for shutdown")

func NewErrorWaitChannel() *ErrorWaitChannel {
	return &ErrorWaitChannel{
		wc: NewWaitBroadcastChannel[error](),
	}
}

func (e *ErrorWaitChannel) Subscribe() chan chan error {
	return e.wc.Subscribe()
}

func (e *ErrorWaitChannel) Await(timeout time.Duration) error {
	errs, timedOut := e.wc.PublishAndWait(timeout)
	if timedOut {
		errs = append(errs, ErrShutdownTimeout)
	}

	return errors.Join(errs...)
}
