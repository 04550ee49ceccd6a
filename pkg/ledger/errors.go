package ledger

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrNotConnected is returned when an operation needs a session and there is none, or it has been torn down.
	ErrNotConnected = errors.New("no active session")
	// ErrNotFound is returned when a profile or post does not exist on the ledger.
	ErrNotFound = errors.New("not found on ledger")
	// ErrRejected is matched by every *RejectedError.
	ErrRejected = errors.New("write rejected by ledger")
	// ErrTransientFetch is matched by every *TransientFetchError.
	ErrTransientFetch = errors.New("ledger read failed")
	// ErrDropped is the failure a write resolves to when it is never included in a block.
	ErrDropped = &RejectedError{Log: "transaction was not included before the confirmation timeout"}
)

// RejectedError is the failure of a write: rejected by CheckTx, reverted during execution, or dropped.
type RejectedError struct {
	Codespace string
	Code      uint32
	Log       string
}

var _ error = (*RejectedError)(nil)

func (e *RejectedError) Error() string {
	if e.Codespace == "" {
		return fmt.Sprintf("%s: %s", ErrRejected, e.Log)
	}

	return fmt.Sprintf("%s, code: %s:%d, log: %s", ErrRejected, e.Codespace, e.Code, e.Log)
}

func (e *RejectedError) Is(target error) bool {
	return target == ErrRejected
}

// TransientFetchError wraps a read failure, typically a network error or an unexpected response code.
type TransientFetchError struct {
	Op  string
	Err error
}

var _ error = (*TransientFetchError)(nil)

func NewTransientFetchError(op string, err error) *TransientFetchError {
	return &TransientFetchError{Op: op, Err: err}
}

func (e *TransientFetchError) Error() string {
	return fmt.Sprintf("%s (%s): %v", ErrTransientFetch, e.Op, e.Err)
}

func (e *TransientFetchError) Is(target error) bool {
	return target == ErrTransientFetch
}

func (e *TransientFetchError) Unwrap() error {
	return e.Err
}
