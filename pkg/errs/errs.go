package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCredential is returned for a malformed address or private key string.
	ErrInvalidCredential = errors.New("invalid credential")

	// ErrInvalidAmount is returned for a non-positive or non-numeric amount.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrNetwork is returned when the RPC endpoint is unreachable or a call fails in transport.
	ErrNetwork = errors.New("network error")

	// ErrValidationMismatch is returned when a funding address does not belong to the supplied key.
	ErrValidationMismatch = errors.New("funding address does not match private key")

	// ErrTransferFailure marks a single failed transfer. It never aborts a run.
	ErrTransferFailure = errors.New("transfer failed")

	// ErrIO is returned for file read/write failures.
	ErrIO = errors.New("i/o error")

	// ErrNotConnected is returned when a chain call is made before Connect.
	ErrNotConnected = errors.New("not connected to network")

	// ErrBusy is returned when an operation of the same kind is already running.
	ErrBusy = errors.New("operation already running")
)

// Wrap tags err with kind so that errors.Is matches both kind and the underlying cause.
func Wrap(kind, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, kind) {
		return err
	}
	return fmt.Errorf("%w: %w", kind, err)
}
