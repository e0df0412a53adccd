package transport

import (
	"errors"
	"net"
	"os"
)

// timeoutError signals that a call exceeded its configured deadline.
type timeoutError struct{ endpoint string }

func (e timeoutError) Error() string { return "call timed out: " + e.endpoint }
func (e timeoutError) Timeout() bool { return true }

// ErrTimeout constructs a timeoutError for the given endpoint.
func ErrTimeout(endpoint string) error { return timeoutError{endpoint: endpoint} }

// IsTimeout reports whether err indicates a deadline overrun, either our own
// timeoutError or a network-level timeout.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	var te timeoutError
	if errors.As(err, &te) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return errors.Is(err, os.ErrDeadlineExceeded)
}

// remoteError carries an error string returned by the peer in a reply frame.
type remoteError struct{ msg string }

func (e remoteError) Error() string { return "remote: " + e.msg }

// IsRemote reports whether err was produced by the peer rather than the
// local transport.
func IsRemote(err error) bool {
	var re remoteError
	return errors.As(err, &re)
}
