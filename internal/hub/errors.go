package hub

import "errors"

// unknownProviderError signals a teleop/infer target absent from the
// registry. The current mode is left unchanged.
type unknownProviderError struct{ name string }

func (e unknownProviderError) Error() string { return "unknown provider: " + e.name }

// ErrUnknownProvider constructs an unknownProviderError.
func ErrUnknownProvider(name string) error { return unknownProviderError{name: name} }

// IsUnknownProvider reports whether err names a provider missing from the
// registry.
func IsUnknownProvider(err error) bool {
	var e unknownProviderError
	return errors.As(err, &e)
}

// providerUnreachableError signals a failed connect or liveness check. The
// current mode is left unchanged.
type providerUnreachableError struct {
	name  string
	cause error
}

func (e providerUnreachableError) Error() string {
	return "provider unreachable: " + e.name + ": " + e.cause.Error()
}
func (e providerUnreachableError) Unwrap() error { return e.cause }

// ErrProviderUnreachable constructs a providerUnreachableError.
func ErrProviderUnreachable(name string, cause error) error {
	return providerUnreachableError{name: name, cause: cause}
}

// IsProviderUnreachable reports whether err indicates a connect/ping failure.
func IsProviderUnreachable(err error) bool {
	var e providerUnreachableError
	return errors.As(err, &e)
}

// malformedCommandError signals an undecodable request. No mode change.
type malformedCommandError struct{ msg string }

func (e malformedCommandError) Error() string { return "malformed command: " + e.msg }

// ErrMalformedCommand constructs a malformedCommandError.
func ErrMalformedCommand(msg string) error { return malformedCommandError{msg: msg} }

// IsMalformedCommand reports whether err indicates an undecodable request.
func IsMalformedCommand(err error) bool {
	var e malformedCommandError
	return errors.As(err, &e)
}

// ErrShuttingDown is returned for commands that arrive after shutdown began.
var ErrShuttingDown = errors.New("hub is shutting down")
