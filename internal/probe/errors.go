package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// ErrUnresolvable marks a port phase that could not run because the target
// never resolved to an IP address.
var ErrUnresolvable = errors.New("target did not resolve to an IP address")

// ConfigurationError aborts a run before any job is scheduled: empty
// wordlist, invalid port spec, unusable catalogue and the like.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Reason
}

// Configf builds a ConfigurationError the way fmt.Errorf would.
func Configf(format string, args ...any) error {
	return &ConfigurationError{Reason: fmt.Sprintf(format, args...)}
}

// ResolutionError wraps a failed hostname resolution. Fatal for port
// scanning, advisory for path and platform probing when an explicit URL was
// supplied.
type ResolutionError struct {
	Host string
	Err  error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolving %s: %v", e.Host, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// ProtocolError records a malformed or nonsensical response. Not retried.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return "protocol error: " + e.Reason
}

// IsTransient reports whether err is a network condition expected to clear
// on retry: connection refused or reset, a timeout, or a temporary DNS
// failure. Anything else, including nil, is not transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && (dnsErr.IsTemporary || dnsErr.IsTimeout) {
		return true
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.ECONNREFUSED, syscall.ECONNRESET, syscall.EPIPE:
			return true
		}
	}
	// Wrapped errors from http transports sometimes lose the errno chain.
	msg := err.Error()
	return strings.Contains(msg, "connection refused") || strings.Contains(msg, "connection reset")
}

// StatusFromErr maps an attempt error to the outcome status the scheduler
// expects: timeouts to StatusTimeout, transient conditions to StatusFailure,
// everything else to StatusError.
func StatusFromErr(err error) Status {
	if err == nil {
		return StatusSuccess
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return StatusTimeout
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return StatusTimeout
	}
	if IsTransient(err) {
		return StatusFailure
	}
	return StatusError
}
