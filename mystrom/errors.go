package mystrom

import (
	"errors"
	"fmt"
	"net"
)

var (
	// ErrClosed is returned by requests on a Session that has been closed.
	ErrClosed = errors.New("mystrom: session closed")

	// ErrUnsupported indicates the device firmware does not offer an operation.
	ErrUnsupported = errors.New("mystrom: operation not supported by device")

	// ErrInvalidColor is returned for color arguments outside what the bulb accepts.
	ErrInvalidColor = errors.New("mystrom: invalid color")

	// ErrNotInReport is returned when a bulb report has no entry for the bulb's MAC.
	ErrNotInReport = errors.New("mystrom: device missing from report")
)

// ConnectionError reports that a device could not be reached,
// or that it answered 404 (wrong endpoint or credentials).
type ConnectionError struct {
	Host   string
	Reason string // "timeout", "cancelled", "communication failure", "not found", ...
	Err    error
}

func (e *ConnectionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("mystrom: %s: %s: %v", e.Host, e.Reason, e.Err)
	}
	return fmt.Sprintf("mystrom: %s: %s", e.Host, e.Reason)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// Timeout reports whether the failure was a request timeout.
func (e *ConnectionError) Timeout() bool { return e.Reason == reasonTimeout }

// ProtocolError is a non-2xx response other than 404.
// JSON holds the decoded body if the device sent JSON.
type ProtocolError struct {
	StatusCode int
	Body       []byte
	JSON       interface{}
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("mystrom: unexpected status code %d: %q", e.StatusCode, truncate(e.Body, 128))
}

// UnsupportedError reports an operation the device firmware does not expose.
type UnsupportedError struct {
	Op string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("mystrom: %s not supported by device firmware", e.Op)
}

func (e *UnsupportedError) Unwrap() error { return ErrUnsupported }

// MalformedFrameError is an announcement datagram that is not 8 bytes long.
type MalformedFrameError struct {
	Addr net.Addr
	Data []byte
}

func (e *MalformedFrameError) Error() string {
	return fmt.Sprintf("mystrom: malformed announcement from %v: got %d bytes, want %d", e.Addr, len(e.Data), announcementLen)
}

const (
	reasonTimeout   = "timeout"
	reasonCancelled = "cancelled"
	reasonComm      = "communication failure"
	reasonNotFound  = "not found"
)

func truncate(b []byte, n int) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}
