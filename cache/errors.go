package cache

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
)

var (
	// ErrDisabled indicates the manager was constructed in disabled mode.
	ErrDisabled = errors.New("cache disabled by configuration")

	// ErrCircuitOpen indicates the circuit breaker is blocking calls.
	ErrCircuitOpen = errors.New("circuit breaker open")

	// ErrNoTransport indicates no live transport handle is installed.
	ErrNoTransport = errors.New("no transport available")
)

// errorKind classifies a transport failure. Transient failures keep the
// transport handle for a later retry; connection-lost failures discard it
// and hand recovery over to the reconnect loop.
type errorKind int

const (
	errKindTransient errorKind = iota
	errKindConnectionLost
)

func (k errorKind) String() string {
	if k == errKindConnectionLost {
		return "connection_lost"
	}
	return "transient"
}

// connectionLostPatterns mark the transport handle as dead. Auth failures
// count as dead too: retrying on the same handle cannot succeed.
var connectionLostPatterns = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"use of closed network connection",
	"client is closed",
	"no route to host",
	"network is unreachable",
	"noauth",
	"wrongpass",
	"invalid password",
	"authentication required",
}

// transientPatterns cover failures worth retrying on the existing handle,
// including the server-side busy states Redis reports while it recovers.
var transientPatterns = []string{
	"i/o timeout",
	"timeout",
	"loading",
	"busy",
	"tryagain",
	"readonly",
	"clusterdown",
}

// classifyError sorts a transport error into the transient or
// connection-lost bucket. Unknown errors are treated as transient so a
// healthy handle is never discarded on a one-off failure.
func classifyError(err error) errorKind {
	if err == nil {
		return errKindTransient
	}

	if errors.Is(err, io.EOF) {
		return errKindConnectionLost
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errKindTransient
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return errKindTransient
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range connectionLostPatterns {
		if strings.Contains(msg, pattern) {
			return errKindConnectionLost
		}
	}
	for _, pattern := range transientPatterns {
		if strings.Contains(msg, pattern) {
			return errKindTransient
		}
	}

	return errKindTransient
}

// isConnectionLost reports whether err means the current handle is dead.
func isConnectionLost(err error) bool {
	return err != nil && classifyError(err) == errKindConnectionLost
}
