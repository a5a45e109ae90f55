// Package netutil carries the OS-socket bring-up details spec.md treats
// as boilerplate: TCP_NODELAY, generous socket buffers for the peer ring
// links, and the bounded-retry accept loop the lobby uses while waiting
// for all workers to join.
package netutil

import (
	"fmt"
	"net"
	"time"
)

// ServerPort is the master's well-known listening port.
const ServerPort = 2828

// BaseNeighbourPort is the base for worker i's left-neighbor listening
// port (base_port + i).
const BaseNeighbourPort = 2929

// PeerSocketBuffer is a large fixed bandwidth-delay-product buffer size
// applied to ring peer connections, adequate for saturating a LAN round
// trip per spec.md §4.4.
const PeerSocketBuffer = 4 << 20 // 4 MiB

// TuneForPeerLink disables Nagle's algorithm and raises the socket
// buffers on a ring peer connection.
func TuneForPeerLink(conn net.Conn) error {
	tc, ok := conn.(*net.TCPConn)
	if !ok {
		return nil
	}
	if err := tc.SetNoDelay(true); err != nil {
		return fmt.Errorf("set TCP_NODELAY: %w", err)
	}
	if err := tc.SetReadBuffer(PeerSocketBuffer); err != nil {
		return fmt.Errorf("set read buffer: %w", err)
	}
	if err := tc.SetWriteBuffer(PeerSocketBuffer); err != nil {
		return fmt.Errorf("set write buffer: %w", err)
	}
	return nil
}

// TuneForControlLink disables Nagle's algorithm on a master<->worker
// control connection.
func TuneForControlLink(conn net.Conn) error {
	tc, ok := conn.(*net.TCPConn)
	if !ok {
		return nil
	}
	if err := tc.SetNoDelay(true); err != nil {
		return fmt.Errorf("set TCP_NODELAY: %w", err)
	}
	return nil
}

// AcceptRetryInterval is the sleep between non-blocking accept attempts
// during lobby bring-up (spec.md §5).
const AcceptRetryInterval = 100 * time.Millisecond

// AcceptWithDeadlineRetry accepts one connection from ln, retrying on
// timeout every AcceptRetryInterval until stop is closed or a non-timeout
// error occurs. ln must support SetDeadline (e.g. *net.TCPListener).
func AcceptWithDeadlineRetry(ln *net.TCPListener, stop <-chan struct{}) (net.Conn, error) {
	for {
		select {
		case <-stop:
			return nil, fmt.Errorf("accept: stopped")
		default:
		}
		if err := ln.SetDeadline(time.Now().Add(AcceptRetryInterval)); err != nil {
			return nil, fmt.Errorf("set accept deadline: %w", err)
		}
		conn, err := ln.Accept()
		if err == nil {
			return conn, nil
		}
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			continue
		}
		return nil, fmt.Errorf("accept: %w", err)
	}
}
