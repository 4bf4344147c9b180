// Package transport provides transport layer abstractions for RPC communication.
package transport

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrTransportClosed is returned by Read/Write once a transport has been
// closed.
var ErrTransportClosed = errors.New("transport is closed")

// Transport represents a bidirectional communication channel.
// It abstracts the underlying transport mechanism (worker IPC channel,
// WebSocket, in-memory pipe, etc.) to provide a uniform interface for
// JSON-RPC communication. A concrete transport is an external collaborator
// (spec §1); this package only declares the contract a *rpc.Peer consumes.
type Transport interface {
	// ID returns a unique identifier for this transport instance.
	// For WebSocket, this is typically a UUID generated per connection.
	// For stdio, this is typically "stdio".
	ID() string

	// Read reads the next message from the transport.
	// It blocks until a message is available or the context is cancelled.
	// Returns io.EOF when transport is closed cleanly.
	Read(ctx context.Context) ([]byte, error)

	// Write sends a message through the transport.
	// It blocks until the message is sent or the context is cancelled.
	Write(ctx context.Context, data []byte) error

	// Close closes the transport.
	// After Close is called, Read and Write will return errors.
	// Close is safe to call multiple times.
	Close() error

	// Done returns a channel that's closed when the transport is closed.
	// This can be used to detect transport closure from another goroutine.
	Done() <-chan struct{}
}

// GenerateID generates a unique transport/client ID.
func GenerateID() string {
	return uuid.New().String()
}
