// Package guestclient implements the guest side of a host/guest-worker
// connection: a Client that tears down cleanly on SIGKILL and builds
// component proxies the guest's own code calls into.
package guestclient

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/hostwire/hostwire/internal/eventbus"
	"github.com/hostwire/hostwire/internal/proxy"
	"github.com/hostwire/hostwire/internal/rpc"
)

// Client mirrors component.System on the guest side of the connection. Its
// outbound calls queue in pendingBeforeEnable until the guest observes the
// host's "system-enabled" notification — a gate distinct from the peer's
// own connect-gated send queue, which only knows whether the transport is
// ready, not whether the host has finished enabling its components.
type Client struct {
	peer *rpc.Peer

	mu                  sync.Mutex
	enabled             bool
	pendingBeforeEnable []func()
}

// New creates a Client wrapping peer. It subscribes to the reserved
// "SIGKILL" and "system-enabled" notifications.
func New(peer *rpc.Peer) *Client {
	c := &Client{peer: peer}
	peer.On("SIGKILL", c.handleSIGKILL)
	peer.On("system-enabled", c.handleSystemEnabled)
	return c
}

func (c *Client) handleSIGKILL(args ...interface{}) {
	log.Debug().Msg("received SIGKILL, tearing down guest runtime")
	_ = c.peer.Close(nil)
}

func (c *Client) handleSystemEnabled(args ...interface{}) {
	c.mu.Lock()
	if c.enabled {
		c.mu.Unlock()
		return
	}
	c.enabled = true
	queued := c.pendingBeforeEnable
	c.pendingBeforeEnable = nil
	c.mu.Unlock()

	// Each queued call runs on its own goroutine so a slow response doesn't
	// hold up the rest of the flush; their requests were already built
	// against the arguments captured when they were originally issued.
	for _, fn := range queued {
		go fn()
	}
}

// Call issues a call through the underlying peer. Before "system-enabled"
// has been observed, the call is queued and only actually sent once it has.
func (c *Client) Call(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	c.mu.Lock()
	if !c.enabled {
		resultCh := make(chan callOutcome, 1)
		c.pendingBeforeEnable = append(c.pendingBeforeEnable, func() {
			result, err := c.peer.Call(ctx, method, params)
			resultCh <- callOutcome{result, err}
		})
		c.mu.Unlock()

		select {
		case outcome := <-resultCh:
			return outcome.result, outcome.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	c.mu.Unlock()

	return c.peer.Call(ctx, method, params)
}

type callOutcome struct {
	result json.RawMessage
	err    error
}

// Notify sends a fire-and-forget message through the peer. Notifications
// are not subject to the pre-enable queue: they carry no response for a
// caller to wait on, so there is nothing ordering could break.
func (c *Client) Notify(method string, params interface{}) error {
	return c.peer.Notify(method, params)
}

// On subscribes fn to a notification the host sends.
func (c *Client) On(event string, fn eventbus.Listener) eventbus.Subscription {
	return c.peer.On(event, fn)
}

// Component requests the host materialize the named component (via the
// reserved LoadComponents method) and returns a proxy namespace scoped to
// it. The LoadComponents call goes straight to the peer, not through the
// pre-enable queue. Building the proxy statically like this, rather than
// intercepting arbitrary property access, is the idiomatic Go rendering of
// what a dynamic-language guest would do with a runtime property proxy.
func (c *Client) Component(ctx context.Context, name string) (*proxy.Namespace, error) {
	if _, err := c.peer.Call(ctx, "LoadComponents", []string{name}); err != nil {
		return nil, err
	}
	return proxy.New(c, name), nil
}

// Close closes the underlying peer.
func (c *Client) Close() error {
	return c.peer.Close(nil)
}
