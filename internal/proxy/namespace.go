// Package proxy provides a statically declared façade over an *rpc.Peer for
// accessing a namespaced remote object (an exposed component's methods and
// events), the way a strongly typed language expresses what a dynamic
// language would do with a property-interception proxy.
package proxy

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/hostwire/hostwire/internal/eventbus"
)

// caller is the subset of *rpc.Peer a Namespace needs. Declaring it here
// instead of importing the rpc package keeps proxy usable by anything that
// can call, notify, and listen — including a test double.
type caller interface {
	Call(ctx context.Context, method string, params interface{}) (json.RawMessage, error)
	Notify(method string, params interface{}) error
	On(event string, fn eventbus.Listener) eventbus.Subscription
}

// Namespace is a typed handle onto one path segment of a remote component's
// surface, e.g. "fs" or "fs.watch" — dot-joined to match the wire method
// names "<ComponentName>.<method>" the host's ComponentOptions scopes its
// exposed methods and events under. Namespaces are cheap to construct and
// safe for concurrent use.
type Namespace struct {
	peer   caller
	prefix string

	mu       sync.Mutex
	children map[string]*Namespace
}

// New creates the root Namespace for peer. prefix is typically the
// component's name.
func New(peer caller, prefix string) *Namespace {
	return &Namespace{peer: peer, prefix: prefix, children: make(map[string]*Namespace)}
}

// Sub returns the child namespace for name, creating it on first access and
// returning the same instance on every subsequent call — this is what
// satisfies proxy idempotence for strongly typed callers, since repeated
// access to the same sub-path must yield a stable, comparable value.
func (n *Namespace) Sub(name string) *Namespace {
	n.mu.Lock()
	defer n.mu.Unlock()

	if child, ok := n.children[name]; ok {
		return child
	}
	child := &Namespace{peer: n.peer, prefix: n.join(name), children: make(map[string]*Namespace)}
	n.children[name] = child
	return child
}

// Call invokes method under this namespace's path and waits for the result.
func (n *Namespace) Call(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	return n.peer.Call(ctx, n.join(method), params)
}

// Notify sends a fire-and-forget message under this namespace's path.
func (n *Namespace) Notify(method string, params interface{}) error {
	return n.peer.Notify(n.join(method), params)
}

// On subscribes fn to notifications named event under this namespace's
// path.
func (n *Namespace) On(event string, fn eventbus.Listener) eventbus.Subscription {
	return n.peer.On(n.join(event), fn)
}

// Path returns the full dotted path this namespace addresses, for logging.
func (n *Namespace) Path() string {
	return n.prefix
}

func (n *Namespace) join(segment string) string {
	if n.prefix == "" {
		return segment
	}
	return n.prefix + "." + segment
}
