package rpc

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/hostwire/hostwire/internal/rpc/message"
)

// HandlerFunc is the signature for an exposed RPC method. If the result is
// nil and the error is nil, a successful response with a null result is
// sent.
type HandlerFunc func(ctx context.Context, params json.RawMessage) (interface{}, *message.Error)

// registry holds the methods a Peer has exposed to its remote side.
// Registering a method that is already registered replaces the previous
// handler: last writer wins, matching how a peer re-exposing a name expects
// its newest definition to take effect rather than being rejected.
type registry struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

func newRegistry() *registry {
	return &registry{handlers: make(map[string]HandlerFunc)}
}

func (r *registry) register(method string, fn HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[method] = fn
}

func (r *registry) unregister(method string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handlers, method)
}

func (r *registry) get(method string) HandlerFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.handlers[method]
}
