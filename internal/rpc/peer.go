// Package rpc implements the symmetric JSON-RPC 2.0 peer shared by both
// sides of a host/guest-worker connection: it can call the other side,
// notify it, expose methods to it, and fire local events when the other
// side's notifications arrive, all through the same type.
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/hostwire/hostwire/internal/eventbus"
	"github.com/hostwire/hostwire/internal/rpc/message"
	"github.com/hostwire/hostwire/internal/rpc/transport"
)

// ErrPeerClosed is returned to every call still pending when a Peer is
// closed or its owning System is unmounted, and to any call attempted
// afterward.
var ErrPeerClosed = errors.New("rpc: peer is closed")

// ErrTooManyPendingCalls is returned by Call when the Peer was constructed
// with a positive maxPendingCalls and that many calls are already awaiting
// a response.
var ErrTooManyPendingCalls = errors.New("rpc: too many pending calls")

// ErrParamsNotStructured is returned synchronously by Call and Notify when
// params is neither absent (nil) nor array- or object-valued. It is raised
// before any id is allocated or message is sent.
var ErrParamsNotStructured = errors.New("Params must be structured data")

// validateParams enforces the parameter contract: params must be nil, or a
// value that marshals to a JSON array or object. Anything else — a bare
// string, number, or bool — is rejected synchronously rather than being
// handed to json.Marshal and placed on the wire.
func validateParams(params interface{}) error {
	if params == nil {
		return nil
	}
	v := reflect.ValueOf(params)
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	switch v.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map, reflect.Struct:
		return nil
	default:
		return ErrParamsNotStructured
	}
}

// Option configures optional Peer behavior at construction time.
type Option func(*Peer)

// WithMaxPendingCalls bounds how many outstanding Call()s a Peer may carry
// at once; a Call made while at the limit fails immediately with
// ErrTooManyPendingCalls rather than allocating an id. n <= 0 means
// unbounded, the zero-value default.
func WithMaxPendingCalls(n int) Option {
	return func(p *Peer) { p.maxPendingCalls = n }
}

type pendingCall struct {
	resultCh chan callResult
}

type callResult struct {
	result   json.RawMessage
	err      *message.Error
	closeErr error
}

// Peer is one end of a bidirectional JSON-RPC 2.0 connection. The zero
// value is not usable; construct with New.
type Peer struct {
	transport transport.Transport

	mu        sync.Mutex
	nextID    int64
	pending   map[int64]*pendingCall
	connected bool
	closed    bool
	sendQueue [][]byte

	registry   *registry
	dispatcher *eventbus.Dispatcher

	maxPendingCalls int
}

// New creates a Peer bound to the given transport. The transport is not
// used until NotifyConnected is called: outbound messages queue in FIFO
// order until then.
func New(t transport.Transport, opts ...Option) *Peer {
	p := &Peer{
		transport:  t,
		nextID:     0,
		pending:    make(map[int64]*pendingCall),
		registry:   newRegistry(),
		dispatcher: eventbus.New(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Expose registers fn so the remote side can invoke it by name. Exposing a
// method that is already exposed replaces the previous handler.
func (p *Peer) Expose(method string, fn HandlerFunc) {
	p.registry.register(method, fn)
}

// Unexpose removes a previously exposed method.
func (p *Peer) Unexpose(method string) {
	p.registry.unregister(method)
}

// On registers fn to run every time the remote side sends a notification
// named event.
func (p *Peer) On(event string, fn eventbus.Listener) eventbus.Subscription {
	return p.dispatcher.On(event, fn)
}

// Once registers fn to run at most once.
func (p *Peer) Once(event string, fn eventbus.Listener) eventbus.Subscription {
	return p.dispatcher.Once(event, fn)
}

// Off removes a previously registered event listener.
func (p *Peer) Off(sub eventbus.Subscription) {
	p.dispatcher.Off(sub)
}

// Call sends a request to the remote side and blocks until its response
// arrives, ctx is cancelled, or the Peer is closed. params must be nil, an
// array, or an object; anything else fails synchronously with
// ErrParamsNotStructured before an id is allocated or anything is sent.
func (p *Peer) Call(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	if err := validateParams(params); err != nil {
		return nil, err
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPeerClosed
	}
	if p.maxPendingCalls > 0 && len(p.pending) >= p.maxPendingCalls {
		p.mu.Unlock()
		return nil, ErrTooManyPendingCalls
	}
	p.nextID++
	id := p.nextID
	call := &pendingCall{resultCh: make(chan callResult, 1)}
	p.pending[id] = call
	p.mu.Unlock()

	req, err := message.NewRequest(message.NumberID(id), method, params)
	if err != nil {
		p.dropPending(id)
		return nil, fmt.Errorf("rpc: failed to build request: %w", err)
	}

	data, encErr := message.Encode(req)
	if encErr != nil {
		p.dropPending(id)
		return nil, encErr
	}

	if err := p.send(data); err != nil {
		p.dropPending(id)
		return nil, err
	}

	select {
	case res := <-call.resultCh:
		if res.closeErr != nil {
			return nil, res.closeErr
		}
		if res.err != nil {
			return nil, remoteError(res.err)
		}
		return res.result, nil
	case <-ctx.Done():
		p.dropPending(id)
		return nil, ctx.Err()
	}
}

// Notify sends a fire-and-forget message to the remote side; it does not
// wait for or expect any response. params is subject to the same
// structured-data contract as Call.
func (p *Peer) Notify(method string, params interface{}) error {
	if err := validateParams(params); err != nil {
		return err
	}

	notif, err := message.NewNotification(method, params)
	if err != nil {
		return fmt.Errorf("rpc: failed to build notification: %w", err)
	}
	data, encErr := message.Encode(notif)
	if encErr != nil {
		return encErr
	}
	return p.send(data)
}

func (p *Peer) dropPending(id int64) {
	p.mu.Lock()
	delete(p.pending, id)
	p.mu.Unlock()
}

// send queues data for delivery. Before NotifyConnected has been called,
// messages accumulate in FIFO order rather than being written to a
// transport that isn't ready for them.
func (p *Peer) send(data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPeerClosed
	}
	if !p.connected {
		p.sendQueue = append(p.sendQueue, data)
		return nil
	}
	return p.transport.Write(context.Background(), data)
}

// NotifyConnected marks the underlying transport ready and flushes any
// messages queued before this call. It is idempotent: calling it more than
// once has no further effect.
func (p *Peer) NotifyConnected() error {
	p.mu.Lock()
	if p.connected || p.closed {
		p.mu.Unlock()
		return nil
	}
	p.connected = true
	queued := p.sendQueue
	p.sendQueue = nil
	p.mu.Unlock()

	for _, data := range queued {
		if err := p.transport.Write(context.Background(), data); err != nil {
			return err
		}
	}
	return nil
}

// Close tears down the Peer: every call still awaiting a response is
// rejected with err (ErrPeerClosed if err is nil), and further Call/Notify
// attempts fail immediately.
func (p *Peer) Close(err error) error {
	if err == nil {
		err = ErrPeerClosed
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	pending := p.pending
	p.pending = make(map[int64]*pendingCall)
	p.mu.Unlock()

	for _, call := range pending {
		call.resultCh <- callResult{closeErr: err}
	}

	return p.transport.Close()
}

// Listen reads messages from the transport until it closes or ctx is
// cancelled, dispatching each one. It returns the error from the
// transport's Read that ended the loop, including on a clean close (io.EOF
// under the Transport contract).
func (p *Peer) Listen(ctx context.Context) error {
	for {
		data, err := p.transport.Read(ctx)
		if err != nil {
			return err
		}
		p.HandleMessage(ctx, data)
	}
}

// HandleMessage classifies a single inbound wire message and routes it:
// a message carrying an id that matches a pending call resolves or rejects
// that call; a message carrying a method with no id fans out as a local
// event; a message carrying both a method and an id is an incoming request
// dispatched to an exposed handler, whose result or error is sent back as
// a response. Anything else, including malformed JSON, a null top-level
// message, or a response with neither result nor error, is reported as a
// protocol error and never propagates as a panic or a silently dropped
// message.
func (p *Peer) HandleMessage(ctx context.Context, data []byte) {
	env, decErr := message.Decode(data)
	if decErr != nil {
		p.reportProtocolError(decErr)
		return
	}
	if env == nil {
		p.reportProtocolError(message.ErrInvalidRequest("Message cannot be null"))
		return
	}

	switch {
	case env.HasID && (env.HasResult || env.HasError) && !env.HasMethod:
		p.resolveCall(env)
	case env.HasID && !env.HasMethod && !env.HasResult && !env.HasError:
		p.reportProtocolError(message.ErrInvalidRequest("response must have result or error"))
	case env.HasMethod && !env.HasID:
		p.dispatcher.Emit(env.Method, json.RawMessage(env.Params))
	case env.HasMethod && env.HasID:
		p.handleIncomingRequest(ctx, env)
	default:
		p.reportProtocolError(message.ErrInvalidRequest("Invalid message"))
	}
}

func (p *Peer) resolveCall(env *message.Envelope) {
	id := env.ID.Int64()

	p.mu.Lock()
	call, ok := p.pending[id]
	if ok {
		delete(p.pending, id)
	}
	p.mu.Unlock()

	if !ok {
		p.reportProtocolError(message.ErrInvalidRequest(fmt.Sprintf("response for unknown or already-resolved request id %d", id)))
		return
	}

	call.resultCh <- callResult{result: env.Result, err: env.Error}
}

func (p *Peer) handleIncomingRequest(ctx context.Context, env *message.Envelope) {
	handler := p.registry.get(env.Method)
	if handler == nil {
		p.sendResponse(env.ID, nil, message.ErrMethodNotFound(env.Method))
		return
	}

	result, rpcErr := handler(ctx, env.Params)
	p.sendResponse(env.ID, result, rpcErr)
}

func (p *Peer) sendResponse(id *message.ID, result interface{}, rpcErr *message.Error) {
	var resp *message.Response
	if rpcErr != nil {
		resp = message.NewErrorResponse(id, rpcErr)
	} else {
		var err error
		resp, err = message.NewSuccessResponse(id, result)
		if err != nil {
			resp = message.NewErrorResponse(id, message.ErrInternalError("failed to marshal response"))
		}
	}

	data, encErr := message.Encode(resp)
	if encErr != nil {
		log.Error().Str("method", id.String()).Msg("failed to encode response")
		return
	}
	if err := p.send(data); err != nil {
		log.Debug().Err(err).Msg("failed to send response")
	}
}

func (p *Peer) reportProtocolError(err *message.Error) {
	log.Debug().Int("code", err.Code).Str("message", err.Message).Msg("protocol error on inbound message")
	p.dispatcher.Emit("error", err)
}

// RemoteError is what a failed Call returns: a local reconstruction of an
// error the remote side raised. It starts life as a generic "Remote error"
// and has its fields overwritten by the wire payload, so its Error() text
// ends up as the remote message rather than the generic placeholder.
type RemoteError struct {
	Message string
	Code    int
	Stack   string
	Data    json.RawMessage
}

// Error implements the error interface.
func (e *RemoteError) Error() string {
	return e.Message
}

// remoteError reconstructs a local error from a remote error payload.
func remoteError(e *message.Error) error {
	re := &RemoteError{Message: "Remote error"}
	if e == nil {
		return re
	}
	re.Message = e.Message
	re.Code = e.Code
	re.Stack = e.Stack
	re.Data = e.Data
	return re
}
