package component

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/hostwire/hostwire/internal/diagnostics"
	"github.com/hostwire/hostwire/internal/eventbus"
	"github.com/hostwire/hostwire/internal/rpc"
	"github.com/hostwire/hostwire/internal/rpc/message"
)

// ComponentOptions is the scoped context a component factory receives
// instead of the raw peer: its on/notify/expose prefix every name with
// "<componentName>." so sibling components can never collide in the
// peer's flat method and event namespace.
type ComponentOptions struct {
	peer *rpc.Peer
	name string
}

// On subscribes fn to the component-scoped notification named event.
func (o *ComponentOptions) On(event string, fn eventbus.Listener) eventbus.Subscription {
	return o.peer.On(o.scope(event), fn)
}

// Notify sends a component-scoped notification.
func (o *ComponentOptions) Notify(event string, params interface{}) error {
	return o.peer.Notify(o.scope(event), params)
}

// Expose registers a component-scoped method.
func (o *ComponentOptions) Expose(method string, fn rpc.HandlerFunc) {
	o.peer.Expose(o.scope(method), fn)
}

func (o *ComponentOptions) scope(name string) string {
	return o.name + "." + name
}

// System owns the host-side component instance map over one *rpc.Peer: it
// constructs instances on demand, mounts them (in the order they were first
// requested) when enabled, and unmounts them — rejecting every pending call
// on the peer — when torn down.
type System struct {
	peer   *rpc.Peer
	diag   *diagnostics.Hub
	events *eventbus.Dispatcher

	mu        sync.Mutex
	order     []string
	instances map[string]Instance
	enabled   bool
	unmounted bool
}

// NewSystem creates a System bound to peer, publishing failures to diag.
// It exposes the reserved "LoadComponents" method.
func NewSystem(peer *rpc.Peer, diag *diagnostics.Hub) *System {
	s := &System{
		peer:      peer,
		diag:      diag,
		events:    eventbus.New(),
		instances: make(map[string]Instance),
	}
	peer.Expose("LoadComponents", s.handleLoadComponents)
	return s
}

// On subscribes to a system or component lifecycle event: "systemWillEnable",
// "systemWillUnmount", "systemDidUnmount", or "<name>.componentDidMount" /
// "<name>.componentWillUnmount".
func (s *System) On(event string, fn eventbus.Listener) eventbus.Subscription {
	return s.events.On(event, fn)
}

func (s *System) handleLoadComponents(ctx context.Context, params json.RawMessage) (interface{}, *message.Error) {
	var names []string
	if len(params) > 0 {
		if err := json.Unmarshal(params, &names); err != nil {
			return nil, message.ErrInvalidParams("LoadComponents expects an array of names")
		}
	}

	var missing []string
	for _, name := range names {
		if _, err := s.GetComponentInstance(name); err != nil {
			missing = append(missing, name)
		}
	}

	if len(missing) > 0 {
		return nil, message.NewError(message.InvalidParams, "Missing components: "+strings.Join(missing, ", "))
	}
	return nil, nil
}

// GetComponentInstance returns the cached instance for name, constructing
// it via its registered factory on first access. An unregistered name is an
// error.
func (s *System) GetComponentInstance(name string) (Instance, error) {
	s.mu.Lock()
	if inst, ok := s.instances[name]; ok {
		s.mu.Unlock()
		return inst, nil
	}
	s.mu.Unlock()

	factory, err := factoryFor(name)
	if err != nil {
		return nil, err
	}

	inst, err := factory(&ComponentOptions{peer: s.peer, name: name})
	if err != nil {
		s.publishFailure(diagnostics.EventComponentMountFailed, name, err)
		return nil, err
	}

	s.mu.Lock()
	if existing, ok := s.instances[name]; ok {
		s.mu.Unlock()
		return existing, nil
	}
	s.instances[name] = inst
	s.order = append(s.order, name)
	s.mu.Unlock()

	return inst, nil
}

// Enable emits systemWillEnable, mounts every currently-known instance in
// the order it was first requested, then notifies the guest side
// ("system-enabled") so its queued calls can drain. Enable is idempotent.
func (s *System) Enable(ctx context.Context) error {
	s.mu.Lock()
	if s.enabled {
		s.mu.Unlock()
		return nil
	}
	s.enabled = true
	order := append([]string(nil), s.order...)
	s.mu.Unlock()

	s.events.Emit("systemWillEnable")

	for _, name := range order {
		s.mu.Lock()
		inst := s.instances[name]
		s.mu.Unlock()
		s.mountInstance(name, inst)
	}

	if err := s.peer.Notify("system-enabled", nil); err != nil {
		return fmt.Errorf("component: failed to notify system-enabled: %w", err)
	}
	return nil
}

func (s *System) mountInstance(name string, inst Instance) {
	if err := inst.Mount(); err != nil {
		s.publishFailure(diagnostics.EventComponentMountFailed, name, err)
		return
	}
	log.Debug().Str("component", name).Msg("component mounted")
	s.events.Emit(name + ".componentDidMount")
}

// Unmount sends SIGKILL to the guest, emits systemWillUnmount, unmounts
// every instance (emitting "<name>.componentWillUnmount" immediately
// before each one's Unmount runs), closes the peer — rejecting any call
// still pending with rpc.ErrPeerClosed — and emits systemDidUnmount.
// Unmount is idempotent.
func (s *System) Unmount(ctx context.Context) error {
	s.mu.Lock()
	if s.unmounted {
		s.mu.Unlock()
		return nil
	}
	s.unmounted = true
	order := append([]string(nil), s.order...)
	instances := s.instances
	s.instances = make(map[string]Instance)
	s.order = nil
	s.mu.Unlock()

	_ = s.peer.Notify("SIGKILL", nil)
	s.events.Emit("systemWillUnmount")

	for _, name := range order {
		inst := instances[name]
		s.events.Emit(name + ".componentWillUnmount")
		if err := inst.Unmount(); err != nil {
			s.publishFailure(diagnostics.EventComponentUnmountFailed, name, err)
		}
	}

	closeErr := s.peer.Close(rpc.ErrPeerClosed)
	s.events.Emit("systemDidUnmount")
	return closeErr
}

func (s *System) publishFailure(eventType diagnostics.EventType, component string, err error) {
	s.diag.Publish(diagnostics.NewEvent(eventType, component, err.Error()))
}
