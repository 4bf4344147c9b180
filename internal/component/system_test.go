package component

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hostwire/hostwire/internal/diagnostics"
	"github.com/hostwire/hostwire/internal/rpc"
)

func mustJSON(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("json.Marshal error: %v", err)
	}
	return data
}

// discardTransport never produces inbound data; it only supports being
// written to and closed, which is all System's own tests need from it.
type discardTransport struct {
	mu     sync.Mutex
	writes [][]byte
	closed chan struct{}
	once   sync.Once
}

func newDiscardTransport() *discardTransport {
	return &discardTransport{closed: make(chan struct{})}
}

func (t *discardTransport) ID() string { return "discard" }

func (t *discardTransport) Read(ctx context.Context) ([]byte, error) {
	select {
	case <-t.closed:
		return nil, errors.New("closed")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (t *discardTransport) Write(ctx context.Context, data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.writes = append(t.writes, data)
	return nil
}

func (t *discardTransport) Close() error {
	t.once.Do(func() { close(t.closed) })
	return nil
}

func (t *discardTransport) Done() <-chan struct{} { return t.closed }

type okComponent struct {
	mountErr   error
	unmountErr error
	mounted    bool
	unmounted  bool
}

func (c *okComponent) Mount() error {
	c.mounted = true
	return c.mountErr
}
func (c *okComponent) Unmount() error {
	c.unmounted = true
	return c.unmountErr
}

func newTestSystem() (*System, *diagnostics.Hub) {
	diag := diagnostics.New()
	diag.Start()
	peer := rpc.New(newDiscardTransport())
	peer.NotifyConnected()
	return NewSystem(peer, diag), diag
}

func TestSystem_GetComponentInstance_ConstructsOnce(t *testing.T) {
	calls := 0
	RegisterFactory("sys-test-once", func(opts *ComponentOptions) (Instance, error) {
		calls++
		return &okComponent{}, nil
	})

	sys, diag := newTestSystem()
	defer diag.Stop()

	first, err := sys.GetComponentInstance("sys-test-once")
	if err != nil {
		t.Fatalf("GetComponentInstance error: %v", err)
	}
	second, err := sys.GetComponentInstance("sys-test-once")
	if err != nil {
		t.Fatalf("GetComponentInstance error: %v", err)
	}
	if first != second {
		t.Error("expected the same cached instance on repeated access")
	}
	if calls != 1 {
		t.Errorf("factory called %d times, want 1", calls)
	}
}

func TestSystem_EnableMountsInstancesInOrder(t *testing.T) {
	var mountOrder []string
	var mu sync.Mutex

	RegisterFactory("sys-test-order-a", func(opts *ComponentOptions) (Instance, error) {
		return &trackingComponent{name: "a", order: &mountOrder, mu: &mu}, nil
	})
	RegisterFactory("sys-test-order-b", func(opts *ComponentOptions) (Instance, error) {
		return &trackingComponent{name: "b", order: &mountOrder, mu: &mu}, nil
	})

	sys, diag := newTestSystem()
	defer diag.Stop()

	sys.GetComponentInstance("sys-test-order-a")
	sys.GetComponentInstance("sys-test-order-b")

	if err := sys.Enable(context.Background()); err != nil {
		t.Fatalf("Enable error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(mountOrder) != 2 || mountOrder[0] != "a" || mountOrder[1] != "b" {
		t.Errorf("mountOrder = %v, want [a b]", mountOrder)
	}
}

type trackingComponent struct {
	name  string
	order *[]string
	mu    *sync.Mutex
}

func (c *trackingComponent) Mount() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	*c.order = append(*c.order, c.name)
	return nil
}
func (c *trackingComponent) Unmount() error { return nil }

func TestSystem_EnableEmitsLifecycleEvents(t *testing.T) {
	RegisterFactory("sys-test-events", func(opts *ComponentOptions) (Instance, error) {
		return &okComponent{}, nil
	})

	sys, diag := newTestSystem()
	defer diag.Stop()

	var willEnable, didMount bool
	sys.On("systemWillEnable", func(args ...interface{}) { willEnable = true })
	sys.On("sys-test-events.componentDidMount", func(args ...interface{}) { didMount = true })

	sys.GetComponentInstance("sys-test-events")
	if err := sys.Enable(context.Background()); err != nil {
		t.Fatalf("Enable error: %v", err)
	}

	if !willEnable {
		t.Error("expected systemWillEnable to fire")
	}
	if !didMount {
		t.Error("expected componentDidMount to fire")
	}
}

func TestSystem_MountFailurePublishesDiagnosticAndContinues(t *testing.T) {
	RegisterFactory("sys-test-fail", func(opts *ComponentOptions) (Instance, error) {
		return &okComponent{mountErr: errors.New("boom")}, nil
	})
	RegisterFactory("sys-test-fail-sibling", func(opts *ComponentOptions) (Instance, error) {
		return &okComponent{}, nil
	})

	sys, diag := newTestSystem()
	defer diag.Stop()

	events := make(chan diagnostics.Event, 1)
	diag.Subscribe(testSubscriber{id: "watcher", ch: events})

	sys.GetComponentInstance("sys-test-fail")
	siblingInst, _ := sys.GetComponentInstance("sys-test-fail-sibling")

	if err := sys.Enable(context.Background()); err != nil {
		t.Fatalf("Enable should not fail even if one component's Mount fails: %v", err)
	}

	select {
	case e := <-events:
		if e.Type != diagnostics.EventComponentMountFailed {
			t.Errorf("event type = %s, want %s", e.Type, diagnostics.EventComponentMountFailed)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for mount-failure diagnostic")
	}

	sibling := siblingInst.(*okComponent)
	if !sibling.mounted {
		t.Error("expected the sibling component to still be mounted despite the other's failure")
	}
}

func TestSystem_UnmountIsIdempotentAndUnmountsInstances(t *testing.T) {
	RegisterFactory("sys-test-unmount", func(opts *ComponentOptions) (Instance, error) {
		return &okComponent{}, nil
	})

	sys, diag := newTestSystem()
	defer diag.Stop()

	inst, _ := sys.GetComponentInstance("sys-test-unmount")
	sys.Enable(context.Background())
	oc := inst.(*okComponent)

	if err := sys.Unmount(context.Background()); err != nil {
		t.Fatalf("Unmount error: %v", err)
	}
	if !oc.unmounted {
		t.Error("expected instance Unmount to be called")
	}

	if err := sys.Unmount(context.Background()); err != nil {
		t.Fatalf("second Unmount should be a no-op, got: %v", err)
	}
}

func TestSystem_LoadComponentsRejectsMissing(t *testing.T) {
	sys, diag := newTestSystem()
	defer diag.Stop()

	result, rpcErr := sys.handleLoadComponents(context.Background(), mustJSON(t, []string{"never-registered-xyz"}))
	if rpcErr == nil {
		t.Fatal("expected an error listing the missing component")
	}
	if result != nil {
		t.Errorf("result = %v, want nil", result)
	}
}

func TestSystem_LoadComponentsConstructsKnownNames(t *testing.T) {
	RegisterFactory("sys-test-load", func(opts *ComponentOptions) (Instance, error) {
		return &okComponent{}, nil
	})

	sys, diag := newTestSystem()
	defer diag.Stop()

	_, rpcErr := sys.handleLoadComponents(context.Background(), mustJSON(t, []string{"sys-test-load"}))
	if rpcErr != nil {
		t.Fatalf("unexpected error: %v", rpcErr)
	}

	if _, err := sys.GetComponentInstance("sys-test-load"); err != nil {
		t.Errorf("expected sys-test-load to already be constructed: %v", err)
	}
}

type testSubscriber struct {
	id string
	ch chan diagnostics.Event
}

func (s testSubscriber) ID() string { return s.id }
func (s testSubscriber) Send(e diagnostics.Event) error {
	select {
	case s.ch <- e:
	default:
	}
	return nil
}
func (s testSubscriber) Close() error          { return nil }
func (s testSubscriber) Done() <-chan struct{} { return make(chan struct{}) }
