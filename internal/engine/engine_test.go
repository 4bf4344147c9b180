package engine

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/hostwire/hostwire/internal/component"
	"github.com/hostwire/hostwire/internal/config"
)

// loopbackTransport is a test-only Transport that never produces inbound
// data; Start/Shutdown exercise only the engine's own outbound wiring, not
// a real guest round-trip (that is rpc and component's job).
type loopbackTransport struct {
	mu     sync.Mutex
	writes [][]byte
	closed chan struct{}
	once   sync.Once
}

func newLoopbackTransport() *loopbackTransport {
	return &loopbackTransport{closed: make(chan struct{})}
}

func (t *loopbackTransport) ID() string { return "loopback" }

func (t *loopbackTransport) Read(ctx context.Context) ([]byte, error) {
	select {
	case <-t.closed:
		return nil, context.Canceled
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (t *loopbackTransport) Write(ctx context.Context, data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.writes = append(t.writes, data)
	return nil
}

func (t *loopbackTransport) Close() error {
	t.once.Do(func() { close(t.closed) })
	return nil
}

func (t *loopbackTransport) Done() <-chan struct{} { return t.closed }

type pingComponent struct{ mounted, unmounted bool }

func (p *pingComponent) Mount() error   { p.mounted = true; return nil }
func (p *pingComponent) Unmount() error { p.unmounted = true; return nil }

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{
		Server:      config.ServerConfig{Transport: "memory"},
		Components:  config.ComponentsConfig{Preload: []string{"Ping"}},
		Logging:     config.LoggingConfig{Level: "info", Format: "console"},
		Limits:      config.LimitsConfig{MaxPendingCalls: 8},
		Diagnostics: config.DiagnosticsConfig{Enabled: true, DBPath: filepath.Join(t.TempDir(), "diag.db")},
	}
	return cfg
}

func TestNew_WiresComponentsAndDiagnostics(t *testing.T) {
	inst := &pingComponent{}
	component.RegisterFactory("Ping", func(opts *component.ComponentOptions) (component.Instance, error) {
		return inst, nil
	})

	h, err := New(testConfig(t), newLoopbackTransport())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := h.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !inst.mounted {
		t.Error("preloaded component should have been mounted by Start")
	}

	if err := h.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if !inst.unmounted {
		t.Error("component should have been unmounted by Shutdown")
	}
}

func TestNew_DiagnosticsDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Diagnostics.Enabled = false
	cfg.Components.Preload = nil

	h, err := New(cfg, newLoopbackTransport())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if h.sink != nil {
		t.Error("expected no diagnostics sink when Diagnostics.Enabled is false")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := h.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := h.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
}
