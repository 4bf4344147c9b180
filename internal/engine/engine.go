// Package engine wires a config.Config, a diagnostics sink, an *rpc.Peer,
// and a *component.System together into the one host-side object an
// embedder needs: it is the "caller that supplies its own
// transport.Transport" the rest of this module's packages are written
// against. cmd/hostwired does not construct one; an embedder calls New from
// its own code.
package engine

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/hostwire/hostwire/internal/component"
	"github.com/hostwire/hostwire/internal/config"
	"github.com/hostwire/hostwire/internal/diagnostics"
	"github.com/hostwire/hostwire/internal/rpc"
	"github.com/hostwire/hostwire/internal/rpc/transport"
)

// Host is a fully wired host-side engine instance: a diagnostics hub, the
// peer bound to the caller-supplied transport, and the component system
// layered on top of it.
type Host struct {
	cfg    *config.Config
	Diag   *diagnostics.Hub
	Peer   *rpc.Peer
	System *component.System

	sink diagnostics.Subscriber
}

// New builds a Host bound to t, per cfg. The diagnostics hub is started
// immediately; if cfg.Diagnostics.Enabled, a SQLiteSink is opened at
// cfg.Diagnostics.DBPath and subscribed before any lifecycle event can be
// published.
func New(cfg *config.Config, t transport.Transport) (*Host, error) {
	diag := diagnostics.New()
	diag.Start()

	h := &Host{cfg: cfg, Diag: diag}

	if cfg.Diagnostics.Enabled {
		sink, err := diagnostics.NewSQLiteSink(transport.GenerateID(), cfg.Diagnostics.DBPath)
		if err != nil {
			diag.Stop()
			return nil, fmt.Errorf("engine: opening diagnostics sink: %w", err)
		}
		diag.Subscribe(sink)
		h.sink = sink
	}

	peerOpts := []rpc.Option{}
	if cfg.Limits.MaxPendingCalls > 0 {
		peerOpts = append(peerOpts, rpc.WithMaxPendingCalls(cfg.Limits.MaxPendingCalls))
	}
	h.Peer = rpc.New(t, peerOpts...)
	h.System = component.NewSystem(h.Peer, diag)

	h.System.On("systemWillEnable", func(args ...interface{}) {
		log.Info().Msg("system will enable")
	})
	h.System.On("systemDidUnmount", func(args ...interface{}) {
		log.Info().Msg("system did unmount")
	})

	return h, nil
}

// Start marks the peer connected (flushing any queued sends), preloads the
// components named in cfg.Components.Preload, and enables the system so
// queued guest calls can begin draining.
func (h *Host) Start(ctx context.Context) error {
	if err := h.Peer.NotifyConnected(); err != nil {
		return fmt.Errorf("engine: notifying peer connected: %w", err)
	}

	for _, name := range h.cfg.Components.Preload {
		if _, err := h.System.GetComponentInstance(name); err != nil {
			return fmt.Errorf("engine: preloading component %q: %w", name, err)
		}
	}

	return h.System.Enable(ctx)
}

// Shutdown unmounts the component system and stops the diagnostics hub.
func (h *Host) Shutdown(ctx context.Context) error {
	err := h.System.Unmount(ctx)
	h.Diag.Stop()
	return err
}
